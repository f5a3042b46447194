package user

// User is an account of one tenant (a construction company). Every record a user reads
// or writes is scoped by TenantId.
type User struct {
	Id          int
	Uid         string
	TenantId    int
	Username    string
	DisplayName string
}
