package test_utils

import (
	"context"

	"github.com/buildledger/buildledger/pkg/user"
)

// TenantContext returns a context carrying a user of the given tenant.
func TenantContext(tenantId int) context.Context {
	return user.WithUser(context.Background(), user.User{
		Id:          tenantId * 100,
		Uid:         "test-user",
		TenantId:    tenantId,
		Username:    "test_user",
		DisplayName: "Test User",
	})
}
