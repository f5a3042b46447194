package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceImpl_CreateUser(t *testing.T) {
	t.Run("should assign a uid when none is given", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())

		// when
		created, err := service.CreateUser(context.Background(), User{TenantId: 1, Username: "site-lead"})

		// then
		require.NoError(t, err)
		assert.NotEmpty(t, created.Uid)
		found, err := service.GetUserByUid(context.Background(), created.Uid)
		require.NoError(t, err)
		assert.Equal(t, created.Id, found.Id)
	})
}

func TestServiceImpl_ListTenantUsers(t *testing.T) {
	t.Run("should only list users of the current tenant", func(t *testing.T) {
		// given
		service := NewUserService(NewStubUserRepository())
		me, _ := service.CreateUser(context.Background(), User{TenantId: 1, Username: "b-user"})
		_, _ = service.CreateUser(context.Background(), User{TenantId: 1, Username: "a-user"})
		_, _ = service.CreateUser(context.Background(), User{TenantId: 2, Username: "other"})
		ctx := WithUser(context.Background(), me)

		// when
		users, err := service.ListTenantUsers(ctx)

		// then
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "a-user", users[0].Username)
	})

	t.Run("should return error when context has no user", func(t *testing.T) {
		service := NewUserService(NewStubUserRepository())

		_, err := service.ListTenantUsers(context.Background())

		assert.ErrorIs(t, err, ErrNoUser)
		assert.Contains(t, err.Error(), "failed to get current user")
	})
}
