package project

import (
	"context"
	"testing"
	"time"

	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{Id: 1, TenantId: 10})

func setup(t *testing.T) *ServiceImpl {
	repo := NewRepositoryStub()
	t.Cleanup(repo.Cleanup)
	return NewService(repo)
}

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestServiceImpl_CreateChangeOrder(t *testing.T) {
	t.Run("should attach a change order to an existing project", func(t *testing.T) {
		// given
		service := setup(t)
		p, err := service.CreateProject(ctx, Project{Name: "Riverside Lofts", DefaultLaborRate: rate("85")})
		require.NoError(t, err)

		// when
		co, err := service.CreateChangeOrder(ctx, ChangeOrder{ProjectId: p.Id, Title: "Extra balcony", OverrideRate: rate("110")})

		// then
		require.NoError(t, err)
		orders, err := service.ListChangeOrders(ctx, p.Id)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, co.Id, orders[0].Id)
		assert.True(t, rate("110").Equal(*orders[0].OverrideRate))
	})

	t.Run("should fail for an unknown project", func(t *testing.T) {
		service := setup(t)

		_, err := service.CreateChangeOrder(ctx, ChangeOrder{ProjectId: 404, Title: "Ghost"})

		assert.ErrorIs(t, err, ErrProjectNotFound)
	})

	t.Run("should reject a negative override rate", func(t *testing.T) {
		service := setup(t)
		p, _ := service.CreateProject(ctx, Project{Name: "Riverside Lofts"})

		_, err := service.CreateChangeOrder(ctx, ChangeOrder{ProjectId: p.Id, Title: "Credit", OverrideRate: rate("-5")})

		assert.ErrorIs(t, err, ErrNegativeRate)
	})
}

func TestServiceImpl_RecordExpense(t *testing.T) {
	t.Run("should store the expense on its calendar date", func(t *testing.T) {
		// given
		service := setup(t)
		p, _ := service.CreateProject(ctx, Project{Name: "Riverside Lofts"})

		// when
		e, err := service.RecordExpense(ctx, Expense{
			ProjectId: p.Id,
			Date:      time.Date(2025, time.May, 2, 17, 45, 0, 0, time.UTC),
			Amount:    decimal.RequireFromString("1250.40"),
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC), e.Date)
		expenses, _ := service.ListExpenses(ctx, p.Id)
		assert.Len(t, expenses, 1)
	})

	t.Run("should reject non-positive amounts", func(t *testing.T) {
		service := setup(t)
		p, _ := service.CreateProject(ctx, Project{Name: "Riverside Lofts"})

		_, err := service.RecordExpense(ctx, Expense{ProjectId: p.Id, Date: time.Now(), Amount: decimal.Zero})

		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestServiceImpl_UpdateProject(t *testing.T) {
	service := setup(t)
	p, _ := service.CreateProject(ctx, Project{Name: "Riverside Lofts", DefaultLaborRate: rate("85")})

	updated, err := service.UpdateProject(ctx, Project{Id: p.Id, Name: "Riverside Lofts II", DefaultLaborRate: rate("90")})

	require.NoError(t, err)
	assert.Equal(t, "Riverside Lofts II", updated.Name)
	found, _ := service.GetProject(ctx, p.Id)
	assert.True(t, rate("90").Equal(*found.DefaultLaborRate))

	_, err = service.UpdateProject(ctx, Project{Id: 404, Name: "Nope"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
