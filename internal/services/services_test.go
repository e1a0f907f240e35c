package services

import (
	"context"
	"testing"

	"resplan/internal/config"
	"resplan/internal/database"
	"resplan/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	ctx   context.Context
	db    *gorm.DB
	svc   *Services
	admin *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{DBDriver: "sqlite", DBDSN: ":memory:"}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	ctx := context.Background()
	require.NoError(t, database.Bootstrap(ctx, db, database.BootstrapOptions{
		AdminUsername: "admin",
		AdminEmail:    "admin@test.local",
		AdminPassword: "Admin123!",
	}, zap.NewNop()))

	var admin models.User
	require.NoError(t, db.Preload("Roles").Where("username = ?", "admin").First(&admin).Error)

	return &testEnv{ctx: ctx, db: db, svc: New(db, zap.NewNop()), admin: &admin}
}

func (e *testEnv) user(t *testing.T, username string, roles ...string) *models.User {
	t.Helper()
	u, err := e.svc.Identity.CreateUser(e.ctx, e.admin, UserInput{
		Username:  username,
		Email:     username + "@test.local",
		Password:  "password123",
		FirstName: username,
		Roles:     roles,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) client(t *testing.T, name string) *models.Client {
	t.Helper()
	c, err := e.svc.Clients.CreateClient(e.ctx, e.admin, ClientInput{Name: name, Active: true})
	require.NoError(t, err)
	return c
}

func (e *testEnv) group(t *testing.T, name string, elements ...string) *models.ProductGroup {
	t.Helper()
	g, err := e.svc.Catalog.CreateGroup(e.ctx, e.admin, GroupInput{Name: name})
	require.NoError(t, err)
	if len(elements) == 0 {
		return g
	}
	in := make([]ElementInput, 0, len(elements))
	for _, l := range elements {
		in = append(in, ElementInput{Label: l})
	}
	g, err = e.svc.Catalog.UpdateGroup(e.ctx, e.admin, g.ID, GroupInput{Name: name}, in)
	require.NoError(t, err)
	return g
}

// durations creates a DurationList and returns its item ids.
func (e *testEnv) durations(t *testing.T, values ...string) []uint {
	t.Helper()
	list, err := e.svc.Lookups.CreateList(e.ctx, e.admin, models.DurationList, "")
	require.NoError(t, err)
	in := make([]LookupItemInput, 0, len(values))
	for _, v := range values {
		in = append(in, LookupItemInput{Value: v})
	}
	items, err := e.svc.Lookups.SetItems(e.ctx, e.admin, list.ID, in)
	require.NoError(t, err)
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func uintPtr(v uint) *uint { return &v }
