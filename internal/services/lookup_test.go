package services

import (
	"testing"

	"resplan/internal/errs"
	"resplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Lookups.CreateList(env.ctx, env.admin, models.IndustryList, "Industries")
	require.NoError(t, err)

	_, err = env.svc.Lookups.CreateList(env.ctx, env.admin, models.IndustryList, "again")
	var dup *errs.DuplicateNameError
	assert.ErrorAs(t, err, &dup)

	_, err = env.svc.Lookups.CreateList(env.ctx, env.admin, "  ", "")
	var v *errs.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestLookupMutationsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "mgr", models.RoleManager)

	_, err := env.svc.Lookups.CreateList(env.ctx, manager, "Anything", "")
	var perm *errs.PermissionError
	assert.ErrorAs(t, err, &perm)
}

func TestSetItemsReplacesOrderedSet(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.svc.Lookups.CreateList(env.ctx, env.admin, models.CountryList, "")
	require.NoError(t, err)

	items, err := env.svc.Lookups.SetItems(env.ctx, env.admin, list.ID, []LookupItemInput{
		{Value: "Germany"}, {Value: "France"}, {Value: "Spain"},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	germany, spain := items[0], items[2]

	explicit := 0
	items, err = env.svc.Lookups.SetItems(env.ctx, env.admin, list.ID, []LookupItemInput{
		{ID: uintPtr(spain.ID), Value: "Spain", Order: intPtr(5)},
		{ID: uintPtr(germany.ID), Value: "Deutschland", Order: &explicit},
		{Value: "Italy"},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, germany.ID, items[0].ID)
	assert.Equal(t, "Deutschland", items[0].Value)
	assert.Equal(t, "Italy", items[1].Value)
	assert.Equal(t, 2, items[1].Order)
	assert.Equal(t, spain.ID, items[2].ID)
	assert.Equal(t, 5, items[2].Order)

	var france int64
	env.db.Model(&models.LookupItem{}).Where("value = ?", "France").Count(&france)
	assert.Zero(t, france)
}

func TestSetItemsUnknownList(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Lookups.SetItems(env.ctx, env.admin, 999, []LookupItemInput{{Value: "x"}})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRemovedItemReferencesAreCleared(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.svc.Lookups.CreateList(env.ctx, env.admin, models.CountryList, "")
	require.NoError(t, err)
	items, err := env.svc.Lookups.SetItems(env.ctx, env.admin, list.ID, []LookupItemInput{{Value: "Austria"}})
	require.NoError(t, err)

	c, err := env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", CountryID: uintPtr(items[0].ID)})
	require.NoError(t, err)

	_, err = env.svc.Lookups.SetItems(env.ctx, env.admin, list.ID, nil)
	require.NoError(t, err)

	got, err := env.svc.Clients.GetClient(env.ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CountryID)
}

func TestDeleteListCascadesAndNullsStatus(t *testing.T) {
	env := newTestEnv(t)
	pm := env.user(t, "pm", models.RoleProjectManager)
	c := env.client(t, "ACME")

	p, err := env.svc.Projects.CreateProject(env.ctx, env.admin, ProjectInput{Name: "P", ClientID: c.ID, ManagerID: pm.ID})
	require.NoError(t, err)
	require.NotNil(t, p.StatusID)

	list, err := env.svc.Lookups.FindListByName(env.ctx, models.ProjectStatusList)
	require.NoError(t, err)
	require.NoError(t, env.svc.Lookups.DeleteList(env.ctx, env.admin, list.ID))

	assert.Zero(t, env.count(t, &models.LookupItem{}))

	got, err := env.svc.Projects.GetProject(env.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.StatusID)
	assert.Equal(t, models.DefaultProjectStatus, got.Status)

	_, err = env.svc.Lookups.FindListByName(env.ctx, models.ProjectStatusList)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestFindItemByValue(t *testing.T) {
	env := newTestEnv(t)

	item, err := env.svc.Lookups.FindItemByValue(env.ctx, models.ProjectStatusList, "Planning")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Planning", item.Value)

	item, err = env.svc.Lookups.FindItemByValue(env.ctx, models.ProjectStatusList, "Nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func intPtr(v int) *int { return &v }
