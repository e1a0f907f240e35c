package services

import (
	"strings"
	"testing"

	"resplan/internal/errs"
	"resplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	cases := []struct {
		raw     string
		present bool
		want    bool
		wantErr bool
	}{
		{"", false, false, false},
		{"on", false, false, false},
		{"on", true, true, false},
		{"TRUE", true, true, false},
		{" yes ", true, true, false},
		{"1", true, true, false},
		{"off", true, false, false},
		{"false", true, false, false},
		{"0", true, false, false},
		{"no", true, false, false},
		{"", true, false, false},
		{"maybe", true, false, true},
		{"2", true, false, true},
	}
	for _, tc := range cases {
		got, err := ParseBool("active", tc.raw, tc.present)
		if tc.wantErr {
			var v *errs.ValidationError
			assert.ErrorAs(t, err, &v, "raw=%q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q present=%v", tc.raw, tc.present)
	}
}

func TestClientActiveRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME"})
	require.NoError(t, err)
	got, err := env.svc.Clients.GetClient(env.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = env.svc.Clients.UpdateClient(env.ctx, env.admin, c.ID, ClientInput{Name: "ACME", Active: true})
	require.NoError(t, err)

	active, err := env.svc.Clients.ListClients(env.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].Active)
}

func TestClientValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: " "})
	var v *errs.ValidationError
	assert.ErrorAs(t, err, &v)

	_, err = env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", IndustryID: uintPtr(404)})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", City: strings.Repeat("z", 101)})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "city", v.Field)
	assert.Zero(t, env.count(t, &models.Client{}))
}

func TestClientLookupsMustMatchTheirList(t *testing.T) {
	env := newTestEnv(t)
	dur := env.durations(t, "1 week")
	closure, err := env.svc.Lookups.FindItemByValue(env.ctx, models.ProjectStatusList, "Closure")
	require.NoError(t, err)

	var nf *errs.NotFoundError
	_, err = env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", CountryID: uintPtr(dur[0])})
	assert.ErrorAs(t, err, &nf)
	_, err = env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", IndustryID: uintPtr(closure.ID)})
	assert.ErrorAs(t, err, &nf)

	industries, err := env.svc.Lookups.CreateList(env.ctx, env.admin, models.IndustryList, "")
	require.NoError(t, err)
	items, err := env.svc.Lookups.SetItems(env.ctx, env.admin, industries.ID, []LookupItemInput{{Value: "Retail"}})
	require.NoError(t, err)
	c, err := env.svc.Clients.CreateClient(env.ctx, env.admin, ClientInput{Name: "ACME", IndustryID: uintPtr(items[0].ID)})
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, *c.IndustryID)
}

func TestDeleteClientWithProjectsIsRefused(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t, "ACME")
	_, err := env.svc.Projects.CreateProject(env.ctx, env.admin, ProjectInput{Name: "P", ClientID: c.ID, ManagerID: env.admin.ID})
	require.NoError(t, err)

	err = env.svc.Clients.DeleteClient(env.ctx, env.admin, c.ID)
	var dep *errs.HasDependentsError
	require.ErrorAs(t, err, &dep)
	assert.Equal(t, "client", dep.Entity)

	got, err := env.svc.Clients.GetClient(env.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Name)
	assert.True(t, got.Active)
}

func TestDeleteClient(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t, "ACME")
	tpl, err := env.svc.Templates.CreateTemplate(env.ctx, env.admin, TemplateInput{Name: "Std", ClientID: uintPtr(c.ID)})
	require.NoError(t, err)

	require.NoError(t, env.svc.Clients.DeleteClient(env.ctx, env.admin, c.ID))

	got, err := env.svc.Templates.GetTemplate(env.ctx, tpl.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClientID)

	err = env.svc.Clients.DeleteClient(env.ctx, env.admin, c.ID)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
