package services

import (
	"testing"

	"resplan/internal/errs"
	"resplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, "ERP")
	lic, err := env.svc.Catalog.CreateService(env.ctx, env.admin, ServiceInput{GroupID: g.ID, Name: "Licence", Type: models.ServiceTypeProduct})
	require.NoError(t, err)
	training, err := env.svc.Catalog.CreateService(env.ctx, env.admin, ServiceInput{GroupID: g.ID, Name: "Training", Type: models.ServiceTypeService})
	require.NoError(t, err)

	days := 10
	tpl, err := env.svc.Templates.CreateTemplate(env.ctx, env.admin, TemplateInput{
		Name:       "Standard rollout",
		Phases:     []PhaseTemplateInput{{Name: "Plan", DurationDays: &days}, {Name: "Deliver"}},
		ProductIDs: []uint{lic.ID, training.ID},
	})
	require.NoError(t, err)
	require.Len(t, tpl.Phases, 2)
	assert.Equal(t, "Plan", tpl.Phases[0].Name)
	assert.Equal(t, 1, tpl.Phases[1].Order)
	assert.Len(t, tpl.Products, 2)

	tpl, err = env.svc.Templates.UpdateTemplate(env.ctx, env.admin, tpl.ID, TemplateInput{
		Name:       "Standard rollout",
		Phases:     []PhaseTemplateInput{{Name: "Deliver"}},
		ProductIDs: []uint{lic.ID},
	})
	require.NoError(t, err)
	require.Len(t, tpl.Phases, 1)
	require.Len(t, tpl.Products, 1)
	assert.Equal(t, lic.ID, tpl.Products[0].ID)

	c := env.client(t, "ACME")
	p, err := env.svc.Projects.CreateProject(env.ctx, env.admin, ProjectInput{
		Name: "From template", ClientID: c.ID, ManagerID: env.admin.ID, TemplateID: &tpl.ID,
		ProductIDs: []uint{lic.ID, training.ID},
	})
	require.NoError(t, err)
	assert.Len(t, p.Products, 2)
	require.NotNil(t, p.TemplateID)

	require.NoError(t, env.svc.Templates.DeleteTemplate(env.ctx, env.admin, tpl.ID))
	got, err := env.svc.Projects.GetProject(env.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TemplateID)
	assert.Len(t, got.Products, 2)
	assert.Zero(t, env.count(t, &models.PhaseTemplate{}))
}

func TestTemplateValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Templates.CreateTemplate(env.ctx, env.admin, TemplateInput{Name: "T", Phases: []PhaseTemplateInput{{Name: ""}}})
	var v *errs.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "phases[0].name", v.Field)

	_, err = env.svc.Templates.CreateTemplate(env.ctx, env.admin, TemplateInput{Name: "T", ProductIDs: []uint{404}})
	var nf *errs.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, env.count(t, &models.ProjectTemplate{}))

	_, err = env.svc.Projects.CreateProject(env.ctx, env.admin, ProjectInput{Name: "P", ClientID: env.client(t, "ACME").ID, ManagerID: env.admin.ID, TemplateID: uintPtr(404)})
	require.ErrorAs(t, err, &nf)
}
