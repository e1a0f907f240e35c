package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"resplan/internal/errs"
	"resplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func assertConsultantInvariant(t *testing.T, env *testEnv) {
	t.Helper()
	users, err := env.svc.Identity.ListUsers(env.ctx)
	require.NoError(t, err)
	for _, u := range users {
		var rows int64
		require.NoError(t, env.db.Model(&models.Consultant{}).Where("user_id = ?", u.ID).Count(&rows).Error)
		assert.Equal(t, u.HasRoleNamed(models.RoleConsultant), rows > 0, "user %s", u.Username)
	}
}

func TestGrantAndRevokeKeepConsultantRows(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "alice")

	require.NoError(t, env.svc.Identity.GrantRole(env.ctx, env.admin, u.ID, models.RoleConsultant))
	var c models.Consultant
	require.NoError(t, env.db.Where("user_id = ?", u.ID).First(&c).Error)
	assert.Equal(t, models.ConsultantStatusActive, c.Status)
	assert.Zero(t, c.AvailabilityDays)
	assert.Equal(t, "alice", c.Name)
	assertConsultantInvariant(t, env)

	require.NoError(t, env.svc.Identity.RevokeRole(env.ctx, env.admin, u.ID, models.RoleConsultant))
	assert.Zero(t, env.count(t, &models.Consultant{}))
	assertConsultantInvariant(t, env)
}

func TestCreateConsultantGrantsRole(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "bob")

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := env.svc.Consultants.CreateConsultant(env.ctx, env.admin, ConsultantInput{
		UserID:           u.ID,
		AvailabilityDays: 12,
		StartDate:        &start,
		Attributes:       map[string]any{"seniority": "senior"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", c.Name)
	assert.Equal(t, models.ConsultantStatusActive, c.Status)

	got, err := env.svc.Identity.GetUser(env.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.HasRoleNamed(models.RoleConsultant))

	_, err = env.svc.Consultants.CreateConsultant(env.ctx, env.admin, ConsultantInput{UserID: u.ID})
	var v *errs.ValidationError
	assert.ErrorAs(t, err, &v)

	loaded, err := env.svc.Consultants.GetConsultant(env.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "senior", loaded.Attributes["seniority"])
}

func TestCreateConsultantValidation(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "carol")
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	cases := []struct {
		name  string
		in    ConsultantInput
		field string
	}{
		{"missing user", ConsultantInput{}, "user_id"},
		{"end before start", ConsultantInput{UserID: u.ID, StartDate: &start, EndDate: &end}, "end_date"},
		{"availability too high", ConsultantInput{UserID: u.ID, AvailabilityDays: 40}, "availability_days"},
		{"name too long", ConsultantInput{UserID: u.ID, Name: strings.Repeat("n", 51)}, "name"},
		{"phone too long", ConsultantInput{UserID: u.ID, PhoneNumber: strings.Repeat("1", 21)}, "phone_number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Consultants.CreateConsultant(env.ctx, env.admin, tc.in)
			var v *errs.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tc.field, v.Field)
		})
	}
	assert.Zero(t, env.count(t, &models.Consultant{}))

	_, err := env.svc.Consultants.CreateConsultant(env.ctx, env.admin, ConsultantInput{UserID: 999})
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDeleteConsultantRevokesRole(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "dave", models.RoleConsultant, models.RoleProjectManager)
	g := env.group(t, "ERP")

	var c models.Consultant
	require.NoError(t, env.db.Where("user_id = ?", u.ID).First(&c).Error)
	_, err := env.svc.Consultants.SetExpertise(env.ctx, env.admin, c.ID, models.GroupTarget(g.ID), 5, "")
	require.NoError(t, err)

	require.NoError(t, env.svc.Consultants.DeleteConsultant(env.ctx, env.admin, c.ID))

	got, err := env.svc.Identity.GetUser(env.ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.HasRoleNamed(models.RoleConsultant))
	assert.True(t, got.HasRoleNamed(models.RoleProjectManager))
	assert.Zero(t, env.count(t, &models.ConsultantExpertise{}))
	assertConsultantInvariant(t, env)
}

// failTableWrites makes every insert into or delete from table fail.
func failTableWrites(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("write to " + table + " refused"))
		}
	}
	name := "test:fail_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, fail))
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register(name, fail))
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove(name)
		_ = db.Callback().Delete().Remove(name)
	})
}

func TestCreateConsultantSyncFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "erin")
	audits := env.count(t, &models.AuditLog{})

	failTableWrites(t, env.db, "user_roles")
	_, err := env.svc.Consultants.CreateConsultant(env.ctx, env.admin, ConsultantInput{UserID: u.ID})

	var syncErr *errs.ConsultantSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Zero(t, env.count(t, &models.Consultant{}))
	assert.Equal(t, audits, env.count(t, &models.AuditLog{}))

	got, err := env.svc.Identity.GetUser(env.ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.HasRoleNamed(models.RoleConsultant))
}

func TestDeleteConsultantSyncFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "frank", models.RoleConsultant)
	var c models.Consultant
	require.NoError(t, env.db.Where("user_id = ?", u.ID).First(&c).Error)

	failTableWrites(t, env.db, "user_roles")
	err := env.svc.Consultants.DeleteConsultant(env.ctx, env.admin, c.ID)

	var syncErr *errs.ConsultantSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, int64(1), env.count(t, &models.Consultant{}))

	got, err := env.svc.Identity.GetUser(env.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.HasRoleNamed(models.RoleConsultant))
	assertConsultantInvariant(t, env)
}

func TestUpdateConsultantCannotChangeUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "erin", models.RoleConsultant)
	other := env.user(t, "frank")
	var c models.Consultant
	require.NoError(t, env.db.Where("user_id = ?", u.ID).First(&c).Error)

	_, err := env.svc.Consultants.UpdateConsultant(env.ctx, env.admin, c.ID, ConsultantInput{UserID: other.ID})
	var v *errs.ValidationError
	require.ErrorAs(t, err, &v)

	updated, err := env.svc.Consultants.UpdateConsultant(env.ctx, env.admin, c.ID, ConsultantInput{
		UserID: u.ID, Name: "Erin", Surname: "Smith", Status: "On leave", AvailabilityDays: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Erin Smith", updated.FullName)
	assert.Equal(t, "On leave", updated.Status)
}

// Rows and roles are tampered with directly, bypassing the services; the
// sweep must restore the invariant whatever the starting state.
func TestEnsureConsultantEntriesRestoresInvariant(t *testing.T) {
	env := newTestEnv(t)
	a := env.user(t, "a", models.RoleConsultant)
	b := env.user(t, "b")
	c := env.user(t, "c", models.RoleConsultant)
	env.user(t, "d", models.RoleManager)

	var consultantRole models.Role
	require.NoError(t, env.db.Where("name = ?", models.RoleConsultant).First(&consultantRole).Error)

	// a: role kept, row removed
	require.NoError(t, env.db.Where("user_id = ?", a.ID).Delete(&models.Consultant{}).Error)
	// b: row without role
	require.NoError(t, env.db.Create(&models.Consultant{UserID: b.ID, Name: "b", FullName: "b", Status: "Active"}).Error)
	// c: role dropped, row kept
	require.NoError(t, env.db.Exec("DELETE FROM user_roles WHERE user_id = ? AND role_id = ?", c.ID, consultantRole.ID).Error)

	report, err := env.svc.Consultants.EnsureConsultantEntries(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RowsCreated)
	assert.Equal(t, 2, report.RolesGranted)
	assertConsultantInvariant(t, env)

	again, err := env.svc.Consultants.EnsureConsultantEntries(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, again)
}

func TestSetUserRolesReconciles(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "gina", models.RoleManager)

	got, err := env.svc.Identity.SetUserRoles(env.ctx, env.admin, u.ID, []string{models.RoleConsultant})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.RoleConsultant}, got.RoleNames())
	assertConsultantInvariant(t, env)

	_, err = env.svc.Identity.SetUserRoles(env.ctx, env.admin, u.ID, []string{"Wizard"})
	var nf *errs.NotFoundError
	require.ErrorAs(t, err, &nf)

	// rolled back: still a consultant
	got, err = env.svc.Identity.GetUser(env.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.HasRoleNamed(models.RoleConsultant))
	assertConsultantInvariant(t, env)
}

func TestLastAdminIsProtected(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.Identity.RevokeRole(env.ctx, env.admin, env.admin.ID, models.RoleAdmin)
	var v *errs.ValidationError
	require.ErrorAs(t, err, &v)

	second := env.user(t, "root2", models.RoleAdmin)
	require.NoError(t, env.svc.Identity.RevokeRole(env.ctx, second, env.admin.ID, models.RoleAdmin))
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	pm := env.user(t, "pm", models.RoleProjectManager, models.RoleConsultant)
	c := env.client(t, "ACME")
	p, err := env.svc.Projects.CreateProject(env.ctx, env.admin, ProjectInput{Name: "P", ClientID: c.ID, ManagerID: pm.ID})
	require.NoError(t, err)

	err = env.svc.Identity.DeleteUser(env.ctx, env.admin, pm.ID)
	var dep *errs.HasDependentsError
	require.ErrorAs(t, err, &dep)

	require.NoError(t, env.svc.Projects.DeleteProject(env.ctx, env.admin, p.ID))
	require.NoError(t, env.svc.Identity.DeleteUser(env.ctx, env.admin, pm.ID))
	assert.Zero(t, env.count(t, &models.Consultant{}))

	_, err = env.svc.Identity.GetUser(env.ctx, pm.ID)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "henry")

	_, err := env.svc.Identity.CreateUser(env.ctx, env.admin, UserInput{Username: "henry", Email: "other@test.local", Password: "password123"})
	var dup *errs.DuplicateNameError
	assert.ErrorAs(t, err, &dup)

	_, err = env.svc.Identity.CreateUser(env.ctx, env.admin, UserInput{Username: "ivy", Email: "ivy@test.local", Password: "short"})
	var v *errs.ValidationError
	assert.ErrorAs(t, err, &v)

	manager := env.user(t, "mgr", models.RoleManager)
	_, err = env.svc.Identity.CreateUser(env.ctx, manager, UserInput{Username: "jack", Email: "jack@test.local", Password: "password123"})
	var perm *errs.PermissionError
	assert.ErrorAs(t, err, &perm)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "kate", models.RoleManager)

	u, err := env.svc.Identity.Authenticate(env.ctx, "kate", "password123")
	require.NoError(t, err)
	assert.True(t, u.HasRoleNamed(models.RoleManager))

	_, err = env.svc.Identity.Authenticate(env.ctx, "kate", "wrong-password")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)

	_, err = env.svc.Identity.Authenticate(env.ctx, "nobody", "password123")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)

	inactive := false
	_, err = env.svc.Identity.CreateUser(env.ctx, env.admin, UserInput{Username: "liam", Email: "liam@test.local", Password: "password123", IsActive: &inactive})
	require.NoError(t, err)
	_, err = env.svc.Identity.Authenticate(env.ctx, "liam", "password123")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
}
