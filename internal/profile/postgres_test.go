package profile

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mock
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "allergies", "medical_conditions", "current_medications",
		"dietary_restrictions", "date_of_birth", "gender", "blood_group",
		"additional_notes", "onboarding_step", "created_at", "updated_at",
	})
}

func TestPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO health_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("profile-1", now))

	profile := sampleProfile("user-1")
	err := store.Save(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "profile-1", profile.ID)
	assert.Equal(t, now, profile.CreatedAt)
	assert.False(t, profile.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_RequiresUserID(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.Save(context.Background(), &domain.HealthProfile{})
	assert.Error(t, err)
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM health_profiles").
		WithArgs("user-1").
		WillReturnRows(profileRows().AddRow(
			"profile-1", "user-1",
			`["penicillin"]`, `["diabetes"]`,
			`[{"name":"Metformin","dosage":"500mg","frequency":"twice daily"}]`,
			`["alcohol"]`, "", "female", "O+", "", StepComplete, now, now,
		))

	p, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "profile-1", p.ID)
	assert.Equal(t, []string{"penicillin"}, p.Allergies)
	require.Len(t, p.CurrentMedications, 1)
	assert.Equal(t, "Metformin", p.CurrentMedications[0].Name)
	assert.Equal(t, StepComplete, p.OnboardingStep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM health_profiles").
		WithArgs("nobody").
		WillReturnRows(profileRows())

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM health_profiles").
		WithArgs(10, 0).
		WillReturnRows(profileRows().
			AddRow("p1", "user-1", `[]`, `[]`, `[]`, `[]`, "", "", "", "", 0, now, now).
			AddRow("p2", "user-2", `[]`, `[]`, `[]`, `[]`, "", "", "", "", 0, now, now))

	profiles, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM health_profiles").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
