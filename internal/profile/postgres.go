package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/medsafe-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL profile store. It expects the
// schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL profile store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save upserts the profile for its user. A new profile gets a generated ID.
func (s *PostgresStore) Save(ctx context.Context, profile *domain.HealthProfile) error {
	if profile.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}

	allergies, conditions, medications, restrictions, err := encodeProfileLists(profile)
	if err != nil {
		return err
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now()

	query := `
		INSERT INTO health_profiles (
			id, user_id, allergies, medical_conditions, current_medications,
			dietary_restrictions, date_of_birth, gender, blood_group,
			additional_notes, onboarding_step, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			allergies = EXCLUDED.allergies,
			medical_conditions = EXCLUDED.medical_conditions,
			current_medications = EXCLUDED.current_medications,
			dietary_restrictions = EXCLUDED.dietary_restrictions,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			blood_group = EXCLUDED.blood_group,
			additional_notes = EXCLUDED.additional_notes,
			onboarding_step = EXCLUDED.onboarding_step,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		profile.ID, profile.UserID, allergies, conditions, medications, restrictions,
		profile.DateOfBirth, profile.Gender, profile.BloodGroup,
		profile.AdditionalNotes, profile.OnboardingStep, now, now,
	).Scan(&profile.ID, &profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	profile.UpdatedAt = now
	return nil
}

// Get retrieves the profile for a user. A missing profile returns
// domain.ErrProfileNotFound.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*domain.HealthProfile, error) {
	query := `
		SELECT id, user_id, allergies, medical_conditions, current_medications,
			dietary_restrictions, date_of_birth, gender, blood_group,
			additional_notes, onboarding_step, created_at, updated_at
		FROM health_profiles
		WHERE user_id = $1
		LIMIT 1
	`

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// List returns profiles ordered by most recently updated.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.HealthProfile, error) {
	query := `
		SELECT id, user_id, allergies, medical_conditions, current_medications,
			dietary_restrictions, date_of_birth, gender, blood_group,
			additional_notes, onboarding_step, created_at, updated_at
		FROM health_profiles
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var result []*domain.HealthProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Count returns the total number of stored profiles.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM health_profiles").Scan(&count)
	return count, err
}

// Delete removes the profile for a user.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM health_profiles WHERE user_id = $1", userID)
	return err
}

// ExportJSON writes all profiles to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	export := &ProfileExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Profiles:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON reads profiles from a JSON reader. Existing user IDs are
// skipped, not overwritten.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ProfileExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, p := range export.Profiles {
		existing, err := s.Get(ctx, p.UserID)
		if err != nil && err != domain.ErrProfileNotFound {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, p); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
