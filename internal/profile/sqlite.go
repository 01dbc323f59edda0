package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/medsafe-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite profile store. It creates the
// database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes. The list-valued
// profile sections are stored as JSON text columns.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS health_profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		allergies TEXT NOT NULL DEFAULT '[]',
		medical_conditions TEXT NOT NULL DEFAULT '[]',
		current_medications TEXT NOT NULL DEFAULT '[]',
		dietary_restrictions TEXT NOT NULL DEFAULT '[]',
		date_of_birth TEXT DEFAULT '',
		gender TEXT DEFAULT '',
		blood_group TEXT DEFAULT '',
		additional_notes TEXT DEFAULT '',
		onboarding_step INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_user_id ON health_profiles(user_id);
	CREATE INDEX IF NOT EXISTS idx_profiles_updated_at ON health_profiles(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(s scanner) (*domain.HealthProfile, error) {
	p := &domain.HealthProfile{}
	var allergies, conditions, medications, restrictions string

	err := s.Scan(
		&p.ID, &p.UserID, &allergies, &conditions, &medications, &restrictions,
		&p.DateOfBirth, &p.Gender, &p.BloodGroup, &p.AdditionalNotes,
		&p.OnboardingStep, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeProfileLists(p, allergies, conditions, medications, restrictions); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeProfileLists(p *domain.HealthProfile, allergies, conditions, medications, restrictions string) error {
	if err := json.Unmarshal([]byte(allergies), &p.Allergies); err != nil {
		return fmt.Errorf("failed to decode allergies: %w", err)
	}
	if err := json.Unmarshal([]byte(conditions), &p.MedicalConditions); err != nil {
		return fmt.Errorf("failed to decode medical conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(medications), &p.CurrentMedications); err != nil {
		return fmt.Errorf("failed to decode current medications: %w", err)
	}
	if err := json.Unmarshal([]byte(restrictions), &p.DietaryRestrictions); err != nil {
		return fmt.Errorf("failed to decode dietary restrictions: %w", err)
	}
	return nil
}

func encodeProfileLists(p *domain.HealthProfile) (allergies, conditions, medications, restrictions string, err error) {
	lists := []struct {
		value interface{}
		out   *string
	}{
		{emptyIfNilStrings(p.Allergies), &allergies},
		{emptyIfNilStrings(p.MedicalConditions), &conditions},
		{emptyIfNilMedications(p.CurrentMedications), &medications},
		{emptyIfNilStrings(p.DietaryRestrictions), &restrictions},
	}
	for _, list := range lists {
		data, marshalErr := json.Marshal(list.value)
		if marshalErr != nil {
			return "", "", "", "", fmt.Errorf("failed to encode profile list: %w", marshalErr)
		}
		*list.out = string(data)
	}
	return allergies, conditions, medications, restrictions, nil
}

func emptyIfNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyIfNilMedications(values []domain.CurrentMedication) []domain.CurrentMedication {
	if values == nil {
		return []domain.CurrentMedication{}
	}
	return values
}

const profileColumns = `id, user_id, allergies, medical_conditions, current_medications,
	dietary_restrictions, date_of_birth, gender, blood_group, additional_notes,
	onboarding_step, created_at, updated_at`

// Save stores or updates the profile for its user. A new profile gets a
// generated ID.
func (s *SQLiteStore) Save(ctx context.Context, profile *domain.HealthProfile) error {
	if profile.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}

	allergies, conditions, medications, restrictions, err := encodeProfileLists(profile)
	if err != nil {
		return err
	}

	now := time.Now()

	var existingID string
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM health_profiles WHERE user_id = ?",
		profile.UserID,
	).Scan(&existingID, &createdAt)

	if err == nil {
		profile.ID = existingID
		profile.CreatedAt = createdAt
		profile.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE health_profiles SET
				allergies = ?,
				medical_conditions = ?,
				current_medications = ?,
				dietary_restrictions = ?,
				date_of_birth = ?,
				gender = ?,
				blood_group = ?,
				additional_notes = ?,
				onboarding_step = ?,
				updated_at = ?
			WHERE id = ?
		`,
			allergies, conditions, medications, restrictions,
			profile.DateOfBirth, profile.Gender, profile.BloodGroup,
			profile.AdditionalNotes, profile.OnboardingStep, now, existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing profile: %w", err)
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO health_profiles (
			id, user_id, allergies, medical_conditions, current_medications,
			dietary_restrictions, date_of_birth, gender, blood_group,
			additional_notes, onboarding_step, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		profile.ID, profile.UserID, allergies, conditions, medications, restrictions,
		profile.DateOfBirth, profile.Gender, profile.BloodGroup,
		profile.AdditionalNotes, profile.OnboardingStep, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Get retrieves the profile for a user. A missing profile returns
// domain.ErrProfileNotFound.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*domain.HealthProfile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM health_profiles WHERE user_id = ? LIMIT 1",
		userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return p, nil
}

// List returns profiles ordered by most recently updated.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.HealthProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM health_profiles ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM health_profiles").Scan(&count)
	return count, err
}

// Delete removes the profile for a user.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM health_profiles WHERE user_id = ?", userID)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON writes all profiles to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
