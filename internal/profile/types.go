// Package profile provides health profile storage for the analysis
// pipeline. Profiles are filled in over a staged onboarding flow, so a
// stored profile may be partial; the analysis pipeline treats missing
// sections as empty rather than invalid.
package profile

import (
	"context"
	"io"
	"time"

	"github.com/medsafe-server/internal/domain"
)

// Onboarding steps. A profile saved mid-flow records the last completed
// step so the client can resume where the user left off.
const (
	StepAllergies = iota + 1
	StepConditions
	StepMedications
	StepDietary
	StepComplete = StepDietary
)

// Store defines the interface for profile storage operations. It extends
// the read path the analyzer depends on with the management operations
// the API exposes.
type Store interface {
	domain.ProfileStore

	// List returns profiles ordered by most recently updated.
	List(ctx context.Context, limit, offset int) ([]*domain.HealthProfile, error)

	// Count returns the total number of stored profiles.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes all profiles to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads profiles from a JSON reader. Existing user IDs are
	// skipped, not overwritten.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)
}

// ProfileExport is the JSON export format.
type ProfileExport struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Profiles   []*domain.HealthProfile `json:"profiles"`
}
