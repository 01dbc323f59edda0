package domain

import "context"

// DrugResolver resolves a free-text medicine name against a terminology
// service. A nil, nil return means the name matched nothing: callers must
// treat not-found as a distinct case, never as an error.
type DrugResolver interface {
	// SearchDrug returns candidate drug records, best match first.
	SearchDrug(ctx context.Context, name string) ([]*DrugInfo, error)
}

// CorroborationSource supplements local rule findings with real-world
// adverse-event report analysis for a pair of drug names. Best-effort:
// callers log and skip failures rather than aborting an analysis.
type CorroborationSource interface {
	// CheckPair returns zero or one finding for the drug pair.
	CheckPair(ctx context.Context, drug1, drug2 string) ([]DrugInteraction, error)
}

// PrescriptionExtractor converts a scanned prescription image into
// structured prescription data via the remote extraction service.
type PrescriptionExtractor interface {
	ExtractPrescription(ctx context.Context, image []byte, mimeType string) (*ExtractedPrescription, error)
}

// ProfileStore persists health profiles across onboarding steps. The
// analysis pipeline only ever reads; writes happen strictly between
// analysis runs.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*HealthProfile, error)
	Save(ctx context.Context, profile *HealthProfile) error
	Delete(ctx context.Context, userID string) error
	Close() error
}
