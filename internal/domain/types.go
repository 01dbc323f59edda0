// Package domain contains core business entities and types for medication
// safety checking: resolved drug records, health profiles, and the typed
// interaction findings produced by the rule engine.
package domain

import "errors"

// Severity represents how dangerous a single interaction finding is.
// The set is totally ordered: Contraindicated is the worst outcome and
// always sorts first in any finding list shown to a patient.
type Severity string

const (
	SeverityMinor           Severity = "minor"
	SeverityModerate        Severity = "moderate"
	SeverityMajor           Severity = "major"
	SeverityContraindicated Severity = "contraindicated"
)

// severityRanks defines the sort order used everywhere findings are
// presented: contraindicated first, minor last. Unknown severities sort
// after minor so malformed data never hides a real warning.
var severityRanks = map[Severity]int{
	SeverityContraindicated: 0,
	SeverityMajor:           1,
	SeverityModerate:        2,
	SeverityMinor:           3,
}

const unknownSeverityRank = 4

// Rank returns the numeric sort rank of the severity. Lower is worse.
func (s Severity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return unknownSeverityRank
}

// IsValid reports whether the severity is one of the four known levels.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// IsCritical reports whether the severity demands a critical warning
// (major or contraindicated).
func (s Severity) IsCritical() bool {
	return s == SeverityMajor || s == SeverityContraindicated
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// InteractionType identifies which rule checker produced a finding.
type InteractionType string

const (
	InteractionDrugAllergy   InteractionType = "drug-allergy"
	InteractionDrugDrug      InteractionType = "drug-drug"
	InteractionDrugCondition InteractionType = "drug-condition"
	InteractionDrugFood      InteractionType = "drug-food"
)

// IsValid reports whether the interaction type is known.
func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionDrugAllergy, InteractionDrugDrug, InteractionDrugCondition, InteractionDrugFood:
		return true
	default:
		return false
	}
}

// String returns the string representation of the interaction type.
func (t InteractionType) String() string {
	return string(t)
}

// RiskLevel is the whole-prescription risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid reports whether the risk level is known.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// Validation errors for medication safety data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidSeverity     = errors.New("invalid interaction severity")
	ErrInvalidInteraction  = errors.New("invalid interaction type")
	ErrInvalidRiskLevel    = errors.New("invalid risk level")
	ErrEmptyMedicineName   = errors.New("medicine name cannot be empty")
	ErrProfileNotFound     = errors.New("health profile not found")
	ErrEmptyPrescription   = errors.New("prescription contains no medicines")
)
