package domain

import (
	"fmt"
	"time"
)

// DrugInfo is a medicine resolved against the terminology service.
// Immutable once resolved; the analyzer re-resolves on every call rather
// than caching, so there is no staleness to manage.
type DrugInfo struct {
	RxCUI             string   `json:"rxcui"`
	Name              string   `json:"name"`
	GenericName       string   `json:"generic_name"`
	BrandNames        []string `json:"brand_names"`
	ActiveIngredients []string `json:"active_ingredients"`
	TherapeuticClass  []string `json:"therapeutic_class"`
}

// Components returns the combined searchable component list for a drug:
// name, generic, brands, ingredients, and therapeutic classes, in their
// original casing. Empty entries are dropped. This is the candidate list
// the allergy checker lowercases and fuzzy-matches against.
func (d *DrugInfo) Components() []string {
	raw := make([]string, 0, 2+len(d.BrandNames)+len(d.ActiveIngredients)+len(d.TherapeuticClass))
	raw = append(raw, d.Name, d.GenericName)
	raw = append(raw, d.BrandNames...)
	raw = append(raw, d.ActiveIngredients...)
	raw = append(raw, d.TherapeuticClass...)

	components := make([]string, 0, len(raw))
	for _, item := range raw {
		if item != "" {
			components = append(components, item)
		}
	}
	return components
}

// IdentityComponents returns the component list without therapeutic
// classes, used by the drug-drug, condition, and dietary checkers where a
// class name would over-match.
func (d *DrugInfo) IdentityComponents() []string {
	raw := make([]string, 0, 2+len(d.BrandNames)+len(d.ActiveIngredients))
	raw = append(raw, d.Name, d.GenericName)
	raw = append(raw, d.BrandNames...)
	raw = append(raw, d.ActiveIngredients...)

	components := make([]string, 0, len(raw))
	for _, item := range raw {
		if item != "" {
			components = append(components, item)
		}
	}
	return components
}

// ExtractedMedicine is a medicine instance as it appears on a scanned
// prescription. Confidence reflects extraction certainty and is always
// within [0,1].
type ExtractedMedicine struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage,omitempty"`
	Frequency    string  `json:"frequency,omitempty"`
	Duration     string  `json:"duration,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// ClampConfidence bounds the confidence score to [0,1]. The additive
// boost heuristic in the scan parser can otherwise push it past 1.
func (m *ExtractedMedicine) ClampConfidence() {
	if m.Confidence > 1.0 {
		m.Confidence = 1.0
	}
	if m.Confidence < 0.0 {
		m.Confidence = 0.0
	}
}

// CurrentMedication is one entry of a user's active medication list.
type CurrentMedication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// HealthProfile is the user's safety-relevant health data. It is built
// incrementally across the onboarding flow and consumed read-only by the
// analyzer.
type HealthProfile struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	Allergies           []string            `json:"allergies"`
	MedicalConditions   []string            `json:"medical_conditions"`
	CurrentMedications  []CurrentMedication `json:"current_medications"`
	DietaryRestrictions []string            `json:"dietary_restrictions"`
	DateOfBirth         string              `json:"date_of_birth,omitempty"`
	Gender              string              `json:"gender,omitempty"`
	BloodGroup          string              `json:"blood_group,omitempty"`
	AdditionalNotes     string              `json:"additional_notes,omitempty"`
	OnboardingStep      int                 `json:"onboarding_step"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// IsEmpty reports whether the profile carries no safety-relevant data,
// in which case every rule checker trivially passes.
func (p *HealthProfile) IsEmpty() bool {
	return len(p.Allergies) == 0 &&
		len(p.MedicalConditions) == 0 &&
		len(p.CurrentMedications) == 0 &&
		len(p.DietaryRestrictions) == 0
}

// DrugInteraction is a single safety finding. Findings are value objects:
// created once by a checker, never mutated, collected into slices.
type DrugInteraction struct {
	Severity        Severity        `json:"severity"`
	Description     string          `json:"description"`
	Recommendation  string          `json:"recommendation"`
	InteractionType InteractionType `json:"interaction_type"`
	InteractingDrug string          `json:"interacting_drug,omitempty"`
}

// Validate ensures a finding is structurally sound before it enters an
// analysis result.
func (i *DrugInteraction) Validate() error {
	if !i.Severity.IsValid() {
		return fmt.Errorf("interaction validation: %w", ErrInvalidSeverity)
	}
	if !i.InteractionType.IsValid() {
		return fmt.Errorf("interaction validation: %w", ErrInvalidInteraction)
	}
	if i.Description == "" {
		return fmt.Errorf("interaction validation: description is required")
	}
	return nil
}

// MedicineSearchResult bundles a resolved drug with its findings and the
// deduplicated warning views the UI renders.
type MedicineSearchResult struct {
	Drug             *DrugInfo         `json:"drug"`
	Interactions     []DrugInteraction `json:"interactions"`
	Warnings         []string          `json:"warnings"`
	FoodInteractions []string          `json:"food_interactions"`
	AllergyWarnings  []string          `json:"allergy_warnings"`
}

// PrescriptionScanResult is the normalized output of both prescription
// parsing paths (structured extractor data and free-text OCR).
type PrescriptionScanResult struct {
	Medicines        []ExtractedMedicine `json:"medicines"`
	DoctorName       string              `json:"doctor_name,omitempty"`
	HospitalName     string              `json:"hospital_name,omitempty"`
	PrescriptionDate string              `json:"prescription_date,omitempty"`
	PatientName      string              `json:"patient_name,omitempty"`
	RawText          string              `json:"raw_text"`
}

// MedicineAnalysis pairs one prescription medicine with its analysis.
// Analysis is nil when the medicine could not be resolved; that is the
// not-found case, not a failure.
type MedicineAnalysis struct {
	Medicine     ExtractedMedicine     `json:"medicine"`
	Analysis     *MedicineSearchResult `json:"analysis"`
	HasWarnings  bool                  `json:"has_warnings"`
	WarningCount int                   `json:"warning_count"`
}

// PrescriptionAnalysis is the whole-prescription result returned to the
// caller. MedicineAnalysis preserves prescription order.
type PrescriptionAnalysis struct {
	Prescription     *PrescriptionScanResult `json:"prescription"`
	MedicineAnalysis []MedicineAnalysis      `json:"medicine_analysis"`
	OverallRisk      RiskLevel               `json:"overall_risk"`
	CriticalWarnings []string                `json:"critical_warnings"`
}

// ValidationResult partitions every finding of an analysis by interaction
// type. Dietary conflicts are advisory only and never flip IsValid.
type ValidationResult struct {
	AllergyConflicts  []string `json:"allergy_conflicts"`
	DrugInteractions  []string `json:"drug_interactions"`
	ConditionWarnings []string `json:"condition_warnings"`
	DietaryConflicts  []string `json:"dietary_conflicts"`
	IsValid           bool     `json:"is_valid"`
}

// ExtractedPrescription is the structured payload produced by the OCR
// extraction service. Optional fields stay empty when the extractor could
// not read them; RawResponse carries the unstructured fallback when
// structured parsing failed upstream.
type ExtractedPrescription struct {
	Doctor          *ExtractedDoctor      `json:"doctor,omitempty"`
	Patient         *ExtractedPatient     `json:"patient,omitempty"`
	Medications     []ExtractedMedication `json:"medications,omitempty"`
	AdditionalNotes *ExtractedNotes       `json:"additional_notes,omitempty"`
	ExtractionNotes string                `json:"extraction_notes,omitempty"`
	RawResponse     string                `json:"raw_response,omitempty"`
}

// ExtractedMedication is one medication entry from the extraction service.
type ExtractedMedication struct {
	Name         string `json:"name,omitempty"`
	Dosage       string `json:"dosage,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Uncertain    bool   `json:"uncertain,omitempty"`
}

// ExtractedDoctor carries prescriber details from the extraction service.
type ExtractedDoctor struct {
	Name               string `json:"name,omitempty"`
	Qualifications     string `json:"qualifications,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	ClinicName         string `json:"clinic_name,omitempty"`
	Address            string `json:"address,omitempty"`
	Phone              string `json:"phone,omitempty"`
}

// ExtractedPatient carries patient details from the extraction service.
type ExtractedPatient struct {
	Name             string `json:"name,omitempty"`
	Age              string `json:"age,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Address          string `json:"address,omitempty"`
	PrescriptionDate string `json:"prescription_date,omitempty"`
}

// ExtractedNotes carries freeform note sections from the extraction service.
type ExtractedNotes struct {
	SpecialInstructions string `json:"special_instructions,omitempty"`
	FollowUp            string `json:"follow_up,omitempty"`
	Warnings            string `json:"warnings,omitempty"`
}
