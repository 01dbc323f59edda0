package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafe-server/internal/domain"
)

const (
	degradedCheckDescription    = "Unable to fully check drug interactions. Please consult your healthcare provider."
	degradedCheckRecommendation = "Verify safety with your healthcare provider before taking this medication."

	notFoundWarningSuffix  = ": Medicine not found in database. Please verify with pharmacist."
	uncertainWarningSuffix = ": Information is uncertain. Please verify with doctor or pharmacist."
)

// MedicineAnalyzer runs the full safety pipeline for single medicines and
// whole prescriptions: terminology resolution, local rule evaluation,
// adverse-event corroboration, and risk classification.
//
// Drug records are resolved fresh on every analysis so a profile change
// between calls is always reflected; nothing from the resolver is cached
// here.
type MedicineAnalyzer struct {
	logger        *logrus.Logger
	resolver      domain.DrugResolver
	corroboration domain.CorroborationSource
	ruleEngine    *SafetyRuleEngine
	parser        *ScanParser
}

// NewMedicineAnalyzer creates a new medicine analyzer. The corroboration
// source may be nil, in which case the adverse-event pass is skipped.
func NewMedicineAnalyzer(
	logger *logrus.Logger,
	resolver domain.DrugResolver,
	corroboration domain.CorroborationSource,
) *MedicineAnalyzer {
	return &MedicineAnalyzer{
		logger:        logger,
		resolver:      resolver,
		corroboration: corroboration,
		ruleEngine:    NewSafetyRuleEngine(logger),
		parser:        NewScanParser(logger),
	}
}

// Parser exposes the analyzer's scan parser for callers that only need
// parsing without analysis.
func (a *MedicineAnalyzer) Parser() *ScanParser {
	return a.parser
}

// AnalyzeMedicine resolves a medicine name and evaluates it against the
// profile. A nil, nil return means the name resolved to nothing; callers
// surface that as a not-found warning, not an error. Only resolver
// failures return an error.
func (a *MedicineAnalyzer) AnalyzeMedicine(ctx context.Context, medicineName string, profile *domain.HealthProfile) (*domain.MedicineSearchResult, error) {
	if medicineName == "" {
		return nil, domain.ErrEmptyMedicineName
	}

	a.logger.WithField("medicine", medicineName).Debug("Analyzing medicine")

	drugs, err := a.resolver.SearchDrug(ctx, medicineName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve medicine %q: %w", medicineName, err)
	}
	if len(drugs) == 0 {
		a.logger.WithField("medicine", medicineName).Info("Medicine not found in terminology service")
		return nil, nil
	}

	drug := drugs[0]

	interactions := a.CheckInteractions(ctx, drug, profile)

	result := &domain.MedicineSearchResult{
		Drug:         drug,
		Interactions: interactions,
	}
	categorizeWarnings(result)

	a.logger.WithFields(logrus.Fields{
		"medicine":     medicineName,
		"rxcui":        drug.RxCUI,
		"interactions": len(interactions),
		"warnings":     len(result.Warnings),
	}).Info("Completed medicine analysis")

	return result, nil
}

// CheckInteractions runs all four rule checkers against the profile,
// optionally corroborates drug pairs against adverse-event reports, and
// returns the combined findings sorted worst first. A nil or empty
// profile yields no findings. If rule evaluation panics the partial
// result is kept and a synthetic moderate finding flags the degraded
// check.
func (a *MedicineAnalyzer) CheckInteractions(ctx context.Context, drug *domain.DrugInfo, profile *domain.HealthProfile) []domain.DrugInteraction {
	interactions := []domain.DrugInteraction{}

	if profile == nil {
		return interactions
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.WithField("panic", r).Error("Interaction check failed, returning degraded result")
				interactions = append(interactions, domain.DrugInteraction{
					Severity:        domain.SeverityModerate,
					Description:     degradedCheckDescription,
					Recommendation:  degradedCheckRecommendation,
					InteractionType: domain.InteractionDrugDrug,
				})
			}
		}()

		interactions = append(interactions, a.ruleEngine.CheckAllergies(drug, profile.Allergies)...)
		interactions = append(interactions, a.ruleEngine.CheckDrugPairs(drug, profile.CurrentMedications)...)
		interactions = append(interactions, a.ruleEngine.CheckConditions(drug, profile.MedicalConditions)...)
		interactions = append(interactions, a.ruleEngine.CheckDietary(drug, profile.DietaryRestrictions)...)

		interactions = append(interactions, a.corroboratePairs(ctx, drug, profile, interactions)...)
	}()

	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].Severity.Rank() < interactions[j].Severity.Rank()
	})

	return interactions
}

// corroboratePairs queries the adverse-event source for each current
// medication pair. The pass is skipped entirely when any contraindicated
// finding already exists, and per-pair results are dropped when a local
// drug-drug finding already names the same medication. Source failures
// are logged and skipped.
func (a *MedicineAnalyzer) corroboratePairs(ctx context.Context, drug *domain.DrugInfo, profile *domain.HealthProfile, existing []domain.DrugInteraction) []domain.DrugInteraction {
	if a.corroboration == nil || len(profile.CurrentMedications) == 0 {
		return nil
	}
	for _, finding := range existing {
		if finding.Severity == domain.SeverityContraindicated {
			return nil
		}
	}

	added := []domain.DrugInteraction{}
	for _, currentMed := range profile.CurrentMedications {
		findings, err := a.corroboration.CheckPair(ctx, drug.Name, currentMed.Name)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"drug":               drug.Name,
				"current_medication": currentMed.Name,
			}).Warn("Adverse-event corroboration failed, skipping pair")
			continue
		}

		for _, finding := range findings {
			if hasDrugPairFor(existing, finding.InteractingDrug) || hasDrugPairFor(added, finding.InteractingDrug) {
				continue
			}
			added = append(added, finding)
		}
	}
	return added
}

func hasDrugPairFor(interactions []domain.DrugInteraction, interactingDrug string) bool {
	for _, existing := range interactions {
		if existing.InteractionType == domain.InteractionDrugDrug && existing.InteractingDrug == interactingDrug {
			return true
		}
	}
	return false
}

// categorizeWarnings fills the deduplicated warning views on the result
// from its interaction list. Food findings only reach the general warning
// list when critical; allergy findings always appear in both views.
func categorizeWarnings(result *domain.MedicineSearchResult) {
	warnings := []string{}
	foodInteractions := []string{}
	allergyWarnings := []string{}

	for _, interaction := range result.Interactions {
		switch interaction.InteractionType {
		case domain.InteractionDrugFood:
			foodInteractions = append(foodInteractions, interaction.Description)
			if interaction.Severity.IsCritical() {
				warnings = append(warnings, interaction.Description)
			}
		case domain.InteractionDrugAllergy:
			allergyWarnings = append(allergyWarnings, interaction.Description)
			warnings = append(warnings, interaction.Description)
		default:
			warnings = append(warnings, interaction.Description)
		}
	}

	result.Warnings = dedupeStrings(warnings)
	result.FoodInteractions = dedupeStrings(foodInteractions)
	result.AllergyWarnings = dedupeStrings(allergyWarnings)
}

// dedupeStrings removes duplicates preserving first-occurrence order.
func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; !ok {
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// AnalyzePrescription analyzes every medicine of a parsed prescription
// against the profile and classifies overall risk. Unresolvable medicines
// produce a nil per-medicine analysis plus a critical warning rather than
// failing the whole prescription.
func (a *MedicineAnalyzer) AnalyzePrescription(ctx context.Context, prescription *domain.PrescriptionScanResult, profile *domain.HealthProfile) (*domain.PrescriptionAnalysis, error) {
	return a.analyzeParsed(ctx, prescription, profile, nil)
}

// AnalyzeText parses raw OCR text and analyzes the result.
func (a *MedicineAnalyzer) AnalyzeText(ctx context.Context, ocrText string, profile *domain.HealthProfile) (*domain.PrescriptionAnalysis, error) {
	return a.analyzeParsed(ctx, a.parser.ParseText(ocrText), profile, nil)
}

// AnalyzeExtracted analyzes a structured extraction payload. On top of
// the normal pipeline, extraction notes become a leading critical warning
// and each uncertain medication gets a verification warning unless one of
// the existing warnings already names it.
func (a *MedicineAnalyzer) AnalyzeExtracted(ctx context.Context, extracted *domain.ExtractedPrescription, profile *domain.HealthProfile) (*domain.PrescriptionAnalysis, error) {
	prescription := a.parser.FromExtracted(extracted)
	return a.analyzeParsed(ctx, prescription, profile, extracted)
}

func (a *MedicineAnalyzer) analyzeParsed(ctx context.Context, prescription *domain.PrescriptionScanResult, profile *domain.HealthProfile, extracted *domain.ExtractedPrescription) (*domain.PrescriptionAnalysis, error) {
	if prescription == nil || len(prescription.Medicines) == 0 {
		return nil, domain.ErrEmptyPrescription
	}

	medicineAnalysis := make([]domain.MedicineAnalysis, 0, len(prescription.Medicines))
	criticalWarnings := []string{}
	highRiskCount := 0
	mediumRiskCount := 0

	if extracted != nil && extracted.ExtractionNotes != "" {
		criticalWarnings = append(criticalWarnings, "Extraction Notes: "+extracted.ExtractionNotes)
	}

	for _, medicine := range prescription.Medicines {
		analysis, err := a.AnalyzeMedicine(ctx, medicine.Name, profile)
		if err != nil {
			a.logger.WithError(err).WithField("medicine", medicine.Name).Warn("Medicine analysis failed, treating as unresolved")
			analysis = nil
		}

		if analysis == nil {
			medicineAnalysis = append(medicineAnalysis, domain.MedicineAnalysis{
				Medicine:     medicine,
				Analysis:     nil,
				HasWarnings:  true,
				WarningCount: 1,
			})
			criticalWarnings = append(criticalWarnings, medicine.Name+notFoundWarningSuffix)
			continue
		}

		critical := criticalInteractions(analysis.Interactions)
		if len(critical) > 0 {
			highRiskCount++
			for _, interaction := range critical {
				criticalWarnings = append(criticalWarnings, fmt.Sprintf("%s: %s", medicine.Name, interaction.Description))
			}
		} else if hasModerate(analysis.Interactions) {
			mediumRiskCount++
		}

		medicineAnalysis = append(medicineAnalysis, domain.MedicineAnalysis{
			Medicine:     medicine,
			Analysis:     analysis,
			HasWarnings:  len(analysis.Warnings) > 0 || len(analysis.AllergyWarnings) > 0,
			WarningCount: len(analysis.Warnings) + len(analysis.AllergyWarnings),
		})
	}

	if extracted != nil {
		for _, med := range extracted.Medications {
			if !med.Uncertain || med.Name == "" {
				continue
			}
			if warningsMention(criticalWarnings, med.Name) {
				continue
			}
			criticalWarnings = append(criticalWarnings, med.Name+uncertainWarningSuffix)
		}
	}

	overallRisk := domain.RiskLow
	if highRiskCount > 0 {
		overallRisk = domain.RiskHigh
	} else if mediumRiskCount > 0 || len(criticalWarnings) > 0 {
		overallRisk = domain.RiskMedium
	}

	a.logger.WithFields(logrus.Fields{
		"medicines":         len(prescription.Medicines),
		"overall_risk":      overallRisk,
		"critical_warnings": len(criticalWarnings),
	}).Info("Completed prescription analysis")

	return &domain.PrescriptionAnalysis{
		Prescription:     prescription,
		MedicineAnalysis: medicineAnalysis,
		OverallRisk:      overallRisk,
		CriticalWarnings: criticalWarnings,
	}, nil
}

func criticalInteractions(interactions []domain.DrugInteraction) []domain.DrugInteraction {
	critical := []domain.DrugInteraction{}
	for _, interaction := range interactions {
		if interaction.Severity.IsCritical() {
			critical = append(critical, interaction)
		}
	}
	return critical
}

func hasModerate(interactions []domain.DrugInteraction) bool {
	for _, interaction := range interactions {
		if interaction.Severity == domain.SeverityModerate {
			return true
		}
	}
	return false
}

func warningsMention(warnings []string, name string) bool {
	for _, warning := range warnings {
		if strings.Contains(warning, name) {
			return true
		}
	}
	return false
}

// ValidatePrescription partitions every finding of a completed analysis
// by interaction type and derives overall validity. Any allergy conflict
// invalidates; drug and condition findings invalidate only when critical;
// dietary conflicts never do.
func (a *MedicineAnalyzer) ValidatePrescription(analysis *domain.PrescriptionAnalysis) *domain.ValidationResult {
	result := &domain.ValidationResult{
		AllergyConflicts:  []string{},
		DrugInteractions:  []string{},
		ConditionWarnings: []string{},
		DietaryConflicts:  []string{},
		IsValid:           true,
	}

	for _, entry := range analysis.MedicineAnalysis {
		if entry.Analysis == nil {
			continue
		}
		for _, interaction := range entry.Analysis.Interactions {
			labeled := fmt.Sprintf("%s: %s", entry.Medicine.Name, interaction.Description)
			switch interaction.InteractionType {
			case domain.InteractionDrugAllergy:
				result.AllergyConflicts = append(result.AllergyConflicts, labeled)
				result.IsValid = false
			case domain.InteractionDrugDrug:
				result.DrugInteractions = append(result.DrugInteractions, labeled)
				if interaction.Severity.IsCritical() {
					result.IsValid = false
				}
			case domain.InteractionDrugCondition:
				result.ConditionWarnings = append(result.ConditionWarnings, labeled)
				if interaction.Severity.IsCritical() {
					result.IsValid = false
				}
			case domain.InteractionDrugFood:
				result.DietaryConflicts = append(result.DietaryConflicts, labeled)
			}
		}
	}

	return result
}
