package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafe-server/internal/domain"
	"github.com/medsafe-server/internal/knowledge"
)

const (
	allergyRecommendation = "DO NOT TAKE this medication. Contact your healthcare provider immediately."

	majorPairRecommendation    = "Consult your healthcare provider before taking these medications together."
	moderatePairRecommendation = "Monitor for side effects and consult your healthcare provider if needed."

	contraindicatedConditionRecommendation = "This medication is contraindicated. DO NOT TAKE. Contact your healthcare provider immediately."
	majorConditionRecommendation           = "Consult your healthcare provider before taking this medication."
	moderateConditionRecommendation        = "Monitor closely and consult your healthcare provider if symptoms worsen."
)

// SafetyRuleEngine evaluates a resolved drug against a health profile
// using the static knowledge tables. All four checkers are pure functions
// over immutable inputs; each returns findings in its own evaluation
// order and the analyzer sorts the combined list by severity.
type SafetyRuleEngine struct {
	logger *logrus.Logger
}

// NewSafetyRuleEngine creates a new safety rule engine.
func NewSafetyRuleEngine(logger *logrus.Logger) *SafetyRuleEngine {
	return &SafetyRuleEngine{logger: logger}
}

// CheckAllergies returns one contraindicated finding per declared allergy
// that matches the drug, either directly against the drug's components or
// through the allergy substitution groups. Allergy matching includes the
// drug's therapeutic classes so a class-level allergy like "statins"
// catches every member drug.
func (e *SafetyRuleEngine) CheckAllergies(drug *domain.DrugInfo, allergies []string) []domain.DrugInteraction {
	interactions := []domain.DrugInteraction{}

	if len(drug.ActiveIngredients) == 0 || len(allergies) == 0 {
		return interactions
	}

	components := lowercaseAll(drug.Components())

	for _, allergy := range allergies {
		allergyLower := strings.ToLower(strings.TrimSpace(allergy))

		if directMatches := fuzzyMatch(allergyLower, components); len(directMatches) > 0 {
			interactions = append(interactions, domain.DrugInteraction{
				Severity: domain.SeverityContraindicated,
				Description: fmt.Sprintf("SEVERE ALLERGY ALERT: You are allergic to %s. This medication contains %s.",
					allergy, strings.Join(directMatches, ", ")),
				Recommendation:  allergyRecommendation,
				InteractionType: domain.InteractionDrugAllergy,
			})
			continue
		}

		groupKey := findAllergyGroup(allergyLower)
		if groupKey == "" {
			continue
		}

		related := knowledge.AllergyMappings[groupKey]
		found := make([]string, 0, len(related))
		for _, substance := range related {
			for _, component := range components {
				if looseContains(component, substance) {
					found = append(found, substance)
					break
				}
			}
		}

		if len(found) > 0 {
			interactions = append(interactions, domain.DrugInteraction{
				Severity: domain.SeverityContraindicated,
				Description: fmt.Sprintf("SEVERE ALLERGY ALERT: You are allergic to %s. This medication may contain related substances: %s.",
					allergy, strings.Join(found, ", ")),
				Recommendation:  allergyRecommendation,
				InteractionType: domain.InteractionDrugAllergy,
			})
		}
	}

	return interactions
}

// findAllergyGroup locates the first allergy substitution group whose key
// loosely matches the declared allergy, scanning groups in their declared
// order so the same allergy always resolves to the same group.
func findAllergyGroup(allergyLower string) string {
	for _, key := range knowledge.AllergyGroupKeys {
		if looseContains(key, allergyLower) {
			return key
		}
	}
	return ""
}

// CheckDrugPairs evaluates the new drug against every current medication
// using the pairwise interaction rules. Rules fire in both directions: the
// new drug can be the rule trigger with a current medication as the
// partner, and vice versa. Reverse-direction findings are suppressed when
// a forward finding for the same medication already carries the same rule
// description.
func (e *SafetyRuleEngine) CheckDrugPairs(drug *domain.DrugInfo, currentMedications []domain.CurrentMedication) []domain.DrugInteraction {
	interactions := []domain.DrugInteraction{}

	if len(currentMedications) == 0 {
		return interactions
	}

	newComponents := drug.IdentityComponents()

	for _, currentMed := range currentMedications {
		currentComponents := []string{currentMed.Name}

		for _, newComponent := range newComponents {
			newLower := strings.ToLower(newComponent)

			// Forward: new drug triggers a rule, current medication is the partner.
			for _, trigger := range knowledge.DrugInteractionKeys {
				if !looseContains(newLower, trigger) {
					continue
				}
				for _, rule := range knowledge.DrugInteractions[trigger] {
					for _, currentComponent := range currentComponents {
						currentLower := strings.ToLower(currentComponent)
						if looseContains(currentLower, rule.Drug) {
							interactions = append(interactions, pairFinding(newComponent, currentComponent, currentMed.Name, rule))
						}
					}
				}
			}

			// Reverse: current medication triggers a rule, new drug is the partner.
			for _, currentComponent := range currentComponents {
				currentLower := strings.ToLower(currentComponent)

				for _, trigger := range knowledge.DrugInteractionKeys {
					if !looseContains(currentLower, trigger) {
						continue
					}
					for _, rule := range knowledge.DrugInteractions[trigger] {
						if !looseContains(newLower, rule.Drug) {
							continue
						}
						if hasPairFinding(interactions, currentMed.Name, rule.Description) {
							continue
						}
						interactions = append(interactions, pairFinding(currentComponent, newComponent, currentMed.Name, rule))
					}
				}
			}
		}
	}

	return interactions
}

func pairFinding(first, second, interactingDrug string, rule knowledge.InteractionRule) domain.DrugInteraction {
	recommendation := moderatePairRecommendation
	if rule.Severity == domain.SeverityMajor {
		recommendation = majorPairRecommendation
	}
	return domain.DrugInteraction{
		Severity:        rule.Severity,
		Description:     fmt.Sprintf("%s + %s: %s", first, second, rule.Description),
		Recommendation:  recommendation,
		InteractionType: domain.InteractionDrugDrug,
		InteractingDrug: interactingDrug,
	}
}

func hasPairFinding(interactions []domain.DrugInteraction, interactingDrug, description string) bool {
	for _, existing := range interactions {
		if existing.InteractingDrug == interactingDrug && strings.Contains(existing.Description, description) {
			return true
		}
	}
	return false
}

// CheckConditions evaluates the drug against the condition
// contraindication rules for each declared medical condition.
func (e *SafetyRuleEngine) CheckConditions(drug *domain.DrugInfo, conditions []string) []domain.DrugInteraction {
	interactions := []domain.DrugInteraction{}

	if len(conditions) == 0 {
		return interactions
	}

	components := drug.IdentityComponents()

	for _, condition := range conditions {
		conditionLower := strings.ToLower(strings.TrimSpace(condition))

		for _, conditionKey := range knowledge.ConditionKeys {
			if !looseContains(conditionLower, conditionKey) {
				continue
			}
			for _, rule := range knowledge.ConditionContraindications[conditionKey] {
				for _, component := range components {
					componentLower := strings.ToLower(component)
					if !looseContains(componentLower, rule.Drug) {
						continue
					}
					interactions = append(interactions, domain.DrugInteraction{
						Severity:        rule.Severity,
						Description:     fmt.Sprintf("%s may be problematic with %s: %s", component, condition, rule.Description),
						Recommendation:  conditionRecommendation(rule.Severity),
						InteractionType: domain.InteractionDrugCondition,
					})
				}
			}
		}
	}

	return interactions
}

func conditionRecommendation(severity domain.Severity) string {
	switch severity {
	case domain.SeverityContraindicated:
		return contraindicatedConditionRecommendation
	case domain.SeverityMajor:
		return majorConditionRecommendation
	default:
		return moderateConditionRecommendation
	}
}

// CheckDietary evaluates the drug against the food interaction rules for
// each declared dietary restriction. Findings carry the rule's own
// recommendation text unchanged.
func (e *SafetyRuleEngine) CheckDietary(drug *domain.DrugInfo, restrictions []string) []domain.DrugInteraction {
	interactions := []domain.DrugInteraction{}

	if len(restrictions) == 0 {
		return interactions
	}

	components := drug.IdentityComponents()

	for _, restriction := range restrictions {
		restrictionLower := strings.ToLower(strings.TrimSpace(restriction))

		for _, foodKey := range knowledge.FoodKeys {
			if !looseContains(restrictionLower, foodKey) {
				continue
			}
			for _, rule := range knowledge.FoodInteractions[foodKey] {
				for _, component := range components {
					componentLower := strings.ToLower(component)
					if !looseContains(componentLower, rule.Drug) {
						continue
					}
					interactions = append(interactions, domain.DrugInteraction{
						Severity:        rule.Severity,
						Description:     rule.Description,
						Recommendation:  rule.Recommendation,
						InteractionType: domain.InteractionDrugFood,
					})
				}
			}
		}
	}

	return interactions
}

func lowercaseAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(item)
	}
	return out
}
