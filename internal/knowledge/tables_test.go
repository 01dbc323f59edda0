package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medsafe-server/internal/domain"
)

func TestAllergyMappingsLowercase(t *testing.T) {
	for key, substances := range AllergyMappings {
		assert.Equal(t, key, strings.ToLower(key), "allergy key must be lowercase: %s", key)
		assert.NotEmpty(t, substances, "allergy group must not be empty: %s", key)
		for _, s := range substances {
			assert.Equal(t, s, strings.ToLower(s), "allergy substance must be lowercase: %s", s)
		}
	}
}

func TestAllergyMappingsKnownGroups(t *testing.T) {
	penicillin, ok := AllergyMappings["penicillin"]
	assert.True(t, ok)
	assert.Contains(t, penicillin, "amoxicillin")
	assert.Contains(t, penicillin, "ampicillin")

	opioids, ok := AllergyMappings["opioids"]
	assert.True(t, ok)
	assert.Contains(t, opioids, "fentanyl")
}

func TestDrugInteractionsValidSeverities(t *testing.T) {
	for trigger, rules := range DrugInteractions {
		assert.NotEmpty(t, rules, "trigger must have rules: %s", trigger)
		for _, rule := range rules {
			assert.True(t, rule.Severity.IsValid(), "invalid severity for %s + %s", trigger, rule.Drug)
			assert.NotEmpty(t, rule.Description)
		}
	}
}

func TestWarfarinAspirinRule(t *testing.T) {
	rules, ok := DrugInteractions["warfarin"]
	assert.True(t, ok)

	var found bool
	for _, rule := range rules {
		if rule.Drug == "aspirin" {
			found = true
			assert.Equal(t, domain.SeverityMajor, rule.Severity)
			assert.Equal(t, "Increased bleeding risk", rule.Description)
		}
	}
	assert.True(t, found, "warfarin table must cover aspirin")
}

func TestPregnancyContraindications(t *testing.T) {
	rules, ok := ConditionContraindications["pregnancy"]
	assert.True(t, ok)

	contraindicated := map[string]bool{}
	for _, rule := range rules {
		if rule.Severity == domain.SeverityContraindicated {
			contraindicated[rule.Drug] = true
		}
	}
	assert.True(t, contraindicated["warfarin"])
	assert.True(t, contraindicated["isotretinoin"])
	assert.True(t, contraindicated["lisinopril"])
	assert.True(t, contraindicated["methotrexate"])
}

func TestFoodInteractionsCarryRecommendations(t *testing.T) {
	for food, rules := range FoodInteractions {
		for _, rule := range rules {
			assert.True(t, rule.Severity.IsValid(), "invalid severity for %s + %s", food, rule.Drug)
			assert.NotEmpty(t, rule.Recommendation, "food rule must carry a recommendation: %s + %s", food, rule.Drug)
		}
	}
}

func TestKeySlicesCoverTables(t *testing.T) {
	assertKeysMatch := func(t *testing.T, keys []string, want map[string]bool) {
		t.Helper()
		assert.Len(t, keys, len(want))
		seen := map[string]bool{}
		for _, key := range keys {
			assert.False(t, seen[key], "duplicate key: %s", key)
			assert.True(t, want[key], "key slice entry missing from table: %s", key)
			seen[key] = true
		}
	}

	allergyKeys := map[string]bool{}
	for key := range AllergyMappings {
		allergyKeys[key] = true
	}
	assertKeysMatch(t, AllergyGroupKeys, allergyKeys)

	interactionKeys := map[string]bool{}
	for key := range DrugInteractions {
		interactionKeys[key] = true
	}
	assertKeysMatch(t, DrugInteractionKeys, interactionKeys)

	conditionKeys := map[string]bool{}
	for key := range ConditionContraindications {
		conditionKeys[key] = true
	}
	assertKeysMatch(t, ConditionKeys, conditionKeys)

	foodKeys := map[string]bool{}
	for key := range FoodInteractions {
		foodKeys[key] = true
	}
	assertKeysMatch(t, FoodKeys, foodKeys)
}

func TestCommonMedicineNamesNotEmpty(t *testing.T) {
	assert.NotEmpty(t, CommonMedicineNames)
	assert.Contains(t, CommonMedicineNames, "paracetamol")
	assert.Contains(t, CommonMedicineNames, "crocin")
}
