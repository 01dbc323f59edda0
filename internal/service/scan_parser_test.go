package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-server/internal/domain"
)

func newTestParser() *ScanParser {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewScanParser(logger)
}

func TestParseTextDosageAndFrequency(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("Amoxicillin 500mg 3 times daily")

	require.Len(t, result.Medicines, 1)
	med := result.Medicines[0]
	assert.Equal(t, "Amoxicillin", med.Name)
	assert.Equal(t, "500mg", med.Dosage)
	assert.NotEmpty(t, med.Frequency)
	// 0.8 base plus boosts for dosage and frequency, clamped at 1.
	assert.InDelta(t, 1.0, med.Confidence, 0.0001)
}

func TestParseTextDosageOnly(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("Metformin 850mg")

	require.Len(t, result.Medicines, 1)
	assert.Equal(t, "Metformin", result.Medicines[0].Name)
	assert.Equal(t, "850mg", result.Medicines[0].Dosage)
	assert.Empty(t, result.Medicines[0].Frequency)
	assert.InDelta(t, 0.9, result.Medicines[0].Confidence, 0.0001)
}

func TestParseTextDictionaryFallback(t *testing.T) {
	parser := newTestParser()

	// No dosage or frequency pattern, but the line mentions a known
	// medicine name.
	result := parser.ParseText("take crocin after meals")

	require.Len(t, result.Medicines, 1)
	assert.Equal(t, "crocin", result.Medicines[0].Name)
	assert.InDelta(t, 0.6, result.Medicines[0].Confidence, 0.0001)
}

func TestParseTextConfidenceClamped(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("Paracetamol 650mg 2 times daily")

	require.Len(t, result.Medicines, 1)
	assert.LessOrEqual(t, result.Medicines[0].Confidence, 1.0)
	assert.GreaterOrEqual(t, result.Medicines[0].Confidence, 0.0)
}

func TestParseTextDuplicateKeepsHigherConfidence(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("ibuprofen\nIbuprofen 400mg")

	require.Len(t, result.Medicines, 1)
	assert.Equal(t, "400mg", result.Medicines[0].Dosage)
}

func TestParseTextSortsByConfidence(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("take digene as needed\nAmoxicillin 500mg 3 times daily")

	require.Len(t, result.Medicines, 2)
	assert.Equal(t, "Amoxicillin", result.Medicines[0].Name)
	assert.Equal(t, "digene", result.Medicines[1].Name)
	assert.Greater(t, result.Medicines[0].Confidence, result.Medicines[1].Confidence)
}

func TestParseTextMetadata(t *testing.T) {
	parser := newTestParser()

	text := "City Care Hospital\nDr. Asha Rao\nPatient: Ravi Kumar\n12/03/2025\nAmoxicillin 500mg"
	result := parser.ParseText(text)

	assert.Equal(t, "Asha Rao", result.DoctorName)
	assert.Equal(t, "City Care Hospital", result.HospitalName)
	assert.Equal(t, "Ravi Kumar", result.PatientName)
	assert.Equal(t, "12/03/2025", result.PrescriptionDate)
	assert.Equal(t, text, result.RawText)
}

func TestParseTextMetadataFirstMatchWins(t *testing.T) {
	parser := newTestParser()

	result := parser.ParseText("Dr. First Doctor\nDr. Second Doctor")

	assert.Equal(t, "First Doctor", result.DoctorName)
}

func TestFromExtractedConfidenceTiers(t *testing.T) {
	parser := newTestParser()

	extracted := &domain.ExtractedPrescription{
		Medications: []domain.ExtractedMedication{
			{Name: "Amoxicillin", Dosage: "500mg", Frequency: "TID"},
			{Name: "Metformin", Dosage: "850mg"},
			{Name: "Crocin"},
			{Name: "Unclear Med", Dosage: "10mg", Frequency: "OD", Uncertain: true},
		},
	}

	result := parser.FromExtracted(extracted)

	require.Len(t, result.Medicines, 4)
	assert.InDelta(t, 0.95, result.Medicines[0].Confidence, 0.0001)
	assert.InDelta(t, 0.8, result.Medicines[1].Confidence, 0.0001)
	assert.InDelta(t, 0.7, result.Medicines[2].Confidence, 0.0001)
	// uncertain overrides completeness
	assert.InDelta(t, 0.5, result.Medicines[3].Confidence, 0.0001)
}

func TestFromExtractedMissingNameFallback(t *testing.T) {
	parser := newTestParser()

	extracted := &domain.ExtractedPrescription{
		Medications: []domain.ExtractedMedication{{Dosage: "5mg"}},
	}

	result := parser.FromExtracted(extracted)

	require.Len(t, result.Medicines, 1)
	assert.Equal(t, "Unknown Medicine", result.Medicines[0].Name)
}

func TestFromExtractedMetadataAndRawText(t *testing.T) {
	parser := newTestParser()

	extracted := &domain.ExtractedPrescription{
		Doctor: &domain.ExtractedDoctor{
			Name:       "Asha Rao",
			ClinicName: "City Care Clinic",
		},
		Patient: &domain.ExtractedPatient{
			Name:             "Ravi Kumar",
			Age:              "42",
			PrescriptionDate: "2025-03-12",
		},
		Medications: []domain.ExtractedMedication{
			{Name: "Amoxicillin", Dosage: "500mg", Frequency: "TID"},
		},
		ExtractionNotes: "lower half illegible",
	}

	result := parser.FromExtracted(extracted)

	assert.Equal(t, "Asha Rao", result.DoctorName)
	assert.Equal(t, "City Care Clinic", result.HospitalName)
	assert.Equal(t, "Ravi Kumar", result.PatientName)
	assert.Equal(t, "2025-03-12", result.PrescriptionDate)
	assert.Contains(t, result.RawText, "Dr. Asha Rao")
	assert.Contains(t, result.RawText, "Patient: Ravi Kumar")
	assert.Contains(t, result.RawText, "Amoxicillin 500mg TID")
	assert.Contains(t, result.RawText, "lower half illegible")
}

func TestFromExtractedEmptyPayload(t *testing.T) {
	parser := newTestParser()

	result := parser.FromExtracted(&domain.ExtractedPrescription{})

	assert.Empty(t, result.Medicines)
	assert.Empty(t, result.RawText)
}
