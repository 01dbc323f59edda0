package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafe-server/internal/domain"
	"github.com/medsafe-server/internal/knowledge"
)

// Confidence assignments for the structured extraction path.
const (
	confidenceUncertain     = 0.5
	confidenceFull          = 0.95
	confidencePartial       = 0.8
	confidenceNameOnly      = 0.7
	confidencePattern       = 0.8
	confidenceDictionary    = 0.6
	confidenceFieldBoost    = 0.1
	unknownMedicineFallback = "Unknown Medicine"
)

var (
	// Free-text medicine patterns, tried in order per line: name with
	// dosage and frequency, name with dosage, name with frequency.
	medicinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\w+(?:\s+\w+)*)\s+(\d+(?:\.\d+)?\s*(?:mg|g|ml|mcg|units?))\s+(\d+(?:\s*x\s*|\s+times?\s+|\s*/\s*)\s*(?:daily|day|weekly|week|monthly|month|od|bd|td|qd|bid|tid|qid))`),
		regexp.MustCompile(`(?i)(\w+(?:\s+\w+)*)\s+(\d+(?:\.\d+)?\s*(?:mg|g|ml|mcg|units?))`),
		regexp.MustCompile(`(?i)(\w+(?:\s+\w+)*)\s+(\d+(?:\s*x\s*|\s+times?\s+|\s*/\s*)\s*(?:daily|day|weekly|week|monthly|month|od|bd|td|qd|bid|tid|qid))`),
	}

	dosagePattern          = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:mg|g|ml|mcg|units?)`)
	frequencyHintPattern   = regexp.MustCompile(`(?i)\d+(?:\s*x\s*|\s+times?\s+|\s*/\s*)`)
	contextFrequencyFormat = regexp.MustCompile(`(?i)\d+(?:\s*x\s*|\s+times?\s+)\s*(?:daily|day|od|bd|td)`)

	doctorPattern   = regexp.MustCompile(`(?i)dr\.?\s+([a-z\s]+)`)
	facilityPattern = regexp.MustCompile(`(?i)(hospital|clinic|medical|healthcare|center)`)
	datePattern     = regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`)
	patientPattern  = regexp.MustCompile(`(?i)(?:name|patient):\s*([a-z\s]+)`)
)

// ScanParser normalizes both prescription input shapes into a
// PrescriptionScanResult: structured extraction payloads and raw OCR
// text. Parsing is deterministic; no external calls.
type ScanParser struct {
	logger *logrus.Logger
}

// NewScanParser creates a new prescription scan parser.
func NewScanParser(logger *logrus.Logger) *ScanParser {
	return &ScanParser{logger: logger}
}

// FromExtracted converts a structured extraction payload into a scan
// result. Confidence per medication follows extraction completeness: an
// uncertain flag forces 0.5, dosage plus frequency scores 0.95, either
// alone 0.8, a bare name 0.7. A synthetic raw text is assembled from the
// structured fields so downstream consumers always have one.
func (p *ScanParser) FromExtracted(extracted *domain.ExtractedPrescription) *domain.PrescriptionScanResult {
	medicines := make([]domain.ExtractedMedicine, 0, len(extracted.Medications))
	for _, med := range extracted.Medications {
		medicines = append(medicines, convertExtractedMedication(med))
	}

	result := &domain.PrescriptionScanResult{
		Medicines: medicines,
		RawText:   syntheticRawText(extracted, medicines),
	}
	if extracted.Doctor != nil {
		result.DoctorName = extracted.Doctor.Name
		result.HospitalName = extracted.Doctor.ClinicName
	}
	if extracted.Patient != nil {
		result.PatientName = extracted.Patient.Name
		result.PrescriptionDate = extracted.Patient.PrescriptionDate
	}

	p.logger.WithFields(logrus.Fields{
		"medicine_count": len(medicines),
		"has_doctor":     extracted.Doctor != nil,
		"has_patient":    extracted.Patient != nil,
	}).Debug("Converted structured prescription data")

	return result
}

func convertExtractedMedication(med domain.ExtractedMedication) domain.ExtractedMedicine {
	name := med.Name
	if name == "" {
		name = unknownMedicineFallback
	}

	confidence := confidenceNameOnly
	switch {
	case med.Uncertain:
		confidence = confidenceUncertain
	case med.Dosage != "" && med.Frequency != "":
		confidence = confidenceFull
	case med.Dosage != "" || med.Frequency != "":
		confidence = confidencePartial
	}

	out := domain.ExtractedMedicine{
		Name:         name,
		Dosage:       med.Dosage,
		Frequency:    med.Frequency,
		Duration:     med.Duration,
		Instructions: med.Instructions,
		Confidence:   confidence,
	}
	out.ClampConfidence()
	return out
}

func syntheticRawText(extracted *domain.ExtractedPrescription, medicines []domain.ExtractedMedicine) string {
	parts := []string{}
	if extracted.Doctor != nil {
		if extracted.Doctor.Name != "" {
			parts = append(parts, "Dr. "+extracted.Doctor.Name)
		}
		if extracted.Doctor.ClinicName != "" {
			parts = append(parts, extracted.Doctor.ClinicName)
		}
	}
	if extracted.Patient != nil {
		if extracted.Patient.Name != "" {
			parts = append(parts, "Patient: "+extracted.Patient.Name)
		}
		if extracted.Patient.Age != "" {
			parts = append(parts, "Age: "+extracted.Patient.Age)
		}
		if extracted.Patient.PrescriptionDate != "" {
			parts = append(parts, "Date: "+extracted.Patient.PrescriptionDate)
		}
	}
	for _, med := range medicines {
		line := strings.TrimSpace(fmt.Sprintf("%s %s %s %s", med.Name, med.Dosage, med.Frequency, med.Instructions))
		if line != "" {
			parts = append(parts, strings.Join(strings.Fields(line), " "))
		}
	}
	if extracted.AdditionalNotes != nil && extracted.AdditionalNotes.SpecialInstructions != "" {
		parts = append(parts, extracted.AdditionalNotes.SpecialInstructions)
	}
	if extracted.ExtractionNotes != "" {
		parts = append(parts, extracted.ExtractionNotes)
	}
	return strings.Join(parts, "\n")
}

// ParseText extracts medicines and prescription metadata from raw OCR
// text.
func (p *ScanParser) ParseText(text string) *domain.PrescriptionScanResult {
	result := &domain.PrescriptionScanResult{
		Medicines: p.extractMedicines(text),
		RawText:   text,
	}
	p.extractMetadata(text, result)

	p.logger.WithField("medicine_count", len(result.Medicines)).Debug("Parsed prescription text")

	return result
}

// extractMedicines scans each non-empty line for medicine mentions. The
// dosage and frequency patterns are tried first; at most one pattern
// match is taken per line. Lines that match no pattern fall back to the
// common-medicine dictionary at lower confidence. Duplicate names keep
// the higher-confidence extraction, and the first occurrence of a name
// gets a confidence boost per populated dosage or frequency field.
func (p *ScanParser) extractMedicines(text string) []domain.ExtractedMedicine {
	medicines := []domain.ExtractedMedicine{}

	for _, line := range splitLines(text) {
		if med, ok := matchMedicinePatterns(line); ok {
			medicines = append(medicines, med)
			continue
		}
		medicines = append(medicines, matchDictionary(line)...)
	}

	return dedupeMedicines(medicines)
}

func splitLines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func matchMedicinePatterns(line string) (domain.ExtractedMedicine, bool) {
	for _, pattern := range medicinePatterns {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		med := domain.ExtractedMedicine{
			Name:       strings.TrimSpace(match[1]),
			Confidence: confidencePattern,
		}
		if len(match) > 2 {
			if dosagePattern.MatchString(match[2]) {
				med.Dosage = strings.TrimSpace(match[2])
				if len(match) > 3 {
					med.Frequency = strings.TrimSpace(match[3])
				}
			} else if frequencyHintPattern.MatchString(match[2]) {
				med.Frequency = strings.TrimSpace(match[2])
			}
		}
		return med, true
	}
	return domain.ExtractedMedicine{}, false
}

func matchDictionary(line string) []domain.ExtractedMedicine {
	medicines := []domain.ExtractedMedicine{}
	lineLower := strings.ToLower(line)

	for _, medName := range knowledge.CommonMedicineNames {
		if !strings.Contains(lineLower, medName) {
			continue
		}

		words := strings.Fields(line)
		medIndex := -1
		for i, word := range words {
			if strings.Contains(strings.ToLower(word), medName) {
				medIndex = i
				break
			}
		}
		if medIndex == -1 {
			continue
		}

		med := domain.ExtractedMedicine{
			Name:       words[medIndex],
			Confidence: confidenceDictionary,
		}

		// Look for dosage and frequency in the surrounding words.
		start := medIndex - 2
		if start < 0 {
			start = 0
		}
		end := medIndex + 4
		if end > len(words) {
			end = len(words)
		}
		for _, word := range words[start:end] {
			if med.Dosage == "" && dosagePattern.MatchString(word) {
				med.Dosage = word
			}
			if med.Frequency == "" && contextFrequencyFormat.MatchString(word) {
				med.Frequency = word
			}
		}

		medicines = append(medicines, med)
	}

	return medicines
}

func dedupeMedicines(medicines []domain.ExtractedMedicine) []domain.ExtractedMedicine {
	unique := []domain.ExtractedMedicine{}

	for _, current := range medicines {
		idx := -1
		for i := range unique {
			if strings.EqualFold(unique[i].Name, current.Name) {
				idx = i
				break
			}
		}

		if idx == -1 {
			if current.Dosage != "" {
				current.Confidence += confidenceFieldBoost
			}
			if current.Frequency != "" {
				current.Confidence += confidenceFieldBoost
			}
			current.ClampConfidence()
			unique = append(unique, current)
		} else if current.Confidence > unique[idx].Confidence {
			current.ClampConfidence()
			unique[idx] = current
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})

	return unique
}

// extractMetadata pulls doctor, facility, date, and patient details out
// of the text. First match wins for each field.
func (p *ScanParser) extractMetadata(text string, result *domain.PrescriptionScanResult) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if result.DoctorName == "" {
			if match := doctorPattern.FindStringSubmatch(line); match != nil {
				result.DoctorName = strings.TrimSpace(match[1])
			}
		}

		if result.HospitalName == "" && facilityPattern.MatchString(line) {
			result.HospitalName = line
		}

		if result.PrescriptionDate == "" {
			if match := datePattern.FindStringSubmatch(line); match != nil {
				result.PrescriptionDate = match[1]
			}
		}

		if result.PatientName == "" {
			if match := patientPattern.FindStringSubmatch(line); match != nil {
				result.PatientName = strings.TrimSpace(match[1])
			}
		}
	}
}
