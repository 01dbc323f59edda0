package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/medsafe-server/internal/domain"
)

const (
	defaultOpenFDABaseURL = "https://api.fda.gov"
	defaultOpenFDATimeout = 15 * time.Second
	adverseEventLimit     = 5

	// Report-volume thresholds for severity classification. The higher
	// threshold is checked first so heavy report volume always reaches
	// contraindicated.
	majorEventThreshold           = 100
	contraindicatedEventThreshold = 500
)

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// OpenFDAClient queries the openFDA drug APIs: adverse-event reports for
// pairwise corroboration and product labels for detail lookups.
type OpenFDAClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenFDAClient creates a new openFDA API client.
func NewOpenFDAClient(config domain.OpenFDAConfig) *OpenFDAClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenFDABaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultOpenFDATimeout
	}
	rateLimit := config.RateLimit
	if rateLimit == 0 {
		rateLimit = 4
	}

	return &OpenFDAClient{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

type adverseEventResponse struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []adverseEventReport `json:"results"`
}

type adverseEventReport struct {
	Serious                    string `json:"serious"`
	SeriousnessOther           string `json:"seriousnessother"`
	SeriousnessHospitalization string `json:"seriousnesshospitalization"`
	SeriousnessDeath           string `json:"seriousnessdeath"`
}

func (r *adverseEventReport) isSerious() bool {
	return r.Serious == "1" || r.SeriousnessOther == "1" ||
		r.SeriousnessHospitalization == "1" || r.SeriousnessDeath == "1"
}

func anySerious(reports []adverseEventReport) bool {
	for i := range reports {
		if reports[i].isSerious() {
			return true
		}
	}
	return false
}

// CheckPair queries adverse-event reports for a drug pair and derives at
// most one corroboration finding. Three query strategies are tried in
// order: product name pair, active substance pair, indication pair. The
// first strategy with results wins; a failed strategy falls through to
// the next. No results across all strategies yields no finding.
func (c *OpenFDAClient) CheckPair(ctx context.Context, drug1, drug2 string) ([]domain.DrugInteraction, error) {
	clean1 := cleanDrugName(drug1)
	clean2 := cleanDrugName(drug2)

	queries := []string{
		fmt.Sprintf(`patient.drug.medicinalproduct:"%s"+AND+patient.drug.medicinalproduct:"%s"`, clean1, clean2),
		fmt.Sprintf(`patient.drug.activesubstance.activesubstancename:"%s"+AND+patient.drug.activesubstance.activesubstancename:"%s"`, clean1, clean2),
		fmt.Sprintf(`patient.drug.drugindication:"%s"+AND+patient.drug.drugindication:"%s"`, clean1, clean2),
	}

	var lastErr error
	for _, query := range queries {
		events, err := c.queryAdverseEvents(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if len(events.Results) == 0 {
			continue
		}
		return []domain.DrugInteraction{buildCorroborationFinding(drug1, drug2, events)}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all adverse-event queries failed: %w", lastErr)
	}
	return nil, nil
}

// buildCorroborationFinding classifies severity from report volume. Any
// serious-outcome report escalates to contraindicated, same as a volume
// above the contraindicated threshold.
func buildCorroborationFinding(drug1, drug2 string, events *adverseEventResponse) domain.DrugInteraction {
	totalEvents := events.Meta.Results.Total
	if totalEvents == 0 {
		totalEvents = len(events.Results)
	}

	severity := domain.SeverityModerate
	if totalEvents > majorEventThreshold {
		severity = domain.SeverityMajor
	}
	if totalEvents > contraindicatedEventThreshold || anySerious(events.Results) {
		severity = domain.SeverityContraindicated
	}

	recommendation := "Monitor for adverse effects and consult your healthcare provider if you experience unusual symptoms."
	if severity.IsCritical() {
		recommendation = "Consult your healthcare provider before taking these medications together."
	}

	return domain.DrugInteraction{
		Severity: severity,
		Description: fmt.Sprintf("Potential interaction detected between %s and %s based on %d reported adverse events",
			drug1, drug2, totalEvents),
		Recommendation:  recommendation,
		InteractionType: domain.InteractionDrugDrug,
		InteractingDrug: drug2,
	}
}

func (c *OpenFDAClient) queryAdverseEvents(ctx context.Context, query string) (*adverseEventResponse, error) {
	requestURL := fmt.Sprintf("%s/drug/event.json?search=%s&limit=%d",
		c.baseURL, url.QueryEscape(query), adverseEventLimit)
	if c.apiKey != "" {
		requestURL += "&api_key=" + url.QueryEscape(c.apiKey)
	}

	var events adverseEventResponse
	if err := c.getJSON(ctx, requestURL, &events); err != nil {
		return nil, err
	}
	return &events, nil
}

// DrugLabel is one openFDA product label record. Fields arrive as string
// arrays in the label schema.
type DrugLabel struct {
	ID      string `json:"id"`
	OpenFDA struct {
		BrandName     []string `json:"brand_name"`
		GenericName   []string `json:"generic_name"`
		SubstanceName []string `json:"substance_name"`
	} `json:"openfda"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
	Warnings                []string `json:"warnings"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
	AdverseReactions        []string `json:"adverse_reactions"`
}

type drugLabelResponse struct {
	Results []DrugLabel `json:"results"`
}

// GetDrugLabel looks up the product label for a drug name. Five search
// strategies are tried in order, quoted brand and generic and substance
// name first, then unquoted brand and generic. A nil, nil return means no
// label matched.
func (c *OpenFDAClient) GetDrugLabel(ctx context.Context, drugName string) (*DrugLabel, error) {
	clean := cleanDrugName(drugName)

	strategies := []string{
		fmt.Sprintf(`openfda.brand_name:"%s"`, clean),
		fmt.Sprintf(`openfda.generic_name:"%s"`, clean),
		fmt.Sprintf(`openfda.substance_name:"%s"`, clean),
		"openfda.brand_name:" + clean,
		"openfda.generic_name:" + clean,
	}

	var lastErr error
	for _, strategy := range strategies {
		requestURL := fmt.Sprintf("%s/drug/label.json?search=%s&limit=1", c.baseURL, url.QueryEscape(strategy))
		if c.apiKey != "" {
			requestURL += "&api_key=" + url.QueryEscape(c.apiKey)
		}

		var labels drugLabelResponse
		if err := c.getJSON(ctx, requestURL, &labels); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if len(labels.Results) > 0 {
			return &labels.Results[0], nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all label queries failed: %w", lastErr)
	}
	return nil, nil
}

func (c *OpenFDAClient) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// cleanDrugName strips punctuation so quoted query terms stay valid.
func cleanDrugName(name string) string {
	return strings.TrimSpace(nonWordPattern.ReplaceAllString(name, ""))
}
