// Package external contains clients for the public drug data services:
// RxNorm for terminology resolution, openFDA for adverse-event
// corroboration and label data, and the prescription extraction service.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/medsafe-server/internal/domain"
)

const (
	defaultRxNormBaseURL  = "https://rxnav.nlm.nih.gov/REST"
	defaultRxNormTimeout  = 15 * time.Second
	defaultMaxCandidates  = 5
	approximateMaxEntries = 10
	brandTermTypes        = "BN+GPCK+SBD+BPCK"
)

// RxNormClient resolves medicine names against the NLM RxNorm REST API.
// Every resolution is performed fresh; results are never cached so a
// lookup always reflects the live terminology service.
type RxNormClient struct {
	baseURL        string
	rxClassBaseURL string
	maxCandidates  int
	httpClient     *http.Client
	limiter        *rate.Limiter
}

// NewRxNormClient creates a new RxNorm API client.
func NewRxNormClient(config domain.RxNormConfig) *RxNormClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultRxNormBaseURL
	}
	rxClassBaseURL := config.RxClassBaseURL
	if rxClassBaseURL == "" {
		rxClassBaseURL = baseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultRxNormTimeout
	}
	maxCandidates := config.MaxCandidates
	if maxCandidates == 0 {
		maxCandidates = defaultMaxCandidates
	}
	rateLimit := config.RateLimit
	if rateLimit == 0 {
		rateLimit = 10
	}

	return &RxNormClient{
		baseURL:        baseURL,
		rxClassBaseURL: rxClassBaseURL,
		maxCandidates:  maxCandidates,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

type approximateTermResponse struct {
	ApproximateGroup struct {
		Candidate []struct {
			RxCUI string `json:"rxcui"`
			Score string `json:"score"`
			Rank  string `json:"rank"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

type propertiesResponse struct {
	Properties *struct {
		RxCUI   string `json:"rxcui"`
		Name    string `json:"name"`
		Synonym string `json:"synonym"`
		TTY     string `json:"tty"`
	} `json:"properties"`
}

type relatedResponse struct {
	RelatedGroup struct {
		ConceptGroup []struct {
			TTY               string `json:"tty"`
			ConceptProperties []struct {
				RxCUI string `json:"rxcui"`
				Name  string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

type rxClassResponse struct {
	RxClassDrugInfoList struct {
		RxClassDrugInfo []struct {
			RxClassMinConceptItem struct {
				ClassName string `json:"className"`
				ClassType string `json:"classType"`
			} `json:"rxclassMinConceptItem"`
		} `json:"rxclassDrugInfo"`
	} `json:"rxclassDrugInfoList"`
}

// SearchDrug resolves a medicine name to drug records, best match first.
// The approximate-term search is capped at ten entries and the top
// candidates are enriched with properties, brand names, active
// ingredients, and ATC therapeutic classes. A candidate whose property
// lookup fails is skipped; missing ingredients or classes degrade to
// empty lists. An empty candidate list returns nil, nil.
func (c *RxNormClient) SearchDrug(ctx context.Context, name string) ([]*domain.DrugInfo, error) {
	if name == "" {
		return nil, domain.ErrEmptyMedicineName
	}

	searchURL := fmt.Sprintf("%s/approximateTerm.json?term=%s&maxEntries=%d",
		c.baseURL, url.QueryEscape(name), approximateMaxEntries)

	var search approximateTermResponse
	if err := c.getJSON(ctx, searchURL, &search); err != nil {
		return nil, fmt.Errorf("RxNorm approximate search failed: %w", err)
	}

	candidates := search.ApproximateGroup.Candidate
	if len(candidates) > c.maxCandidates {
		candidates = candidates[:c.maxCandidates]
	}

	drugs := make([]*domain.DrugInfo, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if candidate.RxCUI == "" {
			continue
		}
		if _, dup := seen[candidate.RxCUI]; dup {
			continue
		}
		seen[candidate.RxCUI] = struct{}{}

		drug, err := c.fetchDrug(ctx, candidate.RxCUI)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if drug != nil {
			drugs = append(drugs, drug)
		}
	}

	if len(drugs) == 0 {
		return nil, nil
	}
	return drugs, nil
}

func (c *RxNormClient) fetchDrug(ctx context.Context, rxcui string) (*domain.DrugInfo, error) {
	var props propertiesResponse
	propsURL := fmt.Sprintf("%s/rxcui/%s/properties.json", c.baseURL, url.PathEscape(rxcui))
	if err := c.getJSON(ctx, propsURL, &props); err != nil {
		return nil, err
	}
	if props.Properties == nil {
		return nil, nil
	}

	genericName := props.Properties.Synonym
	if genericName == "" {
		genericName = props.Properties.Name
	}

	return &domain.DrugInfo{
		RxCUI:             rxcui,
		Name:              props.Properties.Name,
		GenericName:       genericName,
		BrandNames:        c.fetchBrandNames(ctx, rxcui),
		ActiveIngredients: c.fetchActiveIngredients(ctx, rxcui),
		TherapeuticClass:  c.fetchTherapeuticClasses(ctx, rxcui),
	}, nil
}

// fetchBrandNames collects related brand and pack concept names. Failures
// degrade to an empty list.
func (c *RxNormClient) fetchBrandNames(ctx context.Context, rxcui string) []string {
	relatedURL := fmt.Sprintf("%s/rxcui/%s/related.json?tty=%s", c.baseURL, url.PathEscape(rxcui), brandTermTypes)

	var related relatedResponse
	if err := c.getJSON(ctx, relatedURL, &related); err != nil {
		return nil
	}

	names := []string{}
	seen := map[string]struct{}{}
	for _, group := range related.RelatedGroup.ConceptGroup {
		for _, concept := range group.ConceptProperties {
			if concept.Name == "" {
				continue
			}
			if _, dup := seen[concept.Name]; dup {
				continue
			}
			seen[concept.Name] = struct{}{}
			names = append(names, concept.Name)
		}
	}
	return names
}

// fetchActiveIngredients collects ingredient (IN) concept names. Failures
// degrade to an empty list.
func (c *RxNormClient) fetchActiveIngredients(ctx context.Context, rxcui string) []string {
	relatedURL := fmt.Sprintf("%s/rxcui/%s/related.json?tty=IN", c.baseURL, url.PathEscape(rxcui))

	var related relatedResponse
	if err := c.getJSON(ctx, relatedURL, &related); err != nil {
		return nil
	}

	ingredients := []string{}
	for _, group := range related.RelatedGroup.ConceptGroup {
		if group.TTY != "IN" {
			continue
		}
		for _, concept := range group.ConceptProperties {
			if concept.Name != "" {
				ingredients = append(ingredients, concept.Name)
			}
		}
	}
	return ingredients
}

// fetchTherapeuticClasses collects ATC class names from RxClass. Failures
// degrade to an empty list.
func (c *RxNormClient) fetchTherapeuticClasses(ctx context.Context, rxcui string) []string {
	classURL := fmt.Sprintf("%s/rxclass/class/byRxcui.json?rxcui=%s&relaSource=ATC",
		c.rxClassBaseURL, url.QueryEscape(rxcui))

	var classes rxClassResponse
	if err := c.getJSON(ctx, classURL, &classes); err != nil {
		return nil
	}

	names := []string{}
	for _, info := range classes.RxClassDrugInfoList.RxClassDrugInfo {
		if info.RxClassMinConceptItem.ClassName != "" {
			names = append(names, info.RxClassMinConceptItem.ClassName)
		}
	}
	return names
}

func (c *RxNormClient) getJSON(ctx context.Context, requestURL string, out interface{}) error {
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
