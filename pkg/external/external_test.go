package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsafe-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func rxNormTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/approximateTerm.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("maxEntries"))
		if strings.Contains(r.URL.Query().Get("term"), "nosuchdrug") {
			json.NewEncoder(w).Encode(map[string]interface{}{"approximateGroup": map[string]interface{}{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"approximateGroup": map[string]interface{}{
				"candidate": []map[string]string{
					{"rxcui": "11289", "score": "100", "rank": "1"},
					{"rxcui": "11289", "score": "100", "rank": "2"},
				},
			},
		})
	})

	mux.HandleFunc("/rxcui/11289/properties.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"properties": map[string]string{
				"rxcui":   "11289",
				"name":    "Warfarin",
				"synonym": "warfarin sodium",
				"tty":     "IN",
			},
		})
	})

	mux.HandleFunc("/rxcui/11289/related.json", func(w http.ResponseWriter, r *http.Request) {
		tty := r.URL.Query().Get("tty")
		if tty == "IN" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"relatedGroup": map[string]interface{}{
					"conceptGroup": []map[string]interface{}{
						{
							"tty": "IN",
							"conceptProperties": []map[string]string{
								{"rxcui": "11289", "name": "warfarin"},
							},
						},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"relatedGroup": map[string]interface{}{
				"conceptGroup": []map[string]interface{}{
					{
						"tty": "BN",
						"conceptProperties": []map[string]string{
							{"rxcui": "202421", "name": "Coumadin"},
							{"rxcui": "202422", "name": "Jantoven"},
						},
					},
				},
			},
		})
	})

	mux.HandleFunc("/rxclass/class/byRxcui.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ATC", r.URL.Query().Get("relaSource"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"rxclassDrugInfoList": map[string]interface{}{
				"rxclassDrugInfo": []map[string]interface{}{
					{
						"rxclassMinConceptItem": map[string]string{
							"className": "Antithrombotic agents",
							"classType":  "ATC1-4",
						},
					},
				},
			},
		})
	})

	return httptest.NewServer(mux)
}

func TestRxNormSearchDrug(t *testing.T) {
	server := rxNormTestServer(t)
	defer server.Close()

	client := NewRxNormClient(domain.RxNormConfig{
		BaseURL:        server.URL,
		RxClassBaseURL: server.URL,
		RateLimit:      100,
	})

	drugs, err := client.SearchDrug(context.Background(), "warfarin")
	require.NoError(t, err)
	require.Len(t, drugs, 1, "duplicate rxcui candidates must collapse")

	drug := drugs[0]
	assert.Equal(t, "11289", drug.RxCUI)
	assert.Equal(t, "Warfarin", drug.Name)
	assert.Equal(t, "warfarin sodium", drug.GenericName)
	assert.Equal(t, []string{"Coumadin", "Jantoven"}, drug.BrandNames)
	assert.Equal(t, []string{"warfarin"}, drug.ActiveIngredients)
	assert.Equal(t, []string{"Antithrombotic agents"}, drug.TherapeuticClass)
}

func TestRxNormSearchDrugNotFound(t *testing.T) {
	server := rxNormTestServer(t)
	defer server.Close()

	client := NewRxNormClient(domain.RxNormConfig{
		BaseURL:        server.URL,
		RxClassBaseURL: server.URL,
		RateLimit:      100,
	})

	drugs, err := client.SearchDrug(context.Background(), "nosuchdrug")
	require.NoError(t, err)
	assert.Nil(t, drugs, "no candidates must return nil, nil")
}

func TestRxNormSearchDrugEmptyName(t *testing.T) {
	client := NewRxNormClient(domain.RxNormConfig{RateLimit: 100})

	_, err := client.SearchDrug(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyMedicineName)
}

func TestRxNormSearchDrugServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRxNormClient(domain.RxNormConfig{
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	_, err := client.SearchDrug(context.Background(), "warfarin")
	assert.Error(t, err)
}

func TestRxNormDegradedEnrichment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/approximateTerm.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"approximateGroup": map[string]interface{}{
				"candidate": []map[string]string{{"rxcui": "8640"}},
			},
		})
	})
	mux.HandleFunc("/rxcui/8640/properties.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"properties": map[string]string{"rxcui": "8640", "name": "Prednisone"},
		})
	})
	// related and rxclass endpoints fail
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewRxNormClient(domain.RxNormConfig{
		BaseURL:        server.URL,
		RxClassBaseURL: server.URL,
		RateLimit:      100,
	})

	drugs, err := client.SearchDrug(context.Background(), "prednisone")
	require.NoError(t, err)
	require.Len(t, drugs, 1)
	assert.Equal(t, "Prednisone", drugs[0].Name)
	assert.Equal(t, "Prednisone", drugs[0].GenericName, "generic falls back to name when synonym is missing")
	assert.Empty(t, drugs[0].BrandNames)
	assert.Empty(t, drugs[0].ActiveIngredients)
	assert.Empty(t, drugs[0].TherapeuticClass)
}

func adverseEventPayload(total int, serious bool) map[string]interface{} {
	report := map[string]string{"serious": "0"}
	if serious {
		report["serious"] = "1"
	}
	return map[string]interface{}{
		"meta": map[string]interface{}{
			"results": map[string]int{"total": total},
		},
		"results": []map[string]string{report},
	}
}

func TestOpenFDACheckPairModerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adverseEventPayload(50, false))
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	findings, err := client.CheckPair(context.Background(), "Prednisone", "Levothyroxine")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityModerate, findings[0].Severity)
	assert.Equal(t, "Levothyroxine", findings[0].InteractingDrug)
	assert.Contains(t, findings[0].Description, "50 reported adverse events")
}

func TestOpenFDACheckPairMajorVolume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adverseEventPayload(250, false))
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	findings, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityMajor, findings[0].Severity)
}

func TestOpenFDACheckPairContraindicatedVolume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adverseEventPayload(1200, false))
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	findings, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityContraindicated, findings[0].Severity,
		"volume above the higher threshold must reach contraindicated")
}

func TestOpenFDACheckPairSeriousOutcomeContraindicated(t *testing.T) {
	// A serious-outcome report escalates to contraindicated regardless
	// of report volume.
	for _, total := range []int{10, 250, 1200} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(adverseEventPayload(total, true))
		}))

		client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

		findings, err := client.CheckPair(context.Background(), "A", "B")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, domain.SeverityContraindicated, findings[0].Severity, "total=%d", total)

		server.Close()
	}
}

func TestOpenFDACheckPairFallbackStrategy(t *testing.T) {
	queries := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")
		queries = append(queries, query)
		if strings.Contains(query, "activesubstance") {
			json.NewEncoder(w).Encode(adverseEventPayload(10, false))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	findings, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Len(t, queries, 2, "second strategy must win, third never runs")
	assert.Contains(t, queries[0], "medicinalproduct")
	assert.Contains(t, queries[1], "activesubstance")
}

func TestOpenFDACheckPairNoReports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	findings, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestOpenFDAGetDrugLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")
		if strings.Contains(query, "generic_name") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{
						"id":       "label-1",
						"warnings": []string{"Risk of bleeding"},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := NewOpenFDAClient(domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100})

	label, err := client.GetDrugLabel(context.Background(), "warfarin")
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "label-1", label.ID)
	assert.Equal(t, []string{"Risk of bleeding"}, label.Warnings)
}

func TestCleanDrugName(t *testing.T) {
	assert.Equal(t, "Tylenol PM", cleanDrugName("Tylenol P.M.!"))
	assert.Equal(t, "warfarin", cleanDrugName("  warfarin  "))
}

func TestCorroborationCacheRoundTrip(t *testing.T) {
	cache, err := NewCorroborationCache(domain.CacheConfig{MemorySize: 8, DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer cache.Close()

	findings := []domain.DrugInteraction{{
		Severity:        domain.SeverityModerate,
		Description:     "Potential interaction detected",
		InteractionType: domain.InteractionDrugDrug,
		InteractingDrug: "Aspirin",
	}}

	_, ok := cache.Get(context.Background(), "Warfarin", "Aspirin")
	assert.False(t, ok)

	require.NoError(t, cache.Set(context.Background(), "Warfarin", "Aspirin", findings))

	got, ok := cache.Get(context.Background(), "Warfarin", "Aspirin")
	require.True(t, ok)
	assert.Equal(t, findings, got)

	// pair key is order-insensitive
	got, ok = cache.Get(context.Background(), "aspirin", "warfarin")
	require.True(t, ok)
	assert.Equal(t, findings, got)
}

func TestCorroborationCacheEmptyResultCached(t *testing.T) {
	cache, err := NewCorroborationCache(domain.CacheConfig{MemorySize: 8, DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "A", "B", nil))

	got, ok := cache.Get(context.Background(), "A", "B")
	assert.True(t, ok, "known-empty pairs must be cached")
	assert.Empty(t, got)
}

func TestCorroborationCacheExpiry(t *testing.T) {
	cache, err := NewCorroborationCache(domain.CacheConfig{MemorySize: 8, DefaultTTL: time.Millisecond})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "A", "B", nil))
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(context.Background(), "A", "B")
	assert.False(t, ok)
}

func TestResilientClientCorroborationUsesCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(adverseEventPayload(10, false))
	}))
	defer server.Close()

	cache, err := NewCorroborationCache(domain.CacheConfig{MemorySize: 8, DefaultTTL: time.Minute})
	require.NoError(t, err)

	client := NewResilientDrugDataClient(
		domain.RxNormConfig{RateLimit: 100},
		domain.OpenFDAConfig{BaseURL: server.URL, RateLimit: 100},
		cache,
		testLogger(),
	)
	defer client.Close()

	first, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)
	second, err := client.CheckPair(context.Background(), "A", "B")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits, "second query must come from the cache")
}

func TestOCRExtractPrescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"doctor": map[string]string{"name": "Asha Rao", "clinic_name": "City Care Clinic"},
			"medications": []map[string]interface{}{
				{"name": "Amoxicillin", "dosage": "500mg", "frequency": "TID"},
				{"name": "Smudged", "uncertain": true},
			},
			"extraction_notes": "bottom edge torn",
		})
	}))
	defer server.Close()

	client := NewOCRClient(domain.OCRConfig{BaseURL: server.URL, APIKey: "test-key"})

	extracted, err := client.ExtractPrescription(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	require.NoError(t, err)
	require.NotNil(t, extracted.Doctor)
	assert.Equal(t, "Asha Rao", extracted.Doctor.Name)
	require.Len(t, extracted.Medications, 2)
	assert.True(t, extracted.Medications[1].Uncertain)
	assert.Equal(t, "bottom edge torn", extracted.ExtractionNotes)
}

func TestOCRExtractPrescriptionEmptyImage(t *testing.T) {
	client := NewOCRClient(domain.OCRConfig{BaseURL: "http://localhost:1"})

	_, err := client.ExtractPrescription(context.Background(), nil, "image/jpeg")
	assert.Error(t, err)
}

func TestOCRExtractPrescriptionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOCRClient(domain.OCRConfig{BaseURL: server.URL})

	_, err := client.ExtractPrescription(context.Background(), []byte{0x01}, "image/png")
	assert.Error(t, err)
}
