package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medsafe-server/internal/domain"
)

// ResilientDrugDataClient wraps the RxNorm and openFDA clients with
// circuit breakers and routes corroboration queries through the pair
// cache. It implements both domain.DrugResolver and
// domain.CorroborationSource.
//
// Resolutions pass straight through to RxNorm on every call. Only
// corroboration results are cached; when the openFDA breaker is open a
// cached pair entry still serves.
type ResilientDrugDataClient struct {
	rxNorm  *RxNormClient
	openFDA *OpenFDAClient
	cache   *CorroborationCache
	logger  *logrus.Logger

	rxNormBreaker  *gobreaker.CircuitBreaker
	openFDABreaker *gobreaker.CircuitBreaker
}

// NewResilientDrugDataClient creates the resilient client. The cache may
// be nil, in which case every corroboration query goes to openFDA.
func NewResilientDrugDataClient(
	rxNormConfig domain.RxNormConfig,
	openFDAConfig domain.OpenFDAConfig,
	cache *CorroborationCache,
	logger *logrus.Logger,
) *ResilientDrugDataClient {
	client := &ResilientDrugDataClient{
		rxNorm:  NewRxNormClient(rxNormConfig),
		openFDA: NewOpenFDAClient(openFDAConfig),
		cache:   cache,
		logger:  logger,
	}

	client.rxNormBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "RxNorm",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	client.openFDABreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openFDA",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 2 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return client
}

// SearchDrug resolves a medicine name through the RxNorm breaker.
func (r *ResilientDrugDataClient) SearchDrug(ctx context.Context, name string) ([]*domain.DrugInfo, error) {
	result, err := r.rxNormBreaker.Execute(func() (interface{}, error) {
		return r.rxNorm.SearchDrug(ctx, name)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("terminology service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("RxNorm query failed: %w", err)
	}

	drugs, _ := result.([]*domain.DrugInfo)
	return drugs, nil
}

// CheckPair corroborates a drug pair through the openFDA breaker with
// pair caching. A cache hit skips the network entirely; an open breaker
// falls back to the cache before failing.
func (r *ResilientDrugDataClient) CheckPair(ctx context.Context, drug1, drug2 string) ([]domain.DrugInteraction, error) {
	if r.cache != nil {
		if findings, ok := r.cache.Get(ctx, drug1, drug2); ok {
			return findings, nil
		}
	}

	result, err := r.openFDABreaker.Execute(func() (interface{}, error) {
		return r.openFDA.CheckPair(ctx, drug1, drug2)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("adverse-event service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("openFDA query failed: %w", err)
	}

	findings, _ := result.([]domain.DrugInteraction)

	if r.cache != nil {
		if cacheErr := r.cache.Set(ctx, drug1, drug2, findings); cacheErr != nil {
			r.logger.WithError(cacheErr).Warn("Failed to cache corroboration result")
		}
	}

	return findings, nil
}

// GetDrugLabel fetches a product label through the openFDA breaker.
func (r *ResilientDrugDataClient) GetDrugLabel(ctx context.Context, drugName string) (*DrugLabel, error) {
	result, err := r.openFDABreaker.Execute(func() (interface{}, error) {
		return r.openFDA.GetDrugLabel(ctx, drugName)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("label service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("label query failed: %w", err)
	}

	label, _ := result.(*DrugLabel)
	return label, nil
}

// BreakerStates reports the current state of both circuit breakers, used
// by the health endpoint.
func (r *ResilientDrugDataClient) BreakerStates() map[string]string {
	return map[string]string{
		"rxnorm":  r.rxNormBreaker.State().String(),
		"openfda": r.openFDABreaker.State().String(),
	}
}

// Close releases cache resources.
func (r *ResilientDrugDataClient) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}
