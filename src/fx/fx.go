// Package fx provides historical exchange-rate lookups for the tax engine.
// Rates are loaded once from a JSON file of daily observations quoted as
// currency units per USD, and every resolved lookup is memoized in a
// read-mostly cache so the simulation passes never block on repeated dates.
package fx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/portfoliotracker/src/logger"
)

// ErrRateUnavailable is wrapped by every missing-rate error.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Provider is the engine's view of the FX collaborator.
type Provider interface {
	// Rate returns the conversion factor from one currency to another on
	// the given date.
	Rate(from, to string, on time.Time) (float64, error)
	// Preload warms the lookup cache for the date range so the simulation
	// itself never misses.
	Preload(from, to time.Time) error
}

// Policy decides what a missing historical rate does to the report.
type Policy int

const (
	// PolicyStrict fails the whole computation with a descriptive error.
	PolicyStrict Policy = iota
	// PolicyFallback substitutes the configured default RON/USD rate and
	// logs a warning. Only the RON leg has a fallback; other currencies
	// still fail.
	PolicyFallback
)

// ParsePolicy parses the FX_RATE_POLICY config value.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "strict", "":
		return PolicyStrict, nil
	case "fallback":
		return PolicyFallback, nil
	default:
		return 0, fmt.Errorf("unknown fx rate policy: %q", s)
	}
}

const dateFormat = "2006-01-02"

// Rates observed on days without trading (weekends, holidays) are resolved
// from the nearest prior observation, at most this many days back.
const maxBackscanDays = 7

type observation struct {
	Date     string  `json:"date"`
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"` // currency units per USD
}

type ratesFile struct {
	Observations []observation `json:"observations"`
}

// HistoricalProvider implements Provider from a local observations file.
type HistoricalProvider struct {
	perUsd            map[string]map[string]float64 // currency -> date -> units per USD
	memo              *cache.Cache
	policy            Policy
	fallbackRonPerUsd float64
}

// NewHistoricalProvider loads the observations file and returns a ready
// provider. The file must exist; an empty observation list is allowed (every
// non-USD lookup will then follow the policy).
func NewHistoricalProvider(path string, policy Policy, fallbackRonPerUsd float64) (*HistoricalProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading historical exchange rate file %q: %w", path, err)
	}
	var file ratesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unmarshalling historical exchange rates from %q: %w", path, err)
	}

	perUsd := make(map[string]map[string]float64)
	for _, obs := range file.Observations {
		ccy := strings.ToUpper(obs.Currency)
		if perUsd[ccy] == nil {
			perUsd[ccy] = make(map[string]float64)
		}
		perUsd[ccy][obs.Date] = obs.Rate
	}
	if logger.L != nil {
		logger.L.Info("Historical exchange rates loaded", "path", path, "observationCount", len(file.Observations))
	}
	return &HistoricalProvider{
		perUsd:            perUsd,
		memo:              cache.New(cache.NoExpiration, 30*time.Minute),
		policy:            policy,
		fallbackRonPerUsd: fallbackRonPerUsd,
	}, nil
}

// Rate implements Provider. Cross rates are computed through USD.
func (p *HistoricalProvider) Rate(from, to string, on time.Time) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return 1.0, nil
	}

	key := from + "/" + to + "@" + on.Format(dateFormat)
	if v, found := p.memo.Get(key); found {
		return v.(float64), nil
	}

	fromPerUsd, err := p.unitsPerUsd(from, on)
	if err != nil {
		return 0, err
	}
	toPerUsd, err := p.unitsPerUsd(to, on)
	if err != nil {
		return 0, err
	}
	if fromPerUsd == 0 {
		return 0, fmt.Errorf("%w: zero rate for %s on %s", ErrRateUnavailable, from, on.Format(dateFormat))
	}

	rate := toPerUsd / fromPerUsd
	p.memo.Set(key, rate, cache.NoExpiration)
	return rate, nil
}

// Preload implements Provider: it resolves USD->RON and USD->EUR for every
// day in the range so simulation and tracing never miss the memo.
func (p *HistoricalProvider) Preload(from, to time.Time) error {
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, ccy := range []string{"RON", "EUR"} {
			if _, err := p.Rate("USD", ccy, day); err != nil {
				if p.policy == PolicyStrict {
					return fmt.Errorf("preloading %s rates: %w", ccy, err)
				}
			}
		}
	}
	return nil
}

func (p *HistoricalProvider) unitsPerUsd(currency string, on time.Time) (float64, error) {
	if currency == "USD" {
		return 1.0, nil
	}
	byDate := p.perUsd[currency]
	for back := 0; back <= maxBackscanDays; back++ {
		if rate, ok := byDate[on.AddDate(0, 0, -back).Format(dateFormat)]; ok {
			return rate, nil
		}
	}
	if p.policy == PolicyFallback && currency == "RON" {
		if logger.L != nil {
			logger.L.Warn("Missing RON rate, using configured fallback",
				"date", on.Format(dateFormat), "fallbackRate", p.fallbackRonPerUsd)
		}
		return p.fallbackRonPerUsd, nil
	}
	return 0, fmt.Errorf("%w: no %s observation on or within %d days before %s",
		ErrRateUnavailable, currency, maxBackscanDays, on.Format(dateFormat))
}
