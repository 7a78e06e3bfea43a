package fx

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRates(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing rates file: %v", err)
	}
	return path
}

const sampleRates = `{
  "observations": [
    {"date": "2024-03-01", "currency": "RON", "rate": 4.55},
    {"date": "2024-03-04", "currency": "RON", "rate": 4.60},
    {"date": "2024-03-01", "currency": "EUR", "rate": 0.92}
  ]
}`

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRateDirectObservation(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}

	rate, err := p.Rate("USD", "RON", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !approx(rate, 4.55) {
		t.Errorf("USD->RON = %v, want 4.55", rate)
	}

	inv, err := p.Rate("RON", "USD", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !approx(inv, 1/4.55) {
		t.Errorf("RON->USD = %v, want %v", inv, 1/4.55)
	}
}

func TestRateSameCurrency(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}
	rate, err := p.Rate("EUR", "EUR", day(2024, 3, 2))
	if err != nil || rate != 1.0 {
		t.Errorf("EUR->EUR = (%v, %v), want (1, nil)", rate, err)
	}
}

func TestRateCrossThroughUsd(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}
	rate, err := p.Rate("EUR", "RON", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !approx(rate, 4.55/0.92) {
		t.Errorf("EUR->RON = %v, want %v", rate, 4.55/0.92)
	}
}

func TestRateBackscansWeekend(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}
	// March 3rd 2024 is a Sunday; the March 1st observation applies.
	rate, err := p.Rate("USD", "RON", day(2024, 3, 3))
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !approx(rate, 4.55) {
		t.Errorf("backscanned USD->RON = %v, want 4.55", rate)
	}
}

func TestRateBeyondBackscanStrict(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}
	_, err = p.Rate("USD", "RON", day(2024, 6, 1))
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestRateFallbackPolicyCoversRonOnly(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyFallback, 4.5)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}

	rate, err := p.Rate("USD", "RON", day(2024, 6, 1))
	if err != nil {
		t.Fatalf("Rate with fallback: %v", err)
	}
	if !approx(rate, 4.5) {
		t.Errorf("fallback USD->RON = %v, want 4.5", rate)
	}

	if _, err := p.Rate("USD", "EUR", day(2024, 6, 1)); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("EUR has no fallback, expected ErrRateUnavailable, got %v", err)
	}
}

func TestPreload(t *testing.T) {
	p, err := NewHistoricalProvider(writeRates(t, sampleRates), PolicyStrict, 0)
	if err != nil {
		t.Fatalf("NewHistoricalProvider: %v", err)
	}
	if err := p.Preload(day(2024, 3, 1), day(2024, 3, 5)); err != nil {
		t.Fatalf("Preload over covered range: %v", err)
	}
	if err := p.Preload(day(2024, 5, 1), day(2024, 5, 3)); err == nil {
		t.Error("Preload over uncovered range in strict mode should fail")
	}
}

func TestNewHistoricalProviderErrors(t *testing.T) {
	if _, err := NewHistoricalProvider(filepath.Join(t.TempDir(), "missing.json"), PolicyStrict, 0); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := NewHistoricalProvider(writeRates(t, "not json"), PolicyStrict, 0); err == nil {
		t.Error("malformed file should fail")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"strict", PolicyStrict, false},
		{"", PolicyStrict, false},
		{"fallback", PolicyFallback, false},
		{"Fallback", PolicyFallback, false},
		{"lenient", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("ParsePolicy(%q) error = %v", tt.in, err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
