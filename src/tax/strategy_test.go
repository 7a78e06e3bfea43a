package tax

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"FIFO", FIFO, false},
		{"fifo", FIFO, false},
		{"", FIFO, false},
		{"LIFO", LIFO, false},
		{"hifo", HIFO, false},
		{"LOFO", LOFO, false},
		{"AVCO", 0, true},
		{"first", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStrategy(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStrategy(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStrategyString(t *testing.T) {
	for _, s := range []Strategy{FIFO, LIFO, HIFO, LOFO} {
		round, err := ParseStrategy(s.String())
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", s.String(), err)
		}
		if round != s {
			t.Errorf("round trip of %v = %v", s, round)
		}
	}
}

func testLot(id int64, acquired time.Time, qty, basis float64) *Lot {
	q := decimal.NewFromFloat(qty)
	b := decimal.NewFromFloat(basis)
	return &Lot{
		ID:                id,
		Asset:             "BTC",
		AcquiredAt:        acquired,
		OriginalQuantity:  q,
		RemainingQuantity: q,
		CostBasisUsd:      b,
		UnitCostUsd:       b.Div(q),
	}
}

func TestStrategyOrdering(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
	}
	// id 1: earliest, mid cost. id 2: latest, cheapest. id 3: middle, priciest.
	lots := []*Lot{
		testLot(1, day(1), 1, 500),
		testLot(2, day(9), 1, 100),
		testLot(3, day(5), 1, 900),
	}

	tests := []struct {
		strat Strategy
		want  []int64
	}{
		{FIFO, []int64{1, 3, 2}},
		{LIFO, []int64{2, 3, 1}},
		{HIFO, []int64{3, 1, 2}},
		{LOFO, []int64{2, 1, 3}},
	}
	for _, tt := range tests {
		sorted := make([]*Lot, len(lots))
		copy(sorted, lots)
		sort.SliceStable(sorted, func(i, j int) bool { return tt.strat.less(sorted[i], sorted[j]) })
		for i, lot := range sorted {
			if lot.ID != tt.want[i] {
				t.Errorf("%v: position %d = lot %d, want lot %d", tt.strat, i, lot.ID, tt.want[i])
			}
		}
	}
}

func TestStrategyTieBreakIsDeterministic(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a := testLot(10, at, 1, 300)
	b := testLot(20, at, 1, 300)

	for _, s := range []Strategy{FIFO, HIFO, LOFO} {
		if !s.less(a, b) || s.less(b, a) {
			t.Errorf("%v: equal lots must order by ascending id", s)
		}
	}
	if !LIFO.less(b, a) || LIFO.less(a, b) {
		t.Errorf("LIFO: equal lots must order by descending id")
	}
}
