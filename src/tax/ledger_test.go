package tax

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestConsumeProportionalBasis(t *testing.T) {
	l := newLedger()
	l.acquire(testLot(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10, 100))

	cons := l.consume("BTC", decimal.NewFromInt(4), FIFO, 99)
	if len(cons) != 1 {
		t.Fatalf("expected 1 consumption, got %d", len(cons))
	}
	if !cons[0].CostBasisUsd.Equal(decimal.NewFromInt(40)) {
		t.Errorf("basis = %s, want 40", cons[0].CostBasisUsd)
	}
	if !l.lot(1).RemainingQuantity.Equal(decimal.NewFromInt(6)) {
		t.Errorf("remaining = %s, want 6", l.lot(1).RemainingQuantity)
	}
	if cons[0].DisposalTxID != 99 || cons[0].LotID != 1 {
		t.Errorf("audit ids = (%d, %d), want (99, 1)", cons[0].DisposalTxID, cons[0].LotID)
	}
}

func TestConsumeSpansLots(t *testing.T) {
	l := newLedger()
	l.acquire(testLot(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2, 200))
	l.acquire(testLot(2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 3, 600))

	cons := l.consume("BTC", decimal.NewFromInt(4), FIFO, 50)
	if len(cons) != 2 {
		t.Fatalf("expected 2 consumptions, got %d", len(cons))
	}
	if !sumQuantity(cons).Equal(decimal.NewFromInt(4)) {
		t.Errorf("consumed quantity = %s, want 4", sumQuantity(cons))
	}
	// All of lot 1 (basis 200) plus 2 of lot 2's 3 units (basis 400).
	if !sumBasis(cons).Equal(decimal.NewFromInt(600)) {
		t.Errorf("consumed basis = %s, want 600", sumBasis(cons))
	}
	if !l.openQuantity("BTC").Equal(decimal.NewFromInt(1)) {
		t.Errorf("open quantity = %s, want 1", l.openQuantity("BTC"))
	}
}

func TestConsumeDeficitUsesZeroBasisSentinel(t *testing.T) {
	l := newLedger()
	l.acquire(testLot(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 100))

	cons := l.consume("BTC", decimal.NewFromInt(3), FIFO, 7)
	if len(cons) != 2 {
		t.Fatalf("expected 2 consumptions, got %d", len(cons))
	}
	last := cons[len(cons)-1]
	if last.LotID != 0 {
		t.Errorf("deficit lot id = %d, want sentinel 0", last.LotID)
	}
	if !last.CostBasisUsd.IsZero() {
		t.Errorf("sentinel basis = %s, want 0", last.CostBasisUsd)
	}
	if !last.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("sentinel quantity = %s, want 2", last.Quantity)
	}
	if !sumQuantity(cons).Equal(decimal.NewFromInt(3)) {
		t.Errorf("total consumed = %s, want 3", sumQuantity(cons))
	}
}

func TestDrainedLotStaysResolvable(t *testing.T) {
	l := newLedger()
	l.acquire(testLot(42, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5, 50))

	l.consume("BTC", decimal.NewFromInt(5), FIFO, 1)
	lot := l.lot(42)
	if lot == nil {
		t.Fatal("drained lot no longer resolvable by transaction id")
	}
	if !lot.RemainingQuantity.IsZero() {
		t.Errorf("remaining = %s, want 0", lot.RemainingQuantity)
	}
	if !lot.OriginalQuantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("original quantity mutated: %s", lot.OriginalQuantity)
	}
}

func TestConsumeHIFOPicksPriciestFirst(t *testing.T) {
	l := newLedger()
	l.acquire(testLot(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 100))
	l.acquire(testLot(2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1, 900))

	cons := l.consume("BTC", decimal.NewFromInt(1), HIFO, 5)
	if len(cons) != 1 || cons[0].LotID != 2 {
		t.Fatalf("HIFO consumed lot %d, want 2", cons[0].LotID)
	}

	cons = l.consume("BTC", decimal.NewFromInt(1), LOFO, 6)
	if len(cons) != 1 || cons[0].LotID != 1 {
		t.Fatalf("LOFO consumed lot %d, want 1", cons[0].LotID)
	}
}
