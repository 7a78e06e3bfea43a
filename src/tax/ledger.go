package tax

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/portfoliotracker/src/logger"
)

// Lot is a quantity of one asset acquired at a specific time and cost basis.
// Lots are never deleted, only drained: RemainingQuantity reaches zero but
// the lot stays in the ledger so provenance lookups can still resolve it.
//
// The same type backs both ledgers. For asset lots CostBasisUsd is the USD
// value paid; for cash lots CostBasisUsd is the basis carried over from the
// sold asset and ProceedsUsd is the USD value of the cash itself at
// acquisition time.
type Lot struct {
	ID                int64 // originating transaction id; 0 for the unknown-basis sentinel
	Asset             string
	AcquiredAt        time.Time
	OriginalQuantity  decimal.Decimal
	RemainingQuantity decimal.Decimal
	CostBasisUsd      decimal.Decimal
	UnitCostUsd       decimal.Decimal
	ProceedsUsd       decimal.Decimal
}

// Consumption records that a disposal took a slice of a lot. It is the
// append-only audit trail the provenance tracer replays. For a given
// disposal the consumed quantities sum to the disposed quantity and the
// consumed cost bases sum to the total basis removed.
type Consumption struct {
	DisposalTxID int64
	LotID        int64
	Asset        string
	Quantity     decimal.Decimal
	CostBasisUsd decimal.Decimal
}

// ledger holds the open and drained lots of every asset (or cash currency)
// in one namespace. Lookup is by originating transaction id, arena style,
// rather than by live pointers between lots.
type ledger struct {
	lots  map[string][]*Lot
	index map[int64]*Lot
}

func newLedger() *ledger {
	return &ledger{
		lots:  make(map[string][]*Lot),
		index: make(map[int64]*Lot),
	}
}

func (l *ledger) acquire(lot *Lot) {
	l.lots[lot.Asset] = append(l.lots[lot.Asset], lot)
	if lot.ID != 0 {
		l.index[lot.ID] = lot
	}
}

// lot returns the lot created by the given transaction, or nil.
func (l *ledger) lot(txID int64) *Lot { return l.index[txID] }

// openQuantity is the total remaining quantity across an asset's lots.
func (l *ledger) openQuantity(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots[asset] {
		total = total.Add(lot.RemainingQuantity)
	}
	return total
}

// consume removes quantity from the asset's open lots in the order given by
// the strategy and returns the exact slices used. If the open lots cannot
// cover the disposal the deficit is consumed against a synthesized
// zero-basis lot instead of failing: partial or missing history degrades to
// a conservative (higher-gain) result, and the report stays computable.
func (l *ledger) consume(asset string, quantity decimal.Decimal, strat Strategy, disposalTxID int64) []Consumption {
	open := make([]*Lot, 0, len(l.lots[asset]))
	for _, lot := range l.lots[asset] {
		if lot.RemainingQuantity.IsPositive() {
			open = append(open, lot)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return strat.less(open[i], open[j]) })

	var out []Consumption
	remaining := quantity
	for _, lot := range open {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingQuantity, remaining)
		basis := decimal.Zero
		if lot.OriginalQuantity.IsPositive() {
			basis = lot.CostBasisUsd.Mul(take).Div(lot.OriginalQuantity)
		}
		out = append(out, Consumption{
			DisposalTxID: disposalTxID,
			LotID:        lot.ID,
			Asset:        asset,
			Quantity:     take,
			CostBasisUsd: basis,
		})
		lot.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		if logger.L != nil {
			logger.L.Warn("disposal exceeds known open lots, consuming unknown-basis remainder",
				"asset", asset,
				"transactionId", disposalTxID,
				"deficit", remaining.String())
		}
		out = append(out, Consumption{
			DisposalTxID: disposalTxID,
			LotID:        0,
			Asset:        asset,
			Quantity:     remaining,
			CostBasisUsd: decimal.Zero,
		})
	}
	return out
}
