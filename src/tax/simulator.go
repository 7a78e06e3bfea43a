package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/portfoliotracker/src/fx"
	"github.com/username/portfoliotracker/src/models"
)

// simulation replays the canonical event stream through one asset ledger
// and one cash ledger, recording every consumption. It is built fresh for
// every report: no state survives between invocations, which is what makes
// the engine a pure function of (history, strategy, rates).
type simulation struct {
	assets *ledger
	cash   *ledger
	cfg    StrategyConfig
	rates  fx.Provider

	// Consumptions recorded per consuming transaction. A Buy consumes cash,
	// a Sell or Swap consumes assets, a Withdrawal consumes either.
	cashConsumed  map[int64][]Consumption
	assetConsumed map[int64][]Consumption

	// Backward index for swap provenance: destination lot id (== swap
	// transaction id) to the source-asset slices that funded it. Built
	// during the pass so the tracer never rescans the event stream.
	swapSources map[int64][]Consumption

	txByID   map[int64]models.Transaction
	kindByTx map[int64]opKind
	ops      []operation
}

func newSimulation(cfg StrategyConfig, rates fx.Provider) *simulation {
	return &simulation{
		assets:        newLedger(),
		cash:          newLedger(),
		cfg:           cfg,
		rates:         rates,
		cashConsumed:  make(map[int64][]Consumption),
		assetConsumed: make(map[int64][]Consumption),
		swapSources:   make(map[int64][]Consumption),
		txByID:        make(map[int64]models.Transaction),
		kindByTx:      make(map[int64]opKind),
	}
}

// run executes the single forward pass. Disposal legs run before
// acquisition legs within one transaction, so a Buy pays with cash that
// existed before it and a Swap's destination basis is exactly what its
// source lots surrendered.
func (s *simulation) run(ops []operation) error {
	s.ops = ops
	for _, op := range ops {
		tx := op.tx
		s.txByID[tx.ID] = tx
		s.kindByTx[tx.ID] = op.kind

		switch op.kind {
		case opCashDeposit:
			value, err := s.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return err
			}
			s.cash.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, value, value))

		case opAssetDeposit:
			qty := decimal.NewFromFloat(tx.ToQuantity)
			basis := qty.Mul(decimal.NewFromFloat(tx.ToPriceUsd))
			s.assets.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, basis, basis))

		case opCashWithdrawal:
			cons := s.cash.consume(symbol(tx.ToAsset), decimal.NewFromFloat(tx.ToQuantity), s.cfg.Cash, tx.ID)
			s.cashConsumed[tx.ID] = cons

		case opAssetWithdrawal:
			cons := s.assets.consume(symbol(tx.ToAsset), decimal.NewFromFloat(tx.ToQuantity), s.cfg.Asset, tx.ID)
			s.assetConsumed[tx.ID] = cons

		case opBuy:
			cons := s.cash.consume(symbol(tx.FromAsset), decimal.NewFromFloat(tx.FromQuantity), s.cfg.Cash, tx.ID)
			s.cashConsumed[tx.ID] = cons
			basis := sumBasis(cons).Add(decimal.NewFromFloat(tx.FeesUsd))
			s.assets.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, basis, basis))

		case opSell:
			cons := s.assets.consume(symbol(tx.FromAsset), decimal.NewFromFloat(tx.FromQuantity), s.cfg.Asset, tx.ID)
			s.assetConsumed[tx.ID] = cons
			proceeds, err := s.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return err
			}
			proceeds = proceeds.Sub(decimal.NewFromFloat(tx.FeesUsd))
			s.cash.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, sumBasis(cons), proceeds))

		case opSwap:
			cons := s.assets.consume(symbol(tx.FromAsset), decimal.NewFromFloat(tx.FromQuantity), s.cfg.Asset, tx.ID)
			s.assetConsumed[tx.ID] = cons
			s.swapSources[tx.ID] = cons
			basis := sumBasis(cons).Add(decimal.NewFromFloat(tx.FeesUsd))
			s.assets.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, basis, basis))

		case opConvert:
			cons := s.cash.consume(symbol(tx.FromAsset), decimal.NewFromFloat(tx.FromQuantity), s.cfg.Cash, tx.ID)
			s.cashConsumed[tx.ID] = cons
			value, err := s.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return err
			}
			s.cash.acquire(s.newLot(tx, tx.ToAsset, tx.ToQuantity, sumBasis(cons), value))
		}
	}
	return nil
}

func (s *simulation) newLot(tx models.Transaction, asset string, quantity float64, basis, proceeds decimal.Decimal) *Lot {
	qty := decimal.NewFromFloat(quantity)
	unit := decimal.Zero
	if qty.IsPositive() {
		unit = basis.Div(qty)
	}
	return &Lot{
		ID:                tx.ID,
		Asset:             symbol(asset),
		AcquiredAt:        tx.Timestamp,
		OriginalQuantity:  qty,
		RemainingQuantity: qty,
		CostBasisUsd:      basis,
		UnitCostUsd:       unit,
		ProceedsUsd:       proceeds,
	}
}

// cashUsdValue converts a cash quantity to USD: directly for USD, via the
// transaction's own recorded price when present, otherwise through the FX
// provider at the transaction date.
func (s *simulation) cashUsdValue(tx models.Transaction, currency string, quantity, priceUsd float64) (decimal.Decimal, error) {
	qty := decimal.NewFromFloat(quantity)
	if symbol(currency) == "USD" {
		return qty, nil
	}
	if priceUsd > 0 {
		return qty.Mul(decimal.NewFromFloat(priceUsd)), nil
	}
	rate, err := s.rates.Rate(symbol(currency), "USD", tx.Timestamp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	return qty.Mul(decimal.NewFromFloat(rate)), nil
}

func sumBasis(cons []Consumption) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cons {
		total = total.Add(c.CostBasisUsd)
	}
	return total
}

func sumQuantity(cons []Consumption) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cons {
		total = total.Add(c.Quantity)
	}
	return total
}

func symbol(asset string) string { return strings.ToUpper(strings.TrimSpace(asset)) }
