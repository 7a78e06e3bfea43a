package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/portfoliotracker/src/models"
)

// maxTraceDepth caps the deep-trace recursion. Real histories are a few
// levels deep; the cap only matters for pathological self-referential data
// and keeps the tracer total.
const maxTraceDepth = 64

// tracer resolves consumption records back through the ledgers into
// provenance trees. Every node is scaled by the fraction of its lot the
// consumer actually took, so the leaves of a tree sum back to the root
// amounts instead of double counting shared lots.
type tracer struct {
	sim *simulation
}

// cashTrace expands a list of cash-ledger consumptions into sale and deposit
// funding nodes. scale is the cumulative allocation fraction inherited from
// the consumers above this level; the top-level call passes one.
func (t *tracer) cashTrace(cons []Consumption, scale decimal.Decimal, deep bool, depth int) ([]models.SaleTrace, []models.DepositTrace) {
	var sells []models.SaleTrace
	var deposits []models.DepositTrace
	if depth > maxTraceDepth {
		return sells, deposits
	}

	for _, c := range cons {
		lot := t.sim.cash.lot(c.LotID)
		if lot == nil {
			// Unknown-basis sentinel: cash with no recorded origin.
			deposits = append(deposits, models.DepositTrace{
				TransactionID: 0,
				Currency:      c.Asset,
				AmountUsd:     0,
			})
			continue
		}

		f := lotFraction(c, lot).Mul(scale)
		origin := t.sim.txByID[lot.ID]

		switch t.sim.kindByTx[lot.ID] {
		case opCashDeposit:
			deposits = append(deposits, models.DepositTrace{
				TransactionID: lot.ID,
				Currency:      lot.Asset,
				Datetime:      formatTraceTime(lot.AcquiredAt),
				AmountUsd:     lot.ProceedsUsd.Mul(f).InexactFloat64(),
			})

		case opSell:
			sells = append(sells, models.SaleTrace{
				TransactionID: lot.ID,
				Asset:         symbol(origin.FromAsset),
				Datetime:      formatTraceTime(lot.AcquiredAt),
				QuantitySold:  decimal.NewFromFloat(origin.FromQuantity).Mul(f).InexactFloat64(),
				ProceedsUsd:   lot.ProceedsUsd.Mul(f).InexactFloat64(),
				CostBasisUsd:  lot.CostBasisUsd.Mul(f).InexactFloat64(),
				BuyLots:       t.buyLots(t.sim.assetConsumed[lot.ID], f, deep, depth+1),
			})

		case opConvert:
			// Fiat conversions are transparent: the converted cash keeps its
			// ancestry, so the convert's own funding is flattened in place.
			s, d := t.cashTrace(t.sim.cashConsumed[lot.ID], f, deep, depth+1)
			sells = append(sells, s...)
			deposits = append(deposits, d...)
		}
	}
	return sells, deposits
}

// buyLots expands asset-ledger consumptions into the acquisition lots a sale
// or swap drew from. In deep mode each lot is further expanded into its own
// funding: purchase cash for buys, source-asset lots for swaps.
func (t *tracer) buyLots(cons []Consumption, scale decimal.Decimal, deep bool, depth int) []models.BuyLotTrace {
	var out []models.BuyLotTrace
	if depth > maxTraceDepth {
		return out
	}

	for _, c := range cons {
		if c.LotID == 0 {
			out = append(out, models.BuyLotTrace{
				BuyTransactionID: 0,
				Asset:            c.Asset,
				Quantity:         c.Quantity.Mul(scale).InexactFloat64(),
				CostBasisUsd:     0,
			})
			continue
		}
		lot := t.sim.assets.lot(c.LotID)
		if lot == nil {
			continue
		}

		f := lotFraction(c, lot).Mul(scale)
		origin := t.sim.txByID[lot.ID]
		node := models.BuyLotTrace{
			BuyTransactionID: lot.ID,
			Asset:            lot.Asset,
			Datetime:         formatTraceTime(lot.AcquiredAt),
			Quantity:         c.Quantity.Mul(scale).InexactFloat64(),
			CostBasisUsd:     c.CostBasisUsd.Mul(scale).InexactFloat64(),
		}

		kind := t.sim.kindByTx[lot.ID]
		if kind == opSwap {
			node.SwappedFromAsset = symbol(origin.FromAsset)
			node.SwappedFromTransactionID = origin.ID
		}

		if deep {
			switch kind {
			case opBuy:
				node.FundingSells, node.FundingDeposits = t.cashTrace(t.sim.cashConsumed[lot.ID], f, deep, depth+1)
				node.FundingDeposits = appendFeeNode(node.FundingDeposits, origin, lot, f)
			case opSwap:
				node.FundingSells = []models.SaleTrace{t.swapSource(origin, f, deep, depth+1)}
				node.FundingDeposits = appendFeeNode(node.FundingDeposits, origin, lot, f)
			case opAssetDeposit:
				node.FundingDeposits = []models.DepositTrace{{
					TransactionID: lot.ID,
					Currency:      lot.Asset,
					Datetime:      formatTraceTime(lot.AcquiredAt),
					AmountUsd:     lot.CostBasisUsd.Mul(f).InexactFloat64(),
				}}
			}
		}
		out = append(out, node)
	}
	return out
}

// swapSource renders the disposal leg of a crypto-to-crypto swap as a sale
// node with Swap set. No gain was realized, so proceeds equal cost basis and
// the node exists purely to carry provenance across the asset change.
func (t *tracer) swapSource(swapTx models.Transaction, scale decimal.Decimal, deep bool, depth int) models.SaleTrace {
	sources := t.sim.swapSources[swapTx.ID]
	basis := sumBasis(sources).Mul(scale)
	return models.SaleTrace{
		TransactionID: swapTx.ID,
		Asset:         symbol(swapTx.FromAsset),
		Datetime:      formatTraceTime(swapTx.Timestamp),
		QuantitySold:  decimal.NewFromFloat(swapTx.FromQuantity).Mul(scale).InexactFloat64(),
		ProceedsUsd:   basis.InexactFloat64(),
		CostBasisUsd:  basis.InexactFloat64(),
		Swap:          true,
		BuyLots:       t.buyLots(sources, scale, deep, depth),
	}
}

// appendFeeNode accounts for the fee portion of an acquisition's basis.
// Fees are folded into lot basis at acquisition time but come from outside
// the ledgers, so without this node the funding children of a fee-bearing
// buy or swap would sum short of the lot's basis.
func appendFeeNode(deposits []models.DepositTrace, origin models.Transaction, lot *Lot, scale decimal.Decimal) []models.DepositTrace {
	fee := decimal.NewFromFloat(origin.FeesUsd)
	if !fee.IsPositive() {
		return deposits
	}
	return append(deposits, models.DepositTrace{
		TransactionID: lot.ID,
		Currency:      "USD",
		Datetime:      formatTraceTime(lot.AcquiredAt),
		AmountUsd:     fee.Mul(scale).InexactFloat64(),
		Fee:           true,
	})
}

// lotFraction is the share of a lot one consumption took. Quantity ratio is
// exact here because lot basis and value were fixed at a single acquisition
// moment, so every slice is proportional.
func lotFraction(c Consumption, lot *Lot) decimal.Decimal {
	if lot.OriginalQuantity.IsPositive() {
		return c.Quantity.Div(lot.OriginalQuantity)
	}
	return decimal.Zero
}

func formatTraceTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
