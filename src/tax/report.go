// Package tax implements the cost-basis engine: lot ledgers, consumption
// strategies, a deterministic ledger simulation over the transaction
// history, and provenance tracing from every taxable fiat withdrawal back
// to the deposits that ultimately funded it.
package tax

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/portfoliotracker/src/fx"
	"github.com/username/portfoliotracker/src/models"
)

// Options tunes engine behavior that is not part of the strategy choice.
type Options struct {
	Policy            fx.Policy
	FallbackRonPerUsd float64
}

// Calculator is the stateless engine entry point. It owns no transaction
// data: every call receives the full history and replays it from scratch,
// so identical inputs always produce identical reports.
type Calculator struct {
	rates fx.Provider
	opts  Options
}

func NewCalculator(rates fx.Provider, opts Options) *Calculator {
	return &Calculator{rates: rates, opts: opts}
}

// Report computes the tax report for one calendar year. The whole history
// is simulated so lots opened in prior years carry their basis forward, but
// only withdrawals dated inside the reporting year become taxable events.
func (c *Calculator) Report(txs []models.Transaction, cfg StrategyConfig, year int) (*models.TaxReport, error) {
	ops, err := classify(txs)
	if err != nil {
		return nil, err
	}

	if len(ops) > 0 {
		first := ops[0].tx.Timestamp
		end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		if end.After(first) {
			if err := c.rates.Preload(first, end); err != nil {
				return nil, fmt.Errorf("computing report for %d: %w", year, err)
			}
		}
	}

	sim := newSimulation(cfg, c.rates)
	if err := sim.run(ops); err != nil {
		return nil, fmt.Errorf("computing report for %d: %w", year, err)
	}

	report := &models.TaxReport{
		Year:          year,
		AssetStrategy: cfg.Asset.String(),
		CashStrategy:  cfg.Cash.String(),
		TaxableEvents: []models.TaxableEvent{},
	}

	tr := &tracer{sim: sim}
	totalUsd, totalRon := decimal.Zero, decimal.Zero
	basisUsd, basisRon := decimal.Zero, decimal.Zero

	for _, op := range ops {
		if op.kind != opCashWithdrawal || op.tx.Timestamp.Year() != year {
			continue
		}
		event, err := c.buildEvent(sim, tr, op.tx)
		if err != nil {
			return nil, fmt.Errorf("computing report for %d: %w", year, err)
		}
		report.TaxableEvents = append(report.TaxableEvents, event)

		totalUsd = totalUsd.Add(decimal.NewFromFloat(event.FiatAmountUsd))
		totalRon = totalRon.Add(decimal.NewFromFloat(event.FiatAmountRon))
		basisUsd = basisUsd.Add(decimal.NewFromFloat(event.CostBasisUsd))
		basisRon = basisRon.Add(decimal.NewFromFloat(event.CostBasisRon))
	}

	report.TotalWithdrawalsUsd = totalUsd.InexactFloat64()
	report.TotalWithdrawalsRon = totalRon.InexactFloat64()
	report.TotalCostBasisUsd = basisUsd.InexactFloat64()
	report.TotalCostBasisRon = basisRon.InexactFloat64()
	report.TotalGainLossUsd = totalUsd.Sub(basisUsd).InexactFloat64()
	report.TotalGainLossRon = totalRon.Sub(basisRon).InexactFloat64()
	return report, nil
}

func (c *Calculator) buildEvent(sim *simulation, tr *tracer, tx models.Transaction) (models.TaxableEvent, error) {
	cons := sim.cashConsumed[tx.ID]
	costBasisUsd := sumBasis(cons)

	fiatUsd, err := sim.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
	if err != nil {
		return models.TaxableEvent{}, err
	}
	usdRon, err := c.rates.Rate("USD", "RON", tx.Timestamp)
	if err != nil {
		return models.TaxableEvent{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	ron := decimal.NewFromFloat(usdRon)

	fiatRon := fiatUsd.Mul(ron)
	costBasisRon := costBasisUsd.Mul(ron)

	shallowSells, shallowDeposits := tr.cashTrace(cons, decimal.NewFromInt(1), false, 0)
	deepSells, _ := tr.cashTrace(cons, decimal.NewFromInt(1), true, 0)

	return models.TaxableEvent{
		TransactionID:   tx.ID,
		Datetime:        formatTraceTime(tx.Timestamp),
		Currency:        symbol(tx.ToAsset),
		FiatAmount:      tx.ToQuantity,
		FiatAmountUsd:   fiatUsd.InexactFloat64(),
		FiatAmountRon:   fiatRon.InexactFloat64(),
		CostBasisUsd:    costBasisUsd.InexactFloat64(),
		CostBasisRon:    costBasisRon.InexactFloat64(),
		GainLossUsd:     fiatUsd.Sub(costBasisUsd).InexactFloat64(),
		GainLossRon:     fiatRon.Sub(costBasisRon).InexactFloat64(),
		SaleTrace:       shallowSells,
		SaleTraceDeep:   deepSells,
		FundingDeposits: shallowDeposits,
	}, nil
}

// Holdings replays the full history and returns every asset position that
// still has open lots, sorted by asset symbol.
func (c *Calculator) Holdings(txs []models.Transaction, cfg StrategyConfig) ([]models.Holding, error) {
	ops, err := classify(txs)
	if err != nil {
		return nil, err
	}
	sim := newSimulation(cfg, c.rates)
	if err := sim.run(ops); err != nil {
		return nil, err
	}

	var holdings []models.Holding
	for asset, lots := range sim.assets.lots {
		qty, basis := decimal.Zero, decimal.Zero
		open := 0
		for _, lot := range lots {
			if !lot.RemainingQuantity.IsPositive() {
				continue
			}
			open++
			qty = qty.Add(lot.RemainingQuantity)
			if lot.OriginalQuantity.IsPositive() {
				basis = basis.Add(lot.CostBasisUsd.Mul(lot.RemainingQuantity).Div(lot.OriginalQuantity))
			}
		}
		if open == 0 {
			continue
		}
		avg := decimal.Zero
		if qty.IsPositive() {
			avg = basis.Div(qty)
		}
		holdings = append(holdings, models.Holding{
			Asset:        asset,
			Quantity:     qty.InexactFloat64(),
			CostBasisUsd: basis.InexactFloat64(),
			AvgCostUsd:   avg.InexactFloat64(),
			Lots:         open,
		})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Asset < holdings[j].Asset })
	return holdings, nil
}

// Cashflow aggregates money movement over the whole history. USD values use
// the transaction's own recorded prices; movements without a price fall back
// to the FX provider through the simulation's valuation rules.
func (c *Calculator) Cashflow(txs []models.Transaction, cfg StrategyConfig) (*models.CashflowReport, error) {
	ops, err := classify(txs)
	if err != nil {
		return nil, err
	}
	sim := newSimulation(cfg, c.rates)

	report := &models.CashflowReport{YearlyFlow: make(map[string]models.YearlyFlow)}
	sum := &report.Summary
	sum.TotalTransactions = len(ops)

	addFlow := func(when time.Time, in, out decimal.Decimal) {
		key := fmt.Sprintf("%d", when.Year())
		y := report.YearlyFlow[key]
		y.TotalIn += in.InexactFloat64()
		y.TotalOut += out.InexactFloat64()
		y.NetFlow = y.TotalIn - y.TotalOut
		report.YearlyFlow[key] = y
	}

	for _, op := range ops {
		tx := op.tx
		switch op.kind {
		case opCashDeposit:
			value, err := sim.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return nil, err
			}
			sum.TotalMoneyIn += value.InexactFloat64()
			sum.TotalBankDeposits += value.InexactFloat64()
			addFlow(tx.Timestamp, value, decimal.Zero)
		case opCashWithdrawal:
			value, err := sim.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return nil, err
			}
			sum.TotalMoneyOut += value.InexactFloat64()
			sum.TotalBankWithdrawals += value.InexactFloat64()
			sum.TotalTaxableEvents++
			addFlow(tx.Timestamp, decimal.Zero, value)
		case opBuy:
			value, err := sim.cashUsdValue(tx, tx.FromAsset, tx.FromQuantity, tx.FromPriceUsd)
			if err != nil {
				return nil, err
			}
			sum.TotalAssetPurchases += value.InexactFloat64()
		case opSell:
			value, err := sim.cashUsdValue(tx, tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd)
			if err != nil {
				return nil, err
			}
			sum.TotalAssetSales += value.InexactFloat64()
		}
	}

	sum.NetMoneyFlow = sum.TotalMoneyIn - sum.TotalMoneyOut
	sum.NetBankFlow = sum.TotalBankDeposits - sum.TotalBankWithdrawals
	sum.NetAssetTrading = sum.TotalAssetSales - sum.TotalAssetPurchases
	return report, nil
}
