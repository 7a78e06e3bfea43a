package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/models"
	"github.com/username/portfoliotracker/src/tax"
)

// Cache key prefixes. Every computed report is cached per user; any write to
// the user's transactions must invalidate all of them.
const (
	ckTaxReport = "taxReport"
	ckCashflow  = "cashflow"
	ckHoldings  = "holdings"
)

// TaxService runs the tax engine over a user's stored history and caches the
// resulting reports.
type TaxService struct {
	store       TransactionStore
	calculator  *tax.Calculator
	reportCache *cache.Cache
}

func NewTaxService(store TransactionStore, calculator *tax.Calculator, reportCache *cache.Cache) *TaxService {
	return &TaxService{
		store:       store,
		calculator:  calculator,
		reportCache: reportCache,
	}
}

// TaxReport computes (or serves from cache) the report for one user, year
// and strategy pair.
func (s *TaxService) TaxReport(userID int64, cfg tax.StrategyConfig, year int) (*models.TaxReport, error) {
	key := fmt.Sprintf("%s:%d:%d:%s:%s", ckTaxReport, userID, year, cfg.Asset, cfg.Cash)
	if cached, found := s.reportCache.Get(key); found {
		logger.L.Debug("Tax report served from cache", "userID", userID, "year", year)
		return cached.(*models.TaxReport), nil
	}

	txs, err := s.store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	report, err := s.calculator.Report(txs, cfg, year)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Tax report computed",
		"userID", userID,
		"year", year,
		"assetStrategy", cfg.Asset.String(),
		"cashStrategy", cfg.Cash.String(),
		"transactionCount", len(txs),
		"taxableEvents", len(report.TaxableEvents),
		"durationMs", time.Since(started).Milliseconds())

	s.reportCache.Set(key, report, cache.DefaultExpiration)
	return report, nil
}

// Cashflow computes (or serves from cache) the user's money-flow summary.
func (s *TaxService) Cashflow(userID int64, cfg tax.StrategyConfig) (*models.CashflowReport, error) {
	key := fmt.Sprintf("%s:%d", ckCashflow, userID)
	if cached, found := s.reportCache.Get(key); found {
		return cached.(*models.CashflowReport), nil
	}

	txs, err := s.store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	report, err := s.calculator.Cashflow(txs, cfg)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(key, report, cache.DefaultExpiration)
	return report, nil
}

// Holdings computes (or serves from cache) the user's open positions.
func (s *TaxService) Holdings(userID int64, cfg tax.StrategyConfig) ([]models.Holding, error) {
	key := fmt.Sprintf("%s:%d", ckHoldings, userID)
	if cached, found := s.reportCache.Get(key); found {
		return cached.([]models.Holding), nil
	}

	txs, err := s.store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.calculator.Holdings(txs, cfg)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(key, holdings, cache.DefaultExpiration)
	return holdings, nil
}

// InvalidateUserCache drops every cached report derived from the user's
// transactions. Called after any write to the history.
func (s *TaxService) InvalidateUserCache(userID int64) {
	// Year/strategy variants of the tax report share the same key prefix.
	prefix := fmt.Sprintf("%s:%d:", ckTaxReport, userID)
	for key := range s.reportCache.Items() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.reportCache.Delete(key)
		}
	}
	s.reportCache.Delete(fmt.Sprintf("%s:%d", ckCashflow, userID))
	s.reportCache.Delete(fmt.Sprintf("%s:%d", ckHoldings, userID))
	logger.L.Debug("Invalidated cached reports", "userID", userID)
}
