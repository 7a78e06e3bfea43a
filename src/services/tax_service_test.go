package services

import (
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"

	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/models"
	"github.com/username/portfoliotracker/src/tax"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type stubRates struct{}

func (stubRates) Rate(from, to string, on time.Time) (float64, error) {
	rates := map[string]float64{"USD": 1, "RON": 4, "EUR": 0.9}
	return rates[to] / rates[from], nil
}

func (stubRates) Preload(from, to time.Time) error { return nil }

type stubStore struct {
	txs       []models.Transaction
	listCalls int
}

func (s *stubStore) ListByUser(userID int64) ([]models.Transaction, error) {
	s.listCalls++
	return s.txs, nil
}

func (s *stubStore) Create(userID int64, tx *models.Transaction) error { return nil }
func (s *stubStore) CreateBatch(userID int64, txs []models.Transaction) (int, error) {
	return len(txs), nil
}
func (s *stubStore) Delete(userID, txID int64) error       { return nil }
func (s *stubStore) DeleteAll(userID int64) (int64, error) { return 0, nil }

func fixtureHistory() []models.Transaction {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }
	return []models.Transaction{
		{ID: 1, Kind: models.KindDeposit, Timestamp: day(1), ToAsset: "USD", ToQuantity: 1000},
		{ID: 2, Kind: models.KindSwap, Timestamp: day(2), FromAsset: "USD", FromQuantity: 1000, ToAsset: "BTC", ToQuantity: 1},
		{ID: 3, Kind: models.KindSwap, Timestamp: day(3), FromAsset: "BTC", FromQuantity: 1, ToAsset: "USD", ToQuantity: 1400},
		{ID: 4, Kind: models.KindWithdrawal, Timestamp: day(4), ToAsset: "USD", ToQuantity: 1400},
	}
}

func newTestTaxService(store TransactionStore) *TaxService {
	calculator := tax.NewCalculator(stubRates{}, tax.Options{})
	return NewTaxService(store, calculator, cache.New(time.Minute, time.Minute))
}

func TestTaxReportComputesAndCaches(t *testing.T) {
	store := &stubStore{txs: fixtureHistory()}
	svc := newTestTaxService(store)
	cfg := tax.StrategyConfig{Asset: tax.FIFO, Cash: tax.FIFO}

	report, err := svc.TaxReport(7, cfg, 2024)
	require.NoError(t, err)
	require.Len(t, report.TaxableEvents, 1)
	require.InDelta(t, 400, report.TotalGainLossUsd, 1e-6)
	require.Equal(t, 1, store.listCalls)

	again, err := svc.TaxReport(7, cfg, 2024)
	require.NoError(t, err)
	require.Equal(t, report, again)
	require.Equal(t, 1, store.listCalls, "second request must be served from cache")
}

func TestTaxReportCacheKeyedByStrategyAndYear(t *testing.T) {
	store := &stubStore{txs: fixtureHistory()}
	svc := newTestTaxService(store)

	_, err := svc.TaxReport(7, tax.StrategyConfig{Asset: tax.FIFO}, 2024)
	require.NoError(t, err)
	_, err = svc.TaxReport(7, tax.StrategyConfig{Asset: tax.HIFO}, 2024)
	require.NoError(t, err)
	_, err = svc.TaxReport(7, tax.StrategyConfig{Asset: tax.FIFO}, 2023)
	require.NoError(t, err)
	require.Equal(t, 3, store.listCalls, "each strategy/year pair computes once")
}

func TestInvalidateUserCache(t *testing.T) {
	store := &stubStore{txs: fixtureHistory()}
	svc := newTestTaxService(store)
	cfg := tax.StrategyConfig{}

	_, err := svc.TaxReport(7, cfg, 2024)
	require.NoError(t, err)
	_, err = svc.Holdings(7, cfg)
	require.NoError(t, err)
	_, err = svc.Cashflow(7, cfg)
	require.NoError(t, err)
	calls := store.listCalls

	svc.InvalidateUserCache(7)

	_, err = svc.TaxReport(7, cfg, 2024)
	require.NoError(t, err)
	_, err = svc.Holdings(7, cfg)
	require.NoError(t, err)
	_, err = svc.Cashflow(7, cfg)
	require.NoError(t, err)
	require.Equal(t, calls+3, store.listCalls, "invalidation must force recomputation")
}

func TestHoldingsAndCashflow(t *testing.T) {
	history := fixtureHistory()[:2] // deposit + buy, BTC still held
	store := &stubStore{txs: history}
	svc := newTestTaxService(store)

	holdings, err := svc.Holdings(7, tax.StrategyConfig{})
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "BTC", holdings[0].Asset)
	require.InDelta(t, 1000, holdings[0].CostBasisUsd, 1e-6)

	flow, err := svc.Cashflow(7, tax.StrategyConfig{})
	require.NoError(t, err)
	require.InDelta(t, 1000, flow.Summary.TotalMoneyIn, 1e-6)
	require.Equal(t, 2, flow.Summary.TotalTransactions)
}
