package tax

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/username/portfoliotracker/src/models"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)
}

func TestClassifyAcceptsOrderedInput(t *testing.T) {
	txs := []models.Transaction{
		{ID: 1, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: 1},
		{ID: 2, Kind: models.KindDeposit, Timestamp: at(2, 0), ToAsset: "USD", ToQuantity: 1},
		{ID: 3, Kind: models.KindDeposit, Timestamp: at(2, 0), ToAsset: "USD", ToQuantity: 1},
	}
	ops, err := classify(txs)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("ops = %d, want 3", len(ops))
	}
}

func TestClassifyRejectsOutOfOrderInput(t *testing.T) {
	tests := []struct {
		name string
		txs  []models.Transaction
		frag string
	}{
		{
			"timestamp goes backwards",
			[]models.Transaction{
				{ID: 1, Kind: models.KindDeposit, Timestamp: at(2, 0), ToAsset: "USD", ToQuantity: 1},
				{ID: 2, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: 1},
			},
			"transaction 2",
		},
		{
			"id goes backwards within one timestamp",
			[]models.Transaction{
				{ID: 5, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: 1},
				{ID: 3, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: 1},
			},
			"transaction 3",
		},
		{
			"duplicate transaction id",
			[]models.Transaction{
				{ID: 4, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: 1},
				{ID: 4, Kind: models.KindDeposit, Timestamp: at(2, 0), ToAsset: "USD", ToQuantity: 1},
			},
			"duplicate transaction id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classify(tt.txs)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("error not wrapped in ErrMalformedInput: %v", err)
			}
			if !strings.Contains(err.Error(), tt.frag) {
				t.Errorf("error %q missing %q", err, tt.frag)
			}
		})
	}
}

func TestClassifySwapLegMapping(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     opKind
	}{
		{"fiat to crypto is a buy", "USD", "BTC", opBuy},
		{"crypto to fiat is a sell", "BTC", "EUR", opSell},
		{"crypto to crypto is a swap", "SOL", "ADA", opSwap},
		{"fiat to fiat is a conversion", "EUR", "RON", opConvert},
		{"stablecoin counts as cash", "BTC", "USDT", opSell},
		{"stablecoin to crypto is a buy", "USDC", "ETH", opBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := classify([]models.Transaction{{
				ID: 1, Kind: models.KindSwap, Timestamp: at(1, 0),
				FromAsset: tt.from, FromQuantity: 1,
				ToAsset: tt.to, ToQuantity: 1,
			}})
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if ops[0].kind != tt.want {
				t.Errorf("kind = %v, want %v", ops[0].kind, tt.want)
			}
		})
	}
}

func TestClassifyDepositRouting(t *testing.T) {
	ops, err := classify([]models.Transaction{
		{ID: 1, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "RON", ToQuantity: 100},
		{ID: 2, Kind: models.KindDeposit, Timestamp: at(2, 0), ToAsset: "BTC", ToQuantity: 1},
		{ID: 3, Kind: models.KindWithdrawal, Timestamp: at(3, 0), ToAsset: "USD", ToQuantity: 50},
		{ID: 4, Kind: models.KindWithdrawal, Timestamp: at(4, 0), ToAsset: "ETH", ToQuantity: 2},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := []opKind{opCashDeposit, opAssetDeposit, opCashWithdrawal, opAssetWithdrawal}
	for i, op := range ops {
		if op.kind != want[i] {
			t.Errorf("op %d kind = %v, want %v", i, op.kind, want[i])
		}
	}
}

func TestClassifyMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		tx   models.Transaction
		frag string
	}{
		{
			"missing timestamp",
			models.Transaction{ID: 7, Kind: models.KindDeposit, ToAsset: "USD", ToQuantity: 1},
			"transaction 7",
		},
		{
			"missing destination asset",
			models.Transaction{ID: 8, Kind: models.KindDeposit, Timestamp: at(1, 0), ToQuantity: 1},
			"transaction 8",
		},
		{
			"negative quantity",
			models.Transaction{ID: 9, Kind: models.KindDeposit, Timestamp: at(1, 0), ToAsset: "USD", ToQuantity: -1},
			"transaction 9",
		},
		{
			"swap without source leg",
			models.Transaction{ID: 10, Kind: models.KindSwap, Timestamp: at(1, 0), ToAsset: "BTC", ToQuantity: 1},
			"transaction 10",
		},
		{
			"unknown kind",
			models.Transaction{ID: 11, Kind: "Stake", Timestamp: at(1, 0), ToAsset: "SOL", ToQuantity: 1},
			"transaction 11",
		},
		{
			"buy spending crypto",
			models.Transaction{ID: 12, Kind: models.KindBuy, Timestamp: at(1, 0), FromAsset: "BTC", FromQuantity: 1, ToAsset: "ETH", ToQuantity: 10},
			"transaction 12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classify([]models.Transaction{tt.tx})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("error not wrapped in ErrMalformedInput: %v", err)
			}
			if !strings.Contains(err.Error(), tt.frag) {
				t.Errorf("error %q does not name the offending transaction", err)
			}
		})
	}
}

func TestIsCashCurrency(t *testing.T) {
	for _, c := range []string{"USD", "eur", "RON", "usdt", "DAI"} {
		if !IsCashCurrency(c) {
			t.Errorf("IsCashCurrency(%q) = false", c)
		}
	}
	for _, c := range []string{"BTC", "SOL", ""} {
		if IsCashCurrency(c) {
			t.Errorf("IsCashCurrency(%q) = true", c)
		}
	}
}
