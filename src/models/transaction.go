package models

import "time"

// Transaction kinds. Deposit/Withdrawal/Swap is the current model; Buy/Sell
// are accepted for histories imported from the legacy schema.
const (
	KindDeposit    = "Deposit"
	KindWithdrawal = "Withdrawal"
	KindSwap       = "Swap"
	KindBuy        = "Buy"
	KindSell       = "Sell"
)

// Transaction is a single portfolio movement as stored in the database.
// It is the engine's source of truth and is never mutated by it.
//
// Deposits and Withdrawals carry only the "to" leg (the asset entering or
// leaving the portfolio). Swaps carry both legs: FromAsset/FromQuantity is
// disposed, ToAsset/ToQuantity acquired.
type Transaction struct {
	ID           int64     `json:"id"`
	PortfolioID  int64     `json:"portfolioId"`
	Kind         string    `json:"type"`
	Timestamp    time.Time `json:"datetime"`
	FromAsset    string    `json:"fromAsset,omitempty"`
	FromQuantity float64   `json:"fromQuantity,omitempty"`
	FromPriceUsd float64   `json:"fromPriceUsd,omitempty"`
	ToAsset      string    `json:"toAsset"`
	ToQuantity   float64   `json:"toQuantity"`
	ToPriceUsd   float64   `json:"toPriceUsd,omitempty"`
	FeesUsd      float64   `json:"feesUsd,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}
