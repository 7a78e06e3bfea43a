package models

// TaxReport is the output of a full tax engine run for one reporting year.
// Field names follow the JSON surface of the /api/tax/romania endpoint.
type TaxReport struct {
	Year          int    `json:"year"`
	AssetStrategy string `json:"assetStrategy"`
	CashStrategy  string `json:"cashStrategy"`

	TotalWithdrawalsUsd float64 `json:"totalWithdrawalsUsd"`
	TotalWithdrawalsRon float64 `json:"totalWithdrawalsRon"`
	TotalCostBasisUsd   float64 `json:"totalCostBasisUsd"`
	TotalCostBasisRon   float64 `json:"totalCostBasisRon"`
	TotalGainLossUsd    float64 `json:"totalGainLossUsd"`
	TotalGainLossRon    float64 `json:"totalGainLossRon"`

	TaxableEvents []TaxableEvent `json:"taxableEvents"`
}

// TaxableEvent is one fiat withdrawal with fully traced cost basis.
// Invariant: GainLossUsd == FiatAmountUsd - CostBasisUsd.
type TaxableEvent struct {
	TransactionID int64  `json:"transactionId"`
	Datetime      string `json:"datetime"`
	Currency      string `json:"currency"`

	FiatAmount    float64 `json:"fiatAmount"`
	FiatAmountUsd float64 `json:"fiatAmountUsd"`
	FiatAmountRon float64 `json:"fiatAmountRon"`
	CostBasisUsd  float64 `json:"costBasisUsd"`
	CostBasisRon  float64 `json:"costBasisRon"`
	GainLossUsd   float64 `json:"gainLossUsd"`
	GainLossRon   float64 `json:"gainLossRon"`

	// SaleTrace lists the sales whose proceeds this withdrawal consumed.
	// SaleTraceDeep expands each buy lot's own funding recursively back to
	// deposits. FundingDeposits covers the part of the withdrawal funded by
	// plain cash deposits rather than sale proceeds, so the three together
	// account for the full cost basis.
	SaleTrace       []SaleTrace    `json:"saleTrace"`
	SaleTraceDeep   []SaleTrace    `json:"saleTraceDeep"`
	FundingDeposits []DepositTrace `json:"fundingDeposits,omitempty"`
}

// SaleTrace describes the slice of a Sell (or Swap-to-fiat) disposal that
// funded a later consumer, together with the asset lots that sale consumed.
type SaleTrace struct {
	TransactionID int64  `json:"transactionId"`
	Asset         string `json:"asset"`
	Datetime      string `json:"datetime"`

	QuantitySold float64 `json:"quantitySold"`
	ProceedsUsd  float64 `json:"proceedsUsd"`
	CostBasisUsd float64 `json:"costBasisUsd"`

	// Swap marks the node as the source leg of a crypto-to-crypto swap
	// rather than a sale for fiat: basis is transferred without realizing
	// gain, so ProceedsUsd equals CostBasisUsd.
	Swap bool `json:"swap,omitempty"`

	BuyLots []BuyLotTrace `json:"buyLots"`
}

// BuyLotTrace is a slice of an acquisition lot consumed by a sale. When the
// lot was acquired as the destination leg of a crypto-to-crypto swap, the
// swap fields identify the source, and FundingSells carries the source
// asset's own consumed lots. For cash-funded buys, FundingSells/
// FundingDeposits describe where the purchase cash came from.
type BuyLotTrace struct {
	BuyTransactionID int64  `json:"buyTransactionId"`
	Asset            string `json:"asset"`
	Datetime         string `json:"datetime"`

	Quantity     float64 `json:"quantity"`
	CostBasisUsd float64 `json:"costBasisUsd"`

	SwappedFromAsset         string `json:"swappedFromAsset,omitempty"`
	SwappedFromTransactionID int64  `json:"swappedFromTransactionId,omitempty"`

	FundingSells    []SaleTrace    `json:"fundingSells,omitempty"`
	FundingDeposits []DepositTrace `json:"fundingDeposits,omitempty"`
}

// DepositTrace is a terminal funding node: cash that entered the portfolio
// from outside, with no further ancestry. Fee marks the portion of an
// acquisition's basis that came from transaction fees rather than consumed
// lots, so funding nodes still sum to the parent's basis.
type DepositTrace struct {
	TransactionID int64   `json:"transactionId"`
	Currency      string  `json:"currency"`
	Datetime      string  `json:"datetime"`
	AmountUsd     float64 `json:"amountUsd"`
	Fee           bool    `json:"fee,omitempty"`
}
