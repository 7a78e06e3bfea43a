package models

// CashflowSummary aggregates money movement over the full transaction history.
type CashflowSummary struct {
	TotalMoneyIn  float64 `json:"totalMoneyIn"`
	TotalMoneyOut float64 `json:"totalMoneyOut"`
	NetMoneyFlow  float64 `json:"netMoneyFlow"`

	TotalBankDeposits    float64 `json:"totalBankDeposits"`
	TotalBankWithdrawals float64 `json:"totalBankWithdrawals"`
	NetBankFlow          float64 `json:"netBankFlow"`

	TotalAssetPurchases float64 `json:"totalAssetPurchases"`
	TotalAssetSales     float64 `json:"totalAssetSales"`
	NetAssetTrading     float64 `json:"netAssetTrading"`

	TotalTaxableEvents int `json:"totalTaxableEvents"`
	TotalTransactions  int `json:"totalTransactions"`
}

// YearlyFlow is one calendar year's in/out totals.
type YearlyFlow struct {
	TotalIn  float64 `json:"totalIn"`
	TotalOut float64 `json:"totalOut"`
	NetFlow  float64 `json:"netFlow"`
}

// CashflowReport is the /api/cashflow response body.
type CashflowReport struct {
	Summary    CashflowSummary       `json:"summary"`
	YearlyFlow map[string]YearlyFlow `json:"yearlyFlow"`
}

// Holding is one asset's open position: the sum of all lots with remaining
// quantity after replaying the full history.
type Holding struct {
	Asset        string  `json:"asset"`
	Quantity     float64 `json:"quantity"`
	CostBasisUsd float64 `json:"costBasisUsd"`
	AvgCostUsd   float64 `json:"avgCostUsd"`
	Lots         int     `json:"lots"`
}
