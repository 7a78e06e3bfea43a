package services

import "github.com/username/portfoliotracker/src/models"

// PriceInfo is the current market price of one asset in USD.
type PriceInfo struct {
	Status   string  `json:"status"` // "OK" or "UNAVAILABLE"
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// PriceService fetches current market prices for asset symbols.
type PriceService interface {
	GetCurrentPrices(symbols []string) (map[string]PriceInfo, error)
}

// TransactionStore is the persistence surface the reporting services need.
type TransactionStore interface {
	ListByUser(userID int64) ([]models.Transaction, error)
	Create(userID int64, tx *models.Transaction) error
	CreateBatch(userID int64, txs []models.Transaction) (int, error)
	Delete(userID, txID int64) error
	DeleteAll(userID int64) (int64, error)
}
