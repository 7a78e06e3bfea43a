package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/models"
)

// TransactionService persists portfolio transactions. Timestamps are stored
// as RFC3339 UTC strings so ordering in SQL matches ordering in the engine.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

const transactionColumns = `id, kind, timestamp, from_asset, from_quantity, from_price_usd,
	to_asset, to_quantity, to_price_usd, fees_usd, notes`

// ListByUser returns the user's full history ordered by time then id.
func (s *TransactionService) ListByUser(userID int64) ([]models.Transaction, error) {
	query := `
	SELECT ` + transactionColumns + `
	FROM transactions
	WHERE user_id = ?
	ORDER BY timestamp ASC, id ASC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction for user %d: %w", userID, err)
		}
		tx.PortfolioID = userID
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Create inserts one transaction and fills in its id.
func (s *TransactionService) Create(userID int64, tx *models.Transaction) error {
	query := `
	INSERT INTO transactions (user_id, kind, timestamp, from_asset, from_quantity, from_price_usd,
		to_asset, to_quantity, to_price_usd, fees_usd, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		userID, tx.Kind, tx.Timestamp.UTC().Format(time.RFC3339),
		tx.FromAsset, tx.FromQuantity, tx.FromPriceUsd,
		tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd,
		tx.FeesUsd, tx.Notes)
	if err != nil {
		return fmt.Errorf("inserting transaction for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = id
	tx.PortfolioID = userID
	return nil
}

// CreateBatch inserts imported transactions inside one SQL transaction and
// returns how many were written. A failure rolls the whole batch back.
func (s *TransactionService) CreateBatch(userID int64, txs []models.Transaction) (int, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning import for user %d: %w", userID, err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
	INSERT INTO transactions (user_id, kind, timestamp, from_asset, from_quantity, from_price_usd,
		to_asset, to_quantity, to_price_usd, fees_usd, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range txs {
		tx := &txs[i]
		if _, err := stmt.Exec(
			userID, tx.Kind, tx.Timestamp.UTC().Format(time.RFC3339),
			tx.FromAsset, tx.FromQuantity, tx.FromPriceUsd,
			tx.ToAsset, tx.ToQuantity, tx.ToPriceUsd,
			tx.FeesUsd, tx.Notes); err != nil {
			return 0, fmt.Errorf("inserting imported transaction %d for user %d: %w", i+1, userID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import for user %d: %w", userID, err)
	}

	logger.L.Info("Imported transactions", "userID", userID, "count", len(txs))
	return len(txs), nil
}

// Delete removes one of the user's transactions.
func (s *TransactionService) Delete(userID, txID int64) error {
	res, err := s.db.Exec("DELETE FROM transactions WHERE id = ? AND user_id = ?", txID, userID)
	if err != nil {
		return fmt.Errorf("deleting transaction %d for user %d: %w", txID, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAll wipes the user's history and returns the number of rows removed.
func (s *TransactionService) DeleteAll(userID int64) (int64, error) {
	res, err := s.db.Exec("DELETE FROM transactions WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting transactions for user %d: %w", userID, err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	var ts string
	var fromAsset, notes sql.NullString
	var fromQty, fromPrice, toPrice, fees sql.NullFloat64

	err := row.Scan(&tx.ID, &tx.Kind, &ts, &fromAsset, &fromQty, &fromPrice,
		&tx.ToAsset, &tx.ToQuantity, &toPrice, &fees, &notes)
	if err != nil {
		return tx, err
	}

	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return tx, fmt.Errorf("parsing stored timestamp %q: %w", ts, err)
	}
	tx.Timestamp = parsed
	tx.FromAsset = fromAsset.String
	tx.FromQuantity = fromQty.Float64
	tx.FromPriceUsd = fromPrice.Float64
	tx.ToPriceUsd = toPrice.Float64
	tx.FeesUsd = fees.Float64
	tx.Notes = notes.String
	return tx, nil
}
