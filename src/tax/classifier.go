package tax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/username/portfoliotracker/src/models"
)

// ErrMalformedInput is wrapped by every pre-simulation validation error.
// Lot ordering correctness depends on clean chronological input, so these
// fail the whole computation before any ledger is touched.
var ErrMalformedInput = errors.New("malformed transaction input")

// cashCurrencies are tracked in the cash ledger rather than the asset
// ledger. Stablecoins are deliberately treated as cash: swapping into USDT
// is a sale, and withdrawing USDT is a taxable realization.
var cashCurrencies = map[string]bool{
	"USD": true, "EUR": true, "RON": true, "GBP": true, "CHF": true,
	"USDT": true, "USDC": true, "DAI": true, "BUSD": true, "TUSD": true,
}

// IsCashCurrency reports whether the symbol belongs to the cash ledger.
func IsCashCurrency(asset string) bool {
	return cashCurrencies[strings.ToUpper(asset)]
}

type opKind int

const (
	opCashDeposit opKind = iota
	opCashWithdrawal
	opAssetDeposit
	opAssetWithdrawal
	opBuy     // cash out, asset in
	opSell    // asset out, cash in
	opSwap    // asset out, asset in; basis transferred, no gain realized
	opConvert // cash out, cash in (fiat conversion); basis transferred
)

// operation is a raw transaction normalized into one canonical ledger
// action. Compound transactions (Buy/Sell/Swap) stay one operation; the
// simulator executes their disposal leg before their acquisition leg.
type operation struct {
	kind opKind
	tx   models.Transaction
}

// classify validates the transaction history and normalizes it into the
// canonical event stream. Input must already be ordered by (timestamp, id);
// out-of-order or duplicate records are rejected rather than re-sorted,
// since a silently reordered history would hide a corrupted extract. Legacy
// Buy/Sell kinds and Swaps with a fiat leg collapse to the same operations.
func classify(txs []models.Transaction) ([]operation, error) {
	seen := make(map[int64]bool, len(txs))
	ops := make([]operation, 0, len(txs))
	for i, tx := range txs {
		if err := validate(tx); err != nil {
			return nil, err
		}
		if seen[tx.ID] {
			return nil, fmt.Errorf("%w: transaction %d: duplicate transaction id", ErrMalformedInput, tx.ID)
		}
		seen[tx.ID] = true
		if i > 0 {
			prev := txs[i-1]
			if tx.Timestamp.Before(prev.Timestamp) ||
				(tx.Timestamp.Equal(prev.Timestamp) && tx.ID < prev.ID) {
				return nil, fmt.Errorf("%w: transaction %d: out of chronological order (after transaction %d)",
					ErrMalformedInput, tx.ID, prev.ID)
			}
		}

		toCash := IsCashCurrency(tx.ToAsset)
		fromCash := IsCashCurrency(tx.FromAsset)

		switch tx.Kind {
		case models.KindDeposit:
			if toCash {
				ops = append(ops, operation{opCashDeposit, tx})
			} else {
				ops = append(ops, operation{opAssetDeposit, tx})
			}
		case models.KindWithdrawal:
			if toCash {
				ops = append(ops, operation{opCashWithdrawal, tx})
			} else {
				ops = append(ops, operation{opAssetWithdrawal, tx})
			}
		case models.KindBuy:
			if !fromCash || toCash {
				return nil, fmt.Errorf("%w: transaction %d: Buy must spend cash for a non-cash asset (%s -> %s)",
					ErrMalformedInput, tx.ID, tx.FromAsset, tx.ToAsset)
			}
			ops = append(ops, operation{opBuy, tx})
		case models.KindSell:
			if fromCash || !toCash {
				return nil, fmt.Errorf("%w: transaction %d: Sell must dispose a non-cash asset for cash (%s -> %s)",
					ErrMalformedInput, tx.ID, tx.FromAsset, tx.ToAsset)
			}
			ops = append(ops, operation{opSell, tx})
		case models.KindSwap:
			switch {
			case fromCash && toCash:
				ops = append(ops, operation{opConvert, tx})
			case fromCash:
				ops = append(ops, operation{opBuy, tx})
			case toCash:
				ops = append(ops, operation{opSell, tx})
			default:
				ops = append(ops, operation{opSwap, tx})
			}
		default:
			return nil, fmt.Errorf("%w: transaction %d: unknown kind %q", ErrMalformedInput, tx.ID, tx.Kind)
		}
	}
	return ops, nil
}

func validate(tx models.Transaction) error {
	if tx.Timestamp.IsZero() {
		return fmt.Errorf("%w: transaction %d: missing timestamp", ErrMalformedInput, tx.ID)
	}
	if tx.ToAsset == "" {
		return fmt.Errorf("%w: transaction %d: missing destination asset", ErrMalformedInput, tx.ID)
	}
	if tx.ToQuantity < 0 || tx.FromQuantity < 0 {
		return fmt.Errorf("%w: transaction %d: negative quantity", ErrMalformedInput, tx.ID)
	}
	if tx.ToPriceUsd < 0 || tx.FromPriceUsd < 0 || tx.FeesUsd < 0 {
		return fmt.Errorf("%w: transaction %d: negative price or fee", ErrMalformedInput, tx.ID)
	}
	twoLegged := tx.Kind == models.KindSwap || tx.Kind == models.KindBuy || tx.Kind == models.KindSell
	if twoLegged {
		if tx.FromAsset == "" {
			return fmt.Errorf("%w: transaction %d: %s requires a source asset", ErrMalformedInput, tx.ID, tx.Kind)
		}
		if tx.FromQuantity == 0 {
			return fmt.Errorf("%w: transaction %d: %s requires a source quantity", ErrMalformedInput, tx.ID, tx.Kind)
		}
	}
	return nil
}
