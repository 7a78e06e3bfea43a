package tax

import "fmt"

// Strategy selects which open lots a disposal consumes first.
type Strategy int

const (
	// FIFO consumes the earliest-acquired lots first.
	FIFO Strategy = iota
	// LIFO consumes the latest-acquired lots first.
	LIFO
	// HIFO consumes the highest unit-cost lots first, minimizing realized gain.
	HIFO
	// LOFO consumes the lowest unit-cost lots first, maximizing realized gain.
	LOFO
)

func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "FIFO"
	case LIFO:
		return "LIFO"
	case HIFO:
		return "HIFO"
	case LOFO:
		return "LOFO"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name as it appears in API requests.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "FIFO", "fifo", "":
		return FIFO, nil
	case "LIFO", "lifo":
		return LIFO, nil
	case "HIFO", "hifo":
		return HIFO, nil
	case "LOFO", "lofo":
		return LOFO, nil
	default:
		return 0, fmt.Errorf("unknown lot strategy: %q", s)
	}
}

// StrategyConfig holds the independently selectable orderings for asset lots
// and cash lots.
type StrategyConfig struct {
	Asset Strategy
	Cash  Strategy
}

// less is the total ordering over open lots for this strategy: it reports
// whether lot a should be consumed before lot b. Every branch defines a
// deterministic tie-break so the selection is stable regardless of the
// order lots were appended.
func (s Strategy) less(a, b *Lot) bool {
	switch s {
	case FIFO:
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	case LIFO:
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.After(b.AcquiredAt)
		}
		return a.ID > b.ID
	case HIFO:
		if c := a.UnitCostUsd.Cmp(b.UnitCostUsd); c != 0 {
			return c > 0
		}
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	case LOFO:
		if c := a.UnitCostUsd.Cmp(b.UnitCostUsd); c != 0 {
			return c < 0
		}
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	default:
		panic("unknown lot strategy")
	}
}
