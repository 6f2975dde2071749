package aggregate

import (
	"fmt"
	"math/big"

	"liquidityPool/internal/model"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	PoolID        string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	AddCount      uint64
	RemoveCount   uint64
	RejectedCount uint64
	BaseIn        *big.Int
	QuoteIn       *big.Int
	BaseOut       *big.Int
	QuoteOut      *big.Int
	Minted        *big.Int
	Burned        *big.Int
	LastTS        uint64
	Reserves      *model.ReserveState
}

func NewAccumulator(poolID string, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      poolID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		BaseIn:      big.NewInt(0),
		QuoteIn:     big.NewInt(0),
		BaseOut:     big.NewInt(0),
		QuoteOut:    big.NewInt(0),
		Minted:      big.NewInt(0),
		Burned:      big.NewInt(0),
	}
}

// AddRecord folds one journal record into the window. Only committed records
// move volumes; refused ones are counted.
func (a *Accumulator) AddRecord(record model.TransitionRecord) error {
	if record.Status != model.StatusCommitted {
		a.RejectedCount++
		return nil
	}

	amounts := make([]*big.Int, 7)
	for i, raw := range []string{record.BaseIn, record.QuoteIn, record.BaseOut, record.QuoteOut, record.Minted, record.Burned, record.Locked} {
		v, err := parseBigInt(raw)
		if err != nil {
			return err
		}
		amounts[i] = v
	}

	switch record.Kind {
	case "swap_base_in", "swap_quote_in":
		a.SwapCount++
	case "seed", "add_from_base", "add_from_quote":
		a.AddCount++
	case "remove":
		a.RemoveCount++
	default:
		return fmt.Errorf("unknown kind %q", record.Kind)
	}

	a.BaseIn.Add(a.BaseIn, amounts[0])
	a.QuoteIn.Add(a.QuoteIn, amounts[1])
	a.BaseOut.Add(a.BaseOut, amounts[2])
	a.QuoteOut.Add(a.QuoteOut, amounts[3])
	// supply growth includes the locked minimum
	a.Minted.Add(a.Minted, amounts[4])
	a.Minted.Add(a.Minted, amounts[6])
	a.Burned.Add(a.Burned, amounts[5])

	if record.Reserves != nil && record.Timestamp >= a.LastTS {
		reserves := *record.Reserves
		a.Reserves = &reserves
	}
	if record.Timestamp > a.LastTS {
		a.LastTS = record.Timestamp
	}
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}
