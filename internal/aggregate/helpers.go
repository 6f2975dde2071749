package aggregate

import (
	"math/big"

	"liquidityPool/internal/model"
)

const ratioScale = 18

// priceQuote returns the quote per base implied by the reserves.
func priceQuote(reserves *model.ReserveState) *string {
	if reserves == nil {
		return nil
	}
	base, err := parseBigInt(reserves.ReserveBase)
	if err != nil {
		return nil
	}
	quote, err := parseBigInt(reserves.ReserveQuote)
	if err != nil {
		return nil
	}
	if rate := computeRate(quote, base); rate != "" {
		return &rate
	}
	return nil
}

func computeRate(num *big.Int, denom *big.Int) string {
	if num == nil || denom == nil || denom.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(num, denom)
	return rat.FloatString(ratioScale)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
