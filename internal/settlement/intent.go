// Package settlement defines the atomic batch handed to the ledger and a
// reference in-memory ledger that applies it all-or-nothing.
package settlement

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Assertion requires the real balance of Account in Token to lie in [Min, Max]
// at the instant of commit.
type Assertion struct {
	Account common.Address `json:"account"`
	Token   common.Address `json:"token"`
	Min     uint64         `json:"min"`
	Max     uint64         `json:"max"`
}

func (a Assertion) String() string {
	return fmt.Sprintf("%s/%s in [%d,%d]", a.Account.Hex(), a.Token.Hex(), a.Min, a.Max)
}

// Holds reports whether value satisfies the assertion.
func (a Assertion) Holds(value uint64) bool {
	return value >= a.Min && value <= a.Max
}

// Transfer moves Amount of Token from one account to another.
type Transfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Token  common.Address `json:"token"`
	Amount uint64         `json:"amount"`
}

// ClaimDelta changes a holder's liquidity claim in the pool whose liquidity
// token is Token.
type ClaimDelta struct {
	Token  common.Address `json:"token"`
	Holder common.Address `json:"holder"`
	Amount uint64         `json:"amount"`
}

// Intent is a fully formed transition: the preconditions it depends on and the
// effects it applies. The ledger accepts or rejects it as one unit.
type Intent struct {
	ID         string       `json:"id"`
	Assertions []Assertion  `json:"assertions"`
	Burns      []ClaimDelta `json:"burns,omitempty"`
	Transfers  []Transfer   `json:"transfers"`
	Mints      []ClaimDelta `json:"mints,omitempty"`
	Locks      []ClaimDelta `json:"locks,omitempty"`
}

func NewIntent() *Intent {
	return &Intent{ID: uuid.NewString()}
}

// AssertBounded registers a precondition checked at commit time.
func (i *Intent) AssertBounded(account, token common.Address, min, max uint64) {
	i.Assertions = append(i.Assertions, Assertion{Account: account, Token: token, Min: min, Max: max})
}

// AssertExact is AssertBounded with a zero-width interval.
func (i *Intent) AssertExact(account, token common.Address, value uint64) {
	i.AssertBounded(account, token, value, value)
}

// Transfer registers a balance move applied at commit time.
func (i *Intent) Transfer(from, to, token common.Address, amount uint64) {
	i.Transfers = append(i.Transfers, Transfer{From: from, To: to, Token: token, Amount: amount})
}

// Mint registers a liquidity claim increase.
func (i *Intent) Mint(liquidityToken, holder common.Address, amount uint64) {
	i.Mints = append(i.Mints, ClaimDelta{Token: liquidityToken, Holder: holder, Amount: amount})
}

// Burn registers a liquidity claim decrease.
func (i *Intent) Burn(liquidityToken, holder common.Address, amount uint64) {
	i.Burns = append(i.Burns, ClaimDelta{Token: liquidityToken, Holder: holder, Amount: amount})
}

// Lock registers liquidity minted to no one.
func (i *Intent) Lock(liquidityToken common.Address, amount uint64) {
	i.Locks = append(i.Locks, ClaimDelta{Token: liquidityToken, Amount: amount})
}

func (i *Intent) String() string {
	parts := make([]string, 0, len(i.Assertions))
	for _, a := range i.Assertions {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("intent %s: %d assertions [%s], %d transfers, %d mints, %d burns, %d locks",
		i.ID, len(i.Assertions), strings.Join(parts, "; "), len(i.Transfers), len(i.Mints), len(i.Burns), len(i.Locks))
}
