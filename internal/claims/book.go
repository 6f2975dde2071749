// Package claims keeps per-holder liquidity claims for a single pool.
package claims

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPool/internal/fixedpoint"
)

var (
	// ErrInsufficientClaim is returned when a burn exceeds the holder's claim.
	ErrInsufficientClaim = errors.New("claims: insufficient claim")
	// ErrZeroAmount is returned for zero mint, burn or lock amounts.
	ErrZeroAmount = errors.New("claims: zero amount")
)

// Book maps holders to their liquidity claim. The locked minimum is part of the
// total but belongs to no holder, so sum(claims) + locked == total always holds.
//
// Book is not safe for concurrent use; the settlement layer serializes access.
type Book struct {
	holders map[common.Address]uint64
	locked  uint64
	total   uint64
}

func NewBook() *Book {
	return &Book{holders: make(map[common.Address]uint64)}
}

// Claim returns the holder's claim.
func (b *Book) Claim(holder common.Address) uint64 {
	return b.holders[holder]
}

// Total returns the outstanding liquidity including the locked minimum.
func (b *Book) Total() uint64 {
	return b.total
}

// Locked returns the permanently unassigned liquidity.
func (b *Book) Locked() uint64 {
	return b.locked
}

// Mint increases the holder's claim and the total.
func (b *Book) Mint(holder common.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	total, err := fixedpoint.Add(b.total, amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	b.holders[holder] += amount
	b.total = total
	return nil
}

// Lock adds liquidity that is minted to no one and can never be burned.
func (b *Book) Lock(amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	total, err := fixedpoint.Add(b.total, amount)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	b.locked += amount
	b.total = total
	return nil
}

// Burn decreases the holder's claim and the total. A claim burned to zero is removed.
func (b *Book) Burn(holder common.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	current := b.holders[holder]
	if current < amount {
		return fmt.Errorf("%w: holder %s has %d, burn %d", ErrInsufficientClaim, holder.Hex(), current, amount)
	}
	if current == amount {
		delete(b.holders, holder)
	} else {
		b.holders[holder] = current - amount
	}
	b.total -= amount
	return nil
}

// Holders returns holders with a non-zero claim, sorted by address.
func (b *Book) Holders() []common.Address {
	out := make([]common.Address, 0, len(b.holders))
	for holder := range b.holders {
		out = append(out, holder)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

// Clone returns an independent copy.
func (b *Book) Clone() *Book {
	clone := &Book{
		holders: make(map[common.Address]uint64, len(b.holders)),
		locked:  b.locked,
		total:   b.total,
	}
	for holder, amount := range b.holders {
		clone.holders[holder] = amount
	}
	return clone
}

// Check verifies sum(claims) + locked == total.
func (b *Book) Check() error {
	sum := b.locked
	for holder, amount := range b.holders {
		next, err := fixedpoint.Add(sum, amount)
		if err != nil {
			return fmt.Errorf("claims sum overflow at %s: %w", holder.Hex(), err)
		}
		sum = next
	}
	if sum != b.total {
		return fmt.Errorf("claims sum %d does not match total %d", sum, b.total)
	}
	return nil
}

// Entry is the exported form of a holder claim.
type Entry struct {
	Holder common.Address `json:"holder"`
	Amount uint64         `json:"amount"`
}

// Snapshot is the serializable form of a Book.
type Snapshot struct {
	Locked  uint64  `json:"locked"`
	Total   uint64  `json:"total"`
	Holders []Entry `json:"holders"`
}

// Export returns a deterministic snapshot.
func (b *Book) Export() Snapshot {
	snap := Snapshot{Locked: b.locked, Total: b.total}
	for _, holder := range b.Holders() {
		snap.Holders = append(snap.Holders, Entry{Holder: holder, Amount: b.holders[holder]})
	}
	return snap
}

// FromSnapshot rebuilds a Book and validates its invariant.
func FromSnapshot(snap Snapshot) (*Book, error) {
	b := NewBook()
	b.locked = snap.Locked
	b.total = snap.Total
	for _, entry := range snap.Holders {
		if entry.Amount == 0 {
			continue
		}
		b.holders[entry.Holder] += entry.Amount
	}
	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}
