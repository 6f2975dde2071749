package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPool/internal/claims"
	"liquidityPool/internal/fixedpoint"
)

var _ Ledger = (*MemoryLedger)(nil)

type balanceKey struct {
	account common.Address
	token   common.Address
}

type ledgerState struct {
	balances map[balanceKey]uint64
	// keyed by liquidity token
	pools map[common.Address]*poolBook
}

type poolBook struct {
	account common.Address
	book    *claims.Book
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		balances: make(map[balanceKey]uint64),
		pools:    make(map[common.Address]*poolBook),
	}
}

func (s *ledgerState) clone() *ledgerState {
	out := &ledgerState{
		balances: make(map[balanceKey]uint64, len(s.balances)),
		pools:    make(map[common.Address]*poolBook, len(s.pools)),
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for token, pb := range s.pools {
		out.pools[token] = &poolBook{account: pb.account, book: pb.book.Clone()}
	}
	return out
}

func (s *ledgerState) balance(account, token common.Address) uint64 {
	if pb, ok := s.pools[token]; ok {
		if account == pb.account {
			return pb.book.Total()
		}
		return pb.book.Claim(account)
	}
	return s.balances[balanceKey{account: account, token: token}]
}

// MemoryLedger is an in-process Ledger. Commits are serialized and applied to a
// staged copy that replaces the live state only when every step succeeds.
type MemoryLedger struct {
	mu      sync.RWMutex
	state   *ledgerState
	persist func(LedgerSnapshot) error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{state: newLedgerState()}
}

// RegisterPool makes the pool's liquidity token resolve to a claims book.
// Registering an already known pool is a no-op.
func (l *MemoryLedger) RegisterPool(accounts PoolAccounts) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.state.pools[accounts.LiquidityToken]; ok {
		if existing.account != accounts.Account {
			return fmt.Errorf("liquidity token %s already bound to %s", accounts.LiquidityToken.Hex(), existing.account.Hex())
		}
		return nil
	}
	stage := l.state.clone()
	stage.pools[accounts.LiquidityToken] = &poolBook{account: accounts.Account, book: claims.NewBook()}
	if err := l.save(stage); err != nil {
		return err
	}
	l.state = stage
	return nil
}

// Fund credits an account outside of any intent.
func (l *MemoryLedger) Fund(ctx context.Context, account, token common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.state.pools[token]; ok {
		return fmt.Errorf("cannot fund liquidity token %s", token.Hex())
	}
	stage := l.state.clone()
	key := balanceKey{account: account, token: token}
	next, err := fixedpoint.Add(stage.balances[key], amount)
	if err != nil {
		return fmt.Errorf("fund %s: %w", account.Hex(), err)
	}
	stage.balances[key] = next
	if err := l.save(stage); err != nil {
		return err
	}
	l.state = stage
	return nil
}

func (l *MemoryLedger) Balance(ctx context.Context, account, token common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.balance(account, token), nil
}

// Commit validates every assertion against the state at the instant of commit,
// then applies burns, transfers, mints and locks in that order.
func (l *MemoryLedger) Commit(ctx context.Context, intent *Intent) error {
	if intent == nil {
		return fmt.Errorf("intent is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range intent.Assertions {
		if a.Min > a.Max {
			return NewCommitError(KindRejected, intent.ID, "malformed bound %s", a)
		}
		value := l.state.balance(a.Account, a.Token)
		if !a.Holds(value) {
			return NewCommitError(KindPreconditionViolated, intent.ID, "%s, actual %d", a, value)
		}
	}

	stage := l.state.clone()
	if err := applyIntent(stage, intent); err != nil {
		return err
	}
	if err := l.save(stage); err != nil {
		return NewCommitError(KindRejected, intent.ID, "persist: %v", err)
	}
	l.state = stage
	return nil
}

func applyIntent(stage *ledgerState, intent *Intent) error {
	for _, burn := range intent.Burns {
		pb, ok := stage.pools[burn.Token]
		if !ok {
			return NewCommitError(KindRejected, intent.ID, "unknown liquidity token %s", burn.Token.Hex())
		}
		if burn.Holder == pb.account {
			return NewCommitError(KindRejected, intent.ID, "cannot burn from pool account")
		}
		if err := pb.book.Burn(burn.Holder, burn.Amount); err != nil {
			if errors.Is(err, claims.ErrInsufficientClaim) {
				return NewCommitError(KindInsufficientClaim, intent.ID, "%v", err)
			}
			return NewCommitError(KindRejected, intent.ID, "burn: %v", err)
		}
	}

	for _, tr := range intent.Transfers {
		if _, ok := stage.pools[tr.Token]; ok {
			return NewCommitError(KindRejected, intent.ID, "liquidity token %s is not transferable", tr.Token.Hex())
		}
		if tr.Amount == 0 {
			continue
		}
		fromKey := balanceKey{account: tr.From, token: tr.Token}
		toKey := balanceKey{account: tr.To, token: tr.Token}
		have := stage.balances[fromKey]
		if have < tr.Amount {
			return NewCommitError(KindInsufficientBalance, intent.ID, "%s has %d of %s, needs %d",
				tr.From.Hex(), have, tr.Token.Hex(), tr.Amount)
		}
		stage.balances[fromKey] = have - tr.Amount
		credited, err := fixedpoint.Add(stage.balances[toKey], tr.Amount)
		if err != nil {
			return NewCommitError(KindRejected, intent.ID, "credit %s: %v", tr.To.Hex(), err)
		}
		stage.balances[toKey] = credited
	}

	for _, mint := range intent.Mints {
		pb, ok := stage.pools[mint.Token]
		if !ok {
			return NewCommitError(KindRejected, intent.ID, "unknown liquidity token %s", mint.Token.Hex())
		}
		if mint.Holder == pb.account {
			return NewCommitError(KindRejected, intent.ID, "cannot mint to pool account")
		}
		if err := pb.book.Mint(mint.Holder, mint.Amount); err != nil {
			return NewCommitError(KindRejected, intent.ID, "mint: %v", err)
		}
	}

	for _, lock := range intent.Locks {
		pb, ok := stage.pools[lock.Token]
		if !ok {
			return NewCommitError(KindRejected, intent.ID, "unknown liquidity token %s", lock.Token.Hex())
		}
		if err := pb.book.Lock(lock.Amount); err != nil {
			return NewCommitError(KindRejected, intent.ID, "lock: %v", err)
		}
	}
	return nil
}

func (l *MemoryLedger) save(stage *ledgerState) error {
	if l.persist == nil {
		return nil
	}
	return l.persist(exportState(stage))
}

// BalanceEntry is one plain token balance.
type BalanceEntry struct {
	Account common.Address `json:"account"`
	Token   common.Address `json:"token"`
	Amount  uint64         `json:"amount"`
}

// PoolEntry is one registered pool and its claims.
type PoolEntry struct {
	PoolAccounts
	Claims claims.Snapshot `json:"claims"`
}

// LedgerSnapshot is the serializable form of a MemoryLedger.
type LedgerSnapshot struct {
	Balances []BalanceEntry `json:"balances"`
	Pools    []PoolEntry    `json:"pools"`
}

// Export returns a deterministic snapshot of the ledger.
func (l *MemoryLedger) Export() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return exportState(l.state)
}

// Import replaces the ledger contents with snap.
func (l *MemoryLedger) Import(snap LedgerSnapshot) error {
	state := newLedgerState()
	for _, entry := range snap.Balances {
		if entry.Amount == 0 {
			continue
		}
		state.balances[balanceKey{account: entry.Account, token: entry.Token}] = entry.Amount
	}
	for _, entry := range snap.Pools {
		book, err := claims.FromSnapshot(entry.Claims)
		if err != nil {
			return fmt.Errorf("pool %s: %w", entry.Account.Hex(), err)
		}
		state.pools[entry.LiquidityToken] = &poolBook{account: entry.Account, book: book}
	}

	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
	return nil
}

func exportState(s *ledgerState) LedgerSnapshot {
	snap := LedgerSnapshot{
		Balances: make([]BalanceEntry, 0, len(s.balances)),
		Pools:    make([]PoolEntry, 0, len(s.pools)),
	}
	for key, amount := range s.balances {
		if amount == 0 {
			continue
		}
		snap.Balances = append(snap.Balances, BalanceEntry{Account: key.account, Token: key.token, Amount: amount})
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		if c := snap.Balances[i].Account.Cmp(snap.Balances[j].Account); c != 0 {
			return c < 0
		}
		return snap.Balances[i].Token.Cmp(snap.Balances[j].Token) < 0
	})
	for token, pb := range s.pools {
		snap.Pools = append(snap.Pools, PoolEntry{
			PoolAccounts: PoolAccounts{Account: pb.account, LiquidityToken: token},
			Claims:       pb.book.Export(),
		})
	}
	sort.Slice(snap.Pools, func(i, j int) bool {
		return snap.Pools[i].LiquidityToken.Cmp(snap.Pools[j].LiquidityToken) < 0
	})
	return snap
}
