package settlement

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	poolAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	lpToken     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenA      = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice       = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func newTestLedger(t *testing.T) *MemoryLedger {
	t.Helper()
	ledger := NewMemoryLedger()
	if err := ledger.RegisterPool(PoolAccounts{Account: poolAccount, LiquidityToken: lpToken}); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	if err := ledger.Fund(context.Background(), alice, tokenA, 1000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	return ledger
}

func balance(t *testing.T, l Ledger, account, token common.Address) uint64 {
	t.Helper()
	v, err := l.Balance(context.Background(), account, token)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v
}

func TestCommitAppliesAllEffects(t *testing.T) {
	ledger := newTestLedger(t)
	intent := NewIntent()
	intent.AssertExact(poolAccount, lpToken, 0)
	intent.Transfer(alice, poolAccount, tokenA, 400)
	intent.Mint(lpToken, alice, 300)
	intent.Lock(lpToken, 100)

	if err := ledger.Commit(context.Background(), intent); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := balance(t, ledger, alice, tokenA); got != 600 {
		t.Fatalf("alice balance mismatch: %d", got)
	}
	if got := balance(t, ledger, poolAccount, tokenA); got != 400 {
		t.Fatalf("pool balance mismatch: %d", got)
	}
	if got := balance(t, ledger, poolAccount, lpToken); got != 400 {
		t.Fatalf("total liquidity mismatch: %d", got)
	}
	if got := balance(t, ledger, alice, lpToken); got != 300 {
		t.Fatalf("alice claim mismatch: %d", got)
	}
}

func TestCommitPreconditionViolatedIsAtomic(t *testing.T) {
	ledger := newTestLedger(t)
	before := ledger.Export()

	intent := NewIntent()
	intent.Transfer(alice, poolAccount, tokenA, 400)
	intent.AssertBounded(poolAccount, tokenA, 1, 10)

	err := ledger.Commit(context.Background(), intent)
	if !errors.Is(err, ErrPreconditionViolated) {
		t.Fatalf("expected ErrPreconditionViolated, got %v", err)
	}
	if kind, ok := KindOf(err); !ok || kind != KindPreconditionViolated {
		t.Fatalf("unexpected kind %q", kind)
	}
	if !reflect.DeepEqual(before, ledger.Export()) {
		t.Fatalf("ledger changed after rejected commit")
	}
}

func TestCommitInsufficientBalanceRollsBack(t *testing.T) {
	ledger := newTestLedger(t)
	before := ledger.Export()

	intent := NewIntent()
	intent.Mint(lpToken, alice, 5)
	intent.Transfer(alice, poolAccount, tokenA, 2000)

	err := ledger.Commit(context.Background(), intent)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !reflect.DeepEqual(before, ledger.Export()) {
		t.Fatalf("ledger changed after rejected commit")
	}
}

func TestCommitInsufficientClaim(t *testing.T) {
	ledger := newTestLedger(t)
	mint := NewIntent()
	mint.Mint(lpToken, alice, 10)
	if err := ledger.Commit(context.Background(), mint); err != nil {
		t.Fatalf("mint: %v", err)
	}

	burn := NewIntent()
	burn.Burn(lpToken, alice, 11)
	burn.Transfer(poolAccount, alice, tokenA, 0)
	err := ledger.Commit(context.Background(), burn)
	if !errors.Is(err, ErrInsufficientClaim) {
		t.Fatalf("expected ErrInsufficientClaim, got %v", err)
	}
	if got := balance(t, ledger, alice, lpToken); got != 10 {
		t.Fatalf("claim changed: %d", got)
	}
}

func TestCommitRejectsLiquidityTransfer(t *testing.T) {
	ledger := newTestLedger(t)
	intent := NewIntent()
	intent.Transfer(alice, poolAccount, lpToken, 1)
	if err := ledger.Commit(context.Background(), intent); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestCommitRejectsMalformedBound(t *testing.T) {
	ledger := newTestLedger(t)
	intent := NewIntent()
	intent.AssertBounded(alice, tokenA, 10, 1)
	if err := ledger.Commit(context.Background(), intent); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestRegisterPoolConflict(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.RegisterPool(PoolAccounts{Account: poolAccount, LiquidityToken: lpToken}); err != nil {
		t.Fatalf("re-register same pool: %v", err)
	}
	if err := ledger.RegisterPool(PoolAccounts{Account: alice, LiquidityToken: lpToken}); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestFileLedgerPersistsCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ledger, err := OpenFileLedger(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ledger.RegisterPool(PoolAccounts{Account: poolAccount, LiquidityToken: lpToken}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.Fund(context.Background(), alice, tokenA, 50); err != nil {
		t.Fatalf("fund: %v", err)
	}
	intent := NewIntent()
	intent.Mint(lpToken, alice, 7)
	if err := ledger.Commit(context.Background(), intent); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reopened, err := OpenFileLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reflect.DeepEqual(ledger.Export(), reopened.Export()) {
		t.Fatalf("persisted ledger mismatch: %+v != %+v", reopened.Export(), ledger.Export())
	}
}
