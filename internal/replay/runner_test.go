package replay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/settlement"
	"liquidityPool/internal/storage"
)

var (
	baseToken  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	quoteToken = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	alice      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob        = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

const replayInput = `{"kind":"seed","caller":"0x1111111111111111111111111111111111111111","amount":"10_000_000_000","limit":"50000000000"}
not json
{"kind":"swap_base_in","caller":"0x2222222222222222222222222222222222222222","amount":"1300000000","limit":"5644736842","slack_bps":100}

{"kind":"seed","caller":"0x2222222222222222222222222222222222222222","amount":"5000","limit":"5000"}
{"kind":"donate","caller":"0x2222222222222222222222222222222222222222","amount":"1"}
`

func swapRecord(slackBps uint64) model.OperationRecord {
	return model.OperationRecord{
		Kind:     "swap_base_in",
		Caller:   bob.Hex(),
		Amount:   "1000",
		Limit:    "1",
		SlackBps: slackBps,
	}
}

func newTestCoordinator(t *testing.T) (*pool.Coordinator, *settlement.MemoryLedger) {
	t.Helper()
	p, err := pool.New(pool.Config{Base: baseToken, Quote: quoteToken, MinLockedLiquidity: pool.DefaultMinLockedLiquidity})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	ledger := settlement.NewMemoryLedger()
	if err := ledger.RegisterPool(p.Accounts()); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	ctx := context.Background()
	for _, who := range []common.Address{alice, bob} {
		if err := ledger.Fund(ctx, who, baseToken, 100_000_000_000); err != nil {
			t.Fatalf("fund: %v", err)
		}
		if err := ledger.Fund(ctx, who, quoteToken, 500_000_000_000); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return pool.NewCoordinator(p, ledger, nil, nil, nil), ledger
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ops.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunnerReplaysOperations(t *testing.T) {
	dir := t.TempDir()
	coord, _ := newTestCoordinator(t)
	errPath := filepath.Join(dir, "errors.jsonl")
	errWriter, err := storage.NewJSONLWriter(errPath, false)
	if err != nil {
		t.Fatalf("errors writer: %v", err)
	}

	runner := NewRunner(RunConfig{
		InputPath:         writeInput(t, dir, replayInput),
		BatchSize:         2,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}, coord, errWriter, nil, nil)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := errWriter.Close(); err != nil {
		t.Fatalf("close errors: %v", err)
	}

	want := Summary{Total: 5, Committed: 2, Rejected: 1, Invalid: 2}
	if summary != want {
		t.Fatalf("summary mismatch: %+v != %+v", summary, want)
	}

	state, err := coord.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.ReserveBase != 11_300_000_000 || state.TotalLiquidity != 60_000_000_000 {
		t.Fatalf("unexpected state: %+v", state)
	}

	data, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("read errors: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"line":2`) || !strings.Contains(lines[1], `"line":6`) {
		t.Fatalf("unexpected error lines: %q", lines)
	}

	// a second run resumes after the checkpoint and has nothing left to do
	again, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != (Summary{}) {
		t.Fatalf("expected empty summary after checkpoint, got %+v", again)
	}
}

func TestRunnerFailFastStopsOnRejection(t *testing.T) {
	dir := t.TempDir()
	coord, _ := newTestCoordinator(t)
	input := `{"kind":"remove","caller":"0x2222222222222222222222222222222222222222","amount":"10"}
{"kind":"seed","caller":"0x1111111111111111111111111111111111111111","amount":"5000","limit":"5000"}
`
	runner := NewRunner(RunConfig{
		InputPath: writeInput(t, dir, input),
		BatchSize: 10,
		FailFast:  true,
	}, coord, nil, nil, nil)

	summary, err := runner.Run(context.Background())
	if !errors.Is(err, pool.ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
	if summary.Total != 1 || summary.Rejected != 1 || summary.Committed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunnerHonorsLineRange(t *testing.T) {
	dir := t.TempDir()
	coord, _ := newTestCoordinator(t)
	runner := NewRunner(RunConfig{
		InputPath: writeInput(t, dir, replayInput),
		FromLine:  1,
		ToLine:    1,
		BatchSize: 5,
	}, coord, nil, nil, nil)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary != (Summary{Total: 1, Committed: 1}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestWithRetryRetriesPreconditionOnly(t *testing.T) {
	stale := settlement.NewCommitError(settlement.KindPreconditionViolated, "intent", "reserve moved")

	retried := 0
	onRetry := func(error) { retried++ }

	calls := 0
	attempts, err := withRetry(context.Background(), 3, time.Millisecond, isRetryable, onRetry, func(_ context.Context, final bool) error {
		calls++
		if final {
			t.Fatalf("attempt %d must not be final", calls)
		}
		if calls < 3 {
			return stale
		}
		return nil
	})
	if err != nil || attempts != 3 || retried != 2 {
		t.Fatalf("expected success after 3 attempts, got %d %v (retried %d)", attempts, err, retried)
	}

	calls, retried = 0, 0
	attempts, err = withRetry(context.Background(), 3, time.Millisecond, isRetryable, onRetry, func(context.Context, bool) error {
		calls++
		return pool.ErrSlippageExceeded
	})
	if !errors.Is(err, pool.ErrSlippageExceeded) || attempts != 1 || calls != 1 || retried != 0 {
		t.Fatalf("non-retryable error must not be retried: %d %v", attempts, err)
	}

	var finals []bool
	retried = 0
	attempts, err = withRetry(context.Background(), 2, time.Millisecond, isRetryable, onRetry, func(_ context.Context, final bool) error {
		finals = append(finals, final)
		return stale
	})
	if !errors.Is(err, pool.ErrPreconditionViolated) || attempts != 3 {
		t.Fatalf("expected exhausted retries, got %d %v", attempts, err)
	}
	if retried != 2 || !reflect.DeepEqual(finals, []bool{false, false, true}) {
		t.Fatalf("the last attempt is not a retry: retried %d finals %v", retried, finals)
	}
}

func TestRunnerResumesAfterFailFastWithoutRepeatingCommits(t *testing.T) {
	dir := t.TempDir()
	coord, ledger := newTestCoordinator(t)
	ctx := context.Background()
	seed := `{"kind":"seed","caller":"0x1111111111111111111111111111111111111111","amount":"10000","limit":"50000"}
{"kind":"add_from_base","caller":"0x2222222222222222222222222222222222222222","amount":"1000","limit":"6000"}
`
	cfg := RunConfig{
		InputPath:         writeInput(t, dir, seed+`{"kind":"remove","caller":"0x2222222222222222222222222222222222222222","amount":"100000"}`+"\n"),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		FailFast:          true,
	}

	summary, err := NewRunner(cfg, coord, nil, nil, nil).Run(ctx)
	if !errors.Is(err, pool.ErrInsufficientClaim) {
		t.Fatalf("expected ErrInsufficientClaim, got %v", err)
	}
	if summary != (Summary{Total: 3, Committed: 2, Rejected: 1}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	lpToken := coord.Pool().LiquidityToken
	claim, err := ledger.Balance(ctx, bob, lpToken)
	if err != nil || claim != 6000 {
		t.Fatalf("unexpected claim after first run: %d %v", claim, err)
	}

	// the failing line is corrected and the replay resumes at it
	writeInput(t, dir, seed+`{"kind":"remove","caller":"0x2222222222222222222222222222222222222222","amount":"6000"}`+"\n")
	summary, err = NewRunner(cfg, coord, nil, nil, nil).Run(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if summary != (Summary{Total: 1, Committed: 1}) {
		t.Fatalf("resume must only run the corrected line: %+v", summary)
	}
	claim, err = ledger.Balance(ctx, bob, lpToken)
	if err != nil || claim != 0 {
		t.Fatalf("unexpected claim after resume: %d %v", claim, err)
	}
	state, err := coord.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.TotalLiquidity != 60000 {
		t.Fatalf("add was applied more than once: %+v", state)
	}
}

func TestRunnerJournalsOnlyFinalRejection(t *testing.T) {
	dir := t.TempDir()
	p, err := pool.New(pool.Config{Base: baseToken, Quote: quoteToken, MinLockedLiquidity: pool.DefaultMinLockedLiquidity})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	ledger := settlement.NewMemoryLedger()
	if err := ledger.RegisterPool(p.Accounts()); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	for _, fund := range []struct {
		who   common.Address
		token common.Address
	}{{alice, baseToken}, {alice, quoteToken}, {bob, baseToken}} {
		if err := ledger.Fund(context.Background(), fund.who, fund.token, 100_000_000_000); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	journalPath := filepath.Join(dir, "journal.jsonl")
	coord := pool.NewCoordinator(p, ledger, storage.NewJsonlJournal(journalPath), nil, nil)

	// the asserted base reserve range never contains the seeded reserve
	input := `{"kind":"seed","caller":"0x1111111111111111111111111111111111111111","amount":"10000000000","limit":"50000000000"}
{"kind":"swap_base_in","caller":"0x2222222222222222222222222222222222222222","amount":"10","limit":"1","in_min":"100","in_max":"200","out_min":"1000","out_max":"2000"}
`
	summary, err := NewRunner(RunConfig{
		InputPath:    writeInput(t, dir, input),
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, coord, nil, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary != (Summary{Total: 2, Committed: 1, Rejected: 1, Retries: 2}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	data, err := os.ReadFile(journalPath)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	var rejected int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec model.TransitionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode journal: %v", err)
		}
		if rec.Status == model.StatusRejected {
			rejected++
			if rec.Reason != "precondition_violated" {
				t.Fatalf("unexpected rejection: %+v", rec)
			}
		}
	}
	if rejected != 1 {
		t.Fatalf("expected one rejected record for three attempts, got %d", rejected)
	}
}

func TestBuildOperationDerivesSwapBounds(t *testing.T) {
	caller, build, err := BuildOperation(swapRecord(100))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if caller != bob {
		t.Fatalf("caller mismatch: %s", caller.Hex())
	}

	snap := pool.Snapshot{State: pool.State{ReserveBase: 10_000, ReserveQuote: 50_000, TotalLiquidity: 60_000}}
	op, err := build(snap)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	wantIn, wantOut, err := pool.SwapBounds(10_000, 50_000, 100)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !reflect.DeepEqual(op.InBound, wantIn) || !reflect.DeepEqual(op.OutBound, wantOut) {
		t.Fatalf("bounds mismatch: %+v %+v", op.InBound, op.OutBound)
	}
	if op.Amount != 1000 || op.Limit != 1 {
		t.Fatalf("unexpected amounts: %+v", op)
	}
}

func TestBuildOperationExplicitBounds(t *testing.T) {
	record := swapRecord(0)
	record.InMin, record.InMax = "0x10", "32"
	record.OutMin, record.OutMax = "1", "2"
	_, build, err := BuildOperation(record)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	op, err := build(pool.Snapshot{})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if op.InBound != (pool.ReserveBound{Min: 16, Max: 32}) || op.OutBound != (pool.ReserveBound{Min: 1, Max: 2}) {
		t.Fatalf("unexpected bounds: %+v %+v", op.InBound, op.OutBound)
	}
}

func TestBuildOperationErrors(t *testing.T) {
	bad := swapRecord(0)
	bad.Kind = "flash_loan"
	if _, _, err := BuildOperation(bad); !errors.Is(err, pool.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}

	bad = swapRecord(0)
	bad.Caller = "0x123"
	if _, _, err := BuildOperation(bad); err == nil {
		t.Fatalf("expected caller error")
	}

	bad = swapRecord(0)
	bad.Amount = "18446744073709551616"
	if _, _, err := BuildOperation(bad); err == nil {
		t.Fatalf("expected amount overflow error")
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"42":                   42,
		"1_000":                1000,
		"0xff":                 255,
		" 7 ":                  7,
		"18446744073709551615": 18446744073709551615,
	}
	for input, want := range cases {
		got, err := ParseAmount(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: %d != %d", input, got, want)
		}
	}
	if _, err := ParseAmount("-1"); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}
