package aggregate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"liquidityPool/internal/model"
)

type memorySink struct {
	pools   []model.Pool
	windows []model.PoolWindowMetrics
}

func (s *memorySink) UpsertPools(ctx context.Context, pools []model.Pool) error {
	s.pools = append(s.pools, pools...)
	return nil
}

func (s *memorySink) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	s.windows = append(s.windows, metrics...)
	return nil
}

const testPool = "0x6d5c2a0ad1e0ae1b1a4e0b6a09b1fcb5f2b4d8d6e3a0c5a9a6f6b8e9c8d7e6f5"

func committed(ts uint64, kind, baseIn, quoteOut string, reserves *model.ReserveState) model.TransitionRecord {
	return model.TransitionRecord{
		PoolID:    testPool,
		Kind:      kind,
		Status:    model.StatusCommitted,
		Timestamp: ts,
		BaseIn:    baseIn,
		QuoteIn:   "0",
		BaseOut:   "0",
		QuoteOut:  quoteOut,
		Minted:    "0",
		Burned:    "0",
		Reserves:  reserves,
	}
}

func writeJournal(t *testing.T, records []model.TransitionRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if _, err := file.WriteString("garbage\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func appendJournal(t *testing.T, path string, records []model.TransitionRecord) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
}

func TestWindowStart(t *testing.T) {
	if got := windowStart(3725, 3600); got != 3600 {
		t.Fatalf("unexpected window start: %d", got)
	}
	if got := windowStart(3600, 3600); got != 3600 {
		t.Fatalf("boundary must open a window: %d", got)
	}
}

func TestAccumulatorCountsAndVolumes(t *testing.T) {
	acc := NewAccumulator(testPool, 0, 3600)

	seed := committed(10, "seed", "10000", "0", nil)
	seed.QuoteIn = "50000"
	seed.Minted = "59000"
	seed.Locked = "1000"
	reserves := &model.ReserveState{ReserveBase: "11000", ReserveQuote: "45500", TotalLiquidity: "60000"}
	swap := committed(20, "swap_base_in", "1000", "4500", reserves)
	refused := model.TransitionRecord{PoolID: testPool, Kind: "remove", Status: model.StatusInvalid, Timestamp: 30}

	for _, rec := range []model.TransitionRecord{seed, swap, refused} {
		if err := acc.AddRecord(rec); err != nil {
			t.Fatalf("add record: %v", err)
		}
	}

	if acc.SwapCount != 1 || acc.AddCount != 1 || acc.RemoveCount != 0 || acc.RejectedCount != 1 {
		t.Fatalf("unexpected counts: %+v", acc)
	}
	if acc.BaseIn.String() != "11000" || acc.QuoteIn.String() != "50000" || acc.QuoteOut.String() != "4500" {
		t.Fatalf("unexpected volumes: %s %s %s", acc.BaseIn, acc.QuoteIn, acc.QuoteOut)
	}
	if acc.Minted.String() != "60000" {
		t.Fatalf("minted must include the locked minimum: %s", acc.Minted)
	}
	if acc.Reserves == nil || acc.Reserves.ReserveQuote != "45500" {
		t.Fatalf("unexpected reserves: %+v", acc.Reserves)
	}

	if err := acc.AddRecord(committed(40, "flash", "1", "0", nil)); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if err := acc.AddRecord(committed(40, "swap_base_in", "-1", "0", nil)); err == nil {
		t.Fatalf("expected negative amount error")
	}
}

func TestAggregatorRun(t *testing.T) {
	reserves := &model.ReserveState{ReserveBase: "4", ReserveQuote: "10", TotalLiquidity: "14"}
	path := writeJournal(t, []model.TransitionRecord{
		committed(100, "swap_base_in", "5", "7", nil),
		committed(200, "swap_base_in", "3", "2", reserves),
		committed(3700, "remove", "0", "1", nil),
	})

	sink := &memorySink{}
	statePath := filepath.Join(t.TempDir(), "state.json")
	state := &FileStateStore{Path: statePath, Name: "aggregate:3600"}
	pools := []model.Pool{{PoolID: testPool, BaseToken: "0xaa", QuoteToken: "0xbb"}}
	agg := NewAggregator(Config{WindowSeconds: 3600, BatchSize: 10, StateStore: state, Pools: pools}, sink, nil)

	summary, err := agg.Run(context.Background(), path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary != (Summary{Total: 4, Windows: 2, Failed: 1}) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(sink.pools) != 1 || len(sink.windows) != 2 {
		t.Fatalf("unexpected sink contents: %d pools %d windows", len(sink.pools), len(sink.windows))
	}

	sort.Slice(sink.windows, func(i, j int) bool { return sink.windows[i].WindowStart.Before(sink.windows[j].WindowStart) })
	first := sink.windows[0]
	if !first.WindowStart.Equal(time.Unix(0, 0)) || first.SwapCount != 2 || first.BaseVolumeIn != "8" || first.QuoteVolumeOut != "9" {
		t.Fatalf("unexpected first window: %+v", first)
	}
	if first.PriceQuote == nil || *first.PriceQuote != "2.500000000000000000" {
		t.Fatalf("unexpected price: %v", first.PriceQuote)
	}
	if sink.windows[1].RemoveCount != 1 || sink.windows[1].ReserveBase != nil {
		t.Fatalf("unexpected second window: %+v", sink.windows[1])
	}

	resume, ok, err := state.Load(context.Background())
	if err != nil || !ok || resume != 3600 {
		t.Fatalf("progress must point at the last open window: %d %v %v", resume, ok, err)
	}

	// records landing in the same second as the last one and later in the
	// same window rebuild that window in full
	appendJournal(t, path, []model.TransitionRecord{
		committed(3700, "remove", "0", "2", nil),
		committed(3800, "swap_base_in", "4", "3", nil),
	})
	next := &memorySink{}
	again, err := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, next, nil).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != (Summary{Total: 6, Windows: 1, Skipped: 2, Failed: 1}) {
		t.Fatalf("unexpected second summary: %+v", again)
	}
	rebuilt := next.windows[0]
	if !rebuilt.WindowStart.Equal(time.Unix(3600, 0)) || rebuilt.RemoveCount != 2 || rebuilt.SwapCount != 1 || rebuilt.QuoteVolumeOut != "6" {
		t.Fatalf("last window must hold every record: %+v", rebuilt)
	}

	// an explicit recompute point is aligned to its window
	recomputed := &memorySink{}
	full, err := NewAggregator(Config{WindowSeconds: 3600, RecomputeFrom: 150, StateStore: state}, recomputed, nil).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("recompute run: %v", err)
	}
	if full.Skipped != 0 || full.Windows != 2 {
		t.Fatalf("unexpected recompute summary: %+v", full)
	}

	other := &FileStateStore{Path: statePath, Name: "aggregate:60"}
	if _, ok, err := other.Load(context.Background()); err != nil || ok {
		t.Fatalf("window sizes must not share progress: %v %v", ok, err)
	}
}
