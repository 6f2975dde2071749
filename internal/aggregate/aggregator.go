package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityPool/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	Pools         []model.Pool
}

// Sink receives the pool registry and the flushed windows. *postgres.Store
// implements it.
type Sink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Summary counts aggregation outcomes.
type Summary struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator aggregates journaled transitions into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over a transition journal.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Summary, error) {
	var summary Summary
	if a.sink == nil {
		return summary, fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return summary, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	if err := a.sink.UpsertPools(ctx, a.cfg.Pools); err != nil {
		return summary, fmt.Errorf("upsert pools: %w", err)
	}

	resumeFrom, err := a.loadResumePoint(ctx)
	if err != nil {
		return summary, err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return summary, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TransitionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			a.logger.Warn("decode transition", zap.Error(err))
			continue
		}

		if record.Timestamp < resumeFrom {
			summary.Skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.PoolID)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record.PoolID, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc))
			summary.Windows++
			acc = NewAccumulator(record.PoolID, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddRecord(record); err != nil {
			summary.Failed++
			a.logger.Warn("aggregate transition", zap.Error(err), zap.String("pool", record.PoolID), zap.String("kind", record.Kind))
			continue
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return summary, err
			}
			batch = batch[:0]

			if err := a.saveState(ctx, resumeFrom); err != nil {
				return summary, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		summary.Windows++
	}

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return summary, err
		}
	}

	// the last window of each pool may still grow, so the next run rebuilds it
	if err := a.saveState(ctx, resumeFrom); err != nil {
		return summary, err
	}
	a.accumulators = make(map[string]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", summary.Total),
		zap.Int("windows", summary.Windows),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}

// loadResumePoint returns the first timestamp to aggregate. It is always a
// window start, so no window is ever rebuilt from part of its records.
func (a *Aggregator) loadResumePoint(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds), nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	start, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return windowStart(start, a.cfg.WindowSeconds), nil
}

// saveState stores the start of the earliest window still open; windows
// before it are final. Without open windows the previous point is kept.
func (a *Aggregator) saveState(ctx context.Context, fallback uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	start, ok := minOpenWindowStart(a.accumulators)
	if !ok {
		start = fallback
	}
	return a.cfg.StateStore.Save(ctx, start)
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	metrics := model.PoolWindowMetrics{
		PoolID:          acc.PoolID,
		WindowSizeSecs:  int64(a.cfg.WindowSeconds),
		WindowStart:     time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:       acc.SwapCount,
		AddCount:        acc.AddCount,
		RemoveCount:     acc.RemoveCount,
		RejectedCount:   acc.RejectedCount,
		BaseVolumeIn:    acc.BaseIn.String(),
		QuoteVolumeIn:   acc.QuoteIn.String(),
		BaseVolumeOut:   acc.BaseOut.String(),
		QuoteVolumeOut:  acc.QuoteOut.String(),
		LiquidityMinted: acc.Minted.String(),
		LiquidityBurned: acc.Burned.String(),
	}
	if acc.Reserves != nil {
		metrics.ReserveBase = optional(acc.Reserves.ReserveBase)
		metrics.ReserveQuote = optional(acc.Reserves.ReserveQuote)
		metrics.TotalLiquidity = optional(acc.Reserves.TotalLiquidity)
		metrics.PriceQuote = priceQuote(acc.Reserves)
	}
	return metrics
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(id string) string {
	return strings.ToLower(id)
}

func minOpenWindowStart(acc map[string]*Accumulator) (uint64, bool) {
	var (
		min   uint64
		found bool
	)
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if !found || entry.WindowStart < min {
			min = entry.WindowStart
			found = true
		}
	}
	return min, found
}
