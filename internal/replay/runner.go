package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"liquidityPool/internal/metrics"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	InputPath         string
	FromLine          uint64
	ToLine            uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	FailFast          bool
}

// Summary counts replay outcomes.
type Summary struct {
	Total     int
	Committed int
	Rejected  int
	Invalid   int
	Retries   int
}

// Runner replays a JSONL file of operations through a coordinator. It owns
// the retry policy: only precondition violations are retried.
type Runner struct {
	cfg        RunConfig
	coord      *pool.Coordinator
	errors     *storage.JSONLWriter
	metrics    *metrics.PoolMetrics
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. errWriter may be nil.
func NewRunner(cfg RunConfig, coord *pool.Coordinator, errWriter *storage.JSONLWriter, m *metrics.PoolMetrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		coord:      coord,
		errors:     errWriter,
		metrics:    m,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if r.coord == nil {
		return summary, fmt.Errorf("coordinator is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	lines, err := readLines(r.cfg.InputPath)
	if err != nil {
		return summary, err
	}
	if len(lines) == 0 {
		r.logger.Info("nothing to replay", zap.String("input", r.cfg.InputPath))
		return summary, nil
	}

	from := r.cfg.FromLine
	if from == 0 {
		from = 1
	}
	to := r.cfg.ToLine
	if to == 0 || to > uint64(len(lines)) {
		to = uint64(len(lines))
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return summary, err
	}
	if ok && cp.Input == r.cfg.InputPath && cp.LastProcessedLine >= from {
		from = cp.LastProcessedLine + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedLine), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, lineRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		last := lineRange.From - 1
		for n := lineRange.From; n <= lineRange.To; n++ {
			line := bytes.TrimSpace(lines[n-1])
			if len(line) == 0 {
				last = n
				continue
			}
			summary.Total++
			done, err := r.replayLine(ctx, n, line, &summary)
			if done {
				last = n
			}
			if err != nil {
				// lines before the failing one are settled and must not run again
				if last >= lineRange.From {
					if cerr := r.checkpoint.Save(r.cfg.InputPath, last); cerr != nil {
						r.logger.Warn("save checkpoint", zap.Uint64("line", last), zap.Error(cerr))
					}
				}
				return summary, err
			}
		}

		if err := r.checkpoint.Save(r.cfg.InputPath, lineRange.To); err != nil {
			return summary, err
		}

		r.logger.Info("batch complete",
			zap.Uint64("from", lineRange.From),
			zap.Uint64("to", lineRange.To),
			zap.Int("committed", summary.Committed),
			zap.Int("rejected", summary.Rejected),
		)
	}

	r.logger.Info("replay complete",
		zap.Int("total", summary.Total),
		zap.Int("committed", summary.Committed),
		zap.Int("rejected", summary.Rejected),
		zap.Int("invalid", summary.Invalid),
		zap.Int("retries", summary.Retries),
	)
	return summary, nil
}

// replayLine settles one input line. done reports whether the line needs no
// further replay, which holds for every outcome except a stop before the
// line was settled.
func (r *Runner) replayLine(ctx context.Context, n uint64, line []byte, summary *Summary) (bool, error) {
	var record model.OperationRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return r.invalid(n, line, fmt.Errorf("decode operation: %w", err), summary)
	}
	caller, build, err := BuildOperation(record)
	if err != nil {
		return r.invalid(n, line, err, summary)
	}

	var journalErr error
	onRetry := func(err error) {
		summary.Retries++
		r.metrics.IncRetry(record.Kind)
		r.logger.Debug("precondition violated, retrying", zap.Uint64("line", n), zap.Error(err))
	}
	attempts, err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, isRetryable, onRetry, func(ctx context.Context, final bool) error {
		tr, err := r.coord.ExecuteAttempt(ctx, caller, build, final)
		if tr != nil && err != nil {
			journalErr = err
			return nil
		}
		return err
	})

	switch {
	case journalErr != nil:
		summary.Committed++
		return true, journalErr
	case err == nil:
		summary.Committed++
		return true, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return false, err
	}

	summary.Rejected++
	r.logger.Warn("operation rejected",
		zap.Uint64("line", n),
		zap.String("kind", record.Kind),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	if r.cfg.FailFast {
		return false, fmt.Errorf("line %d: %w", n, err)
	}
	return true, nil
}

func (r *Runner) invalid(n uint64, line []byte, err error, summary *Summary) (bool, error) {
	summary.Invalid++
	r.logger.Warn("invalid operation", zap.Uint64("line", n), zap.Error(err))
	if werr := r.errors.Write(model.OperationError{Line: n, Raw: string(line), Error: err.Error()}); werr != nil {
		return false, werr
	}
	if r.cfg.FailFast {
		return false, fmt.Errorf("line %d: %w", n, err)
	}
	return true, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, pool.ErrPreconditionViolated)
}

func readLines(path string) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var lines [][]byte
	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return lines, nil
}
