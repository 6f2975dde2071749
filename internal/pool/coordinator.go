package pool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPool/internal/metrics"
	"liquidityPool/internal/model"
	"liquidityPool/internal/settlement"
	"liquidityPool/internal/storage"
)

// Builder produces an operation from a fresh snapshot. It lets a caller derive
// bounds from what it just observed.
type Builder func(snap Snapshot) (Operation, error)

// Coordinator is the caller-side actor: it observes the ledger, prepares an
// operation and submits the resulting intent. It never retries.
type Coordinator struct {
	pool    *Pool
	ledger  settlement.Ledger
	journal storage.Journal
	metrics *metrics.PoolMetrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewCoordinator(p *Pool, ledger settlement.Ledger, journal storage.Journal, m *metrics.PoolMetrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = storage.Discard{}
	}
	return &Coordinator{
		pool:    p,
		ledger:  ledger,
		journal: journal,
		metrics: m,
		logger:  logger.With(zap.String("pool", p.ID.Hex())),
		now:     time.Now,
	}
}

func (c *Coordinator) Pool() *Pool {
	return c.pool
}

// State reads the pool state from the ledger.
func (c *Coordinator) State(ctx context.Context) (State, error) {
	base, err := c.ledger.Balance(ctx, c.pool.Account, c.pool.Base)
	if err != nil {
		return State{}, fmt.Errorf("base reserve: %w", err)
	}
	quote, err := c.ledger.Balance(ctx, c.pool.Account, c.pool.Quote)
	if err != nil {
		return State{}, fmt.Errorf("quote reserve: %w", err)
	}
	total, err := c.ledger.Balance(ctx, c.pool.Account, c.pool.LiquidityToken)
	if err != nil {
		return State{}, fmt.Errorf("total liquidity: %w", err)
	}
	return State{ReserveBase: base, ReserveQuote: quote, TotalLiquidity: total}, nil
}

// Snapshot reads the pool state and the caller's claim. The reads are not
// atomic with each other; the intent's assertions catch any drift.
func (c *Coordinator) Snapshot(ctx context.Context, caller common.Address) (Snapshot, error) {
	state, err := c.State(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	claim, err := c.ledger.Balance(ctx, caller, c.pool.LiquidityToken)
	if err != nil {
		return Snapshot{}, fmt.Errorf("caller claim: %w", err)
	}
	return Snapshot{State: state, CallerClaim: claim}, nil
}

// Quote prepares op against the current ledger state without committing.
func (c *Coordinator) Quote(ctx context.Context, op Operation) (*Transition, error) {
	snap, err := c.Snapshot(ctx, op.Caller)
	if err != nil {
		return nil, err
	}
	return c.pool.Prepare(snap, op)
}

// Execute prepares and commits op.
func (c *Coordinator) Execute(ctx context.Context, op Operation) (*Transition, error) {
	return c.ExecuteWith(ctx, op.Caller, func(Snapshot) (Operation, error) { return op, nil })
}

// ExecuteWith snapshots the ledger for caller, builds the operation, prepares
// and commits it. Ledger errors are returned verbatim. A non-nil Transition
// together with an error means the commit succeeded but journaling failed.
func (c *Coordinator) ExecuteWith(ctx context.Context, caller common.Address, build Builder) (*Transition, error) {
	return c.execute(ctx, caller, build, true)
}

// ExecuteAttempt is ExecuteWith for a caller that retries precondition
// violations. Unless final is set, such a rejection is not journaled.
func (c *Coordinator) ExecuteAttempt(ctx context.Context, caller common.Address, build Builder, final bool) (*Transition, error) {
	return c.execute(ctx, caller, build, final)
}

func (c *Coordinator) execute(ctx context.Context, caller common.Address, build Builder, final bool) (*Transition, error) {
	snap, err := c.Snapshot(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	op, err := build(snap)
	if err != nil {
		return nil, err
	}

	tr, err := c.pool.Prepare(snap, op)
	if err != nil {
		c.metrics.ObserveRejected(string(op.Kind), Reason(err))
		c.logger.Info("operation refused", zap.String("kind", string(op.Kind)), zap.String("caller", op.Caller.Hex()), zap.Error(err))
		if jerr := c.journal.PutTransitions([]model.TransitionRecord{c.record(op, nil, model.StatusInvalid, err, nil)}); jerr != nil {
			c.logger.Warn("journal write failed", zap.Error(jerr))
		}
		return nil, err
	}
	c.metrics.ObservePrepared(string(op.Kind))

	start := time.Now()
	if err := c.ledger.Commit(ctx, tr.Intent); err != nil {
		c.metrics.ObserveRejected(string(op.Kind), Reason(err))
		c.logger.Info("intent rejected",
			zap.String("kind", string(op.Kind)),
			zap.String("intent", tr.Intent.ID),
			zap.Bool("final", final),
			zap.Error(err),
		)
		if !final && errors.Is(err, ErrPreconditionViolated) {
			return nil, err
		}
		if jerr := c.journal.PutTransitions([]model.TransitionRecord{c.record(op, tr, model.StatusRejected, err, nil)}); jerr != nil {
			c.logger.Warn("journal write failed", zap.Error(jerr))
		}
		return nil, err
	}
	c.metrics.ObserveCommitted(string(op.Kind), time.Since(start))

	var after *State
	if state, err := c.State(ctx); err == nil {
		after = &state
		c.metrics.SetState(c.pool.ID.Hex(), state.ReserveBase, state.ReserveQuote, state.TotalLiquidity)
	} else {
		c.logger.Warn("read state after commit", zap.Error(err))
	}

	c.logger.Info("intent committed",
		zap.String("kind", string(op.Kind)),
		zap.String("intent", tr.Intent.ID),
		zap.String("caller", op.Caller.Hex()),
		zap.Uint64("base_in", tr.BaseIn),
		zap.Uint64("quote_in", tr.QuoteIn),
		zap.Uint64("base_out", tr.BaseOut),
		zap.Uint64("quote_out", tr.QuoteOut),
		zap.Uint64("minted", tr.Minted),
		zap.Uint64("burned", tr.Burned),
	)

	if err := c.journal.PutTransitions([]model.TransitionRecord{c.record(op, tr, model.StatusCommitted, nil, after)}); err != nil {
		return tr, fmt.Errorf("journal transition: %w", err)
	}
	return tr, nil
}

func (c *Coordinator) record(op Operation, tr *Transition, status string, err error, after *State) model.TransitionRecord {
	now := c.now().UTC()
	rec := model.TransitionRecord{
		PoolID:     c.pool.ID.Hex(),
		Kind:       string(op.Kind),
		Caller:     op.Caller.Hex(),
		Status:     status,
		Reason:     Reason(err),
		Timestamp:  uint64(now.Unix()),
		RecordedAt: now.Format(time.RFC3339Nano),
		BaseIn:     "0",
		QuoteIn:    "0",
		BaseOut:    "0",
		QuoteOut:   "0",
		Minted:     "0",
		Burned:     "0",
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if tr != nil {
		rec.IntentID = tr.Intent.ID
		rec.BaseIn = formatAmount(tr.BaseIn)
		rec.QuoteIn = formatAmount(tr.QuoteIn)
		rec.BaseOut = formatAmount(tr.BaseOut)
		rec.QuoteOut = formatAmount(tr.QuoteOut)
		rec.Minted = formatAmount(tr.Minted)
		rec.Burned = formatAmount(tr.Burned)
		if tr.Locked > 0 {
			rec.Locked = formatAmount(tr.Locked)
		}
	}
	if after != nil {
		rec.Reserves = &model.ReserveState{
			ReserveBase:    formatAmount(after.ReserveBase),
			ReserveQuote:   formatAmount(after.ReserveQuote),
			TotalLiquidity: formatAmount(after.TotalLiquidity),
		}
	}
	return rec
}

// Record describes the pool for a registry.
func (p *Pool) Record() model.Pool {
	return model.Pool{
		PoolID:             p.ID.Hex(),
		Account:            p.Account.Hex(),
		LiquidityToken:     p.LiquidityToken.Hex(),
		BaseToken:          p.Base.Hex(),
		QuoteToken:         p.Quote.Hex(),
		MinLockedLiquidity: p.MinLocked,
	}
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
