package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPool/internal/config"
	"liquidityPool/internal/metrics"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/settlement"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
)

// fundingLedger is a settlement ledger that can also credit balances directly.
type fundingLedger interface {
	settlement.Ledger
	Fund(ctx context.Context, account, token common.Address, amount uint64) error
}

type env struct {
	pool   *pool.Pool
	ledger fundingLedger
	store  *postgres.Store
	coord  *pool.Coordinator
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// openEnv derives the pool, opens the configured ledger, registers the pool
// with it and builds a coordinator journaling to cfg.Journal.
func openEnv(ctx context.Context, cfg config.Config, m *metrics.PoolMetrics, logger *zap.Logger) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.New(pool.Config{
		Base:               common.HexToAddress(cfg.BaseToken),
		Quote:              common.HexToAddress(cfg.QuoteToken),
		MinLockedLiquidity: cfg.MinLocked,
	})
	if err != nil {
		return nil, err
	}

	e := &env{pool: p}
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		e.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		if err := store.RegisterPool(ctx, p.Record()); err != nil {
			store.Close()
			return nil, fmt.Errorf("register pool: %w", err)
		}
		e.ledger = store
	case cfg.LedgerFile != "":
		ledger, err := settlement.OpenFileLedger(cfg.LedgerFile)
		if err != nil {
			return nil, err
		}
		if err := ledger.RegisterPool(p.Accounts()); err != nil {
			return nil, fmt.Errorf("register pool: %w", err)
		}
		e.ledger = ledger
	default:
		return nil, fmt.Errorf("either pg-dsn or ledger-file is required")
	}

	var journal storage.Journal = storage.Discard{}
	if cfg.Journal != "" {
		journal = storage.NewJsonlJournal(cfg.Journal)
	}
	e.coord = pool.NewCoordinator(p, e.ledger, journal, m, logger)

	logger.Debug("pool opened",
		zap.String("pool", p.ID.Hex()),
		zap.String("account", p.Account.Hex()),
		zap.String("liquidity_token", p.LiquidityToken.Hex()),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("ledger_file", cfg.LedgerFile),
	)
	return e, nil
}
