package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPool/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	account TEXT NOT NULL,
	token TEXT NOT NULL,
	amount NUMERIC(20,0) NOT NULL CHECK (amount >= 0 AND amount <= 18446744073709551615),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (account, token)
);

CREATE TABLE IF NOT EXISTS pools (
	pool_id TEXT PRIMARY KEY,
	account TEXT NOT NULL UNIQUE,
	liquidity_token TEXT NOT NULL UNIQUE,
	base_token TEXT NOT NULL,
	quote_token TEXT NOT NULL,
	min_locked_liquidity NUMERIC(20,0) NOT NULL,
	locked NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_liquidity NUMERIC(20,0) NOT NULL DEFAULT 0 CHECK (total_liquidity <= 18446744073709551615),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS claims (
	liquidity_token TEXT NOT NULL,
	holder TEXT NOT NULL,
	amount NUMERIC(20,0) NOT NULL CHECK (amount > 0),
	PRIMARY KEY (liquidity_token, holder)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	swap_count BIGINT NOT NULL,
	add_count BIGINT NOT NULL,
	remove_count BIGINT NOT NULL,
	rejected_count BIGINT NOT NULL,
	base_volume_in NUMERIC NOT NULL,
	quote_volume_in NUMERIC NOT NULL,
	base_volume_out NUMERIC NOT NULL,
	quote_volume_out NUMERIC NOT NULL,
	liquidity_minted NUMERIC NOT NULL,
	liquidity_burned NUMERIC NOT NULL,
	reserve_base NUMERIC,
	reserve_quote NUMERIC,
	total_liquidity NUMERIC,
	price_quote NUMERIC,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS replay_state (
	name TEXT PRIMARY KEY,
	last_processed BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the ledger, pool registry and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool registry records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, account, liquidity_token, base_token, quote_token, min_locked_liquidity, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				min_locked_liquidity = EXCLUDED.min_locked_liquidity,
				updated_at = now()
		`,
			pool.PoolID,
			pool.Account,
			pool.LiquidityToken,
			pool.BaseToken,
			pool.QuoteToken,
			formatAmount(pool.MinLockedLiquidity),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, add_count, remove_count, rejected_count,
				base_volume_in, quote_volume_in, base_volume_out, quote_volume_out,
				liquidity_minted, liquidity_burned,
				reserve_base, reserve_quote, total_liquidity, price_quote, created_at, updated_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,
				$9::text::numeric,$10::text::numeric,$11::text::numeric,$12::text::numeric,
				$13::text::numeric,$14::text::numeric,
				$15::text::numeric,$16::text::numeric,$17::text::numeric,$18::text::numeric,now(),now()
			)
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				add_count = EXCLUDED.add_count,
				remove_count = EXCLUDED.remove_count,
				rejected_count = EXCLUDED.rejected_count,
				base_volume_in = EXCLUDED.base_volume_in,
				quote_volume_in = EXCLUDED.quote_volume_in,
				base_volume_out = EXCLUDED.base_volume_out,
				quote_volume_out = EXCLUDED.quote_volume_out,
				liquidity_minted = EXCLUDED.liquidity_minted,
				liquidity_burned = EXCLUDED.liquidity_burned,
				reserve_base = EXCLUDED.reserve_base,
				reserve_quote = EXCLUDED.reserve_quote,
				total_liquidity = EXCLUDED.total_liquidity,
				price_quote = EXCLUDED.price_quote,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.AddCount),
			int64(m.RemoveCount),
			int64(m.RejectedCount),
			m.BaseVolumeIn,
			m.QuoteVolumeIn,
			m.BaseVolumeOut,
			m.QuoteVolumeOut,
			m.LiquidityMinted,
			m.LiquidityBurned,
			m.ReserveBase,
			m.ReserveQuote,
			m.TotalLiquidity,
			m.PriceQuote,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last processed position for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts the last processed position for a name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}
