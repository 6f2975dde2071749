package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"liquidityPool/internal/model"
	"liquidityPool/internal/settlement"
)

var _ settlement.Ledger = (*Store)(nil)

type lockedPool struct {
	account common.Address
	total   uint64
}

// Balance implements settlement.Ledger.
func (s *Store) Balance(ctx context.Context, account, token common.Address) (uint64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	pools, err := loadPools(ctx, tx, []common.Address{token}, false)
	if err != nil {
		return 0, err
	}
	return balanceIn(ctx, tx, pools, account, token, false)
}

// RegisterPool inserts the pool record so its liquidity token resolves to claims.
func (s *Store) RegisterPool(ctx context.Context, pool model.Pool) error {
	var account string
	err := s.pool.QueryRow(ctx, `SELECT account FROM pools WHERE liquidity_token=$1`, pool.LiquidityToken).Scan(&account)
	switch {
	case err == nil:
		if account != pool.Account {
			return fmt.Errorf("liquidity token %s already bound to %s", pool.LiquidityToken, account)
		}
		return nil
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}
	return s.UpsertPools(ctx, []model.Pool{pool})
}

// Fund credits an account outside of any intent.
func (s *Store) Fund(ctx context.Context, account, token common.Address, amount uint64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pools WHERE liquidity_token=$1)`, token.Hex()).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("cannot fund liquidity token %s", token.Hex())
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO balances (account, token, amount, updated_at)
		VALUES ($1, $2, $3::text::numeric, now())
		ON CONFLICT (account, token) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
	`, account.Hex(), token.Hex(), formatAmount(amount))
	if err != nil {
		return fmt.Errorf("fund %s: %w", account.Hex(), err)
	}
	return nil
}

// Commit implements settlement.Ledger. Pool rows and touched balances are
// locked for the duration of one transaction, so assertions are evaluated
// against the state the effects are applied to.
func (s *Store) Commit(ctx context.Context, intent *settlement.Intent) error {
	if intent == nil {
		return fmt.Errorf("intent is nil")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pools, err := loadPools(ctx, tx, intentTokens(intent), true)
	if err != nil {
		return err
	}

	for _, a := range intent.Assertions {
		if a.Min > a.Max {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "malformed bound %s", a)
		}
		value, err := balanceIn(ctx, tx, pools, a.Account, a.Token, true)
		if err != nil {
			return err
		}
		if !a.Holds(value) {
			return settlement.NewCommitError(settlement.KindPreconditionViolated, intent.ID, "%s, actual %d", a, value)
		}
	}

	for _, burn := range intent.Burns {
		pool, ok := pools[burn.Token]
		if !ok {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "unknown liquidity token %s", burn.Token.Hex())
		}
		if burn.Holder == pool.account {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "cannot burn from pool account")
		}
		tag, err := tx.Exec(ctx, `
			UPDATE claims SET amount = amount - $3::text::numeric
			WHERE liquidity_token=$1 AND holder=$2 AND amount >= $3::text::numeric
		`, burn.Token.Hex(), burn.Holder.Hex(), formatAmount(burn.Amount))
		if err != nil {
			return statementFailed(intent.ID, "burn", err)
		}
		if tag.RowsAffected() == 0 {
			return settlement.NewCommitError(settlement.KindInsufficientClaim, intent.ID, "%s cannot burn %d", burn.Holder.Hex(), burn.Amount)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM claims WHERE liquidity_token=$1 AND holder=$2 AND amount = 0`, burn.Token.Hex(), burn.Holder.Hex()); err != nil {
			return statementFailed(intent.ID, "burn", err)
		}
		if err := adjustTotal(ctx, tx, burn.Token, "-", burn.Amount); err != nil {
			return statementFailed(intent.ID, "burn", err)
		}
	}

	for _, tr := range intent.Transfers {
		if _, ok := pools[tr.Token]; ok {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "liquidity token %s is not transferable", tr.Token.Hex())
		}
		if tr.Amount == 0 {
			continue
		}
		tag, err := tx.Exec(ctx, `
			UPDATE balances SET amount = amount - $3::text::numeric, updated_at = now()
			WHERE account=$1 AND token=$2 AND amount >= $3::text::numeric
		`, tr.From.Hex(), tr.Token.Hex(), formatAmount(tr.Amount))
		if err != nil {
			return statementFailed(intent.ID, "debit", err)
		}
		if tag.RowsAffected() == 0 {
			return settlement.NewCommitError(settlement.KindInsufficientBalance, intent.ID, "%s cannot send %d of %s",
				tr.From.Hex(), tr.Amount, tr.Token.Hex())
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO balances (account, token, amount, updated_at)
			VALUES ($1, $2, $3::text::numeric, now())
			ON CONFLICT (account, token) DO UPDATE
			SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
		`, tr.To.Hex(), tr.Token.Hex(), formatAmount(tr.Amount)); err != nil {
			return statementFailed(intent.ID, "credit "+tr.To.Hex(), err)
		}
	}

	for _, mint := range intent.Mints {
		pool, ok := pools[mint.Token]
		if !ok {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "unknown liquidity token %s", mint.Token.Hex())
		}
		if mint.Holder == pool.account || mint.Amount == 0 {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "invalid mint to %s", mint.Holder.Hex())
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO claims (liquidity_token, holder, amount)
			VALUES ($1, $2, $3::text::numeric)
			ON CONFLICT (liquidity_token, holder) DO UPDATE
			SET amount = claims.amount + EXCLUDED.amount
		`, mint.Token.Hex(), mint.Holder.Hex(), formatAmount(mint.Amount)); err != nil {
			return statementFailed(intent.ID, "mint", err)
		}
		if err := adjustTotal(ctx, tx, mint.Token, "+", mint.Amount); err != nil {
			return statementFailed(intent.ID, "mint", err)
		}
	}

	for _, lock := range intent.Locks {
		if _, ok := pools[lock.Token]; !ok || lock.Amount == 0 {
			return settlement.NewCommitError(settlement.KindRejected, intent.ID, "invalid lock on %s", lock.Token.Hex())
		}
		if _, err := tx.Exec(ctx, `
			UPDATE pools SET locked = locked + $2::text::numeric,
				total_liquidity = total_liquidity + $2::text::numeric, updated_at = now()
			WHERE liquidity_token=$1
		`, lock.Token.Hex(), formatAmount(lock.Amount)); err != nil {
			return statementFailed(intent.ID, "lock", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return statementFailed(intent.ID, "commit", err)
	}
	return nil
}

// statementFailed rejects the intent when a write inside its transaction
// fails, e.g. on a CHECK constraint or numeric overflow.
func statementFailed(intentID, stage string, err error) error {
	return settlement.NewCommitError(settlement.KindRejected, intentID, "%s: %v", stage, err)
}

func adjustTotal(ctx context.Context, tx pgx.Tx, token common.Address, op string, amount uint64) error {
	_, err := tx.Exec(ctx, `
		UPDATE pools SET total_liquidity = total_liquidity `+op+` $2::text::numeric, updated_at = now()
		WHERE liquidity_token=$1
	`, token.Hex(), formatAmount(amount))
	return err
}

// intentTokens lists every token an intent touches.
func intentTokens(intent *settlement.Intent) []common.Address {
	tokens := make([]common.Address, 0, len(intent.Assertions)+len(intent.Transfers))
	for _, a := range intent.Assertions {
		tokens = append(tokens, a.Token)
	}
	for _, tr := range intent.Transfers {
		tokens = append(tokens, tr.Token)
	}
	for _, group := range [][]settlement.ClaimDelta{intent.Burns, intent.Mints, intent.Locks} {
		for _, d := range group {
			tokens = append(tokens, d.Token)
		}
	}
	return tokens
}

func loadPools(ctx context.Context, tx pgx.Tx, tokens []common.Address, forUpdate bool) (map[common.Address]lockedPool, error) {
	hexes := make([]string, 0, len(tokens))
	for _, token := range tokens {
		hexes = append(hexes, token.Hex())
	}
	query := `SELECT liquidity_token, account, total_liquidity::text FROM pools WHERE liquidity_token = ANY($1) ORDER BY liquidity_token`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := tx.Query(ctx, query, hexes)
	if err != nil {
		return nil, fmt.Errorf("load pools: %w", err)
	}
	defer rows.Close()

	out := make(map[common.Address]lockedPool)
	for rows.Next() {
		var token, account, total string
		if err := rows.Scan(&token, &account, &total); err != nil {
			return nil, err
		}
		value, err := parseAmount(total)
		if err != nil {
			return nil, fmt.Errorf("pool %s total: %w", token, err)
		}
		out[common.HexToAddress(token)] = lockedPool{account: common.HexToAddress(account), total: value}
	}
	return out, rows.Err()
}

func balanceIn(ctx context.Context, tx pgx.Tx, pools map[common.Address]lockedPool, account, token common.Address, forUpdate bool) (uint64, error) {
	var query string
	var args []interface{}
	if pool, ok := pools[token]; ok {
		if account == pool.account {
			return pool.total, nil
		}
		query = `SELECT amount::text FROM claims WHERE liquidity_token=$1 AND holder=$2`
		args = []interface{}{token.Hex(), account.Hex()}
	} else {
		query = `SELECT amount::text FROM balances WHERE account=$1 AND token=$2`
		args = []interface{}{account.Hex(), token.Hex()}
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw string
	if err := tx.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseAmount(raw)
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}
