package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/replay"
)

type transitionOutput struct {
	Kind     string      `json:"kind"`
	Caller   string      `json:"caller"`
	IntentID string      `json:"intent_id"`
	BaseIn   uint64      `json:"base_in"`
	QuoteIn  uint64      `json:"quote_in"`
	BaseOut  uint64      `json:"base_out"`
	QuoteOut uint64      `json:"quote_out"`
	Minted   uint64      `json:"minted"`
	Burned   uint64      `json:"burned"`
	Locked   uint64      `json:"locked,omitempty"`
	Intent   interface{} `json:"intent,omitempty"`
	State    *pool.State `json:"state,omitempty"`
}

func newTransitionOutput(tr *pool.Transition) transitionOutput {
	return transitionOutput{
		Kind:     string(tr.Op.Kind),
		Caller:   tr.Op.Caller.Hex(),
		IntentID: tr.Intent.ID,
		BaseIn:   tr.BaseIn,
		QuoteIn:  tr.QuoteIn,
		BaseOut:  tr.BaseOut,
		QuoteOut: tr.QuoteOut,
		Minted:   tr.Minted,
		Burned:   tr.Burned,
		Locked:   tr.Locked,
	}
}

func printJSON(value interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// operationRecord maps command flags onto the replay input format so both
// paths build operations the same way.
func operationRecord(cfg config.OperationConfig, kind string) model.OperationRecord {
	return model.OperationRecord{
		Kind:     kind,
		Caller:   cfg.Caller,
		Amount:   cfg.Amount,
		Limit:    cfg.Limit,
		InMin:    cfg.InMin,
		InMax:    cfg.InMax,
		OutMin:   cfg.OutMin,
		OutMax:   cfg.OutMax,
		SlackBps: cfg.SlackBps,
	}
}

func runOperation(kindFor func(from string) string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOperation(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		caller, build, err := replay.BuildOperation(operationRecord(cfg, kindFor(cfg.From)))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(ctx, cfg.Config, nil, logger)
		if err != nil {
			return err
		}
		defer e.Close()

		tr, err := e.coord.ExecuteWith(ctx, caller, build)
		if err != nil {
			if tr == nil {
				return err
			}
			logger.Warn("transition committed but not journaled", zap.Error(err))
		}

		out := newTransitionOutput(tr)
		if state, err := e.coord.State(ctx); err == nil {
			out.State = &state
		}
		return printJSON(out)
	}
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOperation(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kind := "swap_" + cfg.From + "_in"
	caller, build, err := replay.BuildOperation(operationRecord(cfg, kind))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cfg.Config, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	snap, err := e.coord.Snapshot(ctx, caller)
	if err != nil {
		return err
	}

	if cfg.RPCURL != "" {
		if !common.IsHexAddress(cfg.Mirror) {
			return fmt.Errorf("mirror account is required with rpc")
		}
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer client.Close()

		observer := chain.NewObserver(client, logger)
		reserves, err := observer.Reserves(ctx, common.HexToAddress(cfg.Mirror), e.pool.Base, e.pool.Quote, cfg.Block)
		if err != nil {
			return err
		}
		base, err := observer.TokenMeta(ctx, e.pool.Base)
		if err != nil {
			logger.Warn("base token meta", zap.Error(err))
		}
		quote, err := observer.TokenMeta(ctx, e.pool.Quote)
		if err != nil {
			logger.Warn("quote token meta", zap.Error(err))
		}
		logger.Info("observed mirror reserves",
			zap.String("mirror", cfg.Mirror),
			zap.Uint64("block", reserves.BlockNumber),
			zap.String("base_symbol", base.Symbol),
			zap.Uint64("reserve_base", reserves.Base),
			zap.String("quote_symbol", quote.Symbol),
			zap.Uint64("reserve_quote", reserves.Quote),
		)
		snap.ReserveBase = reserves.Base
		snap.ReserveQuote = reserves.Quote
	}

	op, err := build(snap)
	if err != nil {
		return err
	}
	tr, err := e.pool.Prepare(snap, op)
	if err != nil {
		return err
	}

	out := newTransitionOutput(tr)
	out.Intent = tr.Intent
	out.State = &snap.State
	return printJSON(out)
}

func runState(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOperation(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cfg.Config, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	state, err := e.coord.State(ctx)
	if err != nil {
		return err
	}

	status := pool.StatusEmpty
	if state.TotalLiquidity > 0 {
		status = pool.StatusSeeded
	}
	out := struct {
		model.Pool
		Status string       `json:"status"`
		State  pool.State   `json:"state"`
		Claim  *claimOutput `json:"claim,omitempty"`
	}{
		Pool:   e.pool.Record(),
		Status: status.String(),
		State:  state,
	}

	if cfg.Caller != "" {
		holder, err := replay.ParseAddress(cfg.Caller)
		if err != nil {
			return err
		}
		claim, err := e.ledger.Balance(ctx, holder, e.pool.LiquidityToken)
		if err != nil {
			return err
		}
		out.Claim = &claimOutput{Holder: holder.Hex(), Amount: claim}
	}
	return printJSON(out)
}

type claimOutput struct {
	Holder string `json:"holder"`
	Amount uint64 `json:"amount"`
}

func runFund(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFund(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	accounts, err := replay.ParseAddresses(cfg.Accounts)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("account list is required")
	}
	token, err := replay.ParseAddress(cfg.Token)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	amount, err := replay.ParseAmount(cfg.Amount)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cfg.Config, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, account := range accounts {
		if err := e.ledger.Fund(ctx, account, token, amount); err != nil {
			return fmt.Errorf("fund %s: %w", account.Hex(), err)
		}
		logger.Info("account funded",
			zap.String("account", account.Hex()),
			zap.String("token", token.Hex()),
			zap.Uint64("amount", amount),
		)
	}
	return nil
}
