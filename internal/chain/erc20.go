package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI            abi.ABI
	erc20ABIOnce        sync.Once
	erc20ABIErr         error
	erc20ABIBytes32     abi.ABI
	erc20ABIBytes32Once sync.Once
	erc20ABIBytes32Err  error
)

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

func erc20ABIBytes32Instance() (abi.ABI, error) {
	erc20ABIBytes32Once.Do(func() {
		erc20ABIBytes32, erc20ABIBytes32Err = abi.JSON(strings.NewReader(erc20ABIBytes32JSON))
	})
	return erc20ABIBytes32, erc20ABIBytes32Err
}

// Reserves are the token balances of a mirrored pool account at one block.
type Reserves struct {
	BlockNumber uint64
	Base        uint64
	Quote       uint64
}

// Observer reads reserves of an on-chain account holding the pool's tokens.
type Observer struct {
	caller ContractCaller
	logger *zap.Logger

	mu     sync.RWMutex
	tokens map[common.Address]model.TokenMeta
}

func NewObserver(caller ContractCaller, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		caller: caller,
		logger: logger,
		tokens: make(map[common.Address]model.TokenMeta),
	}
}

// Reserves reads base and quote balances of account. A zero blockNumber reads latest.
func (o *Observer) Reserves(ctx context.Context, account, base, quote common.Address, blockNumber uint64) (Reserves, error) {
	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}

	baseBal, err := o.BalanceOf(ctx, base, account, blockPtr)
	if err != nil {
		return Reserves{}, fmt.Errorf("base reserve: %w", err)
	}
	quoteBal, err := o.BalanceOf(ctx, quote, account, blockPtr)
	if err != nil {
		return Reserves{}, fmt.Errorf("quote reserve: %w", err)
	}
	return Reserves{BlockNumber: blockNumber, Base: baseBal, Quote: quoteBal}, nil
}

// BalanceOf returns owner's balance of token. Balances beyond uint64 are an error.
func (o *Observer) BalanceOf(ctx context.Context, token, owner common.Address, blockNumber *big.Int) (uint64, error) {
	if o.caller == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	values, err := o.call(ctx, token, "balanceOf", blockNumber, owner)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	if !bal.IsUint64() {
		return 0, fmt.Errorf("balance %s of %s exceeds uint64", bal, token.Hex())
	}
	return bal.Uint64(), nil
}

// TokenMeta loads and caches ERC20 metadata. Symbol and name fall back to bytes32.
func (o *Observer) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	o.mu.RLock()
	meta, ok := o.tokens[token]
	o.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta = model.TokenMeta{Address: token.Hex()}
	values, err := o.call(ctx, token, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals unexpected type %T", values[0])
	}
	meta.Decimals = decimals
	meta.Symbol = o.text(ctx, token, "symbol")
	meta.Name = o.text(ctx, token, "name")

	o.mu.Lock()
	o.tokens[token] = meta
	o.mu.Unlock()
	return meta, nil
}

func (o *Observer) text(ctx context.Context, token common.Address, method string) string {
	if values, err := o.call(ctx, token, method, nil); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return ""
	}
	values, err := callMethod(ctx, o.caller, token, bytes32ABI, method, nil)
	if err != nil {
		o.logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	if s, ok := bytes32ToString(values[0]); ok {
		return s
	}
	return ""
}

func (o *Observer) call(ctx context.Context, token common.Address, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return callMethod(ctx, o.caller, token, parsed, method, block, args...)
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
