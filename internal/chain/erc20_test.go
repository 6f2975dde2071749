package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeToken struct {
	decimals uint8
	symbol   string
	balances map[common.Address]*big.Int
}

type fakeCaller struct {
	tokens map[common.Address]*fakeToken
	calls  int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	token, ok := f.tokens[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", msg.To.Hex())
	}
	for name, method := range parsed.Methods {
		if !bytes.Equal(msg.Data[:4], method.ID) {
			continue
		}
		switch name {
		case "balanceOf":
			args, err := method.Inputs.Unpack(msg.Data[4:])
			if err != nil {
				return nil, err
			}
			bal := token.balances[args[0].(common.Address)]
			if bal == nil {
				bal = new(big.Int)
			}
			return method.Outputs.Pack(bal)
		case "decimals":
			return method.Outputs.Pack(token.decimals)
		case "symbol":
			return method.Outputs.Pack(token.symbol)
		case "name":
			return method.Outputs.Pack(token.symbol + " token")
		}
	}
	return nil, fmt.Errorf("unknown selector")
}

var (
	baseToken  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	quoteToken = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	mirror     = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newFakeCaller() *fakeCaller {
	return &fakeCaller{tokens: map[common.Address]*fakeToken{
		baseToken: {
			decimals: 18,
			symbol:   "BASE",
			balances: map[common.Address]*big.Int{mirror: big.NewInt(10_000_000_000)},
		},
		quoteToken: {
			decimals: 6,
			symbol:   "QUOTE",
			balances: map[common.Address]*big.Int{mirror: big.NewInt(50_000_000_000)},
		},
	}}
}

func TestObserverReserves(t *testing.T) {
	obs := NewObserver(newFakeCaller(), nil)
	got, err := obs.Reserves(context.Background(), mirror, baseToken, quoteToken, 0)
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if got.Base != 10_000_000_000 || got.Quote != 50_000_000_000 {
		t.Fatalf("unexpected reserves: %+v", got)
	}
}

func TestObserverBalanceBeyondUint64(t *testing.T) {
	caller := newFakeCaller()
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	caller.tokens[baseToken].balances[mirror] = huge

	obs := NewObserver(caller, nil)
	if _, err := obs.BalanceOf(context.Background(), baseToken, mirror, nil); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestObserverTokenMetaCached(t *testing.T) {
	caller := newFakeCaller()
	obs := NewObserver(caller, nil)

	meta, err := obs.TokenMeta(context.Background(), quoteToken)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "QUOTE" || meta.Name != "QUOTE token" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	calls := caller.calls
	if _, err := obs.TokenMeta(context.Background(), quoteToken); err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if caller.calls != calls {
		t.Fatalf("expected cached metadata, calls went from %d to %d", calls, caller.calls)
	}
}
