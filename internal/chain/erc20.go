package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 reads a token contract. The same binding serves the wrapped
// native token, which additionally supports deposit-to-wrap.
type ERC20 struct {
	caller Caller
	addr   common.Address
}

// NewERC20 binds a token address to a caller.
func NewERC20(caller Caller, addr common.Address) *ERC20 {
	return &ERC20{caller: caller, addr: addr}
}

// Address returns the bound contract address.
func (t *ERC20) Address() common.Address {
	return t.addr
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := view(ctx, t.caller, t.addr, &erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := view(ctx, t.caller, t.addr, &erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := view(ctx, t.caller, t.addr, &erc20ABI, "symbol")
	if err != nil {
		return "", err
	}
	return asString(out[0]), nil
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := view(ctx, t.caller, t.addr, &erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(out[0]), nil
}
