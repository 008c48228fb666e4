package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Caller is the read-only slice of an ethclient. Every accessor takes it
// explicitly; there is no implicit global client and no caching.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// view packs, calls and unpacks a single view method against the latest
// block. All failures come back as *ReadError.
func view(ctx context.Context, c Caller, contract common.Address, a *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, &ReadError{Contract: contract, Method: method, Cause: errors.Wrap(err, "pack")}
	}

	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, &ReadError{Contract: contract, Method: method, Cause: err}
	}

	vals, err := a.Unpack(method, out)
	if err != nil {
		return nil, &ReadError{Contract: contract, Method: method, Cause: errors.Wrap(err, "unpack")}
	}
	return vals, nil
}

func asBig(v any) *big.Int {
	if b, ok := v.(*big.Int); ok {
		return b
	}
	return new(big.Int)
}

func asAddress(v any) common.Address {
	if a, ok := v.(common.Address); ok {
		return a
	}
	return common.Address{}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asUint8(v any) uint8 {
	u, _ := v.(uint8)
	return u
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
