package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// WhitelistRegistry checks and activates per-address vault access.
type WhitelistRegistry struct {
	caller Caller
	addr   common.Address
}

// NewWhitelistRegistry binds a registry address to a caller.
func NewWhitelistRegistry(caller Caller, addr common.Address) *WhitelistRegistry {
	return &WhitelistRegistry{caller: caller, addr: addr}
}

// Address returns the bound contract address.
func (w *WhitelistRegistry) Address() common.Address {
	return w.addr
}

func (w *WhitelistRegistry) IsAddressWhitelisted(ctx context.Context, user common.Address) (bool, error) {
	out, err := view(ctx, w.caller, w.addr, &whitelistABI, "isAddressWhitelisted", user)
	if err != nil {
		return false, err
	}
	return asBool(out[0]), nil
}
