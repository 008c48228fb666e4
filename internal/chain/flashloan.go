package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FlashLoanHelper quotes and executes mint/redeem routed through the
// flash-loan helper contracts. Treated as an opaque quote/execute pair
// per mode.
type FlashLoanHelper struct {
	caller Caller
	addr   common.Address
}

// NewFlashLoanHelper binds a helper address to a caller.
func NewFlashLoanHelper(caller Caller, addr common.Address) *FlashLoanHelper {
	return &FlashLoanHelper{caller: caller, addr: addr}
}

// Address returns the bound contract address.
func (f *FlashLoanHelper) Address() common.Address {
	return f.addr
}

// PreviewMint quotes the collateral the user must provide to mint the
// given shares with a flash-loaned offsetting leg.
func (f *FlashLoanHelper) PreviewMint(ctx context.Context, shares *big.Int) (*big.Int, error) {
	out, err := view(ctx, f.caller, f.addr, &flashLoanABI, "previewMintSharesWithFlashLoanCollateral", shares)
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

// PreviewRedeem quotes the borrow-token amount returned for redeeming
// the given shares through the curve + flash-loan route.
func (f *FlashLoanHelper) PreviewRedeem(ctx context.Context, shares *big.Int) (*big.Int, error) {
	out, err := view(ctx, f.caller, f.addr, &flashLoanABI, "previewRedeemSharesWithCurveAndFlashLoanBorrow", shares)
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}
