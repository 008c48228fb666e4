// Package chain wraps the fixed set of contract views and calldata
// builders behind typed accessors. Accessors are stateless: always live
// reads, no retries, explicit caller and address on every call.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault reads one leveraged-yield vault contract.
type Vault struct {
	caller Caller
	addr   common.Address
}

// NewVault binds a vault address to a caller.
func NewVault(caller Caller, addr common.Address) *Vault {
	return &Vault{caller: caller, addr: addr}
}

// Address returns the bound contract address.
func (v *Vault) Address() common.Address {
	return v.addr
}

func (v *Vault) bigView(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, method, args...)
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

func (v *Vault) SharesDecimals(ctx context.Context) (uint8, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(out[0]), nil
}

func (v *Vault) BorrowTokenDecimals(ctx context.Context) (uint8, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "borrowTokenDecimals")
	if err != nil {
		return 0, err
	}
	return asUint8(out[0]), nil
}

func (v *Vault) CollateralTokenDecimals(ctx context.Context) (uint8, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "collateralTokenDecimals")
	if err != nil {
		return 0, err
	}
	return asUint8(out[0]), nil
}

func (v *Vault) Symbol(ctx context.Context) (string, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "symbol")
	if err != nil {
		return "", err
	}
	return asString(out[0]), nil
}

func (v *Vault) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.bigView(ctx, "balanceOf", owner)
}

func (v *Vault) TotalAssets(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "totalAssets")
}

func (v *Vault) ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error) {
	return v.bigView(ctx, "convertToAssets", shares)
}

func (v *Vault) ConvertToShares(ctx context.Context, assets *big.Int) (*big.Int, error) {
	return v.bigView(ctx, "convertToShares", assets)
}

func (v *Vault) ConvertToSharesCollateral(ctx context.Context, assets *big.Int) (*big.Int, error) {
	return v.bigView(ctx, "convertToSharesCollateral", assets)
}

func (v *Vault) MaxDeposit(ctx context.Context, receiver common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxDeposit", receiver)
}

func (v *Vault) MaxMint(ctx context.Context, receiver common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxMint", receiver)
}

func (v *Vault) MaxWithdraw(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxWithdraw", owner)
}

func (v *Vault) MaxRedeem(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxRedeem", owner)
}

func (v *Vault) MaxDepositCollateral(ctx context.Context, receiver common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxDepositCollateral", receiver)
}

func (v *Vault) MaxMintCollateral(ctx context.Context, receiver common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxMintCollateral", receiver)
}

func (v *Vault) MaxWithdrawCollateral(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxWithdrawCollateral", owner)
}

func (v *Vault) MaxRedeemCollateral(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.bigView(ctx, "maxRedeemCollateral", owner)
}

// PreviewSimple dispatches the single-value ERC-4626-style previews:
// previewDeposit/Mint/Withdraw/Redeem and their Collateral variants.
func (v *Vault) PreviewSimple(ctx context.Context, method string, amount *big.Int) (*big.Int, error) {
	return v.bigView(ctx, method, amount)
}

func (v *Vault) PreviewLowLevelRebalanceShares(ctx context.Context, deltaShares *big.Int) (deltaCollateral, deltaBorrow *big.Int, err error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "previewLowLevelRebalanceShares", deltaShares)
	if err != nil {
		return nil, nil, err
	}
	return asBig(out[0]), asBig(out[1]), nil
}

func (v *Vault) PreviewLowLevelRebalanceBorrow(ctx context.Context, deltaBorrow *big.Int) (deltaCollateral, deltaShares *big.Int, err error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "previewLowLevelRebalanceBorrow", deltaBorrow)
	if err != nil {
		return nil, nil, err
	}
	return asBig(out[0]), asBig(out[1]), nil
}

func (v *Vault) PreviewLowLevelRebalanceCollateral(ctx context.Context, deltaCollateral *big.Int) (deltaBorrow, deltaShares *big.Int, err error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "previewLowLevelRebalanceCollateral", deltaCollateral)
	if err != nil {
		return nil, nil, err
	}
	return asBig(out[0]), asBig(out[1]), nil
}

func (v *Vault) MaxLowLevelRebalanceShares(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "maxLowLevelRebalanceShares")
}

func (v *Vault) MaxLowLevelRebalanceBorrow(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "maxLowLevelRebalanceBorrow")
}

func (v *Vault) MaxLowLevelRebalanceCollateral(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "maxLowLevelRebalanceCollateral")
}

func (v *Vault) PreviewExecuteAuctionBorrow(ctx context.Context, deltaBorrow *big.Int) (*big.Int, error) {
	return v.bigView(ctx, "previewExecuteAuctionBorrow", deltaBorrow)
}

func (v *Vault) PreviewExecuteAuctionCollateral(ctx context.Context, deltaCollateral *big.Int) (*big.Int, error) {
	return v.bigView(ctx, "previewExecuteAuctionCollateral", deltaCollateral)
}

func (v *Vault) FutureBorrowAssets(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "futureBorrowAssets")
}

func (v *Vault) FutureCollateralAssets(ctx context.Context) (*big.Int, error) {
	return v.bigView(ctx, "futureCollateralAssets")
}

func (v *Vault) TargetLtv(ctx context.Context) (dividend, divider *big.Int, err error) {
	dividend, err = v.bigView(ctx, "targetLtvDividend")
	if err != nil {
		return nil, nil, err
	}
	divider, err = v.bigView(ctx, "targetLtvDivider")
	if err != nil {
		return nil, nil, err
	}
	return dividend, divider, nil
}

func (v *Vault) LendingConnector(ctx context.Context) (common.Address, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "lendingConnector")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out[0]), nil
}

func (v *Vault) IsWhitelistActivated(ctx context.Context) (bool, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "isWhitelistActivated")
	if err != nil {
		return false, err
	}
	return asBool(out[0]), nil
}

func (v *Vault) WhitelistRegistry(ctx context.Context) (common.Address, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "whitelistRegistry")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out[0]), nil
}

func (v *Vault) BorrowToken(ctx context.Context) (common.Address, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "borrowToken")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out[0]), nil
}

func (v *Vault) CollateralToken(ctx context.Context) (common.Address, error) {
	out, err := view(ctx, v.caller, v.addr, &vaultABI, "collateralToken")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(out[0]), nil
}
