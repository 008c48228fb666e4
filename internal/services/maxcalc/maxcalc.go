// Package maxcalc computes the amount actually available to the user
// for each action: the vault-imposed ceiling folded with the user's
// balances, gas reserve and rounding buffers.
package maxcalc

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/pkg/bigmath"
)

// ConvertReader is the conversion slice of the vault binding.
type ConvertReader interface {
	ConvertToShares(ctx context.Context, assets *big.Int) (*big.Int, error)
	ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error)
	ConvertToSharesCollateral(ctx context.Context, assets *big.Int) (*big.Int, error)
}

// RebalancePreviewer exposes the zero-amount rebalance preview used to
// measure the current imbalance.
type RebalancePreviewer interface {
	PreviewLowLevelRebalanceShares(ctx context.Context, deltaShares *big.Int) (deltaCollateral, deltaBorrow *big.Int, err error)
}

// Params are the static inputs of the calculation.
type Params struct {
	// GasReserve is the native amount held back so the user can still
	// pay for the transaction itself.
	GasReserve *big.Int

	// Wrapped-native sides may top a token balance up from the native
	// balance (minus the reserve) because the shortfall can be wrapped.
	BorrowIsWrappedNative     bool
	CollateralIsWrappedNative bool

	// DebtPrecisionCorrection is the protocol's debt rounding unit used
	// by the minimum-rebalance heuristic.
	DebtPrecisionCorrection *big.Int
}

// Calculator derives effective maxima from one tracker snapshot. Given
// unchanged balances and limits its outputs are identical call to call.
type Calculator struct {
	params  Params
	convert ConvertReader
}

// New creates a Calculator.
func New(params Params, convert ConvertReader) *Calculator {
	if params.GasReserve == nil {
		params.GasReserve = big.NewInt(0)
	}
	if params.DebtPrecisionCorrection == nil {
		params.DebtPrecisionCorrection = big.NewInt(0)
	}
	return &Calculator{params: params, convert: convert}
}

// spendable returns the token balance usable for a deposit-like action,
// including the wrappable native remainder when the side's token is the
// wrapped-native asset. Never negative.
func (c *Calculator) spendable(side domain.TokenSide, balances domain.BalanceState) *big.Int {
	var tokenBalance *big.Int
	wrappable := false
	switch side {
	case domain.SideCollateral:
		tokenBalance = balances.CollateralToken
		wrappable = c.params.CollateralIsWrappedNative
	default:
		tokenBalance = balances.BorrowToken
		wrappable = c.params.BorrowIsWrappedNative
	}
	if tokenBalance == nil {
		tokenBalance = big.NewInt(0)
	}

	out := new(big.Int).Set(tokenBalance)
	if wrappable && balances.Eth != nil {
		native := new(big.Int).Sub(balances.Eth, c.params.GasReserve)
		out.Add(out, bigmath.ClampPositive(native))
	}
	return out
}

// AvailableDeposit is min(vault limit, spendable balance).
func (c *Calculator) AvailableDeposit(side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) *big.Int {
	limit := limitOrZero(limits.MaxDeposit)
	if side == domain.SideCollateral {
		limit = limitOrZero(limits.MaxDepositCollateral)
	}
	return bigmath.MinBig(limit, c.spendable(side, balances))
}

// AvailableMint converts the spendable balance into shares and caps it
// with the vault's mint ceiling.
func (c *Calculator) AvailableMint(ctx context.Context, side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error) {
	spendable := c.spendable(side, balances)

	var shares *big.Int
	var err error
	limit := limitOrZero(limits.MaxMint)
	if side == domain.SideCollateral {
		limit = limitOrZero(limits.MaxMintCollateral)
		shares, err = c.convert.ConvertToSharesCollateral(ctx, spendable)
	} else {
		shares, err = c.convert.ConvertToShares(ctx, spendable)
	}
	if err != nil {
		return nil, errors.Wrap(err, "convert spendable to shares")
	}
	return bigmath.MinBig(limit, shares), nil
}

// AvailableWithdraw is min(vault limit, assets backing the user's
// shares). No gas-reserve adjustment: withdrawals return value.
func (c *Calculator) AvailableWithdraw(ctx context.Context, side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error) {
	assets, err := c.convert.ConvertToAssets(ctx, balanceOrZero(balances.Shares))
	if err != nil {
		return nil, errors.Wrap(err, "convert shares to assets")
	}
	limit := limitOrZero(limits.MaxWithdraw)
	if side == domain.SideCollateral {
		limit = limitOrZero(limits.MaxWithdrawCollateral)
	}
	return bigmath.MinBig(limit, assets), nil
}

// AvailableRedeem is min(vault limit, share balance).
func (c *Calculator) AvailableRedeem(side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) *big.Int {
	limit := limitOrZero(limits.MaxRedeem)
	if side == domain.SideCollateral {
		limit = limitOrZero(limits.MaxRedeemCollateral)
	}
	return bigmath.MinBig(limit, balanceOrZero(balances.Shares))
}

// AvailableRebalance gates the signed vault maximum on the direction the
// user selected. A negative vault max means the vault must receive:
// only "provide" is a valid direction then, and vice versa. The invalid
// direction is zero availability, never an attempted transaction.
func (c *Calculator) AvailableRebalance(intent domain.Direction, vaultMax, userBalance *big.Int) *big.Int {
	if vaultMax == nil || vaultMax.Sign() == 0 {
		return big.NewInt(0)
	}

	wantProvide := vaultMax.Sign() < 0
	if (intent == domain.DirProvide) != wantProvide {
		return big.NewInt(0)
	}
	return bigmath.MinBig(bigmath.Abs(vaultMax), balanceOrZero(userBalance))
}

// AvailableFlashLoanMint converts the user's spendable collateral into
// shares, caps it at the vault's collateral-mint ceiling and applies the
// max-slippage multiplier to stay clear of the boundary revert.
func (c *Calculator) AvailableFlashLoanMint(ctx context.Context, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error) {
	shares, err := c.convert.ConvertToSharesCollateral(ctx, c.spendable(domain.SideCollateral, balances))
	if err != nil {
		return nil, errors.Wrap(err, "convert collateral to shares")
	}
	capped := bigmath.MinBig(limitOrZero(limits.MaxMintCollateral), shares)
	return bigmath.ReduceByMaxSlippage(capped), nil
}

// AvailableFlashLoanRedeem caps the user's share balance at the vault's
// redeem ceiling with the same boundary buffer.
func (c *Calculator) AvailableFlashLoanRedeem(balances domain.BalanceState, limits domain.VaultLimits) *big.Int {
	capped := bigmath.MinBig(limitOrZero(limits.MaxRedeem), balanceOrZero(balances.Shares))
	return bigmath.ReduceByMaxSlippage(capped)
}

// MinRebalance measures the vault's current imbalance via the
// zero-amount rebalance preview and derives the smallest share amount
// that will not revert at the rebalance-window boundary:
// max(imbalance*1.01, imbalance + 5*debtPrecisionCorrection).
// The formula is protocol-parameter-dependent and is recomputed on every
// query because the imbalance drifts with interest accrual.
func (c *Calculator) MinRebalance(ctx context.Context, previewer RebalancePreviewer) (amount *big.Int, provide bool, err error) {
	deltaCollateral, _, err := previewer.PreviewLowLevelRebalanceShares(ctx, big.NewInt(0))
	if err != nil {
		return nil, false, errors.Wrap(err, "zero-amount rebalance preview")
	}

	imbalance := bigmath.Abs(deltaCollateral)
	scaled := new(big.Int).Mul(imbalance, big.NewInt(101))
	scaled.Div(scaled, big.NewInt(100))

	padded := new(big.Int).Mul(c.params.DebtPrecisionCorrection, big.NewInt(5))
	padded.Add(padded, imbalance)

	return bigmath.MaxBig(scaled, padded), deltaCollateral.Sign() > 0, nil
}

// HasInsufficientBalance reports whether the entered amount exceeds the
// balance the action draws from. Computed locally so submission is
// blocked without a chain round-trip.
func (c *Calculator) HasInsufficientBalance(action domain.Action, side domain.TokenSide, amount *big.Int, balances domain.BalanceState) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}

	switch action {
	case domain.ActionDeposit, domain.ActionMint:
		return amount.Cmp(c.spendable(side, balances)) > 0
	case domain.ActionRedeem, domain.ActionBurn, domain.ActionFlashLoanRedeem:
		return amount.Cmp(balanceOrZero(balances.Shares)) > 0
	default:
		return false
	}
}

func limitOrZero(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}

func balanceOrZero(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}
