package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ltvlabs/vaultdesk/internal/domain"
)

// vaultWriteMethods maps simple actions to their vault method per token
// side. Low-level rebalance, auction and flash-loan calls have dedicated
// builders below.
var vaultWriteMethods = map[domain.Action]map[domain.TokenSide]string{
	domain.ActionDeposit:  {domain.SideBorrow: "deposit", domain.SideCollateral: "depositCollateral"},
	domain.ActionMint:     {domain.SideBorrow: "mint", domain.SideCollateral: "mintCollateral"},
	domain.ActionWithdraw: {domain.SideBorrow: "withdraw", domain.SideCollateral: "withdrawCollateral"},
	domain.ActionRedeem:   {domain.SideBorrow: "redeem", domain.SideCollateral: "redeemCollateral"},
}

// PackVaultAction builds calldata for deposit/mint/withdraw/redeem on
// either token side. Withdraw and redeem carry owner as the third arg.
func PackVaultAction(action domain.Action, side domain.TokenSide, amount *big.Int, user common.Address) ([]byte, error) {
	methods, ok := vaultWriteMethods[action]
	if !ok {
		return nil, errors.Errorf("action %s has no vault write method", action)
	}
	method, ok := methods[side]
	if !ok {
		return nil, errors.Errorf("action %s has no %s-side method", action, side)
	}

	switch action {
	case domain.ActionDeposit, domain.ActionMint:
		return vaultABI.Pack(method, amount, user)
	default:
		return vaultABI.Pack(method, amount, user, user)
	}
}

// PackRebalanceShares builds calldata for a signed share-delta rebalance.
func PackRebalanceShares(deltaShares *big.Int) ([]byte, error) {
	return vaultABI.Pack("executeLowLevelRebalanceShares", deltaShares)
}

// PackRebalanceBorrowHint builds calldata for a borrow-delta rebalance
// with the previewed share delta as the hint.
func PackRebalanceBorrowHint(deltaBorrow, sharesHint *big.Int) ([]byte, error) {
	return vaultABI.Pack("executeLowLevelRebalanceBorrowHint", deltaBorrow, sharesHint)
}

// PackRebalanceCollateralHint builds calldata for a collateral-delta
// rebalance with the previewed share delta as the hint.
func PackRebalanceCollateralHint(deltaCollateral, sharesHint *big.Int) ([]byte, error) {
	return vaultABI.Pack("executeLowLevelRebalanceCollateralHint", deltaCollateral, sharesHint)
}

// PackAuction builds calldata for an auction execution on either side.
func PackAuction(side domain.TokenSide, delta *big.Int) ([]byte, error) {
	if side == domain.SideCollateral {
		return vaultABI.Pack("executeAuctionCollateral", delta)
	}
	return vaultABI.Pack("executeAuctionBorrow", delta)
}

// PackFlashLoanMint builds calldata for the flash-loan helper mint with
// the buffered collateral ceiling.
func PackFlashLoanMint(shares, maxCollateral *big.Int) ([]byte, error) {
	return flashLoanABI.Pack("executeMintSharesWithFlashLoanCollateral", shares, maxCollateral)
}

// PackFlashLoanRedeem builds calldata for the flash-loan helper redeem
// with the buffered minimum borrow-token output.
func PackFlashLoanRedeem(shares, minBorrowOut *big.Int) ([]byte, error) {
	return flashLoanABI.Pack("executeRedeemSharesWithCurveAndFlashLoanBorrow", shares, minBorrowOut)
}

// PackApprove builds ERC-20 approve calldata for the exact amount.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// PackWrapNative builds the wrapped-native deposit calldata; the amount
// to wrap travels as the transaction value.
func PackWrapNative() ([]byte, error) {
	return erc20ABI.Pack("deposit")
}

// PackWhitelistActivation builds the signature-based whitelist
// activation calldata.
func PackWhitelistActivation(sig domain.Signature) ([]byte, error) {
	return whitelistABI.Pack("addAddressToWhitelistBySignature", sig.User, sig.V, sig.R, sig.S)
}
