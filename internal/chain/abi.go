package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

var vaultABI = mustABI(`[
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"borrowTokenDecimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"collateralTokenDecimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"convertToAssets","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"convertToShares","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"convertToSharesCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxDeposit","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxMint","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxWithdraw","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxRedeem","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxDepositCollateral","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxMintCollateral","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxWithdrawCollateral","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"maxRedeemCollateral","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewDeposit","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewMint","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewWithdraw","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewRedeem","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewDepositCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewMintCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewWithdrawCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewRedeemCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewLowLevelRebalanceShares","stateMutability":"view","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"},{"type":"int256"}]},
{"type":"function","name":"previewLowLevelRebalanceBorrow","stateMutability":"view","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"},{"type":"int256"}]},
{"type":"function","name":"previewLowLevelRebalanceCollateral","stateMutability":"view","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"},{"type":"int256"}]},
{"type":"function","name":"maxLowLevelRebalanceShares","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"maxLowLevelRebalanceBorrow","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"maxLowLevelRebalanceCollateral","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"previewExecuteAuctionBorrow","stateMutability":"view","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"}]},
{"type":"function","name":"previewExecuteAuctionCollateral","stateMutability":"view","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"}]},
{"type":"function","name":"futureBorrowAssets","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"futureCollateralAssets","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"targetLtvDividend","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"targetLtvDivider","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"lendingConnector","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"isWhitelistActivated","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
{"type":"function","name":"whitelistRegistry","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"borrowToken","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"collateralToken","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"redeem","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"depositCollateral","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"mintCollateral","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"withdrawCollateral","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"redeemCollateral","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"address"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"executeLowLevelRebalanceShares","stateMutability":"nonpayable","inputs":[{"type":"int256"}],"outputs":[]},
{"type":"function","name":"executeLowLevelRebalanceBorrowHint","stateMutability":"nonpayable","inputs":[{"type":"int256"},{"type":"int256"}],"outputs":[]},
{"type":"function","name":"executeLowLevelRebalanceCollateralHint","stateMutability":"nonpayable","inputs":[{"type":"int256"},{"type":"int256"}],"outputs":[]},
{"type":"function","name":"executeAuctionBorrow","stateMutability":"nonpayable","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"}]},
{"type":"function","name":"executeAuctionCollateral","stateMutability":"nonpayable","inputs":[{"type":"int256"}],"outputs":[{"type":"int256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"type":"address"},{"type":"uint256"}],"outputs":[{"type":"bool"}]}
]`)

var erc20ABI = mustABI(`[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"type":"address"},{"type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"type":"address"},{"type":"uint256"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]}
]`)

var flashLoanABI = mustABI(`[
{"type":"function","name":"previewMintSharesWithFlashLoanCollateral","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"previewRedeemSharesWithCurveAndFlashLoanBorrow","stateMutability":"view","inputs":[{"type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"executeMintSharesWithFlashLoanCollateral","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"uint256"}],"outputs":[]},
{"type":"function","name":"executeRedeemSharesWithCurveAndFlashLoanBorrow","stateMutability":"nonpayable","inputs":[{"type":"uint256"},{"type":"uint256"}],"outputs":[]}
]`)

var whitelistABI = mustABI(`[
{"type":"function","name":"isAddressWhitelisted","stateMutability":"view","inputs":[{"type":"address"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"addAddressToWhitelistBySignature","stateMutability":"nonpayable","inputs":[{"type":"address"},{"type":"uint8"},{"type":"bytes32"},{"type":"bytes32"}],"outputs":[]}
]`)

var priceFeedABI = mustABI(`[
{"type":"function","name":"latestAnswer","stateMutability":"view","inputs":[],"outputs":[{"type":"int256"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]}
]`)
