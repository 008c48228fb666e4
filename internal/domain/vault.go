package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VaultSnapshot holds the immutable identity of a deployed vault:
// decimals and symbols never change after deployment, so they are read
// once (or taken from config overrides) and kept for the vault's
// lifetime.
type VaultSnapshot struct {
	Address common.Address

	SharesDecimals          int
	BorrowTokenDecimals     int
	CollateralTokenDecimals int

	SharesSymbol          string
	BorrowTokenSymbol     string
	CollateralTokenSymbol string

	BorrowToken     common.Address
	CollateralToken common.Address

	LendingConnector  common.Address
	WhitelistRegistry *common.Address
}

// BalanceState is one consistent read of the user's balances, all in the
// respective token's smallest unit. A refresh replaces the whole tuple or
// leaves the previous one in place; it is never partially updated.
type BalanceState struct {
	Eth             *big.Int
	Shares          *big.Int
	BorrowToken     *big.Int
	CollateralToken *big.Int
}

// VaultLimits are the vault-imposed ceilings per operation, independent
// of the user's balances.
type VaultLimits struct {
	MaxDeposit  *big.Int
	MaxRedeem   *big.Int
	MaxMint     *big.Int
	MaxWithdraw *big.Int

	MaxDepositCollateral  *big.Int
	MaxRedeemCollateral   *big.Int
	MaxMintCollateral     *big.Int
	MaxWithdrawCollateral *big.Int

	// MaxRebalanceShares is signed: negative means the vault must
	// receive, positive means the vault will pay out.
	MaxRebalanceShares *big.Int

	TotalAssets *big.Int
}

// Status tracks one asynchronously refreshed quantity.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// Tracked pairs a value with its refresh status and a generation token.
// A resolving async result whose captured generation no longer matches
// the current one is stale and must be discarded.
type Tracked[T any] struct {
	Value      T
	Status     Status
	Generation uint64
	UpdatedAt  time.Time
}
