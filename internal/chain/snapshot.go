package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/ltvlabs/vaultdesk/internal/domain"
)

// SnapshotOverrides carries config-provided vault metadata. Populated
// fields skip the corresponding on-chain read; they must match on-chain
// truth and exist only to save round-trips.
type SnapshotOverrides struct {
	SharesDecimals          *int
	BorrowTokenDecimals     *int
	CollateralTokenDecimals *int
	SharesSymbol            string
	BorrowTokenSymbol       string
	CollateralTokenSymbol   string
	BorrowToken             *common.Address
	CollateralToken         *common.Address
}

// LoadSnapshot builds the immutable per-vault identity record. Reads
// fan out and join; a single failure fails the whole load so a snapshot
// is never half-populated.
func LoadSnapshot(ctx context.Context, caller Caller, vaultAddr common.Address, ov SnapshotOverrides) (domain.VaultSnapshot, error) {
	vault := NewVault(caller, vaultAddr)
	snap := domain.VaultSnapshot{Address: vaultAddr}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if ov.SharesDecimals != nil {
			snap.SharesDecimals = *ov.SharesDecimals
			return nil
		}
		d, err := vault.SharesDecimals(gctx)
		if err != nil {
			return err
		}
		snap.SharesDecimals = int(d)
		return nil
	})
	g.Go(func() error {
		if ov.BorrowTokenDecimals != nil {
			snap.BorrowTokenDecimals = *ov.BorrowTokenDecimals
			return nil
		}
		d, err := vault.BorrowTokenDecimals(gctx)
		if err != nil {
			return err
		}
		snap.BorrowTokenDecimals = int(d)
		return nil
	})
	g.Go(func() error {
		if ov.CollateralTokenDecimals != nil {
			snap.CollateralTokenDecimals = *ov.CollateralTokenDecimals
			return nil
		}
		d, err := vault.CollateralTokenDecimals(gctx)
		if err != nil {
			return err
		}
		snap.CollateralTokenDecimals = int(d)
		return nil
	})
	g.Go(func() error {
		if ov.SharesSymbol != "" {
			snap.SharesSymbol = ov.SharesSymbol
			return nil
		}
		s, err := vault.Symbol(gctx)
		if err != nil {
			return err
		}
		snap.SharesSymbol = s
		return nil
	})
	g.Go(func() error {
		if ov.BorrowToken != nil {
			snap.BorrowToken = *ov.BorrowToken
		} else {
			addr, err := vault.BorrowToken(gctx)
			if err != nil {
				return err
			}
			snap.BorrowToken = addr
		}
		if ov.BorrowTokenSymbol != "" {
			snap.BorrowTokenSymbol = ov.BorrowTokenSymbol
			return nil
		}
		s, err := NewERC20(caller, snap.BorrowToken).Symbol(gctx)
		if err != nil {
			return err
		}
		snap.BorrowTokenSymbol = s
		return nil
	})
	g.Go(func() error {
		if ov.CollateralToken != nil {
			snap.CollateralToken = *ov.CollateralToken
		} else {
			addr, err := vault.CollateralToken(gctx)
			if err != nil {
				return err
			}
			snap.CollateralToken = addr
		}
		if ov.CollateralTokenSymbol != "" {
			snap.CollateralTokenSymbol = ov.CollateralTokenSymbol
			return nil
		}
		s, err := NewERC20(caller, snap.CollateralToken).Symbol(gctx)
		if err != nil {
			return err
		}
		snap.CollateralTokenSymbol = s
		return nil
	})
	g.Go(func() error {
		addr, err := vault.LendingConnector(gctx)
		if err != nil {
			return err
		}
		snap.LendingConnector = addr
		return nil
	})
	g.Go(func() error {
		addr, err := vault.WhitelistRegistry(gctx)
		if err != nil {
			return err
		}
		if addr != (common.Address{}) {
			snap.WhitelistRegistry = &addr
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.VaultSnapshot{}, err
	}
	return snap, nil
}
