// Package tracker maintains the user's balances and the vault's limits
// as one consistent, atomically replaced snapshot.
package tracker

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/pkg/poller"
)

// VaultReader is the slice of the vault binding the tracker needs.
type VaultReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxDeposit(ctx context.Context, receiver common.Address) (*big.Int, error)
	MaxMint(ctx context.Context, receiver common.Address) (*big.Int, error)
	MaxWithdraw(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxRedeem(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxDepositCollateral(ctx context.Context, receiver common.Address) (*big.Int, error)
	MaxMintCollateral(ctx context.Context, receiver common.Address) (*big.Int, error)
	MaxWithdrawCollateral(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxRedeemCollateral(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxLowLevelRebalanceShares(ctx context.Context) (*big.Int, error)
	TotalAssets(ctx context.Context) (*big.Int, error)
}

// TokenReader reads one ERC-20 balance.
type TokenReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// NativeReader reads the native-currency balance.
type NativeReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Snapshot is the tracker's externally visible state. Value fields stay
// at the last successful read when Status is Failed.
type Snapshot struct {
	Balances domain.BalanceState
	Limits   domain.VaultLimits

	Status     domain.Status
	Generation uint64
	UpdatedAt  time.Time

	// ManualLoading is raised only for user-requested refreshes so
	// background polling never flickers the UI.
	ManualLoading bool
}

// Tracker polls balances and limits for one vault+user pair.
type Tracker struct {
	log        *zap.Logger
	vault      VaultReader
	borrow     TokenReader
	collateral TokenReader
	native     NativeReader
	sched      *poller.Poller

	mu         sync.Mutex
	user       common.Address
	generation uint64
	snap       Snapshot
	inflight   chan struct{}

	updates chan struct{}
}

// New creates a tracker for the given user. The poller drives background
// refreshes once Run is called.
func New(log *zap.Logger, vault VaultReader, borrow, collateral TokenReader, native NativeReader, user common.Address, sched *poller.Poller) *Tracker {
	return &Tracker{
		log:        log,
		vault:      vault,
		borrow:     borrow,
		collateral: collateral,
		native:     native,
		sched:      sched,
		user:       user,
		snap:       Snapshot{Status: domain.StatusIdle},
		updates:    make(chan struct{}, 1),
	}
}

// Current returns the latest settled snapshot.
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Updates signals after every applied refresh; notifications coalesce.
func (t *Tracker) Updates() <-chan struct{} {
	return t.updates
}

// Rebind switches the tracked user. The generation bump invalidates any
// refresh already in flight for the previous identity, and the poller is
// poked so the new identity loads immediately.
func (t *Tracker) Rebind(user common.Address) {
	t.mu.Lock()
	t.user = user
	t.generation++
	t.snap = Snapshot{Status: domain.StatusIdle, Generation: t.generation}
	t.mu.Unlock()

	t.sched.Poke()
	t.notify()
}

// Poke requests an immediate background refresh, e.g. after a confirmed
// transaction.
func (t *Tracker) Poke() {
	t.sched.Poke()
}

// Run drives the background polling loop until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	return t.sched.Run(ctx, func(ctx context.Context) (bool, error) {
		changed, err := t.refresh(ctx, false)
		if err != nil {
			t.log.Warn("background refresh failed", zap.Error(err))
		}
		return changed, err
	})
}

// Refresh performs a user-requested refresh. If a refresh is already in
// flight it coalesces: the call waits for the running one to settle and
// returns its data instead of issuing a second batch.
func (t *Tracker) Refresh(ctx context.Context) (Snapshot, error) {
	t.mu.Lock()
	if t.inflight != nil {
		wait := t.inflight
		t.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
		return t.Current(), nil
	}
	t.mu.Unlock()

	if _, err := t.refresh(ctx, true); err != nil {
		return t.Current(), err
	}
	return t.Current(), nil
}

// refresh issues the joined read batch and applies it if the captured
// generation still matches. Returns whether the applied data differs
// from the previous snapshot.
func (t *Tracker) refresh(ctx context.Context, manual bool) (bool, error) {
	t.mu.Lock()
	if t.inflight != nil {
		// a batch is already running; the poll tick rides on it
		done := t.inflight
		t.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return false, nil
	}
	done := make(chan struct{})
	t.inflight = done
	gen := t.generation
	user := t.user
	if manual {
		t.snap.ManualLoading = true
		t.snap.Status = domain.StatusLoading
	}
	t.mu.Unlock()
	if manual {
		t.notify()
	}

	balances, limits, err := t.readAll(ctx, user)

	t.mu.Lock()
	t.inflight = nil
	close(done)

	if gen != t.generation {
		// identity changed while the batch was in flight; discard
		t.mu.Unlock()
		return false, nil
	}

	if err != nil {
		// previous successful snapshot is retained, only status moves
		t.snap.Status = domain.StatusFailed
		t.snap.ManualLoading = false
		t.snap.UpdatedAt = time.Now()
		t.mu.Unlock()
		t.notify()
		return false, err
	}

	changed := !balancesEqual(t.snap.Balances, balances) || !limitsEqual(t.snap.Limits, limits)
	t.snap = Snapshot{
		Balances:   balances,
		Limits:     limits,
		Status:     domain.StatusLoaded,
		Generation: gen,
		UpdatedAt:  time.Now(),
	}
	t.mu.Unlock()
	t.notify()
	return changed, nil
}

// readAll fans out every balance and limit read and joins them. Any
// failure fails the whole batch; limits and balances are never partially
// updated.
func (t *Tracker) readAll(ctx context.Context, user common.Address) (domain.BalanceState, domain.VaultLimits, error) {
	var balances domain.BalanceState
	var limits domain.VaultLimits

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		balances.Eth, err = t.native.BalanceAt(gctx, user, nil)
		return err
	})
	g.Go(func() (err error) {
		balances.Shares, err = t.vault.BalanceOf(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		balances.BorrowToken, err = t.borrow.BalanceOf(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		balances.CollateralToken, err = t.collateral.BalanceOf(gctx, user)
		return err
	})

	g.Go(func() (err error) {
		limits.MaxDeposit, err = t.vault.MaxDeposit(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxMint, err = t.vault.MaxMint(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxWithdraw, err = t.vault.MaxWithdraw(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxRedeem, err = t.vault.MaxRedeem(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxDepositCollateral, err = t.vault.MaxDepositCollateral(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxMintCollateral, err = t.vault.MaxMintCollateral(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxWithdrawCollateral, err = t.vault.MaxWithdrawCollateral(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxRedeemCollateral, err = t.vault.MaxRedeemCollateral(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		limits.MaxRebalanceShares, err = t.vault.MaxLowLevelRebalanceShares(gctx)
		return err
	})
	g.Go(func() (err error) {
		limits.TotalAssets, err = t.vault.TotalAssets(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.BalanceState{}, domain.VaultLimits{}, err
	}
	return balances, limits, nil
}

func (t *Tracker) notify() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func balancesEqual(a, b domain.BalanceState) bool {
	return bigEqual(a.Eth, b.Eth) &&
		bigEqual(a.Shares, b.Shares) &&
		bigEqual(a.BorrowToken, b.BorrowToken) &&
		bigEqual(a.CollateralToken, b.CollateralToken)
}

func limitsEqual(a, b domain.VaultLimits) bool {
	return bigEqual(a.MaxDeposit, b.MaxDeposit) &&
		bigEqual(a.MaxMint, b.MaxMint) &&
		bigEqual(a.MaxWithdraw, b.MaxWithdraw) &&
		bigEqual(a.MaxRedeem, b.MaxRedeem) &&
		bigEqual(a.MaxDepositCollateral, b.MaxDepositCollateral) &&
		bigEqual(a.MaxMintCollateral, b.MaxMintCollateral) &&
		bigEqual(a.MaxWithdrawCollateral, b.MaxWithdrawCollateral) &&
		bigEqual(a.MaxRedeemCollateral, b.MaxRedeemCollateral) &&
		bigEqual(a.MaxRebalanceShares, b.MaxRebalanceShares) &&
		bigEqual(a.TotalAssets, b.TotalAssets)
}
