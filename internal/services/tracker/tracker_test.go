package tracker

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/pkg/poller"
)

// fakeChain serves every read from a single settable value so tests can
// observe atomic replacement.
type fakeChain struct {
	mu      sync.Mutex
	value   *big.Int
	failOn  string // method name that should fail, "" for none
	gate    chan struct{}
	blockCh chan struct{} // closed when a read is blocked on gate
}

func newFakeChain(v int64) *fakeChain {
	return &fakeChain{value: big.NewInt(v)}
}

func (f *fakeChain) set(v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = big.NewInt(v)
}

func (f *fakeChain) read(method string) (*big.Int, error) {
	f.mu.Lock()
	gate := f.gate
	blockCh := f.blockCh
	fail := f.failOn == method
	val := new(big.Int).Set(f.value)
	f.mu.Unlock()

	if gate != nil {
		if blockCh != nil {
			select {
			case blockCh <- struct{}{}:
			default:
			}
		}
		<-gate
	}
	if fail {
		return nil, errors.Errorf("%s failed", method)
	}
	return val, nil
}

func (f *fakeChain) BalanceOf(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("balanceOf")
}
func (f *fakeChain) MaxDeposit(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxDeposit")
}
func (f *fakeChain) MaxMint(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxMint")
}
func (f *fakeChain) MaxWithdraw(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxWithdraw")
}
func (f *fakeChain) MaxRedeem(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxRedeem")
}
func (f *fakeChain) MaxDepositCollateral(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxDepositCollateral")
}
func (f *fakeChain) MaxMintCollateral(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxMintCollateral")
}
func (f *fakeChain) MaxWithdrawCollateral(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxWithdrawCollateral")
}
func (f *fakeChain) MaxRedeemCollateral(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.read("maxRedeemCollateral")
}
func (f *fakeChain) MaxLowLevelRebalanceShares(ctx context.Context) (*big.Int, error) {
	return f.read("maxLowLevelRebalanceShares")
}
func (f *fakeChain) TotalAssets(ctx context.Context) (*big.Int, error) {
	return f.read("totalAssets")
}
func (f *fakeChain) BalanceAt(ctx context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return f.read("balanceAt")
}

func newTestTracker(chain *fakeChain) *Tracker {
	sched := poller.New(poller.WithInitialDelay(time.Hour), poller.WithMaxDelay(time.Hour))
	return New(zap.NewNop(), chain, chain, chain, chain, common.HexToAddress("0x01"), sched)
}

func TestRefreshPopulatesSnapshot(t *testing.T) {
	chain := newFakeChain(100)
	tr := newTestTracker(chain)

	snap, err := tr.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLoaded, snap.Status)
	assert.EqualValues(t, 100, snap.Balances.Shares.Int64())
	assert.EqualValues(t, 100, snap.Limits.MaxDeposit.Int64())
	assert.False(t, snap.ManualLoading)
}

func TestFailedRefreshRetainsPreviousSnapshot(t *testing.T) {
	chain := newFakeChain(100)
	tr := newTestTracker(chain)

	_, err := tr.Refresh(context.Background())
	require.NoError(t, err)

	chain.set(999)
	chain.failOn = "maxMintCollateral"

	_, err = tr.Refresh(context.Background())
	require.Error(t, err)

	snap := tr.Current()
	assert.Equal(t, domain.StatusFailed, snap.Status)
	// a single failed read fails the whole batch: nothing moved to 999
	assert.EqualValues(t, 100, snap.Balances.Shares.Int64())
	assert.EqualValues(t, 100, snap.Limits.MaxDeposit.Int64())
	assert.EqualValues(t, 100, snap.Limits.MaxMintCollateral.Int64())
}

func TestRebindDiscardsInflightResult(t *testing.T) {
	chain := newFakeChain(100)
	chain.gate = make(chan struct{})
	chain.blockCh = make(chan struct{}, 32)
	tr := newTestTracker(chain)

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Refresh(context.Background())
		errCh <- err
	}()

	// wait until the batch is blocked mid-flight, then switch identity
	<-chain.blockCh
	tr.Rebind(common.HexToAddress("0x02"))
	close(chain.gate)

	require.NoError(t, <-errCh)

	snap := tr.Current()
	// the stale batch must not have been applied to the new identity
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Nil(t, snap.Balances.Shares)
}

func TestManualRefreshCoalescesWithInflight(t *testing.T) {
	chain := newFakeChain(7)
	chain.gate = make(chan struct{})
	chain.blockCh = make(chan struct{}, 32)
	tr := newTestTracker(chain)

	first := make(chan Snapshot, 1)
	go func() {
		snap, _ := tr.Refresh(context.Background())
		first <- snap
	}()
	<-chain.blockCh

	// second manual refresh while the first batch is in flight
	second := make(chan Snapshot, 1)
	go func() {
		snap, _ := tr.Refresh(context.Background())
		second <- snap
	}()

	// give the second call a moment to park on the inflight channel,
	// then let the batch settle
	time.Sleep(20 * time.Millisecond)
	close(chain.gate)

	s1, s2 := <-first, <-second
	assert.Equal(t, domain.StatusLoaded, s1.Status)
	assert.Equal(t, domain.StatusLoaded, s2.Status)
	assert.EqualValues(t, 7, s2.Balances.Shares.Int64())
}

func TestChangeDetection(t *testing.T) {
	chain := newFakeChain(5)
	tr := newTestTracker(chain)

	changed, err := tr.refresh(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, changed, "first load is a change")

	changed, err = tr.refresh(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, changed, "identical data is not a change")

	chain.set(6)
	changed, err = tr.refresh(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, changed)
}
