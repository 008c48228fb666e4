package preview

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/domain"
)

// fakeVault records preview calls and serves configurable outputs.
type fakeVault struct {
	mu           sync.Mutex
	simpleCalls  []string
	simpleAmount *big.Int
	simpleOut    *big.Int
	simpleErr    error
	simpleDelay  time.Duration

	rebalanceCollateral *big.Int
	rebalanceBorrow     *big.Int

	futureBorrow     *big.Int
	futureCollateral *big.Int
	auctionOut       *big.Int
	auctionDelta     *big.Int
}

func (f *fakeVault) PreviewSimple(ctx context.Context, method string, amount *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.simpleCalls = append(f.simpleCalls, method)
	f.simpleAmount = new(big.Int).Set(amount)
	delay, out, err := f.simpleDelay, f.simpleOut, f.simpleErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(out), nil
}

func (f *fakeVault) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.simpleCalls...)
}

func (f *fakeVault) PreviewLowLevelRebalanceShares(_ context.Context, _ *big.Int) (*big.Int, *big.Int, error) {
	return new(big.Int).Set(f.rebalanceCollateral), new(big.Int).Set(f.rebalanceBorrow), nil
}

func (f *fakeVault) PreviewLowLevelRebalanceBorrow(_ context.Context, _ *big.Int) (*big.Int, *big.Int, error) {
	return big.NewInt(0), big.NewInt(0), nil
}

func (f *fakeVault) PreviewLowLevelRebalanceCollateral(_ context.Context, _ *big.Int) (*big.Int, *big.Int, error) {
	return big.NewInt(0), big.NewInt(0), nil
}

func (f *fakeVault) PreviewExecuteAuctionBorrow(_ context.Context, delta *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.auctionDelta = new(big.Int).Set(delta)
	f.mu.Unlock()
	return new(big.Int).Set(f.auctionOut), nil
}

func (f *fakeVault) PreviewExecuteAuctionCollateral(_ context.Context, delta *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.auctionDelta = new(big.Int).Set(delta)
	f.mu.Unlock()
	return new(big.Int).Set(f.auctionOut), nil
}

func (f *fakeVault) FutureBorrowAssets(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.futureBorrow), nil
}

func (f *fakeVault) FutureCollateralAssets(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.futureCollateral), nil
}

type fakeFlash struct {
	mintOut   *big.Int
	redeemOut *big.Int
	calls     int
	mu        sync.Mutex
}

func (f *fakeFlash) PreviewMint(_ context.Context, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return new(big.Int).Set(f.mintOut), nil
}

func (f *fakeFlash) PreviewRedeem(_ context.Context, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return new(big.Int).Set(f.redeemOut), nil
}

func (f *fakeFlash) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestEngine(t *testing.T, vault *fakeVault, flash *fakeFlash, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)
	e := NewEngine(zap.NewNop(), vault, flash, domain.VaultSnapshot{}, opts...)
	t.Cleanup(e.Close)
	return e
}

func waitOutcome(t *testing.T, e *Engine) Outcome {
	t.Helper()
	select {
	case o := <-e.Outcomes():
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome published")
		return Outcome{}
	}
}

func TestDebounceCoalescesRapidInput(t *testing.T) {
	vault := &fakeVault{simpleOut: big.NewInt(50)}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "1"})
	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "12"})
	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "123"})

	o := waitOutcome(t, e)
	require.NoError(t, o.Err)
	require.NotNil(t, o.Result)

	// only the final input reached the chain
	assert.Equal(t, []string{"previewDeposit"}, vault.calls())
	assert.EqualValues(t, 123, vault.simpleAmount.Int64())

	require.Len(t, o.Result.Legs, 2)
	assert.Equal(t, domain.LegBorrow, o.Result.Legs[0].Kind)
	assert.Equal(t, domain.DirProvide, o.Result.Legs[0].Direction)
	assert.EqualValues(t, 123, o.Result.Legs[0].Amount.Int64())
	assert.Equal(t, domain.LegShares, o.Result.Legs[1].Kind)
	assert.Equal(t, domain.DirReceive, o.Result.Legs[1].Direction)
	assert.EqualValues(t, 50, o.Result.Legs[1].Amount.Int64())
}

func TestStaleResultDiscarded(t *testing.T) {
	vault := &fakeVault{simpleOut: big.NewInt(50), simpleDelay: 80 * time.Millisecond}
	e := newTestEngine(t, vault, &fakeFlash{}, WithDebounce(time.Millisecond))

	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "1"})
	// let the first read start, then supersede it
	time.Sleep(30 * time.Millisecond)
	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "2"})

	o := waitOutcome(t, e)
	require.NoError(t, o.Err)
	assert.Equal(t, "2", o.Input.Raw)

	// the superseded read must not surface afterwards
	select {
	case extra := <-e.Outcomes():
		t.Fatalf("stale outcome published for input %q", extra.Input.Raw)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCollateralSideSwitchesMethod(t *testing.T) {
	vault := &fakeVault{simpleOut: big.NewInt(7)}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionWithdraw, Side: domain.SideCollateral, Raw: "10"})

	o := waitOutcome(t, e)
	require.NoError(t, o.Err)
	assert.Equal(t, []string{"previewWithdrawCollateral"}, vault.calls())

	// withdraw on the collateral side: user receives collateral, burns shares
	require.Len(t, o.Result.Legs, 2)
	assert.Equal(t, domain.LegCollateral, o.Result.Legs[0].Kind)
	assert.Equal(t, domain.DirReceive, o.Result.Legs[0].Direction)
	assert.Equal(t, domain.LegShares, o.Result.Legs[1].Kind)
	assert.Equal(t, domain.DirProvide, o.Result.Legs[1].Direction)
}

func TestInvalidInputPublishedImmediately(t *testing.T) {
	vault := &fakeVault{simpleOut: big.NewInt(1)}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "abc"})

	o := waitOutcome(t, e)
	assert.ErrorIs(t, o.Err, ErrInvalidInput)
	assert.Nil(t, o.Result)
	assert.Empty(t, vault.calls(), "invalid input must not reach the chain")
}

func TestRevertClassification(t *testing.T) {
	vault := &fakeVault{simpleErr: errors.New("execution reverted: Invalid Rebalance Mode")}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "5"})
	o := waitOutcome(t, e)
	assert.ErrorIs(t, o.Err, ErrInvalidRebalanceMode)

	vault2 := &fakeVault{simpleErr: errors.New("execution reverted")}
	e2 := newTestEngine(t, vault2, &fakeFlash{})
	e2.SetInput(Input{Action: domain.ActionDeposit, Side: domain.SideBorrow, Raw: "5"})
	o = waitOutcome(t, e2)
	assert.ErrorIs(t, o.Err, ErrPreviewUnavailable)
}

func TestRebalanceSharesLegSigns(t *testing.T) {
	vault := &fakeVault{
		rebalanceCollateral: big.NewInt(-300), // vault pays collateral out
		rebalanceBorrow:     big.NewInt(-200), // user repays borrow
	}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionBurn, Side: domain.SideBorrow, Raw: "100"})
	o := waitOutcome(t, e)
	require.NoError(t, o.Err)

	require.Len(t, o.Result.Legs, 2)
	assert.Equal(t, domain.LegCollateral, o.Result.Legs[0].Kind)
	assert.Equal(t, domain.DirReceive, o.Result.Legs[0].Direction)
	assert.EqualValues(t, 300, o.Result.Legs[0].Amount.Int64())
	assert.Equal(t, domain.LegBorrow, o.Result.Legs[1].Kind)
	assert.Equal(t, domain.DirProvide, o.Result.Legs[1].Direction)
	assert.EqualValues(t, 200, o.Result.Legs[1].Amount.Int64())
}

func TestAuctionDirectionFromImbalanceSign(t *testing.T) {
	vault := &fakeVault{
		futureBorrow: big.NewInt(-1000), // pending: vault needs borrow in
		auctionOut:   big.NewInt(-400),
	}
	e := newTestEngine(t, vault, &fakeFlash{})

	e.SetInput(Input{Action: domain.ActionAuctionBorrow, Side: domain.SideBorrow, Raw: "100"})
	o := waitOutcome(t, e)
	require.NoError(t, o.Err)

	// negative future borrow: the user provides borrow, preview is called
	// with the negated amount, the collateral reward flows back
	assert.EqualValues(t, -100, vault.auctionDelta.Int64())
	require.Len(t, o.Result.Legs, 2)
	assert.Equal(t, domain.LegBorrow, o.Result.Legs[0].Kind)
	assert.Equal(t, domain.DirProvide, o.Result.Legs[0].Direction)
	assert.Equal(t, domain.LegCollateral, o.Result.Legs[1].Kind)
	assert.Equal(t, domain.DirReceive, o.Result.Legs[1].Direction)
	assert.EqualValues(t, 400, o.Result.Legs[1].Amount.Int64())
}

func TestFlashLoanMintAppliesPrecisionBuffer(t *testing.T) {
	flash := &fakeFlash{mintOut: big.NewInt(100_000_000)}
	e := newTestEngine(t, &fakeVault{}, flash, WithFlashRefreshInterval(time.Hour))

	e.SetInput(Input{Action: domain.ActionFlashLoanMint, Side: domain.SideCollateral, Raw: "10"})
	o := waitOutcome(t, e)
	require.NoError(t, o.Err)

	require.Len(t, o.Result.Legs, 2)
	assert.Equal(t, domain.LegShares, o.Result.Legs[0].Kind)
	assert.Equal(t, domain.DirReceive, o.Result.Legs[0].Direction)
	assert.Equal(t, domain.LegCollateral, o.Result.Legs[1].Kind)
	assert.Equal(t, domain.DirProvide, o.Result.Legs[1].Direction)
	// 100_000_000 * (1e8-1)/1e8
	assert.EqualValues(t, 99_999_999, o.Result.Legs[1].Amount.Int64())
}

func TestFlashLoanQuoteSelfRefreshes(t *testing.T) {
	flash := &fakeFlash{redeemOut: big.NewInt(500)}
	e := newTestEngine(t, &fakeVault{}, flash,
		WithDebounce(time.Millisecond),
		WithFlashRefreshInterval(25*time.Millisecond))

	e.SetInput(Input{Action: domain.ActionFlashLoanRedeem, Side: domain.SideBorrow, Raw: "10"})

	o := waitOutcome(t, e)
	require.NoError(t, o.Err)
	o = waitOutcome(t, e)
	require.NoError(t, o.Err)

	assert.GreaterOrEqual(t, flash.callCount(), 2, "flash-loan quote should re-read on its own")

	// clearing stops the refresh loop
	e.Clear()
	calls := flash.callCount()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, calls, flash.callCount())
}
