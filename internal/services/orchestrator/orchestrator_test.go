package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/domain"
)

var (
	vaultAddr = common.HexToAddress("0x1000")
	flashAddr = common.HexToAddress("0x2000")
	tokenAddr = common.HexToAddress("0x3000")
	userAddr  = common.HexToAddress("0x0abc")
)

type fakeBackend struct {
	mu      sync.Mutex
	sent    []*types.Transaction
	sendErr error
	revert  bool
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status}, nil
}

func (f *fakeBackend) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

type fakeSigner struct {
	err error
}

func (f fakeSigner) Address() common.Address { return userAddr }

func (f fakeSigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return tx, nil
}

type fakeLimits struct {
	maxRedeem *big.Int
}

func (f fakeLimits) MaxWithdraw(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f fakeLimits) MaxRedeem(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.maxRedeem), nil
}
func (f fakeLimits) MaxWithdrawCollateral(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f fakeLimits) MaxRedeemCollateral(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

type fakeToken struct {
	balance   *big.Int
	allowance *big.Int
}

func (f fakeToken) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}
func (f fakeToken) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.allowance), nil
}

type fakePoker struct {
	mu    sync.Mutex
	pokes int
}

func (f *fakePoker) Poke() {
	f.mu.Lock()
	f.pokes++
	f.mu.Unlock()
}

func (f *fakePoker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pokes
}

type fakeNotifier struct {
	refreshed chan struct{}
}

func (f *fakeNotifier) RefreshTokenHolders(context.Context) error {
	select {
	case f.refreshed <- struct{}{}:
	default:
	}
	return nil
}

type testRig struct {
	orch     *Orchestrator
	backend  *fakeBackend
	poker    *fakePoker
	notifier *fakeNotifier
	journal  *Journal
}

func newRig(t *testing.T, signer TxSigner, limits LimitReader, token TokenReader) *testRig {
	t.Helper()

	journal, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	backend := &fakeBackend{}
	poker := &fakePoker{}
	notifier := &fakeNotifier{refreshed: make(chan struct{}, 1)}
	orch := New(zap.NewNop(), backend, signer, big.NewInt(1),
		vaultAddr, flashAddr, limits, token, journal, poker, notifier)

	return &testRig{orch: orch, backend: backend, poker: poker, notifier: notifier, journal: journal}
}

func TestSubmitDepositNoApprovalNeeded(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action:      domain.ActionDeposit,
		Side:        domain.SideBorrow,
		Amount:      big.NewInt(500),
		SpendToken:  tokenAddr,
		SpendAmount: big.NewInt(500),
	})
	require.NoError(t, err)

	// sufficient allowance: exactly one transaction, straight to the vault
	txs := rig.backend.sentTxs()
	require.Len(t, txs, 1)
	assert.Equal(t, vaultAddr, *txs[0].To())
	assert.EqualValues(t, 120_000, txs[0].Gas(), "estimate padded by 1.2")

	assert.Equal(t, 1, rig.poker.count())
	select {
	case <-rig.notifier.refreshed:
	case <-time.After(time.Second):
		t.Fatal("backend holder refresh not triggered")
	}
	assert.Empty(t, rig.journal.Pending())
}

func TestSubmitGrantsExactAllowance(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(0),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action:      domain.ActionDeposit,
		Side:        domain.SideBorrow,
		Amount:      big.NewInt(500),
		SpendToken:  tokenAddr,
		SpendAmount: big.NewInt(500),
	})
	require.NoError(t, err)

	txs := rig.backend.sentTxs()
	require.Len(t, txs, 2)
	assert.Equal(t, tokenAddr, *txs[0].To(), "approve goes to the token")
	assert.Equal(t, vaultAddr, *txs[1].To())
}

func TestSubmitWrapsExactShortfall(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(30),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action:               domain.ActionDeposit,
		Side:                 domain.SideBorrow,
		Amount:               big.NewInt(100),
		SpendToken:           tokenAddr,
		SpendAmount:          big.NewInt(100),
		SpendIsWrappedNative: true,
	})
	require.NoError(t, err)

	txs := rig.backend.sentTxs()
	require.Len(t, txs, 2)
	// the wrap carries the shortfall as tx value, not the full amount
	assert.Equal(t, tokenAddr, *txs[0].To())
	assert.EqualValues(t, 70, txs[0].Value().Int64())
	assert.Equal(t, vaultAddr, *txs[1].To())
}

func TestSubmitStaleMaxBlocksBeforeAnyTx(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{maxRedeem: big.NewInt(50)}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action: domain.ActionRedeem,
		Side:   domain.SideBorrow,
		Amount: big.NewInt(100),
		IsMax:  true,
	})
	require.ErrorIs(t, err, ErrStaleMaxExceeded)
	assert.Empty(t, rig.backend.sentTxs())
}

func TestSubmitUserRejection(t *testing.T) {
	rig := newRig(t, fakeSigner{err: errors.New("user rejected the request")}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action: domain.ActionRedeem,
		Side:   domain.SideBorrow,
		Amount: big.NewInt(10),
	})
	require.ErrorIs(t, err, ErrUserRejected)
	assert.Empty(t, rig.backend.sentTxs())
	assert.Zero(t, rig.poker.count(), "no refresh on rejection")
}

func TestSubmitRevertedReceipt(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})
	rig.backend.revert = true

	err := rig.orch.Submit(context.Background(), Request{
		Action: domain.ActionDeposit,
		Side:   domain.SideBorrow,
		Amount: big.NewInt(10),
	})
	require.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Empty(t, rig.journal.Pending(), "intent settled as failed")
}

func TestFlashLoanTargetsHelper(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action: domain.ActionFlashLoanRedeem,
		Side:   domain.SideBorrow,
		Amount: big.NewInt(100),
		Bound:  big.NewInt(95),
	})
	require.NoError(t, err)

	txs := rig.backend.sentTxs()
	require.Len(t, txs, 1)
	assert.Equal(t, flashAddr, *txs[0].To())
}

func TestActivateWhitelistClassifiesReverts(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(0),
		allowance: big.NewInt(0),
	})
	rig.backend.sendErr = errors.New("execution reverted: signature already used")

	registry := common.HexToAddress("0x4000")
	err := rig.orch.ActivateWhitelist(context.Background(), registry, domain.Signature{User: userAddr})
	require.ErrorIs(t, err, ErrSignatureAlreadyUsed)

	rig.backend.sendErr = errors.New("execution reverted: invalid signature")
	err = rig.orch.ActivateWhitelist(context.Background(), registry, domain.Signature{User: userAddr})
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPhaseSequenceAllowanceAlreadySufficient(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(1000),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action:      domain.ActionDeposit,
		Side:        domain.SideBorrow,
		Amount:      big.NewInt(500),
		SpendToken:  tokenAddr,
		SpendAmount: big.NewInt(500),
	})
	require.NoError(t, err)

	var phases []Phase
drain:
	for {
		select {
		case u := <-rig.orch.Updates():
			phases = append(phases, u.Phase)
		default:
			break drain
		}
	}
	// the approval stage appears and completes instantly, no second tx
	assert.Equal(t, []Phase{
		PhaseApproving,
		PhaseSubmitting, PhaseConfirming,
		PhaseSucceeded,
	}, phases)
	assert.Len(t, rig.backend.sentTxs(), 1)
}

func TestPhaseSequence(t *testing.T) {
	rig := newRig(t, fakeSigner{}, fakeLimits{}, fakeToken{
		balance:   big.NewInt(1000),
		allowance: big.NewInt(0),
	})

	err := rig.orch.Submit(context.Background(), Request{
		Action:      domain.ActionDeposit,
		Side:        domain.SideBorrow,
		Amount:      big.NewInt(500),
		SpendToken:  tokenAddr,
		SpendAmount: big.NewInt(500),
	})
	require.NoError(t, err)

	var phases []Phase
drain:
	for {
		select {
		case u := <-rig.orch.Updates():
			phases = append(phases, u.Phase)
		default:
			break drain
		}
	}
	assert.Equal(t, []Phase{
		PhaseApproving, PhaseConfirming,
		PhaseSubmitting, PhaseConfirming,
		PhaseSucceeded,
	}, phases)
}
