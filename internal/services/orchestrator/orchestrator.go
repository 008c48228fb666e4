// Package orchestrator drives a vault operation through its full
// transaction sequence: wrapping a native shortfall, granting the exact
// allowance, submitting the action itself and waiting for the receipt.
package orchestrator

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/chain"
	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/pkg/bigmath"
)

const receiptPollInterval = 2 * time.Second

var (
	// ErrUserRejected marks a signature request declined in the wallet.
	// Callers surface nothing for it: rejection is a user decision, not a
	// failure.
	ErrUserRejected = errors.New("orchestrator: user rejected")

	// ErrStaleMaxExceeded marks a max-sized withdrawal or redemption whose
	// cached ceiling no longer holds at submission time.
	ErrStaleMaxExceeded = errors.New("orchestrator: cached max exceeds current limit")

	ErrApprovalFailed   = errors.New("orchestrator: approval failed")
	ErrSigningFailed    = errors.New("orchestrator: signing failed")
	ErrSubmissionFailed = errors.New("orchestrator: submission failed")

	// Whitelist activation reverts with recognizable reasons.
	ErrSignatureAlreadyUsed = errors.New("orchestrator: whitelist signature already used")
	ErrInvalidSignature     = errors.New("orchestrator: invalid whitelist signature")
)

// Phase is the externally visible stage of a running submission.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseWrapping   Phase = "wrapping"
	PhaseApproving  Phase = "approving"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirming Phase = "confirming"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Update is one progress notification of a running submission.
type Update struct {
	Phase  Phase
	TxHash common.Hash
	Err    error
}

// EthBackend is the node slice the orchestrator needs.
type EthBackend interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions for one account. Implementations backed by
// an interactive wallet return a rejection error when the user declines.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// TokenReader reads the balance and allowance of the spend token.
type TokenReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// LimitReader re-reads the operation ceilings for the stale-max check.
type LimitReader interface {
	MaxWithdraw(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxRedeem(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxWithdrawCollateral(ctx context.Context, owner common.Address) (*big.Int, error)
	MaxRedeemCollateral(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Poker requests an immediate state refresh after confirmation.
type Poker interface {
	Poke()
}

// HolderNotifier tells the indexing backend that token holders changed.
type HolderNotifier interface {
	RefreshTokenHolders(ctx context.Context) error
}

// Request describes one user-approved operation ready for submission.
type Request struct {
	Action domain.Action
	Side   domain.TokenSide
	Amount *big.Int

	// SharesHint carries the previewed share delta for hinted rebalance
	// calls; Bound carries the buffered ceiling/floor for flash-loan
	// calls. Both nil elsewhere.
	SharesHint *big.Int
	Bound      *big.Int

	// SpendToken/SpendAmount is the provide leg the target contract pulls
	// via transferFrom. Zero SpendToken means nothing is pulled.
	SpendToken  common.Address
	SpendAmount *big.Int

	// SpendIsWrappedNative allows topping the token balance up by
	// wrapping native currency before the allowance step.
	SpendIsWrappedNative bool

	// IsMax marks an amount taken from a cached "max" so the ceiling is
	// re-read just before submission.
	IsMax bool
}

// Orchestrator submits vault operations for one signer.
type Orchestrator struct {
	log     *zap.Logger
	backend EthBackend
	signer  TxSigner
	chainID *big.Int

	vaultAddr common.Address
	flashAddr common.Address

	limits  LimitReader
	token   TokenReader
	journal *Journal

	poker    Poker
	notifier HolderNotifier

	updates chan Update
}

// New creates an orchestrator. flashAddr may be the zero address when the
// network has no flash-loan helper.
func New(log *zap.Logger, backend EthBackend, signer TxSigner, chainID *big.Int,
	vaultAddr, flashAddr common.Address, limits LimitReader, token TokenReader,
	journal *Journal, poker Poker, notifier HolderNotifier) *Orchestrator {
	return &Orchestrator{
		log:       log,
		backend:   backend,
		signer:    signer,
		chainID:   chainID,
		vaultAddr: vaultAddr,
		flashAddr: flashAddr,
		limits:    limits,
		token:     token,
		journal:   journal,
		poker:     poker,
		notifier:  notifier,
		updates:   make(chan Update, 16),
	}
}

// Updates streams phase transitions.
func (o *Orchestrator) Updates() <-chan Update {
	return o.updates
}

// Submit runs the full sequence for one request. It returns the terminal
// error; every intermediate failure is also published as an update.
func (o *Orchestrator) Submit(ctx context.Context, req Request) error {
	intent, err := o.journal.Prepare(req.Action, req.Side, req.Amount.String())
	if err != nil {
		return errors.Wrap(err, "journal prepare")
	}

	if err := o.submit(ctx, req); err != nil {
		if jerr := o.journal.MarkFailed(intent, err); jerr != nil {
			o.log.Error("journal mark failed", zap.Error(jerr))
		}
		o.publish(Update{Phase: PhaseFailed, Err: err})
		return err
	}

	if err := o.journal.MarkDone(intent); err != nil {
		o.log.Error("journal mark done", zap.Error(err))
	}
	o.publish(Update{Phase: PhaseSucceeded})
	o.afterConfirm()
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, req Request) error {
	if req.IsMax {
		if err := o.checkStaleMax(ctx, req); err != nil {
			return err
		}
	}

	if req.SpendToken != (common.Address{}) && !bigmath.IsZeroOrNil(req.SpendAmount) {
		if err := o.ensureSpendable(ctx, req); err != nil {
			return err
		}
		if err := o.ensureAllowance(ctx, req); err != nil {
			return err
		}
	}

	target, data, err := o.buildCall(req)
	if err != nil {
		return err
	}

	o.publish(Update{Phase: PhaseSubmitting})
	hash, err := o.sendAndConfirm(ctx, target, data, nil)
	if err != nil {
		return classifySubmission(err)
	}
	o.log.Info("operation confirmed",
		zap.String("action", string(req.Action)),
		zap.String("tx", hash.Hex()))
	return nil
}

// checkStaleMax re-reads the ceiling the cached max came from. The limit
// can only have drifted down between display and submission.
func (o *Orchestrator) checkStaleMax(ctx context.Context, req Request) error {
	var current *big.Int
	var err error
	switch {
	case req.Action == domain.ActionWithdraw && req.Side == domain.SideCollateral:
		current, err = o.limits.MaxWithdrawCollateral(ctx, o.signer.Address())
	case req.Action == domain.ActionWithdraw:
		current, err = o.limits.MaxWithdraw(ctx, o.signer.Address())
	case req.Action == domain.ActionRedeem && req.Side == domain.SideCollateral:
		current, err = o.limits.MaxRedeemCollateral(ctx, o.signer.Address())
	case req.Action == domain.ActionRedeem:
		current, err = o.limits.MaxRedeem(ctx, o.signer.Address())
	default:
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "re-read limit")
	}
	if req.Amount.Cmp(current) > 0 {
		return errors.Wrapf(ErrStaleMaxExceeded, "cached %s, current %s", req.Amount, current)
	}
	return nil
}

// ensureSpendable wraps the exact native shortfall when the spend token
// is the wrapped-native asset and the token balance alone falls short.
func (o *Orchestrator) ensureSpendable(ctx context.Context, req Request) error {
	if !req.SpendIsWrappedNative {
		return nil
	}

	balance, err := o.token.BalanceOf(ctx, o.signer.Address())
	if err != nil {
		return errors.Wrap(err, "read spend token balance")
	}
	if balance.Cmp(req.SpendAmount) >= 0 {
		return nil
	}
	shortfall := new(big.Int).Sub(req.SpendAmount, balance)

	data, err := chain.PackWrapNative()
	if err != nil {
		return errors.Wrap(err, "pack wrap")
	}

	o.publish(Update{Phase: PhaseWrapping})
	if _, err := o.sendAndConfirm(ctx, req.SpendToken, data, shortfall); err != nil {
		return classifySubmission(err)
	}
	o.log.Info("wrapped native shortfall", zap.String("amount", shortfall.String()))
	return nil
}

// ensureAllowance grants the exact spend amount to the target contract.
// A sufficient existing allowance skips the transaction entirely.
func (o *Orchestrator) ensureAllowance(ctx context.Context, req Request) error {
	spender := o.vaultAddr
	if isFlashAction(req.Action) {
		spender = o.flashAddr
	}

	allowance, err := o.token.Allowance(ctx, o.signer.Address(), spender)
	if err != nil {
		return errors.Wrap(err, "read allowance")
	}
	if allowance.Cmp(req.SpendAmount) >= 0 {
		// the step still surfaces as an instantly completed stage
		o.publish(Update{Phase: PhaseApproving})
		return nil
	}

	data, err := chain.PackApprove(spender, req.SpendAmount)
	if err != nil {
		return errors.Wrap(err, "pack approve")
	}

	o.publish(Update{Phase: PhaseApproving})
	if _, err := o.sendAndConfirm(ctx, req.SpendToken, data, nil); err != nil {
		err = classifySubmission(err)
		if errors.Is(err, ErrUserRejected) {
			return err
		}
		return errors.Wrap(ErrApprovalFailed, err.Error())
	}
	return nil
}

// buildCall packs the action calldata and selects the target contract.
func (o *Orchestrator) buildCall(req Request) (common.Address, []byte, error) {
	var data []byte
	var err error
	target := o.vaultAddr

	switch req.Action {
	case domain.ActionDeposit, domain.ActionMint, domain.ActionWithdraw, domain.ActionRedeem:
		data, err = chain.PackVaultAction(req.Action, req.Side, req.Amount, o.signer.Address())
	case domain.ActionProvide:
		data, err = chain.PackRebalanceShares(req.Amount)
	case domain.ActionBurn:
		data, err = chain.PackRebalanceShares(new(big.Int).Neg(req.Amount))
	case domain.ActionRebalanceShares:
		data, err = chain.PackRebalanceShares(req.Amount)
	case domain.ActionRebalanceBorrow:
		data, err = chain.PackRebalanceBorrowHint(req.Amount, req.SharesHint)
	case domain.ActionRebalanceCollateral:
		data, err = chain.PackRebalanceCollateralHint(req.Amount, req.SharesHint)
	case domain.ActionAuctionBorrow:
		data, err = chain.PackAuction(domain.SideBorrow, req.Amount)
	case domain.ActionAuctionCollateral:
		data, err = chain.PackAuction(domain.SideCollateral, req.Amount)
	case domain.ActionFlashLoanMint:
		target = o.flashAddr
		data, err = chain.PackFlashLoanMint(req.Amount, req.Bound)
	case domain.ActionFlashLoanRedeem:
		target = o.flashAddr
		data, err = chain.PackFlashLoanRedeem(req.Amount, req.Bound)
	default:
		return common.Address{}, nil, errors.Errorf("action %s is not submittable", req.Action)
	}
	if err != nil {
		return common.Address{}, nil, errors.Wrapf(err, "pack %s", req.Action)
	}
	return target, data, nil
}

// ActivateWhitelist submits the signature-based whitelist activation. The
// signature is single-use: a recognized "already used" revert is reported
// as such so the caller can drop it from the registry.
func (o *Orchestrator) ActivateWhitelist(ctx context.Context, registry common.Address, sig domain.Signature) error {
	data, err := chain.PackWhitelistActivation(sig)
	if err != nil {
		return errors.Wrap(err, "pack whitelist activation")
	}

	o.publish(Update{Phase: PhaseSubmitting})
	if _, err := o.sendAndConfirm(ctx, registry, data, nil); err != nil {
		err = classifyWhitelist(classifySubmission(err))
		o.publish(Update{Phase: PhaseFailed, Err: err})
		return err
	}
	o.publish(Update{Phase: PhaseSucceeded})
	return nil
}

// sendAndConfirm builds, signs and submits one legacy transaction and
// blocks until its receipt lands. Gas is padded by the estimation
// slippage factor.
func (o *Orchestrator) sendAndConfirm(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	from := o.signer.Address()

	gas, err := o.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "estimate gas")
	}

	gasPrice, err := o.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "suggest gas price")
	}

	nonce, err := o.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "pending nonce")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      bigmath.GasLimitWithSlippage(gas),
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := o.signer.SignTx(tx, o.chainID)
	if err != nil {
		if isUserRejection(err) {
			return common.Hash{}, errors.Wrap(ErrUserRejected, err.Error())
		}
		return common.Hash{}, errors.Wrap(ErrSigningFailed, err.Error())
	}

	if err := o.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(ErrSubmissionFailed, err.Error())
	}

	hash := signed.Hash()
	o.publish(Update{Phase: PhaseConfirming, TxHash: hash})

	receipt, err := o.waitReceipt(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, errors.Wrapf(ErrSubmissionFailed, "tx %s reverted", hash.Hex())
	}
	return hash, nil
}

func (o *Orchestrator) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := o.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			o.log.Debug("receipt poll", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// afterConfirm refreshes local state immediately and tells the indexing
// backend in the background; its failure never surfaces to the user.
func (o *Orchestrator) afterConfirm() {
	if o.poker != nil {
		o.poker.Poke()
	}
	if o.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := o.notifier.RefreshTokenHolders(ctx); err != nil {
				o.log.Debug("token holder refresh", zap.Error(err))
			}
		}()
	}
}

func (o *Orchestrator) publish(u Update) {
	select {
	case o.updates <- u:
	default:
		o.log.Debug("update channel full, dropping phase", zap.String("phase", string(u.Phase)))
	}
}

func isFlashAction(a domain.Action) bool {
	return a == domain.ActionFlashLoanMint || a == domain.ActionFlashLoanRedeem
}

func isUserRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

func classifySubmission(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrSigningFailed),
		errors.Is(err, ErrSubmissionFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Wrap(ErrSubmissionFailed, err.Error())
	}
}

func classifyWhitelist(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "signature already used"):
		return errors.Wrap(ErrSignatureAlreadyUsed, err.Error())
	case strings.Contains(msg, "invalid signature"):
		return errors.Wrap(ErrInvalidSignature, err.Error())
	default:
		return err
	}
}
