// Package preview turns a pending user input into directed give/receive
// legs by issuing the matching preview read and decomposing its signed
// deltas.
package preview

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/pkg/bigmath"
)

const (
	defaultDebounce             = 500 * time.Millisecond
	defaultFlashRefreshInterval = 6 * time.Second

	invalidRebalanceModeMarker = "invalid rebalance mode"
)

var (
	// ErrInvalidInput marks an empty, non-positive or unparsable amount.
	// Not a failure: the previous preview is simply discarded.
	ErrInvalidInput = errors.New("preview: invalid input")

	// ErrPreviewUnavailable marks a reverted preview read. Distinct from
	// invalid input so the UI can say "try again later" instead of "fix
	// your input".
	ErrPreviewUnavailable = errors.New("preview: unavailable")

	// ErrInvalidRebalanceMode is the recognized named revert for a
	// rebalance previewed against the wrong direction.
	ErrInvalidRebalanceMode = errors.New("preview: invalid rebalance mode")
)

// VaultPreviewer is the preview slice of the vault binding.
type VaultPreviewer interface {
	PreviewSimple(ctx context.Context, method string, amount *big.Int) (*big.Int, error)
	PreviewLowLevelRebalanceShares(ctx context.Context, deltaShares *big.Int) (deltaCollateral, deltaBorrow *big.Int, err error)
	PreviewLowLevelRebalanceBorrow(ctx context.Context, deltaBorrow *big.Int) (deltaCollateral, deltaShares *big.Int, err error)
	PreviewLowLevelRebalanceCollateral(ctx context.Context, deltaCollateral *big.Int) (deltaBorrow, deltaShares *big.Int, err error)
	PreviewExecuteAuctionBorrow(ctx context.Context, deltaBorrow *big.Int) (*big.Int, error)
	PreviewExecuteAuctionCollateral(ctx context.Context, deltaCollateral *big.Int) (*big.Int, error)
	FutureBorrowAssets(ctx context.Context) (*big.Int, error)
	FutureCollateralAssets(ctx context.Context) (*big.Int, error)
}

// FlashPreviewer quotes the flash-loan helper.
type FlashPreviewer interface {
	PreviewMint(ctx context.Context, shares *big.Int) (*big.Int, error)
	PreviewRedeem(ctx context.Context, shares *big.Int) (*big.Int, error)
}

// Input is one pending user entry.
type Input struct {
	Action domain.Action
	Side   domain.TokenSide
	// Intent selects provide/receive for direction-ambiguous rebalance
	// amounts; ignored elsewhere.
	Intent domain.Direction
	Raw    string
}

// Outcome is a settled preview. Exactly one of Result and Err is set,
// except for invalid input where both may be nil-result + ErrInvalidInput.
type Outcome struct {
	Input      Input
	Result     *domain.PreviewResult
	Err        error
	Generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the input debounce window.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithFlashRefreshInterval overrides the flash-loan re-quote cadence.
func WithFlashRefreshInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.flashRefresh = d
	}
}

// Engine debounces input changes, issues the matching preview read and
// publishes decomposed outcomes. Results carrying a stale generation are
// discarded, never applied.
type Engine struct {
	log   *zap.Logger
	vault VaultPreviewer
	flash FlashPreviewer
	snap  domain.VaultSnapshot

	debounce     time.Duration
	flashRefresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer

	outcomes chan Outcome
}

// NewEngine creates a preview engine for one vault.
func NewEngine(log *zap.Logger, vault VaultPreviewer, flash FlashPreviewer, snap domain.VaultSnapshot, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		log:          log,
		vault:        vault,
		flash:        flash,
		snap:         snap,
		debounce:     defaultDebounce,
		flashRefresh: defaultFlashRefreshInterval,
		ctx:          ctx,
		cancel:       cancel,
		outcomes:     make(chan Outcome, 16),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcomes streams settled previews.
func (e *Engine) Outcomes() <-chan Outcome {
	return e.outcomes
}

// Close cancels pending timers and in-flight reads.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.generation++
	e.mu.Unlock()
	e.cancel()
}

// SetInput registers a new pending input. The previous debounce timer is
// cancelled and any read already in flight is invalidated: its result
// will not match the new generation when it resolves.
func (e *Engine) SetInput(in Input) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	amount, ok := e.parse(in)
	if !ok {
		e.mu.Unlock()
		e.publish(Outcome{Input: in, Err: ErrInvalidInput, Generation: gen})
		return
	}

	e.timer = time.AfterFunc(e.debounce, func() {
		e.run(gen, in, amount)
	})
	e.mu.Unlock()
}

// Clear drops the pending input without publishing anything.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
}

func (e *Engine) parse(in Input) (*big.Int, bool) {
	conv, ok := domain.Conventions[in.Action]
	if !ok {
		return nil, false
	}

	decimals := e.snap.BorrowTokenDecimals
	switch sideAdjust(conv.Input, in.Side) {
	case domain.LegShares:
		decimals = e.snap.SharesDecimals
	case domain.LegCollateral:
		decimals = e.snap.CollateralTokenDecimals
	}

	_, amount, ok := bigmath.ProcessInput(in.Raw, decimals)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

// run executes the preview for a captured generation and applies the
// outcome only if the generation is still current when it resolves.
func (e *Engine) run(gen uint64, in Input, amount *big.Int) {
	result, err := e.quote(e.ctx, in, amount)

	e.mu.Lock()
	stale := gen != e.generation
	if !stale && err == nil && isFlashAction(in.Action) {
		// flash-loan pricing moves between keystrokes; re-quote while
		// the input stays current
		e.timer = time.AfterFunc(e.flashRefresh, func() {
			e.run(gen, in, amount)
		})
	}
	e.mu.Unlock()

	if stale {
		return
	}

	if err != nil {
		e.log.Debug("preview failed",
			zap.String("action", string(in.Action)),
			zap.Error(err))
		e.publish(Outcome{Input: in, Err: classify(err), Generation: gen})
		return
	}
	e.publish(Outcome{Input: in, Result: result, Generation: gen})
}

// quote issues the preview read for the action and decomposes the legs.
func (e *Engine) quote(ctx context.Context, in Input, amount *big.Int) (*domain.PreviewResult, error) {
	conv := domain.Conventions[in.Action]
	inputKind := sideAdjust(conv.Input, in.Side)

	result := &domain.PreviewResult{Action: in.Action, Side: in.Side, Input: amount}

	switch in.Action {
	case domain.ActionDeposit, domain.ActionMint, domain.ActionWithdraw, domain.ActionRedeem:
		out, err := e.vault.PreviewSimple(ctx, simplePreviewMethod(in.Action, in.Side), amount)
		if err != nil {
			return nil, err
		}
		result.Legs = append(result.Legs,
			domain.Leg{Kind: inputKind, Direction: conv.InputDirection, Amount: new(big.Int).Set(amount)})
		outKind, outDir := simpleOutputLeg(conv, in.Side)
		if out.Sign() != 0 {
			result.Legs = append(result.Legs, domain.Leg{Kind: outKind, Direction: outDir, Amount: out})
		}
		return result, nil

	case domain.ActionProvide, domain.ActionBurn, domain.ActionRebalanceShares:
		delta := new(big.Int).Set(amount)
		if in.Action == domain.ActionBurn || (in.Action == domain.ActionRebalanceShares && in.Intent == domain.DirReceive) {
			delta.Neg(delta)
		}
		deltaCollateral, deltaBorrow, err := e.vault.PreviewLowLevelRebalanceShares(ctx, delta)
		if err != nil {
			return nil, err
		}
		result.Legs = domain.DecomposeLegs(in.Action, domain.PreviewDeltas{
			Collateral: deltaCollateral,
			Borrow:     deltaBorrow,
		})
		return result, nil

	case domain.ActionRebalanceBorrow:
		delta := signedByIntent(amount, in.Intent)
		deltaCollateral, deltaShares, err := e.vault.PreviewLowLevelRebalanceBorrow(ctx, delta)
		if err != nil {
			return nil, err
		}
		result.Legs = domain.DecomposeLegs(in.Action, domain.PreviewDeltas{
			Collateral: deltaCollateral,
			Shares:     deltaShares,
		})
		return result, nil

	case domain.ActionRebalanceCollateral:
		delta := signedByIntent(amount, in.Intent)
		deltaBorrow, deltaShares, err := e.vault.PreviewLowLevelRebalanceCollateral(ctx, delta)
		if err != nil {
			return nil, err
		}
		result.Legs = domain.DecomposeLegs(in.Action, domain.PreviewDeltas{
			Borrow: deltaBorrow,
			Shares: deltaShares,
		})
		return result, nil

	case domain.ActionAuctionBorrow:
		return e.quoteAuction(ctx, in, amount, domain.SideBorrow, result)
	case domain.ActionAuctionCollateral:
		return e.quoteAuction(ctx, in, amount, domain.SideCollateral, result)

	case domain.ActionFlashLoanMint:
		collateral, err := e.flash.PreviewMint(ctx, amount)
		if err != nil {
			return nil, err
		}
		result.Legs = append(result.Legs,
			domain.Leg{Kind: domain.LegShares, Direction: domain.DirReceive, Amount: new(big.Int).Set(amount)})
		if collateral.Sign() != 0 {
			result.Legs = append(result.Legs, domain.Leg{
				Kind:      domain.LegCollateral,
				Direction: domain.DirProvide,
				Amount:    bigmath.ReduceByPrecisionBuffer(collateral),
			})
		}
		return result, nil

	case domain.ActionFlashLoanRedeem:
		borrowOut, err := e.flash.PreviewRedeem(ctx, amount)
		if err != nil {
			return nil, err
		}
		result.Legs = append(result.Legs,
			domain.Leg{Kind: domain.LegShares, Direction: domain.DirProvide, Amount: new(big.Int).Set(amount)})
		if borrowOut.Sign() != 0 {
			result.Legs = append(result.Legs, domain.Leg{
				Kind:      domain.LegBorrow,
				Direction: domain.DirReceive,
				Amount:    bigmath.ReduceByPrecisionBuffer(borrowOut),
			})
		}
		return result, nil

	default:
		return nil, errors.Errorf("action %s has no preview", in.Action)
	}
}

// quoteAuction infers direction from the pending imbalance sign, not
// from the user's selection.
func (e *Engine) quoteAuction(ctx context.Context, in Input, amount *big.Int, side domain.TokenSide, result *domain.PreviewResult) (*domain.PreviewResult, error) {
	var future *big.Int
	var err error
	if side == domain.SideCollateral {
		future, err = e.vault.FutureCollateralAssets(ctx)
	} else {
		future, err = e.vault.FutureBorrowAssets(ctx)
	}
	if err != nil {
		return nil, err
	}

	inputDir := domain.DirReceive
	delta := new(big.Int).Set(amount)
	if future.Sign() < 0 {
		inputDir = domain.DirProvide
		delta.Neg(delta)
	}

	var out *big.Int
	inputKind, outputKind := domain.LegBorrow, domain.LegCollateral
	if side == domain.SideCollateral {
		inputKind, outputKind = domain.LegCollateral, domain.LegBorrow
		out, err = e.vault.PreviewExecuteAuctionCollateral(ctx, delta)
	} else {
		out, err = e.vault.PreviewExecuteAuctionBorrow(ctx, delta)
	}
	if err != nil {
		return nil, err
	}

	result.Legs = append(result.Legs,
		domain.Leg{Kind: inputKind, Direction: inputDir, Amount: new(big.Int).Set(amount)})
	if out.Sign() != 0 {
		result.Legs = append(result.Legs,
			domain.Leg{Kind: outputKind, Direction: inputDir.Opposite(), Amount: bigmath.Abs(out)})
	}
	return result, nil
}

func (e *Engine) publish(o Outcome) {
	select {
	case e.outcomes <- o:
	default:
		e.log.Debug("outcome channel full, dropping preview")
	}
}

func classify(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), invalidRebalanceModeMarker) {
		return errors.Wrap(ErrInvalidRebalanceMode, err.Error())
	}
	return errors.Wrap(ErrPreviewUnavailable, err.Error())
}

func isFlashAction(a domain.Action) bool {
	return a == domain.ActionFlashLoanMint || a == domain.ActionFlashLoanRedeem
}

func signedByIntent(amount *big.Int, intent domain.Direction) *big.Int {
	out := new(big.Int).Set(amount)
	if intent == domain.DirProvide {
		out.Neg(out)
	}
	return out
}

// sideAdjust rewrites borrow-denominated legs to collateral when the
// user is operating on the collateral side.
func sideAdjust(kind domain.LegKind, side domain.TokenSide) domain.LegKind {
	if side == domain.SideCollateral && kind == domain.LegBorrow {
		return domain.LegCollateral
	}
	return kind
}

// simplePreviewMethod maps a simple action and side to its vault view.
func simplePreviewMethod(action domain.Action, side domain.TokenSide) string {
	method := map[domain.Action]string{
		domain.ActionDeposit:  "previewDeposit",
		domain.ActionMint:     "previewMint",
		domain.ActionWithdraw: "previewWithdraw",
		domain.ActionRedeem:   "previewRedeem",
	}[action]
	if side == domain.SideCollateral {
		method += "Collateral"
	}
	return method
}

func simpleOutputLeg(conv domain.Convention, side domain.TokenSide) (domain.LegKind, domain.Direction) {
	for kind, dir := range conv.Fixed {
		return sideAdjust(kind, side), dir
	}
	return domain.LegShares, domain.DirReceive
}
