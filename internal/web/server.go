// Package web serves the dashboard UI: a JSON API for state, previews
// and submissions plus an SSE stream pushing every state change.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ltvlabs/vaultdesk/internal/domain"
	"github.com/ltvlabs/vaultdesk/internal/services/gate"
	"github.com/ltvlabs/vaultdesk/internal/services/orchestrator"
	"github.com/ltvlabs/vaultdesk/internal/services/preview"
	"github.com/ltvlabs/vaultdesk/internal/services/stats"
	"github.com/ltvlabs/vaultdesk/internal/services/tracker"
	"github.com/ltvlabs/vaultdesk/pkg/bigmath"
)

const sseHeartbeatInterval = 30 * time.Second

// StateProvider is the tracker slice the server needs.
type StateProvider interface {
	Current() tracker.Snapshot
	Refresh(ctx context.Context) (tracker.Snapshot, error)
	Updates() <-chan struct{}
}

// Previewer accepts inputs and streams settled previews.
type Previewer interface {
	SetInput(in preview.Input)
	Clear()
	Outcomes() <-chan preview.Outcome
}

// Submitter runs a full transaction sequence.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.Request) error
}

// AccessChecker evaluates the submission gate.
type AccessChecker interface {
	Check(ctx context.Context, user common.Address) gate.State
}

// MaxCalculator folds vault limits with user balances into the amount
// actually available per action.
type MaxCalculator interface {
	AvailableDeposit(side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) *big.Int
	AvailableMint(ctx context.Context, side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error)
	AvailableWithdraw(ctx context.Context, side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error)
	AvailableRedeem(side domain.TokenSide, balances domain.BalanceState, limits domain.VaultLimits) *big.Int
	AvailableRebalance(intent domain.Direction, vaultMax, userBalance *big.Int) *big.Int
	AvailableFlashLoanMint(ctx context.Context, balances domain.BalanceState, limits domain.VaultLimits) (*big.Int, error)
	AvailableFlashLoanRedeem(balances domain.BalanceState, limits domain.VaultLimits) *big.Int
	HasInsufficientBalance(action domain.Action, side domain.TokenSide, amount *big.Int, balances domain.BalanceState) bool
}

// MinRebalancer reports the smallest rebalance amount that will not
// revert at the window boundary, and the direction it moves.
type MinRebalancer interface {
	MinRebalance(ctx context.Context) (amount *big.Int, provide bool, err error)
}

// FiguresProvider derives the display metrics shown in the header.
type FiguresProvider interface {
	Collect(ctx context.Context, totalAssets *big.Int) (stats.Figures, error)
}

// Server exposes the dashboard over HTTP.
type Server struct {
	log   *zap.Logger
	addr  string
	user  common.Address
	vault domain.VaultSnapshot

	state     StateProvider
	previews  Previewer
	submitter Submitter
	access    AccessChecker
	maxima    MaxCalculator
	figures   FiguresProvider
	minreb    MinRebalancer
}

// Option configures the Server.
type Option func(*Server)

// WithFigures enables the display-metrics endpoint.
func WithFigures(p FiguresProvider) Option {
	return func(s *Server) {
		s.figures = p
	}
}

// WithMinRebalance adds the min-safe-rebalance figure to rebalance
// queries on the max endpoint.
func WithMinRebalance(m MinRebalancer) Option {
	return func(s *Server) {
		s.minreb = m
	}
}

// NewServer creates a dashboard server bound to one vault and user.
func NewServer(log *zap.Logger, addr string, user common.Address, vault domain.VaultSnapshot,
	state StateProvider, previews Previewer, submitter Submitter, access AccessChecker,
	maxima MaxCalculator, opts ...Option) *Server {
	s := &Server{
		log:       log,
		addr:      addr,
		user:      user,
		vault:     vault,
		state:     state,
		previews:  previews,
		submitter: submitter,
		access:    access,
		maxima:    maxima,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/api/submit", s.handleSubmit)
	mux.HandleFunc("/api/gate", s.handleGate)
	mux.HandleFunc("/api/max", s.handleMax)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statePayload struct {
	Status        string `json:"status"`
	Generation    uint64 `json:"generation"`
	ManualLoading bool   `json:"manual_loading"`
	UpdatedAt     string `json:"updated_at,omitempty"`

	Balances map[string]string `json:"balances"`
	Limits   map[string]string `json:"limits"`
}

func (s *Server) statePayload(snap tracker.Snapshot) statePayload {
	p := statePayload{
		Status:        string(snap.Status),
		Generation:    snap.Generation,
		ManualLoading: snap.ManualLoading,
		Balances: map[string]string{
			"eth":        bigmath.FormatUnits(snap.Balances.Eth, 18),
			"shares":     bigmath.FormatUnits(snap.Balances.Shares, s.vault.SharesDecimals),
			"borrow":     bigmath.FormatUnits(snap.Balances.BorrowToken, s.vault.BorrowTokenDecimals),
			"collateral": bigmath.FormatUnits(snap.Balances.CollateralToken, s.vault.CollateralTokenDecimals),
		},
		Limits: map[string]string{
			"max_deposit":             bigmath.FormatUnits(snap.Limits.MaxDeposit, s.vault.BorrowTokenDecimals),
			"max_mint":                bigmath.FormatUnits(snap.Limits.MaxMint, s.vault.SharesDecimals),
			"max_withdraw":            bigmath.FormatUnits(snap.Limits.MaxWithdraw, s.vault.BorrowTokenDecimals),
			"max_redeem":              bigmath.FormatUnits(snap.Limits.MaxRedeem, s.vault.SharesDecimals),
			"max_deposit_collateral":  bigmath.FormatUnits(snap.Limits.MaxDepositCollateral, s.vault.CollateralTokenDecimals),
			"max_mint_collateral":     bigmath.FormatUnits(snap.Limits.MaxMintCollateral, s.vault.SharesDecimals),
			"max_withdraw_collateral": bigmath.FormatUnits(snap.Limits.MaxWithdrawCollateral, s.vault.CollateralTokenDecimals),
			"max_redeem_collateral":   bigmath.FormatUnits(snap.Limits.MaxRedeemCollateral, s.vault.SharesDecimals),
			"total_assets":            bigmath.FormatUnits(snap.Limits.TotalAssets, s.vault.BorrowTokenDecimals),
		},
	}
	if !snap.UpdatedAt.IsZero() {
		p.UpdatedAt = snap.UpdatedAt.Format(time.RFC3339)
	}
	return p
}

type legPayload struct {
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
}

type previewPayload struct {
	Action  string       `json:"action"`
	Side    string       `json:"side"`
	Legs    []legPayload `json:"legs,omitempty"`
	Error   string       `json:"error,omitempty"`
	Invalid bool         `json:"invalid,omitempty"`
}

func (s *Server) previewPayload(o preview.Outcome) previewPayload {
	p := previewPayload{
		Action: string(o.Input.Action),
		Side:   string(o.Input.Side),
	}
	switch {
	case errors.Is(o.Err, preview.ErrInvalidInput):
		p.Invalid = true
	case o.Err != nil:
		p.Error = o.Err.Error()
	case o.Result != nil:
		for _, leg := range o.Result.Legs {
			p.Legs = append(p.Legs, legPayload{
				Kind:      string(leg.Kind),
				Direction: string(leg.Direction),
				Amount:    bigmath.FormatUnits(leg.Amount, s.legDecimals(leg.Kind)),
			})
		}
	}
	return p
}

func (s *Server) legDecimals(kind domain.LegKind) int {
	switch kind {
	case domain.LegShares:
		return s.vault.SharesDecimals
	case domain.LegCollateral:
		return s.vault.CollateralTokenDecimals
	default:
		return s.vault.BorrowTokenDecimals
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statePayload(s.state.Current()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.state.Refresh(r.Context())
	if err != nil {
		s.log.Warn("manual refresh failed", zap.Error(err))
	}
	// failed refreshes still return the retained snapshot
	writeJSON(w, http.StatusOK, s.statePayload(snap))
}

type inputRequest struct {
	Action string `json:"action"`
	Side   string `json:"side"`
	Intent string `json:"intent,omitempty"`
	Raw    string `json:"raw"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if req.Raw == "" {
		s.previews.Clear()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.previews.SetInput(preview.Input{
		Action: domain.Action(req.Action),
		Side:   domain.TokenSide(req.Side),
		Intent: domain.Direction(req.Intent),
		Raw:    req.Raw,
	})
	w.WriteHeader(http.StatusAccepted)
}

type submitRequest struct {
	Action string `json:"action"`
	Side   string `json:"side"`
	Amount string `json:"amount"`

	SharesHint  string `json:"shares_hint,omitempty"`
	Bound       string `json:"bound,omitempty"`
	SpendToken  string `json:"spend_token,omitempty"`
	SpendAmount string `json:"spend_amount,omitempty"`
	SpendWrap   bool   `json:"spend_wrap,omitempty"`
	IsMax       bool   `json:"is_max,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	action := domain.Action(req.Action)
	side := domain.TokenSide(req.Side)
	decimals := s.inputDecimals(action, side)

	_, amount, ok := bigmath.ProcessInput(req.Amount, decimals)
	if !ok || amount.Sign() <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid amount"})
		return
	}

	if st := s.access.Check(r.Context(), s.user); st.Overall == gate.Blocked {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "submission blocked by terms-of-use or whitelist"})
		return
	}

	// known-insufficient amounts never reach signing or estimation
	if s.maxima.HasInsufficientBalance(action, side, amount, s.state.Current().Balances) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "insufficient balance"})
		return
	}

	oreq := orchestrator.Request{
		Action:               action,
		Side:                 side,
		Amount:               amount,
		SpendIsWrappedNative: req.SpendWrap,
		IsMax:                req.IsMax,
	}
	if req.SpendToken != "" {
		oreq.SpendToken = common.HexToAddress(req.SpendToken)
	}
	if req.SpendAmount != "" {
		if _, v, ok := bigmath.ProcessInput(req.SpendAmount, decimals); ok {
			oreq.SpendAmount = v
		}
	}
	if req.SharesHint != "" {
		if _, v, ok := bigmath.ProcessInput(req.SharesHint, s.vault.SharesDecimals); ok {
			oreq.SharesHint = v
		}
	}
	if req.Bound != "" {
		if _, v, ok := bigmath.ProcessInput(req.Bound, decimals); ok {
			oreq.Bound = v
		}
	}

	err := s.submitter.Submit(r.Context(), oreq)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	case errors.Is(err, orchestrator.ErrUserRejected):
		// rejection is a user decision; the UI shows nothing for it
		writeJSON(w, http.StatusOK, map[string]bool{"silent": true})
	case errors.Is(err, orchestrator.ErrStaleMaxExceeded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "limit changed, refresh and retry"})
	default:
		s.log.Error("submission failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) inputDecimals(action domain.Action, side domain.TokenSide) int {
	conv, ok := domain.Conventions[action]
	if !ok {
		return s.vault.BorrowTokenDecimals
	}
	kind := conv.Input
	if side == domain.SideCollateral && kind == domain.LegBorrow {
		kind = domain.LegCollateral
	}
	return s.legDecimals(kind)
}

// handleMax serves the effective maximum for one action: the vault's
// ceiling folded with the current balances, in display units.
func (s *Server) handleMax(w http.ResponseWriter, r *http.Request) {
	action := domain.Action(r.URL.Query().Get("action"))
	side := domain.TokenSide(r.URL.Query().Get("side"))
	intent := domain.Direction(r.URL.Query().Get("intent"))
	if side == "" {
		side = domain.SideBorrow
	}

	snap := s.state.Current()
	balances, limits := snap.Balances, snap.Limits

	var max *big.Int
	var err error
	switch action {
	case domain.ActionDeposit:
		max = s.maxima.AvailableDeposit(side, balances, limits)
	case domain.ActionMint:
		max, err = s.maxima.AvailableMint(r.Context(), side, balances, limits)
	case domain.ActionWithdraw:
		max, err = s.maxima.AvailableWithdraw(r.Context(), side, balances, limits)
	case domain.ActionRedeem:
		max = s.maxima.AvailableRedeem(side, balances, limits)
	case domain.ActionProvide, domain.ActionBurn, domain.ActionRebalanceShares:
		if intent == "" {
			intent = domain.DirProvide
			if action == domain.ActionBurn {
				intent = domain.DirReceive
			}
		}
		max = s.maxima.AvailableRebalance(intent, limits.MaxRebalanceShares, balances.Shares)
		s.writeRebalanceMax(w, r, max, action, side)
		return
	case domain.ActionFlashLoanMint:
		max, err = s.maxima.AvailableFlashLoanMint(r.Context(), balances, limits)
	case domain.ActionFlashLoanRedeem:
		max = s.maxima.AvailableFlashLoanRedeem(balances, limits)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Warn("max calculation failed", zap.String("action", string(action)), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "max unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"max": bigmath.FormatUnits(max, s.inputDecimals(action, side)),
	})
}

// writeRebalanceMax attaches the freshly measured minimum to the ceiling
// so the UI can show the valid range. The imbalance drifts with interest
// accrual, which is why it is recomputed per query instead of cached.
func (s *Server) writeRebalanceMax(w http.ResponseWriter, r *http.Request, max *big.Int, action domain.Action, side domain.TokenSide) {
	payload := map[string]string{
		"max": bigmath.FormatUnits(max, s.inputDecimals(action, side)),
	}
	if s.minreb != nil {
		min, provide, err := s.minreb.MinRebalance(r.Context())
		if err != nil {
			s.log.Warn("min rebalance probe failed", zap.Error(err))
		} else {
			payload["min"] = bigmath.FormatUnits(min, s.inputDecimals(action, side))
			payload["min_direction"] = string(domain.DirReceive)
			if provide {
				payload["min_direction"] = string(domain.DirProvide)
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.figures == nil {
		http.Error(w, "stats not configured", http.StatusNotFound)
		return
	}

	f, err := s.figures.Collect(r.Context(), s.state.Current().Limits.TotalAssets)
	if err != nil {
		s.log.Warn("figures collection failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "figures unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"total_assets_usd": f.TotalAssetsUSD.StringFixed(2),
		"leverage":         f.Leverage.StringFixed(2),
		"apy_30d_percent":  f.APY30d.StringFixed(2),
		"apy_7d_percent":   f.APY7d.StringFixed(2),
		"points_rate":      f.PointsRate.String(),
		"user_points":      f.UserPoints.String(),
	})
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	st := s.access.Check(r.Context(), s.user)
	writeJSON(w, http.StatusOK, map[string]string{
		"terms":     string(st.Terms),
		"whitelist": string(st.Whitelist),
		"overall":   string(st.Overall),
	})
}

// handleEvents streams state and preview changes over SSE with a comment
// heartbeat so proxies keep the connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	send := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log.Error("marshal sse payload", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: %s\n", event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	send("state", s.statePayload(s.state.Current()))

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-s.state.Updates():
			send("state", s.statePayload(s.state.Current()))
		case o := <-s.previews.Outcomes():
			send("preview", s.previewPayload(o))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
