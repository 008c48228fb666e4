// Package gate decides whether the user may submit operations at all:
// terms-of-use acceptance and, where the vault enforces one, whitelist
// membership. The gate fails closed on a definite "no" and reports
// unknown, not allowed, when a check cannot complete in time.
package gate

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultCheckTimeout = 15 * time.Second

// Verdict is the outcome of one access check.
type Verdict string

const (
	Allowed Verdict = "allowed"
	Blocked Verdict = "blocked"
	Unknown Verdict = "unknown"
)

// State is the combined gate decision.
type State struct {
	Terms     Verdict
	Whitelist Verdict
	Overall   Verdict
	CheckedAt time.Time
}

// TermsChecker reports whether the user accepted the terms of use.
type TermsChecker interface {
	HasAcceptedTerms(ctx context.Context, user common.Address) (bool, error)
}

// WhitelistChecker reports whitelist membership, either on-chain or via
// the indexing backend.
type WhitelistChecker interface {
	IsWhitelisted(ctx context.Context, user common.Address) (bool, error)
}

// Option configures a Gate.
type Option func(*Gate)

// WithCheckTimeout overrides the per-check deadline.
func WithCheckTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// Gate evaluates submission access for one user. A nil whitelist checker
// means the vault is open and only the terms apply.
type Gate struct {
	log       *zap.Logger
	terms     TermsChecker
	whitelist WhitelistChecker
	timeout   time.Duration
}

// New creates a gate.
func New(log *zap.Logger, terms TermsChecker, whitelist WhitelistChecker, opts ...Option) *Gate {
	g := &Gate{
		log:       log,
		terms:     terms,
		whitelist: whitelist,
		timeout:   defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs both checks and combines them. Submission is allowed only
// when every applicable check answered an explicit yes.
func (g *Gate) Check(ctx context.Context, user common.Address) State {
	s := State{
		Terms:     g.verdict(ctx, user, g.terms.HasAcceptedTerms, "terms"),
		Whitelist: Allowed,
		CheckedAt: time.Now(),
	}
	if g.whitelist != nil {
		s.Whitelist = g.verdict(ctx, user, g.whitelist.IsWhitelisted, "whitelist")
	}

	s.Overall = combine(s.Terms, s.Whitelist)
	return s
}

func (g *Gate) verdict(ctx context.Context, user common.Address, check func(context.Context, common.Address) (bool, error), name string) Verdict {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, err := check(cctx, user)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		g.log.Warn("gate check timed out", zap.String("check", name))
		return Unknown
	case err != nil:
		g.log.Warn("gate check failed", zap.String("check", name), zap.Error(err))
		return Blocked
	case ok:
		return Allowed
	default:
		return Blocked
	}
}

func combine(verdicts ...Verdict) Verdict {
	out := Allowed
	for _, v := range verdicts {
		switch v {
		case Blocked:
			return Blocked
		case Unknown:
			out = Unknown
		}
	}
	return out
}
