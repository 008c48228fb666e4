// Package stats derives the display figures that are not part of the
// transactional flow: USD valuation, target leverage and the yield
// numbers served by the indexing backend.
package stats

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceReader reads the oracle price of the borrow asset.
type PriceReader interface {
	LatestAnswer(ctx context.Context) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
}

// LtvReader reads the vault's target loan-to-value ratio.
type LtvReader interface {
	TargetLtv(ctx context.Context) (dividend, divider *big.Int, err error)
}

// YieldReader is the backend slice serving yield figures.
type YieldReader interface {
	TimedAPY(ctx context.Context, vault common.Address) (thirtyDay, sevenDay decimal.Decimal, err error)
	PointsRate(ctx context.Context, vault common.Address) (decimal.Decimal, error)
	Points(ctx context.Context, user common.Address) (decimal.Decimal, error)
}

// Figures is one consistent set of display metrics.
type Figures struct {
	TotalAssetsUSD decimal.Decimal
	Leverage       decimal.Decimal
	APY30d         decimal.Decimal
	APY7d          decimal.Decimal
	PointsRate     decimal.Decimal
	UserPoints     decimal.Decimal
}

// Service computes display figures for one vault.
type Service struct {
	price PriceReader
	ltv   LtvReader
	yield YieldReader

	vault common.Address
	user  common.Address

	assetDecimals int
}

// New creates a stats service. price may be nil when the network has no
// feed configured; USD valuation is then reported as zero.
func New(price PriceReader, ltv LtvReader, yield YieldReader, vault, user common.Address, assetDecimals int) *Service {
	return &Service{
		price:         price,
		ltv:           ltv,
		yield:         yield,
		vault:         vault,
		user:          user,
		assetDecimals: assetDecimals,
	}
}

// Collect gathers all figures. Backend figures degrade independently:
// a failed points read zeroes points but keeps the APY.
func (s *Service) Collect(ctx context.Context, totalAssets *big.Int) (Figures, error) {
	var f Figures

	usd, err := s.ValueUSD(ctx, totalAssets)
	if err != nil {
		return Figures{}, err
	}
	f.TotalAssetsUSD = usd

	leverage, err := s.Leverage(ctx)
	if err != nil {
		return Figures{}, err
	}
	f.Leverage = leverage

	if f.APY30d, f.APY7d, err = s.yield.TimedAPY(ctx, s.vault); err != nil {
		f.APY30d, f.APY7d = decimal.Zero, decimal.Zero
	}
	if f.PointsRate, err = s.yield.PointsRate(ctx, s.vault); err != nil {
		f.PointsRate = decimal.Zero
	}
	if f.UserPoints, err = s.yield.Points(ctx, s.user); err != nil {
		f.UserPoints = decimal.Zero
	}
	return f, nil
}

// ValueUSD converts an asset amount to USD using the oracle price.
func (s *Service) ValueUSD(ctx context.Context, amount *big.Int) (decimal.Decimal, error) {
	if s.price == nil || amount == nil {
		return decimal.Zero, nil
	}

	answer, err := s.price.LatestAnswer(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read oracle price")
	}
	feedDecimals, err := s.price.Decimals(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read oracle decimals")
	}

	price := decimal.NewFromBigInt(answer, -int32(feedDecimals))
	value := decimal.NewFromBigInt(amount, -int32(s.assetDecimals))
	return value.Mul(price), nil
}

// Leverage derives the vault's target leverage from its loan-to-value
// ratio: leverage = divider / (divider - dividend).
func (s *Service) Leverage(ctx context.Context) (decimal.Decimal, error) {
	dividend, divider, err := s.ltv.TargetLtv(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read target ltv")
	}
	if divider == nil || divider.Sign() == 0 {
		return decimal.Zero, errors.New("zero ltv divider")
	}

	num := decimal.NewFromBigInt(divider, 0)
	den := num.Sub(decimal.NewFromBigInt(dividend, 0))
	if den.IsZero() {
		return decimal.Zero, errors.New("target ltv of one has unbounded leverage")
	}
	return num.Div(den), nil
}
