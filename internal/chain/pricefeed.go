package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceFeed reads a Chainlink-style aggregator. Display-only input for
// USD valuations.
type PriceFeed struct {
	caller Caller
	addr   common.Address
}

// NewPriceFeed binds a feed address to a caller.
func NewPriceFeed(caller Caller, addr common.Address) *PriceFeed {
	return &PriceFeed{caller: caller, addr: addr}
}

func (p *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	out, err := view(ctx, p.caller, p.addr, &priceFeedABI, "latestAnswer")
	if err != nil {
		return nil, err
	}
	return asBig(out[0]), nil
}

func (p *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	out, err := view(ctx, p.caller, p.addr, &priceFeedABI, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(out[0]), nil
}
