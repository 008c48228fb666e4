package domain

import "math/big"

// PreviewDeltas is the raw, signed output of a preview-style contract
// read. Legs the call does not produce stay nil.
type PreviewDeltas struct {
	Collateral *big.Int
	Borrow     *big.Int
	Shares     *big.Int
}

// Leg is one directed token flow of a previewed operation. Amount is
// always non-negative; the sign information lives in Direction.
type Leg struct {
	Kind      LegKind
	Direction Direction
	Amount    *big.Int
}

// PreviewResult is the decomposed preview for one (action, side, amount)
// triple. Transient: superseded by the next input change.
type PreviewResult struct {
	Action Action
	Side   TokenSide
	Input  *big.Int

	Legs []Leg
}

// ProvideLegs returns the legs the user gives up.
func (p PreviewResult) ProvideLegs() []Leg {
	return p.legs(DirProvide)
}

// ReceiveLegs returns the legs the user gets back.
func (p PreviewResult) ReceiveLegs() []Leg {
	return p.legs(DirReceive)
}

func (p PreviewResult) legs(d Direction) []Leg {
	var out []Leg
	for _, l := range p.Legs {
		if l.Direction == d {
			out = append(out, l)
		}
	}
	return out
}

// DecomposeLegs applies an action's sign convention to raw preview
// deltas. Zero or nil deltas contribute no leg.
func DecomposeLegs(action Action, deltas PreviewDeltas) []Leg {
	conv, ok := Conventions[action]
	if !ok {
		return nil
	}

	var legs []Leg
	add := func(kind LegKind, delta *big.Int) {
		if delta == nil || delta.Sign() == 0 {
			return
		}
		if dir, ok := conv.Fixed[kind]; ok {
			legs = append(legs, Leg{Kind: kind, Direction: dir, Amount: new(big.Int).Abs(delta)})
			return
		}
		if positiveDir, ok := conv.Signed[kind]; ok {
			dir := positiveDir
			if delta.Sign() < 0 {
				dir = positiveDir.Opposite()
			}
			legs = append(legs, Leg{Kind: kind, Direction: dir, Amount: new(big.Int).Abs(delta)})
		}
	}

	add(LegCollateral, deltas.Collateral)
	add(LegBorrow, deltas.Borrow)
	add(LegShares, deltas.Shares)
	return legs
}
