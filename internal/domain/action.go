package domain

// Action identifies a user-facing vault operation.
type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionMint     Action = "mint"
	ActionWithdraw Action = "withdraw"
	ActionRedeem   Action = "redeem"

	// ActionProvide and ActionBurn are the share-denominated low-level
	// entry points: provide pushes value into the vault position, burn
	// pulls it out. Both preview through the shares rebalance call.
	ActionProvide Action = "provide"
	ActionBurn    Action = "burn"

	ActionAuctionBorrow     Action = "executeAuctionBorrow"
	ActionAuctionCollateral Action = "executeAuctionCollateral"

	ActionRebalanceShares     Action = "lowLevelRebalanceShares"
	ActionRebalanceBorrow     Action = "lowLevelRebalanceBorrow"
	ActionRebalanceCollateral Action = "lowLevelRebalanceCollateral"

	ActionFlashLoanMint   Action = "flashLoanMint"
	ActionFlashLoanRedeem Action = "flashLoanRedeem"
)

// TokenSide selects which asset denominates an operation.
type TokenSide string

const (
	SideBorrow     TokenSide = "borrow"
	SideCollateral TokenSide = "collateral"
)

// Direction says whether a leg flows from the user to the vault or back.
type Direction string

const (
	DirProvide Direction = "provide"
	DirReceive Direction = "receive"
)

// Opposite returns the inverse direction.
func (d Direction) Opposite() Direction {
	if d == DirProvide {
		return DirReceive
	}
	return DirProvide
}

// LegKind names the asset a preview leg is denominated in.
type LegKind string

const (
	LegCollateral LegKind = "collateral"
	LegBorrow     LegKind = "borrow"
	LegShares     LegKind = "shares"
)

// Convention declares how a preview result decomposes into directed legs
// for one action. Fixed legs always flow the stated way; Signed legs flow
// the stated way when the preview delta is positive and the opposite way
// when negative. Each leg carries its own mapping; there is no global
// sign rule.
type Convention struct {
	// Input is the leg the user's typed amount denominates.
	Input LegKind
	// InputDirection applies when the input amount itself is a leg with a
	// fixed flow (empty for sign-inferred inputs).
	InputDirection Direction

	Fixed  map[LegKind]Direction
	Signed map[LegKind]Direction
}

// Conventions is the per-action leg decomposition table.
var Conventions = map[Action]Convention{
	ActionDeposit: {
		Input:          LegBorrow,
		InputDirection: DirProvide,
		Fixed:          map[LegKind]Direction{LegShares: DirReceive},
	},
	ActionMint: {
		Input:          LegShares,
		InputDirection: DirReceive,
		Fixed:          map[LegKind]Direction{LegBorrow: DirProvide},
	},
	ActionWithdraw: {
		Input:          LegBorrow,
		InputDirection: DirReceive,
		Fixed:          map[LegKind]Direction{LegShares: DirProvide},
	},
	ActionRedeem: {
		Input:          LegShares,
		InputDirection: DirProvide,
		Fixed:          map[LegKind]Direction{LegBorrow: DirReceive},
	},

	// Share-denominated rebalance: a positive collateral delta means the
	// user tops the vault up; a positive borrow delta flows back to the
	// user because extra borrowing is taken on the user's behalf.
	ActionRebalanceShares: {
		Input: LegShares,
		Signed: map[LegKind]Direction{
			LegCollateral: DirProvide,
			LegBorrow:     DirReceive,
		},
	},
	ActionProvide: {
		Input: LegShares,
		Signed: map[LegKind]Direction{
			LegCollateral: DirProvide,
			LegBorrow:     DirReceive,
		},
	},
	ActionBurn: {
		Input: LegShares,
		Signed: map[LegKind]Direction{
			LegCollateral: DirProvide,
			LegBorrow:     DirReceive,
		},
	},
	ActionRebalanceBorrow: {
		Input: LegBorrow,
		Signed: map[LegKind]Direction{
			LegCollateral: DirProvide,
			LegShares:     DirReceive,
		},
	},
	ActionRebalanceCollateral: {
		Input: LegCollateral,
		Signed: map[LegKind]Direction{
			LegBorrow: DirReceive,
			LegShares: DirReceive,
		},
	},

	// Auction directions are inferred from the pending imbalance at
	// preview time, not from this table; only the input leg is static.
	ActionAuctionBorrow:     {Input: LegBorrow},
	ActionAuctionCollateral: {Input: LegCollateral},

	ActionFlashLoanMint: {
		Input:          LegShares,
		InputDirection: DirReceive,
		Fixed:          map[LegKind]Direction{LegCollateral: DirProvide},
	},
	ActionFlashLoanRedeem: {
		Input:          LegShares,
		InputDirection: DirProvide,
		Fixed:          map[LegKind]Direction{LegBorrow: DirReceive},
	},
}
