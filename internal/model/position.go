package model

import "time"

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Sign returns +1 for long, -1 for short.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// OptionClass distinguishes calls from puts using NSE suffixes.
type OptionClass string

const (
	Call OptionClass = "CE"
	Put  OptionClass = "PE"
)

// PositionKind tags the concrete variant of a Position.
type PositionKind int

const (
	KindOption PositionKind = iota
	KindFutures
)

// Position is a sealed sum type over OptionPosition and FuturesPosition.
// Dispatch on Kind (or a type switch) instead of probing for variant-only
// fields. The risk engine only reads positions; it never owns or persists
// them.
type Position interface {
	Core() *PositionCore
	Kind() PositionKind
}

// PositionCore holds the fields common to every position variant.
type PositionCore struct {
	ID            string  `json:"id"`
	Underlying    string  `json:"underlying"`
	Side          Side    `json:"side"`
	Qty           float64 `json:"qty"`
	EntryPrice    float64 `json:"entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PositionValue float64 `json:"position_value"`
	MarginUsed    float64 `json:"margin_used"`
}

// OptionPosition is a held option contract.
type OptionPosition struct {
	PositionCore

	Symbol         string      `json:"symbol"` // e.g. NIFTY24JAN20000CE
	Strike         float64     `json:"strike"`
	Expiry         time.Time   `json:"expiry"`
	Class          OptionClass `json:"class"`
	Premium        float64     `json:"premium"`
	ImpliedVol     float64     `json:"implied_vol"`
	Greeks         Greeks      `json:"greeks"` // per-contract, unsigned
	TimeValue      float64     `json:"time_value"`
	IntrinsicValue float64     `json:"intrinsic_value"`
	DaysToExpiry   float64     `json:"days_to_expiry"`
}

func (p *OptionPosition) Core() *PositionCore { return &p.PositionCore }
func (p *OptionPosition) Kind() PositionKind  { return KindOption }

// MarginTier is one band of a futures margin schedule.
type MarginTier struct {
	NotionalFloor float64 `json:"notional_floor"`
	MarginRate    float64 `json:"margin_rate"`
}

// FuturesPosition is a held futures contract.
type FuturesPosition struct {
	PositionCore

	ContractSize float64      `json:"contract_size"`
	Multiplier   float64      `json:"multiplier"`
	MarginTiers  []MarginTier `json:"margin_tiers,omitempty"`
	MarkToMarket float64      `json:"mark_to_market"`
}

func (p *FuturesPosition) Core() *PositionCore { return &p.PositionCore }
func (p *FuturesPosition) Kind() PositionKind  { return KindFutures }
