package strategy

import "time"

// Status is a PaperTrade's lifecycle state (spec §3, §4.9, §4.10).
type Status string

const (
	StatusActive  Status = "Active"
	StatusExiting Status = "Exiting"
	StatusClosed  Status = "Closed"
)

// Side of a leg.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// OrderType of a SimulatedOrder.
type OrderType string

const (
	OrderTypeLimit  OrderType = "Limit"
	OrderTypeMarket OrderType = "Market"
)

// OrderStatus of a SimulatedOrder.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderFilled    OrderStatus = "Filled"
	OrderCancelled OrderStatus = "Cancelled"
)

// QueuePosition is the fill-simulation snapshot taken when a paper-mode
// limit order is placed (spec §3 SimulatedOrder, §4.7).
type QueuePosition struct {
	Price                  float64
	CumulativeVolumeAtPrice float64
	RestingDepthAtEntry    float64
	FillThresholdPct       float64 // default 0.20 per spec §4.7
	IsFilled               bool
}

// SimulatedOrder is the backend-agnostic order descriptor of spec §3.
type SimulatedOrder struct {
	ID        string
	Venue     string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     float64
	Size      float64
	Queue     *QueuePosition
	CreatedAt time.Time
	FilledAt  time.Time
	FillPrice float64
	Status    OrderStatus
}

// LegOutEvent records a one-sided fill discovered by the monitor (spec
// §4.9 step 6).
type LegOutEvent struct {
	FilledLeg     Side
	UnfilledLeg   Side
	HedgeExecuted bool
	HedgePrice    float64
	DetectedAt    time.Time
}

// Trade is the spec §3 PaperTrade: the per-active-position record owned
// by the Runner in a mutex-guarded map keyed by symbol (not by trade id),
// so the entry placeholder and the real trade share one slot per symbol.
type Trade struct {
	ID         string
	Symbol     string
	LongVenue  string
	ShortVenue string

	EntryTime        time.Time
	EntryLongPrice   float64
	EntryShortPrice  float64
	EntrySpreadBps   float64
	PositionSizeUSD  float64
	EntryFundingDelta float64

	ProjectedProfitUSD float64
	ActualProfitUSD    float64

	Status     Status
	ExitReason string
	ExitSpread float64

	LongEntryOrder  *SimulatedOrder
	ShortEntryOrder *SimulatedOrder
	LongExitOrder   *SimulatedOrder
	ShortExitOrder  *SimulatedOrder

	StopLossLongPrice  float64
	StopLossShortPrice float64
	StopLossFired      bool

	LegOut *LegOutEvent
}

// IsOpen reports whether the trade currently reserves its symbol against
// duplicate entries (spec §3 invariant: at most one Active or Exiting
// trade per symbol).
func (t *Trade) IsOpen() bool {
	return t.Status == StatusActive || t.Status == StatusExiting
}

// EntrySpreadFeesBps is the sum of the two venues' taker fees, used by
// realized-P&L and re-check calculations.
func EntrySpreadFeesBps(longFeeBps, shortFeeBps float64) float64 {
	return longFeeBps + shortFeeBps
}
