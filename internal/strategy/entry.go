package strategy

import (
	"context"
	"fmt"
	"time"

	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/detector"
	"arbitrage-engine/internal/venues"
)

// legTimeout is the 500ms-per-leg budget of spec §4.7 steps 2-4.
const legTimeout = 500 * time.Millisecond

// harderLegFillThresholdPct and easierLegFillThresholdPct are the
// per-role paper-mode fill-simulation fractions supplemented from
// original_source/src/strategy/entry.rs (SPEC_FULL.md "Harder-leg
// fill-simulation split"), more specific than the generic 20% default
// carried by QueuePosition.FillThresholdPct for callers outside this path.
const (
	harderLegFillThresholdPct = 0.25
	easierLegFillThresholdPct = 0.30
)

// stopLossAdverseFraction is the ~30% adverse-move stop-loss reference of
// spec §4.9 step 4, expressed as a fraction of the entry spread.
const stopLossAdverseFraction = 0.30

// EntryExecutor drives the harder-leg-first atomic dual-leg entry protocol
// of spec §4.7, grounded on original_source/src/strategy/entry.rs for
// sequencing and on the corpus's channel-racing idiom for concurrent
// order placement (goroutine racing via channels, rollback-on-partial-failure).
type EntryExecutor struct {
	backend backend.ExecutionBackend
	sim     FillSimulator
}

// NewEntryExecutor wires an EntryExecutor against a backend and the fill
// simulator appropriate for that backend (PaperFillSimulator for
// backend.Paper, BackendFillSimulator for backend.Testnet/live).
func NewEntryExecutor(b backend.ExecutionBackend, sim FillSimulator) *EntryExecutor {
	return &EntryExecutor{backend: b, sim: sim}
}

// legRole names which side of the pair (long/short) carries which role
// (harder/easier) for one entry attempt.
type legRole struct {
	side   Side
	venue  string
	price  float64
	depth  float64
	pctFee float64
}

// ExecuteAtomicEntry places the harder leg first, then the easier leg, per
// spec §4.7. On success it returns an Active Trade with both legs Filled.
// If the harder leg fails it returns an error and nothing is open. If the
// easier leg fails it closes the filled harder leg and returns a Closed
// trade marked LegOut with a nil error.
func (e *EntryExecutor) ExecuteAtomicEntry(ctx context.Context, opp detector.Opportunity, sizeUSD float64) (*Trade, error) {
	long := legRole{side: SideLong, venue: opp.LongVenue, price: opp.LongPrice, depth: opp.LongDepth}
	short := legRole{side: SideShort, venue: opp.ShortVenue, price: opp.ShortPrice, depth: opp.ShortDepth}

	harder, easier := long, short
	if venues.IdentifyHarderLeg(opp.LongVenue, opp.ShortVenue) == "short" {
		harder, easier = short, long
	}

	harderOrder, err := e.placeLeg(ctx, opp.Symbol, harder, sizeUSD, harderLegFillThresholdPct)
	if err != nil {
		return nil, fmt.Errorf("strategy: harder leg order rejected: %w", err)
	}

	filled, fillPrice, err := e.waitForFill(ctx, harderOrder)
	if err != nil {
		return nil, fmt.Errorf("strategy: harder leg fill check failed: %w", err)
	}
	if !filled {
		_ = e.backend.CancelOrder(ctx, harder.venue, harderOrder.ID)
		return nil, fmt.Errorf("strategy: harder leg (%s) not filled within %s", harder.venue, legTimeout)
	}
	harderOrder.Status = OrderFilled
	harderOrder.FilledAt = time.Now()
	harderOrder.FillPrice = fillPrice

	easierOrder, err := e.placeLeg(ctx, opp.Symbol, easier, sizeUSD, easierLegFillThresholdPct)
	if err != nil {
		return e.legOutTrade(ctx, opp, sizeUSD, harder, harderOrder), nil
	}

	filled, fillPrice, err = e.waitForFill(ctx, easierOrder)
	if err != nil || !filled {
		return e.legOutTrade(ctx, opp, sizeUSD, harder, harderOrder), nil
	}
	easierOrder.Status = OrderFilled
	easierOrder.FilledAt = time.Now()
	easierOrder.FillPrice = fillPrice

	var longOrder, shortOrder *SimulatedOrder
	if harder.side == SideLong {
		longOrder, shortOrder = harderOrder, easierOrder
	} else {
		longOrder, shortOrder = easierOrder, harderOrder
	}

	stopLossLong, stopLossShort := calculateStopLossPrices(opp.LongPrice, opp.ShortPrice, opp.SpreadBps)

	trade := &Trade{
		ID:                 fmt.Sprintf("%s-%d", opp.Symbol, time.Now().UnixNano()),
		Symbol:             opp.Symbol,
		LongVenue:          opp.LongVenue,
		ShortVenue:         opp.ShortVenue,
		EntryTime:          time.Now(),
		EntryLongPrice:     longOrder.FillPrice,
		EntryShortPrice:    shortOrder.FillPrice,
		EntrySpreadBps:     opp.SpreadBps,
		PositionSizeUSD:    sizeUSD,
		EntryFundingDelta:  opp.FundingDelta,
		ProjectedProfitUSD: opp.ProjectedProfitUSD * sizeUSD,
		Status:             StatusActive,
		LongEntryOrder:     longOrder,
		ShortEntryOrder:    shortOrder,
		StopLossLongPrice:  stopLossLong,
		StopLossShortPrice: stopLossShort,
	}

	return trade, nil
}

func (e *EntryExecutor) placeLeg(ctx context.Context, symbol string, role legRole, sizeUSD, fillThresholdPct float64) (*SimulatedOrder, error) {
	if role.price <= 0 {
		return nil, fmt.Errorf("strategy: non-positive price for %s leg on %s", role.side, role.venue)
	}
	qty := sizeUSD / role.price

	orderSide := "buy"
	if role.side == SideShort {
		orderSide = "sell"
	}

	legCtx, cancel := context.WithTimeout(ctx, legTimeout)
	defer cancel()

	result, err := e.backend.PlaceOrder(legCtx, backend.OrderRequest{
		Venue:  role.venue,
		Symbol: symbol,
		Side:   orderSide,
		Type:   "limit",
		Price:  role.price,
		Size:   qty,
	})
	if err != nil {
		return nil, err
	}

	return &SimulatedOrder{
		ID:        result.OrderID,
		Venue:     role.venue,
		Symbol:    symbol,
		Side:      role.side,
		Type:      OrderTypeLimit,
		Price:     role.price,
		Size:      qty,
		CreatedAt: time.Now(),
		Status:    OrderPending,
		Queue: &QueuePosition{
			Price:               role.price,
			RestingDepthAtEntry: role.depth,
			FillThresholdPct:    fillThresholdPct,
		},
	}, nil
}

func (e *EntryExecutor) waitForFill(ctx context.Context, order *SimulatedOrder) (bool, float64, error) {
	waitCtx, cancel := context.WithTimeout(ctx, legTimeout)
	defer cancel()
	return e.sim.SimulateFill(waitCtx, order, legTimeout)
}

// legOutTrade builds the closed, hedged Trade record produced when the
// harder leg fills but the easier leg doesn't within its budget — spec
// §4.9 step 6's "leg-out detector": "if exactly one entry order shows
// Filled and the other hasn't after 500ms, record a LegOutEvent". Because
// this system's entry protocol is a synchronous sequential handshake
// (harder confirmed before easier is even attempted, rather than the two
// legs racing independently as in a live/async system), the 500ms window
// named in §4.9 step 6 is the same window already spent waiting on the
// easier leg in §4.7 step 4 — so detection and recording happen here
// rather than in a later, separate monitor pass (documented as a Design
// Decision).
func (e *EntryExecutor) legOutTrade(ctx context.Context, opp detector.Opportunity, sizeUSD float64, harder legRole, harderOrder *SimulatedOrder) *Trade {
	e.closeFilledLeg(ctx, opp.Symbol, harder, harderOrder)

	var longOrder, shortOrder *SimulatedOrder
	if harder.side == SideLong {
		longOrder = harderOrder
	} else {
		shortOrder = harderOrder
	}

	longPrice, shortPrice := 0.0, 0.0
	if longOrder != nil {
		longPrice = longOrder.FillPrice
	}
	if shortOrder != nil {
		shortPrice = shortOrder.FillPrice
	}

	return &Trade{
		ID:                fmt.Sprintf("%s-%d", opp.Symbol, time.Now().UnixNano()),
		Symbol:            opp.Symbol,
		LongVenue:         opp.LongVenue,
		ShortVenue:        opp.ShortVenue,
		EntryTime:         time.Now(),
		EntryLongPrice:    longPrice,
		EntryShortPrice:   shortPrice,
		EntrySpreadBps:    opp.SpreadBps,
		PositionSizeUSD:   sizeUSD,
		EntryFundingDelta: opp.FundingDelta,
		Status:            StatusClosed,
		ExitReason:        "leg-out: easier leg unfilled within budget",
		LongEntryOrder:    longOrder,
		ShortEntryOrder:   shortOrder,
		LegOut: &LegOutEvent{
			FilledLeg:     harder.side,
			UnfilledLeg:   oppositeSide(harder.side),
			HedgeExecuted: true,
			HedgePrice:    harderOrder.Price,
			DetectedAt:    time.Now(),
		},
	}
}

func oppositeSide(s Side) Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// closeFilledLeg unwinds a filled leg by placing the opposite-side market
// order for its quantity — the "close the filled harder-leg position
// through the hedging path" fallback named in spec §4.7 step 6.
func (e *EntryExecutor) closeFilledLeg(ctx context.Context, symbol string, role legRole, order *SimulatedOrder) {
	if order.Status != OrderFilled || order.Size <= 0 {
		return
	}
	closeSide := "sell"
	if role.side == SideShort {
		closeSide = "buy"
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), legTimeout)
	defer cancel()
	_, _ = e.backend.PlaceMarketOrder(closeCtx, backend.OrderRequest{
		Venue:  role.venue,
		Symbol: symbol,
		Side:   closeSide,
		Type:   "market",
		Size:   order.Size,
	})
}

// calculateStopLossPrices derives the ~30%-adverse-move stop-loss
// reference prices of spec §4.9 step 4 from the entry spread.
func calculateStopLossPrices(longPrice, shortPrice, spreadBps float64) (stopLossLong, stopLossShort float64) {
	adverseFraction := stopLossAdverseFraction * spreadBps / 10000
	stopLossLong = longPrice * (1 - adverseFraction)
	stopLossShort = shortPrice * (1 + adverseFraction)
	return stopLossLong, stopLossShort
}
