package detector

// HardConstraints mirrors the original implementation's pre-entry gate:
// order-book depth at least double the intended position size on both
// legs, connector latency within budget, and a funding delta big enough to
// matter. Supplements spec §4.4's generic "depth_sufficient" with the
// concrete depth-vs-size relationship the original system actually checks.
type HardConstraints struct {
	OrderBookDepthSufficient  bool
	ExchangeLatencyOK         bool
	FundingDeltaSubstantial   bool
}

// Pass reports whether every hard constraint holds.
func (h HardConstraints) Pass() bool {
	return AllConditionsPass(
		boolToByte(h.OrderBookDepthSufficient),
		boolToByte(h.ExchangeLatencyOK),
		boolToByte(h.FundingDeltaSubstantial),
	) == 1
}

// CheckHardConstraints evaluates the gate for a candidate opportunity.
func CheckHardConstraints(depthLong, depthShort, positionSize float64, exchangeLatencyOK bool, fundingDelta float64) HardConstraints {
	return HardConstraints{
		OrderBookDepthSufficient: depthLong >= positionSize*2.0 && depthShort >= positionSize*2.0,
		ExchangeLatencyOK:        exchangeLatencyOK,
		FundingDeltaSubstantial:  AbsF64(fundingDelta) > 0.0001,
	}
}

const (
	oiHistoryCapacity   = 24
	vwapHistoryCapacity = 3600
	atrHistoryCapacity  = 14
)

// Confluence accumulates the bounded rolling histories (open interest,
// VWAP, ATR) used to compute the ArbitrageOpportunity confluence snapshot
// named but not formula-specified in spec §3. Grounded on
// original_source/strategy/confluence.rs's ConfluenceCalculator.
type Confluence struct {
	oiHistory   []float64
	vwapHistory []float64
	atrHistory  []float64
}

// NewConfluence returns an empty calculator.
func NewConfluence() *Confluence {
	return &Confluence{}
}

func pushBounded(history []float64, value float64, capacity int) []float64 {
	history = append(history, value)
	if len(history) > capacity {
		history = history[len(history)-capacity:]
	}
	return history
}

// UpdateOIHistory records an open-interest sample.
func (c *Confluence) UpdateOIHistory(oi float64) {
	c.oiHistory = pushBounded(c.oiHistory, oi, oiHistoryCapacity)
}

// UpdateVWAPHistory records a VWAP sample.
func (c *Confluence) UpdateVWAPHistory(vwap float64) {
	c.vwapHistory = pushBounded(c.vwapHistory, vwap, vwapHistoryCapacity)
}

// UpdateATRHistory records an ATR sample.
func (c *Confluence) UpdateATRHistory(atr float64) {
	c.atrHistory = pushBounded(c.atrHistory, atr, atrHistoryCapacity)
}

// CalculateOBI computes the order-book-imbalance ratio
// (bidVolume-askVolume)/(bidVolume+askVolume). Returns 0 if both sides are
// empty.
func CalculateOBI(bidVolume, askVolume float64) float64 {
	total := bidVolume + askVolume
	if total == 0 {
		return 0
	}
	return (bidVolume - askVolume) / total
}

// CalculateVWAPDeviation computes (price-vwap)/vwap. Returns 0 if vwap is
// zero.
func CalculateVWAPDeviation(price, vwap float64) float64 {
	if vwap == 0 {
		return 0
	}
	return (price - vwap) / vwap
}

// CalculateATR computes max(high-low, |high-prevClose|, |low-prevClose|).
func CalculateATR(high, low, prevClose float64) float64 {
	return MaxF64(high-low, MaxF64(AbsF64(high-prevClose), AbsF64(low-prevClose)))
}

// GetATRTrend compares the two most recent ATR samples: positive means
// expanding volatility, negative contracting, zero flat or insufficient
// history.
func (c *Confluence) GetATRTrend() float64 {
	n := len(c.atrHistory)
	if n < 2 {
		return 0
	}
	return c.atrHistory[n-1] - c.atrHistory[n-2]
}

// IdentifyLiquidationClusters returns the distance, as a percentage of the
// current price, to the nearest liquidation-price cluster. Returns 100.0
// (i.e. "far away") when prices is empty.
func IdentifyLiquidationClusters(prices []float64, currentPrice float64) float64 {
	if len(prices) == 0 || currentPrice == 0 {
		return 100.0
	}
	minDistance := AbsF64(prices[0]-currentPrice) / currentPrice * 100
	for _, p := range prices[1:] {
		d := AbsF64(p-currentPrice) / currentPrice * 100
		minDistance = MinF64(minDistance, d)
	}
	return minDistance
}
