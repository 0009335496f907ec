package detector

import (
	"sort"
	"strings"
	"sync"

	"arbitrage-engine/internal/marketdata"
	"arbitrage-engine/internal/pipeline"
	"arbitrage-engine/internal/venues"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DrainBatch is B in spec §4.3 step 1.
const DrainBatch = 64

// Thresholds are the detector's configurable validation thresholds
// (spec §4.3 step 3, §4.4).
type Thresholds struct {
	SpreadBps    float64
	FundingDelta float64
	Depth        float64
	SpreadCapBps float64
	FundingCap   float64

	// PositionSizeUSD is the intended per-leg notional CheckHardConstraints
	// measures book depth against (depth must cover 2x this size on both
	// legs). This is the strategy's configured trade size, not a function
	// of the depth being measured — using the observed depth itself here
	// would make the depth-sufficiency constraint vacuous.
	PositionSizeUSD float64
}

// DefaultThresholds mirrors the values used throughout spec §8's worked
// scenarios.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpreadBps:       10,
		FundingDelta:    0.0001,
		Depth:           1000,
		SpreadCapBps:    100,
		FundingCap:      0.02,
		PositionSizeUSD: 1000,
	}
}

// CandidatePair is a (longVenue, shortVenue) combination to scan for a
// given symbol whenever either side's quote updates.
type CandidatePair struct {
	LongVenue  string
	ShortVenue string
}

// DepthFunc resolves the top-of-book depth available at venue for symbol.
type DepthFunc func(venue, symbol string) float64

// FundingFunc resolves the funding-rate delta (long - short) for a
// candidate pair at a symbol.
type FundingFunc func(symbol, longVenue, shortVenue string) float64

// Detector runs the single-threaded scan loop of spec §4.3. It owns no
// goroutine itself: DrainOnce is called from the thread the caller has pinned
// (see internal/affinity).
type Detector struct {
	symbols *marketdata.SymbolMap
	store   *marketdata.Store

	in  *pipeline.Ring[marketdata.Update]
	out *pipeline.Ring[Opportunity]

	thresholds Thresholds

	mu         sync.RWMutex
	candidates map[string][]CandidatePair // symbol -> candidate venue pairs

	depth   DepthFunc
	funding FundingFunc

	metrics *Metrics
}

// Metrics are the prometheus counters/histograms the detector publishes,
// following the corpus's promauto idiom for process-wide collectors.
type Metrics struct {
	UpdatesProcessed  prometheus.Counter
	OpportunitiesEmitted prometheus.Counter
	ScanLatency       prometheus.Histogram
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics returns the process-wide detector metrics, registering the
// underlying prometheus collectors exactly once regardless of how many
// times it is called (multiple Detector instances in the same process —
// or in the same test binary — share one registration).
func NewMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = &Metrics{
			UpdatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "arbitrage",
				Subsystem: "detector",
				Name:      "updates_processed_total",
				Help:      "Market updates drained from the pipeline.",
			}),
			OpportunitiesEmitted: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "arbitrage",
				Subsystem: "detector",
				Name:      "opportunities_emitted_total",
				Help:      "Validated opportunities pushed to the opportunity queue.",
			}),
			ScanLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "arbitrage",
				Subsystem: "detector",
				Name:      "scan_latency_seconds",
				Help:      "Time to scan a single updated symbol's candidate pairs.",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 16),
			}),
		}
	})
	return defaultMetrics
}

// NewDetector wires a detector over the given symbol table, store, and
// in/out queues.
func NewDetector(symbols *marketdata.SymbolMap, store *marketdata.Store, in *pipeline.Ring[marketdata.Update], out *pipeline.Ring[Opportunity], thr Thresholds, depth DepthFunc, funding FundingFunc, metrics *Metrics) *Detector {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Detector{
		symbols:    symbols,
		store:      store,
		in:         in,
		out:        out,
		thresholds: thr,
		candidates: make(map[string][]CandidatePair),
		depth:      depth,
		funding:    funding,
		metrics:    metrics,
	}
}

// SetCandidates registers the venue pairs to scan whenever symbol updates.
func (d *Detector) SetCandidates(symbol string, pairs []CandidatePair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidates[strings.ToUpper(symbol)] = pairs
}

// DrainOnce performs one pass of spec §4.3: drain up to DrainBatch updates,
// apply each to the store, and scan every updated symbol's candidate
// pairs. Returns the number of updates processed.
func (d *Detector) DrainOnce() int {
	updates := d.in.PopBatch(DrainBatch)
	touched := make(map[marketdata.SymbolId]bool, len(updates))

	for _, u := range updates {
		if d.store.Apply(u) {
			touched[u.SymbolId] = true
		}
		d.metrics.UpdatesProcessed.Inc()
	}

	// Deterministic scan order: sort touched ids so that, combined with
	// the venue-alphabetic tie-break inside scanSymbol, emission order is
	// fully deterministic (spec §4.3 "Ordering guarantee").
	ids := make([]marketdata.SymbolId, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		d.scanSymbol(id)
	}

	return len(updates)
}

func (d *Detector) scanSymbol(id marketdata.SymbolId) {
	key, ok := d.symbols.Key(id)
	if !ok {
		return
	}

	d.mu.RLock()
	pairs := d.candidates[strings.ToUpper(key.Symbol)]
	d.mu.RUnlock()

	if len(pairs) == 0 {
		return
	}

	// Deterministic venue-alphabetic tie-break among pairs validated on
	// the same update (spec §4.3 "Ties... emitted in deterministic
	// venue-alphabetic order").
	sorted := make([]CandidatePair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LongVenue != sorted[j].LongVenue {
			return sorted[i].LongVenue < sorted[j].LongVenue
		}
		return sorted[i].ShortVenue < sorted[j].ShortVenue
	})

	for _, pair := range sorted {
		d.evaluatePair(key.Symbol, pair)
	}
}

func (d *Detector) evaluatePair(symbol string, pair CandidatePair) {
	longId, ok := d.symbols.Lookup(pair.LongVenue, symbol)
	if !ok {
		return
	}
	shortId, ok := d.symbols.Lookup(pair.ShortVenue, symbol)
	if !ok {
		return
	}

	longAsk, ok := d.store.Ask(longId)
	if !ok || longAsk <= 0 {
		return
	}
	shortBid, ok := d.store.Bid(shortId)
	if !ok || shortBid <= 0 {
		return
	}

	spreadBps := CalculateSpreadBps(longAsk, shortBid)

	var longDepth, shortDepth float64
	if d.depth != nil {
		longDepth = d.depth(pair.LongVenue, symbol)
		shortDepth = d.depth(pair.ShortVenue, symbol)
	}

	var fundingDelta float64
	if d.funding != nil {
		fundingDelta = d.funding(symbol, pair.LongVenue, pair.ShortVenue)
	}

	minDepth := MinF64(longDepth, shortDepth)

	if !IsValidOpportunity(spreadBps, d.thresholds.SpreadBps, fundingDelta, d.thresholds.FundingDelta, minDepth, d.thresholds.Depth) {
		return
	}

	hard := CheckHardConstraints(longDepth, shortDepth, d.thresholds.PositionSizeUSD, true, fundingDelta)
	confidence := ConfidenceScore(spreadBps, d.thresholds.SpreadCapBps, fundingDelta, d.thresholds.FundingCap, hard.Pass())

	longFee := venues.TakerFeeBps(pair.LongVenue)
	shortFee := venues.TakerFeeBps(pair.ShortVenue)
	netSpreadBps := spreadBps - longFee - shortFee

	opp := Opportunity{
		Symbol:       symbol,
		SymbolId:     longId,
		LongVenue:    pair.LongVenue,
		ShortVenue:   pair.ShortVenue,
		LongPrice:    longAsk,
		ShortPrice:   shortBid,
		SpreadBps:    spreadBps,
		FundingDelta: fundingDelta,
		ConfidenceScore: confidence,
		LongDepth:    longDepth,
		ShortDepth:   shortDepth,
		Confluence: ConfluenceSnapshot{
			HardConstraints: hard,
		},
	}
	if netSpreadBps > 0 {
		opp.ProjectedProfitUSD = netSpreadBps / 10000
	}

	d.out.Push(opp)
	d.metrics.OpportunitiesEmitted.Inc()
}
