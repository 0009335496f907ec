package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"arbitrage-engine/internal/affinity"
	"arbitrage-engine/internal/backend"
	"arbitrage-engine/internal/bridge"
	"arbitrage-engine/internal/config"
	"arbitrage-engine/internal/detector"
	"arbitrage-engine/internal/exchange"
	"arbitrage-engine/internal/marketdata"
	"arbitrage-engine/internal/pipeline"
	"arbitrage-engine/internal/portfolio"
	"arbitrage-engine/internal/strategy"
	"arbitrage-engine/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// marketUpdateQueueCapacity and opportunityQueueCapacity size the SPSC
// rings between venue ingestion, the detector, and the strategy runner.
// Rounded up to a power of two by pipeline.NewRing regardless.
const (
	marketUpdateQueueCapacity = 16384
	opportunityQueueCapacity  = 16384
	orderBookDepthLevels      = 10
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newOpsRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := newRedisClient(ctx, cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	engine := newTradingEngine(ctx, cfg, logger, redisClient)
	go engine.run(ctx)

	go func() {
		logger.Info("starting ops server", zap.String("addr", httpServer.Addr))
		var serveErr error
		if cfg.Server.UseHTTPS {
			serveErr = httpServer.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatal("ops server failed", utils.Err(serveErr))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel() // stops the trading engine's goroutines
	engine.closeVenues()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server forced to shutdown", utils.Err(err))
	}

	<-engine.stopped()
	logger.Info("shutdown complete")
}

// newOpsRouter is the process's only HTTP surface: liveness and the
// prometheus scrape endpoint. The dashboard/control-plane CRUD API the
// teacher served alongside it is out of scope here (no pair/order
// database, no operator UI); grounded on the teacher's own
// internal/api/routes.go, which registers GET /metrics via
// promhttp.Handler() next to its CRUD routes — kept here as the one
// route that still applies once the CRUD surface is gone.
func newOpsRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// tradingEngine bundles the market-data ingestion, detection, strategy
// execution, and Redis-mirroring pipeline that runs alongside the
// ops HTTP server (newOpsRouter). Grounded on the commented-out bot-engine wiring point
// left in this file's original main() and on this module's own
// one-goroutine-per-concern layout (internal/strategy/runner.go); the
// detect/execute/mirror split itself follows original_source/src/main.rs's
// spawned detector, strategy, and redis_bridge tasks.
type tradingEngine struct {
	logger *utils.Logger

	symbols *marketdata.SymbolMap
	store   *marketdata.Store

	updates       *pipeline.Ring[marketdata.Update]
	opportunities *pipeline.Ring[detector.Opportunity]

	det    *detector.Detector
	runner *strategy.Runner
	redis  *bridge.Bridge

	venueConns map[string]exchange.Exchange

	assignment affinity.Assignment
	done       chan struct{}
}

func newTradingEngine(ctx context.Context, cfg *config.Config, logger *utils.Logger, redisClient *redis.Client) *tradingEngine {
	symbols := marketdata.NewSymbolMap()
	store := marketdata.NewStore()

	venueConns := connectVenues(cfg, logger)

	var execBackend backend.ExecutionBackend
	if len(venueConns) > 0 {
		execBackend = backend.NewTestnet(venueConns)
	} else {
		logger.Warn("no venue connectors configured; falling back to the paper backend")
		execBackend = backend.NewPaper(map[string]float64{"paper": cfg.Strategy.StartingCapital})
	}

	portfolioMgr, err := portfolio.NewManager(ctx, redisClient, cfg.Strategy.StartingCapital)
	if err != nil {
		logger.Fatal("failed to initialize portfolio manager", utils.Err(err))
	}

	fundingFunc := newFundingFunc(cfg)
	depthFunc := newDepthFunc(execBackend)

	updates := pipeline.NewRing[marketdata.Update](marketUpdateQueueCapacity)
	opportunities := pipeline.NewRing[detector.Opportunity](opportunityQueueCapacity)

	thresholds := detector.DefaultThresholds()
	thresholds.PositionSizeUSD = cfg.Strategy.EstimatedPositionSize
	det := detector.NewDetector(symbols, store, updates, opportunities, thresholds, depthFunc, fundingFunc, nil)

	venueNames := make([]string, 0, len(venueConns))
	for name := range venueConns {
		venueNames = append(venueNames, name)
	}
	if cfg.Strategy.SingleExchangeMode {
		venueNames = []string{cfg.Strategy.PrimaryExchange, cfg.Strategy.PrimaryExchange + "-synthetic"}
	}
	for _, symbol := range cfg.Strategy.SymbolsToTrade {
		det.SetCandidates(symbol, candidatePairs(venueNames))
		for _, venue := range venueNames {
			if _, err := symbols.GetOrInsert(venue, symbol); err != nil {
				logger.Warn("symbol table full", zap.String("venue", venue), zap.String("symbol", symbol), utils.Err(err))
			}
		}
	}

	fillSim := strategy.NewBackendFillSimulator(execBackend)
	entry := strategy.NewEntryExecutor(execBackend, fillSim)
	depthChecker := strategy.NewDepthChecker(execBackend)
	monitor := strategy.NewMonitor(symbols, store, fundingFunc)
	finalizer := strategy.NewExitFinalizer(execBackend, depthChecker, portfolioMgr)

	runner := strategy.NewRunner(strategy.RunnerConfig{
		Symbols:             symbols,
		Store:               store,
		Opportunities:       opportunities,
		Entry:               entry,
		Monitor:             monitor,
		Finalizer:           finalizer,
		Portfolio:           portfolioMgr,
		MaxConcurrentTrades: cfg.Strategy.MaxConcurrentTrades,
	})

	redisBridge := bridge.NewBridge(redisClient, config.RedisQueueCapacity, config.RedisFlushMaxItems, config.RedisFlushInterval)

	e := &tradingEngine{
		logger:        logger,
		symbols:       symbols,
		store:         store,
		updates:       updates,
		opportunities: opportunities,
		det:           det,
		runner:        runner,
		redis:         redisBridge,
		venueConns:    venueConns,
		assignment:    affinity.DefaultAssignment(),
		done:          make(chan struct{}),
	}

	subscribeVenues(venueConns, symbols, updates, redisBridge, logger)

	return e
}

// run drives the detector's drain loop until ctx is cancelled, alongside
// the strategy runner's own goroutines and the Redis mirroring bridge.
// Pinned to the strategy core when the host supports it (internal/affinity
// is a no-op off Linux).
func (e *tradingEngine) run(ctx context.Context) {
	defer close(e.done)

	go func() {
		if err := e.runner.Run(ctx); err != nil && err != context.Canceled {
			e.logger.Warn("strategy runner stopped", utils.Err(err))
		}
	}()
	go e.redis.Run(ctx)

	if err := affinity.PinStrategyThread(e.assignment); err != nil {
		e.logger.Debug("thread pinning unavailable", utils.Err(err))
	}

	for {
		select {
		case <-ctx.Done():
			<-e.redis.Done()
			return
		default:
		}
		if n := e.det.DrainOnce(); n == 0 {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

func (e *tradingEngine) stopped() <-chan struct{} { return e.done }

func (e *tradingEngine) closeVenues() {
	for name, conn := range e.venueConns {
		if err := conn.Close(); err != nil {
			e.logger.Warn("error closing venue connection", zap.String("venue", name), utils.Err(err))
		}
	}
}

// connectVenues instantiates and authenticates one connector per
// configured-and-supported venue. Venues present in cfg.Venues.Credentials
// without a connector in internal/exchange's factory (e.g. Binance,
// Kucoin, Hyperliquid, Paradex — priced into internal/venues' fee table
// but not yet given a REST/WS connector) are skipped with a warning
// rather than failing startup.
func connectVenues(cfg *config.Config, logger *utils.Logger) map[string]exchange.Exchange {
	conns := make(map[string]exchange.Exchange)

	names := make([]string, 0, len(cfg.Venues.Credentials))
	if cfg.Strategy.SingleExchangeMode {
		names = append(names, cfg.Strategy.PrimaryExchange)
	} else {
		for name := range cfg.Venues.Credentials {
			names = append(names, name)
		}
	}

	for _, name := range names {
		name = strings.ToLower(name)
		if !exchange.IsSupported(name) {
			logger.Warn("venue has credentials but no connector implementation; skipping", zap.String("venue", name))
			continue
		}
		conn, err := exchange.NewExchange(name)
		if err != nil {
			logger.Warn("failed to construct venue connector", zap.String("venue", name), utils.Err(err))
			continue
		}
		creds := cfg.Venues.Credentials[name]
		if err := conn.Connect(creds.APIKey, creds.APISecret, creds.Passphrase); err != nil {
			logger.Warn("failed to connect venue", zap.String("venue", name), utils.Err(err))
			continue
		}
		conns[name] = conn
	}

	return conns
}

// subscribeVenues fans every connector's ticker stream into the shared
// market-update ring and mirrors each tick to the Redis bridge under the
// "<venue>:ticker:quote:<symbol>" key scheme. One SubscribeTicker callback
// per (venue, symbol); callbacks run on the connector's own read-loop
// goroutine, matching the teacher's bot/engine.go PriceUpdate callback
// wiring.
func subscribeVenues(conns map[string]exchange.Exchange, symbols *marketdata.SymbolMap, updates *pipeline.Ring[marketdata.Update], redisBridge *bridge.Bridge, logger *utils.Logger) {
	var wg sync.WaitGroup
	for venue, conn := range conns {
		venue, conn := venue, conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id, key := range snapshotSymbols(symbols) {
				if key.Venue != venue {
					continue
				}
				symbol := key.Symbol
				symbolID := id
				err := conn.SubscribeTicker(symbol, func(t *exchange.Ticker) {
					if t.BidPrice <= 0 || t.AskPrice <= 0 {
						return
					}
					updates.Push(marketdata.Update{
						SymbolId:    symbolID,
						Bid:         t.BidPrice,
						Ask:         t.AskPrice,
						TimestampUs: uint64(t.Timestamp.UnixMicro()),
					})
					redisBridge.Push(
						bridge.Key(venue, "ticker", "quote", symbol),
						strconv.FormatFloat(t.BidPrice, 'f', -1, 64)+","+strconv.FormatFloat(t.AskPrice, 'f', -1, 64),
					)
				})
				if err != nil {
					logger.Warn("ticker subscription failed", zap.String("venue", venue), zap.String("symbol", symbol), utils.Err(err))
				}
			}
		}()
	}
	wg.Wait()
}

func snapshotSymbols(symbols *marketdata.SymbolMap) map[marketdata.SymbolId]marketdata.SymbolKey {
	out := make(map[marketdata.SymbolId]marketdata.SymbolKey, symbols.Len())
	for i := 0; i < symbols.Len(); i++ {
		id := marketdata.SymbolId(i)
		if key, ok := symbols.Key(id); ok {
			out[id] = key
		}
	}
	return out
}

// candidatePairs builds every ordered (long, short) venue combination for
// a symbol, matching the detector's candidate-pair scan contract.
func candidatePairs(venues []string) []detector.CandidatePair {
	pairs := make([]detector.CandidatePair, 0, len(venues)*(len(venues)-1))
	for _, long := range venues {
		for _, short := range venues {
			if long == short {
				continue
			}
			pairs = append(pairs, detector.CandidatePair{LongVenue: long, ShortVenue: short})
		}
	}
	return pairs
}

// newFundingFunc resolves the funding-rate delta the detector and monitor
// use to validate/exit opportunities. Venue connectors don't expose a
// funding-rate endpoint (internal/exchange.Exchange has no GetFundingRate
// method), so live mode currently has no real funding signal; single-
// exchange synthetic mode uses the configured synthetic delta, matching
// spec §4.3's synthetic-spread backtesting path.
func newFundingFunc(cfg *config.Config) detector.FundingFunc {
	if cfg.Strategy.SingleExchangeMode {
		delta := cfg.Strategy.SyntheticFundingDelta
		return func(symbol, longVenue, shortVenue string) float64 { return delta }
	}
	return func(symbol, longVenue, shortVenue string) float64 { return 0 }
}

// newDepthFunc resolves top-of-book depth via the execution backend's
// cached order-book snapshot (spec §4.11's GetOrderBookDepth).
func newDepthFunc(execBackend backend.ExecutionBackend) detector.DepthFunc {
	return func(venue, symbol string) float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		depth, err := execBackend.GetOrderBookDepth(ctx, venue, symbol, orderBookDepthLevels)
		if err != nil || depth == nil {
			return 0
		}
		var total float64
		for _, lvl := range depth.Bids {
			total += lvl.Qty * lvl.Price
		}
		for _, lvl := range depth.Asks {
			total += lvl.Qty * lvl.Price
		}
		return total
	}
}

func newRedisClient(ctx context.Context, url string, logger *utils.Logger) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis URL; portfolio/bridge mirroring disabled", utils.Err(err))
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; portfolio/bridge mirroring disabled", utils.Err(err))
		client.Close()
		return nil
	}
	return client
}
