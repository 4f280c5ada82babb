package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cascadeBot/config"
	"cascadeBot/internal/domain"
	"cascadeBot/internal/lifecycle"
	"cascadeBot/internal/portfolio"
	"cascadeBot/internal/ports"
	"cascadeBot/internal/signalgen"
	"cascadeBot/internal/volatility"
)

const (
	maxKlineCacheSize = 500 // Limit cache size to avoid memory issues
	wsShutdownTimeout = 5 * time.Second
)

// TrackingService orchestrates the multi-symbol position tracker: it streams
// candles, advances open positions through the TP/SL ladder, and admits new
// entries through the portfolio risk manager.
type TrackingService struct {
	cfg        *config.Config
	logger     ports.Logger
	market     ports.MarketDataClient
	posRepo    ports.PositionRepository
	tradeRepo  ports.TradeRepository
	presets    ports.PresetStore
	generator  *signalgen.Generator
	manager    *portfolio.Manager
	classifier *volatility.Classifier

	// State fields
	mu        sync.Mutex // Protects access to state fields below
	positions map[string]*domain.Position // open position per symbol
	notionals map[string]float64          // entry notional per open position
	caches    map[string][]*domain.Kline  // kline cache per symbol_interval
	balance   float64
}

// NewTrackingService creates a new application service instance.
func NewTrackingService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketDataClient,
	posRepo ports.PositionRepository,
	tradeRepo ports.TradeRepository,
	presets ports.PresetStore,
	generator *signalgen.Generator,
	manager *portfolio.Manager,
) (*TrackingService, error) {
	if cfg == nil || logger == nil || market == nil || posRepo == nil || tradeRepo == nil || presets == nil || generator == nil || manager == nil {
		return nil, fmt.Errorf("missing required dependencies for TrackingService")
	}
	if len(cfg.Symbols) == 0 || len(cfg.Intervals) == 0 {
		return nil, fmt.Errorf("configuration must name at least one symbol and interval")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("configuration InitialBalance must be positive")
	}

	return &TrackingService{
		cfg:        cfg,
		logger:     logger,
		market:     market,
		posRepo:    posRepo,
		tradeRepo:  tradeRepo,
		presets:    presets,
		generator:  generator,
		manager:    manager,
		classifier: volatility.NewClassifier(0, 0),
		positions:  make(map[string]*domain.Position),
		notionals:  make(map[string]float64),
		caches:     make(map[string][]*domain.Kline),
		balance:    cfg.InitialBalance,
	}, nil
}

// Start begins the tracking service's main loop. It blocks until the context
// is cancelled, a shutdown signal arrives, or the streams fail permanently.
func (s *TrackingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Tracking Service...", map[string]interface{}{
		"symbols":   s.cfg.Symbols,
		"intervals": s.cfg.Intervals,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	// --- Initialization Steps ---
	if err := s.market.Ping(ctx); err != nil {
		s.logger.Error(ctx, err, "Exchange connectivity check failed")
		return fmt.Errorf("exchange ping failed: %w", err)
	}
	serverTime, err := s.market.GetServerTime(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read exchange server time")
		return fmt.Errorf("failed to read server time: %w", err)
	}
	drift := time.Since(serverTime)
	s.logger.Info(ctx, "Exchange reachable", map[string]interface{}{"serverTime": serverTime, "clockDrift": drift.String()})

	if err := s.recoverPositions(ctx); err != nil {
		return err
	}
	if err := s.seedCaches(ctx); err != nil {
		return err
	}

	// --- Start WebSocket Streams ---
	type stream struct {
		symbol, interval string
		doneCh           chan struct{}
		stopCh           chan struct{}
	}
	var streams []stream
	streamDown := make(chan string, len(s.cfg.Symbols)*len(s.cfg.Intervals))

	for _, symbol := range s.cfg.Symbols {
		for _, interval := range s.cfg.Intervals {
			doneCh, stopCh, err := s.market.StreamKlines(ctx, symbol, interval, s.handleKlineEvent, s.handleWsError)
			if err != nil {
				s.logger.Error(ctx, err, "Failed to start kline stream", map[string]interface{}{"symbol": symbol, "interval": interval})
				cancel()
				return fmt.Errorf("failed to start kline stream %s/%s: %w", symbol, interval, err)
			}
			streams = append(streams, stream{symbol: symbol, interval: interval, doneCh: doneCh, stopCh: stopCh})
			key := cacheKey(symbol, interval)
			go func(doneCh chan struct{}) {
				<-doneCh
				select {
				case streamDown <- key:
				default:
				}
			}(doneCh)
		}
	}
	s.logger.Info(ctx, "Kline streams started", map[string]interface{}{"count": len(streams)})

	// --- Main Loop ---
	// All work happens in handleKlineEvent; wait for cancellation or a stream
	// that gave up reconnecting.
	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Context cancelled, initiating shutdown...")
	case key := <-streamDown:
		runErr = fmt.Errorf("kline stream %s stopped after exhausting reconnect attempts", key)
		s.logger.Error(ctx, runErr, "Stream failure, shutting down")
		cancel()
	}

	for _, st := range streams {
		select {
		case st.stopCh <- struct{}{}:
		default:
		}
	}
	deadline := time.After(wsShutdownTimeout)
	for _, st := range streams {
		select {
		case <-st.doneCh:
		case <-deadline:
			s.logger.Warn(ctx, "Timeout waiting for kline streams to shut down")
			deadline = closedTimer()
		}
	}

	s.logger.Info(ctx, "Tracking Service stopped.")
	return runErr
}

// recoverPositions rebuilds the in-memory open-position map after a restart.
func (s *TrackingService) recoverPositions(ctx context.Context) error {
	open, err := s.posRepo.FindOpen(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load open positions")
		return fmt.Errorf("failed to query open positions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pos := range open {
		s.positions[pos.Symbol] = pos
		s.notionals[pos.Symbol] = pos.EntryPrice * pos.Quantity
		s.logger.Info(ctx, "Recovered open position", map[string]interface{}{
			"positionID": pos.ID,
			"symbol":     pos.Symbol,
			"side":       pos.Side,
			"entryPrice": pos.EntryPrice,
			"currentSL":  pos.CurrentSL,
			"tpHits":     pos.HitCount(),
			"remaining":  pos.RemainingPct,
		})
	}
	s.logger.Info(ctx, "Position recovery complete", map[string]interface{}{"open": len(open)})
	return nil
}

// seedCaches preloads kline history for every tracked stream so regime
// classification and the breakout channel have data from the first event.
func (s *TrackingService) seedCaches(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, symbol := range s.cfg.Symbols {
		for _, interval := range s.cfg.Intervals {
			klines, err := s.market.GetKlines(ctx, symbol, interval, maxKlineCacheSize)
			if err != nil {
				s.logger.Error(ctx, err, "Failed to load initial klines", map[string]interface{}{"symbol": symbol, "interval": interval})
				return fmt.Errorf("failed to load initial klines for %s/%s: %w", symbol, interval, err)
			}
			s.caches[cacheKey(symbol, interval)] = klines
			// The correlation window observes the primary interval only.
			if interval == s.cfg.Intervals[0] {
				closes := make([]float64, len(klines))
				for i, k := range klines {
					closes[i] = k.Close
				}
				s.manager.Tracker().ObserveSeries(symbol, closes)
			}
		}
	}
	s.logger.Info(ctx, "Kline caches seeded", map[string]interface{}{"streams": len(s.caches)})
	return nil
}

// handleKlineEvent processes one candle from a stream. It advances any open
// position for the symbol first, then evaluates new entries.
func (s *TrackingService) handleKlineEvent(kline *domain.Kline) {
	ctx := context.Background()

	// Only process final klines to avoid acting on incomplete data
	if !kline.IsFinal {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey(kline.Symbol, kline.Interval)
	cache := append(s.caches[key], kline)
	if len(cache) > maxKlineCacheSize {
		cache = cache[len(cache)-maxKlineCacheSize:]
	}
	s.caches[key] = cache

	if kline.Interval == s.cfg.Intervals[0] {
		s.manager.Tracker().Observe(kline.Symbol, kline.Close)
	}

	// --- Advance the open position, if any ---
	if pos, ok := s.positions[kline.Symbol]; ok {
		s.advancePosition(ctx, pos, kline)
		if _, stillOpen := s.positions[kline.Symbol]; stillOpen {
			return // One position per symbol; no entry while it is open.
		}
	}

	// --- Check Entry Conditions ---
	s.evaluateEntry(ctx, kline, cache)
}

// advancePosition runs the lifecycle engine on one bar and persists the
// resulting state. Caller holds s.mu.
func (s *TrackingService) advancePosition(ctx context.Context, pos *domain.Position, bar *domain.Kline) {
	events, err := lifecycle.Advance(pos, bar)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to advance position", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
		return
	}
	if len(events) == 0 {
		if err := s.posRepo.Update(ctx, pos); err != nil {
			s.logger.Error(ctx, err, "Failed to persist position bar update", map[string]interface{}{"positionID": pos.ID})
		}
		return
	}

	for _, ev := range events {
		switch ev.Type {
		case lifecycle.EventTPHit, lifecycle.EventGapFill:
			s.logger.Info(ctx, "Take-profit level consumed", map[string]interface{}{
				"positionID": pos.ID,
				"symbol":     pos.Symbol,
				"level":      ev.Level,
				"price":      ev.Price,
				"sizePct":    ev.SizePct,
				"gapFill":    ev.Type == lifecycle.EventGapFill,
			})
		case lifecycle.EventSLMoved:
			s.logger.Info(ctx, "Stop ratcheted", map[string]interface{}{
				"positionID": pos.ID,
				"symbol":     pos.Symbol,
				"newStop":    ev.Price,
			})
		case lifecycle.EventClosed:
			s.logger.Info(ctx, "Position closed", map[string]interface{}{
				"positionID": pos.ID,
				"symbol":     pos.Symbol,
				"reason":     ev.Reason,
				"exitPrice":  ev.Price,
				"pnlPct":     pos.RealizedPnL,
			})
		}
	}

	if err := s.posRepo.Update(ctx, pos); err != nil {
		s.logger.Error(ctx, err, "Failed to persist position update", map[string]interface{}{"positionID": pos.ID})
	}

	if closed := closedEvent(events); closed != nil {
		s.finalizeTrade(ctx, pos, bar.Interval, closed)
	}
}

// finalizeTrade books a closed position into the trade ledger and frees its
// portfolio slot. Caller holds s.mu.
func (s *TrackingService) finalizeTrade(ctx context.Context, pos *domain.Position, interval string, closed *lifecycle.Event) {
	notional := s.notionals[pos.Symbol]
	trade := tradeFromPosition(pos, interval, notional, closed)

	if _, err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to record closed trade", map[string]interface{}{"positionID": pos.ID})
	}
	s.balance += trade.PnL
	delete(s.positions, pos.Symbol)
	delete(s.notionals, pos.Symbol)
	s.logger.Info(ctx, "Trade recorded", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"pnlPct":     trade.PnLPct,
		"pnl":        trade.PnL,
		"balance":    s.balance,
		"reason":     trade.CloseReason,
		"tpHits":     len(trade.TPHits),
	})
}

// evaluateEntry checks the active preset for a breakout and runs the
// admission pipeline. Caller holds s.mu.
func (s *TrackingService) evaluateEntry(ctx context.Context, kline *domain.Kline, cache []*domain.Kline) {
	snap, err := s.classifier.Classify(cache)
	if err != nil {
		s.logger.Debug(ctx, "Regime classification unavailable", map[string]interface{}{
			"symbol": kline.Symbol, "interval": kline.Interval, "reason": err.Error(),
		})
		return
	}

	preset, err := s.presets.GetActive(ctx, kline.Symbol, kline.Interval, snap.Regime)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Error(ctx, err, "Preset lookup failed", map[string]interface{}{"symbol": kline.Symbol, "interval": kline.Interval})
		}
		return
	}

	sig, err := s.generator.Check(ctx, cache, preset)
	if err != nil {
		s.logger.Error(ctx, err, "Signal check failed", map[string]interface{}{"symbol": kline.Symbol, "interval": kline.Interval})
		return
	}
	if sig == nil {
		return
	}
	s.logger.Info(ctx, "Signal generated", map[string]interface{}{
		"signalID": sig.ID,
		"symbol":   sig.Symbol,
		"side":     sig.Side,
		"interval": sig.Interval,
		"entry":    sig.EntryPrice,
		"regime":   snap.Regime,
	})

	// --- Size, then run portfolio admission ---
	size, err := s.manager.SizePosition(portfolio.SizeInput{
		Equity:     s.equityLocked(),
		EntryPrice: sig.EntryPrice,
		SLPrice:    sig.SLPrice,
		ATRRatio:   snap.Ratio,
	})
	if err != nil {
		s.logger.Error(ctx, err, "Position sizing failed", map[string]interface{}{"signalID": sig.ID})
		return
	}
	if size.Quantity <= 0 {
		s.logger.Warn(ctx, "Sizing produced zero quantity, skipping signal", map[string]interface{}{"signalID": sig.ID})
		return
	}

	decision := s.manager.CanOpen(ctx, portfolio.Candidate{
		Symbol:  sig.Symbol,
		Side:    sig.Side,
		RiskPct: size.RiskPct,
	}, s.snapshotLocked())
	if !decision.Admitted {
		s.logger.Info(ctx, "Signal rejected by portfolio limits", map[string]interface{}{
			"signalID": sig.ID,
			"symbol":   sig.Symbol,
			"reason":   decision.Reason,
			"detail":   decision.Detail,
		})
		return
	}

	pos := domain.NewPositionFromSignal(sig, size.Quantity, size.RiskPct, preset.TPSizePcts, kline.CloseTime)
	if err := s.posRepo.Create(ctx, pos); err != nil {
		s.logger.Error(ctx, err, "Failed to persist new position", map[string]interface{}{"positionID": pos.ID})
		return
	}
	s.generator.MarkFilled(sig)
	s.positions[pos.Symbol] = pos
	s.notionals[pos.Symbol] = pos.EntryPrice * pos.Quantity
	s.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"side":       pos.Side,
		"entryPrice": pos.EntryPrice,
		"quantity":   pos.Quantity,
		"riskPct":    pos.RiskPct,
		"slPrice":    pos.SLPrice,
	})
}

// handleWsError handles errors reported by the WebSocket streams. The
// reconnection logic lives in the adapter; this only records the failure.
func (s *TrackingService) handleWsError(err error) {
	s.logger.Error(context.Background(), err, "Kline stream error reported")
}

// snapshotLocked builds the portfolio view for admission. Caller holds s.mu.
func (s *TrackingService) snapshotLocked() portfolio.Snapshot {
	open := make([]*domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		open = append(open, pos)
	}
	return portfolio.Snapshot{Positions: open, Balance: s.balance}
}

// equityLocked returns balance plus open PnL. Caller holds s.mu.
func (s *TrackingService) equityLocked() float64 {
	eq := s.balance
	for sym, pos := range s.positions {
		notional := s.notionals[sym]
		eq += (pos.RealizedPnL + pos.UnrealizedPnL*pos.RemainingPct/100) / 100 * notional
	}
	return eq
}

func cacheKey(symbol, interval string) string {
	return symbol + "_" + interval
}

func closedEvent(events []lifecycle.Event) *lifecycle.Event {
	for i := range events {
		if events[i].Type == lifecycle.EventClosed {
			return &events[i]
		}
	}
	return nil
}

// closedTimer returns an already-fired timer channel so remaining stream
// waits drain without blocking.
func closedTimer() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}

// tradeFromPosition projects a closed position into its ledger record.
func tradeFromPosition(pos *domain.Position, interval string, notional float64, closed *lifecycle.Event) *domain.Trade {
	trade := &domain.Trade{
		PositionID:   pos.ID,
		PresetID:     pos.PresetID,
		Symbol:       pos.Symbol,
		Side:         pos.Side,
		Interval:     interval,
		EntryPrice:   pos.EntryPrice,
		Quantity:     pos.Quantity,
		PnLPct:       pos.RealizedPnL,
		PnL:          pos.RealizedPnL / 100 * notional,
		EntryTime:    pos.OpenedAt,
		DurationBars: pos.BarCount,
		CloseReason:  pos.CloseReason,
		MaxProfitPct: pos.MaxProfitPct,
		MaxLossPct:   pos.MaxLossPct,
	}
	if closed != nil {
		trade.ExitPrice = closed.Price
		trade.ExitTime = closed.At
	}
	for i, tp := range pos.TPLadder {
		if !tp.Hit {
			continue
		}
		pct := (tp.Price - pos.EntryPrice) / pos.EntryPrice * 100
		if pos.Side == domain.Short {
			pct = -pct
		}
		trade.TPHits = append(trade.TPHits, domain.TPHit{
			Index:   i + 1,
			Price:   tp.Price,
			SizePct: tp.SizePct,
			PnLPct:  pct,
		})
	}
	return trade
}
