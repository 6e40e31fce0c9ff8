package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"risk-systemv1/config"
	"risk-systemv1/internal/bus"
	"risk-systemv1/internal/feed"
	"risk-systemv1/internal/gateway"
	"risk-systemv1/internal/greekscache"
	"risk-systemv1/internal/histvol"
	"risk-systemv1/internal/limits"
	"risk-systemv1/internal/logger"
	"risk-systemv1/internal/metrics"
	"risk-systemv1/internal/model"
	"risk-systemv1/internal/notification"
	"risk-systemv1/internal/pricing"
	"risk-systemv1/internal/riskagg"
	redisstore "risk-systemv1/internal/store/redis"
	sqlitestore "risk-systemv1/internal/store/sqlite"
	"risk-systemv1/internal/symbols"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[riskengine] starting...")

	cfg := config.Load()
	slogger := logger.Init("riskengine", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("configuration loaded", "feed_mode", cfg.FeedMode, "gateway", cfg.GatewayAddr)

	// ---- Metrics & health ----
	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Violation journal (SQLite, off hot path) ----
	os.MkdirAll("data", 0o755)
	journal, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[riskengine] sqlite init failed: %v", err)
	}
	defer journal.Close()
	health.SetSQLiteOK(true)
	log.Println("[riskengine] violation journal ready")

	// ---- Limits config store (Redis, optional) ----
	var store *redisstore.Store
	store, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[riskengine] WARNING: redis init failed: %v (limits kept in memory only)", err)
		health.SetRedisConnected(false)
		store = nil
	} else {
		store.SetBreakerHook(func(state int) {
			prom.RedisBreakerState.Set(float64(state))
		})
		health.SetRedisConnected(true)
		log.Println("[riskengine] redis config store ready")
	}

	// ---- Periodic liveness checks ----
	if store != nil {
		health.StartLivenessChecker(ctx, store.Client(), journal.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Limits monitor ----
	var configStore limits.ConfigStore
	if store != nil {
		configStore = store
	}
	monitor := limits.NewMonitor(configStore, journal, nil)
	monitor.Restore(ctx)

	// ---- Risk aggregation + VaR ----
	varEngine := riskagg.NewVaREngine(nil)
	agg := riskagg.New(varEngine)
	agg.ObserveVaR = prom.VaRComputeDur.Observe
	agg.ObserveSnapshot = prom.SnapshotDur.Observe

	// ---- Greeks update fan-out: cache -> bus -> gateway ----
	updateCh := make(chan model.GreeksBatch, 5000)
	fanout := bus.New(1000)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}
	gatewayCh := fanout.Subscribe()
	go fanout.Run(ctx, updateCh)

	// ---- Greeks cache service ----
	cache := greekscache.New(pricing.NewBlackScholes(), greekscache.Config{
		RiskFreeRate:  cfg.RiskFreeRate,
		DividendYield: cfg.DividendYield,
	}, func(batch model.GreeksBatch) {
		prom.UpdatesEmitted.Add(float64(len(batch.Updates)))
		select {
		case updateCh <- batch:
		default:
		}
	})
	cache.OnRecompute = prom.RecomputesTotal.Inc
	cache.OnSkip = prom.SkippedSymbols.Inc
	defer cache.Shutdown()

	// ---- Alert delivery ----
	notifier := buildNotifier(cfg)
	alertCh := make(chan model.RiskViolation, 1000)

	// ---- WS gateway ----
	hub := gateway.NewHub()
	go hub.Run(ctx, gatewayCh, alertCh)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	gwSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		log.Printf("[riskengine] ws gateway listening on %s", cfg.GatewayAddr)
		if err := gwSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[riskengine] gateway server error: %v", err)
		}
	}()

	// ---- Historical volatility tracker ----
	tracker := histvol.NewTracker(cfg.HistVolWindow)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				agg.SetHistoricalVols(tracker.Snapshot())
			}
		}
	}()

	// ---- Gauge refresher ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.CacheEntries.Set(float64(cache.EntryCount()))
				prom.Subscriptions.Set(float64(cache.SubscriberCount()))
				prom.WSClients.Set(float64(hub.ClientCount()))
			}
		}
	}()

	// ---- Market data feed ----
	onTick := func(t feed.Tick) {
		prom.TicksTotal.Inc()
		health.SetLastTickTime(t.TS)
		tracker.Observe(t.Underlying, t.Spot)
		cache.OnPriceChange(t.Underlying, t.Spot, t.Vol)
	}

	var source feed.Source
	switch cfg.FeedMode {
	case "ws":
		ingest, err := feed.NewWS(feed.WSConfig{URL: cfg.FeedURL}, onTick)
		if err != nil {
			log.Fatalf("[riskengine] feed init failed: %v", err)
		}
		ingest.OnConnected = health.SetFeedConnected
		ingest.OnReconnect = prom.FeedReconnects.Inc
		source = ingest
		log.Printf("[riskengine] ws feed: %s", cfg.FeedURL)
	default:
		sim := feed.NewSimulator(feed.SimConfig{
			Underlyings: cfg.ParseSimUnderlyings(),
		}, onTick)
		source = sim
		health.SetFeedConnected(true)
		log.Printf("[riskengine] simulated feed: %s", cfg.SimUnderlyings)
	}
	go source.Run(ctx)

	// ---- Demo book (sim mode): exercises the full pipeline end to end ----
	if cfg.FeedMode != "ws" {
		positions := demoBook()
		src := staticSource{positions: positions}

		monitor.StartMonitoring("demo", "sim")
		for _, p := range positions {
			if opt, ok := p.(*model.OptionPosition); ok {
				if err := cache.Track(opt.Symbol, opt); err != nil {
					log.Printf("[riskengine] demo track %s: %v", opt.Symbol, err)
				}
			}
		}
		cache.Subscribe("demo", optionSymbols(positions), time.Second)

		checker := &limits.Checker{
			Monitor:  monitor,
			Agg:      agg,
			Source:   src,
			Interval: 10 * time.Second,
			VaRParams: riskagg.VaRParams{
				ConfidenceLevel: 0.95,
				TimeHorizonDays: 1,
			},
			OnViolation: func(v model.RiskViolation) {
				prom.ViolationsTotal.WithLabelValues(string(v.Type), string(v.Severity)).Inc()
				select {
				case alertCh <- v:
				default:
				}
				if muted(monitor, v) {
					return
				}
				if err := notifier.Send(ctx, notification.FromViolation(v)); err != nil {
					log.Printf("[riskengine] alert delivery failed: %v", err)
				}
			},
			OnAutoReduction: prom.AutoReductions.Inc,
		}
		go checker.Run(ctx)
		log.Printf("[riskengine] demo book active: %d positions, user=demo", len(positions))
	}

	log.Println("[riskengine] ╔════════════════════════════════════════════════════════╗")
	log.Println("[riskengine] ║  Derivatives Risk Engine                               ║")
	log.Println("[riskengine] ║                                                        ║")
	log.Println("[riskengine] ║  [Feed] → [Greeks Cache] → [Fan-out] → [WS Gateway]    ║")
	log.Println("[riskengine] ║  [Limits Monitor] → [Journal / Alerts]                 ║")
	log.Println("[riskengine] ╚════════════════════════════════════════════════════════╝")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[riskengine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if store != nil {
		store.Close()
	}

	log.Println("[riskengine] shutdown complete.")
}

// muted reports whether the user's alert config suppresses this violation.
func muted(m *limits.Monitor, v model.RiskViolation) bool {
	cfg, ok := m.AlertConfigFor(v.UserID)
	if !ok {
		return false
	}
	if cfg.Muted {
		return true
	}
	return v.Severity.Rank() < cfg.MinSeverity.Rank()
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[riskengine] webhook alerts enabled")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[riskengine] telegram alerts enabled")
	}
	return notifiers
}

// staticSource serves a fixed demo book for every snapshot request.
type staticSource struct {
	positions []model.Position
}

func (s staticSource) Snapshot(_ context.Context, _, _ string) (limits.PositionSnapshot, error) {
	var total, margin float64
	for _, p := range s.positions {
		total += p.Core().PositionValue
		margin += p.Core().MarginUsed
	}
	return limits.PositionSnapshot{
		Positions:       s.positions,
		TotalValue:      total,
		AvailableMargin: 500_000,
		Margin: model.MarginInfo{
			MarginUsed:        margin,
			MarginAvailable:   500_000,
			MarginUtilization: margin / (margin + 500_000) * 100,
		},
		DailyPnL: -2_500,
	}, nil
}

// demoBook builds a small NIFTY/BANKNIFTY options book expiring this month.
func demoBook() []model.Position {
	now := time.Now()
	expiry := symbols.LastThursday(now.Year(), now.Month())
	if expiry.Before(now) {
		next := now.AddDate(0, 1, 0)
		expiry = symbols.LastThursday(next.Year(), next.Month())
	}
	yy := expiry.Year() % 100
	mmm := expiry.Month().String()[:3]
	tag := fmt.Sprintf("%02d%s", yy, mmm)

	mk := func(underlying string, strike float64, class model.OptionClass, side model.Side, qty, premium float64) *model.OptionPosition {
		suffix := string(class)
		return &model.OptionPosition{
			PositionCore: model.PositionCore{
				ID:            fmt.Sprintf("%s-%v-%s", underlying, strike, suffix),
				Underlying:    underlying,
				Side:          side,
				Qty:           qty,
				EntryPrice:    premium,
				CurrentPrice:  premium,
				PositionValue: premium * qty,
				MarginUsed:    strike * qty * 0.12,
			},
			Symbol:       fmt.Sprintf("%s%s%v%s", underlying, tag, strike, suffix),
			Strike:       strike,
			Expiry:       expiry,
			Class:        class,
			Premium:      premium,
			ImpliedVol:   0.18,
			DaysToExpiry: pricing.DaysToExpiry(expiry),
		}
	}

	return []model.Position{
		mk("NIFTY", 22000, model.Call, model.Long, 50, 180),
		mk("NIFTY", 21800, model.Put, model.Short, 50, 95),
		mk("BANKNIFTY", 47000, model.Call, model.Long, 15, 420),
	}
}

func optionSymbols(positions []model.Position) []string {
	var syms []string
	for _, p := range positions {
		if opt, ok := p.(*model.OptionPosition); ok {
			syms = append(syms, opt.Symbol)
		}
	}
	return syms
}
