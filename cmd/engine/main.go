package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"suiwager/internal/cache"
	"suiwager/internal/chain"
	"suiwager/internal/client/events"
	"suiwager/internal/config"
	cronrunner "suiwager/internal/cron"
	"suiwager/internal/db"
	"suiwager/internal/handler"
	"suiwager/internal/keystore"
	"suiwager/internal/logger"
	"suiwager/internal/metrics"
	"suiwager/internal/models"
	gormrepository "suiwager/internal/repository/gorm"
	"suiwager/internal/service"
	"suiwager/internal/signer"
)

func main() {
	cfgPath := os.Getenv("SW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var treasuryCache *cache.TreasuryCache
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, treasury cache disabled", zap.Error(err))
		} else {
			treasuryCache = &cache.TreasuryCache{RDB: rdb, TTL: cfg.Redis.CacheTTL}
			defer rdb.Close()
		}
	}

	operatorKey, err := keystore.Load(cfg.Signer.OperatorKey, logger)
	if err != nil {
		logger.Fatal("operator key rejected", zap.Error(err))
	}
	if operatorKey == nil {
		logger.Warn("no operator key configured, chain writes and auto-withdraw disabled")
	}

	chainCfg, currencies, err := buildChainConfig(cfg.Chain)
	if err != nil {
		logger.Fatal("chain config invalid", zap.Error(err))
	}
	rpcClient := chain.NewClient(&http.Client{Timeout: cfg.Chain.Timeout}, cfg.Chain.RPCURL)
	executor := &chain.Executor{
		Client: rpcClient,
		Key:    operatorKey,
		Cfg:    chainCfg,
		Logger: logger,
	}

	settlementSigner := &signer.SettlementSigner{
		Key:                 operatorKey,
		Logger:              logger,
		MaxPayoutMultiplier: decimal.NewFromFloat(cfg.Signer.MaxPayoutMultiplier),
	}

	eventsClient := events.NewClient(&http.Client{Timeout: cfg.Events.Timeout}, cfg.Events.BaseURL)

	store := gormrepository.New(dbConn.Gorm)
	metricsSet := metrics.New()

	lifecycle := &service.Lifecycle{
		Store:   store,
		Exec:    executor,
		Signer:  settlementSigner,
		Events:  eventsClient,
		Logger:  logger,
		Metrics: metricsSet,
	}

	withdrawCurrencies, thresholds, err := buildWithdrawPolicy(cfg.AutoWithdraw, currencies)
	if err != nil {
		logger.Fatal("auto-withdraw config invalid", zap.Error(err))
	}
	treasury := &service.Treasury{
		Exec:      executor,
		Store:     store,
		Logger:    logger,
		Metrics:   metricsSet,
		HasSigner: operatorKey != nil,
		Config: service.TreasuryConfig{
			Currencies:   withdrawCurrencies,
			SafetyFactor: decimal.NewFromFloat(cfg.AutoWithdraw.SafetyFactor),
			MinThreshold: thresholds,
		},
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	betHandler := &handler.BetHandler{Lifecycle: lifecycle, Store: store}
	betHandler.Register(engine)
	settlementHandler := &handler.SettlementHandler{Lifecycle: lifecycle}
	settlementHandler.Register(engine)
	treasuryHandler := &handler.TreasuryHandler{
		Treasury:   treasury,
		Reader:     executor,
		Store:      store,
		Cache:      treasuryCache,
		Currencies: currencies,
	}
	treasuryHandler.Register(engine)
	engine.GET("/metrics", gin.WrapH(metricsSet.Handler()))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && cfg.AutoWithdraw.Enabled {
		_, err := cronRunner.Add(cfg.Cron.AutoWithdraw, func(ctx context.Context) {
			result, err := treasury.RunCycle(ctx)
			if err != nil {
				// In-flight overlap is a skip, not a failure.
				logger.Debug("auto-withdraw tick skipped", zap.Error(err))
				return
			}
			for currency, amount := range result.Withdrawn {
				logger.Info("auto-withdraw cycle moved fees",
					zap.String("currency", string(currency)),
					zap.String("amount", amount.String()),
					zap.String("tx_ref", result.TxRefs[currency]),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register auto-withdraw failed", zap.Error(err))
		}
	}
	if cfg.Cron.Enabled && treasuryCache != nil {
		_, err := cronRunner.Add(cfg.Cron.StateRefresh, func(ctx context.Context) {
			for _, currency := range currencies {
				state, err := executor.GetPlatformState(ctx, currency)
				if err != nil {
					logger.Warn("treasury state refresh failed",
						zap.String("currency", string(currency)), zap.Error(err))
					continue
				}
				treasuryCache.Put(ctx, state)
			}
		})
		if err != nil {
			logger.Warn("cron register state refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildChainConfig(cfg config.ChainConfig) (chain.Config, []models.Currency, error) {
	out := chain.Config{
		PackageID:   cfg.PackageID,
		Module:      cfg.Module,
		AdminCapID:  cfg.AdminCapID,
		GasBudget:   cfg.GasBudget,
		CallTimeout: cfg.Timeout,
		Platforms:   map[models.Currency]chain.PlatformConfig{},
	}
	var currencies []models.Currency
	for raw, platform := range cfg.Platforms {
		currency, err := models.ParseCurrency(raw)
		if err != nil {
			return chain.Config{}, nil, err
		}
		out.Platforms[currency] = chain.PlatformConfig{
			ObjectID: platform.ObjectID,
			CoinType: platform.CoinType,
		}
		currencies = append(currencies, currency)
	}
	if len(currencies) == 0 {
		currencies = models.Currencies()
	}
	return out, currencies, nil
}

func buildWithdrawPolicy(cfg config.AutoWithdrawConfig, fallback []models.Currency) ([]models.Currency, map[models.Currency]decimal.Decimal, error) {
	currencies := make([]models.Currency, 0, len(cfg.Currencies))
	for _, raw := range cfg.Currencies {
		currency, err := models.ParseCurrency(raw)
		if err != nil {
			return nil, nil, err
		}
		currencies = append(currencies, currency)
	}
	if len(currencies) == 0 {
		currencies = fallback
	}
	thresholds := make(map[models.Currency]decimal.Decimal, len(cfg.MinThreshold))
	for raw, value := range cfg.MinThreshold {
		currency, err := models.ParseCurrency(raw)
		if err != nil {
			return nil, nil, err
		}
		threshold, err := decimal.NewFromString(value)
		if err != nil {
			return nil, nil, err
		}
		thresholds[currency] = threshold
	}
	return currencies, thresholds, nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
