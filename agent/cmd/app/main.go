package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"call-tracker/agent/database"
	"call-tracker/agent/internal/bot"
	"call-tracker/agent/internal/handlers"
	"call-tracker/agent/internal/ingest"
	"call-tracker/agent/internal/providers"
	"call-tracker/agent/internal/resolver"
	"call-tracker/agent/internal/scheduler"
	"call-tracker/agent/internal/tests"
	"call-tracker/agent/internal/tracker"
	"call-tracker/shared/config"
	"call-tracker/shared/env"
	"call-tracker/shared/logger"
	"call-tracker/shared/notifications"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

func startHeartbeat() {
	go func() {
		ticker := time.NewTicker(8 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			logger.Log.Info("Heartbeat: Program running...")
		}
	}()
}

func buildDSN() (string, error) {
	if env.DATABASE_URL != "" {
		return env.DATABASE_URL, nil
	}

	dbHost := env.PGHOST
	dbPort := env.PGPORT
	dbUser := env.PGUSER
	dbPassword := env.PGPASSWORD
	dbName := env.PGDATABASE

	if dbHost == "" {
		dbHost = env.LOCAL_DATABASE_HOST
	}
	if dbPort == "" {
		dbPort = env.LOCAL_DATABASE_PORT
	}
	if dbUser == "" {
		dbUser = env.LOCAL_DATABASE_USER
	}
	if dbPassword == "" {
		dbPassword = env.LOCAL_DATABASE_PASSWORD
	}
	if dbName == "" {
		dbName = env.LOCAL_DATABASE_NAME
	}

	if dbHost == "" || dbPort == "" || dbUser == "" || dbName == "" {
		return "", fmt.Errorf("essential database connection variables are missing (DATABASE_URL, PG*, LOCAL_*)")
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dbHost, dbUser, dbPassword, dbName, dbPort), nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Panicf("FATAL PANIC RECOVERY: %v", r)
		}
	}()

	if err := env.LoadEnv(); err != nil {
		log.Fatalf("FATAL: Failed to load environment variables: %v", err)
	}
	log.Println("INFO: Environment variables loaded via shared/env.")

	log.Println("INFO: Initializing Telegram notifications...")
	if err := notifications.InitTelegramBot(); err != nil {
		log.Printf("WARN: Failed to initialize Telegram Bot, proceeding without Telegram features: %v", err)
	}

	cfg, err := config.LoadConfig("agent/config.yaml")
	if err != nil {
		log.Fatalf("FATAL: Failed to load agent/config.yaml: %v", err)
	}
	config.SetGlobalConfig(cfg)

	enableTelegramLogging := notifications.GetBotInstance() != nil
	err = logger.InitLogger(logger.Config{
		Level:          cfg.Logging.Level,
		Environment:    cfg.App.Environment,
		EnableTelegram: enableTelegramLogging,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	appLogger := logger.Log

	dsn, err := buildDSN()
	if err != nil {
		appLogger.Fatalf("Database configuration invalid: %v", err)
	}

	appLogger.Info("Connecting to database...")
	db, err := database.ConnectToDatabase(dsn)
	if err != nil {
		appLogger.Fatalf("Database connection failed: %v", err)
	}

	appLogger.Info("Running database migrations...")
	database.MigrateDatabase(db, dsn)

	tokens := database.NewTokenStore(db)
	cacheStore := database.NewCacheStore(db)
	users := database.NewUserStore(db)

	guardPolicy := resolver.RetryPolicy{
		MaxAttempts: cfg.Guard.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Guard.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Guard.MaxDelayMS) * time.Millisecond,
		Multiplier:  2.0,
	}
	guard := resolver.NewConcurrencyGuard(int64(cfg.Guard.MaxWriters), guardPolicy)
	cache := resolver.NewMetadataCache(cacheStore, guard)

	var providerChain []providers.Provider
	if pc := cfg.Providers["dexscreener"]; pc.Enabled {
		providerChain = append(providerChain, providers.NewDexScreener(pc.BaseURL))
	}
	if pc := cfg.Providers["geckoterminal"]; pc.Enabled {
		providerChain = append(providerChain, providers.NewGeckoTerminal(pc.BaseURL, ""))
	}
	if pc := cfg.Providers["solscan"]; pc.Enabled {
		providerChain = append(providerChain, providers.NewSolscan(pc.BaseURL))
	}
	if len(providerChain) == 0 {
		appLogger.Fatal("No metadata providers enabled in configuration.")
	}
	resolverPolicy := resolver.RetryPolicy{
		MaxAttempts: cfg.Resolver.MaxAttempts,
		BaseDelay:   cfg.Resolver.BaseDelay(),
		MaxDelay:    cfg.Resolver.MaxDelay(),
		Multiplier:  2.0,
		JitterRange: cfg.Resolver.JitterRange,
	}
	tokenResolver := resolver.New(cache, providerChain, resolverPolicy)

	monitor := tracker.NewMonitor(cfg.Tracker.RetireThresholdUSD, cfg.Tracker.RetireWindow())
	refreshScheduler := scheduler.New(tokens, tokenResolver, guard, monitor, scheduler.TelegramNotifier{}, scheduler.Options{
		MinChangePct:    cfg.Scheduler.MinChangePct,
		ItemPause:       time.Duration(cfg.Scheduler.ItemPauseMS) * time.Millisecond,
		AlertMultiplier: cfg.Scheduler.AlertMultiplier,
	})

	authorizer := ingest.NewAuthorizer(users)
	if err := authorizer.Reload(); err != nil {
		appLogger.Warnf("Initial caller roster load failed: %v", err)
	}

	appLogger.Info("Starting cron jobs...")
	cronRunner := cron.New()
	if _, err := refreshScheduler.Register(cronRunner, cfg.Scheduler.RefreshSpec); err != nil {
		appLogger.Fatalf("Failed to register refresh job: %v", err)
	}
	if _, err := cronRunner.AddFunc(cfg.Scheduler.UserReloadSpec, func() { _ = authorizer.Reload() }); err != nil {
		appLogger.Fatalf("Failed to register roster reload job: %v", err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	appLogger.Info("Setting up web server...")
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Secret"}
	router.Use(cors.New(corsConfig))

	handlers.RegisterRoutes(router, handlers.Deps{
		DB:        db,
		Tokens:    tokens,
		Scheduler: refreshScheduler,
	})

	go func() {
		serverAddr := ":" + env.Port
		appLogger.Infof("Starting web server on %s", serverAddr)
		if err := router.Run(serverAddr); err != nil {
			appLogger.Fatalf("Could not start web server: %v", err)
		}
	}()

	if tgBot := notifications.GetBotInstance(); tgBot != nil {
		commandHandler := bot.NewCommandHandler(tgBot, users, authorizer, env.AdminUserIDs)
		listener := ingest.NewListener(tgBot, tokens, users, guard, tokenResolver, authorizer, commandHandler, env.SourceGroupIDs)
		go func() {
			if err := listener.Run(context.Background()); err != nil && err != context.Canceled {
				appLogger.Errorf("Telegram listener stopped: %v", err)
			}
		}()
	} else {
		appLogger.Warn("Telegram listener not started because bot initialization failed or was skipped.")
	}

	appLogger.Info("Running startup tests...")
	go tests.RunStartupTests(db)

	startHeartbeat()

	appLogger.Info("Application startup complete. Waiting for events...")
	select {}
}
