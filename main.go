// Paylink is a pay-per-view link service: sellers publish priced links,
// buyers pay through a checkout, and earnings accumulate in an
// append-only activity ledger until the seller withdraws them.
package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/calebhrenchir/granted.gg-sub001/internal/account"
	"github.com/calebhrenchir/granted.gg-sub001/internal/api"
	"github.com/calebhrenchir/granted.gg-sub001/internal/config"
	"github.com/calebhrenchir/granted.gg-sub001/internal/handler"
	"github.com/calebhrenchir/granted.gg-sub001/internal/ledger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/payout"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "paylink: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.PathFromEnv("config.yml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting paylink",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	links := repository.NewLinkRepository(db, log)
	users := repository.NewUserRepository(db, log)
	activities := repository.NewActivityRepository(db, log)
	settlement := repository.NewSettlementRepository(db, log)

	railClient := rail.NewClient(
		cfg.Rail.BaseURL,
		cfg.Rail.APIKey,
		&http.Client{Timeout: cfg.Rail.Timeout},
		log,
	)

	m := metrics.New()
	ledgerSvc := ledger.NewService(links, activities, m, log)
	payoutSvc := payout.NewService(users, settlement, railClient, cfg.Rail.RemediationURL, m, log)
	accountSvc := account.NewService(users, railClient, log)

	handlers := api.Handlers{
		Health:   handler.NewHealthHandler(cfg.Service.Version, db.Ping),
		Link:     handler.NewLinkHandler(links, users, ledgerSvc, log),
		Click:    handler.NewClickHandler(links, activities, m, log),
		Checkout: handler.NewCheckoutHandler(links, users, activities, railClient, m, log),
		Withdraw: handler.NewWithdrawHandler(ledgerSvc, payoutSvc, log),
		Account:  handler.NewAccountHandler(users, accountSvc, log),
	}

	if !cfg.Service.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	done := make(chan struct{})
	defer close(done)

	api.SetupRoutes(
		router,
		handlers,
		m,
		cfg.Service.JWTSecret,
		cfg.RateLimit.MaxClicksPerMinute,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		done,
	)

	server := api.NewServer(api.ServerConfig{
		Port:            cfg.Service.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}, router, log)

	return server.Run()
}
