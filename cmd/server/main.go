package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/approval"
	"github.com/paysign/signoff/internal/attachment"
	"github.com/paysign/signoff/internal/auth"
	"github.com/paysign/signoff/internal/config"
	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/export"
	"github.com/paysign/signoff/internal/history"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/metrics"
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/server"
	"github.com/paysign/signoff/internal/summary"
	"github.com/paysign/signoff/internal/tablestore"
	"github.com/paysign/signoff/pkg/database"
	"github.com/paysign/signoff/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting payment sign-off server", zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open action-log database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(ctx, cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	m := metrics.New()

	store := tablestore.NewClient(tablestore.Config{
		BaseURL:   cfg.Store.BaseURL,
		BaseID:    cfg.Store.BaseID,
		APIKey:    cfg.Store.APIKey,
		Timeout:   cfg.Store.Timeout,
		BatchSize: cfg.Store.BatchSize,
	}, logger)
	store.SetObserver(m)

	fields := schema.FieldMap(cfg.Schema.Fields)
	statuses := entity.StatusSet{
		Waiting:  cfg.Schema.Status.Waiting,
		Signed:   cfg.Schema.Status.Signed,
		Rejected: cfg.Schema.Status.Rejected,
		Delayed:  cfg.Schema.Status.Delayed,
	}
	tables := join.Tables{
		Employees:  cfg.Schema.Tables.Employees,
		Approvals:  cfg.Schema.Tables.Approvals,
		Payments:   cfg.Schema.Tables.Payments,
		Contracts:  cfg.Schema.Tables.Contracts,
		Milestones: cfg.Schema.Tables.Milestones,
	}
	normalizer := schema.NewNormalizer(cfg.Schema.Locale, cfg.Schema.Currency)

	engine := join.NewEngine(store, tables, fields, statuses, logger)
	historyRepo := history.NewRepository(db.DB, logger)

	stamper := approval.NewStamper(approval.StampConfig{
		ImageServiceURL: cfg.Stamp.ImageServiceURL,
		Width:           cfg.Stamp.Width,
		Height:          cfg.Stamp.Height,
	})
	actions := approval.NewService(store, tables, fields, statuses, stamper, historyRepo, cfg.Store.Throttle, logger)

	login := auth.NewService(store, cfg.Schema.Tables.Employees, fields, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessions := auth.NewRegistry(cfg.Auth.TokenTTL)

	viewer := attachment.NewViewer(cfg.Viewer.DocViewerURL, cfg.Viewer.ImageExtensions)
	exporter := export.NewExporter(normalizer, logger)

	var summarizer server.Summarizer
	if cfg.Summary.Enabled {
		summarizer = summary.NewGenerator(cfg.Summary.APIKey, summary.Config{
			Model:       cfg.Summary.Model,
			Temperature: cfg.Summary.Temperature,
			MaxTokens:   cfg.Summary.MaxTokens,
			Timeout:     cfg.Summary.Timeout,
		}, normalizer, logger)
		logger.Info("Detail summaries enabled", zap.String("model", cfg.Summary.Model))
	}

	handlers := server.NewHandlers(engine, actions, login, tokens, sessions, viewer, exporter, summarizer, historyRepo, normalizer, m, logger)
	srv := server.New(cfg.Server, handlers, tokens, sessions, m, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go sweepSessions(ctx, sessions, logger)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

// sweepSessions drops idle sessions periodically
func sweepSessions(ctx context.Context, sessions *auth.Registry, logger *zap.Logger) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.Sweep(); removed > 0 {
				logger.Info("Idle sessions removed", zap.Int("count", removed))
			}
		}
	}
}
