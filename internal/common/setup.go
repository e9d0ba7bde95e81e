package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"savium-invest-go/internal/api"
	"savium-invest-go/internal/audit"
	"savium-invest-go/internal/auth"
	"savium-invest-go/internal/database"
	"savium-invest-go/internal/formance"
	"savium-invest-go/internal/ledger"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/notify"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/portfolio"
	"savium-invest-go/internal/reconcile"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/webhook"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Repository *repository.Repository
	Events     *ledger.EventLedger
	Audit      *audit.Writer
	Provider   payments.Provider
	Verifier   payments.Verifier
	Tokens     auth.TokenVerifier
	Engine     *reconcile.Engine
	Gateway    *webhook.Gateway
	Portfolio  *portfolio.Service
	API        *api.Service
	Formance   *formance.Service
	Publisher  *notify.Publisher
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full stack. The webhook verifier and token
// verifier are only built when their secrets are configured; the settlement
// mirror and publisher only when their endpoints are.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Services{
		DbService:  dbService,
		Repository: repository.New(dbService),
		Events:     ledger.New(dbService),
	}

	s.Audit = audit.NewWriter(audit.WriterConfig{
		Appender:     s.Repository,
		Workers:      cfg.Audit.Workers,
		QueueSize:    cfg.Audit.QueueSize,
		DrainTimeout: cfg.Audit.DrainTimeout,
	})

	if cfg.Payments.SecretKey != "" {
		stripeService, err := payments.NewStripeService(cfg.Payments)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Provider = stripeService
	} else {
		zap.L().Warn("STRIPE_SECRET_KEY not set, using in-memory payment provider")
		s.Provider = payments.NewMemoryProvider()
	}

	if cfg.Payments.WebhookSecret != "" {
		verifier, err := payments.NewSignatureVerifier(cfg.Payments.WebhookSecret, cfg.Payments.SignatureTolerance)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Verifier = verifier
	}

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.NewVerifier(cfg.Auth)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Tokens = tokens
	}

	var sinks []reconcile.SettlementSink
	if cfg.Formance.StackURL != "" {
		zap.L().Info("Initializing settlement ledger mirror")
		s.Formance, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize formance mirror: %w", err)
		}
		sinks = append(sinks, s.Formance)
	}
	if cfg.Notify.URL != "" {
		zap.L().Info("Initializing settlement publisher")
		s.Publisher, err = notify.NewPublisher(cfg.Notify)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		sinks = append(sinks, s.Publisher)
	}

	s.Engine = reconcile.NewEngine(reconcile.Config{
		Repository: s.Repository,
		Provider:   s.Provider,
		Audit:      s.Audit,
		Sinks:      sinks,
	})
	s.Gateway = webhook.NewGateway(s.Verifier, s.Events, s.Engine, s.Repository)
	s.Portfolio = portfolio.NewService(s.Repository, nil)
	s.API = api.NewService(api.Config{
		Repository:      s.Repository,
		Portfolio:       s.Portfolio,
		Provider:        s.Provider,
		Audit:           s.Audit,
		DefaultCurrency: cfg.Payments.DefaultCurrency,
	})

	zap.L().Info("Services initialized",
		zap.Int("settlement_sinks", len(sinks)),
		zap.Bool("webhook_verification", s.Verifier != nil),
		zap.Bool("token_verification", s.Tokens != nil))

	return s, nil
}

// InitializeDatabaseOnly initializes just the database and repository.
// Useful for read-only operations like portfolio reports.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, *repository.Repository, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return dbService, repository.New(dbService), nil
}

// Close drains the audit writer before closing the sinks and the database.
func (cs *Services) Close() {
	if cs.Audit != nil {
		cs.Audit.Stop()
	}
	if cs.Publisher != nil {
		cs.Publisher.Close()
	}
	if cs.Formance != nil {
		cs.Formance.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
