package main

import (
	"context"
	"log"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/config"
	"github.com/foliohq/entitlement-service/internal/infrastructure/database"
	providerstripe "github.com/foliohq/entitlement-service/internal/infrastructure/provider/stripe"
	"github.com/foliohq/entitlement-service/internal/usecase"
	"github.com/foliohq/entitlement-service/pkg/logger"
)

// Mirrors the provider's active recurring prices into the local plan
// catalog. Run on deploy or from cron after changing prices in the provider
// dashboard.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	stripe.Key = cfg.Service.StripeSecretKey

	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)
	gateway := providerstripe.NewGateway(cfg.Service.ClientURL, zapLogger)
	sync := usecase.NewPlanSyncService(repos.Plan, gateway, zapLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	synced, err := sync.Sync(ctx)
	if err != nil {
		zapLogger.Fatal("Plan sync failed", zap.Error(err))
	}

	zapLogger.Info("Plan sync finished", zap.Int("plans", synced))
}
