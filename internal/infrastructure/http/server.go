package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	handlers "github.com/foliohq/entitlement-service/internal/adapter/handler/http"
	"github.com/foliohq/entitlement-service/internal/config"
	"github.com/foliohq/entitlement-service/internal/infrastructure/database"
	providerstripe "github.com/foliohq/entitlement-service/internal/infrastructure/provider/stripe"
	"github.com/foliohq/entitlement-service/internal/middleware/auth"
	"github.com/foliohq/entitlement-service/internal/usecase"
	"github.com/foliohq/entitlement-service/pkg/logger"
)

// CustomValidator wraps go-playground/validator for echo's Validate hook.
type CustomValidator struct {
	validate *validator.Validate
}

// Validate validates a bound request struct.
func (v *CustomValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	repos  *database.Repositories
	cache  usecase.EntitlementCache
}

// NewServer builds the HTTP server with middleware installed. Routes are
// wired on Start.
func NewServer(cfg *config.Config, log *zap.Logger, repos *database.Repositories, cache usecase.EntitlementCache) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Initialize Stripe
	stripe.Key = cfg.Service.StripeSecretKey

	e.Validator = &CustomValidator{validate: validator.New()}

	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config: cfg,
		logger: log,
		echo:   e,
		repos:  repos,
		cache:  cache,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Provider adapters
	verifier := providerstripe.NewVerifier(s.config.Service.StripeWebhookSecret, s.logger)
	gateway := providerstripe.NewGateway(s.config.Service.ClientURL, s.logger)

	// Use cases
	reconciler := usecase.NewReconciler(s.repos.Entitlement, s.cache, s.logger)
	query := usecase.NewEntitlementQueryService(s.repos.Entitlement, s.cache, gateway, s.logger)
	customers := usecase.NewCustomerService(s.repos.Entitlement, gateway, s.logger)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(s.logger, verifier, reconciler, s.repos.EventLog, s.config.Service.MaxDeliveryAttempts)
	billingHandler := handlers.NewBillingHandler(s.logger, s.repos.Entitlement, gateway, customers)
	entitlementHandler := handlers.NewEntitlementHandler(s.logger, query)
	planHandler := handlers.NewPlanHandler(s.logger, s.repos.Plan)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
			"/api/v1/plans",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", planHandler.GetPlans)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	protected.GET("/entitlement", entitlementHandler.GetEntitlement)
	protected.POST("/checkout", billingHandler.CreateCheckout)
	protected.POST("/portal", billingHandler.CreatePortal)
	protected.DELETE("/subscriptions", billingHandler.CancelSubscriptions)

	// Internal routes for the application backend
	internal := protected.Group("/internal")
	internal.POST("/customers", billingHandler.RegisterCustomer)
	internal.GET("/provider-events", webhookHandler.GetProviderEvents)

	// Webhook route (outside API versioning); authenticity comes from the
	// signature over the raw body, not from JWT.
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
