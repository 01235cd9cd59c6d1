package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
	"github.com/foliohq/entitlement-service/internal/middleware/auth"
	"github.com/foliohq/entitlement-service/internal/usecase"
)

// BillingHandler hosts the authenticated billing session routes: checkout,
// billing portal, and subscription cancellation. The authenticated user's
// subject claim is the only user identity accepted; client-supplied user ids
// are never trusted on these routes.
type BillingHandler struct {
	logger    *zap.Logger
	store     repository.EntitlementRepository
	gateway   usecase.ProviderGateway
	customers *usecase.CustomerService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(
	logger *zap.Logger,
	store repository.EntitlementRepository,
	gateway usecase.ProviderGateway,
	customers *usecase.CustomerService,
) *BillingHandler {
	return &BillingHandler{
		logger:    logger,
		store:     store,
		gateway:   gateway,
		customers: customers,
	}
}

// CreateCheckoutRequest represents a checkout session request
type CreateCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// RegisterCustomerRequest represents an internal customer registration request
type RegisterCustomerRequest struct {
	UniversalID string `json:"universalId" validate:"required,uuid"`
	Email       string `json:"email" validate:"required,email"`
}

// CreateCheckout starts a provider-hosted checkout session for the
// authenticated user and returns its redirect URL.
func (h *BillingHandler) CreateCheckout(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	mapping, err := h.requireMapping(c, user.UniversalID)
	if err != nil {
		return err
	}

	url, err := h.gateway.CreateCheckoutSession(c.Request().Context(), mapping.ProviderCustomerID, req.PriceID)
	if err != nil {
		return h.providerError(c, "create checkout session", user.UniversalID, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}

// CreatePortal starts a provider-hosted billing portal session for the
// authenticated user.
func (h *BillingHandler) CreatePortal(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	mapping, err := h.requireMapping(c, user.UniversalID)
	if err != nil {
		return err
	}

	url, err := h.gateway.CreatePortalSession(c.Request().Context(), mapping.ProviderCustomerID)
	if err != nil {
		return h.providerError(c, "create portal session", user.UniversalID, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// CancelSubscriptions cancels all of the authenticated user's active
// subscriptions at the provider. Local entitlement state is not touched
// here; the cancellation webhook drives that transition.
func (h *BillingHandler) CancelSubscriptions(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	mapping, err := h.requireMapping(c, user.UniversalID)
	if err != nil {
		return err
	}

	cancelled, err := h.gateway.CancelActiveSubscriptions(c.Request().Context(), mapping.ProviderCustomerID)
	if err != nil {
		return h.providerError(c, "cancel subscriptions", user.UniversalID, err)
	}

	h.logger.Info("Subscriptions cancelled",
		zap.String("universal_id", user.UniversalID),
		zap.Int("cancelled", cancelled))

	return c.JSON(http.StatusOK, echo.Map{"cancelled": cancelled})
}

// RegisterCustomer is the internal signup hook: it creates a provider
// customer for a new user and stores the mapping. Idempotent.
func (h *BillingHandler) RegisterCustomer(c echo.Context) error {
	var req RegisterCustomerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	mapping, err := h.customers.RegisterCustomer(c.Request().Context(), req.UniversalID, req.Email)
	if err != nil {
		return h.providerError(c, "register customer", req.UniversalID, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"universalId":        mapping.UniversalID,
		"providerCustomerId": mapping.ProviderCustomerID,
	})
}

// requireMapping resolves the user's provider customer. Failures come back
// as *echo.HTTPError for the handler to return; only echo's error handler
// writes the response.
func (h *BillingHandler) requireMapping(c echo.Context, universalID string) (*mappingResult, error) {
	mapping, err := h.store.GetMappingByUniversalID(c.Request().Context(), universalID)
	if err != nil {
		h.logger.Error("Failed to look up customer mapping",
			zap.String("universal_id", universalID),
			zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
	if mapping == nil || mapping.ProviderCustomerID == "" {
		return nil, echo.NewHTTPError(http.StatusNotFound, echo.Map{
			"error": "No billing customer for this user",
			"code":  "NO_CUSTOMER_MAPPING",
		})
	}
	return &mappingResult{ProviderCustomerID: mapping.ProviderCustomerID}, nil
}

type mappingResult struct {
	ProviderCustomerID string
}

func (h *BillingHandler) providerError(c echo.Context, op, universalID string, err error) error {
	var remoteErr *domainErrors.RemoteProviderError
	if errors.As(err, &remoteErr) {
		h.logger.Error("Provider call failed",
			zap.String("op", op),
			zap.String("universal_id", universalID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": "Billing provider unavailable",
			"code":  "PROVIDER_ERROR",
		})
	}

	h.logger.Error("Billing operation failed",
		zap.String("op", op),
		zap.String("universal_id", universalID),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}
