package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/middleware/auth"
	"github.com/foliohq/entitlement-service/internal/usecase"
)

// EntitlementHandler serves the read-only entitlement query route.
type EntitlementHandler struct {
	logger *zap.Logger
	query  *usecase.EntitlementQueryService
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(logger *zap.Logger, query *usecase.EntitlementQueryService) *EntitlementHandler {
	return &EntitlementHandler{
		logger: logger,
		query:  query,
	}
}

// EntitlementResponse is the wire shape of an entitlement query.
type EntitlementResponse struct {
	IsPremium             bool                  `json:"isPremium"`
	ReviewsFeatureEnabled bool                  `json:"reviewsFeatureEnabled"`
	Subscription          *SubscriptionResponse `json:"subscription,omitempty"`
}

// SubscriptionResponse is the informational summary of a live subscription.
type SubscriptionResponse struct {
	PlanName          string    `json:"planName,omitempty"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Interval          string    `json:"interval"`
	CurrentPeriodEnd  time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
}

// GetEntitlement returns the authenticated user's entitlement: the
// authoritative local flags plus a best-effort subscription summary. Unknown
// users get 404.
func (h *EntitlementHandler) GetEntitlement(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	status, err := h.query.GetStatus(c.Request().Context(), user.UniversalID)
	if err != nil {
		h.logger.Error("Entitlement query failed",
			zap.String("universal_id", user.UniversalID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}
	if status == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "User not known to billing",
			"code":  "UNKNOWN_USER",
		})
	}

	resp := EntitlementResponse{
		IsPremium:             status.IsPremium,
		ReviewsFeatureEnabled: status.ReviewsFeatureEnabled,
	}
	if status.Summary != nil {
		resp.Subscription = &SubscriptionResponse{
			PlanName:          status.Summary.PlanName,
			Amount:            status.Summary.Amount,
			Currency:          status.Summary.Currency,
			Interval:          status.Summary.Interval,
			CurrentPeriodEnd:  status.Summary.CurrentPeriodEnd,
			CancelAtPeriodEnd: status.Summary.CancelAtPeriodEnd,
		}
	}

	return c.JSON(http.StatusOK, resp)
}
