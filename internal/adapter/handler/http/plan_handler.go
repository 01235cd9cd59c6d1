package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

// PlanHandler serves the public plan catalog.
type PlanHandler struct {
	logger   *zap.Logger
	planRepo repository.PlanRepository
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(logger *zap.Logger, planRepo repository.PlanRepository) *PlanHandler {
	return &PlanHandler{
		logger:   logger,
		planRepo: planRepo,
	}
}

// GetPlans lists active plans for the pricing page. Public route.
func (h *PlanHandler) GetPlans(c echo.Context) error {
	plans, err := h.planRepo.GetActivePlans(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to load plan catalog", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"plans": plans})
}
