package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	domainRepo "github.com/foliohq/entitlement-service/internal/domain/repository"
	providerstripe "github.com/foliohq/entitlement-service/internal/infrastructure/provider/stripe"
)

// maxWebhookBodySize caps provider webhook payloads (64 KB). Real payloads
// are small; the limit protects against abuse on an unauthenticated route.
const maxWebhookBodySize = 64 * 1024

const defaultMaxDeliveryAttempts = 8

// EventVerifier authenticates a raw delivery against the signing secret.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*stripe.Event, error)
}

// EventReconciler applies a normalized event to the entitlement store.
type EventReconciler interface {
	Apply(ctx context.Context, event entity.EntitlementEvent) (*entity.ApplyResult, error)
}

// WebhookHandler is the inbound webhook endpoint. It is not behind auth
// middleware; authenticity comes from signature verification over the raw
// body. Response codes drive the provider's redelivery: 200 acknowledges
// (including no-ops and unhandled types), 400 rejects bad signatures and
// malformed payloads, 5xx asks for a retry.
type WebhookHandler struct {
	logger              *zap.Logger
	verifier            EventVerifier
	reconciler          EventReconciler
	eventLog            domainRepo.EventLogRepository
	maxDeliveryAttempts int
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	logger *zap.Logger,
	verifier EventVerifier,
	reconciler EventReconciler,
	eventLog domainRepo.EventLogRepository,
	maxDeliveryAttempts int,
) *WebhookHandler {
	if maxDeliveryAttempts <= 0 {
		maxDeliveryAttempts = defaultMaxDeliveryAttempts
	}
	return &WebhookHandler{
		logger:              logger,
		verifier:            verifier,
		reconciler:          reconciler,
		eventLog:            eventLog,
		maxDeliveryAttempts: maxDeliveryAttempts,
	}
}

// HandleWebhook processes one provider delivery end to end: verify the raw
// body, normalize, record, reconcile.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxWebhookBodySize)
	body, err := io.ReadAll(req.Body)
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}

	// The raw bytes go to verification untouched; parsing before the
	// signature check would both weaken the gate and break the signature.
	sig := req.Header.Get("Stripe-Signature")
	event, err := h.verifier.Verify(body, sig)
	if err != nil {
		var authErr *domainErrors.AuthenticityError
		if errors.As(err, &authErr) {
			h.logger.Warn("Rejected unauthentic webhook delivery",
				zap.String("reason", authErr.Reason),
				zap.Error(authErr.Err))
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "signature verification failed"})
	}

	h.logger.Info("Webhook event received",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)))

	normalized, err := providerstripe.Normalize(event)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnhandledEvent) {
			// The provider sends many event types this service does not
			// care about; acknowledging them keeps it from retry-storming.
			h.logger.Debug("Unhandled event type acknowledged",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)))
			return c.JSON(http.StatusOK, echo.Map{"received": true, "handled": false})
		}
		h.logger.Error("Failed to normalize webhook payload",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event payload"})
	}

	if err := h.eventLog.Record(ctx, event.ID, string(event.Type), event.Data.Raw, normalized.ObservedAt); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event store unavailable"})
	}

	result, err := h.reconciler.Apply(ctx, *normalized)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnmappedCustomer) {
			return h.parkUnmapped(c, event.ID, normalized.ProviderCustomerID, err)
		}

		// Unknown failure: fatal for this event, let the provider
		// redeliver rather than guessing.
		if _, logErr := h.eventLog.MarkFailed(ctx, event.ID, err); logErr != nil {
			h.logger.Error("Failed to record delivery failure",
				zap.String("event_id", event.ID),
				zap.Error(logErr))
		}
		h.logger.Error("Failed to apply entitlement event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to process event"})
	}

	if err := h.eventLog.MarkProcessed(ctx, event.ID); err != nil {
		// The transition is durably applied; a stale delivery record is a
		// diagnostics blemish, not a reason to trigger redelivery.
		h.logger.Warn("Failed to mark delivery processed",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"received": true,
		"applied":  result.Applied,
	})
}

// parkUnmapped handles an event whose customer mapping has not propagated:
// answer 503 so the provider's retry schedule redelivers, and flag the
// record for manual review once the attempt budget is spent.
func (h *WebhookHandler) parkUnmapped(c echo.Context, eventID, customerID string, cause error) error {
	ctx := c.Request().Context()

	attempts, err := h.eventLog.MarkFailed(ctx, eventID, cause)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event store unavailable"})
	}

	if attempts >= h.maxDeliveryAttempts {
		if err := h.eventLog.FlagNeedsReview(ctx, eventID); err != nil {
			h.logger.Error("Failed to flag event for review",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
		h.logger.Error("Delivery attempts exhausted for unmapped customer; event flagged for review",
			zap.String("event_id", eventID),
			zap.String("provider_customer_id", customerID),
			zap.Int("attempts", attempts))
		// Acknowledge so the provider stops retrying; the flagged record
		// keeps the event from being silently discarded.
		return c.JSON(http.StatusOK, echo.Map{"received": true, "parked": true})
	}

	h.logger.Warn("Event parked: no user mapped to provider customer",
		zap.String("event_id", eventID),
		zap.String("provider_customer_id", customerID),
		zap.Int("attempts", attempts))
	return c.JSON(http.StatusServiceUnavailable, echo.Map{
		"error": "customer mapping not available yet",
		"code":  "UNMAPPED_CUSTOMER",
	})
}

// GetProviderEvents lists failed and flagged deliveries for manual
// inspection. Internal route.
func (h *WebhookHandler) GetProviderEvents(c echo.Context) error {
	events, err := h.eventLog.ListUnresolved(c.Request().Context(), 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}
