package stripe

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
)

func makeEvent(id string, eventType stripe.EventType, raw string) *stripe.Event {
	return &stripe.Event{
		ID:      id,
		Type:    eventType,
		Created: 1700000000,
		Data:    &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestNormalize_CheckoutSession(t *testing.T) {
	t.Run("subscription checkout activates", func(t *testing.T) {
		event := makeEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted,
			`{"id":"cs_1","mode":"subscription","customer":{"id":"cus_42"}}`)

		normalized, err := Normalize(event)

		assert.NoError(t, err)
		assert.Equal(t, entity.EventKindActivated, normalized.Kind)
		assert.Equal(t, "cus_42", normalized.ProviderCustomerID)
		assert.Equal(t, "evt_1", normalized.IdempotencyKey)
		assert.Equal(t, time.Unix(1700000000, 0), normalized.ObservedAt)
	})

	t.Run("one-time payment checkout is not an entitlement event", func(t *testing.T) {
		event := makeEvent("evt_2", stripe.EventTypeCheckoutSessionCompleted,
			`{"id":"cs_2","mode":"payment","customer":{"id":"cus_42"}}`)

		_, err := Normalize(event)

		assert.ErrorIs(t, err, domainErrors.ErrUnhandledEvent)
	})

	t.Run("session without customer is malformed", func(t *testing.T) {
		event := makeEvent("evt_3", stripe.EventTypeCheckoutSessionCompleted,
			`{"id":"cs_3","mode":"subscription"}`)

		_, err := Normalize(event)

		assert.Error(t, err)
		assert.False(t, errors.Is(err, domainErrors.ErrUnhandledEvent))
	})
}

func TestNormalize_SubscriptionLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		eventType stripe.EventType
		status    string
		wantKind  entity.EventKind
	}{
		{"created active", stripe.EventTypeCustomerSubscriptionCreated, "active", entity.EventKindActivated},
		{"updated active", stripe.EventTypeCustomerSubscriptionUpdated, "active", entity.EventKindActivated},
		{"updated trialing", stripe.EventTypeCustomerSubscriptionUpdated, "trialing", entity.EventKindActivated},
		{"updated canceled", stripe.EventTypeCustomerSubscriptionUpdated, "canceled", entity.EventKindCancelled},
		{"updated unpaid", stripe.EventTypeCustomerSubscriptionUpdated, "unpaid", entity.EventKindCancelled},
		{"updated incomplete_expired", stripe.EventTypeCustomerSubscriptionUpdated, "incomplete_expired", entity.EventKindCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := makeEvent("evt_sub", tt.eventType,
				`{"id":"sub_1","status":"`+tt.status+`","customer":{"id":"cus_7"}}`)

			normalized, err := Normalize(event)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantKind, normalized.Kind)
			assert.Equal(t, "cus_7", normalized.ProviderCustomerID)
		})
	}

	t.Run("intermediate statuses carry no transition", func(t *testing.T) {
		for _, status := range []string{"incomplete", "past_due", "paused"} {
			event := makeEvent("evt_sub", stripe.EventTypeCustomerSubscriptionUpdated,
				`{"id":"sub_1","status":"`+status+`","customer":{"id":"cus_7"}}`)

			_, err := Normalize(event)

			assert.ErrorIs(t, err, domainErrors.ErrUnhandledEvent, "status %s", status)
		}
	})

	t.Run("deleted always cancels regardless of status", func(t *testing.T) {
		event := makeEvent("evt_del", stripe.EventTypeCustomerSubscriptionDeleted,
			`{"id":"sub_1","status":"canceled","customer":{"id":"cus_7"}}`)

		normalized, err := Normalize(event)

		assert.NoError(t, err)
		assert.Equal(t, entity.EventKindCancelled, normalized.Kind)
	})

	t.Run("subscription without customer is malformed", func(t *testing.T) {
		event := makeEvent("evt_bad", stripe.EventTypeCustomerSubscriptionDeleted,
			`{"id":"sub_1","status":"canceled"}`)

		_, err := Normalize(event)

		assert.Error(t, err)
		assert.False(t, errors.Is(err, domainErrors.ErrUnhandledEvent))
	})
}

func TestNormalize_UnrelatedEventTypes(t *testing.T) {
	for _, eventType := range []stripe.EventType{
		"invoice.paid",
		"invoice.payment_failed",
		"payment_intent.succeeded",
		"charge.refunded",
	} {
		event := makeEvent("evt_x", eventType, `{}`)

		_, err := Normalize(event)

		assert.ErrorIs(t, err, domainErrors.ErrUnhandledEvent, "type %s", eventType)
	}
}
