package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
)

// Normalize maps a verified provider event onto the closed domain
// vocabulary. Event types outside the vocabulary return ErrUnhandledEvent,
// which callers acknowledge rather than fail: the provider sends far more
// event types than this service cares about.
//
// This is the one place that absorbs provider payload shape variance.
// Checkout sessions nest the customer under the session object; subscription
// lifecycle events carry it at the top level of the subscription. The
// reconciler never sees a raw provider shape.
func Normalize(event *stripe.Event) (*entity.EntitlementEvent, error) {
	observedAt := time.Unix(event.Created, 0)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		if session.Mode != stripe.CheckoutSessionModeSubscription {
			// One-time payments do not touch entitlement.
			return nil, domainErrors.ErrUnhandledEvent
		}
		if session.Customer == nil || session.Customer.ID == "" {
			return nil, fmt.Errorf("checkout session %s carries no customer", session.ID)
		}
		return &entity.EntitlementEvent{
			Kind:               entity.EventKindActivated,
			ProviderCustomerID: session.Customer.ID,
			IdempotencyKey:     event.ID,
			ObservedAt:         observedAt,
		}, nil

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}

		kind, ok := kindForSubscriptionStatus(sub.Status)
		if !ok {
			// Intermediate states (incomplete, past_due, paused) carry no
			// entitlement transition.
			return nil, domainErrors.ErrUnhandledEvent
		}
		return &entity.EntitlementEvent{
			Kind:               kind,
			ProviderCustomerID: sub.Customer.ID,
			IdempotencyKey:     event.ID,
			ObservedAt:         observedAt,
		}, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		sub, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		return &entity.EntitlementEvent{
			Kind:               entity.EventKindCancelled,
			ProviderCustomerID: sub.Customer.ID,
			IdempotencyKey:     event.ID,
			ObservedAt:         observedAt,
		}, nil

	default:
		return nil, domainErrors.ErrUnhandledEvent
	}
}

func parseSubscription(raw json.RawMessage) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, fmt.Errorf("subscription %s carries no customer", sub.ID)
	}
	return &sub, nil
}

func kindForSubscriptionStatus(status stripe.SubscriptionStatus) (entity.EventKind, bool) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return entity.EventKindActivated, true
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return entity.EventKindCancelled, true
	default:
		return "", false
	}
}
