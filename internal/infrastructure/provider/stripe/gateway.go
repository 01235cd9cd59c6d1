package stripe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/price"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
)

// Gateway is the synchronous pass-through to the provider's API for
// user-initiated flows. Calls are not retried here: these back user-facing
// actions where a visible error plus a manual retry beats a silent loop.
// None of them mutate local entitlement state.
type Gateway struct {
	clientURL string
	logger    *zap.Logger
}

// NewGateway creates a new provider session gateway
func NewGateway(clientURL string, logger *zap.Logger) *Gateway {
	return &Gateway{
		clientURL: clientURL,
		logger:    logger,
	}
}

// CreateCustomer registers a provider customer for a user at signup time.
// Eager assignment keeps the webhook path from racing an unmapped customer.
func (g *Gateway) CreateCustomer(ctx context.Context, universalID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"universal_id": universalID,
		},
	}
	params.Context = ctx

	c, err := customer.New(params)
	if err != nil {
		return "", &domainErrors.RemoteProviderError{Op: "create customer", Err: err}
	}

	g.logger.Info("Created provider customer",
		zap.String("customer_id", c.ID),
		zap.String("universal_id", universalID))

	return c.ID, nil
}

// CreateCheckoutSession starts a subscription checkout and returns the
// redirect URL.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(g.clientURL + "/billing/success"),
		CancelURL:  stripe.String(g.clientURL + "/billing/cancel"),
	}
	params.Context = ctx

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", &domainErrors.RemoteProviderError{Op: "create checkout session", Err: err}
	}

	g.logger.Info("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("customer_id", customerID))

	return s.URL, nil
}

// CreatePortalSession returns a redirect URL to the provider's self-service
// management portal.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.clientURL),
	}
	params.Context = ctx

	ps, err := portalsession.New(params)
	if err != nil {
		return "", &domainErrors.RemoteProviderError{Op: "create portal session", Err: err}
	}

	g.logger.Info("Portal session created",
		zap.String("portal_session_id", ps.ID),
		zap.String("customer_id", customerID))

	return ps.URL, nil
}

// CancelActiveSubscriptions cancels every active subscription for a customer
// and returns how many were cancelled. The webhook path will observe the
// resulting deletion events; double application is harmless because that
// path is idempotent.
func (g *Gateway) CancelActiveSubscriptions(ctx context.Context, customerID string) (int, error) {
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	listParams.Context = ctx

	iter := subscription.List(listParams)

	count := 0
	for iter.Next() {
		sub := iter.Subscription()

		cancelParams := &stripe.SubscriptionCancelParams{}
		cancelParams.Context = ctx

		if _, err := subscription.Cancel(sub.ID, cancelParams); err != nil {
			return count, &domainErrors.RemoteProviderError{Op: "cancel subscription", Err: err}
		}

		g.logger.Info("Subscription cancelled",
			zap.String("subscription_id", sub.ID),
			zap.String("customer_id", customerID))
		count++
	}
	if err := iter.Err(); err != nil {
		return count, &domainErrors.RemoteProviderError{Op: "list subscriptions", Err: err}
	}

	return count, nil
}

// GetSubscriptionSummary fetches display-only plan information for the
// customer's current subscription. Informational: local entitlement remains
// authoritative regardless of what this returns.
func (g *Gateway) GetSubscriptionSummary(ctx context.Context, customerID string) (*entity.SubscriptionSummary, error) {
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	listParams.Context = ctx
	// Expand only up to price level (4 levels max)
	listParams.AddExpand("data.items.data.price")

	iter := subscription.List(listParams)

	var current *stripe.Subscription
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			current = sub
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, &domainErrors.RemoteProviderError{Op: "list subscriptions", Err: err}
	}
	if current == nil {
		return nil, domainErrors.ErrNoActiveSubscription
	}

	summary := &entity.SubscriptionSummary{
		SubscriptionID:    current.ID,
		PlanName:          "Premium",
		CurrentPeriodEnd:  time.Unix(current.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd: current.CancelAtPeriodEnd,
	}

	if len(current.Items.Data) > 0 {
		item := current.Items.Data[0]
		if item.Price != nil {
			if item.Price.Nickname != "" {
				summary.PlanName = item.Price.Nickname
			} else if item.Price.Product != nil && item.Price.Product.Name != "" {
				summary.PlanName = item.Price.Product.Name
			}

			summary.Amount = item.Price.UnitAmount
			summary.Currency = string(item.Price.Currency)

			if item.Price.Recurring != nil {
				summary.Interval = string(item.Price.Recurring.Interval)
				summary.IntervalCount = item.Price.Recurring.IntervalCount
			}
		}
	}

	return summary, nil
}

// ListRecurringPrices returns the provider's active recurring prices as
// catalog plans. Used by the plan sync command, not by the webhook path.
func (g *Gateway) ListRecurringPrices(ctx context.Context) ([]*entity.Plan, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	iter := price.List(params)

	var plans []*entity.Plan
	for iter.Next() {
		p := iter.Price()
		if p.Recurring == nil {
			continue
		}

		name := p.Nickname
		description := ""
		if p.Product != nil {
			if name == "" {
				name = p.Product.Name
			}
			description = p.Product.Description
		}
		if name == "" {
			name = p.ID
		}

		plans = append(plans, &entity.Plan{
			ProviderPriceID: p.ID,
			Name:            name,
			Description:     description,
			Amount:          decimal.NewFromInt(p.UnitAmount).Div(decimal.NewFromInt(100)),
			Currency:        string(p.Currency),
			Interval:        string(p.Recurring.Interval),
			IntervalCount:   p.Recurring.IntervalCount,
			Active:          true,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, &domainErrors.RemoteProviderError{Op: "list prices", Err: err}
	}

	return plans, nil
}
