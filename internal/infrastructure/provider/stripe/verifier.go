package stripe

import (
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
)

// Verifier authenticates inbound webhook deliveries against the endpoint's
// signing secret. Verification runs over the untouched raw body; any parse
// or re-serialization before this point would break the signature.
type Verifier struct {
	signingSecret string
	logger        *zap.Logger
}

// NewVerifier creates a new webhook verifier
func NewVerifier(signingSecret string, logger *zap.Logger) *Verifier {
	return &Verifier{
		signingSecret: signingSecret,
		logger:        logger,
	}
}

// Verify checks the signature header against the raw payload and returns the
// decoded event envelope. The library enforces the default ±5 minute
// tolerance on the signature's embedded timestamp, bounding replay from a
// captured delivery independently of idempotency-key deduplication.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		v.signingSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		v.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return nil, &domainErrors.AuthenticityError{
			Reason: "signature verification failed",
			Err:    err,
		}
	}

	return &event, nil
}
