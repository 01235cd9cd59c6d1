package stripe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
)

const testSigningSecret = "whsec_test_secret"

func signatureHeader(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func TestVerifier_Verify(t *testing.T) {
	logger := zap.NewNop()
	verifier := NewVerifier(testSigningSecret, logger)

	payload := []byte(`{"id":"evt_123","object":"event","type":"customer.subscription.deleted","created":1700000000,"data":{"object":{"id":"sub_1","customer":"cus_1"}}}`)

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		header := signatureHeader(payload, testSigningSecret, time.Now())

		event, err := verifier.Verify(payload, header)

		assert.NoError(t, err)
		assert.NotNil(t, event)
		assert.Equal(t, "evt_123", event.ID)
		assert.Equal(t, "customer.subscription.deleted", string(event.Type))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		header := signatureHeader(payload, testSigningSecret, time.Now())
		tampered := []byte(`{"id":"evt_123","object":"event","type":"customer.subscription.deleted","created":1700000000,"data":{"object":{"id":"sub_1","customer":"cus_ATTACKER"}}}`)

		event, err := verifier.Verify(tampered, header)

		assert.Nil(t, event)
		var authErr *domainErrors.AuthenticityError
		assert.True(t, errors.As(err, &authErr))
	})

	t.Run("rejects a signature from the wrong secret", func(t *testing.T) {
		header := signatureHeader(payload, "whsec_other_secret", time.Now())

		event, err := verifier.Verify(payload, header)

		assert.Nil(t, event)
		var authErr *domainErrors.AuthenticityError
		assert.True(t, errors.As(err, &authErr))
	})

	t.Run("rejects a stale signature timestamp", func(t *testing.T) {
		header := signatureHeader(payload, testSigningSecret, time.Now().Add(-time.Hour))

		event, err := verifier.Verify(payload, header)

		assert.Nil(t, event)
		var authErr *domainErrors.AuthenticityError
		assert.True(t, errors.As(err, &authErr))
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		event, err := verifier.Verify(payload, "")

		assert.Nil(t, event)
		var authErr *domainErrors.AuthenticityError
		assert.True(t, errors.As(err, &authErr))
	})
}
