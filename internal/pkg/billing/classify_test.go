package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRelevantEvent(t *testing.T) {
	relevant := []string{"order_approved", "ORDER.PAID", "subscription_cancelled", "payment_refused", "charge.succeeded", "invoice.created"}
	for _, e := range relevant {
		assert.True(t, IsRelevantEvent(e), e)
	}
	for _, e := range []string{"newsletter_signup", "", "user.created", "ping"} {
		assert.False(t, IsRelevantEvent(e), e)
	}
}

func TestIsPaymentEvent(t *testing.T) {
	for _, e := range []string{"order_approved", "payment.completed", "charge_paid", "invoice.paid"} {
		assert.True(t, IsPaymentEvent(e), e)
	}
	for _, e := range []string{"subscription_cancelled", "subscription.renewed", "invoice.created"} {
		assert.False(t, IsPaymentEvent(e), e)
	}
}
