package billing

import "strings"

var (
	relevantEventTerms = []string{"order", "subscription", "payment", "charge", "invoice"}
	paymentEventTerms  = []string{"payment", "charge", "order", "approved", "paid", "completed"}
)

// IsRelevantEvent reports whether an event type concerns billing at all.
func IsRelevantEvent(eventType string) bool {
	return containsAny(strings.ToLower(eventType), relevantEventTerms)
}

// IsPaymentEvent reports whether an event type may represent money moving.
func IsPaymentEvent(eventType string) bool {
	return containsAny(strings.ToLower(eventType), paymentEventTerms)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
