package billing

import "time"

// Outcome is the terminal state of one webhook delivery.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeDeferred         Outcome = "deferred"
	OutcomeDuplicatePayment Outcome = "duplicate_payment"
	OutcomeStale            Outcome = "stale"
	OutcomeRejected         Outcome = "rejected"
	OutcomeFailed           Outcome = "failed"
)

// Envelope is the typed view of a webhook body. Root holds the decoded
// object (numbers as json.Number) and is what extraction rules walk.
type Envelope struct {
	EventType string
	Data      map[string]any
	Customer  map[string]any
	Metadata  map[string]any
	Signature string
	Root      map[string]any
}

// Request is one inbound delivery as seen by the transport.
type Request struct {
	Body            []byte
	SignatureHeader string
	ReceivedAt      time.Time
}

// Result describes what ProcessWebhook did with a delivery.
type Result struct {
	Outcome       Outcome
	CorrelationID string
	EventType     string
	UserID        string
	Plan          string
	Status        string
	PaymentStored bool
}

// Resolution is the plan/status decision for one event.
type Resolution struct {
	Plan               string
	RequestedPlan      string
	Status             string
	ProviderPlanID     string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   *time.Time
	EventAt            time.Time
}
