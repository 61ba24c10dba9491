// Package billingtest provides in-memory doubles for the billing pipeline.
package billingtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
)

// ErrInjected is returned by operations listed in Repository.FailOn.
var ErrInjected = errors.New("billingtest: injected failure")

// ErrColumnTooLong mirrors a strict-mode "Data too long" database error.
var ErrColumnTooLong = errors.New("billingtest: value too long for column")

// Repository is an in-memory billing.Repository. Transactions are
// serialized and roll back on error. Writes are checked against the column
// sizes of the SQL schema.
type Repository struct {
	txMu sync.Mutex
	mu   sync.Mutex

	subscriptions map[string]models.Subscription
	payments      []models.Payment
	deliveries    []models.BillingWebhookDelivery
	nextID        uint
	calls         int

	// FailOn makes the named operation fail, e.g. "InsertPaymentIfNotExists".
	FailOn map[string]bool
}

func NewRepository() *Repository {
	return &Repository{subscriptions: map[string]models.Subscription{}, FailOn: map[string]bool{}}
}

func (r *Repository) enter(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.FailOn[op] {
		return ErrInjected
	}
	return nil
}

func checkColumns(table string, cols map[string]string, limits map[string]int) error {
	for name, v := range cols {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s.%s is not valid UTF-8", ErrColumnTooLong, table, name)
		}
		if len(v) > limits[name] {
			return fmt.Errorf("%w: %s.%s has %d bytes, limit %d", ErrColumnTooLong, table, name, len(v), limits[name])
		}
	}
	return nil
}

var (
	subscriptionLimits = map[string]int{
		"user_id":                  models.MaxUserIDLength,
		"provider_order_id":        models.MaxProviderIDLength,
		"provider_subscription_id": models.MaxProviderIDLength,
		"provider_plan_id":         models.MaxProviderIDLength,
		"last_event_type":          models.MaxEventTypeLength,
	}
	paymentLimits = map[string]int{
		"user_id":                 models.MaxUserIDLength,
		"currency":                3,
		"payment_method":          50,
		"provider_order_id":       models.MaxProviderIDLength,
		"provider_transaction_id": models.MaxProviderIDLength,
	}
	deliveryLimits = map[string]int{
		"correlation_id": 32,
		"event_type":     models.MaxEventTypeLength,
		"user_id":        models.MaxUserIDLength,
		"payload_json":   models.MaxDeliveryPayloadBytes,
	}
)

func (r *Repository) WithTx(ctx context.Context, fn func(tx billing.Repository) error) error {
	if err := r.enter("WithTx"); err != nil {
		return err
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	subs := make(map[string]models.Subscription, len(r.subscriptions))
	for k, v := range r.subscriptions {
		subs[k] = v
	}
	payments := append([]models.Payment(nil), r.payments...)
	deliveries := append([]models.BillingWebhookDelivery(nil), r.deliveries...)
	nextID := r.nextID
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.subscriptions, r.payments, r.deliveries, r.nextID = subs, payments, deliveries, nextID
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Repository) GetSubscriptionByUser(ctx context.Context, userID string, forUpdate bool) (*models.Subscription, error) {
	if err := r.enter("GetSubscriptionByUser"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *Repository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := r.enter("UpsertSubscription"); err != nil {
		return err
	}
	if err := checkColumns("subscriptions", map[string]string{
		"user_id":                  sub.UserID,
		"provider_order_id":        sub.ProviderOrderID,
		"provider_subscription_id": sub.ProviderSubscriptionID,
		"provider_plan_id":         sub.ProviderPlanID,
		"last_event_type":          sub.LastEventType,
	}, subscriptionLimits); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.subscriptions[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		sub.ID = r.nextID
	}
	r.subscriptions[sub.UserID] = *sub
	return nil
}

func (r *Repository) InsertPaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error) {
	if err := r.enter("InsertPaymentIfNotExists"); err != nil {
		return false, err
	}
	if err := checkColumns("payments", map[string]string{
		"user_id":                 payment.UserID,
		"currency":                payment.Currency,
		"payment_method":          payment.PaymentMethod,
		"provider_order_id":       payment.ProviderOrderID,
		"provider_transaction_id": payment.ProviderTransactionID,
	}, paymentLimits); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProviderOrderID == payment.ProviderOrderID {
			return false, nil
		}
	}
	r.nextID++
	payment.ID = r.nextID
	r.payments = append(r.payments, *payment)
	return true, nil
}

func (r *Repository) RecordDelivery(ctx context.Context, delivery *models.BillingWebhookDelivery) error {
	if err := r.enter("RecordDelivery"); err != nil {
		return err
	}
	if err := checkColumns("billing_webhook_deliveries", map[string]string{
		"correlation_id": delivery.CorrelationID,
		"event_type":     delivery.EventType,
		"user_id":        delivery.UserID,
		"payload_json":   delivery.PayloadJSON,
	}, deliveryLimits); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	delivery.ID = r.nextID
	r.deliveries = append(r.deliveries, *delivery)
	return nil
}

// Calls counts every repository operation, transactions included.
func (r *Repository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Subscription returns the stored row for userID.
func (r *Repository) Subscription(userID string) (models.Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[userID]
	return s, ok
}

// SetSubscription seeds a row.
func (r *Repository) SetSubscription(sub models.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == 0 {
		r.nextID++
		sub.ID = r.nextID
	}
	r.subscriptions[sub.UserID] = sub
}

func (r *Repository) Payments() []models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Payment(nil), r.payments...)
}

func (r *Repository) Deliveries() []models.BillingWebhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.BillingWebhookDelivery(nil), r.deliveries...)
}

// Directory is a map backed billing.Directory keyed by lower-case email.
type Directory struct {
	mu      sync.Mutex
	users   map[string]string
	lookups []string

	Err error
}

func NewDirectory(emailToUserID map[string]string) *Directory {
	users := make(map[string]string, len(emailToUserID))
	for email, id := range emailToUserID {
		users[strings.ToLower(email)] = id
	}
	return &Directory{users: users}
}

func (d *Directory) FindUserIDByEmail(ctx context.Context, email string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = append(d.lookups, email)
	if d.Err != nil {
		return "", false, d.Err
	}
	id, ok := d.users[strings.ToLower(email)]
	return id, ok, nil
}

// Lookups returns the emails queried so far.
func (d *Directory) Lookups() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lookups...)
}

// Recorder counts outcomes in memory.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *Recorder) RecordOutcome(ctx context.Context, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[outcome]++
	return nil
}

func (r *Recorder) Count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[outcome]
}

// Archiver keeps archived bodies in memory.
type Archiver struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

func (a *Archiver) Archive(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	if a.Objects == nil {
		a.Objects = map[string][]byte{}
	}
	a.Objects[key] = append([]byte(nil), body...)
	return nil
}
