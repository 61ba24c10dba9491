package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuelReschke/NutriFox/app/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Archiver stores verified webhook bodies outside the database.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// OutcomeRecorder counts delivery outcomes.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome string) error
}

// Service runs the webhook pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	cfg      Config
	repo     Repository
	identity *IdentityResolver
	plans    *PlanResolver
	log      *zap.Logger
	archive  Archiver
	counter  OutcomeRecorder
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *Service) { s.counter = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a billing service from an injected repository.
func NewService(cfg Config, repo Repository, dir Directory, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		repo:     repo,
		identity: NewIdentityResolver(dir),
		plans:    NewPlanResolver(cfg),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(cfg Config, db *gorm.DB, dir Directory, opts ...Option) *Service {
	return NewService(cfg, NewRepository(db), dir, opts...)
}

// Config returns the settings the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// ProcessWebhook authenticates, classifies and reconciles one delivery.
//
// Returned errors wrap ErrConfiguration, ErrPayloadParse, ErrAuthentication
// or ErrPersistence. Ignored, deferred, duplicate and stale deliveries are
// not errors; they are reported through Result.Outcome.
func (s *Service) ProcessWebhook(ctx context.Context, req Request) (Result, error) {
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	receivedAt = receivedAt.UTC()
	sl := newStageLogger(s.log)

	if s.cfg.WebhookSecret == "" {
		err := fmt.Errorf("%w: webhook secret is not configured", ErrConfiguration)
		sl.fail("config", err)
		return s.finish(ctx, Result{Outcome: OutcomeRejected}), err
	}

	env, canonical, signatureInBody, err := Canonicalize(req.Body)
	if err != nil {
		sl.fail("parse", err, zap.Int("body_bytes", len(req.Body)))
		return s.finish(ctx, Result{Outcome: OutcomeRejected}), err
	}

	orderID, _, _ := OrderIDRules.First(env.Root)
	subscriptionID, _, _ := SubscriptionIDRules.First(env.Root)
	res := Result{
		CorrelationID: NewCorrelationID(orderID, subscriptionID, receivedAt),
		EventType:     env.EventType,
	}
	sl = sl.with(zap.String("correlation_id", res.CorrelationID), zap.String("event_type", env.EventType))
	sl.ok("parse", zap.String("order_id", orderID), zap.String("subscription_id", subscriptionID))

	signature, source := strings.TrimSpace(req.SignatureHeader), "header"
	if signature == "" {
		signature, source = env.Signature, "body"
	}
	algorithms := zap.Strings("algorithms", []string{string(AlgorithmSHA256), string(AlgorithmSHA1)})
	if strings.TrimSpace(signature) == "" {
		err := fmt.Errorf("%w: missing signature", ErrAuthentication)
		sl.fail("verify", err, zap.String("header", s.cfg.SignatureHeaderName()), zap.Bool("body_field", signatureInBody))
		res.Outcome = OutcomeRejected
		return s.finish(ctx, res), err
	}
	alg, ok := VerifySignature(canonical, signature, s.cfg.WebhookSecret)
	if !ok {
		err := fmt.Errorf("%w: signature mismatch", ErrAuthentication)
		sl.fail("verify", err, zap.String("signature_source", source), algorithms)
		res.Outcome = OutcomeRejected
		return s.finish(ctx, res), err
	}
	sl.ok("verify", zap.String("signature_source", source), zap.String("algorithm", string(alg)))

	if !IsRelevantEvent(env.EventType) {
		sl.ok("classify", zap.Bool("relevant", false))
		res.Outcome = OutcomeIgnored
		return s.finish(ctx, res), nil
	}
	sl.ok("classify", zap.Bool("relevant", true), zap.Bool("payment", IsPaymentEvent(env.EventType)))

	identity, found, err := s.identity.Resolve(ctx, env)
	if err != nil {
		sl.fail("identity", err)
		res.Outcome = OutcomeFailed
		return s.finish(ctx, res), err
	}
	if !found {
		sl.warn("identity", "no internal user for event, acknowledging without changes")
		res.Outcome = OutcomeDeferred
		return s.finish(ctx, res), nil
	}
	res.UserID = identity.UserID
	sl = sl.with(zap.String("user_id", identity.UserID))
	sl.ok("identity", zap.String("rule", identity.Rule))

	resolution := s.plans.Resolve(env, receivedAt)
	res.Plan, res.Status = resolution.Plan, resolution.Status
	sl.ok("resolve",
		zap.String("plan", resolution.Plan),
		zap.String("requested_plan", resolution.RequestedPlan),
		zap.String("status", resolution.Status),
		zap.String("provider_plan_id", resolution.ProviderPlanID),
	)

	in := reconcileInput{
		env:            env,
		canonical:      canonical,
		userID:         identity.UserID,
		orderID:        providerID(orderID),
		subscriptionID: providerID(subscriptionID),
		resolution:     resolution,
		correlationID:  res.CorrelationID,
		receivedAt:     receivedAt,
	}
	outcome, stored, err := s.reconcile(ctx, in)
	if err != nil {
		sl.fail("reconcile", err)
		res.Outcome = OutcomeFailed
		return s.finish(ctx, res), err
	}
	res.Outcome, res.PaymentStored = outcome, stored

	switch outcome {
	case OutcomeDuplicatePayment:
		sl.warn("reconcile", "payment already recorded", zap.String("order_id", orderID), zap.String("outcome", string(outcome)))
	case OutcomeStale:
		sl.warn("reconcile", "older than stored state, subscription kept", zap.String("outcome", string(outcome)))
	default:
		sl.ok("reconcile", zap.String("outcome", string(outcome)), zap.Bool("payment_stored", stored))
	}

	s.archiveBody(ctx, sl, res, canonical, receivedAt)
	return s.finish(ctx, res), nil
}

type reconcileInput struct {
	env            *Envelope
	canonical      []byte
	userID         string
	orderID        string
	subscriptionID string
	resolution     Resolution
	correlationID  string
	receivedAt     time.Time
}

// reconcile converges the subscription row, appends the payment when one is
// due and records the delivery, all in one transaction.
func (s *Service) reconcile(ctx context.Context, in reconcileInput) (Outcome, bool, error) {
	outcome := OutcomeProcessed
	stored := false

	err := s.repo.WithTx(ctx, func(tx Repository) error {
		outcome, stored = OutcomeProcessed, false

		var current *models.Subscription
		if s.cfg.OrderingGuard {
			var err error
			current, err = tx.GetSubscriptionByUser(ctx, in.userID, true)
			if err != nil {
				return err
			}
			if current != nil && current.LastEventAt != nil && current.LastEventAt.After(in.resolution.EventAt) {
				outcome = OutcomeStale
			}
		}

		var subscriptionRef *uint
		if outcome == OutcomeStale {
			subscriptionRef = &current.ID
		} else {
			sub := s.buildSubscription(in)
			if err := tx.UpsertSubscription(ctx, sub); err != nil {
				return err
			}
			subscriptionRef = &sub.ID
		}

		if IsPaymentEvent(in.env.EventType) &&
			in.resolution.Status == models.SubscriptionStatusActive &&
			in.orderID != "" {
			payment := s.buildPayment(in)
			payment.SubscriptionID = subscriptionRef
			created, err := tx.InsertPaymentIfNotExists(ctx, payment)
			if err != nil {
				return err
			}
			stored = created
			if !created {
				outcome = OutcomeDuplicatePayment
			}
		}

		sum := sha256.Sum256(in.canonical)
		payload := truncate(string(in.canonical), models.MaxDeliveryPayloadBytes)
		return tx.RecordDelivery(ctx, &models.BillingWebhookDelivery{
			CorrelationID:    in.correlationID,
			EventType:        truncate(in.env.EventType, models.MaxEventTypeLength),
			PayloadSHA256:    hex.EncodeToString(sum[:]),
			UserID:           in.userID,
			Outcome:          string(outcome),
			PayloadJSON:      payload,
			PayloadTruncated: len(payload) < len(in.canonical),
		})
	})
	if err != nil {
		return OutcomeFailed, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return outcome, stored, nil
}

func (s *Service) buildSubscription(in reconcileInput) *models.Subscription {
	r := in.resolution
	start := r.CurrentPeriodStart
	eventAt := r.EventAt
	return &models.Subscription{
		UserID:                 in.userID,
		Plan:                   r.Plan,
		Status:                 r.Status,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       r.CurrentPeriodEnd,
		ProviderOrderID:        in.orderID,
		ProviderSubscriptionID: in.subscriptionID,
		ProviderPlanID:         providerID(r.ProviderPlanID),
		LastEventType:          truncate(in.env.EventType, models.MaxEventTypeLength),
		LastEventAt:            &eventAt,
	}
}

func (s *Service) buildPayment(in reconcileInput) *models.Payment {
	root := in.env.Root
	currency, _, ok := CurrencyRules.First(root)
	if !ok {
		currency = s.cfg.currency()
	}
	method, _, _ := MethodRules.First(root)
	transactionID, _, _ := TransactionIDRules.First(root)

	return &models.Payment{
		UserID:                in.userID,
		Plan:                  in.resolution.Plan,
		AmountCents:           AmountCents(root),
		Currency:              strings.ToUpper(truncate(currency, 3)),
		PaymentMethod:         truncate(method, 50),
		ProviderOrderID:       in.orderID,
		ProviderTransactionID: providerID(transactionID),
		PaymentStatus:         models.PaymentStatusPaid,
		PaidAt:                firstTime(in.env, PaidAtRules, in.receivedAt),
	}
}

// archiveBody and finish are best effort: failures are logged and never
// change the response.
func (s *Service) archiveBody(ctx context.Context, sl stageLogger, res Result, canonical []byte, receivedAt time.Time) {
	if s.archive == nil {
		return
	}
	key := ArchiveKey(receivedAt, res.CorrelationID)
	if err := s.archive.Archive(ctx, key, canonical); err != nil {
		sl.fail("archive", err, zap.String("key", key))
		return
	}
	sl.ok("archive", zap.String("key", key))
}

func (s *Service) finish(ctx context.Context, res Result) Result {
	if s.counter != nil && res.Outcome != "" {
		if err := s.counter.RecordOutcome(ctx, string(res.Outcome)); err != nil {
			s.log.Warn("webhook outcome counter failed", zap.Error(err), zap.String("outcome", string(res.Outcome)))
		}
	}
	return res
}

// ArchiveKey is the object key of an archived body.
func ArchiveKey(receivedAt time.Time, correlationID string) string {
	return fmt.Sprintf("webhooks/%s/%s.json", receivedAt.UTC().Format("2006/01/02"), correlationID)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// providerID keeps provider identifiers within their column. Longer values
// are replaced by a digest so uniqueness on them still holds.
func providerID(s string) string {
	if len(s) <= models.MaxProviderIDLength {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])
}
