package billing_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
)

// sqlRecorder keeps every statement gorm builds.
type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Info(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Warn(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, sql)
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.stmts)
	return r.stmts[len(r.stmts)-1]
}

func (r *sqlRecorder) find(t *testing.T, prefix string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stmts {
		if strings.HasPrefix(s, prefix) {
			return s
		}
	}
	t.Fatalf("no statement starting with %q in %v", prefix, r.stmts)
	return ""
}

// dryRunRepository opens a dialector without a server and records SQL only.
func dryRunRepository(t *testing.T, dialector gorm.Dialector) (billing.Repository, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(dialector, &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 rec,
	})
	require.NoError(t, err)
	return billing.NewRepository(db), rec
}

var sqlDialects = []struct {
	name      string
	dialector func() gorm.Dialector
	// expected fragments
	paymentConflict string
	upsertConflict  string
	upsertAssign    string
}{
	{
		name: "mysql",
		dialector: func() gorm.Dialector {
			return mysql.New(mysql.Config{
				DSN:                       "nutrifox:secret@tcp(127.0.0.1:3306)/nutrifox?parseTime=True",
				SkipInitializeWithVersion: true,
			})
		},
		paymentConflict: "ON DUPLICATE KEY UPDATE `id`=`id`",
		upsertConflict:  "ON DUPLICATE KEY UPDATE",
		upsertAssign:    "`plan`=VALUES(`plan`)",
	},
	{
		name: "postgres",
		dialector: func() gorm.Dialector {
			return postgres.New(postgres.Config{
				DSN: "host=127.0.0.1 user=nutrifox password=secret dbname=nutrifox port=5432 sslmode=disable",
			})
		},
		paymentConflict: `ON CONFLICT ("provider_order_id") DO NOTHING`,
		upsertConflict:  `ON CONFLICT ("user_id") DO UPDATE SET`,
		upsertAssign:    `"plan"="excluded"."plan"`,
	},
}

func TestRepositoryPaymentInsertSkipsDuplicates(t *testing.T) {
	for _, d := range sqlDialects {
		t.Run(d.name, func(t *testing.T) {
			repo, rec := dryRunRepository(t, d.dialector())

			_, err := repo.InsertPaymentIfNotExists(context.Background(), &models.Payment{
				UserID:          "u1",
				Plan:            "premium_monthly",
				AmountCents:     2990,
				Currency:        "BRL",
				ProviderOrderID: "ord-1",
				PaymentStatus:   models.PaymentStatusPaid,
				PaidAt:          time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)

			sql := rec.last(t)
			assert.True(t, strings.HasPrefix(sql, "INSERT INTO"), sql)
			assert.Contains(t, sql, "payments")
			assert.Contains(t, sql, d.paymentConflict)
		})
	}
}

func TestRepositoryUpsertSubscriptionByUser(t *testing.T) {
	updated := []string{
		"status",
		"current_period_start",
		"current_period_end",
		"provider_order_id",
		"provider_subscription_id",
		"provider_plan_id",
		"last_event_type",
		"last_event_at",
		"updated_at",
	}

	for _, d := range sqlDialects {
		t.Run(d.name, func(t *testing.T) {
			repo, rec := dryRunRepository(t, d.dialector())
			start := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

			err := repo.UpsertSubscription(context.Background(), &models.Subscription{
				UserID:             "u1",
				Plan:               "premium_monthly",
				Status:             models.SubscriptionStatusActive,
				CurrentPeriodStart: &start,
				LastEventAt:        &start,
			})
			require.NoError(t, err)

			sql := rec.find(t, "INSERT INTO")
			assert.Contains(t, sql, "subscriptions")
			assert.Contains(t, sql, d.upsertConflict)
			assert.Contains(t, sql, d.upsertAssign)
			for _, col := range updated {
				assert.Contains(t, sql, col, "missing update of %s", col)
			}
			// the row identity and creation time are never overwritten
			conflict := sql[strings.Index(sql, d.upsertConflict):]
			assert.NotContains(t, conflict, "created_at")

			assert.Contains(t, rec.last(t), "SELECT")
		})
	}
}

func TestRepositoryLocksSubscriptionForUpdate(t *testing.T) {
	for _, d := range sqlDialects {
		t.Run(d.name, func(t *testing.T) {
			repo, rec := dryRunRepository(t, d.dialector())

			_, err := repo.GetSubscriptionByUser(context.Background(), "u1", true)
			require.NoError(t, err)
			assert.Contains(t, rec.last(t), "FOR UPDATE")

			_, err = repo.GetSubscriptionByUser(context.Background(), "u1", false)
			require.NoError(t, err)
			assert.NotContains(t, rec.last(t), "FOR UPDATE")
		})
	}
}

func TestRepositoryRecordsDeliveryTruncationFlag(t *testing.T) {
	for _, d := range sqlDialects {
		t.Run(d.name, func(t *testing.T) {
			repo, rec := dryRunRepository(t, d.dialector())

			err := repo.RecordDelivery(context.Background(), &models.BillingWebhookDelivery{
				CorrelationID:    "abc123def456",
				EventType:        "order_approved",
				PayloadSHA256:    strings.Repeat("a", 64),
				UserID:           "u1",
				Outcome:          "processed",
				PayloadJSON:      `{"event_type":"order_approved"}`,
				PayloadTruncated: true,
			})
			require.NoError(t, err)
			assert.Contains(t, rec.last(t), "payload_truncated")
		})
	}
}
