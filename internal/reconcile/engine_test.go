package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savium-invest-go/internal/accrual"
	"savium-invest-go/internal/database"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/repository"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.TransactionLogEntry
}

func (r *recordingAudit) Submit(e models.TransactionLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Type + "/" + e.Status
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	records []models.Settlement
	fail    bool
}

func (s *recordingSink) RecordSettlement(_ context.Context, st models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, st)
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

type fixture struct {
	engine   *Engine
	repo     *repository.Repository
	provider *payments.MemoryProvider
	audit    *recordingAudit
	sink     *recordingSink
}

func setupEngine(t *testing.T) (*fixture, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "reconcile.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	clock := func() time.Time { return testNow }
	f := &fixture{
		repo:     repository.New(db).WithClock(clock),
		provider: payments.NewMemoryProvider(),
		audit:    &recordingAudit{},
		sink:     &recordingSink{},
	}
	f.engine = NewEngine(Config{
		Repository: f.repo,
		Provider:   f.provider,
		Audit:      f.audit,
		Sinks:      []SettlementSink{f.sink},
		Clock:      clock,
	})
	if _, _, err := f.repo.UpsertUser(context.Background(), "u1", "alice@example.com", "Alice"); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	return f, db.Close
}

func (f *fixture) summary(t *testing.T) models.FinancialSummary {
	t.Helper()
	u, err := f.repo.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	return u.FinancialInfo
}

func event(id, typ, object string) payments.Event {
	return payments.Event{Id: id, Type: typ, Created: testNow, Object: []byte(object)}
}

func intentObject(id string, amount int64, metadata string) string {
	return fmt.Sprintf(`{"id":%q,"object":"payment_intent","amount":%d,"currency":"inr","payment_method":"pm_card","metadata":%s}`, id, amount, metadata)
}

func chargeObject(intentId string, amount int64, metadata string) string {
	return fmt.Sprintf(`{"id":"ch_%s","object":"charge","amount":%d,"currency":"inr","payment_intent":%q,"metadata":%s}`, intentId, amount, intentId, metadata)
}

func TestReconcile_DepositSettlesOnce(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	dep, err := f.repo.CreateDeposit(ctx, models.Deposit{UserId: "u1", Amount: decimal.NewFromInt(150), Currency: "inr", PaymentIntentId: "pi_dep"})
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}

	meta := `{"userId":"u1","purpose":"account_deposit"}`
	ack, err := f.engine.Reconcile(ctx, event("evt_1", payments.EventPaymentIntentSucceeded, intentObject("pi_dep", 15000, meta)))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if ack.Outcome != OutcomeApplied {
		t.Errorf("Expected applied, got %s", ack.Outcome)
	}

	// The provider also reports the charge for the same payment.
	ack, err = f.engine.Reconcile(ctx, event("evt_2", payments.EventChargeSucceeded, chargeObject("pi_dep", 15000, meta)))
	if err != nil {
		t.Fatalf("Reconcile charge failed: %v", err)
	}
	if ack.Outcome != OutcomeNoop {
		t.Errorf("Expected noop for second settlement, got %s", ack.Outcome)
	}

	s := f.summary(t)
	if !s.TotalInvested.Equal(decimal.NewFromInt(150)) || !s.PortfolioValue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected invested and value 150, got %s / %s", s.TotalInvested, s.PortfolioValue)
	}
	if !s.AccountConnected || s.LastDepositDate == nil {
		t.Errorf("Expected account connected with deposit date, got %+v", s)
	}

	got, err := f.repo.FindDepositByPaymentIntent(ctx, "pi_dep")
	if err != nil || got == nil {
		t.Fatalf("FindDepositByPaymentIntent = %v, %v", got, err)
	}
	if got.Status != models.DepositCompleted || got.Id != dep.Id {
		t.Errorf("Expected deposit %s completed, got %+v", dep.Id, got)
	}
	if types := f.audit.types(); len(types) != 1 || types[0] != "deposit/completed" {
		t.Errorf("Unexpected audit entries %v", types)
	}
	if len(f.sink.records) != 1 || f.sink.records[0].Kind != models.SettlementDeposit {
		t.Errorf("Expected one deposit settlement, got %+v", f.sink.records)
	}
}

func TestReconcile_DepositMissingRecord(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()

	ack, err := f.engine.Reconcile(context.Background(), event("evt_1", payments.EventPaymentIntentSucceeded,
		intentObject("pi_ghost", 20000, `{"userId":"u1","purpose":"account_deposit"}`)))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if ack.Outcome != OutcomeNoop {
		t.Errorf("Expected noop, got %s", ack.Outcome)
	}
	if s := f.summary(t); !s.TotalInvested.IsZero() {
		t.Errorf("Expected no increment, got %s", s.TotalInvested)
	}
	if types := f.audit.types(); len(types) != 1 || types[0] != "deposit/completed" {
		t.Errorf("Expected the settlement to be audited, got %v", types)
	}
}

func TestReconcile_InvestmentActivation(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	inv, err := f.repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(2500), Status: models.InvestmentPending})
	if err != nil {
		t.Fatalf("CreateInvestment failed: %v", err)
	}
	meta := fmt.Sprintf(`{"userId":"u1","investmentId":%q}`, inv.Id)

	for i, typ := range []string{payments.EventPaymentIntentSucceeded, payments.EventChargeSucceeded, payments.EventPaymentIntentSucceeded} {
		obj := intentObject("pi_inv", 250000, meta)
		if typ == payments.EventChargeSucceeded {
			obj = chargeObject("pi_inv", 250000, meta)
		}
		if _, err := f.engine.Reconcile(ctx, event(fmt.Sprintf("evt_%d", i), typ, obj)); err != nil {
			t.Fatalf("Reconcile %d failed: %v", i, err)
		}
	}

	got, err := f.repo.GetInvestment(ctx, inv.Id)
	if err != nil {
		t.Fatalf("GetInvestment failed: %v", err)
	}
	if got.Status != models.InvestmentActive || got.PaymentId != "pi_inv" {
		t.Errorf("Expected active investment linked to pi_inv, got %+v", got)
	}
	if got.PaymentDetails == nil || got.PaymentDetails.PaymentMethod != "pm_card" || !got.PaymentDetails.Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Unexpected payment details %+v", got.PaymentDetails)
	}

	s := f.summary(t)
	if !s.TotalInvested.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected a single increment of 2500, got %s", s.TotalInvested)
	}
	if s.LastInvestmentDate == nil || !s.LastInvestmentDate.Equal(testNow) {
		t.Errorf("Expected last investment date %v, got %v", testNow, s.LastInvestmentDate)
	}
	if len(f.sink.records) != 1 {
		t.Errorf("Expected one settlement, got %d", len(f.sink.records))
	}
}

func TestReconcile_PlainPayment(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()

	ack, err := f.engine.Reconcile(context.Background(), event("evt_1", payments.EventPaymentIntentSucceeded,
		intentObject("pi_plain", 999, `{"userId":"u1"}`)))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if ack.Outcome != OutcomeApplied {
		t.Errorf("Expected applied, got %s", ack.Outcome)
	}
	if s := f.summary(t); !s.TotalInvested.IsZero() {
		t.Errorf("Plain payment must not change the summary, got %s", s.TotalInvested)
	}
	if types := f.audit.types(); len(types) != 1 || types[0] != "payment/completed" {
		t.Errorf("Unexpected audit entries %v", types)
	}
	if !f.audit.entries[0].Amount.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("Expected amount 9.99, got %s", f.audit.entries[0].Amount)
	}
}

func TestReconcile_MissingUserIsNoop(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()

	for _, typ := range []string{payments.EventPaymentIntentSucceeded, payments.EventPaymentFailed} {
		ack, err := f.engine.Reconcile(context.Background(), event("evt_"+typ, typ, intentObject("pi_x", 1000, `{}`)))
		if err != nil {
			t.Fatalf("Reconcile %s failed: %v", typ, err)
		}
		if ack.Outcome != OutcomeNoop {
			t.Errorf("%s: expected noop, got %s", typ, ack.Outcome)
		}
	}
	if len(f.audit.types()) != 0 {
		t.Errorf("Expected no audit entries, got %v", f.audit.types())
	}
}

func TestReconcile_PaymentFailed(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	inv, _ := f.repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(100), Status: models.InvestmentPending})
	obj := fmt.Sprintf(`{"id":"pi_f","object":"payment_intent","amount":10000,
		"metadata":{"userId":"u1","investmentId":%q},
		"last_payment_error":{"code":"card_declined","message":"Your card was declined."}}`, inv.Id)

	if _, err := f.engine.Reconcile(ctx, event("evt_f", payments.EventPaymentFailed, obj)); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got, _ := f.repo.GetInvestment(ctx, inv.Id)
	if got.Status != models.InvestmentFailed || got.FailureCode != "card_declined" || got.FailureReason != "Your card was declined." {
		t.Errorf("Unexpected investment %+v", got)
	}
	if got.LastAttempt == nil {
		t.Error("Expected lastAttempt to be set")
	}
	if s := f.summary(t); !s.TotalInvested.IsZero() {
		t.Errorf("Failed payment must not increment, got %s", s.TotalInvested)
	}
	if types := f.audit.types(); len(types) != 1 || types[0] != "payment/failed" {
		t.Errorf("Unexpected audit entries %v", types)
	}
}

func TestReconcile_RefundFloorsAtZero(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	inv, _ := f.repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(50), Status: models.InvestmentPending})
	if err := f.repo.ActivateInvestment(ctx, inv.Id, models.PaymentDetails{PaymentIntentId: "pi_r"}, testNow); err != nil {
		t.Fatalf("ActivateInvestment failed: %v", err)
	}
	if err := f.repo.RecordSettlement(ctx, "u1", decimal.NewFromInt(10), repository.FieldLastInvestmentDate, testNow); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}
	f.provider.PutIntent(payments.Intent{Id: "pi_r", Metadata: map[string]string{"userId": "u1", "investmentId": inv.Id}})

	obj := `{"id":"ch_r","object":"charge","amount":5000,"amount_refunded":2500,"currency":"inr",
		"payment_intent":"pi_r","refunds":{"data":[{"id":"re_1"}]}}`
	if _, err := f.engine.Reconcile(ctx, event("evt_r", payments.EventChargeRefunded, obj)); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got, _ := f.repo.GetInvestment(ctx, inv.Id)
	if got.Status != models.InvestmentRefunded || got.RefundAmount == nil || !got.RefundAmount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Unexpected investment %+v", got)
	}
	if s := f.summary(t); !s.TotalInvested.IsZero() {
		t.Errorf("Expected invested total floored at 0, got %s", s.TotalInvested)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Metadata["refundId"] != "re_1" {
		t.Errorf("Expected refund entry with refund id, got %+v", f.audit.entries)
	}
}

func TestReconcile_RefundOfPendingInvestmentKeepsSummary(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	inv, _ := f.repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(50), Status: models.InvestmentPending})
	if err := f.repo.RecordSettlement(ctx, "u1", decimal.NewFromInt(100), repository.FieldLastInvestmentDate, testNow); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}
	f.provider.PutIntent(payments.Intent{Id: "pi_p", Metadata: map[string]string{"userId": "u1", "investmentId": inv.Id}})

	obj := `{"id":"ch_p","object":"charge","amount":5000,"amount_refunded":5000,"currency":"inr",
		"payment_intent":"pi_p","refunds":{"data":[{"id":"re_p"}]}}`
	if _, err := f.engine.Reconcile(ctx, event("evt_p", payments.EventChargeRefunded, obj)); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	got, _ := f.repo.GetInvestment(ctx, inv.Id)
	if got.Status != models.InvestmentRefunded {
		t.Errorf("Expected pending investment to be refunded, got %s", got.Status)
	}
	if s := f.summary(t); !s.TotalInvested.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected invested total untouched at 100, got %s", s.TotalInvested)
	}
}

func TestReconcile_RefundUnknownIntentFails(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()

	_, err := f.engine.Reconcile(context.Background(), event("evt_r", payments.EventChargeRefunded,
		`{"id":"ch_1","object":"charge","amount_refunded":100,"payment_intent":"pi_missing"}`))
	var failure *ReconciliationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected ReconciliationFailure, got %v", err)
	}
	if failure.EventId != "evt_r" || !errors.Is(err, payments.ErrNotFound) {
		t.Errorf("Unexpected failure %+v", failure)
	}
}

func TestReconcile_SubscriptionLifecycle(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	f.provider.PutCustomer(payments.Customer{Id: "cus_1", Metadata: map[string]string{"userId": "u1"}})
	created := `{"id":"sub_1","customer":"cus_1","status":"active","current_period_end":1775000000,
		"items":{"data":[{"price":{"unit_amount":100000,"currency":"inr","recurring":{"interval":"month"}}}]}}`

	ack, err := f.engine.Reconcile(ctx, event("evt_c1", payments.EventSubscriptionCreated, created))
	if err != nil || ack.Outcome != OutcomeApplied {
		t.Fatalf("Reconcile created = %+v, %v", ack, err)
	}
	ack, err = f.engine.Reconcile(ctx, event("evt_c2", payments.EventSubscriptionCreated, created))
	if err != nil || ack.Outcome != OutcomeNoop {
		t.Fatalf("Repeated created = %+v, %v", ack, err)
	}

	inv, err := f.repo.FindInvestmentBySubscription(ctx, "sub_1")
	if err != nil || inv == nil {
		t.Fatalf("FindInvestmentBySubscription = %v, %v", inv, err)
	}
	if !inv.Recurring || inv.Status != models.InvestmentActive || inv.Frequency != "month" || !inv.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Unexpected recurring investment %+v", inv)
	}
	if inv.NextPaymentDate == nil || inv.NextPaymentDate.Unix() != 1775000000 {
		t.Errorf("Unexpected next payment date %v", inv.NextPaymentDate)
	}

	updated := `{"id":"sub_1","customer":"cus_1","status":"active","current_period_end":1777600000,
		"items":{"data":[{"price":{"unit_amount":100000,"currency":"inr","recurring":{"interval":"week"}}}]}}`
	if _, err := f.engine.Reconcile(ctx, event("evt_u", payments.EventSubscriptionUpdated, updated)); err != nil {
		t.Fatalf("Reconcile updated failed: %v", err)
	}
	inv, _ = f.repo.FindInvestmentBySubscription(ctx, "sub_1")
	if inv.Frequency != "week" || inv.NextPaymentDate.Unix() != 1777600000 {
		t.Errorf("Expected schedule update, got %+v", inv)
	}

	// Cancel 30 days after creation.
	later := testNow.AddDate(0, 0, 30)
	f.engine.now = func() time.Time { return later }
	if _, err := f.engine.Reconcile(ctx, event("evt_d", payments.EventSubscriptionDeleted, `{"id":"sub_1","status":"canceled"}`)); err != nil {
		t.Fatalf("Reconcile deleted failed: %v", err)
	}
	inv, _ = f.repo.FindInvestmentBySubscription(ctx, "sub_1")
	want := accrual.RoundCurrency(accrual.Value(decimal.NewFromInt(1000), 30))
	if inv.Status != models.InvestmentCancelled || inv.ValueAtCancellation == nil || !inv.ValueAtCancellation.Equal(want) {
		t.Errorf("Expected cancelled at %s, got %+v", want, inv)
	}

	ack, err = f.engine.Reconcile(ctx, event("evt_d2", payments.EventSubscriptionDeleted, `{"id":"sub_1"}`))
	if err != nil || ack.Outcome != OutcomeNoop {
		t.Errorf("Repeated delete = %+v, %v", ack, err)
	}

	want2 := []string{"subscription_started/completed", "subscription_cancelled/completed"}
	if types := f.audit.types(); fmt.Sprint(types) != fmt.Sprint(want2) {
		t.Errorf("Expected audit %v, got %v", want2, types)
	}
}

func TestReconcile_UpdatedTerminatedCancels(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	inv, _ := f.repo.CreateInvestment(ctx, models.Investment{
		UserId: "u1", Amount: decimal.NewFromInt(500), Status: models.InvestmentActive,
		Recurring: true, SubscriptionId: "sub_9",
	})
	if _, err := f.engine.Reconcile(ctx, event("evt_u", payments.EventSubscriptionUpdated, `{"id":"sub_9","status":"unpaid"}`)); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	got, _ := f.repo.GetInvestment(ctx, inv.Id)
	if got.Status != models.InvestmentCancelled {
		t.Errorf("Expected cancelled, got %s", got.Status)
	}
}

func TestReconcile_IgnoresUnknownAndFlagsMalformed(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	ack, err := f.engine.Reconcile(ctx, event("evt_x", "invoice.finalized", `{"id":"in_1"}`))
	if err != nil || ack.Outcome != OutcomeIgnored {
		t.Errorf("Unknown type = %+v, %v", ack, err)
	}

	_, err = f.engine.Reconcile(ctx, event("evt_m", payments.EventPaymentIntentSucceeded, `"not an object"`))
	if !errors.Is(err, payments.ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestReconcile_SinkFailureDoesNotFail(t *testing.T) {
	f, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()
	f.sink.fail = true

	inv, _ := f.repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(10), Status: models.InvestmentPending})
	meta := fmt.Sprintf(`{"userId":"u1","investmentId":%q}`, inv.Id)
	if _, err := f.engine.Reconcile(ctx, event("evt_1", payments.EventPaymentIntentSucceeded, intentObject("pi_s", 1000, meta))); err != nil {
		t.Fatalf("Sink failure leaked into reconcile: %v", err)
	}
	if s := f.summary(t); !s.TotalInvested.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected 10 invested, got %s", s.TotalInvested)
	}
}
