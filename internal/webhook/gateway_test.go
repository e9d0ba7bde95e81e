package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"savium-invest-go/internal/database"
	"savium-invest-go/internal/ledger"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/reconcile"
	"savium-invest-go/internal/repository"

	"github.com/shopspring/decimal"
)

type fakeVerifier struct{}

// ConstructEvent accepts the signature "ok" and parses the payload.
func (fakeVerifier) ConstructEvent(payload []byte, signature string) (payments.Event, error) {
	if signature != "ok" {
		return payments.Event{}, payments.ErrInvalidSignature
	}
	return payments.ParseEvent(payload)
}

type fakeReconciler struct {
	calls  atomic.Int32
	err    error
	panic  bool
	cancel context.CancelFunc
}

func (f *fakeReconciler) Reconcile(ctx context.Context, ev payments.Event) (reconcile.Ack, error) {
	f.calls.Add(1)
	if f.panic {
		panic("nil map")
	}
	if f.cancel != nil {
		f.cancel()
		return reconcile.Ack{}, ctx.Err()
	}
	if f.err != nil {
		return reconcile.Ack{}, f.err
	}
	return reconcile.Ack{EventId: ev.Id, EventType: ev.Type, Outcome: reconcile.OutcomeApplied}, nil
}

func setupGateway(t *testing.T, verifier payments.Verifier, rec Reconciler) (*Gateway, *repository.Repository, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "webhook.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	repo := repository.New(db)
	return NewGateway(verifier, ledger.New(db), rec, repo), repo, db.Close
}

const payload = `{"id":"evt_1","type":"payment_intent.succeeded","created":1767225600,
	"data":{"object":{"id":"pi_1","object":"payment_intent","amount":1000,"metadata":{"userId":"u1"}}}}`

func TestHandle_Rejections(t *testing.T) {
	rec := &fakeReconciler{}
	g, repo, cleanup := setupGateway(t, fakeVerifier{}, rec)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name      string
		raw       string
		signature string
		message   string
	}{
		{"missing signature", payload, "", msgInvalidSignature},
		{"bad signature", payload, "forged", msgInvalidSignature},
		{"malformed payload", `{"nope":true}`, "ok", msgInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := g.Handle(ctx, []byte(tt.raw), tt.signature)
			if res.Status != StatusRejected || res.HTTPStatus != http.StatusBadRequest || res.Message != tt.message {
				t.Errorf("Unexpected result %+v", res)
			}
		})
	}

	if rec.calls.Load() != 0 {
		t.Errorf("Rejected deliveries must not reach reconciliation")
	}
	if errs, _ := repo.ListWebhookErrors(ctx); len(errs) != 0 {
		t.Errorf("Rejected deliveries must not be error-logged, got %d", len(errs))
	}
	processed, err := g.ledger.HasProcessed(ctx, "evt_1")
	if err != nil {
		t.Fatalf("HasProcessed failed: %v", err)
	}
	if processed {
		t.Error("Rejected deliveries must not be marked processed")
	}

	// A valid delivery afterwards is still treated as new.
	if res := g.Handle(ctx, []byte(payload), "ok"); res.Status != StatusSuccess {
		t.Errorf("Expected first valid delivery to succeed, got %+v", res)
	}
}

func TestHandle_DeduplicatesByEventId(t *testing.T) {
	rec := &fakeReconciler{}
	g, _, cleanup := setupGateway(t, fakeVerifier{}, rec)
	defer cleanup()
	ctx := context.Background()

	first := g.Handle(ctx, []byte(payload), "ok")
	if first.Status != StatusSuccess || first.EventType != payments.EventPaymentIntentSucceeded {
		t.Fatalf("Unexpected first result %+v", first)
	}
	second := g.Handle(ctx, []byte(payload), "ok")
	if second.Status != StatusDuplicate || second.HTTPStatus != http.StatusOK {
		t.Fatalf("Unexpected second result %+v", second)
	}
	if resp := second.Response(); resp.Status != StatusSuccess || resp.Message != msgAlreadyProcessed {
		t.Errorf("Unexpected duplicate response %+v", resp)
	}
	if rec.calls.Load() != 1 {
		t.Errorf("Expected 1 reconcile call, got %d", rec.calls.Load())
	}
}

func TestHandle_ConcurrentDeliveriesReconcileOnce(t *testing.T) {
	rec := &fakeReconciler{}
	g, _, cleanup := setupGateway(t, fakeVerifier{}, rec)
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := g.Handle(context.Background(), []byte(payload), "ok"); res.HTTPStatus != http.StatusOK {
				t.Errorf("Unexpected result %+v", res)
			}
		}()
	}
	wg.Wait()

	if rec.calls.Load() != 1 {
		t.Errorf("Expected exactly 1 reconcile call, got %d", rec.calls.Load())
	}
}

func TestHandle_FailuresAreLoggedAndAcknowledged(t *testing.T) {
	tests := []struct {
		name string
		rec  *fakeReconciler
	}{
		{"error", &fakeReconciler{err: errors.New("store unavailable")}},
		{"panic", &fakeReconciler{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, repo, cleanup := setupGateway(t, fakeVerifier{}, tt.rec)
			defer cleanup()
			ctx := context.Background()

			res := g.Handle(ctx, []byte(payload), "ok")
			if res.Status != StatusError || res.HTTPStatus != http.StatusOK || res.Message == "" {
				t.Fatalf("Unexpected result %+v", res)
			}
			if resp := res.Response(); resp.Status != StatusError {
				t.Errorf("Expected error body, got %+v", resp)
			}

			errs, err := repo.ListWebhookErrors(ctx)
			if err != nil {
				t.Fatalf("ListWebhookErrors failed: %v", err)
			}
			if len(errs) != 1 {
				t.Fatalf("Expected 1 error record, got %d", len(errs))
			}
			if errs[0].EventId != "evt_1" || errs[0].Payload != payload || errs[0].Signature != "ok" || errs[0].Id == "" {
				t.Errorf("Unexpected error record %+v", errs[0])
			}
		})
	}
}

func TestHandle_ErrorRecordSurvivesCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &fakeReconciler{cancel: cancel}
	g, repo, cleanup := setupGateway(t, fakeVerifier{}, rec)
	defer cleanup()

	res := g.Handle(ctx, []byte(payload), "ok")
	if res.Status != StatusError || res.HTTPStatus != http.StatusOK {
		t.Fatalf("Unexpected result %+v", res)
	}

	bg := context.Background()
	errs, err := repo.ListWebhookErrors(bg)
	if err != nil {
		t.Fatalf("ListWebhookErrors failed: %v", err)
	}
	if len(errs) != 1 || errs[0].EventId != "evt_1" {
		t.Fatalf("Expected the failure to be recorded, got %+v", errs)
	}

	if again := g.Handle(bg, []byte(payload), "ok"); again.Status != StatusDuplicate {
		t.Errorf("Expected redelivery to be a duplicate, got %+v", again)
	}

	rec.cancel = nil
	report, err := g.ReplayAll(bg)
	if err != nil {
		t.Fatalf("ReplayAll failed: %v", err)
	}
	if report.Replayed != 1 {
		t.Errorf("Expected the recorded failure to replay, got %+v", report)
	}
}

func TestReplayAll(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("transient")}
	g, repo, cleanup := setupGateway(t, fakeVerifier{}, rec)
	defer cleanup()
	ctx := context.Background()

	g.Handle(ctx, []byte(payload), "ok")
	rec.err = nil

	report, err := g.ReplayAll(ctx)
	if err != nil {
		t.Fatalf("ReplayAll failed: %v", err)
	}
	if report.Replayed != 1 || report.Failed != 0 {
		t.Errorf("Unexpected report %+v", report)
	}
	if rec.calls.Load() != 2 {
		t.Errorf("Expected reconcile to run again on replay, got %d calls", rec.calls.Load())
	}

	pending, _ := g.PendingErrors(ctx)
	if len(pending) != 0 {
		t.Errorf("Expected no pending errors after replay, got %d", len(pending))
	}
	all, _ := repo.ListWebhookErrors(ctx)
	if len(all) != 1 || all[0].ReplayedAt == nil {
		t.Errorf("Expected record stamped replayed, got %+v", all)
	}

	report, _ = g.ReplayAll(ctx)
	if report.Replayed != 0 {
		t.Errorf("Replayed records must be skipped, got %+v", report)
	}
}

func sign(raw []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, raw)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHandle_SignedDeliveriesActivateInvestmentOnce(t *testing.T) {
	const secret = "whsec_gateway"
	verifier, err := payments.NewSignatureVerifier(secret, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewSignatureVerifier failed: %v", err)
	}

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "e2e.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	repo := repository.New(db)
	engine := reconcile.NewEngine(reconcile.Config{Repository: repo, Provider: payments.NewMemoryProvider()})
	g := NewGateway(verifier, ledger.New(db), engine, repo)

	if _, _, err := repo.UpsertUser(ctx, "u1", "u1@example.com", "U One"); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	inv, err := repo.CreateInvestment(ctx, models.Investment{UserId: "u1", Amount: decimal.NewFromInt(2500), Status: models.InvestmentPending})
	if err != nil {
		t.Fatalf("CreateInvestment failed: %v", err)
	}

	deliveries := []string{
		fmt.Sprintf(`{"id":"evt_pi","type":"payment_intent.succeeded","data":{"object":{"id":"pi_7","object":"payment_intent","amount":250000,"currency":"inr","metadata":{"userId":"u1","investmentId":%q}}}}`, inv.Id),
		fmt.Sprintf(`{"id":"evt_ch","type":"charge.succeeded","data":{"object":{"id":"ch_7","object":"charge","amount":250000,"currency":"inr","payment_intent":"pi_7","metadata":{"userId":"u1","investmentId":%q}}}}`, inv.Id),
	}
	for _, d := range deliveries {
		raw := []byte(d)
		for i := 0; i < 2; i++ {
			if res := g.Handle(ctx, raw, sign(raw, secret)); res.HTTPStatus != http.StatusOK || res.Status == StatusError {
				t.Fatalf("Unexpected result %+v", res)
			}
		}
	}

	user, err := repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !user.FinancialInfo.TotalInvested.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected invested total 2500, got %s", user.FinancialInfo.TotalInvested)
	}
	got, _ := repo.GetInvestment(ctx, inv.Id)
	if got.Status != models.InvestmentActive {
		t.Errorf("Expected active, got %s", got.Status)
	}
}
