// Package webhook authenticates payment provider deliveries, deduplicates
// them by event id, and hands them to reconciliation.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"savium-invest-go/internal/ledger"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/reconcile"

	"go.uber.org/zap"
)

// Result statuses
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
	StatusRejected  = "rejected"
)

const (
	msgInvalidSignature = "Invalid signature"
	msgInvalidPayload   = "Invalid payload"
	msgAlreadyProcessed = "Event already processed"
)

const errorLogTimeout = 10 * time.Second

// Reconciler applies a verified event
type Reconciler interface {
	Reconcile(ctx context.Context, ev payments.Event) (reconcile.Ack, error)
}

// EventLedger records which provider events were taken
type EventLedger interface {
	HasProcessed(ctx context.Context, eventId string) (bool, error)
	MarkProcessed(ctx context.Context, eventId, eventType string, snapshot json.RawMessage) error
}

// ErrorLog keeps failed deliveries for inspection and replay
type ErrorLog interface {
	RecordWebhookError(ctx context.Context, rec models.WebhookError) (models.WebhookError, error)
	ListWebhookErrors(ctx context.Context) ([]models.WebhookError, error)
	MarkWebhookErrorReplayed(ctx context.Context, id string) error
}

// Result is the outcome of one delivery
type Result struct {
	Status     string
	EventId    string
	EventType  string
	Message    string
	HTTPStatus int
}

// Response renders the body returned to the provider. Duplicates are
// reported as successes so the provider stops retrying.
func (r Result) Response() models.WebhookResponse {
	status := r.Status
	if status == StatusDuplicate {
		status = StatusSuccess
	}
	return models.WebhookResponse{Status: status, EventType: r.EventType, Message: r.Message}
}

type Gateway struct {
	verifier   payments.Verifier
	ledger     EventLedger
	reconciler Reconciler
	errorLog   ErrorLog
}

func NewGateway(verifier payments.Verifier, events EventLedger, reconciler Reconciler, errorLog ErrorLog) *Gateway {
	return &Gateway{
		verifier:   verifier,
		ledger:     events,
		reconciler: reconciler,
		errorLog:   errorLog,
	}
}

// Handle processes a raw delivery. Only unauthenticated or undecodable
// deliveries are rejected; every other failure is logged and acknowledged.
func (g *Gateway) Handle(ctx context.Context, raw []byte, signature string) Result {
	if signature == "" {
		zap.L().Warn("Webhook delivery without signature")
		return rejected(msgInvalidSignature)
	}

	ev, err := g.verifier.ConstructEvent(raw, signature)
	if err != nil {
		if errors.Is(err, payments.ErrMalformedPayload) {
			zap.L().Warn("Webhook payload could not be decoded", zap.Error(err))
			return rejected(msgInvalidPayload)
		}
		zap.L().Warn("Webhook signature verification failed", zap.Error(err))
		return rejected(msgInvalidSignature)
	}

	processed, err := g.ledger.HasProcessed(ctx, ev.Id)
	if err != nil {
		return g.fail(ctx, ev, raw, signature, fmt.Errorf("failed to check event ledger: %w", err))
	}
	if processed {
		return duplicate(ev)
	}

	if err := g.ledger.MarkProcessed(ctx, ev.Id, ev.Type, ev.Object); err != nil {
		if errors.Is(err, ledger.ErrAlreadyProcessed) {
			return duplicate(ev)
		}
		return g.fail(ctx, ev, raw, signature, fmt.Errorf("failed to record event: %w", err))
	}

	if _, err := g.reconcile(ctx, ev); err != nil {
		return g.fail(ctx, ev, raw, signature, err)
	}

	zap.L().Info("Webhook processed",
		zap.String("event_id", ev.Id),
		zap.String("event_type", ev.Type))
	return Result{Status: StatusSuccess, EventId: ev.Id, EventType: ev.Type, HTTPStatus: http.StatusOK}
}

// reconcile runs the reconciler, converting a panic into an error.
func (g *Gateway) reconcile(ctx context.Context, ev payments.Event) (ack reconcile.Ack, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Reconciliation panicked",
				zap.String("event_id", ev.Id),
				zap.Any("panic", r))
			err = fmt.Errorf("panic during reconciliation: %v", r)
		}
	}()
	return g.reconciler.Reconcile(ctx, ev)
}

func (g *Gateway) fail(ctx context.Context, ev payments.Event, raw []byte, signature string, cause error) Result {
	zap.L().Error("Webhook processing failed",
		zap.String("event_id", ev.Id),
		zap.String("event_type", ev.Type),
		zap.Error(cause))

	// The request context may already be done, the record must still land.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorLogTimeout)
	defer cancel()

	rec, err := g.errorLog.RecordWebhookError(recordCtx, models.WebhookError{
		Error:     cause.Error(),
		Payload:   string(raw),
		Signature: signature,
		EventId:   ev.Id,
		EventType: ev.Type,
	})
	if err != nil {
		zap.L().Error("Failed to record webhook error",
			zap.String("event_id", ev.Id),
			zap.Error(err))
	} else {
		zap.L().Info("Webhook error recorded", zap.String("error_id", rec.Id))
	}

	return Result{
		Status:     StatusError,
		EventId:    ev.Id,
		EventType:  ev.Type,
		Message:    cause.Error(),
		HTTPStatus: http.StatusOK,
	}
}

func rejected(msg string) Result {
	return Result{Status: StatusRejected, Message: msg, HTTPStatus: http.StatusBadRequest}
}

func duplicate(ev payments.Event) Result {
	zap.L().Info("Event already processed",
		zap.String("event_id", ev.Id),
		zap.String("event_type", ev.Type))
	return Result{
		Status:     StatusDuplicate,
		EventId:    ev.Id,
		EventType:  ev.Type,
		Message:    msgAlreadyProcessed,
		HTTPStatus: http.StatusOK,
	}
}

var _ EventLedger = (*ledger.EventLedger)(nil)
