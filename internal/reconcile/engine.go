/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcomes reported in an Ack
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeIgnored = "ignored"
)

// Ack acknowledges a reconciled event.
type Ack struct {
	EventId   string
	EventType string
	Outcome   string
}

// ReconciliationFailure wraps the cause of a failed handler.
type ReconciliationFailure struct {
	EventId   string
	EventType string
	Err       error
}

func (f *ReconciliationFailure) Error() string {
	return fmt.Sprintf("reconcile %s (%s): %v", f.EventType, f.EventId, f.Err)
}

func (f *ReconciliationFailure) Unwrap() error { return f.Err }

// AuditSubmitter accepts transaction log entries without blocking the caller.
type AuditSubmitter interface {
	Submit(entry models.TransactionLogEntry)
}

// SettlementSink receives settled money movements. Sink failures are logged
// and never fail reconciliation.
type SettlementSink interface {
	RecordSettlement(ctx context.Context, st models.Settlement) error
}

// Config contains the collaborators an Engine needs
type Config struct {
	Repository *repository.Repository
	Provider   payments.Provider
	Audit      AuditSubmitter
	Sinks      []SettlementSink
	Clock      func() time.Time
}

// Engine applies verified provider events to investments, deposits, and user summaries.
type Engine struct {
	repo     *repository.Repository
	provider payments.Provider
	audit    AuditSubmitter
	sinks    []SettlementSink
	now      func() time.Time
}

func NewEngine(cfg Config) *Engine {
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		repo:     cfg.Repository,
		provider: cfg.Provider,
		audit:    cfg.Audit,
		sinks:    cfg.Sinks,
		now:      now,
	}
}

// Reconcile dispatches an event to its handler. Unknown event types are
// acknowledged with no effect.
func (e *Engine) Reconcile(ctx context.Context, ev payments.Event) (Ack, error) {
	var (
		outcome string
		err     error
	)
	switch ev.Type {
	case payments.EventPaymentIntentSucceeded, payments.EventChargeSucceeded:
		outcome, err = e.handleSucceeded(ctx, ev)
	case payments.EventPaymentFailed:
		outcome, err = e.handleFailed(ctx, ev)
	case payments.EventChargeRefunded:
		outcome, err = e.handleRefund(ctx, ev)
	case payments.EventSubscriptionCreated:
		outcome, err = e.handleSubscriptionCreated(ctx, ev)
	case payments.EventSubscriptionUpdated:
		outcome, err = e.handleSubscriptionUpdated(ctx, ev)
	case payments.EventSubscriptionDeleted:
		outcome, err = e.handleSubscriptionDeleted(ctx, ev)
	default:
		zap.L().Debug("Ignoring unhandled event type",
			zap.String("event_id", ev.Id),
			zap.String("event_type", ev.Type))
		outcome = OutcomeIgnored
	}

	if err != nil {
		return Ack{}, &ReconciliationFailure{EventId: ev.Id, EventType: ev.Type, Err: err}
	}
	return Ack{EventId: ev.Id, EventType: ev.Type, Outcome: outcome}, nil
}

// record submits a transaction log entry to the audit writer.
func (e *Engine) record(userId, txType, status string, amount decimal.Decimal, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.Submit(models.TransactionLogEntry{
		UserId:    userId,
		Type:      txType,
		Amount:    amount,
		Status:    status,
		Timestamp: e.now(),
		Metadata:  compact(metadata),
	})
}

// settle credits the user's summary and fans the settlement out to sinks.
func (e *Engine) settle(ctx context.Context, st models.Settlement, dateField string) {
	err := e.repo.RecordSettlement(ctx, st.UserId, st.Amount, dateField, st.OccurredAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("Settlement for unknown user, summary not updated",
				zap.String("user_id", st.UserId),
				zap.String("event_id", st.EventId))
		} else {
			zap.L().Error("Failed to update user summary",
				zap.String("user_id", st.UserId),
				zap.String("event_id", st.EventId),
				zap.Error(err))
		}
	}
	e.publish(ctx, st)
}

func (e *Engine) publish(ctx context.Context, st models.Settlement) {
	for _, sink := range e.sinks {
		if err := sink.RecordSettlement(ctx, st); err != nil {
			zap.L().Warn("Settlement sink failed",
				zap.String("event_id", st.EventId),
				zap.String("kind", st.Kind),
				zap.Error(err))
		}
	}
}

// compact drops empty metadata values.
func compact(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
