package webhook

import (
	"context"
	"fmt"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"

	"go.uber.org/zap"
)

// ReplayReport summarizes a replay run
type ReplayReport struct {
	Replayed int
	Skipped  int
	Failed   int
}

// PendingErrors returns recorded failures that haven't been replayed yet.
func (g *Gateway) PendingErrors(ctx context.Context) ([]models.WebhookError, error) {
	all, err := g.errorLog.ListWebhookErrors(ctx)
	if err != nil {
		return nil, err
	}
	var pending []models.WebhookError
	for _, rec := range all {
		if rec.ReplayedAt == nil {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// Replay re-runs a recorded failure through reconciliation. Records are only
// written after the signature was verified, so the payload is parsed without
// a second check. The event id is already claimed in the ledger, so the
// ledger is bypassed.
func (g *Gateway) Replay(ctx context.Context, rec models.WebhookError) error {
	if rec.ReplayedAt != nil {
		return fmt.Errorf("webhook error %s already replayed", rec.Id)
	}
	ev, err := payments.ParseEvent([]byte(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to parse stored payload for %s: %w", rec.Id, err)
	}
	ack, err := g.reconcile(ctx, ev)
	if err != nil {
		return err
	}
	if err := g.errorLog.MarkWebhookErrorReplayed(ctx, rec.Id); err != nil {
		return fmt.Errorf("failed to mark %s replayed: %w", rec.Id, err)
	}
	zap.L().Info("Webhook error replayed",
		zap.String("error_id", rec.Id),
		zap.String("event_id", ev.Id),
		zap.String("outcome", ack.Outcome))
	return nil
}

// ReplayAll replays every pending failure, continuing past individual errors.
func (g *Gateway) ReplayAll(ctx context.Context) (ReplayReport, error) {
	pending, err := g.PendingErrors(ctx)
	if err != nil {
		return ReplayReport{}, err
	}
	var report ReplayReport
	for _, rec := range pending {
		if rec.Payload == "" {
			report.Skipped++
			continue
		}
		if err := g.Replay(ctx, rec); err != nil {
			zap.L().Warn("Replay failed",
				zap.String("error_id", rec.Id),
				zap.Error(err))
			report.Failed++
			continue
		}
		report.Replayed++
	}
	return report, nil
}
