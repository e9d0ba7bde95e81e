package formance

import (
	"context"
	"fmt"
	"time"

	"savium-invest-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so each ledger transaction is self-describing.
// ---------------------------------------------------------------------------

const numscriptSettlementReceived = `vars {
  asset $asset
  number $amount
  account $user_id
  string $event_id
  string $event_type
  string $kind
  string $record_id
  string $payment_intent_id
  string $amount_human
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id:invested
)

set_tx_meta("event_id", $event_id)
set_tx_meta("event_type", $event_type)
set_tx_meta("kind", $kind)
set_tx_meta("record_id", $record_id)
set_tx_meta("payment_intent_id", $payment_intent_id)
set_tx_meta("amount_human", $amount_human)
`

// Refunds may exceed what the mirror has seen (e.g. the mirror was enabled
// after the original payment settled).
const numscriptSettlementRefunded = `vars {
  asset $asset
  number $amount
  account $user_id
  string $event_id
  string $event_type
  string $kind
  string $record_id
  string $payment_intent_id
  string $amount_human
}

send [$asset $amount] (
  source = @users:$user_id:invested allowing unbounded overdraft
  destination = @world
)

set_tx_meta("event_id", $event_id)
set_tx_meta("event_type", $event_type)
set_tx_meta("kind", $kind)
set_tx_meta("record_id", $record_id)
set_tx_meta("payment_intent_id", $payment_intent_id)
set_tx_meta("amount_human", $amount_human)
`

// LedgerEntry is a settlement as recorded in the ledger.
type LedgerEntry struct {
	Reference string
	Kind      string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// RecordSettlement posts a settlement to the user's invested account. The
// reference is derived from the event id so redelivered events are no-ops.
func (s *Service) RecordSettlement(ctx context.Context, st models.Settlement) error {
	script, ok := settlementScript(st.Kind)
	if !ok {
		zap.L().Debug("Settlement kind not mirrored", zap.String("kind", st.Kind))
		return nil
	}
	if !st.Amount.IsPositive() {
		return nil
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(settlementReference(st)),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":             formanceAsset(st.Currency),
				"amount":            toSmallestUnit(st.Amount, st.Currency),
				"user_id":           st.UserId,
				"event_id":          st.EventId,
				"event_type":        st.EventType,
				"kind":              st.Kind,
				"record_id":         st.RecordId,
				"payment_intent_id": st.PaymentIntentId,
				"amount_human":      st.Amount.String(),
			},
		},
	}
	if !st.OccurredAt.IsZero() {
		ts := st.OccurredAt
		postTx.Timestamp = &ts
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error recording settlement: %w", err)
	}

	zap.L().Info("Settlement recorded in Formance",
		zap.String("user_id", st.UserId),
		zap.String("kind", st.Kind),
		zap.String("amount", st.Amount.String()),
		zap.String("event_id", st.EventId))
	return nil
}

// ListSettlements returns the most recent ledger entries for a user, newest first.
func (s *Service) ListSettlements(ctx context.Context, userId string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	addr := userAccount(userId)
	pageSize := int64(limit)

	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$or": []any{
				map[string]any{"$match": map[string]any{"source": addr}},
				map[string]any{"$match": map[string]any{"destination": addr}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var result []LedgerEntry
	for _, tx := range resp.V2TransactionsCursorResponse.Cursor.Data {
		// Derive signed amount from postings.
		amt := decimal.Zero
		for _, p := range tx.Postings {
			pAmt := bigIntToDecimal(p.Amount, assetSymbol(p.Asset))
			if p.Source == addr {
				amt = amt.Sub(pAmt)
			} else if p.Destination == addr {
				amt = amt.Add(pAmt)
			}
		}

		ref := ""
		if tx.Reference != nil {
			ref = *tx.Reference
		}
		result = append(result, LedgerEntry{
			Reference: ref,
			Kind:      tx.Metadata["kind"],
			Amount:    amt,
			Timestamp: tx.Timestamp,
		})
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func settlementScript(kind string) (string, bool) {
	switch kind {
	case models.SettlementDeposit, models.SettlementInvestment:
		return numscriptSettlementReceived, true
	case models.SettlementRefund:
		return numscriptSettlementRefunded, true
	default:
		return "", false
	}
}

func settlementReference(st models.Settlement) string {
	return st.EventId + "-" + st.Kind
}

func toSmallestUnit(amount decimal.Decimal, currency string) string {
	return amount.Shift(int32(precisionFor(currency))).Truncate(0).BigInt().String()
}
