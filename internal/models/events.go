package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement kinds
const (
	SettlementDeposit               = "deposit"
	SettlementInvestment            = "investment"
	SettlementRefund                = "refund"
	SettlementSubscriptionStarted   = "subscription_started"
	SettlementSubscriptionCancelled = "subscription_cancelled"
)

// Settlement describes a money movement that reconciliation applied. It is
// fanned out to optional sinks such as a ledger mirror or a message bus.
type Settlement struct {
	EventId         string          `json:"eventId"`
	EventType       string          `json:"eventType"`
	Kind            string          `json:"kind"`
	UserId          string          `json:"userId"`
	RecordId        string          `json:"recordId,omitempty"`
	PaymentIntentId string          `json:"paymentIntentId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OccurredAt      time.Time       `json:"occurredAt"`
}
