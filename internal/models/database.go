package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Investment statuses. Transitions only move forward.
const (
	InvestmentPending   = "pending"
	InvestmentActive    = "active"
	InvestmentFailed    = "failed"
	InvestmentRefunded  = "refunded"
	InvestmentCancelled = "cancelled"
)

// Deposit statuses
const (
	DepositPending   = "pending"
	DepositCompleted = "completed"
)

// Withdrawal statuses
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalRejected   = "rejected"
)

// Transaction log entry types
const (
	TxTypeInvestment            = "investment"
	TxTypeDeposit               = "deposit"
	TxTypeWithdrawal            = "withdrawal"
	TxTypePayment               = "payment"
	TxTypeRefund                = "refund"
	TxTypeSubscriptionStarted   = "subscription_started"
	TxTypeSubscriptionCancelled = "subscription_cancelled"
)

// Transaction log entry statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Deposit purpose carried in payment metadata
const PurposeAccountDeposit = "account_deposit"

// FinancialSummary is the denormalized per-user cache of portfolio figures.
// It is never authoritative; the portfolio read path recomputes valuations.
type FinancialSummary struct {
	TotalInvested      decimal.Decimal `json:"totalInvested"`
	TotalReturns       decimal.Decimal `json:"totalReturns"`
	PortfolioValue     decimal.Decimal `json:"portfolioValue"`
	AccountConnected   bool            `json:"accountConnected"`
	LastDepositDate    *time.Time      `json:"lastDepositDate,omitempty"`
	LastInvestmentDate *time.Time      `json:"lastInvestmentDate,omitempty"`
}

// User represents a user profile
type User struct {
	Id            string           `json:"userId"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	AccountStatus string           `json:"accountStatus"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastLogin     *time.Time       `json:"lastLogin,omitempty"`
	FinancialInfo FinancialSummary `json:"financialInfo"`
}

// PaymentDetails records how an investment was paid
type PaymentDetails struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	PaymentIntentId string          `json:"paymentIntentId"`
}

// Investment is a principal placed by a user. Amount never changes after creation.
type Investment struct {
	Id                  string           `json:"investmentId"`
	UserId              string           `json:"userId"`
	Amount              decimal.Decimal  `json:"amount"`
	Timestamp           time.Time        `json:"timestamp"`
	Status              string           `json:"status"`
	Recurring           bool             `json:"recurring"`
	Frequency           string           `json:"frequency,omitempty"`
	NextPaymentDate     *time.Time       `json:"nextPaymentDate,omitempty"`
	SubscriptionId      string           `json:"subscriptionId,omitempty"`
	PaymentId           string           `json:"paymentId,omitempty"`
	PaymentTimestamp    *time.Time       `json:"paymentTimestamp,omitempty"`
	PaymentDetails      *PaymentDetails  `json:"paymentDetails,omitempty"`
	FailureReason       string           `json:"failureReason,omitempty"`
	FailureCode         string           `json:"failureCode,omitempty"`
	LastAttempt         *time.Time       `json:"lastAttempt,omitempty"`
	RefundedAt          *time.Time       `json:"refundedAt,omitempty"`
	RefundAmount        *decimal.Decimal `json:"refundAmount,omitempty"`
	CancelledAt         *time.Time       `json:"cancelledAt,omitempty"`
	ValueAtCancellation *decimal.Decimal `json:"valueAtCancellation,omitempty"`
}

// Deposit is a top-up awaiting or having received settlement
type Deposit struct {
	Id              string          `json:"depositId"`
	UserId          string          `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentIntentId string          `json:"paymentIntentId"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

// Withdrawal is a request to move funds out
type Withdrawal struct {
	Id          string          `json:"withdrawalId"`
	UserId      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	AccountId   string          `json:"accountId"`
	Status      string          `json:"status"`
	RequestedAt time.Time       `json:"requestedAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// TransactionLogEntry is an append-only audit record
type TransactionLogEntry struct {
	Id        string            `json:"transactionId"`
	UserId    string            `json:"userId"`
	Type      string            `json:"type"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ProcessedEvent marks a provider event id as consumed
type ProcessedEvent struct {
	EventId     string          `json:"eventId"`
	Type        string          `json:"type"`
	ProcessedAt time.Time       `json:"processedAt"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// WebhookError captures a webhook that failed after verification
type WebhookError struct {
	Id         string     `json:"errorId"`
	Timestamp  time.Time  `json:"timestamp"`
	Error      string     `json:"error"`
	Payload    string     `json:"payload"`
	Signature  string     `json:"signature"`
	EventId    string     `json:"eventId,omitempty"`
	EventType  string     `json:"eventType,omitempty"`
	ReplayedAt *time.Time `json:"replayedAt,omitempty"`
}
