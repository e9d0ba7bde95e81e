package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrInvalidPath     = errors.New("invalid field path")
	ErrNotNumeric      = errors.New("field is not numeric")
	ErrConditionFailed = errors.New("update condition not met")
)

// Collection names
const (
	CollectionUsers         = "users"
	CollectionInvestments   = "investments"
	CollectionDeposits      = "deposits"
	CollectionWithdrawals   = "withdrawals"
	CollectionTransactions  = "transactions"
	CollectionWebhookEvents = "webhookEvents"
	CollectionWebhookErrors = "webhookErrors"
)

// Document is a stored JSON object. Data keys are the top-level fields.
type Document struct {
	Id        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter matches documents whose field (dotted path allowed) equals Value.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Condition holds when the field currently equals one of OneOf.
type Condition struct {
	Field string
	OneOf []any
}

// FieldIn builds a condition for UpdateIf.
func FieldIn(field string, values ...any) Condition {
	return Condition{Field: field, OneOf: values}
}

// DocumentStore is the contract every persistence backend must satisfy.
//
// Update and Increment accept dotted paths ("financialInfo.totalInvested")
// and create intermediate objects as needed. Values passed to Set, Create and
// Update may be any JSON-marshalable Go value, including structs.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Set writes the whole document, replacing it if present.
	Set(ctx context.Context, collection, id string, data any) error
	// Create inserts only if absent; otherwise it returns ErrAlreadyExists.
	Create(ctx context.Context, collection, id string, data any) error
	// Add inserts under a generated id and returns it.
	Add(ctx context.Context, collection string, data any) (string, error)
	// Update merges the given field paths into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateIf merges fields only when every condition holds at write time,
	// otherwise it returns ErrConditionFailed and leaves the document as is.
	UpdateIf(ctx context.Context, collection, id string, conds []Condition, fields map[string]any) error
	// Increment atomically adds each delta to its numeric field, clamping
	// results at zero when floorAtZero is set. Missing fields count as zero.
	// The extra fields are merged in the same write. It returns the new values.
	Increment(ctx context.Context, collection, id string, deltas map[string]decimal.Decimal, floorAtZero bool, extra map[string]any) (map[string]decimal.Decimal, error)

	Close()
}
