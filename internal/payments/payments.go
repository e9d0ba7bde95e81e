// Package payments talks to the card payment provider and decodes its webhook events.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNotFound         = errors.New("payment object not found")
)

// Event types the reconciliation engine reacts to
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventChargeSucceeded        = "charge.succeeded"
	EventPaymentFailed          = "payment_intent.payment_failed"
	EventChargeRefunded         = "charge.refunded"
	EventSubscriptionCreated    = "customer.subscription.created"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
)

// Event is a verified provider notification. Object is the raw data.object payload.
type Event struct {
	Id      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Verifier authenticates and decodes webhook deliveries.
type Verifier interface {
	ConstructEvent(payload []byte, signature string) (Event, error)
}

// Provider is the outbound payment API surface the service needs.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}

type IntentParams struct {
	Amount       int64
	Currency     string
	Description  string
	ReceiptEmail string
	Metadata     map[string]string
}

type Intent struct {
	Id           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

type Customer struct {
	Id       string
	Email    string
	Metadata map[string]string
}

// ExpandableID decodes a field the provider sends either as an id string or
// as an expanded object carrying an id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = ExpandableID(id)
		return nil
	}
	var obj struct {
		Id string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.Id)
	return nil
}

type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentObject covers the fields shared by payment intents and charges.
type PaymentObject struct {
	Id                 string            `json:"id"`
	Object             string            `json:"object"`
	Amount             int64             `json:"amount"`
	AmountRefunded     int64             `json:"amount_refunded"`
	Currency           string            `json:"currency"`
	Metadata           map[string]string `json:"metadata"`
	PaymentIntent      ExpandableID      `json:"payment_intent"`
	PaymentMethod      ExpandableID      `json:"payment_method"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	LastPaymentError   *PaymentError     `json:"last_payment_error"`
	Refunds            *struct {
		Data []struct {
			Id string `json:"id"`
		} `json:"data"`
	} `json:"refunds"`
}

// IntentId returns the payment intent this object belongs to.
func (p PaymentObject) IntentId() string {
	if p.Object == "payment_intent" {
		return p.Id
	}
	return string(p.PaymentIntent)
}

// Method names how the payment was made, best effort.
func (p PaymentObject) Method() string {
	if p.PaymentMethod != "" {
		return string(p.PaymentMethod)
	}
	if len(p.PaymentMethodTypes) > 0 {
		return p.PaymentMethodTypes[0]
	}
	return ""
}

// LatestRefundId returns the newest refund id on a charge, if any.
func (p PaymentObject) LatestRefundId() string {
	if p.Refunds == nil || len(p.Refunds.Data) == 0 {
		return ""
	}
	return p.Refunds.Data[0].Id
}

type Subscription struct {
	Id               string            `json:"id"`
	Customer         ExpandableID      `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	CanceledAt       int64             `json:"canceled_at"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []struct {
			Price struct {
				UnitAmount int64  `json:"unit_amount"`
				Currency   string `json:"currency"`
				Recurring  *struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// UnitAmount returns the first item's price in minor units.
func (s Subscription) UnitAmount() int64 {
	if len(s.Items.Data) == 0 {
		return 0
	}
	return s.Items.Data[0].Price.UnitAmount
}

// Interval returns the first item's billing interval.
func (s Subscription) Interval() string {
	if len(s.Items.Data) == 0 || s.Items.Data[0].Price.Recurring == nil {
		return ""
	}
	return s.Items.Data[0].Price.Recurring.Interval
}

// Currency returns the first item's price currency.
func (s Subscription) Currency() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.Currency
}

// PeriodEnd returns the end of the current billing period, or nil.
func (s Subscription) PeriodEnd() *time.Time {
	if s.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
	return &t
}

// IsTerminated reports a status after which no further billing happens.
func (s Subscription) IsTerminated() bool {
	switch s.Status {
	case "canceled", "incomplete_expired", "unpaid":
		return true
	}
	return false
}

// PaymentObject decodes the event object as a payment intent or charge.
func (e Event) PaymentObject() (PaymentObject, error) {
	var p PaymentObject
	if err := json.Unmarshal(e.Object, &p); err != nil {
		return PaymentObject{}, fmt.Errorf("%w: %s object: %v", ErrMalformedPayload, e.Type, err)
	}
	return p, nil
}

// Subscription decodes the event object as a subscription.
func (e Event) Subscription() (Subscription, error) {
	var s Subscription
	if err := json.Unmarshal(e.Object, &s); err != nil {
		return Subscription{}, fmt.Errorf("%w: %s object: %v", ErrMalformedPayload, e.Type, err)
	}
	return s, nil
}

// ParseEvent decodes a provider event envelope without checking a signature.
func ParseEvent(payload []byte) (Event, error) {
	var envelope struct {
		Id      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.Id == "" || envelope.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}
	ev := Event{
		Id:     envelope.Id,
		Type:   envelope.Type,
		Object: envelope.Data.Object,
	}
	if envelope.Created > 0 {
		ev.Created = time.Unix(envelope.Created, 0).UTC()
	}
	return ev, nil
}

// currencyExponents maps ISO currency codes to their minor unit exponent.
// Unlisted currencies use two decimals.
var currencyExponents = map[string]int{
	"INR": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
}

// CurrencyExponent returns the number of minor unit digits for currency.
func CurrencyExponent(currency string) int {
	if e, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// MinorToMajor converts an amount in minor units (cents, paise) to a decimal.
func MinorToMajor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -int32(CurrencyExponent(currency)))
}
