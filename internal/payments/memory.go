package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var _ Provider = (*MemoryProvider)(nil)

// MemoryProvider is an in-process Provider for local runs without provider
// credentials and for tests.
type MemoryProvider struct {
	mu        sync.Mutex
	intents   map[string]*Intent
	customers map[string]*Customer
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		intents:   make(map[string]*Intent),
		customers: make(map[string]*Customer),
	}
}

func (m *MemoryProvider) CreatePaymentIntent(_ context.Context, p IntentParams) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "pi_" + uuid.New().String()
	intent := &Intent{
		Id:           id,
		ClientSecret: id + "_secret_" + uuid.New().String()[:8],
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       "requires_payment_method",
		Metadata:     copyMetadata(p.Metadata),
	}
	m.intents[id] = intent
	out := *intent
	return &out, nil
}

func (m *MemoryProvider) GetPaymentIntent(_ context.Context, id string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment intent %s", ErrNotFound, id)
	}
	out := *intent
	out.Metadata = copyMetadata(intent.Metadata)
	return &out, nil
}

func (m *MemoryProvider) GetCustomer(_ context.Context, id string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	out := *c
	out.Metadata = copyMetadata(c.Metadata)
	return &out, nil
}

// PutIntent registers or replaces an intent.
func (m *MemoryProvider) PutIntent(intent Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent.Metadata = copyMetadata(intent.Metadata)
	m.intents[intent.Id] = &intent
}

// PutCustomer registers or replaces a customer.
func (m *MemoryProvider) PutCustomer(c Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Metadata = copyMetadata(c.Metadata)
	m.customers[c.Id] = &c
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
