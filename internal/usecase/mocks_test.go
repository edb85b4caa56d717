package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fakeTM runs the transaction body directly; unit tests exercise the
// idempotency logic, not the database isolation.
type fakeTM struct{}

func (fakeTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Payment
	saveErr error // used by tests to simulate save failures
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, _ repository.Tx, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.store {
		if e.Provider == p.Provider && e.OrderID == p.OrderID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, _ repository.Tx, provider, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Provider == provider && p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByProviderPaymentID(ctx context.Context, _ repository.Tx, provider, ppid string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Provider == provider && p.ProviderPaymentID != nil && *p.ProviderPaymentID == ppid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindPendingByUserProduct(ctx context.Context, _ repository.Tx, userID, productType string, since time.Time) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *model.Payment
	for _, p := range m.store {
		if p.UserID != userID || p.ProductType != productType {
			continue
		}
		if p.Status != model.PaymentStatusPending || p.RedirectURL == "" || p.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, _ repository.Tx, id string, status model.PaymentStatus, ppid *string, raw map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status.Terminal() {
		return false, nil
	}
	p.Status = status
	if ppid != nil {
		p.ProviderPaymentID = ppid
	}
	if raw != nil {
		p.RawPayload = raw
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) SetCreditsAdded(ctx context.Context, _ repository.Tx, id string, credits int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CreditsAdded = credits
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) SetRedirectURL(ctx context.Context, _ repository.Tx, id, redirectURL string, ppid *string, raw map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.RedirectURL = redirectURL
	if ppid != nil {
		p.ProviderPaymentID = ppid
	}
	if raw != nil {
		p.RawPayload = raw
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, _ repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) IncrementCredits(ctx context.Context, _ repository.Tx, id string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Credits += delta
	return nil
}

func (m *memUserRepo) DecrementCreditsIfEnough(ctx context.Context, _ repository.Tx, id string, delta int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.Credits < delta {
		return false, nil
	}
	u.Credits -= delta
	return true, nil
}

type memProfileRepo struct {
	mu    sync.RWMutex
	store map[string]*model.RecurringProfile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{store: make(map[string]*model.RecurringProfile)}
}

func (m *memProfileRepo) Upsert(ctx context.Context, _ repository.Tx, p *model.RecurringProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if existing, ok := m.store[p.ProfileID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	m.store[p.ProfileID] = &cp
	return nil
}

func (m *memProfileRepo) FindByProfileID(ctx context.Context, _ repository.Tx, profileID string) (*model.RecurringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[profileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) ListDueActive(ctx context.Context, _ repository.Tx, dueBefore time.Time, limit int) ([]*model.RecurringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.RecurringProfile
	for _, p := range m.store {
		if p.Status != model.RecurringStatusActive {
			continue
		}
		if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
			continue
		}
		if p.UpdatedAt.After(dueBefore) {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memProfileRepo) Cancel(ctx context.Context, _ repository.Tx, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[profileID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.RecurringStatusCanceled
	p.UpdatedAt = time.Now()
	return nil
}

// fakeProvider lets each test override exactly the call it cares about.
type fakeProvider struct {
	name               string
	initiateFunc       func(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error)
	chargeRecurringFun func(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error)
}

func (f *fakeProvider) Name() string {
	if f.name == "" {
		return model.ProviderFreedomPay
	}
	return f.name
}

func (f *fakeProvider) Initiate(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	if f.initiateFunc != nil {
		return f.initiateFunc(ctx, req)
	}
	return &adapter.InitiateResult{
		RedirectURL:       "https://pay.example/redirect/" + req.OrderID,
		ProviderPaymentID: "pp-" + req.OrderID,
	}, nil
}

func (f *fakeProvider) ChargeRecurring(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error) {
	if f.chargeRecurringFun != nil {
		return f.chargeRecurringFun(ctx, profileID, orderID, amount, description)
	}
	return &adapter.RecurringChargeResult{ProviderPaymentID: "pp-" + orderID, Completed: true}, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type fakeGenerator struct {
	generateFunc func(ctx context.Context, req adapter.ChapterRequest) (string, error)
}

func (f *fakeGenerator) GenerateChapter(ctx context.Context, req adapter.ChapterRequest) (string, error) {
	if f.generateFunc != nil {
		return f.generateFunc(ctx, req)
	}
	return "Once upon a time...", nil
}
