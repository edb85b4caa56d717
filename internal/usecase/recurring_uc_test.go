package usecase

import (
	"context"
	"testing"
	"time"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
)

type recurringFixture struct {
	payments *memPaymentRepo
	users    *memUserRepo
	profiles *memProfileRepo
	provider *fakeProvider
	locker   *fakeLocker
	uc       RecurringUseCase
}

func newRecurringFixture(t *testing.T) *recurringFixture {
	t.Helper()
	payments := newMemPaymentRepo()
	users := newMemUserRepo()
	profiles := newMemProfileRepo()
	provider := &fakeProvider{}
	locker := newFakeLocker()
	catalog := model.DefaultCatalog()
	logger := newTestLogger()

	settlement := NewSettlementUseCase(fakeTM{}, payments, users, catalog, nil, logger)
	return &recurringFixture{
		payments: payments,
		users:    users,
		profiles: profiles,
		provider: provider,
		locker:   locker,
		uc:       NewRecurringUseCase(profiles, payments, provider, settlement, catalog, locker, logger),
	}
}

// seedProfile stores an active profile whose last charge is a month old.
func seedProfile(t *testing.T, f *recurringFixture, profileID, userID string) *model.Payment {
	t.Helper()
	ctx := context.Background()
	last := seedPayment(t, f.payments, userID, "subscription_100", model.PaymentStatusCompleted)
	if err := f.profiles.Upsert(ctx, nil, &model.RecurringProfile{
		ProfileID:     profileID,
		UserID:        userID,
		Status:        model.RecurringStatusActive,
		LastPaymentID: last.ID,
	}); err != nil {
		t.Fatal(err)
	}
	f.profiles.mu.Lock()
	f.profiles.store[profileID].UpdatedAt = time.Now().Add(-31 * 24 * time.Hour)
	f.profiles.mu.Unlock()
	return last
}

func TestChargeDueBillsAndSettles(t *testing.T) {
	ctx := context.Background()
	f := newRecurringFixture(t)
	seedUser(t, f.users, "user-1", 0)
	last := seedProfile(t, f, "rp-1", "user-1")

	charged, err := f.uc.ChargeDue(ctx, 10)
	if err != nil {
		t.Fatalf("charge due: %v", err)
	}
	if charged != 1 {
		t.Fatalf("charged = %d, want 1", charged)
	}

	u, _ := f.users.FindByID(ctx, nil, "user-1")
	if u.Credits != 100 {
		t.Errorf("credits = %d, want 100", u.Credits)
	}

	profile, _ := f.profiles.FindByProfileID(ctx, nil, "rp-1")
	if profile.LastPaymentID == last.ID {
		t.Error("last payment id must advance to the new charge")
	}
	renewed, err := f.payments.FindByID(ctx, nil, profile.LastPaymentID)
	if err != nil {
		t.Fatalf("renewed payment missing: %v", err)
	}
	if renewed.Status != model.PaymentStatusCompleted {
		t.Errorf("renewed status = %s", renewed.Status)
	}
	if renewed.Amount != last.Amount || renewed.ProductType != last.ProductType {
		t.Error("renewal must copy amount and product from the previous charge")
	}
}

func TestChargeDueSkipsLockedProfile(t *testing.T) {
	ctx := context.Background()
	f := newRecurringFixture(t)
	seedUser(t, f.users, "user-1", 0)
	seedProfile(t, f, "rp-1", "user-1")

	release, ok, err := f.locker.Acquire(ctx, "recurring:charge:rp-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("pre-acquire: ok=%v err=%v", ok, err)
	}
	defer release()

	charged, err := f.uc.ChargeDue(ctx, 10)
	if err != nil {
		t.Fatalf("charge due: %v", err)
	}
	if charged != 1 {
		// chargeOne returns nil on a held lock; the profile counts as handled
		// but no payment is created.
		t.Fatalf("charged = %d, want 1", charged)
	}
	u, _ := f.users.FindByID(ctx, nil, "user-1")
	if u.Credits != 0 {
		t.Errorf("credits = %d, want 0 while lock held elsewhere", u.Credits)
	}
}

func TestChargeDueAsyncCompletion(t *testing.T) {
	ctx := context.Background()
	f := newRecurringFixture(t)
	seedUser(t, f.users, "user-1", 0)
	seedProfile(t, f, "rp-1", "user-1")

	f.provider.chargeRecurringFun = func(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error) {
		return &adapter.RecurringChargeResult{ProviderPaymentID: "pp-async", Completed: false}, nil
	}

	if _, err := f.uc.ChargeDue(ctx, 10); err != nil {
		t.Fatal(err)
	}

	// Credits wait for the result callback.
	u, _ := f.users.FindByID(ctx, nil, "user-1")
	if u.Credits != 0 {
		t.Errorf("credits = %d, want 0 until callback", u.Credits)
	}
	profile, _ := f.profiles.FindByProfileID(ctx, nil, "rp-1")
	renewed, _ := f.payments.FindByID(ctx, nil, profile.LastPaymentID)
	if renewed == nil || renewed.Status != model.PaymentStatusPending {
		t.Errorf("renewed payment = %+v, want pending", renewed)
	}
}

func TestChargeDueCancelsDeadProfile(t *testing.T) {
	ctx := context.Background()
	f := newRecurringFixture(t)
	seedUser(t, f.users, "user-1", 0)
	seedProfile(t, f, "rp-1", "user-1")

	f.provider.chargeRecurringFun = func(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error) {
		return nil, &domain.GatewayError{Provider: "freedompay", Code: "103", Message: "Transaction not found"}
	}

	charged, err := f.uc.ChargeDue(ctx, 10)
	if err != nil {
		t.Fatalf("charge due: %v", err)
	}
	if charged != 0 {
		t.Errorf("charged = %d, want 0", charged)
	}
	profile, _ := f.profiles.FindByProfileID(ctx, nil, "rp-1")
	if profile.Status != model.RecurringStatusCanceled {
		t.Errorf("profile status = %s, want canceled", profile.Status)
	}
}

func TestCanceledProfileNotBilled(t *testing.T) {
	ctx := context.Background()
	f := newRecurringFixture(t)
	seedUser(t, f.users, "user-1", 0)
	seedProfile(t, f, "rp-1", "user-1")
	if err := f.uc.Cancel(ctx, "rp-1"); err != nil {
		t.Fatal(err)
	}

	charged, err := f.uc.ChargeDue(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if charged != 0 {
		t.Errorf("charged = %d, want 0 for canceled profile", charged)
	}
}
