package web

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type fakeCheckoutUC struct {
	initiateFunc func(ctx context.Context, userID, productType, currency, language string) (*model.Payment, string, error)
	statusFunc   func(ctx context.Context, userID, orderID string) (*model.Payment, error)
}

func (f *fakeCheckoutUC) Initiate(ctx context.Context, userID, productType, currency, language string) (*model.Payment, string, error) {
	if f.initiateFunc != nil {
		return f.initiateFunc(ctx, userID, productType, currency, language)
	}
	p, _ := model.NewPayment(userID, model.ProviderFreedomPay, "1700000000000001", productType, "KZT", 200000)
	p.RedirectURL = "https://pay.example/r/1"
	return p, p.RedirectURL, nil
}

func (f *fakeCheckoutUC) Status(ctx context.Context, userID, orderID string) (*model.Payment, error) {
	if f.statusFunc != nil {
		return f.statusFunc(ctx, userID, orderID)
	}
	p, _ := model.NewPayment(userID, model.ProviderFreedomPay, orderID, "5_chapters", "KZT", 200000)
	p.Status = model.PaymentStatusCompleted
	return p, nil
}

type fakeCallbackUC struct {
	checkFunc  func(ctx context.Context, scriptName string, params map[string]string) usecase.CallbackAnswer
	resultFunc func(ctx context.Context, scriptName string, params map[string]string) usecase.CallbackAnswer
	stripeFunc func(ctx context.Context, payload []byte, sigHeader string) error
}

func (f *fakeCallbackUC) HandleCheck(ctx context.Context, scriptName string, params map[string]string) usecase.CallbackAnswer {
	if f.checkFunc != nil {
		return f.checkFunc(ctx, scriptName, params)
	}
	return usecase.CallbackAnswer{Status: usecase.AnswerOK, Description: "payment allowed"}
}

func (f *fakeCallbackUC) HandleResult(ctx context.Context, scriptName string, params map[string]string) usecase.CallbackAnswer {
	if f.resultFunc != nil {
		return f.resultFunc(ctx, scriptName, params)
	}
	return usecase.CallbackAnswer{Status: usecase.AnswerOK, Description: "status accepted"}
}

func (f *fakeCallbackUC) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if f.stripeFunc != nil {
		return f.stripeFunc(ctx, payload, sigHeader)
	}
	return nil
}

type fakeChapterUC struct {
	generateFunc func(ctx context.Context, userID string, req adapter.ChapterRequest) (string, error)
}

func (f *fakeChapterUC) Generate(ctx context.Context, userID string, req adapter.ChapterRequest) (string, error) {
	if f.generateFunc != nil {
		return f.generateFunc(ctx, userID, req)
	}
	return "Once upon a time...", nil
}

type fakeUserUC struct {
	users map[string]*model.User
}

func newFakeUserUC() *fakeUserUC {
	return &fakeUserUC{users: make(map[string]*model.User)}
}

func (f *fakeUserUC) Register(ctx context.Context, id, email, language string) (*model.User, error) {
	u, err := model.NewUser(id, email, language)
	if err != nil {
		return nil, err
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserUC) Get(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakeRecurringUC struct {
	canceled []string
}

func (f *fakeRecurringUC) UpsertFromEvent(ctx context.Context, ev *model.PaymentEvent, p *model.Payment) error {
	return nil
}

func (f *fakeRecurringUC) ChargeDue(ctx context.Context, limit int) (int, error) { return 0, nil }

func (f *fakeRecurringUC) SettleInvoice(ctx context.Context, ev *model.PaymentEvent) error {
	return nil
}

func (f *fakeRecurringUC) RefreshExpiry(ctx context.Context, profileID string, expiresAt *time.Time) error {
	return nil
}

func (f *fakeRecurringUC) Cancel(ctx context.Context, profileID string) error {
	f.canceled = append(f.canceled, profileID)
	return nil
}
