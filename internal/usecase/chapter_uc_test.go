package usecase

import (
	"context"
	"errors"
	"testing"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/ports/adapter"
)

func TestChapterGenerate(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	seedUser(t, users, "user-1", 20)

	uc := NewChapterUseCase(users, &fakeGenerator{}, newTestLogger())
	text, err := uc.Generate(ctx, "user-1", adapter.ChapterRequest{Language: "en", Facts: "a dragon"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text == "" {
		t.Fatal("expected chapter text")
	}
	u, _ := users.FindByID(ctx, nil, "user-1")
	if u.Credits != 20-CreditsPerChapter {
		t.Errorf("credits = %d, want %d", u.Credits, 20-CreditsPerChapter)
	}
}

func TestChapterGenerateInsufficientCredits(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	seedUser(t, users, "user-1", CreditsPerChapter-1)

	called := false
	uc := NewChapterUseCase(users, &fakeGenerator{
		generateFunc: func(ctx context.Context, req adapter.ChapterRequest) (string, error) {
			called = true
			return "", nil
		},
	}, newTestLogger())

	_, err := uc.Generate(ctx, "user-1", adapter.ChapterRequest{})
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}
	if called {
		t.Error("generator must not run without credits")
	}
	u, _ := users.FindByID(ctx, nil, "user-1")
	if u.Credits != CreditsPerChapter-1 {
		t.Errorf("credits = %d, balance must be untouched", u.Credits)
	}
}

func TestChapterGenerateRefundsOnFailure(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	seedUser(t, users, "user-1", 20)

	uc := NewChapterUseCase(users, &fakeGenerator{
		generateFunc: func(ctx context.Context, req adapter.ChapterRequest) (string, error) {
			return "", errors.New("model overloaded")
		},
	}, newTestLogger())

	if _, err := uc.Generate(ctx, "user-1", adapter.ChapterRequest{}); err == nil {
		t.Fatal("expected generation error")
	}
	u, _ := users.FindByID(ctx, nil, "user-1")
	if u.Credits != 20 {
		t.Errorf("credits = %d, want 20 after refund", u.Credits)
	}
}
