package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ ChapterUseCase = (*chapterUC)(nil)

// CreditsPerChapter is the generation cost of one chapter. Pack credit
// counts are denominated in chapters, so the cost is one.
const CreditsPerChapter = 1

type ChapterUseCase interface {
	// Generate debits the user and produces one chapter. The debit is a
	// compare-and-swap: a balance below the cost fails with
	// ErrInsufficientCredits before the generator is called. A generation
	// failure refunds the debit.
	Generate(ctx context.Context, userID string, req adapter.ChapterRequest) (string, error)
}

type chapterUC struct {
	users     repository.UserRepository
	generator adapter.ContentGenerator
	log       *zerolog.Logger
}

func NewChapterUseCase(users repository.UserRepository, generator adapter.ContentGenerator, logger *zerolog.Logger) *chapterUC {
	return &chapterUC{users: users, generator: generator, log: logger}
}

func (u *chapterUC) Generate(ctx context.Context, userID string, req adapter.ChapterRequest) (string, error) {
	ok, err := u.users.DecrementCreditsIfEnough(ctx, nil, userID, CreditsPerChapter)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInsufficientCredits
	}

	text, err := u.generator.GenerateChapter(ctx, req)
	if err != nil {
		if rerr := u.users.IncrementCredits(ctx, nil, userID, CreditsPerChapter); rerr != nil {
			u.log.Error().Err(rerr).Str("user_id", userID).Msg("credit refund after failed generation did not apply")
		}
		return "", err
	}

	u.log.Info().Str("user_id", userID).Int("cost", CreditsPerChapter).Msg("chapter generated")
	return text, nil
}
