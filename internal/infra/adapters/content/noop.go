package content

import (
	"context"

	"story-ai-billing/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*NoopGenerator)(nil)

// NoopGenerator echoes a canned chapter; used when no AI key is configured.
type NoopGenerator struct{}

func (NoopGenerator) GenerateChapter(_ context.Context, req adapter.ChapterRequest) (string, error) {
	return "Once upon a time... (" + req.Facts + ")", nil
}
