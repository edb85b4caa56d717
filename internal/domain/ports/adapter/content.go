package adapter

import "context"

// ChapterRequest carries the user facts a chapter is generated from.
type ChapterRequest struct {
	Language string
	Facts    string // free-form prompt material collected from the user
	Continue string // previous chapter text when extending a story
}

// ContentGenerator turns user facts into chapter text, or fails.
// Implementations wrap a hosted LLM; callers treat it as opaque.
type ContentGenerator interface {
	GenerateChapter(ctx context.Context, req ChapterRequest) (string, error)
}
