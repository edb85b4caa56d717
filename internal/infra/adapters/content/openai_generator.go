package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"story-ai-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ContentGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator produces chapter text via the Chat Completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (g *OpenAIGenerator) GenerateChapter(ctx context.Context, req adapter.ChapterRequest) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req.Language)),
		openai.UserMessage(userPrompt(req)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("openai: empty completion")
}

func systemPrompt(language string) string {
	lang := "English"
	switch strings.ToLower(language) {
	case "ru":
		lang = "Russian"
	case "kz":
		lang = "Kazakh"
	}
	return "You are a children's book author. Write one personalized story chapter in " + lang +
		" using the facts provided. Keep the tone warm and age-appropriate."
}

func userPrompt(req adapter.ChapterRequest) string {
	var b strings.Builder
	b.WriteString("Facts about the reader:\n")
	b.WriteString(req.Facts)
	if req.Continue != "" {
		b.WriteString("\n\nContinue this story:\n")
		b.WriteString(req.Continue)
	}
	return b.String()
}
