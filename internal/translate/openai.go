package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"doc-translator/internal/language"
)

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // API key
	Model       string  // model to use (default "gpt-4o-mini")
	Temperature float32 // generation temperature (default 0.3)
	BaseURL     string  // custom base URL for compatible endpoints
}

// OpenAIProvider implements Provider using OpenAI's chat completion API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// Model reports the model name used for completions, for cache keys.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Translate sends the request text as a chat completion and returns the raw
// translated text.
func (p *OpenAIProvider) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return req.Text, nil
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", &ProviderError{
			Message:   "chat completion failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{
			Message:   "empty completion response",
			Retryable: true,
		}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildSystemPrompt(req Request) string {
	target := language.Name(req.TargetLang)
	source := language.Name(req.SourceLang)

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert translator. Translate the user's text from %s to %s.

Rules:
- Output ONLY the translation, with no commentary, preamble, or quotes.
- Preserve the paragraph structure and meaningful whitespace of the input.
- Do not translate URLs, email addresses, code, or numbers.
- Use natural, idiomatic phrasing a native %s speaker would write.`, source, target, target)

	if req.Preserve != "" {
		fmt.Fprintf(&b, `
- The input contains marker sequences built from the character %q followed by a number (for example %q). These are placeholders for formatting. Reproduce every marker EXACTLY as it appears, in an order that matches the translated sentence structure. Never translate, renumber, drop, or invent markers.`,
			req.Preserve, req.Preserve+"1"+req.Preserve)
	}

	return b.String()
}

func isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"503",
		"502",
		"500",
		"429",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var _ Provider = (*OpenAIProvider)(nil)
