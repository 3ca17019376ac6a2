// Package generator turns a natural-language prompt plus store context into
// a candidate action list via an OpenRouter-hosted model. Its output is
// untrusted and must pass the action validator before execution.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("generator API key is not configured")

// Proposal is the model's raw answer: candidate actions (kept as raw JSON so
// the validator owns the "is this even an array" check) plus a free-text
// summary and usage accounting.
type Proposal struct {
	Actions json.RawMessage `json:"actions"`
	Summary string          `json:"summary"`
	Model   string          `json:"model,omitempty"`
	Usage   Usage           `json:"usage"`
}

// Usage is the token accounting of one generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Service calls a chat-completion model and parses its JSON answer.
type Service struct {
	client *openai.Client
	apiKey string
	model  string
	logger *slog.Logger
}

// NewService builds the generator; baseURL defaults to OpenRouter.
func NewService(log *slog.Logger, apiKey, model, baseURL string) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		model:  model,
		logger: log.With(slog.String("service", "generator")),
	}
}

// Generate sends the prompt and store context to the model and parses the
// {actions, summary} answer.
func (s *Service) Generate(ctx context.Context, prompt string, store StoreContext) (Proposal, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return Proposal{}, ErrNotConfigured
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: renderStoreContext(store) + "\n\nUSER REQUEST: " + prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("generate actions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Proposal{}, errors.New("model returned no choices")
	}

	proposal, err := ParseProposal(resp.Choices[0].Message.Content)
	if err != nil {
		return Proposal{}, err
	}
	proposal.Model = resp.Model
	proposal.Usage = Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	s.logger.Debug("generated proposal",
		slog.String("model", proposal.Model),
		slog.Int("total_tokens", proposal.Usage.TotalTokens),
	)
	return proposal, nil
}

// ParseProposal decodes the model's answer, tolerating markdown code fences
// the model was told not to emit but sometimes emits anyway.
func ParseProposal(content string) (Proposal, error) {
	cleaned := stripFences(content)
	var proposal Proposal
	if err := json.Unmarshal([]byte(cleaned), &proposal); err != nil {
		return Proposal{}, fmt.Errorf("model answer is not valid JSON: %w", err)
	}
	if len(proposal.Actions) == 0 {
		proposal.Actions = json.RawMessage("[]")
	}
	return proposal, nil
}

func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
