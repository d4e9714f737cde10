// Package openai provides the OpenAI chat-completions provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Name is the registry key of this provider.
const Name = "openai"

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Provider talks to the OpenAI chat-completions API.
type Provider struct {
	client openaiclient.Client
	model  string
	logger *slog.Logger
}

// New creates an OpenAI provider from cfg.
func New(cfg provider.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var extra provider.CommonOptions
	if err := provider.DecodeOptions(cfg.Options, &extra); err != nil {
		return nil, err
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		openaioption.WithMaxRetries(0),
	}
	if base := NormalizeBaseURL(cfg.BaseURL); base != "" {
		opts = append(opts, openaioption.WithBaseURL(base))
	}
	if extra.Organization != "" {
		opts = append(opts, openaioption.WithOrganization(extra.Organization))
	}
	if extra.Project != "" {
		opts = append(opts, openaioption.WithProject(extra.Project))
	}
	for k, v := range extra.Headers {
		opts = append(opts, openaioption.WithHeader(k, v))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: openaiclient.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Model returns the model used when a request names none.
func (p *Provider) Model() string { return p.model }

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openaiclient.ChatCompletionNewParams{
		Model:    openaiclient.ChatModel(model),
		Messages: toMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaiclient.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openaiclient.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openaiclient.Float(req.TopP)
	}

	p.logger.Debug("sending chat completion", "model", model, "messages", len(req.Messages))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrEmptyResponse
	}
	p.logger.Debug("chat completion finished",
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func toMessages(in []provider.Message) []openaiclient.ChatCompletionMessageParamUnion {
	out := make([]openaiclient.ChatCompletionMessageParamUnion, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, openaiclient.SystemMessage(m.Content))
		case provider.RoleAssistant:
			out = append(out, openaiclient.AssistantMessage(m.Content))
		default:
			out = append(out, openaiclient.UserMessage(m.Content))
		}
	}
	return out
}

func translateError(err error) error {
	var apiErr *openaiclient.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai request: %w", err)
	}

	wrapped := err
	if provider.IsContextLengthCode(apiErr.Code) {
		wrapped = fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
	}
	return &provider.StatusError{
		Provider:   Name,
		StatusCode: apiErr.StatusCode,
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Err:        wrapped,
	}
}

// NormalizeBaseURL makes sure a custom endpoint ends in /v1.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}
