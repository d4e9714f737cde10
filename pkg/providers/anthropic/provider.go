// Package anthropic provides the Anthropic Messages API provider.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Name is the registry key of this provider.
const Name = "anthropic"

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// Anthropic requires max_tokens on every request.
const defaultMaxTokens = 4096

// Provider talks to the Anthropic Messages API.
type Provider struct {
	client anthropicclient.Client
	model  string
	logger *slog.Logger
}

// New creates an Anthropic provider from cfg.
func New(cfg provider.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var extra provider.CommonOptions
	if err := provider.DecodeOptions(cfg.Options, &extra); err != nil {
		return nil, err
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(cfg.BaseURL); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")+"/"))
	}
	for k, v := range extra.Headers {
		opts = append(opts, anthropicoption.WithHeader(k, v))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: anthropicclient.NewClient(opts...),
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
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicclient.MessageNewParams{
		Model:     anthropicclient.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toMessages(req.Turns()),
	}
	if system := req.System(); system != "" {
		params.System = []anthropicclient.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicclient.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropicclient.Float(req.TopP)
	}

	p.logger.Debug("sending message", "model", model, "messages", len(params.Messages))

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", translateError(err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropicclient.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", provider.ErrEmptyResponse
	}
	p.logger.Debug("message finished",
		"stop_reason", msg.StopReason,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)
	return b.String(), nil
}

func toMessages(in []provider.Message) []anthropicclient.MessageParam {
	out := make([]anthropicclient.MessageParam, 0, len(in))
	for _, m := range in {
		block := anthropicclient.NewTextBlock(m.Content)
		if m.Role == provider.RoleAssistant {
			out = append(out, anthropicclient.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropicclient.NewUserMessage(block))
	}
	return out
}

func translateError(err error) error {
	var apiErr *anthropicclient.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic request: %w", err)
	}

	msg := apiErr.Error()
	wrapped := err
	if strings.Contains(strings.ToLower(msg), "prompt is too long") {
		wrapped = fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	}
	return &provider.StatusError{
		Provider:   Name,
		StatusCode: apiErr.StatusCode,
		Message:    msg,
		Err:        wrapped,
	}
}
