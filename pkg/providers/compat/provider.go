// Package compat provides a provider for OpenAI-compatible gateways
// (OpenRouter, Azure-style proxies, self-hosted routers) that speak the
// chat-completions wire format at a custom base URL.
package compat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Name is the registry key of this provider.
const Name = "openai-compatible"

// DefaultBaseURL is used when no base_url is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Provider talks to an OpenAI-compatible endpoint.
type Provider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// New creates a compatible-gateway provider from cfg.
func New(cfg provider.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var extra provider.CommonOptions
	if err := provider.DecodeOptions(cfg.Options, &extra); err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%s provider requires provider.model", Name)
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	clientCfg.BaseURL = normalizeBaseURL(cfg.BaseURL)
	clientCfg.OrgID = extra.Organization
	if len(extra.Headers) > 0 {
		clientCfg.HTTPClient = &http.Client{Transport: headerTransport{
			headers: extra.Headers,
			next:    http.DefaultTransport,
		}}
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
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

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case provider.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case provider.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	p.logger.Debug("sending chat completion", "model", model, "messages", len(msgs))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	})
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		if apiErr.Code == nil {
			code = ""
		}
		wrapped := err
		if provider.IsContextLengthCode(code) {
			wrapped = fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
		}
		return &provider.StatusError{
			Provider:   Name,
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code,
			Message:    apiErr.Message,
			Err:        wrapped,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &provider.StatusError{
			Provider:   Name,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return fmt.Errorf("%s request: %w", Name, err)
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.next.RoundTrip(r)
}
