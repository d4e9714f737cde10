// Package gemini provides the Google Gemini provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Name is the registry key of this provider.
const Name = "gemini"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Provider talks to the Gemini generative language API.
type Provider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New creates a Gemini provider. The client is dialled eagerly; call Close
// when done.
func New(ctx context.Context, cfg provider.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var extra provider.CommonOptions
	if err := provider.DecodeOptions(cfg.Options, &extra); err != nil {
		return nil, err
	}
	if len(extra.Headers) > 0 || extra.Organization != "" {
		logger.Warn("gemini ignores provider.options headers and organization")
	}

	opts := []option.ClientOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if endpoint := strings.TrimSpace(cfg.BaseURL); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, model: model, logger: logger}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Model returns the model used when a request names none.
func (p *Provider) Model() string { return p.model }

// Close releases the underlying client connection.
func (p *Provider) Close() error { return p.client.Close() }

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	name := req.Model
	if name == "" {
		name = p.model
	}

	model := p.client.GenerativeModel(name)
	if system := req.System(); system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}

	turns := req.Turns()
	if len(turns) == 0 {
		return "", errors.New("gemini: request has no user message")
	}

	cs := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == provider.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	p.logger.Debug("sending generate content", "model", name, "history", len(cs.History))

	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", translateError(err)
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", provider.ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", provider.ErrEmptyResponse
	}
	return b.String(), nil
}

func translateError(err error) error {
	apiErr, ok := apierror.FromError(err)
	if !ok {
		return fmt.Errorf("gemini generate: %w", err)
	}

	status := apiErr.HTTPCode()
	if status <= 0 && apiErr.GRPCStatus() != nil {
		status = httpStatusFromCode(apiErr.GRPCStatus().Code())
	}

	msg := apiErr.Error()
	wrapped := err
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "exceeds the maximum number of tokens") || strings.Contains(lower, "input token count") {
		wrapped = fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	}
	return &provider.StatusError{
		Provider:   Name,
		StatusCode: status,
		Code:       apiErr.Reason(),
		Message:    msg,
		Err:        wrapped,
	}
}

func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
