// Package provider defines the chat-completion contract that every LLM
// provider implementation must satisfy, plus the registry used to build
// providers from configuration.
//
// Concrete providers live in pkg/providers/ subdirectories and register
// themselves from init().
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Role values accepted in a Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatRequest holds a complete chat-completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Modeler is implemented by providers that know their default model.
type Modeler interface {
	Model() string
}

// ResolveModel returns model, or the default model of p when model is empty.
func ResolveModel(p Provider, model string) string {
	if model != "" {
		return model
	}
	if m, ok := p.(Modeler); ok {
		return m.Model()
	}
	return ""
}

// System returns the concatenated content of all system messages.
func (r ChatRequest) System() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Turns returns the non-system messages in order.
func (r ChatRequest) Turns() []Message {
	out := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// Provider sends a chat request and returns the generated text.
// Implementations must honour ctx cancellation and must not retry on their
// own; retry policy belongs to the caller.
type Provider interface {
	// Name returns the registered provider name.
	Name() string

	// Complete performs one blocking round-trip.
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Config holds what a provider factory needs to construct a client.
type Config struct {
	Type    string
	APIKey  string
	BaseURL string
	Model   string
	Options map[string]any
}

// ErrContextLength is returned (wrapped) when the provider reports that the
// prompt does not fit in the model context window.
var ErrContextLength = errors.New("context length exceeded")

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("empty response from provider")

// StatusError is an upstream HTTP failure translated from a provider SDK.
type StatusError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s upstream %d (%s): %s", e.Provider, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is worth retrying unchanged.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}

// IsContextLengthCode reports whether an upstream error code names a
// context-window overflow.
func IsContextLengthCode(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "context_length_exceeded", "string_above_max_length", "prompt_too_long":
		return true
	}
	return false
}
