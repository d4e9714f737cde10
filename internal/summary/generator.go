package summary

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Options tune generation and retry behaviour.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	// Timeout bounds a single provider attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt for
	// transient failures. Zero disables retries.
	MaxRetries int
	RetryBase  time.Duration
}

// DefaultOptions returns the standard generation parameters.
func DefaultOptions() Options {
	return Options{
		MaxTokens:   4096,
		Temperature: 0.3,
		TopP:        0.9,
		Timeout:     120 * time.Second,
		MaxRetries:  2,
		RetryBase:   time.Second,
	}
}

// Request is one summary request.
type Request struct {
	Instruction string
	Data        string
	Directive   string
	Model       string
	// Verbatim sends Instruction as the whole user message, without a data
	// section.
	Verbatim bool
}

// UserMessage returns the user message sent for r.
func (r Request) UserMessage() string {
	if !r.Verbatim {
		return prompt.UserMessage(r.Instruction, r.Data, r.Directive)
	}
	if d := strings.TrimSpace(r.Directive); d != "" {
		return r.Instruction + "\n" + d
	}
	return r.Instruction
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache enables response caching.
func WithCache(c Cache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithBackoff overrides the retry backoff factory.
func WithBackoff(f func() retry.Backoff) Option {
	return func(g *Generator) { g.backoff = f }
}

// Generator produces summaries through a provider.
type Generator struct {
	p       provider.Provider
	opts    Options
	cache   Cache
	backoff func() retry.Backoff
	logger  *slog.Logger
}

// NewGenerator creates a generator calling p.
func NewGenerator(p provider.Provider, opts Options, logger *slog.Logger, options ...Option) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Generator{p: p, opts: opts, logger: logger}
	g.backoff = g.defaultBackoff
	for _, o := range options {
		o(g)
	}
	return g
}

func (g *Generator) defaultBackoff() retry.Backoff {
	base := g.opts.RetryBase
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(max(g.opts.MaxRetries, 0)), b)
}

// ChatRequest builds the provider request for req.
func (g *Generator) ChatRequest(req Request) provider.ChatRequest {
	model := req.Model
	if model == "" {
		model = g.opts.Model
	}
	return provider.ChatRequest{
		Model: model,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: prompt.SystemPersona},
			{Role: provider.RoleUser, Content: req.UserMessage()},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
		TopP:        g.opts.TopP,
	}
}

// Generate sends req and returns a tagged result. It never panics on
// provider failures; they are classified into Result.Failure.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	chat := g.ChatRequest(req)

	var key string
	if g.cache != nil {
		key = CacheKey(g.p.Name(), chat)
		if text, ok := g.cache.Get(key); ok {
			g.logger.Info("using cached response", "key", key[:12])
			res := success(text, 0)
			res.Cached = true
			return res
		}
	}

	stats := prompt.Measure(req.UserMessage())
	g.logger.Info("calling provider",
		"provider", g.p.Name(),
		"model", chat.Model,
		"bytes", stats.Bytes,
		"estimated_tokens", stats.EstimatedTokens,
	)

	attempts := 0
	var text string
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		attempts++
		out, err := g.attempt(ctx, chat)
		if err == nil {
			text = out
			return nil
		}
		if g.transient(ctx, err) {
			g.logger.Warn("transient provider failure, retrying", "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		res := failure(err, attempts)
		g.logger.Error("provider call failed",
			"kind", res.Failure.Kind.String(),
			"attempts", attempts,
			"error", err,
		)
		return res
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return failure(provider.ErrEmptyResponse, attempts)
	}

	if g.cache != nil {
		if err := g.cache.Put(key, text); err != nil {
			g.logger.Warn("failed to cache response", "error", err)
		}
	}
	return success(text, attempts)
}

func (g *Generator) attempt(ctx context.Context, chat provider.ChatRequest) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	return g.p.Complete(ctx, chat)
}

// transient reports whether err is worth retrying. Size failures and
// cancellation of the parent context never are.
func (g *Generator) transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || Classify(err) == KindInputTooLarge {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
