package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ledgerlens/internal/dataset"
	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/internal/reduce"
	"github.com/leapstack-labs/ledgerlens/internal/testutil"
	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// scripted replays a fixed sequence of replies and records every request.
type scripted struct {
	mu       sync.Mutex
	replies  []reply
	requests []provider.ChatRequest
}

type reply struct {
	text string
	err  error
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Complete(_ context.Context, req provider.ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func fastBackoff(retries uint64) Option {
	return WithBackoff(func() retry.Backoff {
		return retry.WithMaxRetries(retries, retry.NewConstant(time.Millisecond))
	})
}

func newGenerator(t *testing.T, p provider.Provider, options ...Option) *Generator {
	t.Helper()
	opts := DefaultOptions()
	opts.Model = "gpt-4o-mini"
	return NewGenerator(p, opts, testutil.NewTestLogger(t), append([]Option{fastBackoff(2)}, options...)...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"sentinel", fmt.Errorf("wrapped: %w", provider.ErrContextLength), KindInputTooLarge},
		{"status code", &provider.StatusError{StatusCode: 400, Code: "context_length_exceeded"}, KindInputTooLarge},
		{"message indicator", errors.New("This model's maximum context length is 16385 tokens"), KindInputTooLarge},
		{"indicator is case-insensitive", errors.New("Too many TOKENS in request"), KindInputTooLarge},
		{"prompt too long", errors.New("prompt is too long: 250000 > 200000"), KindInputTooLarge},
		{"rate limit", &provider.StatusError{StatusCode: 429, Message: "slow down"}, KindProviderCallFailed},
		{"rate limit naming tokens", &provider.StatusError{StatusCode: 429, Code: "rate_limit_exceeded",
			Message: "Rate limit reached for gpt-4o-mini on tokens per min (TPM): Limit 200000, Used 199000"}, KindProviderCallFailed},
		{"overloaded naming tokens", &provider.StatusError{StatusCode: 529, Message: "input tokens per minute exceeded"}, KindProviderCallFailed},
		{"bad request naming tokens", &provider.StatusError{StatusCode: 400, Message: "prompt is too long: 250000 tokens > 200000 maximum"}, KindInputTooLarge},
		{"network", errors.New("dial tcp: connection refused"), KindProviderCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailure_Is(t *testing.T) {
	tooLarge := &Failure{Kind: KindInputTooLarge, Cause: errors.New("tokens")}
	assert.ErrorIs(t, tooLarge, ErrInputTooLarge)
	assert.ErrorIs(t, tooLarge, ErrProviderCallFailed)
	assert.NotEmpty(t, tooLarge.Hint())

	generic := &Failure{Kind: KindProviderCallFailed, Cause: errors.New("boom")}
	assert.ErrorIs(t, generic, ErrProviderCallFailed)
	assert.NotErrorIs(t, generic, ErrInputTooLarge)
	assert.Empty(t, generic.Hint())
	assert.Equal(t, "provider call failed: boom", generic.Error())
}

func TestGenerate_TrimsAndBuildsMessages(t *testing.T) {
	p := &scripted{replies: []reply{{text: "  RESUMO_TESTE \n"}}}
	g := newGenerator(t, p)

	res := g.Generate(context.Background(), Request{Instruction: "Resuma.", Data: "DADOS"})
	require.True(t, res.OK, res.Err())
	assert.Equal(t, "RESUMO_TESTE", res.Text)
	assert.Equal(t, 1, res.Attempts)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 4096, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.InDelta(t, 0.9, req.TopP, 1e-9)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, provider.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, prompt.SystemPersona, req.Messages[0].Content)
	assert.Equal(t, "Resuma.\n\nDados:\nDADOS", req.Messages[1].Content)
}

func TestGenerate_EmptyResponseFails(t *testing.T) {
	p := &scripted{replies: []reply{{text: " \n\t"}}}
	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err(), provider.ErrEmptyResponse)
	assert.Equal(t, KindProviderCallFailed, res.Failure.Kind)
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	unavailable := &provider.StatusError{Provider: "scripted", StatusCode: 503, Message: "overloaded"}
	p := &scripted{replies: []reply{{err: unavailable}, {err: unavailable}, {text: "ok"}}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	require.True(t, res.OK, res.Err())
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, res.Attempts)
}

func TestGenerate_RetriesRateLimitMentioningTokens(t *testing.T) {
	limited := &provider.StatusError{Provider: "scripted", StatusCode: 429, Code: "rate_limit_exceeded",
		Message: "Rate limit reached for gpt-4o-mini on tokens per min (TPM): Limit 200000, Used 199000"}
	p := &scripted{replies: []reply{{err: limited}, {text: "RESUMO"}}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	require.True(t, res.OK, res.Err())
	assert.Equal(t, "RESUMO", res.Text)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, p.calls())
}

func TestGenerate_RateLimitFailureHasNoSizeHint(t *testing.T) {
	limited := &provider.StatusError{Provider: "scripted", StatusCode: 429, Message: "input tokens per minute exceeded"}
	p := &scripted{replies: []reply{{err: limited}, {err: limited}, {err: limited}}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	require.False(t, res.OK)
	assert.Equal(t, KindProviderCallFailed, res.Failure.Kind)
	assert.NotErrorIs(t, res.Err(), ErrInputTooLarge)
	assert.Empty(t, res.Failure.Hint())
	assert.Equal(t, 3, p.calls())
}

func TestGenerate_GivesUpAfterRetries(t *testing.T) {
	unavailable := &provider.StatusError{Provider: "scripted", StatusCode: 503, Message: "overloaded"}
	p := &scripted{replies: []reply{{err: unavailable}, {err: unavailable}, {err: unavailable}, {text: "late"}}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	assert.False(t, res.OK)
	assert.Equal(t, 3, p.calls())
	var statusErr *provider.StatusError
	assert.ErrorAs(t, res.Err(), &statusErr)
}

func TestGenerate_NoRetryWhenInputTooLarge(t *testing.T) {
	p := &scripted{replies: []reply{
		{err: &provider.StatusError{StatusCode: 400, Code: "context_length_exceeded", Err: provider.ErrContextLength}},
		{text: "never"},
	}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	assert.False(t, res.OK)
	assert.Equal(t, KindInputTooLarge, res.Failure.Kind)
	assert.ErrorIs(t, res.Err(), ErrInputTooLarge)
	assert.Equal(t, 1, p.calls())
}

func TestGenerate_NoRetryOnPermanentFailure(t *testing.T) {
	p := &scripted{replies: []reply{{err: &provider.StatusError{StatusCode: 401, Message: "bad key"}}, {text: "never"}}}

	res := newGenerator(t, p).Generate(context.Background(), Request{Instruction: "x", Data: "y"})
	assert.False(t, res.OK)
	assert.Equal(t, 1, p.calls())
}

func TestGenerate_Cache(t *testing.T) {
	cache := NewFileCache(t.TempDir())
	p := &scripted{replies: []reply{{text: "primeira"}, {text: "segunda"}}}
	g := newGenerator(t, p, WithCache(cache))

	req := Request{Instruction: "x", Data: "y"}
	first := g.Generate(context.Background(), req)
	require.True(t, first.OK)
	assert.False(t, first.Cached)

	second := g.Generate(context.Background(), req)
	require.True(t, second.OK)
	assert.True(t, second.Cached)
	assert.Equal(t, "primeira", second.Text)
	assert.Equal(t, 1, p.calls())

	// a different request misses
	third := g.Generate(context.Background(), Request{Instruction: "z", Data: "y"})
	assert.Equal(t, "segunda", third.Text)
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	key := CacheKey("openai", provider.ChatRequest{Model: "m", Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}}})
	assert.Len(t, key, 64)

	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, "resposta"))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "resposta", got)
	assert.FileExists(t, filepath.Join(dir, key[:2], key+".txt"))

	other := CacheKey("anthropic", provider.ChatRequest{Model: "m", Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}}})
	assert.NotEqual(t, key, other)

	require.NoError(t, c.Clear())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestHybrid_AbortsWhenBaseFails(t *testing.T) {
	p := &scripted{replies: []reply{{err: errors.New("boom")}, {text: "never"}}}
	g := newGenerator(t, p)

	res := g.Hybrid(context.Background(), HybridRequest{Base: "B", Refine: "R", Data: "D"})
	assert.True(t, res.Aborted)
	assert.False(t, res.OK())
	assert.Equal(t, AbortMessage, res.Message)
	assert.Equal(t, 1, p.calls())
	assert.ErrorIs(t, res.Err(), ErrProviderCallFailed)
}

func TestHybrid_RefinesBaseSummary(t *testing.T) {
	p := &scripted{replies: []reply{{text: " base \n"}, {text: "refinado"}}}
	g := newGenerator(t, p)

	res := g.Hybrid(context.Background(), HybridRequest{
		Base:      "P1",
		Refine:    "P2",
		Data:      "DADOS",
		Directive: prompt.ParagraphDirective,
	})
	require.True(t, res.OK(), res.Err())
	assert.Equal(t, "base", res.Base.Text)
	assert.Equal(t, "refinado", res.Text())

	require.Len(t, p.requests, 2)
	assert.Equal(t, "P1\n\nDados:\nDADOS", p.requests[0].Messages[1].Content)

	refine := p.requests[1].Messages[1].Content
	assert.Equal(t, prompt.RefineInstruction("P2", "base", "DADOS")+"\n"+prompt.ParagraphDirective, refine)
	assert.NotContains(t, refine, "\n\nDados:\nDADOS\n")
	assert.Equal(t, prompt.SystemPersona, p.requests[1].Messages[0].Content)
}

func TestHybrid_RefineFailureIsReported(t *testing.T) {
	p := &scripted{replies: []reply{{text: "base"}, {err: errors.New("maximum context length exceeded: too many tokens")}}}

	res := newGenerator(t, p).Hybrid(context.Background(), HybridRequest{Base: "P1", Refine: "P2", Data: "D"})
	assert.False(t, res.Aborted)
	assert.False(t, res.OK())
	assert.True(t, res.Base.OK)
	assert.ErrorIs(t, res.Err(), ErrInputTooLarge)
}

func TestGenerate_EndToEndFromFiles(t *testing.T) {
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contas-a-pagar.csv"),
		[]byte("fornecedor,valor\nAlfa,100\nBeta,200\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contas-a-receber.csv"),
		[]byte("cliente,valor\nGama,50\n"), 0o600))

	store, err := dataset.Open(ctx, "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	batch, err := dataset.NewLoader(store, logger).Load(ctx, dir, []dataset.FileMapping{
		{File: "contas-a-pagar.csv", Name: "contas_a_pagar"},
		{File: "contas-a-receber.csv", Name: "contas_a_receber"},
	})
	require.NoError(t, err)

	excerpts := reduce.New(store.DB(), reduce.DefaultPolicy(), logger).ReduceAll(ctx, batch.Items)
	assembled := prompt.Assemble(excerpts, "Resuma.")

	p := &scripted{replies: []reply{{text: "  RESUMO_TESTE \n"}}}
	res := newGenerator(t, p).Generate(ctx, Request{Instruction: assembled.Instruction, Data: assembled.Data})
	require.True(t, res.OK, res.Err())
	assert.Equal(t, "RESUMO_TESTE", res.Text)

	user := p.requests[0].Messages[1].Content
	assert.True(t, strings.HasPrefix(user, "Resuma.\n\nDados:\n### DADOS A SEREM ANALISADOS ###"))
	assert.Contains(t, user, "### Arquivo: contas_a_pagar (Shape: (2, 2)) ###")
	assert.Contains(t, user, "### Arquivo: contas_a_receber (Shape: (1, 2)) ###")
	assert.Less(t, strings.Index(user, "contas_a_pagar"), strings.Index(user, "contas_a_receber"))
}
