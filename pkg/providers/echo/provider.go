// Package echo provides an offline provider that never touches the network.
// It is used by dry runs, local smoke tests and the test suite.
package echo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Name is the registry key of this provider.
const Name = "echo"

// Options are the provider.options keys understood by echo.
type Options struct {
	// Reply is returned verbatim. When empty, a digest of the request is returned.
	Reply string `mapstructure:"reply"`
	// Fail makes every call fail with this message.
	Fail string `mapstructure:"fail"`
}

// Provider returns canned text.
type Provider struct {
	opts   Options
	logger *slog.Logger
}

// New creates an echo provider.
func New(cfg provider.Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var opts Options
	if err := provider.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	return &Provider{opts: opts, logger: logger}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Model implements provider.Modeler.
func (p *Provider) Model() string { return Name }

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.opts.Fail != "" {
		return "", fmt.Errorf("echo: %s", p.opts.Fail)
	}
	if p.opts.Reply != "" {
		return p.opts.Reply, nil
	}

	var size int
	for _, m := range req.Messages {
		size += len(m.Content)
	}
	p.logger.Debug("echo reply", "messages", len(req.Messages), "bytes", size)

	turns := req.Turns()
	first := ""
	if len(turns) > 0 {
		first, _, _ = strings.Cut(turns[len(turns)-1].Content, "\n")
	}
	return fmt.Sprintf("[echo] %d message(s), %d bytes. %s", len(req.Messages), size, first), nil
}
