package gemini

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

func init() {
	provider.Register(Name, func(cfg provider.Config, logger *slog.Logger) (provider.Provider, error) {
		p, err := New(context.Background(), cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
