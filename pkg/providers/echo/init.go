package echo

import (
	"log/slog"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

func init() {
	provider.Register(Name, func(cfg provider.Config, logger *slog.Logger) (provider.Provider, error) {
		p, err := New(cfg, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
