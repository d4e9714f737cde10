package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory builds a provider from configuration.
type Factory func(cfg Config, logger *slog.Logger) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the registry.
// Called by provider implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[Normalize(name)] = factory
}

// Get retrieves a provider factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[Normalize(name)]
	return f, ok
}

// New creates a provider instance based on cfg.Type.
// The logger is passed to the factory (nil uses a discard logger).
func New(cfg Config, logger *slog.Logger) (Provider, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, fmt.Errorf("provider type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownProviderError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	return factory(cfg, logger.With("provider", Normalize(cfg.Type)))
}

// List returns all registered provider names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a provider type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownProviderError is returned when an unknown provider type is requested.
type UnknownProviderError struct {
	Type      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider type %q\nAvailable providers: %v\nHint: Check provider.type in ledgerlens.yaml", e.Type, e.Available)
}

// Normalize returns the registry key for a provider type: lowercase, with
// underscores as dashes and no spaces.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	return strings.ReplaceAll(n, " ", "")
}
