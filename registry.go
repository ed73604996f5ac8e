package ddns

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Factory constructs a provider from its configured settings.
// Provider packages register one under their config name in init().
type Factory func(log *zap.Logger, settings map[string]string) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register makes a provider available under name.
// It panics if name is registered twice.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("ddns: provider %q already registered", name))
	}
	factories[name] = f
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewProvider looks up the provider named by cfg in the registry and creates it.
func NewProvider(log *zap.Logger, cfg ProviderConfig) (Provider, error) {
	mu.Lock()
	f, ok := factories[strings.ToLower(cfg.Name)]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported DNS provider %q (registered: %v)", cfg.Name, Providers())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return f(log.Named(strings.ToLower(cfg.Name)), cfg.Settings)
}
