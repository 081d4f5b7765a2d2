package publishers

import (
	"context"
	"fmt"
	"sort"

	"shieldline/internal/config"
)

// Publisher delivers an exported subscription body somewhere.
type Publisher interface {
	Publish(ctx context.Context, payload string) error
}

type Factory func(cfg config.ExportConfig) (Publisher, error)

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string, cfg config.ExportConfig) (Publisher, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("publisher '%s' not found (available: %v)", name, Names())
	}
	return factory(cfg)
}

// Names lists the registered publishers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
