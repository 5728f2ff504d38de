package providers

import (
	"context"
	"fmt"
	"os"
)

// BuildFunc constructs an adapter for a (provider, model) pair. The
// dispatcher depends on this signature so tests can inject scripted
// adapters.
type BuildFunc func(key, model string) (Adapter, error)

// Build is the production adapter factory: it maps a provider key to its
// adapter variant, pulling key material from the descriptor's environment
// variable.
func Build(key, model string) (Adapter, error) {
	d, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", key)
	}
	value := os.Getenv(d.APIKeyEnv)

	switch d.Kind {
	case KindOpenAICompat:
		return NewOpenAICompat(d.Key, value, d.BaseURL, model), nil
	case KindGemini:
		return NewGemini(value, d.BaseURL, model), nil
	case KindLocal:
		return NewLocal(value, model), nil
	case KindBedrock:
		return NewBedrock(context.Background(), value, model)
	default:
		return nil, fmt.Errorf("provider %s has no adapter variant %q", key, d.Kind)
	}
}
