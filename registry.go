package aicarousel

import (
	"os"
	"sort"
	"strings"

	"github.com/aicarousel/aicarousel/internal/modelcfg"
	"github.com/aicarousel/aicarousel/internal/store"
	"github.com/aicarousel/aicarousel/providers"
)

// ActiveProvider is one upstream eligible to serve a request right now.
type ActiveProvider struct {
	Key            string
	Name           string
	Models         []string
	DefaultModel   string
	EnableFallback bool
	Priority       int
}

// FallbackModels returns the model attempt order: the default model first,
// then the rest of the list in configured order. Without fallback only the
// default is attempted.
func (p *ActiveProvider) FallbackModels() []string {
	if !p.EnableFallback {
		return []string{p.DefaultModel}
	}
	order := make([]string, 0, len(p.Models))
	order = append(order, p.DefaultModel)
	for _, m := range p.Models {
		if m != p.DefaultModel {
			order = append(order, m)
		}
	}
	return order
}

// SettingsLister is the slice of the settings store the registry needs.
type SettingsLister interface {
	ListProviderSettings() ([]store.ProviderSetting, error)
}

// ModelsReader is the slice of the models config store the registry needs.
type ModelsReader interface {
	Read() (modelcfg.Config, error)
}

// Registry derives the ordered active provider list per request. Nothing
// is cached here: enable flags, priorities, and model lists may change
// between requests without a restart.
type Registry struct {
	settings SettingsLister
	models   ModelsReader
	env      func(string) string
}

// NewRegistry builds a registry over the settings store and models config.
func NewRegistry(settings SettingsLister, models ModelsReader) *Registry {
	return &Registry{settings: settings, models: models, env: os.Getenv}
}

// ListActive returns the providers eligible to serve a request, sorted by
// priority ascending. A provider is active when its API-key environment
// variable is set, it is enabled, and it has at least one configured
// model. Providers without a settings row sort after all configured rows;
// with no rows at all, every known provider counts as enabled.
func (r *Registry) ListActive() ([]ActiveProvider, error) {
	settings, err := r.settings.ListProviderSettings()
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]store.ProviderSetting, len(settings))
	for _, ps := range settings {
		byKey[ps.ProviderKey] = ps
	}

	cfg, err := r.models.Read()
	if err != nil {
		return nil, err
	}

	// Sort keys: settings rows by priority then insertion order, then
	// providers without a row in descriptor order.
	const noSetting = 1 << 30

	var actives []ActiveProvider
	priorities := make(map[string]int)
	order := make(map[string]int)

	for i, d := range providers.Known() {
		if strings.TrimSpace(r.env(d.APIKeyEnv)) == "" {
			continue
		}
		enabled := true
		priority := 0
		sortPriority := noSetting
		sortOrder := noSetting + i
		if ps, ok := byKey[d.Key]; ok {
			enabled = ps.IsEnabled
			priority = ps.Priority
			sortPriority = ps.Priority
			sortOrder = int(ps.ID)
		}
		if !enabled {
			continue
		}
		pm, ok := cfg[d.Key]
		if !ok || len(pm.Models) == 0 {
			continue
		}

		actives = append(actives, ActiveProvider{
			Key:            d.Key,
			Name:           d.Name,
			Models:         append([]string(nil), pm.Models...),
			DefaultModel:   pm.Default,
			EnableFallback: pm.EnableFallback,
			Priority:       priority,
		})
		priorities[d.Key] = sortPriority
		order[d.Key] = sortOrder
	}

	sort.SliceStable(actives, func(i, j int) bool {
		pi, pj := priorities[actives[i].Key], priorities[actives[j].Key]
		if pi != pj {
			return pi < pj
		}
		return order[actives[i].Key] < order[actives[j].Key]
	})
	return actives, nil
}
