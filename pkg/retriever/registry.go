package retriever

import (
	"fmt"
	"time"

	"github.com/openresearch/conductor/pkg/config"
	"github.com/openresearch/conductor/pkg/domain"
)

// Registry holds the active retriever backends by name
type Registry struct {
	retrievers map[string]domain.Retriever
	order      []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		retrievers: make(map[string]domain.Retriever),
	}
}

// Register registers a backend
func (r *Registry) Register(retriever domain.Retriever) error {
	if retriever == nil {
		return fmt.Errorf("retriever cannot be nil")
	}

	name := retriever.Name()
	if name == "" {
		return fmt.Errorf("retriever name cannot be empty")
	}
	if _, exists := r.retrievers[name]; exists {
		return fmt.Errorf("retriever %s already registered", name)
	}

	r.retrievers[name] = retriever
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a backend by name
func (r *Registry) Get(name string) (domain.Retriever, error) {
	retriever, exists := r.retrievers[name]
	if !exists {
		return nil, fmt.Errorf("retriever %s not found", name)
	}
	return retriever, nil
}

// List returns all backends in registration order
func (r *Registry) List() []domain.Retriever {
	retrievers := make([]domain.Retriever, 0, len(r.order))
	for _, name := range r.order {
		retrievers = append(retrievers, r.retrievers[name])
	}
	return retrievers
}

// FromConfig builds a registry from the retriever configuration
func FromConfig(configs []config.RetrieverConfig, timeout time.Duration) (*Registry, error) {
	registry := NewRegistry()

	for _, cfg := range configs {
		var retriever domain.Retriever
		var err error

		switch cfg.Provider {
		case "tavily":
			retriever, err = NewTavilyClient(cfg.Endpoint, cfg.APIKey, timeout)
		case "searx":
			retriever, err = NewSearxClient(cfg.Endpoint, timeout)
		default:
			err = fmt.Errorf("unknown retriever provider: %q", cfg.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("building retriever %q: %w", cfg.Provider, err)
		}

		if err := registry.Register(retriever); err != nil {
			return nil, err
		}
	}

	if len(registry.order) == 0 {
		return nil, fmt.Errorf("no retrievers configured")
	}

	return registry, nil
}
