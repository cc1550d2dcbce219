package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
	"github.com/parleyhq/parley/internal/provider"
)

// ErrUnsupportedProvider indicates a snapshot named a provider the registry
// does not know.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ProviderFactory constructs one provider adapter on first use.
type ProviderFactory func(ctx context.Context) (provider.Provider, error)

// Registry lazily constructs and caches one provider adapter per provider id
// and turns persisted bot snapshots into live bots. It is explicitly
// constructed and injected; multiple independent registries may coexist.
type Registry struct {
	mu        sync.Mutex
	factories map[string]ProviderFactory
	order     []string
	providers map[string]provider.Provider
}

// NewRegistry returns an empty registry. Callers register the provider
// factories they have credentials for.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		providers: make(map[string]provider.Provider),
	}
}

// RegisterProvider makes a provider id constructible. Registering the same id
// twice replaces the factory.
func (r *Registry) RegisterProvider(id string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[id]; !ok {
		r.order = append(r.order, id)
	}
	r.factories[id] = factory
}

// Provider returns the memoized adapter for id, constructing it on first use.
func (r *Registry) Provider(ctx context.Context, id string) (provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[id]; ok {
		return p, nil
	}

	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, id)
	}

	p, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to construct provider %s: %w", id, err)
	}

	r.providers[id] = p
	log.Printf("[registry] provider initialized: %s", id)
	return p, nil
}

// CreateBot resolves the snapshot's provider and builds a live bot from it.
func (r *Registry) CreateBot(ctx context.Context, snapshot botmodel.Snapshot) (*Bot, error) {
	p, err := r.Provider(ctx, snapshot.ProviderID)
	if err != nil {
		return nil, err
	}
	return New(p, snapshot.ModelID, snapshot.Config), nil
}

// ProviderInfos describes every registered provider: id, available models and
// config schema. Providers that fail to construct are skipped with a warning.
func (r *Registry) ProviderInfos(ctx context.Context) []botmodel.ProviderInfo {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	infos := make([]botmodel.ProviderInfo, 0, len(ids))
	for _, id := range ids {
		p, err := r.Provider(ctx, id)
		if err != nil {
			log.Printf("[registry] skipping provider %s: %v", id, err)
			continue
		}
		infos = append(infos, provider.Describe(ctx, p))
	}
	return infos
}
