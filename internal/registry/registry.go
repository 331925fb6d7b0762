// Package registry holds the capability provider directory.
package registry

import (
	"fmt"
	"strings"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// DefaultProviderID is the intelligence provider used when nothing else matches.
const DefaultProviderID = "intelligence"

func cloneProvider(p *models.CapabilityProvider) models.CapabilityProvider {
	c := *p
	if p.Capabilities != nil {
		c.Capabilities = append([]string(nil), p.Capabilities...)
	}
	return c
}

// Registry is an immutable, ordered directory of capability providers.
// It is safe for concurrent use because nothing mutates it after New.
type Registry struct {
	providers []models.CapabilityProvider
	index     map[string]int
	defaultID string
}

// New validates the providers and builds a registry. Order is preserved and
// used for tie-breaks. An empty defaultID selects DefaultProviderID.
func New(providers []models.CapabilityProvider, defaultID string) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("registry: at least one provider is required")
	}
	if defaultID == "" {
		defaultID = DefaultProviderID
	}

	r := &Registry{
		providers: make([]models.CapabilityProvider, 0, len(providers)),
		index:     make(map[string]int, len(providers)),
		defaultID: defaultID,
	}
	for i := range providers {
		p := cloneProvider(&providers[i])
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("registry: provider %d has an empty id", i)
		}
		if _, dup := r.index[p.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", p.ID)
		}
		if p.PriorityWeight < 0 || p.PriorityWeight > 1 {
			return nil, fmt.Errorf("registry: provider %q weight %.2f outside [0,1]", p.ID, p.PriorityWeight)
		}
		r.index[p.ID] = len(r.providers)
		r.providers = append(r.providers, p)
	}
	if _, ok := r.index[defaultID]; !ok {
		return nil, fmt.Errorf("registry: default provider %q is not registered", defaultID)
	}
	return r, nil
}

// NewDefault builds a registry from DefaultProviders.
func NewDefault() *Registry {
	r, err := New(DefaultProviders(), DefaultProviderID)
	if err != nil {
		panic(err)
	}
	return r
}

// Get retrieves a provider by id.
func (r *Registry) Get(id string) (models.CapabilityProvider, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.CapabilityProvider{}, false
	}
	return cloneProvider(&r.providers[i]), true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// List returns every provider in registry order.
func (r *Registry) List() []models.CapabilityProvider {
	out := make([]models.CapabilityProvider, len(r.providers))
	for i := range r.providers {
		out[i] = cloneProvider(&r.providers[i])
	}
	return out
}

// IDs returns provider ids in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.providers))
	for i, p := range r.providers {
		ids[i] = p.ID
	}
	return ids
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	return len(r.providers)
}

// DefaultID returns the fallback provider id.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Filter keeps only registered ids, preserving the input order and dropping duplicates.
func (r *Registry) Filter(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.Has(id) && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Order sorts a subset of ids into registry order.
func (r *Registry) Order(ids []string) []string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, p := range r.providers {
		if want[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}
