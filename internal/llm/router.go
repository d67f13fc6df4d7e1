package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Router manages LLM providers and routing
type Router struct {
	providers       map[string]Provider
	defaultProvider string
	mu              sync.RWMutex
}

// NewRouter creates a new LLM router
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: strings.ToLower(defaultProvider),
	}
}

// RegisterProvider registers an LLM provider
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(provider.Name())] = provider
}

// GetProvider returns a configured provider by name. Lookup is case-insensitive and an
// empty name selects the default provider.
func (r *Router) GetProvider(name string) (Provider, error) {
	name = r.resolve(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}

	return p, nil
}

func (r *Router) resolve(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return r.defaultProvider
	}
	return name
}

// ListProviders returns list of configured provider names
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var providers []string
	for name, p := range r.providers {
		if p.IsConfigured() {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

// DefaultProvider returns the default provider name
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// ProviderInfo contains information about an LLM provider
type ProviderInfo struct {
	Name         string   `json:"name"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
	Default      bool     `json:"default"`
	Configured   bool     `json:"configured"`
}

// GetProvidersInfo returns information about all providers, sorted by name
func (r *Router) GetProvidersInfo() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		infos = append(infos, ProviderInfo{
			Name:         name,
			Models:       p.AvailableModels(),
			DefaultModel: p.DefaultModel(),
			Default:      name == r.defaultProvider,
			Configured:   p.IsConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
