package registry

import (
	"fmt"
	"sync"

	"github.com/wpchat/agentcore/internal/agent"
	"github.com/wpchat/agentcore/internal/provider"
)

// ConfigurationError marks a deployment/config bug: a missing provider
// or a broken agent registration. It is always fatal to the run.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func NewConfigurationError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

// Factory builds an agent from its resolved provider and static config.
type Factory func(p provider.Provider, cfg agent.Config) agent.Agent

type registration struct {
	factory      Factory
	providerName string
	config       agent.Config
}

// Registry owns the configured providers and agent factories. Cached
// agent instances hold configuration only, so concurrent reads from
// multiple runs are safe.
type Registry struct {
	mu              sync.RWMutex
	defaultProvider string
	providers       map[string]provider.Provider
	agents          map[string]registration
	cache           map[string]agent.Agent
}

// New creates a registry whose default provider has the given name.
func New(defaultProvider string) *Registry {
	return &Registry{
		defaultProvider: defaultProvider,
		providers:       make(map[string]provider.Provider),
		agents:          make(map[string]registration),
		cache:           make(map[string]agent.Agent),
	}
}

// RegisterProvider adds (or replaces) a named provider.
func (r *Registry) RegisterProvider(name string, p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Provider returns the named provider.
func (r *Registry) Provider(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Providers returns a copy of the provider map.
func (r *Registry) Providers() map[string]provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]provider.Provider, len(r.providers))
	for name, p := range r.providers {
		out[name] = p
	}
	return out
}

// RegisterAgent stores a factory for the named agent. providerName may
// be empty to use the registry default at instantiation time. Nothing
// is constructed until the agent is first requested.
func (r *Registry) RegisterAgent(name string, factory Factory, providerName string, cfg agent.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[name] = registration{
		factory:      factory,
		providerName: providerName,
		config:       cfg,
	}
	delete(r.cache, name)
}

// Agent returns the named agent, instantiating it on first use and
// caching the instance. An unknown name returns (nil, nil): the
// not-found decision belongs to the caller. Construction failures
// return a *ConfigurationError.
func (r *Registry) Agent(name string) (agent.Agent, error) {
	r.mu.RLock()
	if cached, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	a, known, err := r.build(name)
	if err != nil || !known {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = a
	r.mu.Unlock()
	return a, nil
}

// FreshAgent builds a new instance of the named agent, bypassing and
// not populating the cache.
func (r *Registry) FreshAgent(name string) (agent.Agent, error) {
	a, _, err := r.build(name)
	return a, err
}

func (r *Registry) build(name string) (agent.Agent, bool, error) {
	r.mu.RLock()
	reg, known := r.agents[name]
	r.mu.RUnlock()
	if !known {
		return nil, false, nil
	}

	p, err := r.ResolveProvider(reg.providerName)
	if err != nil {
		return nil, true, err
	}
	return reg.factory(p, reg.config), true, nil
}

// ResolveProvider returns the named provider, falling back to the
// registry default when name is empty. Failure to resolve either is a
// ConfigurationError.
func (r *Registry) ResolveProvider(name string) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
		return nil, NewConfigurationError("resolve provider",
			fmt.Errorf("provider %q is not registered", name))
	}

	if r.defaultProvider == "" {
		return nil, NewConfigurationError("resolve provider",
			fmt.Errorf("no provider name given and no default provider configured"))
	}
	if p, ok := r.providers[r.defaultProvider]; ok {
		return p, nil
	}
	return nil, NewConfigurationError("resolve provider",
		fmt.Errorf("default provider %q is not registered", r.defaultProvider))
}

// ClearAgentCache evicts one cached agent instance so configuration
// changes take effect on next use.
func (r *Registry) ClearAgentCache(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

// ClearAgentCaches evicts all cached agent instances.
func (r *Registry) ClearAgentCaches() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]agent.Agent)
}
