// Package agentregistry holds the static fleet of trading-account agents
// loaded from configuration. It never mutates after construction; agent
// reachability is tracked separately by the aggregator and smart cache.
package agentregistry

import (
	"fmt"
	"sort"

	"github.com/sinfolonokojo/mt5-backend/internal/config"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

// Registry resolves agent names to their configured base URL.
type Registry struct {
	agents map[string]domain.Agent
	names  []string
}

// New builds a Registry from the configured agent list. Names are sorted,
// so Names() gives a deterministic fan-out ordering in logs.
func New(cfg []config.AgentConfig) (*Registry, error) {
	r := &Registry{agents: make(map[string]domain.Agent, len(cfg))}
	for _, a := range cfg {
		if _, exists := r.agents[a.Name]; exists {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		r.agents[a.Name] = domain.Agent{Name: a.Name, BaseURL: a.BaseURL}
		r.names = append(r.names, a.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Resolve returns the agent registered under name.
func (r *Registry) Resolve(name string) (domain.Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// All returns every registered agent, in stable name order.
func (r *Registry) All() []domain.Agent {
	out := make([]domain.Agent, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.agents[n])
	}
	return out
}

// Names returns the registered agent names in stable order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len reports how many agents are registered.
func (r *Registry) Len() int {
	return len(r.agents)
}
