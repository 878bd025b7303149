package agentrt

import "sort"

// Registry is the runtime Capability registry (feature supplement #1):
// it tracks every registered agent instance, built from named config,
// and answers capability-matching queries for the orchestrator's dispatch
// step (spec.md §4.5).
type Registry struct {
	agents map[string]*AgentRegistration
	types  map[AgentType][]string // agent_type -> sorted agent_ids
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*AgentRegistration),
		types:  make(map[AgentType][]string),
	}
}

// Register adds or replaces an agent registration.
func (r *Registry) Register(reg *AgentRegistration) {
	if _, exists := r.agents[reg.AgentID]; !exists {
		r.types[reg.AgentType] = append(r.types[reg.AgentType], reg.AgentID)
		sort.Strings(r.types[reg.AgentType])
	}
	r.agents[reg.AgentID] = reg
}

// Get returns the registration for agentID, if any.
func (r *Registry) Get(agentID string) (*AgentRegistration, bool) {
	reg, ok := r.agents[agentID]
	return reg, ok
}

// ByType returns the sorted agent IDs registered under agentType.
func (r *Registry) ByType(agentType AgentType) []string {
	ids := r.types[agentType]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// HasCapability reports whether agentID declares a capability named
// capability.
func (r *Registry) HasCapability(agentID, capability string) bool {
	reg, ok := r.agents[agentID]
	if !ok {
		return false
	}
	for _, c := range reg.Capabilities {
		if c.Name == capability {
			return true
		}
	}
	return false
}
