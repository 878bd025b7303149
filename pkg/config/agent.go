package config

// AgentTypes returns the registered agent type names, in no particular
// order.
func (c *Config) AgentTypes() []string {
	types := make([]string, 0, len(c.Agents))
	for t := range c.Agents {
		types = append(types, t)
	}
	return types
}

// HasAgent reports whether agentType is registered.
func (c *Config) HasAgent(agentType string) bool {
	_, ok := c.Agents[agentType]
	return ok
}
