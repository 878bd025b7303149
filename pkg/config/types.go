// Package config provides configuration management for the lattice mutation
// engine: orchestrator tunables, the per-agent-type capability registry, and
// the ambient infrastructure settings (database, approval channels, index
// backend) loaded from a single YAML file with environment-variable
// expansion and struct-tag validation.
package config

import "time"

// OrchestratorConfig governs agent dispatch and retry behavior (spec.md §6).
type OrchestratorConfig struct {
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents" validate:"min=1"`
	AgentTimeoutSeconds  int           `yaml:"agent_timeout_seconds" validate:"min=1"`
	RetryAttempts        int           `yaml:"retry_attempts" validate:"min=0"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay"`
}

// ApprovalConfig governs the human-approval ladder (spec.md §4.6).
type ApprovalConfig struct {
	AutoApproveThreshold   float64       `yaml:"auto_approve_threshold" validate:"min=0,max=1"`
	DefaultTimeoutSeconds  int           `yaml:"default_timeout_seconds" validate:"min=1"`
}

// SemanticIndexConfig governs the semantic index's backend and fallback
// ranker (spec.md §4.5).
type SemanticIndexConfig struct {
	SimilarityThreshold float64       `yaml:"semantic_similarity_threshold" validate:"min=0,max=1"`
	EmbeddingCacheTTL    time.Duration `yaml:"embedding_cache_ttl"`
	RedisAddr            string        `yaml:"redis_addr,omitempty"`
}

// GraphConfig governs graph algorithm limits (spec.md §4.3).
type GraphConfig struct {
	MaxTraversalDepth int `yaml:"max_graph_traversal_depth" validate:"min=1"`
}

// LLMConfig names the default model pair every agent falls back to when it
// doesn't specify its own (spec.md §4.7 — agents are LLM-assisted).
type LLMConfig struct {
	PrimaryModel  string  `yaml:"primary_model" validate:"required"`
	FallbackModel string  `yaml:"fallback_model,omitempty"`
	Temperature   float64 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens     int     `yaml:"max_tokens" validate:"min=1"`
}

// AgentBackendKind selects how an AgentDefinition reaches its implementation.
type AgentBackendKind string

const (
	// AgentBackendHTTP calls an external analysis service over HTTP/JSON.
	AgentBackendHTTP AgentBackendKind = "http"
	// AgentBackendLocal runs a deterministic in-process fallback only —
	// used for agent types that have no external service configured.
	AgentBackendLocal AgentBackendKind = "local"
)

// IsValid reports whether k is a recognized backend kind.
func (k AgentBackendKind) IsValid() bool {
	return k == AgentBackendHTTP || k == AgentBackendLocal
}

// AgentDefinition configures one registered agent type (validator,
// dependency, mutation-generator, impact, semantic, conflict — spec.md §4.7).
type AgentDefinition struct {
	Type       string           `yaml:"type" validate:"required"`
	Backend    AgentBackendKind `yaml:"backend" validate:"required"`
	Endpoint   string           `yaml:"endpoint,omitempty"`
	Timeout    time.Duration    `yaml:"timeout,omitempty"`
	// FallbackConfidence is the confidence score reported by this agent's
	// deterministic local fallback when its primary backend is unavailable
	// (spec.md §9 Open Question — fallback confidence is a config tunable,
	// not a hardcoded constant).
	FallbackConfidence float64 `yaml:"fallback_confidence" validate:"min=0,max=1"`
}

// Config is the fully resolved, validated engine configuration.
type Config struct {
	Orchestrator  OrchestratorConfig         `yaml:"orchestrator"`
	Approval      ApprovalConfig             `yaml:"approval"`
	SemanticIndex SemanticIndexConfig        `yaml:"semantic_index"`
	Graph         GraphConfig                `yaml:"graph"`
	LLM           LLMConfig                  `yaml:"llm"`
	Agents        map[string]*AgentDefinition `yaml:"agents"`
}

// GetAgent retrieves an agent definition by type.
func (c *Config) GetAgent(agentType string) (*AgentDefinition, error) {
	def, ok := c.Agents[agentType]
	if !ok {
		return nil, &ValidationError{Component: "agent", ID: agentType, Err: ErrAgentNotFound}
	}
	return def, nil
}
