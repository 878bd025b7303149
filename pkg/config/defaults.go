package config

import "time"

// Default values applied when a YAML file omits the field (spec.md §6).
const (
	DefaultMaxConcurrentAgents = 10
	DefaultAgentTimeoutSeconds = 300
	DefaultRetryAttempts       = 3
	DefaultRetryBaseDelay      = 500 * time.Millisecond

	DefaultAutoApproveThreshold  = 0.85
	DefaultApprovalTimeoutSecs   = 300

	DefaultSemanticSimilarityThreshold = 0.75
	DefaultEmbeddingCacheTTL           = 1 * time.Hour

	DefaultMaxGraphTraversalDepth = 10

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096

	// DefaultFallbackConfidence is the confidence reported by an agent's
	// deterministic fallback when no per-agent value is configured — set
	// low enough that auto-apply never engages on fallback-only output.
	DefaultFallbackConfidence = 0.5
)

// DefaultConfig returns an engine configuration with every tunable in
// spec.md §6 set to its documented default and no agents registered. Callers
// load a YAML file on top of this via mergeDefaults.
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrentAgents: DefaultMaxConcurrentAgents,
			AgentTimeoutSeconds: DefaultAgentTimeoutSeconds,
			RetryAttempts:       DefaultRetryAttempts,
			RetryBaseDelay:      DefaultRetryBaseDelay,
		},
		Approval: ApprovalConfig{
			AutoApproveThreshold:  DefaultAutoApproveThreshold,
			DefaultTimeoutSeconds: DefaultApprovalTimeoutSecs,
		},
		SemanticIndex: SemanticIndexConfig{
			SimilarityThreshold: DefaultSemanticSimilarityThreshold,
			EmbeddingCacheTTL:   DefaultEmbeddingCacheTTL,
		},
		Graph: GraphConfig{
			MaxTraversalDepth: DefaultMaxGraphTraversalDepth,
		},
		LLM: LLMConfig{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Agents: map[string]*AgentDefinition{},
	}
}

// mergeDefaults fills zero-valued fields of cfg with DefaultConfig's values.
// Unlike a generic deep-merge library, this is deliberately explicit field by
// field — the set of tunables is small and fixed, and the explicit form
// makes "what is a default vs what the operator set" auditable at a glance.
func mergeDefaults(cfg *Config) {
	d := DefaultConfig()

	if cfg.Orchestrator.MaxConcurrentAgents == 0 {
		cfg.Orchestrator.MaxConcurrentAgents = d.Orchestrator.MaxConcurrentAgents
	}
	if cfg.Orchestrator.AgentTimeoutSeconds == 0 {
		cfg.Orchestrator.AgentTimeoutSeconds = d.Orchestrator.AgentTimeoutSeconds
	}
	if cfg.Orchestrator.RetryAttempts == 0 {
		cfg.Orchestrator.RetryAttempts = d.Orchestrator.RetryAttempts
	}
	if cfg.Orchestrator.RetryBaseDelay == 0 {
		cfg.Orchestrator.RetryBaseDelay = d.Orchestrator.RetryBaseDelay
	}

	if cfg.Approval.AutoApproveThreshold == 0 {
		cfg.Approval.AutoApproveThreshold = d.Approval.AutoApproveThreshold
	}
	if cfg.Approval.DefaultTimeoutSeconds == 0 {
		cfg.Approval.DefaultTimeoutSeconds = d.Approval.DefaultTimeoutSeconds
	}

	if cfg.SemanticIndex.SimilarityThreshold == 0 {
		cfg.SemanticIndex.SimilarityThreshold = d.SemanticIndex.SimilarityThreshold
	}
	if cfg.SemanticIndex.EmbeddingCacheTTL == 0 {
		cfg.SemanticIndex.EmbeddingCacheTTL = d.SemanticIndex.EmbeddingCacheTTL
	}

	if cfg.Graph.MaxTraversalDepth == 0 {
		cfg.Graph.MaxTraversalDepth = d.Graph.MaxTraversalDepth
	}

	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = d.LLM.Temperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = d.LLM.MaxTokens
	}

	if cfg.Agents == nil {
		cfg.Agents = map[string]*AgentDefinition{}
	}
	for _, def := range cfg.Agents {
		if def.Backend == "" {
			def.Backend = AgentBackendLocal
		}
		if def.FallbackConfidence == 0 {
			def.FallbackConfidence = DefaultFallbackConfidence
		}
		if def.Timeout == 0 {
			def.Timeout = time.Duration(cfg.Orchestrator.AgentTimeoutSeconds) * time.Second
		}
	}
}
