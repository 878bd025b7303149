package config

import "fmt"

// Validate performs comprehensive validation on a resolved Config, after
// defaults have been merged in. It checks both struct-level tag invariants
// (replicated here explicitly rather than via reflection, since the schema
// is small and fixed) and cross-field invariants the yaml tags can't express.
func Validate(cfg *Config) error {
	if err := validateOrchestrator(&cfg.Orchestrator); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := validateApproval(&cfg.Approval); err != nil {
		return fmt.Errorf("approval: %w", err)
	}
	if err := validateSemanticIndex(&cfg.SemanticIndex); err != nil {
		return fmt.Errorf("semantic_index: %w", err)
	}
	if err := validateGraph(&cfg.Graph); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := validateLLM(&cfg.LLM); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	for agentType, def := range cfg.Agents {
		if err := validateAgent(agentType, def); err != nil {
			return err
		}
	}
	return nil
}

func validateOrchestrator(o *OrchestratorConfig) error {
	if o.MaxConcurrentAgents < 1 {
		return fmt.Errorf("max_concurrent_agents must be at least 1, got %d", o.MaxConcurrentAgents)
	}
	if o.AgentTimeoutSeconds < 1 {
		return fmt.Errorf("agent_timeout_seconds must be positive, got %d", o.AgentTimeoutSeconds)
	}
	if o.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative, got %d", o.RetryAttempts)
	}
	return nil
}

func validateApproval(a *ApprovalConfig) error {
	if a.AutoApproveThreshold < 0 || a.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto_approve_threshold must be in [0,1], got %v", a.AutoApproveThreshold)
	}
	if a.DefaultTimeoutSeconds < 1 {
		return fmt.Errorf("default_timeout_seconds must be positive, got %d", a.DefaultTimeoutSeconds)
	}
	return nil
}

func validateSemanticIndex(s *SemanticIndexConfig) error {
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("semantic_similarity_threshold must be in [0,1], got %v", s.SimilarityThreshold)
	}
	if s.EmbeddingCacheTTL < 0 {
		return fmt.Errorf("embedding_cache_ttl must be non-negative")
	}
	return nil
}

func validateGraph(g *GraphConfig) error {
	if g.MaxTraversalDepth < 1 {
		return fmt.Errorf("max_graph_traversal_depth must be at least 1, got %d", g.MaxTraversalDepth)
	}
	return nil
}

func validateLLM(l *LLMConfig) error {
	if l.PrimaryModel == "" {
		return fmt.Errorf("primary_model is required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", l.Temperature)
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", l.MaxTokens)
	}
	return nil
}

func validateAgent(agentType string, def *AgentDefinition) error {
	if !def.Backend.IsValid() {
		return &ValidationError{Component: "agent", ID: agentType, Field: "backend", Err: fmt.Errorf("invalid backend: %s", def.Backend)}
	}
	if def.Backend == AgentBackendHTTP && def.Endpoint == "" {
		return &ValidationError{Component: "agent", ID: agentType, Field: "endpoint", Err: fmt.Errorf("endpoint required for http backend")}
	}
	if def.FallbackConfidence < 0 || def.FallbackConfidence > 1 {
		return &ValidationError{Component: "agent", ID: agentType, Field: "fallback_confidence", Err: fmt.Errorf("must be in [0,1]")}
	}
	return nil
}
