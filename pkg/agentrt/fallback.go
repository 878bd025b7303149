package agentrt

// fallbackFor returns the deterministic local-rules fallback for the
// given agent type. Each fallback reads only the precomputed facts the
// orchestrator already attached to Task.InputData (graph adjacency,
// cycle lists, impact sets, etc. computed by pkg/graphalgo) — it never
// performs its own graph traversal, keeping agentrt independent of
// graph/graphalgo.
func fallbackFor(agentType AgentType) FallbackFunc {
	switch agentType {
	case AgentTypeValidator:
		return validatorFallback
	case AgentTypeDependency:
		return dependencyFallback
	case AgentTypeSemantic:
		return semanticFallback
	case AgentTypeMutation:
		return mutationFallback
	case AgentTypeImpact:
		return impactFallback
	case AgentTypeConflict:
		return conflictFallback
	default:
		return genericFallback
	}
}

func genericFallback(_ *Task, confidence float64) Verdict {
	return ValidatorVerdict{
		VerdictBase: VerdictBase{ConfidenceScore: confidence, Reasoning: "no local rule for this agent type", FallbackMode: true},
		IsValid:     true,
	}
}

// validatorFallback runs three local rule passes: schema shape (every
// required field present, an error otherwise), a status check (a warning
// when status is empty), and a content check (a suggestion when content is
// empty), merging their findings into one verdict. Only missing required
// fields make the verdict invalid.
func validatorFallback(task *Task, confidence float64) Verdict {
	var errs, warnings, suggestions []string

	required, _ := task.InputData["required_fields"].([]string)
	present, _ := task.InputData["present_fields"].(map[string]bool)
	for _, field := range required {
		if !present[field] {
			errs = append(errs, "missing required field: "+field)
		}
	}

	if status, ok := task.InputData["status"].(string); ok && status == "" {
		warnings = append(warnings, "status is empty")
	}
	if content, ok := task.InputData["content"].(string); ok && content == "" {
		suggestions = append(suggestions, "content is empty; consider populating before approval")
	}

	return ValidatorVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "local schema-shape/business-rule/semantic-consistency passes, no external model consulted",
			FallbackMode:    true,
		},
		IsValid:     len(errs) == 0,
		Errors:      errs,
		Warnings:    warnings,
		Suggestions: suggestions,
	}
}

// dependencyFallback reads the dependency graph and cycle list the
// orchestrator already computed via graphalgo and turns cycles into
// resolution_suggestions (feature supplement #2): one suggestion per
// cycle to break it by demoting one of its edges to `refines`. The
// suggestion does not name which edge.
func dependencyFallback(task *Task, confidence float64) Verdict {
	depGraph, _ := task.InputData["dependency_graph"].(map[string][]string)
	cycles, _ := task.InputData["cycles"].([]CycleDescriptor)

	suggestions := make([]string, 0, len(cycles))
	for _, c := range cycles {
		if len(c.NodeIDs) == 0 {
			continue
		}
		suggestions = append(suggestions, "break cycle ["+joinIDs(c.NodeIDs)+"] by demoting an edge to refines")
	}

	return DependencyVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "local cycle-list pass over precomputed dependency graph",
			FallbackMode:    true,
		},
		DependencyGraph:       depGraph,
		CircularDependencies:  cycles,
		ResolutionSuggestions: suggestions,
		IsValid:               len(cycles) == 0,
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}

// semanticFallback trusts the lexical (TF-IDF) ranking the semantic
// index already computed and degraded to — per spec.md §4.3 the index
// itself handles primary/fallback degradation, so the agent-level
// fallback here simply relays whatever candidates were attached.
func semanticFallback(task *Task, confidence float64) Verdict {
	related, _ := task.InputData["related_node_ids"].([]string)
	sims, _ := task.InputData["similarities"].([]float64)
	return SemanticVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "relayed lexical (TF-IDF) ranking, no external embedding model consulted",
			FallbackMode:    true,
		},
		RelatedNodeIDs: related,
		Similarities:   sims,
	}
}

// mutationFallback produces the smallest always-safe plan: a single
// manual-review step with no automated rollback, feasible but flagged
// low-confidence so auto-apply eligibility (orchestrator aggregation)
// is never granted from a fallback-generated plan alone.
func mutationFallback(task *Task, confidence float64) Verdict {
	operation, _ := task.InputData["operation_type"].(string)
	step := "manually review and apply the proposed " + operation + " operation"
	return MutationVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "no external mutation-generation model consulted; deferring to manual review",
			FallbackMode:    true,
		},
		Success: true,
		Plan: MutationPlan{
			Steps:        []string{step},
			RollbackPlan: []string{"revert to current_version snapshot"},
		},
		FeasibilityScore: confidence,
		ComplexityScore:  0.5,
		RiskFactors:      []string{"generated without external model review"},
	}
}

// impactFallback trusts the directly/transitively affected sets the
// orchestrator already computed via graphalgo.AnalyzeImpact and just
// restates them with a fallback marker and a locally derived severity,
// matching the spec's severity thresholds.
func impactFallback(task *Task, confidence float64) Verdict {
	direct, _ := task.InputData["directly_affected"].([]string)
	transitive, _ := task.InputData["transitively_affected"].([]string)
	ratio, _ := task.InputData["impact_ratio"].(float64)

	severity := "low"
	switch {
	case ratio >= 0.5:
		severity = "high"
	case ratio >= 0.2:
		severity = "medium"
	}

	return ImpactVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "relayed reverse-adjacency BFS impact sets computed locally",
			FallbackMode:    true,
		},
		DirectlyAffected:     direct,
		TransitivelyAffected: transitive,
		ImpactRatio:          ratio,
		Severity:             severity,
	}
}

// conflictFallback treats any non-empty conflicting-field set as not
// auto-mergeable, the conservative default for a local-only pass.
func conflictFallback(task *Task, confidence float64) Verdict {
	fields, _ := task.InputData["conflicting_fields"].([]string)
	resolution := "no conflicting fields detected"
	if len(fields) > 0 {
		resolution = "manual resolution required for: " + joinIDs(fields)
	}
	return ConflictVerdict{
		VerdictBase: VerdictBase{
			ConfidenceScore: confidence,
			Reasoning:       "local three-way diff field comparison, no external model consulted",
			FallbackMode:    true,
		},
		ConflictingFields:   fields,
		AutoMergeable:       len(fields) == 0,
		SuggestedResolution: resolution,
	}
}
