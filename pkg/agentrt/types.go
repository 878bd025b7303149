// Package agentrt provides the agent execution runtime: the bounded
// execute(task) -> structured_verdict function shape, per-agent-type
// verdict schemas, and the primary/fallback execution split. One Runtime
// serves every task of its agent type, across proposals.
package agentrt

import "time"

// AgentType is the closed set of agent roles an AgentRegistration may
// declare.
type AgentType string

// Agent types.
const (
	AgentTypeValidator  AgentType = "validator"
	AgentTypeDependency AgentType = "dependency"
	AgentTypeSemantic   AgentType = "semantic"
	AgentTypeMutation   AgentType = "mutation"
	AgentTypeImpact     AgentType = "impact"
	AgentTypeConflict   AgentType = "conflict"
)

// TaskStatus is the lifecycle of an AgentTask.
type TaskStatus string

// Task statuses.
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusTimedOut  TaskStatus = "timed_out"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a unit of work dispatched to one agent instance.
type Task struct {
	TaskID     string
	ProposalID string
	AgentID    string
	AgentType  AgentType
	Operation  string
	InputData  map[string]any
	Priority   int
	Attempt    int
}

// Capability describes one named operation an agent registration
// exposes, along with the shape of its input/output payloads. Schemas
// are free-form JSON-schema-shaped maps — the runtime does not
// validate against them structurally, it only uses them for capability
// matching during dispatch (spec.md §9 design note on a runtime
// Capability registry for dynamic dispatch).
type Capability struct {
	Name         string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// AgentRegistration describes one agent instance available to the
// orchestrator.
type AgentRegistration struct {
	AgentID           string
	AgentType         AgentType
	Capabilities      []Capability
	Priority          int
	MaxConcurrentTasks int
}

// VerdictBase carries the fields common to every agent verdict
// schema: confidence, free-text reasoning, and whether the verdict was
// produced by the local deterministic fallback rather than the
// primary (possibly LLM-backed) execution path.
type VerdictBase struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
	FallbackMode    bool    `json:"fallback_mode"`
}

// Confidence returns the verdict's confidence score, satisfying Verdict.
func (v VerdictBase) Confidence() float64 { return v.ConfidenceScore }

// IsFallback reports whether the fallback path produced this verdict.
func (v VerdictBase) IsFallback() bool { return v.FallbackMode }

// Verdict is the structured result of executing one AgentTask. Each
// agent type returns a distinct concrete type embedding VerdictBase.
type Verdict interface {
	Confidence() float64
	IsFallback() bool
}

// ValidatorVerdict is returned by validator-type agents.
type ValidatorVerdict struct {
	VerdictBase
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// DependencyVerdict is returned by dependency-type agents.
type DependencyVerdict struct {
	VerdictBase
	DependencyGraph       map[string][]string `json:"dependency_graph"`
	CircularDependencies  []CycleDescriptor   `json:"circular_dependencies"`
	ResolutionSuggestions []string            `json:"resolution_suggestions"`
	IsValid               bool                `json:"is_valid"`
}

// CycleDescriptor is the JSON-serializable shape of a detected cycle,
// mirroring graphalgo.Cycle without importing it here (agentrt stays
// independent of graphalgo; the orchestrator translates between them).
type CycleDescriptor struct {
	NodeIDs  []string `json:"node_ids"`
	Severity string   `json:"severity"`
}

// MutationPlan is the structured plan produced by a mutation-generator
// agent: ordered steps plus the rollback plan to reverse them.
type MutationPlan struct {
	Steps        []string `json:"steps"`
	RollbackPlan []string `json:"rollback_plan"`
}

// MutationVerdict is returned by mutation-generator-type agents.
type MutationVerdict struct {
	VerdictBase
	Success            bool          `json:"success"`
	Plan               MutationPlan  `json:"mutation_plan"`
	Alternatives       []MutationPlan `json:"alternatives"`
	FeasibilityScore   float64       `json:"feasibility_score"`
	ComplexityScore    float64       `json:"complexity_score"`
	RiskFactors        []string      `json:"risk_factors"`
	Prerequisites      []string      `json:"prerequisites"`
	ValidationCriteria []string      `json:"validation_criteria"`
}

// ImpactVerdict is returned by impact-type agents.
type ImpactVerdict struct {
	VerdictBase
	DirectlyAffected     []string `json:"directly_affected"`
	TransitivelyAffected []string `json:"transitively_affected"`
	ImpactRatio          float64  `json:"impact_ratio"`
	Severity             string   `json:"severity"`
}

// SemanticVerdict is returned by semantic-type agents.
type SemanticVerdict struct {
	VerdictBase
	RelatedNodeIDs []string  `json:"related_node_ids"`
	Similarities   []float64 `json:"similarities"`
}

// ConflictVerdict is returned by conflict-type agents.
type ConflictVerdict struct {
	VerdictBase
	ConflictingFields   []string `json:"conflicting_fields"`
	AutoMergeable       bool     `json:"auto_mergeable"`
	SuggestedResolution string   `json:"suggested_resolution"`
}

// taskTimeout bounds how long a single primary-path HTTP call to the
// external analysis service may run before falling back, separate from
// the orchestrator's overall per-task deadline which also bounds the
// fallback execution.
const taskTimeout = 30 * time.Second
