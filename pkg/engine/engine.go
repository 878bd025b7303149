// Package engine wires the mutation engine core's components together and
// exposes the single entrypoint a caller (HTTP handler, CLI, scheduled job)
// needs: ProposeMutation, which drives a MutationProposal through
// validation, agent dispatch, optional human approval, and application
// against the spec graph (spec.md §2 "data flow", §4.6).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/conflict"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graphalgo"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/orchestrator"
)

const (
	ownerOrchestrator = "orchestrator"
	ownerApproval     = "approval-manager"
	ownerApplier      = "applier"
)

// Engine ties the graph repository, semantic index, agent orchestrator,
// mutation store, approval manager, and live channel hub into the single
// pipeline described by spec.md §2. It implements approval.Completer so the
// approval manager can hand a resolved decision straight back into
// application without either package importing the other.
type Engine struct {
	graph        graph.Repository
	index        *index.Index
	orchestrator *orchestrator.Orchestrator
	store        mutation.Store
	approvals    *approval.Manager
	conflicts    *conflict.Engine
	hub          *hub.Hub
	metrics      *metrics.Registry
	maxDepth     int
}

// New builds an Engine from its collaborators. approvals is constructed by
// the caller with this Engine passed as its approval.Completer (a two-step
// wiring — see cmd/latticed/main.go — since approval.NewManager needs a
// Completer and Engine needs the resulting *approval.Manager).
func New(
	repo graph.Repository,
	idx *index.Index,
	orch *orchestrator.Orchestrator,
	store mutation.Store,
	approvals *approval.Manager,
	conflicts *conflict.Engine,
	h *hub.Hub,
	m *metrics.Registry,
	maxTraversalDepth int,
) *Engine {
	return &Engine{
		graph:        repo,
		index:        idx,
		orchestrator: orch,
		store:        store,
		approvals:    approvals,
		conflicts:    conflicts,
		hub:          h,
		metrics:      m,
		maxDepth:     maxTraversalDepth,
	}
}

// SetApprovals completes the two-step wiring New's doc comment describes,
// attaching the approval.Manager built with this Engine as its Completer.
// Must be called once, before the Engine serves any traffic.
func (e *Engine) SetApprovals(approvals *approval.Manager) {
	e.approvals = approvals
}

// ProposeMutationInput is the caller-supplied shape of a new proposal
// (spec.md §3 MutationProposal, pre-lifecycle fields only).
type ProposeMutationInput struct {
	SpecID          string
	OperationType   mutation.OperationType
	CurrentVersion  string
	ProposedChanges map[string]any
	Reasoning       string
	Confidence      float64
	UserID          string
}

// ProposeMutation drives one proposal through the full pipeline: it records
// the proposal, dispatches it to the agent orchestrator, and either routes
// it to human approval or applies it immediately depending on the
// aggregated auto-apply decision (spec.md §2, §4.5, §4.6).
func (e *Engine) ProposeMutation(ctx context.Context, in ProposeMutationInput) (*mutation.Proposal, error) {
	now := time.Now()
	p := &mutation.Proposal{
		ProposalID:      uuid.New().String(),
		SpecID:          in.SpecID,
		OperationType:   in.OperationType,
		CurrentVersion:  in.CurrentVersion,
		ProposedChanges: in.ProposedChanges,
		Reasoning:       in.Reasoning,
		Confidence:      in.Confidence,
		Status:          mutation.StatusProposed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Create(ctx, p, ownerOrchestrator); err != nil {
		return nil, fmt.Errorf("engine: create proposal: %w", err)
	}
	if e.metrics != nil {
		e.metrics.RecordProposed()
	}

	if _, err := e.store.Transition(ctx, p.ProposalID, mutation.StatusProposed, mutation.StatusValidating, ownerOrchestrator, ownerOrchestrator, mutation.Patch{}); err != nil {
		return nil, fmt.Errorf("engine: enter validating: %w", err)
	}

	agg, err := e.dispatchAndAggregate(ctx, p)
	if err != nil {
		e.fail(ctx, p.ProposalID, err)
		return nil, err
	}

	if e.conflicts != nil {
		if err := e.checkConflicts(ctx, p, &agg); err != nil {
			e.fail(ctx, p.ProposalID, err)
			return nil, err
		}
	}

	patch := mutation.Patch{ImpactAnalysis: impactFromAggregate(agg)}

	if agg.AutoApplyEligible {
		if _, err := e.store.Transition(ctx, p.ProposalID, mutation.StatusValidating, mutation.StatusApplying, ownerOrchestrator, ownerApplier, patch); err != nil {
			return nil, fmt.Errorf("engine: enter applying: %w", err)
		}
		if _, err := e.applyProposal(ctx, p.ProposalID); err != nil {
			return nil, err
		}
	} else {
		if _, err := e.store.Transition(ctx, p.ProposalID, mutation.StatusValidating, mutation.StatusAwaitingApproval, ownerOrchestrator, ownerApproval, patch); err != nil {
			return nil, fmt.Errorf("engine: enter awaiting_approval: %w", err)
		}
		if err := e.requestApproval(ctx, p, agg); err != nil {
			return nil, err
		}
	}

	return e.store.Get(ctx, p.ProposalID)
}

// dispatchAndAggregate fans the proposal out to the agent orchestrator and
// reduces the resulting verdicts (spec.md §4.5). Every dispatched task's
// InputData is seeded with the base proposal fields plus whatever
// graph-derived facts its agent type actually consumes (spec.md §2 "The
// Spec Graph is queried throughout by Dependency, Conflict, and Impact
// agents") — the dependency adjacency and cycle list for the dependency
// agent, the reverse-dependency blast radius for the impact agent, and the
// semantic index's nearest neighbors for the semantic agent — so both the
// HTTP primary path and the local fallback in pkg/agentrt analyze the
// proposal's real position in the graph rather than an empty one.
func (e *Engine) dispatchAndAggregate(ctx context.Context, p *mutation.Proposal) (orchestrator.AggregateResult, error) {
	snap, err := e.graph.Snapshot(ctx, nil, nil)
	if err != nil {
		return orchestrator.AggregateResult{}, fmt.Errorf("engine: snapshot before dispatch: %w", err)
	}

	depGraph := dependencyAdjacency(snap)
	depCycles := cycleDescriptors(graphalgo.FindAllCycles(snap, graph.DependencyEdgeKinds))
	impact := graphalgo.AnalyzeImpact(snap, p.SpecID)
	relatedIDs, similarities := e.relatedNodeFacts(ctx, p)

	build := func(agentType agentrt.AgentType) *agentrt.Task {
		input := map[string]any{
			"spec_id":          p.SpecID,
			"operation_type":   string(p.OperationType),
			"current_version":  p.CurrentVersion,
			"proposed_changes": p.ProposedChanges,
			"reasoning":        p.Reasoning,
		}
		switch agentType {
		case agentrt.AgentTypeDependency:
			input["dependency_graph"] = depGraph
			input["cycles"] = depCycles
		case agentrt.AgentTypeImpact:
			input["directly_affected"] = impact.DirectlyAffected
			input["transitively_affected"] = impact.TransitivelyAffected
			input["impact_ratio"] = impact.ImpactRatio
		case agentrt.AgentTypeSemantic:
			input["related_node_ids"] = relatedIDs
			input["similarities"] = similarities
		}
		return &agentrt.Task{
			TaskID:     uuid.New().String(),
			ProposalID: p.ProposalID,
			AgentType:  agentType,
			Operation:  "review",
			InputData:  input,
		}
	}
	results := e.orchestrator.DispatchProposal(ctx, p.ProposalID, build)
	return e.orchestrator.Aggregate(results), nil
}

// dependencyAdjacency builds the source-id -> target-ids map the dependency
// agent's DependencyGraph verdict field carries, restricted to
// graph.DependencyEdgeKinds (spec.md:67 "Dependency resolver").
func dependencyAdjacency(snap *graph.Snapshot) map[string][]string {
	adj := make(map[string][]string, len(snap.Nodes))
	for _, e := range snap.Edges {
		if !graph.DependencyEdgeKinds[e.Kind] {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}
	return adj
}

func cycleDescriptors(cycles []graphalgo.Cycle) []agentrt.CycleDescriptor {
	out := make([]agentrt.CycleDescriptor, len(cycles))
	for i, c := range cycles {
		out[i] = agentrt.CycleDescriptor{NodeIDs: c.NodeIDs, Severity: string(c.Severity)}
	}
	return out
}

// relatedNodeFacts asks the semantic index for the nodes most similar to
// the proposal's content, feeding the semantic agent's related_node_ids and
// similarities facts (spec.md §4.3).
func (e *Engine) relatedNodeFacts(ctx context.Context, p *mutation.Proposal) ([]string, []float64) {
	if e.index == nil {
		return nil, nil
	}
	query := queryTextForProposal(p)
	if query == "" {
		return nil, nil
	}
	results, err := e.index.Search(ctx, query, 5, index.Filters{})
	if err != nil {
		return nil, nil
	}
	ids := make([]string, len(results))
	sims := make([]float64, len(results))
	for i, r := range results {
		ids[i] = r.Node.ID
		sims[i] = r.Similarity
	}
	return ids, sims
}

func queryTextForProposal(p *mutation.Proposal) string {
	if name, ok := p.ProposedChanges["name"].(string); ok && name != "" {
		return name
	}
	if desc, ok := p.ProposedChanges["description"].(string); ok && desc != "" {
		return desc
	}
	return p.Reasoning
}

func impactFromAggregate(agg orchestrator.AggregateResult) *mutation.ImpactAnalysis {
	for _, r := range agg.Results {
		if iv, ok := r.Verdict.(*agentrt.ImpactVerdict); ok {
			return &mutation.ImpactAnalysis{
				DirectlyAffected:     iv.DirectlyAffected,
				TransitivelyAffected: iv.TransitivelyAffected,
				ImpactRatio:          iv.ImpactRatio,
				Severity:             iv.Severity,
			}
		}
	}
	return &mutation.ImpactAnalysis{Severity: agg.HighestSeverity}
}

// checkConflicts looks for other currently-active proposals targeting the
// same spec_id and, for each one whose changes overlap with p's, runs a
// three-way merge against the node's last-committed field values and
// dispatches the conflict agent on demand (spec.md §4.5 "conflict agent on
// demand", §1 "three-way merge"). A non-auto-mergeable overlap forces
// agg.AutoApplyEligible false so the proposal is routed to a human
// reviewer instead of silently auto-applying over another in-flight edit.
func (e *Engine) checkConflicts(ctx context.Context, p *mutation.Proposal, agg *orchestrator.AggregateResult) error {
	others, err := e.store.List(ctx, mutation.Filters{SpecID: p.SpecID})
	if err != nil {
		return fmt.Errorf("engine: list in-flight proposals for conflict check: %w", err)
	}

	ancestor := map[string]any{}
	if n, err := e.graph.GetNode(ctx, p.SpecID); err == nil && n != nil {
		ancestor = map[string]any{"name": n.Name, "description": n.Description, "content": n.Content}
	}

	for _, other := range others {
		if other.ProposalID == p.ProposalID || !isActive(other.Status) {
			continue
		}

		report := conflict.ThreeWayMerge(ancestor, other.ProposedChanges, p.ProposedChanges)
		if report.AutoMergeable {
			continue
		}

		task := &agentrt.Task{
			TaskID:     uuid.New().String(),
			ProposalID: p.ProposalID,
			AgentType:  agentrt.AgentTypeConflict,
			Operation:  "conflict_check",
			InputData: map[string]any{
				"conflicting_fields": report.ConflictingFields,
			},
		}
		e.orchestrator.DispatchConflictCheck(ctx, task)

		resolution, rErr := e.conflicts.Resolve(conflict.Facts{
			ConflictingFieldCount: len(report.ConflictingFields),
			HighConfidenceLeft:    other.Confidence >= 0.8,
			HighConfidenceRight:   p.Confidence >= 0.8,
			FieldNames:            report.ConflictingFields,
		})
		if rErr != nil {
			resolution = report.SuggestedResolution
		}

		agg.AutoApplyEligible = false
		agg.Reasoning = fmt.Sprintf("%s; conflicts with in-flight proposal %s on fields %v (%s)",
			agg.Reasoning, other.ProposalID, report.ConflictingFields, resolution)
		break
	}
	return nil
}

// isActive reports whether a proposal's status is still somewhere in the
// pipeline rather than terminal — only active proposals are candidates for
// a conflict overlap check.
func isActive(s mutation.Status) bool {
	switch s {
	case mutation.StatusProposed, mutation.StatusValidating, mutation.StatusAwaitingApproval, mutation.StatusApplying:
		return true
	default:
		return false
	}
}

// requestApproval routes an ineligible proposal to a human reviewer
// (spec.md §4.6, §4.7).
func (e *Engine) requestApproval(ctx context.Context, p *mutation.Proposal, agg orchestrator.AggregateResult) error {
	_, err := e.approvals.RequestApproval(ctx, approval.Request{
		ProposalID:      p.ProposalID,
		UserID:          p.SpecID, // spec graph owner; routed per spec.md §9 open question resolution in DESIGN.md
		SpecID:          p.SpecID,
		ProposedContent: fmt.Sprintf("%v", p.ProposedChanges),
		Reasoning:       agg.Reasoning,
		Confidence:      agg.MinConfidence,
		Priority:        priorityForSeverity(agg.HighestSeverity),
	})
	if err != nil {
		return fmt.Errorf("engine: request approval: %w", err)
	}
	return nil
}

func priorityForSeverity(sev string) approval.Priority {
	switch sev {
	case "high":
		return approval.PriorityHigh
	case "medium":
		return approval.PriorityNormal
	default:
		return approval.PriorityLow
	}
}

// Complete satisfies approval.Completer: once a human decision (or a
// timeout rejection) is known, it finishes the proposal's lifecycle
// (spec.md §4.7 step 5).
func (e *Engine) Complete(ctx context.Context, proposalID string, resp *approval.Response) (*hub.MutationResult, error) {
	start := time.Now()
	switch resp.Decision {
	case approval.DecisionRejected:
		if _, err := e.store.Transition(ctx, proposalID, mutation.StatusAwaitingApproval, mutation.StatusFailed, ownerApproval, "", mutation.Patch{}); err != nil {
			return nil, fmt.Errorf("engine: reject proposal: %w", err)
		}
		if e.metrics != nil {
			e.metrics.RecordFailed()
		}
		return &hub.MutationResult{
			MutationID:      proposalID,
			Status:          string(mutation.StatusFailed),
			ValidationErrors: []string{resp.Reason},
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil

	case approval.DecisionModified:
		if _, err := e.store.Transition(ctx, proposalID, mutation.StatusAwaitingApproval, mutation.StatusApplying, ownerApproval, ownerApplier, mutation.Patch{
			ProposedChanges: map[string]any{"modified_content": resp.ModifiedContent},
		}); err != nil {
			return nil, fmt.Errorf("engine: enter applying after modification: %w", err)
		}
	default: // approved
		if _, err := e.store.Transition(ctx, proposalID, mutation.StatusAwaitingApproval, mutation.StatusApplying, ownerApproval, ownerApplier, mutation.Patch{}); err != nil {
			return nil, fmt.Errorf("engine: enter applying: %w", err)
		}
	}

	return e.applyProposal(ctx, proposalID)
}

// applyProposal performs the graph write, transitions the proposal to its
// terminal state, and builds the mutation:result payload delivered over the
// live channel hub (spec.md §4.6 steps 4-6).
func (e *Engine) applyProposal(ctx context.Context, proposalID string) (*hub.MutationResult, error) {
	start := time.Now()
	p, err := e.store.Get(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("engine: load proposal to apply: %w", err)
	}

	if err := e.applyToGraph(ctx, p); err != nil {
		if _, terr := e.store.Transition(ctx, proposalID, mutation.StatusApplying, mutation.StatusFailed, ownerApplier, "", mutation.Patch{}); terr != nil {
			return nil, fmt.Errorf("engine: apply failed, then failed to record failure: %w (original: %v)", terr, err)
		}
		if e.metrics != nil {
			e.metrics.RecordFailed()
		}
		return &hub.MutationResult{
			MutationID:       proposalID,
			Status:           string(mutation.StatusFailed),
			ValidationErrors: []string{err.Error()},
			ExecutionTimeMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	if _, err := e.store.Transition(ctx, proposalID, mutation.StatusApplying, mutation.StatusApplied, ownerApplier, "", mutation.Patch{}); err != nil {
		return nil, fmt.Errorf("engine: record applied: %w", err)
	}
	if e.metrics != nil {
		e.metrics.RecordCompleted()
	}
	if e.index != nil {
		if err := e.index.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("engine: refresh index after apply: %w", err)
		}
	}

	return &hub.MutationResult{
		MutationID:      proposalID,
		Status:          string(mutation.StatusApplied),
		AppliedChanges:  p.ProposedChanges,
		NewVersion:      uuid.New().String(),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// applyToGraph performs the actual node/edge mutation against the graph
// repository according to the proposal's operation type (spec.md §4.1,
// §4.6). The would-be result is checked for any depends_on/implements
// cycle, of any length, against a simulated post-patch snapshot
// *before* any write reaches the repository (spec.md Invariants, property
// 1) — catching the violation here means a rejected apply never leaves a
// cyclic graph committed with nothing to undo it (graph.Repository exposes
// no compensating operation), so applyProposal's StatusFailed transition
// always reflects a graph that was never touched.
func (e *Engine) applyToGraph(ctx context.Context, p *mutation.Proposal) error {
	snap, err := e.graph.Snapshot(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("engine: snapshot before apply: %w", err)
	}
	simulated := simulateApply(snap, p)
	if cyc := graphalgo.FindCycle(simulated, graph.AcyclicEdgeKinds); cyc != nil {
		return fmt.Errorf("engine: applying would leave a cycle among %v", cyc.NodeIDs)
	}

	switch p.OperationType {
	case mutation.OperationCreate:
		n := nodeFromChanges(p.SpecID, p.ProposedChanges)
		if err := e.graph.CreateNode(ctx, n); err != nil {
			return err
		}
	case mutation.OperationUpdate:
		patch := patchFromChanges(p.ProposedChanges)
		if _, err := e.graph.UpdateNode(ctx, p.SpecID, patch); err != nil {
			return err
		}
	case mutation.OperationDelete:
		if err := e.graph.DeleteNode(ctx, p.SpecID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("engine: unknown operation type %q", p.OperationType)
	}
	return nil
}

// simulateApply returns a copy of snap with p's operation applied in
// memory, leaving the repository untouched. A missing node on an update is
// left as a no-op here; the real e.graph.UpdateNode call surfaces that as
// its own not-found error once applyToGraph proceeds to the actual write.
func simulateApply(snap *graph.Snapshot, p *mutation.Proposal) *graph.Snapshot {
	sim := &graph.Snapshot{
		Nodes: make(map[string]*graph.Node, len(snap.Nodes)),
		Edges: make(map[string]*graph.Edge, len(snap.Edges)),
	}
	for id, n := range snap.Nodes {
		sim.Nodes[id] = n.Clone()
	}
	for id, e := range snap.Edges {
		sim.Edges[id] = e.Clone()
	}

	switch p.OperationType {
	case mutation.OperationCreate:
		n := nodeFromChanges(p.SpecID, p.ProposedChanges)
		sim.Nodes[n.ID] = n
	case mutation.OperationUpdate:
		if existing, ok := sim.Nodes[p.SpecID]; ok {
			applyNodePatch(existing, patchFromChanges(p.ProposedChanges))
		}
	case mutation.OperationDelete:
		delete(sim.Nodes, p.SpecID)
		for id, e := range sim.Edges {
			if e.SourceID == p.SpecID || e.TargetID == p.SpecID {
				delete(sim.Edges, id)
			}
		}
	}
	return sim
}

func applyNodePatch(n *graph.Node, patch graph.NodePatch) {
	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
}

func nodeFromChanges(id string, changes map[string]any) *graph.Node {
	n := &graph.Node{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now(), Status: graph.NodeStatusActive}
	if kind, ok := changes["kind"].(string); ok {
		n.Kind = graph.NodeKind(kind)
	}
	if name, ok := changes["name"].(string); ok {
		n.Name = name
	}
	if desc, ok := changes["description"].(string); ok {
		n.Description = desc
	}
	if content, ok := changes["content"].(string); ok {
		n.Content = content
	}
	return n
}

func patchFromChanges(changes map[string]any) graph.NodePatch {
	var patch graph.NodePatch
	if name, ok := changes["name"].(string); ok {
		patch.Name = &name
	}
	if desc, ok := changes["description"].(string); ok {
		patch.Description = &desc
	}
	if content, ok := changes["content"].(string); ok {
		patch.Content = &content
	}
	return patch
}

// fail records a proposal's terminal failure, used when dispatch itself
// errors (agent infrastructure failure, not an agent's negative verdict).
func (e *Engine) fail(ctx context.Context, proposalID string, cause error) {
	if _, err := e.store.Transition(ctx, proposalID, mutation.StatusValidating, mutation.StatusFailed, ownerOrchestrator, "", mutation.Patch{}); err != nil {
		return
	}
	if e.metrics != nil {
		e.metrics.RecordFailed()
	}
	_ = cause
}
