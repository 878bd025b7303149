package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/config"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/conflict"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/orchestrator"
)

// cleanAgent always returns a high-confidence, risk-free verdict for
// whichever agent type it is registered under.
type cleanAgent struct{ agentType agentrt.AgentType }

func (a *cleanAgent) Execute(ctx context.Context, task *agentrt.Task) (agentrt.Verdict, error) {
	switch a.agentType {
	case agentrt.AgentTypeValidator:
		return &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}, IsValid: true}, nil
	case agentrt.AgentTypeDependency:
		return &agentrt.DependencyVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}, IsValid: true}, nil
	case agentrt.AgentTypeImpact:
		return &agentrt.ImpactVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}, Severity: "low"}, nil
	case agentrt.AgentTypeMutation:
		return &agentrt.MutationVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}, Success: true}, nil
	case agentrt.AgentTypeSemantic:
		return &agentrt.SemanticVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}}, nil
	default:
		return &agentrt.ConflictVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}}, nil
	}
}

// lowConfidenceAgent returns cleanAgent's verdict for its agent type with the
// confidence lowered to 0.4 (conflict verdicts are left unchanged), forcing
// the aggregation down the human-approval path.
type lowConfidenceAgent struct{ agentType agentrt.AgentType }

func (a *lowConfidenceAgent) Execute(ctx context.Context, task *agentrt.Task) (agentrt.Verdict, error) {
	clean := &cleanAgent{agentType: a.agentType}
	v, _ := clean.Execute(ctx, task)
	switch vv := v.(type) {
	case *agentrt.ValidatorVerdict:
		vv.ConfidenceScore = 0.4
	case *agentrt.DependencyVerdict:
		vv.ConfidenceScore = 0.4
	case *agentrt.ImpactVerdict:
		vv.ConfidenceScore = 0.4
	case *agentrt.MutationVerdict:
		vv.ConfidenceScore = 0.4
	case *agentrt.SemanticVerdict:
		vv.ConfidenceScore = 0.4
	}
	return v, nil
}

func newTestOrchestrator(t *testing.T, m *metrics.Registry, low bool) *orchestrator.Orchestrator {
	t.Helper()
	reg := agentrt.NewRegistry()
	agents := make(map[string]agentrt.Agent)
	for _, at := range orchestrator.RequiredCapabilities {
		id := string(at) + "-agent"
		reg.Register(&agentrt.AgentRegistration{AgentID: id, AgentType: at, Priority: 1, MaxConcurrentTasks: 5})
		if low {
			agents[id] = &lowConfidenceAgent{agentType: at}
		} else {
			agents[id] = &cleanAgent{agentType: at}
		}
	}
	cfg := config.OrchestratorConfig{MaxConcurrentAgents: 5, AgentTimeoutSeconds: 5, RetryAttempts: 1, RetryBaseDelay: time.Millisecond}
	approvalCfg := config.ApprovalConfig{AutoApproveThreshold: 0.85}
	return orchestrator.New(reg, agents, cfg, approvalCfg, orchestrator.WithMetrics(m))
}

func seedNode(t *testing.T, repo graph.Repository, id string) {
	t.Helper()
	require.NoError(t, repo.CreateNode(context.Background(), &graph.Node{
		ID: id, Kind: graph.NodeKindModule, Name: "seed", Status: graph.NodeStatusActive,
	}))
}

func TestProposeMutation_AutoAppliesWhenAggregationIsClean(t *testing.T) {
	repo := graph.NewMemoryRepository()
	seedNode(t, repo, "node-1")
	store := mutation.NewMemoryStore()
	m := metrics.New()
	orch := newTestOrchestrator(t, m, false)
	idx := index.New(repo, nil)
	h := hub.New(m)

	eng := New(repo, idx, orch, store, nil, conflict.NewEngine(conflict.DefaultRules()), h, m, 5)

	p, err := eng.ProposeMutation(context.Background(), ProposeMutationInput{
		SpecID:          "node-1",
		OperationType:   mutation.OperationUpdate,
		CurrentVersion:  "v1",
		ProposedChanges: map[string]any{"description": "updated"},
		Reasoning:       "test",
		Confidence:      0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, mutation.StatusApplied, p.Status)

	updated, err := repo.GetNode(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Description)
}

func TestProposeMutation_RoutesToApprovalWhenLowConfidence(t *testing.T) {
	repo := graph.NewMemoryRepository()
	seedNode(t, repo, "node-2")
	store := mutation.NewMemoryStore()
	m := metrics.New()
	orch := newTestOrchestrator(t, m, true)
	idx := index.New(repo, nil)
	h := hub.New(m)

	eng := New(repo, idx, orch, store, nil, conflict.NewEngine(conflict.DefaultRules()), h, m, 5)
	approvals := approval.NewManager(h, eng, m)
	eng.approvals = approvals

	p, err := eng.ProposeMutation(context.Background(), ProposeMutationInput{
		SpecID:          "node-2",
		OperationType:   mutation.OperationUpdate,
		CurrentVersion:  "v1",
		ProposedChanges: map[string]any{"description": "risky change"},
		Reasoning:       "test",
		Confidence:      0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, mutation.StatusAwaitingApproval, p.Status)

	pending, ok := approvals.Pending(p.ProposalID)
	require.True(t, ok)
	assert.Equal(t, p.ProposalID, pending.ProposalID)
}

func TestEngine_Complete_AppliesOnApproval(t *testing.T) {
	repo := graph.NewMemoryRepository()
	seedNode(t, repo, "node-3")
	store := mutation.NewMemoryStore()
	m := metrics.New()
	orch := newTestOrchestrator(t, m, true)
	idx := index.New(repo, nil)
	h := hub.New(m)

	eng := New(repo, idx, orch, store, nil, conflict.NewEngine(conflict.DefaultRules()), h, m, 5)
	approvals := approval.NewManager(h, eng, m)
	eng.approvals = approvals

	p, err := eng.ProposeMutation(context.Background(), ProposeMutationInput{
		SpecID:          "node-3",
		OperationType:   mutation.OperationUpdate,
		CurrentVersion:  "v1",
		ProposedChanges: map[string]any{"description": "needs approval"},
		Reasoning:       "test",
		Confidence:      0.5,
	})
	require.NoError(t, err)
	require.Equal(t, mutation.StatusAwaitingApproval, p.Status)

	pending, ok := approvals.Pending(p.ProposalID)
	require.True(t, ok)

	err = approvals.RespondTo(context.Background(), approval.Response{
		RequestID: pending.RequestID,
		Decision:  approval.DecisionApproved,
	})
	require.NoError(t, err)

	final, err := store.Get(context.Background(), p.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, mutation.StatusApplied, final.Status)
}

func TestProposeMutation_RoutesToApprovalOnOverlappingInFlightProposal(t *testing.T) {
	repo := graph.NewMemoryRepository()
	require.NoError(t, repo.CreateNode(context.Background(), &graph.Node{
		ID: "node-4", Kind: graph.NodeKindModule, Name: "seed", Description: "original", Status: graph.NodeStatusActive,
	}))
	store := mutation.NewMemoryStore()
	m := metrics.New()
	orch := newTestOrchestrator(t, m, false)
	idx := index.New(repo, nil)
	h := hub.New(m)

	eng := New(repo, idx, orch, store, nil, conflict.NewEngine(conflict.DefaultRules()), h, m, 5)
	approvals := approval.NewManager(h, eng, m)
	eng.approvals = approvals

	inFlight := &mutation.Proposal{
		ProposalID:      "in-flight",
		SpecID:          "node-4",
		OperationType:   mutation.OperationUpdate,
		CurrentVersion:  "v1",
		ProposedChanges: map[string]any{"description": "edit from proposal A"},
		Reasoning:       "first editor",
		Confidence:      0.9,
	}
	require.NoError(t, store.Create(context.Background(), inFlight, ownerOrchestrator))
	_, err := store.Transition(context.Background(), inFlight.ProposalID, mutation.StatusProposed, mutation.StatusValidating, ownerOrchestrator, ownerOrchestrator, mutation.Patch{})
	require.NoError(t, err)
	_, err = store.Transition(context.Background(), inFlight.ProposalID, mutation.StatusValidating, mutation.StatusAwaitingApproval, ownerOrchestrator, ownerApproval, mutation.Patch{})
	require.NoError(t, err)

	// The orchestrator alone would call this auto-apply eligible (clean
	// agents, high confidence) — the overlapping in-flight edit to the same
	// field must still force it to human review.
	p, err := eng.ProposeMutation(context.Background(), ProposeMutationInput{
		SpecID:          "node-4",
		OperationType:   mutation.OperationUpdate,
		CurrentVersion:  "v1",
		ProposedChanges: map[string]any{"description": "edit from proposal B"},
		Reasoning:       "second editor",
		Confidence:      0.95,
	})
	require.NoError(t, err)
	assert.Equal(t, mutation.StatusAwaitingApproval, p.Status)

	_, ok := approvals.Pending(p.ProposalID)
	require.True(t, ok)
}
