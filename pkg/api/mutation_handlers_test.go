package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/config"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/conflict"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/engine"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/orchestrator"
)

// cleanAgent always reports a high-confidence, low-risk verdict, driving
// ProposeMutation down the auto-apply path so handler tests don't need a
// live approval round-trip.
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
	default:
		return &agentrt.SemanticVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}}, nil
	}
}

func newProposalTestServer(t *testing.T) *Server {
	t.Helper()
	repo := graph.NewMemoryRepository()
	require.NoError(t, repo.CreateNode(context.Background(), &graph.Node{
		ID: "spec-1", Kind: graph.NodeKindModule, Name: "seed", Status: graph.NodeStatusActive,
	}))
	store := mutation.NewMemoryStore()
	m := metrics.New()
	idx := index.New(repo, nil)
	h := hub.New(m)

	reg := agentrt.NewRegistry()
	agents := make(map[string]agentrt.Agent)
	for _, at := range orchestrator.RequiredCapabilities {
		id := string(at) + "-agent"
		reg.Register(&agentrt.AgentRegistration{AgentID: id, AgentType: at, Priority: 1, MaxConcurrentTasks: 5})
		agents[id] = &cleanAgent{agentType: at}
	}
	orch := orchestrator.New(reg, agents,
		config.OrchestratorConfig{MaxConcurrentAgents: 5, AgentTimeoutSeconds: 5, RetryAttempts: 1, RetryBaseDelay: 1},
		config.ApprovalConfig{AutoApproveThreshold: 0.85})

	eng := engine.New(repo, idx, orch, store, nil, conflict.NewEngine(conflict.DefaultRules()), h, m, 5)

	return &Server{Graph: repo, Index: idx, Store: store, Engine: eng, Hub: h, Metrics: m}
}

func TestHandleProposeMutation_AutoApplies(t *testing.T) {
	s := newProposalTestServer(t)
	router := s.Router()

	body, err := json.Marshal(map[string]any{
		"spec_id":          "spec-1",
		"operation_type":   "update",
		"current_version":  "v1",
		"proposed_changes": map[string]any{"description": "updated via api"},
		"reasoning":        "test",
		"confidence":       0.9,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var p mutation.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, mutation.StatusApplied, p.Status)
}

func TestHandleProposeMutation_BadRequest(t *testing.T) {
	s := newProposalTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetProposal_NotFound(t *testing.T) {
	s := newProposalTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
