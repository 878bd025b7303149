package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/config"
)

// fakeAgent is a scriptable agentrt.Agent for deterministic orchestrator tests.
type fakeAgent struct {
	calls   atomic.Int64
	delay   time.Duration
	failFor int // number of leading calls that return an error before succeeding
	verdict agentrt.Verdict
	err     error
}

func (a *fakeAgent) Execute(ctx context.Context, task *agentrt.Task) (agentrt.Verdict, error) {
	n := a.calls.Add(1)
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if int(n) <= a.failFor {
		if a.err != nil {
			return nil, a.err
		}
		return nil, errors.New("fake agent failure")
	}
	return a.verdict, nil
}

func baseRegistry(agentType agentrt.AgentType, agentID string, priority, maxConcurrent int) *agentrt.Registry {
	reg := agentrt.NewRegistry()
	reg.Register(&agentrt.AgentRegistration{
		AgentID:            agentID,
		AgentType:          agentType,
		Priority:           priority,
		MaxConcurrentTasks: maxConcurrent,
	})
	return reg
}

func testOrchestrator(reg *agentrt.Registry, agents map[string]agentrt.Agent) *Orchestrator {
	cfg := config.OrchestratorConfig{
		MaxConcurrentAgents: 10,
		AgentTimeoutSeconds: 1,
		RetryAttempts:       2,
		RetryBaseDelay:      time.Millisecond,
	}
	approvalCfg := config.ApprovalConfig{AutoApproveThreshold: 0.85}
	return New(reg, agents, cfg, approvalCfg)
}

func TestSelectAgent_PicksHighestPriority(t *testing.T) {
	reg := agentrt.NewRegistry()
	reg.Register(&agentrt.AgentRegistration{AgentID: "low", AgentType: agentrt.AgentTypeValidator, Priority: 1, MaxConcurrentTasks: 5})
	reg.Register(&agentrt.AgentRegistration{AgentID: "high", AgentType: agentrt.AgentTypeValidator, Priority: 9, MaxConcurrentTasks: 5})

	o := testOrchestrator(reg, nil)
	picked, err := o.SelectAgent(agentrt.AgentTypeValidator)
	require.NoError(t, err)
	assert.Equal(t, "high", picked.AgentID)
}

func TestSelectAgent_SkipsSaturatedAgents(t *testing.T) {
	reg := baseRegistry(agentrt.AgentTypeValidator, "only", 5, 1)
	o := testOrchestrator(reg, nil)
	o.inflight.incr("only")

	_, err := o.SelectAgent(agentrt.AgentTypeValidator)
	require.ErrorIs(t, err, ErrNoAgentAvailable)
}

func TestSelectAgent_TieBreaksOnLowestInflight(t *testing.T) {
	reg := agentrt.NewRegistry()
	reg.Register(&agentrt.AgentRegistration{AgentID: "a", AgentType: agentrt.AgentTypeValidator, Priority: 3, MaxConcurrentTasks: 10})
	reg.Register(&agentrt.AgentRegistration{AgentID: "b", AgentType: agentrt.AgentTypeValidator, Priority: 3, MaxConcurrentTasks: 10})

	o := testOrchestrator(reg, nil)
	o.inflight.incr("a")

	picked, err := o.SelectAgent(agentrt.AgentTypeValidator)
	require.NoError(t, err)
	assert.Equal(t, "b", picked.AgentID)
}

func TestRunTask_RetriesUntilSuccess(t *testing.T) {
	reg := baseRegistry(agentrt.AgentTypeValidator, "a1", 1, 5)
	verdict := &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, IsValid: true}
	agent := &fakeAgent{failFor: 1, verdict: verdict}
	o := testOrchestrator(reg, map[string]agentrt.Agent{"a1": agent})

	result := o.RunTask(context.Background(), &agentrt.Task{TaskID: "t1", AgentType: agentrt.AgentTypeValidator})
	assert.Equal(t, agentrt.TaskStatusSucceeded, result.Status)
	assert.Equal(t, int64(2), agent.calls.Load())
}

func TestRunTask_TimesOutAndReportsFailed(t *testing.T) {
	reg := baseRegistry(agentrt.AgentTypeValidator, "slow", 1, 5)
	agent := &fakeAgent{delay: time.Second}
	o := testOrchestrator(reg, map[string]agentrt.Agent{"slow": agent})
	o.agentTimeout = 10 * time.Millisecond
	o.retryAttempts = 0

	result := o.RunTask(context.Background(), &agentrt.Task{TaskID: "t2", AgentType: agentrt.AgentTypeValidator})
	assert.Equal(t, agentrt.TaskStatusTimedOut, result.Status)
	var timeoutErr *AgentTimeoutError
	assert.ErrorAs(t, result.Err, &timeoutErr)
}

func TestRunTask_ReleasesInflightCounterAfterCompletion(t *testing.T) {
	reg := baseRegistry(agentrt.AgentTypeValidator, "a1", 1, 1)
	verdict := &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, IsValid: true}
	agent := &fakeAgent{verdict: verdict}
	o := testOrchestrator(reg, map[string]agentrt.Agent{"a1": agent})

	o.RunTask(context.Background(), &agentrt.Task{TaskID: "t3", AgentType: agentrt.AgentTypeValidator})
	assert.Equal(t, 0, o.inflight.get("a1"))
}

func TestDispatchProposal_RunsAllCapabilitiesInParallel(t *testing.T) {
	reg := agentrt.NewRegistry()
	agents := make(map[string]agentrt.Agent)
	for _, at := range RequiredCapabilities {
		id := string(at) + "-agent"
		reg.Register(&agentrt.AgentRegistration{AgentID: id, AgentType: at, Priority: 1, MaxConcurrentTasks: 5})
		agents[id] = &fakeAgent{verdict: &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.95}, IsValid: true}}
	}
	o := testOrchestrator(reg, agents)

	results := o.DispatchProposal(context.Background(), "p1", func(at agentrt.AgentType) *agentrt.Task {
		return &agentrt.Task{TaskID: "t-" + string(at), ProposalID: "p1", AgentType: at}
	})
	require.Len(t, results, len(RequiredCapabilities))
	for _, r := range results {
		assert.Equal(t, agentrt.TaskStatusSucceeded, r.Status)
	}
}

func TestAggregate_EligibleWhenAllVerdictsClean(t *testing.T) {
	reg := agentrt.NewRegistry()
	o := testOrchestrator(reg, nil)

	results := []TaskResult{
		{AgentType: agentrt.AgentTypeValidator, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, IsValid: true}},
		{AgentType: agentrt.AgentTypeDependency, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.DependencyVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, IsValid: true}},
		{AgentType: agentrt.AgentTypeImpact, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.ImpactVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, Severity: "low"}},
	}
	agg := o.Aggregate(results)
	assert.True(t, agg.AutoApplyEligible)
	assert.Equal(t, "low", agg.HighestSeverity)
}

func TestAggregate_IneligibleOnInvalidVerdict(t *testing.T) {
	reg := agentrt.NewRegistry()
	o := testOrchestrator(reg, nil)

	results := []TaskResult{
		{AgentType: agentrt.AgentTypeValidator, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.9}, IsValid: false}},
	}
	agg := o.Aggregate(results)
	assert.False(t, agg.AutoApplyEligible)
}

func TestAggregate_IneligibleOnLowConfidence(t *testing.T) {
	reg := agentrt.NewRegistry()
	o := testOrchestrator(reg, nil)

	results := []TaskResult{
		{AgentType: agentrt.AgentTypeValidator, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.ValidatorVerdict{VerdictBase: agentrt.VerdictBase{ConfidenceScore: 0.5}, IsValid: true}},
	}
	agg := o.Aggregate(results)
	assert.False(t, agg.AutoApplyEligible)
	assert.Less(t, agg.MinConfidence, 0.85)
}

func TestAggregate_IneligibleOnHighSeverityCycle(t *testing.T) {
	reg := agentrt.NewRegistry()
	o := testOrchestrator(reg, nil)

	results := []TaskResult{
		{AgentType: agentrt.AgentTypeDependency, Status: agentrt.TaskStatusSucceeded, Verdict: &agentrt.DependencyVerdict{
			VerdictBase:          agentrt.VerdictBase{ConfidenceScore: 0.95},
			IsValid:               true,
			CircularDependencies: []agentrt.CycleDescriptor{{NodeIDs: []string{"a", "b"}, Severity: "high"}},
		}},
	}
	agg := o.Aggregate(results)
	assert.False(t, agg.AutoApplyEligible)
	assert.Equal(t, "high", agg.HighestSeverity)
}

func TestAggregate_IneligibleOnFailedTask(t *testing.T) {
	reg := agentrt.NewRegistry()
	o := testOrchestrator(reg, nil)

	results := []TaskResult{
		{AgentType: agentrt.AgentTypeMutation, Status: agentrt.TaskStatusFailed, Err: errors.New("boom")},
	}
	agg := o.Aggregate(results)
	assert.False(t, agg.AutoApplyEligible)
}
