package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/config"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
)

// inflight is the per-agent in-flight task counter consulted on every
// SelectAgent call and updated around every task execution. It is
// backed by xsync's lock-free map rather than a mutex-guarded
// map[string]int since the counter is read far more often (every
// dispatch, across every goroutine fanning out a proposal's tasks)
// than the key set changes (only on agent registration).
type inflight struct {
	counts *xsync.MapOf[string, *atomic.Int64]
}

func newInflight() *inflight {
	return &inflight{counts: xsync.NewMapOf[string, *atomic.Int64]()}
}

func (c *inflight) counter(agentID string) *atomic.Int64 {
	counter, _ := c.counts.LoadOrCompute(agentID, func() *atomic.Int64 {
		return new(atomic.Int64)
	})
	return counter
}

func (c *inflight) get(agentID string) int {
	return int(c.counter(agentID).Load())
}

func (c *inflight) incr(agentID string) {
	c.counter(agentID).Add(1)
}

func (c *inflight) decr(agentID string) {
	c.counter(agentID).Add(-1)
}

// Orchestrator dispatches AgentTasks to registered agents, enforcing
// per-agent concurrency limits, per-task timeouts, and retry with
// exponential backoff, then reduces the resulting verdicts into an
// auto-apply/approve decision (spec.md §4.5).
type Orchestrator struct {
	registry *agentrt.Registry
	agents   map[string]agentrt.Agent // agent_id -> runtime implementation
	inflight *inflight

	maxConcurrentAgents int
	agentTimeout        time.Duration
	retryAttempts       int
	retryBaseDelay      time.Duration
	autoApproveThreshold float64

	metrics *metrics.Registry
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithMetrics attaches a metrics.Registry to record dispatch outcomes.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New builds an Orchestrator over registry (capability lookup) and
// agents (agent_id -> execution implementation). cfg supplies the
// dispatch tunables; a zero-valued cfg falls back to package defaults.
func New(registry *agentrt.Registry, agents map[string]agentrt.Agent, cfg config.OrchestratorConfig, approvalCfg config.ApprovalConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:             registry,
		agents:               agents,
		inflight:             newInflight(),
		maxConcurrentAgents:  cfg.MaxConcurrentAgents,
		agentTimeout:         time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		retryAttempts:        cfg.RetryAttempts,
		retryBaseDelay:       cfg.RetryBaseDelay,
		autoApproveThreshold: approvalCfg.AutoApproveThreshold,
	}
	if o.maxConcurrentAgents <= 0 {
		o.maxConcurrentAgents = defaultMaxConcurrentAgents
	}
	if o.agentTimeout <= 0 {
		o.agentTimeout = defaultAgentTimeout
	}
	if o.retryAttempts <= 0 {
		o.retryAttempts = defaultRetryAttempts
	}
	if o.retryBaseDelay <= 0 {
		o.retryBaseDelay = defaultRetryBaseDelay
	}
	if o.autoApproveThreshold <= 0 {
		o.autoApproveThreshold = defaultAutoApproveThreshold
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectAgent implements spec.md §4.5's selection rule: among agents
// registered for agentType, filter candidates whose in-flight count is
// below their MaxConcurrentTasks, then pick the highest Priority,
// breaking ties by the lowest current in-flight count and finally by
// agent ID for determinism.
func (o *Orchestrator) SelectAgent(agentType agentrt.AgentType) (*agentrt.AgentRegistration, error) {
	candidates := o.registry.ByType(agentType)
	var eligible []*agentrt.AgentRegistration
	for _, id := range candidates {
		reg, ok := o.registry.Get(id)
		if !ok {
			continue
		}
		limit := reg.MaxConcurrentTasks
		if limit <= 0 {
			limit = o.maxConcurrentAgents
		}
		if o.inflight.get(id) < limit {
			eligible = append(eligible, reg)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: type=%s", ErrNoAgentAvailable, agentType)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		ci, cj := o.inflight.get(eligible[i].AgentID), o.inflight.get(eligible[j].AgentID)
		if ci != cj {
			return ci < cj
		}
		return eligible[i].AgentID < eligible[j].AgentID
	})
	return eligible[0], nil
}

// RunTask executes task against the agent selected for task.AgentType,
// enforcing a per-task deadline and retrying up to retryAttempts times
// with exponential backoff plus jitter after any failed attempt (a
// timeout, an error from the agent, or no agent available). The final attempt's outcome (verdict or error) is returned
// as a TaskResult; RunTask itself never returns an error — a terminal
// failure is represented as a TaskResult with Status failed/timed_out.
func (o *Orchestrator) RunTask(ctx context.Context, task *agentrt.Task) TaskResult {
	var lastErr error
	for attempt := 0; attempt <= o.retryAttempts; attempt++ {
		task.Attempt = attempt
		reg, err := o.SelectAgent(task.AgentType)
		if err != nil {
			lastErr = err
			o.backoff(ctx, attempt)
			continue
		}
		agent, ok := o.agents[reg.AgentID]
		if !ok {
			lastErr = fmt.Errorf("orchestrator: no runtime bound for agent %s", reg.AgentID)
			continue
		}

		task.AgentID = reg.AgentID
		result, execErr, timedOut := o.runOnce(ctx, agent, task)
		if result != nil {
			if o.metrics != nil {
				o.metrics.RecordAgentTaskDispatched()
			}
			return TaskResult{
				TaskID:    task.TaskID,
				AgentType: task.AgentType,
				Status:    agentrt.TaskStatusSucceeded,
				Verdict:   result,
			}
		}

		if timedOut {
			lastErr = &AgentTimeoutError{TaskID: task.TaskID, AgentID: reg.AgentID, Timeout: o.agentTimeout.String()}
		} else if execErr != nil {
			lastErr = execErr
		}
		o.backoff(ctx, attempt)
	}

	if o.metrics != nil {
		o.metrics.RecordAgentTaskFailed()
	}
	status := agentrt.TaskStatusFailed
	var timeoutErr *AgentTimeoutError
	if asAgentTimeout(lastErr, &timeoutErr) {
		status = agentrt.TaskStatusTimedOut
	}
	return TaskResult{
		TaskID:    task.TaskID,
		AgentType: task.AgentType,
		Status:    status,
		Err:       lastErr,
	}
}

func asAgentTimeout(err error, target **AgentTimeoutError) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*AgentTimeoutError); ok {
		*target = te
		return true
	}
	return false
}

// runOnce executes a single attempt under the per-task deadline,
// incrementing and decrementing the agent's in-flight counter around
// the call so SelectAgent sees accurate concurrency for the next pick.
func (o *Orchestrator) runOnce(ctx context.Context, agent agentrt.Agent, task *agentrt.Task) (verdict agentrt.Verdict, err error, timedOut bool) {
	o.inflight.incr(task.AgentID)
	defer o.inflight.decr(task.AgentID)

	taskCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	type outcome struct {
		verdict agentrt.Verdict
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := agent.Execute(taskCtx, task)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err, false
		}
		return out.verdict, nil, false
	case <-taskCtx.Done():
		return nil, nil, true
	}
}

func (o *Orchestrator) backoff(ctx context.Context, attempt int) {
	delay := o.retryBaseDelay * time.Duration(1<<uint(attempt))
	delay += time.Duration(rand.Int63n(int64(o.retryBaseDelay) + 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// DispatchProposal fans out one task per RequiredCapabilities entry in
// parallel (spec.md §4.5 "Task dispatch") and returns every task's
// terminal TaskResult. build constructs the per-agent-type Task from a
// shared template, letting callers attach proposal-specific InputData
// per agent type.
func (o *Orchestrator) DispatchProposal(ctx context.Context, proposalID string, build func(agentrt.AgentType) *agentrt.Task) []TaskResult {
	results := make([]TaskResult, len(RequiredCapabilities))
	g, gctx := errgroup.WithContext(ctx)
	for i, agentType := range RequiredCapabilities {
		i, agentType := i, agentType
		g.Go(func() error {
			task := build(agentType)
			results[i] = o.RunTask(gctx, task)
			return nil
		})
	}
	_ = g.Wait() // RunTask never returns an error from the goroutine itself
	return results
}

// DispatchConflictCheck runs the conflict agent on demand, outside the
// standard RequiredCapabilities fan-out, for proposals whose graph
// overlap analysis surfaced a candidate conflict (spec.md §4.6).
func (o *Orchestrator) DispatchConflictCheck(ctx context.Context, task *agentrt.Task) TaskResult {
	task.AgentType = agentrt.AgentTypeConflict
	return o.RunTask(ctx, task)
}

// Aggregate reduces a proposal's dispatched TaskResults into an
// auto-apply-eligibility decision (spec.md §4.5 "Aggregation"): the
// proposal is auto-apply-eligible iff every task succeeded, the validator
// reports is_valid, no dependency cycle is of high severity, every
// verdict's confidence score meets autoApproveThreshold, the impact
// severity is below high, and the mutation verdict lists no risk factors.
func (o *Orchestrator) Aggregate(results []TaskResult) AggregateResult {
	agg := AggregateResult{AutoApplyEligible: true, MinConfidence: 1, Results: results}

	// Runtime fallbacks and HTTPExecutor return verdicts by value; store
	// them as pointers so the checks below and readers of agg.Results see
	// one form.
	for i := range results {
		switch v := results[i].Verdict.(type) {
		case agentrt.ValidatorVerdict:
			results[i].Verdict = &v
		case agentrt.DependencyVerdict:
			results[i].Verdict = &v
		case agentrt.ImpactVerdict:
			results[i].Verdict = &v
		case agentrt.MutationVerdict:
			results[i].Verdict = &v
		}
	}

	var reasons []string
	for _, r := range results {
		if r.Err != nil || r.Status != agentrt.TaskStatusSucceeded {
			agg.AutoApplyEligible = false
			reasons = append(reasons, fmt.Sprintf("%s task did not succeed: %v", r.AgentType, r.Err))
			continue
		}
		if r.Verdict.Confidence() < agg.MinConfidence {
			agg.MinConfidence = r.Verdict.Confidence()
		}
		if r.Verdict.Confidence() < o.autoApproveThreshold {
			agg.AutoApplyEligible = false
			reasons = append(reasons, fmt.Sprintf("%s confidence %.2f below threshold %.2f", r.AgentType, r.Verdict.Confidence(), o.autoApproveThreshold))
		}

		switch v := r.Verdict.(type) {
		case *agentrt.ValidatorVerdict:
			if !v.IsValid {
				agg.AutoApplyEligible = false
				reasons = append(reasons, "validator reported invalid proposal")
			}
		case *agentrt.DependencyVerdict:
			for _, cyc := range v.CircularDependencies {
				agg.HighestSeverity = worseSeverity(agg.HighestSeverity, cyc.Severity)
				if severityRank[cyc.Severity] >= severityRank["high"] {
					agg.AutoApplyEligible = false
					reasons = append(reasons, fmt.Sprintf("dependency cycle of severity %s", cyc.Severity))
				}
			}
		case *agentrt.ImpactVerdict:
			agg.HighestSeverity = worseSeverity(agg.HighestSeverity, v.Severity)
			if severityRank[v.Severity] >= severityRank["high"] {
				agg.AutoApplyEligible = false
				reasons = append(reasons, fmt.Sprintf("impact severity %s", v.Severity))
			}
		case *agentrt.MutationVerdict:
			if len(v.RiskFactors) > 0 {
				agg.HighestSeverity = worseSeverity(agg.HighestSeverity, "high")
				agg.AutoApplyEligible = false
				reasons = append(reasons, fmt.Sprintf("mutation plan reports risk factors: %v", v.RiskFactors))
			}
		}
	}

	if agg.HighestSeverity == "" {
		agg.HighestSeverity = "low"
	}
	if len(reasons) == 0 {
		agg.Reasoning = "all verdicts succeeded, met the confidence threshold, and reported no elevated risk"
	} else {
		agg.Reasoning = fmt.Sprintf("not auto-apply-eligible: %v", reasons)
	}
	return agg
}
