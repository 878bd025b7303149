package conflict

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule is one resolution-strategy rule: when Condition evaluates truthy
// against a conflict's facts, Resolution is the suggested strategy text
// (spec.md §1 "resolution-strategy generation"). Condition is an
// expr-lang/expr boolean expression, the same approach smilemakc-mbflow's
// condition package uses expr for workflow edge conditions (see DESIGN.md).
type Rule struct {
	Name       string
	Condition  string
	Resolution string
}

// Facts is the evaluation environment exposed to a Rule's Condition.
type Facts struct {
	ConflictingFieldCount int
	HighConfidenceLeft    bool
	HighConfidenceRight   bool
	FieldNames            []string
}

// Engine compiles and caches Rule conditions, evaluating them in priority
// order (first match wins) to pick a suggested resolution strategy for a
// Report. Compiled programs are cached by condition text so repeated
// evaluation of the same rule set (one engine instance serves every
// conflict check) does not recompile the expression each time.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	cache   map[string]*vm.Program
}

// NewEngine builds an Engine over rules, evaluated in order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{
		rules: rules,
		cache: make(map[string]*vm.Program),
	}
}

// DefaultRules returns the conservative baseline resolution-strategy
// rules: no conflicts merge cleanly; a single conflicting field with an
// asymmetric confidence split prefers the higher-confidence side; anything
// else falls through to manual resolution.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "clean-merge",
			Condition:  "ConflictingFieldCount == 0",
			Resolution: "auto-merge: no overlapping fields changed by both proposals",
		},
		{
			Name:       "prefer-higher-confidence",
			Condition:  "ConflictingFieldCount == 1 && (HighConfidenceLeft != HighConfidenceRight)",
			Resolution: "prefer the higher-confidence proposal's value for the single conflicting field",
		},
		{
			Name:       "manual-review",
			Condition:  "true",
			Resolution: "manual resolution required: multiple or symmetric-confidence conflicting fields",
		},
	}
}

// Resolve evaluates facts against the rule set in order and returns the
// first matching Rule's resolution text, or an error if no rule matched
// (a correctly authored rule set always ends in an unconditional "true"
// rule, so this only surfaces a misconfiguration).
func (e *Engine) Resolve(facts Facts) (string, error) {
	env := map[string]any{
		"ConflictingFieldCount": facts.ConflictingFieldCount,
		"HighConfidenceLeft":    facts.HighConfidenceLeft,
		"HighConfidenceRight":   facts.HighConfidenceRight,
		"FieldNames":            facts.FieldNames,
	}

	for _, rule := range e.rules {
		program, err := e.compile(rule.Condition)
		if err != nil {
			return "", fmt.Errorf("conflict: rule %q: compile: %w", rule.Name, err)
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("conflict: rule %q: evaluate: %w", rule.Name, err)
		}
		matched, ok := out.(bool)
		if ok && matched {
			return rule.Resolution, nil
		}
	}
	return "", fmt.Errorf("conflict: no rule matched facts %+v", facts)
}

func (e *Engine) compile(condition string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	program, err := expr.Compile(condition, expr.Env(map[string]any{
		"ConflictingFieldCount": 0,
		"HighConfidenceLeft":    false,
		"HighConfidenceRight":   false,
		"FieldNames":            []string{},
	}), expr.AsBool())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[condition] = program
	e.mu.Unlock()
	return program, nil
}
