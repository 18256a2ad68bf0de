// Package utility scores a catalog of actions against their necessity hooks
// and picks one at random, weighted by score.
package utility

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Score is one action's shaped and weighted value for the current tick.
type Score struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// Decision records how ChooseAction arrived at its pick.
type Decision struct {
	Action *Action
	Scores []Score // catalog order
	Total  float64
	Roll   float64 // in [0, Total); -1 when the all-zero fallback was used
}

// Engine evaluates and selects actions. The catalog may be retuned or swapped
// from another goroutine; evaluation works on a snapshot of it.
type Engine struct {
	mu      sync.RWMutex
	actions []*Action
	rng     *rand.Rand
}

func NewEngine(actions []*Action, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Engine{actions: actions, rng: rng}
}

// Actions returns the current catalog.
func (e *Engine) Actions() []*Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actions
}

// EvaluateAction computes weight * curve(clamp01(eval())). Unbound actions score 0.
func (e *Engine) EvaluateAction(a *Action) float64 {
	if a == nil || a.eval == nil || a.Curve == nil {
		return 0
	}
	x := clamp01(a.eval())
	v := a.Curve.Evaluate(x) * a.Weight
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// EvaluateActions scores the whole catalog, highest first.
func (e *Engine) EvaluateActions() []Score {
	scores := e.scoreAll(e.Actions())
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Value > scores[j].Value })
	return scores
}

func (e *Engine) scoreAll(actions []*Action) []Score {
	scores := make([]Score, len(actions))
	for i, a := range actions {
		scores[i] = Score{Action: a.Name, Value: e.EvaluateAction(a)}
	}
	return scores
}

// ChooseAction samples one action with probability proportional to its score.
// With every score at zero it falls back to the first catalog entry; an empty
// catalog yields a nil action.
func (e *Engine) ChooseAction() Decision {
	actions := e.Actions()
	if len(actions) == 0 {
		return Decision{}
	}
	scores := e.scoreAll(actions)
	total := 0.0
	for _, s := range scores {
		total += s.Value
	}
	if total <= 0 {
		return Decision{Action: actions[0], Scores: scores, Roll: -1}
	}

	roll := e.rng.Float64() * total
	cum := 0.0
	last := -1
	for i, s := range scores {
		if s.Value <= 0 {
			continue
		}
		last = i
		cum += s.Value
		if roll < cum {
			return Decision{Action: actions[i], Scores: scores, Total: total, Roll: roll}
		}
	}
	// Rounding left roll at the very top of the range.
	return Decision{Action: actions[last], Scores: scores, Total: total, Roll: roll}
}

// PerformAction runs an action's perform hook. Unbound hooks do nothing.
func (e *Engine) PerformAction(a *Action) error {
	if a == nil || a.perform == nil {
		return nil
	}
	if err := a.perform(); err != nil {
		return fmt.Errorf("perform %s: %w", a.Name, err)
	}
	return nil
}

// PerformBestAction chooses an action and performs it.
func (e *Engine) PerformBestAction() (Decision, error) {
	d := e.ChooseAction()
	if d.Action == nil {
		return d, nil
	}
	slog.Debug("action chosen", "action", d.Action.Name, "total", d.Total, "roll", d.Roll)
	return d, e.PerformAction(d.Action)
}

// Tune replaces an action's weight and curve. Hooks are untouched.
func (e *Engine) Tune(name string, weight float64, curve Curve) error {
	if weight < 0 {
		return fmt.Errorf("tune %s: negative weight %v", name, weight)
	}
	if err := ValidateCurve(curve); err != nil {
		return fmt.Errorf("tune %s: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, a := range e.actions {
		if a.Name != name {
			continue
		}
		tuned := *a
		tuned.Weight = weight
		tuned.Curve = curve
		next := make([]*Action, len(e.actions))
		copy(next, e.actions)
		next[i] = &tuned
		e.actions = next
		return nil
	}
	return fmt.Errorf("tune: unknown action %q", name)
}

// Swap replaces the whole catalog.
func (e *Engine) Swap(actions []*Action) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	e.mu.Lock()
	e.actions = actions
	e.mu.Unlock()
	slog.Info("action catalog swapped", "count", len(actions), "actions", names)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
