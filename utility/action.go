package utility

import (
	"fmt"
	"log/slog"
)

// EvalFunc returns a raw necessity. The engine clamps it to [0,1].
type EvalFunc func() float64

// PerformFunc carries out an action's effect.
type PerformFunc func() error

// Action is one catalog entry: a necessity hook shaped by Curve and scaled by
// Weight, paired with the hook that acts on it. Hooks are bound once when the
// catalog is compiled; a nil hook scores 0 or does nothing.
type Action struct {
	Name    string
	Weight  float64
	Curve   Curve
	EvalRef string
	DoRef   string

	eval    EvalFunc
	perform PerformFunc
}

// Bound reports whether both hooks resolved.
func (a *Action) Bound() bool { return a.eval != nil && a.perform != nil }

// ActionSpec is the configuration form of an Action.
type ActionSpec struct {
	Name    string    `yaml:"name" json:"name"`
	Eval    string    `yaml:"eval" json:"eval"`
	Perform string    `yaml:"perform" json:"perform"`
	Weight  float64   `yaml:"weight" json:"weight"`
	Curve   CurveSpec `yaml:"curve" json:"curve"`
}

// Hooks is a faction AI's table of named necessity and perform functions.
type Hooks struct {
	Evals    map[string]EvalFunc
	Performs map[string]PerformFunc
}

// Compile builds a catalog from specs, binding hook names against hooks.
// Unknown hook names are logged and left unbound; invalid weights, curves or
// duplicate names are errors.
func Compile(specs []ActionSpec, hooks Hooks) ([]*Action, error) {
	seen := make(map[string]bool, len(specs))
	actions := make([]*Action, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("action with empty name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate action %q", s.Name)
		}
		seen[s.Name] = true
		if s.Weight < 0 {
			return nil, fmt.Errorf("action %q: negative weight %v", s.Name, s.Weight)
		}
		curve, err := s.Curve.Build()
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", s.Name, err)
		}

		a := &Action{
			Name:    s.Name,
			Weight:  s.Weight,
			Curve:   curve,
			EvalRef: s.Eval,
			DoRef:   s.Perform,
			eval:    hooks.Evals[s.Eval],
			perform: hooks.Performs[s.Perform],
		}
		if a.eval == nil {
			slog.Warn("unresolved eval hook, action will score 0", "action", s.Name, "eval", s.Eval)
		}
		if a.perform == nil {
			slog.Warn("unresolved perform hook, action will do nothing", "action", s.Name, "perform", s.Perform)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
