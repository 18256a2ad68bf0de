package utility

import (
	"errors"
	"math/rand"
	"testing"
)

// fixed builds an action whose necessity is a constant.
func fixed(name string, necessity, weight float64) *Action {
	return &Action{
		Name:    name,
		Weight:  weight,
		Curve:   Linear{},
		eval:    func() float64 { return necessity },
		perform: func() error { return nil },
	}
}

func TestEvaluateActionClampsAndWeights(t *testing.T) {
	e := NewEngine(nil, rand.New(rand.NewSource(1)))
	tests := []struct {
		name      string
		necessity float64
		weight    float64
		curve     Curve
		want      float64
	}{
		{"linear", 0.5, 2, Linear{}, 1},
		{"above one", 3, 1, Linear{}, 1},
		{"negative", -2, 1, Linear{}, 0},
		{"quadratic", 0.5, 1, Polynomial{M: 1, K: 2}, 0.25},
		{"zero weight", 1, 0, Linear{}, 0},
	}
	for _, tc := range tests {
		a := fixed(tc.name, tc.necessity, tc.weight)
		a.Curve = tc.curve
		if got := e.EvaluateAction(a); got != tc.want {
			t.Errorf("%s: EvaluateAction() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEvaluateActionUnboundScoresZero(t *testing.T) {
	e := NewEngine(nil, nil)
	a := &Action{Name: "orphan", Weight: 5, Curve: Linear{}}
	if got := e.EvaluateAction(a); got != 0 {
		t.Errorf("EvaluateAction(unbound) = %v, want 0", got)
	}
	if err := e.PerformAction(a); err != nil {
		t.Errorf("PerformAction(unbound) = %v, want nil", err)
	}
}

func TestEvaluateActionsSorted(t *testing.T) {
	e := NewEngine([]*Action{fixed("a", 0.1, 1), fixed("b", 0.9, 1), fixed("c", 0.5, 1)}, nil)
	scores := e.EvaluateActions()
	want := []string{"b", "c", "a"}
	for i, s := range scores {
		if s.Action != want[i] {
			t.Errorf("scores[%d] = %s, want %s", i, s.Action, want[i])
		}
	}
}

func TestChooseActionNeverPicksZeroProbability(t *testing.T) {
	actions := []*Action{
		fixed("zero-first", 0, 1),
		fixed("low", 0.1, 1),
		fixed("zero-mid", 0, 3),
		fixed("high", 0.8, 1),
		fixed("zero-weight", 1, 0),
	}
	e := NewEngine(actions, rand.New(rand.NewSource(42)))
	counts := map[string]int{}
	for i := 0; i < 5000; i++ {
		counts[e.ChooseAction().Action.Name]++
	}
	for _, name := range []string{"zero-first", "zero-mid", "zero-weight"} {
		if counts[name] != 0 {
			t.Errorf("%s chosen %d times, want 0", name, counts[name])
		}
	}
	if counts["low"] == 0 || counts["high"] == 0 {
		t.Errorf("positive actions not both chosen: %v", counts)
	}
	if counts["high"] < 5*counts["low"] {
		t.Errorf("high=%d low=%d, want roughly 8:1", counts["high"], counts["low"])
	}
}

func TestChooseActionAllZeroFallsBackToFirst(t *testing.T) {
	e := NewEngine([]*Action{fixed("first", 0, 1), fixed("second", 0, 1)}, nil)
	d := e.ChooseAction()
	if d.Action == nil || d.Action.Name != "first" {
		t.Fatalf("ChooseAction() = %+v, want first", d.Action)
	}
	if d.Roll != -1 {
		t.Errorf("Roll = %v, want -1 for fallback", d.Roll)
	}
}

func TestChooseActionEmptyCatalog(t *testing.T) {
	e := NewEngine(nil, nil)
	if d := e.ChooseAction(); d.Action != nil {
		t.Errorf("ChooseAction() = %v, want nil", d.Action.Name)
	}
	if _, err := e.PerformBestAction(); err != nil {
		t.Errorf("PerformBestAction() = %v, want nil", err)
	}
}

func TestPerformBestActionRunsWinner(t *testing.T) {
	ran := ""
	a := fixed("only", 1, 1)
	a.perform = func() error { ran = "only"; return nil }
	b := fixed("never", 0, 1)
	b.perform = func() error { ran = "never"; return nil }

	e := NewEngine([]*Action{b, a}, rand.New(rand.NewSource(9)))
	d, err := e.PerformBestAction()
	if err != nil {
		t.Fatalf("PerformBestAction: %v", err)
	}
	if d.Action.Name != "only" || ran != "only" {
		t.Errorf("chose %s, ran %q, want only", d.Action.Name, ran)
	}
}

func TestPerformActionWrapsError(t *testing.T) {
	boom := errors.New("boom")
	a := fixed("fails", 1, 1)
	a.perform = func() error { return boom }
	err := NewEngine(nil, nil).PerformAction(a)
	if !errors.Is(err, boom) {
		t.Errorf("PerformAction() = %v, want wrapped boom", err)
	}
}

func TestTuneCopiesOnWrite(t *testing.T) {
	orig := fixed("a", 0.5, 1)
	e := NewEngine([]*Action{orig}, nil)
	before := e.Actions()

	if err := e.Tune("a", 4, Polynomial{M: 1, K: 2}); err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if orig.Weight != 1 || before[0] != orig {
		t.Error("Tune mutated the previous catalog")
	}
	if got := e.EvaluateAction(e.Actions()[0]); got != 1 {
		t.Errorf("tuned score = %v, want 1", got)
	}
	if err := e.Tune("missing", 1, Linear{}); err == nil {
		t.Error("Tune(missing) = nil, want error")
	}
	if err := e.Tune("a", -1, Linear{}); err == nil {
		t.Error("Tune(negative weight) = nil, want error")
	}
}

func TestCompileBindsHooks(t *testing.T) {
	performed := false
	hooks := Hooks{
		Evals:    map[string]EvalFunc{"build": func() float64 { return 0.6 }},
		Performs: map[string]PerformFunc{"place": func() error { performed = true; return nil }},
	}
	specs := []ActionSpec{
		{Name: "build", Eval: "build", Perform: "place", Weight: 1},
		{Name: "typo", Eval: "biuld", Perform: "plase", Weight: 1},
	}
	actions, err := Compile(specs, hooks)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !actions[0].Bound() || actions[1].Bound() {
		t.Errorf("Bound() = %v,%v, want true,false", actions[0].Bound(), actions[1].Bound())
	}

	e := NewEngine(actions, rand.New(rand.NewSource(1)))
	if got := e.EvaluateAction(actions[1]); got != 0 {
		t.Errorf("unresolved eval score = %v, want 0", got)
	}
	if _, err := e.PerformBestAction(); err != nil || !performed {
		t.Errorf("PerformBestAction() err=%v performed=%v", err, performed)
	}
}

func TestCompileRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []ActionSpec
	}{
		{"empty name", []ActionSpec{{Weight: 1}}},
		{"duplicate", []ActionSpec{{Name: "a", Weight: 1}, {Name: "a", Weight: 1}}},
		{"negative weight", []ActionSpec{{Name: "a", Weight: -1}}},
		{"bad curve", []ActionSpec{{Name: "a", Weight: 1, Curve: CurveSpec{Kind: "sine"}}}},
	}
	for _, tc := range tests {
		if _, err := Compile(tc.specs, Hooks{}); err == nil {
			t.Errorf("%s: Compile() = nil error, want error", tc.name)
		}
	}
}
