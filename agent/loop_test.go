package agent

import (
	"testing"
	"time"
)

func newTestAgent(t *testing.T, waits int) (*Agent, *countingInfluence, *[]Report) {
	t.Helper()
	infl := &countingInfluence{}
	var reports []Report
	a, err := New(Config{Faction: ai, Interval: time.Second, Seed: 3}, newStubWorld(), nopCommander{}, infl, rivalAfter(waits), func(r Report) {
		reports = append(reports, r)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, infl, &reports
}

func TestLoopWaitsForRival(t *testing.T) {
	a, _, reports := newTestAgent(t, 3)
	for i := 0; i < 3; i++ {
		a.Step(time.Second)
		if a.State() != WaitingForWorld {
			t.Fatalf("step %d: state = %v, want waiting", i, a.State())
		}
	}
	if len(*reports) != 0 {
		t.Fatalf("reports while waiting = %d, want 0", len(*reports))
	}
	a.Step(10 * time.Millisecond)
	if a.State() != Ticking {
		t.Fatalf("state = %v, want ticking", a.State())
	}
	if len(*reports) != 1 {
		t.Fatalf("reports = %d, want first tick on the transition step", len(*reports))
	}
	if r, ok := a.Brain().Rival(); !ok || r != human {
		t.Errorf("Rival() = %v, %v, want %v, true", r, ok, human)
	}
}

func TestLoopTicksEveryInterval(t *testing.T) {
	a, _, reports := newTestAgent(t, 0)
	for i := 0; i < 12; i++ {
		a.Step(250 * time.Millisecond)
	}
	if got := len(*reports); got != 3 {
		t.Errorf("ticks after 3s = %d, want 3", got)
	}
	for i, r := range *reports {
		if r.Tick != uint64(i+1) {
			t.Errorf("report %d tick = %d, want %d", i, r.Tick, i+1)
		}
		if r.Faction != ai {
			t.Errorf("report %d faction = %v, want %v", i, r.Faction, ai)
		}
	}
}

func TestLoopDropsBacklog(t *testing.T) {
	a, _, reports := newTestAgent(t, 0)
	a.Step(0)
	a.Step(10 * time.Second)
	if got := len(*reports); got != 2 {
		t.Errorf("ticks = %d, want 2 (one per step)", got)
	}
}

func TestLoopResetsScratchBetweenTicks(t *testing.T) {
	a, infl, _ := newTestAgent(t, 0)
	a.Step(0)
	first := infl.calls
	if first == 0 {
		t.Fatal("first tick made no influence queries")
	}
	if s := a.Brain().Scratch(); s.Guard != 0 {
		t.Errorf("guard after tick = %v, want cleared scratch", s.Guard)
	}
	a.Step(time.Second)
	if infl.calls <= first {
		t.Errorf("influence calls = %d after second tick, want more than %d", infl.calls, first)
	}
}

func TestLoopReport(t *testing.T) {
	a, _, reports := newTestAgent(t, 0)
	a.Step(0)
	r := (*reports)[0]
	if r.Action == "" {
		t.Error("report has no action")
	}
	if len(r.Scores) != len(a.Engine().Actions()) {
		t.Errorf("scores = %d, want one per action (%d)", len(r.Scores), len(a.Engine().Actions()))
	}
	if _, ok := r.Necessities["guard"]; !ok {
		t.Errorf("necessities = %v, want a guard entry", r.Necessities)
	}
	if r.Necessities["guard"] <= 0 {
		t.Errorf("guard necessity = %v, want > 0 with rival influence", r.Necessities["guard"])
	}
	if r.Err != nil {
		t.Errorf("report error = %v", r.Err)
	}
}

func TestLoopStop(t *testing.T) {
	a, _, reports := newTestAgent(t, 0)
	a.Step(0)
	a.Stop()
	for i := 0; i < 5; i++ {
		a.Step(time.Second)
	}
	if a.State() != Stopped {
		t.Errorf("state = %v, want stopped", a.State())
	}
	if got := len(*reports); got != 1 {
		t.Errorf("reports = %d, want 1", got)
	}
}

func TestLoopStopWhileWaiting(t *testing.T) {
	a, _, reports := newTestAgent(t, 0)
	a.Stop()
	a.Step(time.Second)
	if len(*reports) != 0 || a.State() != Stopped {
		t.Errorf("state = %v with %d reports, want stopped with none", a.State(), len(*reports))
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Faction: ai}, newStubWorld(), nopCommander{}, nil, rivalAfter(0), nil)
	if err == nil {
		t.Error("New without influence: want error")
	}
	_, err = New(Config{Faction: ai}, newStubWorld(), nopCommander{}, &countingInfluence{}, nil, nil)
	if err == nil {
		t.Error("New without rival source: want error")
	}
}

func TestLoopReportsFactionEvents(t *testing.T) {
	w := newStubWorld()
	var reports []Report
	a, err := New(Config{Faction: ai, Interval: time.Second, Seed: 3}, w, nopCommander{}, &countingInfluence{}, rivalAfter(0), func(r Report) {
		reports = append(reports, r)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Step(0)
	w.factions[ai].buildings = nil
	a.Step(time.Second)
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if len(reports[0].Events) != 0 {
		t.Errorf("first tick events = %+v, want none", reports[0].Events)
	}
	if !hasKind(reports[1].Events, EventCastleLost) {
		t.Errorf("second tick events = %+v, want castle_lost", reports[1].Events)
	}
}
