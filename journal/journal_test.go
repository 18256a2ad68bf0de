package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/utility"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func report(faction model.FactionID, tick uint64, action string) agent.Report {
	return agent.Report{
		Faction:     faction,
		Tick:        tick,
		SimTime:     time.Duration(tick) * time.Second,
		Action:      action,
		Roll:        0.5,
		Scores:      []utility.Score{{Action: action, Value: 0.7}},
		Necessities: map[string]float64{"guard": 0.2},
	}
}

func TestStoreMatchLifecycle(t *testing.T) {
	s := openStore(t)
	id, err := s.BeginMatch(42, 2, map[string]int{"cols": 64})
	if err != nil {
		t.Fatalf("BeginMatch: %v", err)
	}
	s.EndMatch(id, 600, time.Minute, 1)
	s.Sync()

	m, err := s.Match(id)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.Seed != 42 || m.Factions != 2 || m.Frames != 600 || m.SimMillis != 60000 {
		t.Errorf("match = %+v, want seed 42, 2 factions, 600 frames, 60000ms", m)
	}
	if m.Winner == nil || *m.Winner != 1 {
		t.Errorf("winner = %v, want 1", m.Winner)
	}
	if m.EndedAt == nil {
		t.Error("ended_at not set")
	}
	if m.Config != `{"cols":64}` {
		t.Errorf("config = %s", m.Config)
	}
}

func TestStoreNoWinner(t *testing.T) {
	s := openStore(t)
	id, _ := s.BeginMatch(1, 2, nil)
	s.EndMatch(id, 10, time.Second, model.Neutral)
	s.Sync()
	m, err := s.Match(id)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.Winner != nil {
		t.Errorf("winner = %d, want NULL", *m.Winner)
	}
}

func TestStoreDecisionsAndEvents(t *testing.T) {
	s := openStore(t)
	id, _ := s.BeginMatch(1, 2, nil)

	s.Record(id, report(0, 1, "build"))
	rep := report(0, 2, "guard")
	rep.Err = errors.New("no troops")
	rep.Events = []agent.Event{{Kind: agent.EventFirstContact, Tick: 2, Detail: "3 enemies near"}}
	s.Record(id, rep)
	s.Record(id, report(1, 1, "build"))
	s.Sync()

	rows, err := s.Decisions(id, 0)
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("decisions = %d, want 2", len(rows))
	}
	if rows[0].Action != "build" || rows[1].Action != "guard" {
		t.Errorf("actions = %s, %s, want build, guard", rows[0].Action, rows[1].Action)
	}
	if rows[1].Err != "no troops" || rows[0].Err != "" {
		t.Errorf("errs = %q, %q", rows[0].Err, rows[1].Err)
	}
	if rows[1].SimMillis != 2000 {
		t.Errorf("sim_ms = %d, want 2000", rows[1].SimMillis)
	}
	if rows[0].Necessities != `{"guard":0.2}` {
		t.Errorf("necessities = %s", rows[0].Necessities)
	}

	events, err := s.Events(id)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != "first_contact" || events[0].Faction != 0 {
		t.Errorf("events = %+v, want one first_contact for faction 0", events)
	}

	counts, err := s.ActionCounts(id)
	if err != nil {
		t.Fatalf("ActionCounts: %v", err)
	}
	if counts[0]["build"] != 1 || counts[0]["guard"] != 1 || counts[1]["build"] != 1 {
		t.Errorf("ActionCounts = %v", counts)
	}
}

func TestStoreClosedIgnoresWrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.Record("x", report(0, 1, "build"))
	s.EndMatch("x", 1, time.Second, model.Neutral)
	s.Sync()
	if _, err := s.BeginMatch(1, 2, nil); err == nil {
		t.Error("BeginMatch after Close: want error")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "trace.jsonl.zst")
	tr, err := OpenTrace(p)
	if err != nil {
		t.Fatalf("OpenTrace: %v", err)
	}
	rec := NewRecorder(nil, tr, "m1")
	for tick := uint64(1); tick <= 20; tick++ {
		if err := rec.Report(report(model.FactionID(tick%2), tick, "build")); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Write(1); err == nil {
		t.Error("Write after Close: want error")
	}

	var got []TraceEntry
	if err := ReadTrace(p, func(e TraceEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("entries = %d, want 20", len(got))
	}
	if got[0].Match != "m1" || got[0].Tick != 1 || got[0].Faction != 1 || got[19].Tick != 20 {
		t.Errorf("first/last = %+v / %+v", got[0], got[19])
	}
	if got[4].Scores[0].Value != 0.7 {
		t.Errorf("scores = %v", got[4].Scores)
	}
}

func TestTraceReopenAppends(t *testing.T) {
	p := filepath.Join(t.TempDir(), "trace.jsonl.zst")
	for i := 0; i < 2; i++ {
		tr, err := OpenTrace(p)
		if err != nil {
			t.Fatalf("OpenTrace: %v", err)
		}
		if err := tr.Write(NewTraceEntry("m", report(0, uint64(i+1), "guard"))); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	n := 0
	if err := ReadTrace(p, func(TraceEntry) error { n++; return nil }); err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if n != 2 {
		t.Errorf("entries = %d, want 2 across appended frames", n)
	}
	if fi, err := os.Stat(p); err != nil || fi.Size() == 0 {
		t.Errorf("trace file stat = %v, %v", fi, err)
	}
}

func TestRecorderFeedsStore(t *testing.T) {
	s := openStore(t)
	id, _ := s.BeginMatch(1, 2, nil)
	rec := NewRecorder(s, nil, id)
	if err := rec.Report(report(1, 1, "attack-troop")); err != nil {
		t.Fatalf("Report: %v", err)
	}
	s.Sync()
	rows, err := s.Decisions(id, 1)
	if err != nil || len(rows) != 1 || rows[0].Action != "attack-troop" {
		t.Errorf("Decisions = %+v, %v", rows, err)
	}
}
