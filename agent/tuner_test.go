package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vynokris/RTS-AI/utility"
)

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai.yaml")
	if err := os.WriteFile(path, []byte("actions: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

func TestTunerUnchangedFileIsIgnored(t *testing.T) {
	path := writeCatalog(t)
	loads := 0
	tn := NewTuner(path, time.Second, func(string) ([]utility.ActionSpec, error) {
		loads++
		return nil, nil
	})
	changed, err := tn.Check()
	if err != nil || changed {
		t.Errorf("Check() = %v, %v, want false, nil", changed, err)
	}
	if loads != 0 {
		t.Errorf("loads = %d, want 0", loads)
	}
}

func TestTunerSwapsOnChange(t *testing.T) {
	path := writeCatalog(t)
	a, _, _ := newTestAgent(t, 0)
	specs := []utility.ActionSpec{{Name: "only-repair", Eval: "repair", Perform: "repair", Weight: 1}}
	tn := NewTuner(path, time.Second, func(string) ([]utility.ActionSpec, error) { return specs, nil })
	tn.Attach(a)

	touch(t, path, time.Now().Add(time.Minute))
	changed, err := tn.Check()
	if err != nil || !changed {
		t.Fatalf("Check() = %v, %v, want true, nil", changed, err)
	}
	actions := a.Engine().Actions()
	if len(actions) != 1 || actions[0].Name != "only-repair" || !actions[0].Bound() {
		t.Errorf("catalog after reload = %v, want one bound action", actions)
	}
}

func TestTunerKeepsCatalogOnBadEdit(t *testing.T) {
	path := writeCatalog(t)
	a, _, _ := newTestAgent(t, 0)
	before := len(a.Engine().Actions())
	tn := NewTuner(path, time.Second, func(string) ([]utility.ActionSpec, error) {
		return []utility.ActionSpec{{Name: "x", Weight: -1}}, nil
	})
	tn.Attach(a)

	touch(t, path, time.Now().Add(time.Minute))
	if _, err := tn.Check(); err == nil {
		t.Fatal("Check with negative weight: want error")
	}
	if got := len(a.Engine().Actions()); got != before {
		t.Errorf("actions = %d, want untouched %d", got, before)
	}
}

func TestTunerLoadError(t *testing.T) {
	path := writeCatalog(t)
	boom := errors.New("boom")
	tn := NewTuner(path, time.Second, func(string) ([]utility.ActionSpec, error) { return nil, boom })
	tn.Poke()
	if _, err := tn.Check(); !errors.Is(err, boom) {
		t.Errorf("Check() error = %v, want wrapping %v", err, boom)
	}
}
