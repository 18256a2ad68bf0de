package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Vynokris/RTS-AI/utility"
)

// LoadFunc reads an action catalog from a config file.
type LoadFunc func(path string) ([]utility.ActionSpec, error)

// Tuner watches the config file in the background and swaps the action
// catalog of every attached agent when it changes.
type Tuner struct {
	mu      sync.Mutex
	path    string
	load    LoadFunc
	every   time.Duration
	agents  []*Agent
	modTime time.Time
	ready   chan struct{}
}

// NewTuner creates a tuner polling path every interval. The file's current
// modification time is the baseline, so an unchanged file never reloads.
func NewTuner(path string, every time.Duration, load LoadFunc) *Tuner {
	if every <= 0 {
		every = 2 * time.Second
	}
	t := &Tuner{
		path:  path,
		load:  load,
		every: every,
		ready: make(chan struct{}, 1),
	}
	if fi, err := os.Stat(path); err == nil {
		t.modTime = fi.ModTime()
	}
	return t
}

// Attach registers an agent whose catalog follows the file.
func (t *Tuner) Attach(a *Agent) {
	t.mu.Lock()
	t.agents = append(t.agents, a)
	t.mu.Unlock()
}

// Poke requests a reload on the next loop iteration regardless of mtime.
func (t *Tuner) Poke() {
	t.mu.Lock()
	t.modTime = time.Time{}
	t.mu.Unlock()
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

// Start blocks until ctx is cancelled.
func (t *Tuner) Start(ctx context.Context) {
	slog.Info("tuner started", "path", t.path, "every", t.every)
	ticker := time.NewTicker(t.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("tuner stopped")
			return
		case <-ticker.C:
		case <-t.ready:
		}
		if _, err := t.Check(); err != nil {
			slog.Error("catalog reload failed", "path", t.path, "error", err)
		}
	}
}

// Check reloads the catalog if the file changed since the last load. It
// reports whether a new catalog was applied.
func (t *Tuner) Check() (bool, error) {
	fi, err := os.Stat(t.path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", t.path, err)
	}
	t.mu.Lock()
	changed := fi.ModTime().After(t.modTime)
	if changed {
		t.modTime = fi.ModTime()
	}
	t.mu.Unlock()
	if !changed {
		return false, nil
	}

	specs, err := t.load(t.path)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", t.path, err)
	}
	if err := t.Apply(specs); err != nil {
		return false, err
	}
	return true, nil
}

// Apply compiles specs for every agent and swaps them in only if all
// compile, so a bad edit leaves every faction on its previous catalog.
func (t *Tuner) Apply(specs []utility.ActionSpec) error {
	t.mu.Lock()
	agents := append([]*Agent(nil), t.agents...)
	t.mu.Unlock()

	compiled := make([][]*utility.Action, len(agents))
	for i, a := range agents {
		actions, err := utility.Compile(specs, a.Hooks())
		if err != nil {
			return fmt.Errorf("compile catalog for %s: %w", a.Faction(), err)
		}
		compiled[i] = actions
	}
	for i, a := range agents {
		a.Engine().Swap(compiled[i])
	}
	slog.Info("catalog reloaded", "actions", len(specs), "agents", len(agents))
	return nil
}
