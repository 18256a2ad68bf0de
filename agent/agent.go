// Package agent drives one AI faction: it binds the strategy brain to a
// utility catalog and schedules decisions through a cooperative loop.
package agent

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/strategy"
	"github.com/Vynokris/RTS-AI/utility"
)

// Config configures one AI faction.
type Config struct {
	Faction  model.FactionID
	Interval time.Duration
	Seed     int64
	Tuning   strategy.Tuning
	Catalog  []utility.ActionSpec
}

// Agent owns the decision-making for a single faction.
type Agent struct {
	faction model.FactionID
	brain   *strategy.Brain
	engine  *utility.Engine
	loop    *Loop
}

// New compiles the catalog against a fresh brain. An empty catalog falls
// back to strategy.DefaultCatalog.
func New(cfg Config, w strategy.World, cmd strategy.Commander, infl strategy.Influence, rival RivalSource, onReport func(Report)) (*Agent, error) {
	if w == nil || cmd == nil || infl == nil {
		return nil, fmt.Errorf("agent %s: world, commander and influence are required", cfg.Faction)
	}
	if rival == nil {
		return nil, fmt.Errorf("agent %s: rival source is required", cfg.Faction)
	}
	specs := cfg.Catalog
	if len(specs) == 0 {
		specs = strategy.DefaultCatalog()
	}

	// Separate streams keep performer randomness from shifting action draws.
	brain := strategy.NewBrain(cfg.Faction, w, cmd, infl, cfg.Tuning, rand.New(rand.NewSource(cfg.Seed)))
	actions, err := utility.Compile(specs, brain.Hooks())
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Faction, err)
	}
	engine := utility.NewEngine(actions, rand.New(rand.NewSource(cfg.Seed+1)))

	a := &Agent{faction: cfg.Faction, brain: brain, engine: engine}
	view := func() strategy.Faction { return w.Faction(cfg.Faction) }
	a.loop = NewLoop(brain, engine, rival, view, cfg.Interval, onReport)

	slog.Info("agent ready", "faction", cfg.Faction, "actions", len(actions), "interval", a.loop.Interval())
	return a, nil
}

func (a *Agent) Faction() model.FactionID { return a.faction }
func (a *Agent) Brain() *strategy.Brain   { return a.brain }
func (a *Agent) Engine() *utility.Engine  { return a.engine }
func (a *Agent) State() State             { return a.loop.State() }
func (a *Agent) Hooks() utility.Hooks     { return a.brain.Hooks() }
func (a *Agent) Step(dt time.Duration)    { a.loop.Step(dt) }
func (a *Agent) Stop()                    { a.loop.Stop() }
