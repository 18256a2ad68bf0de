// Package sim drives a match: it steps the world, refreshes troop influence
// and ticks every faction agent on a single goroutine.
package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/world"
)

// Config paces a match.
type Config struct {
	Frame          time.Duration `yaml:"frame" json:"frame"`                   // simulated time per frame
	Speed          float64       `yaml:"speed" json:"speed"`                   // 1 = real time, 0 = unpaced
	Duration       time.Duration `yaml:"duration" json:"duration"`             // simulated limit, 0 = until cancelled
	InfluenceEvery time.Duration `yaml:"influenceEvery" json:"influenceEvery"` // troop raster refresh
	DiagEvery      time.Duration `yaml:"diagEvery" json:"diagEvery"`
}

func DefaultConfig() Config {
	return Config{
		Frame:          100 * time.Millisecond,
		Speed:          1,
		InfluenceEvery: time.Second,
		DiagEvery:      30 * time.Second,
	}
}

// Result summarizes a finished match.
type Result struct {
	Frames   uint64
	SimTime  time.Duration
	Winner   model.FactionID // Neutral when no faction was defeated
	Defeated bool
}

// Runner is the cooperative frame loop.
type Runner struct {
	cfg    Config
	world  *world.World
	field  *influence.Field
	agents []*agent.Agent

	Frames uint64

	// Callbacks populated during setup.
	OnReport    func(r agent.Report)        // every agent decision
	OnInfluence func(simTime time.Duration) // after each troop raster refresh

	sinceInfluence time.Duration
	sinceDiag      time.Duration
}

func New(cfg Config, w *world.World, field *influence.Field) *Runner {
	if cfg.Frame <= 0 {
		cfg.Frame = 100 * time.Millisecond
	}
	if cfg.InfluenceEvery <= 0 {
		cfg.InfluenceEvery = time.Second
	}
	return &Runner{cfg: cfg, world: w, field: field}
}

// Add registers an agent stepped after the world each frame.
func (r *Runner) Add(a *agent.Agent) { r.agents = append(r.agents, a) }

// Report forwards a decision report to OnReport. Pass it to agent.New.
func (r *Runner) Report(rep agent.Report) {
	if r.OnReport != nil {
		r.OnReport(rep)
	}
}

// Run steps frames until ctx is cancelled, the duration elapses or a
// faction is defeated. Agents are stopped on return.
func (r *Runner) Run(ctx context.Context) Result {
	slog.Info("match started", "frame", r.cfg.Frame, "speed", r.cfg.Speed, "duration", r.cfg.Duration, "agents", len(r.agents))
	r.refreshInfluence()

	var res Result
	for {
		if ctx.Err() != nil {
			break
		}
		if r.cfg.Duration > 0 && r.world.Clock() >= r.cfg.Duration {
			break
		}
		start := time.Now()
		r.Step()
		if loser, ok := r.defeated(); ok {
			res.Defeated = true
			res.Winner, _ = r.world.Rival(loser)
			slog.Info("faction defeated", "faction", loser, "winner", res.Winner)
			break
		}
		if r.cfg.Speed > 0 {
			target := time.Duration(float64(r.cfg.Frame) / r.cfg.Speed)
			if wait := target - time.Since(start); wait > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		}
	}

	for _, a := range r.agents {
		a.Stop()
	}
	res.Frames = r.Frames
	res.SimTime = r.world.Clock()
	if !res.Defeated {
		res.Winner = model.Neutral
	}
	slog.Info("match ended", "frames", res.Frames, "simTime", res.SimTime, "winner", res.Winner)
	return res
}

// Step advances one frame: world, troop influence, then every agent.
func (r *Runner) Step() {
	dt := r.cfg.Frame
	r.Frames++
	r.world.Step(dt)

	r.sinceInfluence += dt
	if r.sinceInfluence >= r.cfg.InfluenceEvery {
		r.sinceInfluence = 0
		r.refreshInfluence()
	}

	for _, a := range r.agents {
		a.Step(dt)
	}

	if r.cfg.DiagEvery > 0 {
		r.sinceDiag += dt
		if r.sinceDiag >= r.cfg.DiagEvery {
			r.sinceDiag = 0
			r.logDiagnostics()
		}
	}
}

func (r *Runner) refreshInfluence() {
	if r.field == nil {
		return
	}
	r.field.RebuildTroopPresence(r.world.TroopPositions())
	if r.OnInfluence != nil {
		r.OnInfluence(r.world.Clock())
	}
}

func (r *Runner) defeated() (model.FactionID, bool) {
	ids := r.world.Factions()
	if len(ids) < 2 {
		return model.Neutral, false
	}
	for _, id := range ids {
		if r.world.Defeated(id) {
			return id, true
		}
	}
	return model.Neutral, false
}

func (r *Runner) logDiagnostics() {
	for _, id := range r.world.Factions() {
		f := r.world.FactionState(id)
		st := f.Stock()
		slog.Info("faction status",
			"faction", id,
			"simTime", r.world.Clock(),
			"crops", int(st.Crops),
			"lumber", int(st.Lumber),
			"stone", int(st.Stone),
			"tiles", len(f.OwnedTiles()),
			"buildings", len(f.Buildings()),
			"barracks", f.Count(model.Barracks),
			"troops", len(f.Troops()),
		)
	}
}
