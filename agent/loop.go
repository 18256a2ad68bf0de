package agent

import (
	"log/slog"
	"time"

	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/strategy"
	"github.com/Vynokris/RTS-AI/utility"
)

// State is the decision loop's scheduling state.
type State int

const (
	WaitingForWorld State = iota
	Ticking
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForWorld:
		return "waiting"
	case Ticking:
		return "ticking"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// RivalSource reports the opposing faction once the world has assigned it.
type RivalSource func() (model.FactionID, bool)

// Report describes one decision tick.
type Report struct {
	Faction     model.FactionID
	Tick        uint64
	SimTime     time.Duration
	Action      string
	Roll        float64
	Scores      []utility.Score
	Necessities map[string]float64
	Events      []Event
	Err         error
}

// Loop is a cooperative per-faction scheduler. The simulation calls Step
// every frame; the loop never blocks and never runs on its own goroutine.
type Loop struct {
	brain    *strategy.Brain
	engine   *utility.Engine
	rival    RivalSource
	interval time.Duration
	onReport func(Report)

	state   State
	elapsed time.Duration
	clock   time.Duration
	ticks   uint64
	events  *EventTracker
}

// NewLoop builds a loop in WaitingForWorld. factionView may be nil, in
// which case no events are tracked.
func NewLoop(brain *strategy.Brain, engine *utility.Engine, rival RivalSource, factionView func() strategy.Faction, interval time.Duration, onReport func(Report)) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	l := &Loop{
		brain:    brain,
		engine:   engine,
		rival:    rival,
		interval: interval,
		onReport: onReport,
		events:   NewEventTracker(factionView),
	}
	return l
}

func (l *Loop) State() State            { return l.state }
func (l *Loop) Ticks() uint64           { return l.ticks }
func (l *Loop) Interval() time.Duration { return l.interval }

// Stop ends the loop at the next step.
func (l *Loop) Stop() {
	if l.state != Stopped {
		slog.Info("decision loop stopped", "faction", l.brain.Self(), "ticks", l.ticks)
	}
	l.state = Stopped
}

// Step advances the loop by dt of simulated time.
func (l *Loop) Step(dt time.Duration) {
	l.clock += dt
	switch l.state {
	case Stopped:
		return
	case WaitingForWorld:
		id, ok := l.rival()
		if !ok {
			return
		}
		l.brain.SetRival(id)
		l.state = Ticking
		l.elapsed = l.interval
		slog.Info("decision loop ticking", "faction", l.brain.Self(), "rival", id, "interval", l.interval)
	case Ticking:
		l.elapsed += dt
	}

	if l.elapsed < l.interval {
		return
	}
	l.elapsed -= l.interval
	// A long frame drops the backlog instead of bursting several decisions.
	if l.elapsed >= l.interval {
		l.elapsed = 0
	}
	l.tick()
}

// tick runs evaluate, select, perform, then clears the scratch record.
func (l *Loop) tick() {
	l.ticks++
	l.brain.Evaluate()
	d, err := l.engine.PerformBestAction()
	if err != nil {
		slog.Error("perform failed", "faction", l.brain.Self(), "error", err)
	}

	r := Report{
		Faction:     l.brain.Self(),
		Tick:        l.ticks,
		SimTime:     l.clock,
		Roll:        d.Roll,
		Scores:      d.Scores,
		Necessities: l.brain.Scratch().Necessities(),
		Events:      l.events.Observe(l.ticks),
		Err:         err,
	}
	if d.Action != nil {
		r.Action = d.Action.Name
	}
	l.brain.Reset()

	for _, e := range r.Events {
		slog.Info("event", "faction", r.Faction, "kind", e.Kind, "detail", e.Detail)
	}
	if l.onReport != nil {
		l.onReport(r)
	}
}
