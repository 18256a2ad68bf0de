package agent

import (
	"fmt"

	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/strategy"
)

// EventKind identifies a notable change between two decision ticks.
type EventKind string

const (
	EventCastleLost      EventKind = "castle_lost"
	EventBuildingLost    EventKind = "building_lost"
	EventTerritoryLost   EventKind = "territory_lost"
	EventTerritoryGained EventKind = "territory_gained"
	EventArmyDevastated  EventKind = "army_devastated"
	EventEconomyCrisis   EventKind = "economy_crisis"
	EventFirstContact    EventKind = "first_contact"
	EventFirstBarracks   EventKind = "first_barracks"
)

// Event is a change detected by diffing consecutive faction snapshots.
type Event struct {
	Kind   EventKind `json:"kind"`
	Tick   uint64    `json:"tick"`
	Detail string    `json:"detail"`
}

// snapshot captures the diffable parts of a faction at one tick.
type snapshot struct {
	buildings  map[model.BuildingID]model.BuildingType
	tiles      int
	troops     int
	stockTotal float64
	contact    bool
	barracks   bool
}

func takeSnapshot(f strategy.Faction) snapshot {
	s := snapshot{
		buildings: make(map[model.BuildingID]model.BuildingType, len(f.Buildings())),
		tiles:     len(f.OwnedTiles()),
		troops:    len(f.Troops()),
	}
	for _, b := range f.Buildings() {
		s.buildings[b.ID] = b.Type
		if b.Type == model.Barracks {
			s.barracks = true
		}
	}
	for _, t := range f.Troops() {
		if t.NearbyEnemies > 0 {
			s.contact = true
			break
		}
	}
	st := f.Stock()
	s.stockTotal = st.Crops + st.Lumber + st.Stone
	return s
}

// detectEvents compares cur against prev. A nil prev yields no events.
func detectEvents(tick uint64, prev *snapshot, cur snapshot) []Event {
	if prev == nil {
		return nil
	}
	var events []Event
	emit := func(k EventKind, format string, args ...any) {
		events = append(events, Event{Kind: k, Tick: tick, Detail: fmt.Sprintf(format, args...)})
	}

	for id, typ := range prev.buildings {
		if _, ok := cur.buildings[id]; ok {
			continue
		}
		if typ == model.Castle {
			emit(EventCastleLost, "castle %d destroyed", id)
		} else {
			emit(EventBuildingLost, "lost %s %d", typ, id)
		}
	}

	// Territory swings below 10% are ordinary harvest churn.
	if d := cur.tiles - prev.tiles; d != 0 && prev.tiles > 0 && 10*abs(d) >= prev.tiles {
		if d < 0 {
			emit(EventTerritoryLost, "territory %d -> %d tiles", prev.tiles, cur.tiles)
		} else {
			emit(EventTerritoryGained, "territory %d -> %d tiles", prev.tiles, cur.tiles)
		}
	}

	if prev.troops >= 6 && cur.troops < prev.troops {
		lost := prev.troops - cur.troops
		if 2*lost > prev.troops {
			emit(EventArmyDevastated, "army %d -> %d troops (lost %d%%)", prev.troops, cur.troops, 100*lost/prev.troops)
		}
	}

	if prev.stockTotal >= 50 && cur.stockTotal < 10 {
		emit(EventEconomyCrisis, "stock collapsed %.0f -> %.0f", prev.stockTotal, cur.stockTotal)
	}

	if !prev.contact && cur.contact {
		emit(EventFirstContact, "troops engaged")
	}
	if !prev.barracks && cur.barracks {
		emit(EventFirstBarracks, "barracks online")
	}
	return events
}

// EventTracker keeps the previous snapshot of one faction. first_contact
// and first_barracks fire once per match.
type EventTracker struct {
	view      func() strategy.Faction
	prev      *snapshot
	contacted bool
	barracks  bool
}

// NewEventTracker observes the faction returned by view.
func NewEventTracker(view func() strategy.Faction) *EventTracker {
	return &EventTracker{view: view}
}

// Observe snapshots the faction and returns events since the last call.
func (t *EventTracker) Observe(tick uint64) []Event {
	if t.view == nil {
		return nil
	}
	f := t.view()
	if f == nil {
		return nil
	}
	cur := takeSnapshot(f)
	// Latch one-shot signals so they never re-fire after flickering off.
	if t.contacted {
		cur.contact = true
	}
	if t.barracks {
		cur.barracks = true
	}
	events := detectEvents(tick, t.prev, cur)
	t.contacted = cur.contact
	t.barracks = cur.barracks
	t.prev = &cur
	return events
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
