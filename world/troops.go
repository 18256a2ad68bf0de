package world

import "github.com/Vynokris/RTS-AI/model"

// sense refreshes every troop's NearbyEnemies count.
func (w *World) sense() {
	all := make([]*model.Troop, 0, len(w.troops))
	for _, id := range w.order {
		all = append(all, w.factions[id].troops...)
	}
	sight := w.cfg.SightRadius * w.m.TileSize
	for _, t := range all {
		t.NearbyEnemies = 0
		for _, o := range all {
			if o.Owner != t.Owner && o.Health > 0 && t.Pos.Dist(o.Pos) <= sight {
				t.NearbyEnemies++
			}
		}
	}
}

// act runs one troop's state machine for sec seconds. Troops move in
// straight lines; there is no path finding.
func (w *World) act(p *paint, t *model.Troop, sec float64) {
	if t.Health <= 0 {
		return
	}
	switch t.State {
	case model.Idle:
		// Idle troops defend themselves when enemies close in.
		if t.NearbyEnemies > 0 {
			t.State = model.Guard
		}

	case model.Navigate:
		if w.moveTo(t, t.Dest, sec) {
			w.arrive(t)
			t.State = model.Idle
		}

	case model.Guard:
		if e := w.nearestEnemy(t); e != nil {
			w.engage(t, e, sec)
			return
		}
		post := w.buildings[t.TargetBuild]
		if post != nil && post.Owner == t.Owner && t.Pos.Dist(post.Pos) > 2*w.m.TileSize {
			w.moveTo(t, post.Pos, sec)
		}

	case model.Attack:
		if e := w.troops[t.TargetTroop]; e != nil && e.Owner != t.Owner && e.Health > 0 {
			w.engage(t, e, sec)
			return
		}
		t.TargetTroop = 0
		if e := w.nearestEnemy(t); e != nil {
			w.engage(t, e, sec)
			return
		}
		if b := w.buildings[t.TargetBuild]; b != nil && b.Owner != t.Owner {
			if t.Pos.Dist(b.Pos) > w.reach(t) {
				w.moveTo(t, b.Pos, sec)
			} else {
				b.Health -= w.cfg.Troops[t.Type].Damage * sec
			}
			return
		}
		t.TargetBuild = 0
		if t.Moving {
			if w.moveTo(t, t.Dest, sec) {
				w.arrive(t)
				w.conquer(p, t)
			}
			return
		}
		t.State = model.Idle
	}
}

func (w *World) arrive(t *model.Troop) {
	t.Moving = false
	t.GroupSpeed = 0
}

// reach is the attack range plus half a tile, so melee troops can hit a
// building from its edge.
func (w *World) reach(t *model.Troop) float64 {
	return w.cfg.Troops[t.Type].Range + w.m.TileSize/2
}

func (w *World) engage(t, e *model.Troop, sec float64) {
	if t.Pos.Dist(e.Pos) > w.cfg.Troops[t.Type].Range {
		w.moveTo(t, e.Pos, sec)
		return
	}
	e.Health -= w.cfg.Troops[t.Type].Damage * sec
}

func (w *World) nearestEnemy(t *model.Troop) *model.Troop {
	if t.NearbyEnemies == 0 {
		return nil
	}
	sight := w.cfg.SightRadius * w.m.TileSize
	var best *model.Troop
	bestD := sight
	for _, id := range w.order {
		if id == t.Owner {
			continue
		}
		for _, o := range w.factions[id].troops {
			if o.Health <= 0 {
				continue
			}
			if d := t.Pos.Dist(o.Pos); d <= bestD {
				best, bestD = o, d
			}
		}
	}
	return best
}

// moveTo steps t toward dest and reports arrival.
func (w *World) moveTo(t *model.Troop, dest model.Vec2, sec float64) bool {
	speed := t.Speed
	if t.GroupSpeed > 0 && t.GroupSpeed < speed {
		speed = t.GroupSpeed
	}
	step := speed * sec
	d := dest.Sub(t.Pos)
	dist := d.Len()
	if dist <= step || dist < 1e-9 {
		t.Pos = w.clampPos(dest)
		return true
	}
	t.Pos = w.clampPos(t.Pos.Add(d.Scale(step / dist)))
	return false
}
