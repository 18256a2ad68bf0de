package world

import (
	"log/slog"

	"github.com/Vynokris/RTS-AI/model"
)

// Commander issues group orders to troops of this world. A group moves at
// the speed of its slowest member.
type Commander struct {
	w *World
}

func (w *World) Commander() *Commander { return &Commander{w: w} }

// NavigateTo sends troops to dest. Attacking troops keep their state and
// fight along the way; everyone else switches to Navigate.
func (c *Commander) NavigateTo(troops []*model.Troop, dest model.Vec2) {
	dest = c.w.clampPos(dest)
	speed := groupSpeed(troops)
	for _, t := range troops {
		t.Dest = dest
		t.Moving = true
		t.GroupSpeed = speed
		if t.State != model.Attack {
			t.State = model.Navigate
		}
	}
	slog.Debug("navigate", "troops", len(troops), "dest", dest, "speed", speed)
}

func (c *Commander) TargetTroop(troops []*model.Troop, target *model.Troop) {
	if target == nil {
		return
	}
	for _, t := range troops {
		if t.Owner == target.Owner {
			continue
		}
		t.TargetTroop = target.ID
		t.TargetBuild = 0
		t.Moving = false
	}
}

func (c *Commander) TargetBuilding(troops []*model.Troop, target *model.Building) {
	if target == nil {
		return
	}
	speed := groupSpeed(troops)
	for _, t := range troops {
		t.TargetBuild = target.ID
		t.TargetTroop = 0
		t.Moving = false
		t.GroupSpeed = speed
	}
}

// ForceState sets the state of every troop. Idle drops all orders.
func (c *Commander) ForceState(troops []*model.Troop, s model.TroopState) {
	for _, t := range troops {
		t.State = s
		if s == model.Idle {
			t.TargetTroop = 0
			t.TargetBuild = 0
			t.Moving = false
			t.GroupSpeed = 0
		}
	}
}

func groupSpeed(troops []*model.Troop) float64 {
	speed := 0.0
	for i, t := range troops {
		if i == 0 || t.Speed < speed {
			speed = t.Speed
		}
	}
	return speed
}
