package strategy

import (
	"sort"

	"github.com/Vynokris/RTS-AI/model"
)

// Selector filters a faction's troops into a crowd for one order.
type Selector struct {
	States []model.TroopState // empty = any state
	Types  []model.TroopType  // empty = any type
	// CalmStates are states whose troops are only taken when no enemy is nearby.
	CalmStates []model.TroopState
	Limit      int // 0 = no cap
}

// availableSelector takes idle troops, plus guards with nothing to fight.
func availableSelector(limit int) Selector {
	return Selector{
		States:     []model.TroopState{model.Idle, model.Guard},
		CalmStates: []model.TroopState{model.Guard},
		Limit:      limit,
	}
}

// Select returns matching troops closest to near first, capped at Limit.
func (s Selector) Select(troops []*model.Troop, near model.Vec2) []*model.Troop {
	var out []*model.Troop
	for _, t := range troops {
		if len(s.States) > 0 && !containsState(s.States, t.State) {
			continue
		}
		if len(s.Types) > 0 && !containsType(s.Types, t.Type) {
			continue
		}
		if containsState(s.CalmStates, t.State) && t.NearbyEnemies > 0 {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pos.Dist(near) < out[j].Pos.Dist(near)
	})
	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	return out
}

func containsState(list []model.TroopState, s model.TroopState) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []model.TroopType, t model.TroopType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
