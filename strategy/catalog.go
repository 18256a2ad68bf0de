package strategy

import (
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/utility"
)

// Hooks exposes the brain's evaluators and performers by name for catalog
// binding.
func (b *Brain) Hooks() utility.Hooks {
	h := utility.Hooks{
		Evals: map[string]utility.EvalFunc{
			"build":         b.BuildNecessity,
			"repair":        b.RepairNecessity,
			"guard":         b.GuardNecessity,
			"form-troops":   b.FormTroopsNecessity,
			"attack":        b.AttackNecessity,
			"attack-castle": b.AttackCastleNecessity,
			"attack-tile":   b.AttackTileNecessity,
			"attack-troop":  b.AttackTroopNecessity,
		},
		Performs: map[string]utility.PerformFunc{
			"place-building": b.PlaceBuilding,
			"repair":         b.Repair,
			"guard":          b.Guard,
			"form-troops":    b.FormTroops,
			"attack":         b.Attack,
			"attack-castle":  b.AttackCastle,
			"attack-tile":    b.AttackTile,
			"attack-troop":   b.AttackTroop,
		},
	}
	for t := model.Castle; t < model.NumBuildingTypes; t++ {
		name := "build-" + t.String()
		h.Evals[name] = func() float64 { return b.BuildTypeNecessity(t) }
		h.Performs[name] = func() error { return b.Build(t) }
	}
	return h
}

// DefaultCatalog is the stock castle-AI action list.
func DefaultCatalog() []utility.ActionSpec {
	return []utility.ActionSpec{
		{Name: "build", Eval: "build", Perform: "place-building", Weight: 1},
		{Name: "repair", Eval: "repair", Perform: "repair", Weight: 0.8,
			Curve: utility.CurveSpec{Kind: "polynomial", M: 1, K: 2}},
		{Name: "guard", Eval: "guard", Perform: "guard", Weight: 1,
			Curve: utility.CurveSpec{Kind: "expr", Expr: "1 - (1 - x) ** 2"}},
		{Name: "form-troops", Eval: "form-troops", Perform: "form-troops", Weight: 0.9},
		{Name: "attack-castle", Eval: "attack-castle", Perform: "attack-castle", Weight: 1,
			Curve: utility.CurveSpec{Kind: "points", Points: [][2]float64{{0, 0}, {0.3, 0.1}, {1, 1}}}},
		{Name: "attack-tile", Eval: "attack-tile", Perform: "attack-tile", Weight: 0.7},
		{Name: "attack-troop", Eval: "attack-troop", Perform: "attack-troop", Weight: 1},
	}
}
