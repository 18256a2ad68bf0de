package strategy

import (
	"math"

	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
)

// BuildNecessity is the highest of the per-type build necessities.
func (b *Brain) BuildNecessity() float64 {
	b.evalBuild()
	best := 0.0
	for _, v := range b.scratch.Build {
		best = math.Max(best, v)
	}
	return best
}

// BuildTypeNecessity returns the build necessity of a single building type.
func (b *Brain) BuildTypeNecessity(t model.BuildingType) float64 {
	if t >= model.NumBuildingTypes {
		return 0
	}
	b.evalBuild()
	return b.scratch.Build[t]
}

// evalBuild forces the first lumbermill, mine and farm in that order, then
// scores each type by owned tiles per existing building. The castle only
// rises once stock covers it and the other types are satisfied.
func (b *Brain) evalBuild() {
	if b.scratch.computed&flagBuild != 0 {
		return
	}
	defer func() { b.scratch.computed |= flagBuild }()

	f := b.faction()
	if f == nil {
		return
	}
	s := &b.scratch.Build
	counts := countBuildings(f.Buildings())
	free := b.freeResources()
	placeable := func(t model.BuildingType) bool {
		r := t.Harvests()
		return r == model.NoResource || free[r]
	}

	for _, t := range []model.BuildingType{model.Lumbermill, model.Mine, model.Farm} {
		if counts[t] == 0 && placeable(t) {
			s[t] = 1
			return
		}
	}

	tiles := float64(len(f.OwnedTiles()))
	ratio := func(t model.BuildingType, k float64) float64 {
		if !placeable(t) {
			return 0
		}
		if counts[t] == 0 {
			return 1
		}
		return clamp01(k * tiles / float64(counts[t]))
	}
	s[model.Lumbermill] = ratio(model.Lumbermill, b.tuning.LumbermillRatio)
	s[model.Mine] = ratio(model.Mine, b.tuning.MineRatio)
	s[model.Farm] = ratio(model.Farm, b.tuning.FarmRatio)
	s[model.Barracks] = ratio(model.Barracks, b.tuning.BarracksRatio)

	others := s[model.Lumbermill] + s[model.Mine] + s[model.Farm] + s[model.Barracks]
	cost := b.world.Costs().Building(model.Castle)
	stock := f.Stock()
	savings := halfShare(stock.Lumber, cost.Lumber) + halfShare(stock.Stone, cost.Stone)
	s[model.Castle] = clamp01(clamp01(savings) - b.tuning.CastleCompetition*others)
}

// halfShare is v/(2*cost), or the full half when the resource is free.
func halfShare(v, cost float64) float64 {
	if cost <= 0 {
		return 0.5
	}
	return v / (2 * cost)
}

// RepairNecessity is the worst damage ratio among buildings not already
// under repair.
func (b *Brain) RepairNecessity() float64 {
	if b.scratch.computed&flagRepair == 0 {
		b.evalRepair()
		b.scratch.computed |= flagRepair
	}
	return b.scratch.Repair
}

func (b *Brain) evalRepair() {
	f := b.faction()
	if f == nil {
		return
	}
	for _, bld := range f.Buildings() {
		if bld.Repairing {
			continue
		}
		if d := bld.Damage(); d > b.scratch.Repair {
			b.scratch.Repair = d
			b.scratch.RepairTarget = bld
		}
	}
}

// GuardNecessity is the strongest threat or opportunity next to one of our
// buildings: rival troops, rival buildings or unclaimed resources, whichever
// is highest.
func (b *Brain) GuardNecessity() float64 {
	if b.scratch.computed&flagGuard == 0 {
		b.evalGuard()
		b.scratch.computed |= flagGuard
	}
	return b.scratch.Guard
}

func (b *Brain) evalGuard() {
	f := b.faction()
	rival, ok := b.Rival()
	if f == nil || !ok {
		return
	}
	for _, bld := range f.Buildings() {
		v := math.Max(
			b.query(bld.Pos, rival, influence.Troops),
			math.Max(
				b.query(bld.Pos, rival, influence.Buildings),
				b.query(bld.Pos, model.Neutral, influence.Resources),
			),
		)
		if v > b.scratch.Guard {
			b.scratch.Guard = v
			b.scratch.GuardTarget = bld
		}
	}
}

// FormTroopsNecessity is 0 without barracks, otherwise the max of the crop,
// territory, demand and rival-advantage signals.
func (b *Brain) FormTroopsNecessity() float64 {
	if b.scratch.computed&flagFormTroops == 0 {
		b.scratch.FormTroops = b.evalFormTroops()
		b.scratch.computed |= flagFormTroops
	}
	return b.scratch.FormTroops
}

func (b *Brain) evalFormTroops() float64 {
	f := b.faction()
	if f == nil || countBuildings(f.Buildings())[model.Barracks] == 0 {
		return 0
	}
	t := b.tuning
	troops := f.Troops()
	n := float64(len(troops))

	crops := clamp01(f.Stock().Crops * t.CropsFactor)

	territory := 1.0
	if n > 0 {
		territory = clamp01(float64(len(f.OwnedTiles())) / (t.TilesPerTroop * n))
	}

	idle := 0
	for _, tr := range troops {
		if tr.State == model.Idle {
			idle++
		}
	}
	demand := math.Max(b.AttackNecessity(), b.GuardNecessity()) * clamp01(1-float64(idle)/t.IdleSaturation)

	advantage := 0.0
	if rf := b.rivalFaction(); rf != nil {
		gap := math.Max(float64(len(rf.Troops()))-n, 0)
		advantage = clamp(gap*t.RivalAdvantageFactor, 0, t.RivalAdvantageCap)
	}

	return math.Max(math.Max(crops, territory), math.Max(demand, advantage))
}

// AttackNecessity is the best of the castle, tile and troop attack scores.
func (b *Brain) AttackNecessity() float64 {
	b.ensureAttack()
	s := &b.scratch
	return math.Max(s.AttackCastle, math.Max(s.AttackTile, s.AttackTroop))
}

func (b *Brain) AttackCastleNecessity() float64 { b.ensureAttack(); return b.scratch.AttackCastle }
func (b *Brain) AttackTileNecessity() float64   { b.ensureAttack(); return b.scratch.AttackTile }
func (b *Brain) AttackTroopNecessity() float64  { b.ensureAttack(); return b.scratch.AttackTroop }

func (b *Brain) ensureAttack() {
	if b.scratch.computed&flagAttack == 0 {
		b.evalAttack()
		b.scratch.computed |= flagAttack
	}
}

// evalAttack scores the three kinds of attack target. Every score is scaled
// by our strength relative to the rival's army; without troops nothing scores.
func (b *Brain) evalAttack() {
	f, rf := b.faction(), b.rivalFaction()
	if f == nil || rf == nil {
		return
	}
	troops := float64(len(f.Troops()))
	if troops == 0 {
		return
	}
	t := b.tuning
	s := &b.scratch
	rival := rf.ID()
	strength := clamp01(troops / ((float64(len(rf.Troops())) + 1) * t.StrengthFactor))
	pressure := troops * t.CastlePressure

	if castle := rivalStronghold(rf); castle != nil {
		s.AttackCastle = clamp01(pressure) * strength
		s.CastleTarget = castle
	}

	m := b.world.Map()
	spawn := rf.SpawnTile()
	for _, tile := range rf.OwnedTiles() {
		pos := m.TileCenter(tile.Coord)
		richness := math.Max(
			b.query(pos, rival, influence.Resources),
			b.query(pos, model.Neutral, influence.Resources),
		)
		safety := 1 - b.query(pos, rival, influence.Troops)
		v := t.TileRichness*richness + t.TileSafety*safety
		if tile.Coord == spawn {
			v += pressure
		}
		if v = clamp01(v) * strength; v > s.AttackTile {
			s.AttackTile = v
			s.TileTarget = tile
		}
	}

	for _, tr := range rf.Troops() {
		intrusion := b.query(tr.Pos, b.self, influence.Buildings)
		if intrusion == 0 {
			continue
		}
		escort := b.query(tr.Pos, rival, influence.Troops)
		if v := clamp01(intrusion*(1-t.TroopPressure*escort)) * strength; v > s.AttackTroop {
			s.AttackTroop = v
			s.TroopTarget = tr
		}
	}
}

// rivalStronghold is the rival's castle, or failing that the building on
// its spawn tile.
func rivalStronghold(rf Faction) *model.Building {
	var onSpawn *model.Building
	spawn := rf.SpawnTile()
	for _, bld := range rf.Buildings() {
		if bld.Type == model.Castle {
			return bld
		}
		if bld.Tile == spawn {
			onSpawn = bld
		}
	}
	return onSpawn
}

// freeResources reports, per resource type, whether some natural-resource
// tile is still available to us: no building on it and not owned by another
// faction.
func (b *Brain) freeResources() map[model.ResourceType]bool {
	free := make(map[model.ResourceType]bool, 2)
	m := b.world.Map()
	for _, c := range b.world.NaturalResources() {
		tile := m.AtCoord(c)
		if tile != nil && b.tileFree(tile) {
			free[tile.Resource] = true
		}
	}
	return free
}

func (b *Brain) tileFree(tile *model.Tile) bool {
	return tile.Buildable() && (tile.Owner == model.Neutral || tile.Owner == b.self)
}

func countBuildings(buildings []*model.Building) [model.NumBuildingTypes]int {
	var counts [model.NumBuildingTypes]int
	for _, bld := range buildings {
		if bld.Type < model.NumBuildingTypes {
			counts[bld.Type]++
		}
	}
	return counts
}
