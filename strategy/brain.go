// Package strategy holds a computer faction's necessity evaluators and the
// performers that act on them. Evaluators read faction economy, territory and
// influence; results are memoized in a per-tick Scratch.
package strategy

import (
	"log/slog"
	"math/rand"

	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
)

// Faction is the economy and territory view of one faction.
type Faction interface {
	ID() model.FactionID
	Stock() model.Stock
	OwnedTiles() []*model.Tile
	Buildings() []*model.Building
	Troops() []*model.Troop
	SpawnTile() model.TileCoord
}

// World answers faction lookups and carries out construction, repair and
// training on behalf of a faction.
type World interface {
	Faction(id model.FactionID) Faction // nil when unknown
	Map() *model.TileMap
	NaturalResources() []model.TileCoord
	Costs() model.CostTable
	Construct(f model.FactionID, t model.BuildingType, at model.TileCoord) (*model.Building, error)
	Repair(f model.FactionID, b model.BuildingID) error
	Train(f model.FactionID, barracks model.BuildingID, t model.TroopType) error
}

// Commander issues orders to a selection of troops as a group.
type Commander interface {
	NavigateTo(troops []*model.Troop, dest model.Vec2)
	TargetTroop(troops []*model.Troop, target *model.Troop)
	TargetBuilding(troops []*model.Troop, target *model.Building)
	ForceState(troops []*model.Troop, s model.TroopState)
}

// Influence reads the diffused influence rasters.
type Influence interface {
	Query(pos model.Vec2, faction model.FactionID, cat influence.Category) float64
}

type evalFlag uint8

const (
	flagBuild evalFlag = 1 << iota
	flagRepair
	flagGuard
	flagFormTroops
	flagAttack
)

// Scratch is one tick's memo of necessities and the targets picked while
// computing them. The zero value is a fresh tick.
type Scratch struct {
	computed evalFlag

	Build        [model.NumBuildingTypes]float64
	Repair       float64
	Guard        float64
	FormTroops   float64
	AttackCastle float64
	AttackTile   float64
	AttackTroop  float64

	RepairTarget *model.Building
	GuardTarget  *model.Building
	CastleTarget *model.Building
	TileTarget   *model.Tile
	TroopTarget  *model.Troop
}

// Necessities flattens the scores by hook name.
func (s Scratch) Necessities() map[string]float64 {
	out := map[string]float64{
		"repair":        s.Repair,
		"guard":         s.Guard,
		"form-troops":   s.FormTroops,
		"attack-castle": s.AttackCastle,
		"attack-tile":   s.AttackTile,
		"attack-troop":  s.AttackTroop,
	}
	for t := model.Castle; t < model.NumBuildingTypes; t++ {
		out["build-"+t.String()] = s.Build[t]
	}
	return out
}

// Brain is the decision state of one computer faction.
type Brain struct {
	self   model.FactionID
	rival  model.FactionID
	world  World
	cmd    Commander
	infl   Influence
	tuning Tuning
	rng    *rand.Rand

	scratch Scratch
}

func NewBrain(self model.FactionID, w World, cmd Commander, infl Influence, tuning Tuning, rng *rand.Rand) *Brain {
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(self) + 1))
	}
	return &Brain{
		self:   self,
		rival:  model.Neutral,
		world:  w,
		cmd:    cmd,
		infl:   infl,
		tuning: tuning.normalized(),
		rng:    rng,
	}
}

func (b *Brain) Self() model.FactionID { return b.self }

// SetRival assigns the opposing faction. Until then the brain has nothing
// to attack or guard against.
func (b *Brain) SetRival(id model.FactionID) {
	b.rival = id
	slog.Info("rival assigned", "faction", b.self, "rival", id)
}

// Rival returns the opposing faction id and whether it is known yet.
func (b *Brain) Rival() (model.FactionID, bool) {
	return b.rival, b.rival != model.Neutral
}

// Reset clears the scratch record for a new tick.
func (b *Brain) Reset() { b.scratch = Scratch{} }

// Scratch returns a copy of the current scratch record.
func (b *Brain) Scratch() Scratch { return b.scratch }

// Evaluate computes every evaluator once, dependencies first.
func (b *Brain) Evaluate() {
	b.BuildNecessity()
	b.RepairNecessity()
	b.GuardNecessity()
	b.AttackNecessity()
	b.FormTroopsNecessity()
}

func (b *Brain) faction() Faction { return b.world.Faction(b.self) }

func (b *Brain) rivalFaction() Faction {
	if b.rival == model.Neutral {
		return nil
	}
	return b.world.Faction(b.rival)
}

// query reads influence scaled by the configured gain, clamped to [0,1].
func (b *Brain) query(pos model.Vec2, f model.FactionID, cat influence.Category) float64 {
	return clamp01(b.tuning.InfluenceGain * b.infl.Query(pos, f, cat))
}
