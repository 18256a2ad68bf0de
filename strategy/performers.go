package strategy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vynokris/RTS-AI/model"
)

// PlaceBuilding constructs the building type with the highest build
// necessity. Ties go to the earlier type in model order.
func (b *Brain) PlaceBuilding() error {
	b.evalBuild()
	best, bestV := model.Castle, 0.0
	for t := model.Castle; t < model.NumBuildingTypes; t++ {
		if v := b.scratch.Build[t]; v > bestV {
			best, bestV = t, v
		}
	}
	if bestV <= 0 {
		return nil
	}
	return b.Build(best)
}

// Build places one building of type t if the faction can afford it. Resource
// buildings go on the nearest free matching resource tile; others are tried
// at random offsets around the spawn tile, widening after each rejection.
func (b *Brain) Build(t model.BuildingType) error {
	f := b.faction()
	if f == nil {
		return nil
	}
	if !f.Stock().Covers(b.world.Costs().Building(t)) {
		slog.Debug("cannot afford building", "faction", b.self, "type", t)
		return nil
	}

	m := b.world.Map()
	spawn := f.SpawnTile()
	if r := t.Harvests(); r != model.NoResource {
		at, ok := b.nearestFreeResource(r, m.TileCenter(spawn))
		if !ok {
			return nil
		}
		return b.construct(t, at)
	}

	radius := b.tuning.PlacementRadius
	for attempt := 0; attempt < b.tuning.PlacementAttempts; attempt++ {
		at := model.TileCoord{
			Col: spawn.Col + b.rng.Intn(2*radius+1) - radius,
			Row: spawn.Row + b.rng.Intn(2*radius+1) - radius,
		}
		tile := m.AtCoord(at)
		if tile == nil {
			continue
		}
		if !b.tileFree(tile) || tile.Resource != model.NoResource {
			radius++
			continue
		}
		err := b.construct(t, at)
		if errors.Is(err, model.ErrTileRejected) {
			radius++
			continue
		}
		return err
	}
	slog.Debug("no building site found", "faction", b.self, "type", t, "radius", radius)
	return nil
}

func (b *Brain) construct(t model.BuildingType, at model.TileCoord) error {
	bld, err := b.world.Construct(b.self, t, at)
	if errors.Is(err, model.ErrInsufficientStock) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("construct %s at %v: %w", t, at, err)
	}
	slog.Debug("building placed", "faction", b.self, "type", t, "tile", at, "id", bld.ID)
	return nil
}

func (b *Brain) nearestFreeResource(r model.ResourceType, from model.Vec2) (model.TileCoord, bool) {
	m := b.world.Map()
	var best model.TileCoord
	bestD := -1.0
	for _, c := range b.world.NaturalResources() {
		tile := m.AtCoord(c)
		if tile == nil || tile.Resource != r || !b.tileFree(tile) {
			continue
		}
		if d := m.TileCenter(c).Dist(from); bestD < 0 || d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD >= 0
}

// Repair starts repairing the most damaged building found by RepairNecessity.
func (b *Brain) Repair() error {
	b.RepairNecessity()
	target := b.scratch.RepairTarget
	if target == nil {
		return nil
	}
	if err := b.world.Repair(b.self, target.ID); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			return nil
		}
		return fmt.Errorf("repair %d: %w", target.ID, err)
	}
	slog.Debug("repair started", "faction", b.self, "building", target.ID, "type", target.Type)
	return nil
}

// FormTroops queues random troop types round-robin across barracks until a
// barracks refuses or the attempt budget runs out.
func (b *Brain) FormTroops() error {
	f := b.faction()
	if f == nil {
		return nil
	}
	var barracks []*model.Building
	for _, bld := range f.Buildings() {
		if bld.Type == model.Barracks {
			barracks = append(barracks, bld)
		}
	}
	if len(barracks) == 0 {
		return nil
	}

	queued := 0
	for i := 0; i < b.tuning.TrainAttempts; i++ {
		bk := barracks[i%len(barracks)]
		tt := model.TroopType(b.rng.Intn(int(model.NumTroopTypes)))
		err := b.world.Train(b.self, bk.ID, tt)
		if errors.Is(err, model.ErrInsufficientStock) || errors.Is(err, model.ErrQueueFull) {
			break
		}
		if err != nil {
			return fmt.Errorf("train %s at %d: %w", tt, bk.ID, err)
		}
		queued++
	}
	slog.Debug("troops queued", "faction", b.self, "count", queued)
	return nil
}

// Guard sends available troops to the building found by GuardNecessity.
func (b *Brain) Guard() error {
	b.GuardNecessity()
	target := b.scratch.GuardTarget
	f := b.faction()
	if target == nil || f == nil {
		return nil
	}
	crowd := availableSelector(0).Select(f.Troops(), target.Pos)
	if len(crowd) == 0 {
		return nil
	}
	b.cmd.ForceState(crowd, model.Guard)
	b.cmd.TargetBuilding(crowd, target)
	slog.Debug("guard ordered", "faction", b.self, "building", target.ID, "troops", len(crowd))
	return nil
}

// Attack carries out whichever of the three attacks scored highest.
func (b *Brain) Attack() error {
	b.ensureAttack()
	s := &b.scratch
	switch {
	case s.AttackCastle >= s.AttackTile && s.AttackCastle >= s.AttackTroop:
		return b.AttackCastle()
	case s.AttackTile >= s.AttackTroop:
		return b.AttackTile()
	default:
		return b.AttackTroop()
	}
}

func (b *Brain) AttackCastle() error {
	b.ensureAttack()
	target := b.scratch.CastleTarget
	if target == nil {
		return nil
	}
	crowd := b.attackers(target.Pos, 0)
	if len(crowd) == 0 {
		return nil
	}
	b.cmd.ForceState(crowd, model.Attack)
	b.cmd.TargetBuilding(crowd, target)
	slog.Debug("castle attack ordered", "faction", b.self, "building", target.ID, "troops", len(crowd))
	return nil
}

func (b *Brain) AttackTile() error {
	b.ensureAttack()
	target := b.scratch.TileTarget
	if target == nil {
		return nil
	}
	dest := b.world.Map().TileCenter(target.Coord)
	crowd := b.attackers(dest, 0)
	if len(crowd) == 0 {
		return nil
	}
	b.cmd.ForceState(crowd, model.Attack)
	b.cmd.NavigateTo(crowd, dest)
	slog.Debug("tile attack ordered", "faction", b.self, "tile", target.Coord, "troops", len(crowd))
	return nil
}

func (b *Brain) AttackTroop() error {
	b.ensureAttack()
	target := b.scratch.TroopTarget
	if target == nil {
		return nil
	}
	crowd := b.attackers(target.Pos, b.tuning.AttackTroopCap)
	if len(crowd) == 0 {
		return nil
	}
	b.cmd.ForceState(crowd, model.Attack)
	b.cmd.TargetTroop(crowd, target)
	slog.Debug("troop attack ordered", "faction", b.self, "troop", target.ID, "troops", len(crowd))
	return nil
}

func (b *Brain) attackers(near model.Vec2, limit int) []*model.Troop {
	f := b.faction()
	if f == nil {
		return nil
	}
	return availableSelector(limit).Select(f.Troops(), near)
}
