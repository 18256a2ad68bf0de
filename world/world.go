// Package world is a headless simulation of the castle RTS: tile ownership,
// resource production, training queues, repairs, troop movement and combat.
// It implements the strategy collaborators and mirrors ownership changes
// into an influence field.
package world

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/strategy"
)

// TroopStats are the per-type combat figures. Damage is per second.
type TroopStats struct {
	Health float64 `yaml:"health" json:"health"`
	Speed  float64 `yaml:"speed" json:"speed"`
	Damage float64 `yaml:"damage" json:"damage"`
	Range  float64 `yaml:"range" json:"range"`
}

func DefaultTroopStats() map[model.TroopType]TroopStats {
	return map[model.TroopType]TroopStats{
		model.Knight:   {Health: 30, Speed: 1.5, Damage: 4, Range: 0.8},
		model.Archer:   {Health: 20, Speed: 1.5, Damage: 3, Range: 3},
		model.Cavalier: {Health: 35, Speed: 3, Damage: 5, Range: 0.8},
		model.Golem:    {Health: 80, Speed: 0.8, Damage: 8, Range: 1},
	}
}

// Config holds the simulation rules.
type Config struct {
	Costs          model.CostTable                `yaml:"costs" json:"costs"`
	Troops         map[model.TroopType]TroopStats `yaml:"troops" json:"troops"`
	StartStock     model.Stock                    `yaml:"startStock" json:"startStock"`
	ProductionRate float64                        `yaml:"productionRate" json:"productionRate"` // per building per second
	TrainTime      time.Duration                  `yaml:"trainTime" json:"trainTime"`
	RepairTime     time.Duration                  `yaml:"repairTime" json:"repairTime"`
	QueueLimit     int                            `yaml:"queueLimit" json:"queueLimit"`
	BuildingHealth float64                        `yaml:"buildingHealth" json:"buildingHealth"`
	SightRadius    float64                        `yaml:"sightRadius" json:"sightRadius"`
	CastleClaim    int                            `yaml:"castleClaim" json:"castleClaim"`
	BuildingClaim  int                            `yaml:"buildingClaim" json:"buildingClaim"`
}

func DefaultConfig() Config {
	return Config{
		Costs:          model.DefaultCosts(),
		Troops:         DefaultTroopStats(),
		StartStock:     model.Stock{Crops: 10, Lumber: 10, Stone: 10},
		ProductionRate: 0.2,
		TrainTime:      5 * time.Second,
		RepairTime:     2 * time.Second,
		QueueLimit:     5,
		BuildingHealth: 100,
		SightRadius:    3,
		CastleClaim:    2,
		BuildingClaim:  1,
	}
}

type trainQueue struct {
	items []model.TroopType
	timer time.Duration
}

// World is the whole simulation state. It is not safe for concurrent use;
// the runner steps it and every agent on one goroutine.
type World struct {
	cfg       Config
	m         *model.TileMap
	resources []model.TileCoord
	field     *influence.Field

	order     []model.FactionID
	factions  map[model.FactionID]*Faction
	buildings map[model.BuildingID]*model.Building
	troops    map[model.TroopID]*model.Troop
	queues    map[model.BuildingID]*trainQueue

	nextBuilding model.BuildingID
	nextTroop    model.TroopID
	started      bool
	clock        time.Duration
}

// New populates terrain with one faction per spawn tile. Each faction starts
// with a castle on its spawn, 3 knights and 3 archers. field may be nil.
func New(cfg Config, t *Terrain, ids []model.FactionID, field *influence.Field) (*World, error) {
	if t == nil || t.Map == nil {
		return nil, fmt.Errorf("world: no terrain")
	}
	if len(ids) == 0 || len(ids) > len(t.Spawns) {
		return nil, fmt.Errorf("world: %d factions for %d spawn tiles", len(ids), len(t.Spawns))
	}
	if cfg.Costs.Buildings == nil || cfg.Costs.Troops == nil {
		cfg.Costs = model.DefaultCosts()
	}
	if cfg.Troops == nil {
		cfg.Troops = DefaultTroopStats()
	}
	if field != nil {
		if cols, rows := field.Dims(); cols < t.Map.Cols || rows < t.Map.Rows {
			return nil, fmt.Errorf("world: influence raster %dx%d is coarser than the %dx%d map", cols, rows, t.Map.Cols, t.Map.Rows)
		}
	}
	w := &World{
		cfg:       cfg,
		m:         t.Map,
		resources: t.Resources,
		field:     field,
		factions:  make(map[model.FactionID]*Faction, len(ids)),
		buildings: make(map[model.BuildingID]*model.Building),
		troops:    make(map[model.TroopID]*model.Troop),
		queues:    make(map[model.BuildingID]*trainQueue),
	}

	if field != nil {
		pos := make([]model.Vec2, len(t.Resources))
		for i, c := range t.Resources {
			pos[i] = w.m.TileCenter(c)
		}
		field.SeedResources(pos)
	}

	var p paint
	for i, id := range ids {
		if _, dup := w.factions[id]; dup {
			return nil, fmt.Errorf("world: duplicate faction %s", id)
		}
		f := &Faction{id: id, stock: cfg.StartStock, spawn: t.Spawns[i]}
		w.factions[id] = f
		w.order = append(w.order, id)

		spawn := w.m.AtCoord(f.spawn)
		w.take(&p, f, spawn)
		w.addBuilding(&p, f, model.Castle, spawn)
		center := w.m.TileCenter(f.spawn)
		for n := 0; n < 3; n++ {
			w.spawnTroop(f, model.Knight, center)
			w.spawnTroop(f, model.Archer, center)
		}
	}
	w.flush(p)

	slog.Info("world ready",
		"cols", w.m.Cols,
		"rows", w.m.Rows,
		"factions", len(ids),
		"resources", len(t.Resources),
	)
	return w, nil
}

// Faction returns the faction view, or nil when id is unknown.
func (w *World) Faction(id model.FactionID) strategy.Faction {
	if f, ok := w.factions[id]; ok {
		return f
	}
	return nil
}

// FactionState is the concrete faction, or nil when id is unknown.
func (w *World) FactionState(id model.FactionID) *Faction { return w.factions[id] }

func (w *World) Factions() []model.FactionID         { return w.order }
func (w *World) Map() *model.TileMap                 { return w.m }
func (w *World) NaturalResources() []model.TileCoord { return w.resources }
func (w *World) Costs() model.CostTable              { return w.cfg.Costs }
func (w *World) Clock() time.Duration                { return w.clock }
func (w *World) Troop(id model.TroopID) *model.Troop { return w.troops[id] }

func (w *World) Building(id model.BuildingID) *model.Building { return w.buildings[id] }

// Rival reports the faction opposing self. Nothing is assigned until the
// world has been stepped once.
func (w *World) Rival(self model.FactionID) (model.FactionID, bool) {
	if !w.started {
		return model.Neutral, false
	}
	fallback, found := model.Neutral, false
	for _, id := range w.order {
		if id == self {
			continue
		}
		if !w.Defeated(id) {
			return id, true
		}
		if !found {
			fallback, found = id, true
		}
	}
	return fallback, found
}

// RivalSource adapts Rival for a decision loop.
func (w *World) RivalSource(self model.FactionID) func() (model.FactionID, bool) {
	return func() (model.FactionID, bool) { return w.Rival(self) }
}

// Defeated reports whether a faction has neither buildings nor troops.
func (w *World) Defeated(id model.FactionID) bool {
	f := w.factions[id]
	return f == nil || (len(f.buildings) == 0 && len(f.troops) == 0)
}

// TroopPositions groups live troop positions by owner.
func (w *World) TroopPositions() map[model.FactionID][]model.Vec2 {
	out := make(map[model.FactionID][]model.Vec2, len(w.order))
	for _, id := range w.order {
		f := w.factions[id]
		list := make([]model.Vec2, len(f.troops))
		for i, t := range f.troops {
			list[i] = t.Pos
		}
		out[id] = list
	}
	return out
}

// Construct places a building for faction f, paying its cost. Harvesting
// buildings need a matching resource tile; others need a bare one.
func (w *World) Construct(fid model.FactionID, t model.BuildingType, at model.TileCoord) (*model.Building, error) {
	f := w.factions[fid]
	if f == nil {
		return nil, fmt.Errorf("construct: faction %s: %w", fid, model.ErrUnknownFaction)
	}
	tile := w.m.AtCoord(at)
	if tile == nil || !tile.Buildable() {
		return nil, fmt.Errorf("%w: %v not buildable", model.ErrTileRejected, at)
	}
	if tile.Owner != model.Neutral && tile.Owner != fid {
		return nil, fmt.Errorf("%w: %v owned by %s", model.ErrTileRejected, at, tile.Owner)
	}
	if want := t.Harvests(); tile.Resource != want {
		return nil, fmt.Errorf("%w: %s on %v needs resource %s", model.ErrTileRejected, t, at, want)
	}
	if !f.stock.TryDebit(w.cfg.Costs.Building(t)) {
		return nil, model.ErrInsufficientStock
	}

	var p paint
	w.take(&p, f, tile)
	b := w.addBuilding(&p, f, t, tile)
	w.flush(p)
	slog.Debug("building constructed", "faction", fid, "type", t, "tile", at, "id", b.ID)
	return b, nil
}

// Repair restores a damaged building to full health over the repair time.
func (w *World) Repair(fid model.FactionID, id model.BuildingID) error {
	b := w.buildings[id]
	if b == nil || b.Owner != fid {
		return fmt.Errorf("repair %d: %w", id, model.ErrUnknownBuilding)
	}
	if b.Health < b.MaxHealth {
		b.Repairing = true
	}
	return nil
}

// Train queues a troop at a barracks, paying its cost at enqueue.
func (w *World) Train(fid model.FactionID, barracks model.BuildingID, t model.TroopType) error {
	f := w.factions[fid]
	if f == nil {
		return fmt.Errorf("train: faction %s: %w", fid, model.ErrUnknownFaction)
	}
	b := w.buildings[barracks]
	if b == nil || b.Owner != fid || b.Type != model.Barracks {
		return fmt.Errorf("train at %d: %w", barracks, model.ErrUnknownBuilding)
	}
	q := w.queues[barracks]
	if q == nil {
		q = &trainQueue{}
		w.queues[barracks] = q
	}
	if w.cfg.QueueLimit > 0 && len(q.items) >= w.cfg.QueueLimit {
		return model.ErrQueueFull
	}
	if !f.stock.TryDebit(w.cfg.Costs.Troop(t)) {
		return model.ErrInsufficientStock
	}
	q.items = append(q.items, t)
	return nil
}

// Step advances the simulation by dt.
func (w *World) Step(dt time.Duration) {
	w.started = true
	w.clock += dt
	sec := dt.Seconds()

	var p paint
	for _, id := range w.order {
		f := w.factions[id]
		w.produce(f, sec)
		w.train(f, dt)
		w.repair(f, sec)
	}
	w.sense()
	for _, id := range w.order {
		for _, t := range w.factions[id].troops {
			w.act(&p, t, sec)
		}
	}
	w.reap(&p)
	w.flush(p)
}

func (w *World) produce(f *Faction, sec float64) {
	for _, b := range f.buildings {
		if r := b.Type.Produces(); r != model.NoResource {
			f.stock.Add(r, w.cfg.ProductionRate*sec)
		}
	}
}

func (w *World) train(f *Faction, dt time.Duration) {
	for _, b := range f.buildings {
		q := w.queues[b.ID]
		if q == nil || len(q.items) == 0 {
			continue
		}
		q.timer += dt
		if q.timer < w.cfg.TrainTime {
			continue
		}
		q.timer = 0
		t := q.items[0]
		q.items = q.items[1:]
		w.spawnTroop(f, t, b.Pos)
		slog.Debug("troop trained", "faction", f.id, "type", t, "barracks", b.ID, "queued", len(q.items))
	}
}

func (w *World) repair(f *Faction, sec float64) {
	rate := 1.0
	if w.cfg.RepairTime > 0 {
		rate = sec / w.cfg.RepairTime.Seconds()
	}
	for _, b := range f.buildings {
		if !b.Repairing {
			continue
		}
		b.Health += b.MaxHealth * rate
		if b.Health >= b.MaxHealth {
			b.Health = b.MaxHealth
			b.Repairing = false
		}
	}
}

func (w *World) addBuilding(p *paint, f *Faction, t model.BuildingType, tile *model.Tile) *model.Building {
	w.nextBuilding++
	b := &model.Building{
		ID:        w.nextBuilding,
		Type:      t,
		Owner:     f.id,
		Tile:      tile.Coord,
		Pos:       w.m.TileCenter(tile.Coord),
		Health:    w.cfg.BuildingHealth,
		MaxHealth: w.cfg.BuildingHealth,
	}
	tile.Building = b.ID
	f.buildings = append(f.buildings, b)
	w.buildings[b.ID] = b

	claim := w.cfg.BuildingClaim
	if t == model.Castle {
		claim = w.cfg.CastleClaim
	}
	w.claimAround(p, f, tile.Coord, claim)
	owner, pos := f.id, b.Pos
	p.add(func(wr *influence.Writer) { wr.WriteBuildingPresence(owner, pos) })
	return b
}

func (w *World) spawnTroop(f *Faction, t model.TroopType, at model.Vec2) *model.Troop {
	stats := w.cfg.Troops[t]
	w.nextTroop++
	// Fan new troops out on a golden-angle spiral so they do not stack.
	n := float64(len(f.troops))
	r := 0.3 * w.m.TileSize * math.Sqrt(n+1)
	pos := model.Vec2{X: at.X + r*math.Cos(n*2.39996), Y: at.Y + r*math.Sin(n*2.39996)}
	tr := &model.Troop{
		ID:     w.nextTroop,
		Type:   t,
		Owner:  f.id,
		Pos:    w.clampPos(pos),
		Health: stats.Health,
		Speed:  stats.Speed,
		State:  model.Idle,
	}
	f.troops = append(f.troops, tr)
	w.troops[tr.ID] = tr
	return tr
}

func (w *World) clampPos(p model.Vec2) model.Vec2 {
	ext := w.m.Extent()
	p.X = math.Max(0, math.Min(ext.X, p.X))
	p.Y = math.Max(0, math.Min(ext.Y, p.Y))
	return p
}

// reap removes dead troops and destroyed buildings.
func (w *World) reap(p *paint) {
	for _, id := range w.order {
		f := w.factions[id]
		alive := f.troops[:0]
		for _, t := range f.troops {
			if t.Health > 0 {
				alive = append(alive, t)
				continue
			}
			delete(w.troops, t.ID)
			slog.Debug("troop killed", "faction", id, "troop", t.ID, "type", t.Type)
		}
		clear(f.troops[len(alive):])
		f.troops = alive

		standing := f.buildings[:0]
		for _, b := range f.buildings {
			if b.Health > 0 {
				standing = append(standing, b)
				continue
			}
			w.destroy(p, f, b)
		}
		clear(f.buildings[len(standing):])
		f.buildings = standing
	}
}

func (w *World) destroy(p *paint, f *Faction, b *model.Building) {
	delete(w.buildings, b.ID)
	delete(w.queues, b.ID)
	if tile := w.m.AtCoord(b.Tile); tile != nil {
		tile.Building = 0
		w.release(p, tile)
	}
	pos := b.Pos
	p.add(func(wr *influence.Writer) { wr.RemoveBuildingPresence(pos) })
	slog.Info("building destroyed", "faction", f.id, "type", b.Type, "id", b.ID)
}
