package strategy

import (
	"math/rand"

	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
)

const (
	self  model.FactionID = 1
	rival model.FactionID = 0
)

type fakeFaction struct {
	id        model.FactionID
	stock     model.Stock
	tiles     []*model.Tile
	buildings []*model.Building
	troops    []*model.Troop
	spawn     model.TileCoord
}

func (f *fakeFaction) ID() model.FactionID          { return f.id }
func (f *fakeFaction) Stock() model.Stock           { return f.stock }
func (f *fakeFaction) OwnedTiles() []*model.Tile    { return f.tiles }
func (f *fakeFaction) Buildings() []*model.Building { return f.buildings }
func (f *fakeFaction) Troops() []*model.Troop       { return f.troops }
func (f *fakeFaction) SpawnTile() model.TileCoord   { return f.spawn }

type fakeWorld struct {
	factions  map[model.FactionID]*fakeFaction
	m         *model.TileMap
	resources []model.TileCoord
	costs     model.CostTable
	nextID    model.BuildingID

	trainBudget int
	trained     []model.TroopType
	repaired    []model.BuildingID
	rejected    map[model.TileCoord]bool
}

func newFakeWorld() *fakeWorld {
	w := &fakeWorld{
		factions: map[model.FactionID]*fakeFaction{
			self:  {id: self, spawn: model.TileCoord{Col: 2, Row: 2}},
			rival: {id: rival, spawn: model.TileCoord{Col: 17, Row: 17}},
		},
		m:        model.NewTileMap(20, 20, 1),
		costs:    model.DefaultCosts(),
		nextID:   100,
		rejected: map[model.TileCoord]bool{},
	}
	w.own(self, w.factions[self].spawn)
	w.own(rival, w.factions[rival].spawn)
	return w
}

func (w *fakeWorld) Faction(id model.FactionID) Faction {
	if f, ok := w.factions[id]; ok {
		return f
	}
	return nil
}
func (w *fakeWorld) Map() *model.TileMap                 { return w.m }
func (w *fakeWorld) NaturalResources() []model.TileCoord { return w.resources }
func (w *fakeWorld) Costs() model.CostTable              { return w.costs }

func (w *fakeWorld) own(f model.FactionID, c model.TileCoord) *model.Tile {
	tile := w.m.AtCoord(c)
	tile.Owner = f
	ff := w.factions[f]
	ff.tiles = append(ff.tiles, tile)
	return tile
}

func (w *fakeWorld) addResource(c model.TileCoord, r model.ResourceType) {
	w.m.AtCoord(c).Resource = r
	w.resources = append(w.resources, c)
}

func (w *fakeWorld) addBuilding(f model.FactionID, t model.BuildingType, c model.TileCoord) *model.Building {
	w.nextID++
	tile := w.m.AtCoord(c)
	if tile.Owner != f {
		w.own(f, c)
	}
	bld := &model.Building{ID: w.nextID, Type: t, Owner: f, Tile: c, Pos: w.m.TileCenter(c), Health: 100, MaxHealth: 100}
	tile.Building = bld.ID
	w.factions[f].buildings = append(w.factions[f].buildings, bld)
	return bld
}

func (w *fakeWorld) addTroop(f model.FactionID, pos model.Vec2, state model.TroopState) *model.Troop {
	ff := w.factions[f]
	tr := &model.Troop{ID: model.TroopID(len(ff.troops) + 1000*int(f)), Owner: f, Pos: pos, State: state, Health: 10}
	ff.troops = append(ff.troops, tr)
	return tr
}

func (w *fakeWorld) Construct(f model.FactionID, t model.BuildingType, at model.TileCoord) (*model.Building, error) {
	ff := w.factions[f]
	if ff == nil {
		return nil, model.ErrUnknownFaction
	}
	tile := w.m.AtCoord(at)
	if tile == nil || !tile.Buildable() || w.rejected[at] {
		return nil, model.ErrTileRejected
	}
	if !ff.stock.TryDebit(w.costs.Building(t)) {
		return nil, model.ErrInsufficientStock
	}
	return w.addBuilding(f, t, at), nil
}

func (w *fakeWorld) Repair(f model.FactionID, id model.BuildingID) error {
	w.repaired = append(w.repaired, id)
	return nil
}

func (w *fakeWorld) Train(f model.FactionID, barracks model.BuildingID, t model.TroopType) error {
	if w.trainBudget <= 0 {
		return model.ErrInsufficientStock
	}
	w.trainBudget--
	w.trained = append(w.trained, t)
	return nil
}

type order struct {
	kind   string
	troops int
	state  model.TroopState
	target any
}

type fakeCommander struct {
	orders []order
}

func (c *fakeCommander) NavigateTo(troops []*model.Troop, dest model.Vec2) {
	c.orders = append(c.orders, order{kind: "navigate", troops: len(troops), target: dest})
}
func (c *fakeCommander) TargetTroop(troops []*model.Troop, target *model.Troop) {
	c.orders = append(c.orders, order{kind: "target-troop", troops: len(troops), target: target.ID})
}
func (c *fakeCommander) TargetBuilding(troops []*model.Troop, target *model.Building) {
	c.orders = append(c.orders, order{kind: "target-building", troops: len(troops), target: target.ID})
}
func (c *fakeCommander) ForceState(troops []*model.Troop, s model.TroopState) {
	for _, t := range troops {
		t.State = s
	}
	c.orders = append(c.orders, order{kind: "state", troops: len(troops), state: s})
}

// stubInfluence counts queries and answers through fn (0 when nil).
type stubInfluence struct {
	calls int
	fn    func(pos model.Vec2, f model.FactionID, c influence.Category) float64
}

func (s *stubInfluence) Query(pos model.Vec2, f model.FactionID, c influence.Category) float64 {
	s.calls++
	if s.fn == nil {
		return 0
	}
	return s.fn(pos, f, c)
}

func testTuning() Tuning {
	t := DefaultTuning()
	t.InfluenceGain = 1
	return t
}

func newTestBrain(w *fakeWorld, infl Influence) (*Brain, *fakeCommander) {
	cmd := &fakeCommander{}
	b := NewBrain(self, w, cmd, infl, testTuning(), rand.New(rand.NewSource(5)))
	b.SetRival(rival)
	return b, cmd
}
