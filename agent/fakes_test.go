package agent

import (
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/strategy"
)

const (
	human model.FactionID = 0
	ai    model.FactionID = 1
)

type stubFaction struct {
	id        model.FactionID
	stock     model.Stock
	tiles     []*model.Tile
	buildings []*model.Building
	troops    []*model.Troop
}

func (f *stubFaction) ID() model.FactionID          { return f.id }
func (f *stubFaction) Stock() model.Stock           { return f.stock }
func (f *stubFaction) OwnedTiles() []*model.Tile    { return f.tiles }
func (f *stubFaction) Buildings() []*model.Building { return f.buildings }
func (f *stubFaction) Troops() []*model.Troop       { return f.troops }
func (f *stubFaction) SpawnTile() model.TileCoord   { return model.TileCoord{Col: 2, Row: 2} }

// stubWorld accepts nothing; its factions are edited directly by tests.
type stubWorld struct {
	m        *model.TileMap
	factions map[model.FactionID]*stubFaction
}

func newStubWorld() *stubWorld {
	w := &stubWorld{
		m: model.NewTileMap(10, 10, 1),
		factions: map[model.FactionID]*stubFaction{
			human: {id: human},
			ai:    {id: ai},
		},
	}
	home := &model.Building{ID: 1, Type: model.Castle, Owner: ai, Pos: model.Vec2{X: 2.5, Y: 2.5}, Health: 100, MaxHealth: 100}
	w.factions[ai].buildings = append(w.factions[ai].buildings, home)
	return w
}

func (w *stubWorld) Faction(id model.FactionID) strategy.Faction {
	if f, ok := w.factions[id]; ok {
		return f
	}
	return nil
}
func (w *stubWorld) Map() *model.TileMap                 { return w.m }
func (w *stubWorld) NaturalResources() []model.TileCoord { return nil }
func (w *stubWorld) Costs() model.CostTable              { return model.DefaultCosts() }
func (w *stubWorld) Construct(model.FactionID, model.BuildingType, model.TileCoord) (*model.Building, error) {
	return nil, model.ErrInsufficientStock
}
func (w *stubWorld) Repair(model.FactionID, model.BuildingID) error { return nil }
func (w *stubWorld) Train(model.FactionID, model.BuildingID, model.TroopType) error {
	return model.ErrInsufficientStock
}

type nopCommander struct{}

func (nopCommander) NavigateTo([]*model.Troop, model.Vec2)          {}
func (nopCommander) TargetTroop([]*model.Troop, *model.Troop)       {}
func (nopCommander) TargetBuilding([]*model.Troop, *model.Building) {}
func (nopCommander) ForceState([]*model.Troop, model.TroopState)    {}

type countingInfluence struct {
	calls int
}

func (c *countingInfluence) Query(model.Vec2, model.FactionID, influence.Category) float64 {
	c.calls++
	return 0.1
}

// rivalAfter reports the human faction once n lookups have failed.
func rivalAfter(n int) RivalSource {
	return func() (model.FactionID, bool) {
		if n > 0 {
			n--
			return model.Neutral, false
		}
		return human, true
	}
}
