package world

import "github.com/Vynokris/RTS-AI/model"

// Faction is one side's economy, territory and army.
type Faction struct {
	id        model.FactionID
	stock     model.Stock
	spawn     model.TileCoord
	tiles     []*model.Tile
	buildings []*model.Building
	troops    []*model.Troop
}

func (f *Faction) ID() model.FactionID          { return f.id }
func (f *Faction) Stock() model.Stock           { return f.stock }
func (f *Faction) OwnedTiles() []*model.Tile    { return f.tiles }
func (f *Faction) Buildings() []*model.Building { return f.buildings }
func (f *Faction) Troops() []*model.Troop       { return f.troops }
func (f *Faction) SpawnTile() model.TileCoord   { return f.spawn }

// Credit adds resources to the stock.
func (f *Faction) Credit(s model.Stock) {
	f.stock.Crops += s.Crops
	f.stock.Lumber += s.Lumber
	f.stock.Stone += s.Stone
}

// Count returns how many buildings of type t the faction owns.
func (f *Faction) Count(t model.BuildingType) int {
	n := 0
	for _, b := range f.buildings {
		if b.Type == t {
			n++
		}
	}
	return n
}

func (f *Faction) dropTile(tile *model.Tile) {
	for i, t := range f.tiles {
		if t == tile {
			last := len(f.tiles) - 1
			f.tiles[i] = f.tiles[last]
			f.tiles[last] = nil
			f.tiles = f.tiles[:last]
			return
		}
	}
}
