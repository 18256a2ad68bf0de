package world

import (
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
)

// paint collects influence writes so one simulation step diffuses each
// touched raster once.
type paint []func(wr *influence.Writer)

func (p *paint) add(op func(wr *influence.Writer)) { *p = append(*p, op) }

func (w *World) flush(p paint) {
	if w.field == nil || len(p) == 0 {
		return
	}
	w.field.Batch(func(wr *influence.Writer) {
		for _, op := range p {
			op(wr)
		}
	})
}

// take hands tile to f, removing it from any previous owner.
func (w *World) take(p *paint, f *Faction, tile *model.Tile) {
	if tile.Owner == f.id {
		return
	}
	if prev := w.factions[tile.Owner]; prev != nil {
		prev.dropTile(tile)
	}
	tile.Owner = f.id
	f.tiles = append(f.tiles, tile)
	if tile.Resource != model.NoResource {
		owner, pos := f.id, w.m.TileCenter(tile.Coord)
		p.add(func(wr *influence.Writer) { wr.ClaimResource(owner, pos) })
	}
}

// release returns tile to neutral.
func (w *World) release(p *paint, tile *model.Tile) {
	if prev := w.factions[tile.Owner]; prev != nil {
		prev.dropTile(tile)
	}
	tile.Owner = model.Neutral
	if tile.Resource != model.NoResource {
		pos := w.m.TileCenter(tile.Coord)
		p.add(func(wr *influence.Writer) { wr.UnclaimResource(pos) })
	}
}

// claimAround takes the unowned land tiles within radius of center.
func (w *World) claimAround(p *paint, f *Faction, center model.TileCoord, radius int) {
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			tile := w.m.At(center.Col+dc, center.Row+dr)
			if tile == nil || tile.Type == model.Water || tile.Owner != model.Neutral {
				continue
			}
			w.take(p, f, tile)
		}
	}
}

// conquer transfers an enemy tile without a building to the troop's owner.
func (w *World) conquer(p *paint, t *model.Troop) {
	tile := w.m.AtWorldPos(t.Pos)
	if tile == nil || tile.Building != 0 || tile.Owner == t.Owner || tile.Owner == model.Neutral {
		return
	}
	if f := w.factions[t.Owner]; f != nil {
		w.take(p, f, tile)
	}
}
