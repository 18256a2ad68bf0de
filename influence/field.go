// Package influence keeps per-category rasters of faction presence over the
// map. Writers patch a sparse raw buffer; every patch re-diffuses the
// category so that queries always read a fully blurred field.
package influence

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Vynokris/RTS-AI/model"
)

// Category selects one of the influence rasters.
type Category int

const (
	Resources Category = iota
	Buildings
	Troops
	numCategories
)

func (c Category) String() string {
	switch c {
	case Resources:
		return "resources"
	case Buildings:
		return "buildings"
	case Troops:
		return "troops"
	}
	return "unknown"
}

// Categories lists every raster, in storage order.
var Categories = []Category{Resources, Buildings, Troops}

// Config sizes a field. Resolution is the number of cells across the map
// width. Point writes own a whole cell, so it should be at least the tile
// count across the map.
type Config struct {
	Extent      model.Vec2
	Resolution  int
	TroopWeight float64 // raw value each troop adds to its cell before clamping
}

// Field holds the raw and diffused rasters of every category. One channel per
// faction slot, then the unclaimed channel, then the shared presence channel.
type Field struct {
	cols, rows   int
	cellW, cellH float64
	slots        int
	chans        int
	troopWeight  float64

	slotOf   map[model.FactionID]int
	raw      [numCategories][]float64
	diffused [numCategories][]float64
	blur     Blurrer
}

// NewField allocates empty rasters sized to the map. factions assigns one
// channel slot per faction id, in order.
func NewField(cfg Config, factions []model.FactionID, blur Blurrer) (*Field, error) {
	if cfg.Extent.X <= 0 || cfg.Extent.Y <= 0 {
		return nil, fmt.Errorf("invalid map extent %v", cfg.Extent)
	}
	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("invalid resolution %d", cfg.Resolution)
	}
	if blur == nil {
		return nil, fmt.Errorf("nil blurrer")
	}
	cols := cfg.Resolution
	rows := int(math.Ceil(float64(cfg.Resolution) * cfg.Extent.Y / cfg.Extent.X))
	if rows < 1 {
		rows = 1
	}
	if cfg.TroopWeight <= 0 {
		cfg.TroopWeight = 0.25
	}

	f := &Field{
		cols:        cols,
		rows:        rows,
		cellW:       cfg.Extent.X / float64(cols),
		cellH:       cfg.Extent.Y / float64(rows),
		slots:       len(factions),
		chans:       len(factions) + 2,
		troopWeight: cfg.TroopWeight,
		slotOf:      make(map[model.FactionID]int, len(factions)),
		blur:        blur,
	}
	for i, id := range factions {
		if _, dup := f.slotOf[id]; dup {
			return nil, fmt.Errorf("duplicate faction %v", id)
		}
		if id == model.Neutral {
			return nil, fmt.Errorf("neutral cannot own a channel")
		}
		f.slotOf[id] = i
	}
	for _, c := range Categories {
		f.raw[c] = make([]float64, cols*rows*f.chans)
		f.diffused[c] = make([]float64, cols*rows*f.chans)
	}
	slog.Info("influence field allocated", "cols", cols, "rows", rows, "slots", f.slots)
	return f, nil
}

// Dims returns the raster size in cells.
func (f *Field) Dims() (cols, rows int) { return f.cols, f.rows }

// CellSize returns the world-space size of one cell.
func (f *Field) CellSize() model.Vec2 { return model.Vec2{X: f.cellW, Y: f.cellH} }

// cell maps a world position to the containing cell, clamped to the raster.
func (f *Field) cell(pos model.Vec2) int {
	col := int(math.Floor(pos.X / f.cellW))
	row := int(math.Floor(pos.Y / f.cellH))
	col = max(0, min(col, f.cols-1))
	row = max(0, min(row, f.rows-1))
	return row*f.cols + col
}

func (f *Field) unclaimed() int { return f.slots }
func (f *Field) presence() int  { return f.slots + 1 }

// Query reads the diffused raster of a category at the cell under pos. For
// model.Neutral, Resources returns the unclaimed share and the other
// categories return the mean over all faction channels. Unknown factions read 0.
func (f *Field) Query(pos model.Vec2, faction model.FactionID, cat Category) float64 {
	if cat < 0 || cat >= numCategories {
		return 0
	}
	base := f.cell(pos) * f.chans
	buf := f.diffused[cat]
	if faction == model.Neutral {
		if cat == Resources {
			return clamp01(buf[base+f.unclaimed()])
		}
		if f.slots == 0 {
			return 0
		}
		sum := 0.0
		for s := 0; s < f.slots; s++ {
			sum += buf[base+s]
		}
		return clamp01(sum / float64(f.slots))
	}
	slot, ok := f.slotOf[faction]
	if !ok {
		return 0
	}
	return clamp01(buf[base+slot])
}

// Presence reads the shared validity channel of a category.
func (f *Field) Presence(pos model.Vec2, cat Category) float64 {
	if cat < 0 || cat >= numCategories {
		return 0
	}
	return clamp01(f.diffused[cat][f.cell(pos)*f.chans+f.presence()])
}

// Snapshot copies one diffused channel as a cols*rows row-major slice.
// model.Neutral selects the unclaimed channel.
func (f *Field) Snapshot(cat Category, faction model.FactionID) []float64 {
	ch := f.unclaimed()
	if faction != model.Neutral {
		slot, ok := f.slotOf[faction]
		if !ok {
			return nil
		}
		ch = slot
	}
	out := make([]float64, f.cols*f.rows)
	buf := f.diffused[cat]
	for i := range out {
		out[i] = buf[i*f.chans+ch]
	}
	return out
}

// Batch applies many point writes and diffuses each touched category once.
func (f *Field) Batch(fn func(w *Writer)) {
	w := &Writer{f: f}
	fn(w)
	for _, c := range Categories {
		if w.touched[c] {
			f.diffuse(c)
		}
	}
}

func (f *Field) diffuse(c Category) {
	f.blur.Blur(f.diffused[c], f.raw[c], f.cols, f.rows, f.chans)
}

// SeedResources marks every natural-resource position as unclaimed.
func (f *Field) SeedResources(positions []model.Vec2) {
	f.Batch(func(w *Writer) {
		for _, p := range positions {
			w.seedResource(p)
		}
	})
	slog.Debug("resources seeded", "count", len(positions))
}

func (f *Field) WriteBuildingPresence(faction model.FactionID, pos model.Vec2) {
	f.Batch(func(w *Writer) { w.WriteBuildingPresence(faction, pos) })
}

func (f *Field) RemoveBuildingPresence(pos model.Vec2) {
	f.Batch(func(w *Writer) { w.RemoveBuildingPresence(pos) })
}

func (f *Field) ClaimResource(faction model.FactionID, pos model.Vec2) {
	f.Batch(func(w *Writer) { w.ClaimResource(faction, pos) })
}

func (f *Field) UnclaimResource(pos model.Vec2) {
	f.Batch(func(w *Writer) { w.UnclaimResource(pos) })
}

// RebuildTroopPresence clears the Troops raster and scatters every live
// troop position into its faction's channel, then diffuses once.
func (f *Field) RebuildTroopPresence(positions map[model.FactionID][]model.Vec2) {
	f.Batch(func(w *Writer) {
		clear(f.raw[Troops])
		w.touched[Troops] = true
		for faction, list := range positions {
			for _, p := range list {
				w.AddTroop(faction, p)
			}
		}
	})
}

// Writer performs raw point writes inside Batch. Diffusion is deferred
// until the batch returns.
type Writer struct {
	f       *Field
	touched [numCategories]bool
}

func (w *Writer) set(cat Category, pos model.Vec2, ch int, v float64) {
	w.f.raw[cat][w.f.cell(pos)*w.f.chans+ch] = clamp01(v)
	w.touched[cat] = true
}

func (w *Writer) WriteBuildingPresence(faction model.FactionID, pos model.Vec2) {
	slot, ok := w.f.slotOf[faction]
	if !ok {
		return
	}
	w.set(Buildings, pos, slot, 1)
	w.set(Buildings, pos, w.f.presence(), 1)
}

func (w *Writer) RemoveBuildingPresence(pos model.Vec2) {
	base := w.f.cell(pos) * w.f.chans
	clear(w.f.raw[Buildings][base : base+w.f.chans])
	w.touched[Buildings] = true
}

func (w *Writer) ClaimResource(faction model.FactionID, pos model.Vec2) {
	slot, ok := w.f.slotOf[faction]
	if !ok {
		return
	}
	w.set(Resources, pos, w.f.unclaimed(), 0)
	w.set(Resources, pos, slot, 1)
	w.set(Resources, pos, w.f.presence(), 1)
}

// UnclaimResource returns a claimed resource cell to the unclaimed channel.
// Cells that were never seeded hold no resource and are left alone.
func (w *Writer) UnclaimResource(pos model.Vec2) {
	if w.f.raw[Resources][w.f.cell(pos)*w.f.chans+w.f.presence()] == 0 {
		return
	}
	w.seedResource(pos)
}

func (w *Writer) seedResource(pos model.Vec2) {
	base := w.f.cell(pos) * w.f.chans
	clear(w.f.raw[Resources][base : base+w.f.slots])
	w.set(Resources, pos, w.f.unclaimed(), 1)
	w.set(Resources, pos, w.f.presence(), 1)
}

// AddTroop accumulates one troop into its faction channel, saturating at 1.
func (w *Writer) AddTroop(faction model.FactionID, pos model.Vec2) {
	slot, ok := w.f.slotOf[faction]
	if !ok {
		return
	}
	i := w.f.cell(pos)*w.f.chans + slot
	w.set(Troops, pos, slot, w.f.raw[Troops][i]+w.f.troopWeight)
	w.set(Troops, pos, w.f.presence(), 1)
}
