package model

import "math"

// TileType classifies a map tile. Buildings can only be placed on Grass,
// Sand and Stone; Water is never buildable.
type TileType byte

const (
	Grass TileType = 0
	Sand  TileType = 1
	Water TileType = 2
	Stone TileType = 3
)

func (t TileType) String() string {
	switch t {
	case Grass:
		return "grass"
	case Sand:
		return "sand"
	case Water:
		return "water"
	case Stone:
		return "stone"
	}
	return "unknown"
}

// TileCoord addresses a tile by grid column and row.
type TileCoord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Tile is one square of the map. Owner is Neutral until a faction takes it.
type Tile struct {
	Coord    TileCoord    `json:"coord"`
	Type     TileType     `json:"type"`
	Resource ResourceType `json:"resource"` // natural resource, NoResource if none
	Owner    FactionID    `json:"owner"`
	Building BuildingID   `json:"building"` // 0 when empty
}

// Buildable reports whether a building may be placed on the tile.
func (t *Tile) Buildable() bool {
	return t.Type != Water && t.Building == 0
}

// TileMap is a row-major grid of square tiles. Each tile covers
// TileSize x TileSize world units; tile (0,0) starts at the world origin.
type TileMap struct {
	Cols     int     `json:"cols"`
	Rows     int     `json:"rows"`
	TileSize float64 `json:"tileSize"`
	Tiles    []Tile  `json:"tiles"` // row-major: Tiles[row*Cols + col]
}

// NewTileMap allocates an all-grass, unowned map.
func NewTileMap(cols, rows int, tileSize float64) *TileMap {
	m := &TileMap{Cols: cols, Rows: rows, TileSize: tileSize, Tiles: make([]Tile, cols*rows)}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			m.Tiles[row*cols+col] = Tile{Coord: TileCoord{Col: col, Row: row}, Owner: Neutral}
		}
	}
	return m
}

// At returns the tile at grid coordinates (col, row), or nil when out of bounds.
func (m *TileMap) At(col, row int) *Tile {
	if col < 0 || col >= m.Cols || row < 0 || row >= m.Rows {
		return nil
	}
	return &m.Tiles[row*m.Cols+col]
}

// AtCoord is At for a TileCoord.
func (m *TileMap) AtCoord(c TileCoord) *Tile { return m.At(c.Col, c.Row) }

// CoordOf converts a world position to the tile containing it, clamped to the map.
func (m *TileMap) CoordOf(p Vec2) TileCoord {
	if m.TileSize <= 0 || m.Cols == 0 || m.Rows == 0 {
		return TileCoord{}
	}
	col := int(math.Floor(p.X / m.TileSize))
	row := int(math.Floor(p.Y / m.TileSize))
	return TileCoord{Col: clampInt(col, 0, m.Cols-1), Row: clampInt(row, 0, m.Rows-1)}
}

// AtWorldPos returns the tile under a world position, clamping to the map edge.
func (m *TileMap) AtWorldPos(p Vec2) *Tile {
	return m.AtCoord(m.CoordOf(p))
}

// TileCenter returns the world position of the center of a tile.
func (m *TileMap) TileCenter(c TileCoord) Vec2 {
	return Vec2{
		X: (float64(c.Col) + 0.5) * m.TileSize,
		Y: (float64(c.Row) + 0.5) * m.TileSize,
	}
}

// Extent is the world-space size of the whole map.
func (m *TileMap) Extent() Vec2 {
	return Vec2{X: float64(m.Cols) * m.TileSize, Y: float64(m.Rows) * m.TileSize}
}

// HasWater returns true if any tile is Water.
func (m *TileMap) HasWater() bool {
	for _, t := range m.Tiles {
		if t.Type == Water {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
