package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/Vynokris/RTS-AI/model"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Cols           int     `yaml:"cols" json:"cols"`
	Rows           int     `yaml:"rows" json:"rows"`
	TileSize       float64 `yaml:"tileSize" json:"tileSize"`
	Seed           int64   `yaml:"seed" json:"seed"` // 0 = random
	Octaves        int     `yaml:"octaves" json:"octaves"`
	Frequency      float64 `yaml:"frequency" json:"frequency"`
	WaterLevel     float64 `yaml:"waterLevel" json:"waterLevel"`
	SandLevel      float64 `yaml:"sandLevel" json:"sandLevel"`
	StoneLevel     float64 `yaml:"stoneLevel" json:"stoneLevel"`
	ResourceChance float64 `yaml:"resourceChance" json:"resourceChance"`
}

// DefaultGenConfig is a 64x40 map with a little water and scattered resources.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Cols:           64,
		Rows:           40,
		TileSize:       1,
		Octaves:        3,
		Frequency:      0.07,
		WaterLevel:     0.3,
		SandLevel:      0.36,
		StoneLevel:     0.7,
		ResourceChance: 0.08,
	}
}

// Terrain is a generated map plus its natural resources and spawn tiles.
type Terrain struct {
	Map       *model.TileMap
	Resources []model.TileCoord
	Spawns    []model.TileCoord
}

// Generate builds a tile map from layered simplex noise and picks one spawn
// tile per faction, kept a quarter of the map diagonal apart when possible.
func Generate(cfg GenConfig, factions int) (*Terrain, error) {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		return nil, fmt.Errorf("generate: map size %dx%d", cfg.Cols, cfg.Rows)
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = 1
	}
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	elevNoise := opensimplex.NewNormalized(seed)
	rng := rand.New(rand.NewSource(seed))

	m := model.NewTileMap(cfg.Cols, cfg.Rows, cfg.TileSize)
	t := &Terrain{Map: m}
	for row := 0; row < cfg.Rows; row++ {
		for col := 0; col < cfg.Cols; col++ {
			tile := m.At(col, row)
			elev := octaveNoise(elevNoise, float64(col), float64(row), cfg.Octaves, cfg.Frequency, 0.5)
			tile.Type = deriveTile(elev, cfg)
			tile.Resource = pickResource(tile.Type, cfg.ResourceChance, rng)
			if tile.Resource != model.NoResource {
				t.Resources = append(t.Resources, tile.Coord)
			}
		}
	}

	spawns, err := pickSpawns(m, factions, rng)
	if err != nil {
		return nil, err
	}
	t.Spawns = spawns
	return t, nil
}

func deriveTile(elev float64, cfg GenConfig) model.TileType {
	switch {
	case elev < cfg.WaterLevel:
		return model.Water
	case elev < cfg.SandLevel:
		return model.Sand
	case elev > cfg.StoneLevel:
		return model.Stone
	}
	return model.Grass
}

// pickResource places lumber and some ore on grass, ore on stone.
func pickResource(tt model.TileType, chance float64, rng *rand.Rand) model.ResourceType {
	if rng.Float64() >= chance {
		return model.NoResource
	}
	switch tt {
	case model.Grass:
		if rng.Intn(3) == 0 {
			return model.Ore
		}
		return model.Lumber
	case model.Stone:
		return model.Ore
	}
	return model.NoResource
}

func pickSpawns(m *model.TileMap, n int, rng *rand.Rand) ([]model.TileCoord, error) {
	var land []model.TileCoord
	for i := range m.Tiles {
		tile := &m.Tiles[i]
		if tile.Type != model.Water && tile.Resource == model.NoResource {
			land = append(land, tile.Coord)
		}
	}
	if len(land) < n {
		return nil, fmt.Errorf("generate: %d land tiles for %d spawns", len(land), n)
	}

	minDist := math.Hypot(float64(m.Cols), float64(m.Rows)) / 4
	var spawns []model.TileCoord
	for len(spawns) < n {
		placed := false
		for attempt := 0; attempt < 200; attempt++ {
			c := land[rng.Intn(len(land))]
			if farFrom(c, spawns, minDist) {
				spawns = append(spawns, c)
				placed = true
				break
			}
		}
		if !placed {
			minDist /= 2
		}
	}
	return spawns, nil
}

func farFrom(c model.TileCoord, others []model.TileCoord, d float64) bool {
	for _, o := range others {
		if math.Hypot(float64(c.Col-o.Col), float64(c.Row-o.Row)) < d {
			return false
		}
	}
	return true
}

// octaveNoise layers frequencies for fractal noise normalized to [0,1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
