package model

import (
	"fmt"
	"math"
)

// FactionID identifies a faction. Neutral marks unowned tiles and the
// "nobody in particular" side of influence queries.
type FactionID uint32

const Neutral FactionID = math.MaxUint32

func (f FactionID) String() string {
	if f == Neutral {
		return "neutral"
	}
	return fmt.Sprintf("faction-%d", uint32(f))
}

type (
	BuildingID uint32
	TroopID    uint32
)

// Vec2 is a position or offset in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64  { return v.Sub(o).Len() }

// ResourceType tags natural-resource tiles and the stock a building produces.
type ResourceType byte

const (
	NoResource ResourceType = iota
	Crops
	Lumber
	Ore // quarried stone
)

func (r ResourceType) String() string {
	switch r {
	case Crops:
		return "crops"
	case Lumber:
		return "lumber"
	case Ore:
		return "stone"
	}
	return "none"
}

// BuildingType enumerates constructible buildings. The order is also the
// tie-break order used when two build necessities are equal.
type BuildingType byte

const (
	Castle BuildingType = iota
	Barracks
	Farm
	Lumbermill
	Mine
	NumBuildingTypes
)

var buildingNames = [NumBuildingTypes]string{"castle", "barracks", "farm", "lumbermill", "mine"}

func (b BuildingType) String() string {
	if b < NumBuildingTypes {
		return buildingNames[b]
	}
	return "unknown"
}

func (b BuildingType) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BuildingType) UnmarshalText(text []byte) error {
	for i, n := range buildingNames {
		if n == string(text) {
			*b = BuildingType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown building type %q", text)
}

// Produces returns the resource a building yields over time, if any.
func (b BuildingType) Produces() ResourceType {
	switch b {
	case Farm:
		return Crops
	case Lumbermill:
		return Lumber
	case Mine:
		return Ore
	}
	return NoResource
}

// Harvests returns the natural resource a building must sit on, if any.
func (b BuildingType) Harvests() ResourceType {
	switch b {
	case Lumbermill:
		return Lumber
	case Mine:
		return Ore
	}
	return NoResource
}

type TroopType byte

const (
	Knight TroopType = iota
	Archer
	Cavalier
	Golem
	NumTroopTypes
)

var troopNames = [NumTroopTypes]string{"knight", "archer", "cavalier", "golem"}

func (t TroopType) String() string {
	if t < NumTroopTypes {
		return troopNames[t]
	}
	return "unknown"
}

func (t TroopType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TroopType) UnmarshalText(text []byte) error {
	for i, n := range troopNames {
		if n == string(text) {
			*t = TroopType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown troop type %q", text)
}

// TroopState is the coarse behavior state the decision core can force on troops.
type TroopState byte

const (
	Idle TroopState = iota
	Navigate
	Guard
	Attack
)

func (s TroopState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Navigate:
		return "navigate"
	case Guard:
		return "guard"
	case Attack:
		return "attack"
	}
	return "unknown"
}

type Building struct {
	ID        BuildingID   `json:"id"`
	Type      BuildingType `json:"type"`
	Owner     FactionID    `json:"owner"`
	Tile      TileCoord    `json:"tile"`
	Pos       Vec2         `json:"pos"`
	Health    float64      `json:"health"`
	MaxHealth float64      `json:"maxHealth"`
	Repairing bool         `json:"repairing"`
}

// Damage returns 1 - health/maxHealth in [0,1].
func (b *Building) Damage() float64 {
	if b.MaxHealth <= 0 {
		return 0
	}
	d := 1 - b.Health/b.MaxHealth
	return math.Max(0, math.Min(1, d))
}

type Troop struct {
	ID     TroopID    `json:"id"`
	Type   TroopType  `json:"type"`
	Owner  FactionID  `json:"owner"`
	Pos    Vec2       `json:"pos"`
	Health float64    `json:"health"`
	Speed  float64    `json:"speed"`
	State  TroopState `json:"state"`

	// NearbyEnemies counts hostile troops within sight, refreshed by the world.
	NearbyEnemies int `json:"nearbyEnemies"`

	Dest        Vec2       `json:"dest"`
	Moving      bool       `json:"moving"`
	TargetTroop TroopID    `json:"targetTroop,omitempty"`
	TargetBuild BuildingID `json:"targetBuilding,omitempty"`
	GroupSpeed  float64    `json:"-"` // slowest member of the last selection, 0 = own speed
}
