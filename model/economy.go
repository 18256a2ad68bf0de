package model

// Stock is a faction's stored resources. The same shape doubles as a cost.
type Stock struct {
	Crops  float64 `json:"crops" yaml:"crops"`
	Lumber float64 `json:"lumber" yaml:"lumber"`
	Stone  float64 `json:"stone" yaml:"stone"`
}

// Covers reports whether s holds at least cost of every resource.
func (s Stock) Covers(cost Stock) bool {
	return s.Crops >= cost.Crops && s.Lumber >= cost.Lumber && s.Stone >= cost.Stone
}

// TryDebit subtracts cost if affordable. Returns false and leaves s untouched otherwise.
func (s *Stock) TryDebit(cost Stock) bool {
	if !s.Covers(cost) {
		return false
	}
	s.Crops -= cost.Crops
	s.Lumber -= cost.Lumber
	s.Stone -= cost.Stone
	return true
}

// Add credits an amount of a single resource.
func (s *Stock) Add(r ResourceType, amount float64) {
	switch r {
	case Crops:
		s.Crops += amount
	case Lumber:
		s.Lumber += amount
	case Ore:
		s.Stone += amount
	}
}

// CostTable prices every building and troop type.
type CostTable struct {
	Buildings map[BuildingType]Stock `json:"buildings" yaml:"buildings"`
	Troops    map[TroopType]Stock    `json:"troops" yaml:"troops"`
}

// DefaultCosts mirrors the stock prices of the base game.
func DefaultCosts() CostTable {
	return CostTable{
		Buildings: map[BuildingType]Stock{
			Castle:     {Crops: 20, Lumber: 40, Stone: 40},
			Barracks:   {Lumber: 10, Stone: 5},
			Farm:       {Lumber: 5},
			Lumbermill: {Lumber: 5, Stone: 2},
			Mine:       {Lumber: 8},
		},
		Troops: map[TroopType]Stock{
			Knight:   {Crops: 5, Stone: 1},
			Archer:   {Crops: 4, Lumber: 2},
			Cavalier: {Crops: 8, Lumber: 1, Stone: 1},
			Golem:    {Crops: 2, Stone: 6},
		},
	}
}

// Building returns the cost of a building type, zero if unpriced.
func (c CostTable) Building(t BuildingType) Stock { return c.Buildings[t] }

// Troop returns the cost of a troop type, zero if unpriced.
func (c CostTable) Troop(t TroopType) Stock { return c.Troops[t] }
