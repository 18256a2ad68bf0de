package strategy

// Tuning holds the constants of the necessity formulas. Ratios and factors
// are dimensionless; counts are troops, tiles or attempts.
type Tuning struct {
	LumbermillRatio   float64 `yaml:"lumbermillRatio" json:"lumbermillRatio"`
	MineRatio         float64 `yaml:"mineRatio" json:"mineRatio"`
	FarmRatio         float64 `yaml:"farmRatio" json:"farmRatio"`
	BarracksRatio     float64 `yaml:"barracksRatio" json:"barracksRatio"`
	CastleCompetition float64 `yaml:"castleCompetition" json:"castleCompetition"`

	CropsFactor          float64 `yaml:"cropsFactor" json:"cropsFactor"`
	TilesPerTroop        float64 `yaml:"tilesPerTroop" json:"tilesPerTroop"`
	IdleSaturation       float64 `yaml:"idleSaturation" json:"idleSaturation"`
	RivalAdvantageFactor float64 `yaml:"rivalAdvantageFactor" json:"rivalAdvantageFactor"`
	RivalAdvantageCap    float64 `yaml:"rivalAdvantageCap" json:"rivalAdvantageCap"`

	InfluenceGain  float64 `yaml:"influenceGain" json:"influenceGain"`
	CastlePressure float64 `yaml:"castlePressure" json:"castlePressure"`
	TileRichness   float64 `yaml:"tileRichness" json:"tileRichness"`
	TileSafety     float64 `yaml:"tileSafety" json:"tileSafety"`
	TroopPressure  float64 `yaml:"troopPressure" json:"troopPressure"`
	StrengthFactor float64 `yaml:"strengthFactor" json:"strengthFactor"`

	PlacementAttempts int `yaml:"placementAttempts" json:"placementAttempts"`
	PlacementRadius   int `yaml:"placementRadius" json:"placementRadius"`
	TrainAttempts     int `yaml:"trainAttempts" json:"trainAttempts"`
	AttackTroopCap    int `yaml:"attackTroopCap" json:"attackTroopCap"`
}

// DefaultTuning returns the stock castle-AI constants.
func DefaultTuning() Tuning {
	return Tuning{
		LumbermillRatio:   0.1,
		MineRatio:         0.1,
		FarmRatio:         0.09,
		BarracksRatio:     0.07,
		CastleCompetition: 0.2,

		CropsFactor:          0.01,
		TilesPerTroop:        2,
		IdleSaturation:       5,
		RivalAdvantageFactor: 0.5,
		RivalAdvantageCap:    0.9,

		InfluenceGain:  4,
		CastlePressure: 0.02,
		TileRichness:   0.8,
		TileSafety:     0.2,
		TroopPressure:  0.5,
		StrengthFactor: 0.75,

		PlacementAttempts: 100,
		PlacementRadius:   3,
		TrainAttempts:     12,
		AttackTroopCap:    6,
	}
}

// normalized fills zero fields from the defaults and clamps the rest.
func (t Tuning) normalized() Tuning {
	d := DefaultTuning()
	pick := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	pickInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	pick(&t.LumbermillRatio, d.LumbermillRatio)
	pick(&t.MineRatio, d.MineRatio)
	pick(&t.FarmRatio, d.FarmRatio)
	pick(&t.BarracksRatio, d.BarracksRatio)
	pick(&t.CastleCompetition, d.CastleCompetition)
	pick(&t.CropsFactor, d.CropsFactor)
	pick(&t.TilesPerTroop, d.TilesPerTroop)
	pick(&t.IdleSaturation, d.IdleSaturation)
	pick(&t.RivalAdvantageFactor, d.RivalAdvantageFactor)
	pick(&t.RivalAdvantageCap, d.RivalAdvantageCap)
	pick(&t.InfluenceGain, d.InfluenceGain)
	pick(&t.CastlePressure, d.CastlePressure)
	pick(&t.TileRichness, d.TileRichness)
	pick(&t.TileSafety, d.TileSafety)
	pick(&t.TroopPressure, d.TroopPressure)
	pick(&t.StrengthFactor, d.StrengthFactor)
	pickInt(&t.PlacementAttempts, d.PlacementAttempts)
	pickInt(&t.PlacementRadius, d.PlacementRadius)
	pickInt(&t.TrainAttempts, d.TrainAttempts)
	pickInt(&t.AttackTroopCap, d.AttackTroopCap)

	t.RivalAdvantageCap = clamp(t.RivalAdvantageCap, 0, 1)
	t.TroopPressure = clamp(t.TroopPressure, 0, 1)
	t.PlacementAttempts = clampInt(t.PlacementAttempts, 1, 1000)
	return t
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clamp01(v float64) float64 {
	if v != v {
		return 0
	}
	return clamp(v, 0, 1)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
