package ipc

import (
	"math"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/utility"
)

const (
	TypeHello    = "hello"
	TypeAck      = "ack"
	TypeMatch    = "match"
	TypeDecision = "decision"
	TypeEvent    = "event"
	TypeHeatmap  = "heatmap"
)

// HelloMessage opens a tap session. An empty Factions list subscribes to
// every faction.
type HelloMessage struct {
	Client   string   `json:"client"`
	Factions []uint32 `json:"factions,omitempty"`
	Heatmaps bool     `json:"heatmaps"`
}

type AckMessage struct {
	Status string `json:"status"`
	Match  string `json:"match,omitempty"`
}

// MatchMessage announces a match start (Ended false) or its end.
type MatchMessage struct {
	ID       string   `json:"id"`
	Cols     int      `json:"cols"`
	Rows     int      `json:"rows"`
	Factions []uint32 `json:"factions"`
	Ended    bool     `json:"ended"`
	Frames   uint64   `json:"frames,omitempty"`
	SimMs    int64    `json:"simMs,omitempty"`
	Winner   *uint32  `json:"winner,omitempty"`
}

type DecisionMessage struct {
	Faction     uint32             `json:"faction"`
	Tick        uint64             `json:"tick"`
	SimMs       int64              `json:"simMs"`
	Action      string             `json:"action"`
	Roll        float64            `json:"roll"`
	Scores      []utility.Score    `json:"scores"`
	Necessities map[string]float64 `json:"necessities,omitempty"`
	Err         string             `json:"err,omitempty"`
}

type EventMessage struct {
	Faction uint32          `json:"faction"`
	Kind    agent.EventKind `json:"kind"`
	Tick    uint64          `json:"tick"`
	Detail  string          `json:"detail"`
}

// HeatmapMessage is one diffused influence channel quantized to bytes,
// row-major, 255 = full influence.
type HeatmapMessage struct {
	Faction  uint32 `json:"faction"`
	Category string `json:"category"`
	Cols     int    `json:"cols"`
	Rows     int    `json:"rows"`
	SimMs    int64  `json:"simMs"`
	Values   []byte `json:"values"`
}

func NewDecisionMessage(rep agent.Report) DecisionMessage {
	m := DecisionMessage{
		Faction:     uint32(rep.Faction),
		Tick:        rep.Tick,
		SimMs:       rep.SimTime.Milliseconds(),
		Action:      rep.Action,
		Roll:        rep.Roll,
		Scores:      rep.Scores,
		Necessities: rep.Necessities,
	}
	if rep.Err != nil {
		m.Err = rep.Err.Error()
	}
	return m
}

// NewHeatmapMessage samples one faction channel of the field. ok is false
// for a faction the field does not track.
func NewHeatmapMessage(f *influence.Field, cat influence.Category, faction model.FactionID, simMs int64) (HeatmapMessage, bool) {
	vals := f.Snapshot(cat, faction)
	if vals == nil {
		return HeatmapMessage{}, false
	}
	cols, rows := f.Dims()
	q := make([]byte, len(vals))
	for i, v := range vals {
		q[i] = byte(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return HeatmapMessage{
		Faction:  uint32(faction),
		Category: cat.String(),
		Cols:     cols,
		Rows:     rows,
		SimMs:    simMs,
		Values:   q,
	}, true
}
