// Package journal records matches, faction decisions and faction events.
// Store keeps a queryable SQLite index; Trace keeps a compressed JSONL
// stream of every report.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/model"
)

// Store is a SQLite journal fed by a single writer goroutine. Decision and
// event writes never block the simulation; they are dropped when the
// writer falls behind.
type Store struct {
	db *sqlx.DB

	ch   chan op
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type opKind int

const (
	opBegin opKind = iota + 1
	opEnd
	opReport
	opSync
)

type op struct {
	kind  opKind
	match MatchRow
	rep   agent.Report
	done  chan struct{}
}

// MatchRow is one row of the matches table.
type MatchRow struct {
	ID        string  `db:"id"`
	Seed      int64   `db:"seed"`
	Factions  int     `db:"factions"`
	StartedAt string  `db:"started_at"`
	EndedAt   *string `db:"ended_at"`
	Frames    int64   `db:"frames"`
	SimMillis int64   `db:"sim_ms"`
	Winner    *int64  `db:"winner"`
	Config    string  `db:"config_json"` // JSON
}

type DecisionRow struct {
	MatchID     string  `db:"match_id"`
	Faction     int64   `db:"faction"`
	Tick        int64   `db:"tick"`
	SimMillis   int64   `db:"sim_ms"`
	Action      string  `db:"action"`
	Roll        float64 `db:"roll"`
	Scores      string  `db:"scores_json"`
	Necessities string  `db:"necessities_json"`
	Err         string  `db:"err"`
}

type EventRow struct {
	MatchID string `db:"match_id"`
	Faction int64  `db:"faction"`
	Tick    int64  `db:"tick"`
	Kind    string `db:"kind"`
	Detail  string `db:"detail"`
}

// Open creates or opens the journal at path and starts its writer.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	s := &Store{db: db, ch: make(chan op, 8192)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func migrate(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		factions INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		frames INTEGER NOT NULL DEFAULT 0,
		sim_ms INTEGER NOT NULL DEFAULT 0,
		winner INTEGER,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		faction INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		sim_ms INTEGER NOT NULL,
		action TEXT NOT NULL,
		roll REAL NOT NULL,
		scores_json TEXT NOT NULL,
		necessities_json TEXT NOT NULL,
		err TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		faction INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_match ON decisions(match_id, faction, tick);
	CREATE INDEX IF NOT EXISTS idx_events_match ON events(match_id, kind);
	`
	_, err := db.Exec(schema)
	return err
}

// BeginMatch assigns a match id and queues its row. Reports recorded after
// it are tagged with that id.
func (s *Store) BeginMatch(seed int64, factions int, cfg any) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode match config: %w", err)
	}
	row := MatchRow{
		ID:        uuid.NewString(),
		Seed:      seed,
		Factions:  factions,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Config:    string(raw),
	}
	if s.closed.Load() {
		return "", fmt.Errorf("journal closed")
	}
	s.ch <- op{kind: opBegin, match: row}
	return row.ID, nil
}

// EndMatch queues the final match summary. winner is model.Neutral when
// nobody won.
func (s *Store) EndMatch(id string, frames uint64, simTime time.Duration, winner model.FactionID) {
	if s.closed.Load() {
		return
	}
	row := MatchRow{ID: id, Frames: int64(frames), SimMillis: simTime.Milliseconds()}
	if winner != model.Neutral {
		w := int64(winner)
		row.Winner = &w
	}
	s.ch <- op{kind: opEnd, match: row}
}

// Record queues one decision report and its events for match id.
func (s *Store) Record(id string, rep agent.Report) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- op{kind: opReport, match: MatchRow{ID: id}, rep: rep}:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("journal behind, dropping reports", "dropped", n)
		}
	}
}

// Dropped is the number of reports discarded so far.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Sync blocks until every write queued before it is committed.
func (s *Store) Sync() {
	if s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- op{kind: opSync, done: done}
	<-done
}

// Close drains queued writes and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

const batchMax = 512

// loop commits whatever is queued as one transaction per batch.
func (s *Store) loop() {
	for first := range s.ch {
		batch := []op{first}
	drain:
		for len(batch) < batchMax {
			select {
			case o, ok := <-s.ch:
				if !ok {
					break drain
				}
				batch = append(batch, o)
			default:
				break drain
			}
		}
		if err := s.commit(batch); err != nil {
			slog.Error("journal write failed", "ops", len(batch), "error", err)
		}
		for _, o := range batch {
			if o.done != nil {
				close(o.done)
			}
		}
	}
}

func (s *Store) commit(batch []op) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range batch {
		switch o.kind {
		case opBegin:
			m := o.match
			if _, err := tx.Exec(`INSERT INTO matches (id, seed, factions, started_at, config_json) VALUES (?, ?, ?, ?, ?)`,
				m.ID, m.Seed, m.Factions, m.StartedAt, m.Config); err != nil {
				return fmt.Errorf("insert match: %w", err)
			}
		case opEnd:
			m := o.match
			if _, err := tx.Exec(`UPDATE matches SET ended_at = ?, frames = ?, sim_ms = ?, winner = ? WHERE id = ?`,
				time.Now().UTC().Format(time.RFC3339Nano), m.Frames, m.SimMillis, m.Winner, m.ID); err != nil {
				return fmt.Errorf("end match: %w", err)
			}
		case opReport:
			if err := insertReport(tx, o.match.ID, o.rep); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func insertReport(tx *sqlx.Tx, id string, rep agent.Report) error {
	scores, _ := json.Marshal(rep.Scores)
	needs, _ := json.Marshal(rep.Necessities)
	errText := ""
	if rep.Err != nil {
		errText = rep.Err.Error()
	}
	if _, err := tx.Exec(`INSERT INTO decisions
		(match_id, faction, tick, sim_ms, action, roll, scores_json, necessities_json, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, int64(rep.Faction), int64(rep.Tick), rep.SimTime.Milliseconds(),
		rep.Action, rep.Roll, string(scores), string(needs), errText); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	for _, ev := range rep.Events {
		if _, err := tx.Exec(`INSERT INTO events (match_id, faction, tick, kind, detail) VALUES (?, ?, ?, ?, ?)`,
			id, int64(rep.Faction), int64(ev.Tick), string(ev.Kind), ev.Detail); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// Match returns the match row for id.
func (s *Store) Match(id string) (MatchRow, error) {
	var m MatchRow
	err := s.db.Get(&m, `SELECT id, seed, factions, started_at, ended_at, frames, sim_ms, winner, config_json FROM matches WHERE id = ?`, id)
	return m, err
}

// Decisions returns a faction's decisions in tick order.
func (s *Store) Decisions(id string, faction model.FactionID) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := s.db.Select(&rows,
		`SELECT match_id, faction, tick, sim_ms, action, roll, scores_json, necessities_json, err
		 FROM decisions WHERE match_id = ? AND faction = ? ORDER BY tick`,
		id, int64(faction))
	return rows, err
}

// Events returns every event of a match in insertion order.
func (s *Store) Events(id string) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.Select(&rows,
		`SELECT match_id, faction, tick, kind, detail FROM events WHERE match_id = ? ORDER BY id`, id)
	return rows, err
}

// ActionCounts tallies chosen actions per faction for a match.
func (s *Store) ActionCounts(id string) (map[model.FactionID]map[string]int, error) {
	var rows []struct {
		Faction int64  `db:"faction"`
		Action  string `db:"action"`
		N       int    `db:"n"`
	}
	err := s.db.Select(&rows,
		`SELECT faction, action, COUNT(*) AS n FROM decisions WHERE match_id = ? GROUP BY faction, action`, id)
	if err != nil {
		return nil, err
	}
	out := make(map[model.FactionID]map[string]int)
	for _, r := range rows {
		f := model.FactionID(r.Faction)
		if out[f] == nil {
			out[f] = make(map[string]int)
		}
		out[f][r.Action] = r.N
	}
	return out, nil
}
