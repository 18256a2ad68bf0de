package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/utility"
)

// TraceEntry is one line of a decision trace.
type TraceEntry struct {
	Match       string             `json:"match"`
	Faction     uint32             `json:"faction"`
	Tick        uint64             `json:"tick"`
	SimMillis   int64              `json:"simMs"`
	Action      string             `json:"action"`
	Roll        float64            `json:"roll"`
	Scores      []utility.Score    `json:"scores"`
	Necessities map[string]float64 `json:"necessities,omitempty"`
	Events      []agent.Event      `json:"events,omitempty"`
	Err         string             `json:"err,omitempty"`
}

// NewTraceEntry flattens a report for the trace.
func NewTraceEntry(match string, rep agent.Report) TraceEntry {
	e := TraceEntry{
		Match:       match,
		Faction:     uint32(rep.Faction),
		Tick:        rep.Tick,
		SimMillis:   rep.SimTime.Milliseconds(),
		Action:      rep.Action,
		Roll:        rep.Roll,
		Scores:      rep.Scores,
		Necessities: rep.Necessities,
		Events:      rep.Events,
	}
	if rep.Err != nil {
		e.Err = rep.Err.Error()
	}
	return e
}

// Trace appends zstd-compressed JSONL to a single file.
type Trace struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func OpenTrace(path string) (*Trace, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Trace{path: path, f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (t *Trace) Path() string { return t.path }

// Write appends v as one JSON line.
func (t *Trace) Write(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return fmt.Errorf("trace %s closed", t.path)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	return t.w.WriteByte('\n')
}

// Flush pushes buffered lines through the encoder into the file.
func (t *Trace) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.enc.Flush()
}

func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	_ = t.w.Flush()
	err := t.enc.Close()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	t.w, t.enc, t.f = nil, nil, nil
	return err
}

// ReadTrace decodes every line of a trace file in order.
func ReadTrace(path string, fn func(TraceEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	return readLines(dec, fn)
}

func readLines(r io.Reader, fn func(TraceEntry) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		var e TraceEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("trace line %d: %w", line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Recorder fans agent reports into a Store and a Trace, either of which may
// be nil.
type Recorder struct {
	Store *Store
	Trace *Trace
	Match string

	flushEvery time.Duration
	lastFlush  time.Duration
}

func NewRecorder(store *Store, trace *Trace, match string) *Recorder {
	return &Recorder{Store: store, Trace: trace, Match: match, flushEvery: 10 * time.Second}
}

// Report records one decision. Trace errors are returned; store writes are
// queued.
func (r *Recorder) Report(rep agent.Report) error {
	if r.Store != nil {
		r.Store.Record(r.Match, rep)
	}
	if r.Trace == nil {
		return nil
	}
	if err := r.Trace.Write(NewTraceEntry(r.Match, rep)); err != nil {
		return err
	}
	if rep.SimTime-r.lastFlush >= r.flushEvery {
		r.lastFlush = rep.SimTime
		return r.Trace.Flush()
	}
	return nil
}
