package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
)

// Hub fans observer messages out to websocket and socket-tap subscribers.
// Publishing never blocks: a subscriber whose queue is full misses the
// message.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber

	nextID atomic.Uint64
	seq    atomic.Uint64

	// last match announcement, replayed to late subscribers
	match atomic.Pointer[[]byte]

	upgrader websocket.Upgrader

	connMu sync.Mutex
	conns  map[io.Closer]struct{}
	closed bool
}

type subscriber struct {
	id       uint64
	client   string
	out      chan []byte
	factions map[uint32]bool // nil = all
	heatmaps bool
	dropped  atomic.Uint64
}

func (s *subscriber) wants(faction model.FactionID) bool {
	if s.factions == nil || faction == model.Neutral {
		return true
	}
	return s.factions[uint32(faction)]
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[uint64]*subscriber),
		conns: make(map[io.Closer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribers is the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// track registers a live observer connection. It reports false once the
// hub is closed.
func (h *Hub) track(c io.Closer) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) untrack(c io.Closer) {
	h.connMu.Lock()
	delete(h.conns, c)
	h.connMu.Unlock()
}

// Close disconnects every observer and refuses new ones. Blocked readers
// return and their subscriptions are dropped.
func (h *Hub) Close() {
	h.connMu.Lock()
	conns := h.conns
	h.conns = make(map[io.Closer]struct{})
	h.closed = true
	h.connMu.Unlock()
	for c := range conns {
		_ = c.Close()
	}
	if len(conns) > 0 {
		slog.Info("observers disconnected", "count", len(conns))
	}
}

func (h *Hub) subscribe(hello HelloMessage) *subscriber {
	s := &subscriber{
		id:       h.nextID.Add(1),
		client:   hello.Client,
		out:      make(chan []byte, 256),
		heatmaps: hello.Heatmaps,
	}
	if len(hello.Factions) > 0 {
		s.factions = make(map[uint32]bool, len(hello.Factions))
		for _, f := range hello.Factions {
			s.factions[f] = true
		}
	}
	if m := h.match.Load(); m != nil {
		s.out <- *m
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	slog.Info("observer subscribed", "id", s.id, "client", s.client, "heatmaps", s.heatmaps)
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.out)
	}
	h.mu.Unlock()
	slog.Info("observer left", "id", s.id, "client", s.client, "dropped", s.dropped.Load())
}

// Publish encodes data once and queues it for every interested subscriber.
func (h *Hub) Publish(msgType string, faction model.FactionID, data any) error {
	raw, err := h.encode(msgType, data)
	if err != nil {
		return err
	}
	heatmap := msgType == TypeHeatmap
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if (heatmap && !s.heatmaps) || !s.wants(faction) {
			continue
		}
		select {
		case s.out <- raw:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) encode(msgType string, data any) ([]byte, error) {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return nil, err
	}
	env.Seq = h.seq.Add(1)
	return json.Marshal(env)
}

// PublishMatch announces a match and keeps it for late subscribers.
func (h *Hub) PublishMatch(m MatchMessage) error {
	raw, err := h.encode(TypeMatch, m)
	if err != nil {
		return err
	}
	h.match.Store(&raw)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.out <- raw:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// PublishReport sends a decision and each of its events.
func (h *Hub) PublishReport(rep agent.Report) {
	if h.Subscribers() == 0 {
		return
	}
	if err := h.Publish(TypeDecision, rep.Faction, NewDecisionMessage(rep)); err != nil {
		slog.Error("publish decision failed", "faction", rep.Faction, "error", err)
	}
	for _, ev := range rep.Events {
		msg := EventMessage{Faction: uint32(rep.Faction), Kind: ev.Kind, Tick: ev.Tick, Detail: ev.Detail}
		if err := h.Publish(TypeEvent, rep.Faction, msg); err != nil {
			slog.Error("publish event failed", "faction", rep.Faction, "error", err)
		}
	}
}

func (h *Hub) wantsHeatmaps() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.heatmaps {
			return true
		}
	}
	return false
}

// PublishHeatmaps sends building and troop influence per faction plus the
// unclaimed resource channel. Nothing is sampled without a heatmap
// subscriber.
func (h *Hub) PublishHeatmaps(f *influence.Field, factions []model.FactionID, simTime time.Duration) {
	if f == nil || !h.wantsHeatmaps() {
		return
	}
	ms := simTime.Milliseconds()
	send := func(cat influence.Category, id model.FactionID) {
		m, ok := NewHeatmapMessage(f, cat, id, ms)
		if !ok {
			return
		}
		if err := h.Publish(TypeHeatmap, id, m); err != nil {
			slog.Error("publish heatmap failed", "category", cat, "faction", id, "error", err)
		}
	}
	send(influence.Resources, model.Neutral)
	for _, id := range factions {
		send(influence.Buildings, id)
		send(influence.Troops, id)
	}
}

// WSHandler upgrades loopback clients. The first client message must be a
// hello envelope; the server answers with an ack and then streams.
func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if !h.track(conn) {
			return
		}
		defer h.untrack(conn)

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		var hello HelloMessage
		if env.Type != TypeHello || env.Decode(&hello) != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected hello"), time.Now().Add(time.Second))
			return
		}
		ack, _ := NewEnvelope(TypeAck, AckMessage{Status: "ok"})
		if err := conn.WriteJSON(ack); err != nil {
			return
		}

		s := h.subscribe(hello)
		defer h.unsubscribe(s)

		go func() {
			for b := range s.out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reads only detect the close; clients have nothing further to say.
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

// ServeTap accepts socket-tap clients until ctx is done or ln closes. When
// ctx is done every observer connection is closed as well.
func (h *Hub) ServeTap(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
		h.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("tap accept error", "error", err)
			continue
		}
		slog.Info("tap client connected")
		go h.serveTap(conn)
	}
}

func (h *Hub) serveTap(conn net.Conn) {
	if !h.track(conn) {
		conn.Close()
		return
	}
	defer h.untrack(conn)
	c := NewConnection(conn, nil)
	var sub *subscriber
	c.RegisterHandler(TypeHello, func(env Envelope) (*Envelope, error) {
		if sub != nil {
			return nil, nil
		}
		var hello HelloMessage
		if err := env.Decode(&hello); err != nil {
			return nil, err
		}
		c.Client = hello.Client
		if err := c.Send(TypeAck, AckMessage{Status: "ok"}); err != nil {
			return nil, err
		}
		sub = h.subscribe(hello)
		go func(s *subscriber) {
			for b := range s.out {
				if err := c.SendFrame(b); err != nil {
					return
				}
			}
		}(sub)
		return nil, nil
	})
	c.ReadLoop()
	if sub != nil {
		h.unsubscribe(sub)
	}
}

func isLoopbackRemote(remote string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remote))
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
