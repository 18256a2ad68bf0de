package ipc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/utility"
)

func TestEnvelopeFraming(t *testing.T) {
	var buf bytes.Buffer
	env, err := NewEnvelope(TypeAck, AckMessage{Status: "ok", Match: "m1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := WriteEnvelope(&buf, env); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[:4]); int(got) != buf.Len()-4 {
		t.Errorf("length prefix = %d, want %d", got, buf.Len()-4)
	}
	back, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	var ack AckMessage
	if err := back.Decode(&ack); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Type != TypeAck || ack.Match != "m1" {
		t.Errorf("got %s %+v", back.Type, ack)
	}
}

func TestReadEnvelopeRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", []byte{}},
		{"zero length", []byte{0, 0, 0, 0}},
		{"oversized", binary.LittleEndian.AppendUint32(nil, maxFrame+1)},
		{"short payload", append(binary.LittleEndian.AppendUint32(nil, 10), '{')},
		{"not json", append(binary.LittleEndian.AppendUint32(nil, 3), "abc"...)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadEnvelope(bytes.NewReader(tc.frame)); err == nil {
				t.Error("ReadEnvelope: want error")
			}
		})
	}
}

func testReport() agent.Report {
	return agent.Report{
		Faction: 1,
		Tick:    4,
		SimTime: 4 * time.Second,
		Action:  "guard",
		Scores:  []utility.Score{{Action: "guard", Value: 0.9}},
		Err:     errors.New("no troops"),
		Events:  []agent.Event{{Kind: agent.EventFirstContact, Tick: 4}},
	}
}

func TestDecisionMessage(t *testing.T) {
	m := NewDecisionMessage(testReport())
	if m.Faction != 1 || m.SimMs != 4000 || m.Err != "no troops" || m.Action != "guard" {
		t.Errorf("NewDecisionMessage = %+v", m)
	}
}

func TestHeatmapMessage(t *testing.T) {
	factions := []model.FactionID{0, 1}
	f, err := influence.NewField(influence.Config{Extent: model.Vec2{X: 8, Y: 8}, Resolution: 8}, factions, influence.NewGaussian(1, 1, 1))
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	f.WriteBuildingPresence(0, model.Vec2{X: 4, Y: 4})

	m, ok := NewHeatmapMessage(f, influence.Buildings, 0, 1500)
	if !ok {
		t.Fatal("NewHeatmapMessage: faction 0 not tracked")
	}
	cols, rows := f.Dims()
	if m.Cols != cols || m.Rows != rows || len(m.Values) != cols*rows {
		t.Fatalf("heatmap %dx%d with %d values", m.Cols, m.Rows, len(m.Values))
	}
	peak := byte(0)
	for _, v := range m.Values {
		peak = max(peak, v)
	}
	if peak == 0 {
		t.Error("heatmap is empty after a building write")
	}
	if _, ok := NewHeatmapMessage(f, influence.Buildings, 7, 0); ok {
		t.Error("NewHeatmapMessage for unknown faction: want ok=false")
	}
}

func sendHello(t *testing.T, conn net.Conn, hello HelloMessage) {
	t.Helper()
	env, _ := NewEnvelope(TypeHello, hello)
	if err := WriteEnvelope(conn, env); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func readType(t *testing.T, conn net.Conn, want string) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	env, err := ReadEnvelope(conn)
	if err != nil {
		t.Fatalf("read %s: %v", want, err)
	}
	if env.Type != want {
		t.Fatalf("type = %s, want %s", env.Type, want)
	}
	return env
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", h.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTapSession(t *testing.T) {
	h := NewHub()
	if err := h.PublishMatch(MatchMessage{ID: "m1", Cols: 8, Rows: 8, Factions: []uint32{0, 1}}); err != nil {
		t.Fatalf("PublishMatch: %v", err)
	}
	server, client := net.Pipe()
	go h.serveTap(server)
	defer client.Close()

	sendHello(t, client, HelloMessage{Client: "test", Factions: []uint32{1}})
	readType(t, client, TypeAck)
	var match MatchMessage
	if err := readType(t, client, TypeMatch).Decode(&match); err != nil || match.ID != "m1" {
		t.Fatalf("replayed match = %+v, %v", match, err)
	}
	waitSubscribers(t, h, 1)

	other := testReport()
	other.Faction = 0
	h.PublishReport(other)
	h.PublishReport(testReport())

	var dec DecisionMessage
	if err := readType(t, client, TypeDecision).Decode(&dec); err != nil {
		t.Fatal(err)
	}
	if dec.Faction != 1 {
		t.Errorf("decision faction = %d, want only faction 1", dec.Faction)
	}
	var ev EventMessage
	if err := readType(t, client, TypeEvent).Decode(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != agent.EventFirstContact {
		t.Errorf("event kind = %s", ev.Kind)
	}

	client.Close()
	waitSubscribers(t, h, 0)
}

func TestPublishSkipsSlowSubscriber(t *testing.T) {
	h := NewHub()
	s := h.subscribe(HelloMessage{Client: "slow"})
	for i := 0; i < cap(s.out)+10; i++ {
		if err := h.Publish(TypeDecision, 0, DecisionMessage{Tick: uint64(i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if got := s.dropped.Load(); got != 10 {
		t.Errorf("dropped = %d, want 10", got)
	}
	h.unsubscribe(s)
	h.unsubscribe(s)
	if h.Subscribers() != 0 {
		t.Errorf("subscribers = %d after unsubscribe", h.Subscribers())
	}
}

func TestHeatmapsOnlyWhenAsked(t *testing.T) {
	h := NewHub()
	plain := h.subscribe(HelloMessage{Client: "plain"})
	maps := h.subscribe(HelloMessage{Client: "maps", Heatmaps: true})
	defer h.unsubscribe(plain)
	defer h.unsubscribe(maps)

	factions := []model.FactionID{0, 1}
	f, err := influence.NewField(influence.Config{Extent: model.Vec2{X: 8, Y: 8}, Resolution: 8}, factions, influence.NewGaussian(1, 1, 1))
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	h.PublishHeatmaps(f, factions, time.Second)

	if n := len(plain.out); n != 0 {
		t.Errorf("plain subscriber got %d heatmaps", n)
	}
	// unclaimed resources plus buildings and troops per faction
	if n := len(maps.out); n != 5 {
		t.Errorf("heatmap subscriber got %d messages, want 5", n)
	}
}

func TestWebsocketSession(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	hello, _ := NewEnvelope(TypeHello, HelloMessage{Client: "ws"})
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack Envelope
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != TypeAck {
		t.Fatalf("ack = %+v, %v", ack, err)
	}
	waitSubscribers(t, h, 1)

	h.PublishReport(testReport())
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read decision: %v", err)
	}
	if env.Type != TypeDecision || env.Seq == 0 {
		t.Errorf("envelope = %s seq %d, want a sequenced decision", env.Type, env.Seq)
	}
}

func TestWebsocketRequiresHello(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	bad, _ := NewEnvelope(TypeDecision, DecisionMessage{})
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("read after bad hello = %v, want policy violation close", err)
	}
}

func TestServeTapShutdownDisconnectsObservers(t *testing.T) {
	h := NewHub()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.ServeTap(ctx, ln)

	srv := httptest.NewServer(h.WSHandler())
	defer srv.Close()

	tap, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial tap: %v", err)
	}
	defer tap.Close()
	sendHello(t, tap, HelloMessage{Client: "tap"})
	readType(t, tap, TypeAck)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial ws: %v", err)
	}
	defer ws.Close()
	hello, _ := NewEnvelope(TypeHello, HelloMessage{Client: "ws"})
	if err := ws.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack Envelope
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	waitSubscribers(t, h, 2)

	cancel()
	waitSubscribers(t, h, 0)

	_ = tap.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := ReadEnvelope(tap); err == nil {
		t.Error("tap read after shutdown: want error")
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("websocket read after shutdown: want error")
	}
	if h.track(tap) {
		t.Error("track after shutdown: want refused")
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:5000", true},
		{"[::1]:80", true},
		{"10.0.0.2:80", false},
		{"garbage", false},
	}
	for _, tc := range tests {
		if got := isLoopbackRemote(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
