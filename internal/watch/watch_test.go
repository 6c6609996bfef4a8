package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/replay"
	"gridspire.dev/internal/sim/game"
	"gridspire.dev/internal/sim/tuning"
	"gridspire.dev/internal/watchproto"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestServer(t *testing.T) (*httptest.Server, *Feed) {
	t.Helper()
	g := game.New(game.Config{Seed: 11})
	if err := g.AddPlayer("p1"); err != nil {
		t.Fatalf("add player: %v", err)
	}
	ctrl, err := replay.New(g, tuning.Tuning{
		CheckpointPeriodTicks: 100,
		HashAlgo:              "sha256",
		OnDivergence:          tuning.OnDivergenceWarn,
		DataDir:               t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	feed := NewFeed(testLogger())
	ctrl.SetObserver(feed)
	srv := NewServer(ctrl, feed, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/watch/ws", srv.WSHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, feed
}

func dialWatch(t *testing.T, ts *httptest.Server, fromTick uint64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/watch/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	sub := watchproto.SubscribeMsg{
		Type:            watchproto.TypeSubscribe,
		ProtocolVersion: watchproto.Version,
		FromTick:        fromTick,
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitSessions(t *testing.T, feed *Feed, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for feed.Sessions() != n {
		if time.Now().After(deadline) {
			t.Fatalf("sessions = %d, want %d", feed.Sessions(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return m
}

func TestBootstrap(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/watch/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var boot watchproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.ProtocolVersion != watchproto.Version {
		t.Fatalf("protocol version = %q", boot.ProtocolVersion)
	}
	if boot.Mode != "idle" || boot.Seed != 11 {
		t.Fatalf("unexpected bootstrap: %+v", boot)
	}
}

func TestEventFanout(t *testing.T) {
	ts, feed := newTestServer(t)
	conn := dialWatch(t, ts, 0)
	waitSessions(t, feed, 1)

	feed.OnTick(7, []protocol.Action{{Type: protocol.ActionSpawnWave, PlayerID: "p1"}})
	feed.OnCheckpoint(100, "abc123")
	feed.OnFinished(replay.ModePlayback, 100)

	frame := readFrame(t, conn)
	if frame["type"] != watchproto.TypeTick || frame["tick"] != float64(7) {
		t.Fatalf("unexpected frame: %v", frame)
	}
	frame = readFrame(t, conn)
	if frame["type"] != watchproto.TypeCheckpoint || frame["hash"] != "abc123" {
		t.Fatalf("unexpected frame: %v", frame)
	}
	frame = readFrame(t, conn)
	if frame["type"] != watchproto.TypeFinished || frame["mode"] != "playback" {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestFromTickFiltersTickFrames(t *testing.T) {
	ts, feed := newTestServer(t)
	conn := dialWatch(t, ts, 10)
	waitSessions(t, feed, 1)

	feed.OnTick(5, nil)                                 // filtered
	feed.OnTick(12, nil)                                // delivered
	feed.OnDivergence(replay.DivergenceReport{Tick: 3}) // always delivered

	frame := readFrame(t, conn)
	if frame["type"] != watchproto.TypeTick || frame["tick"] != float64(12) {
		t.Fatalf("unexpected frame: %v", frame)
	}
	frame = readFrame(t, conn)
	if frame["type"] != watchproto.TypeDivergence || frame["tick"] != float64(3) {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestHandshakeRequiresSubscribe(t *testing.T) {
	ts, feed := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/watch/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "NONSENSE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after bad handshake")
	}
	if feed.Sessions() != 0 {
		t.Fatalf("bad handshake must not attach a session")
	}
}

func TestSlowSessionIsDropped(t *testing.T) {
	feed := NewFeed(testLogger())
	out := feed.Attach("W1", 0)

	for i := 0; i < sessionBuffer+8; i++ {
		feed.OnCheckpoint(uint64(i), fmt.Sprintf("h%d", i))
	}
	if feed.Sessions() != 0 {
		t.Fatalf("slow session still attached")
	}
	// Channel must be closed after the buffered frames drain.
	var n int
	for range out {
		n++
	}
	if n != sessionBuffer {
		t.Fatalf("buffered frames = %d, want %d", n, sessionBuffer)
	}
}
