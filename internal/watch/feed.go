// Package watch streams session events to websocket observers. The feed is
// fed synchronously from the controller goroutine and fans frames out to
// per-connection buffered channels; a connection that cannot keep up is
// dropped rather than allowed to stall the simulation.
package watch

import (
	"encoding/json"
	"log"
	"sync"

	"gridspire.dev/internal/protocol"
	"gridspire.dev/internal/replay"
	"gridspire.dev/internal/watchproto"
)

const sessionBuffer = 256

type session struct {
	id       string
	out      chan []byte
	fromTick uint64
}

// Feed implements replay.Observer and fans events out to attached sessions.
type Feed struct {
	mu       sync.Mutex
	sessions map[string]*session
	log      *log.Logger
}

func NewFeed(logger *log.Logger) *Feed {
	return &Feed{
		sessions: make(map[string]*session),
		log:      logger,
	}
}

// Attach registers a session and returns its frame channel. The channel is
// closed when the session is detached or falls behind.
func (f *Feed) Attach(id string, fromTick uint64) <-chan []byte {
	s := &session{id: id, out: make(chan []byte, sessionBuffer), fromTick: fromTick}
	f.mu.Lock()
	f.sessions[id] = s
	f.mu.Unlock()
	return s.out
}

func (f *Feed) Detach(id string) {
	f.mu.Lock()
	s, ok := f.sessions[id]
	if ok {
		delete(f.sessions, id)
	}
	f.mu.Unlock()
	if ok {
		close(s.out)
	}
}

// Retune moves a session's tick filter.
func (f *Feed) Retune(id string, fromTick uint64) {
	f.mu.Lock()
	if s, ok := f.sessions[id]; ok {
		s.fromTick = fromTick
	}
	f.mu.Unlock()
}

func (f *Feed) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// broadcast marshals once and delivers non-blocking. tickFilter carries the
// frame's tick for the per-session filter; frames that must always arrive
// pass alwaysDeliver.
func (f *Feed) broadcast(v any, tick uint64, alwaysDeliver bool) {
	b, err := json.Marshal(v)
	if err != nil {
		f.log.Printf("watch: marshal: %v", err)
		return
	}

	var stalled []*session
	f.mu.Lock()
	for _, s := range f.sessions {
		if !alwaysDeliver && tick < s.fromTick {
			continue
		}
		select {
		case s.out <- b:
		default:
			stalled = append(stalled, s)
		}
	}
	for _, s := range stalled {
		delete(f.sessions, s.id)
	}
	f.mu.Unlock()

	for _, s := range stalled {
		close(s.out)
		f.log.Printf("watch: dropped slow session %s", s.id)
	}
}

func (f *Feed) OnTick(tick uint64, actions []protocol.Action) {
	f.broadcast(watchproto.TickMsg{
		Type:            watchproto.TypeTick,
		ProtocolVersion: watchproto.Version,
		Tick:            tick,
		Actions:         actions,
	}, tick, false)
}

func (f *Feed) OnCheckpoint(tick uint64, digest string) {
	f.broadcast(watchproto.CheckpointMsg{
		Type:            watchproto.TypeCheckpoint,
		ProtocolVersion: watchproto.Version,
		Tick:            tick,
		Hash:            digest,
	}, tick, true)
}

func (f *Feed) OnDivergence(report replay.DivergenceReport) {
	items := make([]watchproto.DivergenceItem, 0, len(report.Divergences))
	for _, d := range report.Divergences {
		items = append(items, watchproto.DivergenceItem{
			Path: d.String(),
			Kind: string(d.Kind),
		})
	}
	f.broadcast(watchproto.DivergenceMsg{
		Type:            watchproto.TypeDivergence,
		ProtocolVersion: watchproto.Version,
		Tick:            report.Tick,
		Divergences:     items,
	}, report.Tick, true)
}

func (f *Feed) OnFinished(mode replay.Mode, tick uint64) {
	f.broadcast(watchproto.FinishedMsg{
		Type:            watchproto.TypeFinished,
		ProtocolVersion: watchproto.Version,
		Mode:            mode.String(),
		Tick:            tick,
	}, tick, true)
}
