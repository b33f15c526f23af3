package transport

import (
	"sync"

	"github.com/jscyril/crossfade_player/api"
)

type eventKind int

const (
	eventBuffered eventKind = iota
	eventStarted
	eventFinished
	eventOpenFailed
	eventDestroying
	eventMixPoint
	eventCrossfaderEmptied
)

func (k eventKind) String() string {
	switch k {
	case eventBuffered:
		return "buffered"
	case eventStarted:
		return "started"
	case eventFinished:
		return "finished"
	case eventOpenFailed:
		return "open_failed"
	case eventDestroying:
		return "destroying"
	case eventMixPoint:
		return "mix_point"
	case eventCrossfaderEmptied:
		return "crossfader_emptied"
	default:
		return "unknown"
	}
}

// playerEvent is a callback from a player or the crossfader, queued for the
// transport's dispatcher.
type playerEvent struct {
	kind     eventKind
	player   api.Player
	mixPoint int
	seconds  float64
}

// inbox implements api.Listener by queueing every callback, in arrival
// order, for a single consumer.
type inbox struct {
	events chan playerEvent
	done   chan struct{}
	once   sync.Once
}

var _ api.Listener = (*inbox)(nil)

func newInbox(size int) *inbox {
	return &inbox{
		events: make(chan playerEvent, size),
		done:   make(chan struct{}),
	}
}

func (in *inbox) post(ev playerEvent) {
	select {
	case in.events <- ev:
	case <-in.done:
	}
}

func (in *inbox) close() {
	in.once.Do(func() { close(in.done) })
}

func (in *inbox) OnPlayerBuffered(p api.Player) {
	in.post(playerEvent{kind: eventBuffered, player: p})
}

func (in *inbox) OnPlayerStarted(p api.Player) {
	in.post(playerEvent{kind: eventStarted, player: p})
}

func (in *inbox) OnPlayerFinished(p api.Player) {
	in.post(playerEvent{kind: eventFinished, player: p})
}

func (in *inbox) OnPlayerOpenFailed(p api.Player) {
	in.post(playerEvent{kind: eventOpenFailed, player: p})
}

func (in *inbox) OnPlayerDestroying(p api.Player) {
	in.post(playerEvent{kind: eventDestroying, player: p})
}

func (in *inbox) OnPlayerMixPoint(p api.Player, id int, seconds float64) {
	in.post(playerEvent{kind: eventMixPoint, player: p, mixPoint: id, seconds: seconds})
}
