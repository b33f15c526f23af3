// Package transport turns a sequence of track URIs into continuous audio,
// crossfading between consecutive tracks.
//
// A Transport owns two slots: the active one, which is audible, and the next
// one, which pre-buffers the successor. Player callbacks are queued and
// handled one at a time by a dispatcher goroutine; every state change happens
// under a single mutex and observers are notified after it is released.
package transport

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/pkg/events"
)

// endOfTrackMixPoint is the mix point id used to begin the outbound fade.
const endOfTrackMixPoint = 1001

// Config holds the tunables of a Transport.
type Config struct {
	// Crossfade is the length of each fade. Tracks not longer than four
	// crossfades are never faded.
	Crossfade time.Duration
	FadeTick  time.Duration
	Volume    float64
	InboxSize int
}

func DefaultConfig() Config {
	return Config{
		Crossfade: 1500 * time.Millisecond,
		FadeTick:  50 * time.Millisecond,
		Volume:    1.0,
		InboxSize: 64,
	}
}

// Transport is the playback transport. All methods are safe for concurrent
// use.
type Transport struct {
	mu sync.Mutex

	volume            float64
	muted             bool
	playbackState     api.PlaybackState
	activePlayerState api.StreamState

	active *playerContext
	next   *playerContext

	crossfader *Crossfader
	crossfade  time.Duration

	players  api.PlayerFactory
	outputs  api.OutputSelector
	listener api.Listener
	inbox    *inbox
	bus      *events.EventBus
	cancel   context.CancelFunc

	log *log.Entry
}

// New creates a stopped transport. Players are created through players and
// rendered into outputs handed out by outputs.
func New(cfg Config, players api.PlayerFactory, outputs api.OutputSelector) *Transport {
	defaults := DefaultConfig()
	if cfg.Crossfade <= 0 {
		cfg.Crossfade = defaults.Crossfade
	}
	if cfg.FadeTick <= 0 {
		cfg.FadeTick = defaults.FadeTick
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}

	t := &Transport{
		volume:        clamp(cfg.Volume),
		playbackState: api.PlaybackStopped,
		crossfade:     cfg.Crossfade,
		players:       players,
		outputs:       outputs,
		inbox:         newInbox(cfg.InboxSize),
		bus:           events.NewEventBus(),
		log:           log.WithField("component", "transport"),
	}
	t.listener = t.inbox
	t.crossfader = NewCrossfader(cfg.FadeTick, func() {
		t.inbox.post(playerEvent{kind: eventCrossfaderEmptied})
	})
	t.crossfader.SetTargetVolume(t.volume)
	t.active = newPlayerContext(t, t.crossfader)
	t.next = newPlayerContext(t, t.crossfader)
	return t
}

// Open starts the callback dispatcher and the crossfader.
func (t *Transport) Open(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx)
	go t.crossfader.Run(ctx)
}

// Close stops playback, waits for fades in flight to finish and releases
// every subscriber.
func (t *Transport) Close() {
	t.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*t.crossfade+time.Second)
	t.crossfader.Drain(ctx)
	cancel()

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	t.inbox.close()
	t.bus.Close()
}

func (t *Transport) run(ctx context.Context) {
	defer t.inbox.close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.inbox.events:
			t.dispatch(ev)
		}
	}
}

func (t *Transport) dispatch(ev playerEvent) {
	switch ev.kind {
	case eventBuffered:
		t.onPlayerBuffered(ev.player)
	case eventStarted:
		t.onPlayerStarted(ev.player)
	case eventFinished:
		t.onPlayerFinished(ev.player)
	case eventOpenFailed:
		t.onPlayerOpenFailed(ev.player)
	case eventDestroying:
		t.onPlayerDestroying(ev.player)
	case eventMixPoint:
		t.onPlayerMixPoint(ev.player, ev.mixPoint, ev.seconds)
	case eventCrossfaderEmptied:
		t.onCrossfaderEmptied()
	}
}

// Subscribe returns a channel receiving events of the given type.
func (t *Transport) Subscribe(eventType api.EventType) <-chan api.AudioEvent {
	return t.bus.Subscribe(eventType)
}

// SubscribeAll returns a channel receiving every event.
func (t *Transport) SubscribeAll() <-chan api.AudioEvent {
	return t.bus.SubscribeAll()
}

func (t *Transport) Unsubscribe(ch <-chan api.AudioEvent) {
	t.bus.Unsubscribe(ch)
}

func (t *Transport) PlaybackState() api.PlaybackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playbackState
}

func (t *Transport) StreamState() api.StreamState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activePlayerState
}

// Uri returns the URI of the active track, or "" when there is none.
func (t *Transport) Uri() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active.uri()
}

// NextURI returns the URI of the pre-buffered successor, or "".
func (t *Transport) NextURI() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.uri()
}

// PrepareNextTrack starts buffering uri as the successor of the active track.
func (t *Transport) PrepareNextTrack(uri string, gain api.Gain) {
	var b batch

	t.mu.Lock()
	if err := t.next.reset(&b, uri, gain, false); err != nil {
		t.log.WithError(err).WithField("uri", uri).Warn("could not prepare next track")
	}
	t.mu.Unlock()

	t.publish(b)
}

// Start plays uri. If uri is already buffered as the next track, that player
// is promoted instead of opening the source again.
func (t *Transport) Start(uri string, gain api.Gain, mode api.StartMode) {
	var b batch

	t.mu.Lock()
	t.log.WithField("uri", uri).Info("trying to play")

	immediate := mode == api.StartImmediate
	if next := t.next.player(); next != nil && next.URI() == uri {
		t.active.reset(&b, "", api.Gain{}, false)
		t.next.transferTo(t.active)

		if immediate {
			t.active.start(t.effectiveVolumeLocked())
		}

		player := t.active.player()
		t.raiseStreamLocked(&b, api.StreamBuffering, player)
		if state := player.StreamState(); state != api.StreamBuffering {
			t.raiseStreamLocked(&b, state, player)
		}
	} else {
		err := t.active.reset(&b, uri, gain, immediate)
		t.next.stop(&b)

		if err != nil {
			t.log.WithError(err).WithField("uri", uri).Error("could not open track")
			t.streamEventLocked(&b, api.StreamOpenFailed, uri)
			t.stopLocked(&b)
		} else {
			t.raiseStreamLocked(&b, api.StreamBuffering, t.active.player())
		}
	}
	t.mu.Unlock()

	t.publish(b)
}

// Stop fades out or drains both slots and stops the transport.
func (t *Transport) Stop() {
	var b batch

	t.mu.Lock()
	t.stopLocked(&b)
	t.mu.Unlock()

	t.publish(b)
}

// StopImmediately is like Stop, but tears both slots down without fading.
func (t *Transport) StopImmediately() {
	var b batch

	t.mu.Lock()
	t.active.stop(&b)
	t.next.stop(&b)
	t.setPlaybackStateLocked(&b, api.PlaybackStopped)
	t.mu.Unlock()

	t.publish(b)
}

// ReloadOutput stops playback so that the next start picks up the newly
// selected output.
func (t *Transport) ReloadOutput() {
	t.Stop()
}

// Pause reports false if there is nothing to pause.
func (t *Transport) Pause() bool {
	var b batch

	t.mu.Lock()
	t.crossfader.Pause()
	t.active.pause()
	ok := !t.active.isEmpty()
	if ok {
		t.setPlaybackStateLocked(&b, api.PlaybackPaused)
	}
	t.mu.Unlock()

	t.publish(b)
	return ok
}

// Resume reports false if there is nothing to resume.
func (t *Transport) Resume() bool {
	var b batch

	t.mu.Lock()
	t.crossfader.Resume()
	t.active.resume(t.effectiveVolumeLocked())
	ok := !t.active.isEmpty()
	if ok {
		t.setPlaybackStateLocked(&b, api.PlaybackPlaying)
	}
	t.mu.Unlock()

	t.publish(b)
	return ok
}

// Position returns the playback position of the active track in seconds.
func (t *Transport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p := t.active.player(); p != nil {
		return p.Position()
	}
	return 0
}

func (t *Transport) SetPosition(seconds float64) {
	var b batch

	t.mu.Lock()
	if p := t.active.player(); p != nil {
		t.setPlaybackStateLocked(&b, api.PlaybackPlaying)
		p.SetPosition(seconds)
		b.add(api.EventPosition, api.PositionChange{Seconds: seconds})
	}
	t.mu.Unlock()

	t.publish(b)
}

// GetDuration returns the duration of the active track in seconds, or -1.
func (t *Transport) GetDuration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p := t.active.player(); p != nil {
		return p.Duration()
	}
	return -1
}

func (t *Transport) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *Transport) IsMuted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// SetVolume clamps v to [0, 1] and applies it to both slots. Changing the
// volume unmutes the transport.
func (t *Transport) SetVolume(v float64) {
	var b batch
	v = clamp(v)

	t.mu.Lock()
	if v != t.volume {
		t.volume = v
		t.muted = false
		t.active.setVolume(v)
		t.next.setVolume(v)
		t.crossfader.SetTargetVolume(v)
		b.add(api.EventVolume, api.VolumeChange{Volume: v})
	}
	t.mu.Unlock()

	t.publish(b)
}

// SetMuted silences both slots. Unmuting restores the volume of every output
// that is not being faded; a fade in flight keeps control of its output.
func (t *Transport) SetMuted(muted bool) {
	var b batch

	t.mu.Lock()
	if t.muted != muted {
		t.muted = muted
		if muted {
			t.active.setVolume(0)
			t.next.setVolume(0)
			t.crossfader.SetTargetVolume(0)
		} else {
			t.crossfader.SetTargetVolume(t.volume)
			if !t.crossfader.Contains(t.active.player()) {
				t.active.setVolume(t.volume)
			}
			if !t.crossfader.Contains(t.next.player()) {
				t.next.setVolume(t.volume)
			}
		}
		b.add(api.EventVolume, api.VolumeChange{Volume: t.volume, Muted: muted})
	}
	t.mu.Unlock()

	t.publish(b)
}

func (t *Transport) onPlayerBuffered(p api.Player) {
	var b batch

	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.publish(b)
	}()

	if !t.holdsLocked(p) {
		t.ignore(eventBuffered, p)
		return
	}

	duration := p.Duration()
	crossfade := t.crossfade.Seconds()

	// Short tracks get no mix point and are never faded.
	canFade := p.HasCapability(api.CapabilityPrebuffer) && duration > crossfade*4
	if canFade {
		p.AddMixPoint(endOfTrackMixPoint, duration-crossfade)
	}

	if p == t.active.player() {
		t.active.canFade = canFade
		if t.active.startImmediate {
			t.active.start(t.effectiveVolumeLocked())
		}
		t.raiseStreamLocked(&b, api.StreamBuffered, p)
		t.setPlaybackStateLocked(&b, api.PlaybackPrepared)
	} else {
		t.next.canFade = canFade
	}
}

func (t *Transport) onPlayerStarted(p api.Player) {
	var b batch

	t.mu.Lock()
	if t.holdsLocked(p) {
		t.raiseStreamLocked(&b, api.StreamPlaying, p)
		t.setPlaybackStateLocked(&b, api.PlaybackPlaying)
	} else {
		t.ignore(eventStarted, p)
	}
	t.mu.Unlock()

	t.publish(b)
}

// onPlayerFinished handles streams that ended without crossing their end of
// track mix point: tracks too short to have one, or whose reported duration
// made it unreachable.
func (t *Transport) onPlayerFinished(p api.Player) {
	var b batch

	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.publish(b)
	}()

	if !t.holdsLocked(p) {
		t.ignore(eventFinished, p)
		return
	}

	t.raiseStreamLocked(&b, api.StreamFinished, p)
	t.active.stopIf(&b, p)
	t.next.stopIf(&b, p)

	if !t.next.isEmpty() {
		t.next.transferTo(t.active)
		t.active.start(t.effectiveVolumeLocked())
		t.log.WithField("uri", t.active.uri()).Info("advanced to next track")
	} else {
		t.stopLocked(&b)
	}
}

func (t *Transport) onPlayerOpenFailed(p api.Player) {
	var b batch

	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.publish(b)
	}()

	if !t.holdsLocked(p) {
		t.ignore(eventOpenFailed, p)
		return
	}

	t.log.WithField("uri", p.URI()).Warn("player failed to open")

	if p == t.active.player() {
		t.active.reset(&b, "", api.Gain{}, false)
		t.streamEventLocked(&b, api.StreamOpenFailed, p.URI())
	} else {
		t.next.reset(&b, "", api.Gain{}, false)
	}
	t.stopLocked(&b)
}

func (t *Transport) onPlayerDestroying(p api.Player) {
	var b batch

	t.mu.Lock()
	t.raiseStreamLocked(&b, api.StreamDestroyed, p)
	t.mu.Unlock()

	t.publish(b)
}

func (t *Transport) onPlayerMixPoint(p api.Player, id int, seconds float64) {
	var b batch

	t.mu.Lock()
	if id == endOfTrackMixPoint && p != nil && p == t.active.player() {
		t.log.WithFields(log.Fields{
			"uri":     p.URI(),
			"seconds": seconds,
		}).Debug("end of track mix point")

		t.active.reset(&b, "", api.Gain{}, false)
		t.next.transferTo(t.active)

		if !t.active.isEmpty() {
			t.active.start(t.effectiveVolumeLocked())
			t.log.WithField("uri", t.active.uri()).Info("crossfading to next track")
		} else {
			t.setPlaybackStateLocked(&b, api.PlaybackStopped)
		}
	}
	t.mu.Unlock()

	t.publish(b)
}

func (t *Transport) onCrossfaderEmptied() {
	var b batch

	t.mu.Lock()
	if t.active.isEmpty() && t.next.isEmpty() {
		t.stopLocked(&b)
	}
	t.mu.Unlock()

	t.publish(b)
}

func (t *Transport) stopLocked(b *batch) {
	t.active.reset(b, "", api.Gain{}, false)
	t.next.reset(b, "", api.Gain{}, false)
	t.setPlaybackStateLocked(b, api.PlaybackStopped)
}

func (t *Transport) holdsLocked(p api.Player) bool {
	return p != nil && (p == t.active.player() || p == t.next.player())
}

func (t *Transport) ignore(kind eventKind, p api.Player) {
	entry := t.log.WithField("event", kind)
	if p != nil {
		entry = entry.WithField("uri", p.URI())
	}
	entry.Debug("ignoring callback from a player no longer in a slot")
}

func (t *Transport) effectiveVolumeLocked() float64 {
	if t.muted {
		return 0
	}
	return t.volume
}

func (t *Transport) setPlaybackStateLocked(b *batch, state api.PlaybackState) {
	if t.playbackState != state {
		t.playbackState = state
		b.add(api.EventPlaybackState, api.PlaybackChange{State: state})
	}
}

// raiseStreamLocked records a stream event only if p is the active player.
// Events from former active players, e.g. one fading out, are dropped.
func (t *Transport) raiseStreamLocked(b *batch, state api.StreamState, p api.Player) {
	if p == nil || p != t.active.player() {
		return
	}
	t.streamEventLocked(b, state, p.URI())
}

func (t *Transport) streamEventLocked(b *batch, state api.StreamState, uri string) {
	t.activePlayerState = state
	b.add(api.EventStreamState, api.StreamChange{State: state, URI: uri})
}

func (t *Transport) publish(b batch) {
	for _, ev := range b {
		t.bus.Publish(ev)
	}
}

// batch collects the events raised while the lock is held.
type batch []api.AudioEvent

func (b *batch) add(eventType api.EventType, payload interface{}) {
	*b = append(*b, api.AudioEvent{Type: eventType, Payload: payload})
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
