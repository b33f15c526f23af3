package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// Opener opens and decodes the source behind a URI.
type Opener func(uri string) (beep.StreamSeekCloser, beep.Format, error)

// Factory creates players rendering into the outputs of Device.
type Factory struct {
	Device *Device
	// Open defaults to OpenURI.
	Open Opener
}

var _ api.PlayerFactory = (*Factory)(nil)

func NewFactory(d *Device) *Factory {
	return &Factory{Device: d, Open: OpenURI}
}

// Create returns a player that starts loading uri in the background. out must
// be an output handed out by the factory's device.
func (f *Factory) Create(uri string, out api.Output, mode api.DestroyMode, l api.Listener, gain api.Gain) (api.Player, error) {
	output, ok := out.(*SpeakerOutput)
	if !ok || output.device != f.Device {
		return nil, playerrors.NewPlayerError("create", uri, fmt.Errorf("%w: %T", playerrors.ErrUnsupportedOutput, out))
	}

	open := f.Open
	if open == nil {
		open = OpenURI
	}

	p := &Player{
		uri:      uri,
		device:   f.Device,
		output:   output,
		open:     open,
		gain:     gain,
		mode:     mode,
		listener: l,
		state:    api.StreamBuffering,
		events:   make(chan callback, 16),
		log:      log.WithFields(log.Fields{"component": "audio", "uri": uri}),
	}
	go p.pump()
	go p.load()
	return p, nil
}

type callbackKind int

const (
	callbackBuffered callbackKind = iota
	callbackStarted
	callbackFinished
	callbackOpenFailed
	callbackDestroying
	callbackMixPoint
)

type callback struct {
	kind    callbackKind
	id      int
	seconds float64
}

type mixPoint struct {
	id     int
	offset float64
	fired  bool
}

// Player decodes one source into a SpeakerOutput. Callbacks are delivered in
// order on a goroutine owned by the player.
type Player struct {
	uri    string
	device *Device
	output *SpeakerOutput
	open   Opener
	gain   api.Gain
	mode   api.DestroyMode

	mu            sync.Mutex
	listener      api.Listener
	state         api.StreamState
	source        beep.StreamSeekCloser
	format        beep.Format
	chain         beep.Streamer
	length        int
	mixPoints     []*mixPoint
	playRequested bool
	attached      bool
	reported      bool
	finished      bool
	destroyed     bool
	events        chan callback

	destroyOnce sync.Once
	log         *log.Entry
}

var _ api.Player = (*Player)(nil)

func (p *Player) URI() string {
	return p.uri
}

func (p *Player) StreamState() api.StreamState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) load() {
	source, format, err := p.open(p.uri)

	p.device.mu.Lock()
	defer p.device.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		if err == nil {
			source.Close()
		}
		return
	}
	if err != nil {
		p.log.WithError(err).Warn("could not open source")
		p.state = api.StreamOpenFailed
		p.emitLocked(callback{kind: callbackOpenFailed})
		return
	}

	p.source = source
	p.format = format
	p.length = source.Len()
	p.chain = p.buildChain(source, format)
	p.state = api.StreamBuffered
	p.emitLocked(callback{kind: callbackBuffered})

	if p.playRequested {
		p.attachLocked()
	}
}

// buildChain resamples the source to the device rate and applies the track
// gain.
func (p *Player) buildChain(source beep.Streamer, format beep.Format) beep.Streamer {
	s := source
	if format.SampleRate != p.device.sampleRate {
		s = beep.Resample(4, format.SampleRate, p.device.sampleRate, s)
	}
	if factor := p.gain.Factor(); factor != 1 {
		s = &effects.Gain{Streamer: s, Gain: factor - 1}
	}
	return s
}

// Play attaches the player to its output. Before the source is buffered the
// request is remembered and honored once loading completes.
func (p *Player) Play() {
	p.device.mu.Lock()
	defer p.device.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	if p.source == nil {
		p.playRequested = true
		return
	}
	p.attachLocked()
}

// attachLocked requires both the device and the player lock.
func (p *Player) attachLocked() {
	if p.attached || p.finished {
		return
	}
	if err := p.output.attachLocked(streamerFunc(p.stream)); err != nil {
		p.log.WithError(err).Debug("not attaching to output")
		return
	}
	p.attached = true
}

// stream is pulled by the output with the device lock held.
func (p *Player) stream(samples [][2]float64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed || p.finished || p.chain == nil {
		return 0, false
	}

	n, ok := p.chain.Stream(samples)
	if n > 0 && !p.reported {
		p.reported = true
		p.state = api.StreamPlaying
		p.emitLocked(callback{kind: callbackStarted})
	}

	p.checkMixPointsLocked(p.positionLocked())

	if !ok || n < len(samples) {
		p.finished = true
		p.attached = false
		p.state = api.StreamFinished
		p.emitLocked(callback{kind: callbackFinished})
	}
	return n, ok
}

func (p *Player) checkMixPointsLocked(position float64) {
	for _, mp := range p.mixPoints {
		if !mp.fired && position >= mp.offset {
			mp.fired = true
			p.emitLocked(callback{kind: callbackMixPoint, id: mp.id, seconds: mp.offset})
		}
	}
}

func (p *Player) positionLocked() float64 {
	if p.source == nil {
		return 0
	}
	return p.format.SampleRate.D(p.source.Position()).Seconds()
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// SetPosition seeks the source. Mix points past the new position fire again.
func (p *Player) SetPosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil || p.finished || p.destroyed {
		return
	}

	n := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if n < 0 {
		n = 0
	}
	if p.length > 0 && n >= p.length {
		n = p.length - 1
	}
	if err := p.source.Seek(n); err != nil {
		p.log.WithError(err).Warn("seek failed")
		return
	}

	position := p.positionLocked()
	for _, mp := range p.mixPoints {
		mp.fired = mp.offset < position
	}
}

// Duration is -1 until the source is buffered, and for sources of unknown
// length.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil || p.length <= 0 {
		return -1
	}
	return p.format.SampleRate.D(p.length).Seconds()
}

func (p *Player) AddMixPoint(id int, offset float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, mp := range p.mixPoints {
		if mp.id == id {
			mp.offset = offset
			mp.fired = false
			return
		}
	}
	p.mixPoints = append(p.mixPoints, &mixPoint{id: id, offset: offset})
}

// HasCapability reports prebuffer support for sources of known length.
func (p *Player) HasCapability(c api.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c == api.CapabilityPrebuffer && p.length > 0
}

func (p *Player) Detach(l api.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == l {
		p.listener = nil
	}
}

// Destroy releases the player. With DestroyDrain the output is given time to
// render its buffer before it is stopped.
func (p *Player) Destroy(mode api.DestroyMode) {
	p.destroyOnce.Do(func() {
		p.mu.Lock()
		p.emitLocked(callback{kind: callbackDestroying})
		p.destroyed = true
		p.state = api.StreamDestroyed
		close(p.events)
		source := p.source
		p.source = nil
		p.chain = nil
		p.mu.Unlock()

		if mode == api.DestroyDrain {
			p.output.Drain()
		}
		p.output.Stop()

		if source != nil {
			if err := source.Close(); err != nil {
				p.log.WithError(err).Debug("closing source")
			}
		}
		p.log.WithField("mode", mode).Debug("player destroyed")
	})
}

// emitLocked queues a callback without blocking the audio path.
func (p *Player) emitLocked(cb callback) {
	if p.destroyed {
		return
	}
	select {
	case p.events <- cb:
	default:
		p.log.WithField("callback", cb.kind).Warn("callback queue full, dropping")
	}
}

func (p *Player) currentListener() api.Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener
}

func (p *Player) pump() {
	for cb := range p.events {
		l := p.currentListener()
		if l == nil {
			continue
		}

		switch cb.kind {
		case callbackBuffered:
			l.OnPlayerBuffered(p)
		case callbackStarted:
			l.OnPlayerStarted(p)
		case callbackFinished:
			if p.mode == api.DestroyDrain {
				p.output.Drain()
			}
			l.OnPlayerFinished(p)
		case callbackOpenFailed:
			l.OnPlayerOpenFailed(p)
		case callbackDestroying:
			l.OnPlayerDestroying(p)
		case callbackMixPoint:
			l.OnPlayerMixPoint(p, cb.id, cb.seconds)
		}
	}
}

type streamerFunc func(samples [][2]float64) (int, bool)

func (f streamerFunc) Stream(samples [][2]float64) (int, bool) {
	return f(samples)
}

func (f streamerFunc) Err() error {
	return nil
}
