package transport

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/jscyril/crossfade_player/api"
)

type fakeOutput struct {
	mu      sync.Mutex
	volumes []float64
	paused  bool
	stopped bool
	resumes int
}

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volumes = append(o.volumes, v)
}

func (o *fakeOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
}

func (o *fakeOutput) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	o.resumes++
}

func (o *fakeOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
}

func (o *fakeOutput) volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.volumes) == 0 {
		return -1
	}
	return o.volumes[len(o.volumes)-1]
}

func (o *fakeOutput) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

func (o *fakeOutput) isPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

type fakePlayer struct {
	mu          sync.Mutex
	uri         string
	output      *fakeOutput
	listener    api.Listener
	state       api.StreamState
	duration    float64
	prebuffer   bool
	position    float64
	mixPoints   map[int]float64
	plays       int
	detached    bool
	destroyed   bool
	destroyMode api.DestroyMode
}

func (p *fakePlayer) URI() string { return p.uri }

func (p *fakePlayer) StreamState() api.StreamState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) SetPosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
}

func (p *fakePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) AddMixPoint(id int, offset float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mixPoints[id] = offset
}

func (p *fakePlayer) HasCapability(c api.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c == api.CapabilityPrebuffer && p.prebuffer
}

func (p *fakePlayer) Detach(l api.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == l {
		p.listener = nil
		p.detached = true
	}
}

func (p *fakePlayer) Destroy(mode api.DestroyMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
	p.destroyMode = mode
	p.state = api.StreamDestroyed
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) isDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

func (p *fakePlayer) isDetached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detached
}

func (p *fakePlayer) currentListener() api.Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener
}

type fakeFactory struct {
	mu       sync.Mutex
	created  []*fakePlayer
	duration map[string]float64
	err      error
}

func (f *fakeFactory) Create(uri string, out api.Output, mode api.DestroyMode, l api.Listener, gain api.Gain) (api.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	duration, ok := f.duration[uri]
	if !ok {
		duration = 180
	}
	p := &fakePlayer{
		uri:       uri,
		output:    out.(*fakeOutput),
		listener:  l,
		state:     api.StreamBuffering,
		duration:  duration,
		prebuffer: true,
		mixPoints: make(map[int]float64),
	}
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

type fakeOutputs struct {
	mu      sync.Mutex
	created []*fakeOutput
	err     error
}

func (f *fakeOutputs) SelectedOutput() (api.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o := &fakeOutput{}
	f.created = append(f.created, o)
	return o, nil
}

var errFakeCreate = errors.New("fake create failure")

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// drain returns every event queued on ch without blocking.
func drain(ch <-chan api.AudioEvent) []api.AudioEvent {
	var out []api.AudioEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func streamChanges(evs []api.AudioEvent) []api.StreamChange {
	var out []api.StreamChange
	for _, ev := range evs {
		if change, ok := ev.Payload.(api.StreamChange); ok {
			out = append(out, change)
		}
	}
	return out
}

func playbackChanges(evs []api.AudioEvent) []api.PlaybackState {
	var out []api.PlaybackState
	for _, ev := range evs {
		if change, ok := ev.Payload.(api.PlaybackChange); ok {
			out = append(out, change.State)
		}
	}
	return out
}

func countType(evs []api.AudioEvent, eventType api.EventType) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func assertSingleOwnership(t *testing.T, tr *Transport) {
	t.Helper()
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if a, n := tr.active.player(), tr.next.player(); a != nil && a == n {
		t.Fatalf("Player %s is held by both slots", a.URI())
	}
}
