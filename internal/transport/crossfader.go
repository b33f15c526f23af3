package transport

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
)

// Direction of a volume ramp.
type Direction int

const (
	FadeIn Direction = iota
	FadeOut
)

func (d Direction) String() string {
	if d == FadeOut {
		return "fade_out"
	}
	return "fade_in"
}

type owner int

const (
	ownedBySlot owner = iota
	ownedByFader
)

// pair is a player together with the output it renders into. Exactly one
// party is responsible for destroying it: the slot holding it, or the
// crossfader once it has been moved there for a fade out.
type pair struct {
	player api.Player
	output api.Output
	owner  owner
}

type fade struct {
	pair      *pair
	direction Direction
	duration  time.Duration
	elapsed   time.Duration
	paused    bool
}

func (f *fade) progress() float64 {
	if f.duration <= 0 {
		return 1
	}
	p := float64(f.elapsed) / float64(f.duration)
	if p > 1 {
		p = 1
	}
	return p
}

func (f *fade) volume(target float64) float64 {
	if f.direction == FadeOut {
		return target * (1 - f.progress())
	}
	return target * f.progress()
}

// Crossfader ramps the volume of the outputs registered with it. Pairs faded
// out are stopped and destroyed by the crossfader when their ramp completes;
// pairs faded in are left playing.
type Crossfader struct {
	mu        sync.Mutex
	fades     []*fade
	target    float64
	tick      time.Duration
	idle      chan struct{}
	onEmptied func()
	log       *log.Entry
}

// NewCrossfader creates a crossfader that advances its ramps every tick.
// onEmptied is called, outside of any lock, whenever the last fade in flight
// completes.
func NewCrossfader(tick time.Duration, onEmptied func()) *Crossfader {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	idle := make(chan struct{})
	close(idle)
	return &Crossfader{
		target:    1,
		tick:      tick,
		idle:      idle,
		onEmptied: onEmptied,
		log:       log.WithField("component", "crossfader"),
	}
}

// Run advances the fades until ctx is cancelled.
func (c *Crossfader) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.step(c.tick)
		}
	}
}

// SetTargetVolume sets the level fades in reach and fades out start from.
func (c *Crossfader) SetTargetVolume(v float64) {
	c.mu.Lock()
	c.target = v
	c.mu.Unlock()
}

// Fade registers a ramp for p, replacing any ramp already registered for the
// same player. A pair faded out becomes owned by the crossfader.
func (c *Crossfader) Fade(p *pair, direction Direction, duration time.Duration) {
	if p == nil || p.player == nil || p.output == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(p.player, func(f *fade) bool { return true })
	if direction == FadeOut {
		p.owner = ownedByFader
	}
	c.openIdleLocked()
	c.fades = append(c.fades, &fade{
		pair:      p,
		direction: direction,
		duration:  duration,
	})
	c.log.WithFields(log.Fields{
		"uri":       p.player.URI(),
		"direction": direction,
		"duration":  duration,
	}).Debug("fade registered")
}

// Cancel drops the ramp of the given direction for player without touching
// the pair itself.
func (c *Crossfader) Cancel(player api.Player, direction Direction) {
	if player == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(player, func(f *fade) bool { return f.direction == direction })
	if len(c.fades) == 0 {
		c.closeIdleLocked()
	}
}

// Contains reports whether a ramp is registered for player.
func (c *Crossfader) Contains(player api.Player) bool {
	if player == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.fades {
		if f.pair.player == player {
			return true
		}
	}
	return false
}

// Pause freezes every ramp in flight and pauses its output.
func (c *Crossfader) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.fades {
		if !f.paused {
			f.paused = true
			f.pair.output.Pause()
		}
	}
}

// Resume continues the ramps frozen by Pause.
func (c *Crossfader) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.fades {
		if f.paused {
			f.paused = false
			f.pair.output.Resume()
		}
	}
}

// Len returns the number of ramps in flight.
func (c *Crossfader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fades)
}

// Drain waits for every ramp to complete. Paused ramps are resumed. If ctx
// expires first, the remaining ramps are completed at once.
func (c *Crossfader) Drain(ctx context.Context) {
	c.Resume()

	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return
	case <-ctx.Done():
	}

	c.mu.Lock()
	remaining := c.fades
	c.fades = nil
	c.closeIdleLocked()
	target := c.target
	c.mu.Unlock()

	for _, f := range remaining {
		if f.direction == FadeIn {
			f.pair.output.SetVolume(target)
		}
	}
	c.release(remaining)
}

func (c *Crossfader) step(d time.Duration) {
	c.mu.Lock()
	if len(c.fades) == 0 {
		c.mu.Unlock()
		return
	}

	var done []*fade
	remaining := make([]*fade, 0, len(c.fades))
	for _, f := range c.fades {
		if f.paused {
			remaining = append(remaining, f)
			continue
		}
		f.elapsed += d
		f.pair.output.SetVolume(f.volume(c.target))
		if f.progress() >= 1 {
			done = append(done, f)
		} else {
			remaining = append(remaining, f)
		}
	}
	c.fades = remaining
	c.mu.Unlock()

	if len(done) == 0 {
		return
	}
	c.release(done)

	// A fade registered while the lock was released keeps the set alive.
	c.mu.Lock()
	emptied := len(c.fades) == 0
	if emptied {
		c.closeIdleLocked()
	}
	c.mu.Unlock()

	if emptied && c.onEmptied != nil {
		c.onEmptied()
	}
}

// release tears down the pairs whose fade out completed. Called without the
// lock held since destroying a player may block.
func (c *Crossfader) release(done []*fade) {
	for _, f := range done {
		if f.direction != FadeOut || f.pair.owner != ownedByFader {
			continue
		}
		c.log.WithField("uri", f.pair.player.URI()).Debug("fade out complete")
		f.pair.output.Stop()
		f.pair.player.Destroy(api.DestroyNoDrain)
	}
}

func (c *Crossfader) removeLocked(player api.Player, match func(*fade) bool) {
	kept := c.fades[:0]
	for _, f := range c.fades {
		if f.pair.player == player && match(f) {
			continue
		}
		kept = append(kept, f)
	}
	for i := len(kept); i < len(c.fades); i++ {
		c.fades[i] = nil
	}
	c.fades = kept
}

func (c *Crossfader) openIdleLocked() {
	select {
	case <-c.idle:
		c.idle = make(chan struct{})
	default:
	}
}

func (c *Crossfader) closeIdleLocked() {
	select {
	case <-c.idle:
	default:
		close(c.idle)
	}
}
