package transport

import (
	"fmt"

	"github.com/jscyril/crossfade_player/api"
)

// playerContext is a slot holding at most one player/output pair. The
// transport has two of them: the audible one and the pre-buffered successor.
type playerContext struct {
	transport  *Transport
	crossfader *Crossfader

	pair *pair

	// canFade is set once the player is buffered and long enough to be
	// crossfaded in and out.
	canFade        bool
	startImmediate bool
	started        bool
}

func newPlayerContext(t *Transport, c *Crossfader) *playerContext {
	return &playerContext{transport: t, crossfader: c}
}

func (c *playerContext) player() api.Player {
	if c.pair == nil {
		return nil
	}
	return c.pair.player
}

func (c *playerContext) uri() string {
	if c.pair == nil {
		return ""
	}
	return c.pair.player.URI()
}

func (c *playerContext) isEmpty() bool {
	return c.pair == nil
}

// release hands the pair out of the slot, leaving the slot empty.
func (c *playerContext) release() *pair {
	p := c.pair
	c.pair = nil
	c.canFade, c.started = false, false
	return p
}

// reset tears down the current pair and, if uri is not empty, creates a new
// one for it. A started pair that can fade is handed to the crossfader to be
// faded out and destroyed there; anything else is destroyed right away,
// draining the output only when nothing replaces it.
func (c *playerContext) reset(b *batch, uri string, gain api.Gain, startImmediate bool) error {
	c.startImmediate = false

	if c.pair != nil {
		c.transport.raiseStreamLocked(b, api.StreamDestroyed, c.pair.player)
		c.pair.player.Detach(c.transport.listener)

		fadeOut := c.started && c.canFade
		old := c.release()
		c.crossfader.Cancel(old.player, FadeIn)
		if fadeOut {
			c.crossfader.Fade(old, FadeOut, c.transport.crossfade)
		} else {
			mode := api.DestroyDrain
			if uri != "" {
				mode = api.DestroyNoDrain
			}
			old.player.Destroy(mode)
		}
	}

	c.startImmediate = startImmediate
	c.canFade, c.started = false, false

	if uri == "" {
		return nil
	}

	output, err := c.transport.outputs.SelectedOutput()
	if err != nil {
		c.startImmediate = false
		return fmt.Errorf("select output: %w", err)
	}

	player, err := c.transport.players.Create(uri, output, api.DestroyDrain, c.transport.listener, gain)
	if err != nil {
		c.startImmediate = false
		output.Stop()
		return fmt.Errorf("create player: %w", err)
	}

	c.pair = &pair{player: player, output: output, owner: ownedBySlot}
	return nil
}

// transferTo moves the pair into another slot without tearing it down.
func (c *playerContext) transferTo(to *playerContext) {
	to.canFade = c.canFade
	to.started = c.started
	to.pair = c.release()
	c.startImmediate = false
}

// start resumes the output at zero volume, plays the player and then either
// fades it in or jumps straight to volume.
func (c *playerContext) start(volume float64) {
	if c.pair == nil {
		return
	}

	c.started = true
	c.pair.output.SetVolume(0)
	c.pair.output.Resume()
	c.pair.player.Play()

	if c.canFade {
		c.crossfader.Fade(c.pair, FadeIn, c.transport.crossfade)
	} else {
		c.pair.output.SetVolume(volume)
	}
}

// stop destroys the pair immediately, without fading.
func (c *playerContext) stop(b *batch) {
	if c.pair != nil {
		c.pair.output.Stop()
		c.transport.raiseStreamLocked(b, api.StreamDestroyed, c.pair.player)
		c.pair.player.Detach(c.transport.listener)
		c.crossfader.Cancel(c.pair.player, FadeIn)
		c.pair.player.Destroy(api.DestroyNoDrain)
	}

	c.release()
	c.startImmediate = false
}

// stopIf stops the slot only if it still holds p.
func (c *playerContext) stopIf(b *batch, p api.Player) {
	if p != nil && p == c.player() {
		c.stop(b)
	}
}

func (c *playerContext) pause() {
	if c.pair != nil {
		c.pair.output.Pause()
	}
}

func (c *playerContext) resume(volume float64) {
	if !c.started {
		c.start(volume)
		return
	}
	if c.pair != nil {
		c.pair.output.Resume()
		c.pair.player.Play()
	}
}

func (c *playerContext) setVolume(v float64) {
	if c.pair != nil {
		c.pair.output.SetVolume(v)
	}
}
