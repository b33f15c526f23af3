package audio

import (
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"github.com/jscyril/crossfade_player/api"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

var _ api.Output = (*SpeakerOutput)(nil)

// SpeakerOutput is one stream on the device mixer. It starts paused and
// silent; a player attaches its source to it once playback begins. All of
// its state is guarded by the device lock.
type SpeakerOutput struct {
	device *Device

	ctrl    *beep.Ctrl
	volume  *effects.Volume
	stopped bool
}

func newSpeakerOutput(d *Device) *SpeakerOutput {
	ctrl := &beep.Ctrl{Paused: true}
	return &SpeakerOutput{
		device: d,
		ctrl:   ctrl,
		volume: &effects.Volume{
			Streamer: ctrl,
			Base:     2,
			Silent:   true,
		},
	}
}

// Stream implements beep.Streamer. It is only called by the device with the
// device lock held. Once the attached source runs dry the output keeps
// producing silence until it is stopped.
func (o *SpeakerOutput) Stream(samples [][2]float64) (int, bool) {
	if o.stopped {
		return 0, false
	}
	if o.ctrl.Streamer == nil {
		silence(samples)
		return len(samples), true
	}

	n, ok := o.volume.Stream(samples)
	if !ok || n < len(samples) {
		o.ctrl.Streamer = nil
		silence(samples[n:])
	}
	return len(samples), true
}

func (o *SpeakerOutput) Err() error {
	return nil
}

// SetVolume maps the linear amplitude v onto the base 2 volume effect.
func (o *SpeakerOutput) SetVolume(v float64) {
	o.device.mu.Lock()
	defer o.device.mu.Unlock()

	if v <= 0 || math.IsNaN(v) {
		o.volume.Silent = true
		return
	}
	o.volume.Silent = false
	o.volume.Volume = math.Log2(math.Min(v, 1))
}

func (o *SpeakerOutput) Pause() {
	o.device.mu.Lock()
	o.ctrl.Paused = true
	o.device.mu.Unlock()
}

func (o *SpeakerOutput) Resume() {
	o.device.mu.Lock()
	o.ctrl.Paused = false
	o.device.mu.Unlock()
}

// Stop detaches the source. The mixer drops the output on its next pass.
func (o *SpeakerOutput) Stop() {
	o.device.mu.Lock()
	o.stopped = true
	o.ctrl.Streamer = nil
	o.device.mu.Unlock()
}

// Drain blocks long enough for the speaker to render what it has buffered.
func (o *SpeakerOutput) Drain() {
	time.Sleep(o.device.buffer)
}

// attachLocked connects s to the output. The caller holds the device lock.
func (o *SpeakerOutput) attachLocked(s beep.Streamer) error {
	if o.stopped {
		return playerrors.ErrOutputStopped
	}
	o.ctrl.Streamer = s
	return nil
}

func silence(samples [][2]float64) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
}
