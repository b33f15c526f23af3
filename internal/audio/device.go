// Package audio implements the transport's players and outputs on top of
// faiface/beep. A single Device owns the speaker and a mixer; every output
// handed out by the device is one stream on that mixer, so two tracks can be
// audible at once while they crossfade.
package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
)

var _ api.OutputSelector = (*Device)(nil)

// Device mixes the streams of its outputs into the speaker.
//
// mu guards the mixer and the state of every SpeakerOutput. It is held while
// the speaker pulls samples, so it is always taken before a player's lock.
type Device struct {
	sampleRate beep.SampleRate
	buffer     time.Duration

	mu     sync.Mutex
	mixer  beep.Mixer
	opened bool

	log *log.Entry
}

// NewDevice creates a device rendering at sampleRate. buffer is the speaker
// buffer length, which bounds latency and the time Drain waits.
func NewDevice(sampleRate int, buffer time.Duration) *Device {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Device{
		sampleRate: beep.SampleRate(sampleRate),
		buffer:     buffer,
		log:        log.WithField("component", "audio"),
	}
}

// Open initializes the speaker and starts pulling from the mixer.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened {
		return nil
	}
	if err := speaker.Init(d.sampleRate, d.sampleRate.N(d.buffer)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(d)
	d.opened = true

	d.log.WithFields(log.Fields{
		"sample_rate": int(d.sampleRate),
		"buffer":      d.buffer,
	}).Info("audio device opened")
	return nil
}

func (d *Device) Close() {
	d.mu.Lock()
	opened := d.opened
	d.opened = false
	d.mixer.Clear()
	d.mu.Unlock()

	if opened {
		speaker.Close()
	}
}

func (d *Device) SampleRate() beep.SampleRate {
	return d.sampleRate
}

// Stream implements beep.Streamer. The mixer never drains, so the speaker
// keeps pulling silence while nothing is playing.
func (d *Device) Stream(samples [][2]float64) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mixer.Stream(samples)
}

func (d *Device) Err() error {
	return nil
}

// SelectedOutput adds a new, paused and silent output to the mixer.
func (d *Device) SelectedOutput() (api.Output, error) {
	o := newSpeakerOutput(d)

	d.mu.Lock()
	d.mixer.Add(o)
	d.mu.Unlock()

	return o, nil
}

// Streams returns the number of outputs currently mixed.
func (d *Device) Streams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mixer.Len()
}
