package api

import (
	"strings"
	"time"
)

type Track struct {
	ID       string        `json:"id"`
	URI      string        `json:"uri"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Album    string        `json:"album"`
	Duration time.Duration `json:"duration"`
	TrackNum int           `json:"track_number"`
	Gain     Gain          `json:"gain"`
}

// Gain carries the replay gain values of a track. Zero fields are treated as
// unity so that a zero Gain leaves the signal untouched.
type Gain struct {
	Preamp float64 `json:"preamp"`
	Gain   float64 `json:"gain"`
	Peak   float64 `json:"peak"`
}

// DefaultGain returns a gain that does not alter the signal.
func DefaultGain() Gain {
	return Gain{Preamp: 1, Gain: 1, Peak: 1}
}

// Factor returns the linear amplitude multiplier, limited so that the peak
// sample does not clip.
func (g Gain) Factor() float64 {
	preamp, gain := g.Preamp, g.Gain
	if preamp <= 0 {
		preamp = 1
	}
	if gain <= 0 {
		gain = 1
	}
	factor := preamp * gain
	if g.Peak > 0 && factor*g.Peak > 1 {
		factor = 1 / g.Peak
	}
	return factor
}

// PlaybackState is the coarse state of the transport as observed by clients.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackPrepared
	PlaybackPlaying
	PlaybackPaused
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "stopped"
	case PlaybackPrepared:
		return "prepared"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "invalid"
	}
}

// ParsePlaybackState is the inverse of PlaybackState.String. Unknown names
// map to PlaybackStopped and false.
func ParsePlaybackState(str string) (PlaybackState, bool) {
	switch strings.ToLower(str) {
	case "stopped":
		return PlaybackStopped, true
	case "prepared":
		return PlaybackPrepared, true
	case "playing":
		return PlaybackPlaying, true
	case "paused":
		return PlaybackPaused, true
	default:
		return PlaybackStopped, false
	}
}

// StreamState is the fine grained state last reported by the active player.
type StreamState int

const (
	StreamBuffering StreamState = iota
	StreamBuffered
	StreamPlaying
	StreamFinished
	StreamOpenFailed
	StreamDestroyed
)

func (s StreamState) String() string {
	switch s {
	case StreamBuffering:
		return "buffering"
	case StreamBuffered:
		return "buffered"
	case StreamPlaying:
		return "playing"
	case StreamFinished:
		return "finished"
	case StreamOpenFailed:
		return "open_failed"
	case StreamDestroyed:
		return "destroyed"
	default:
		return "invalid"
	}
}

// StartMode tells the transport whether a started track should play as soon
// as it is buffered or wait for an explicit Resume.
type StartMode int

const (
	StartImmediate StartMode = iota
	StartDeferred
)

// DestroyMode controls whether an output may finish rendering what it has
// buffered before a player is torn down.
type DestroyMode int

const (
	DestroyDrain DestroyMode = iota
	DestroyNoDrain
)

func (m DestroyMode) String() string {
	if m == DestroyNoDrain {
		return "no_drain"
	}
	return "drain"
}

type Capability int

const (
	// CapabilityPrebuffer is reported by players that know their length up
	// front and can be buffered ahead of playback.
	CapabilityPrebuffer Capability = iota
)

// RepeatMode controls how the playback queue advances past its ends.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// ParseRepeatMode is the inverse of RepeatMode.String.
func ParseRepeatMode(str string) (RepeatMode, bool) {
	switch strings.ToLower(str) {
	case "none", "off":
		return RepeatNone, true
	case "one":
		return RepeatOne, true
	case "all":
		return RepeatAll, true
	default:
		return RepeatNone, false
	}
}
