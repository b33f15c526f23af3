package api

type EventType int

const (
	EventPlaybackState EventType = iota
	EventStreamState
	EventVolume
	EventPosition
)

// AllEventTypes lists every event type published by the transport.
func AllEventTypes() []EventType {
	return []EventType{EventPlaybackState, EventStreamState, EventVolume, EventPosition}
}

// AudioEvent is a notification published by the transport. Payload is one of
// PlaybackChange, StreamChange, VolumeChange or PositionChange.
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}

type PlaybackChange struct {
	State PlaybackState
}

type StreamChange struct {
	State StreamState
	URI   string
}

type VolumeChange struct {
	Volume float64
	Muted  bool
}

type PositionChange struct {
	Seconds float64
}
