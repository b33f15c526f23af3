package api

// Listener receives the lifecycle callbacks of a Player. Callbacks arrive on
// goroutines owned by the player, never on the caller's goroutine.
type Listener interface {
	OnPlayerBuffered(p Player)
	OnPlayerStarted(p Player)
	OnPlayerFinished(p Player)
	OnPlayerOpenFailed(p Player)
	OnPlayerDestroying(p Player)
	OnPlayerMixPoint(p Player, id int, seconds float64)
}

// Player decodes a single audio source into an Output.
type Player interface {
	URI() string
	StreamState() StreamState

	// Play starts rendering. Calling Play before the player is buffered
	// defers the start until buffering completes.
	Play()

	// Position and Duration are expressed in seconds. Duration is negative
	// while unknown.
	Position() float64
	SetPosition(seconds float64)
	Duration() float64

	// AddMixPoint registers a callback fired once playback crosses offset.
	AddMixPoint(id int, offset float64)
	HasCapability(c Capability) bool

	// Detach stops delivering callbacks to l.
	Detach(l Listener)
	Destroy(mode DestroyMode)
}

// Output renders audio to a device. Volume is linear in [0, 1].
type Output interface {
	SetVolume(v float64)
	Pause()
	Resume()
	Stop()
}

type PlayerFactory interface {
	Create(uri string, out Output, mode DestroyMode, l Listener, gain Gain) (Player, error)
}

// OutputSelector hands out a fresh Output on the currently configured
// backend.
type OutputSelector interface {
	SelectedOutput() (Output, error)
}
