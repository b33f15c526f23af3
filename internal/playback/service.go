// Package playback drives the transport from the playback queue.
package playback

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/internal/playlist"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// restartThreshold is how far into a track Previous restarts it instead of
// going back.
const restartThreshold = 3.0

// Transport is the part of *transport.Transport the service uses.
type Transport interface {
	Start(uri string, gain api.Gain, mode api.StartMode)
	PrepareNextTrack(uri string, gain api.Gain)
	Stop()
	Pause() bool
	Resume() bool

	Uri() string
	NextURI() string
	PlaybackState() api.PlaybackState
	StreamState() api.StreamState

	Position() float64
	SetPosition(seconds float64)
	GetDuration() float64

	Volume() float64
	SetVolume(v float64)
	IsMuted() bool
	SetMuted(muted bool)

	Subscribe(eventType api.EventType) <-chan api.AudioEvent
	Unsubscribe(ch <-chan api.AudioEvent)
}

// Service plays the queue through the transport. After every start it
// pre-buffers the queue's successor so the transport can crossfade into it,
// and it follows the queue along when the transport advances on its own.
type Service struct {
	mu        sync.Mutex
	transport Transport
	queue     *playlist.Queue
	prepared  *api.Track

	log *log.Entry
}

func NewService(t Transport, q *playlist.Queue) *Service {
	return &Service{
		transport: t,
		queue:     q,
		log:       log.WithField("component", "playback"),
	}
}

func (s *Service) Queue() *playlist.Queue {
	return s.queue
}

// Play starts the track at index, or the current track if index is negative.
func (s *Service) Play(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index >= 0 {
		if err := s.queue.JumpTo(index); err != nil {
			return err
		}
	}
	track := s.queue.Current()
	if track == nil {
		return playerrors.ErrEmptyQueue
	}
	s.startLocked(track)
	return nil
}

func (s *Service) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.queue.Next()
	if track == nil {
		return playerrors.ErrEmptyQueue
	}
	s.startLocked(track)
	return nil
}

// Previous restarts the current track if it has played for a few seconds,
// and otherwise starts the previous one.
func (s *Service) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport.Uri() != "" && s.transport.Position() > restartThreshold {
		s.transport.SetPosition(0)
		return nil
	}

	track := s.queue.Previous()
	if track == nil {
		return playerrors.ErrEmptyQueue
	}
	s.startLocked(track)
	return nil
}

func (s *Service) Pause() error {
	if !s.transport.Pause() {
		return playerrors.ErrNoActivePlayer
	}
	return nil
}

// Resume continues playback, starting the current track if nothing is loaded.
func (s *Service) Resume() error {
	if s.transport.Resume() {
		return nil
	}
	return s.Play(-1)
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prepared = nil
	s.transport.Stop()
}

func (s *Service) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return playerrors.ErrInvalidVolume
	}
	s.transport.SetVolume(v)
	return nil
}

func (s *Service) SetMuted(muted bool) {
	s.transport.SetMuted(muted)
}

func (s *Service) Seek(seconds float64) error {
	if s.transport.Uri() == "" {
		return playerrors.ErrNoActivePlayer
	}
	if seconds < 0 {
		seconds = 0
	}
	s.transport.SetPosition(seconds)
	return nil
}

// SetRepeatMode changes the repeat mode and re-prepares the successor.
func (s *Service) SetRepeatMode(mode api.RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.SetRepeatMode(mode)
	if s.transport.Uri() != "" {
		s.prepareNextLocked()
	}
}

// SetShuffle shuffles or restores the queue and re-prepares the successor.
func (s *Service) SetShuffle(shuffle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shuffle {
		s.queue.Shuffle()
	} else {
		s.queue.Unshuffle()
	}
	if s.transport.Uri() != "" {
		s.prepareNextLocked()
	}
}

func (s *Service) Status() api.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := api.Status{
		State:       s.transport.PlaybackState().String(),
		Stream:      s.transport.StreamState().String(),
		NextURI:     s.transport.NextURI(),
		Index:       s.queue.Index(),
		QueueLength: s.queue.Len(),
		Position:    s.transport.Position(),
		Duration:    s.transport.GetDuration(),
		Volume:      s.transport.Volume(),
		Muted:       s.transport.IsMuted(),
		Repeat:      s.queue.GetRepeatMode().String(),
		Shuffle:     s.queue.IsShuffled(),
	}
	if track := s.queue.Current(); track != nil && track.URI == s.transport.Uri() {
		copied := *track
		status.Track = &copied
	}
	return status
}

// Run follows transport driven track changes until ctx is cancelled or the
// transport is closed.
func (s *Service) Run(ctx context.Context) {
	events := s.transport.Subscribe(api.EventStreamState)
	defer s.transport.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if change, ok := ev.Payload.(api.StreamChange); ok && change.State == api.StreamPlaying {
				s.follow(change.URI)
			}
		}
	}
}

// follow moves the queue along when the transport started the prepared
// track by itself, at a mix point or at the end of a short track.
func (s *Service) follow(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prepared == nil || s.prepared.URI != uri || s.transport.NextURI() != "" {
		return
	}

	s.queue.Next()
	s.log.WithField("uri", uri).Info("transport advanced to the next track")
	s.prepareNextLocked()
}

func (s *Service) startLocked(track *api.Track) {
	s.log.WithFields(log.Fields{
		"uri":   track.URI,
		"title": track.Title,
	}).Info("playing")

	s.transport.Start(track.URI, track.Gain, api.StartImmediate)
	s.prepareNextLocked()
}

// prepareNextLocked pre-buffers the queue's successor. Without a successor
// the next slot is cleared.
func (s *Service) prepareNextLocked() {
	next := s.queue.PeekNext()
	if next == nil {
		s.prepared = nil
		s.transport.PrepareNextTrack("", api.Gain{})
		return
	}
	if s.transport.NextURI() == next.URI {
		s.prepared = next
		return
	}

	s.transport.PrepareNextTrack(next.URI, next.Gain)
	if s.transport.NextURI() != next.URI {
		s.prepared = nil
		return
	}
	s.prepared = next
}
