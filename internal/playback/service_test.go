package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/internal/playlist"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// fakeTransport models the slot behaviour the service relies on: starting
// the prepared URI consumes it.
type fakeTransport struct {
	mu       sync.Mutex
	uri      string
	next     string
	state    api.PlaybackState
	position float64
	volume   float64
	muted    bool
	starts   []string
	prepares []string
	failing  map[string]bool
	events   chan api.AudioEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		volume:  1,
		failing: make(map[string]bool),
		events:  make(chan api.AudioEvent, 8),
	}
}

func (f *fakeTransport) Start(uri string, gain api.Gain, mode api.StartMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == uri {
		f.next = ""
	}
	f.uri = uri
	f.position = 0
	f.state = api.PlaybackPlaying
	f.starts = append(f.starts, uri)
}

func (f *fakeTransport) PrepareNextTrack(uri string, gain api.Gain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares = append(f.prepares, uri)
	if f.failing[uri] {
		f.next = ""
		return
	}
	f.next = uri
}

func (f *fakeTransport) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uri, f.next = "", ""
	f.state = api.PlaybackStopped
}

func (f *fakeTransport) Pause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uri == "" {
		return false
	}
	f.state = api.PlaybackPaused
	return true
}

func (f *fakeTransport) Resume() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uri == "" {
		return false
	}
	f.state = api.PlaybackPlaying
	return true
}

func (f *fakeTransport) Uri() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uri
}

func (f *fakeTransport) NextURI() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *fakeTransport) PlaybackState() api.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) StreamState() api.StreamState { return api.StreamPlaying }

func (f *fakeTransport) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTransport) SetPosition(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = seconds
}

func (f *fakeTransport) GetDuration() float64 { return 180 }

func (f *fakeTransport) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeTransport) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeTransport) IsMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeTransport) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

func (f *fakeTransport) Subscribe(api.EventType) <-chan api.AudioEvent { return f.events }

func (f *fakeTransport) Unsubscribe(<-chan api.AudioEvent) {}

// advance does what the transport does at a mix point.
func (f *fakeTransport) advance() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uri, f.next = f.next, ""
	return f.uri
}

func (f *fakeTransport) lastStart() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.starts) == 0 {
		return ""
	}
	return f.starts[len(f.starts)-1]
}

func newTestService(n int) (*Service, *fakeTransport) {
	q := playlist.NewQueue()
	tracks := make([]*api.Track, n)
	for i := range tracks {
		tracks[i] = &api.Track{
			ID:    fmt.Sprintf("t%d", i),
			URI:   fmt.Sprintf("file:///music/%d.mp3", i),
			Title: fmt.Sprintf("Track %d", i),
			Gain:  api.DefaultGain(),
		}
	}
	q.Set(tracks)

	ft := newFakeTransport()
	return NewService(ft, q), ft
}

func uri(i int) string {
	return fmt.Sprintf("file:///music/%d.mp3", i)
}

func TestPlayStartsAndPreparesSuccessor(t *testing.T) {
	s, ft := newTestService(3)

	if err := s.Play(0); err != nil {
		t.Fatalf("Play returned %v", err)
	}
	if ft.lastStart() != uri(0) {
		t.Errorf("Expected %s started, got %s", uri(0), ft.lastStart())
	}
	if ft.NextURI() != uri(1) {
		t.Errorf("Expected %s prepared, got %s", uri(1), ft.NextURI())
	}
}

func TestPlayErrors(t *testing.T) {
	s, _ := newTestService(0)
	if err := s.Play(-1); !errors.Is(err, playerrors.ErrEmptyQueue) {
		t.Errorf("Expected ErrEmptyQueue, got %v", err)
	}

	s, _ = newTestService(2)
	if err := s.Play(5); !errors.Is(err, playlist.ErrIndexOutOfBounds) {
		t.Errorf("Expected ErrIndexOutOfBounds, got %v", err)
	}
}

func TestNextUsesPreparedTrack(t *testing.T) {
	s, ft := newTestService(3)
	s.Play(0)

	if err := s.Next(); err != nil {
		t.Fatalf("Next returned %v", err)
	}
	if ft.Uri() != uri(1) || ft.NextURI() != uri(2) {
		t.Errorf("Expected %s playing and %s prepared, got %s / %s", uri(1), uri(2), ft.Uri(), ft.NextURI())
	}

	s.Next()
	if ft.NextURI() != "" {
		t.Errorf("Expected no successor at the end of the queue, got %s", ft.NextURI())
	}
	if err := s.Next(); !errors.Is(err, playerrors.ErrEmptyQueue) {
		t.Errorf("Expected ErrEmptyQueue at the end, got %v", err)
	}
}

func TestPrevious(t *testing.T) {
	s, ft := newTestService(3)
	s.Play(1)

	ft.SetPosition(10)
	if err := s.Previous(); err != nil {
		t.Fatal(err)
	}
	if ft.lastStart() != uri(1) || ft.Position() != 0 {
		t.Errorf("Expected the current track to restart, got %s at %v", ft.lastStart(), ft.Position())
	}

	ft.SetPosition(1)
	s.Previous()
	if ft.lastStart() != uri(0) {
		t.Errorf("Expected the previous track, got %s", ft.lastStart())
	}
}

func TestFollowTransportAdvance(t *testing.T) {
	s, ft := newTestService(3)
	s.Play(0)

	s.follow(ft.advance())

	if s.Queue().Index() != 1 {
		t.Errorf("Expected the queue at 1, got %d", s.Queue().Index())
	}
	if ft.NextURI() != uri(2) {
		t.Errorf("Expected %s prepared, got %s", uri(2), ft.NextURI())
	}
}

func TestFollowIgnoresUserStarts(t *testing.T) {
	s, ft := newTestService(3)
	s.Play(0)

	s.follow(uri(0))
	s.follow(uri(1))

	if s.Queue().Index() != 0 {
		t.Errorf("Events for tracks the service started must not move the queue, index %d", s.Queue().Index())
	}
	if ft.lastStart() != uri(0) {
		t.Errorf("Unexpected start %s", ft.lastStart())
	}
}

func TestFollowRepeatOne(t *testing.T) {
	s, ft := newTestService(3)
	s.Queue().SetRepeatMode(api.RepeatOne)
	s.Play(0)

	if ft.NextURI() != uri(0) {
		t.Fatalf("Expected the same track prepared, got %s", ft.NextURI())
	}

	s.follow(ft.advance())

	if s.Queue().Index() != 0 || ft.NextURI() != uri(0) {
		t.Errorf("Expected the track prepared again, index %d next %s", s.Queue().Index(), ft.NextURI())
	}
}

func TestPrepareFailureIsNotFollowed(t *testing.T) {
	s, ft := newTestService(3)
	ft.failing[uri(1)] = true
	s.Play(0)

	s.follow(uri(1))

	if s.Queue().Index() != 0 {
		t.Errorf("A track that was never prepared must not move the queue, index %d", s.Queue().Index())
	}
}

func TestSetRepeatModeReprepares(t *testing.T) {
	s, ft := newTestService(2)
	s.Play(1)
	if ft.NextURI() != "" {
		t.Fatalf("Expected nothing prepared at the end, got %s", ft.NextURI())
	}

	s.SetRepeatMode(api.RepeatAll)

	if ft.NextURI() != uri(0) {
		t.Errorf("Expected the queue to wrap, got %s", ft.NextURI())
	}

	prepares := len(ft.prepares)
	s.SetRepeatMode(api.RepeatAll)
	if len(ft.prepares) != prepares {
		t.Error("An already prepared successor must not be prepared again")
	}
}

func TestRunFollowsStreamEvents(t *testing.T) {
	s, ft := newTestService(3)
	s.Play(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	next := ft.advance()
	ft.events <- api.AudioEvent{
		Type:    api.EventStreamState,
		Payload: api.StreamChange{State: api.StreamPlaying, URI: next},
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Queue().Index() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("The service did not follow the transport")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPauseResume(t *testing.T) {
	s, ft := newTestService(2)

	if err := s.Pause(); !errors.Is(err, playerrors.ErrNoActivePlayer) {
		t.Errorf("Expected ErrNoActivePlayer, got %v", err)
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume returned %v", err)
	}
	if ft.lastStart() != uri(0) {
		t.Errorf("Expected Resume to start the current track, got %s", ft.lastStart())
	}

	if err := s.Pause(); err != nil {
		t.Errorf("Pause returned %v", err)
	}
	if ft.PlaybackState() != api.PlaybackPaused {
		t.Errorf("Expected paused, got %v", ft.PlaybackState())
	}
}

func TestSetVolume(t *testing.T) {
	s, ft := newTestService(1)

	tests := []struct {
		volume  float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.1, true},
		{1.1, true},
	}
	for _, tt := range tests {
		err := s.SetVolume(tt.volume)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetVolume(%v) error = %v, wantErr %v", tt.volume, err, tt.wantErr)
		}
		if err == nil && ft.Volume() != tt.volume {
			t.Errorf("Expected volume %v, got %v", tt.volume, ft.Volume())
		}
	}
}

func TestSeek(t *testing.T) {
	s, ft := newTestService(1)

	if err := s.Seek(10); !errors.Is(err, playerrors.ErrNoActivePlayer) {
		t.Errorf("Expected ErrNoActivePlayer, got %v", err)
	}

	s.Play(0)
	if err := s.Seek(-5); err != nil {
		t.Fatal(err)
	}
	if ft.Position() != 0 {
		t.Errorf("Expected negative positions to clamp to 0, got %v", ft.Position())
	}
}

func TestStatus(t *testing.T) {
	s, _ := newTestService(3)
	s.Play(1)
	s.SetMuted(true)

	status := s.Status()

	if status.State != "playing" || status.Index != 1 || status.QueueLength != 3 {
		t.Errorf("Unexpected status %+v", status)
	}
	if status.Track == nil || status.Track.ID != "t1" {
		t.Errorf("Expected t1 in the status, got %+v", status.Track)
	}
	if status.NextURI != uri(2) || !status.Muted || status.Repeat != "none" {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestStop(t *testing.T) {
	s, ft := newTestService(2)
	s.Play(0)

	s.Stop()

	if ft.Uri() != "" || ft.PlaybackState() != api.PlaybackStopped {
		t.Error("Expected the transport to be stopped")
	}
	s.follow(uri(1))
	if s.Queue().Index() != 0 {
		t.Error("Nothing is prepared after Stop")
	}
}
