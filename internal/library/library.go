package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jscyril/crossfade_player/api"
	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// Library is the in-memory set of tracks found by scanning, keyed by ID.
type Library struct {
	mu      sync.RWMutex
	tracks  map[string]*api.Track
	scanner *Scanner
}

// NewLibrary creates a new empty library
func NewLibrary() *Library {
	return &Library{
		tracks:  make(map[string]*api.Track),
		scanner: NewScanner(4),
	}
}

// AddTrack adds a track, replacing any track with the same ID.
func (l *Library) AddTrack(track *api.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks[track.ID] = track
}

// GetTrack returns a track by ID
func (l *Library) GetTrack(id string) (*api.Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	track, exists := l.tracks[id]
	if !exists {
		return nil, playerrors.ErrTrackNotFound
	}
	return track, nil
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// GetAllTracks returns all tracks sorted by artist, album, track number and
// finally URI.
func (l *Library) GetAllTracks() []api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tracks := make([]api.Track, 0, len(l.tracks))
	for _, track := range l.tracks {
		tracks = append(tracks, *track)
	}

	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Artist != tracks[j].Artist {
			return tracks[i].Artist < tracks[j].Artist
		}
		if tracks[i].Album != tracks[j].Album {
			return tracks[i].Album < tracks[j].Album
		}
		if tracks[i].TrackNum != tracks[j].TrackNum {
			return tracks[i].TrackNum < tracks[j].TrackNum
		}
		return tracks[i].URI < tracks[j].URI
	})

	return tracks
}

// Search searches tracks by query string (matches title, artist and album)
func (l *Library) Search(query string) []api.Track {
	query = strings.ToLower(query)
	var results []api.Track

	for _, track := range l.GetAllTracks() {
		if strings.Contains(strings.ToLower(track.Title), query) ||
			strings.Contains(strings.ToLower(track.Artist), query) ||
			strings.Contains(strings.ToLower(track.Album), query) {
			results = append(results, track)
		}
	}
	return results
}

// Scan scans paths and adds the tracks found. Files that could not be read
// are returned as errors; the scan itself keeps going.
func (l *Library) Scan(ctx context.Context, paths []string) []error {
	tracks, errs := l.scanner.Scan(ctx, paths)

	var (
		scanErrors []error
		done       = make(chan struct{})
	)
	go func() {
		defer close(done)
		for err := range errs {
			scanErrors = append(scanErrors, err)
		}
	}()

	count := 0
	for track := range tracks {
		l.AddTrack(track)
		count++
	}
	<-done

	log.WithFields(log.Fields{
		"component": "library",
		"tracks":    count,
		"errors":    len(scanErrors),
	}).Info("scan complete")
	return scanErrors
}

// AddFile adds a single file from any location to the library
func (l *Library) AddFile(filePath string) (*api.Track, error) {
	track, err := l.scanner.ScanFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	l.AddTrack(track)
	return track, nil
}
