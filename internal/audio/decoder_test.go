package audio

import (
	"errors"
	"path/filepath"
	"testing"

	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/music/song.mp3", true},
		{"/music/song.MP3", true},
		{"/music/song.wav", true},
		{"/music/song.flac", true},
		{"/music/song.ogg", false},
		{"/music/song.aac", false},
		{"/music/song.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			result := IsSupported(tt.path)
			if result != tt.expected {
				t.Errorf("IsSupported(%s) = %v, want %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()

	if len(formats) == 0 {
		t.Error("SupportedFormats should return at least one format")
	}

	expected := map[string]bool{".mp3": true, ".wav": true, ".flac": true}
	for _, f := range formats {
		if !expected[f] {
			t.Errorf("Unexpected format: %s", f)
		}
	}
}

func TestPathFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"file:///music/a.mp3", "/music/a.mp3"},
		{"/music/a.mp3", "/music/a.mp3"},
		{"relative/a.flac", "relative/a.flac"},
	}

	for _, tt := range tests {
		if got := PathFromURI(tt.uri); got != tt.want {
			t.Errorf("PathFromURI(%s) = %s, want %s", tt.uri, got, tt.want)
		}
	}
}

func TestOpenURIErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		uri  string
		want error
	}{
		{"unsupported extension", "file://" + filepath.Join(dir, "a.ogg"), playerrors.ErrInvalidFormat},
		{"missing file", filepath.Join(dir, "missing.mp3"), playerrors.ErrOpenFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := OpenURI(tt.uri)
			if !errors.Is(err, tt.want) {
				t.Errorf("OpenURI(%s) error = %v, want %v", tt.uri, err, tt.want)
			}
		})
	}
}
