package library

import (
	"crypto/md5"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/jscyril/crossfade_player/api"
)

// MetadataReader extracts metadata from audio files
type MetadataReader struct{}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader() *MetadataReader {
	return &MetadataReader{}
}

// Read extracts metadata from an audio file and returns a Track
func (r *MetadataReader) Read(filePath string) (*api.Track, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	track := &api.Track{
		ID:    generateTrackID(filePath),
		URI:   "file://" + filePath,
		Title: filepath.Base(filePath),
		Gain:  api.DefaultGain(),
	}

	// Try to read metadata tags
	metadata, err := tag.ReadFrom(file)
	if err != nil {
		// If no tags, return basic track info from filename
		return track, nil
	}

	track.Title = getOrDefault(metadata.Title(), track.Title)
	track.Artist = getOrDefault(metadata.Artist(), "Unknown Artist")
	track.Album = getOrDefault(metadata.Album(), "Unknown Album")
	track.TrackNum, _ = metadata.Track()
	track.Gain = gainFromRaw(metadata.Raw())

	return track, nil
}

// gainFromRaw reads the ReplayGain track values. Vorbis comments store them
// as plain fields, ID3v2 as TXXX frames.
func gainFromRaw(raw map[string]interface{}) api.Gain {
	gain := api.DefaultGain()

	for key, value := range raw {
		name, text := strings.ToLower(key), ""
		switch v := value.(type) {
		case string:
			text = v
		case *tag.Comm:
			name, text = strings.ToLower(v.Description), v.Text
		default:
			continue
		}

		switch name {
		case "replaygain_track_gain":
			if db, ok := parseNumber(text); ok {
				gain.Gain = math.Pow(10, db/20)
			}
		case "replaygain_track_peak":
			if peak, ok := parseNumber(text); ok && peak > 0 {
				gain.Peak = peak
			}
		}
	}
	return gain
}

// parseNumber accepts values such as "-6.48 dB".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "dB"), "db"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// generateTrackID creates a unique ID for a track based on its file path
func generateTrackID(filePath string) string {
	hash := md5.Sum([]byte(filePath))
	return fmt.Sprintf("track-%x", hash[:8])
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
