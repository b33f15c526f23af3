package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	playerrors "github.com/jscyril/crossfade_player/pkg/errors"
)

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a file format is supported
func IsSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// PathFromURI accepts file:// URIs and plain paths.
func PathFromURI(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// DecodeAudio decodes an audio file based on its extension
func DecodeAudio(r io.ReadSeekCloser, filePath string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", playerrors.ErrInvalidFormat, ext)
	}
}

// OpenURI opens and decodes a local file. It is the default Opener.
func OpenURI(uri string) (beep.StreamSeekCloser, beep.Format, error) {
	path := PathFromURI(uri)
	if !IsSupported(path) {
		return nil, beep.Format{}, playerrors.NewPlayerError("open", uri,
			fmt.Errorf("%w: %s", playerrors.ErrInvalidFormat, filepath.Ext(path)))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, playerrors.NewPlayerError("open", uri, fmt.Errorf("%w: %v", playerrors.ErrOpenFailed, err))
	}

	streamer, format, err := DecodeAudio(file, path)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, playerrors.NewPlayerError("decode", uri, err)
	}
	return streamer, format, nil
}
