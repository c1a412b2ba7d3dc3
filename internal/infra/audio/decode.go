// Package audio provides the beep-backed media player driven by the playback controller.
package audio

import (
	"io"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptySource       = errors.New("audio source is empty")
)

// Decode opens a decoder for the source based on its MIME type.
func Decode(src track.Source) (beep.StreamSeekCloser, beep.Format, error) {
	if src.IsEmpty() {
		return nil, beep.Format{}, ErrEmptySource
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch strings.ToLower(src.MIMEType()) {
	case "audio/mpeg", "audio/mp3":
		streamer, format, err = mp3.Decode(nopCloser{src.Open()})
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		streamer, format, err = wav.Decode(src.Open())
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%q", src.MIMEType())
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", src.MIMEType())
	}
	return streamer, format, nil
}

// IsSupported reports whether Decode handles the MIME type.
func IsSupported(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "audio/mpeg", "audio/mp3", "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}

// CanDecode reports whether the player can decode tracks of the MIME type.
func (p *Player) CanDecode(mimeType string) bool {
	return IsSupported(mimeType)
}

// applyVolume maps a linear volume in [0, 1] onto a base-2 volume effect.
func applyVolume(v *effects.Volume, volume float64) {
	v.Base = 2
	if volume <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(volume, 1))
}

// nopCloser lets an in-memory reader be handed to decoders that close their input.
// It keeps Seek so decoders can seek the payload.
type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }
