// Package track provides the Track domain entity.
package track

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// UnknownArtist is shown when a file carries no artist tag.
const UnknownArtist = "Unknown Artist"

// Source is an opaque handle to playable audio data.
// It is created once on upload and shared read-only with the media player.
type Source struct {
	data     []byte
	mimeType string
}

// NewSource wraps an audio payload.
func NewSource(data []byte, mimeType string) Source {
	return Source{data: data, mimeType: mimeType}
}

// Open returns a fresh reader positioned at the start of the payload.
func (s Source) Open() io.ReadSeeker {
	return bytes.NewReader(s.data)
}

// MIMEType returns the detected content type (e.g. "audio/mpeg").
func (s Source) MIMEType() string {
	return s.mimeType
}

// Size returns the payload size in bytes.
func (s Source) Size() int64 {
	return int64(len(s.data))
}

// IsEmpty reports whether the source carries no audio.
func (s Source) IsEmpty() bool {
	return len(s.data) == 0
}

// Track represents one playable audio item.
// Tracks are immutable once created.
type Track struct {
	ID       string    // Unique identifier (UUID)
	Name     string    // Display name
	Artist   string    // Artist name
	Album    string    // Album name (may be empty)
	Filename string    // Original filename as picked
	Source   Source    // Audio payload
	AddedAt  time.Time // Time when uploaded
}

// NameFromFilename strips the directory and the last extension from a filename.
func NameFromFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == base {
		// dotfile such as ".mp3": keep as is
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// DisplayArtist returns the artist or the placeholder when unknown.
func (t *Track) DisplayArtist() string {
	if strings.TrimSpace(t.Artist) == "" {
		return UnknownArtist
	}
	return t.Artist
}
