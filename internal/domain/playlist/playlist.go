// Package playlist provides the append-only Playlist store.
package playlist

import "github.com/osa030/tunedeck/internal/domain/track"

// Playlist is an ordered, append-only sequence of tracks.
// Insertion order is preserved and duplicates are allowed.
// Playlist is not safe for concurrent use; the playback controller guards it.
type Playlist struct {
	tracks []track.Track
}

// New creates an empty playlist.
func New() *Playlist {
	return &Playlist{tracks: make([]track.Track, 0)}
}

// Append adds tracks to the end and reports whether the playlist was empty before.
func (p *Playlist) Append(tracks ...track.Track) (wasEmpty bool) {
	wasEmpty = len(p.tracks) == 0
	p.tracks = append(p.tracks, tracks...)
	return wasEmpty
}

// At returns the track at index i.
func (p *Playlist) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return track.Track{}, false
	}
	return p.tracks[i], true
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return len(p.tracks) == 0
}

// Tracks returns a copy of all tracks in order.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// TotalSize returns the summed payload size of all tracks in bytes.
func (p *Playlist) TotalSize() int64 {
	var total int64
	for _, t := range p.tracks {
		total += t.Source.Size()
	}
	return total
}
