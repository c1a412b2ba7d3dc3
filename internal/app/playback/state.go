// Package playback provides the playback controller: an append-only playlist
// driven by a play/pause/shuffle/repeat state machine over one media player.
package playback

// State represents the playback state.
type State int

const (
	StateEmpty   State = iota // Playlist is empty
	StatePaused               // A track is loaded but not playing
	StatePlaying              // Track is playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
