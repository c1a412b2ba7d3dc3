package playback

import (
	"time"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackLoaded      EventType = iota // A track was loaded into the media player
	EventStateChanged                      // Playback state changed (play/pause)
	EventPlaylistAppended                  // Tracks were appended to the playlist
	EventModeChanged                       // Shuffle or repeat toggled
	EventVolumeChanged                     // Volume changed
	EventProgress                          // Media player reported position/duration
	EventPlaybackFailed                    // Media player failed to start playback
	EventNoOp                              // Command ignored (e.g. empty playlist)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoaded:
		return "track_loaded"
	case EventStateChanged:
		return "state_changed"
	case EventPlaylistAppended:
		return "playlist_appended"
	case EventModeChanged:
		return "mode_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventProgress:
		return "progress"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventNoOp:
		return "no_op"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	State    State         // State after the event
	Index    int           // Current index (-1 when empty)
	Track    *track.Track  // Current track (nil when empty)
	Position time.Duration // Current position
	Duration time.Duration // Current duration (0 if unknown)
	Err      error         // Set for EventPlaybackFailed and EventNoOp
}
