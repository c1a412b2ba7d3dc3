package playback

import (
	"time"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// Notifier receives notifications from the media player for one loaded track.
type Notifier interface {
	// Progress reports the current position and total duration (0 if unknown).
	Progress(position, duration time.Duration)
	// Ended reports that the loaded track played to completion.
	Ended()
}

// Media is the audio playback engine the controller commands.
//
// Implementations must not call back into the Notifier synchronously from any
// of these methods; notifications are delivered from their own goroutines.
type Media interface {
	// Load replaces the current source. n receives notifications for this source only.
	Load(t track.Track, n Notifier) error
	// Play starts or resumes playback. The channel delivers exactly one result:
	// nil on success or the failure (e.g. unsupported format).
	Play() <-chan error
	// Pause pauses playback.
	Pause()
	// Seek sets the current position.
	Seek(position time.Duration) error
	// SetVolume sets the output volume in [0, 1].
	SetVolume(volume float64)
}
