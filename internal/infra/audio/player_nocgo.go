//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// AudioAvailable indicates whether audio output is supported in this build.
// Audio output requires CGO for native sound libraries.
const AudioAvailable = false

// Player is a silent player for builds without cgo.
// Tracks are still decoded so unsupported files fail the same way,
// but no sound is produced and no progress is reported.
type Player struct {
	mu      sync.Mutex
	config  Config
	current track.Track
}

// NewPlayer creates a new silent player.
func NewPlayer(config Config) *Player {
	zlog.Warn().Msg("audio: built without cgo, playback is silent")
	return &Player{config: config.withDefaults()}
}

// Load replaces the current track.
func (p *Player) Load(t track.Track, n playback.Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
	return nil
}

// Play validates that the loaded track can be decoded.
func (p *Player) Play() <-chan error {
	result := make(chan error, 1)

	p.mu.Lock()
	src := p.current.Source
	p.mu.Unlock()

	go func() {
		streamer, _, err := Decode(src)
		if err == nil {
			_ = streamer.Close()
		}
		result <- err
	}()
	return result
}

// Pause is a no-op when cgo is disabled.
func (p *Player) Pause() {}

// Seek is a no-op when cgo is disabled.
func (p *Player) Seek(position time.Duration) error { return nil }

// SetVolume is a no-op when cgo is disabled.
func (p *Player) SetVolume(volume float64) {}

// Close is a no-op when cgo is disabled.
func (p *Player) Close() {}
