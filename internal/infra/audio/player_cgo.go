//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// AudioAvailable indicates whether audio output is supported in this build.
const AudioAvailable = true

// Player plays tracks through the system speaker using beep.
type Player struct {
	mu sync.Mutex

	config      Config
	initialized bool
	volume      float64

	// Loaded track
	current    track.Track
	notifier   playback.Notifier
	playbackID uint64 // Incremented on every Load; stale callbacks are ignored

	// Decoded stream, built lazily on first Play
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	ended    bool // The stream finished and was removed from the speaker

	stopTicker chan struct{}
}

// NewPlayer creates a new audio player.
func NewPlayer(config Config) *Player {
	return &Player{
		config: config.withDefaults(),
		volume: 1,
	}
}

// initSpeakerLocked initializes the speaker if not already done.
// Must be called with lock held.
func (p *Player) initSpeakerLocked() error {
	if p.initialized {
		return nil
	}

	sr := beep.SampleRate(p.config.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

// Load replaces the current track. Decoding is deferred until Play.
func (p *Player) Load(t track.Track, n playback.Notifier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.playbackID++
	p.current = t
	p.notifier = n
	zlog.Debug().Msgf("audio: loaded: name=%s mime=%s id=%d", t.Name, t.Source.MIMEType(), p.playbackID)
	return nil
}

// Play starts or resumes the loaded track. The result is delivered asynchronously.
func (p *Player) Play() <-chan error {
	result := make(chan error, 1)

	p.mu.Lock()
	id := p.playbackID
	p.mu.Unlock()

	go func() {
		result <- p.play(id)
	}()
	return result
}

// play decodes the loaded track if needed and starts output.
func (p *Player) play(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A newer load superseded this request
	if id != p.playbackID {
		return nil
	}

	if p.streamer == nil {
		if err := p.startLocked(id); err != nil {
			return err
		}
	} else if p.ended {
		// Finished stream rewound for repeat: hand it back to the speaker
		p.ended = false
		p.ctrl.Paused = false
		speaker.Play(p.sequenceLocked(id))
	} else {
		speaker.Lock()
		p.ctrl.Paused = false
		speaker.Unlock()
	}

	p.startTickerLocked(id)
	return nil
}

// startLocked decodes the current track and starts it on the speaker.
// Must be called with lock held.
func (p *Player) startLocked(id uint64) error {
	streamer, format, err := Decode(p.current.Source)
	if err != nil {
		return err
	}
	if err := p.initSpeakerLocked(); err != nil {
		_ = streamer.Close()
		return err
	}

	p.streamer = streamer
	p.format = format

	// Resample if needed to match speaker sample rate
	resampled := beep.Resample(4, format.SampleRate, beep.SampleRate(p.config.SampleRate), streamer)

	p.vol = &effects.Volume{Streamer: resampled}
	applyVolume(p.vol, p.volume)

	// Create control for pause/resume
	p.ctrl = &beep.Ctrl{Streamer: p.vol, Paused: false}
	p.ended = false

	speaker.Play(p.sequenceLocked(id))
	return nil
}

// sequenceLocked wraps the control with the end-of-track callback for playback id.
// Must be called with lock held.
func (p *Player) sequenceLocked(id uint64) beep.Streamer {
	return beep.Seq(p.ctrl, beep.Callback(func() {
		// Run in a separate goroutine: the speaker lock is held here
		go p.finished(id)
	}))
}

// finished is called when the stream of playback id runs out.
func (p *Player) finished(id uint64) {
	p.mu.Lock()
	if id != p.playbackID {
		p.mu.Unlock()
		return
	}
	p.ended = true
	p.stopTickerLocked()
	n := p.notifier
	duration := p.durationLocked()
	p.mu.Unlock()

	if n != nil {
		n.Progress(duration, duration)
		n.Ended()
	}
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	p.stopTickerLocked()
}

// Seek sets the playback position of the loaded track.
func (p *Player) Seek(position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return nil
	}

	samples := p.format.SampleRate.N(position)
	if samples < 0 {
		samples = 0
	}
	if length := p.streamer.Len(); length > 0 && samples >= length {
		samples = length - 1
	}

	speaker.Lock()
	defer speaker.Unlock()
	return p.streamer.Seek(samples)
}

// SetVolume sets the output volume in [0, 1].
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	if p.vol != nil {
		speaker.Lock()
		applyVolume(p.vol, volume)
		speaker.Unlock()
	}
}

// Close stops playback and releases the decoder.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.playbackID++
	if p.initialized {
		speaker.Clear()
	}
}

// stopLocked stops playback and closes the current stream.
// Must be called with lock held.
func (p *Player) stopLocked() {
	p.stopTickerLocked()
	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	if p.streamer != nil {
		_ = p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.vol = nil
	p.ended = false
}

// startTickerLocked reports progress periodically while playing.
// Must be called with lock held.
func (p *Player) startTickerLocked(id uint64) {
	if p.stopTicker != nil {
		return
	}
	stop := make(chan struct{})
	p.stopTicker = stop

	go func() {
		ticker := time.NewTicker(p.config.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.reportProgress(id)
			}
		}
	}()
}

// stopTickerLocked stops the progress ticker.
// Must be called with lock held.
func (p *Player) stopTickerLocked() {
	if p.stopTicker != nil {
		close(p.stopTicker)
		p.stopTicker = nil
	}
}

// reportProgress sends the current position to the notifier.
func (p *Player) reportProgress(id uint64) {
	p.mu.Lock()
	if id != p.playbackID || p.streamer == nil {
		p.mu.Unlock()
		return
	}
	n := p.notifier
	speaker.Lock()
	position := p.format.SampleRate.D(p.streamer.Position())
	speaker.Unlock()
	duration := p.durationLocked()
	p.mu.Unlock()

	if n != nil {
		n.Progress(position, duration)
	}
}

// durationLocked returns the total duration of the current stream.
// Must be called with lock held.
func (p *Player) durationLocked() time.Duration {
	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len())
}
