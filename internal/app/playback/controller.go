package playback

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// Errors
var (
	ErrEmptyPlaylist   = errors.New("playlist is empty")
	ErrIndexOutOfRange = errors.New("track index out of range")
	ErrPlaybackFailed  = errors.New("playback failed")
)

// DefaultEventBuffer is used when Config.EventBuffer is not positive.
const DefaultEventBuffer = 64

// Config holds controller configuration.
type Config struct {
	Volume      float64         // Initial volume in [0, 1]
	Shuffle     bool            // Initial shuffle mode
	Repeat      bool            // Initial repeat mode
	EventBuffer int             // Size of the event channel buffer
	RandIntN    func(n int) int // Shuffle index source; defaults to math/rand/v2
}

// Status is a snapshot of the controller state.
type Status struct {
	State          State
	Index          int          // Current index (-1 when empty)
	Current        *track.Track // Current track (nil when empty)
	Shuffle        bool
	Repeat         bool
	Volume         float64
	Position       time.Duration
	Duration       time.Duration // 0 until the media player reports it
	PlaylistLength int
	PlaylistBytes  int64 // Summed payload size of the playlist
	LastError      error // Last playback failure, cleared on successful play
}

// IsPlaying returns true if the controller is in the playing state.
func (s Status) IsPlaying() bool {
	return s.State == StatePlaying
}

// Controller owns the playlist and the playback state machine.
type Controller struct {
	mu sync.Mutex

	media    Media
	playlist *playlist.Playlist

	// Playback state
	state    State
	index    int
	shuffle  bool
	repeat   bool
	volume   float64
	position time.Duration
	duration time.Duration
	lastErr  error

	// Generations guarding against stale asynchronous results
	loadGen     uint64 // Incremented on every load, binds media notifications
	playToken   uint64 // Incremented on every play request, pause and load
	pendingPlay bool   // A play request is waiting for its result

	randIntN func(n int) int

	// Events
	eventCh chan Event
	closed  bool

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new playback controller commanding media.
func NewController(media Media, config Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	buffer := config.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	randIntN := config.RandIntN
	if randIntN == nil {
		randIntN = rand.Intn
	}

	c := &Controller{
		media:    media,
		playlist: playlist.New(),
		state:    StateEmpty,
		index:    -1,
		shuffle:  config.Shuffle,
		repeat:   config.Repeat,
		volume:   lo.Clamp(config.Volume, 0, 1),
		randIntN: randIntN,
		eventCh:  make(chan Event, buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	media.SetVolume(c.volume)
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Upload appends tracks to the playlist.
// If the playlist was empty, the first new track is loaded without playing it.
func (c *Controller) Upload(tracks ...track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tracks) == 0 {
		return nil
	}

	wasEmpty := c.playlist.Append(tracks...)
	zlog.Debug().Msgf("playback: appended tracks: count=%d total=%d", len(tracks), c.playlist.Len())
	c.sendEventLocked(c.eventLocked(EventPlaylistAppended))

	if wasEmpty {
		return c.loadLocked(0)
	}
	return nil
}

// Play starts playback of the current track.
// The state becomes Playing once the media player confirms.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("play")
	}

	// If already playing, do nothing
	if c.state == StatePlaying {
		return nil
	}

	return c.requestPlayLocked()
}

// Pause pauses playback. Any in-flight play request is superseded.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("pause")
	}

	c.pauseLocked()
	return nil
}

// TogglePlay pauses when playing and plays otherwise.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("toggle")
	}

	if c.state == StatePlaying {
		c.pauseLocked()
		return nil
	}
	return c.requestPlayLocked()
}

// Next loads the next track and always resumes playback.
// With shuffle enabled the next index is uniformly random over the whole playlist.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("next")
	}

	return c.advanceLocked()
}

// Previous loads the previous track, wrapping to the end, and always resumes playback.
// Shuffle is not consulted.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("previous")
	}

	n := c.playlist.Len()
	return c.skipToLocked((c.index - 1 + n) % n)
}

// SelectTrack loads the track at index i and always resumes playback.
func (c *Controller) SelectTrack(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("select")
	}

	if i < 0 || i >= c.playlist.Len() {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d (playlist length %d)", i, c.playlist.Len())
	}

	return c.skipToLocked(i)
}

// SetVolume sets the output volume, clamped to [0, 1], and returns the applied value.
func (c *Controller) SetVolume(v float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = lo.Clamp(v, 0, 1)
	c.media.SetVolume(c.volume)
	c.sendEventLocked(c.eventLocked(EventVolumeChanged))
	return c.volume
}

// Seek moves to the given fraction [0, 1] of the current track.
// It is a no-op while the duration is still unknown.
func (c *Controller) Seek(fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.IsEmpty() {
		return c.noOpLocked("seek")
	}

	if c.duration <= 0 {
		zlog.Debug().Msg("playback: seek ignored, duration unknown")
		return nil
	}

	position := time.Duration(lo.Clamp(fraction, 0, 1) * float64(c.duration))
	if err := c.media.Seek(position); err != nil {
		return errors.Wrap(err, "failed to seek")
	}

	c.position = position
	c.sendEventLocked(c.eventLocked(EventProgress))
	return nil
}

// SetShuffle enables or disables shuffle mode.
func (c *Controller) SetShuffle(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setModeLocked(enabled, c.repeat)
}

// ToggleShuffle toggles shuffle mode and returns the new value.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setModeLocked(!c.shuffle, c.repeat)
	return c.shuffle
}

// SetRepeat enables or disables repeat mode.
func (c *Controller) SetRepeat(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setModeLocked(c.shuffle, enabled)
}

// ToggleRepeat toggles repeat mode and returns the new value.
func (c *Controller) ToggleRepeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setModeLocked(c.shuffle, !c.repeat)
	return c.repeat
}

// Status returns a snapshot of the playback state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:          c.state,
		Index:          c.index,
		Shuffle:        c.shuffle,
		Repeat:         c.repeat,
		Volume:         c.volume,
		Position:       c.position,
		Duration:       c.duration,
		PlaylistLength: c.playlist.Len(),
		PlaylistBytes:  c.playlist.TotalSize(),
		LastError:      c.lastErr,
	}
	if t, ok := c.playlist.At(c.index); ok {
		s.Current = &t
	}
	return s
}

// Tracks returns a copy of the playlist.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.Tracks()
}

// Close closes the controller and its event channel.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// loadLocked loads track i into the media player.
// Position and duration reset until the media player reports them.
// Must be called with lock held.
func (c *Controller) loadLocked(i int) error {
	t, ok := c.playlist.At(i)
	if !ok {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d", i)
	}

	c.index = i
	c.loadGen++
	c.playToken++
	c.pendingPlay = false
	c.position = 0
	c.duration = 0
	if c.state == StateEmpty {
		c.state = StatePaused
	}

	zlog.Debug().Msgf("playback: loading track: index=%d name=%s gen=%d", i, t.Name, c.loadGen)

	err := c.media.Load(t, &notifier{c: c, gen: c.loadGen})
	c.sendEventLocked(c.eventLocked(EventTrackLoaded))
	if err != nil {
		return c.failLocked(err)
	}
	return nil
}

// skipToLocked loads track i and requests playback.
// Must be called with lock held.
func (c *Controller) skipToLocked(i int) error {
	if err := c.loadLocked(i); err != nil {
		return err
	}
	return c.requestPlayLocked()
}

// advanceLocked moves to the next index according to the shuffle mode.
// Must be called with lock held.
func (c *Controller) advanceLocked() error {
	n := c.playlist.Len()

	var next int
	if c.shuffle {
		next = c.randIntN(n)
	} else {
		next = (c.index + 1) % n
	}
	return c.skipToLocked(next)
}

// requestPlayLocked asks the media player to play.
// A result that is already available is applied before returning,
// otherwise it is awaited in the background.
// Must be called with lock held.
func (c *Controller) requestPlayLocked() error {
	c.playToken++
	token := c.playToken
	c.pendingPlay = true

	resultCh := c.media.Play()

	select {
	case err := <-resultCh:
		return c.applyPlayResultLocked(token, err)
	default:
	}

	go c.awaitPlayResult(token, resultCh)
	return nil
}

// awaitPlayResult waits for an asynchronous play result.
func (c *Controller) awaitPlayResult(token uint64, resultCh <-chan error) {
	select {
	case err := <-resultCh:
		c.mu.Lock()
		defer c.mu.Unlock()
		_ = c.applyPlayResultLocked(token, err)
	case <-c.ctx.Done():
	}
}

// applyPlayResultLocked applies a play result if its request is still current.
// Must be called with lock held.
func (c *Controller) applyPlayResultLocked(token uint64, err error) error {
	if token != c.playToken {
		zlog.Debug().Msgf("playback: ignoring stale play result: token=%d current=%d err=%v", token, c.playToken, err)
		// A later Pause wins over a late success
		if err == nil && c.state != StatePlaying && !c.pendingPlay {
			c.media.Pause()
		}
		return nil
	}

	c.pendingPlay = false
	if err != nil {
		return c.failLocked(err)
	}

	c.lastErr = nil
	if c.state != StatePlaying {
		c.state = StatePlaying
		c.sendEventLocked(c.eventLocked(EventStateChanged))
	}
	return nil
}

// pauseLocked pauses the media player and supersedes any pending play.
// Must be called with lock held.
func (c *Controller) pauseLocked() {
	c.playToken++
	c.pendingPlay = false
	c.media.Pause()

	if c.state == StatePlaying {
		c.state = StatePaused
		c.sendEventLocked(c.eventLocked(EventStateChanged))
	}
}

// failLocked records a playback failure. The failing track stays selected.
// Must be called with lock held.
func (c *Controller) failLocked(cause error) error {
	name := ""
	if t, ok := c.playlist.At(c.index); ok {
		name = t.Name
	}
	err := errors.Mark(errors.Wrapf(cause, "track %q", name), ErrPlaybackFailed)

	zlog.Warn().Msgf("playback: failed: index=%d track=%s err=%v", c.index, name, cause)

	if c.state == StatePlaying {
		c.state = StatePaused
		c.sendEventLocked(c.eventLocked(EventStateChanged))
	}
	c.lastErr = err

	e := c.eventLocked(EventPlaybackFailed)
	e.Err = err
	c.sendEventLocked(e)
	return err
}

// noOpLocked reports a command that cannot run on an empty playlist.
// Must be called with lock held.
func (c *Controller) noOpLocked(op string) error {
	err := errors.Wrapf(ErrEmptyPlaylist, "%s ignored", op)
	zlog.Debug().Msgf("playback: %v", err)

	e := c.eventLocked(EventNoOp)
	e.Err = err
	c.sendEventLocked(e)
	return err
}

// setModeLocked updates shuffle and repeat, emitting an event on change.
// Must be called with lock held.
func (c *Controller) setModeLocked(shuffle, repeat bool) {
	if c.shuffle == shuffle && c.repeat == repeat {
		return
	}
	c.shuffle = shuffle
	c.repeat = repeat
	c.sendEventLocked(c.eventLocked(EventModeChanged))
}

// onProgress is called by the media player with position updates.
func (c *Controller) onProgress(gen uint64, position, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.loadGen {
		return
	}

	c.position = position
	c.duration = duration
	c.sendEventLocked(c.eventLocked(EventProgress))
}

// onEnded is called by the media player when the loaded track finishes.
func (c *Controller) onEnded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.loadGen || c.playlist.IsEmpty() {
		zlog.Debug().Msgf("playback: ignoring stale track end: gen=%d current=%d", gen, c.loadGen)
		return
	}

	if err := c.trackEndedLocked(); err != nil {
		zlog.Warn().Msgf("playback: after track end: %v", err)
	}
}

// trackEndedLocked replays the current track in repeat mode, otherwise behaves like Next.
// Must be called with lock held.
func (c *Controller) trackEndedLocked() error {
	if !c.repeat {
		return c.advanceLocked()
	}

	c.position = 0
	if err := c.media.Seek(0); err != nil {
		zlog.Warn().Msgf("playback: rewind for repeat failed: %v", err)
	}
	c.sendEventLocked(c.eventLocked(EventProgress))
	return c.requestPlayLocked()
}

// eventLocked builds an event carrying the current state.
// Must be called with lock held.
func (c *Controller) eventLocked(typ EventType) Event {
	e := Event{
		Type:     typ,
		State:    c.state,
		Index:    c.index,
		Position: c.position,
		Duration: c.duration,
	}
	if t, ok := c.playlist.At(c.index); ok {
		e.Track = &t
	}
	return e
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
		// Successfully sent
	case <-c.ctx.Done():
		// Context cancelled, don't send
	default:
		// Channel full, drop event
	}
}

// notifier binds media notifications to one load generation.
type notifier struct {
	c   *Controller
	gen uint64
}

func (n *notifier) Progress(position, duration time.Duration) {
	n.c.onProgress(n.gen, position, duration)
}

func (n *notifier) Ended() {
	n.c.onEnded(n.gen)
}
