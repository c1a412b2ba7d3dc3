// Package session provides the session manager wiring the player components together.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/app/library"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/config"
	"github.com/osa030/tunedeck/internal/infra/metrics"
)

var (
	ErrSessionNotRunning = errors.New("session is not running")
	ErrSessionStarted    = errors.New("session already started")
)

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseWaiting    Phase = iota // Created, not started
	PhaseActive                  // Accepting commands
	PhaseTerminated              // Closed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// UploadResult describes the outcome of an upload.
type UploadResult struct {
	Tracks     []track.Track
	Rejections []library.Rejection
}

// Info describes the running session.
type Info struct {
	SessionID string
	Phase     Phase
	StartedAt time.Time
}

// Manager manages the player session.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	playback     *playback.Controller
	importer     *library.Importer
	filterChain  *filter.Chain
	notification *notification.Manager
	metrics      *metrics.Metrics

	// Lifecycle
	sessionID string
	phase     Phase
	startedAt time.Time

	// Channels
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	loopDone  chan struct{}
}

// decodeChecker is implemented by media players that know which formats they decode.
type decodeChecker interface {
	CanDecode(mimeType string) bool
}

// NewManager creates a new session manager driving media.
// m may be nil when metrics are disabled.
func NewManager(cfg *config.Config, media playback.Media, m *metrics.Metrics) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		config: cfg,
		playback: playback.NewController(media, playback.Config{
			Volume:      cfg.InitialVolume(),
			Shuffle:     cfg.Player.Shuffle,
			Repeat:      cfg.Player.Repeat,
			EventBuffer: cfg.Player.EventBuffer,
		}),
		notification: notification.NewManager(),
		filterChain:  filter.NewChain(),
		metrics:      m,

		sessionID: uuid.New().String(),
		phase:     PhaseWaiting,

		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	// Setup filters
	if err := mgr.setupFilters(); err != nil {
		cancel()
		mgr.playback.Close()
		return nil, err
	}
	var opts []library.Option
	if dc, ok := media.(decodeChecker); ok {
		opts = append(opts, library.WithDecodeCheck(dc.CanDecode))
	}
	mgr.importer = library.NewImporter(mgr.filterChain, opts...)

	return mgr, nil
}

// setupFilters initializes the filter chain.
func (m *Manager) setupFilters() error {
	cfg := m.config

	// AudioFormatFilter is always applied
	audioFormat := filter.NewAudioFormatFilter()
	if err := audioFormat.ValidateConfig(cfg.GetFilterSettings(audioFormat.Name())); err != nil {
		return errors.Wrapf(err, "filter %s", audioFormat.Name())
	}
	m.filterChain.Add(audioFormat)

	// SizeLimitFilter
	if cfg.IsFilterEnabled("size_limit_filter") {
		f := filter.NewSizeLimitFilter()
		if err := f.ValidateConfig(cfg.GetFilterSettings(f.Name())); err != nil {
			return errors.Wrapf(err, "filter %s", f.Name())
		}
		m.filterChain.Add(f)
	}

	// DuplicateFileFilter keeps watch events from importing a file twice
	if cfg.IsFilterEnabled("duplicate_file_filter") || cfg.Library.Watch {
		m.filterChain.Add(filter.NewDuplicateFileFilter(m.playback))
	}

	names := lo.Map(m.filterChain.Filters(), func(f filter.Filter, _ int) string { return f.Name() })
	zlog.Debug().Msgf("session: filters configured: %v", names)
	return nil
}

// Start starts the session: event loop, initial library scan and directory watch.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseWaiting {
		m.mu.Unlock()
		return ErrSessionStarted
	}
	m.phase = PhaseActive
	m.startedAt = time.Now()
	m.mu.Unlock()

	zlog.Info().Msgf("phase changed: phase=ACTIVE session_id=%s", m.sessionID)

	// Start playback event loop
	go m.playbackLoop()

	dir := m.config.Library.Dir
	if dir == "" {
		return nil
	}

	tracks, rejections, err := m.importer.ScanDir(ctx, dir)
	if err != nil {
		return errors.Wrap(err, "failed to scan library")
	}
	m.appendTracks(filter.OriginLibrary, tracks, rejections)

	if m.config.Library.Watch {
		go func() {
			if err := m.importer.Watch(m.ctx, dir, func(ts []track.Track) {
				m.appendTracks(filter.OriginLibrary, ts, nil)
			}); err != nil {
				zlog.Error().Msgf("library watch stopped: %v", err)
			}
		}()
	}
	return nil
}

// Done returns a channel closed when the session terminates.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Info returns the session identity and phase.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{SessionID: m.sessionID, Phase: m.phase, StartedAt: m.startedAt}
}

// Playback returns the playback controller.
func (m *Manager) Playback() *playback.Controller {
	return m.playback
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Upload imports client files and appends the accepted ones to the playlist.
func (m *Manager) Upload(ctx context.Context, files []library.File) (UploadResult, error) {
	if !m.isActive() {
		return UploadResult{}, ErrSessionNotRunning
	}

	tracks, rejections := m.importer.Import(ctx, files, filter.OriginUpload)
	m.appendTracks(filter.OriginUpload, tracks, rejections)
	return UploadResult{Tracks: tracks, Rejections: rejections}, nil
}

// appendTracks appends imported tracks and records the outcome.
func (m *Manager) appendTracks(origin filter.Origin, tracks []track.Track, rejections []library.Rejection) {
	for _, r := range rejections {
		zlog.Info().Msgf("file rejected: origin=%s name=%s code=%s", origin, r.Filename, r.Code)
	}
	if m.metrics != nil {
		m.metrics.ObserveUploads(origin.String(), len(tracks), len(rejections))
	}
	if len(tracks) == 0 {
		return
	}

	if err := m.playback.Upload(tracks...); err != nil {
		// The tracks are appended; only loading the first one failed
		zlog.Warn().Msgf("upload: %v", err)
	}
	zlog.Info().Msgf("tracks appended: origin=%s count=%d", origin, len(tracks))
}

// Subscribe registers a notification stream. The stream receives the current
// status before any event.
func (m *Manager) Subscribe(stream notification.Stream) (string, error) {
	if !m.isActive() {
		return "", ErrSessionNotRunning
	}

	id, err := m.notification.Subscribe(stream, func() (*structpb.Struct, error) {
		status, err := notification.EncodeStatus(m.playback.Status())
		if err != nil {
			return nil, err
		}
		status.Fields[notification.FieldType] = structpb.NewStringValue("status")
		return status, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to subscribe")
	}
	m.observeSubscribers()
	return id, nil
}

// Unsubscribe removes a notification stream.
func (m *Manager) Unsubscribe(id string) {
	m.notification.Unsubscribe(id)
	m.observeSubscribers()
}

func (m *Manager) observeSubscribers() {
	if m.metrics != nil {
		m.metrics.SetSubscribers(m.notification.SubscriberCount())
	}
}

func (m *Manager) isActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseActive
}

// playbackLoop handles playback events until the controller closes its channel.
func (m *Manager) playbackLoop() {
	defer close(m.loopDone)
	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent logs, counts and broadcasts a playback event.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	if event.Type != playback.EventProgress {
		zlog.Info().Msgf("playback event: type=%s state=%s index=%d", event.Type, event.State, event.Index)
	}

	if m.metrics != nil {
		m.metrics.ObserveEvent(event)
		m.metrics.ObserveStatus(m.playback.Status())
	}

	n, err := notification.EncodeEvent(event)
	if err != nil {
		zlog.Error().Msgf("failed to encode event: %v", err)
		return
	}
	m.notification.Broadcast(n)
}

// Close terminates the session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		started := m.phase == PhaseActive
		m.phase = PhaseTerminated
		m.mu.Unlock()

		m.cancel()
		m.playback.Close()
		if started {
			<-m.loopDone
		}
		m.notification.Close()
		close(m.done)
		zlog.Info().Msgf("phase changed: phase=TERMINATED session_id=%s", m.sessionID)
	})
}
