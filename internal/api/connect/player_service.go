package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/tunedeck/internal/app/library"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/domain/track"
)

var errStreamClosed = errors.New("stream closed")

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	session *session.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(session *session.Manager) *PlayerService {
	return &PlayerService{session: session}
}

// NewPlayerServiceHandler builds an HTTP handler serving every PlayerService procedure.
// It returns the path prefix to mount the handler on.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	unary := func(procedure string, fn func(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error)) {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}

	unary(PlayerServiceGetStatusProcedure, svc.GetStatus)
	unary(PlayerServiceListTracksProcedure, svc.ListTracks)
	unary(PlayerServicePlayProcedure, svc.Play)
	unary(PlayerServicePauseProcedure, svc.Pause)
	unary(PlayerServiceTogglePlayProcedure, svc.TogglePlay)
	unary(PlayerServiceNextProcedure, svc.Next)
	unary(PlayerServicePreviousProcedure, svc.Previous)
	unary(PlayerServiceToggleShuffleProcedure, svc.ToggleShuffle)
	unary(PlayerServiceToggleRepeatProcedure, svc.ToggleRepeat)

	mux.Handle(PlayerServiceSelectTrackProcedure, connect.NewUnaryHandler(PlayerServiceSelectTrackProcedure, svc.SelectTrack, opts...))
	mux.Handle(PlayerServiceSetShuffleProcedure, connect.NewUnaryHandler(PlayerServiceSetShuffleProcedure, svc.SetShuffle, opts...))
	mux.Handle(PlayerServiceSetRepeatProcedure, connect.NewUnaryHandler(PlayerServiceSetRepeatProcedure, svc.SetRepeat, opts...))
	mux.Handle(PlayerServiceSetVolumeProcedure, connect.NewUnaryHandler(PlayerServiceSetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(PlayerServiceSeekProcedure, connect.NewUnaryHandler(PlayerServiceSeekProcedure, svc.Seek, opts...))
	mux.Handle(PlayerServiceUploadProcedure, connect.NewUnaryHandler(PlayerServiceUploadProcedure, svc.Upload, opts...))
	mux.Handle(PlayerServiceSubscribeProcedure, connect.NewServerStreamHandler(PlayerServiceSubscribeProcedure, svc.Subscribe, opts...))

	return "/" + PlayerServiceName + "/", mux
}

// GetStatus returns the current playback status.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.statusResponse()
}

// ListTracks returns the playlist in order.
func (s *PlayerService) ListTracks(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	tracks := lo.Map(s.session.Playback().Tracks(), func(t track.Track, _ int) any {
		return notification.TrackFields(t)
	})
	st, err := structpb.NewStruct(map[string]any{"tracks": tracks})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// Play handles play requests.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().Play())
}

// Pause handles pause requests.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().Pause())
}

// TogglePlay flips between play and pause.
func (s *PlayerService) TogglePlay(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().TogglePlay())
}

// Next skips to the next track.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().Next())
}

// Previous skips to the previous track.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().Previous())
}

// SelectTrack loads and plays the track at the requested index.
func (s *PlayerService) SelectTrack(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int32Value],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().SelectTrack(int(req.Msg.GetValue())))
}

// SetShuffle sets the shuffle mode.
func (s *PlayerService) SetShuffle(
	ctx context.Context,
	req *connect.Request[wrapperspb.BoolValue],
) (*connect.Response[structpb.Struct], error) {
	s.session.Playback().SetShuffle(req.Msg.GetValue())
	return s.statusResponse()
}

// ToggleShuffle flips the shuffle mode.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	s.session.Playback().ToggleShuffle()
	return s.statusResponse()
}

// SetRepeat sets the repeat mode.
func (s *PlayerService) SetRepeat(
	ctx context.Context,
	req *connect.Request[wrapperspb.BoolValue],
) (*connect.Response[structpb.Struct], error) {
	s.session.Playback().SetRepeat(req.Msg.GetValue())
	return s.statusResponse()
}

// ToggleRepeat flips the repeat mode.
func (s *PlayerService) ToggleRepeat(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	s.session.Playback().ToggleRepeat()
	return s.statusResponse()
}

// SetVolume sets the output volume. Out-of-range values are clamped.
func (s *PlayerService) SetVolume(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[structpb.Struct], error) {
	s.session.Playback().SetVolume(req.Msg.GetValue())
	return s.statusResponse()
}

// Seek moves the playback position to a fraction of the track duration.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[structpb.Struct], error) {
	return s.command(s.session.Playback().Seek(req.Msg.GetValue()))
}

// Upload imports one picked file. The filename travels in a header.
func (s *PlayerService) Upload(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[structpb.Struct], error) {
	filename := req.Header().Get(TrackFilenameHeader)
	if filename == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("%s header is required", TrackFilenameHeader))
	}

	result, err := s.session.Upload(ctx, []library.File{{Name: filename, Data: req.Msg.GetValue()}})
	if err != nil {
		return nil, toConnectError(err)
	}

	st, err := structpb.NewStruct(map[string]any{
		"accepted": lo.Map(result.Tracks, func(t track.Track, _ int) any {
			return notification.TrackFields(t)
		}),
		"rejected": lo.Map(result.Rejections, func(r library.Rejection, _ int) any {
			return map[string]any{"filename": r.Filename, "code": r.Code}
		}),
		"playlist_length": s.session.Playback().Status().PlaylistLength,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// Subscribe streams the current status followed by every controller event.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID, err := s.session.Subscribe(adapter)
	if err != nil {
		return toConnectError(err)
	}

	// Wait for context cancellation or session end
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}

	s.session.Unsubscribe(subscriptionID)
	adapter.close()
	return nil
}

// command maps a controller error and returns the resulting status.
func (s *PlayerService) command(err error) (*connect.Response[structpb.Struct], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return s.statusResponse()
}

func (s *PlayerService) statusResponse() (*connect.Response[structpb.Struct], error) {
	st, err := notification.EncodeStatus(s.session.Playback().Status())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrEmptyPlaylist):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, playback.ErrIndexOutOfRange):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, playback.ErrPlaybackFailed):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, session.ErrSessionNotRunning):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Sends are serialized and refused once the handler has returned.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	closed bool
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *structpb.Struct) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(n)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
