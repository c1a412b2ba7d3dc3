package connect

import (
	"context"
	"path/filepath"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TrackView is the client-side view of a track.
type TrackView struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Artist   string `mapstructure:"artist"`
	Album    string `mapstructure:"album"`
	Filename string `mapstructure:"filename"`
	MIMEType string `mapstructure:"mime_type"`
	Size     int64  `mapstructure:"size"`
}

// StatusView is the client-side view of a status snapshot.
type StatusView struct {
	State           string     `mapstructure:"state"`
	Index           int        `mapstructure:"index"`
	IsPlaying       bool       `mapstructure:"is_playing"`
	Shuffle         bool       `mapstructure:"shuffle"`
	Repeat          bool       `mapstructure:"repeat"`
	Volume          float64    `mapstructure:"volume"`
	VolumeLevel     string     `mapstructure:"volume_level"`
	PositionMs      int64      `mapstructure:"position_ms"`
	DurationMs      int64      `mapstructure:"duration_ms"`
	PositionText    string     `mapstructure:"position_text"`
	DurationText    string     `mapstructure:"duration_text"`
	ProgressPercent float64    `mapstructure:"progress_percent"`
	PlaylistLength  int        `mapstructure:"playlist_length"`
	PlaylistBytes   int64      `mapstructure:"playlist_bytes"`
	Track           *TrackView `mapstructure:"track"`
	LastError       string     `mapstructure:"last_error"`
}

// RejectionView describes a rejected upload.
type RejectionView struct {
	Filename string `mapstructure:"filename"`
	Code     string `mapstructure:"code"`
}

// UploadView is the result of an upload.
type UploadView struct {
	Accepted       []TrackView     `mapstructure:"accepted"`
	Rejected       []RejectionView `mapstructure:"rejected"`
	PlaylistLength int             `mapstructure:"playlist_length"`
}

// EventView is one message of the Subscribe stream.
// The first message has type "status" and carries the full status fields.
type EventView struct {
	SequenceNo uint64     `mapstructure:"sequence_no"`
	Type       string     `mapstructure:"type"`
	State      string     `mapstructure:"state"`
	Index      int        `mapstructure:"index"`
	PositionMs int64      `mapstructure:"position_ms"`
	DurationMs int64      `mapstructure:"duration_ms"`
	Track      *TrackView `mapstructure:"track"`
	Error      string     `mapstructure:"error"`
}

// PlayerClient is a client for the PlayerService.
type PlayerClient struct {
	getStatus     *connect.Client[emptypb.Empty, structpb.Struct]
	listTracks    *connect.Client[emptypb.Empty, structpb.Struct]
	play          *connect.Client[emptypb.Empty, structpb.Struct]
	pause         *connect.Client[emptypb.Empty, structpb.Struct]
	togglePlay    *connect.Client[emptypb.Empty, structpb.Struct]
	next          *connect.Client[emptypb.Empty, structpb.Struct]
	previous      *connect.Client[emptypb.Empty, structpb.Struct]
	toggleShuffle *connect.Client[emptypb.Empty, structpb.Struct]
	toggleRepeat  *connect.Client[emptypb.Empty, structpb.Struct]
	selectTrack   *connect.Client[wrapperspb.Int32Value, structpb.Struct]
	setShuffle    *connect.Client[wrapperspb.BoolValue, structpb.Struct]
	setRepeat     *connect.Client[wrapperspb.BoolValue, structpb.Struct]
	setVolume     *connect.Client[wrapperspb.DoubleValue, structpb.Struct]
	seek          *connect.Client[wrapperspb.DoubleValue, structpb.Struct]
	upload        *connect.Client[wrapperspb.BytesValue, structpb.Struct]
	subscribe     *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewPlayerClient constructs a client for the PlayerService at baseURL.
// A non-empty token is sent with every call.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlayerClient {
	if token != "" {
		opts = append(opts, connect.WithInterceptors(&clientTokenInterceptor{token: token}))
	}
	empty := func(procedure string) *connect.Client[emptypb.Empty, structpb.Struct] {
		return connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}

	return &PlayerClient{
		getStatus:     empty(PlayerServiceGetStatusProcedure),
		listTracks:    empty(PlayerServiceListTracksProcedure),
		play:          empty(PlayerServicePlayProcedure),
		pause:         empty(PlayerServicePauseProcedure),
		togglePlay:    empty(PlayerServiceTogglePlayProcedure),
		next:          empty(PlayerServiceNextProcedure),
		previous:      empty(PlayerServicePreviousProcedure),
		toggleShuffle: empty(PlayerServiceToggleShuffleProcedure),
		toggleRepeat:  empty(PlayerServiceToggleRepeatProcedure),
		subscribe:     empty(PlayerServiceSubscribeProcedure),
		selectTrack:   connect.NewClient[wrapperspb.Int32Value, structpb.Struct](httpClient, baseURL+PlayerServiceSelectTrackProcedure, opts...),
		setShuffle:    connect.NewClient[wrapperspb.BoolValue, structpb.Struct](httpClient, baseURL+PlayerServiceSetShuffleProcedure, opts...),
		setRepeat:     connect.NewClient[wrapperspb.BoolValue, structpb.Struct](httpClient, baseURL+PlayerServiceSetRepeatProcedure, opts...),
		setVolume:     connect.NewClient[wrapperspb.DoubleValue, structpb.Struct](httpClient, baseURL+PlayerServiceSetVolumeProcedure, opts...),
		seek:          connect.NewClient[wrapperspb.DoubleValue, structpb.Struct](httpClient, baseURL+PlayerServiceSeekProcedure, opts...),
		upload:        connect.NewClient[wrapperspb.BytesValue, structpb.Struct](httpClient, baseURL+PlayerServiceUploadProcedure, opts...),
	}
}

// Status returns the current status.
func (c *PlayerClient) Status(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.getStatus, &emptypb.Empty{})
}

// Tracks returns the playlist.
func (c *PlayerClient) Tracks(ctx context.Context) ([]TrackView, error) {
	resp, err := c.listTracks.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	var out struct {
		Tracks []TrackView `mapstructure:"tracks"`
	}
	if err := decodeStruct(resp.Msg, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

func (c *PlayerClient) Play(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.play, &emptypb.Empty{})
}

func (c *PlayerClient) Pause(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.pause, &emptypb.Empty{})
}

func (c *PlayerClient) TogglePlay(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.togglePlay, &emptypb.Empty{})
}

func (c *PlayerClient) Next(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.next, &emptypb.Empty{})
}

func (c *PlayerClient) Previous(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.previous, &emptypb.Empty{})
}

func (c *PlayerClient) ToggleShuffle(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.toggleShuffle, &emptypb.Empty{})
}

func (c *PlayerClient) ToggleRepeat(ctx context.Context) (StatusView, error) {
	return callStatus(ctx, c.toggleRepeat, &emptypb.Empty{})
}

func (c *PlayerClient) SelectTrack(ctx context.Context, index int) (StatusView, error) {
	return callStatus(ctx, c.selectTrack, wrapperspb.Int32(int32(index)))
}

func (c *PlayerClient) SetShuffle(ctx context.Context, enabled bool) (StatusView, error) {
	return callStatus(ctx, c.setShuffle, wrapperspb.Bool(enabled))
}

func (c *PlayerClient) SetRepeat(ctx context.Context, enabled bool) (StatusView, error) {
	return callStatus(ctx, c.setRepeat, wrapperspb.Bool(enabled))
}

func (c *PlayerClient) SetVolume(ctx context.Context, volume float64) (StatusView, error) {
	return callStatus(ctx, c.setVolume, wrapperspb.Double(volume))
}

func (c *PlayerClient) Seek(ctx context.Context, fraction float64) (StatusView, error) {
	return callStatus(ctx, c.seek, wrapperspb.Double(fraction))
}

// Upload sends one file. Only the base name of filename is transmitted.
func (c *PlayerClient) Upload(ctx context.Context, filename string, data []byte) (UploadView, error) {
	req := connect.NewRequest(wrapperspb.Bytes(data))
	req.Header().Set(TrackFilenameHeader, filepath.Base(filename))

	resp, err := c.upload.CallUnary(ctx, req)
	if err != nil {
		return UploadView{}, err
	}
	var v UploadView
	err = decodeStruct(resp.Msg, &v)
	return v, err
}

// Subscribe calls fn for every message of the event stream until ctx is done,
// the stream ends, or fn returns an error.
func (c *PlayerClient) Subscribe(ctx context.Context, fn func(EventView) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		var ev EventView
		if err := decodeStruct(stream.Msg(), &ev); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return stream.Err()
}

func callStatus[Req any](ctx context.Context, client *connect.Client[Req, structpb.Struct], msg *Req) (StatusView, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return StatusView{}, err
	}
	var v StatusView
	err = decodeStruct(resp.Msg, &v)
	return v, err
}

// decodeStruct decodes a protobuf struct into out.
func decodeStruct(st *structpb.Struct, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(st.AsMap()); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
