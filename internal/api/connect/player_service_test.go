package connect

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/config"
)

const testToken = "secret"

type fakeMedia struct {
	mu      sync.Mutex
	playErr error
}

func (m *fakeMedia) Load(t track.Track, n playback.Notifier) error { return nil }

func (m *fakeMedia) Play() <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan error, 1)
	ch <- m.playErr
	return ch
}

func (m *fakeMedia) Pause()                            {}
func (m *fakeMedia) Seek(position time.Duration) error { return nil }
func (m *fakeMedia) SetVolume(volume float64)          {}

func (m *fakeMedia) failPlays(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

func wavBytes(samples int) []byte {
	const sampleRate = 8000
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

type testEnv struct {
	server *httptest.Server
	client *PlayerClient
	media  *fakeMedia
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	media := &fakeMedia{}
	mgr, err := session.NewManager(cfg, media, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Start(context.Background()))

	mux := http.NewServeMux()
	path, handler := NewPlayerServiceHandler(NewPlayerService(mgr),
		connect.WithInterceptors(NewTokenInterceptor(testToken)))
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		mgr.Close()
		server.Close()
	})

	return &testEnv{
		server: server,
		client: NewPlayerClient(server.Client(), server.URL, testToken),
		media:  media,
	}
}

func (e *testEnv) upload(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		res, err := e.client.Upload(context.Background(), name, wavBytes(80))
		require.NoError(t, err)
		require.Len(t, res.Accepted, 1, name)
	}
}

func TestPlayerService_EmptyPlaylist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "empty", status.State)
	assert.Equal(t, -1, status.Index)
	assert.False(t, status.IsPlaying)
	assert.Nil(t, status.Track)
	assert.Equal(t, "0:00", status.PositionText)

	tests := []struct {
		name string
		call func() error
	}{
		{"play", func() error { _, err := env.client.Play(ctx); return err }},
		{"pause", func() error { _, err := env.client.Pause(ctx); return err }},
		{"toggle", func() error { _, err := env.client.TogglePlay(ctx); return err }},
		{"next", func() error { _, err := env.client.Next(ctx); return err }},
		{"previous", func() error { _, err := env.client.Previous(ctx); return err }},
		{"select", func() error { _, err := env.client.SelectTrack(ctx, 0); return err }},
		{"seek", func() error { _, err := env.client.Seek(ctx, 0.5); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_UploadAndNavigate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "/music/A.wav", "B.wav", "C.wav")

	tracks, err := env.client.Tracks(ctx)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "A", tracks[0].Name)
	assert.Equal(t, "A.wav", tracks[0].Filename)
	assert.Equal(t, "Unknown Artist", tracks[0].Artist)
	assert.Equal(t, "audio/wav", tracks[0].MIMEType)
	assert.Positive(t, tracks[0].Size)

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paused", status.State)
	assert.Equal(t, 0, status.Index)
	assert.Equal(t, 3, status.PlaylistLength)
	assert.Equal(t, int64(3*len(wavBytes(80))), status.PlaylistBytes)
	require.NotNil(t, status.Track)
	assert.Equal(t, "A", status.Track.Name)

	status, err = env.client.Play(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsPlaying)

	status, err = env.client.Previous(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Index)

	status, err = env.client.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Index)
	assert.True(t, status.IsPlaying)

	status, err = env.client.SelectTrack(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Index)
	assert.Equal(t, "B", status.Track.Name)

	_, err = env.client.SelectTrack(ctx, 7)
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	status, err = env.client.TogglePlay(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsPlaying)
	assert.Equal(t, "paused", status.State)
}

func TestPlayerService_Modes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	status, err := env.client.SetVolume(ctx, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, status.Volume)
	assert.Equal(t, "high", status.VolumeLevel)

	status, err = env.client.SetVolume(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.Volume)

	status, err = env.client.SetShuffle(ctx, true)
	require.NoError(t, err)
	assert.True(t, status.Shuffle)

	status, err = env.client.ToggleShuffle(ctx)
	require.NoError(t, err)
	assert.False(t, status.Shuffle)

	status, err = env.client.SetRepeat(ctx, true)
	require.NoError(t, err)
	assert.True(t, status.Repeat)

	status, err = env.client.ToggleRepeat(ctx)
	require.NoError(t, err)
	assert.False(t, status.Repeat)
}

func TestPlayerService_PlayFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.upload(t, "broken.wav")

	env.media.failPlays(errors.New("decoder exploded"))
	_, err := env.client.Play(ctx)
	require.Error(t, err)
	assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsPlaying)
	assert.Contains(t, status.LastError, "decoder exploded")
}

func TestPlayerService_UploadRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.client.Upload(ctx, "notes.txt", []byte("just some text"))
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "notes.txt", res.Rejected[0].Filename)
	assert.Equal(t, "unsupported_format", res.Rejected[0].Code)
	assert.Equal(t, 0, res.PlaylistLength)

	// Missing filename header
	raw := connect.NewClient[wrapperspb.BytesValue, structpb.Struct](
		env.server.Client(), env.server.URL+PlayerServiceUploadProcedure,
		connect.WithInterceptors(&clientTokenInterceptor{token: testToken}))
	_, err = raw.CallUnary(ctx, connect.NewRequest(wrapperspb.Bytes(wavBytes(10))))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPlayerService_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "guess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewPlayerClient(env.server.Client(), env.server.URL, tt.token)

			_, err := client.Status(ctx)
			require.Error(t, err)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

			err = client.Subscribe(ctx, func(EventView) error { return nil })
			require.Error(t, err)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan EventView, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- env.client.Subscribe(ctx, func(ev EventView) error {
			received <- ev
			return nil
		})
	}()

	first := <-received
	assert.Equal(t, "status", first.Type)
	assert.Equal(t, "empty", first.State)

	env.upload(t, "A.wav")

	var types []string
	for len(types) < 2 {
		select {
		case ev := <-received:
			types = append(types, ev.Type)
			assert.Positive(t, ev.SequenceNo)
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []string{"playlist_appended", "track_loaded"}, types)

	cancel()
	assert.Error(t, <-errCh, "stream ends with the caller's context")
}

func TestTokenInterceptor_Disabled(t *testing.T) {
	i := &tokenInterceptor{}
	assert.NoError(t, i.authorize(""))
	assert.NoError(t, i.authorize("anything"))

	i = &tokenInterceptor{token: testToken}
	assert.NoError(t, i.authorize(testToken))
	assert.Error(t, i.authorize("other"))
}
