package library

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// wavBytes builds a mono 16-bit PCM WAV payload with the given number of silent samples.
func wavBytes(samples int) []byte {
	const sampleRate = 8000
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// id3Bytes builds an ID3v2.3 tag with text frames followed by a few fake MPEG bytes.
func id3Bytes(frames map[string]string) []byte {
	var body bytes.Buffer
	for _, id := range []string{"TIT2", "TPE1", "TALB"} {
		text, ok := frames[id]
		if !ok {
			continue
		}
		body.WriteString(id)
		_ = binary.Write(&body, binary.BigEndian, uint32(len(text)+1))
		body.Write([]byte{0, 0}) // flags
		body.WriteByte(0)        // ISO-8859-1
		body.WriteString(text)
	}

	size := body.Len()
	var buf bytes.Buffer
	buf.WriteString("ID3")
	buf.Write([]byte{3, 0, 0})
	// Syncsafe size
	buf.Write([]byte{byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)})
	buf.Write(body.Bytes())
	buf.Write([]byte{0xff, 0xfb, 0x90, 0x00})
	buf.Write(make([]byte, 256))
	return buf.Bytes()
}

func newAudioImporter() *Importer {
	chain := filter.NewChain()
	chain.Add(filter.NewAudioFormatFilter())
	return NewImporter(chain)
}

func TestImporter_Import(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	imp := newAudioImporter()
	imp.now = func() time.Time { return fixed }

	files := []File{
		{Name: "Morning Song.wav", Data: wavBytes(100)},
		{Name: "notes.txt", Data: []byte("just some text, not audio at all")},
		{Name: "uploads/Road.Trip.mp3", Data: id3Bytes(map[string]string{"TIT2": "Night Drive", "TPE1": "The Band", "TALB": "Highway"})},
		{Name: "untitled.mp3", Data: id3Bytes(map[string]string{"TALB": "B-Sides"})},
	}

	tracks, rejections := imp.Import(context.Background(), files, filter.OriginUpload)

	require.Len(t, tracks, 3)
	assert.Equal(t, []Rejection{{Filename: "notes.txt", Code: "unsupported_format"}}, rejections)

	// Untagged file: name from filename, placeholder artist
	assert.Equal(t, "Morning Song", tracks[0].Name)
	assert.Equal(t, track.UnknownArtist, tracks[0].Artist)
	assert.Equal(t, "Morning Song.wav", tracks[0].Filename)
	assert.Equal(t, "audio/wav", tracks[0].Source.MIMEType())
	assert.Equal(t, fixed, tracks[0].AddedAt)

	// Tagged file: tags win
	assert.Equal(t, "Night Drive", tracks[1].Name)
	assert.Equal(t, "The Band", tracks[1].Artist)
	assert.Equal(t, "Highway", tracks[1].Album)
	assert.Equal(t, "Road.Trip.mp3", tracks[1].Filename)
	assert.Equal(t, "audio/mpeg", tracks[1].Source.MIMEType())

	// Partial tags: missing values fall back
	assert.Equal(t, "untitled", tracks[2].Name)
	assert.Equal(t, track.UnknownArtist, tracks[2].Artist)
	assert.Equal(t, "B-Sides", tracks[2].Album)

	ids := map[string]bool{}
	for _, tr := range tracks {
		assert.NotEmpty(t, tr.ID)
		ids[tr.ID] = true
	}
	assert.Len(t, ids, 3, "ids are unique")
}

func TestImporter_ImportDuplicatesAllowed(t *testing.T) {
	imp := newAudioImporter()
	data := wavBytes(10)

	tracks, rejections := imp.Import(context.Background(), []File{
		{Name: "a.wav", Data: data},
		{Name: "a.wav", Data: data},
	}, filter.OriginUpload)

	assert.Len(t, tracks, 2)
	assert.Empty(t, rejections)
	assert.NotEqual(t, tracks[0].ID, tracks[1].ID)
}

func TestImporter_ImportWithoutFilters(t *testing.T) {
	imp := NewImporter(nil)
	tracks, rejections := imp.Import(context.Background(), []File{{Name: "x.bin", Data: []byte{1, 2, 3}}}, filter.OriginUpload)
	assert.Len(t, tracks, 1, "empty chain accepts everything")
	assert.Empty(t, rejections)
	assert.Equal(t, "x", tracks[0].Name)
}

func TestImporter_ImportDecodeCheck(t *testing.T) {
	var checked []string
	imp := NewImporter(nil, WithDecodeCheck(func(mimeType string) bool {
		checked = append(checked, mimeType)
		return mimeType == "audio/wav"
	}))

	tracks, _ := imp.Import(context.Background(), []File{
		{Name: "a.wav", Data: wavBytes(10)},
		{Name: "b.mp3", Data: id3Bytes(map[string]string{"TIT2": "B"})},
	}, filter.OriginUpload)

	assert.Len(t, tracks, 2, "undecodable formats are still imported")
	assert.Equal(t, []string{"audio/wav", "audio/mpeg"}, checked)
}

func TestImporter_ScanDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.wav"), wavBytes(10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), wavBytes(10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello world, this is text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.wav"), wavBytes(10), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755))

	tracks, rejections, err := newAudioImporter().ScanDir(context.Background(), dir)
	require.NoError(t, err)

	names := make([]string, len(tracks))
	for i, tr := range tracks {
		names[i] = tr.Name
	}
	assert.Equal(t, []string{"a", "b"}, names, "sorted by filename")
	assert.Equal(t, []Rejection{{Filename: "readme.txt", Code: "unsupported_format"}}, rejections)
}

func TestImporter_ScanDirMissing(t *testing.T) {
	_, _, err := newAudioImporter().ScanDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestImporter_Watch(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var got []track.Track

	lister := &stubLister{}
	chain := filter.NewChain()
	chain.Add(filter.NewAudioFormatFilter())
	chain.Add(filter.NewDuplicateFileFilter(lister))
	imp := NewImporter(chain, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- imp.Watch(ctx, dir, func(ts []track.Track) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ts...)
			lister.add(ts...)
		})
	}()

	// Give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	data := wavBytes(50)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.wav"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("plain text content here"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Rewriting the same content is skipped as a duplicate
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.wav"), data, 0o644))
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	assert.Len(t, got, 1)
	assert.Equal(t, "dropped", got[0].Name)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

type stubLister struct {
	mu     sync.Mutex
	tracks []track.Track
}

func (s *stubLister) add(ts ...track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, ts...)
}

func (s *stubLister) Tracks() []track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]track.Track(nil), s.tracks...)
}
