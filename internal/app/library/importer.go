// Package library turns picked audio files into playlist tracks.
package library

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// CodeReadError is reported for library files that could not be read.
const CodeReadError = "read_error"

// File is one picked file.
type File struct {
	Name string // Filename as picked (directories are ignored)
	Data []byte
}

// Rejection describes a picked file that did not become a track.
type Rejection struct {
	Filename string
	Code     string
}

// Importer converts picked files into tracks, skipping anything the filter chain rejects.
type Importer struct {
	chain     *filter.Chain
	debounce  time.Duration
	now       func() time.Time
	canDecode func(mimeType string) bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithDebounce sets how long Watch waits for a file to settle before importing it.
func WithDebounce(d time.Duration) Option {
	return func(i *Importer) {
		i.debounce = d
	}
}

// WithDecodeCheck reports accepted tracks whose MIME type fn says cannot be decoded.
// Such tracks are still imported; playing them fails.
func WithDecodeCheck(fn func(mimeType string) bool) Option {
	return func(i *Importer) {
		i.canDecode = fn
	}
}

// NewImporter creates an importer using the given filter chain.
func NewImporter(chain *filter.Chain, opts ...Option) *Importer {
	if chain == nil {
		chain = filter.NewChain()
	}
	i := &Importer{
		chain:    chain,
		debounce: 500 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import converts files into tracks in input order.
// Rejected files are reported with the code of the filter that rejected them.
func (i *Importer) Import(ctx context.Context, files []File, origin filter.Origin) ([]track.Track, []Rejection) {
	var tracks []track.Track
	var rejections []Rejection

	for _, f := range files {
		mime := mimetype.Detect(f.Data)
		candidate := filter.Candidate{
			Filename: filepath.Base(f.Name),
			MIMEType: mime.String(),
			Size:     int64(len(f.Data)),
			Origin:   origin,
		}

		result := i.chain.Execute(ctx, candidate)
		if !result.Accepted {
			zlog.Debug().Msgf("library: file rejected: name=%s mime=%s code=%s", candidate.Filename, candidate.MIMEType, result.Code)
			rejections = append(rejections, Rejection{Filename: candidate.Filename, Code: result.Code})
			continue
		}

		t := i.newTrack(candidate.Filename, f.Data, mime)
		if i.canDecode != nil && !i.canDecode(t.Source.MIMEType()) {
			zlog.Warn().Msgf("library: no decoder for format, playback will fail: name=%s mime=%s", t.Filename, t.Source.MIMEType())
		}
		zlog.Debug().Msgf("library: file imported: name=%s artist=%s mime=%s size=%d", t.Name, t.Artist, candidate.MIMEType, candidate.Size)
		tracks = append(tracks, t)
	}
	return tracks, rejections
}

// newTrack builds a track, preferring embedded tags over the filename.
func (i *Importer) newTrack(filename string, data []byte, mime *mimetype.MIME) track.Track {
	t := track.Track{
		ID:       uuid.New().String(),
		Name:     track.NameFromFilename(filename),
		Artist:   track.UnknownArtist,
		Filename: filename,
		Source:   track.NewSource(data, baseMIMEType(mime.String())),
		AddedAt:  i.now(),
	}

	metadata, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		// Untagged files keep the filename defaults
		return t
	}
	if title := strings.TrimSpace(metadata.Title()); title != "" {
		t.Name = title
	}
	if artist := strings.TrimSpace(metadata.Artist()); artist != "" {
		t.Artist = artist
	}
	t.Album = strings.TrimSpace(metadata.Album())
	return t
}

// ScanDir imports every regular, non-hidden file in dir in name order.
func (i *Importer) ScanDir(ctx context.Context, dir string) ([]track.Track, []Rejection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read library dir %s", dir)
	}

	entries = lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return e.Type().IsRegular() && !isHidden(e.Name())
	})

	var files []File
	var rejections []Rejection
	for _, e := range entries {
		f, err := readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			zlog.Warn().Msgf("library: failed to read file: name=%s err=%v", e.Name(), err)
			rejections = append(rejections, Rejection{Filename: e.Name(), Code: CodeReadError})
			continue
		}
		files = append(files, f)
	}

	tracks, rejected := i.Import(ctx, files, filter.OriginLibrary)
	zlog.Info().Msgf("library: scanned dir: dir=%s imported=%d rejected=%d", dir, len(tracks), len(rejections)+len(rejected))
	return tracks, append(rejections, rejected...), nil
}

// readFile reads a library file.
func readFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "failed to read file")
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// baseMIMEType strips parameters from a MIME type.
func baseMIMEType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
