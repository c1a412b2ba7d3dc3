package notification

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// Field names shared by notifications and status payloads.
const (
	FieldSequenceNo = "sequence_no"
	FieldType       = "type"
	FieldState      = "state"
	FieldIndex      = "index"
	FieldTrack      = "track"
	FieldPositionMs = "position_ms"
	FieldDurationMs = "duration_ms"
	FieldError      = "error"
)

// TrackFields returns the wire representation of a track.
func TrackFields(t track.Track) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"name":      t.Name,
		"artist":    t.DisplayArtist(),
		"album":     t.Album,
		"filename":  t.Filename,
		"mime_type": t.Source.MIMEType(),
		"size":      t.Source.Size(),
	}
}

// StatusFields returns the wire representation of a status snapshot,
// including the display values the view renders.
func StatusFields(s playback.Status) map[string]any {
	fields := map[string]any{
		FieldState:         s.State.String(),
		FieldIndex:         s.Index,
		"is_playing":       s.IsPlaying(),
		"shuffle":          s.Shuffle,
		"repeat":           s.Repeat,
		"volume":           s.Volume,
		"volume_level":     string(playback.LevelForVolume(s.Volume)),
		FieldPositionMs:    s.Position.Milliseconds(),
		FieldDurationMs:    s.Duration.Milliseconds(),
		"position_text":    playback.FormatTime(s.Position),
		"duration_text":    playback.FormatTime(s.Duration),
		"progress_percent": playback.ProgressPercent(s.Position, s.Duration),
		"playlist_length":  s.PlaylistLength,
		"playlist_bytes":   s.PlaylistBytes,
	}
	if s.Current != nil {
		fields[FieldTrack] = TrackFields(*s.Current)
	}
	if s.LastError != nil {
		fields["last_error"] = s.LastError.Error()
	}
	return fields
}

// EncodeStatus encodes a status snapshot as a protobuf struct.
func EncodeStatus(s playback.Status) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(StatusFields(s))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode status")
	}
	return st, nil
}

// EncodeEvent encodes a controller event as a notification.
func EncodeEvent(e playback.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		FieldType:       e.Type.String(),
		FieldState:      e.State.String(),
		FieldIndex:      e.Index,
		FieldPositionMs: e.Position.Milliseconds(),
		FieldDurationMs: e.Duration.Milliseconds(),
	}
	if e.Track != nil {
		fields[FieldTrack] = TrackFields(*e.Track)
	}
	if e.Err != nil {
		fields[FieldError] = e.Err.Error()
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s event", e.Type)
	}
	return st, nil
}
