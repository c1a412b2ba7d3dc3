// Package connect provides Connect RPC service implementations.
package connect

// PlayerServiceName is the fully-qualified name of the PlayerService service.
const PlayerServiceName = "tunedeck.v1.PlayerService"

// Procedure paths of PlayerService.
const (
	PlayerServiceGetStatusProcedure     = "/tunedeck.v1.PlayerService/GetStatus"
	PlayerServiceListTracksProcedure    = "/tunedeck.v1.PlayerService/ListTracks"
	PlayerServicePlayProcedure          = "/tunedeck.v1.PlayerService/Play"
	PlayerServicePauseProcedure         = "/tunedeck.v1.PlayerService/Pause"
	PlayerServiceTogglePlayProcedure    = "/tunedeck.v1.PlayerService/TogglePlay"
	PlayerServiceNextProcedure          = "/tunedeck.v1.PlayerService/Next"
	PlayerServicePreviousProcedure      = "/tunedeck.v1.PlayerService/Previous"
	PlayerServiceSelectTrackProcedure   = "/tunedeck.v1.PlayerService/SelectTrack"
	PlayerServiceSetShuffleProcedure    = "/tunedeck.v1.PlayerService/SetShuffle"
	PlayerServiceToggleShuffleProcedure = "/tunedeck.v1.PlayerService/ToggleShuffle"
	PlayerServiceSetRepeatProcedure     = "/tunedeck.v1.PlayerService/SetRepeat"
	PlayerServiceToggleRepeatProcedure  = "/tunedeck.v1.PlayerService/ToggleRepeat"
	PlayerServiceSetVolumeProcedure     = "/tunedeck.v1.PlayerService/SetVolume"
	PlayerServiceSeekProcedure          = "/tunedeck.v1.PlayerService/Seek"
	PlayerServiceUploadProcedure        = "/tunedeck.v1.PlayerService/Upload"
	PlayerServiceSubscribeProcedure     = "/tunedeck.v1.PlayerService/Subscribe"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
	// TrackFilenameHeader carries the original filename of an uploaded payload.
	TrackFilenameHeader = "X-Track-Filename"
)
