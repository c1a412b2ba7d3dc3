// Package main provides the remote control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	apiconnect "github.com/osa030/tunedeck/internal/api/connect"
	"github.com/osa030/tunedeck/internal/infra/config"
)

var (
	app    = kingpin.New("tunedeck-playerctl", "tunedeck remote control")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set "+config.EnvToken+" env)").Envar(config.EnvToken).String()

	statusCmd = app.Command("status", "Show the playback status").Default()
	listCmd   = app.Command("list", "List the playlist").Alias("ls")

	playCmd   = app.Command("play", "Start playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	toggleCmd = app.Command("toggle", "Toggle between play and pause")
	nextCmd   = app.Command("next", "Skip to the next track")
	prevCmd   = app.Command("prev", "Skip to the previous track").Alias("previous")

	selectCmd      = app.Command("select", "Play the track at a playlist position")
	selectPosition = selectCmd.Arg("position", "Playlist position (1-based)").Required().Int()

	shuffleCmd  = app.Command("shuffle", "Set or toggle shuffle mode")
	shuffleMode = shuffleCmd.Arg("mode", "on, off or toggle").Default("toggle").Enum("on", "off", "toggle")

	repeatCmd  = app.Command("repeat", "Set or toggle repeat mode")
	repeatMode = repeatCmd.Arg("mode", "on, off or toggle").Default("toggle").Enum("on", "off", "toggle")

	volumeCmd   = app.Command("volume", "Set the output volume")
	volumeValue = volumeCmd.Arg("value", "Volume between 0 and 1").Required().Float64()

	seekCmd     = app.Command("seek", "Seek within the current track")
	seekPercent = seekCmd.Arg("percent", "Target position as a percentage of the duration").Required().Float64()

	uploadCmd   = app.Command("upload", "Upload audio files to the playlist").Alias("add")
	uploadFiles = uploadCmd.Arg("files", "Audio files").Required().ExistingFiles()

	watchCmd = app.Command("watch", "Stream playback events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlayerClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = showStatus(client.Status(ctx))
	case listCmd.FullCommand():
		err = listTracks(ctx, client)
	case playCmd.FullCommand():
		err = showStatus(client.Play(ctx))
	case pauseCmd.FullCommand():
		err = showStatus(client.Pause(ctx))
	case toggleCmd.FullCommand():
		err = showStatus(client.TogglePlay(ctx))
	case nextCmd.FullCommand():
		err = showStatus(client.Next(ctx))
	case prevCmd.FullCommand():
		err = showStatus(client.Previous(ctx))
	case selectCmd.FullCommand():
		err = showStatus(client.SelectTrack(ctx, *selectPosition-1))
	case shuffleCmd.FullCommand():
		err = showStatus(setMode(ctx, *shuffleMode, client.SetShuffle, client.ToggleShuffle))
	case repeatCmd.FullCommand():
		err = showStatus(setMode(ctx, *repeatMode, client.SetRepeat, client.ToggleRepeat))
	case volumeCmd.FullCommand():
		err = showStatus(client.SetVolume(ctx, *volumeValue))
	case seekCmd.FullCommand():
		err = showStatus(client.Seek(ctx, *seekPercent/100))
	case uploadCmd.FullCommand():
		err = upload(ctx, client, *uploadFiles)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func setMode(
	ctx context.Context,
	mode string,
	set func(context.Context, bool) (apiconnect.StatusView, error),
	toggle func(context.Context) (apiconnect.StatusView, error),
) (apiconnect.StatusView, error) {
	switch mode {
	case "on":
		return set(ctx, true)
	case "off":
		return set(ctx, false)
	default:
		return toggle(ctx)
	}
}

func showStatus(s apiconnect.StatusView, err error) error {
	if err != nil {
		return err
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("State: %s\n", formatState(s.State))
	if s.Track != nil {
		fmt.Printf("\nTrack %d/%d:\n", s.Index+1, s.PlaylistLength)
		fmt.Printf("  Name: %s\n", s.Track.Name)
		fmt.Printf("  Artist: %s\n", s.Track.Artist)
		if s.Track.Album != "" {
			fmt.Printf("  Album: %s\n", s.Track.Album)
		}
		fmt.Printf("  Progress: %s / %s %s\n", s.PositionText, s.DurationText, progressBar(s.ProgressPercent, 20))
	} else {
		fmt.Println("\nPlaylist is empty")
	}
	fmt.Printf("\nVolume: %.0f%% (%s)\n", s.Volume*100, s.VolumeLevel)
	fmt.Printf("Shuffle: %s  Repeat: %s\n", onOff(s.Shuffle), onOff(s.Repeat))
	if s.LastError != "" {
		fmt.Printf("Last error: %s\n", text.FgHiRed.Sprint(s.LastError))
	}
	fmt.Println()
	return nil
}

func listTracks(ctx context.Context, client *apiconnect.PlayerClient) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	tracks, err := client.Tracks(ctx)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("Playlist is empty")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "#", "Name", "Artist", "Album", "Size"})
	for i, tr := range tracks {
		marker := ""
		if i == status.Index {
			marker = text.FgGreen.Sprint(lo.Ternary(status.IsPlaying, "▶", "■"))
		}
		t.AppendRow(table.Row{marker, i + 1, tr.Name, tr.Artist, tr.Album, formatSize(tr.Size)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", formatSize(status.PlaylistBytes)})
	t.Render()
	return nil
}

func upload(ctx context.Context, client *apiconnect.PlayerClient, files []string) error {
	var accepted, rejected int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}

		res, err := client.Upload(ctx, path, data)
		if err != nil {
			return errors.Wrapf(err, "failed to upload %s", path)
		}
		for _, tr := range res.Accepted {
			fmt.Printf("Added: %s - %s\n", tr.Name, tr.Artist)
		}
		for _, r := range res.Rejected {
			fmt.Printf("Rejected: %s (%s)\n", r.Filename, r.Code)
		}
		accepted += len(res.Accepted)
		rejected += len(res.Rejected)
	}
	fmt.Printf("\n%d added, %d rejected\n", accepted, rejected)
	return nil
}

func watch(ctx context.Context, client *apiconnect.PlayerClient) error {
	fmt.Println("Watching player events (Ctrl+C to stop)...")
	return client.Subscribe(ctx, func(ev apiconnect.EventView) error {
		switch ev.Type {
		case "progress":
			// Too chatty for a terminal
			return nil
		case "status":
			fmt.Printf("[status] state=%s index=%d\n", ev.State, ev.Index)
		case "track_loaded":
			name := ""
			if ev.Track != nil {
				name = ev.Track.Name + " - " + ev.Track.Artist
			}
			fmt.Printf("[%d] track loaded: %s\n", ev.SequenceNo, name)
		case "playback_failed":
			fmt.Printf("[%d] %s\n", ev.SequenceNo, text.FgHiRed.Sprintf("playback failed: %s", ev.Error))
		default:
			fmt.Printf("[%d] %s: state=%s index=%d\n", ev.SequenceNo, ev.Type, formatState(ev.State), ev.Index)
		}
		return nil
	})
}

func formatState(state string) string {
	switch state {
	case "playing":
		return text.FgGreen.Sprint("PLAYING")
	case "paused":
		return text.FgYellow.Sprint("PAUSED")
	case "empty":
		return text.FgHiBlack.Sprint("EMPTY")
	default:
		return strings.ToUpper(state)
	}
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = lo.Clamp(filled, 0, width)
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func onOff(b bool) string {
	return lo.Ternary(b, "on", "off")
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", n/1024)
}
