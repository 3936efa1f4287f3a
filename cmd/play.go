package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-keyfall/config"
	"go-keyfall/debug"
	"go-keyfall/device"
	"go-keyfall/game"
	"go-keyfall/leaderboard"
	"go-keyfall/midi"
	"go-keyfall/playback"
	"go-keyfall/theme"
	"go-keyfall/tui"
)

var playFlags struct {
	mode    string
	learn   string
	track   int
	in      string
	out     string
	speed   float64
	palette string
	debug   bool
	logFile string
}

func init() {
	rootCmd.AddCommand(playCmd)

	f := playCmd.Flags()
	f.StringVarP(&playFlags.mode, "mode", "m", "play", "play, practice or learn")
	f.StringVar(&playFlags.learn, "learn", "waiting", "learn mode helpers: waiting, adaptive or both")
	f.IntVarP(&playFlags.track, "track", "t", game.AllTracks, "track pair to play (see inspect), -1 for all")
	f.StringVar(&playFlags.in, "in", "", "MIDI input port, overrides the config")
	f.StringVar(&playFlags.out, "out", "", "MIDI output port, overrides the config")
	f.Float64Var(&playFlags.speed, "speed", 0, "playback speed, 0 keeps the saved speed")
	f.StringVar(&playFlags.palette, "palette", "", "GIMP palette (.gpl) to draw with")
	f.BoolVar(&playFlags.debug, "debug", false, "write a debug log")
	f.StringVar(&playFlags.logFile, "log-file", "", "debug log path (default ~/.config/go-keyfall/debug.log)")
}

var playCmd = &cobra.Command{
	Use:   "play <file.mid>",
	Short: "Play along with a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return play(args[0])
	},
}

// parseMode turns the --mode and --learn flags into game options
func parseMode(mode, learn string) (game.Options, error) {
	var opts game.Options
	switch strings.ToLower(mode) {
	case "play":
		opts.Mode = game.Play
	case "practice":
		opts.Mode = game.Practice
	case "learn":
		opts.Mode = game.Learn
	default:
		return opts, fmt.Errorf("unknown mode %q", mode)
	}
	if opts.Mode != game.Learn {
		return opts, nil
	}
	switch strings.ToLower(learn) {
	case "waiting", "wait":
		opts.Waiting = true
	case "adaptive":
		opts.Adaptive = true
	case "both":
		opts.Waiting, opts.Adaptive = true, true
	default:
		return opts, fmt.Errorf("unknown learn option %q", learn)
	}
	return opts, nil
}

func openStore(cfg *config.Config) (leaderboard.Store, error) {
	if cfg.Store.Table != "" {
		return leaderboard.NewDynamoStore(cfg.Store)
	}
	dir, err := leaderboard.DefaultDir()
	if err != nil {
		return nil, err
	}
	return leaderboard.NewFileStore(dir), nil
}

func loadTheme(path string) (*theme.Theme, error) {
	if path == "" {
		return theme.New(theme.Plasma()), nil
	}
	palette, err := theme.LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return theme.New(palette), nil
}

func play(path string) error {
	if playFlags.debug {
		if err := debug.Enable(playFlags.logFile); err != nil {
			return err
		}
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if playFlags.in != "" {
		cfg.Ports.Input = playFlags.in
	}
	if playFlags.out != "" {
		cfg.Ports.Output = playFlags.out
	}
	if playFlags.speed > 0 {
		cfg.Playback.Speed = playFlags.speed
	}

	opts, err := parseMode(playFlags.mode, playFlags.learn)
	if err != nil {
		return err
	}
	opts.Pair = playFlags.track

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := midi.Load(data, cfg.Playback)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	th, err := loadTheme(playFlags.palette)
	if err != nil {
		return err
	}

	var sink playback.Sink = device.NullSink{}
	if out, err := device.OpenSink(cfg.Ports.Output); err != nil {
		fmt.Fprintf(os.Stderr, "no MIDI output, playing silently: %v\n", err)
	} else {
		defer out.Close()
		sink = out
	}

	in, err := device.OpenInput(cfg.Ports.Input)
	if err != nil {
		if opts.Mode != game.Practice {
			fmt.Fprintf(os.Stderr, "no MIDI input, switching to practice: %v\n", err)
		}
		opts = game.Options{Mode: game.Practice, Pair: opts.Pair}
	} else {
		defer in.Close()
	}

	g, err := game.New(f, cfg, sink, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leaderboard unavailable: %v\n", err)
		store = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := device.NewWatcher()
	go watcher.Run(ctx)

	m := tui.NewModel(g, tui.Options{
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Song:    leaderboard.SongKey(data),
		Config:  cfg,
		Theme:   th,
		Input:   in,
		Watcher: watcher,
		Store:   store,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	g.SetPaused(true)
	if in != nil && in.Dropped() > 0 {
		debug.Warn("input", "dropped %d events", in.Dropped())
	}
	return err
}
