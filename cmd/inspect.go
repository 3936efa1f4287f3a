package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"go-keyfall/config"
	"go-keyfall/device"
	"go-keyfall/game"
	"go-keyfall/leaderboard"
	"go-keyfall/midi"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Show a MIDI file's tracks and the pairs --track selects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return inspect(cmd.OutOrStdout(), data)
	},
}

func inspect(w io.Writer, data []byte) error {
	cfg := config.DefaultConfig()
	f, err := midi.Load(data, cfg.Playback)
	if err != nil {
		return err
	}

	h := f.Header
	fmt.Fprintf(w, "song     %s\n", leaderboard.SongKey(data))
	fmt.Fprintf(w, "size     %s\n", humanize.Bytes(uint64(len(data))))
	fmt.Fprintf(w, "format   %d, %d of %d tracks read\n", h.Format, len(f.Tracks), h.Tracks)
	fmt.Fprintf(w, "timing   %s\n", h.Division)
	fmt.Fprintf(w, "events   %s, %s notes\n", humanize.Comma(int64(len(f.Events))), humanize.Comma(int64(f.NoteCount())))
	if tl := f.Timeline; tl != nil && !tl.Empty() {
		length := time.Duration(tl.LastEvent-tl.FirstNote) * time.Microsecond
		fmt.Fprintf(w, "length   %s, %.0f bpm at the first note\n", length.Round(time.Second), midi.BPM(tl.TempoAt(tl.FirstNote)))
	}

	fmt.Fprintln(w, "\ntracks")
	for _, t := range f.Tracks {
		name := t.Name
		if name == "" {
			name = "-"
		}
		if t.Notes == 0 {
			fmt.Fprintf(w, "  %2d  %-24s no notes\n", t.Index+1, name)
			continue
		}
		fmt.Fprintf(w, "  %2d  %-24s %-20s %5d notes  %s-%s\n", t.Index+1, name, t.Instrument(), t.Notes,
			midi.NoteName(t.MinNote), midi.NoteName(t.MaxNote))
	}

	g, err := game.New(f, cfg, device.NullSink{}, game.Options{Mode: game.Practice, Pair: game.AllTracks})
	if err != nil {
		fmt.Fprintln(w, "\nnothing to play")
		return nil
	}
	fmt.Fprintln(w, "\n--track")
	fmt.Fprintf(w, "  %2d  %s\n", game.AllTracks, "All tracks")
	for i, p := range g.Pairs() {
		fmt.Fprintf(w, "  %2d  %s\n", i, p.Label)
	}
	return nil
}
