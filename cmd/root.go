package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keyfall",
	Short: "Play along with MIDI files on a MIDI keyboard",
	Long: `keyfall plays a Standard MIDI File through a MIDI output while notes fall
toward an on-screen keyboard. Hits on the MIDI input are judged against the
file and scored, and finished Play runs go on a per-song leaderboard.`,
	SilenceUsage: true,
}

func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
}
