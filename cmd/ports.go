package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"go-keyfall/device"
)

var portsTimeout time.Duration

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().DurationVar(&portsTimeout, "timeout", device.DefaultTimeout, "give up on a hung MIDI driver after this long")
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := device.ListPorts(portsTimeout)
		if err != nil {
			return err
		}
		printPorts(cmd.OutOrStdout(), ports)
		return nil
	},
}

func printPorts(w io.Writer, ports device.Ports) {
	section := func(title string, names []string) {
		fmt.Fprintln(w, title)
		if len(names) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for i, n := range names {
			fmt.Fprintf(w, "  %d: %s\n", i, n)
		}
	}
	section("inputs", ports.Inputs)
	fmt.Fprintln(w)
	section("outputs", ports.Outputs)
}
