package main

import (
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"go-keyfall/cmd"
)

func main() {
	cmd.Execute()
}
