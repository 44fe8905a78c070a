// Command wavedit edits detected sound regions on an audio waveform timeline.
package main

import (
	"os"

	"github.com/Dicklesworthstone/wavedit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
