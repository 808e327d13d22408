// Command pilgi serves speech-to-text transcription over HTTP and runs
// one-off transcriptions from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "pilgi",
	Short:         "Transcribe audio and video with a Whisper-family model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: config.yml in the standard locations)")
	rootCmd.AddCommand(serveCmd, transcribeCmd, prepareCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
