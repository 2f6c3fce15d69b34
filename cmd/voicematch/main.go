// Voicematch generates spoken variations of a word list and reconciles
// their transcriptions into a dictionary.
//
// Usage:
//
//	# Run a pipeline in this process
//	voicematch run --words apple,banana
//
//	# Host the workflow on a Temporal worker and start a run
//	voicematch worker
//	voicematch start --wait
//
//	# Serve the HTTP API
//	voicematch serve
//
//	# Resolve spoken text to a dictionary word
//	voicematch match star bucks
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voicematch",
		Short: "Generate and reconcile spoken word variations",
		Long: `voicematch synthesizes every word of a list in several voices, transcribes
the clips back and writes the recognized variations per word.

Configuration is read from ~/.config/voicematch/config.yaml and
VOICEMATCH_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/voicematch/config.yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newMatchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "voicematch by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
