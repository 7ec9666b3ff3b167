package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "okrsync",
	Short: "OKR initiative sync service",
	Long: `okrsync keeps a snapshot of OKR initiatives in sync with CSV uploads and
free-text chat updates. A language model parses the CSV, a conversational
agent turns status updates into structured fragments, and a merge step folds
those fragments back into the snapshot.

Configuration is read from the environment (see OKRSYNC_* and LOG_LEVEL).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd(), runCmd(), versionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
