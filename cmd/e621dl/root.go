package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "5.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	quiet      bool
)

// rootCmd downloads everything the configured searches match
var rootCmd = &cobra.Command{
	Use:   "e621dl",
	Short: "Batch downloader for e621 searches",
	Long: `e621dl downloads every post matching the searches in its configuration file.

Each search lists any number of tags. The first five are sent to the
server and the rest are checked locally. Posts are filtered by date, rating,
score, favorites and a global blacklist, and saved to one directory per
search. Interrupted downloads are resumed on the next run.

When no configuration file exists a default one is created.`,
	Example: `  # Run every configured search
  e621dl

  # Use another configuration file and download directory
  e621dl --config ~/e621.yaml --output ~/pictures/e621`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDownload,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`e621dl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commonFlags collects the global flags in the form config.Load merges
func commonFlags() map[string]interface{} {
	return map[string]interface{}{
		"log-level": logLevel,
		"log-file":  logFile,
	}
}
