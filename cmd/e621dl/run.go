package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"e621dl/pkg/auth"
	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	"e621dl/pkg/logger"
	"e621dl/pkg/scraper"
	"e621dl/pkg/ui"
)

const releaseCheckTimeout = 10 * time.Second

var (
	outputDir      string
	baseURL        string
	accountName    string
	includeMD5     bool
	noReleaseCheck bool
)

func init() {
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory (default: downloads)")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	rootCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	rootCmd.Flags().BoolVar(&includeMD5, "include-md5", false, "include the md5 in file names")
	rootCmd.Flags().BoolVar(&noReleaseCheck, "no-release-check", false, "skip the check for a newer version")
}

func runDownload(cmd *cobra.Command, _ []string) error {
	console := ui.NewConsole(quiet)

	flags := commonFlags()
	flags["output"] = outputDir
	flags["base-url"] = baseURL
	flags["include-md5"] = includeMD5
	flags["no-release-check"] = noReleaseCheck

	cfg, err := config.Load(configFile, flags)
	if errors.Is(err, config.ErrConfigNotFound) {
		return createDefaultConfig(console)
	}
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := e621.NewClient(&cfg.Network, log)
	console.Info("Running e621dl version %s.", version)
	if cfg.Network.CheckRelease {
		checkRelease(ctx, client, console, log)
	}

	if account := loadAccount(log); account != nil {
		client.SetCredentials(account.Login, account.APIKey)
		console.Info("Using account %s.", account.Login)
	}

	s := scraper.New(client, cfg, console, log)
	_, err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		console.Warning("Interrupted. Partial downloads will be resumed on the next run.")
		return nil
	}
	if err != nil {
		return err
	}

	console.Success("All searches finished.")
	return nil
}

func createDefaultConfig(console *ui.Console) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	console.Notice("New default config file created at %s. Please add tag groups to this file.", path)
	return nil
}

// checkRelease prints a notice when a newer release exists. Failures only
// reach the debug log.
func checkRelease(ctx context.Context, client *e621.Client, console *ui.Console, log logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, releaseCheckTimeout)
	defer cancel()

	release, err := client.LatestRelease(ctx)
	if err != nil {
		log.WithError(err).Debug("release check failed")
		return
	}
	if release.NewerThan(version) {
		console.Notice("A new version of e621dl is available: %s (%s).", release.Version(), release.HTMLURL)
	}
}

// loadAccount returns the stored account to authenticate with, or nil to run
// anonymously
func loadAccount(log logger.Logger) *auth.Account {
	manager, err := credentialManager()
	if err != nil {
		log.WithError(err).Debug("credential storage unavailable")
		return nil
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Load(accountName)
	} else {
		account, err = manager.Default()
	}
	if err != nil {
		if accountName != "" {
			log.WithError(err).Warn("stored account not found, running anonymously")
		}
		return nil
	}
	return account
}

func credentialManager() (*auth.Manager, error) {
	dir, err := auth.ConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(dir)
}
