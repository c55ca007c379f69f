package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"e621dl/pkg/config"
	"e621dl/pkg/ui"
)

// configCmd groups the configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the e621dl configuration file.

Settings are taken from, highest priority first:
  - Command line flags
  - Environment variables (E621DL_*, also read from .env)
  - The configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file",
	Long: `Create the default configuration file with two example searches.

The file is created as config.yaml in the current directory unless another
path is given with --config. An existing file is never overwritten.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file for errors",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	ui.NewConsole(quiet).Success("Configuration file created at %s.", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, commonFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	console := ui.NewConsole(quiet)

	cfg, err := config.Load(configFile, commonFlags())
	if err != nil {
		console.Error("Configuration is invalid: %v", err)
		return err
	}

	console.Success("Configuration is valid.")
	console.Field("searches", fmt.Sprint(len(cfg.Searches)))
	console.Field("blacklist", fmt.Sprint(len(cfg.Blacklist)))
	console.Field("download directory", cfg.Output.BaseDirectory)
	return nil
}
