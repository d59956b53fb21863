// Package cmd provides the command-line interface for the MUX site.
//
// This package implements a cobra-based CLI with commands for:
//   - serve: Start the website and JSON API server
//   - session: Log in, log out and inspect a local session profile
//   - version: Display version and build information
//
// The CLI supports configuration via:
//   - Command-line flags
//   - Configuration files (YAML format)
//   - Environment variables prefixed with MUXSITE_ (e.g. MUXSITE_STORAGE_DRIVER)
//
// Configuration File Locations:
//   - Specified via --config flag
//   - $HOME/.muxsite.yaml (default)
package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile holds the path to the configuration file
	cfgFile string

	// log is the process-wide logger, configured from log.level and log.format
	log = logrus.New()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "muxsite",
		Short: "MUX site - marketing site with demo login, registration and admin panel",
		Long: `MUX site serves the marketing website together with its session layer.

The service provides:
  - Password login against demo and registered accounts
  - A simulated Discord login flow
  - 24 hour sessions with role gated pages
  - Registration with password strength scoring
  - An admin panel with a sales ledger and XML package files

Use "muxsite serve" to start the web server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging()
		},
	}
)

// Execute executes the root command and returns any error that occurs.
// This is the main entry point for the CLI application.
func Execute() error {
	return rootCmd.Execute()
}

// init initializes the command-line interface.
// It sets up configuration initialization and persistent flags.
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.muxsite.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().String("storage-driver", "file", "storage backend (memory, file, badger, redis, sqlite)")
	rootCmd.PersistentFlags().String("storage-path", "./data", "data directory of file based backends")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage-driver"))
	_ = viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("storage-path"))

	setDefaults(viper.GetViper())
}

// initConfig reads in config file and environment variables if set.
// This function is called during cobra initialization before command execution.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".muxsite" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".muxsite")
	}

	viper.SetEnvPrefix("MUXSITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

// setupLogging applies log.level and log.format to the process logger.
func setupLogging() error {
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if strings.EqualFold(viper.GetString("log.format"), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
