package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/prefs/internal/config"
)

var version = "dev"

var (
	noColor bool
	cfg     config.Config

	// loadConfig is replaced in tests.
	loadConfig = config.Load
)

var rootCmd = &cobra.Command{
	Use:           "prefsctl",
	Short:         "Inspect and edit preference records",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("schema", "", "path to the YAML schema descriptor (env PREFSCTL_SCHEMA)")
	pf.String("dir", "", "storage directory (env PREFSCTL_DIR)")
	pf.String("namespace", "", "key namespace for sqlite, badger and memory backends (env PREFSCTL_NAMESPACE)")
	pf.String("backend", "", "storage backend: file, sqlite, badger or memory (env PREFSCTL_BACKEND)")
	pf.String("format", "", "record format: toml or yaml (env PREFSCTL_FORMAT)")
	pf.Bool("strict", false, "fail on stored values of the wrong type")
	pf.String("log-level", "", "log level: debug, info, warn or error (env PREFSCTL_LOG_LEVEL)")
	pf.BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(showCmd, getCmd, setCmd, editCmd, pathCmd, fieldsCmd)
	rootCmd.AddCommand(serveCmd, watchCmd, remoteCmd, configCmd)
}

// setup loads configuration, applies flag overrides and installs the logger.
func setup(cmd *cobra.Command) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("schema", &loaded.Schema.Path)
	override("dir", &loaded.Storage.Dir)
	override("namespace", &loaded.Storage.Namespace)
	override("backend", &loaded.Storage.Backend)
	override("format", &loaded.Storage.Format)
	override("log-level", &loaded.Log.Level)
	if flags.Changed("strict") {
		loaded.Storage.Strict, _ = flags.GetBool("strict")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	level, _ := loaded.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
