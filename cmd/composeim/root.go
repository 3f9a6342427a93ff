package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"composeim/internal/config"
	"composeim/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// app holds the persistent flags shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "composeim",
		Short:        "Compose-key input method for Wayland and IBus",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: search ./config.* and $XDG_CONFIG_HOME/composeim)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCmd(a),
		newIBusCmd(a),
		newStatsCmd(a),
		newTableCmd(),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// resolvedPath returns the config file in effect, or "" when running on
// defaults.
func (a *app) resolvedPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.FindConfigFile()
}

// loadConfig loads and checks the configuration, applying flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.resolvedPath())
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if _, err := config.Check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config, component string) (*logging.Logger, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return logging.New(cfg.LoggerConfig(component))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "composeim %s\n", Version)
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
				fmt.Fprintf(out, "module: %s\n", bi.Main.Version)
			}
		},
	}
}
