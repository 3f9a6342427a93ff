package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"composeim/internal/config"
	"composeim/internal/ibus"
)

func newIBusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ibus",
		Short: "Run or install the IBus engine",
	}
	cmd.AddCommand(newIBusRunCmd(a), newIBusInstallCmd(a), newIBusUninstallCmd(a))
	return cmd
}

func newIBusRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the engine factory on the IBus bus",
		Long: `Serves org.freedesktop.IBus.Factory until interrupted. ibus-daemon
starts this through the Exec line written by "composeim ibus install".`,
		Args: cobra.NoArgs,
		// ibus-daemon appends --ibus when launching components.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.Backend = config.BackendIBus
			return a.serve(cmd.Context(), cfg)
		},
	}
}

// componentDir resolves the install directory: flag, then config, then the
// IBus per-user default.
func (a *app) componentDir(flagDir string) (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.IBus.ComponentDir != "" {
		return cfg.IBus.ComponentDir, nil
	}
	return ibus.ComponentDir()
}

func newIBusInstallCmd(a *app) *cobra.Command {
	var dir, exe string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the IBus component file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.componentDir(dir)
			if err != nil {
				return err
			}
			if exe == "" {
				if exe, err = os.Executable(); err != nil {
					return fmt.Errorf("locate executable: %w", err)
				}
				if resolved, err := filepath.EvalSymlinks(exe); err == nil {
					exe = resolved
				}
			}

			execLine := exe + " ibus run"
			if a.configPath != "" {
				abs, err := filepath.Abs(a.configPath)
				if err != nil {
					return err
				}
				execLine += " --config " + abs
			}

			path, err := ibus.Install(target, ibus.NewComponent(execLine, Version))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\nRun 'ibus restart' to load the engine.\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "component directory (default: ibus.component_dir or $XDG_DATA_HOME/ibus/component)")
	cmd.Flags().StringVar(&exe, "exec", "", "executable recorded in the component (default: this binary)")
	return cmd
}

func newIBusUninstallCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the IBus component file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.componentDir(dir)
			if err != nil {
				return err
			}
			if err := ibus.Uninstall(target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Uninstalled.")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "component directory")
	return cmd
}
