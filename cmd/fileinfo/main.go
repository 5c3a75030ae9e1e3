package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/codehost_agent/internal/config"
	"github.com/dgnsrekt/codehost_agent/internal/controller"
)

var rootCmd = &cobra.Command{
	Use:           "fileinfo",
	Short:         "Resolve repository, path and revision from code-host pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorMode(globalColor); err != nil {
			return err
		}
		switch strings.ToLower(globalFormat) {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", globalFormat)
		}
		level := slog.LevelWarn
		if globalVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

var (
	globalColor   string
	globalFormat  string
	globalMode    string
	globalHosts   string
	globalVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&globalColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().StringVar(&globalFormat, "format", "pretty", "output format (pretty|json)")
	rootCmd.PersistentFlags().StringVar(&globalMode, "mode", "auto", "resolver to run (auto|file|diff|snippet)")
	rootCmd.PersistentFlags().StringVar(&globalHosts, "hosts", "", "TOML host profiles file (defaults to HOST_PROFILES_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(tabCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(renderCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func applyColorMode(mode string) error {
	switch strings.ToLower(mode) {
	case "auto":
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

// loadConfig reads the controller configuration and host profiles shared
// by every subcommand.
func loadConfig() (*config.ControllerConfig, []controller.Option, error) {
	cfg, err := config.LoadController()
	if err != nil {
		return nil, nil, err
	}
	path := cfg.HostProfilesFile
	if globalHosts != "" {
		path = globalHosts
	}
	profiles, err := config.LoadHostProfiles(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, []controller.Option{controller.WithProfiles(profiles)}, nil
}
