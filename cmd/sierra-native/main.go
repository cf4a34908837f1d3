package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"sierranative/internal/config"
	"sierranative/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "sierra-native",
	Short:         "Sierra to native code compiler",
	Long:          `sierra-native compiles Sierra programs to native modules and runs their entry points`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColor(cmd); err != nil {
			return err
		}
		configureLogging(cmd)
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := withConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)
		stopProfiles, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopProfiles)
		stopTracing, err := setupTracing(cmd, cfg)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopTracing)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		runCleanups()
	},
}

var cleanups []func()

// runCleanups stops tracing and profiling in reverse order of setup.
func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gasCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to "+config.FileName+" (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "log more (repeatable)")
	rootCmd.PersistentFlags().String("log", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	err := rootCmd.Execute()
	runCleanups()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	prefix := color.New(color.FgRed, color.Bold).Sprint("error:")
	fmt.Fprintf(os.Stderr, "%s %v\n", prefix, err)
}

func applyColor(cmd *cobra.Command) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func configureLogging(cmd *cobra.Command) {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	logPath, _ := cmd.Flags().GetString("log")
	var path *string
	if logPath != "" {
		path = &logPath
	}
	commonlog.Configure(verbosity, path)
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.File) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the configuration loaded for the running command.
func configFrom(cmd *cobra.Command) *config.File {
	if ctx := cmd.Context(); ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.File); ok && cfg != nil {
			return cfg
		}
	}
	return config.Default()
}

func loadConfig(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
