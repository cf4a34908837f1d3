package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sierranative/internal/compiler"
	"sierranative/internal/config"
	"sierranative/internal/sierra"
	"sierranative/internal/sierra/text"
)

// addCompileFlags registers the flags that override the [compile] and
// [gas] sections of the configuration.
func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("opt-level", "O", "", "optimization level (none|less|default|aggressive or 0..3)")
	cmd.Flags().Bool("no-gas", false, "disable gas metering")
	cmd.Flags().Bool("dynamic-costs", false, "read builtin costs at runtime")
}

// compileOptions merges the command flags over the loaded configuration.
func compileOptions(cmd *cobra.Command, moduleName string) (compiler.Options, error) {
	cfg := configFrom(cmd)
	base, err := cfg.CompileOptions()
	if err != nil {
		return compiler.Options{}, err
	}
	if s, _ := cmd.Flags().GetString("opt-level"); s != "" {
		lvl, err := config.ParseOptLevel(s)
		if err != nil {
			return compiler.Options{}, err
		}
		base.OptLevel = lvl
	}
	if cmd.Flags().Changed("no-gas") {
		base.Gas.Disabled, _ = cmd.Flags().GetBool("no-gas")
	}
	if cmd.Flags().Changed("dynamic-costs") {
		base.Gas.DynamicCosts, _ = cmd.Flags().GetBool("dynamic-costs")
	}
	return compiler.Options{CompileOptions: base, ModuleName: moduleName}, nil
}

// loadProgram parses a Sierra text file.
func loadProgram(path string) (*sierra.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return text.ParseFile(path)
}

func moduleNameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
