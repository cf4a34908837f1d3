package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sierranative/internal/backend/llvm"
	"sierranative/internal/compiler"
	"sierranative/internal/executor"
	"sierranative/internal/target"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.sierra>",
	Short: "Compile a Sierra program and print the result",
	Long: `Compile a Sierra program through every stage and write one rendering of
the finalized module: the target IR (dump), LLVM IR (llvm) or a loadable
artifact (artifact).`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().String("emit", "dump", "what to write (dump|llvm|artifact)")
	compileCmd.Flags().StringP("output", "o", "", "output file (default: stdout; required for artifact)")
	addCompileFlags(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]
	emit, err := cmd.Flags().GetString("emit")
	if err != nil {
		return err
	}
	emit = strings.ToLower(emit)
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	switch emit {
	case "dump", "llvm":
	case "artifact":
		if output == "" {
			return fmt.Errorf("--emit artifact needs --output")
		}
	default:
		return fmt.Errorf("invalid --emit value %q (expected dump|llvm|artifact)", emit)
	}

	p, err := loadProgram(path)
	if err != nil {
		return err
	}
	opts, err := compileOptions(cmd, moduleNameOf(path))
	if err != nil {
		return err
	}
	res, err := compiler.Compile(cmd.Context(), p, opts)
	if err != nil {
		return err
	}

	if emit == "artifact" {
		art, err := executor.FromResult(res, opts)
		if err != nil {
			return err
		}
		if err := art.WriteFile(output); err != nil {
			return err
		}
	} else if err := writeOutput(cmd, output, func(w io.Writer) error {
		if emit == "llvm" {
			ir, err := llvm.EmitModule(res.Module)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, ir)
			return err
		}
		return target.Dump(w, res.Module)
	}); err != nil {
		return err
	}

	if showTimings(cmd) {
		printReport(cmd.ErrOrStderr(), res.Timings)
	}
	return nil
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
