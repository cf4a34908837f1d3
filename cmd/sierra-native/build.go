package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sierranative/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build <file.sierra>...",
	Short: "Compile Sierra programs in parallel",
	Long: `Compile every file through the program cache. With --out-dir the LLVM IR
of each module is written next to the others; --shared links it into a
shared object with clang.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("out-dir", "", "directory for emitted files")
	buildCmd.Flags().Bool("emit-llvm", false, "keep <name>.ll in --out-dir")
	buildCmd.Flags().Bool("shared", false, "link <name>.so with clang (needs --out-dir)")
	buildCmd.Flags().IntP("jobs", "j", 0, "parallel compilations (default: GOMAXPROCS)")
	buildCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	buildCmd.Flags().Bool("print-commands", false, "print external commands before running them")
	addCompileFlags(buildCmd)
	addCacheFlag(buildCmd)
}

// useProgressUI resolves --ui. Printed commands would tear the progress
// view, so they force plain output.
func useProgressUI(value string, printCommands bool) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return !printCommands && isTerminal(os.Stdout), nil
	case "on":
		return !printCommands, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	emitLLVM, _ := cmd.Flags().GetBool("emit-llvm")
	shared, _ := cmd.Flags().GetBool("shared")
	jobs, _ := cmd.Flags().GetInt("jobs")
	printCommands, _ := cmd.Flags().GetBool("print-commands")
	uiValue, _ := cmd.Flags().GetString("ui")
	withUI, err := useProgressUI(uiValue, printCommands)
	if err != nil {
		return err
	}
	if emitLLVM && outDir == "" {
		return fmt.Errorf("--emit-llvm needs --out-dir")
	}

	opts, err := compileOptions(cmd, "")
	if err != nil {
		return err
	}
	pc, err := openCache(cmd)
	if err != nil {
		return err
	}
	req := &pipeline.Request{
		Files:         args,
		Options:       opts,
		Cache:         pc,
		OutDir:        outDir,
		EmitLLVM:      emitLLVM,
		Shared:        shared,
		Jobs:          jobs,
		PrintCommands: printCommands,
	}

	var res *pipeline.Result
	if withUI {
		res, err = runBuildWithUI(cmd.Context(), "building", req)
	} else {
		res, err = pipeline.Build(cmd.Context(), req)
	}
	if res == nil {
		return err
	}

	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	failed := color.New(color.FgRed).SprintFunc()
	for _, o := range res.Outputs {
		switch {
		case o.Err != nil:
			fmt.Fprintf(out, "%s %s\n", failed("failed"), o.File)
		case o.SharedPath != "":
			fmt.Fprintf(out, "%s %s -> %s\n", ok("built"), o.File, o.SharedPath)
		case o.LLVMPath != "":
			fmt.Fprintf(out, "%s %s -> %s\n", ok("built"), o.File, o.LLVMPath)
		default:
			fmt.Fprintf(out, "%s %s (%s)\n", ok("built"), o.File, o.Key)
		}
	}
	if showTimings(cmd) {
		printStageTimings(os.Stderr, &res.Timings)
	}
	return err
}
