package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sierranative/internal/abi"
	"sierranative/internal/compiler"
	"sierranative/internal/executor"
	"sierranative/internal/felt"
	"sierranative/internal/pipeline"
	"sierranative/internal/sierra"
	"sierranative/internal/starknet"
)

var runCmd = &cobra.Command{
	Use:   "run <file.sierra> [entry] [args...]",
	Short: "Run an entry point of a Sierra program",
	Long: `Compile a program through the program cache and invoke one entry point.
Without an entry point the available ones are listed with the gas they
require. With --contract the arguments are calldata felts and syscalls are
served by an in-memory handler.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Uint64("gas", 0, "initial gas (default: unlimited)")
	runCmd.Flags().Bool("contract", false, "invoke with the contract calling convention")
	runCmd.Flags().Int("max-depth", 0, "call depth limit (default: executor limit)")
	addCompileFlags(runCmd)
	addCacheFlag(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	p, err := loadProgram(path)
	if err != nil {
		return err
	}
	opts, err := compileOptions(cmd, moduleNameOf(path))
	if err != nil {
		return err
	}
	ex, err := obtainExecutor(cmd, path, p, opts)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		listEntryPoints(cmd, ex)
		return nil
	}

	entry := args[1]
	invoke := executor.InvokeOptions{}
	if cmd.Flags().Changed("gas") {
		gas, _ := cmd.Flags().GetUint64("gas")
		invoke.Gas = &gas
	}
	invoke.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	invoke.Debug = cmd.ErrOrStderr()

	if contract, _ := cmd.Flags().GetBool("contract"); contract {
		return runContract(cmd, ex, entry, args[2:], invoke)
	}
	return runFunction(cmd, ex, entry, args[2:], invoke)
}

func obtainExecutor(cmd *cobra.Command, path string, p *sierra.Program, opts compiler.Options) (executor.Executor, error) {
	pc, err := openCache(cmd)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		art, err := executor.Compile(cmd.Context(), p, opts)
		if err != nil {
			return nil, err
		}
		return executor.NewJIT(art)
	}
	key, err := pipeline.Key(path, p, opts)
	if err != nil {
		return nil, err
	}
	return pc.GetOrCompile(cmd.Context(), key, p, opts)
}

func runFunction(cmd *cobra.Command, ex executor.Executor, entry string, raw []string, invoke executor.InvokeOptions) error {
	art := ex.Artifact()
	ep, err := art.Entry(entry)
	if err != nil {
		return err
	}
	params, err := userParams(art.Types, ep.Params)
	if err != nil {
		return err
	}
	if len(raw) != len(params) {
		return fmt.Errorf("%s takes %d arguments, got %d", entry, len(params), len(raw))
	}
	values := make([]abi.Value, len(raw))
	for i, s := range raw {
		if values[i], err = parseArg(art.Types, params[i], s); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}

	res, err := ex.Invoke(ctxOf(cmd), entry, values, invoke)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printer := message.NewPrinter(language.English)
	if res.Failed {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("panicked:"), res.ErrorMsg())
	} else {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen, color.Bold).Sprint("returned:"), res.ReturnValue)
	}
	if res.RemainingGas != nil {
		printer.Fprintf(out, "remaining gas: %d (consumed %d)\n", *res.RemainingGas, res.GasConsumed)
	}
	for _, name := range sortedStats(res.BuiltinStats) {
		printer.Fprintf(out, "%s: %d\n", name, res.BuiltinStats[name])
	}
	if res.Failed {
		return fmt.Errorf("%s panicked", entry)
	}
	return nil
}

func runContract(cmd *cobra.Command, ex executor.Executor, entry string, raw []string, invoke executor.InvokeOptions) error {
	calldata := make([]felt.Felt, len(raw))
	for i, s := range raw {
		f, err := parseFelt(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("calldata %d: %w", i, err)
		}
		calldata[i] = f
	}
	handler := starknet.NewStubHandler()
	invoke.Syscalls = handler

	res, err := ex.InvokeContract(ctxOf(cmd), entry, calldata, invoke)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res.Failed {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("reverted:"), res.ErrorMsg)
	} else {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen, color.Bold).Sprint("returned:"), hexFelts(res.ReturnValues))
	}
	message.NewPrinter(language.English).Fprintf(out, "remaining gas: %d\n", res.RemainingGas)
	for i, ev := range res.Events {
		fmt.Fprintf(out, "event %d: keys=%s data=%s\n", i, hexFelts(ev.Keys), hexFelts(ev.Data))
	}
	if res.Failed {
		return fmt.Errorf("%s reverted", entry)
	}
	return nil
}

func listEntryPoints(cmd *cobra.Command, ex executor.Executor) {
	out := cmd.OutOrStdout()
	printer := message.NewPrinter(language.English)
	for _, ep := range ex.EntryPoints() {
		printer.Fprintf(out, "%s (requires %d gas)\n", ep.Name, ep.RequiredGas)
	}
}

func hexFelts(fs []felt.Felt) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Hex()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func sortedStats(m map[string]uint64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
