package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sierranative/internal/compiler"
	"sierranative/internal/gas"
	"sierranative/internal/registry"
)

var gasCmd = &cobra.Command{
	Use:   "gas <file.sierra>",
	Short: "Report the gas every function of a program requires",
	Args:  cobra.ExactArgs(1),
	RunE:  runGas,
}

func init() {
	gasCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	addCompileFlags(gasCmd)
}

type gasRow struct {
	Function    string `json:"function"`
	EntryCost   uint64 `json:"entry_cost"`
	WorstCase   uint64 `json:"worst_case,omitempty"`
	Unbounded   bool   `json:"unbounded,omitempty"`
	Checkpoints int    `json:"checkpoints"`
	Injected    int    `json:"injected"`
	ApChange    *int   `json:"ap_change,omitempty"`
}

func runGas(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	path := args[0]
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
	rows := gasRows(res.Gas.Reports(p))
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	renderGasPretty(cmd.OutOrStdout(), rows)
	return nil
}

func gasRows(reports []gas.Report) []gasRow {
	rows := make([]gasRow, len(reports))
	for i, r := range reports {
		rows[i] = gasRow{
			Function:    r.Function.Symbol(),
			EntryCost:   r.EntryCost,
			WorstCase:   r.WorstCase,
			Unbounded:   r.Unbounded,
			Checkpoints: r.Checkpoints,
			Injected:    r.InjectedHere,
		}
		if r.Unbounded {
			rows[i].WorstCase = 0
		}
		if r.ApChange.Kind == registry.ApKnown {
			n := r.ApChange.N
			rows[i].ApChange = &n
		}
	}
	return rows
}

func renderGasPretty(out io.Writer, rows []gasRow) {
	printer := message.NewPrinter(language.English)
	width := len("function")
	for _, r := range rows {
		width = max(width, len(r.Function))
	}
	printer.Fprintf(out, "%-*s %12s %12s %5s %5s\n", width, "function", "entry", "worst case", "ckpt", "inj")
	for _, r := range rows {
		worst := printer.Sprintf("%d", r.WorstCase)
		if r.Unbounded {
			worst = "unbounded"
		}
		printer.Fprintf(out, "%-*s %12d %12s %5d %5d\n", width, r.Function, r.EntryCost, worst, r.Checkpoints, r.Injected)
	}
}
