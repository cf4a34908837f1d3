package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sierranative/internal/observ"
	"sierranative/internal/pipeline"
)

func showTimings(cmd *cobra.Command) bool {
	on, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return on
}

// printReport writes the per-stage timings of one compilation.
func printReport(out io.Writer, report observ.Report) {
	if out == nil || len(report.Phases) == 0 {
		return
	}
	fmt.Fprint(out, report)
}

// printStageTimings writes the summed pipeline stages of a build.
func printStageTimings(out io.Writer, timings *pipeline.Timings) {
	if out == nil || timings == nil {
		return
	}
	if timings.Has(pipeline.StageParse) {
		fmt.Fprintf(out, "parsed %.1f ms\n", toMillis(timings.Duration(pipeline.StageParse)))
	}
	if timings.Has(pipeline.StageCompile) {
		fmt.Fprintf(out, "compiled %.1f ms\n", toMillis(timings.Duration(pipeline.StageCompile)))
	}
	if timings.Has(pipeline.StageEmit) || timings.Has(pipeline.StageLink) {
		built := timings.Sum(pipeline.StageEmit, pipeline.StageLink)
		fmt.Fprintf(out, "emitted %.1f ms\n", toMillis(built))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
