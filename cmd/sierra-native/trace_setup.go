package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sierranative/internal/config"
	"sierranative/internal/trace"
)

// setupTracing reads the trace flags over the [trace] section of the
// configuration and attaches a tracer to the command context. It returns a
// cleanup function that flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, cfg *config.File) (func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	formatStr, err := root.PersistentFlags().GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}

	// The flag output and the configured one both receive events.
	var outputs []string
	for _, out := range []string{traceOutput, cfg.Trace.Output} {
		if out != "" && (len(outputs) == 0 || outputs[0] != out) {
			outputs = append(outputs, out)
		}
	}
	if levelStr == "" {
		levelStr = cfg.Trace.Level
	}
	// An output without a level asks for phase spans.
	if len(outputs) > 0 && (levelStr == "" || levelStr == "off") && !root.PersistentFlags().Changed("trace-level") {
		levelStr = trace.LevelPhase.String()
	}
	if levelStr == "" {
		levelStr = trace.LevelOff.String()
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	if level == trace.LevelOff {
		ctx := trace.WithTracer(cmd.Context(), trace.Nop)
		cmd.SetContext(ctx)
		return func() {}, nil
	}

	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		outputs = []string{"-"}
	}
	tracers := make([]trace.Tracer, 0, len(outputs))
	for _, out := range outputs {
		t, err := trace.New(trace.Config{Level: level, Format: format, OutputPath: out})
		if err != nil {
			for _, opened := range tracers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		tracers = append(tracers, t)
	}
	tracer := trace.Tee(tracers...)

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
