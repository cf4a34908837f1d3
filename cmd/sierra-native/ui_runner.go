package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"sierranative/internal/pipeline"
	"sierranative/internal/ui"
)

type buildOutcome struct {
	result *pipeline.Result
	err    error
}

// runBuildWithUI runs the pipeline in the background and renders its
// progress events until every file settles.
func runBuildWithUI(ctx context.Context, title string, req *pipeline.Request) (*pipeline.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing build request")
	}
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
