// Package pipeline compiles batches of Sierra program files through a
// program cache and optionally turns them into LLVM IR and shared objects.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"sierranative/internal/backend/llvm"
	"sierranative/internal/cache"
	"sierranative/internal/compiler"
	"sierranative/internal/errs"
	"sierranative/internal/executor"
	"sierranative/internal/sierra"
	"sierranative/internal/sierra/text"
	"sierranative/internal/trace"
	runtimeembed "sierranative/runtime"
)

var log = commonlog.GetLogger("sierranative.pipeline")

// Request configures a build.
type Request struct {
	Files   []string
	Options compiler.Options
	// Cache compiles and keeps the programs; nil uses a private JIT cache.
	Cache cache.ProgramCache
	// OutDir receives <name>.ll and <name>.so; empty writes nothing.
	OutDir        string
	EmitLLVM      bool
	Shared        bool
	Jobs          int
	PrintCommands bool
	Progress      ProgressSink
}

// Output is the outcome for one file.
type Output struct {
	File       string
	Key        string
	Executor   executor.Executor
	LLVMPath   string
	SharedPath string
	Err        error
}

// Result holds per-file outputs in request order and stage timings.
type Result struct {
	Outputs []Output
	Timings Timings
}

// Build compiles every file of req. A failing file does not stop the
// others; the returned error joins the failures.
func Build(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing build request")
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if req.Shared && req.OutDir == "" {
		return nil, fmt.Errorf("a shared object needs an output directory")
	}
	pc := req.Cache
	if pc == nil {
		pc = cache.NewJITCache(0, nil)
	}
	if req.OutDir != "" {
		if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	var rtSources []string
	if req.Shared {
		if err := ensureClangAvailable(); err != nil {
			return nil, err
		}
		tmp, err := os.MkdirTemp("", "sierra-native-rt-")
		if err != nil {
			return nil, errs.Wrap(err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		if rtSources, err = runtimeembed.Extract(tmp); err != nil {
			return nil, err
		}
	}

	res := &Result{Outputs: make([]Output, len(req.Files))}
	emitQueued(req.Progress, req.Files)

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// Outputs are indexed per goroutine, so they need no lock.
	var g errgroup.Group
	g.SetLimit(min(jobs, len(req.Files)))
	for i, file := range req.Files {
		g.Go(func() error {
			out := &res.Outputs[i]
			out.File = file
			out.Err = buildOne(ctx, req, pc, rtSources, out, &res.Timings)
			if out.Err != nil {
				log.Errorf("%s: %v", file, out.Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, out := range res.Outputs {
		if out.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", out.File, out.Err))
		}
	}
	return res, errors.Join(failed...)
}

func buildOne(ctx context.Context, req *Request, pc cache.ProgramCache, rtSources []string, out *Output, timings *Timings) (err error) {
	start := time.Now()
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "build:"+out.File, trace.ParentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer func() {
		if err != nil {
			span.End("failed")
			return
		}
		span.End("")
	}()
	var p *sierra.Program
	err = stage(req.Progress, out.File, StageParse, timings, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		p, err = text.ParseFile(out.File)
		return err
	})
	if err != nil {
		return err
	}

	err = stage(req.Progress, out.File, StageCompile, timings, func() error {
		key, err := Key(out.File, p, req.Options)
		if err != nil {
			return err
		}
		out.Key = key
		opts := req.Options
		opts.ModuleName = stem(out.File)
		opts.Observer = func(ev compiler.PhaseEvent) {
			if ev.Status == compiler.PhaseEnd {
				log.Debugf("%s: %s took %s", out.File, ev.Stage, ev.Elapsed)
			}
		}
		out.Executor, err = pc.GetOrCompile(ctx, key, p, opts)
		return err
	})
	if err != nil {
		return err
	}

	if req.OutDir == "" || (!req.EmitLLVM && !req.Shared) {
		emitFile(req.Progress, out.File, StageCompile, StatusDone, nil, time.Since(start))
		return nil
	}
	llPath := filepath.Join(req.OutDir, stem(out.File)+".ll")
	err = stage(req.Progress, out.File, StageEmit, timings, func() error {
		ir, err := llvm.EmitModule(out.Executor.Artifact().Module)
		if err != nil {
			return fmt.Errorf("LLVM emit failed: %w", err)
		}
		if err := os.WriteFile(llPath, []byte(ir), 0o600); err != nil {
			return fmt.Errorf("failed to write LLVM IR: %w", err)
		}
		out.LLVMPath = llPath
		return nil
	})
	if err != nil {
		return err
	}
	if !req.Shared {
		emitFile(req.Progress, out.File, StageEmit, StatusDone, nil, time.Since(start))
		return nil
	}

	soPath := filepath.Join(req.OutDir, stem(out.File)+".so")
	err = stage(req.Progress, out.File, StageLink, timings, func() error {
		args := []string{"-shared", "-fPIC", "-O2", "-x", "ir", llPath, "-x", "c"}
		args = append(args, rtSources...)
		args = append(args, "-o", soPath)
		if err := runCommand(ctx, req.PrintCommands, "clang", args...); err != nil {
			return err
		}
		out.SharedPath = soPath
		return nil
	})
	if err != nil {
		return err
	}
	if !req.EmitLLVM {
		if err := os.Remove(llPath); err != nil {
			return errs.Wrap(err)
		}
		out.LLVMPath = ""
	}
	emitFile(req.Progress, out.File, StageLink, StatusDone, nil, time.Since(start))
	return nil
}

// Key identifies a program file compiled with opts: the file stem, the
// program's content hash and the options fingerprint.
func Key(file string, p *sierra.Program, opts compiler.Options) (string, error) {
	hash, err := p.ContentHash()
	if err != nil {
		return "", &errs.Error{Kind: errs.KindSerialization, Msg: "program hash", Cause: err}
	}
	h := hash.String()
	if len(h) > 16 {
		h = h[:16]
	}
	return fmt.Sprintf("%s-%s-%s", stem(file), h, strings.NewReplacer(";", "_", "=", "", ",", "").Replace(opts.Fingerprint())), nil
}

func stem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// stage runs fn between working and done/error events and records its
// duration.
func stage(sink ProgressSink, file string, st Stage, timings *Timings, fn func() error) error {
	emitFile(sink, file, st, StatusWorking, nil, 0)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	timings.Add(st, elapsed)
	if err != nil {
		emitFile(sink, file, st, StatusError, err, elapsed)
	}
	return err
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageParse, Status: StatusQueued})
	}
}

func emitFile(sink ProgressSink, file string, st Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: st, Status: status, Err: err, Elapsed: elapsed})
}

func ensureClangAvailable() error {
	if _, err := exec.LookPath("clang"); err != nil {
		return errs.Wrapf(err, "clang not found; install with: sudo apt-get update && sudo apt-get install -y clang llvm")
	}
	return nil
}

func runCommand(ctx context.Context, printCommands bool, name string, args ...string) error {
	if printCommands {
		_, printErr := fmt.Fprintf(os.Stdout, "%s %s\n", name, strings.Join(args, " "))
		if printErr != nil {
			return fmt.Errorf("failed to print command: %w", printErr)
		}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return errs.Wrap(err)
		}
		return &errs.Error{Kind: errs.KindLink, Msg: fmt.Sprintf("%s: %s", name, msg), Cause: err}
	}
	return nil
}
