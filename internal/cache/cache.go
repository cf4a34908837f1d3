// Package cache keeps compiled programs keyed by caller-chosen names so a
// program is compiled at most once per key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"sierranative/internal/compiler"
	"sierranative/internal/executor"
	"sierranative/internal/sierra"
)

var log = commonlog.GetLogger("sierranative.cache")

// ProgramCache returns the executor for key, compiling program only when
// no executor for key exists yet. Concurrent callers with the same key
// share one compilation and observe the same result or error, unless their
// own context ends first.
type ProgramCache interface {
	GetOrCompile(ctx context.Context, key string, program *sierra.Program, opts compiler.Options) (executor.Executor, error)
}

// CompileFunc produces the artifact of a program.
type CompileFunc func(ctx context.Context, p *sierra.Program, opts compiler.Options) (*executor.Artifact, error)

func orDefault(fn CompileFunc) CompileFunc {
	if fn == nil {
		return executor.Compile
	}
	return fn
}

// share runs fn once per key among concurrent callers. The flight does not
// inherit the caller's cancellation: a caller that gives up returns its own
// context error while the compilation finishes for the others.
func share(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flight := context.WithoutCancel(ctx)
	ch := group.DoChan(key, func() (any, error) { return fn(flight) })
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// transient reports errors that say nothing about the program itself and
// must not be remembered for its key.
func transient(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fileName maps a key onto a safe file stem. Keys that had to be rewritten
// get a digest suffix so distinct keys never share a file.
func fileName(key string) string {
	var b strings.Builder
	rewritten := key == ""
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			rewritten = true
		}
	}
	if strings.HasPrefix(b.String(), ".") {
		rewritten = true
	}
	if !rewritten {
		return b.String()
	}
	sum := sha256.Sum256([]byte(key))
	return strings.TrimLeft(b.String(), ".") + "-" + hex.EncodeToString(sum[:6])
}
