package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/abi"
	"sierranative/internal/compiler"
	"sierranative/internal/config"
	"sierranative/internal/executor"
)

const identityProgram = `
type felt252 = felt252;

return([0]);

id@0([0]: felt252) -> (felt252);
`

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last(file string) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].File == file {
			return r.events[i]
		}
	}
	return Event{}
}

func TestBuildCompilesEveryFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.sierra", identityProgram)
	b := writeFile(t, dir, "b.sierra", identityProgram)
	out := filepath.Join(dir, "out")
	var rec recorder

	res, err := Build(context.Background(), &Request{
		Files:    []string{a, b},
		Options:  compiler.Options{CompileOptions: config.DefaultCompileOptions()},
		OutDir:   out,
		EmitLLVM: true,
		Jobs:     2,
		Progress: &rec,
	})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 2)
	for _, o := range res.Outputs {
		require.NoError(t, o.Err)
		assert.FileExists(t, o.LLVMPath)
		r, err := o.Executor.Invoke(context.Background(), "id", []abi.Value{abi.FeltU64(11)}, executor.InvokeOptions{})
		require.NoError(t, err)
		assert.True(t, r.ReturnValue.Equal(abi.FeltU64(11)))
		last := rec.last(o.File)
		assert.Equal(t, StageEmit, last.Stage)
		assert.Equal(t, StatusDone, last.Status)
		assert.Positive(t, last.Elapsed)
	}
	assert.Equal(t, filepath.Join(out, "a.ll"), res.Outputs[0].LLVMPath)
	assert.NotEqual(t, res.Outputs[0].Key, res.Outputs[1].Key)
	assert.True(t, res.Timings.Has(StageParse))
	assert.True(t, res.Timings.Has(StageCompile))
}

func TestBuildReportsFailuresPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.sierra", identityProgram)
	bad := writeFile(t, dir, "bad.sierra", "this is not sierra")
	var rec recorder

	res, err := Build(context.Background(), &Request{
		Files:    []string{good, bad},
		Options:  compiler.Options{CompileOptions: config.DefaultCompileOptions()},
		Progress: &rec,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.sierra")
	assert.NoError(t, res.Outputs[0].Err)
	assert.NotNil(t, res.Outputs[0].Executor)
	assert.Error(t, res.Outputs[1].Err)

	assert.Equal(t, StatusDone, rec.last(good).Status)
	ev := rec.last(bad)
	assert.Equal(t, StageParse, ev.Stage)
	assert.Equal(t, StatusError, ev.Status)
}

func TestKeyDependsOnContentAndOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "p.sierra", identityProgram)
	res, err := Build(context.Background(), &Request{
		Files:   []string{path},
		Options: compiler.Options{CompileOptions: config.DefaultCompileOptions()},
	})
	require.NoError(t, err)
	key := res.Outputs[0].Key
	assert.Regexp(t, `^p-[0-9a-f]{16}-`, key)

	opts := compiler.Options{CompileOptions: config.DefaultCompileOptions()}
	opts.OptLevel = config.OptNone
	res, err = Build(context.Background(), &Request{Files: []string{path}, Options: opts})
	require.NoError(t, err)
	assert.NotEqual(t, key, res.Outputs[0].Key)
}

func TestBuildRejectsEmptyRequests(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.Error(t, err)
	_, err = Build(context.Background(), &Request{})
	assert.Error(t, err)
	_, err = Build(context.Background(), &Request{Files: []string{"x"}, Shared: true})
	assert.Error(t, err)
}
