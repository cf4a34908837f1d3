package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"sierranative/internal/backend/llvm"
	"sierranative/internal/compiler"
	"sierranative/internal/errs"
	"sierranative/internal/executor"
	"sierranative/internal/sierra"
)

const (
	artifactExt = ".sna"
	irExt       = ".ll"
)

// AOTCache stores artifacts in a directory so they survive the process.
// Each key maps to <key>.sna and, when IR output is enabled, <key>.ll.
type AOTCache struct {
	dir     string
	compile CompileFunc
	EmitIR  bool

	group singleflight.Group

	mu     sync.RWMutex
	loaded map[string]*executor.AOTExecutor
	failed map[string]error
}

var _ ProgramCache = (*AOTCache)(nil)

// NewAOTCache opens the cache directory, creating it if needed.
func NewAOTCache(dir string, compile CompileFunc) (*AOTCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err)
	}
	return &AOTCache{
		dir:     dir,
		compile: orDefault(compile),
		EmitIR:  true,
		loaded:  make(map[string]*executor.AOTExecutor),
		failed:  make(map[string]error),
	}, nil
}

// Dir returns the cache directory.
func (c *AOTCache) Dir() string { return c.dir }

// ArtifactPath returns the artifact file used for key.
func (c *AOTCache) ArtifactPath(key string) string {
	return filepath.Join(c.dir, fileName(key)+artifactExt)
}

func (c *AOTCache) lookup(key string) (executor.Executor, error, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err, ok := c.failed[key]; ok {
		return nil, err, true
	}
	if ex, ok := c.loaded[key]; ok {
		return ex, nil, true
	}
	return nil, nil, false
}

// GetOrCompile implements ProgramCache.
func (c *AOTCache) GetOrCompile(ctx context.Context, key string, program *sierra.Program, opts compiler.Options) (executor.Executor, error) {
	if ex, err, ok := c.lookup(key); ok {
		return ex, err
	}
	v, err := share(ctx, &c.group, key, func(ctx context.Context) (any, error) {
		if ex, err, ok := c.lookup(key); ok {
			return ex, err
		}
		ex, err := c.load(key, opts)
		if err == nil && ex == nil {
			ex, err = c.build(ctx, key, program, opts)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			if !transient(err) {
				c.failed[key] = err
			}
			return nil, err
		}
		c.loaded[key] = ex
		return ex, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(executor.Executor), nil
}

// load returns the artifact already on disk for key, or nil when there is
// none usable. Stale or unreadable artifacts are recompiled.
func (c *AOTCache) load(key string, opts compiler.Options) (*executor.AOTExecutor, error) {
	path := c.ArtifactPath(key)
	ex, err := executor.LoadAOT(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		switch errs.KindOf(err) {
		case errs.KindLibraryLoad, errs.KindSerialization, errs.KindLink:
			log.Warningf("recompiling %s: %v", key, err)
			return nil, nil
		}
		return nil, err
	}
	art := ex.Artifact()
	if art.Key != key || art.Options != opts.Fingerprint() {
		log.Infof("recompiling %s: artifact built for %q with %s", key, art.Key, art.Options)
		return nil, nil
	}
	log.Debugf("reusing %s", path)
	return ex, nil
}

func (c *AOTCache) build(ctx context.Context, key string, program *sierra.Program, opts compiler.Options) (*executor.AOTExecutor, error) {
	art, err := c.compile(ctx, program, opts)
	if err != nil {
		return nil, err
	}
	art.Key = key
	jx, err := executor.NewJIT(art)
	if err != nil {
		return nil, err
	}
	path := c.ArtifactPath(key)
	if err := art.WriteFile(path); err != nil {
		return nil, err
	}
	if c.EmitIR {
		ir, err := llvm.EmitModule(art.Module)
		if err != nil {
			return nil, err
		}
		irPath := strings.TrimSuffix(path, artifactExt) + irExt
		if err := os.WriteFile(irPath, []byte(ir), 0o644); err != nil {
			return nil, errs.Wrap(err)
		}
	}
	log.Infof("compiled %s into %s", key, path)
	return &executor.AOTExecutor{JITExecutor: jx, Path: path}, nil
}

// Clear removes every artifact from the directory and forgets loaded
// executors and cached failures.
func (c *AOTCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errs.Wrap(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case artifactExt, irExt:
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				return errs.Wrap(err)
			}
		}
	}
	c.loaded = make(map[string]*executor.AOTExecutor)
	c.failed = make(map[string]error)
	return nil
}
