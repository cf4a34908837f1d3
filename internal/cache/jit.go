package cache

import (
	"context"
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"sierranative/internal/compiler"
	"sierranative/internal/executor"
	"sierranative/internal/sierra"
)

// JITCache holds executors in memory. With a capacity, the least recently
// used executors are evicted; their artifacts are kept encoded and brought
// back on the next request without recompiling.
type JITCache struct {
	compile CompileFunc
	group   singleflight.Group

	mu      sync.Mutex
	live    *simplelru.LRU[string, executor.Executor]
	spilled map[string][]byte
	failed  map[string]error
}

var _ ProgramCache = (*JITCache)(nil)

// NewJITCache creates a cache holding at most capacity live executors.
// A capacity <= 0 means unbounded. A nil compile uses executor.Compile.
func NewJITCache(capacity int, compile CompileFunc) *JITCache {
	if capacity <= 0 {
		capacity = math.MaxInt
	}
	c := &JITCache{
		compile: orDefault(compile),
		spilled: make(map[string][]byte),
		failed:  make(map[string]error),
	}
	live, err := simplelru.NewLRU[string, executor.Executor](capacity, c.spill)
	if err != nil {
		panic(err) // capacity is positive
	}
	c.live = live
	return c
}

// spill runs from inside live's Add with c.mu held.
func (c *JITCache) spill(key string, ex executor.Executor) {
	data, err := ex.Artifact().Marshal()
	if err != nil {
		log.Warningf("dropping %s on eviction: %v", key, err)
		return
	}
	c.spilled[key] = data
	log.Debugf("spilled %s (%d bytes)", key, len(data))
}

func (c *JITCache) lookup(key string) (executor.Executor, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failed[key]; ok {
		return nil, err, true
	}
	if ex, ok := c.live.Get(key); ok {
		return ex, nil, true
	}
	return nil, nil, false
}

// GetOrCompile implements ProgramCache.
func (c *JITCache) GetOrCompile(ctx context.Context, key string, program *sierra.Program, opts compiler.Options) (executor.Executor, error) {
	if ex, err, ok := c.lookup(key); ok {
		return ex, err
	}
	v, err := share(ctx, &c.group, key, func(ctx context.Context) (any, error) {
		if ex, err, ok := c.lookup(key); ok {
			return ex, err
		}
		if ex := c.rehydrate(key); ex != nil {
			return ex, nil
		}
		art, err := c.compile(ctx, program, opts)
		if err == nil {
			art.Key = key
			var ex *executor.JITExecutor
			if ex, err = executor.NewJIT(art); err == nil {
				c.mu.Lock()
				c.live.Add(key, ex)
				c.mu.Unlock()
				log.Debugf("compiled %s", key)
				return ex, nil
			}
		}
		if !transient(err) {
			c.mu.Lock()
			c.failed[key] = err
			c.mu.Unlock()
		}
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return v.(executor.Executor), nil
}

// rehydrate restores a spilled executor. Only the flight for key touches
// spilled[key], so the entry stays in place until it is live again.
func (c *JITCache) rehydrate(key string) executor.Executor {
	c.mu.Lock()
	data, ok := c.spilled[key]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	art, err := executor.UnmarshalArtifact(data)
	var ex *executor.JITExecutor
	if err == nil {
		ex, err = executor.NewJIT(art)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.spilled, key)
	if err != nil {
		log.Warningf("discarding spilled %s: %v", key, err)
		return nil
	}
	c.live.Add(key, ex)
	log.Debugf("rehydrated %s", key)
	return ex
}

// Len reports the number of live and spilled executors.
func (c *JITCache) Len() (live, spilled int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.Len(), len(c.spilled)
}

// Forget drops every trace of key, including a cached failure. Removing
// the live entry spills it, so the spill is discarded afterwards.
func (c *JITCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live.Remove(key)
	delete(c.spilled, key)
	delete(c.failed, key)
}
