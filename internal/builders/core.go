// Package builders assembles the core catalog from the type and libfunc
// builders.
package builders

import (
	"sync"

	"sierranative/internal/builders/libfuncs"
	"sierranative/internal/builders/types"
	"sierranative/internal/registry"
)

var (
	coreOnce sync.Once
	core     *registry.Catalog
)

// Core returns the shared core catalog. It is read-only once built.
func Core() *registry.Catalog {
	coreOnce.Do(func() {
		c := registry.NewCatalog("core")
		types.Register(c)
		libfuncs.Register(c)
		core = c
	})
	return core
}
