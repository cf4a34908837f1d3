package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sierranative/internal/cache"
	"sierranative/internal/config"
)

func addCacheFlag(cmd *cobra.Command) {
	cmd.Flags().String("cache", "", "program cache (none|jit|aot; default from "+config.FileName+")")
}

// openCache returns the program cache selected by --cache or the [cache]
// section. A nil cache means compile without caching.
func openCache(cmd *cobra.Command) (cache.ProgramCache, error) {
	cfg := configFrom(cmd)
	kind, _ := cmd.Flags().GetString("cache")
	if kind == "" {
		kind = string(cfg.Cache.Kind)
	}
	switch config.CacheKind(strings.ToLower(kind)) {
	case "none":
		return nil, nil
	case config.CacheJIT:
		return cache.NewJITCache(cfg.Cache.Capacity, nil), nil
	case config.CacheAOT:
		c, err := cache.NewAOTCache(cfg.Cache.Dir, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("invalid --cache value %q (expected none|jit|aot)", kind)
	}
}
