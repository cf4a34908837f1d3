// Package runtimeembed provides the embedded C sources of the native core
// runtime linked into shared objects.
package runtimeembed

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed native/*.c native/*.h
var nativeRuntimeFS embed.FS

// NativeRuntimeFS exposes embedded runtime sources.
func NativeRuntimeFS() fs.FS {
	return nativeRuntimeFS
}

// Extract writes the runtime sources under dir and returns the paths of the
// C files to compile.
func Extract(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create native runtime dir: %w", err)
	}
	var sources []string
	walkErr := fs.WalkDir(nativeRuntimeFS, "native", func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(entryPath, "native/")
		if rel == entryPath {
			return fmt.Errorf("unexpected embedded runtime path: %s", entryPath)
		}
		data, err := fs.ReadFile(nativeRuntimeFS, entryPath)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return err
		}
		if strings.HasSuffix(entryPath, ".c") {
			sources = append(sources, dst)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to extract embedded runtime sources: %w", walkErr)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("embedded runtime sources missing (build bug)")
	}
	sort.Strings(sources)
	return sources, nil
}
