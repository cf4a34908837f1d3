package runtimeembed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractWritesSourcesAndHeaders(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rt")
	sources, err := Extract(dir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("no C sources extracted")
	}
	for _, src := range sources {
		if !strings.HasSuffix(src, ".c") {
			t.Errorf("%s is not a C source", src)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "rt_core.h")); err != nil {
		t.Errorf("header not extracted: %v", err)
	}
	data, err := os.ReadFile(sources[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, sym := range []string{"rt_alloc", "rt_realloc", "rt_memcpy", "rt_trap"} {
		if !strings.Contains(string(data), sym) {
			t.Errorf("runtime does not define %s", sym)
		}
	}
}
