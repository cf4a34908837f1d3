package testkit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sierranative/internal/compiler"
	"sierranative/internal/config"
	"sierranative/internal/executor"
	"sierranative/internal/sierra/text"
)

func TestTestdataProgramsKeepInvariants(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "testdata", "programs", "*.sierra"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			p, err := text.ParseFile(file)
			require.NoError(t, err)
			opts := compiler.Options{CompileOptions: config.CompileOptions{OptLevel: config.OptDefault}}
			art, err := executor.Compile(context.Background(), p, opts)
			require.NoError(t, err)
			require.NoError(t, CheckArtifactInvariants(art))
		})
	}
}

func TestBrokenArtifactsAreReported(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "programs", "add.sierra"))
	require.NoError(t, err)
	p, err := text.Parse("add.sierra", string(src))
	require.NoError(t, err)
	opts := compiler.Options{CompileOptions: config.CompileOptions{OptLevel: config.OptDefault}}
	art, err := executor.Compile(context.Background(), p, opts)
	require.NoError(t, err)

	missing := *art
	missing.Entries = append([]executor.EntryPoint(nil), art.Entries...)
	missing.Entries[0].Name = "nowhere"
	require.Error(t, CheckArtifactInvariants(&missing))

	untyped := *art
	untyped.Types = nil
	require.Error(t, CheckArtifactInvariants(&untyped))

	require.Error(t, CheckArtifactInvariants(nil))
}
