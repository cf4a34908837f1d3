package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/gas/cost"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[compile]
opt_level = 3

[gas]
dynamic_costs = true

[gas.costs]
felt252_mul = 200
bitwise = { bitwise = 2 }
withdraw_gas = [300, 400]

[cache]
kind = "jit"
capacity = 8
`)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, OptAggressive, f.Compile.OptLevel)
	assert.Equal(t, CacheJIT, f.Cache.Kind)
	assert.Equal(t, 8, f.Cache.Capacity)
	// Untouched sections keep their defaults.
	assert.Equal(t, filepath.Join(".sierra-native", "cache"), f.Cache.Dir)

	opts, err := f.CompileOptions()
	require.NoError(t, err)
	assert.True(t, opts.Gas.DynamicCosts)

	tbl := opts.Gas.Table()
	vs, found, err := tbl.Lookup("felt252_mul", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cost.Of(200), vs[0])

	vs, _, err = tbl.Lookup("withdraw_gas", 2)
	require.NoError(t, err)
	assert.Equal(t, []cost.Vector{cost.Of(300), cost.Of(400)}, vs)

	vs, _, err = tbl.Lookup("bitwise", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), vs[0][cost.Bitwise])
}

func TestRejectsBadCosts(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeConfig(t, dir, "[gas.costs]\njump = -1\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, dir, "[gas.costs]\njump = { gold = 1 }\n"))
	require.Error(t, err)
}

func TestTokenTablesPerBranch(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[gas.costs]
u8_overflowing_add = [{ const = 3, pedersen = 1 }, { const = 5 }]

[gas.costs.bitwise]
bitwise = 2
`)
	f, err := Load(path)
	require.NoError(t, err)
	costs, err := f.CostOverrides()
	require.NoError(t, err)
	require.Len(t, costs["u8_overflowing_add"], 2)
	assert.Equal(t, int64(5), costs["u8_overflowing_add"][1][cost.Const])
	assert.Equal(t, int64(2), costs["bitwise"][0][cost.Bitwise])

	_, err = Load(writeConfig(t, t.TempDir(), "[gas.costs]\njump = { gold = 1 }\n"))
	require.ErrorContains(t, err, `unknown cost token "gold"`)
}

func TestRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, t.TempDir(), "[compile]\nopt = 1\n"))
	require.Error(t, err)
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[compile]\nopt_level = \"less\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	f, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, OptLess, f.Compile.OptLevel)
	assert.Equal(t, filepath.Join(root, FileName), f.Path)
}

func TestOptLevel(t *testing.T) {
	for in, want := range map[string]OptLevel{"none": OptNone, "2": OptDefault, "Aggressive": OptAggressive} {
		got, err := ParseOptLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOptLevel("fast")
	require.Error(t, err)

	assert.Equal(t, OptAggressive, OptLevelFromIndex(9))
	assert.Equal(t, OptNone, OptLevelFromIndex(-1))
	assert.True(t, OptLess < OptDefault)

	p := CompileOptions{OptLevel: OptLess}.Passes()
	assert.True(t, p.SimplifyCFG)
	assert.False(t, p.DCE)
}

func TestFingerprintCoversOptions(t *testing.T) {
	a := DefaultCompileOptions()
	b := DefaultCompileOptions()
	b.Gas.Costs = map[string][]cost.Vector{"jump": {cost.Of(1)}}
	c := DefaultCompileOptions()
	c.OptLevel = OptNone
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Equal(t, a.Fingerprint(), DefaultCompileOptions().Fingerprint())
}
