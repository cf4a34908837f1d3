// Package config loads sierra-native.toml and holds the compile options.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"sierranative/internal/gas/cost"
)

// FileName is the name of the configuration file.
const FileName = "sierra-native.toml"

// CacheKind selects the program cache.
type CacheKind string

const (
	CacheAOT CacheKind = "aot"
	CacheJIT CacheKind = "jit"
)

// File is the decoded configuration file.
type File struct {
	Compile struct {
		OptLevel OptLevel `toml:"opt_level"`
	} `toml:"compile"`
	Gas struct {
		DynamicCosts bool           `toml:"dynamic_costs"`
		Disabled     bool           `toml:"disabled"`
		Costs        map[string]any `toml:"costs"`
	} `toml:"gas"`
	Cache struct {
		Kind     CacheKind `toml:"kind"`
		Dir      string    `toml:"dir"`
		Capacity int       `toml:"capacity"`
	} `toml:"cache"`
	Trace struct {
		Level  string `toml:"level"`
		Output string `toml:"output"`
	} `toml:"trace"`

	// Path is where the file was read from; empty for defaults.
	Path string `toml:"-"`
}

// Default is the configuration used without a file.
func Default() *File {
	f := &File{}
	f.Compile.OptLevel = OptDefault
	f.Cache.Kind = CacheAOT
	f.Cache.Dir = filepath.Join(".sierra-native", "cache")
	f.Cache.Capacity = 64
	f.Trace.Level = "off"
	return f
}

// Find walks up from startDir to locate sierra-native.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads the file at path over the defaults.
func Load(path string) (*File, error) {
	f := Default()
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		// Token tables under [gas.costs] are decoded by CostOverrides.
		if len(key) > 2 && key[0] == "gas" && key[1] == "costs" {
			continue
		}
		return nil, fmt.Errorf("%s: unknown key %s", path, key)
	}
	switch f.Cache.Kind {
	case CacheAOT, CacheJIT:
	default:
		return nil, fmt.Errorf("%s: unknown cache kind %q", path, f.Cache.Kind)
	}
	if _, err := f.CostOverrides(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Discover loads the nearest configuration file above startDir, or the
// defaults when there is none.
func Discover(startDir string) (*File, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// CompileOptions assembles the compile options of the file.
func (f *File) CompileOptions() (CompileOptions, error) {
	costs, err := f.CostOverrides()
	if err != nil {
		return CompileOptions{}, err
	}
	return CompileOptions{
		OptLevel: f.Compile.OptLevel,
		Gas: GasOptions{
			Disabled:     f.Gas.Disabled,
			DynamicCosts: f.Gas.DynamicCosts,
			Costs:        costs,
		},
	}, nil
}

// CostOverrides decodes [gas.costs]. An entry is an integer const cost, a
// table of token costs, or an array of either with one element per branch.
func (f *File) CostOverrides() (map[string][]cost.Vector, error) {
	if len(f.Gas.Costs) == 0 {
		return nil, nil
	}
	out := make(map[string][]cost.Vector, len(f.Gas.Costs))
	for _, id := range sortedKeys(f.Gas.Costs) {
		raw := f.Gas.Costs[id]
		if tables, ok := raw.([]map[string]any); ok {
			arr := make([]any, len(tables))
			for i, t := range tables {
				arr[i] = t
			}
			raw = arr
		}
		var vs []cost.Vector
		if arr, ok := raw.([]any); ok {
			if len(arr) == 0 {
				return nil, fmt.Errorf("gas.costs.%s: empty branch list", id)
			}
			for i, e := range arr {
				v, err := vector(e)
				if err != nil {
					return nil, fmt.Errorf("gas.costs.%s[%d]: %w", id, i, err)
				}
				vs = append(vs, v)
			}
		} else {
			v, err := vector(raw)
			if err != nil {
				return nil, fmt.Errorf("gas.costs.%s: %w", id, err)
			}
			vs = []cost.Vector{v}
		}
		out[id] = vs
	}
	return out, nil
}

func vector(raw any) (cost.Vector, error) {
	switch x := raw.(type) {
	case int64:
		if x < 0 {
			return cost.Vector{}, fmt.Errorf("negative cost %d", x)
		}
		return cost.Of(x), nil
	case map[string]any:
		var v cost.Vector
		for name, n := range x {
			tok, ok := cost.ParseToken(name)
			if !ok {
				return cost.Vector{}, fmt.Errorf("unknown cost token %q", name)
			}
			amount, ok := n.(int64)
			if !ok || amount < 0 {
				return cost.Vector{}, fmt.Errorf("token %s needs a non-negative integer", name)
			}
			v[tok] = amount
		}
		return v, nil
	default:
		return cost.Vector{}, fmt.Errorf("cost must be an integer or a token table, got %T", raw)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
