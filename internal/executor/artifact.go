package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"sierranative/internal/abi"
	"sierranative/internal/compiler"
	"sierranative/internal/errs"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// ArtifactVersion is bumped whenever the encoding of Artifact changes.
// Artifacts of another version are rejected on load.
const ArtifactVersion = 1

// EntryPoint describes one invocable function of an artifact. Params and
// Returns are type ids into Artifact.Types.
type EntryPoint struct {
	Name        string   `msgpack:"name"`
	FunctionID  uint64   `msgpack:"function_id"`
	Params      []uint64 `msgpack:"params,omitempty"`
	Returns     []uint64 `msgpack:"returns,omitempty"`
	RequiredGas uint64   `msgpack:"required_gas"`
	WorstCase   uint64   `msgpack:"worst_case,omitempty"`
	Unbounded   bool     `msgpack:"unbounded,omitempty"`
}

// Artifact is a compiled program with everything needed to invoke it
// without the registry: the finalized module, host descriptors of every
// type crossing the boundary and the entry points.
type Artifact struct {
	Version int            `msgpack:"version"`
	Key     string         `msgpack:"key,omitempty"`
	Hash    string         `msgpack:"hash"`
	Options string         `msgpack:"options"`
	Module  *target.Module `msgpack:"module"`
	Types   abi.Types      `msgpack:"types"`
	Entries []EntryPoint   `msgpack:"entries"`
}

// Compile compiles p and describes its functions.
func Compile(ctx context.Context, p *sierra.Program, opts compiler.Options) (*Artifact, error) {
	res, err := compiler.Compile(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	return FromResult(res, opts)
}

// FromResult builds the artifact of a finished compilation.
func FromResult(res *compiler.Result, opts compiler.Options) (*Artifact, error) {
	hash, err := res.Program.ContentHash()
	if err != nil {
		return nil, &errs.Error{Kind: errs.KindSerialization, Msg: "program hash", Cause: err}
	}
	d := abi.NewDescriber(res.Registry)
	describe := func(ids []sierra.TypeID) ([]uint64, error) {
		out := make([]uint64, len(ids))
		for i, id := range ids {
			td, err := d.Describe(id)
			if err != nil {
				return nil, err
			}
			out[i] = td.ID
		}
		return out, nil
	}

	art := &Artifact{
		Version: ArtifactVersion,
		Hash:    hash.String(),
		Options: opts.Fingerprint(),
		Module:  res.Module,
	}
	for i := range res.Program.Funcs {
		fn := &res.Program.Funcs[i]
		params, err := describe(fn.Signature.ParamTypes)
		if err != nil {
			return nil, errs.Wrapf(err, "entry point %s", fn.ID)
		}
		rets, err := describe(fn.Signature.RetTypes)
		if err != nil {
			return nil, errs.Wrapf(err, "entry point %s", fn.ID)
		}
		worst, bounded := res.Gas.WorstCaseOf(fn.ID)
		art.Entries = append(art.Entries, EntryPoint{
			Name:        fn.ID.Symbol(),
			FunctionID:  fn.ID.ID,
			Params:      params,
			Returns:     rets,
			RequiredGas: res.Gas.RequiredInitialGas(fn.ID),
			WorstCase:   worst,
			Unbounded:   !bounded,
		})
	}
	art.Types = d.Types()
	return art, nil
}

// Entry returns the entry point called name.
func (a *Artifact) Entry(name string) (*EntryPoint, error) {
	for i := range a.Entries {
		if a.Entries[i].Name == name {
			return &a.Entries[i], nil
		}
	}
	return nil, errs.New(errs.KindSelectorNotFound, "no entry point %q", name)
}

// Marshal encodes the artifact.
func (a *Artifact) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(a)
	if err != nil {
		return nil, &errs.Error{Kind: errs.KindSerialization, Msg: "encode artifact", Cause: err}
	}
	return data, nil
}

// UnmarshalArtifact decodes and version-checks an artifact.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, &errs.Error{Kind: errs.KindSerialization, Msg: "decode artifact", Cause: err}
	}
	if a.Version != ArtifactVersion {
		return nil, errs.New(errs.KindLibraryLoad, "artifact version %d, want %d", a.Version, ArtifactVersion)
	}
	if a.Module == nil {
		return nil, errs.New(errs.KindLibraryLoad, "artifact has no module")
	}
	return &a, nil
}

// WriteFile stores the artifact at path, replacing it atomically.
func (a *Artifact) WriteFile(path string) error {
	data, err := a.Marshal()
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(err)
	}
	return nil
}

// ReadArtifact loads an artifact written by WriteFile.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	a, err := UnmarshalArtifact(data)
	if err != nil {
		return nil, errs.Wrapf(err, "load %s", path)
	}
	return a, nil
}
