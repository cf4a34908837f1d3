// Package testkit checks structural invariants of compiled artifacts in
// tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"sierranative/internal/abi"
	"sierranative/internal/executor"
	"sierranative/internal/target"
)

// CheckArtifactInvariants runs a minimal set of checks on an artifact:
// 1) the module verifies and every entry point names a public function
// 2) every type id reachable from an entry point has a descriptor
// 3) struct members lie inside their parent and enums fit their payloads
// 4) a bounded entry point never requires more than its worst case
func CheckArtifactInvariants(art *executor.Artifact) error {
	if art == nil || art.Module == nil {
		return fmt.Errorf("nil artifact or module")
	}
	if art.Version != executor.ArtifactVersion {
		return fmt.Errorf("artifact version %d, want %d", art.Version, executor.ArtifactVersion)
	}
	if err := target.Verify(art.Module); err != nil {
		return fmt.Errorf("module does not verify: %w", err)
	}

	seen := make(map[uint64]bool)
	for _, ep := range art.Entries {
		fn, ok := art.Module.Func(ep.Name)
		if !ok {
			return fmt.Errorf("entry point %s has no function", ep.Name)
		}
		if !fn.Public {
			return fmt.Errorf("entry point %s is not public", ep.Name)
		}
		for _, id := range append(append([]uint64(nil), ep.Params...), ep.Returns...) {
			if err := checkType(art.Types, id, seen); err != nil {
				return fmt.Errorf("entry point %s: %w", ep.Name, err)
			}
		}
		if !ep.Unbounded && ep.WorstCase != 0 && ep.RequiredGas > ep.WorstCase {
			return fmt.Errorf("entry point %s requires %d gas, above its worst case %d", ep.Name, ep.RequiredGas, ep.WorstCase)
		}
	}
	return nil
}

func checkType(types abi.Types, id uint64, seen map[uint64]bool) error {
	if seen[id] {
		return nil
	}
	seen[id] = true
	d, err := types.Get(id)
	if err != nil {
		return err
	}
	size, err := safecast.Conv[uint64](d.Size)
	if err != nil {
		return fmt.Errorf("%s has size %d", d.Name, d.Size)
	}
	switch d.Kind {
	case abi.DescStruct:
		if len(d.Offsets) != len(d.Members) {
			return fmt.Errorf("%s has %d members but %d offsets", d.Name, len(d.Members), len(d.Offsets))
		}
		for i, m := range d.Members {
			md, err := types.Get(m)
			if err != nil {
				return err
			}
			end, err := safecast.Conv[uint64](d.Offsets[i] + md.Size)
			if err != nil || end > size {
				return fmt.Errorf("%s member %d ends past the struct", d.Name, i)
			}
			if err := checkType(types, m, seen); err != nil {
				return err
			}
		}
	case abi.DescEnum:
		for i, m := range d.Members {
			md, err := types.Get(m)
			if err != nil {
				return err
			}
			if d.PayloadOffset+md.Size > d.Size {
				return fmt.Errorf("%s variant %d does not fit", d.Name, i)
			}
			if err := checkType(types, m, seen); err != nil {
				return err
			}
		}
	case abi.DescArray, abi.DescBox, abi.DescNullable:
		return checkType(types, d.Elem, seen)
	}
	return nil
}
