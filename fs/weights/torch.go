// torch.go - Lesen von PyTorch-Pickle-Checkpoints
//
// Dieses Modul enthaelt:
// - readTorch: Laedt einen Checkpoint via gopickle und entpackt "state_dict"
// - stateDictEntries: Normalisiert Dict/OrderedDict zu Key/Value-Paaren
// - storageToFloat32: Konvertiert Torch-Storage nach float32
//
// Motion-Module-Checkpoints tragen teils Trainings-Metadaten ("global_step",
// "state_dict"-Verschachtelung); beides wird hier aufgeloest.
package weights

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// readTorch liest einen PyTorch-Checkpoint in ein Archiv
func readTorch(path string) (*Archive, error) {
	m, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	entries, err := stateDictEntries(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	archive := newArchive()
	for _, e := range entries {
		key, ok := e.key.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: non-string key %v", ErrCorrupt, path, e.key)
		}

		switch v := e.value.(type) {
		case *pytorch.Tensor:
			t, err := torchTensor(key, v)
			if err != nil {
				return nil, fmt.Errorf("%s: tensor %q: %w", path, key, err)
			}
			if err := archive.set(key, t); err != nil {
				return nil, err
			}
		case int:
			if key == "global_step" {
				archive.GlobalStep = int64(v)
			}
		case int64:
			if key == "global_step" {
				archive.GlobalStep = v
			}
		default:
			// Nicht-Tensor-Metadaten (Optimizer-State etc.) werden ignoriert
		}
	}

	return archive, nil
}

type dictEntry struct {
	key   any
	value any
}

// stateDictEntries entpackt die Top-Level-Struktur eines Checkpoints.
// Liegt ein "state_dict"-Schluessel vor, werden dessen Eintraege mit den
// Top-Level-Metadaten (global_step) kombiniert.
func stateDictEntries(m any) ([]dictEntry, error) {
	entries, err := dictToEntries(m)
	if err != nil {
		return nil, err
	}

	var out []dictEntry
	for _, e := range entries {
		if k, ok := e.key.(string); ok && k == "state_dict" {
			nested, err := dictToEntries(e.value)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// dictToEntries normalisiert gopickle-Dict-Varianten zu einer geordneten Liste
func dictToEntries(m any) ([]dictEntry, error) {
	switch d := m.(type) {
	case *types.Dict:
		entries := make([]dictEntry, 0, len(*d))
		for _, e := range *d {
			entries = append(entries, dictEntry{e.Key, e.Value})
		}
		return entries, nil
	case *types.OrderedDict:
		entries := make([]dictEntry, 0, d.List.Len())
		for el := d.List.Front(); el != nil; el = el.Next() {
			e, ok := el.Value.(*types.OrderedDictEntry)
			if !ok {
				return nil, fmt.Errorf("%w: unexpected ordered dict entry %T", ErrCorrupt, el.Value)
			}
			entries = append(entries, dictEntry{e.Key, e.Value})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: unexpected checkpoint root %T", ErrCorrupt, m)
	}
}

// torchTensor konvertiert einen gopickle-Tensor in einen Archiv-Tensor
func torchTensor(name string, t *pytorch.Tensor) (*Tensor, error) {
	shape := make([]uint64, 0, len(t.Size))
	elems := uint64(1)
	for _, d := range t.Size {
		shape = append(shape, uint64(d))
		elems *= uint64(d)
	}

	data, err := storageToFloat32(t.Source)
	if err != nil {
		return nil, err
	}

	offset := uint64(t.StorageOffset)
	if offset+elems > uint64(len(data)) {
		return nil, fmt.Errorf("%w: storage too small for shape %v", ErrCorrupt, shape)
	}

	return &Tensor{
		Name:  name,
		Shape: shape,
		Data:  append([]float32(nil), data[offset:offset+elems]...),
	}, nil
}

// storageToFloat32 konvertiert die unterstuetzten Storage-Typen nach float32
func storageToFloat32(s pytorch.StorageInterface) ([]float32, error) {
	switch st := s.(type) {
	case *pytorch.FloatStorage:
		return st.Data, nil
	case *pytorch.HalfStorage:
		return st.Data, nil
	case *pytorch.BFloat16Storage:
		return st.Data, nil
	case *pytorch.DoubleStorage:
		f32s := make([]float32, 0, len(st.Data))
		for _, f := range st.Data {
			f32s = append(f32s, float32(f))
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("%w storage type %T", ErrUnsupported, s)
	}
}
