// safetensors.go - Lesen und Schreiben der Safetensors-Kodierung
//
// Dieses Modul enthaelt:
// - readSafetensors: Liest den JSON-Header und dekodiert die Tensor-Tabelle
// - decodeTensorData: Dtype-Dekodierung nach float32 (F32/F16/BF16/F64)
// - Write: Schreibt ein Archiv als Safetensors-Datei (immer F32)
//
// Layout: 8 Byte Header-Laenge (LE), JSON-Index, Rohdaten-Region.
package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// maxHeaderSize begrenzt den JSON-Header (Schutz gegen kaputte Container)
const maxHeaderSize = 100 << 20

// safetensorEntry beschreibt einen Tensor im JSON-Index
type safetensorEntry struct {
	DType       string    `json:"dtype"`
	Shape       []uint64  `json:"shape"`
	DataOffsets [2]uint64 `json:"data_offsets"`
}

// readSafetensors liest eine Safetensors-Datei in ein Archiv
func readSafetensors(path string) (*Archive, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(bts) < 8 {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrCorrupt, path)
	}

	headerSize := binary.LittleEndian.Uint64(bts[:8])
	if headerSize > maxHeaderSize || headerSize > uint64(len(bts)-8) {
		return nil, fmt.Errorf("%w: %s: header size %d out of range", ErrCorrupt, path, headerSize)
	}

	var index map[string]json.RawMessage
	if err := json.Unmarshal(bts[8:8+headerSize], &index); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	// JSON-Objekte tragen keine Reihenfolge; die Datei-Reihenfolge ergibt
	// sich deterministisch aus den Daten-Offsets.
	type namedEntry struct {
		name  string
		entry safetensorEntry
	}
	entries := make([]namedEntry, 0, len(index))
	for name, raw := range index {
		if name == "__metadata__" {
			continue
		}

		var e safetensorEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: tensor %q: %v", ErrCorrupt, path, name, err)
		}
		entries = append(entries, namedEntry{name, e})
	}
	slices.SortFunc(entries, func(a, b namedEntry) int {
		return int(a.entry.DataOffsets[0]) - int(b.entry.DataOffsets[0])
	})

	data := bts[8+headerSize:]
	archive := newArchive()
	for _, ne := range entries {
		begin, end := ne.entry.DataOffsets[0], ne.entry.DataOffsets[1]
		if begin > end || end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %s: tensor %q: offsets out of range", ErrCorrupt, path, ne.name)
		}

		f32s, err := decodeTensorData(ne.entry.DType, data[begin:end])
		if err != nil {
			return nil, fmt.Errorf("%s: tensor %q: %w", path, ne.name, err)
		}

		t := &Tensor{Name: ne.name, Shape: ne.entry.Shape, Data: f32s}
		if t.Elems() != uint64(len(f32s)) {
			return nil, fmt.Errorf("%w: %s: tensor %q: shape/data mismatch", ErrCorrupt, path, ne.name)
		}
		if err := archive.set(ne.name, t); err != nil {
			return nil, err
		}
	}

	return archive, nil
}

// decodeTensorData dekodiert die Rohdaten eines Tensors nach float32
func decodeTensorData(dtype string, bts []byte) ([]float32, error) {
	switch dtype {
	case "F32":
		f32s := make([]float32, len(bts)/4)
		if err := binary.Read(bytes.NewReader(bts), binary.LittleEndian, &f32s); err != nil {
			return nil, err
		}
		return f32s, nil
	case "F16":
		u16s := make([]uint16, len(bts)/2)
		if err := binary.Read(bytes.NewReader(bts), binary.LittleEndian, &u16s); err != nil {
			return nil, err
		}

		f32s := make([]float32, 0, len(u16s))
		for _, u := range u16s {
			f32s = append(f32s, float16.Frombits(u).Float32())
		}
		return f32s, nil
	case "BF16":
		return bfloat16.DecodeFloat32(bts), nil
	case "F64":
		f64s := make([]float64, len(bts)/8)
		if err := binary.Read(bytes.NewReader(bts), binary.LittleEndian, &f64s); err != nil {
			return nil, err
		}

		f32s := make([]float32, 0, len(f64s))
		for _, f := range f64s {
			f32s = append(f32s, float32(f))
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("%w dtype %q", ErrUnsupported, dtype)
	}
}

// Write schreibt ein Archiv als Safetensors-Datei. Daten werden immer als
// F32 kodiert; die Index-Reihenfolge folgt der Archiv-Reihenfolge.
func Write(path string, archive *Archive) error {
	index := make(map[string]safetensorEntry, archive.Len())

	var offset uint64
	var data bytes.Buffer
	for pair := archive.tensors.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		for _, f := range t.Data {
			var u [4]byte
			binary.LittleEndian.PutUint32(u[:], math.Float32bits(f))
			data.Write(u[:])
		}

		size := uint64(len(t.Data)) * 4
		shape := t.Shape
		if shape == nil {
			shape = []uint64{}
		}
		index[pair.Key] = safetensorEntry{
			DType:       "F32",
			Shape:       shape,
			DataOffsets: [2]uint64{offset, offset + size},
		}
		offset += size
	}

	header, err := json.Marshal(index)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(header))); err != nil {
		return err
	}
	buf.Write(header)
	buf.Write(data.Bytes())

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
