// weights.go - Kernstrukturen fuer Gewichts-Archive
//
// Dieses Modul definiert:
// - Tensor: Einzelner Gewichts-Tensor mit Name, Shape und float32-Daten
// - Archive: Geordnete Key-zu-Tensor Zuordnung eines Archivs
// - Kind: Klassifikation BaseCheckpoint vs. AdapterDelta
// - Open: Format-Dispatcher fuer die unterstuetzten Kodierungen
package weights

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrNotFound wird zurueckgegeben, wenn das Archiv nicht existiert
	ErrNotFound = errors.New("archive not found")
	// ErrCorrupt wird zurueckgegeben, wenn der Container nicht parsebar ist
	ErrCorrupt = errors.New("archive corrupt")
	// ErrUnsupported wird bei nicht unterstuetzten Formaten zurueckgegeben
	ErrUnsupported = errors.New("unsupported")
)

// Kind klassifiziert ein Archiv
type Kind int

const (
	// BaseCheckpoint ist ein vollstaendiges Modell im monolithischen Layout
	BaseCheckpoint Kind = iota
	// AdapterDelta ist ein Archiv, das nur Low-Rank-Adapter-Gewichte enthaelt
	AdapterDelta
)

func (k Kind) String() string {
	switch k {
	case AdapterDelta:
		return "adapter"
	default:
		return "base"
	}
}

// adapterMarker kennzeichnet Adapter-Keys; ein Archiv ist nur dann ein
// AdapterDelta, wenn ausnahmslos jeder Key den Marker traegt.
const adapterMarker = "lora"

// Tensor ist ein einzelner Gewichts-Tensor. Daten werden beim Lesen
// unabhaengig vom Quell-Dtype nach float32 dekodiert.
type Tensor struct {
	Name  string
	Shape []uint64
	Data  []float32
}

// Elems gibt die Anzahl der Elemente laut Shape zurueck
func (t *Tensor) Elems() uint64 {
	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Clone gibt eine tiefe Kopie des Tensors zurueck
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{
		Name:  t.Name,
		Shape: append([]uint64(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
	return c
}

// Archive ist eine geordnete Zuordnung von Key zu Tensor.
// Keys sind innerhalb eines Archivs eindeutig; nach dem Oeffnen ist das
// Archiv unveraenderlich.
type Archive struct {
	tensors *orderedmap.OrderedMap[string, *Tensor]

	// GlobalStep ist der Trainingsstand aus Checkpoint-Metadaten (0 = unbekannt)
	GlobalStep int64
}

func newArchive() *Archive {
	return &Archive{tensors: orderedmap.New[string, *Tensor]()}
}

// Len gibt die Anzahl der Tensoren zurueck
func (a *Archive) Len() int {
	return a.tensors.Len()
}

// Get gibt den Tensor fuer einen Key zurueck
func (a *Archive) Get(key string) (*Tensor, bool) {
	return a.tensors.Get(key)
}

// Keys gibt alle Keys in Archiv-Reihenfolge zurueck
func (a *Archive) Keys() []string {
	keys := make([]string, 0, a.tensors.Len())
	for pair := a.tensors.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// set fuegt einen Tensor hinzu; doppelte Keys verletzen die Archiv-Invariante
func (a *Archive) set(key string, t *Tensor) error {
	if _, ok := a.tensors.Get(key); ok {
		return fmt.Errorf("%w: duplicate key %q", ErrCorrupt, key)
	}
	a.tensors.Set(key, t)
	return nil
}

// Kind klassifiziert das Archiv: AdapterDelta nur dann, wenn 100% der Keys
// den Adapter-Marker tragen; ein einziger abweichender Key erzwingt
// BaseCheckpoint.
func (a *Archive) Kind() Kind {
	if a.tensors.Len() == 0 {
		return BaseCheckpoint
	}
	for pair := a.tensors.Oldest(); pair != nil; pair = pair.Next() {
		if !strings.Contains(pair.Key, adapterMarker) {
			return BaseCheckpoint
		}
	}
	return AdapterDelta
}

// FromTensors baut ein Archiv aus einer Tensor-Liste in gegebener
// Reihenfolge. Gegenstueck zu Open fuer programmatisch erzeugte Archive.
func FromTensors(ts []*Tensor) (*Archive, error) {
	archive := newArchive()
	for _, t := range ts {
		if err := archive.set(t.Name, t); err != nil {
			return nil, err
		}
	}
	return archive, nil
}

// Open oeffnet ein Gewichts-Archiv und dispatcht anhand der Dateiendung.
// Unterstuetzte Kodierungen: safetensors, PyTorch-Pickle (.ckpt/.pt/.pth)
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	switch ext := filepath.Ext(path); ext {
	case ".safetensors":
		return readSafetensors(path)
	case ".ckpt", ".pt", ".pth":
		return readTorch(path)
	default:
		return nil, fmt.Errorf("%w archive format %q", ErrUnsupported, ext)
	}
}
