// module.go - Parameter-Stores der Zielsubmodule und der Module-Loader
//
// Dieses Modul enthaelt:
// - Module: Geordneter Parameter-Store eines Submoduls
// - LoadMapping: Kopiert passende Keys aus einem Mapping in den Store
//
// Nicht-strikter Load ist nie fatal: fehlende Keys behalten ihren Wert
// (missing), ueberzaehlige Mapping-Keys werden uebersprungen (unexpected).
// Motion-Module enthalten legitim nur eine Teilmenge der Denoiser-Keys.
package model

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7wolken7/animforge/convert"
	"github.com/7wolken7/animforge/fs/weights"
)

// Module ist der Parameter-Store eines Zielsubmoduls
type Module struct {
	Name string

	params *orderedmap.OrderedMap[string, *weights.Tensor]
}

// NewModule erstellt einen leeren Parameter-Store
func NewModule(name string) *Module {
	return &Module{
		Name:   name,
		params: orderedmap.New[string, *weights.Tensor](),
	}
}

// Len gibt die Anzahl der Parameter zurueck
func (m *Module) Len() int {
	return m.params.Len()
}

// Param gibt den Parameter-Tensor fuer einen Key zurueck
func (m *Module) Param(key string) (*weights.Tensor, bool) {
	return m.params.Get(key)
}

// SetParam registriert einen Parameter; bestehende Werte werden ersetzt
func (m *Module) SetParam(key string, t *weights.Tensor) {
	m.params.Set(key, t)
}

// Keys gibt alle Parameter-Keys in Deklarationsreihenfolge zurueck
func (m *Module) Keys() []string {
	keys := make([]string, 0, m.params.Len())
	for pair := m.params.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Register deklariert einen Parameter mit Null-Initialisierung, falls er
// noch nicht existiert. Wird beim Einbau der Temporal-Schichten in den
// Denoiser verwendet, bevor ein Motion-Modul sie fuellt.
func (m *Module) Register(key string, shape []uint64) {
	if _, ok := m.params.Get(key); ok {
		return
	}

	t := &weights.Tensor{Name: key, Shape: append([]uint64(nil), shape...)}
	t.Data = make([]float32, t.Elems())
	m.params.Set(key, t)
}

// LoadMapping kopiert passende Keys aus dem Mapping in den Parameter-Store.
//
// Nicht-strikt: Keys des Moduls ohne Mapping-Eintrag behalten ihren
// bisherigen Wert und werden als missing gemeldet; Mapping-Keys ohne
// Modul-Parameter werden uebersprungen und als unexpected gemeldet.
// Beides ist fuer den Aufrufer Logging-Material, kein Fehler.
// Strikt: jeder der beiden Faelle ist ein Fehler.
func (m *Module) LoadMapping(mapping convert.Mapping, strict bool) (missing, unexpected []string, err error) {
	for pair := m.params.Oldest(); pair != nil; pair = pair.Next() {
		t, ok := mapping[pair.Key]
		if !ok {
			missing = append(missing, pair.Key)
			continue
		}

		if t.Elems() != pair.Value.Elems() {
			return nil, nil, fmt.Errorf("module %s: size mismatch for %q: mapping %v vs module %v",
				m.Name, pair.Key, t.Shape, pair.Value.Shape)
		}

		loaded := t.Clone()
		loaded.Name = pair.Key
		m.params.Set(pair.Key, loaded)
	}

	for _, key := range mapping.Keys() {
		if _, ok := m.params.Get(key); !ok {
			unexpected = append(unexpected, key)
		}
	}

	if strict && (len(missing) > 0 || len(unexpected) > 0) {
		return missing, unexpected, fmt.Errorf("module %s: strict load failed: %d missing, %d unexpected keys",
			m.Name, len(missing), len(unexpected))
	}

	return missing, unexpected, nil
}

// LoadArchive laedt ein Archiv, dessen Keys bereits im Namespace des Moduls
// liegen (Motion-Module), nicht-strikt in den Store.
func (m *Module) LoadArchive(archive *weights.Archive, strict bool) (missing, unexpected []string, err error) {
	return m.LoadMapping(convert.MappingFromArchive(archive), strict)
}
