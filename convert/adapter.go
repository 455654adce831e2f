// adapter.go - Merge von Low-Rank-Adapter-Deltas in Basis-Gewichte
//
// Dieses Modul enthaelt:
// - AdapterSpec: (Archiv-Pfad, Staerke), geparst aus "pfad:staerke"
// - ScaledDelta: Geoeffnetes Adapter-Archiv mit Staerke
// - MergeAdapter: base[k] += strength * alpha/rank * (up · down)
// - MergeAll: Sequenzieller Fold ueber mehrere Adapter in Deklarationsreihenfolge
//
// Die Merges sind rein additiv; betroffene Basis-Tensoren werden vor der
// Mutation geklont, unbetroffene geteilt.
package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdevine/tensor"
	"gorgonia.org/vecf32"

	"github.com/7wolken7/animforge/fs/weights"
)

const (
	loraDownSuffix  = ".lora_down.weight"
	loraUpSuffix    = ".lora_up.weight"
	loraAlphaSuffix = ".alpha"
)

// loraMarkers sind die Namespace-Praefixe der Adapter-Keys
var loraMarkers = []string{"lora_unet_", "lora_te_"}

// AdapterSpec referenziert ein Adapter-Archiv mit skalarer Staerke
type AdapterSpec struct {
	Path     string
	Strength float64
}

// ParseAdapterSpec parst einen "pfad:staerke" Eintrag aus additional_networks
func ParseAdapterSpec(s string) (AdapterSpec, error) {
	path, strength, ok := strings.Cut(s, ":")
	if !ok {
		return AdapterSpec{}, fmt.Errorf("invalid adapter spec %q: expected path:strength", s)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(strength), 64)
	if err != nil {
		return AdapterSpec{}, fmt.Errorf("invalid adapter strength in %q: %w", s, err)
	}

	return AdapterSpec{Path: strings.TrimSpace(path), Strength: f}, nil
}

// ScaledDelta ist ein geoeffnetes Adapter-Archiv mit Staerke
type ScaledDelta struct {
	Archive  *weights.Archive
	Strength float64
}

// MergeAdapter merged die skalierten Low-Rank-Deltas eines Adapters in ein
// Basis-Mapping. Die Basis wird als unveraenderlicher Snapshot behandelt:
// das Ergebnis teilt unbetroffene Tensoren und klont betroffene.
// Staerke 0 ist exakt ein No-Op.
// Zurueckgegeben werden das Ergebnis und die Adapter-Stems, fuer die kein
// Basis-Key im Mapping existiert (sie gehoeren zu einem anderen Submodul).
func MergeAdapter(base Mapping, adapter *weights.Archive, strength float64) (Mapping, []string, error) {
	out := base.Clone()
	if strength == 0 {
		return out, nil, nil
	}

	index := normalizedIndex(base)

	var unmatched []string
	for _, key := range adapter.Keys() {
		if !strings.HasSuffix(key, loraDownSuffix) {
			continue
		}
		stem := strings.TrimSuffix(key, loraDownSuffix)

		down, _ := adapter.Get(key)
		up, ok := adapter.Get(stem + loraUpSuffix)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unpaired low-rank factor %q", weights.ErrCorrupt, key)
		}

		scale := float32(strength)
		if a, ok := adapter.Get(stem + loraAlphaSuffix); ok && len(a.Data) > 0 {
			if rank := leadDim(down); rank > 0 {
				scale *= a.Data[0] / float32(rank)
			}
		}

		baseKey, ok := resolveBaseKey(index, stem)
		if !ok {
			unmatched = append(unmatched, stem)
			continue
		}

		delta, err := loraDelta(up, down, scale)
		if err != nil {
			return nil, nil, fmt.Errorf("adapter key %q: %w", stem, err)
		}

		target := out[baseKey]
		if uint64(len(delta)) != target.Elems() {
			return nil, nil, fmt.Errorf("adapter key %q: delta size %d does not match base %q (%d elements)",
				stem, len(delta), baseKey, target.Elems())
		}

		merged := target.Clone()
		vecf32.Add(merged.Data, delta)
		out[baseKey] = merged
	}

	return out, unmatched, nil
}

// MergeAll faltet mehrere Adapter in Deklarationsreihenfolge ueber die Basis.
// Jeder Schritt operiert auf dem Ergebnis des vorherigen; da die Merges rein
// additiv sind, kommutieren sie auf gemeinsamen Keys.
func MergeAll(base Mapping, deltas []ScaledDelta) (Mapping, []string, error) {
	out := base
	var unmatched []string
	for _, d := range deltas {
		merged, skipped, err := MergeAdapter(out, d.Archive, d.Strength)
		if err != nil {
			return nil, nil, err
		}
		out = merged
		unmatched = append(unmatched, skipped...)
	}
	return out, unmatched, nil
}

// loraDelta berechnet das skalierte Faktorprodukt up · down als flachen
// float32-Slice. Hoehere Faktor-Raenge (Conv-Kernel) werden auf 2D kollabiert.
func loraDelta(up, down *weights.Tensor, scale float32) ([]float32, error) {
	upRows, upCols := collapse2D(up)
	downRows, downCols := collapse2D(down)
	if upCols != downRows {
		return nil, fmt.Errorf("factor ranks disagree: up %v vs down %v", up.Shape, down.Shape)
	}

	a := tensor.New(tensor.WithShape(upRows, upCols), tensor.WithBacking(append([]float32(nil), up.Data...)))
	b := tensor.New(tensor.WithShape(downRows, downCols), tensor.WithBacking(append([]float32(nil), down.Data...)))

	prod, err := tensor.MatMul(a, b)
	if err != nil {
		return nil, err
	}

	data := prod.Data().([]float32)
	vecf32.Scale(data, scale)
	return data, nil
}

// collapse2D reduziert einen Faktor auf (erste Dimension, Rest)
func collapse2D(t *weights.Tensor) (int, int) {
	rows := leadDim(t)
	if rows == 0 {
		return 0, 0
	}
	return rows, int(t.Elems()) / rows
}

func leadDim(t *weights.Tensor) int {
	if len(t.Shape) == 0 {
		return 0
	}
	return int(t.Shape[0])
}

// normalizedIndex indiziert Basis-Keys unter Unterstrich/Punkt-Normalisierung,
// da Adapter-Stems Modulpfade mit Unterstrichen kodieren.
func normalizedIndex(base Mapping) map[string]string {
	index := make(map[string]string, len(base))
	for k := range base {
		index[strings.ReplaceAll(k, "_", ".")] = k
	}
	return index
}

// resolveBaseKey loest einen Adapter-Stem auf den Basis-Key im Mapping auf
func resolveBaseKey(index map[string]string, stem string) (string, bool) {
	for _, marker := range loraMarkers {
		if !strings.HasPrefix(stem, marker) {
			continue
		}

		normalized := strings.ReplaceAll(strings.TrimPrefix(stem, marker), "_", ".") + ".weight"
		if k, ok := index[normalized]; ok {
			return k, true
		}
	}
	return "", false
}
