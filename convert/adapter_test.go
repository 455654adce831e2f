// adapter_test.go - Tests fuer das Adapter-Merging
//
// Testet die No-Op-Garantie bei Staerke 0, die Skalierung ueber alpha/rank,
// die Kommutativitaet additiver Merges und die Fehlerpfade.
package convert

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7wolken7/animforge/fs/weights"
)

// adapterArchive baut ein Adapter-Archiv aus Tensoren
func adapterArchive(t *testing.T, ts ...*weights.Tensor) *weights.Archive {
	t.Helper()

	archive, err := weights.FromTensors(ts)
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}
	if archive.Kind() != weights.AdapterDelta {
		t.Fatalf("Fixture ist kein Adapter-Archiv: %v", archive.Keys())
	}
	return archive
}

// identityUp ist ein 2x2 Identitaets-Up-Faktor: das Delta entspricht dann
// genau dem Down-Faktor
func identityUp(stem string) *weights.Tensor {
	return &weights.Tensor{Name: stem + loraUpSuffix, Shape: []uint64{2, 2}, Data: []float32{1, 0, 0, 1}}
}

// TestMergeAdapter testet den Basis-Merge base += strength * (up . down)
func TestMergeAdapter(t *testing.T) {
	base := Mapping{
		"proj.weight": {Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{10, 10, 10, 10}},
	}
	adapter := adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{1, 2, 3, 4}},
		identityUp("lora_unet_proj"),
	)

	merged, unmatched, err := MergeAdapter(base, adapter, 1)
	if err != nil {
		t.Fatalf("MergeAdapter: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("unerwartete unmatched Stems: %v", unmatched)
	}

	expected := []float32{11, 12, 13, 14}
	if diff := cmp.Diff(expected, merged["proj.weight"].Data); diff != "" {
		t.Errorf("Merge-Ergebnis abweichend (-want +got):\n%s", diff)
	}

	// Basis bleibt unveraendert
	if base["proj.weight"].Data[0] != 10 {
		t.Errorf("Basis wurde mutiert")
	}
}

// TestMergeAdapterAlphaScaling testet scale = strength * alpha/rank
func TestMergeAdapterAlphaScaling(t *testing.T) {
	base := Mapping{
		"proj.weight": {Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{0, 0, 0, 0}},
	}
	// rank 2, alpha 4 -> Faktor 2
	adapter := adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{1, 2, 3, 4}},
		identityUp("lora_unet_proj"),
		&weights.Tensor{Name: "lora_unet_proj" + loraAlphaSuffix, Shape: []uint64{}, Data: []float32{4}},
	)

	merged, _, err := MergeAdapter(base, adapter, 1)
	if err != nil {
		t.Fatalf("MergeAdapter: %v", err)
	}

	expected := []float32{2, 4, 6, 8}
	if diff := cmp.Diff(expected, merged["proj.weight"].Data); diff != "" {
		t.Errorf("alpha-Skalierung abweichend (-want +got):\n%s", diff)
	}
}

// TestMergeAdapterZeroStrength testet, dass Staerke 0 exakt ein No-Op ist
func TestMergeAdapterZeroStrength(t *testing.T) {
	orig := &weights.Tensor{Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{1, 2, 3, 4}}
	base := Mapping{"proj.weight": orig}
	adapter := adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{9, 9, 9, 9}},
		identityUp("lora_unet_proj"),
	)

	merged, _, err := MergeAdapter(base, adapter, 0)
	if err != nil {
		t.Fatalf("MergeAdapter: %v", err)
	}

	// Bit-identisch: der Tensor wird geteilt, nicht neu berechnet
	if merged["proj.weight"] != orig {
		t.Errorf("Staerke 0 soll den Basis-Tensor unveraendert teilen")
	}
}

// TestMergeAllCommutes testet, dass additive Merges auf gemeinsamen Keys
// kommutieren: A dann B ergibt dasselbe wie B dann A
func TestMergeAllCommutes(t *testing.T) {
	base := Mapping{
		"proj.weight": {Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{1, 1, 1, 1}},
	}
	a := ScaledDelta{Strength: 0.5, Archive: adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{2, 4, 6, 8}},
		identityUp("lora_unet_proj"),
	)}
	b := ScaledDelta{Strength: 1, Archive: adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{-1, -2, -3, -4}},
		identityUp("lora_unet_proj"),
	)}

	ab, _, err := MergeAll(base, []ScaledDelta{a, b})
	if err != nil {
		t.Fatalf("MergeAll(a, b): %v", err)
	}
	ba, _, err := MergeAll(base, []ScaledDelta{b, a})
	if err != nil {
		t.Fatalf("MergeAll(b, a): %v", err)
	}

	if diff := cmp.Diff(ab["proj.weight"].Data, ba["proj.weight"].Data); diff != "" {
		t.Errorf("Merge-Reihenfolge veraendert das Ergebnis (-ab +ba):\n%s", diff)
	}
}

// TestMergeAdapterUnpaired testet den Fehlerpfad fuer unvollstaendige Faktoren
func TestMergeAdapterUnpaired(t *testing.T) {
	base := Mapping{
		"proj.weight": {Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{0, 0, 0, 0}},
	}
	adapter := adapterArchive(t,
		&weights.Tensor{Name: "lora_unet_proj" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{1, 2, 3, 4}},
	)

	if _, _, err := MergeAdapter(base, adapter, 1); !errors.Is(err, weights.ErrCorrupt) {
		t.Errorf("erwartet ErrCorrupt bei unpaarem Faktor, bekommen: %v", err)
	}
}

// TestMergeAdapterUnmatched testet, dass Stems fremder Submodule gemeldet
// und uebersprungen werden
func TestMergeAdapterUnmatched(t *testing.T) {
	// Denoiser-Mapping, Adapter zielt auf den Text-Encoder
	base := Mapping{
		"proj.weight": {Name: "proj.weight", Shape: []uint64{2, 2}, Data: []float32{0, 0, 0, 0}},
	}
	adapter := adapterArchive(t,
		&weights.Tensor{Name: "lora_te_text_model_fc" + loraDownSuffix, Shape: []uint64{2, 2}, Data: []float32{1, 2, 3, 4}},
		identityUp("lora_te_text_model_fc"),
	)

	merged, unmatched, err := MergeAdapter(base, adapter, 1)
	if err != nil {
		t.Fatalf("MergeAdapter: %v", err)
	}
	if len(unmatched) != 1 || unmatched[0] != "lora_te_text_model_fc" {
		t.Errorf("unmatched = %v, erwartet [lora_te_text_model_fc]", unmatched)
	}
	if merged["proj.weight"].Data[0] != 0 {
		t.Errorf("fremder Adapter hat die Basis veraendert")
	}
}

// TestParseAdapterSpec testet das "pfad:staerke" Format
func TestParseAdapterSpec(t *testing.T) {
	tests := []struct {
		in       string
		expected AdapterSpec
		wantErr  bool
	}{
		{"models/lora/detail.safetensors:0.8", AdapterSpec{"models/lora/detail.safetensors", 0.8}, false},
		{"a.ckpt : 1.0", AdapterSpec{"a.ckpt", 1}, false},
		{"a.ckpt:-0.5", AdapterSpec{"a.ckpt", -0.5}, false},
		{"no-strength.safetensors", AdapterSpec{}, true},
		{"a.ckpt:stark", AdapterSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAdapterSpec(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("erwartet Fehler, bekommen %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAdapterSpec: %v", err)
			}
			if got != tt.expected {
				t.Errorf("= %+v, erwartet %+v", got, tt.expected)
			}
		})
	}
}
