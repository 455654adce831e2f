// weights_test.go - Tests fuer Archiv-Kern und Format-Dispatcher
//
// Testet Kind-Klassifikation, Duplikat-Invariante und die Fehlerpfade von
// Open (fehlende Datei, unbekannte Endung).
package weights

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestArchiveKind testet die 100%-Regel der Adapter-Klassifikation
func TestArchiveKind(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		expected Kind
	}{
		{"leer", nil, BaseCheckpoint},
		{"nur Adapter-Keys", []string{
			"lora_unet_down_blocks_0_attn.lora_down.weight",
			"lora_unet_down_blocks_0_attn.lora_up.weight",
		}, AdapterDelta},
		{"nur Basis-Keys", []string{
			"model.diffusion_model.conv_in.weight",
			"first_stage_model.conv_out.bias",
		}, BaseCheckpoint},
		// Ein einziger Nicht-Adapter-Key erzwingt BaseCheckpoint
		{"gemischt", []string{
			"lora_unet_down_blocks_0_attn.lora_down.weight",
			"model.diffusion_model.conv_in.weight",
		}, BaseCheckpoint},
		// Marker irgendwo im Key genuegt
		{"Marker im Stem", []string{"lora_te_text_model.alpha"}, AdapterDelta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts []*Tensor
			for _, key := range tt.keys {
				ts = append(ts, &Tensor{Name: key, Shape: []uint64{1}, Data: []float32{0}})
			}
			archive, err := FromTensors(ts)
			if err != nil {
				t.Fatalf("FromTensors: %v", err)
			}
			if got := archive.Kind(); got != tt.expected {
				t.Errorf("Kind() = %v, erwartet %v", got, tt.expected)
			}
		})
	}
}

// TestFromTensorsDuplicate testet die Eindeutigkeits-Invariante der Keys
func TestFromTensorsDuplicate(t *testing.T) {
	_, err := FromTensors([]*Tensor{
		{Name: "a", Shape: []uint64{1}, Data: []float32{1}},
		{Name: "a", Shape: []uint64{1}, Data: []float32{2}},
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("erwartet ErrCorrupt bei doppeltem Key, bekommen: %v", err)
	}
}

// TestArchiveKeysOrder testet, dass Keys die Einfuege-Reihenfolge behalten
func TestArchiveKeysOrder(t *testing.T) {
	names := []string{"zeta", "alpha", "mitte"}
	var ts []*Tensor
	for _, n := range names {
		ts = append(ts, &Tensor{Name: n, Shape: []uint64{1}, Data: []float32{0}})
	}

	archive, err := FromTensors(ts)
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}

	keys := archive.Keys()
	for i, n := range names {
		if keys[i] != n {
			t.Errorf("Keys()[%d] = %q, erwartet %q", i, keys[i], n)
		}
	}
}

// TestOpenErrors testet die Fehlerpfade des Format-Dispatchers
func TestOpenErrors(t *testing.T) {
	tempDir := t.TempDir()

	// Fehlende Datei
	if _, err := Open(filepath.Join(tempDir, "missing.safetensors")); !errors.Is(err, ErrNotFound) {
		t.Errorf("erwartet ErrNotFound, bekommen: %v", err)
	}

	// Unbekannte Endung
	unknown := filepath.Join(tempDir, "weights.bin")
	if err := os.WriteFile(unknown, []byte("not a tensor archive"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(unknown); !errors.Is(err, ErrUnsupported) {
		t.Errorf("erwartet ErrUnsupported, bekommen: %v", err)
	}
}

// TestTensorClone testet, dass Clone Daten nicht teilt
func TestTensorClone(t *testing.T) {
	orig := &Tensor{Name: "w", Shape: []uint64{2}, Data: []float32{1, 2}}
	clone := orig.Clone()

	clone.Data[0] = 42
	if orig.Data[0] != 1 {
		t.Errorf("Clone teilt Daten mit dem Original")
	}
}
