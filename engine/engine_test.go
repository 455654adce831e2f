// engine_test.go - Tests fuer Sample-Layout und Backend-Registry
package engine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestSampleFrame testet die CHW-Extraktion aus dem BCFHW-Layout
func TestSampleFrame(t *testing.T) {
	// 1 Batch, 2 Kanaele, 2 Frames, 1x2 Pixel
	s := &Sample{Batch: 1, Channels: 2, Frames: 2, Height: 1, Width: 2}
	s.Data = []float32{
		// Kanal 0: Frame 0, Frame 1
		0, 1, 2, 3,
		// Kanal 1: Frame 0, Frame 1
		10, 11, 12, 13,
	}

	if diff := cmp.Diff([]float32{0, 1, 10, 11}, s.Frame(0, 0)); diff != "" {
		t.Errorf("Frame(0,0) (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{2, 3, 12, 13}, s.Frame(0, 1)); diff != "" {
		t.Errorf("Frame(0,1) (-want +got):\n%s", diff)
	}
}

// TestConcat testet die Batch-Konkatenation
func TestConcat(t *testing.T) {
	a := &Sample{Batch: 1, Channels: 1, Frames: 1, Height: 1, Width: 2, Data: []float32{1, 2}}
	b := &Sample{Batch: 2, Channels: 1, Frames: 1, Height: 1, Width: 2, Data: []float32{3, 4, 5, 6}}

	got, err := Concat([]*Sample{a, b})
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if got.Batch != 3 {
		t.Errorf("Batch = %d, erwartet 3", got.Batch)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5, 6}, got.Data); diff != "" {
		t.Errorf("Daten (-want +got):\n%s", diff)
	}
}

// TestConcatDimensionMismatch testet den Fehlerpfad abweichender Masse
func TestConcatDimensionMismatch(t *testing.T) {
	a := &Sample{Batch: 1, Channels: 1, Frames: 1, Height: 1, Width: 2, Data: []float32{1, 2}}
	b := &Sample{Batch: 1, Channels: 1, Frames: 1, Height: 2, Width: 2, Data: []float32{1, 2, 3, 4}}

	if _, err := Concat([]*Sample{a, b}); err == nil {
		t.Errorf("erwartet Fehler bei abweichenden Dimensionen")
	}
}

// TestRegistryNew testet Namensaufloesung und Fehlerpfade der Registry
func TestRegistryNew(t *testing.T) {
	// Registry-Zustand ist prozess-global; eindeutiger Testname
	Register("test-backend", func(map[string]any) (Engine, error) {
		return nil, nil
	})

	if _, err := New("test-backend", nil); err != nil {
		t.Errorf("New(test-backend): %v", err)
	}

	// Leerer Name waehlt das einzige Backend
	if _, err := New("", nil); err != nil {
		t.Errorf("New(\"\"): %v", err)
	}

	// Unbekannter Name
	if _, err := New("unbekannt", nil); err == nil || !strings.Contains(err.Error(), "unbekannt") {
		t.Errorf("erwartet Fehler mit Backend-Namen, bekommen: %v", err)
	}
}

// TestRegistryDuplicatePanics testet die Doppel-Registrierung
func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("erwartet Panic bei doppelter Registrierung")
		}
	}()

	Register("dup-backend", func(map[string]any) (Engine, error) { return nil, nil })
	Register("dup-backend", func(map[string]any) (Engine, error) { return nil, nil })
}
