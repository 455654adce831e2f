// materialize_test.go - Tests fuer das Artefakt-Layout eines Laufs
//
// Testet eindeutige Job-Artefakte, den st.png Snapshot, das aggregierte
// Grid und das Manifest.
package output

import (
	"fmt"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/7wolken7/animforge/config"
	"github.com/7wolken7/animforge/engine"
)

// gradientSample baut ein synthetisches Sample mit frame-abhaengigen Werten
func gradientSample(frames, height, width int) *engine.Sample {
	s := &engine.Sample{Batch: 1, Channels: 3, Frames: frames, Height: height, Width: width}
	s.Data = make([]float32, s.Elems())
	for i := range s.Data {
		s.Data[i] = float32(i%256) / 255
	}
	return s
}

func testManifest() *config.RunConfig {
	return &config.RunConfig{Entries: []*config.ModelEntry{
		{
			Name:          "A",
			MotionModule:  config.StringList{"mm.ckpt"},
			Steps:         25,
			GuidanceScale: 7.5,
			NPrompt:       config.StringList{""},
			RandomSeed:    []int64{42, 977},
		},
	}}
}

// TestMaterializerLayout testet das vollstaendige Verzeichnis-Layout
func TestMaterializerLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	m, err := New(dir, "0000", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const frames = 4
	for i := range 2 {
		if err := m.WriteJob(i, gradientSample(frames, 8, 8)); err != nil {
			t.Fatalf("WriteJob(%d): %v", i, err)
		}
	}
	if err := m.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	// Zwei Jobs ergeben zwei eindeutige GIFs plus Aggregat und Manifest
	for _, path := range []string{
		"sample/0000-0.gif",
		"sample/0000-1.gif",
		"frames/st.png",
		"sample.gif",
		"config.yaml",
	} {
		if _, err := os.Stat(filepath.Join(dir, path)); err != nil {
			t.Errorf("Artefakt %s fehlt: %v", path, err)
		}
	}

	// Pro Job ein Frame-Verzeichnis mit einem PNG pro Frame
	for i := range 2 {
		for f := range frames {
			name := fmt.Sprintf("0000-%d", i)
			path := filepath.Join(dir, "frames", name, fmt.Sprintf("%s_frame_%04d.png", name, f))
			if _, err := os.Stat(path); err != nil {
				t.Errorf("Frame-PNG %s fehlt: %v", path, err)
			}
		}
	}
}

// TestMaterializerGIFFrames testet, dass das Job-GIF alle Frames traegt
func TestMaterializerGIFFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	m, err := New(dir, "0000", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const frames = 5
	if err := m.WriteJob(0, gradientSample(frames, 8, 8)); err != nil {
		t.Fatalf("WriteJob: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "sample", "0000-0.gif"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(anim.Image) != frames {
		t.Errorf("GIF-Frames = %d, erwartet %d", len(anim.Image), frames)
	}
}

// TestMaterializerGrid testet die Grid-Dimensionen des Aggregats
func TestMaterializerGrid(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	m, err := New(dir, "0000", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 3 Jobs mit 8x8 Samples bei 2 Kacheln pro Zeile: 16x16 Grid
	for i := range 3 {
		if err := m.WriteJob(i, gradientSample(2, 8, 8)); err != nil {
			t.Fatalf("WriteJob(%d): %v", i, err)
		}
	}
	if err := m.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "sample.gif"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	cfg, err := gif.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 16 {
		t.Errorf("Grid = %dx%d, erwartet 16x16", cfg.Width, cfg.Height)
	}
}

// TestMaterializerSnapshot testet, dass st.png den letzten Frame des
// letzten Jobs traegt
func TestMaterializerSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	m, err := New(dir, "0000", 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Zweiter Job ist konstant weiss; der Snapshot muss ihn zeigen
	if err := m.WriteJob(0, gradientSample(2, 4, 4)); err != nil {
		t.Fatalf("WriteJob(0): %v", err)
	}

	white := &engine.Sample{Batch: 1, Channels: 3, Frames: 2, Height: 4, Width: 4}
	white.Data = make([]float32, white.Elems())
	for i := range white.Data {
		white.Data[i] = 1
	}
	if err := m.WriteJob(1, white); err != nil {
		t.Fatalf("WriteJob(1): %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "frames", "st.png"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("Snapshot-Pixel = (%d,%d,%d), erwartet weiss", r, g, b)
	}
}

// TestQuantize testet die Klemmung der Wertebereiche
func TestQuantize(t *testing.T) {
	tests := []struct {
		in       float32
		expected uint8
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{1.5, 255},
	}
	for _, tt := range tests {
		if got := quantize(tt.in); got != tt.expected {
			t.Errorf("quantize(%v) = %d, erwartet %d", tt.in, got, tt.expected)
		}
	}
}
