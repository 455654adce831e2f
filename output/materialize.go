// materialize.go - Persistente Artefakte eines Laufs
//
// Dieses Modul enthaelt:
// - Materializer: Schreibt pro Job GIF + Frame-PNGs, am Ende Grid + Manifest
// - Layout: sample/<tag>-<idx>.gif, frames/<tag>-<idx>/..., frames/st.png,
//   sample.gif, config.yaml, <n>-init_image.jpg
//
// Jeder Job bekommt eindeutige Artefaktnamen; nur der Snapshot frames/st.png
// wird bewusst pro Job ueberschrieben.
package output

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/7wolken7/animforge/config"
	"github.com/7wolken7/animforge/engine"
)

// gifFrameDelay ist die Frame-Dauer in Hundertstelsekunden (8 fps)
const gifFrameDelay = 12

// Materializer sammelt die Samples eines Laufs und schreibt die Artefakte
// in das Run-Verzeichnis
type Materializer struct {
	dir string
	tag string

	// gridPerRow ist die Kachelzahl pro Zeile des aggregierten Grids
	gridPerRow int

	samples   []*engine.Sample
	initImage string
}

// New legt das Run-Verzeichnis samt sample/ und frames/ an
func New(dir, tag string, gridPerRow int) (*Materializer, error) {
	for _, sub := range []string{dir, filepath.Join(dir, "sample"), filepath.Join(dir, "frames")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, err
		}
	}
	if gridPerRow < 1 {
		gridPerRow = 1
	}

	return &Materializer{dir: dir, tag: tag, gridPerRow: gridPerRow}, nil
}

// Dir gibt das Run-Verzeichnis zurueck
func (m *Materializer) Dir() string {
	return m.dir
}

// WriteJob schreibt das animierte GIF und die Frame-PNGs eines Jobs und
// merkt sich das Sample fuer das aggregierte Grid
func (m *Materializer) WriteJob(index int, sample *engine.Sample) error {
	name := fmt.Sprintf("%s-%d", m.tag, index)

	frames := make([]*image.RGBA, sample.Frames)
	for frame := range sample.Frames {
		frames[frame] = frameImage(sample, 0, frame)
	}

	if err := writeGIF(filepath.Join(m.dir, "sample", name+".gif"), frames); err != nil {
		return err
	}

	frameDir := filepath.Join(m.dir, "frames", name)
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return err
	}
	for i, frame := range frames {
		path := filepath.Join(frameDir, fmt.Sprintf("%s_frame_%04d.png", name, i))
		if err := writePNG(path, frame); err != nil {
			return err
		}
	}

	// Snapshot des letzten Frames; wird pro Job ueberschrieben
	if err := writePNG(filepath.Join(m.dir, "frames", "st.png"), frames[len(frames)-1]); err != nil {
		return err
	}

	m.samples = append(m.samples, sample)
	return nil
}

// SetInitImage merkt sich das Start-Bild fuer die Kopie beim Abschluss
func (m *Materializer) SetInitImage(path string) {
	m.initImage = path
}

// Finish schreibt das aggregierte Grid-GIF, das Manifest und die
// Start-Bild-Kopie
func (m *Materializer) Finish(cfg *config.RunConfig) error {
	all, err := engine.Concat(m.samples)
	if err != nil {
		return err
	}

	frames := make([]*image.RGBA, all.Frames)
	for frame := range all.Frames {
		frames[frame] = gridImage(all, frame, m.gridPerRow)
	}
	if err := writeGIF(filepath.Join(m.dir, "sample.gif"), frames); err != nil {
		return err
	}

	if err := cfg.Save(filepath.Join(m.dir, "config.yaml")); err != nil {
		return err
	}

	if m.initImage != "" {
		dst := filepath.Join(m.dir, fmt.Sprintf("%d-init_image.jpg", len(m.samples)))
		if err := copyInitImage(m.initImage, dst); err != nil {
			return err
		}
	}

	return nil
}

// writeGIF schreibt ein animiertes GIF mit fester Frame-Dauer
func writeGIF(path string, frames []*image.RGBA) error {
	anim := &gif.GIF{}
	for _, frame := range frames {
		anim.Image = append(anim.Image, palettize(frame))
		anim.Delay = append(anim.Delay, gifFrameDelay)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gif.EncodeAll(f, anim)
}

// writePNG schreibt ein einzelnes Frame-PNG
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}

// copyInitImage dekodiert das Start-Bild (PNG/JPEG/BMP/WebP) und legt es
// als JPEG neben die Artefakte
func copyInitImage(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("init image %s: %w", src, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, img, nil)
}
