// engine.go - Vertrag des externen Sampling-Backends
//
// Dieses Modul definiert:
// - Request: Ein vollstaendig spezifizierter Sampling-Auftrag
// - Sample: Das Ergebnis-Tensor (Batch, Kanal, Frame, Hoehe, Breite) in [0,1]
// - Engine: Interface des Backends inkl. Capability-Check
//
// Der Sampling-Algorithmus selbst ist kein Teil dieses Repos; Backends
// registrieren sich ueber die Registry (siehe registry.go).
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/7wolken7/animforge/model"
)

// Request ist ein Sampling-Auftrag. Der RNG-Handle wird explizit
// durchgereicht; das Backend darf keinen Prozess-globalen Zustand seeden.
type Request struct {
	Prompt         string
	NegativePrompt string

	Steps         int
	GuidanceScale float64

	Width      int
	Height     int
	FrameCount int

	// InitImage ist der optionale Pfad eines Start-Bildes
	InitImage string

	// RNG ist der pro Job aufgeloeste Zufallsgenerator
	RNG *rand.Rand
}

// Sample ist ein generiertes Ergebnis im Layout (B, C, F, H, W), Werte [0,1]
type Sample struct {
	Batch    int
	Channels int
	Frames   int
	Height   int
	Width    int

	Data []float32
}

// Elems gibt die erwartete Datenlaenge laut Dimensionen zurueck
func (s *Sample) Elems() int {
	return s.Batch * s.Channels * s.Frames * s.Height * s.Width
}

// Frame gibt die CHW-Ebene eines Frames zurueck (geteilter Slice)
func (s *Sample) Frame(batch, frame int) []float32 {
	plane := s.Height * s.Width
	frameSize := s.Channels * plane

	out := make([]float32, 0, frameSize)
	for c := range s.Channels {
		begin := ((batch*s.Channels+c)*s.Frames + frame) * plane
		out = append(out, s.Data[begin:begin+plane]...)
	}
	return out
}

// Concat haengt Samples entlang der Batch-Dimension aneinander.
// Alle Samples muessen in Kanal-, Frame- und Bildmassen uebereinstimmen.
func Concat(samples []*Sample) (*Sample, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to concatenate")
	}

	first := samples[0]
	out := &Sample{
		Channels: first.Channels,
		Frames:   first.Frames,
		Height:   first.Height,
		Width:    first.Width,
	}

	for _, s := range samples {
		if s.Channels != out.Channels || s.Frames != out.Frames || s.Height != out.Height || s.Width != out.Width {
			return nil, fmt.Errorf("sample dimensions disagree: (%d,%d,%d,%d) vs (%d,%d,%d,%d)",
				s.Channels, s.Frames, s.Height, s.Width, out.Channels, out.Frames, out.Height, out.Width)
		}
		out.Batch += s.Batch
		out.Data = append(out.Data, s.Data...)
	}

	return out, nil
}

// Engine ist das konsumierte Sampling-Backend. Sample muss bei fixem
// RNG-Seed und fixen Gewichten deterministisch sein.
type Engine interface {
	// Check prueft die Hardware-Anforderungen (Beschleuniger, optimierte
	// Attention). Ein Fehler ist ein fataler Startfehler, kein Job-Fehler.
	Check() error

	// Sample fuehrt einen Auftrag synchron und blockierend aus
	Sample(ctx context.Context, p *model.Pipeline, req Request) (*Sample, error)
}
