// pipeline.go - Komposition der Submodule zu einer Pipeline
//
// Dieses Modul enthaelt:
// - Pipeline: Autoencoder, Konditionierungs-Encoder und Denoiser
// - LoadPretrained: Laedt die Pretrained-Defaults aus dem Submodul-Layout
//
// Das Pretrained-Verzeichnis folgt dem komponentenweisen Layout: je ein
// Unterverzeichnis pro Submodul mit einer Safetensors-Datei.
package model

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/7wolken7/animforge/convert"
	"github.com/7wolken7/animforge/fs/weights"
)

// Subverzeichnisse des Pretrained-Layouts
var pretrainedSubdirs = map[string]string{
	"autoencoder":  "vae",
	"text_encoder": "text_encoder",
	"denoiser":     "unet",
}

// Pipeline buendelt die komponierten Submodule eines ModelEntry
type Pipeline struct {
	Autoencoder *Module
	TextEncoder *Module
	Denoiser    *Module

	// SchedulerKwargs sind die Solver-Parameter aus dem Inference-Dokument
	SchedulerKwargs map[string]any

	// GlobalStep ist der Trainingsstand des geladenen Motion-Moduls (0 = unbekannt)
	GlobalStep int64
}

// ModuleFor gibt das Submodul fuer ein Remap-Target zurueck
func (p *Pipeline) ModuleFor(target convert.Target) *Module {
	switch target {
	case convert.TargetAutoencoder:
		return p.Autoencoder
	case convert.TargetTextEncoder:
		return p.TextEncoder
	default:
		return p.Denoiser
	}
}

// LoadPretrained laedt die Pretrained-Defaults aller Submodule.
// Jedes Submodul liegt in einem eigenen Unterverzeichnis mit genau einer
// Safetensors-Datei; deren Keys sind bereits im Submodul-Namespace.
func LoadPretrained(dir string) (*Pipeline, error) {
	p := &Pipeline{
		Autoencoder: NewModule("autoencoder"),
		TextEncoder: NewModule("text_encoder"),
		Denoiser:    NewModule("denoiser"),
	}

	for _, m := range []*Module{p.Autoencoder, p.TextEncoder, p.Denoiser} {
		path, err := pretrainedFile(dir, pretrainedSubdirs[m.Name])
		if err != nil {
			return nil, fmt.Errorf("pretrained %s: %w", m.Name, err)
		}

		archive, err := weights.Open(path)
		if err != nil {
			return nil, fmt.Errorf("pretrained %s: %w", m.Name, err)
		}

		for _, key := range archive.Keys() {
			t, _ := archive.Get(key)
			m.SetParam(key, t.Clone())
		}

		slog.Debug("loaded pretrained weights", "module", m.Name, "tensors", archive.Len())
	}

	return p, nil
}

// pretrainedFile findet die Safetensors-Datei eines Submodul-Verzeichnisses
func pretrainedFile(dir, sub string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, sub, "*.safetensors"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no safetensors file under %s", weights.ErrNotFound, filepath.Join(dir, sub))
	}

	// Glob sortiert; bei mehreren Dateien gewinnt deterministisch die erste
	return matches[0], nil
}
