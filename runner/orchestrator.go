// orchestrator.go - Top-Level Treiber der Generierungslaeufe
//
// Dieses Modul enthaelt:
// - Orchestrator: Fuehrt die Job-Sequenz strikt sequenziell aus
// - Run: Komponiert Pipelines, loest Seeds auf, ruft das Backend, materialisiert
//
// Es gibt keine Retries und keine Job-Parallelitaet: der Beschleuniger ist
// eine exklusive Prozess-Ressource, und ein fehlschlagender Job bricht den
// gesamten Lauf ab.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/7wolken7/animforge/config"
	"github.com/7wolken7/animforge/engine"
	"github.com/7wolken7/animforge/model"
)

// Materializer nimmt generierte Samples und das abschliessende Manifest an
type Materializer interface {
	WriteJob(index int, sample *engine.Sample) error
	SetInitImage(path string)
	Finish(cfg *config.RunConfig) error
}

// Orchestrator treibt einen Lauf ueber die expandierte Job-Sequenz
type Orchestrator struct {
	Engine       engine.Engine
	Materializer Materializer

	// Pretrained ist das Verzeichnis der Pretrained-Defaults
	Pretrained string
	// Inference sind die Engine-Konstruktionsparameter
	Inference *config.InferenceConfig

	// Progress wird nach jedem abgeschlossenen Job gerufen (optional)
	Progress func(done, total int)
}

// composeKey identifiziert eine gecachte Komposition; sie wird nur neu
// gebaut, wenn sich Eintrag oder Motion-Modul aendert
type composeKey struct {
	entryIndex   int
	motionModule string
}

// Run fuehrt alle Jobs des Konfigurationsdokuments aus und schreibt danach
// das Manifest mit den realisierten Seeds.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.RunConfig, prompts []string, opts Options) error {
	jobs, err := ExpandJobs(cfg, prompts, opts)
	if err != nil {
		return err
	}

	for _, entry := range cfg.Entries {
		entry.RandomSeed = nil
	}

	// Hardware-Anforderungen einmalig vor dem ersten Job pruefen
	if err := o.Engine.Check(); err != nil {
		return fmt.Errorf("hardware capability check failed: %w", err)
	}

	var pipe *pipelineCache
	for i, job := range jobs {
		key := composeKey{job.EntryIndex, job.MotionModule}
		if pipe == nil || pipe.key != key {
			slog.Info("composing model", "entry", job.Entry.Name, "motion_module", job.MotionModule)
			p, err := o.compose(job.Entry, job.MotionModule)
			if err != nil {
				return err
			}
			pipe = &pipelineCache{key: key, pipeline: p}
		}

		// Seed unmittelbar vor dem Job aufloesen und als realisiert erfassen
		seed, rng := ResolveSeed(job.SeedSpec)
		job.Entry.RandomSeed = append(job.Entry.RandomSeed, seed)

		slog.Info("sampling", "job", job.ID, "seed", seed, "prompt", promptSlug(job.Prompt))
		sample, err := o.Engine.Sample(ctx, pipe.pipeline, engine.Request{
			Prompt:         job.Prompt,
			NegativePrompt: job.NegativePrompt,
			Steps:          job.Entry.Steps,
			GuidanceScale:  job.Entry.GuidanceScale,
			Width:          job.Width,
			Height:         job.Height,
			FrameCount:     job.FrameCount,
			InitImage:      job.Entry.InitImage,
			RNG:            rng,
		})
		if err != nil {
			return fmt.Errorf("job %d (%s): %w", i, job.Entry.Name, err)
		}

		if err := o.Materializer.WriteJob(i, sample); err != nil {
			return fmt.Errorf("job %d (%s): %w", i, job.Entry.Name, err)
		}
		if job.Entry.InitImage != "" {
			o.Materializer.SetInitImage(job.Entry.InitImage)
		}

		if o.Progress != nil {
			o.Progress(i+1, len(jobs))
		}
	}

	// Realisierte Seeds sind nur bei genau einem Motion-Modul als
	// seed-Feld replay-faehig (Laenge == Prompt-Anzahl)
	for _, entry := range cfg.Entries {
		if len(entry.RandomSeed) == len(prompts) {
			entry.Seed = config.Int64List(entry.RandomSeed)
		}
	}

	return o.Materializer.Finish(cfg)
}

type pipelineCache struct {
	key      composeKey
	pipeline *model.Pipeline
}

// promptSlug kuerzt einen Prompt auf die ersten zehn Woerter
func promptSlug(prompt string) string {
	words := strings.Fields(strings.ReplaceAll(prompt, "/", ""))
	if len(words) > 10 {
		words = words[:10]
	}
	return strings.Join(words, "-")
}
