// matrix.go - Expansion der Run-Matrix in konkrete Jobs
//
// Dieses Modul enthaelt:
// - Job: Ein vollstaendig spezifizierter Generierungs-Auftrag
// - ExpandJobs: Kartesische Expansion Eintraege x Motion-Module x Prompts
//
// Negative-Prompt- und Seed-Listen werden von Laenge 1 auf die Prompt-Anzahl
// gebroadcastet; jede andere abweichende Laenge ist ein Konfigurationsfehler.
package runner

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/7wolken7/animforge/config"
)

// ErrLengthMismatch kennzeichnet Listenlaengen, die weder 1 noch die
// Prompt-Anzahl sind
var ErrLengthMismatch = errors.New("list length mismatch")

// Options sind die lauf-weiten Generierungsparameter aus der Command-Surface
type Options struct {
	Width      int
	Height     int
	FrameCount int

	// FilenameTag benennt die Artefakte des Laufs
	FilenameTag string
}

// Job ist ein konkreter Generierungs-Auftrag
type Job struct {
	ID uuid.UUID

	EntryIndex int
	Entry      *config.ModelEntry

	MotionModule string

	PromptIndex    int
	Prompt         string
	NegativePrompt string

	// SeedSpec ist die Seed-Spezifikation (-1 = frischer Seed)
	SeedSpec int64

	Width      int
	Height     int
	FrameCount int
}

// ExpandJobs expandiert das Konfigurationsdokument in die geordnete
// Job-Sequenz: Eintraege in Dokumentreihenfolge, Motion-Module in
// Listenreihenfolge, Prompts in Dateireihenfolge.
func ExpandJobs(cfg *config.RunConfig, prompts []string, opts Options) ([]Job, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no prompts to expand")
	}

	var jobs []Job
	for entryIndex, entry := range cfg.Entries {
		if len(entry.MotionModule) == 0 {
			return nil, fmt.Errorf("model %s: no motion module configured", entry.Name)
		}

		nPrompts, err := broadcast(entry.NPrompt, len(prompts), entry.Name, "n_prompt")
		if err != nil {
			return nil, err
		}

		seeds := entry.Seed
		if len(seeds) == 0 {
			seeds = config.Int64List{-1}
		}
		seeds, err = broadcast(seeds, len(prompts), entry.Name, "seed")
		if err != nil {
			return nil, err
		}

		for _, motionModule := range entry.MotionModule {
			for promptIndex, prompt := range prompts {
				jobs = append(jobs, Job{
					ID:             uuid.New(),
					EntryIndex:     entryIndex,
					Entry:          entry,
					MotionModule:   motionModule,
					PromptIndex:    promptIndex,
					Prompt:         prompt,
					NegativePrompt: nPrompts[promptIndex],
					SeedSpec:       seeds[promptIndex],
					Width:          opts.Width,
					Height:         opts.Height,
					FrameCount:     opts.FrameCount,
				})
			}
		}
	}

	return jobs, nil
}

// broadcast normalisiert eine Liste auf die Prompt-Anzahl.
// Eine fehlende Liste zaehlt als ein leerer Skalar.
func broadcast[T any](list []T, n int, entry, field string) ([]T, error) {
	switch len(list) {
	case n:
		return list, nil
	case 0:
		return make([]T, n), nil
	case 1:
		out := make([]T, n)
		for i := range out {
			out[i] = list[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: model %s: %s has %d entries for %d prompts (want 1 or %d)",
			ErrLengthMismatch, entry, field, len(list), n, n)
	}
}
