// compose.go - Komposition der Pipeline eines ModelEntry
//
// Dieses Modul enthaelt:
// - compose: Pretrained-Defaults -> Motion-Modul -> Basis-Checkpoint/Adapter
// - applyCheckpoint: Remap und Load des Basis-Checkpoints inkl. Adapter-Folds
//
// Die Reihenfolge folgt der Komposition des Originalsystems: das Motion-Modul
// wird vor dem Basis-Checkpoint geladen; da der Checkpoint keine
// Temporal-Keys enthaelt, ueberleben die Motion-Gewichte den nicht-strikten
// Load.
package runner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/7wolken7/animforge/config"
	"github.com/7wolken7/animforge/convert"
	"github.com/7wolken7/animforge/fs/weights"
	"github.com/7wolken7/animforge/model"
)

// motionKeyMarker kennzeichnet die Temporal-Schichten des Denoisers
const motionKeyMarker = "motion_modules."

// compose baut die Pipeline fuer einen ModelEntry und ein Motion-Modul
func (o *Orchestrator) compose(entry *config.ModelEntry, motionModule string) (*model.Pipeline, error) {
	pipe, err := model.LoadPretrained(o.Pretrained)
	if err != nil {
		return nil, err
	}
	if o.Inference != nil {
		pipe.SchedulerKwargs = o.Inference.NoiseSchedulerKwargs
	}

	if err := o.applyMotionModule(pipe, motionModule); err != nil {
		return nil, fmt.Errorf("motion module %s: %w", motionModule, err)
	}

	if entry.Path != "" {
		if err := o.applyCheckpoint(pipe, entry); err != nil {
			return nil, fmt.Errorf("model %s: %w", entry.Name, err)
		}
	}

	return pipe, nil
}

// applyMotionModule laedt die Temporal-Gewichte in den Denoiser
func (o *Orchestrator) applyMotionModule(pipe *model.Pipeline, path string) error {
	archive, err := weights.Open(path)
	if err != nil {
		return err
	}

	if archive.GlobalStep > 0 {
		pipe.GlobalStep = archive.GlobalStep
		slog.Info("motion module checkpoint", "global_step", archive.GlobalStep)
	}

	// Temporal-Schichten im Denoiser deklarieren, bevor sie gefuellt werden
	mapping := convert.MappingFromArchive(archive)
	for _, key := range mapping.Keys() {
		if strings.Contains(key, motionKeyMarker) {
			pipe.Denoiser.Register(key, mapping[key].Shape)
		}
	}

	missing, unexpected, err := pipe.Denoiser.LoadMapping(mapping, false)
	if err != nil {
		return err
	}
	if len(unexpected) > 0 {
		slog.Warn("unexpected keys in motion module were not loaded", "count", len(unexpected), "keys", unexpected)
	}
	slog.Debug("motion module loaded", "loaded", archive.Len()-len(unexpected), "missing", len(missing))

	return nil
}

// applyCheckpoint remappt den Basis-Checkpoint in die Submodul-Namespaces,
// faltet die Adapter hinein und laedt die Mappings in die Module
func (o *Orchestrator) applyCheckpoint(pipe *model.Pipeline, entry *config.ModelEntry) error {
	archive, err := weights.Open(entry.Path)
	if err != nil {
		return err
	}

	base := archive
	var deltas []convert.ScaledDelta
	if archive.Kind() == weights.AdapterDelta {
		if entry.Base == "" {
			return fmt.Errorf("checkpoint %s is adapter-only and requires a base checkpoint", entry.Path)
		}

		base, err = weights.Open(entry.Base)
		if err != nil {
			return err
		}
		deltas = append(deltas, convert.ScaledDelta{Archive: archive, Strength: entry.LoraAlpha})
	}

	for _, raw := range entry.AdditionalNetworks {
		spec, err := convert.ParseAdapterSpec(raw)
		if err != nil {
			return err
		}

		add, err := weights.Open(spec.Path)
		if err != nil {
			return err
		}
		if add.Kind() != weights.AdapterDelta {
			return fmt.Errorf("additional network %s is not an adapter archive", spec.Path)
		}

		slog.Info("loading adapter", "path", spec.Path, "strength", spec.Strength)
		deltas = append(deltas, convert.ScaledDelta{Archive: add, Strength: spec.Strength})
	}

	for _, target := range []convert.Target{convert.TargetAutoencoder, convert.TargetTextEncoder, convert.TargetDenoiser} {
		mapping := convert.Remap(base, target)
		if len(mapping) == 0 {
			// Checkpoint enthaelt dieses Submodul nicht
			continue
		}

		// Adapter betreffen Denoiser und Text-Encoder, nie den Autoencoder
		if target != convert.TargetAutoencoder && len(deltas) > 0 {
			merged, unmatched, err := convert.MergeAll(mapping, deltas)
			if err != nil {
				return err
			}
			if len(unmatched) > 0 {
				slog.Debug("adapter deltas outside target namespace", "target", target.String(), "count", len(unmatched))
			}
			mapping = merged
		}

		missing, unexpected, err := pipe.ModuleFor(target).LoadMapping(mapping, false)
		if err != nil {
			return err
		}
		if len(missing) > 0 || len(unexpected) > 0 {
			slog.Warn("checkpoint keys mismatched", "target", target.String(),
				"missing", len(missing), "unexpected", len(unexpected))
		}
	}

	return nil
}
