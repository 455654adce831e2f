// remap.go - Key-Remapping vom monolithischen Checkpoint-Layout in die
// Submodul-Namespaces
//
// Dieses Modul enthaelt:
// - Target: Zielsubmodule (Autoencoder, TextEncoder, Denoiser)
// - Mapping: Key-zu-Tensor Zuordnung im Submodul-Namespace
// - Remap: Deterministische Uebersetzung per Allow-List und Ersetzungstabelle
//
// Keys ausserhalb der Allow-List eines Targets gehoeren zu einem anderen
// Submodul und werden vom Filter verworfen; das ist erwartetes Verhalten,
// kein Fehler.
package convert

import (
	"slices"
	"strings"

	"github.com/7wolken7/animforge/fs/weights"
)

// Target bezeichnet das Zielsubmodul eines Remappings
type Target int

const (
	// TargetAutoencoder ist der Bild-Autoencoder (VAE)
	TargetAutoencoder Target = iota
	// TargetTextEncoder ist der Konditionierungs-Encoder
	TargetTextEncoder
	// TargetDenoiser ist das Denoising-Netzwerk (UNet)
	TargetDenoiser
)

func (t Target) String() string {
	switch t {
	case TargetAutoencoder:
		return "autoencoder"
	case TargetTextEncoder:
		return "text_encoder"
	default:
		return "denoiser"
	}
}

// Mapping ist eine Key-zu-Tensor Zuordnung im Namespace eines Submoduls
type Mapping map[string]*weights.Tensor

// Keys gibt die Keys des Mappings sortiert zurueck
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone gibt eine flache Kopie des Mappings zurueck (Tensoren geteilt)
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// rule beschreibt die Uebersetzung fuer ein Target: Allow-List-Praefixe
// (werden abgeschnitten), Ersetzungspaare fuer strings.NewReplacer und
// Suffixe, die innerhalb des Namespace verworfen werden.
type rule struct {
	prefixes     []string
	replacements []string
	drop         []string
}

// rules folgt dem Layout des Upstream-Trainingsformats: der flache
// Checkpoint faechert in bis zu drei Submodul-Namespaces auf.
var rules = map[Target]rule{
	TargetAutoencoder: {
		prefixes: []string{"first_stage_model."},
		replacements: []string{
			"nin_shortcut", "conv_shortcut",
			"norm_out", "conv_norm_out",
			// Kein Punkt am Ende: der Replacer arbeitet in einem Durchlauf,
			// die Attention-Suffixe (.q., .k., ...) brauchen den Punkt noch
			"mid.attn_1", "mid_block.attentions.0",
			"mid.block_1", "mid_block.resnets.0",
			"mid.block_2", "mid_block.resnets.1",
			"down.", "down_blocks.",
			"up.", "up_blocks.",
			".block.", ".resnets.",
			".downsample.", ".downsamplers.0.",
			".upsample.", ".upsamplers.0.",
			".q.", ".to_q.",
			".k.", ".to_k.",
			".v.", ".to_v.",
			".proj_out.", ".to_out.0.",
		},
	},
	TargetTextEncoder: {
		prefixes: []string{"cond_stage_model.transformer."},
		drop:     []string{".position_ids"},
	},
	TargetDenoiser: {
		prefixes: []string{"model.diffusion_model."},
		replacements: []string{
			"time_embed.0.", "time_embedding.linear_1.",
			"time_embed.2.", "time_embedding.linear_2.",
			"input_blocks.0.0.", "conv_in.",
			"out.0.", "conv_norm_out.",
			"out.2.", "conv_out.",
			"input_blocks.", "down_blocks.",
			"middle_block.", "mid_block.",
			"output_blocks.", "up_blocks.",
			"emb_layers.1.", "time_emb_proj.",
			"in_layers.0.", "norm1.",
			"in_layers.2.", "conv1.",
			"out_layers.0.", "norm2.",
			"out_layers.3.", "conv2.",
			"skip_connection.", "conv_shortcut.",
			".op.", ".downsamplers.0.conv.",
		},
	},
}

// Replacements gibt die Ersetzungspaare eines Targets zurueck.
// Siehe [strings.Replacer](https://pkg.go.dev/strings#Replacer).
func Replacements(target Target) []string {
	return slices.Clone(rules[target].replacements)
}

// Allowed prueft, ob ein flacher Key in den Namespace des Targets faellt
func Allowed(key string, target Target) bool {
	for _, p := range rules[target].prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Remap uebersetzt ein monolithisches Archiv in den Namespace des Targets.
// Die Funktion ist pur: das Archiv bleibt unveraendert, Tensoren werden
// geteilt, nicht kopiert.
func Remap(archive *weights.Archive, target Target) Mapping {
	r := rules[target]
	replacer := strings.NewReplacer(r.replacements...)

	out := make(Mapping)
	for _, key := range archive.Keys() {
		if !Allowed(key, target) {
			continue
		}

		stripped := key
		for _, p := range r.prefixes {
			stripped = strings.TrimPrefix(stripped, p)
		}

		if slices.ContainsFunc(r.drop, func(suffix string) bool {
			return strings.HasSuffix(stripped, suffix)
		}) {
			continue
		}

		t, _ := archive.Get(key)
		out[replacer.Replace(stripped)] = t
	}
	return out
}

// MappingFromArchive gibt ein Identitaets-Mapping zurueck fuer Archive,
// deren Keys bereits im Submodul-Namespace liegen (Motion-Module).
func MappingFromArchive(archive *weights.Archive) Mapping {
	out := make(Mapping, archive.Len())
	for _, key := range archive.Keys() {
		t, _ := archive.Get(key)
		out[key] = t
	}
	return out
}
