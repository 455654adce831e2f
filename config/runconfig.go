// runconfig.go - Run-Konfigurationsdokument und Manifest
//
// Dieses Modul enthaelt:
// - RunConfig: Geordnete Liste von ModelEntry-Eintraegen (Dokumentreihenfolge)
// - ModelEntry: Basis-Checkpoint, Motion-Module, Adapter, Sampling-Parameter
// - StringList/Int64List: Skalar-oder-Liste Felder, bei Ingestion normalisiert
// - LoadRunConfig/Save: YAML-Codec mit erhaltener Eintragsreihenfolge
//
// Nach einem Lauf wird dieselbe Struktur mit realisierten Seeds als
// Manifest-Snapshot zurueckgeschrieben (random_seed pro Eintrag).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StringList ist ein Skalar-oder-Liste String-Feld. Skalare werden bei der
// Ingestion zu einer Liste der Laenge 1 normalisiert; nachgelagerte
// Konsumenten sehen nie beide Formen.
type StringList []string

// UnmarshalYAML akzeptiert Skalar und Sequenz
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = StringList(ss)
		return nil
	default:
		return fmt.Errorf("line %d: expected scalar or sequence", value.Line)
	}
}

// Int64List ist ein Skalar-oder-Liste Integer-Feld (Seeds)
type Int64List []int64

// UnmarshalYAML akzeptiert Skalar und Sequenz
func (l *Int64List) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*l = Int64List{n}
		return nil
	case yaml.SequenceNode:
		var ns []int64
		if err := value.Decode(&ns); err != nil {
			return err
		}
		*l = Int64List(ns)
		return nil
	default:
		return fmt.Errorf("line %d: expected scalar or sequence", value.Line)
	}
}

// ModelEntry beschreibt eine Modell-Komposition und ihre Sampling-Parameter
type ModelEntry struct {
	// Name ist der Mapping-Key des Eintrags im Dokument
	Name string `yaml:"-"`

	// Path ist der Basis-Checkpoint; leer bedeutet Pretrained-Defaults
	Path string `yaml:"path"`
	// Base ist der Basis-Checkpoint, falls Path ein Adapter-Archiv ist
	Base string `yaml:"base,omitempty"`
	// LoraAlpha ist die Staerke, falls Path ein Adapter-Archiv ist
	LoraAlpha float64 `yaml:"lora_alpha,omitempty"`

	MotionModule StringList `yaml:"motion_module"`

	// AdditionalNetworks sind "pfad:staerke" Adapter-Eintraege
	AdditionalNetworks StringList `yaml:"additional_networks,omitempty"`

	Steps         int     `yaml:"steps"`
	GuidanceScale float64 `yaml:"guidance_scale"`

	NPrompt StringList `yaml:"n_prompt"`
	Seed    Int64List  `yaml:"seed,omitempty"`

	InitImage string `yaml:"init_image,omitempty"`

	// RandomSeed sind die realisierten Seeds nach dem Lauf (Manifest)
	RandomSeed []int64 `yaml:"random_seed,omitempty"`
}

// RunConfig ist das Wurzeldokument in Dokumentreihenfolge
type RunConfig struct {
	Entries []*ModelEntry
}

// LoadRunConfig liest ein Run-Konfigurationsdokument. Die Reihenfolge der
// Eintraege folgt dem Dokument; YAML-Maps verlieren sie sonst.
func LoadRunConfig(path string) (*RunConfig, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRunConfig(bts)
}

// ParseRunConfig parst ein Run-Konfigurationsdokument aus Bytes
func ParseRunConfig(bts []byte) (*RunConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(bts, &root); err != nil {
		return nil, err
	}

	if len(root.Content) == 0 {
		return &RunConfig{}, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("run config: expected a mapping of model entries")
	}

	cfg := &RunConfig{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]

		entry := &ModelEntry{}
		if err := value.Decode(entry); err != nil {
			return nil, fmt.Errorf("run config entry %q: %w", key.Value, err)
		}
		entry.Name = key.Value

		cfg.Entries = append(cfg.Entries, entry)
	}

	return cfg, nil
}

// Save schreibt das Dokument (inkl. realisierter Seeds) in Eintragsreihenfolge
func (c *RunConfig) Save(path string) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range c.Entries {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: entry.Name}

		value := &yaml.Node{}
		if err := value.Encode(entry); err != nil {
			return err
		}

		root.Content = append(root.Content, key, value)
	}

	bts, err := yaml.Marshal(root)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bts, 0o644)
}
