// inference.go - Inference-Hyperparameter-Dokument
// Haupttypen: InferenceConfig
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// InferenceConfig liefert die Engine-Konstruktionsparameter: die
// Solver-Konfiguration und die Netzwerk-Konstruktions-Kwargs.
type InferenceConfig struct {
	UnetAdditionalKwargs map[string]any `yaml:"unet_additional_kwargs"`
	NoiseSchedulerKwargs map[string]any `yaml:"noise_scheduler_kwargs"`
}

// LoadInferenceConfig liest ein Inference-Hyperparameter-Dokument
func LoadInferenceConfig(path string) (*InferenceConfig, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg InferenceConfig
	if err := yaml.Unmarshal(bts, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
