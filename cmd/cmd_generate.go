// cmd_generate.go - Generate Command: fuehrt einen Batch-Lauf aus
//
// Dieses Modul enthaelt:
// - newGenerateCmd: Command-Builder inkl. Flags
// - generateHandler: Laedt Konfiguration und Prompts, startet den Orchestrator
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/7wolken7/animforge/config"
	"github.com/7wolken7/animforge/engine"
	"github.com/7wolken7/animforge/envconfig"
	"github.com/7wolken7/animforge/logutil"
	"github.com/7wolken7/animforge/output"
	"github.com/7wolken7/animforge/progress"
	"github.com/7wolken7/animforge/runner"
)

// newGenerateCmd - Erstellt den Generate Command
func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run every model x motion module x prompt combination of a run config",
		Args:  cobra.NoArgs,
		RunE:  generateHandler,
	}

	cmd.Flags().String("config", "", "Run config (YAML mapping of model entries)")
	cmd.Flags().String("prompts", "", "Prompt file, one prompt per line")
	cmd.Flags().String("inference-config", "", "Engine construction parameters (YAML)")
	cmd.Flags().String("pretrained", envconfig.Pretrained(), "Directory holding the pretrained submodule defaults")
	cmd.Flags().IntP("length", "L", 16, "Frame count per sample")
	cmd.Flags().IntP("width", "W", 512, "Sample width in pixels")
	cmd.Flags().IntP("height", "H", 512, "Sample height in pixels")
	cmd.Flags().String("filename", "0000", "Tag used in per-job artifact names")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("prompts")

	return cmd
}

// generateHandler - Fuehrt den Batch-Lauf aus
func generateHandler(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return err
	}

	promptsPath, _ := cmd.Flags().GetString("prompts")
	prompts, err := config.ReadPrompts(promptsPath)
	if err != nil {
		return err
	}

	var inference *config.InferenceConfig
	if path, _ := cmd.Flags().GetString("inference-config"); path != "" {
		if inference, err = config.LoadInferenceConfig(path); err != nil {
			return err
		}
	}

	var kwargs map[string]any
	if inference != nil {
		kwargs = inference.UnetAdditionalKwargs
	}
	backend, err := engine.New(envconfig.Engine(), kwargs)
	if err != nil {
		return err
	}

	// Run-Verzeichnis: <output>/<config-stem>-<zeitstempel>
	stem := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	runDir := filepath.Join(envconfig.OutputDir(), fmt.Sprintf("%s-%s", stem, time.Now().Format("2006-01-02T15-04-05")))

	filename, _ := cmd.Flags().GetString("filename")
	materializer, err := output.New(runDir, filename, int(envconfig.GridRows()))
	if err != nil {
		return err
	}

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	// Spinner bis zum ersten abgeschlossenen Job (Komposition), danach Balken
	spinner := progress.NewSpinner("composing pipeline")
	p.Add("compose", spinner)

	var bar *progress.StepBar
	orch := &runner.Orchestrator{
		Engine:       backend,
		Materializer: materializer,
		Pretrained:   cmd.Flag("pretrained").Value.String(),
		Inference:    inference,
		Progress: func(done, total int) {
			if bar == nil {
				spinner.Stop()
				bar = progress.NewStepBar("generating", total)
				p.Add("generate", bar)
			}
			bar.Set(done)
		},
	}

	frameCount, _ := cmd.Flags().GetInt("length")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if err := orch.Run(cmd.Context(), cfg, prompts, runner.Options{
		Width:       width,
		Height:      height,
		FrameCount:  frameCount,
		FilenameTag: filename,
	}); err != nil {
		return err
	}

	p.Stop()
	fmt.Fprintf(os.Stderr, "samples saved to %s\n", materializer.Dir())
	return nil
}
