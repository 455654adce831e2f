// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/7wolken7/animforge/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "animforge",
		Short:         "Batch animation generator for motion-augmented diffusion checkpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	generateCmd := newGenerateCmd()
	inspectCmd := newInspectCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	appendEnvDocs(generateCmd, []envconfig.EnvVar{
		envVars["AF_DEBUG"],
		envVars["AF_PRETRAINED"],
		envVars["AF_OUTPUT"],
		envVars["AF_GRID_ROWS"],
		envVars["AF_ENGINE"],
	})
	appendEnvDocs(inspectCmd, []envconfig.EnvVar{envVars["AF_DEBUG"]})

	rootCmd.AddCommand(
		generateCmd,
		inspectCmd,
	)

	return rootCmd
}
