// cmd_inspect.go - Inspect Command: zeigt Metadaten eines Gewichte-Archivs
// Hauptfunktionen: newInspectCmd, inspectHandler
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/7wolken7/animforge/envconfig"
	"github.com/7wolken7/animforge/fs/weights"
	"github.com/7wolken7/animforge/logutil"
)

// newInspectCmd - Erstellt den Inspect Command
func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect ARCHIVE",
		Short: "Show kind, tensor count and keys of a weight archive",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}

	cmd.Flags().Bool("keys", false, "List every tensor key with its shape")

	return cmd
}

// inspectHandler - Oeffnet das Archiv und gibt die Metadaten aus
func inspectHandler(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	archive, err := weights.Open(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("  kind       %s\n", archive.Kind())
	fmt.Printf("  tensors    %d\n", archive.Len())
	if archive.GlobalStep > 0 {
		fmt.Printf("  step       %d\n", archive.GlobalStep)
	}

	if showKeys, _ := cmd.Flags().GetBool("keys"); showKeys {
		fmt.Println()
		for _, key := range archive.Keys() {
			t, _ := archive.Get(key)
			fmt.Printf("    %-72s %v\n", key, t.Shape)
		}
	}

	return nil
}
