// main.go - Einstiegspunkt fuer das animforge CLI
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/7wolken7/animforge/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
