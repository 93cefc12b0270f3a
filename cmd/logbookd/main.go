package main

import (
	"fmt"
	"os"

	"github.com/quorumworks/logbook/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "logbookd",
		Short: "Logbook daemon and CLI",
		Long:  "Logbook daemon for running the document archive API server and managing documents",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.DocumentCmd())
	rootCmd.AddCommand(admin.CategoryCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
