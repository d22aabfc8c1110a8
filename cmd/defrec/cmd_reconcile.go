package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"defrec/internal/pipeline"
)

// reconcileCmd maps supplier names to their canonical form without running
// the full pipeline.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [name]...",
	Short: "Reconcile supplier names against the canonical registry",
	Long: `Runs the supplier matching ladder (exact, fuzzy, substring) on each
name and prints the canonical result. Useful for checking what the pipeline
would do with a messy extraction.

Example:
  defrec reconcile "Lockheed Martin Aeronautics Co." "The Boeing Company"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	reg, err := pipeline.NewRegistry(cfg)
	if err != nil {
		return err
	}
	for _, name := range args {
		fmt.Printf("%s -> %s\n", name, reg.Reconcile(name))
	}
	return nil
}
