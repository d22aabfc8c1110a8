package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"defrec/internal/memory"
	"defrec/internal/pipeline"
)

var (
	importFile string
	searchTop  int
)

// memoryCmd groups the similarity memory subcommands.
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and seed the similarity memory",
}

// memoryImportCmd seeds the memory from a reference worksheet.
var memoryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import previously classified records from a reference CSV",
	Long: `Loads a worksheet export into the memory database so future runs can
ground on it. The file must carry a "Description of Contract" column; every
other column is kept as a classification field.

Example:
  defrec memory import --file worksheet_2024.csv`,
	RunE: runMemoryImport,
}

// memorySearchCmd queries the memory.
var memorySearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Find remembered contracts similar to a description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

func init() {
	memoryImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "Reference CSV to import (required)")
	_ = memoryImportCmd.MarkFlagRequired("file")
	memorySearchCmd.Flags().IntVar(&searchTop, "top", 5, "Maximum number of matches to print")

	memoryCmd.AddCommand(memoryImportCmd)
	memoryCmd.AddCommand(memorySearchCmd)
}

func runMemoryImport(cmd *cobra.Command, args []string) error {
	examples, err := memory.ReadCSV(importFile)
	if err != nil {
		return err
	}
	if len(examples) == 0 {
		return fmt.Errorf("no importable rows in %s", importFile)
	}

	mem, closeStore, err := pipeline.OpenMemory(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	mem.Import(cmd.Context(), examples)
	fmt.Printf("Imported %d examples (memory now holds %d)\n", len(examples), mem.Len())
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	mem, closeStore, err := pipeline.OpenMemory(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	matches := mem.Search(strings.Join(args, " "), searchTop)
	if len(matches) == 0 {
		fmt.Println("No similar contracts remembered.")
		return nil
	}
	for i, m := range matches {
		fmt.Printf("%d. [%.3f] %s\n", i+1, m.Score, m.Example.Description)
	}
	return nil
}
