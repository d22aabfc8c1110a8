package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"defrec/internal/pipeline"
	"defrec/internal/service"
)

var (
	inputPath  string
	outputPath string
)

// processCmd runs the batch pipeline over a scraper export.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Classify a CSV of contract descriptions into worksheet rows",
	Long: `Reads a scraper export, classifies every row and writes the finished
worksheet CSV. Rows are processed in order so each classified record can
ground the ones after it.

Example:
  defrec process --input notices.csv --output worksheet.csv`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input CSV of contract descriptions (required)")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output CSV of classified records (required)")
	_ = processCmd.MarkFlagRequired("input")
	_ = processCmd.MarkFlagRequired("output")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if cfg.Service.APIKey == "" {
		return fmt.Errorf("no API key: set --api-key, DEFREC_API_KEY or service.api_key")
	}

	rows, err := pipeline.ReadRows(inputPath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no processable rows in %s", inputPath)
	}

	client, err := service.NewOpenAIClient(cfg.Service)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cmd.Context(), cfg, client)
	if err != nil {
		return err
	}
	defer p.Close()

	records, err := p.ProcessBatch(cmd.Context(), rows)
	if len(records) > 0 {
		if werr := pipeline.WriteRecords(outputPath, records); werr != nil {
			return werr
		}
	}
	if err != nil {
		return fmt.Errorf("batch interrupted after %d of %d rows: %w", len(records), len(rows), err)
	}

	degraded := 0
	for _, rec := range records {
		if rec.Annotation != "" {
			degraded++
		}
	}
	fmt.Printf("Processed %d records -> %s", len(records), outputPath)
	if degraded > 0 {
		fmt.Printf(" (%d with degraded stages, see Notes column)", degraded)
	}
	fmt.Println()
	return nil
}
