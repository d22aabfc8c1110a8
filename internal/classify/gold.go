package classify

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/gold_examples.yaml
var goldExamplesYAML []byte

// GoldExample is one reference extraction shown to the service in the
// financial stage prompt.
type GoldExample struct {
	Label  string            `yaml:"label"`
	Input  string            `yaml:"input"`
	Output map[string]string `yaml:"output"`
}

type goldFile struct {
	Examples []GoldExample `yaml:"examples"`
}

// DefaultGoldExamples returns the embedded reference set.
func DefaultGoldExamples() ([]GoldExample, error) {
	return parseGold(goldExamplesYAML)
}

// GoldExamplesFromFile loads a replacement reference set, so analysts can
// tune the extraction conventions without a rebuild.
func GoldExamplesFromFile(path string) ([]GoldExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold examples: %w", err)
	}
	examples, err := parseGold(data)
	if err != nil {
		return nil, fmt.Errorf("gold examples %s: %w", path, err)
	}
	return examples, nil
}

func parseGold(data []byte) ([]GoldExample, error) {
	var f goldFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse gold examples: %w", err)
	}
	if len(f.Examples) == 0 {
		return nil, fmt.Errorf("gold example set is empty")
	}
	return f.Examples, nil
}

// renderGold formats the reference set for prompt injection.
func renderGold(examples []GoldExample) string {
	var b strings.Builder
	b.WriteString("### EXAMPLES OF PERFECT EXTRACTION (DO NOT DEVIATE):\n")
	for i, ex := range examples {
		fmt.Fprintf(&b, "\n--- EXAMPLE %d: %s ---\nInput Text:\n%q\nCorrect Output:\n{\n", i+1, strings.ToUpper(ex.Label), ex.Input)
		keys := make([]string, 0, len(ex.Output))
		for k := range ex.Output {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for j, k := range keys {
			sep := ","
			if j == len(keys)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "  %q: %q%s\n", k, ex.Output[k], sep)
		}
		b.WriteString("}\n")
	}
	return b.String()
}
