// Package taxonomy carries the defense market reference data: the three-tier
// market taxonomy, the region/country mapping, and the closed enumerations for
// operators, program types and domestic content. The data ships embedded so
// the binary needs no data files at runtime.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/taxonomy.yaml
var taxonomyYAML []byte

//go:embed data/geography.yaml
var geographyYAML []byte

// Specific is a leaf system type.
type Specific struct {
	Name       string `yaml:"name" json:"name"`
	Definition string `yaml:"definition" json:"definition"`
}

// General is a mid-tier system type owning its specific leaves.
type General struct {
	Name       string     `yaml:"name" json:"name"`
	Definition string     `yaml:"definition" json:"definition"`
	Specifics  []Specific `yaml:"specifics" json:"specifics"`
}

// Segment is a top-tier market segment.
type Segment struct {
	Name       string    `yaml:"name" json:"name"`
	Definition string    `yaml:"definition" json:"definition"`
	Generals   []General `yaml:"generals" json:"generals"`
}

// Tree is the full taxonomy.
type Tree struct {
	Segments []Segment `yaml:"segments" json:"segments"`
}

// Closed enumerations. Classification output outside these lists is repaired
// to a sentinel, never passed through.
var (
	ValidOperators = []string{
		"Army", "Navy", "Air Force", "Defense Wide",
		"Ukraine (Assistance)", "Foreign Assistance", "Other",
	}

	ProgramTypes = []string{
		"Training", "Procurement", "MRO/Support", "RDT&E",
		"Upgrade", "Other Service", "Unknown",
	}

	DomesticContentOptions = []string{
		"Indigenous", "Imported", "Local Assembly", "License Production",
	}

	PilotingOptions = []string{"Crewed", "Uncrewed", "Not Applicable"}
)

var (
	tree Tree

	// dependencies maps segment -> valid general types, derived from the tree.
	dependencies map[string][]string

	// specificsIndex maps segment|general -> valid specific leaves.
	specificsIndex map[string][]string

	// geography maps region -> countries; countryRegion is its inverse.
	geography     map[string][]string
	countryRegion map[string]string

	promptJSON    string
	geographyJSON string
)

func init() {
	if err := loadEmbedded(); err != nil {
		panic(fmt.Sprintf("taxonomy: corrupt embedded data: %v", err))
	}
}

func loadEmbedded() error {
	if err := yaml.Unmarshal(taxonomyYAML, &tree); err != nil {
		return fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(tree.Segments) == 0 {
		return fmt.Errorf("taxonomy has no segments")
	}

	dependencies = make(map[string][]string, len(tree.Segments))
	specificsIndex = make(map[string][]string)
	for _, seg := range tree.Segments {
		for _, gen := range seg.Generals {
			dependencies[seg.Name] = append(dependencies[seg.Name], gen.Name)
			key := seg.Name + "|" + gen.Name
			for _, sp := range gen.Specifics {
				specificsIndex[key] = append(specificsIndex[key], sp.Name)
			}
		}
	}

	if err := yaml.Unmarshal(geographyYAML, &geography); err != nil {
		return fmt.Errorf("parse geography: %w", err)
	}
	countryRegion = make(map[string]string)
	for region, countries := range geography {
		for _, c := range countries {
			countryRegion[c] = region
		}
	}

	treeJSON, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("render taxonomy prompt: %w", err)
	}
	promptJSON = string(treeJSON)

	geoJSON, err := json.Marshal(geography)
	if err != nil {
		return fmt.Errorf("render geography prompt: %w", err)
	}
	geographyJSON = string(geoJSON)

	return nil
}

// Segments returns the segment names in taxonomy order.
func Segments() []string {
	out := make([]string, 0, len(tree.Segments))
	for _, seg := range tree.Segments {
		out = append(out, seg.Name)
	}
	return out
}

// ValidSegment reports whether name is a known market segment.
func ValidSegment(name string) bool {
	_, ok := dependencies[name]
	return ok
}

// GeneralsFor returns the valid general types under a segment, nil when the
// segment is unknown.
func GeneralsFor(segment string) []string {
	return dependencies[segment]
}

// ValidGeneral reports whether general is valid under segment.
func ValidGeneral(segment, general string) bool {
	for _, g := range dependencies[segment] {
		if g == general {
			return true
		}
	}
	return false
}

// ValidSpecific reports whether specific is a leaf of segment/general.
func ValidSpecific(segment, general, specific string) bool {
	for _, s := range specificsIndex[segment+"|"+general] {
		if s == specific {
			return true
		}
	}
	return false
}

// RegionForCountry returns the market region a country belongs to, or
// "Unknown" when the country is not in the mapping.
func RegionForCountry(country string) string {
	if r, ok := countryRegion[country]; ok {
		return r
	}
	return "Unknown"
}

// KnownCountry reports whether the country appears anywhere in the mapping.
func KnownCountry(country string) bool {
	_, ok := countryRegion[country]
	return ok
}

// ValidOperator reports whether op is in the customer operator enumeration.
func ValidOperator(op string) bool {
	return contains(ValidOperators, op)
}

// ValidProgramType reports whether pt is a known program type.
func ValidProgramType(pt string) bool {
	return contains(ProgramTypes, pt)
}

// ValidDomesticContent reports whether dc is a known domestic content option.
func ValidDomesticContent(dc string) bool {
	return contains(DomesticContentOptions, dc)
}

// ValidPiloting reports whether p is a known piloting value.
func ValidPiloting(p string) bool {
	return contains(PilotingOptions, p)
}

// PromptText returns the full taxonomy rendered as indented JSON for
// injection into the classification prompt.
func PromptText() string {
	return promptJSON
}

// GeographyPromptText returns the region/country mapping as JSON for the
// geography prompt.
func GeographyPromptText() string {
	return geographyJSON
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
