// Package record defines the ContractRecord working entity and the target
// field vocabulary shared by the classification, derivation and validation
// stages. Field names match the analyst worksheet columns exactly so finished
// records can be exported without a mapping layer.
package record

import (
	"github.com/google/uuid"
)

// Sentinel values used across all fields.
const (
	Unknown       = "Unknown"
	NotApplicable = "Not Applicable"
	Multiple      = "Multiple"
)

// Target field names (worksheet column headers).
const (
	FieldMarketSegment      = "Market Segment"
	FieldSystemTypeGeneral  = "System Type (General)"
	FieldSystemTypeSpecific = "System Type (Specific)"
	FieldSystemNameGeneral  = "System Name (General)"
	FieldSystemNameSpecific = "System Name (Specific)"
	FieldSystemPiloting     = "System Piloting"
	FieldCustomerRegion     = "Customer Region"
	FieldCustomerCountry    = "Customer Country"
	FieldCustomerOperator   = "Customer Operator"
	FieldSupplierRegion     = "Supplier Region"
	FieldSupplierCountry    = "Supplier Country"
	FieldDomesticContent    = "Domestic Content"
	FieldSupplierName       = "Supplier Name"
	FieldProgramType        = "Program Type"
	FieldMRODuration        = "Expected MRO Contract Duration (Months)"
	FieldQuantity           = "Quantity"
	FieldValueCertainty     = "Value Certainty"
	FieldValueMillion       = "Value (Million)"
	FieldCurrency           = "Currency"
	FieldValueUSDMillion    = "Value (USD$ Million)"
	FieldDealType           = "G2G/B2G"
	FieldSigningMonth       = "Signing Month"
	FieldSigningYear        = "Signing Year"
	FieldDescription        = "Description of Contract"
	FieldContractDate       = "Contract Date"
	FieldDescDateFound      = "Description Date Found"
)

// TargetFields lists every output column a finished record must carry,
// in export order.
var TargetFields = []string{
	FieldCustomerRegion, FieldCustomerCountry, FieldCustomerOperator,
	FieldSupplierRegion, FieldSupplierCountry, FieldDomesticContent,
	FieldMarketSegment, FieldSystemTypeGeneral, FieldSystemTypeSpecific,
	FieldSystemNameGeneral, FieldSystemNameSpecific, FieldSystemPiloting,
	FieldSupplierName, FieldProgramType, FieldMRODuration,
	FieldQuantity, FieldValueCertainty, FieldValueMillion, FieldCurrency,
	FieldValueUSDMillion, FieldDealType, FieldSigningMonth, FieldSigningYear,
	FieldDescription, FieldContractDate,
}

// fieldDefaults maps each target field to the sentinel substituted when a
// stage fails or omits the key. Name/segment/geography fields fall back to
// "Unknown"; applicability-gated fields fall back to "Not Applicable".
var fieldDefaults = map[string]string{
	FieldCustomerRegion:     Unknown,
	FieldCustomerCountry:    Unknown,
	FieldCustomerOperator:   Unknown,
	FieldSupplierRegion:     Unknown,
	FieldSupplierCountry:    Unknown,
	FieldDomesticContent:    "Imported",
	FieldMarketSegment:      Unknown,
	FieldSystemTypeGeneral:  NotApplicable,
	FieldSystemTypeSpecific: NotApplicable,
	FieldSystemNameGeneral:  NotApplicable,
	FieldSystemNameSpecific: NotApplicable,
	FieldSystemPiloting:     NotApplicable,
	FieldSupplierName:       Unknown,
	FieldProgramType:        "Other Service",
	FieldMRODuration:        NotApplicable,
	FieldQuantity:           NotApplicable,
	FieldValueCertainty:     "Confirmed",
	FieldValueMillion:       "0.000",
	FieldCurrency:           "USD$",
	FieldValueUSDMillion:    "0.000",
	FieldDealType:           "G2G",
	FieldSigningMonth:       Unknown,
	FieldSigningYear:        Unknown,
}

// DefaultFor returns the sentinel default for a target field.
func DefaultFor(field string) string {
	if d, ok := fieldDefaults[field]; ok {
		return d
	}
	return Unknown
}

// Check is a single validation outcome for one field.
type Check struct {
	Field  string `json:"field"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// Report is the ordered per-field validation report.
type Report struct {
	Checks []Check `json:"checks"`
}

// Add appends a check result.
func (r *Report) Add(field string, passed bool, reason string) {
	r.Checks = append(r.Checks, Check{Field: field, Passed: passed, Reason: reason})
}

// Get returns the first check recorded for a field.
func (r *Report) Get(field string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Field == field {
			return c, true
		}
	}
	return Check{}, false
}

// PassedCount returns how many checks passed.
func (r *Report) PassedCount() int {
	n := 0
	for _, c := range r.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// Failures returns the failing checks.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Record is the working entity for one contract description. It is created
// per input row, populated stage by stage, and always reaches a terminal,
// fully-keyed state: stage failures substitute sentinel defaults instead of
// aborting.
type Record struct {
	ID           string
	Description  string
	ContractDate string

	// PreFlag is "Multiple" when the scraper grouped several contract IDs
	// into this row; it overrides the classified supplier name.
	PreFlag string

	Fields map[string]string

	Report Report
	Score  float64

	// Annotation carries a per-record error note for degrade paths that are
	// not visible in the validation report.
	Annotation string
}

// New creates a record for one input row.
func New(description, contractDate, preFlag string) *Record {
	return &Record{
		ID:           uuid.NewString(),
		Description:  description,
		ContractDate: contractDate,
		PreFlag:      preFlag,
		Fields:       make(map[string]string, len(TargetFields)),
	}
}

// Merge copies stage output into the record without overwriting keys set by
// earlier stages (stages have disjoint key sets by design; first writer wins).
func (r *Record) Merge(fields map[string]string) {
	for k, v := range fields {
		if _, exists := r.Fields[k]; !exists {
			r.Fields[k] = v
		}
	}
}

// Set overwrites a field unconditionally. Used by validation repairs and the
// pre-flag override, which are allowed to correct earlier stages.
func (r *Record) Set(field, value string) {
	r.Fields[field] = value
}

// Get returns a field value, or its default when absent or empty.
func (r *Record) Get(field string) string {
	if v, ok := r.Fields[field]; ok && v != "" {
		return v
	}
	return DefaultFor(field)
}

// Finalize guarantees every target field is present, substituting defaults
// for anything a failed stage left unset, and stamps the passthrough columns.
func (r *Record) Finalize() {
	r.Fields[FieldDescription] = r.Description
	r.Fields[FieldContractDate] = r.ContractDate
	for _, f := range TargetFields {
		if v, ok := r.Fields[f]; !ok || v == "" {
			r.Fields[f] = DefaultFor(f)
		}
	}
	// Mirror the normalized value into the USD column; the source reports in
	// US dollars so no conversion is applied.
	r.Fields[FieldValueUSDMillion] = r.Fields[FieldValueMillion]
}
