// Package derive computes the deterministic output fields: signing dates,
// normalized monetary values, deal type, MRO duration and quantity gating.
// Everything here is pure arithmetic over the stage outputs; the only
// injected dependency is the clock, for date-parse fallbacks.
package derive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"defrec/internal/record"
)

var (
	monthsPattern = regexp.MustCompile(`(?i)(\d+)\s*months?`)
	yearsPattern  = regexp.MustCompile(`(?i)(\d+)\s*years?`)

	valueCleaner = strings.NewReplacer(",", "", "$", "", "M", "")
)

// Calculator derives output fields from the raw stage results.
type Calculator struct {
	domesticCountry string
	now             func() time.Time
}

// New creates a calculator. domesticCountry drives the B2G/G2G split; now
// may be nil for the wall clock.
func New(domesticCountry string, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{domesticCountry: domesticCountry, now: now}
}

// Compute returns the derived fields for one record. financial and
// geography are the corresponding stage outputs (possibly empty);
// contractDate is the raw input date string, parsed day-first.
func (c *Calculator) Compute(financial, geography map[string]string, contractDate string) map[string]string {
	start, err := dateparse.ParseAny(contractDate, dateparse.PreferMonthFirst(false))
	if err != nil {
		start = c.now()
	}

	value := normalizeValue(financial[record.FieldValueMillion])

	custCountry := fieldOr(geography, record.FieldCustomerCountry, record.Unknown)
	suppCountry := fieldOr(geography, record.FieldSupplierCountry, record.Unknown)
	dealType := "G2G"
	if custCountry == c.domesticCountry && suppCountry == c.domesticCountry {
		dealType = "B2G"
	}

	programType := fieldOr(financial, record.FieldProgramType, "Other Service")

	quantity := fieldOr(financial, record.FieldQuantity, record.NotApplicable)
	if programType != "Procurement" {
		quantity = record.NotApplicable
	}

	return map[string]string{
		record.FieldSupplierName:   fieldOr(financial, record.FieldSupplierName, record.Unknown),
		record.FieldProgramType:    programType,
		record.FieldMRODuration:    c.mroDuration(programType, financial[record.FieldDescDateFound], start),
		record.FieldQuantity:       quantity,
		record.FieldValueCertainty: fieldOr(financial, record.FieldValueCertainty, "Confirmed"),
		record.FieldValueMillion:   value,
		record.FieldCurrency:       "USD$",
		record.FieldValueUSDMillion: value,
		record.FieldDealType:       dealType,
		record.FieldSigningMonth:   start.Month().String(),
		record.FieldSigningYear:    strconv.Itoa(start.Year()),
	}
}

// mroDuration computes the expected contract duration in whole months. Only
// MRO/Support contracts carry a duration; the completion text is tried as an
// absolute date first, then as a "<N> months"/"<N> years" phrase.
func (c *Calculator) mroDuration(programType, completionText string, start time.Time) string {
	if programType != "MRO/Support" {
		return record.NotApplicable
	}
	completionText = strings.TrimSpace(completionText)
	if completionText == "" {
		return record.NotApplicable
	}

	if end, err := dateparse.ParseAny(completionText, dateparse.PreferMonthFirst(false)); err == nil {
		months := monthsBetween(start, end)
		if months < 0 {
			months = 0
		}
		return strconv.Itoa(months)
	}

	if m := monthsPattern.FindStringSubmatch(completionText); m != nil {
		return m[1]
	}
	if m := yearsPattern.FindStringSubmatch(completionText); m != nil {
		years, err := strconv.Atoi(m[1])
		if err == nil {
			return strconv.Itoa(years * 12)
		}
	}
	return record.Unknown
}

// monthsBetween returns the whole-month difference end-start, discounting a
// final partial month.
func monthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return months
}

// absoluteAmountFloor marks figures that can only be raw currency amounts
// rather than values already expressed in millions (a million-million-dollar
// contract does not exist).
const absoluteAmountFloor = 1_000_000

// normalizeValue turns monetary text into a fixed three-decimal string in
// millions. Unparsable or negative input degrades to "0.000"; absolute
// dollar amounts ("$2,493,000,000") are scaled down to millions.
func normalizeValue(raw string) string {
	clean := strings.TrimSpace(valueCleaner.Replace(raw))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v < 0 {
		return "0.000"
	}
	if v >= absoluteAmountFloor {
		v /= 1_000_000
	}
	return fmt.Sprintf("%.3f", v)
}

func fieldOr(fields map[string]string, key, fallback string) string {
	if v, ok := fields[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
