// Package validate enforces the structural invariants on a classified
// record: the (segment, general) pair must exist in the taxonomy dependency
// table, names must not be simultaneously empty, applicability-gated fields
// must match the program type, and piloting must follow the analyst rules.
// Violations are repaired in place, never raised; every check lands in the
// record's validation report with a reason, and the aggregate score is
// recomputed at the end.
package validate

import (
	"math"
	"strings"

	"defrec/internal/logging"
	"defrec/internal/record"
	"defrec/internal/taxonomy"
)

// Keyword rules for the piloting normalization.
var (
	uncrewedKeywords = []string{"uav", "unmanned", "drone", "satellite"}
	serviceKeywords  = []string{"support", "engineering", "maintenance", "services", "consultation", "training"}
)

// pilotingExemptSegments never describe a pilotable platform.
var pilotingExemptSegments = map[string]bool{
	"C4ISR Systems": true,
	record.Unknown:  true,
}

// rule is one named check-and-repair step. Steps may veto later steps (the
// segment rule subsumes the general/specific checks when it fails).
type rule struct {
	name string
	run  func(v *Validator, rec *record.Record) (skip []string)
}

// Validator evaluates the rule table in order.
type Validator struct {
	rules []rule
}

// New returns a validator with the standard rule table.
func New() *Validator {
	return &Validator{rules: []rule{
		{name: "market segment", run: (*Validator).checkSegment},
		{name: "system type general", run: (*Validator).checkGeneral},
		{name: "system type specific", run: (*Validator).checkSpecific},
		{name: "system names", run: (*Validator).checkNames},
		{name: "piloting", run: (*Validator).checkPiloting},
		{name: "quantity", run: (*Validator).checkQuantity},
		{name: "mro duration", run: (*Validator).checkMRO},
	}}
}

// Run repairs the record, fills its validation report and recomputes the
// score. Safe to call repeatedly; the report is rebuilt each time.
func (v *Validator) Run(rec *record.Record) {
	rec.Report = record.Report{}

	skipped := map[string]bool{}
	for _, r := range v.rules {
		if skipped[r.name] {
			continue
		}
		for _, s := range r.run(v, rec) {
			skipped[s] = true
		}
	}
	rec.Score = Score(rec.Report)

	if failures := rec.Report.Failures(); len(failures) > 0 {
		logging.Get(logging.CategoryValidate).Sugar().Debugw("record repaired",
			"id", rec.ID, "failures", len(failures), "score", rec.Score)
	}
}

// Score aggregates a report into a 0-100 percentage, rounded to two
// decimals. An empty report scores 0.
func Score(rep record.Report) float64 {
	total := len(rep.Checks)
	if total == 0 {
		return 0.0
	}
	return math.Round(100*float64(rep.PassedCount())/float64(total)*100) / 100
}

func (v *Validator) checkSegment(rec *record.Record) []string {
	segment := rec.Get(record.FieldMarketSegment)
	if taxonomy.ValidSegment(segment) {
		rec.Report.Add(record.FieldMarketSegment, true, "segment recognized")
		return nil
	}

	rec.Set(record.FieldMarketSegment, record.Unknown)
	rec.Set(record.FieldSystemTypeGeneral, record.NotApplicable)
	rec.Set(record.FieldSystemTypeSpecific, record.NotApplicable)
	rec.Report.Add(record.FieldMarketSegment, false, "segment \""+segment+"\" not in taxonomy; reset to Unknown")
	rec.Report.Add(record.FieldSystemTypeGeneral, false, "forced Not Applicable after segment reset")
	rec.Report.Add(record.FieldSystemTypeSpecific, false, "forced Not Applicable after segment reset")
	return []string{"system type general", "system type specific"}
}

func (v *Validator) checkGeneral(rec *record.Record) []string {
	segment := rec.Get(record.FieldMarketSegment)
	general := rec.Get(record.FieldSystemTypeGeneral)
	if taxonomy.ValidGeneral(segment, general) {
		rec.Report.Add(record.FieldSystemTypeGeneral, true, "valid under segment")
		return nil
	}

	rec.Set(record.FieldSystemTypeGeneral, record.NotApplicable)
	rec.Set(record.FieldSystemTypeSpecific, record.NotApplicable)
	rec.Report.Add(record.FieldSystemTypeGeneral, false, "\""+general+"\" not valid under \""+segment+"\"; forced Not Applicable")
	rec.Report.Add(record.FieldSystemTypeSpecific, false, "forced Not Applicable after general reset")
	return []string{"system type specific"}
}

func (v *Validator) checkSpecific(rec *record.Record) []string {
	specific := rec.Fields[record.FieldSystemTypeSpecific]
	if specific == "" || specific == record.Unknown {
		rec.Set(record.FieldSystemTypeSpecific, record.NotApplicable)
		rec.Report.Add(record.FieldSystemTypeSpecific, false, "missing specific type; forced Not Applicable")
		return nil
	}
	rec.Report.Add(record.FieldSystemTypeSpecific, true, "specific type present")
	return nil
}

// checkNames keeps the two system names from being simultaneously empty:
// a sentinel on one side is backfilled from the other.
func (v *Validator) checkNames(rec *record.Record) []string {
	general := rec.Fields[record.FieldSystemNameGeneral]
	specific := rec.Fields[record.FieldSystemNameSpecific]
	genEmpty := isSentinelName(general)
	specEmpty := isSentinelName(specific)

	switch {
	case genEmpty && specEmpty:
		rec.Set(record.FieldSystemNameGeneral, record.NotApplicable)
		rec.Set(record.FieldSystemNameSpecific, record.NotApplicable)
		rec.Report.Add(record.FieldSystemNameGeneral, false, "no system name extracted")
		rec.Report.Add(record.FieldSystemNameSpecific, false, "no system name extracted")
	case genEmpty:
		rec.Set(record.FieldSystemNameGeneral, specific)
		rec.Report.Add(record.FieldSystemNameGeneral, true, "backfilled from specific name")
		rec.Report.Add(record.FieldSystemNameSpecific, true, "name present")
	case specEmpty:
		rec.Set(record.FieldSystemNameSpecific, general)
		rec.Report.Add(record.FieldSystemNameGeneral, true, "name present")
		rec.Report.Add(record.FieldSystemNameSpecific, true, "backfilled from general name")
	default:
		rec.Report.Add(record.FieldSystemNameGeneral, true, "name present")
		rec.Report.Add(record.FieldSystemNameSpecific, true, "name present")
	}
	return nil
}

// checkPiloting applies the analyst piloting rules: uncrewed keywords win,
// then service keywords, then non-platform segments; otherwise the
// classified answer stands when it is a known value, defaulting to Crewed.
func (v *Validator) checkPiloting(rec *record.Record) []string {
	current := rec.Get(record.FieldSystemPiloting)
	desc := strings.ToLower(rec.Description)

	expected := ""
	reason := ""
	switch {
	case containsAny(desc, uncrewedKeywords):
		expected, reason = "Uncrewed", "uncrewed keyword in description"
	case containsAny(desc, serviceKeywords):
		expected, reason = record.NotApplicable, "service keyword in description"
	case pilotingExemptSegments[rec.Get(record.FieldMarketSegment)]:
		expected, reason = record.NotApplicable, "segment has no piloting mode"
	case taxonomy.ValidPiloting(current):
		rec.Report.Add(record.FieldSystemPiloting, true, "piloting mode accepted")
		return nil
	default:
		expected, reason = "Crewed", "unrecognized piloting value \""+current+"\""
	}

	if current == expected {
		rec.Report.Add(record.FieldSystemPiloting, true, reason)
		return nil
	}
	rec.Set(record.FieldSystemPiloting, expected)
	rec.Report.Add(record.FieldSystemPiloting, false, reason+"; normalized to "+expected)
	return nil
}

func (v *Validator) checkQuantity(rec *record.Record) []string {
	programType := rec.Get(record.FieldProgramType)
	quantity := rec.Get(record.FieldQuantity)

	if programType != "Procurement" {
		rec.Set(record.FieldQuantity, record.NotApplicable)
		rec.Report.Add(record.FieldQuantity, true, "not a procurement; quantity Not Applicable")
		return nil
	}
	if isSentinelName(quantity) {
		// Visibility, not correction: the analyst decides what the count is.
		rec.Report.Add(record.FieldQuantity, false, "procurement without a quantity")
		return nil
	}
	rec.Report.Add(record.FieldQuantity, true, "quantity present")
	return nil
}

func (v *Validator) checkMRO(rec *record.Record) []string {
	programType := rec.Get(record.FieldProgramType)
	duration := rec.Get(record.FieldMRODuration)

	if programType != "MRO/Support" {
		rec.Set(record.FieldMRODuration, record.NotApplicable)
		rec.Report.Add(record.FieldMRODuration, true, "not an MRO contract; duration Not Applicable")
		return nil
	}
	if isSentinelName(duration) {
		rec.Report.Add(record.FieldMRODuration, false, "MRO contract without a duration")
		return nil
	}
	rec.Report.Add(record.FieldMRODuration, true, "duration present")
	return nil
}

func isSentinelName(v string) bool {
	switch strings.TrimSpace(v) {
	case "", record.Unknown, record.NotApplicable, "None":
		return true
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
