// Package classify orchestrates the staged classification of one contract
// description. Four stages run against the external service, each with its
// own prompt and key set; stage failures degrade to empty results so a bad
// call never aborts the record. Stage key sets are disjoint, so the merged
// union is unambiguous.
package classify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"defrec/internal/logging"
	"defrec/internal/memory"
	"defrec/internal/record"
	"defrec/internal/service"
	"defrec/internal/taxonomy"
)

// StageResult is the explicit outcome of one classification stage: either a
// set of extracted fields, or an error with whatever fields survived.
type StageResult struct {
	Fields map[string]string
	Err    error
}

// Failed reports whether the stage degraded.
func (r StageResult) Failed() bool { return r.Err != nil }

// Output bundles the four stage results for one description.
type Output struct {
	Taxonomy  StageResult // segment, system types, system names, piloting
	Geography StageResult // regions, countries, operator
	Domestic  StageResult // domestic content
	Financial StageResult // supplier, program type, quantity, value fields
}

// MergeInto copies all stage fields into the record, taxonomy stage first.
// record.Merge is first-writer-wins, matching the stages' disjoint key sets.
func (o Output) MergeInto(rec *record.Record) {
	rec.Merge(o.Taxonomy.Fields)
	rec.Merge(o.Geography.Fields)
	rec.Merge(o.Domestic.Fields)
	rec.Merge(o.Financial.Fields)
}

// Errs returns the stage errors that occurred, for record annotation.
func (o Output) Errs() []error {
	var errs []error
	for _, r := range []StageResult{o.Taxonomy, o.Geography, o.Domestic, o.Financial} {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

var (
	taxonomyKeys = groundedFields

	geographyKeys = []string{
		record.FieldCustomerRegion,
		record.FieldCustomerCountry,
		record.FieldCustomerOperator,
		record.FieldSupplierRegion,
		record.FieldSupplierCountry,
	}

	financialKeys = []string{
		record.FieldSupplierName,
		record.FieldProgramType,
		record.FieldQuantity,
		record.FieldValueCertainty,
		record.FieldValueMillion,
		record.FieldCurrency,
		record.FieldDescDateFound,
	}
)

// Orchestrator issues the staged classification calls.
type Orchestrator struct {
	client service.Client
	gold   []GoldExample
}

// New creates an orchestrator. gold may be nil to use the embedded
// reference set.
func New(client service.Client, gold []GoldExample) (*Orchestrator, error) {
	if gold == nil {
		var err error
		gold, err = DefaultGoldExamples()
		if err != nil {
			return nil, err
		}
	}
	return &Orchestrator{client: client, gold: gold}, nil
}

// Classify runs all four stages for one description. Stages 1, 2 and 4 are
// independent and fan out; stage 3 needs stage 2's countries and runs after
// it. Errors are captured per stage, never returned.
func (o *Orchestrator) Classify(ctx context.Context, description string, grounding *memory.Example) Output {
	var out Output
	var g errgroup.Group

	g.Go(func() error {
		system, user := buildTaxonomyPrompt(description, grounding)
		out.Taxonomy = o.callStage(ctx, "taxonomy", system, user, taxonomyKeys)
		return nil
	})

	g.Go(func() error {
		out.Geography = o.callStage(ctx, "geography", "", buildGeographyPrompt(description), geographyKeys)
		out.Domestic = o.domesticStage(ctx, description, out.Geography)
		return nil
	})

	g.Go(func() error {
		out.Financial = o.callStage(ctx, "financial", "", buildFinancialPrompt(description, o.gold), financialKeys)
		return nil
	})

	_ = g.Wait()
	return out
}

// domesticStage runs stage 3 and applies the deterministic overrides: equal
// non-Unknown countries force Indigenous, and out-of-enum answers fall back
// to Imported.
func (o *Orchestrator) domesticStage(ctx context.Context, description string, geo StageResult) StageResult {
	custCountry := fieldOr(geo.Fields, record.FieldCustomerCountry, record.Unknown)
	suppCountry := fieldOr(geo.Fields, record.FieldSupplierCountry, record.Unknown)

	res := o.callStage(ctx, "domestic", "",
		buildDomesticPrompt(description, suppCountry, custCountry),
		[]string{record.FieldDomesticContent})

	value := fieldOr(res.Fields, record.FieldDomesticContent, "Imported")
	if strings.EqualFold(custCountry, suppCountry) && custCountry != record.Unknown {
		value = "Indigenous"
	}
	if !taxonomy.ValidDomesticContent(value) {
		value = "Imported"
	}
	res.Fields = map[string]string{record.FieldDomesticContent: value}
	return res
}

// callStage performs one service call and plucks the stage's keys. A failed
// call yields an empty field set plus the error.
func (o *Orchestrator) callStage(ctx context.Context, name, system, user string, keys []string) StageResult {
	log := logging.Get(logging.CategoryClassify).Sugar()

	obj, err := o.client.CompleteJSON(ctx, system, user)
	if err != nil {
		log.Warnw("stage degraded to defaults", "stage", name, "error", err)
		return StageResult{Fields: map[string]string{}, Err: fmt.Errorf("%s stage: %w", name, err)}
	}

	fields := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := stringify(v); s != "" {
				fields[k] = s
			}
		}
	}
	log.Debugw("stage complete", "stage", name, "fields", len(fields))
	return StageResult{Fields: fields}
}

func fieldOr(fields map[string]string, key, fallback string) string {
	if v, ok := fields[key]; ok && v != "" {
		return v
	}
	return fallback
}

// stringify flattens a decoded JSON value to the string form the record
// model uses. Whole numbers drop the decimal point.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
