// Package pipeline runs the end-to-end batch flow: for each input row it
// searches the memory for a grounding example, classifies the description,
// reconciles the supplier name, derives the deterministic fields, validates
// and scores the result, and appends the finished record back into the
// memory. Rows are processed sequentially so later rows can ground on
// earlier ones.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"defrec/internal/classify"
	"defrec/internal/config"
	"defrec/internal/derive"
	"defrec/internal/logging"
	"defrec/internal/memory"
	"defrec/internal/record"
	"defrec/internal/registry"
	"defrec/internal/service"
	"defrec/internal/store"
	"defrec/internal/validate"
)

// Row is one raw input row from the scraper export.
type Row struct {
	Description  string
	ContractDate string

	// PreFlag carries the scraper's "Multiple" marker for rows that bundle
	// several contracts; it overrides the classified supplier name.
	PreFlag string
}

// Pipeline wires the processing stages together for one batch run.
type Pipeline struct {
	cfg  *config.Config
	mem  *memory.Memory
	reg  *registry.Registry
	orch *classify.Orchestrator
	calc *derive.Calculator
	val  *validate.Validator

	closeStore func()
}

// OpenMemory builds the similarity memory per the configuration. A database
// that cannot be opened or loaded degrades to a RAM-only memory rather than
// failing the run. The returned closer releases the journal; it is non-nil
// even when persistence degraded.
func OpenMemory(ctx context.Context, cfg *config.Config) (*memory.Memory, func(), error) {
	log := logging.Get(logging.CategoryPipeline).Sugar()

	if cfg.Memory.DatabasePath == "" {
		return memory.New(cfg.Memory.MinSimilarity, nil), func() {}, nil
	}

	st, err := store.Open(cfg.Memory.DatabasePath)
	if err != nil {
		log.Warnw("example store unavailable, memory is RAM-only",
			"path", cfg.Memory.DatabasePath, "error", err)
		return memory.New(cfg.Memory.MinSimilarity, nil), func() {}, nil
	}

	mem := memory.New(cfg.Memory.MinSimilarity, st)
	if err := mem.Load(ctx); err != nil {
		log.Warnw("example store unreadable, memory is RAM-only",
			"path", cfg.Memory.DatabasePath, "error", err)
		st.Close()
		return memory.New(cfg.Memory.MinSimilarity, nil), func() {}, nil
	}
	return mem, func() { st.Close() }, nil
}

// NewRegistry builds the supplier registry per the configuration.
func NewRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Registry.SupplierFile != "" {
		return registry.NewFromFile(cfg.Registry.SupplierFile)
	}
	return registry.New()
}

// New assembles a pipeline. client performs the classification calls; pass a
// fake in tests.
func New(ctx context.Context, cfg *config.Config, client service.Client) (*Pipeline, error) {
	mem, closeStore, err := OpenMemory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	var gold []classify.GoldExample
	if cfg.Classify.GoldExamplesFile != "" {
		gold, err = classify.GoldExamplesFromFile(cfg.Classify.GoldExamplesFile)
		if err != nil {
			closeStore()
			return nil, err
		}
	}
	orch, err := classify.New(client, gold)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		mem:        mem,
		reg:        reg,
		orch:       orch,
		calc:       derive.New(cfg.Pipeline.DomesticCountry, nil),
		val:        validate.New(),
		closeStore: closeStore,
	}, nil
}

// Close releases the memory journal.
func (p *Pipeline) Close() {
	p.closeStore()
}

// Memory exposes the similarity memory, for seeding and inspection.
func (p *Pipeline) Memory() *memory.Memory { return p.mem }

// Registry exposes the supplier registry.
func (p *Pipeline) Registry() *registry.Registry { return p.reg }

// Process runs the full flow for one row and always returns a finished,
// fully-keyed record. Stage failures are recorded in the annotation, never
// returned.
func (p *Pipeline) Process(ctx context.Context, row Row) *record.Record {
	rec := record.New(strings.TrimSpace(row.Description), strings.TrimSpace(row.ContractDate), strings.TrimSpace(row.PreFlag))

	var grounding *memory.Example
	if matches := p.mem.Search(rec.Description, 1); len(matches) > 0 {
		grounding = &matches[0].Example
	}

	out := p.orch.Classify(ctx, rec.Description, grounding)
	out.MergeInto(rec)

	// Reconcile before derivation so the canonical name flows through.
	out.Financial.Fields[record.FieldSupplierName] =
		p.reg.Reconcile(out.Financial.Fields[record.FieldSupplierName])

	for k, v := range p.calc.Compute(out.Financial.Fields, out.Geography.Fields, rec.ContractDate) {
		rec.Set(k, v)
	}

	// The scraper flag is authoritative over anything the service extracted.
	if strings.EqualFold(rec.PreFlag, record.Multiple) {
		rec.Set(record.FieldSupplierName, record.Multiple)
	}

	p.val.Run(rec)
	rec.Finalize()

	if errs := out.Errs(); len(errs) > 0 {
		rec.Annotation = errors.Join(errs...).Error()
	}

	p.remember(ctx, rec)
	return rec
}

// ProcessBatch runs rows sequentially, stopping only on context cancellation.
func (p *Pipeline) ProcessBatch(ctx context.Context, rows []Row) ([]*record.Record, error) {
	log := logging.Get(logging.CategoryPipeline).Sugar()
	log.Infow("batch start", "rows", len(rows), "memory", p.mem.Len())

	var bar *pb.ProgressBar
	if p.cfg.Pipeline.Progress {
		bar = pb.StartNew(len(rows))
		defer bar.Finish()
	}

	records := make([]*record.Record, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			log.Warnw("batch cancelled", "processed", i, "total", len(rows))
			return records, err
		}
		records = append(records, p.Process(ctx, row))
		if bar != nil {
			bar.Increment()
		}
	}

	log.Infow("batch complete", "rows", len(records), "memory", p.mem.Len())
	return records, nil
}

// remember appends the finished record to the memory so later rows can
// ground on it. Records with nothing classified are not worth remembering.
func (p *Pipeline) remember(ctx context.Context, rec *record.Record) {
	if rec.Description == "" {
		return
	}
	fields := make(map[string]string, len(record.TargetFields))
	for _, f := range record.TargetFields {
		fields[f] = rec.Fields[f]
	}
	p.mem.Append(ctx, memory.Example{Description: rec.Description, Fields: fields})
}
