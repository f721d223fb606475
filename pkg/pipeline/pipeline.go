// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/config"
	"github.com/openbdc/subval/pkg/ingest"
	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/report"
	"github.com/openbdc/subval/pkg/smarty"
	"github.com/openbdc/subval/pkg/validate"
)

// Options control a single run.
type Options struct {
	// SkipVerification disables the external verification stage even when
	// credentials are configured.
	SkipVerification bool
	// RemoveDuplicates switches the duplicate policy from renaming collided
	// customer IDs to keeping one best row per ID and removing the rest.
	RemoveDuplicates bool
	// Progress, when set, is called after each completed phase with rows
	// processed so far and the total row count.
	Progress func(done, total int)
}

// Result is everything a run produced.
type Result struct {
	RunID    string
	Records  []*model.Record
	Ledger   *validate.Ledger
	Decision report.Decision
	Smarty   *smarty.Stats
	Elapsed  time.Duration
}

// Pipeline wires the validators, external verification and the decision
// engine into the fixed phase order.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *Metrics
	reader     *ingest.Reader
	general    *validate.GeneralValidator
	coords     *validate.CoordinateValidator
	addresses  *validate.AddressEngine
	duplicates *validate.DuplicateResolver
	verifier   *smarty.Processor
	decider    *report.DecisionEngine
}

// New builds a pipeline from configuration. The verification stage is wired
// only when credentials are present. reg may be nil to skip metric
// registration.
func New(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		cfg:        cfg,
		logger:     logger,
		metrics:    NewMetrics(reg, logger),
		reader:     ingest.NewReader(logger),
		general:    validate.NewGeneralValidator(logger),
		coords:     validate.NewCoordinateValidator(logger),
		addresses:  validate.NewAddressEngine(logger),
		duplicates: validate.NewDuplicateResolver(logger),
		decider:    report.NewDecisionEngine(logger),
	}

	if cfg.Smarty != nil && cfg.Smarty.Enabled() {
		client := smarty.NewClient(cfg.Smarty, logger)
		p.verifier = smarty.NewProcessor(client, cfg.Smarty.MaxConcurrentBatches, logger)
	}
	return p
}

// Metrics exposes the run metrics tracker.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// workerCount resolves the configured pool size, defaulting to NumCPU.
func (p *Pipeline) workerCount() int {
	if p.cfg.WorkerPoolSize > 0 {
		return p.cfg.WorkerPoolSize
	}
	return runtime.NumCPU()
}

// Run executes the full validation pipeline against one input file.
func (p *Pipeline) Run(ctx context.Context, inputPath string, opts Options) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("runID", runID))
	start := time.Now()

	led := validate.NewLedger(logger)

	phase := p.metrics.StartPhase("ingest")
	recs, err := p.reader.Load(inputPath, led)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", inputPath, err)
	}
	p.metrics.EndPhase(phase, len(recs))
	p.metrics.RecordIngestion(len(recs))
	logger.Info("Input loaded",
		zap.String("file", inputPath),
		zap.Int("rows", len(recs)))

	progress := func(done int) {
		if opts.Progress != nil {
			opts.Progress(done, len(recs))
		}
	}

	// Phase 1: street-ending resolution and state inference. Both are
	// row-local but cheap, so they run inline.
	phase = p.metrics.StartPhase("phase1")
	for _, rec := range recs {
		if !rec.GPSOnly() {
			p.addresses.Validate(led, rec, validate.AddressOptions{NonStandardOnly: true})
		}
		p.general.ValidateState(led, rec)
	}
	p.metrics.EndPhase(phase, len(recs))
	progress(len(recs))

	// Phase 2: row-local validation fans out over the worker pool.
	phase = p.metrics.StartPhase("phase2")
	err = runRowPool(ctx, recs, p.cfg.ChunkSize, p.workerCount(), func(rec *model.Record) {
		if rec.Removed {
			return
		}
		p.general.Validate(led, rec)
		p.addresses.ValidateFinal(led, rec)
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("row validation: %w", err)
	}
	p.metrics.EndPhase(phase, len(recs))
	progress(len(recs))

	// Cross-row passes run single-threaded: coordinate repair reads
	// neighboring rows and the duplicate passes read the whole set.
	phase = p.metrics.StartPhase("coordinates")
	p.coords.Validate(led, recs)
	p.metrics.EndPhase(phase, len(recs))

	phase = p.metrics.StartPhase("duplicates")
	if opts.RemoveDuplicates {
		p.duplicates.Eliminate(led, recs)
	} else {
		p.duplicates.Resolve(led, recs)
	}
	p.metrics.EndPhase(phase, len(recs))

	phase = p.metrics.StartPhase("canonicalize")
	for _, rec := range recs {
		if !rec.Removed {
			validate.CanonicalizeRoadPatterns(led, rec)
		}
	}
	p.metrics.EndPhase(phase, len(recs))
	progress(len(recs))

	var stats *smarty.Stats
	if p.verifier != nil && !opts.SkipVerification {
		phase = p.metrics.StartPhase("verification")
		s := p.verifier.Process(ctx, led, recs)
		stats = &s
		p.metrics.EndPhase(phase, s.AddressesSent)
		p.metrics.RecordLookups(s.AddressesSent)

		// Externally corrected addresses go back through the structural
		// checks; a correction that still fails removes the row.
		for _, c := range s.Corrections {
			if !c.Success {
				continue
			}
			if rec := findRecord(recs, c.OrigRow); rec != nil && !rec.Removed {
				p.addresses.Validate(led, rec, validate.AddressOptions{IsCorrection: true})
			}
		}
	} else if opts.SkipVerification {
		logger.Info("External verification skipped by request")
	} else {
		logger.Info("External verification disabled: credentials not configured")
	}
	progress(len(recs))

	phase = p.metrics.StartPhase("decision")
	decision := p.decider.Assess(led, recs)
	p.metrics.EndPhase(phase, decision.TotalSubscribers)

	p.recordOutcome(led, recs)
	p.metrics.Complete()

	return &Result{
		RunID:    runID,
		Records:  recs,
		Ledger:   led,
		Decision: decision,
		Smarty:   stats,
		Elapsed:  time.Since(start),
	}, nil
}

func (p *Pipeline) recordOutcome(led *validate.Ledger, recs []*model.Record) {
	removed := 0
	for _, rec := range recs {
		if rec.Removed {
			removed++
		}
	}
	bySeverity := make(map[model.Severity]int)
	for _, e := range led.Errors() {
		bySeverity[validate.Classify(e.Message, e.Column)]++
	}
	p.metrics.RecordOutcome(len(led.Corrections()), bySeverity, removed)
}

func findRecord(recs []*model.Record, origRow int) *model.Record {
	for _, rec := range recs {
		if rec.OrigRow == origRow {
			return rec
		}
	}
	return nil
}
