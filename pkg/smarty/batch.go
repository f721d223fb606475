// pkg/smarty/batch.go
package smarty

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

const (
	// ActionFlagged means failures were flagged for the decision engine.
	ActionFlagged = "FLAG_FAILURES_FOR_REVIEW"
	// ActionSkipped means verification never ran because the file already
	// carries uncorrectable required-field errors outside the ZIP column.
	ActionSkipped = "SKIPPED_DUE_TO_CRITICAL_ERRORS"
)

// CorrectionRecord is the audit row for one verification attempt, success or
// failure. Exactly one is produced per candidate.
type CorrectionRecord struct {
	OrigRow          int
	OriginalAddress  string
	CorrectedAddress string
	OriginalCity     string
	CorrectedCity    string
	OriginalState    string
	CorrectedState   string
	OriginalZip      string
	CorrectedZip     string
	ReasonSent       string
	ErrorColumn      string
	Success          bool
	Err              string
	SmartyKey        string
	Timestamp        time.Time
}

// Stats summarizes one verification run.
type Stats struct {
	AddressesSent         int
	SuccessfulCorrections int
	FailedCorrections     int
	BatchesSent           int
	Action                string
	Corrections           []CorrectionRecord
	ProcessingTime        time.Duration
}

// candidate pairs the verification snapshot with the record it came from and
// the column that flagged it.
type candidate struct {
	model.VerificationCandidate
	Column string
	rec    *model.Record
}

// Processor collects eligible flagged cells, runs them through the client in
// bounded-concurrency batches, and applies the outcomes to the working set
// and ledger.
type Processor struct {
	client        *Client
	logger        *zap.Logger
	maxConcurrent int
}

// NewProcessor creates a processor. maxConcurrent bounds in-flight batches.
func NewProcessor(client *Client, maxConcurrent int, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Processor{client: client, logger: logger, maxConcurrent: maxConcurrent}
}

// collectCandidates snapshots every verification-eligible flagged cell. One
// candidate per row, Puerto Rico exempted, addresses reflecting any local
// correction already written back to the record.
func (p *Processor) collectCandidates(led *validate.Ledger, recs []*model.Record) []candidate {
	byRow := make(map[int]*model.Record, len(recs))
	for _, rec := range recs {
		byRow[rec.OrigRow] = rec
	}

	eligible := make(map[string]bool, len(validate.SmartyEligibleErrors))
	for _, m := range validate.SmartyEligibleErrors {
		eligible[m] = true
	}

	seen := make(map[int]bool)
	var candidates []candidate
	for key, flag := range led.Flags() {
		if !eligible[flag.Message] {
			continue
		}
		rec, ok := byRow[key.OrigRow]
		if !ok || seen[key.OrigRow] {
			continue
		}
		state := strings.ToUpper(strings.TrimSpace(rec.State))
		if state == "PR" {
			p.logger.Debug("skipping verification for PR address",
				zap.Int("orig_row", key.OrigRow))
			continue
		}
		seen[key.OrigRow] = true
		candidates = append(candidates, candidate{
			VerificationCandidate: model.VerificationCandidate{
				OrigRow: rec.OrigRow,
				Address: strings.TrimSpace(rec.Address),
				City:    strings.TrimSpace(rec.City),
				State:   state,
				Zip:     strings.TrimSpace(rec.Zip),
				Reason:  flag.Message,
			},
			Column: key.Column,
			rec:    rec,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].OrigRow < candidates[j].OrigRow
	})
	return candidates
}

// Process runs the verification stage. Failures never remove data, they are
// flagged for the file decision engine.
func (p *Processor) Process(ctx context.Context, led *validate.Ledger, recs []*model.Record) Stats {
	start := time.Now()
	stats := Stats{Action: ActionFlagged}

	if led.HasCriticalNonZip() {
		p.logger.Info("skipping external verification, file has critical non-zip errors")
		stats.Action = ActionSkipped
		stats.ProcessingTime = time.Since(start)
		return stats
	}

	candidates := p.collectCandidates(led, recs)
	stats.AddressesSent = len(candidates)
	if len(candidates) == 0 {
		p.logger.Debug("no addresses eligible for external verification")
		stats.ProcessingTime = time.Since(start)
		return stats
	}

	snapshots := make([]model.VerificationCandidate, len(candidates))
	for i, c := range candidates {
		snapshots[i] = c.VerificationCandidate
	}
	batches := p.client.ChunkBatches(snapshots)
	stats.BatchesSent = len(batches)

	// Batches run concurrently up to the cap; a candidate belongs to
	// exactly one batch so no row is written from two goroutines.
	results := make([][]Result, len(batches))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.maxConcurrent)
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []model.VerificationCandidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.client.ValidateBatch(ctx, batch)
		}(i, batch)
	}
	wg.Wait()

	// Apply outcomes serially, in candidate order.
	offset := 0
	for i, batch := range batches {
		batchResults := results[i]
		if len(batchResults) != len(batch) {
			p.logger.Error("batch result count mismatch",
				zap.Int("batch", i+1),
				zap.Int("want", len(batch)),
				zap.Int("got", len(batchResults)))
			for j := range batch {
				cand := candidates[offset+j]
				stats.FailedCorrections++
				stats.Corrections = append(stats.Corrections, failureRecord(cand, "Batch result mismatch"))
			}
			offset += len(batch)
			continue
		}
		for j, result := range batchResults {
			cand := candidates[offset+j]
			if result.Success {
				stats.SuccessfulCorrections++
				stats.Corrections = append(stats.Corrections, p.applySuccess(led, cand, result))
			} else {
				stats.FailedCorrections++
				p.applyFailure(led, cand)
				stats.Corrections = append(stats.Corrections, failureRecord(cand, result.Err))
			}
		}
		offset += len(batch)
	}

	stats.ProcessingTime = time.Since(start)
	p.logger.Info("external verification complete",
		zap.Int("addresses_sent", stats.AddressesSent),
		zap.Int("successes", stats.SuccessfulCorrections),
		zap.Int("failures", stats.FailedCorrections),
		zap.Int("batches", stats.BatchesSent),
		zap.Duration("elapsed", stats.ProcessingTime))
	return stats
}

func failureRecord(cand candidate, reason string) CorrectionRecord {
	return CorrectionRecord{
		OrigRow:         cand.OrigRow,
		OriginalAddress: cand.Address,
		OriginalCity:    cand.City,
		OriginalState:   cand.State,
		OriginalZip:     cand.Zip,
		ReasonSent:      cand.Reason,
		ErrorColumn:     cand.Column,
		Err:             reason,
		Timestamp:       time.Now(),
	}
}

// applySuccess writes the verified values back to the record, records the
// corrections, and clears the address-family errors the correction resolved.
func (p *Processor) applySuccess(led *validate.Ledger, cand candidate, result Result) CorrectionRecord {
	rec := cand.rec

	corrected, trimmed := validate.TrimNonStandardEnding(result.CorrectedAddress)
	correctionType := "Smarty Address Correction"
	if trimmed {
		correctionType = "Smarty Address Correction with Non-Standard Ending Removal"
		p.logger.Debug("removed non-standard ending from verified address",
			zap.Int("orig_row", cand.OrigRow),
			zap.String("address", corrected))
	}
	rec.Address = corrected

	record := func(column, original, value, typ string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   cand.OrigRow,
			Column:    column,
			Original:  original,
			Corrected: &value,
			Type:      typ,
			Status:    model.CorrectionValid,
		})
	}
	record(model.ColAddress, cand.Address, corrected, correctionType)
	led.ClearFlag(cand.OrigRow, model.ColAddress)

	out := CorrectionRecord{
		OrigRow:          cand.OrigRow,
		OriginalAddress:  cand.Address,
		CorrectedAddress: corrected,
		OriginalCity:     cand.City,
		OriginalState:    cand.State,
		OriginalZip:      cand.Zip,
		ReasonSent:       cand.Reason,
		ErrorColumn:      cand.Column,
		Success:          true,
		SmartyKey:        result.SmartyKey,
		Timestamp:        time.Now(),
	}

	if result.CorrectedZip != "" {
		record(model.ColZip, cand.Zip, result.CorrectedZip, "Smarty ZIP Code Correction")
		rec.Zip = result.CorrectedZip
		led.ClearFlag(cand.OrigRow, model.ColZip)
		out.CorrectedZip = result.CorrectedZip
	}
	if result.CorrectedCity != "" {
		city := strings.ToUpper(result.CorrectedCity)
		record(model.ColCity, cand.City, city, "Smarty City Correction")
		rec.City = city
		led.ClearFlag(cand.OrigRow, model.ColCity)
		out.CorrectedCity = city
	}
	if result.CorrectedState != "" {
		state := strings.ToUpper(result.CorrectedState)
		record(model.ColState, cand.State, state, "Smarty State Correction")
		rec.State = state
		led.ClearFlag(cand.OrigRow, model.ColState)
		out.CorrectedState = state
	}

	led.ClearRowFamilyErrors(cand.OrigRow)
	return out
}

// applyFailure flags the address cell for review. The row is retained, the
// file decision engine adjudicates it.
func (p *Processor) applyFailure(led *validate.Ledger, cand candidate) {
	const msg = "Smarty Validation Failed - Returned for Review"
	led.Flag(cand.OrigRow, model.ColAddress, msg)
	led.RecordError(cand.OrigRow, model.ColAddress, msg, cand.Address)
	p.logger.Debug("verification failed, flagged for review",
		zap.Int("orig_row", cand.OrigRow))
}
