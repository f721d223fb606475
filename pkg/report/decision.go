// pkg/report/decision.go
package report

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

// FileStatus is the file-level verdict.
type FileStatus string

const (
	// StatusValid means the file is ready for submission, with any
	// threshold-tolerated bad-address rows dropped from output.
	StatusValid FileStatus = "Valid"
	// StatusInvalid means the file needs manual review before submission.
	StatusInvalid FileStatus = "Invalid"
)

// Decision is the outcome of the file-level assessment.
type Decision struct {
	Status               FileStatus           `json:"file_status"`
	Reason               string               `json:"validation_reason"`
	TotalSubscribers     int                  `json:"total_subscribers"`
	AddressErrorCount    int                  `json:"address_error_count"`
	NonAddressErrorCount int                  `json:"non_address_error_count"`
	AddressErrorPct      float64              `json:"address_error_percentage"`
	Band                 model.ThresholdBand  `json:"threshold_used"`
	ProblematicRows      []int                `json:"problematic_address_rows"`
	RequiresManualReview bool                 `json:"requires_manual_review"`
}

// DecisionEngine aggregates per-cell severities into the file verdict.
type DecisionEngine struct {
	bands  []model.ThresholdBand
	logger *zap.Logger
}

// NewDecisionEngine creates a decision engine over the default band table.
func NewDecisionEngine(logger *zap.Logger) *DecisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionEngine{bands: model.DefaultBands, logger: logger}
}

// Assess computes the file verdict. Critical or review-level cells outside
// the address family reject the file outright, no matter which rows they sit
// on: a single such cell can mean column misalignment. Address-family cells
// on rows already excluded upstream do not count against the threshold.
// When the verdict is Valid, the offending address rows are marked removed.
func (e *DecisionEngine) Assess(led *validate.Ledger, recs []*model.Record) Decision {
	excluded := make(map[int]bool)
	total := 0
	byRow := make(map[int]*model.Record, len(recs))
	for _, rec := range recs {
		byRow[rec.OrigRow] = rec
		if rec.Removed {
			excluded[rec.OrigRow] = true
			continue
		}
		total++
	}

	addressRows := make(map[int]bool)
	nonAddressRows := make(map[int]bool)
	for key, flag := range led.Flags() {
		sev := validate.Classify(flag.Message, key.Column)
		if sev < model.SeverityReview {
			continue
		}
		if model.IsAddressFamilyColumn(key.Column) {
			if !excluded[key.OrigRow] {
				addressRows[key.OrigRow] = true
			}
		} else {
			nonAddressRows[key.OrigRow] = true
		}
	}

	band := model.BandFor(total)
	decision := Decision{
		TotalSubscribers:     total,
		AddressErrorCount:    len(addressRows),
		NonAddressErrorCount: len(nonAddressRows),
		Band:                 band,
		ProblematicRows:      sortedKeys(addressRows),
	}
	if total > 0 {
		decision.AddressErrorPct = round2(float64(len(addressRows)) / float64(total) * 100)
	}

	switch {
	case len(nonAddressRows) > 0:
		decision.Status = StatusInvalid
		decision.RequiresManualReview = true
		decision.Reason = fmt.Sprintf(
			"File contains %d rows with critical errors in required fields (customer, state, speeds, technology, etc.) that must be manually corrected. This includes column misalignment and invalid data.",
			len(nonAddressRows))

	case decision.AddressErrorPct <= band.MaxErrorPct:
		decision.Status = StatusValid
		if len(addressRows) == 0 {
			decision.Reason = "File passed all validations and is ready for FCC BDC submission."
		} else {
			decision.Reason = fmt.Sprintf(
				"File is valid after removing %d rows (%.2f%%) with address issues. Remaining data is ready for FCC BDC submission.",
				len(addressRows), decision.AddressErrorPct)
		}
		for _, origRow := range decision.ProblematicRows {
			if rec, ok := byRow[origRow]; ok {
				rec.MarkRemoved("Address validation failed - removed per threshold policy")
			}
		}

	default:
		decision.Status = StatusInvalid
		decision.RequiresManualReview = true
		decision.Reason = fmt.Sprintf(
			"File contains %d rows (%.2f%%) with address issues, exceeding the %.1f%% threshold for %d subscribers. Manual address review required.",
			len(addressRows), decision.AddressErrorPct, band.MaxErrorPct, total)
	}

	e.logger.Info("file decision",
		zap.String("status", string(decision.Status)),
		zap.Int("total_subscribers", total),
		zap.Int("address_error_rows", len(addressRows)),
		zap.Int("non_address_error_rows", len(nonAddressRows)),
		zap.Float64("address_error_pct", decision.AddressErrorPct),
		zap.String("band", band.Description))
	return decision
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
