// pkg/model/ledger.go
package model

import (
	"fmt"
	"time"
)

// CorrectionStatus indicates whether a correction produced a usable value.
type CorrectionStatus string

const (
	// CorrectionValid marks a correction whose result is written back to the
	// working set.
	CorrectionValid CorrectionStatus = "Valid"
	// CorrectionStillInvalid marks an attempted correction whose result did
	// not validate.
	CorrectionStillInvalid CorrectionStatus = "Still Invalid"
)

// CorrectionEntry represents a single recorded cell correction
type CorrectionEntry struct {
	OrigRow   int              // Stable row identity
	Column    string           // Column that was corrected
	Original  string           // Value before the correction
	Corrected *string          // Value after the correction (nil when cleared)
	Type      string           // Correction type tag (e.g. "Case Normalization")
	Status    CorrectionStatus // Whether the result validated
	AppliedAt time.Time        // When the correction was recorded
}

// CorrectedValue returns the corrected value, or "" when the cell was cleared.
func (c *CorrectionEntry) CorrectedValue() string {
	if c.Corrected == nil {
		return ""
	}
	return *c.Corrected
}

// ErrorEntry is one validation error. Entries are deduplicated by the full
// (row, column, message, value) tuple.
type ErrorEntry struct {
	OrigRow int
	Column  string
	Message string
	Value   string
}

// Key returns the deduplication key for the entry.
func (e *ErrorEntry) Key() string {
	return fmt.Sprintf("%d_%s_%s_%s", e.OrigRow, e.Column, e.Message, e.Value)
}

// CellKey addresses one cell of the working set by stable row identity and
// column name.
type CellKey struct {
	OrigRow int
	Column  string
}

// FlaggedCell marks a cell that must receive severity coloring. A defined
// subset of messages also makes the cell eligible for external verification.
type FlaggedCell struct {
	OrigRow int
	Column  string
	Message string
}

// Severity classifies a flagged cell for the file-level decision.
type Severity int

const (
	// SeverityWarning covers residual notices and anything not otherwise
	// escalated. Never blocks a Valid file status.
	SeverityWarning Severity = iota
	// SeverityReview covers addresses still invalid after correction and
	// verification-service failures. Counts against the address threshold.
	SeverityReview
	// SeverityCritical covers required-field, type and range violations.
	// Outside the address family it rejects the file outright.
	SeverityCritical
)

// String returns the display name of the severity band.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityReview:
		return "Review Required"
	default:
		return "Warning"
	}
}

// ThresholdBand maps a subscriber-count range to the maximum tolerable
// percentage of rows with address-family errors.
type ThresholdBand struct {
	MinCount    int
	MaxCount    int
	MaxErrorPct float64
	Description string
}

// DefaultBands is the ordered threshold table. The bands are contiguous and
// cover every non-negative subscriber count exactly once.
var DefaultBands = []ThresholdBand{
	{MinCount: 0, MaxCount: 200, MaxErrorPct: 0.0, Description: "0% errors allowed for 0-200 subscribers"},
	{MinCount: 201, MaxCount: 500, MaxErrorPct: 3.0, Description: "3% errors allowed for 201-500 subscribers"},
	{MinCount: 501, MaxCount: 1500, MaxErrorPct: 1.0, Description: "1% errors allowed for 501-1500 subscribers"},
	{MinCount: 1501, MaxCount: 999999, MaxErrorPct: 1.0, Description: "1% errors allowed for 1501+ subscribers"},
}

// BandFor returns the threshold band matching the subscriber count. Counts
// beyond the last band's upper bound clamp to the last band.
func BandFor(count int) ThresholdBand {
	for _, b := range DefaultBands {
		if count >= b.MinCount && count <= b.MaxCount {
			return b
		}
	}
	return DefaultBands[len(DefaultBands)-1]
}

// VerificationCandidate is a snapshot of an address flagged for external
// verification, taken at flag time so it reflects local corrections already
// applied to the row.
type VerificationCandidate struct {
	OrigRow int
	Address string
	City    string
	State   string
	Zip     string
	Reason  string
}
