// pkg/validate/ledger.go
package validate

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// Ledger is the single source of truth for every error, correction and
// flagged cell produced by a pipeline run. All methods are safe for
// concurrent use.
type Ledger struct {
	mu          sync.Mutex
	logger      *zap.Logger
	errors      []model.ErrorEntry
	errorKeys   map[string]struct{}
	corrections []model.CorrectionEntry
	latest      map[model.CellKey]int
	flags       map[model.CellKey]model.FlaggedCell
	poBox       []model.ErrorEntry
}

// NewLedger creates an empty ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		logger:    logger,
		errorKeys: make(map[string]struct{}),
		latest:    make(map[model.CellKey]int),
		flags:     make(map[model.CellKey]model.FlaggedCell),
	}
}

// RecordError appends an error and flags its cell. Re-raising an identical
// (row, column, message, value) tuple is a no-op. Returns whether the entry
// was new.
func (l *Ledger) RecordError(origRow int, column, message, value string) bool {
	entry := model.ErrorEntry{OrigRow: origRow, Column: column, Message: message, Value: value}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.errorKeys[entry.Key()]; dup {
		return false
	}
	l.errorKeys[entry.Key()] = struct{}{}
	l.errors = append(l.errors, entry)
	l.flags[model.CellKey{OrigRow: origRow, Column: column}] = model.FlaggedCell{
		OrigRow: origRow,
		Column:  column,
		Message: message,
	}

	l.log(message, origRow, column, value)
	return true
}

// RecordCorrection appends a correction. The ledger is append-only; the
// latest entry per cell is authoritative for output rendering.
func (l *Ledger) RecordCorrection(entry model.CorrectionEntry) {
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.corrections = append(l.corrections, entry)
	l.latest[model.CellKey{OrigRow: entry.OrigRow, Column: entry.Column}] = len(l.corrections) - 1

	l.logger.Debug("correction recorded",
		zap.Int("orig_row", entry.OrigRow),
		zap.String("column", entry.Column),
		zap.String("type", entry.Type),
		zap.String("status", string(entry.Status)),
	)
}

// RecordPOBox appends to the dedicated PO-Box error stream.
func (l *Ledger) RecordPOBox(origRow int, message, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.poBox = append(l.poBox, model.ErrorEntry{
		OrigRow: origRow,
		Column:  model.ColAddress,
		Message: message,
		Value:   value,
	})
}

// LatestCorrection returns the most recent correction for a cell.
func (l *Ledger) LatestCorrection(origRow int, column string) (model.CorrectionEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.latest[model.CellKey{OrigRow: origRow, Column: column}]
	if !ok {
		return model.CorrectionEntry{}, false
	}
	return l.corrections[idx], true
}

// Flag marks a cell for severity coloring without recording an error.
func (l *Ledger) Flag(origRow int, column, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flags[model.CellKey{OrigRow: origRow, Column: column}] = model.FlaggedCell{
		OrigRow: origRow,
		Column:  column,
		Message: message,
	}
}

// FlaggedMessage returns the current flag message for a cell, if any.
func (l *Ledger) FlaggedMessage(origRow int, column string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.flags[model.CellKey{OrigRow: origRow, Column: column}]
	return f.Message, ok
}

// ClearAddressErrors removes address-column errors and flags for a row when
// the message is in the given set. Used after a local or external correction
// resolves the cell.
func (l *Ledger) ClearAddressErrors(origRow int, messages []string) {
	eligible := make(map[string]bool, len(messages))
	for _, m := range messages {
		eligible[m] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.errors[:0]
	for _, e := range l.errors {
		if e.OrigRow == origRow && e.Column == model.ColAddress && eligible[e.Message] {
			delete(l.errorKeys, e.Key())
			continue
		}
		kept = append(kept, e)
	}
	l.errors = kept

	key := model.CellKey{OrigRow: origRow, Column: model.ColAddress}
	if f, ok := l.flags[key]; ok && eligible[f.Message] {
		delete(l.flags, key)
	}
}

// ClearRowFamilyErrors removes every address, city, state and zip error for a
// row. Called after an external correction replaces the whole address block.
func (l *Ledger) ClearRowFamilyErrors(origRow int) {
	family := map[string]bool{
		model.ColAddress: true,
		model.ColCity:    true,
		model.ColState:   true,
		model.ColZip:     true,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.errors[:0]
	for _, e := range l.errors {
		if e.OrigRow == origRow && family[e.Column] {
			delete(l.errorKeys, e.Key())
			continue
		}
		kept = append(kept, e)
	}
	l.errors = kept
}

// ClearFlag removes the flag on a single cell.
func (l *Ledger) ClearFlag(origRow int, column string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.flags, model.CellKey{OrigRow: origRow, Column: column})
}

// Errors returns a copy of the deduplicated error entries in record order.
func (l *Ledger) Errors() []model.ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ErrorEntry, len(l.errors))
	copy(out, l.errors)
	return out
}

// Corrections returns a copy of the append-only correction log.
func (l *Ledger) Corrections() []model.CorrectionEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.CorrectionEntry, len(l.corrections))
	copy(out, l.corrections)
	return out
}

// Flags returns a copy of the current flagged cells.
func (l *Ledger) Flags() map[model.CellKey]model.FlaggedCell {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[model.CellKey]model.FlaggedCell, len(l.flags))
	for k, v := range l.flags {
		out[k] = v
	}
	return out
}

// POBoxErrors returns a copy of the PO-Box error stream.
func (l *Ledger) POBoxErrors() []model.ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ErrorEntry, len(l.poBox))
	copy(out, l.poBox)
	return out
}

// HasCriticalNonZip reports whether any error outside the zip column carries
// a required-field violation. The verification stage is skipped in that case
// since the file will be rejected regardless.
func (l *Ledger) HasCriticalNonZip() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.errors {
		if e.Column != model.ColZip && strings.HasPrefix(e.Message, "Required field:") {
			return true
		}
	}
	return false
}

// log mirrors severity in the log level.
func (l *Ledger) log(message string, origRow int, column, value string) {
	fields := []zap.Field{
		zap.Int("orig_row", origRow),
		zap.String("column", column),
		zap.String("value", value),
	}
	switch Classify(message, column) {
	case model.SeverityCritical:
		l.logger.Warn(message, fields...)
	default:
		l.logger.Debug(message, fields...)
	}
}

// numericColumns are the columns whose type and sign violations are always
// critical.
var numericColumns = map[string]bool{
	model.ColDownload:  true,
	model.ColUpload:    true,
	model.ColVoipLines: true,
	model.ColBusiness:  true,
}

// Classify maps an error message and its column to a severity band. The
// mapping is total: anything unmatched is a warning.
func Classify(message, column string) model.Severity {
	switch {
	case strings.HasPrefix(message, "Required field:"),
		strings.HasPrefix(message, "Address lacks leading number"),
		strings.HasPrefix(message, "Invalid technology:"),
		message == "Invalid State Abbreviation",
		message == "Removal after Invalid response from Smarty",
		message == "Invalid format":
		return model.SeverityCritical
	case numericColumns[column] &&
		(strings.Contains(message, "must be a number") ||
			strings.Contains(message, "must be positive") ||
			strings.Contains(message, "must be a non-negative integer") ||
			strings.Contains(message, "must be 0 or 1")):
		return model.SeverityCritical
	case strings.HasPrefix(message, "Corrected address is still invalid"),
		message == "Smarty Validation Failed - Returned for Review":
		return model.SeverityReview
	default:
		return model.SeverityWarning
	}
}
