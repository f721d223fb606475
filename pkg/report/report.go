// pkg/report/report.go
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/smarty"
	"github.com/openbdc/subval/pkg/validate"
)

// Exit codes for the command wrapper.
const (
	ExitReady        = 0
	ExitManualReview = 1
	ExitBadInput     = 2
)

// Artifacts holds the paths of everything a run wrote.
type Artifacts struct {
	CorrectedCSV    string `json:"corrected_csv"`
	ErrorsCSV       string `json:"errors_csv,omitempty"`
	StreetEndingCSV string `json:"street_ending_errors_csv,omitempty"`
	POBoxCSV        string `json:"po_box_errors_csv,omitempty"`
	RemovalsCSV     string `json:"removed_rows_csv,omitempty"`
	CorrectionsCSV  string `json:"corrections_csv,omitempty"`
	ReportJSON      string `json:"report_json"`
}

// errorRow is one error line in the CSV and JSON outputs.
type errorRow struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Error   string `json:"error"`
	Value   string `json:"value"`
}

// correctionRow is one correction line in the CSV and JSON outputs.
type correctionRow struct {
	Row       int    `json:"row"`
	Column    string `json:"column"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Type      string `json:"correction_type"`
	Status    string `json:"status"`
}

// removalRow is one dropped subscriber row.
type removalRow struct {
	Row      int    `json:"row"`
	Customer string `json:"customer"`
	Address  string `json:"address"`
	Reason   string `json:"reason"`
}

// smartyCorrectionRow mirrors one external verification outcome. Failed
// lookups report "Invalid" as the corrected address.
type smartyCorrectionRow struct {
	Row              int    `json:"row"`
	OriginalAddress  string `json:"original_address"`
	CorrectedAddress string `json:"corrected_address"`
	OriginalZip      string `json:"original_zip,omitempty"`
	CorrectedZip     string `json:"corrected_zip,omitempty"`
	ReasonSent       string `json:"reason_sent"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
}

// verificationSummary is the external verification section of the report.
type verificationSummary struct {
	Action                string  `json:"action"`
	AddressesSent         int     `json:"addresses_sent"`
	SuccessfulCorrections int     `json:"successful_corrections"`
	FailedCorrections     int     `json:"failed_corrections"`
	BatchesSent           int     `json:"batches_sent"`
	ProcessingSeconds     float64 `json:"processing_seconds"`
}

// RunReport is the JSON run report.
type RunReport struct {
	RunID              string                `json:"run_id"`
	SourceFile         string                `json:"source_file"`
	GeneratedAt        time.Time             `json:"generated_at"`
	Summary            RunSummary            `json:"summary"`
	Decision           Decision              `json:"file_validation_details"`
	Errors             []errorRow            `json:"errors"`
	StreetEndingErrors []errorRow            `json:"street_ending_errors"`
	POBoxErrors        []errorRow            `json:"po_box_errors"`
	Corrections        []correctionRow       `json:"corrections"`
	RemovedRows        []removalRow          `json:"removed_rows"`
	SmartyCorrections  []smartyCorrectionRow `json:"smarty_corrections,omitempty"`
	Verification       *verificationSummary  `json:"external_verification,omitempty"`
	Artifacts          Artifacts             `json:"artifacts"`
}

// RunSummary is the headline counts block.
type RunSummary struct {
	InputRows        int     `json:"input_rows"`
	OutputRows       int     `json:"output_rows"`
	RemovedRows      int     `json:"removed_rows"`
	TotalErrors      int     `json:"total_errors"`
	TotalCorrections int     `json:"total_corrections"`
	FileStatus       string  `json:"file_status"`
	ProcessingTime   float64 `json:"processing_seconds"`
}

// Writer produces the run artifacts next to the input file.
type Writer struct {
	dir    string
	base   string
	logger *zap.Logger
}

// NewWriter creates a writer rooted at dir. Artifact names are derived from
// base, the input file name without extension.
func NewWriter(dir, base string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, base: base, logger: logger}
}

// WriteAll writes the corrected CSV, the error and correction CSVs, and the
// JSON run report. Empty artifacts are skipped. The returned report carries
// the paths of everything written.
func (w *Writer) WriteAll(recs []*model.Record, led *validate.Ledger, decision Decision, stats *smarty.Stats, runID, sourcePath string, elapsed time.Duration) (*RunReport, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", w.dir, err)
	}

	report := &RunReport{
		RunID:       runID,
		SourceFile:  sourcePath,
		GeneratedAt: time.Now().UTC(),
		Decision:    decision,
	}

	general, streetEnding := splitErrors(led.Errors())
	report.Errors = general
	report.StreetEndingErrors = streetEnding
	report.POBoxErrors = toErrorRows(led.POBoxErrors())
	report.Corrections = toCorrectionRows(led.Corrections())
	report.RemovedRows = toRemovalRows(recs)
	if stats != nil {
		report.Verification = &verificationSummary{
			Action:                stats.Action,
			AddressesSent:         stats.AddressesSent,
			SuccessfulCorrections: stats.SuccessfulCorrections,
			FailedCorrections:     stats.FailedCorrections,
			BatchesSent:           stats.BatchesSent,
			ProcessingSeconds:     stats.ProcessingTime.Seconds(),
		}
		report.SmartyCorrections = toSmartyRows(stats.Corrections)
	}

	output := 0
	for _, rec := range recs {
		if !rec.Removed {
			output++
		}
	}
	report.Summary = RunSummary{
		InputRows:        len(recs),
		OutputRows:       output,
		RemovedRows:      len(recs) - output,
		TotalErrors:      len(report.Errors) + len(report.StreetEndingErrors) + len(report.POBoxErrors),
		TotalCorrections: len(report.Corrections),
		FileStatus:       string(decision.Status),
		ProcessingTime:   elapsed.Seconds(),
	}

	var err error
	report.Artifacts.CorrectedCSV, err = w.writeCorrectedCSV(recs)
	if err != nil {
		return nil, err
	}
	if report.Artifacts.ErrorsCSV, err = w.writeErrorCSV("errors", report.Errors); err != nil {
		return nil, err
	}
	if report.Artifacts.StreetEndingCSV, err = w.writeErrorCSV("street_ending_errors", report.StreetEndingErrors); err != nil {
		return nil, err
	}
	if report.Artifacts.POBoxCSV, err = w.writeErrorCSV("po_box_errors", report.POBoxErrors); err != nil {
		return nil, err
	}
	if report.Artifacts.RemovalsCSV, err = w.writeRemovalsCSV(report.RemovedRows); err != nil {
		return nil, err
	}
	if report.Artifacts.CorrectionsCSV, err = w.writeCorrectionsCSV(report.Corrections); err != nil {
		return nil, err
	}
	if report.Artifacts.ReportJSON, err = w.writeJSON(report); err != nil {
		return nil, err
	}

	w.logger.Info("run artifacts written",
		zap.String("corrected_csv", report.Artifacts.CorrectedCSV),
		zap.String("report_json", report.Artifacts.ReportJSON),
		zap.Int("output_rows", output),
		zap.Int("removed_rows", report.Summary.RemovedRows))
	return report, nil
}

// ExitCode maps the file verdict to the process exit code.
func ExitCode(decision Decision) int {
	if decision.Status == StatusValid {
		return ExitReady
	}
	return ExitManualReview
}

func (w *Writer) path(suffix, ext string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.%s", w.base, suffix, ext))
}

func (w *Writer) writeCorrectedCSV(recs []*model.Record) (string, error) {
	path := w.path("corrected", "csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(model.Columns); err != nil {
		return "", fmt.Errorf("writing header to %s: %w", path, err)
	}
	row := make([]string, len(model.Columns))
	for _, rec := range recs {
		if rec.Removed {
			continue
		}
		for i, col := range model.Columns {
			row[i] = rec.Get(col)
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("writing row %d to %s: %w", rec.OrigRow, path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing %s: %w", path, err)
	}
	return path, nil
}

func (w *Writer) writeErrorCSV(suffix string, rows []errorRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	path := w.path(suffix, "csv")
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"row", "column", "error", "value"})
	for _, r := range rows {
		records = append(records, []string{strconv.Itoa(r.Row), r.Column, r.Error, r.Value})
	}
	return path, writeCSV(path, records)
}

func (w *Writer) writeRemovalsCSV(rows []removalRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	path := w.path("removed_rows", "csv")
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"row", "customer", "address", "reason"})
	for _, r := range rows {
		records = append(records, []string{strconv.Itoa(r.Row), r.Customer, r.Address, r.Reason})
	}
	return path, writeCSV(path, records)
}

func (w *Writer) writeCorrectionsCSV(rows []correctionRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	path := w.path("corrections", "csv")
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"row", "column", "original", "corrected", "correction_type", "status"})
	for _, r := range rows {
		records = append(records, []string{strconv.Itoa(r.Row), r.Column, r.Original, r.Corrected, r.Type, r.Status})
	}
	return path, writeCSV(path, records)
}

func (w *Writer) writeJSON(report *RunReport) (string, error) {
	path := w.path("report", "json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// splitErrors separates street-ending errors into their own list, sorted by
// row then column like everything else.
func splitErrors(entries []model.ErrorEntry) (general, streetEnding []errorRow) {
	for _, e := range entries {
		row := errorRow{Row: e.OrigRow, Column: e.Column, Error: e.Message, Value: e.Value}
		if strings.Contains(e.Message, "street ending") {
			streetEnding = append(streetEnding, row)
		} else {
			general = append(general, row)
		}
	}
	sortErrorRows(general)
	sortErrorRows(streetEnding)
	return general, streetEnding
}

func toErrorRows(entries []model.ErrorEntry) []errorRow {
	rows := make([]errorRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, errorRow{Row: e.OrigRow, Column: e.Column, Error: e.Message, Value: e.Value})
	}
	sortErrorRows(rows)
	return rows
}

func sortErrorRows(rows []errorRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Row != rows[j].Row {
			return rows[i].Row < rows[j].Row
		}
		return rows[i].Column < rows[j].Column
	})
}

func toCorrectionRows(entries []model.CorrectionEntry) []correctionRow {
	rows := make([]correctionRow, 0, len(entries))
	for _, c := range entries {
		rows = append(rows, correctionRow{
			Row:       c.OrigRow,
			Column:    c.Column,
			Original:  c.Original,
			Corrected: c.CorrectedValue(),
			Type:      c.Type,
			Status:    string(c.Status),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Row != rows[j].Row {
			return rows[i].Row < rows[j].Row
		}
		return rows[i].Column < rows[j].Column
	})
	return rows
}

func toRemovalRows(recs []*model.Record) []removalRow {
	var rows []removalRow
	for _, rec := range recs {
		if !rec.Removed {
			continue
		}
		rows = append(rows, removalRow{
			Row:      rec.OrigRow,
			Customer: rec.Customer,
			Address:  rec.Address,
			Reason:   rec.RemoveReason,
		})
	}
	return rows
}

func toSmartyRows(corrections []smarty.CorrectionRecord) []smartyCorrectionRow {
	rows := make([]smartyCorrectionRow, 0, len(corrections))
	for _, c := range corrections {
		row := smartyCorrectionRow{
			Row:              c.OrigRow,
			OriginalAddress:  c.OriginalAddress,
			CorrectedAddress: c.CorrectedAddress,
			OriginalZip:      c.OriginalZip,
			CorrectedZip:     c.CorrectedZip,
			ReasonSent:       c.ReasonSent,
			Success:          c.Success,
			Error:            c.Err,
		}
		if !c.Success {
			row.CorrectedAddress = "Invalid"
		}
		rows = append(rows, row)
	}
	return rows
}
