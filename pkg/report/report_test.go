// pkg/report/report_test.go
package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/smarty"
	"github.com/openbdc/subval/pkg/validate"
)

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWriteAllProducesArtifacts(t *testing.T) {
	dir := t.TempDir()
	led := validate.NewLedger(nil)
	recs := makeRecords(3)
	recs[2].MarkRemoved("PO Boxes not allowed")
	led.RecordError(recs[0].OrigRow, model.ColZip, "Invalid ZIP code format", "9920")
	led.RecordError(recs[1].OrigRow, model.ColAddress, "Lacks standard street ending", recs[1].Address)
	led.RecordPOBox(recs[2].OrigRow, "PO Boxes not allowed", recs[2].Address)
	corrected := "123 MAIN ST"
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow: recs[0].OrigRow, Column: model.ColAddress, Original: "123 main st",
		Corrected: &corrected, Type: "Case Normalization", Status: model.CorrectionValid,
	})

	decision := NewDecisionEngine(nil).Assess(led, recs)
	stats := &smarty.Stats{
		Action:        smarty.ActionFlagged,
		AddressesSent: 1,
		Corrections: []smarty.CorrectionRecord{{
			OrigRow:         recs[1].OrigRow,
			OriginalAddress: recs[1].Address,
			ReasonSent:      "Lacks standard street ending",
			Err:             "No valid address match found",
			Timestamp:       time.Now(),
		}},
		FailedCorrections: 1,
		BatchesSent:       1,
	}

	w := NewWriter(dir, "subscribers", nil)
	report, err := w.WriteAll(recs, led, decision, stats, "run-123", "/data/subscribers.csv", 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if report.Summary.InputRows != 3 || report.Summary.OutputRows != 2 || report.Summary.RemovedRows != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if report.Summary.TotalCorrections != 1 {
		t.Errorf("corrections = %d", report.Summary.TotalCorrections)
	}

	rows := readCSVFile(t, report.Artifacts.CorrectedCSV)
	if len(rows) != 3 {
		t.Fatalf("corrected csv rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != model.Columns[0] {
		t.Errorf("header = %v", rows[0])
	}

	if report.Artifacts.ErrorsCSV == "" || report.Artifacts.StreetEndingCSV == "" || report.Artifacts.POBoxCSV == "" {
		t.Errorf("artifacts = %+v", report.Artifacts)
	}
	streetRows := readCSVFile(t, report.Artifacts.StreetEndingCSV)
	if len(streetRows) != 2 || streetRows[1][2] != "Lacks standard street ending" {
		t.Errorf("street ending csv = %v", streetRows)
	}

	removalRows := readCSVFile(t, report.Artifacts.RemovalsCSV)
	if len(removalRows) != 2 || removalRows[1][3] != "PO Boxes not allowed" {
		t.Errorf("removals csv = %v", removalRows)
	}

	data, err := os.ReadFile(report.Artifacts.ReportJSON)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RunID != "run-123" || decoded.SourceFile != "/data/subscribers.csv" {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.SmartyCorrections) != 1 || decoded.SmartyCorrections[0].CorrectedAddress != "Invalid" {
		t.Errorf("smarty corrections = %+v", decoded.SmartyCorrections)
	}
	if decoded.Verification == nil || decoded.Verification.FailedCorrections != 1 {
		t.Errorf("verification = %+v", decoded.Verification)
	}
}

func TestWriteAllSkipsEmptyArtifacts(t *testing.T) {
	dir := t.TempDir()
	led := validate.NewLedger(nil)
	recs := makeRecords(2)

	decision := NewDecisionEngine(nil).Assess(led, recs)
	w := NewWriter(dir, "clean", nil)
	report, err := w.WriteAll(recs, led, decision, nil, "run-456", "clean.csv", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if report.Artifacts.ErrorsCSV != "" || report.Artifacts.RemovalsCSV != "" || report.Artifacts.CorrectionsCSV != "" {
		t.Errorf("artifacts = %+v", report.Artifacts)
	}
	if report.Verification != nil {
		t.Error("verification section present without stats")
	}
	if _, err := os.Stat(report.Artifacts.CorrectedCSV); err != nil {
		t.Errorf("corrected csv missing: %v", err)
	}
	if _, err := os.Stat(report.Artifacts.ReportJSON); err != nil {
		t.Errorf("report json missing: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("artifact files = %d, want 2", len(entries))
	}
}

func TestArtifactNaming(t *testing.T) {
	dir := t.TempDir()
	led := validate.NewLedger(nil)
	recs := makeRecords(1)

	decision := NewDecisionEngine(nil).Assess(led, recs)
	w := NewWriter(dir, "acme_2024q2", nil)
	report, err := w.WriteAll(recs, led, decision, nil, "run-789", "acme_2024q2.csv", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if got := filepath.Base(report.Artifacts.CorrectedCSV); got != "acme_2024q2_corrected.csv" {
		t.Errorf("corrected csv = %q", got)
	}
	if got := filepath.Base(report.Artifacts.ReportJSON); got != "acme_2024q2_report.json" {
		t.Errorf("report json = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(Decision{Status: StatusValid}); got != ExitReady {
		t.Errorf("valid exit = %d", got)
	}
	if got := ExitCode(Decision{Status: StatusInvalid}); got != ExitManualReview {
		t.Errorf("invalid exit = %d", got)
	}
}
