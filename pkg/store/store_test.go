// pkg/store/store_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/openbdc/subval/pkg/config"
	"github.com/openbdc/subval/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.LedgerConfig{Driver: "sqlite", DSN: ":memory:"}
	s, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresConfiguration(t *testing.T) {
	if _, err := Open(context.Background(), &config.LedgerConfig{}, nil); err == nil {
		t.Fatal("expected error for unconfigured ledger")
	}
}

func TestSaveRunPersistsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	corrected := "123 MAIN ST"
	run := RunRecord{
		RunID:            "run-123",
		SourceFile:       "/data/subscribers.csv",
		Company:          "acme",
		Period:           "2024q2",
		FileStatus:       "Valid",
		Reason:           "File passed all validations and is ready for FCC BDC submission.",
		TotalSubscribers: 100,
		RemovedRows:      2,
		CorrectionCount:  1,
		ErrorCount:       1,
		StartedAt:        time.Now().UTC(),
		DurationSeconds:  1.5,
	}
	corrections := []model.CorrectionEntry{{
		OrigRow:   2,
		Column:    model.ColAddress,
		Original:  "123 main st",
		Corrected: &corrected,
		Type:      "Case Normalization",
		Status:    model.CorrectionValid,
		AppliedAt: time.Now().UTC(),
	}}
	errors := []model.ErrorEntry{{
		OrigRow: 3,
		Column:  model.ColZip,
		Message: "Invalid ZIP code format",
		Value:   "9920",
	}}

	if err := s.SaveRun(ctx, run, corrections, errors); err != nil {
		t.Fatal(err)
	}

	var status string
	if err := s.db.GetContext(ctx, &status,
		"SELECT file_status FROM validation_runs WHERE run_id = ?", run.RunID); err != nil {
		t.Fatal(err)
	}
	if status != "Valid" {
		t.Errorf("file status = %q", status)
	}

	var correctionCount int
	if err := s.db.GetContext(ctx, &correctionCount,
		"SELECT COUNT(*) FROM corrections WHERE run_id = ?", run.RunID); err != nil {
		t.Fatal(err)
	}
	if correctionCount != 1 {
		t.Errorf("corrections = %d", correctionCount)
	}

	var message string
	if err := s.db.GetContext(ctx, &message,
		"SELECT message FROM validation_errors WHERE run_id = ?", run.RunID); err != nil {
		t.Fatal(err)
	}
	if message != "Invalid ZIP code format" {
		t.Errorf("message = %q", message)
	}
}

func TestSaveRunDuplicateRunIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := RunRecord{
		RunID:      "run-dup",
		SourceFile: "a.csv",
		FileStatus: "Valid",
		StartedAt:  time.Now().UTC(),
	}
	if err := s.SaveRun(ctx, run, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, run, nil, nil); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestSaveVerificationUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	usage := VerificationUsage{
		RunID:             "run-123",
		Company:           "acme",
		APICalls:          40,
		Successes:         36,
		Failures:          4,
		SuccessRate:       90.0,
		BatchesSent:       2,
		ProcessingSeconds: 3.2,
	}
	if err := s.SaveVerificationUsage(ctx, usage); err != nil {
		t.Fatal(err)
	}

	var got VerificationUsage
	if err := s.db.GetContext(ctx, &got,
		"SELECT * FROM verification_usage WHERE run_id = ?", usage.RunID); err != nil {
		t.Fatal(err)
	}
	if got.APICalls != 40 || got.SuccessRate != 90.0 {
		t.Errorf("usage = %+v", got)
	}
	if got.RecordedAt.IsZero() {
		t.Error("recorded_at not defaulted")
	}
}
