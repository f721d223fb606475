// pkg/report/decision_test.go
package report

import (
	"fmt"
	"testing"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

func makeRecords(n int) []*model.Record {
	recs := make([]*model.Record, n)
	for i := range recs {
		recs[i] = &model.Record{
			OrigRow:  i + 2,
			Customer: fmt.Sprintf("C%04d", i),
			Address:  "123 MAIN ST",
			City:     "SPOKANE",
			State:    "WA",
			Zip:      "99201",
		}
	}
	return recs
}

const reviewMsg = "Smarty Validation Failed - Returned for Review"

func TestAssessCleanFile(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(100)

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusValid {
		t.Fatalf("status = %q", d.Status)
	}
	if d.Reason != "File passed all validations and is ready for FCC BDC submission." {
		t.Errorf("reason = %q", d.Reason)
	}
	if d.TotalSubscribers != 100 || d.AddressErrorCount != 0 {
		t.Errorf("decision = %+v", d)
	}
}

func TestAssessWithinThresholdRemovesRows(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(1000)
	for i := 0; i < 8; i++ {
		led.RecordError(recs[i].OrigRow, model.ColAddress, reviewMsg, recs[i].Address)
	}

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusValid {
		t.Fatalf("status = %q, reason = %q", d.Status, d.Reason)
	}
	want := "File is valid after removing 8 rows (0.80%) with address issues. Remaining data is ready for FCC BDC submission."
	if d.Reason != want {
		t.Errorf("reason = %q, want %q", d.Reason, want)
	}
	for i := 0; i < 8; i++ {
		if !recs[i].Removed {
			t.Errorf("row %d not removed", recs[i].OrigRow)
		}
		if recs[i].RemoveReason != "Address validation failed - removed per threshold policy" {
			t.Errorf("reason = %q", recs[i].RemoveReason)
		}
	}
	if recs[8].Removed {
		t.Error("clean row was removed")
	}
}

func TestAssessExceedsThreshold(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(1000)
	for i := 0; i < 15; i++ {
		led.RecordError(recs[i].OrigRow, model.ColAddress, reviewMsg, recs[i].Address)
	}

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusInvalid || !d.RequiresManualReview {
		t.Fatalf("decision = %+v", d)
	}
	want := "File contains 15 rows (1.50%) with address issues, exceeding the 1.0% threshold for 1000 subscribers. Manual address review required."
	if d.Reason != want {
		t.Errorf("reason = %q, want %q", d.Reason, want)
	}
	for _, rec := range recs[:15] {
		if rec.Removed {
			t.Error("invalid verdict must not remove rows")
			break
		}
	}
}

func TestAssessSmallFileZeroTolerance(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(100)
	led.RecordError(recs[0].OrigRow, model.ColAddress, reviewMsg, recs[0].Address)

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusInvalid {
		t.Fatalf("status = %q", d.Status)
	}
	if d.Band.MaxErrorPct != 0.0 {
		t.Errorf("band = %+v", d.Band)
	}
}

func TestAssessNonAddressCriticalRejects(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(1000)
	led.RecordError(recs[0].OrigRow, model.ColCustomer, "Required field: Customer cannot be empty", "")

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusInvalid {
		t.Fatalf("status = %q", d.Status)
	}
	want := "File contains 1 rows with critical errors in required fields (customer, state, speeds, technology, etc.) that must be manually corrected. This includes column misalignment and invalid data."
	if d.Reason != want {
		t.Errorf("reason = %q, want %q", d.Reason, want)
	}
	if d.NonAddressErrorCount != 1 {
		t.Errorf("non-address count = %d", d.NonAddressErrorCount)
	}
}

func TestAssessIgnoresWarnings(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(100)
	led.RecordError(recs[0].OrigRow, model.ColAddress, "Lacks standard street ending", recs[0].Address)
	led.RecordError(recs[1].OrigRow, model.ColZip, "Invalid ZIP code format", "9920")

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.Status != StatusValid {
		t.Fatalf("status = %q, reason = %q", d.Status, d.Reason)
	}
	if d.AddressErrorCount != 0 {
		t.Errorf("address error count = %d", d.AddressErrorCount)
	}
}

func TestAssessExcludesRemovedRowsFromThreshold(t *testing.T) {
	led := validate.NewLedger(nil)
	recs := makeRecords(300)
	recs[0].MarkRemoved("PO Boxes not allowed")
	led.RecordError(recs[0].OrigRow, model.ColAddress, reviewMsg, recs[0].Address)

	d := NewDecisionEngine(nil).Assess(led, recs)

	if d.TotalSubscribers != 299 {
		t.Errorf("total = %d, want 299", d.TotalSubscribers)
	}
	if d.AddressErrorCount != 0 {
		t.Errorf("address error count = %d, want 0 (row already excluded)", d.AddressErrorCount)
	}
	if d.Status != StatusValid {
		t.Errorf("status = %q", d.Status)
	}
}
