// pkg/smarty/batch_test.go
package smarty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

func flaggedRecord(row int, address string) *model.Record {
	return &model.Record{
		OrigRow: row,
		Address: address,
		City:    "SPOKANE",
		State:   "WA",
		Zip:     "99201",
	}
}

func TestProcessAppliesSuccessfulCorrection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			matchJSON(0, "123 Main St", "99202"),
		})
	}))
	defer srv.Close()

	led := validate.NewLedger(nil)
	rec := flaggedRecord(2, "123 MAIN")
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", rec.Address)

	p := NewProcessor(NewClient(testConfig(srv.URL), nil), 2, nil)
	stats := p.Process(context.Background(), led, []*model.Record{rec})

	if stats.AddressesSent != 1 || stats.SuccessfulCorrections != 1 || stats.FailedCorrections != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Action != ActionFlagged {
		t.Errorf("action = %q", stats.Action)
	}
	if rec.Address != "123 MAIN ST" {
		t.Errorf("address = %q", rec.Address)
	}
	if rec.Zip != "99202" {
		t.Errorf("zip = %q", rec.Zip)
	}
	if len(led.Errors()) != 0 {
		t.Errorf("errors not cleared: %+v", led.Errors())
	}
	if len(stats.Corrections) != 1 || !stats.Corrections[0].Success {
		t.Fatalf("corrections = %+v", stats.Corrections)
	}
	if stats.Corrections[0].SmartyKey != "key-0" {
		t.Errorf("smarty key = %q", stats.Corrections[0].SmartyKey)
	}
}

func TestProcessFlagsFailuresForReview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	led := validate.NewLedger(nil)
	rec := flaggedRecord(2, "123 MAIN")
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", rec.Address)

	p := NewProcessor(NewClient(testConfig(srv.URL), nil), 2, nil)
	stats := p.Process(context.Background(), led, []*model.Record{rec})

	if stats.FailedCorrections != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if rec.Removed {
		t.Error("failed verification must not remove the row")
	}
	msg, ok := led.FlaggedMessage(2, model.ColAddress)
	if !ok || msg != "Smarty Validation Failed - Returned for Review" {
		t.Errorf("flag = (%q, %v)", msg, ok)
	}
	if stats.Corrections[0].Err != "No valid address match found" {
		t.Errorf("err = %q", stats.Corrections[0].Err)
	}
}

func TestProcessSkipsOnCriticalErrors(t *testing.T) {
	led := validate.NewLedger(nil)
	rec := flaggedRecord(2, "123 MAIN")
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", rec.Address)
	led.RecordError(2, model.ColCustomer, "Required field: Customer cannot be empty", "")

	p := NewProcessor(NewClient(testConfig("http://example.invalid"), nil), 2, nil)
	stats := p.Process(context.Background(), led, []*model.Record{rec})

	if stats.Action != ActionSkipped {
		t.Errorf("action = %q", stats.Action)
	}
	if stats.AddressesSent != 0 {
		t.Errorf("addresses sent = %d", stats.AddressesSent)
	}
}

func TestProcessExemptsPuertoRico(t *testing.T) {
	led := validate.NewLedger(nil)
	rec := flaggedRecord(2, "123 CALLE SOL")
	rec.State = "PR"
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", rec.Address)

	p := NewProcessor(NewClient(testConfig("http://example.invalid"), nil), 2, nil)
	stats := p.Process(context.Background(), led, []*model.Record{rec})

	if stats.AddressesSent != 0 {
		t.Errorf("addresses sent = %d, want 0", stats.AddressesSent)
	}
}

func TestProcessOneCandidatePerRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []lookup
		json.NewDecoder(r.Body).Decode(&items)
		var matches []map[string]any
		for i := range items {
			matches = append(matches, matchJSON(i, items[i].Street+" St", "99201"))
		}
		json.NewEncoder(w).Encode(matches)
	}))
	defer srv.Close()

	led := validate.NewLedger(nil)
	rec := flaggedRecord(2, "123 Main")
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", rec.Address)
	led.RecordError(2, model.ColZip, "Required field: Zip cannot be empty", "")

	p := NewProcessor(NewClient(testConfig(srv.URL), nil), 2, nil)
	stats := p.Process(context.Background(), led, []*model.Record{rec})

	if stats.AddressesSent != 1 {
		t.Errorf("addresses sent = %d, want 1", stats.AddressesSent)
	}
}
