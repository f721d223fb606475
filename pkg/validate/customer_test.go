// pkg/validate/customer_test.go
package validate

import (
	"testing"

	"github.com/openbdc/subval/pkg/model"
)

func custRecord(row int, id, address, download string) *model.Record {
	return &model.Record{
		OrigRow:    row,
		Customer:   id,
		Address:    address,
		City:       "SPOKANE",
		State:      "WA",
		Zip:        "99201",
		Download:   download,
		Upload:     "20",
		VoipLines:  "1",
		Business:   "0",
		Technology: "fiber",
	}
}

func TestResolveRenamesIDDuplicates(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "100"),
		custRecord(3, "C100", "456 OAK AVE", "50"),
		custRecord(4, "c100", "789 ELM DR", "25"),
	}
	d.Resolve(led, recs)

	if recs[0].Customer != "C100" {
		t.Errorf("first occurrence renamed to %q", recs[0].Customer)
	}
	if recs[1].Customer != "C100_001" {
		t.Errorf("second = %q, want %q", recs[1].Customer, "C100_001")
	}
	if recs[2].Customer != "c100_002" {
		t.Errorf("third = %q, want %q", recs[2].Customer, "c100_002")
	}

	msgs := errorMessages(led)
	if len(msgs) != 2 {
		t.Fatalf("errors = %v", msgs)
	}
	if msgs[0] != "Duplicate customer ID, renamed to C100_001" {
		t.Errorf("message = %q", msgs[0])
	}
}

func TestResolveMarksIdenticalData(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "100"),
		custRecord(3, "C100", "123 MAIN ST", "100"),
	}
	d.Resolve(led, recs)

	// A row that collides on both ID and data is renamed twice: once by the
	// ID pass, then again by the data pass against the first occurrence.
	if recs[1].Customer != "C100_001_002" {
		t.Errorf("customer = %q, want %q", recs[1].Customer, "C100_001_002")
	}

	msgs := errorMessages(led)
	if len(msgs) != 2 {
		t.Fatalf("errors = %v", msgs)
	}
	if msgs[0] != "Duplicate customer ID, renamed to C100_001 (identical data)" {
		t.Errorf("message = %q", msgs[0])
	}
	if msgs[1] != "Data-based duplicate, renamed to C100_001_002 (identical data to customer C100)" {
		t.Errorf("message = %q", msgs[1])
	}
}

func TestResolveCounterSharedAcrossPasses(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "100"),
		custRecord(3, "C100", "456 OAK AVE", "50"),
		custRecord(4, "C200", "789 ELM DR", "25"),
		custRecord(5, "C300", "789 ELM DR", "25"),
	}
	d.Resolve(led, recs)

	// The ID pass consumed suffix 001, so the data pass continues at 002.
	if recs[3].Customer != "C300_002" {
		t.Errorf("data-based rename = %q, want %q", recs[3].Customer, "C300_002")
	}

	msgs := errorMessages(led)
	if len(msgs) != 2 {
		t.Fatalf("errors = %v", msgs)
	}
	want := "Data-based duplicate, renamed to C300_002 (identical data to customer C200)"
	if msgs[1] != want {
		t.Errorf("message = %q, want %q", msgs[1], want)
	}
}

func TestEliminateExactDuplicates(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "100"),
		custRecord(3, "C100", "123 MAIN ST", "100"),
	}
	d.Eliminate(led, recs)

	if recs[0].Removed {
		t.Error("kept row was removed")
	}
	if !recs[1].Removed {
		t.Fatal("exact duplicate survived")
	}
	if recs[1].RemoveReason != "Exact duplicate of customer C100, removed" {
		t.Errorf("reason = %q", recs[1].RemoveReason)
	}
}

func TestEliminateKeepsBestRow(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "50"),
		custRecord(3, "C100", "456 OAK AVE", "100"),
	}
	d.Eliminate(led, recs)

	if recs[1].Removed {
		t.Error("fastest row was removed")
	}
	if !recs[0].Removed {
		t.Fatal("slower row survived")
	}
	if recs[0].RemoveReason != "Duplicate customer ID, removed (lower download speed than kept row 3)" {
		t.Errorf("reason = %q", recs[0].RemoveReason)
	}
}

func TestEliminateTechnologyTiebreak(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	worse := custRecord(2, "C100", "123 MAIN ST", "100")
	worse.Technology = "wireless_unlicensed"
	better := custRecord(3, "C100", "456 OAK AVE", "100")
	better.Technology = "fiber"
	recs := []*model.Record{worse, better}
	d.Eliminate(led, recs)

	if better.Removed {
		t.Error("higher priority technology was removed")
	}
	if !worse.Removed {
		t.Fatal("lower priority technology survived")
	}
	if worse.RemoveReason != "Duplicate customer ID, removed (lower technology priority than kept row 3)" {
		t.Errorf("reason = %q", worse.RemoveReason)
	}
}

func TestEliminateTiesFavorFirstOccurrence(t *testing.T) {
	d := NewDuplicateResolver(nil)
	led := NewLedger(nil)
	recs := []*model.Record{
		custRecord(2, "C100", "123 MAIN ST", "100"),
		custRecord(3, "C100", "456 OAK AVE", "100"),
	}
	d.Eliminate(led, recs)

	if recs[0].Removed {
		t.Error("first occurrence was removed on a tie")
	}
	if !recs[1].Removed {
		t.Fatal("later occurrence survived a tie")
	}
	if recs[1].RemoveReason != "Duplicate customer ID, removed (later occurrence than kept row 2)" {
		t.Errorf("reason = %q", recs[1].RemoveReason)
	}
}
