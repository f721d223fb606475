// pkg/validate/ledger_test.go
package validate

import (
	"testing"

	"github.com/openbdc/subval/pkg/model"
)

func TestRecordErrorDeduplicates(t *testing.T) {
	led := NewLedger(nil)

	if !led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 MAIN") {
		t.Error("first entry reported as duplicate")
	}
	if led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 MAIN") {
		t.Error("identical entry reported as new")
	}
	if !led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 ELM") {
		t.Error("entry with a different value reported as duplicate")
	}
	if len(led.Errors()) != 2 {
		t.Errorf("errors = %d, want 2", len(led.Errors()))
	}
}

func TestRecordErrorFlagsCell(t *testing.T) {
	led := NewLedger(nil)
	led.RecordError(2, model.ColState, "Invalid State Abbreviation", "XX")

	msg, ok := led.FlaggedMessage(2, model.ColState)
	if !ok || msg != "Invalid State Abbreviation" {
		t.Errorf("flag = (%q, %v)", msg, ok)
	}

	led.ClearFlag(2, model.ColState)
	if _, ok := led.FlaggedMessage(2, model.ColState); ok {
		t.Error("flag survived ClearFlag")
	}
}

func TestLatestCorrectionWins(t *testing.T) {
	led := NewLedger(nil)
	first, second := "123 MAIN ST", "123 MAIN ST NW"
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow: 2, Column: model.ColAddress, Original: "123 main st",
		Corrected: &first, Type: "Case Normalization", Status: model.CorrectionValid,
	})
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow: 2, Column: model.ColAddress, Original: first,
		Corrected: &second, Type: "Compass Direction Normalization", Status: model.CorrectionValid,
	})

	c, ok := led.LatestCorrection(2, model.ColAddress)
	if !ok || c.CorrectedValue() != second {
		t.Errorf("latest = (%+v, %v)", c, ok)
	}
	if len(led.Corrections()) != 2 {
		t.Errorf("corrections = %d, want 2", len(led.Corrections()))
	}
}

func TestClearAddressErrors(t *testing.T) {
	led := NewLedger(nil)
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 MAIN")
	led.RecordError(2, model.ColAddress, "Invalid format", "123 MAIN")
	led.RecordError(2, model.ColCity, "City contains forbidden character", "SPO|KANE")

	led.ClearAddressErrors(2, []string{"Lacks standard street ending"})

	msgs := errorMessages(led)
	if len(msgs) != 2 {
		t.Fatalf("errors = %v", msgs)
	}
	for _, m := range msgs {
		if m == "Lacks standard street ending" {
			t.Error("eligible error survived clearing")
		}
	}

	// Cleared entries can be re-raised.
	if !led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 MAIN") {
		t.Error("re-raise after clear reported as duplicate")
	}
}

func TestClearRowFamilyErrors(t *testing.T) {
	led := NewLedger(nil)
	led.RecordError(2, model.ColAddress, "Lacks standard street ending", "123 MAIN")
	led.RecordError(2, model.ColZip, "Invalid ZIP code format", "9920")
	led.RecordError(2, model.ColDownload, "Download speed must be a number", "fast")
	led.RecordError(3, model.ColAddress, "Lacks standard street ending", "456 OAK")

	led.ClearRowFamilyErrors(2)

	errs := led.Errors()
	if len(errs) != 2 {
		t.Fatalf("errors = %+v", errs)
	}
	if errs[0].Column != model.ColDownload {
		t.Errorf("kept column = %q", errs[0].Column)
	}
	if errs[1].OrigRow != 3 {
		t.Errorf("other row's error lost: %+v", errs[1])
	}
}

func TestHasCriticalNonZip(t *testing.T) {
	led := NewLedger(nil)
	led.RecordError(2, model.ColZip, "Required field: Zip cannot be empty", "")
	if led.HasCriticalNonZip() {
		t.Error("zip-only required error reported as critical")
	}

	led.RecordError(2, model.ColCustomer, "Required field: Customer cannot be empty", "")
	if !led.HasCriticalNonZip() {
		t.Error("customer required error not reported as critical")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		column  string
		want    model.Severity
	}{
		{"Required field: Customer cannot be empty", model.ColCustomer, model.SeverityCritical},
		{"Invalid State Abbreviation", model.ColState, model.SeverityCritical},
		{"Invalid technology: fiber, cable", model.ColTechnology, model.SeverityCritical},
		{"Download speed must be a number", model.ColDownload, model.SeverityCritical},
		{"Business customer must be 0 or 1", model.ColBusiness, model.SeverityCritical},
		{"Removal after Invalid response from Smarty", model.ColAddress, model.SeverityCritical},
		{"Invalid format", model.ColAddress, model.SeverityCritical},
		{"Corrected address is still invalid: Lacks standard street ending", model.ColAddress, model.SeverityReview},
		{"Smarty Validation Failed - Returned for Review", model.ColAddress, model.SeverityReview},
		{"Lacks standard street ending", model.ColAddress, model.SeverityWarning},
		{"Invalid ZIP code format", model.ColZip, model.SeverityWarning},
		{"Paired coordinate reset due to invalid lat", model.ColLon, model.SeverityWarning},
	}
	for _, tc := range cases {
		if got := Classify(tc.message, tc.column); got != tc.want {
			t.Errorf("Classify(%q, %q) = %v, want %v", tc.message, tc.column, got, tc.want)
		}
	}
}
