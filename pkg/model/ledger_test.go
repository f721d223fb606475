// pkg/model/ledger_test.go
package model

import "testing"

func TestBandFor(t *testing.T) {
	cases := []struct {
		count   int
		wantPct float64
	}{
		{0, 0.0},
		{200, 0.0},
		{201, 3.0},
		{500, 3.0},
		{501, 1.0},
		{1500, 1.0},
		{1501, 1.0},
		{5000000, 1.0},
	}
	for _, tc := range cases {
		if got := BandFor(tc.count); got.MaxErrorPct != tc.wantPct {
			t.Errorf("BandFor(%d).MaxErrorPct = %v, want %v", tc.count, got.MaxErrorPct, tc.wantPct)
		}
	}
}

func TestBandsAreContiguous(t *testing.T) {
	for i := 1; i < len(DefaultBands); i++ {
		if DefaultBands[i].MinCount != DefaultBands[i-1].MaxCount+1 {
			t.Errorf("gap between bands %d and %d", i-1, i)
		}
	}
}

func TestSeverityString(t *testing.T) {
	cases := []struct {
		sev  Severity
		want string
	}{
		{SeverityWarning, "Warning"},
		{SeverityReview, "Review Required"},
		{SeverityCritical, "Critical"},
	}
	for _, tc := range cases {
		if got := tc.sev.String(); got != tc.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tc.sev, got, tc.want)
		}
	}
}

func TestCorrectedValue(t *testing.T) {
	v := "123 MAIN ST"
	c := CorrectionEntry{Corrected: &v}
	if c.CorrectedValue() != v {
		t.Errorf("CorrectedValue() = %q", c.CorrectedValue())
	}
	cleared := CorrectionEntry{}
	if cleared.CorrectedValue() != "" {
		t.Errorf("cleared CorrectedValue() = %q", cleared.CorrectedValue())
	}
}
