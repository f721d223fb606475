// pkg/model/record_test.go
package model

import "testing"

func TestGetSetRoundTrip(t *testing.T) {
	rec := &Record{}
	for i, col := range Columns {
		rec.Set(col, Columns[i])
	}
	for _, col := range Columns {
		if rec.Get(col) != col {
			t.Errorf("Get(%q) = %q", col, rec.Get(col))
		}
	}
	if rec.Get("nonexistent") != "" {
		t.Errorf("unknown column returned %q", rec.Get("nonexistent"))
	}
}

func TestMarkRemovedFirstReasonWins(t *testing.T) {
	rec := &Record{}
	rec.MarkRemoved("PO Boxes not allowed")
	rec.MarkRemoved("Address too short")

	if !rec.Removed {
		t.Fatal("record not marked removed")
	}
	if rec.RemoveReason != "PO Boxes not allowed" {
		t.Errorf("reason = %q", rec.RemoveReason)
	}
}

func TestGPSOnly(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want bool
	}{
		{"coordinates only", Record{Lat: "47.65", Lon: "-117.42"}, true},
		{"whitespace postal fields", Record{Address: "  ", City: " ", Lat: "47.65"}, true},
		{"has address", Record{Address: "123 MAIN ST"}, false},
		{"has zip only", Record{Zip: "99201"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.GPSOnly(); got != tc.want {
				t.Errorf("GPSOnly() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAddressFamilyColumn(t *testing.T) {
	for _, col := range AddressFamilyColumns {
		if !IsAddressFamilyColumn(col) {
			t.Errorf("%q not recognized as address family", col)
		}
	}
	for _, col := range []string{ColState, ColCustomer, ColDownload} {
		if IsAddressFamilyColumn(col) {
			t.Errorf("%q wrongly classified as address family", col)
		}
	}
}

func TestValuesFollowsColumnOrder(t *testing.T) {
	rec := &Record{Customer: "C100", Address: "123 MAIN ST", Zip: "99201"}
	vals := rec.Values()
	if len(vals) != len(Columns) {
		t.Fatalf("len = %d, want %d", len(vals), len(Columns))
	}
	if vals[0] != "C100" {
		t.Errorf("vals[0] = %q", vals[0])
	}
}
