// pkg/model/record.go
package model

import "strings"

// Canonical column names, in output order.
const (
	ColCustomer   = "customer"
	ColLat        = "lat"
	ColLon        = "lon"
	ColAddress    = "address"
	ColCity       = "city"
	ColState      = "state"
	ColZip        = "zip"
	ColDownload   = "download"
	ColUpload     = "upload"
	ColVoipLines  = "voip_lines_quantity"
	ColBusiness   = "business_customer"
	ColTechnology = "technology"
)

// Columns lists the twelve canonical columns in output order.
var Columns = []string{
	ColCustomer, ColLat, ColLon, ColAddress, ColCity, ColState, ColZip,
	ColDownload, ColUpload, ColVoipLines, ColBusiness, ColTechnology,
}

// AddressFamilyColumns are the columns whose errors count against the
// subscriber-count threshold. State is excluded: an invalid state usually
// signals column misalignment, not a bad address.
var AddressFamilyColumns = []string{ColAddress, ColCity, ColZip}

// IsAddressFamilyColumn reports whether errors in the column are subject to
// the threshold policy rather than immediate file rejection.
func IsAddressFamilyColumn(col string) bool {
	for _, c := range AddressFamilyColumns {
		if strings.EqualFold(col, c) {
			return true
		}
	}
	return false
}

// Record is one subscriber row. All field values are held as strings in the
// working set; validators parse, correct, and write back. OrigRow is assigned
// once at ingestion and never changes, it is the only key that survives row
// removal and re-indexing.
type Record struct {
	OrigRow      int
	Customer     string
	Lat          string
	Lon          string
	Address      string
	City         string
	State        string
	Zip          string
	Download     string
	Upload       string
	VoipLines    string
	Business     string
	Technology   string
	Removed      bool
	RemoveReason string
}

// Get returns the value of a canonical column by name.
func (r *Record) Get(col string) string {
	switch col {
	case ColCustomer:
		return r.Customer
	case ColLat:
		return r.Lat
	case ColLon:
		return r.Lon
	case ColAddress:
		return r.Address
	case ColCity:
		return r.City
	case ColState:
		return r.State
	case ColZip:
		return r.Zip
	case ColDownload:
		return r.Download
	case ColUpload:
		return r.Upload
	case ColVoipLines:
		return r.VoipLines
	case ColBusiness:
		return r.Business
	case ColTechnology:
		return r.Technology
	}
	return ""
}

// Set writes the value of a canonical column by name.
func (r *Record) Set(col, val string) {
	switch col {
	case ColCustomer:
		r.Customer = val
	case ColLat:
		r.Lat = val
	case ColLon:
		r.Lon = val
	case ColAddress:
		r.Address = val
	case ColCity:
		r.City = val
	case ColState:
		r.State = val
	case ColZip:
		r.Zip = val
	case ColDownload:
		r.Download = val
	case ColUpload:
		r.Upload = val
	case ColVoipLines:
		r.VoipLines = val
	case ColBusiness:
		r.Business = val
	case ColTechnology:
		r.Technology = val
	}
}

// MarkRemoved labels the row for exclusion from final output. The row stays
// in the working set so cross-row passes still see it; the first reason wins.
func (r *Record) MarkRemoved(reason string) {
	if r.Removed {
		return
	}
	r.Removed = true
	r.RemoveReason = reason
}

// GPSOnly reports whether the row carries coordinates instead of a postal
// address: all four of address, city, state and zip are blank.
func (r *Record) GPSOnly() bool {
	return strings.TrimSpace(r.Address) == "" &&
		strings.TrimSpace(r.City) == "" &&
		strings.TrimSpace(r.State) == "" &&
		strings.TrimSpace(r.Zip) == ""
}

// Values returns the record's column values in canonical order.
func (r *Record) Values() []string {
	vals := make([]string, 0, len(Columns))
	for _, col := range Columns {
		vals = append(vals, r.Get(col))
	}
	return vals
}
