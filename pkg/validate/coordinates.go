// pkg/validate/coordinates.go
package validate

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// CoordinateValidator validates latitude/longitude pairs against per-state
// envelopes, repairing sign errors using adjacent rows and nulling values it
// cannot repair. Lat and lon are validated as a pair: when one is cleared the
// other is reset with it so no half-coordinate survives.
type CoordinateValidator struct {
	logger *zap.Logger
}

// NewCoordinateValidator creates a coordinate validator.
func NewCoordinateValidator(logger *zap.Logger) *CoordinateValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoordinateValidator{logger: logger}
}

// pyFloat formats a float the way the correction ledger renders coordinate
// bounds: integral values keep a trailing ".0".
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func capitalize(col string) string {
	return strings.ToUpper(col[:1]) + strings.ToLower(col[1:])
}

// Validate runs over the whole working set so out-of-range values can consult
// their row neighbors for sign repair.
func (v *CoordinateValidator) Validate(led *Ledger, recs []*model.Record) {
	for i, rec := range recs {
		state := strings.ToUpper(strings.TrimSpace(rec.State))
		for _, col := range []string{model.ColLat, model.ColLon} {
			val := rec.Get(col)
			if strings.TrimSpace(val) == "" {
				continue
			}
			v.validateCell(led, recs, i, col, val, state)
		}
	}
}

func (v *CoordinateValidator) validateCell(led *Ledger, recs []*model.Record, i int, col, val, state string) {
	rec := recs[i]

	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		// Quoted numbers are a common export artifact; strip and reparse.
		cleaned := strings.Trim(strings.TrimSpace(val), `'"`)
		f, err = strconv.ParseFloat(cleaned, 64)
		if err != nil {
			v.replaceInvalid(led, rec, col, val)
			led.RecordError(rec.OrigRow, col, capitalize(col)+" must be a number", val)
			v.resetPaired(led, rec, col)
			return
		}
		formatted := pyFloat(f)
		rec.Set(col, formatted)
		ok, msg := validateCoordinateValue(f, col, state)
		status := model.CorrectionValid
		if !ok {
			status = model.CorrectionStillInvalid
		}
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    col,
			Original:  val,
			Corrected: &formatted,
			Type:      "Float Conversion",
			Status:    status,
		})
		if !ok {
			led.RecordError(rec.OrigRow, col, msg, formatted)
		}
		return
	}

	ok, msg := validateCoordinateValue(f, col, state)
	if ok {
		return
	}

	// A value whose magnitude tracks its neighbors is likely just a sign
	// error. Flip it and revalidate before giving up on the cell.
	if v.neighborMagnitudeMatch(recs, i, col, f) {
		flipped := -f
		if ok, _ := validateCoordinateValue(flipped, col, state); ok {
			formatted := pyFloat(flipped)
			rec.Set(col, formatted)
			led.RecordCorrection(model.CorrectionEntry{
				OrigRow:   rec.OrigRow,
				Column:    col,
				Original:  val,
				Corrected: &formatted,
				Type:      "Sign Flip",
				Status:    model.CorrectionValid,
			})
			return
		}
	}

	v.replaceInvalid(led, rec, col, val)
	led.RecordError(rec.OrigRow, col, msg, val)
	v.resetPaired(led, rec, col)
}

// neighborMagnitudeMatch reports whether an adjacent row carries a parseable
// value in the same column within 2 degrees of this value's magnitude.
func (v *CoordinateValidator) neighborMagnitudeMatch(recs []*model.Record, i int, col string, f float64) bool {
	for _, n := range []int{i - 1, i + 1} {
		if n < 0 || n >= len(recs) {
			continue
		}
		nf, err := strconv.ParseFloat(strings.TrimSpace(recs[n].Get(col)), 64)
		if err != nil {
			continue
		}
		if math.Abs(math.Abs(f)-math.Abs(nf)) < 2 {
			return true
		}
	}
	return false
}

func (v *CoordinateValidator) replaceInvalid(led *Ledger, rec *model.Record, col, original string) {
	rec.Set(col, "")
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow:  rec.OrigRow,
		Column:   col,
		Original: original,
		Type:     "Invalid Value Replacement",
		Status:   model.CorrectionValid,
	})
}

// resetPaired clears the other half of the coordinate pair after col was
// nulled, recording both the correction and the reason.
func (v *CoordinateValidator) resetPaired(led *Ledger, rec *model.Record, col string) {
	paired := model.ColLon
	if col == model.ColLon {
		paired = model.ColLat
	}
	pairedVal := rec.Get(paired)
	if strings.TrimSpace(pairedVal) == "" {
		return
	}
	rec.Set(paired, "")
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow:  rec.OrigRow,
		Column:   paired,
		Original: pairedVal,
		Type:     "Paired Coordinate Reset",
		Status:   model.CorrectionValid,
	})
	led.RecordError(rec.OrigRow, paired, "Paired coordinate reset due to invalid "+col, pairedVal)
}

// validateCoordinateValue checks a parsed coordinate against the envelope for
// the row's state. Unknown states fall back to a whole-globe sanity check for
// latitude; longitude is accepted as-is since several territories straddle
// the antimeridian.
func validateCoordinateValue(value float64, col, state string) (bool, string) {
	switch col {
	case model.ColLat:
		if r, ok := StateLatRanges[state]; ok {
			if state == "AS" && value > 0 {
				return false, "Latitude for AS must be negative"
			}
			if state != "AS" && value < 0 {
				return false, "Latitude for " + state + " must be positive"
			}
			if value < r.Min || value > r.Max {
				return false, "Latitude for " + state + " must be between " + pyFloat(r.Min) + " and " + pyFloat(r.Max)
			}
		} else if !s2.LatLngFromDegrees(value, 0).IsValid() {
			return false, "Latitude must be between -90 and 90"
		}
	case model.ColLon:
		if r, ok := StateLonRanges[state]; ok {
			if state != "GU" && state != "MP" && value > 0 {
				return false, "Longitude for " + state + " must be negative"
			}
			if value < r.Min || value > r.Max {
				return false, "Longitude for " + state + " must be between " + pyFloat(r.Min) + " and " + pyFloat(r.Max)
			}
		}
	}
	return true, ""
}
