// pkg/validate/general.go
package validate

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// generalColumns are the columns the general validator owns, in processing
// order. Coordinates are handled by the coordinate validator and the street
// address content by the address engine; the address column appears here only
// for its required-field check.
var generalColumns = []string{
	model.ColCustomer,
	model.ColAddress,
	model.ColCity,
	model.ColState,
	model.ColZip,
	model.ColDownload,
	model.ColUpload,
	model.ColVoipLines,
	model.ColBusiness,
	model.ColTechnology,
}

// GeneralValidator validates and normalizes the non-coordinate,
// non-street-content columns of a record.
type GeneralValidator struct {
	logger *zap.Logger
}

// NewGeneralValidator creates a general validator.
func NewGeneralValidator(logger *zap.Logger) *GeneralValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneralValidator{logger: logger}
}

func requiredFieldMsg(col string) string {
	return "Required field: " + strings.ToUpper(col[:1]) + strings.ToLower(col[1:]) + " cannot be empty"
}

func isAddressField(col string) bool {
	switch col {
	case model.ColAddress, model.ColCity, model.ColState, model.ColZip:
		return true
	}
	return false
}

// ValidateState checks the state abbreviation, filling a missing state from
// the ZIP prefix and upper-casing a miscased one. The corrected value is
// written back into the record.
func (v *GeneralValidator) ValidateState(led *Ledger, rec *model.Record) {
	state := strings.TrimSpace(rec.State)
	zip := strings.TrimSpace(rec.Zip)

	record := func(corrected, typ string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    model.ColState,
			Original:  state,
			Corrected: &corrected,
			Type:      typ,
			Status:    model.CorrectionValid,
		})
		rec.State = corrected
	}

	if state == "" {
		if rec.GPSOnly() {
			return
		}
		if derived := StateFromZip(zip); derived != "" {
			record(derived, "State from ZIP Code")
			return
		}
		led.RecordError(rec.OrigRow, model.ColState, requiredFieldMsg(model.ColState), state)
		return
	}

	if !ValidStates[strings.ToUpper(state)] {
		led.RecordError(rec.OrigRow, model.ColState, "Invalid State Abbreviation", state)
		if derived := StateFromZip(zip); derived != "" {
			record(derived, "State Name to Abbreviation")
		}
		return
	}
	if state != strings.ToUpper(state) {
		record(strings.ToUpper(state), "State Abbreviation Case Correction")
		led.RecordError(rec.OrigRow, model.ColState, "Invalid State Abbreviation", state)
	}
}

// Validate runs the per-column checks and write-back normalizations.
// Required-field violations on the address family are skipped for rows that
// carry coordinates only.
func (v *GeneralValidator) Validate(led *Ledger, rec *model.Record) {
	gpsOnly := rec.GPSOnly()

	for _, col := range generalColumns {
		val := strings.TrimSpace(rec.Get(col))

		if val == "" {
			if isAddressField(col) && gpsOnly {
				continue
			}
			led.RecordError(rec.OrigRow, col, requiredFieldMsg(col), val)
			rec.Set(col, "")
			continue
		}

		if isAddressField(col) && gpsOnly {
			continue
		}

		switch col {
		case model.ColCustomer:
			if strings.Contains(val, ",") {
				led.RecordError(rec.OrigRow, col, "Customer ID contains a comma", val)
			}

		case model.ColCity:
			if forbiddenCharRe.MatchString(val) {
				led.RecordError(rec.OrigRow, col, "City contains forbidden character", val)
			}

		case model.ColZip:
			v.validateZip(led, rec, val)

		case model.ColDownload, model.ColUpload:
			v.validateSpeed(led, rec, col, val)

		case model.ColVoipLines:
			v.validateVoIPLines(led, rec, val)

		case model.ColBusiness:
			v.validateBusinessFlag(led, rec, val)

		case model.ColTechnology:
			v.validateTechnology(led, rec, val)
		}
	}
}

func (v *GeneralValidator) validateZip(led *Ledger, rec *model.Record, val string) {
	if zipNineDigitRe.MatchString(val) {
		corrected := val[:5] + "-" + val[5:]
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    model.ColZip,
			Original:  val,
			Corrected: &corrected,
			Type:      "ZIP+4 Hyphen Addition",
			Status:    model.CorrectionValid,
		})
		rec.Zip = corrected
	} else if !zipFormatRe.MatchString(val) {
		led.RecordError(rec.OrigRow, model.ColZip, "Invalid ZIP code format", val)
	}
	if forbiddenCharRe.MatchString(val) {
		led.RecordError(rec.OrigRow, model.ColZip, "ZIP code contains forbidden character", val)
	}
}

func (v *GeneralValidator) validateSpeed(led *Ledger, rec *model.Record, col, val string) {
	replace := func(msg string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:  rec.OrigRow,
			Column:   col,
			Original: val,
			Type:     "Invalid Speed Replacement",
			Status:   model.CorrectionValid,
		})
		led.RecordError(rec.OrigRow, col, msg, val)
		rec.Set(col, "")
	}

	label := strings.ToUpper(col[:1]) + strings.ToLower(col[1:])
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		replace(label + " speed must be a number")
		return
	}
	if f < 0 {
		replace(label + " speed must be positive")
		return
	}
	rec.Set(col, strconv.FormatFloat(f, 'f', -1, 64))
}

func (v *GeneralValidator) validateVoIPLines(led *Ledger, rec *model.Record, val string) {
	replace := func(msg string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:  rec.OrigRow,
			Column:   model.ColVoipLines,
			Original: val,
			Type:     "Invalid VoIP Lines Replacement",
			Status:   model.CorrectionValid,
		})
		led.RecordError(rec.OrigRow, model.ColVoipLines, msg, val)
		rec.VoipLines = ""
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		replace("VoIP lines must be a number")
		return
	}
	if f < 0 || f != float64(int64(f)) {
		replace("VoIP lines must be a non-negative integer")
		return
	}
	formatted := strconv.FormatInt(int64(f), 10)
	if val != formatted {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    model.ColVoipLines,
			Original:  val,
			Corrected: &formatted,
			Type:      "VoIP Lines Format Correction",
			Status:    model.CorrectionValid,
		})
	}
	rec.VoipLines = formatted
}

func (v *GeneralValidator) validateBusinessFlag(led *Ledger, rec *model.Record, val string) {
	record := func(corrected, typ string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    model.ColBusiness,
			Original:  val,
			Corrected: &corrected,
			Type:      typ,
			Status:    model.CorrectionValid,
		})
	}

	switch normalized := strings.ToLower(strings.TrimSpace(val)); normalized {
	case "true", "t", "1", "yes", "y":
		rec.Business = "1"
		if normalized != "1" {
			record("1", "Business Customer Normalization")
		}
	case "false", "f", "0", "no", "n":
		rec.Business = "0"
		if normalized != "0" {
			record("0", "Business Customer Normalization")
		}
	default:
		rec.Business = "0"
		record("0", "Invalid Business Customer Replacement")
		led.RecordError(rec.OrigRow, model.ColBusiness, "Business customer must be 0 or 1", val)
	}
}

func (v *GeneralValidator) validateTechnology(led *Ledger, rec *model.Record, val string) {
	normalized := strings.ToLower(strings.TrimSpace(val))

	record := func(corrected, typ string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    model.ColTechnology,
			Original:  val,
			Corrected: &corrected,
			Type:      typ,
			Status:    model.CorrectionValid,
		})
		rec.Technology = corrected
	}

	if corrected, ok := technologyCorrections[strings.ReplaceAll(normalized, " ", "")]; ok {
		record(corrected, "Technology Auto-Correction")
		return
	}
	valid := false
	for _, t := range ValidTechnologies {
		if normalized == t {
			valid = true
			break
		}
	}
	if !valid {
		led.RecordError(rec.OrigRow, model.ColTechnology,
			"Invalid technology: "+strings.Join(ValidTechnologies, ", "), val)
		return
	}
	if normalized != val {
		record(normalized, "Technology Case Normalization")
	}
}
