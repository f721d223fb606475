// pkg/validate/address.go
package validate

import (
	"strings"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// SmartyEligibleErrors are the address-family error messages that qualify a
// row for external verification instead of removal.
var SmartyEligibleErrors = []string{
	"Lacks standard street ending",
	"Invalid format",
	"Required field: Zip cannot be empty",
	"Required field: City cannot be empty",
	"Required field: State cannot be empty",
}

// AddressOptions control which passes of the correction pipeline run.
type AddressOptions struct {
	// IsCorrection marks a re-validation of an address that was itself
	// produced by a correction. Structural failures become terminal and
	// error messages carry the "Corrected address is still invalid" prefix.
	IsCorrection bool
	// NonStandardOnly forces the street-ending resolution during the first
	// pass, before the comprehensive phase runs.
	NonStandardOnly bool
}

// AddressEngine applies the ordered address correction pipeline. Rules run
// in a fixed precedence; each stage only runs while the address is still
// non-empty and not terminally rejected.
type AddressEngine struct {
	logger *zap.Logger
}

// NewAddressEngine creates an address engine.
func NewAddressEngine(logger *zap.Logger) *AddressEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressEngine{logger: logger}
}

// addressRun carries the mutable state of one pipeline invocation.
type addressRun struct {
	engine  *AddressEngine
	led     *Ledger
	rec     *model.Record
	opts    AddressOptions
	addr    string
	origRaw string
}

// errMsg applies the re-validation prefix to structural failure messages.
func (r *addressRun) errMsg(base string) string {
	if r.opts.IsCorrection {
		return "Corrected address is still invalid: " + base
	}
	return base
}

func (r *addressRun) appendError(msg string) {
	r.led.RecordError(r.rec.OrigRow, model.ColAddress, msg, r.addr)
}

func (r *addressRun) recordCorrection(original, corrected, typ string) {
	r.led.RecordCorrection(model.CorrectionEntry{
		OrigRow:   r.rec.OrigRow,
		Column:    model.ColAddress,
		Original:  original,
		Corrected: &corrected,
		Type:      typ,
		Status:    model.CorrectionValid,
	})
}

// Validate runs the pipeline against rec's address, recording corrections
// and errors in the ledger and marking the row for removal on terminal
// failures. The latest valid correction is written back into the record.
// Returns whether the address passed.
func (e *AddressEngine) Validate(led *Ledger, rec *model.Record, opts AddressOptions) bool {
	run := &addressRun{
		engine:  e,
		led:     led,
		rec:     rec,
		opts:    opts,
		addr:    strings.TrimSpace(rec.Address),
		origRaw: rec.Address,
	}
	passed := run.execute()

	// Write back the latest valid correction so later phases see it.
	if c, ok := led.LatestCorrection(rec.OrigRow, model.ColAddress); ok && c.Status == model.CorrectionValid {
		rec.Address = c.CorrectedValue()
	}
	return passed
}

// ValidateFinal is the phase-2 entry point: it clears verification-eligible
// address errors when the address validates after a local correction.
func (e *AddressEngine) ValidateFinal(led *Ledger, rec *model.Record) bool {
	if rec.GPSOnly() {
		return true
	}
	passed := e.Validate(led, rec, AddressOptions{})
	if c, ok := led.LatestCorrection(rec.OrigRow, model.ColAddress); ok && c.Status == model.CorrectionValid && passed {
		led.ClearAddressErrors(rec.OrigRow, SmartyEligibleErrors)
	}
	return passed
}

func (r *addressRun) execute() bool {
	validationPassed := true

	// Whitespace collapse.
	r.addr = whitespaceRe.ReplaceAllString(r.addr, " ")

	// Uppercase normalization.
	if upper := strings.ToUpper(r.addr); upper != r.addr {
		r.recordCorrection(r.addr, upper, "Case Normalization")
		r.addr = upper
	}

	// Forbidden characters are stripped silently.
	r.addr = forbiddenStripRe.ReplaceAllString(r.addr, "")

	// Compass words become abbreviations.
	if normalized := normalizeCompassDirections(r.addr); normalized != r.addr {
		r.recordCorrection(r.addr, normalized, "Compass Direction Normalization")
		r.addr = normalized
	}

	// Puerto Rico addresses do not follow mainland structure; accept after
	// the basic cleanups.
	if strings.EqualFold(strings.TrimSpace(r.rec.State), "PR") {
		r.recordCorrection(r.origRaw, r.addr, "PR Address Auto-Accept")
		return true
	}

	// Minimum length, measured without spaces.
	if len(strings.ReplaceAll(r.addr, " ", "")) < 5 {
		r.appendError(r.errMsg("Address too short"))
		r.rec.MarkRemoved("Address too short")
		return false
	}

	// Placeholder tokens and phone numbers are not addresses.
	if nonAddressRe.MatchString(r.addr) {
		r.appendError(r.errMsg("Non-address content detected"))
		r.rec.MarkRemoved("Non-address content detected")
		return false
	}

	// A bare PR infix is the local spelling of a private road.
	if converted := prInfixRe.ReplaceAllString(strings.TrimSpace(r.addr), " PVT RD "); converted != r.addr {
		r.recordCorrection(r.addr, converted, "PR to PVT RD Conversion")
		r.addr = converted
	}

	// Farm to Market roads abbreviate to FM.
	if converted := farmToMarketRe.ReplaceAllString(r.addr, "FM"); converted != r.addr {
		r.recordCorrection(r.addr, converted, "Farm to Market to FM")
		r.addr = converted
	}

	if strings.TrimSpace(r.addr) == "" {
		r.appendError(r.errMsg("Blank or whitespace-only value"))
		r.rec.MarkRemoved("Blank or whitespace-only value")
		return false
	}

	// PO boxes are not submittable locations.
	if poBoxRe.MatchString(r.addr) {
		msg := r.errMsg("PO Boxes not allowed")
		r.led.RecordPOBox(r.rec.OrigRow, msg, r.addr)
		r.appendError(msg)
		r.rec.MarkRemoved("PO Boxes not allowed")
		return false
	}

	// Rural and highway-contract routes carry no house number or street
	// suffix; accept them before the structural checks.
	if ruralRouteRe.MatchString(r.addr) {
		return true
	}

	// Structural check on first pass only: an optional directional prefix,
	// then the house number.
	if !r.opts.IsCorrection && !leadingNumberRe.MatchString(r.addr) {
		r.appendError("Address lacks leading number (optionally prefixed by direction) followed by street name")
		r.rec.MarkRemoved("Address lacks leading number")
		return false
	}

	// Street-ending resolution runs in the first-pass forms; a row already
	// carrying a validated correction skips it and relies on the final check.
	shouldCheckEnding := r.opts.NonStandardOnly
	if !shouldCheckEnding && !r.opts.IsCorrection {
		c, ok := r.led.LatestCorrection(r.rec.OrigRow, model.ColAddress)
		shouldCheckEnding = !ok || c.Status != model.CorrectionValid
	}
	if shouldCheckEnding {
		validationPassed = r.resolveStreetEnding()
	}

	// Trailing unit designators are stripped only from otherwise valid
	// addresses, and the truncation must leave a plausible street name.
	if validationPassed {
		if loc := nonStandardEndingRe.FindStringSubmatchIndex(r.addr); loc != nil {
			cut := loc[2]
			if cut < 0 {
				cut = loc[4]
			}
			corrected := strings.TrimSpace(r.addr[:cut])
			if streetNameRe.MatchString(corrected) {
				r.recordCorrection(r.addr, corrected, "Non-Standard Ending Removal")
				r.addr = corrected
			} else {
				r.appendError("Corrected address lacks valid street name after non-standard ending removal")
				validationPassed = false
			}
		}
	}

	// Numbered road types need no standard suffix.
	if specificRoadRe.MatchString(r.addr) {
		if validationPassed {
			return true
		}
	}

	// An address with a street ending must still carry a house number.
	if m := streetEndingRe.FindStringIndex(r.addr); m != nil {
		before := strings.TrimSpace(r.addr[:m[0]])
		if !leadingNumberRe.MatchString(before) {
			r.appendError(r.errMsg("No house number (optionally prefixed by direction)"))
			r.rec.MarkRemoved("No house number")
			return false
		}
	}

	// Anything from the hard-forbidden class that survived the strip.
	if forbiddenCharRe.MatchString(r.addr) {
		r.appendError(r.errMsg("Invalid format"))
		return false
	}

	// Final ending check covers addresses corrected after the primary
	// resolution, including externally verified ones.
	if !specificRoadRe.MatchString(r.addr) {
		if !streetEndingRe.MatchString(r.addr) &&
			!compassPairRe.MatchString(r.addr) &&
			!numberNumCompassRe.MatchString(r.addr) {
			r.appendError(r.errMsg("Lacks standard street ending"))
			validationPassed = false
			if r.opts.IsCorrection {
				r.rec.MarkRemoved("Removal after Invalid response from Smarty")
			}
		}
	}

	return validationPassed
}

// resolveStreetEnding is the core disambiguation step: specific road types
// are accepted outright, otherwise the last standard suffix or a trailing
// compass pattern decides, and text after a suffix must be a permitted
// extension or a removable unit designator.
func (r *addressRun) resolveStreetEnding() bool {
	if specificRoadRe.MatchString(r.addr) {
		return true
	}

	endings := streetEndingRe.FindAllStringIndex(r.addr, -1)
	if len(endings) == 0 {
		if compassPairRe.MatchString(r.addr) || numberNumCompassRe.MatchString(r.addr) {
			return true
		}
		r.appendError(r.errMsg("Lacks standard street ending"))
		return false
	}

	last := endings[len(endings)-1]
	endingEnd := last[1]
	remaining := strings.TrimSpace(r.addr[endingEnd:])
	beforeEnding := strings.TrimSpace(r.addr[:last[0]])

	passed := true
	if !streetNameRe.MatchString(beforeEnding) {
		r.appendError("Invalid street name format before street ending")
		passed = false
	}

	if remaining == "" {
		return passed
	}

	// A trailing unit designator takes precedence over truncation so the
	// recorded correction names what was actually removed.
	if loc := nonStandardEndingRe.FindStringSubmatchIndex(r.addr); loc != nil {
		cut := loc[2]
		if cut < 0 {
			cut = loc[4]
		}
		if cut >= endingEnd {
			corrected := strings.TrimSpace(r.addr[:cut])
			if streetNameRe.MatchString(corrected) {
				r.recordCorrection(r.addr, corrected, "Non-Standard Ending Removal")
				r.addr = corrected
				return passed
			}
		}
	}

	if permittedExtRe.MatchString(remaining) {
		return passed
	}

	corrected := strings.TrimSpace(r.addr[:endingEnd])
	r.recordCorrection(r.addr, corrected, "Non-Permitted Extension Removal After Street Ending")
	r.addr = corrected
	return passed
}

// CanonicalizeRoadPatterns rewrites spelled-out road types to their
// submittable abbreviations. Runs once over the working set before
// verification candidates are built.
func CanonicalizeRoadPatterns(led *Ledger, rec *model.Record) {
	addr := rec.Address
	converted := farmToMarketRe.ReplaceAllString(addr, "FM")
	converted = countyRoadRe.ReplaceAllString(converted, "CR")
	converted = privateRoadRe.ReplaceAllString(converted, "PVT RD")
	if converted == addr {
		return
	}
	led.RecordCorrection(model.CorrectionEntry{
		OrigRow:   rec.OrigRow,
		Column:    model.ColAddress,
		Original:  addr,
		Corrected: &converted,
		Type:      "Address Pattern Conversion",
		Status:    model.CorrectionValid,
	})
	rec.Address = converted
}

// StripUnitDesignators removes trailing unit/suite/apartment tokens from an
// externally corrected delivery line. The token vocabulary is wider than the
// non-standard-ending list because verification services echo designators the
// submitter never typed.
func StripUnitDesignators(address string) string {
	cleaned := unitDesignatorRe.ReplaceAllString(address, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
}

// TrimNonStandardEnding truncates a trailing unit designator from an address,
// reporting whether anything was removed.
func TrimNonStandardEnding(address string) (string, bool) {
	loc := nonStandardEndingRe.FindStringIndex(address)
	if loc == nil {
		return address, false
	}
	return strings.TrimSpace(address[:loc[0]]), true
}
