// pkg/ingest/reader.go
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/openbdc/subval/pkg/model"
	"github.com/openbdc/subval/pkg/validate"
)

// ErrHeaderNotFound means no row in the scan window resolved to a complete
// header after alias normalization.
var ErrHeaderNotFound = errors.New("no header row found")

// maxHeaderScanRows is how many physical rows are scanned for the header.
const maxHeaderScanRows = 7

// columnAliases maps common header variations (lowercased, trimmed) to the
// canonical column names.
var columnAliases = map[string]string{
	"zipcode":        model.ColZip,
	"zip code":       model.ColZip,
	"zip_code":       model.ColZip,
	"postal code":    model.ColZip,
	"postal_code":    model.ColZip,
	"postalcode":     model.ColZip,
	"longitude":      model.ColLon,
	"long":           model.ColLon,
	"lng":            model.ColLon,
	"lon_deg":        model.ColLon,
	"longitude_deg":  model.ColLon,
	"x":              model.ColLon,
	"latitude":       model.ColLat,
	"lat_deg":        model.ColLat,
	"latitude_deg":   model.ColLat,
	"y":              model.ColLat,
	"customer_id":    model.ColCustomer,
	"cust_id":        model.ColCustomer,
	"street_address": model.ColAddress,
	"addr":           model.ColAddress,
	"address1":       model.ColAddress,
	"address_1":      model.ColAddress,
	"region":         model.ColState,
	"st":             model.ColState,
	"download_speed": model.ColDownload,
	"down":           model.ColDownload,
	"up":             model.ColUpload,
	"up_speed":       model.ColUpload,
	"voip":           model.ColVoipLines,
	"voip_lines":     model.ColVoipLines,
	"phone":          model.ColVoipLines,
	"phone_lines":    model.ColVoipLines,
	"lines":          model.ColVoipLines,
	"tech":           model.ColTechnology,
}

// Reader loads a subscriber CSV into the working set, locating the header
// row, resolving column aliases, and applying the early cleanup corrections.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a reader.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// decode returns the file contents as UTF-8, falling back to Latin-1 when
// the raw bytes are not valid UTF-8.
func (r *Reader) decode(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	r.logger.Debug("input is not valid UTF-8, decoding as latin1")
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode input as latin1: %w", err)
	}
	return string(decoded), nil
}

// headerConflict is an alias header cell that lost to an exact canonical
// name claiming the same column.
type headerConflict struct {
	alias  string
	column string
}

// resolveHeader maps a candidate header row to canonical column indexes. An
// exact canonical name always beats an alias claiming the same column; the
// losing aliases are returned so the caller can report them.
func resolveHeader(cells []string) (map[string]int, []headerConflict) {
	canonical := make(map[string]bool, len(model.Columns))
	for _, col := range model.Columns {
		canonical[col] = true
	}

	present := make(map[string]bool)
	for _, cell := range cells {
		name := strings.ToLower(strings.TrimSpace(cell))
		if canonical[name] {
			present[name] = true
		}
	}

	indexes := make(map[string]int)
	var conflicts []headerConflict
	for i, cell := range cells {
		name := strings.ToLower(strings.TrimSpace(cell))
		if canonical[name] {
			if _, taken := indexes[name]; !taken {
				indexes[name] = i
			}
			continue
		}
		if target, ok := columnAliases[name]; ok {
			if present[target] {
				conflicts = append(conflicts, headerConflict{alias: name, column: target})
				continue
			}
			if _, taken := indexes[target]; !taken {
				indexes[target] = i
			}
		}
	}
	return indexes, conflicts
}

func missingColumns(indexes map[string]int) []string {
	var missing []string
	for _, col := range model.Columns {
		if _, ok := indexes[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Load reads the file into records, recording early-cleanup corrections in
// the ledger. Structural failures (unreadable file, unlocatable header,
// missing columns) abort the run before validation begins.
func (r *Reader) Load(path string, led *validate.Ledger) ([]*model.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	text, err := r.decode(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrHeaderNotFound
	}

	headerIdx := -1
	var indexes map[string]int
	for i := 0; i < len(rows) && i < maxHeaderScanRows; i++ {
		candidate, conflicts := resolveHeader(rows[i])
		if len(missingColumns(candidate)) == 0 {
			headerIdx = i
			indexes = candidate
			r.logger.Debug("header row located", zap.Int("row", i))
			for _, c := range conflicts {
				r.logger.Warn("header contains both canonical column and alias, using canonical",
					zap.String("column", c.column),
					zap.String("alias", c.alias))
			}
			break
		}
	}
	if headerIdx < 0 {
		// Report what the best candidate row was missing.
		best, _ := resolveHeader(rows[0])
		return nil, fmt.Errorf("%w: missing columns: %s", ErrHeaderNotFound,
			strings.Join(missingColumns(best), ", "))
	}

	records := make([]*model.Record, 0, len(rows)-headerIdx-1)
	for i, row := range rows[headerIdx+1:] {
		rec := &model.Record{OrigRow: headerIdx + 2 + i}
		for _, col := range model.Columns {
			idx := indexes[col]
			if idx < len(row) {
				rec.Set(col, row[idx])
			}
		}
		r.earlyClean(led, rec)
		records = append(records, rec)
	}

	r.logger.Info("loaded subscriber file",
		zap.String("path", path),
		zap.Int("rows", len(records)),
		zap.Int("header_row", headerIdx+1))
	return records, nil
}

// earlyClean applies the pre-validation cleanup: comma stripping on customer,
// address, and the numeric columns, technology lowercasing, and city
// uppercasing. Each change is recorded as a correction.
func (r *Reader) earlyClean(led *validate.Ledger, rec *model.Record) {
	record := func(col, original, corrected, typ string) {
		led.RecordCorrection(model.CorrectionEntry{
			OrigRow:   rec.OrigRow,
			Column:    col,
			Original:  original,
			Corrected: &corrected,
			Type:      typ,
			Status:    model.CorrectionValid,
		})
	}

	stripCommas := func(col, typ string) {
		val := rec.Get(col)
		if !strings.Contains(val, ",") {
			return
		}
		cleaned := strings.ReplaceAll(val, ",", "")
		record(col, val, cleaned, typ)
		rec.Set(col, cleaned)
	}

	stripCommas(model.ColCustomer, "Comma Removal")
	stripCommas(model.ColAddress, "Early Comma Removal")
	for _, col := range []string{model.ColDownload, model.ColUpload, model.ColVoipLines, model.ColZip} {
		stripCommas(col, capitalizeCol(col)+" Comma Removal")
	}

	tech := rec.Technology
	lowered := strings.ToLower(strings.TrimSpace(tech))
	if tech != "" && tech != lowered {
		record(model.ColTechnology, tech, lowered, "Early Technology Case Normalization")
		rec.Technology = lowered
	}

	city := rec.City
	upper := strings.ToUpper(strings.TrimSpace(city))
	if city != "" && city != upper {
		record(model.ColCity, city, upper, "Early City Case Normalization")
		rec.City = upper
	}
}

func capitalizeCol(col string) string {
	return strings.ToUpper(col[:1]) + strings.ToLower(col[1:])
}
