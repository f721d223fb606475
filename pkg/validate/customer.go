// pkg/validate/customer.go
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// comparisonColumns are the data fields compared when deciding whether two
// rows describe the same subscriber, in composite-key order.
var comparisonColumns = []string{
	model.ColLat, model.ColLon, model.ColAddress, model.ColCity,
	model.ColState, model.ColZip, model.ColDownload, model.ColUpload,
	model.ColVoipLines, model.ColBusiness, model.ColTechnology,
}

// technologyPriority ranks technologies for duplicate elimination, lower is
// better.
var technologyPriority = map[string]int{
	"fiber":               0,
	"wireless_pal":        1,
	"wireless_gaa":        2,
	"wireless_unlicensed": 3,
}

// DuplicateResolver renames or eliminates rows that collide on customer
// identity or on the full data signature. Rows marked for removal still
// participate in grouping so identity decisions see the whole working set.
type DuplicateResolver struct {
	logger *zap.Logger
}

// NewDuplicateResolver creates a duplicate resolver.
func NewDuplicateResolver(logger *zap.Logger) *DuplicateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateResolver{logger: logger}
}

// groupBy buckets records by key, preserving first-occurrence order of keys.
func groupBy(recs []*model.Record, key func(*model.Record) string) ([]string, map[string][]*model.Record) {
	var order []string
	groups := make(map[string][]*model.Record)
	for _, rec := range recs {
		k := key(rec)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}
	return order, groups
}

func dataEqual(a, b *model.Record) bool {
	for _, col := range comparisonColumns {
		if a.Get(col) != b.Get(col) {
			return false
		}
	}
	return true
}

// Resolve runs both rename passes with one shared suffix counter, so renamed
// IDs never collide across passes.
func (d *DuplicateResolver) Resolve(led *Ledger, recs []*model.Record) {
	counter := 1
	counter = d.renameIDDuplicates(led, recs, counter)
	d.renameDataDuplicates(led, recs, counter)
}

// renameIDDuplicates renames every repeat of a case-insensitive customer ID,
// keeping the first occurrence untouched. Returns the next suffix value.
func (d *DuplicateResolver) renameIDDuplicates(led *Ledger, recs []*model.Record, counter int) int {
	order, groups := groupBy(recs, func(r *model.Record) string {
		return strings.ToLower(r.Customer)
	})
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		first := group[0]
		for _, rec := range group[1:] {
			newID := fmt.Sprintf("%s_%03d", rec.Customer, counter)
			counter++

			msg := "Duplicate customer ID, renamed to " + newID
			if dataEqual(rec, first) {
				msg += " (identical data)"
			}
			led.RecordCorrection(model.CorrectionEntry{
				OrigRow:   rec.OrigRow,
				Column:    model.ColCustomer,
				Original:  rec.Customer,
				Corrected: &newID,
				Type:      "Duplicate Customer Rename",
				Status:    model.CorrectionValid,
			})
			led.RecordError(rec.OrigRow, model.ColCustomer, msg, rec.Customer)
			d.logger.Debug("renamed duplicate customer id",
				zap.Int("orig_row", rec.OrigRow),
				zap.String("new_id", newID))
			rec.Customer = newID
		}
	}
	return counter
}

// renameDataDuplicates renames rows whose full data signature matches an
// earlier row under a different customer ID.
func (d *DuplicateResolver) renameDataDuplicates(led *Ledger, recs []*model.Record, counter int) {
	order, groups := groupBy(recs, func(r *model.Record) string {
		vals := make([]string, len(comparisonColumns))
		for i, col := range comparisonColumns {
			vals[i] = r.Get(col)
		}
		return strings.Join(vals, "|")
	})
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		keptID := group[0].Customer
		for _, rec := range group[1:] {
			newID := fmt.Sprintf("%s_%03d", rec.Customer, counter)
			counter++

			led.RecordCorrection(model.CorrectionEntry{
				OrigRow:   rec.OrigRow,
				Column:    model.ColCustomer,
				Original:  rec.Customer,
				Corrected: &newID,
				Type:      "Data-based Duplicate Rename",
				Status:    model.CorrectionValid,
			})
			led.RecordError(rec.OrigRow, model.ColCustomer,
				fmt.Sprintf("Data-based duplicate, renamed to %s (identical data to customer %s)", newID, keptID),
				rec.Customer)
			d.logger.Debug("renamed data-based duplicate",
				zap.Int("orig_row", rec.OrigRow),
				zap.String("kept_id", keptID),
				zap.String("new_id", newID))
			rec.Customer = newID
		}
	}
}

// Eliminate is the removal variant: exact full-row duplicates are dropped
// outright, then each customer ID keeps its single best row by download
// speed, upload speed, technology priority, and finally input order.
func (d *DuplicateResolver) Eliminate(led *Ledger, recs []*model.Record) {
	order, groups := groupBy(recs, func(r *model.Record) string {
		vals := make([]string, 0, len(comparisonColumns)+1)
		vals = append(vals, strings.ToLower(r.Customer))
		for _, col := range comparisonColumns {
			vals = append(vals, r.Get(col))
		}
		return strings.Join(vals, "|")
	})
	for _, key := range order {
		group := groups[key]
		for _, rec := range group[1:] {
			reason := fmt.Sprintf("Exact duplicate of customer %s, removed", group[0].Customer)
			rec.MarkRemoved(reason)
			led.RecordError(rec.OrigRow, model.ColCustomer, reason, rec.Customer)
		}
	}

	order, groups = groupBy(recs, func(r *model.Record) string {
		return strings.ToLower(r.Customer)
	})
	for _, key := range order {
		var live []*model.Record
		for _, rec := range groups[key] {
			if !rec.Removed {
				live = append(live, rec)
			}
		}
		if len(live) < 2 {
			continue
		}
		best := live[0]
		for _, rec := range live[1:] {
			if betterRow(rec, best) {
				best = rec
			}
		}
		for _, rec := range live {
			if rec == best {
				continue
			}
			reason := fmt.Sprintf("Duplicate customer ID, removed (%s)", eliminationReason(best, rec))
			rec.MarkRemoved(reason)
			led.RecordError(rec.OrigRow, model.ColCustomer, reason, rec.Customer)
		}
	}
}

func speed(rec *model.Record, col string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(rec.Get(col)), 64)
	if err != nil {
		return -1
	}
	return f
}

func techRank(rec *model.Record) int {
	if rank, ok := technologyPriority[strings.ToLower(strings.TrimSpace(rec.Technology))]; ok {
		return rank
	}
	return len(technologyPriority)
}

// betterRow reports whether a beats b under the elimination ranking. Equal
// rows favor b, which preserves first occurrence.
func betterRow(a, b *model.Record) bool {
	if speed(a, model.ColDownload) != speed(b, model.ColDownload) {
		return speed(a, model.ColDownload) > speed(b, model.ColDownload)
	}
	if speed(a, model.ColUpload) != speed(b, model.ColUpload) {
		return speed(a, model.ColUpload) > speed(b, model.ColUpload)
	}
	return techRank(a) < techRank(b)
}

// eliminationReason names the comparison that decided kept over removed.
func eliminationReason(kept, removed *model.Record) string {
	if speed(kept, model.ColDownload) != speed(removed, model.ColDownload) {
		return "lower download speed than kept row " + strconv.Itoa(kept.OrigRow)
	}
	if speed(kept, model.ColUpload) != speed(removed, model.ColUpload) {
		return "lower upload speed than kept row " + strconv.Itoa(kept.OrigRow)
	}
	if techRank(kept) != techRank(removed) {
		return "lower technology priority than kept row " + strconv.Itoa(kept.OrigRow)
	}
	return "later occurrence than kept row " + strconv.Itoa(kept.OrigRow)
}
