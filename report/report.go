/*
Package report turns filtered, enriched entries into downloadable files.

PURPOSE:
  The admin reports page exports whatever the current filter shows. This
  package owns the column layout, the localized tokens and the two file
  formats (CSV and XLSX). It never filters or sorts: callers pass the
  output of fleet.Apply.

COLUMNS (fixed order):
  mileage:   Date, Time, Rider, Matricule, Type, Shift, Kilometrage, Amount
  equipment: Date, Rider, Motorcycle Matricule, Phone ID, Helmet, Document,
             Exchange Money, Exchange USD, Exchange CDF
  riders:    Name, Email, Matricule, Entries, Last Entry

FORMATTING:
  - optional numbers render as "" when absent, never "null"
  - booleans render Oui/Non (fr) or Yes/No (en)
  - an entry with an unknown timestamp shows its stored date and no time
  - an empty input produces a header row and nothing else

FILE NAMES:
  <kind>_<YYYY-MM-DD>.<ext>, e.g. mileage_report_2024-01-15.csv

SEE ALSO:
  - write.go: CSV and XLSX encoders
  - api/reports.go: HTTP download endpoint
*/
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fleetlog/fleet"
)

// =============================================================================
// KINDS & FORMATS
// =============================================================================

type Kind string

const (
	KindMileage   Kind = "mileage_report"
	KindEquipment Kind = "equipments_report"
	KindRiders    Kind = "riders_report"
)

// ParseKind accepts the full kind or its short form (mileage, equipment, riders).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mileage", string(KindMileage):
		return KindMileage, nil
	case "equipment", "equipments", string(KindEquipment):
		return KindEquipment, nil
	case "riders", string(KindRiders):
		return KindRiders, nil
	}
	return "", &fleet.ValidationError{Field: "kind", Message: "must be mileage, equipment or riders"}
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to CSV when s is empty.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", &fleet.ValidationError{Field: "format", Message: "must be csv or xlsx"}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName stamps the report kind with the day of now in loc.
func FileName(kind Kind, format Format, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s_%s.%s", kind, fleet.DayOfTime(now, loc).String(), format)
}

// =============================================================================
// TABLE - Format-independent report content
// =============================================================================

// Column describes one report column. Numeric columns are written as numbers
// in spreadsheets.
type Column struct {
	Title   string
	Numeric bool
}

// Table is a rendered report: header plus rows of display strings.
type Table struct {
	Kind    Kind
	Columns []Column
	Rows    [][]string
}

func (t Table) Header() []string {
	h := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		h[i] = c.Title
	}
	return h
}

// Options controls localisation. A nil Location means UTC.
type Options struct {
	Language fleet.Language
	Location *time.Location
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func columns(titles []string, numeric ...int) []Column {
	cols := make([]Column, len(titles))
	for i, title := range titles {
		cols[i] = Column{Title: title}
	}
	for _, i := range numeric {
		cols[i].Numeric = true
	}
	return cols
}

// =============================================================================
// BUILDERS
// =============================================================================

// MileageTable renders mileage entries in the given order.
func MileageTable(entries []fleet.Enriched[fleet.MileageEntry], opts Options) Table {
	l := localeFor(opts.Language)
	t := Table{Kind: KindMileage, Columns: columns(l.mileageHeader, 5, 6, 7)}
	t.Rows = make([][]string, 0, len(entries))

	for _, en := range entries {
		e := en.Entry
		date, clock := l.stamp(e, opts.loc())
		t.Rows = append(t.Rows, []string{
			date,
			clock,
			en.RiderName,
			en.RiderMatricule,
			l.entryType(e.Type),
			strconv.Itoa(int(e.Shift)),
			strconv.FormatInt(e.Kilometrage, 10),
			optionalDecimal(e.Amount),
		})
	}
	return t
}

// EquipmentTable renders equipment checklists in the given order.
func EquipmentTable(entries []fleet.Enriched[fleet.EquipmentEntry], opts Options) Table {
	l := localeFor(opts.Language)
	t := Table{Kind: KindEquipment, Columns: columns(l.equipmentHeader, 7, 8)}
	t.Rows = make([][]string, 0, len(entries))

	for _, en := range entries {
		e := en.Entry
		date, _ := l.stamp(e, opts.loc())
		t.Rows = append(t.Rows, []string{
			date,
			en.RiderName,
			e.MotorcycleMatricule,
			e.PhoneID,
			l.bool(e.HasHelmet),
			l.bool(e.HasMotorcycleDocument),
			l.bool(e.HasExchangeMoney),
			optionalDecimal(e.ExchangeMoneyUSD),
			optionalDecimal(e.ExchangeMoneyCDF),
		})
	}
	return t
}

// RiderRow is one line of the riders export.
type RiderRow struct {
	User  fleet.User
	Stats fleet.RiderStats
}

// RidersTable renders the dashboard rider list.
func RidersTable(rows []RiderRow, opts Options) Table {
	l := localeFor(opts.Language)
	t := Table{Kind: KindRiders, Columns: columns(l.ridersHeader, 3)}
	t.Rows = make([][]string, 0, len(rows))

	for _, r := range rows {
		last := l.none
		if r.Stats.LastEntry != nil {
			ts := time.UnixMilli(*r.Stats.LastEntry).In(opts.loc())
			last = ts.Format(l.dateLayout + " " + l.timeLayout)
		}
		t.Rows = append(t.Rows, []string{
			r.User.Name,
			r.User.Email,
			r.User.Matricule(),
			strconv.Itoa(r.Stats.TotalEntries),
			last,
		})
	}
	return t
}

// stamp returns the display date and time of an entry. Entries without a
// usable timestamp fall back to their stored date and have no time.
func (l labels) stamp(e fleet.Entry, loc *time.Location) (date, clock string) {
	if e.Stamp() > 0 {
		t := time.UnixMilli(e.Stamp()).In(loc)
		return t.Format(l.dateLayout), t.Format(l.timeLayout)
	}
	if d, ok := fleet.EntryDay(e, loc); ok {
		return d.Time.Format(l.dateLayout), ""
	}
	return e.DateString(), ""
}

func optionalDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
