/*
filter.go - Entity join & filter for the reporting views

PURPOSE:
  Given all entries of one kind, all users and a filter, produce the entries
  matching every supplied criterion, each enriched with its rider's name.
  This is the single place where entries are joined to riders.

CRITERIA (all ANDed, all optional):
  Day:     exact calendar day of the timestamp, time of day ignored
  Range:   inclusive day range
  RiderID: exact equality on the foreign key
  Type:    exact entry type (entries without a type ignore it)
  Shift:   exact shift
  Search:  case-insensitive substring of the rider name, the rider
           matricule, or any of the entry's own search fields

  An empty filter is the identity: every entry comes back, enriched.

JOIN MISSES:
  A rider id that doesn't resolve is tolerated. The entry is kept with the
  UnknownRiderName placeholder; nothing errors.

ORDER:
  Newest first by timestamp. Entries with an unknown (non-positive)
  timestamp sort last. Ties break on id so output is deterministic.

SEE ALSO:
  - aggregate.go: consumes the filtered set
  - report/: exports the filtered set
*/
package fleet

import (
	"sort"
	"strings"
	"time"
)

// UnknownRiderName is shown for entries whose rider no longer resolves.
const UnknownRiderName = "Rider inconnu"

// =============================================================================
// DIRECTORY - Rider lookup by id
// =============================================================================

// Directory indexes users by id.
type Directory map[UserID]User

func NewDirectory(users []User) Directory {
	d := make(Directory, len(users))
	for _, u := range users {
		d[u.ID] = u
	}
	return d
}

// Name returns the user's display name or the placeholder.
func (d Directory) Name(id UserID) string {
	if u, ok := d[id]; ok {
		return u.Name
	}
	return UnknownRiderName
}

// =============================================================================
// FILTER
// =============================================================================

// Filter selects entries. The zero value selects everything.
type Filter struct {
	Day     *Day
	Range   *DayRange
	RiderID UserID
	Type    EntryType
	Shift   Shift
	Search  string
}

// IsEmpty reports whether no criterion is set.
func (f Filter) IsEmpty() bool {
	return f.Day == nil && f.Range == nil && f.RiderID == "" &&
		f.Type == "" && f.Shift == 0 && strings.TrimSpace(f.Search) == ""
}

// Validate rejects criteria that can never match anything meaningful.
func (f Filter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be ouverture, fermeture or carburant"}
	}
	if f.Shift != 0 && !f.Shift.Valid() {
		return &ValidationError{Field: "shift", Message: "must be 1 or 2"}
	}
	if f.Range != nil {
		return f.Range.Validate()
	}
	return nil
}

func (f Filter) matchesEntry(e Entry, loc *time.Location) bool {
	if f.RiderID != "" && e.Owner() != f.RiderID {
		return false
	}
	if f.Type != "" && e.Kind() != "" && e.Kind() != f.Type {
		return false
	}
	if f.Shift != 0 && e.WorkShift() != f.Shift {
		return false
	}
	if f.Day != nil || f.Range != nil {
		day, ok := EntryDay(e, loc)
		if !ok {
			return false
		}
		if f.Day != nil && !day.Equal(*f.Day) {
			return false
		}
		if f.Range != nil && !f.Range.Contains(day) {
			return false
		}
	}
	return true
}

// =============================================================================
// ENRICHED ENTRY
// =============================================================================

// Enriched is an entry joined with its rider.
type Enriched[E Entry] struct {
	Entry          E
	RiderName      string
	RiderMatricule string
	RiderFound     bool
}

func enrich[E Entry](e E, dir Directory) Enriched[E] {
	en := Enriched[E]{Entry: e, RiderName: UnknownRiderName}
	if u, ok := dir[e.Owner()]; ok {
		en.RiderName = u.Name
		en.RiderMatricule = u.Matricule()
		en.RiderFound = true
	}
	return en
}

func (en Enriched[E]) matchesSearch(needle string) bool {
	if strings.Contains(strings.ToLower(en.RiderName), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(en.RiderMatricule), needle) {
		return true
	}
	for _, field := range en.Entry.SearchFields() {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// =============================================================================
// APPLY
// =============================================================================

// Apply filters entries, joins them with dir and sorts newest first.
// The input slice is not modified. A nil loc means UTC.
func Apply[E Entry](entries []E, dir Directory, f Filter, loc *time.Location) []Enriched[E] {
	if loc == nil {
		loc = time.UTC
	}
	needle := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Enriched[E], 0, len(entries))
	for _, e := range entries {
		if !f.matchesEntry(e, loc) {
			continue
		}
		en := enrich(e, dir)
		if needle != "" && !en.matchesSearch(needle) {
			continue
		}
		out = append(out, en)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].Entry, out[j].Entry)
	})
	return out
}

// SortNewestFirst sorts entries in place, newest first.
func SortNewestFirst[E Entry](entries []E) {
	sort.SliceStable(entries, func(i, j int) bool {
		return newerFirst(entries[i], entries[j])
	})
}

func newerFirst(a, b Entry) bool {
	ta, tb := a.Stamp(), b.Stamp()
	if ta <= 0 {
		ta = 0
	}
	if tb <= 0 {
		tb = 0
	}
	if ta != tb {
		return ta > tb
	}
	return a.Key() < b.Key()
}

// Entries strips the enrichment.
func Entries[E Entry](enriched []Enriched[E]) []E {
	out := make([]E, len(enriched))
	for i, en := range enriched {
		out[i] = en.Entry
	}
	return out
}

// =============================================================================
// RIDER SEARCH - Dashboard rider list
// =============================================================================

// SearchRiders returns the users whose name, email or matricule contains term,
// case-insensitively. An empty term returns every user. Order is preserved.
func SearchRiders(users []User, term string) []User {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]User, 0, len(users))
	for _, u := range users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) ||
			strings.Contains(strings.ToLower(u.Matricule()), needle) {
			out = append(out, u)
		}
	}
	return out
}
