// Package grid orders, filters and windows company records.
//
// The ordering policy is total: absent values go last in either direction,
// and ties (including two absent values) fall back to descending id. A
// source that pushes sorting down to a database must follow the same rules.
package grid

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/crm/internal/record"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the active sort key and direction of a list view.
type SortState struct {
	Key string
	Dir Direction
}

// DefaultSort is id descending.
func DefaultSort() SortState {
	return SortState{Key: "id", Dir: Desc}
}

// Toggle returns the state after the user selects key: the same key flips
// direction, a new key starts ascending.
func (s SortState) Toggle(key string) SortState {
	if key == s.Key {
		if s.Dir == Asc {
			return SortState{Key: key, Dir: Desc}
		}
		return SortState{Key: key, Dir: Asc}
	}
	return SortState{Key: key, Dir: Asc}
}

// ParseSort builds a SortState from request parameters. Unknown or
// unsortable keys fall back to DefaultSort; unknown directions to ascending.
func ParseSort(key, dir string) SortState {
	c, ok := record.Lookup(key)
	if !ok || !c.Sortable {
		return DefaultSort()
	}
	d := Direction(strings.ToLower(dir))
	if d != Asc && d != Desc {
		d = Asc
	}
	return SortState{Key: key, Dir: d}
}

// Comparator orders records for a SortState using French collation for text
// keys. A Comparator is not safe for concurrent use.
type Comparator struct {
	coll *collate.Collator
}

// NewCollator returns the case-insensitive French collator text keys sort
// with. Collators are not safe for concurrent use.
func NewCollator() *collate.Collator {
	return collate.New(language.French, collate.IgnoreCase)
}

// NewComparator returns a Comparator with case-insensitive French collation.
func NewComparator() *Comparator {
	return &Comparator{coll: NewCollator()}
}

// Compare returns a negative number when a sorts before b, positive when
// after. It never returns 0 for records with distinct ids.
func (c *Comparator) Compare(a, b record.Record, s SortState) int {
	col, _ := record.Lookup(s.Key)

	var cmp int
	if col.Kind.Numeric() {
		av, aok := present(a.Number(s.Key))
		bv, bok := present(b.Number(s.Key))
		switch {
		case !aok && !bok:
			return byIDDesc(a, b)
		case !aok:
			return 1
		case !bok:
			return -1
		case av == bv:
			return byIDDesc(a, b)
		case av < bv:
			cmp = -1
		default:
			cmp = 1
		}
	} else {
		av, bv := a.Text(s.Key), b.Text(s.Key)
		switch {
		case av == "" && bv == "":
			return byIDDesc(a, b)
		case av == "":
			return 1
		case bv == "":
			return -1
		}
		cmp = c.coll.CompareString(av, bv)
		if cmp == 0 {
			return byIDDesc(a, b)
		}
	}

	if s.Dir == Desc {
		return -cmp
	}
	return cmp
}

// Sort orders records in place.
func (c *Comparator) Sort(records []record.Record, s SortState) {
	sort.SliceStable(records, func(i, j int) bool {
		return c.Compare(records[i], records[j], s) < 0
	})
}

// present treats zero as absent, matching how a falsy value sorts.
func present(v float64, ok bool) (float64, bool) {
	return v, ok && v != 0
}

func byIDDesc(a, b record.Record) int {
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
