package dataprocessing

import (
	"fmt"
	"sort"
	"time"

	"lacphcli/pkg/contracts/domain"
)

// Nesting describes how far a statistic block's entry list extends.
type Nesting string

const (
	// NestingFlat lists entries in a single paragraph below the header. The
	// list ends at the first blank line or at "Under Investigation".
	NestingFlat Nesting = "flat"
	// NestingNested spreads entries over nested paragraphs. The list runs
	// from the header to "Under Investigation".
	NestingNested Nesting = "nested"
)

// Layout holds the format rules of one bulletin era.
type Layout struct {
	Nesting Nesting
	// RecordsOutbreak is set once bulletins mark correctional facility
	// outbreaks in the area table.
	RecordsOutbreak bool
}

// Era is a layout and the first date it applies to.
type Era struct {
	From   domain.Date
	Layout Layout
}

// EraTable is an ascending list of eras. It is resolved once per document.
type EraTable []Era

// Era boundaries of the published bulletins.
var (
	NestedListsFrom      = domain.NewDate(2020, time.April, 4)
	OutbreakRecordedFrom = domain.NewDate(2020, time.May, 14)
)

// DefaultEras returns the eras observed in published bulletins.
func DefaultEras() EraTable {
	return EraTable{
		{From: domain.NewDate(2020, time.March, 1), Layout: Layout{Nesting: NestingFlat}},
		{From: NestedListsFrom, Layout: Layout{Nesting: NestingNested}},
		{From: OutbreakRecordedFrom, Layout: Layout{Nesting: NestingNested, RecordsOutbreak: true}},
	}
}

// NewEraTable validates and sorts eras.
func NewEraTable(eras ...Era) (EraTable, error) {
	if len(eras) == 0 {
		return nil, fmt.Errorf("era table is empty")
	}
	table := append(EraTable(nil), eras...)
	sort.SliceStable(table, func(i, j int) bool { return table[i].From.Before(table[j].From) })
	for i, e := range table {
		if e.Layout.Nesting != NestingFlat && e.Layout.Nesting != NestingNested {
			return nil, fmt.Errorf("era %s: unknown nesting %q", e.From, e.Layout.Nesting)
		}
		if i > 0 && table[i-1].From == e.From {
			return nil, fmt.Errorf("era %s listed twice", e.From)
		}
	}
	return table, nil
}

// Resolve returns the layout in force on date. Dates before the first era
// use the first era's layout.
func (t EraTable) Resolve(date domain.Date) Layout {
	if len(t) == 0 {
		return Layout{Nesting: NestingNested}
	}
	layout := t[0].Layout
	for _, e := range t {
		if e.From.After(date) {
			break
		}
		layout = e.Layout
	}
	return layout
}
