// Package cohort holds one year of divided population: a dense
// {house × group × sex × age} table with transactional updates and
// copy-on-advance aging.
package cohort

import (
	"slices"

	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// House is one dwelling row of a table. Capacity is the balanced population
// the dwelling was divided with and serves as its occupancy reference.
type House struct {
	ID          territory.ID
	TerritoryID territory.ID
	Capacity    int
}

// Table is an immutable-by-convention snapshot of one year. Mutations go
// through Update; a new year is produced by Advance.
type Table struct {
	Year int

	ages    int
	groups  []demography.SocialGroup
	primary int
	houses  []House
	index   map[territory.ID]int
	cells   []demography.Cells
}

// NewTable creates an empty table. Groups must list primary groups first.
func NewTable(year int, groups []demography.SocialGroup, ages int, houses []House) (*Table, error) {
	if ages <= 0 {
		return nil, diag.Integrityf("cohort table needs at least one age, got %d", ages)
	}
	primary := 0
	for i, g := range groups {
		if g.Primary {
			if i != primary {
				return nil, diag.Integrityf("primary group %q listed after additional groups", g.Name)
			}
			primary++
		}
	}
	if primary == 0 {
		return nil, diag.Integrityf("cohort table has no primary groups")
	}

	sorted := slices.Clone(houses)
	slices.SortFunc(sorted, func(a, b House) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	t := &Table{
		Year:    year,
		ages:    ages,
		groups:  slices.Clone(groups),
		primary: primary,
		houses:  sorted,
		index:   make(map[territory.ID]int, len(sorted)),
		cells:   make([]demography.Cells, len(sorted)),
	}
	for i, h := range sorted {
		if _, dup := t.index[h.ID]; dup {
			return nil, diag.Integrityf("house %d listed twice", h.ID)
		}
		t.index[h.ID] = i
		t.cells[i] = demography.NewCells(len(groups), ages)
	}
	return t, nil
}

// Ages returns the size of the age axis; the maximum age is Ages()-1.
func (t *Table) Ages() int { return t.ages }

// Groups returns the group axis, primary groups first.
func (t *Table) Groups() []demography.SocialGroup { return t.groups }

// PrimaryGroups returns how many leading groups are primary.
func (t *Table) PrimaryGroups() int { return t.primary }

// Houses returns dwellings ordered by id.
func (t *Table) Houses() []House { return t.houses }

// Len returns the number of dwellings.
func (t *Table) Len() int { return len(t.houses) }

// HouseIndex returns the row of a dwelling.
func (t *Table) HouseIndex(id territory.ID) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// Cells returns the tensor of the h-th dwelling. Callers must not modify it.
func (t *Table) Cells(h int) demography.Cells { return t.cells[h] }

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := *t
	c.cells = make([]demography.Cells, len(t.cells))
	for i, cells := range t.cells {
		c.cells[i] = cells.Clone()
	}
	return &c
}

// Tx is a pending set of cell changes.
type Tx struct {
	t     *Table
	cells []demography.Cells
}

// Update runs fn against a private copy of the cells and commits it only when
// fn succeeds and no cell went negative.
func (t *Table) Update(fn func(*Tx) error) error {
	tx := &Tx{t: t, cells: make([]demography.Cells, len(t.cells))}
	for i, cells := range t.cells {
		tx.cells[i] = cells.Clone()
	}
	if err := fn(tx); err != nil {
		return err
	}
	for h, cells := range tx.cells {
		if g, s, age, bad := cells.Negative(); bad {
			return diag.Invariantf("year %d house %d group %d %s age %d would become %d",
				t.Year, t.houses[h].ID, t.groups[g].ID, s, age, cells.At(g, s, age))
		}
	}
	t.cells = tx.cells
	return nil
}

// Table returns the table the transaction belongs to.
func (tx *Tx) Table() *Table { return tx.t }

// Cells returns the pending tensor of the h-th dwelling.
func (tx *Tx) Cells(h int) demography.Cells { return tx.cells[h] }

// At returns a pending cell value.
func (tx *Tx) At(h, g int, s demography.Sex, age int) int {
	return tx.cells[h].At(g, s, age)
}

// Add changes a cell by delta.
func (tx *Tx) Add(h, g int, s demography.Sex, age int, delta int) {
	tx.cells[h].Add(g, s, age, delta)
}

// Set overwrites a cell.
func (tx *Tx) Set(h, g int, s demography.Sex, age int, v int) {
	tx.cells[h].Set(g, s, age, v)
}

// Replace swaps the whole tensor of a dwelling.
func (tx *Tx) Replace(h int, cells demography.Cells) error {
	if cells.Groups() != len(tx.t.groups) || cells.Ages() != tx.t.ages {
		return diag.Integrityf("house %d cells are %d×%d, table is %d×%d",
			tx.t.houses[h].ID, cells.Groups(), cells.Ages(), len(tx.t.groups), tx.t.ages)
	}
	tx.cells[h] = cells.Clone()
	return nil
}

// PrimaryTotal sums primary groups of one sex and age over pending cells.
func (tx *Tx) PrimaryTotal(s demography.Sex, age int) int {
	total := 0
	for _, cells := range tx.cells {
		total += cells.SexAge(0, tx.t.primary, s, age)
	}
	return total
}

// Advance returns the next year: everyone is one year older, people past the
// maximum age leave and age 0 is empty, waiting for newborns.
func (t *Table) Advance() (*Table, error) {
	next := t.Clone()
	next.Year = t.Year + 1
	for _, cells := range next.cells {
		cells.Shift()
	}
	for _, s := range demography.Sexes {
		if n := next.sexAgeTotal(0, len(next.groups), s, 0); n != 0 {
			return nil, diag.Invariantf("year %d has %d %s of age 0 right after aging", next.Year, n, s)
		}
	}
	return next, nil
}

func (t *Table) sexAgeTotal(from, to int, s demography.Sex, age int) int {
	total := 0
	for _, cells := range t.cells {
		total += cells.SexAge(from, to, s, age)
	}
	return total
}

// PrimaryTotal sums primary groups of one sex and age over all dwellings.
func (t *Table) PrimaryTotal(s demography.Sex, age int) int {
	return t.sexAgeTotal(0, t.primary, s, age)
}

// AgeSexCurves returns men and women counts by age over primary groups.
func (t *Table) AgeSexCurves() (men, women []int) {
	men = make([]int, t.ages)
	women = make([]int, t.ages)
	for age := 0; age < t.ages; age++ {
		men[age] = t.PrimaryTotal(demography.Male, age)
		women[age] = t.PrimaryTotal(demography.Female, age)
	}
	return men, women
}

// HousePrimaryTotal returns the population of the h-th dwelling.
func (t *Table) HousePrimaryTotal(h int) int {
	return t.cells[h].Sum(0, t.primary)
}

// Totals returns primary men, primary women and the number of additional
// group memberships.
func (t *Table) Totals() (men, women, additional int) {
	for age := 0; age < t.ages; age++ {
		men += t.PrimaryTotal(demography.Male, age)
		women += t.PrimaryTotal(demography.Female, age)
	}
	for _, cells := range t.cells {
		additional += cells.Sum(t.primary, len(t.groups))
	}
	return men, women, additional
}

// Validate checks that no cell is negative and that no additional group
// holds more people than the primary groups of the same dwelling, sex and age.
func (t *Table) Validate() error {
	for h, cells := range t.cells {
		if g, s, age, bad := cells.Negative(); bad {
			return diag.Invariantf("year %d house %d group %d %s age %d is negative",
				t.Year, t.houses[h].ID, t.groups[g].ID, s, age)
		}
		for _, s := range demography.Sexes {
			for age := 0; age < t.ages; age++ {
				limit := cells.SexAge(0, t.primary, s, age)
				for g := t.primary; g < len(t.groups); g++ {
					if cells.At(g, s, age) > limit {
						return diag.Invariantf("year %d house %d additional group %d has %d %s of age %d, only %d live there",
							t.Year, t.houses[h].ID, t.groups[g].ID, cells.At(g, s, age), s, age, limit)
					}
				}
			}
		}
	}
	return nil
}

// ValidateAgainst checks that every dwelling's primary total equals its
// expected population.
func (t *Table) ValidateAgainst(populations map[territory.ID]int) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for h, house := range t.houses {
		want, ok := populations[house.ID]
		if !ok {
			return diag.Invariantf("house %d has no expected population", house.ID)
		}
		if got := t.HousePrimaryTotal(h); got != want {
			return diag.Invariantf("year %d house %d holds %d people, expected %d", t.Year, house.ID, got, want)
		}
	}
	return nil
}
