package cohort

import (
	"golang.org/x/exp/constraints"

	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// Record is one persisted row: people of one group and age in one dwelling.
type Record struct {
	Year        int
	HouseID     territory.ID
	TerritoryID territory.ID
	Age         int
	GroupID     int64
	Men         int
	Women       int
}

// Records lists the non-empty rows ordered by house, age and group.
func (t *Table) Records() []Record {
	var out []Record
	for h, house := range t.houses {
		cells := t.cells[h]
		for age := 0; age < t.ages; age++ {
			for g, group := range t.groups {
				men, women := cells.At(g, demography.Male, age), cells.At(g, demography.Female, age)
				if men == 0 && women == 0 {
					continue
				}
				out = append(out, Record{
					Year:        t.Year,
					HouseID:     house.ID,
					TerritoryID: house.TerritoryID,
					Age:         age,
					GroupID:     group.ID,
					Men:         men,
					Women:       women,
				})
			}
		}
	}
	return out
}

// FromRecords rebuilds a table from persisted rows.
func FromRecords(year int, groups []demography.SocialGroup, ages int, houses []House, records []Record) (*Table, error) {
	t, err := NewTable(year, groups, ages, houses)
	if err != nil {
		return nil, err
	}
	groupIdx := make(map[int64]int, len(groups))
	for i, g := range groups {
		groupIdx[g.ID] = i
	}
	err = t.Update(func(tx *Tx) error {
		for _, r := range records {
			h, ok := t.index[r.HouseID]
			if !ok {
				return diag.Integrityf("row references unknown house %d", r.HouseID)
			}
			g, ok := groupIdx[r.GroupID]
			if !ok {
				return diag.Integrityf("row references unknown social group %d", r.GroupID)
			}
			if r.Age < 0 || r.Age >= ages {
				return diag.Integrityf("row of house %d has age %d outside [0, %d)", r.HouseID, r.Age, ages)
			}
			if r.Men < 0 || r.Women < 0 {
				return diag.Integrityf("row of house %d has negative counts", r.HouseID)
			}
			tx.Add(h, g, demography.Male, r.Age, r.Men)
			tx.Add(h, g, demography.Female, r.Age, r.Women)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// HouseAges is the per-age population of one dwelling.
type HouseAges struct {
	HouseID territory.ID
	Men     []int
	Women   []int
}

// TerritoryAges returns primary men and women by age for every dwelling of a
// territory.
func (t *Table) TerritoryAges(territoryID territory.ID) []HouseAges {
	var out []HouseAges
	for h, house := range t.houses {
		if house.TerritoryID != territoryID {
			continue
		}
		row := HouseAges{HouseID: house.ID, Men: make([]int, t.ages), Women: make([]int, t.ages)}
		for age := 0; age < t.ages; age++ {
			row.Men[age] = t.cells[h].SexAge(0, t.primary, demography.Male, age)
			row.Women[age] = t.cells[h].SexAge(0, t.primary, demography.Female, age)
		}
		out = append(out, row)
	}
	return out
}

// Sum adds up a slice of numbers.
func Sum[T constraints.Integer | constraints.Float](values []T) T {
	var total T
	for _, v := range values {
		total += v
	}
	return total
}
