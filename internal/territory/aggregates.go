package territory

// TotalLivingArea returns the living area of all dwellings below id.
func (tr *Tree) TotalLivingArea(id ID) float64 {
	t := tr.Nodes[id]
	if t == nil {
		return 0
	}
	if !t.IsLeaf() {
		total := 0.0
		for _, c := range t.Children {
			total += tr.TotalLivingArea(c)
		}
		return total
	}
	total := 0.0
	for _, d := range t.Dwellings {
		total += d.LivingArea
	}
	return total
}

// TotalTerritoriesPopulation sums the populations of the leaf territories below id.
func (tr *Tree) TotalTerritoriesPopulation(id ID) int {
	t := tr.Nodes[id]
	if t == nil {
		return 0
	}
	if t.IsLeaf() {
		return t.Population
	}
	total := 0
	for _, c := range t.Children {
		total += tr.TotalTerritoriesPopulation(c)
	}
	return total
}

// TotalHousesPopulation sums the populations of all dwellings below id.
func (tr *Tree) TotalHousesPopulation(id ID) int {
	total := 0
	for _, d := range tr.Dwellings(id) {
		total += d.Population
	}
	return total
}

// Dwellings returns every dwelling below id in depth-first territory order.
func (tr *Tree) Dwellings(id ID) []*Dwelling {
	t := tr.Nodes[id]
	if t == nil {
		return nil
	}
	if t.IsLeaf() {
		return t.Dwellings
	}
	var out []*Dwelling
	for _, c := range t.Children {
		out = append(out, tr.Dwellings(c)...)
	}
	return out
}

// Info is a recursive summary of a territory.
type Info struct {
	Name         string  `json:"name"`
	Population   int     `json:"population"`
	Inner        []Info  `json:"inner_territories,omitempty"`
	HousesCount  int     `json:"houses_count"`
	LivingArea   float64 `json:"living_area"`
	HousesPeople int     `json:"houses_population"`
}

// DeepInfo summarises the subtree rooted at id.
func (tr *Tree) DeepInfo(id ID) Info {
	t := tr.Nodes[id]
	if t == nil {
		return Info{}
	}
	info := Info{
		Name:         t.Name,
		Population:   tr.TotalTerritoriesPopulation(id),
		HousesCount:  len(tr.Dwellings(id)),
		LivingArea:   tr.TotalLivingArea(id),
		HousesPeople: tr.TotalHousesPopulation(id),
	}
	for _, c := range t.Children {
		info.Inner = append(info.Inner, tr.DeepInfo(c))
	}
	return info
}

// Records exports the balanced territory table, root excluded.
func (tr *Tree) Records() []Record {
	var out []Record
	tr.Walk(func(t *Territory) {
		if t.ID == tr.Root {
			return
		}
		pop := t.Population
		out = append(out, Record{ID: t.ID, ParentID: t.ParentID, Name: t.Name, Population: &pop})
	})
	return out
}

// HouseRecords exports the balanced house table.
func (tr *Tree) HouseRecords() []HouseRecord {
	dwellings := tr.Dwellings(tr.Root)
	out := make([]HouseRecord, 0, len(dwellings))
	for _, d := range dwellings {
		area, pop := d.LivingArea, d.Population
		out = append(out, HouseRecord{ID: d.ID, TerritoryID: d.TerritoryID, LivingArea: &area, Population: &pop})
	}
	return out
}
