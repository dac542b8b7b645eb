// Package territory holds the administrative hierarchy as an arena of nodes
// keyed by identifier. Parent/child links are ids, never pointers, so any node
// is one map lookup away and the tree has no reference cycles.
package territory

import (
	"fmt"
	"math"

	"github.com/talgya/population-restorator/internal/diag"
)

// ID identifies territories and dwellings.
type ID = int64

// Record is one row of the territory table.
type Record struct {
	ID         ID     `json:"id"`
	ParentID   *ID    `json:"parent_id,omitempty"`
	Name       string `json:"name"`
	Population *int   `json:"population,omitempty"`
}

// HouseRecord is one row of the house table. A missing living area counts as 0.
type HouseRecord struct {
	ID          ID       `json:"id"`
	TerritoryID ID       `json:"territory_id"`
	LivingArea  *float64 `json:"living_area"`
	Population  *int     `json:"population,omitempty"`
}

// Dwelling is a residential unit of a leaf territory.
type Dwelling struct {
	ID          ID      `json:"id"`
	TerritoryID ID      `json:"territory_id"`
	LivingArea  float64 `json:"living_area"`
	Population  int     `json:"population"`
}

// Territory is one node of the hierarchy. Population is the target before
// balancing and the balanced total afterwards.
type Territory struct {
	ID         ID          `json:"id"`
	ParentID   *ID         `json:"parent_id,omitempty"`
	Name       string      `json:"name"`
	Population int         `json:"population"`
	Children   []ID        `json:"children,omitempty"`
	Dwellings  []*Dwelling `json:"-"`
}

// IsLeaf reports whether the territory has no inner territories.
func (t *Territory) IsLeaf() bool {
	return len(t.Children) == 0
}

// Tree is the territory arena rooted at the city.
type Tree struct {
	Root  ID
	Nodes map[ID]*Territory
	order []ID // depth-first pre-order
}

// Get returns the territory with the given id, or nil.
func (tr *Tree) Get(id ID) *Territory {
	return tr.Nodes[id]
}

// RootNode returns the city territory.
func (tr *Tree) RootNode() *Territory {
	return tr.Nodes[tr.Root]
}

// Len returns the number of territories including the root.
func (tr *Tree) Len() int {
	return len(tr.Nodes)
}

// Children returns the inner territories of id in their input order.
func (tr *Tree) Children(id ID) []*Territory {
	t := tr.Nodes[id]
	if t == nil {
		return nil
	}
	out := make([]*Territory, 0, len(t.Children))
	for _, c := range t.Children {
		out = append(out, tr.Nodes[c])
	}
	return out
}

// Walk visits every territory depth-first, parents before children.
func (tr *Tree) Walk(fn func(*Territory)) {
	for _, id := range tr.order {
		fn(tr.Nodes[id])
	}
}

// Leaves returns the leaf territories in depth-first order.
func (tr *Tree) Leaves() []*Territory {
	var out []*Territory
	tr.Walk(func(t *Territory) {
		if t.IsLeaf() {
			out = append(out, t)
		}
	})
	return out
}

// String returns a summary of the tree.
func (tr *Tree) String() string {
	root := tr.RootNode()
	if root == nil {
		return "Tree(empty)"
	}
	return fmt.Sprintf("Tree(root=%q, population=%d, territories=%d, dwellings=%d)",
		root.Name, root.Population, tr.Len(), len(tr.Dwellings(tr.Root)))
}

// Build assembles the arena from flat tables. Territories without a parent,
// or whose parent is the city, hang directly under city. Every malformed row is
// an integrity error: nothing is silently repaired except a missing living
// area, which counts as zero.
func Build(city Record, territories []Record, houses []HouseRecord) (*Tree, error) {
	if city.Population == nil {
		return nil, diag.Integrityf("city %q has no total population", city.Name)
	}
	if *city.Population < 0 {
		return nil, diag.Integrityf("city %q has negative population %d", city.Name, *city.Population)
	}

	tr := &Tree{Root: city.ID, Nodes: make(map[ID]*Territory, len(territories)+1)}
	tr.Nodes[city.ID] = &Territory{ID: city.ID, Name: city.Name, Population: *city.Population}

	for _, rec := range territories {
		if _, dup := tr.Nodes[rec.ID]; dup {
			return nil, diag.Integrityf("duplicate territory id %d", rec.ID)
		}
		pop := 0
		if rec.Population != nil {
			if *rec.Population < 0 {
				return nil, diag.Integrityf("territory %q has negative population %d", rec.Name, *rec.Population)
			}
			pop = *rec.Population
		}
		parent := rec.ParentID
		if parent == nil {
			root := city.ID
			parent = &root
		}
		tr.Nodes[rec.ID] = &Territory{ID: rec.ID, ParentID: parent, Name: rec.Name, Population: pop}
	}

	for _, rec := range territories {
		node := tr.Nodes[rec.ID]
		parent, ok := tr.Nodes[*node.ParentID]
		if !ok {
			return nil, diag.Integrityf("territory %q references unknown parent %d", rec.Name, *node.ParentID)
		}
		parent.Children = append(parent.Children, rec.ID)
	}

	if err := tr.index(); err != nil {
		return nil, err
	}

	seen := make(map[ID]bool, len(houses))
	for _, h := range houses {
		if seen[h.ID] {
			return nil, diag.Integrityf("duplicate house id %d", h.ID)
		}
		seen[h.ID] = true

		owner, ok := tr.Nodes[h.TerritoryID]
		if !ok {
			return nil, diag.Integrityf("house %d references unknown territory %d", h.ID, h.TerritoryID)
		}
		if !owner.IsLeaf() {
			return nil, diag.Integrityf("house %d is attached to non-leaf territory %q", h.ID, owner.Name)
		}
		area := 0.0
		if h.LivingArea != nil {
			area = *h.LivingArea
		}
		if area < 0 || math.IsNaN(area) || math.IsInf(area, 0) {
			return nil, diag.Integrityf("house %d has invalid living area %v", h.ID, area)
		}
		pop := 0
		if h.Population != nil {
			if *h.Population < 0 {
				return nil, diag.Integrityf("house %d has negative population %d", h.ID, *h.Population)
			}
			pop = *h.Population
		}
		owner.Dwellings = append(owner.Dwellings, &Dwelling{
			ID: h.ID, TerritoryID: h.TerritoryID, LivingArea: area, Population: pop,
		})
	}
	return tr, nil
}

// index computes the depth-first order and rejects nodes unreachable from the
// root, which can only happen through a parent cycle.
func (tr *Tree) index() error {
	tr.order = tr.order[:0]
	visited := make(map[ID]bool, len(tr.Nodes))
	stack := []ID{tr.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return diag.Integrityf("territory %d reached twice", id)
		}
		visited[id] = true
		tr.order = append(tr.order, id)
		children := tr.Nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	if len(visited) != len(tr.Nodes) {
		for id, t := range tr.Nodes {
			if !visited[id] {
				return diag.Integrityf("territory %q is not reachable from the city (parent cycle)", t.Name)
			}
		}
	}
	return nil
}
