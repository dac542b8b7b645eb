// Package scenario reads and writes the JSON document describing one city:
// its territories and dwellings, the social group catalogue, survivability
// coefficients and forecast settings.
package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/forecast"
	"github.com/talgya/population-restorator/internal/territory"
)

// Forecast holds optional overrides of forecast.DefaultParams.
type Forecast struct {
	YearBegin      int     `json:"year_begin,omitempty"`
	Years          int     `json:"years,omitempty"`
	BoysToGirls    float64 `json:"boys_to_girls,omitempty"`
	Fertility      float64 `json:"fertility,omitempty"`
	FertilityBegin int     `json:"fertility_begin,omitempty"`
	FertilityEnd   int     `json:"fertility_end,omitempty"`
}

// Document is the on-disk scenario.
type Document struct {
	City          territory.Record                      `json:"city"`
	Territories   []territory.Record                    `json:"territories"`
	Houses        []territory.HouseRecord               `json:"houses"`
	Groups        demography.SocialGroupsDistribution   `json:"social_groups"`
	Survivability demography.SurvivabilityCoefficients `json:"survivability"`
	Forecast      Forecast                              `json:"forecast"`
}

// Load reads a document from path.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, diag.Integrityf("decode scenario %s: %v", path, err)
	}
	return &doc, nil
}

// Save writes the document as indented JSON, creating parent directories.
func (d *Document) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Tree builds the territory arena.
func (d *Document) Tree() (*territory.Tree, error) {
	return territory.Build(d.City, d.Territories, d.Houses)
}

// SetTree replaces the territory and house tables with a balanced tree.
func (d *Document) SetTree(tree *territory.Tree) {
	root := tree.RootNode()
	pop := root.Population
	d.City = territory.Record{ID: root.ID, Name: root.Name, Population: &pop}
	d.Territories = tree.Records()
	d.Houses = tree.HouseRecords()
}

// Params merges the forecast overrides into the defaults. year is used when
// the document does not name a starting year.
func (d *Document) Params(year int) forecast.Params {
	f := d.Forecast
	if f.YearBegin != 0 {
		year = f.YearBegin
	}
	p := forecast.DefaultParams(year, d.Survivability)
	if f.Years > 0 {
		p.Years = f.Years
	}
	if f.BoysToGirls > 0 {
		p.BoysToGirls = f.BoysToGirls
	}
	if f.Fertility > 0 {
		p.Fertility = f.Fertility
	}
	if f.FertilityBegin > 0 {
		p.FertilityBegin = f.FertilityBegin
	}
	if f.FertilityEnd > 0 {
		p.FertilityEnd = f.FertilityEnd
	}
	return p
}

// Validate checks the catalogue and the survivability coefficients against
// each other. Territory integrity is checked by Tree.
func (d *Document) Validate() error {
	if err := d.Groups.Validate(); err != nil {
		return err
	}
	if err := d.Survivability.Validate(); err != nil {
		return err
	}
	if n := d.Survivability.Len(); n != 0 && n != d.Groups.Ages()-1 {
		return diag.Integrityf("survivability covers %d transitions, social groups %d ages", n, d.Groups.Ages())
	}
	return nil
}
