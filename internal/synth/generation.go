// Synthetic city generation using layered simplex noise.
// A density field over the city plane drives dwelling living areas, so that
// the balancer has an uneven but plausible surface to spread people over.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/population-restorator/internal/scenario"
	"github.com/talgya/population-restorator/internal/territory"
)

// Config holds city generation parameters.
type Config struct {
	Name           string
	Population     int
	Districts      int     // inner territories under the city
	Blocks         int     // leaf territories per district
	HousesPerBlock int     // mean dwellings per block
	Ages           int     // age columns of the generated curves
	KnownShare     float64 // fraction of districts with an explicit population
	Frequency      float64 // base noise frequency
}

// DefaultConfig returns a mid-sized city.
func DefaultConfig() Config {
	return Config{
		Name:           "Synthopolis",
		Population:     250_000,
		Districts:      8,
		Blocks:         12,
		HousesPerBlock: 25,
		Ages:           101,
		KnownShare:     0.5,
		Frequency:      0.08,
	}
}

// SmallConfig returns a tiny city for tests and quick iterations.
func SmallConfig() Config {
	return Config{
		Name:           "Hamlet",
		Population:     1_000,
		Districts:      2,
		Blocks:         2,
		HousesPerBlock: 3,
		Ages:           101,
		KnownShare:     0.5,
		Frequency:      0.08,
	}
}

// Validate rejects configurations that cannot produce a city.
func (c Config) Validate() error {
	switch {
	case c.Population < 0:
		return fmt.Errorf("population %d is negative", c.Population)
	case c.Districts < 1 || c.Blocks < 1 || c.HousesPerBlock < 1:
		return fmt.Errorf("districts, blocks and houses per block must be positive")
	case c.Ages < 2:
		return fmt.Errorf("at least two ages are required, got %d", c.Ages)
	case c.KnownShare < 0 || c.KnownShare > 1:
		return fmt.Errorf("known share %v outside [0, 1]", c.KnownShare)
	}
	return nil
}

// Generate creates a complete scenario: territories, dwellings, a social
// group catalogue and survivability coefficients.
func Generate(cfg Config, rng *rand.Rand) (*scenario.Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	density := opensimplex.NewNormalized(rng.Int64())

	const cityID territory.ID = 1
	doc := &scenario.Document{
		City: territory.Record{ID: cityID, Name: cfg.Name, Population: &cfg.Population},
	}

	nextTerritory := cityID + 1
	nextHouse := territory.ID(1)
	side := int(math.Ceil(math.Sqrt(float64(cfg.Districts))))
	known := int(math.Round(cfg.KnownShare * float64(cfg.Districts)))
	var districtAreas []float64

	for d := 0; d < cfg.Districts; d++ {
		districtID := nextTerritory
		nextTerritory++
		parent := cityID
		doc.Territories = append(doc.Territories, territory.Record{
			ID: districtID, ParentID: &parent, Name: fmt.Sprintf("District %d", d+1),
		})
		// District centres sit on a coarse grid, blocks scatter around them.
		cx, cy := float64(d%side)*40, float64(d/side)*40
		area := 0.0
		for b := 0; b < cfg.Blocks; b++ {
			blockID := nextTerritory
			nextTerritory++
			dp := districtID
			doc.Territories = append(doc.Territories, territory.Record{
				ID: blockID, ParentID: &dp, Name: fmt.Sprintf("Block %d-%d", d+1, b+1),
			})
			bx, by := cx+rng.Float64()*30, cy+rng.Float64()*30
			houses := 1 + rng.IntN(2*cfg.HousesPerBlock)
			for h := 0; h < houses; h++ {
				x, y := bx+rng.NormFloat64()*2, by+rng.NormFloat64()*2
				v := octaveNoise(density, x, y, 4, cfg.Frequency, 0.5)
				living := math.Round((20+v*v*900)*10) / 10
				area += living
				doc.Houses = append(doc.Houses, territory.HouseRecord{
					ID: nextHouse, TerritoryID: blockID, LivingArea: &living,
				})
				nextHouse++
			}
		}
		districtAreas = append(districtAreas, area)
	}

	// Known districts get a census-like count: their area share of the city,
	// perturbed by up to 10%.
	total := 0.0
	for _, a := range districtAreas {
		total += a
	}
	for d := 0; d < known && total > 0; d++ {
		pop := int(float64(cfg.Population) * districtAreas[d] / total * (0.9 + 0.2*rng.Float64()))
		doc.Territories[d*(cfg.Blocks+1)].Population = &pop
	}

	doc.Groups = Groups(cfg.Ages)
	doc.Survivability = Survivability(cfg.Ages)
	return doc, nil
}

// octaveNoise sums several octaves of simplex noise, normalised to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
