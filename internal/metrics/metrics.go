// Package metrics records run outcomes as Prometheus series, written to a
// node_exporter textfile at the end of a batch run.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/population-restorator/internal/diag"
)

// Registry owns the restorator series.
type Registry struct {
	reg        *prometheus.Registry
	issues     *prometheus.CounterVec
	population *prometheus.GaugeVec
	years      prometheus.Counter
}

// New creates a registry with all series registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restorator",
			Name:      "issues_total",
			Help:      "Recoverable issues reported during the run, by kind.",
		}, []string{"kind"}),
		population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "restorator",
			Name:      "population",
			Help:      "People per year and sex, plus additional group memberships.",
		}, []string{"year", "sex"}),
		years: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restorator",
			Name:      "years_total",
			Help:      "Years produced by the divider and forecaster.",
		}),
	}
	r.reg.MustRegister(r.issues, r.population, r.years)
	return r
}

// ObserveIssue counts one recoverable issue. It matches diag.Report.OnIssue.
func (r *Registry) ObserveIssue(i diag.Issue) {
	r.issues.WithLabelValues(string(i.Kind)).Inc()
}

// SetPopulation records the totals of one produced year.
func (r *Registry) SetPopulation(year, men, women, additional int) {
	y := strconv.Itoa(year)
	r.population.WithLabelValues(y, "men").Set(float64(men))
	r.population.WithLabelValues(y, "women").Set(float64(women))
	r.population.WithLabelValues(y, "additional").Set(float64(additional))
	r.years.Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile atomically writes all series to path.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
