package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

const namespace = "solaredge"

// Metrics groups the collectors updated by the scrape pipeline.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec
	CacheReads    *prometheus.CounterVec
	DBInserts     *prometheus.CounterVec

	CurrentPower   prometheus.Gauge
	LifeTimeEnergy prometheus.Gauge
	LastDayEnergy  prometheus.Gauge
	LastUpdate     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Requests to the monitoring endpoint by outcome",
			},
			[]string{"outcome"},
		),
		CacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_reads_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
		DBInserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_inserts_total",
				Help:      "Database inserts by result",
			},
			[]string{"result"},
		),
		CurrentPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_power_watts",
			Help:      "Current inverter output",
		}),
		LifeTimeEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifetime_energy_wh",
			Help:      "Energy produced over the lifetime of the site",
		}),
		LastDayEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_day_energy_wh",
			Help:      "Energy produced today",
		}),
		LastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last update reported by the site",
		}),
	}

	reg.MustRegister(
		m.FetchAttempts,
		m.CacheReads,
		m.DBInserts,
		m.CurrentPower,
		m.LifeTimeEnergy,
		m.LastDayEnergy,
		m.LastUpdate,
	)
	return m
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveReading sets the reading gauges.
func (m *Metrics) ObserveReading(r models.Reading) {
	m.CurrentPower.Set(r.CurrentPower)
	m.LifeTimeEnergy.Set(r.LifeTimeEnergy)
	m.LastDayEnergy.Set(r.LastDayEnergy)
	m.LastUpdate.Set(float64(r.LastUpdateTime.Unix()))
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
