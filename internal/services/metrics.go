package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// priceResolutions counts Resolve calls by store and where the answer came
	// from (cache, remote, unavailable, error).
	priceResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_price_resolutions_total",
			Help: "Price resolutions by store and source.",
		},
		[]string{"store", "source"},
	)

	// refreshPairs counts (game, region) pairs processed by refreshes.
	refreshPairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_refresh_pairs_total",
			Help: "Refreshed (game, region) pairs by store and outcome (priced, unavailable, error).",
		},
		[]string{"store", "outcome"},
	)

	// refreshRuns counts finished refresh runs by final status.
	refreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_refresh_runs_total",
			Help: "Finished refresh runs by store and status.",
		},
		[]string{"store", "status"},
	)

	// refreshDuration records wall-clock refresh time. Runs are long because
	// of pacing, so buckets go up to several hours.
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_refresh_duration_seconds",
			Help:    "Duration of wishlist price refreshes in seconds.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		},
		[]string{"store"},
	)
)

func init() {
	prometheus.MustRegister(priceResolutions, refreshPairs, refreshRuns, refreshDuration)
}
