package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UnitBuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbuild_unit_build_failed_total",
			Help: "Number of times a build unit has failed to build",
		},
		[]string{"unit", "state"},
	)

	UnitBuildCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbuild_unit_build_count_total",
			Help: "Total number of build unit builds",
		},
		[]string{"unit"},
	)

	UnitBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playbuild_unit_build_duration_seconds",
			Help:    "Build unit build duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"unit"},
	)

	LastUnitBuildStart = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playbuild_last_unit_build_start_timestamp",
			Help: "Unix timestamp of when the last build of a unit started",
		},
		[]string{"unit"},
	)

	LastUnitBuildEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playbuild_last_unit_build_end_timestamp",
			Help: "Unix timestamp of when the last build of a unit ended",
		},
		[]string{"unit"},
	)
)

func UnitBuildStarted(unit string, start time.Time) {
	UnitBuildCount.WithLabelValues(unit).Inc()
	LastUnitBuildStart.WithLabelValues(unit).Set(float64(start.Unix()))
}

func UnitBuildSucceeded(unit string, start time.Time) {
	end := time.Now()
	UnitBuildDuration.WithLabelValues(unit).Observe(end.Sub(start).Seconds())
	LastUnitBuildEnd.WithLabelValues(unit).Set(float64(end.Unix()))
}

func UnitBuildFailedAt(unit, state string) {
	UnitBuildFailed.WithLabelValues(unit, state).Inc()
	LastUnitBuildEnd.WithLabelValues(unit).Set(float64(time.Now().Unix()))
}
