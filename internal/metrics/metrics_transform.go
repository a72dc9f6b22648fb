package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransformApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbuild_transform_applied_total",
			Help: "Number of modules rewritten by a transform rule",
		},
		[]string{"rule"},
	)

	// TransformAnchorMissing counts rules that matched a module whose source no
	// longer contains the text the rule rewrites.
	TransformAnchorMissing = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbuild_transform_anchor_missing_total",
			Help: "Number of times a transform rule did not find its expected anchor",
		},
		[]string{"rule"},
	)
)
