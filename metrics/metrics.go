package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_items_scanned_total",
			Help: "Total number of input items processed by the detection pipeline",
		},
		[]string{"source"},
	)

	WhitelistHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_whitelist_hits_total",
			Help: "Total number of items short-circuited by the allow-list, by tier",
		},
		[]string{"tier"},
	)

	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_detections_total",
			Help: "Total number of items classified as obfuscated, by model",
		},
		[]string{"model"},
	)

	ItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_item_errors_total",
			Help: "Total number of per-item pipeline failures, by stage",
		},
		[]string{"stage"},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_extraction_duration_seconds",
			Help:    "Time taken by feature extraction per item",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_classification_duration_seconds",
			Help:    "Time taken by classifier scoring per item",
			Buckets: prometheus.ExponentialBuckets(0.000001, 10, 8),
		},
	)

	WhitelistReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_whitelist_reloads_total",
			Help: "Total number of whitelist rule-table rebuilds",
		},
	)

	ScriptsReassembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_scripts_reassembled_total",
			Help: "Total number of scripts emitted by the reassembler, by completeness",
		},
		[]string{"complete"},
	)
)
