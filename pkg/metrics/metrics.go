package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache lookups that returned a live entry.",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache lookups that found nothing or an expired entry.",
	}, []string{"cache"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_evictions_total",
		Help: "Entries evicted because the cache was full.",
	}, []string{"cache"})

	ProviderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_provider_outcomes_total",
		Help: "Provider call results by engine and outcome code.",
	}, []string{"engine", "outcome"})

	TranslationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_failures_total",
		Help: "Translations where every provider failed.",
	})

	GateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_gate_rejections_total",
		Help: "Translation jobs rejected because the pool was full.",
	})

	GateInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_gate_in_flight",
		Help: "Translation jobs currently holding a slot.",
	})

	MirrorWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_write_failures_total",
		Help: "Failed writes to the flat-file mirror by section.",
	}, []string{"section"})

	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_write_failures_total",
		Help: "Failed writes to the relational store by entity.",
	}, []string{"entity"})

	GroupsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reaper_groups_reaped_total",
		Help: "Inactive groups removed by the reaper.",
	})

	ReaperErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reaper_errors_total",
		Help: "Per-group reaper failures by stage.",
	}, []string{"stage"})
)
