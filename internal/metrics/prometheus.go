package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all daemon metrics.
type Registry struct {
	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ScanBackendUp    *prometheus.GaugeVec
	FingerprintSize  *prometheus.GaugeVec

	MatchScore    prometheus.Histogram
	MatchedZone   *prometheus.GaugeVec
	Transitions   *prometheus.CounterVec
	UnknownDwell  prometheus.Counter

	ActionRunsTotal *prometheus.CounterVec
	ActionDuration  *prometheus.HistogramVec
	ActionFailures  *prometheus.CounterVec

	EventLogRows  prometheus.Gauge
	EventLogPrune *prometheus.CounterVec

	IPCRequests *prometheus.CounterVec
	IPCLatency  *prometheus.HistogramVec

	Uptime prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_scans_total",
		Help: "Total location scans performed, by backend and outcome",
	}, []string{"backend", "outcome"})

	r.ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofenced_scan_duration_seconds",
		Help:    "Time to collect one signal frame across all backends",
		Buckets: prometheus.DefBuckets,
	})

	r.ScanBackendUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geofenced_scan_backend_up",
		Help: "Whether a scan backend responded successfully on the last attempt",
	}, []string{"backend"})

	r.FingerprintSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geofenced_fingerprint_networks",
		Help: "Number of networks retained in the most recent fingerprint",
	}, []string{"medium"})

	r.MatchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geofenced_match_score",
		Help:    "Similarity score of the best-matching zone on each scan",
		Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	r.MatchedZone = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geofenced_matched_zone",
		Help: "1 for the zone matched on the most recent scan, 0 otherwise",
	}, []string{"zone_id"})

	r.Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_transitions_total",
		Help: "Total committed zone transitions",
	}, []string{"from_zone", "to_zone"})

	r.UnknownDwell = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geofenced_unknown_entries_total",
		Help: "Total times the daemon committed to the unknown zone",
	})

	r.ActionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_action_runs_total",
		Help: "Total action plan runs, by zone and step",
	}, []string{"zone_id", "step"})

	r.ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geofenced_action_step_duration_seconds",
		Help:    "Duration of a single action step",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	r.ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_action_failures_total",
		Help: "Total action step failures, by zone and step",
	}, []string{"zone_id", "step"})

	r.EventLogRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geofenced_eventlog_rows",
		Help: "Row count of the event log, updated on record and prune",
	})

	r.EventLogPrune = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_eventlog_pruned_total",
		Help: "Total event log rows removed by retention pruning",
	}, []string{"status"})

	r.IPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geofenced_ipc_requests_total",
		Help: "Total control-socket requests, by command and outcome",
	}, []string{"command", "outcome"})

	r.IPCLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geofenced_ipc_request_duration_seconds",
		Help:    "Control-socket request handling latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geofenced_uptime_seconds",
		Help: "Daemon uptime in seconds",
	})

	return r
}

// RecordScan records the outcome and duration of one scan cycle.
func (r *Registry) RecordScan(backend, outcome string, duration float64) {
	r.ScansTotal.WithLabelValues(backend, outcome).Inc()
	r.ScanDuration.Observe(duration)
}

// RecordTransition records a committed zone transition, including a
// commit into the unknown zone.
func (r *Registry) RecordTransition(fromZoneID, toZoneID string) {
	r.Transitions.WithLabelValues(fromZoneID, toZoneID).Inc()
	if toZoneID == "unknown" {
		r.UnknownDwell.Inc()
	}
}

// RecordActionStep records one executor step's outcome.
func (r *Registry) RecordActionStep(zoneID, step string, duration float64, err error) {
	r.ActionRunsTotal.WithLabelValues(zoneID, step).Inc()
	r.ActionDuration.WithLabelValues(step).Observe(duration)
	if err != nil {
		r.ActionFailures.WithLabelValues(zoneID, step).Inc()
	}
}

// RecordIPCRequest records one control-socket request.
func (r *Registry) RecordIPCRequest(command string, ok bool, duration float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.IPCRequests.WithLabelValues(command, outcome).Inc()
	r.IPCLatency.WithLabelValues(command).Observe(duration)
}
