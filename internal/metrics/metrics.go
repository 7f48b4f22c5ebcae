package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_records_read_total",
		Help: "Event log records returned by tail reads.",
	})
	MalformedLines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_malformed_lines_total",
		Help: "Non-blank event log lines skipped because they did not parse.",
	})
	BatchesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_attribution_batches_total",
		Help: "Record batches applied to the attribution state machine.",
	})
	SessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_sessions_opened_total",
		Help: "Session instances opened by a START record.",
	})
	SessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cubo_sessions_closed_total",
		Help: "Session instances closed, by how they were closed.",
	}, []string{"via"})
	Regenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cubo_report_regenerations_total",
		Help: "Report regeneration requests, by outcome.",
	}, []string{"outcome"})
	DatagramsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_datagrams_received_total",
		Help: "Datagrams received from devices.",
	})
	DatagramsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_datagrams_dropped_total",
		Help: "Datagrams dropped because the append queue was full.",
	})
	StaleSessionAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cubo_stale_session_alerts_total",
		Help: "Notices sent for sessions left open too long.",
	})
)

// Registry holds every collector of the process.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		RecordsRead,
		MalformedLines,
		BatchesProcessed,
		SessionsOpened,
		SessionsClosed,
		Regenerations,
		DatagramsReceived,
		DatagramsDropped,
		StaleSessionAlerts,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
