package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_messages_consumed_total",
		Help: "Total number of Kafka messages consumed",
	})

	RecordsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_records_dispatched_total",
		Help: "Total number of records dispatched to a tenant writer",
	})

	UnknownTenants = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_unknown_tenant_total",
		Help: "Total number of records dropped for an unregistered tenant",
	})

	MalformedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_malformed_records_total",
		Help: "Total number of records excluded from a flush as malformed",
	})

	AppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sink_append_failures_total",
		Help: "Total number of failed append calls to storage",
	})

	FlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_flushes_total",
		Help: "Total number of flush cycles per tenant",
	}, []string{"tenant"})

	BufferDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sink_buffer_depth",
		Help: "Current number of buffered records per tenant",
	}, []string{"tenant"})
)

func init() {
	prometheus.MustRegister(MessagesConsumed, RecordsDispatched, UnknownTenants,
		MalformedRecords, AppendFailures, FlushesTotal, BufferDepth)
}

// StartMetricsServer exposes /metrics on the given port in the background.
func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		log.Printf("[Metrics] Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[Metrics] Failed to start metrics server: %v", err)
		}
	}()
}
