package transfer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blobkit/transfer/xfertypes"
)

const (
	directionUpload   = "upload"
	directionDownload = "download"
)

// clientMetrics holds the Prometheus instrumentation for one client.
// All methods are safe to call on a nil receiver, so instrumentation stays
// optional without conditionals at every call site.
type clientMetrics struct {
	transfersTotal *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// newClientMetrics builds and registers the client's collectors.
// Collectors already present in the registry are reused so that metrics
// continue to be exported correctly when clients are recreated.
func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobkit",
			Subsystem: "transfer",
			Name:      "operations_total",
			Help:      "Total number of transfer operations by direction and outcome",
		}, []string{"direction", "outcome"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobkit",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Total number of payload bytes moved by direction",
		}, []string{"direction"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobkit",
			Subsystem: "transfer",
			Name:      "chunk_retries_total",
			Help:      "Total number of chunk retry attempts by direction",
		}, []string{"direction"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blobkit",
			Subsystem: "transfer",
			Name:      "operation_duration_seconds",
			Help:      "Transfer operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
	}

	m.transfersTotal = registerOrReuse(reg, m.transfersTotal).(*prometheus.CounterVec)
	m.bytesTotal = registerOrReuse(reg, m.bytesTotal).(*prometheus.CounterVec)
	m.retriesTotal = registerOrReuse(reg, m.retriesTotal).(*prometheus.CounterVec)
	m.duration = registerOrReuse(reg, m.duration).(*prometheus.HistogramVec)

	return m
}

// registerOrReuse registers a collector with the given registerer.
// If the collector is already registered, it returns the existing one from
// the registry. Panics on non-AlreadyRegisteredError failures.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// record observes one finished transfer operation.
func (m *clientMetrics) record(direction string, result *xfertypes.TransferResult, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transfersTotal.WithLabelValues(direction, outcome).Inc()
	m.duration.WithLabelValues(direction).Observe(elapsed.Seconds())

	if result == nil {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(result.Bytes))
	retries := 0
	for _, chunk := range result.Chunks {
		if chunk.Attempts > 1 {
			retries += chunk.Attempts - 1
		}
	}
	if retries > 0 {
		m.retriesTotal.WithLabelValues(direction).Add(float64(retries))
	}
}

// observe forwards a finished operation to the client's metrics, if any.
func (c *Client) observe(direction string, result *xfertypes.TransferResult, err error, elapsed time.Duration) {
	c.metrics.record(direction, result, err, elapsed)
}
