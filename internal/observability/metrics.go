package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registerOnce sync.Once

	packetsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "artcast",
			Subsystem: "transfer",
			Name:      "packets_total",
			Help:      "Packets published by type.",
		},
		[]string{"topic", "type"},
	)
	bytesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "artcast",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Serialized packet bytes published.",
		},
		[]string{"topic"},
	)
	publishRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "artcast",
			Subsystem: "transfer",
			Name:      "publish_retries_total",
			Help:      "Packet publish attempts that were retried.",
		},
		[]string{"topic"},
	)
	assetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "artcast",
			Subsystem: "transfer",
			Name:      "assets_total",
			Help:      "Asset transfers by outcome.",
		},
		[]string{"topic", "outcome"},
	)
	publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "artcast",
			Subsystem: "transfer",
			Name:      "publish_duration_seconds",
			Help:      "Single packet publish duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{packetsPublished, bytesPublished, publishRetries, assetsTotal, publishDuration}
}

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

func RecordPacket(topic, packetType string, size int, duration time.Duration) {
	RegisterMetrics()
	packetsPublished.WithLabelValues(topic, packetType).Inc()
	bytesPublished.WithLabelValues(topic).Add(float64(size))
	publishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func RecordRetry(topic string) {
	RegisterMetrics()
	publishRetries.WithLabelValues(topic).Inc()
}

func RecordAsset(topic string, success bool) {
	RegisterMetrics()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	assetsTotal.WithLabelValues(topic, outcome).Inc()
}

// Push sends the transfer metrics to a Prometheus pushgateway. The CLI is
// short lived, so metrics are pushed once at exit instead of scraped.
func Push(ctx context.Context, url, job string) error {
	pusher := push.New(url, job)
	for _, c := range collectors() {
		pusher = pusher.Collector(c)
	}
	return pusher.PushContext(ctx)
}
