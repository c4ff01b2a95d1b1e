// Package metrics exposes Prometheus instrumentation for the feed polling
// pipeline.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_polls_total",
			Help: "Total number of per-user poll cycles labeled by outcome",
		},
		[]string{"status"},
	)
	pollDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poll_duration_seconds",
			Help:    "Duration of a single user's poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_delivered_total",
			Help: "Total number of feed items handed to the notification sink",
		},
		[]string{"type"},
	)
	notifyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_errors_total",
			Help: "Total number of failed notification sends",
		},
	)
	trackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_users",
			Help: "Current number of tracked letterboxd users across all guilds",
		},
	)
)

// RecordPoll increments the poll counter for the given outcome.
func RecordPoll(status string) {
	if status == "" {
		status = "unknown"
	}
	pollsTotal.WithLabelValues(status).Inc()
}

// ObservePollDuration records how long one poll cycle took.
func ObservePollDuration(d time.Duration) {
	pollDurationSeconds.Observe(d.Seconds())
}

// RecordDelivered increments the delivered-items counter per item type.
func RecordDelivered(itemType string) {
	if itemType == "" {
		itemType = "unknown"
	}
	itemsDeliveredTotal.WithLabelValues(itemType).Inc()
}

// RecordNotifyError counts a failed send to the notification sink.
func RecordNotifyError() {
	notifyErrorsTotal.Inc()
}

// SetTrackedUsers updates the tracked-user gauge.
func SetTrackedUsers(count int) {
	trackedUsers.Set(float64(count))
}

// UserCounter reports the total number of tracked users.
type UserCounter interface {
	CountUsers(ctx context.Context) (int, error)
}

// Collector periodically sweeps the registry and updates the tracked-user
// gauge until ctx is cancelled.
type Collector struct {
	counter  UserCounter
	interval time.Duration
}

// NewCollector builds a gauge collector. A non-positive interval defaults to
// one minute.
func NewCollector(counter UserCounter, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{counter: counter, interval: interval}
}

// Run blocks, refreshing the gauge on every interval tick.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if n, err := c.counter.CountUsers(ctx); err == nil {
			SetTrackedUsers(n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
