package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total waitlist operations",
		},
		[]string{"operation", "instance_id"},
	)

	votesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Total accepted votes per instance",
		},
		[]string{"instance_id"},
	)

	voteScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vote_score",
			Help:    "Distribution of accepted vote scores",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	performancesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performances_started_total",
			Help: "Total performances started per instance",
		},
		[]string{"instance_id"},
	)

	performancesEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "performances_ended_total",
			Help: "Total performances ended per instance",
		},
		[]string{"instance_id"},
	)

	realtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Currently connected realtime subscribers",
		},
	)

	droppedChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dropped_changes_total",
			Help: "Change notifications dropped on slow subscribers",
		},
		[]string{"collection"},
	)
)

// Track queue operations
func TrackQueueOperation(operation, instanceID string) {
	queueOperations.WithLabelValues(operation, instanceID).Inc()
}

// Track accepted votes
func TrackVote(instanceID string, score int) {
	votesCast.WithLabelValues(instanceID).Inc()
	voteScores.Observe(float64(score))
}

func TrackPerformanceStarted(instanceID string) {
	performancesStarted.WithLabelValues(instanceID).Inc()
}

func TrackPerformanceEnded(instanceID string) {
	performancesEnded.WithLabelValues(instanceID).Inc()
}

// TrackSubscribers records the current subscriber count.
func TrackSubscribers(n int) {
	realtimeSubscribers.Set(float64(n))
}

// TrackDroppedChange counts a notification lost to a slow subscriber.
func TrackDroppedChange(collection string) {
	droppedChanges.WithLabelValues(collection).Inc()
}
