// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles     prometheus.Counter
	FetchErrors    prometheus.Counter
	MessagesNew    prometheus.Counter
	MessagesEdited prometheus.Counter
	RateLimited    prometheus.Counter

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	RoomsJoinedGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_poll_cycles_total", Help: "Number of polling cycles started"})
		FetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_errors_total", Help: "Number of per-room fetch failures surfaced to the consumer"})
		MessagesNew = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_new_total", Help: "Number of new messages dispatched"})
		MessagesEdited = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_edited_total", Help: "Number of message edits dispatched"})
		RateLimited = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_rate_limited_total", Help: "Number of 409 rate-limit responses seen"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_fetch_duration_seconds", Help: "Per-room batch fetch duration seconds", Buckets: prometheus.DefBuckets})
		RoomsJoinedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_rooms_joined", Help: "Number of currently joined rooms"})
	})
}

// The helpers below tolerate Init not having run, so library code and tests
// never trip over nil metrics.

// IncPollCycles counts a polling cycle.
func IncPollCycles() {
	if PollCycles != nil {
		PollCycles.Inc()
	}
}

// IncFetchErrors counts a per-room fetch failure.
func IncFetchErrors() {
	if FetchErrors != nil {
		FetchErrors.Inc()
	}
}

// IncMessagesNew counts a dispatched new message.
func IncMessagesNew() {
	if MessagesNew != nil {
		MessagesNew.Inc()
	}
}

// IncMessagesEdited counts a dispatched edit.
func IncMessagesEdited() {
	if MessagesEdited != nil {
		MessagesEdited.Inc()
	}
}

// IncRateLimited counts a 409 response.
func IncRateLimited() {
	if RateLimited != nil {
		RateLimited.Inc()
	}
}

// ObserveFetchDuration records one room fetch duration.
func ObserveFetchDuration(d time.Duration) {
	if FetchDuration != nil {
		FetchDuration.Observe(d.Seconds())
	}
}

// SetRoomsJoined records the current joined-room count.
func SetRoomsJoined(n int) {
	if RoomsJoinedGauge != nil {
		RoomsJoinedGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
