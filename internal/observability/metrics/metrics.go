package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "confreg_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"
)

var (
	registerOnce sync.Once

	submitTotal   *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec

	quoteTotal      *prometheus.CounterVec
	feeLookupErrors *prometheus.CounterVec

	cancelTotal *prometheus.CounterVec

	receiptRenderTotal   *prometheus.CounterVec
	receiptRenderLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	loginTotal       *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
	notifyTotal      *prometheus.CounterVec

	eventDeliveryTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		submitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_submit_total",
				Help: "Total registration submissions by result",
			},
			[]string{"result"},
		)
		submitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "registration_submit_latency_seconds",
				Help:    "Registration submit latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		quoteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_quote_total",
				Help: "Total fee quotes by phase and currency",
			},
			[]string{"phase", "currency"},
		)
		feeLookupErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_lookup_errors_total",
				Help: "Fee lookups that matched no rate table entry",
			},
			[]string{"kind"},
		)

		cancelTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_cancel_total",
				Help: "Total cancellations by result",
			},
			[]string{"result"},
		)

		receiptRenderTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipt_render_total",
				Help: "Total receipt renders by result",
			},
			[]string{"result"},
		)
		receiptRenderLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "receipt_render_latency_seconds",
				Help:    "Receipt render latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_export_total",
				Help: "Total registration exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "registration_export_latency_seconds",
				Help:    "Registration export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		loginTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "login_total",
				Help: "Total login attempts by kind and result",
			},
			[]string{"kind", "result"},
		)
		rateLimitedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		)
		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_total",
				Help: "Outbound notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		eventDeliveryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_delivery_total",
				Help: "Outbox event deliveries by event type, consumer and result",
			},
			[]string{"event_type", "consumer", "result"},
		)

		prometheus.MustRegister(
			submitTotal,
			submitLatency,
			quoteTotal,
			feeLookupErrors,
			cancelTotal,
			receiptRenderTotal,
			receiptRenderLatency,
			exportTotal,
			exportLatency,
			loginTotal,
			rateLimitedTotal,
			notifyTotal,
			eventDeliveryTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSubmit records submit duration and result.
func ObserveSubmit(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if submitTotal != nil {
		submitTotal.WithLabelValues(result).Inc()
	}
	if submitLatency != nil {
		submitLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncQuote counts a computed fee.
func IncQuote(phase, currency string) {
	if quoteTotal != nil {
		quoteTotal.WithLabelValues(phase, currency).Inc()
	}
}

// IncFeeLookupError counts a rate table miss.
func IncFeeLookupError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if feeLookupErrors != nil {
		feeLookupErrors.WithLabelValues(kind).Inc()
	}
}

// IncCancel counts a cancellation attempt.
func IncCancel(result string) {
	if result == "" {
		result = resultSuccess
	}
	if cancelTotal != nil {
		cancelTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReceiptRender records receipt render latency and result.
func ObserveReceiptRender(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if receiptRenderTotal != nil {
		receiptRenderTotal.WithLabelValues(result).Inc()
	}
	if receiptRenderLatency != nil {
		receiptRenderLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncLogin counts a login attempt.
func IncLogin(kind, result string) {
	if kind == "" {
		kind = "user"
	}
	if result == "" {
		result = resultSuccess
	}
	if loginTotal != nil {
		loginTotal.WithLabelValues(kind, result).Inc()
	}
}

// IncRateLimited counts a throttled request.
func IncRateLimited(route string) {
	if route == "" {
		route = "unknown"
	}
	if rateLimitedTotal != nil {
		rateLimitedTotal.WithLabelValues(route).Inc()
	}
}

// IncNotify counts an outbound notification.
func IncNotify(channel, result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, result).Inc()
	}
}

// IncEventDelivery counts one consumer handling one outbox event.
func IncEventDelivery(eventType, consumer, result string) {
	if eventDeliveryTotal != nil {
		eventDeliveryTotal.WithLabelValues(eventType, consumer, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected
)
