package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты поиска платёжных данных.
const (
	PaymentLookupFound   = "found"
	PaymentLookupMissing = "missing"
	PaymentLookupError   = "error"
)

// CheckoutMetrics содержит метрики оформления покупки.
type CheckoutMetrics struct {
	// Счётчики переходов
	checkoutEntered     prometheus.Counter
	checkoutCommitted   prometheus.Counter
	checkoutPartial     prometheus.Counter
	checkoutRejected    prometheus.Counter
	unauthenticated     prometheus.Counter
	paymentLookups      *prometheus.CounterVec
	remoteWriteFailures *prometheus.CounterVec

	// Гистограммы
	commitDuration prometheus.Histogram
	stepDuration   *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutEntered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_entered_total",
			Help: "Total number of checkout screens entered by signed-in customers",
		}),
		checkoutCommitted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_committed_total",
			Help: "Total number of checkouts committed with every remote write applied",
		}),
		checkoutPartial: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_partial_failures_total",
			Help: "Total number of checkouts reported successful while a remote write failed",
		}),
		checkoutRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_validation_rejected_total",
			Help: "Total number of confirmations rejected by validation",
		}),
		unauthenticated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_unauthenticated_total",
			Help: "Total number of checkout attempts without a signed-in customer",
		}),
		paymentLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_payment_lookups_total",
			Help: "Payment method lookups by result",
		}, []string{"result"}),
		remoteWriteFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "petshop_checkout_remote_write_failures_total",
			Help: "Remote write failures swallowed during commit, by step",
		}, []string{"step"}),
		commitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "petshop_checkout_commit_duration_seconds",
			Help:    "Duration of checkout commit in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "petshop_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_timeline_events_total",
			Help: "Total number of checkout timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "petshop_outbox_events_total",
			Help: "Total number of checkout events enqueued to the outbox",
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "petshop_active_checkouts",
			Help: "Number of checkout commits currently in progress",
		}),
	}
}

// RecordEntered увеличивает счётчик входов в оформление.
func (m *CheckoutMetrics) RecordEntered() {
	m.checkoutEntered.Inc()
}

// RecordUnauthenticated учитывает попытку оформления без входа.
func (m *CheckoutMetrics) RecordUnauthenticated() {
	m.unauthenticated.Inc()
}

// RecordPaymentLookup учитывает результат поиска платёжных данных.
func (m *CheckoutMetrics) RecordPaymentLookup(result string) {
	m.paymentLookups.WithLabelValues(result).Inc()
}

// RecordRejected учитывает отказ валидации при подтверждении.
func (m *CheckoutMetrics) RecordRejected() {
	m.checkoutRejected.Inc()
}

// RecordCommitStarted увеличивает число активных оформлений.
func (m *CheckoutMetrics) RecordCommitStarted() {
	m.activeCheckouts.Inc()
}

// RecordCommitFinished фиксирует завершение оформления.
func (m *CheckoutMetrics) RecordCommitFinished(partial bool, duration time.Duration) {
	m.activeCheckouts.Dec()
	m.commitDuration.Observe(duration.Seconds())
	if partial {
		m.checkoutPartial.Inc()
		return
	}
	m.checkoutCommitted.Inc()
}

// RecordRemoteWriteFailure учитывает проглоченную ошибку записи.
func (m *CheckoutMetrics) RecordRemoteWriteFailure(step string) {
	m.remoteWriteFailures.WithLabelValues(step).Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
