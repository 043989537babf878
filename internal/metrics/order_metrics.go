package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики приёма заказов и учёта остатков.
// Методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type OrderMetrics struct {
	// Приём заказов
	ordersCreated      prometheus.Counter
	orderFailures      *prometheus.CounterVec
	orderNumberRetries prometheus.Counter
	assembleDuration   prometheus.Histogram
	activeAssemblies   prometheus.Gauge

	// Остатки
	stockCommitDuration prometheus.Histogram
	stockRaceLost       prometheus.Counter
	stockCompensations  prometheus.Counter

	// Статусы и доступ
	statusTransitions *prometheus.CounterVec
	accessDecisions   *prometheus.CounterVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Очистка idempotency-ключей
	idempotencySweeps  *prometheus.CounterVec
	idempotencyExpired prometheus.Counter
	idempotencyBacklog prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders accepted and persisted",
		}),
		orderFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_failures_total",
			Help: "Total number of rejected order submissions by reason",
		}, []string{"reason"}),
		orderNumberRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_number_retries_total",
			Help: "Total number of order number collisions retried",
		}),
		assembleDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_assemble_duration_seconds",
			Help:    "Duration of order assembly in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		activeAssemblies: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_order_assemblies",
			Help: "Number of order submissions currently being assembled",
		}),
		stockCommitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_stock_commit_duration_seconds",
			Help:    "Duration of stock commit for a single order in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		stockRaceLost: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_race_lost_total",
			Help: "Total number of conditional stock decrements that lost a race",
		}),
		stockCompensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_compensations_total",
			Help: "Total number of stock compensations applied",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Total number of order status transitions by target status",
		}, []string{"status"}),
		accessDecisions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_access_decisions_total",
			Help: "Total number of access filter decisions",
		}, []string{"resource", "action", "result"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		idempotencySweeps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_sweeps_total",
			Help: "Total number of idempotency key sweeps by result",
		}, []string{"result"}),
		idempotencyExpired: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_keys_expired_total",
			Help: "Total number of expired CreateOrder idempotency keys removed",
		}),
		idempotencyBacklog: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_sweep_backlog",
			Help: "1 when the last sweep stopped at its batch limit with expired keys left",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик принятых заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderFailed учитывает отклонённый заказ с причиной (kind ошибки).
func (m *OrderMetrics) RecordOrderFailed(reason string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(reason).Inc()
}

// RecordOrderNumberRetry учитывает коллизию номера заказа.
func (m *OrderMetrics) RecordOrderNumberRetry() {
	if m == nil {
		return
	}
	m.orderNumberRetries.Inc()
}

// RecordAssembleStarted увеличивает число сборок заказа в работе.
func (m *OrderMetrics) RecordAssembleStarted() {
	if m == nil {
		return
	}
	m.activeAssemblies.Inc()
}

// RecordAssembleFinished уменьшает число сборок в работе и пишет длительность.
func (m *OrderMetrics) RecordAssembleFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.activeAssemblies.Dec()
	m.assembleDuration.Observe(duration.Seconds())
}

// RecordStockCommitDuration записывает время списания остатков по заказу.
func (m *OrderMetrics) RecordStockCommitDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.stockCommitDuration.Observe(duration.Seconds())
}

// RecordStockRaceLost учитывает проигранную гонку за остаток.
func (m *OrderMetrics) RecordStockRaceLost() {
	if m == nil {
		return
	}
	m.stockRaceLost.Inc()
}

// RecordStockCompensation учитывает применённую компенсацию.
func (m *OrderMetrics) RecordStockCompensation() {
	if m == nil {
		return
	}
	m.stockCompensations.Inc()
}

// RecordStatusTransition учитывает переход заказа в статус status.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordAccessDecision учитывает решение фильтра доступа.
func (m *OrderMetrics) RecordAccessDecision(resource, action string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.accessDecisions.WithLabelValues(resource, action, result).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordIdempotencySweep учитывает проход очистки idempotency-ключей.
// result: ok, partial (упёрлись в лимит батчей) или error.
func (m *OrderMetrics) RecordIdempotencySweep(result string, deleted int) {
	if m == nil {
		return
	}
	m.idempotencySweeps.WithLabelValues(result).Inc()
	m.idempotencyExpired.Add(float64(deleted))
	if result == "partial" {
		m.idempotencyBacklog.Set(1)
	} else if result == "ok" {
		m.idempotencyBacklog.Set(0)
	}
}
