package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// Значения метки result.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Значения метки op.
const (
	OpCreate   = "create"
	OpListAll  = "list_all"
	OpFindByID = "find_by_id"
	OpDelete   = "delete_by_id"
)

// StoreMetrics содержит метрики операций хранилища заказов.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
}

// NewStoreMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	return &StoreMetrics{
		operations: registerCollector(registerer, "orders_store_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_store_operations_total",
			Help: "Total number of order store operations by backend, operation and result",
		}, []string{"backend", "op", "result"})),
		duration: registerCollector(registerer, "orders_store_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orders_store_operation_duration_seconds",
			Help:    "Duration of order store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"backend", "op"})),
		inFlight: registerCollector(registerer, "orders_store_operations_in_flight", prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orders_store_operations_in_flight",
			Help: "Number of order store operations currently executing",
		}, []string{"backend"})),
	}
}

// Observe фиксирует завершённую операцию.
func (m *StoreMetrics) Observe(backend, op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(backend, op, resultOf(err)).Inc()
	m.duration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrOrderNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}

type instrumentedStore struct {
	inner   domain.OrderStore
	backend string
	metrics *StoreMetrics
}

// InstrumentStore оборачивает хранилище сбором метрик. При metrics == nil
// возвращает inner без изменений.
func InstrumentStore(inner domain.OrderStore, backend string, metrics *StoreMetrics) domain.OrderStore {
	if metrics == nil {
		return inner
	}
	return &instrumentedStore{inner: inner, backend: backend, metrics: metrics}
}

func (s *instrumentedStore) track(op string) func(error) {
	start := time.Now()
	gauge := s.metrics.inFlight.WithLabelValues(s.backend)
	gauge.Inc()
	return func(err error) {
		gauge.Dec()
		s.metrics.Observe(s.backend, op, err, time.Since(start))
	}
}

func (s *instrumentedStore) Create(ctx context.Context, in domain.NewOrder) (order domain.Order, err error) {
	done := s.track(OpCreate)
	defer func() { done(err) }()
	return s.inner.Create(ctx, in)
}

func (s *instrumentedStore) ListAll(ctx context.Context) (orders []domain.Order, err error) {
	done := s.track(OpListAll)
	defer func() { done(err) }()
	return s.inner.ListAll(ctx)
}

func (s *instrumentedStore) FindByID(ctx context.Context, id int64) (order domain.Order, err error) {
	done := s.track(OpFindByID)
	defer func() { done(err) }()
	return s.inner.FindByID(ctx, id)
}

func (s *instrumentedStore) DeleteByID(ctx context.Context, id int64) (deleted bool, err error) {
	done := s.track(OpDelete)
	defer func() { done(err) }()
	return s.inner.DeleteByID(ctx, id)
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

var _ domain.OrderStore = (*instrumentedStore)(nil)
