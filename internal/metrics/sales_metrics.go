package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Имена операций движка продаж для метрик.
const (
	OperationCreate     = "create"
	OperationUpdate     = "update"
	OperationCancel     = "cancel"
	OperationCancelItem = "cancel_item"
	OperationDelete     = "delete"
	OperationList       = "list"
)

// SalesMetrics содержит метрики операций движка продаж.
type SalesMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	eventsDropped     prometheus.Counter
}

// NewSalesMetrics создаёт метрики и регистрирует их в default registry.
func NewSalesMetrics() *SalesMetrics {
	return newSalesMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSalesMetricsWithRegisterer(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SalesMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_operations_total",
			Help: "Total number of sale lifecycle operations grouped by operation and result.",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sales_operation_duration_seconds",
			Help:    "Duration of sale lifecycle operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		eventsDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_events_dropped_total",
			Help: "Total number of domain events lost after the publisher gave up.",
		}),
	}
}

// RecordOperation фиксирует исход операции движка.
func (m *SalesMetrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordOperationDuration фиксирует длительность операции.
func (m *SalesMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventDropped фиксирует событие, потерянное после исчерпания retry.
func (m *SalesMetrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
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

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
