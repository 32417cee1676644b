package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSalesMetrics_RecordOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSalesMetricsWithRegisterer(registry)

	m.RecordOperation(OperationCreate, nil)
	m.RecordOperation(OperationCreate, nil)
	m.RecordOperation(OperationCreate, errors.New("boom"))
	m.RecordOperation(OperationCancel, nil)

	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationCreate, "ok")); got != 2 {
		t.Fatalf("expected 2 successful creates, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationCreate, "error")); got != 1 {
		t.Fatalf("expected 1 failed create, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(OperationCancel, "ok")); got != 1 {
		t.Fatalf("expected 1 successful cancel, got %v", got)
	}
}

func TestSalesMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *SalesMetrics

	m.RecordOperation(OperationCreate, nil)
	m.RecordOperationDuration(OperationCreate, time.Second)
	m.RecordEventDropped()
}

func TestSalesMetrics_DoubleRegistrationReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newSalesMetricsWithRegisterer(registry)
	second := newSalesMetricsWithRegisterer(registry)

	first.RecordEventDropped()
	second.RecordEventDropped()

	if got := testutil.ToFloat64(second.eventsDropped); got != 2 {
		t.Fatalf("expected shared counter with value 2, got %v", got)
	}
}
