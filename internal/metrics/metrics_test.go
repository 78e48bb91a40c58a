package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveReservation("reserved")
	m.ObserveReservation("reserved")
	m.ObserveReservation("conflict")
	m.ObserveCancellation("rejected")
	m.ObserveConfirmation("confirmed")
	m.ObserveSlotQuery("ok", 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservationsTotal.WithLabelValues("reserved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservationsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellationsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.slotQueryLatency))
}

func TestBookingMetricsSweep(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())

	m.ObserveSweep(3, nil)
	m.ObserveSweep(0, nil)
	m.ObserveSweep(0, errors.New("db down"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweptTotal.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweptTotal.WithLabelValues("error")))
}

func TestChatMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveExtraction("llm", "error")
	m.ObserveExtraction("keyword", "ok")
	m.ObserveCommit("sign_in_required")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionsTotal.WithLabelValues("llm", "error")))
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BookingMetrics
	b.ObserveReservation("reserved")
	b.ObserveCancellation("cancelled")
	b.ObserveConfirmation("confirmed")
	b.ObserveSlotQuery("ok", 0.1)
	b.ObserveSweep(1, nil)

	var c *ChatMetrics
	c.ObserveExtraction("llm", "ok")
	c.ObserveCommit("ok")
}
