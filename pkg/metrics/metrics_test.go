package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegisterer("unit", reg)

	c.RecordReportCreated("regular")
	c.RecordReportCreated("regular")
	c.RecordReportCreated("rotura")
	c.RecordIngestionError("validation_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ReportsCreatedTotal.WithLabelValues("regular")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReportsCreatedTotal.WithLabelValues("rotura")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestionErrorsTotal.WithLabelValues("validation_error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "unit_reports_created_total")
}

func TestTestCollectorsDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewTestCollector()
		NewTestCollector()
	})
}

func TestUpdateDBConnectionPool(t *testing.T) {
	c := NewTestCollector()
	c.UpdateDBConnectionPool(3, 2, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("idle")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimerObserves(t *testing.T) {
	c := NewTestCollector()
	timer := c.NewTimer(c.AggregationDuration.WithLabelValues("histogram"))
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(c.AggregationDuration))
}
