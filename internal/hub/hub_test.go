package hub

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/config"
	"github.com/flowmesh/datahub/internal/metrics"
	"github.com/flowmesh/datahub/internal/valuestore"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := config.Default()
	cfg.Pools.EntryCapacity = 64
	cfg.Pools.SampleCapacity = 64
	cfg.Pools.StringSmallCapacity = 16
	cfg.Pools.StringMediumCapacity = 16
	cfg.Pools.StringLargeCapacity = 16
	m := metrics.New(prometheus.NewRegistry())
	return New(cfg, zap.NewNop(), m)
}

func TestHubCreateAndPush(t *testing.T) {
	h := newTestHub(t)

	_, err := h.CreateInput("/a/b", valuestore.DataTypeNumeric, "C")
	require.NoError(t, err)

	s, ok := h.Store().CreateNumeric(valuestore.Now, 42)
	require.True(t, ok)

	require.NoError(t, h.Push("/a/b", valuestore.DataTypeNumeric, s))

	entry, err := h.Tree().FindEntry("/a/b")
	require.NoError(t, err)
	v, isFloat := entry.Handle().GetCurrentValue().Float()
	require.True(t, isFloat)
	assert.Equal(t, 42.0, v)
}

func TestHubPushToMissingPathCreditsMetric(t *testing.T) {
	h := newTestHub(t)
	s, ok := h.Store().CreateNumeric(valuestore.Now, 1)
	require.True(t, ok)

	err := h.Push("/nope", valuestore.DataTypeNumeric, s)
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))
}

func TestHubPushToNamespaceDropsSampleAndRejects(t *testing.T) {
	h := newTestHub(t)
	_, err := h.CreateInput("/a/b", valuestore.DataTypeNumeric, "C")
	require.NoError(t, err)

	s, ok := h.Store().CreateNumeric(valuestore.Now, 1)
	require.True(t, ok)

	err = h.Push("/a", valuestore.DataTypeNumeric, s)
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))
}

func TestHubSetSourceAndGetSource(t *testing.T) {
	h := newTestHub(t)
	_, err := h.CreateOutput("/src", valuestore.DataTypeBoolean, "")
	require.NoError(t, err)
	_, err = h.GetObservation("/obs/x")
	require.NoError(t, err)

	require.NoError(t, h.SetSource("/obs/x", "/src"))
	got, err := h.GetSource("/obs/x")
	require.NoError(t, err)
	assert.Equal(t, "/src", got)
}

func TestHubRefreshMetricsDoesNotPanic(t *testing.T) {
	h := newTestHub(t)
	_, err := h.CreateInput("/a", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	h.RefreshMetrics()
}
