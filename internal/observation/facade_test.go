package observation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/tree"
	"github.com/flowmesh/datahub/internal/valuestore"
)

func newTestFacade(t *testing.T) (*Facade, *tree.Tree, *observer.ObservedLogs) {
	t.Helper()
	store := valuestore.NewStore(64, 64, 64, 64)
	tr := tree.New(store, 64, 64, 256)
	core, logs := observer.New(zap.ErrorLevel)
	return New(tr, zap.New(core)), tr, logs
}

func TestFacadeDelegatesToObservation(t *testing.T) {
	f, tr, _ := newTestFacade(t)
	_, err := tr.GetObservation("/obs/a")
	require.NoError(t, err)

	require.NoError(t, f.SetMinPeriod("/obs/a", 2.5))
	assert.Equal(t, 2.5, f.GetMinPeriod("/obs/a"))

	require.NoError(t, f.SetBufferMax("/obs/a", 5))
	assert.Equal(t, 5, f.GetBufferMax("/obs/a"))
}

func TestFacadeRejectsNonObservationPathWithNeutralDefaults(t *testing.T) {
	f, tr, logs := newTestFacade(t)
	_, err := tr.CreateInput("/io/a", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)

	assert.True(t, math.IsNaN(f.GetMinPeriod("/io/a")))
	assert.Equal(t, "", f.GetTransform("/io/a"))
	assert.Equal(t, 0, f.GetBufferMax("/io/a"))
	assert.False(t, f.HasOverride("/io/a"))
	assert.Nil(t, f.GetDefault("/io/a"))

	err = f.SetMinPeriod("/io/a", 1.0)
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))

	require.GreaterOrEqual(t, logs.Len(), 1)
}

func TestFacadeUnknownPathIsNotFound(t *testing.T) {
	f, _, _ := newTestFacade(t)
	err := f.SetMinPeriod("/nope", 1.0)
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))
}

func TestFacadeReadBufferJsonOnNonObservation(t *testing.T) {
	f, tr, _ := newTestFacade(t)
	_, err := tr.CreateOutput("/io/b", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)

	var buf []byte
	err = f.ReadBufferJson("/io/b", &sliceWriter{&buf}, math.NaN())
	require.Error(t, err)
}

type sliceWriter struct{ buf *[]byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
