package hub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifestEmptyPath(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)
	assert.Empty(t, m.Resources)
}

func TestManifestApplyCreatesSourcesAndAdminSettings(t *testing.T) {
	body := `
resources:
  - path: /plant/line1/temp
    kind: input
    data_type: numeric
    units: C
  - path: /obs/line1/avg_temp
    kind: observation
    source: /plant/line1/temp
    admin:
      min_period: 1.5
      high_limit: 100
      buffer_max: 10
`
	path := writeManifest(t, body)
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Resources, 2)

	h := newTestHub(t)
	require.NoError(t, m.Apply(h))

	src, err := h.GetSource("/obs/line1/avg_temp")
	require.NoError(t, err)
	assert.Equal(t, "/plant/line1/temp", src)

	assert.Equal(t, 1.5, h.Observation().GetMinPeriod("/obs/line1/avg_temp"))
	assert.Equal(t, 100.0, h.Observation().GetHighLimit("/obs/line1/avg_temp"))
	assert.Equal(t, 10, h.Observation().GetBufferMax("/obs/line1/avg_temp"))
}

func TestManifestApplyAdminOnNonObservationFails(t *testing.T) {
	body := `
resources:
  - path: /a
    kind: input
    data_type: numeric
    admin:
      min_period: 1.0
`
	path := writeManifest(t, body)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	h := newTestHub(t)
	err = m.Apply(h)
	require.Error(t, err)
}

func TestManifestApplyUnknownKind(t *testing.T) {
	body := `
resources:
  - path: /a
    kind: bogus
`
	path := writeManifest(t, body)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	h := newTestHub(t)
	require.Error(t, m.Apply(h))
}
