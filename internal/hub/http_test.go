package hub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/datahub/internal/valuestore"
)

func TestHTTPCreateInputAndGetTree(t *testing.T) {
	h := newTestHub(t)
	mux := NewMux(h)

	body, _ := json.Marshal(createResourceRequest{DataType: "numeric", Units: "C"})
	req := httptest.NewRequest(http.MethodPost, "/tree/a/b/input", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/tree/a/b", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "input", resp["kind"])
}

func TestHTTPPushAndReadBuffer(t *testing.T) {
	h := newTestHub(t)
	mux := NewMux(h)

	_, err := h.GetObservation("/obs/a")
	require.NoError(t, err)
	require.NoError(t, h.Observation().SetBufferMax("/obs/a", 10))

	pushBody, _ := json.Marshal(pushRequest{DataType: "numeric", Value: json.RawMessage("3.5")})
	req := httptest.NewRequest(http.MethodPost, "/tree/obs/a/push", bytes.NewReader(pushBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/tree/obs/a/buffer", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3.5")
}

func TestHTTPDeleteUnknownPathIsNotFound(t *testing.T) {
	h := newTestHub(t)
	mux := NewMux(h)

	req := httptest.NewRequest(http.MethodDelete, "/tree/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPSetSource(t *testing.T) {
	h := newTestHub(t)
	mux := NewMux(h)

	_, err := h.CreateOutput("/src", valuestore.DataTypeBoolean, "")
	require.NoError(t, err)
	_, err = h.GetObservation("/obs/b")
	require.NoError(t, err)

	body, _ := json.Marshal(setSourceRequest{Source: "/src"})
	req := httptest.NewRequest(http.MethodPost, "/tree/obs/b/source", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestHub(t)
	mux := NewMux(h)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
