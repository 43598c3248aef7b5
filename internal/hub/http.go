package hub

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/tree"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// NewMux builds the admin HTTP surface spec.md §6 describes: tree
// mutation and inspection exposed as plain net/http handlers, the
// generalization of a catalog-browsing handler set to this domain's
// resource tree.
func NewMux(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tree/", h.handleTree)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

var treeActions = []string{"input", "output", "observation", "source", "push", "buffer"}

func (h *Hub) handleTree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tree")
	rest = strings.TrimPrefix(rest, "/")

	for _, action := range treeActions {
		if strings.HasSuffix(rest, "/"+action) {
			path := "/" + strings.TrimSuffix(rest, "/"+action)
			h.handleTreeAction(w, r, path, action)
			return
		}
	}

	path := "/" + rest
	switch r.Method {
	case http.MethodGet:
		h.handleGetTree(w, path)
	case http.MethodDelete:
		h.handleDeleteTree(w, path)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Hub) handleTreeAction(w http.ResponseWriter, r *http.Request, path, action string) {
	if r.Method != http.MethodPost && !(action == "buffer" && r.Method == http.MethodGet) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "input":
		h.handleCreateResource(w, r, path, true)
	case "output":
		h.handleCreateResource(w, r, path, false)
	case "observation":
		handle, err := h.GetObservation(path)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resourceView(path, handle))
	case "source":
		h.handleSetSource(w, r, path)
	case "push":
		h.handlePush(w, r, path)
	case "buffer":
		h.handleReadBuffer(w, r, path)
	}
}

func parseDataType(s string) (valuestore.DataType, error) {
	switch s {
	case "trigger":
		return valuestore.DataTypeTrigger, nil
	case "boolean":
		return valuestore.DataTypeBoolean, nil
	case "numeric":
		return valuestore.DataTypeNumeric, nil
	case "string":
		return valuestore.DataTypeString, nil
	case "json":
		return valuestore.DataTypeJSON, nil
	default:
		return 0, apierr.New(apierr.BadParameter, "unknown data type %q", s)
	}
}

type createResourceRequest struct {
	DataType string `json:"data_type"`
	Units    string `json:"units"`
}

func (h *Hub) handleCreateResource(w http.ResponseWriter, r *http.Request, path string, input bool) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dt, err := parseDataType(req.DataType)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var handle interface {
		GetDataType() valuestore.DataType
	}
	var createErr error
	if input {
		h, e := h.CreateInput(path, dt, req.Units)
		handle, createErr = h, e
	} else {
		h, e := h.CreateOutput(path, dt, req.Units)
		handle, createErr = h, e
	}
	if createErr != nil {
		writeAPIError(w, createErr)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"path":      path,
		"data_type": req.DataType,
		"units":     req.Units,
		"_":         handle,
	})
}

type setSourceRequest struct {
	Source string `json:"source"`
}

func (h *Hub) handleSetSource(w http.ResponseWriter, r *http.Request, path string) {
	var req setSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.SetSource(path, req.Source); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "source": req.Source})
}

type pushRequest struct {
	DataType  string          `json:"data_type"`
	Timestamp float64         `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
}

func (h *Hub) handlePush(w http.ResponseWriter, r *http.Request, path string) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dt, err := parseDataType(req.DataType)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = valuestore.Now
	}

	store := h.Store()
	var sample *valuestore.Sample
	var ok bool
	switch dt {
	case valuestore.DataTypeTrigger:
		sample, ok = store.CreateTrigger(ts)
	case valuestore.DataTypeBoolean:
		var v bool
		_ = json.Unmarshal(req.Value, &v)
		sample, ok = store.CreateBool(ts, v)
	case valuestore.DataTypeNumeric:
		var v float64
		_ = json.Unmarshal(req.Value, &v)
		sample, ok = store.CreateNumeric(ts, v)
	case valuestore.DataTypeString, valuestore.DataTypeJSON:
		var v string
		_ = json.Unmarshal(req.Value, &v)
		sample, ok = store.CreateString(ts, v)
	}
	if !ok {
		writeAPIError(w, apierr.New(apierr.NoMemory, "sample pool exhausted"))
		return
	}

	if err := h.Push(path, dt, sample); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"path": path})
}

func (h *Hub) handleReadBuffer(w http.ResponseWriter, r *http.Request, path string) {
	startAfter := math.NaN()
	if v := r.URL.Query().Get("start_after"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_after")
			return
		}
		startAfter = f
	}

	var buf bytes.Buffer
	if err := h.Observation().ReadBufferJson(path, &buf, startAfter); err != nil {
		writeAPIError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Hub) handleGetTree(w http.ResponseWriter, path string) {
	entry, err := h.Tree().FindEntry(path)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	children := make([]string, 0)
	for c := entry.FirstChild(); c != nil; c = c.NextSibling() {
		children = append(children, c.Name())
	}
	resp := map[string]interface{}{
		"path":     path,
		"kind":     entry.Kind().String(),
		"children": children,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Hub) handleDeleteTree(w http.ResponseWriter, path string) {
	entry, err := h.Tree().FindEntry(path)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	switch entry.Kind() {
	case tree.KindInput, tree.KindOutput:
		err = h.DeleteIO(path)
	case tree.KindObservation:
		err = h.DeleteObservation(path)
	default:
		err = apierr.New(apierr.BadParameter, "path %q is not a deletable resource", path)
	}
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "deleted": "true"})
}

func resourceView(path string, h interface{ GetDataType() valuestore.DataType }) map[string]interface{} {
	return map[string]interface{}{"path": path, "data_type": h.GetDataType().String()}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAPIError translates an apierr.Code into an HTTP status, the
// same type-switch-on-error-kind idiom catalog services in this corpus
// use at their HTTP boundary.
func writeAPIError(w http.ResponseWriter, err error) {
	switch apierr.CodeOf(err) {
	case apierr.NotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case apierr.Duplicate:
		writeError(w, http.StatusConflict, err.Error())
	case apierr.BadParameter:
		writeError(w, http.StatusBadRequest, err.Error())
	case apierr.Overflow:
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case apierr.NoMemory:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case apierr.InProgress:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
