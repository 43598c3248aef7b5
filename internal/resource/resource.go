// Package resource implements the resource handle contract spec.md
// §4.5 treats as a collaborator of the tree: placeholder/input/output/
// observation behavior, push, routing, filters, buffering, and
// aggregates. The push/route/filter *fan-out* pipeline itself
// (spec.md §1 "res_*") stays out of scope — Push here performs the
// boundary checks spec.md actually specifies (data type, admin-update
// window) and a minimal filter gate, not a full rule engine.
package resource

import (
	"time"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// Kind distinguishes the resource-layer flavor of a handle. It is a
// strict subset of tree.Kind (Namespace is never a resource) kept as
// its own type so this package has no dependency on internal/tree.
type Kind uint8

const (
	KindIoPlaceholder Kind = iota
	KindObsPlaceholder
	KindInput
	KindOutput
	KindObservation
)

// PushHandler observes accepted pushes, used by AddPushHandler.
type PushHandler func(s *valuestore.Sample, dt valuestore.DataType)

// PushOpts carries push-time metadata that does not belong on the
// sample itself.
type PushOpts struct {
	// Source identifies the routing predecessor that produced this
	// push, if any. Push does not read it; routing cycles are rejected
	// only when a source is wired (Tree.SetSource).
	Source Handle
}

// Handle is the resource-layer contract the tree depends on
// (spec.md §4.5).
type Handle interface {
	Kind() Kind

	ConvertToInput(dt valuestore.DataType, units string) error
	ConvertToOutput(dt valuestore.DataType, units string) error
	ConvertToObservation() error
	// ConvertToPlaceholder reverts an Input/Output/Observation handle
	// back to a bare placeholder, preserving admin settings.
	ConvertToPlaceholder() error
	HasAdminSettings() bool

	Push(dt valuestore.DataType, opts PushOpts, sample *valuestore.Sample) error
	AddPushHandler(h PushHandler)
	GetCurrentValue() *valuestore.Sample
	GetUnits() string
	GetDataType() valuestore.DataType

	SetSource(src Handle) error
	GetSource() Handle

	// Observation-only filters. On a non-Observation handle, setters
	// return apierr.BadParameter and getters return neutral defaults
	// (spec.md §7, §9 redesign flag: guard consistently).
	SetMinPeriod(seconds float64) error
	GetMinPeriod() float64
	SetHighLimit(v float64) error
	GetHighLimit() float64
	SetLowLimit(v float64) error
	GetLowLimit() float64
	SetChangeBy(v float64) error
	GetChangeBy() float64
	SetTransform(expr string) error
	GetTransform() string
	SetBufferMax(n int) error
	GetBufferMax() int
	SetBackupPeriod(seconds float64) error
	GetBackupPeriod() float64
	SetJSONExtraction(path string) error
	GetJSONExtraction() string
	SetDestination(dest string) error
	GetDestination() string

	SetDefault(s *valuestore.Sample) error
	GetDefault() *valuestore.Sample
	RemoveDefault()
	SetOverride(s *valuestore.Sample) error
	GetOverride() *valuestore.Sample
	RemoveOverride()
	HasOverride() bool

	SetJSONExample(s string)
	GetJSONExample() string
	JSONExampleChanged() bool

	SetRelevance(v bool)
	IsRelevant() bool
	SetClearNewnessFlag(v bool)
	IsNewnessClearRequired() bool
	ClearNewness()
	IsNew() bool

	QueryMin() float64
	QueryMax() float64
	QueryMean() float64
	QueryStdDev() float64
	ReadBufferJson(w JSONWriter, startAfter float64) error
	FindBufferedSampleAfter(t float64) *valuestore.Sample

	StartUpdate()
	EndUpdate()
	RestoreBackup() error
}

// JSONWriter is the minimal sink ReadBufferJson writes to — an
// io.Writer would do, but this keeps the resource package from
// depending on io for a single method signature's sake while still
// accepting anything satisfying it (including *os.File / bytes.Buffer).
type JSONWriter interface {
	Write(p []byte) (n int, err error)
}

// thirtyYearSeconds is the heuristic threshold ReadBufferJson's
// startAfter parameter uses to distinguish a relative offset ("ago")
// from an absolute epoch timestamp (spec.md §6).
const thirtyYearSeconds = 30 * 365 * 24 * 3600

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

var errWrongKind = apierr.New(apierr.BadParameter, "operation not valid for this resource kind")
