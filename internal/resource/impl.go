package resource

import (
	"fmt"
	"math"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// impl is the single concrete Handle implementation backing every
// kind. Centralizing the state (rather than one struct per kind)
// mirrors spec.md's own "resource handle is polymorphic" design note:
// one object, a capability set gated by kind.
type impl struct {
	store *valuestore.Store
	kind  Kind

	dataType valuestore.DataType
	units    string
	current  *valuestore.Sample

	source       Handle
	pushHandlers []PushHandler

	// Observation-only admin settings.
	minPeriod     float64
	highLimit     float64
	lowLimit      float64
	hasHighLimit  bool
	hasLowLimit   bool
	changeBy      float64
	hasChangeBy   bool
	transform     string
	bufferMax     int
	backupPeriod  float64
	jsonExtract   string
	destination   string
	buffer        []*valuestore.Sample

	def      *valuestore.Sample
	override *valuestore.Sample

	jsonExample        string
	jsonExampleChanged bool

	relevant         bool
	clearNewRequired bool
	isNew            bool

	updateDepth int
}

// NewIoPlaceholder allocates a fresh io-flavored placeholder handle.
func NewIoPlaceholder(store *valuestore.Store) Handle {
	return &impl{store: store, kind: KindIoPlaceholder, isNew: true, bufferMax: 0}
}

// NewObsPlaceholder allocates a fresh observation-flavored placeholder handle.
func NewObsPlaceholder(store *valuestore.Store) Handle {
	return &impl{store: store, kind: KindObsPlaceholder, isNew: true, bufferMax: 64}
}

func (r *impl) Kind() Kind { return r.kind }

func (r *impl) isObservation() bool {
	return r.kind == KindObservation || r.kind == KindObsPlaceholder
}

// --- state transitions -----------------------------------------------------

func (r *impl) ConvertToInput(dt valuestore.DataType, units string) error {
	if r.kind != KindIoPlaceholder {
		return apierr.New(apierr.BadParameter, "ConvertToInput requires an io placeholder, got %s", r.kind)
	}
	r.kind = KindInput
	r.dataType = dt
	r.units = units
	return nil
}

func (r *impl) ConvertToOutput(dt valuestore.DataType, units string) error {
	if r.kind != KindIoPlaceholder {
		return apierr.New(apierr.BadParameter, "ConvertToOutput requires an io placeholder, got %s", r.kind)
	}
	r.kind = KindOutput
	r.dataType = dt
	r.units = units
	return nil
}

func (r *impl) ConvertToObservation() error {
	if r.kind != KindObsPlaceholder {
		return apierr.New(apierr.BadParameter, "ConvertToObservation requires an observation placeholder, got %s", r.kind)
	}
	r.kind = KindObservation
	return nil
}

func (r *impl) ConvertToPlaceholder() error {
	switch r.kind {
	case KindInput, KindOutput:
		r.kind = KindIoPlaceholder
	case KindObservation:
		r.kind = KindObsPlaceholder
	default:
		return apierr.New(apierr.BadParameter, "ConvertToPlaceholder invalid from %s", r.kind)
	}
	return nil
}

func (r *impl) HasAdminSettings() bool {
	return r.def != nil || r.override != nil ||
		r.minPeriod != 0 || r.hasHighLimit || r.hasLowLimit || r.hasChangeBy ||
		r.transform != "" || r.backupPeriod != 0 || r.jsonExtract != "" ||
		r.destination != "" || r.source != nil
}

// --- push / routing ---------------------------------------------------------

func (r *impl) Push(dt valuestore.DataType, opts PushOpts, sample *valuestore.Sample) error {
	if sample == nil {
		return apierr.New(apierr.BadParameter, "push requires a sample")
	}
	if r.updateDepth > 0 {
		r.store.Release(sample)
		return apierr.New(apierr.InProgress, "push rejected: admin update window active")
	}
	if r.kind == KindInput || r.kind == KindOutput {
		if r.dataType != dt {
			r.store.Release(sample)
			return apierr.New(apierr.BadParameter, "push data type %s does not match resource type %s", dt, r.dataType)
		}
	} else if r.kind != KindObservation {
		r.store.Release(sample)
		return apierr.New(apierr.BadParameter, "push not valid for resource kind %s", r.kind)
	}

	if !r.passesFilters(dt, sample) {
		r.store.Release(sample)
		return nil
	}

	if r.isObservation() {
		r.appendBuffer(sample)
	}

	old := r.current
	r.current = sample
	if old != nil {
		r.store.Release(old)
	}

	for _, h := range r.pushHandlers {
		h(sample, dt)
	}
	return nil
}

// passesFilters applies the Observation boundary checks spec.md names
// (min-period, high/low limit, change-by). The full filter/transform
// DSL and destination fan-out are the out-of-scope res_* pipeline;
// this only implements the checks the spec itself enumerates as
// filter parameters.
func (r *impl) passesFilters(dt valuestore.DataType, sample *valuestore.Sample) bool {
	if r.kind != KindObservation {
		return true
	}
	if r.minPeriod > 0 && r.current != nil {
		if sample.Timestamp()-r.current.Timestamp() < r.minPeriod {
			return false
		}
	}
	if dt == valuestore.DataTypeNumeric {
		f, _ := sample.Float()
		if r.hasHighLimit && f > r.highLimit {
			return false
		}
		if r.hasLowLimit && f < r.lowLimit {
			return false
		}
		if r.hasChangeBy && r.current != nil {
			prev, ok := r.current.Float()
			if ok && math.Abs(f-prev) < r.changeBy {
				return false
			}
		}
	}
	return true
}

func (r *impl) AddPushHandler(h PushHandler) {
	r.pushHandlers = append(r.pushHandlers, h)
}

func (r *impl) GetCurrentValue() *valuestore.Sample { return r.current }
func (r *impl) GetUnits() string                    { return r.units }
func (r *impl) GetDataType() valuestore.DataType     { return r.dataType }

func (r *impl) SetSource(src Handle) error {
	r.source = src
	return nil
}
func (r *impl) GetSource() Handle { return r.source }

// --- filters -----------------------------------------------------------

func (r *impl) SetMinPeriod(seconds float64) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.minPeriod = seconds
	return nil
}
func (r *impl) GetMinPeriod() float64 {
	if !r.isObservation() {
		return math.NaN()
	}
	return r.minPeriod
}

func (r *impl) SetHighLimit(v float64) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.highLimit, r.hasHighLimit = v, true
	return nil
}
func (r *impl) GetHighLimit() float64 {
	if !r.isObservation() {
		return math.NaN()
	}
	return r.highLimit
}

func (r *impl) SetLowLimit(v float64) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.lowLimit, r.hasLowLimit = v, true
	return nil
}
func (r *impl) GetLowLimit() float64 {
	if !r.isObservation() {
		return math.NaN()
	}
	return r.lowLimit
}

func (r *impl) SetChangeBy(v float64) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.changeBy, r.hasChangeBy = v, true
	return nil
}
func (r *impl) GetChangeBy() float64 {
	if !r.isObservation() {
		return math.NaN()
	}
	return r.changeBy
}

func (r *impl) SetTransform(expr string) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.transform = expr
	return nil
}
func (r *impl) GetTransform() string {
	if !r.isObservation() {
		return ""
	}
	return r.transform
}

func (r *impl) SetBufferMax(n int) error {
	if !r.isObservation() {
		return errWrongKind
	}
	if n < 0 {
		return apierr.New(apierr.BadParameter, "buffer max must be >= 0")
	}
	r.bufferMax = n
	if len(r.buffer) > n {
		r.buffer = r.buffer[len(r.buffer)-n:]
	}
	return nil
}
func (r *impl) GetBufferMax() int {
	if !r.isObservation() {
		return 0
	}
	return r.bufferMax
}

func (r *impl) SetBackupPeriod(seconds float64) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.backupPeriod = seconds
	return nil
}
func (r *impl) GetBackupPeriod() float64 {
	if !r.isObservation() {
		return math.NaN()
	}
	return r.backupPeriod
}

func (r *impl) SetJSONExtraction(path string) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.jsonExtract = path
	return nil
}
func (r *impl) GetJSONExtraction() string {
	if !r.isObservation() {
		return ""
	}
	return r.jsonExtract
}

func (r *impl) SetDestination(dest string) error {
	if !r.isObservation() {
		return errWrongKind
	}
	r.destination = dest
	return nil
}
func (r *impl) GetDestination() string {
	if !r.isObservation() {
		return ""
	}
	return r.destination
}

// --- default / override -------------------------------------------------

func (r *impl) SetDefault(s *valuestore.Sample) error {
	if r.def != nil {
		r.store.Release(r.def)
	}
	r.def = s
	return nil
}
func (r *impl) GetDefault() *valuestore.Sample { return r.def }
func (r *impl) RemoveDefault() {
	if r.def != nil {
		r.store.Release(r.def)
		r.def = nil
	}
}

func (r *impl) SetOverride(s *valuestore.Sample) error {
	if r.override != nil {
		r.store.Release(r.override)
	}
	r.override = s
	return nil
}
func (r *impl) GetOverride() *valuestore.Sample { return r.override }
func (r *impl) RemoveOverride() {
	if r.override != nil {
		r.store.Release(r.override)
		r.override = nil
	}
}
func (r *impl) HasOverride() bool { return r.override != nil }

func (r *impl) SetJSONExample(s string) {
	if r.jsonExample != s {
		r.jsonExampleChanged = true
	}
	r.jsonExample = s
}
func (r *impl) GetJSONExample() string   { return r.jsonExample }
func (r *impl) JSONExampleChanged() bool { return r.jsonExampleChanged }

// --- snapshot flags ------------------------------------------------------

func (r *impl) SetRelevance(v bool)            { r.relevant = v }
func (r *impl) IsRelevant() bool               { return r.relevant }
func (r *impl) SetClearNewnessFlag(v bool)     { r.clearNewRequired = v }
func (r *impl) IsNewnessClearRequired() bool   { return r.clearNewRequired }
func (r *impl) ClearNewness()                  { r.isNew = false; r.clearNewRequired = false }
func (r *impl) IsNew() bool                    { return r.isNew }

// --- buffer / aggregates ---------------------------------------------------

func (r *impl) appendBuffer(s *valuestore.Sample) {
	if r.bufferMax <= 0 {
		return
	}
	r.buffer = append(r.buffer, r.store.Retain(s))
	if len(r.buffer) > r.bufferMax {
		evicted := r.buffer[0]
		r.buffer = r.buffer[1:]
		r.store.Release(evicted)
	}
}

func (r *impl) numericSamples() []float64 {
	out := make([]float64, 0, len(r.buffer))
	for _, s := range r.buffer {
		if f, ok := s.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

func (r *impl) QueryMin() float64 {
	vals := r.numericSamples()
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (r *impl) QueryMax() float64 {
	vals := r.numericSamples()
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (r *impl) QueryMean() float64 {
	vals := r.numericSamples()
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func (r *impl) QueryStdDev() float64 {
	vals := r.numericSamples()
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := r.QueryMean()
	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)-1))
}

// ReadBufferJson writes the buffer as a JSON array of
// {"t":<seconds>,"v":<value>} objects, honoring the 30-year
// relative/absolute heuristic on startAfter (spec.md §6). NaN means
// "from the oldest retained sample".
func (r *impl) ReadBufferJson(w JSONWriter, startAfter float64) error {
	threshold := math.NaN()
	if !math.IsNaN(startAfter) {
		if startAfter <= thirtyYearSeconds {
			threshold = nowSeconds() - startAfter
		} else {
			threshold = startAfter
		}
	}

	if _, err := w.Write([]byte("[")); err != nil {
		return apierr.New(apierr.Fault, "write buffer: %v", err)
	}
	first := true
	for _, s := range r.buffer {
		if !math.IsNaN(threshold) && s.Timestamp() <= threshold {
			continue
		}
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return apierr.New(apierr.Fault, "write buffer: %v", err)
			}
		}
		first = false
		entry := formatBufferEntry(s)
		if _, err := w.Write([]byte(entry)); err != nil {
			return apierr.New(apierr.Fault, "write buffer: %v", err)
		}
	}
	_, err := w.Write([]byte("]"))
	if err != nil {
		return apierr.New(apierr.Fault, "write buffer: %v", err)
	}
	return nil
}

func formatBufferEntry(s *valuestore.Sample) string {
	if s.IsTrigger() {
		return fmt.Sprintf(`{"t":%s}`, formatTimestamp(s.Timestamp()))
	}
	if b, ok := s.Bool(); ok {
		return fmt.Sprintf(`{"t":%s,"v":%t}`, formatTimestamp(s.Timestamp()), b)
	}
	if f, ok := s.Float(); ok {
		return fmt.Sprintf(`{"t":%s,"v":%s}`, formatTimestamp(s.Timestamp()), formatNumber(f))
	}
	v, _ := s.String()
	buf := make([]byte, len(v)+3)
	n, _ := valuestore.ConvertToJson(s, valuestore.DataTypeString, buf)
	return fmt.Sprintf(`{"t":%s,"v":%s}`, formatTimestamp(s.Timestamp()), string(buf[:n]))
}

func formatTimestamp(t float64) string { return fmt.Sprintf("%.6f", t) }
func formatNumber(f float64) string    { return fmt.Sprintf("%g", f) }

func (r *impl) FindBufferedSampleAfter(t float64) *valuestore.Sample {
	for _, s := range r.buffer {
		if s.Timestamp() > t {
			return s
		}
	}
	return nil
}

// --- update barrier --------------------------------------------------------

func (r *impl) StartUpdate() { r.updateDepth++ }
func (r *impl) EndUpdate() {
	if r.updateDepth > 0 {
		r.updateDepth--
	}
}

func (r *impl) RestoreBackup() error {
	// Persistent backup of observation buffers is explicitly out of
	// scope (spec.md §1); this validates applicability and otherwise
	// leaves the buffer untouched rather than inventing a format.
	if !r.isObservation() {
		return errWrongKind
	}
	return nil
}
