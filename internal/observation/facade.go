// Package observation implements the administrative façade in front
// of Observation resources (spec.md §4.4): every accessor here
// resolves a path, checks that it names an Observation, and only then
// delegates to the resource handle. A path that does not name an
// Observation never reaches the handle — it gets a neutral default (or
// a no-op) and a single critical log line, consistently across every
// accessor (spec.md §9 redesign flag: the original only guarded some
// of these).
package observation

import (
	"math"

	"go.uber.org/zap"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/logging"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/tree"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// Facade wraps a Tree with the administrative guard every Observation
// accessor applies.
type Facade struct {
	tree   *tree.Tree
	logger *zap.Logger
}

func New(t *tree.Tree, logger *zap.Logger) *Facade {
	return &Facade{tree: t, logger: logger}
}

func (f *Facade) resolve(op, path string) (resource.Handle, error) {
	entry, err := f.tree.FindEntry(path)
	if err != nil {
		return nil, err
	}
	if entry.Kind() != tree.KindObservation {
		logging.Critical(f.logger, "observation accessor called on non-observation path",
			zap.String("op", op), zap.String("path", path), zap.String("kind", entry.Kind().String()))
		return nil, apierr.New(apierr.BadParameter, "%s: %q is not an observation", op, path)
	}
	return entry.Handle(), nil
}

func (f *Facade) GetMinPeriod(path string) float64 {
	h, err := f.resolve("GetMinPeriod", path)
	if err != nil {
		return math.NaN()
	}
	return h.GetMinPeriod()
}

func (f *Facade) SetMinPeriod(path string, seconds float64) error {
	h, err := f.resolve("SetMinPeriod", path)
	if err != nil {
		return err
	}
	return h.SetMinPeriod(seconds)
}

func (f *Facade) GetHighLimit(path string) float64 {
	h, err := f.resolve("GetHighLimit", path)
	if err != nil {
		return math.NaN()
	}
	return h.GetHighLimit()
}

func (f *Facade) SetHighLimit(path string, v float64) error {
	h, err := f.resolve("SetHighLimit", path)
	if err != nil {
		return err
	}
	return h.SetHighLimit(v)
}

func (f *Facade) GetLowLimit(path string) float64 {
	h, err := f.resolve("GetLowLimit", path)
	if err != nil {
		return math.NaN()
	}
	return h.GetLowLimit()
}

func (f *Facade) SetLowLimit(path string, v float64) error {
	h, err := f.resolve("SetLowLimit", path)
	if err != nil {
		return err
	}
	return h.SetLowLimit(v)
}

func (f *Facade) GetChangeBy(path string) float64 {
	h, err := f.resolve("GetChangeBy", path)
	if err != nil {
		return math.NaN()
	}
	return h.GetChangeBy()
}

func (f *Facade) SetChangeBy(path string, v float64) error {
	h, err := f.resolve("SetChangeBy", path)
	if err != nil {
		return err
	}
	return h.SetChangeBy(v)
}

func (f *Facade) GetTransform(path string) string {
	h, err := f.resolve("GetTransform", path)
	if err != nil {
		return ""
	}
	return h.GetTransform()
}

func (f *Facade) SetTransform(path, expr string) error {
	h, err := f.resolve("SetTransform", path)
	if err != nil {
		return err
	}
	return h.SetTransform(expr)
}

func (f *Facade) GetBufferMax(path string) int {
	h, err := f.resolve("GetBufferMax", path)
	if err != nil {
		return 0
	}
	return h.GetBufferMax()
}

func (f *Facade) SetBufferMax(path string, n int) error {
	h, err := f.resolve("SetBufferMax", path)
	if err != nil {
		return err
	}
	return h.SetBufferMax(n)
}

func (f *Facade) GetBackupPeriod(path string) float64 {
	h, err := f.resolve("GetBackupPeriod", path)
	if err != nil {
		return math.NaN()
	}
	return h.GetBackupPeriod()
}

func (f *Facade) SetBackupPeriod(path string, seconds float64) error {
	h, err := f.resolve("SetBackupPeriod", path)
	if err != nil {
		return err
	}
	return h.SetBackupPeriod(seconds)
}

func (f *Facade) GetJSONExtraction(path string) string {
	h, err := f.resolve("GetJSONExtraction", path)
	if err != nil {
		return ""
	}
	return h.GetJSONExtraction()
}

func (f *Facade) SetJSONExtraction(path, jsonPath string) error {
	h, err := f.resolve("SetJSONExtraction", path)
	if err != nil {
		return err
	}
	return h.SetJSONExtraction(jsonPath)
}

func (f *Facade) GetDestination(path string) string {
	h, err := f.resolve("GetDestination", path)
	if err != nil {
		return ""
	}
	return h.GetDestination()
}

func (f *Facade) SetDestination(path, dest string) error {
	h, err := f.resolve("SetDestination", path)
	if err != nil {
		return err
	}
	return h.SetDestination(dest)
}

func (f *Facade) SetDefault(path string, s *valuestore.Sample) error {
	h, err := f.resolve("SetDefault", path)
	if err != nil {
		return err
	}
	return h.SetDefault(s)
}

func (f *Facade) GetDefault(path string) *valuestore.Sample {
	h, err := f.resolve("GetDefault", path)
	if err != nil {
		return nil
	}
	return h.GetDefault()
}

func (f *Facade) RemoveDefault(path string) {
	h, err := f.resolve("RemoveDefault", path)
	if err != nil {
		return
	}
	h.RemoveDefault()
}

func (f *Facade) SetOverride(path string, s *valuestore.Sample) error {
	h, err := f.resolve("SetOverride", path)
	if err != nil {
		return err
	}
	return h.SetOverride(s)
}

func (f *Facade) GetOverride(path string) *valuestore.Sample {
	h, err := f.resolve("GetOverride", path)
	if err != nil {
		return nil
	}
	return h.GetOverride()
}

func (f *Facade) RemoveOverride(path string) {
	h, err := f.resolve("RemoveOverride", path)
	if err != nil {
		return
	}
	h.RemoveOverride()
}

func (f *Facade) HasOverride(path string) bool {
	h, err := f.resolve("HasOverride", path)
	if err != nil {
		return false
	}
	return h.HasOverride()
}

func (f *Facade) SetJSONExample(path, example string) error {
	h, err := f.resolve("SetJSONExample", path)
	if err != nil {
		return err
	}
	h.SetJSONExample(example)
	return nil
}

func (f *Facade) GetJSONExample(path string) string {
	h, err := f.resolve("GetJSONExample", path)
	if err != nil {
		return ""
	}
	return h.GetJSONExample()
}

func (f *Facade) JSONExampleChanged(path string) bool {
	h, err := f.resolve("JSONExampleChanged", path)
	if err != nil {
		return false
	}
	return h.JSONExampleChanged()
}

func (f *Facade) QueryMin(path string) float64 {
	h, err := f.resolve("QueryMin", path)
	if err != nil {
		return math.NaN()
	}
	return h.QueryMin()
}

func (f *Facade) QueryMax(path string) float64 {
	h, err := f.resolve("QueryMax", path)
	if err != nil {
		return math.NaN()
	}
	return h.QueryMax()
}

func (f *Facade) QueryMean(path string) float64 {
	h, err := f.resolve("QueryMean", path)
	if err != nil {
		return math.NaN()
	}
	return h.QueryMean()
}

func (f *Facade) QueryStdDev(path string) float64 {
	h, err := f.resolve("QueryStdDev", path)
	if err != nil {
		return math.NaN()
	}
	return h.QueryStdDev()
}

func (f *Facade) ReadBufferJson(path string, w resource.JSONWriter, startAfter float64) error {
	h, err := f.resolve("ReadBufferJson", path)
	if err != nil {
		return err
	}
	return h.ReadBufferJson(w, startAfter)
}

func (f *Facade) FindBufferedSampleAfter(path string, t float64) *valuestore.Sample {
	h, err := f.resolve("FindBufferedSampleAfter", path)
	if err != nil {
		return nil
	}
	return h.FindBufferedSampleAfter(t)
}

func (f *Facade) StartUpdate(path string) error {
	h, err := f.resolve("StartUpdate", path)
	if err != nil {
		return err
	}
	h.StartUpdate()
	return nil
}

func (f *Facade) EndUpdate(path string) error {
	h, err := f.resolve("EndUpdate", path)
	if err != nil {
		return err
	}
	h.EndUpdate()
	return nil
}

func (f *Facade) RestoreBackup(path string) error {
	h, err := f.resolve("RestoreBackup", path)
	if err != nil {
		return err
	}
	return h.RestoreBackup()
}
