package valuestore

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/flowmesh/datahub/internal/jsonextract"
)

// ErrOverflow is returned by ConvertToJson when dst cannot hold the
// result including its terminator (spec.md §6 OVERFLOW).
var ErrOverflow = errors.New("valuestore: destination buffer too small")

// ConvertToJson renders s as JSON text into dst, per the per-type
// rules in spec.md §4.7. It returns the number of bytes written.
//
// STRING and JSON values are copied verbatim with no escaping — this
// reproduces spec.md's documented (and flagged-as-likely-incorrect)
// source behavior rather than silently diverging from it. A caller
// that needs RFC 8259-correct output should escape before pushing a
// string sample; see spec.md §9 "Open questions".
func ConvertToJson(s *Sample, dt DataType, dst []byte) (int, error) {
	var out string
	switch dt {
	case DataTypeTrigger:
		out = "null"
	case DataTypeBoolean:
		b, _ := s.Bool()
		if b {
			out = "true"
		} else {
			out = "false"
		}
	case DataTypeNumeric:
		f, _ := s.Float()
		out = strconv.FormatFloat(f, 'f', -1, 64)
	case DataTypeString:
		v, _ := s.String()
		out = `"` + v + `"`
	case DataTypeJSON:
		v, _ := s.String()
		out = v
	default:
		return 0, fmt.Errorf("valuestore: unknown data type %d", dt)
	}

	if len(out)+1 > len(dst) {
		return 0, ErrOverflow
	}
	n := copy(dst, out)
	if n < len(dst) {
		dst[n] = 0
	}
	return n, nil
}

// ExtractJson extracts path from a STRING/JSON sample's content via
// the json_Extract primitive, constructing a new sample of the
// appropriate kind and inheriting the source sample's timestamp
// (spec.md §4.7).
func (st *Store) ExtractJson(s *Sample, path string) (*Sample, DataType, error) {
	body, ok := s.String()
	if !ok {
		return nil, 0, fmt.Errorf("valuestore: ExtractJson requires a string/json sample")
	}

	res, err := jsonextract.Extract(body, path)
	if err != nil {
		return nil, 0, err
	}

	ts := s.Timestamp()
	switch res.Kind {
	case jsonextract.ResultBool:
		out, ok := st.CreateBool(ts, res.Bool)
		if !ok {
			return nil, 0, ErrNoMemory
		}
		return out, DataTypeBoolean, nil
	case jsonextract.ResultNumeric:
		out, ok := st.CreateNumeric(ts, res.Num)
		if !ok {
			return nil, 0, ErrNoMemory
		}
		return out, DataTypeNumeric, nil
	case jsonextract.ResultString:
		out, ok := st.CreateString(ts, res.Str)
		if !ok {
			return nil, 0, ErrNoMemory
		}
		return out, DataTypeString, nil
	case jsonextract.ResultJSON:
		out, ok := st.CreateString(ts, res.Raw)
		if !ok {
			return nil, 0, ErrNoMemory
		}
		return out, DataTypeJSON, nil
	default:
		out, ok := st.CreateString(ts, "null")
		if !ok {
			return nil, 0, ErrNoMemory
		}
		return out, DataTypeJSON, nil
	}
}

// ErrNoMemory mirrors spec.md's NO_MEMORY condition for the pool
// exhaustion path inside ExtractJson's sample construction.
var ErrNoMemory = errors.New("valuestore: sample pool exhausted")
