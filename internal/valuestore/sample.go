// Package valuestore implements the immutable, reference-counted,
// pooled timestamped samples that flow through the resource tree
// (spec.md §3 "Sample", §5 "Shared-resource policy").
package valuestore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmesh/datahub/internal/poolutil"
)

// Now is the timestamp sentinel resolved to the current wall clock at
// sample-creation time (spec.md §3). Negative and distinct from the
// NaN used elsewhere (ReadBufferJson's startAfter "from the oldest
// retained sample" sentinel) so the two meanings never collide.
const Now = -1.0

// kind discriminates the value union a Sample carries. It mirrors
// DataType but is a structural tag internal to the sample, not the
// resource-level external type: a JSON-extraction result and a
// directly-pushed string both use kindString, since the
// wire shape is identical (spec.md §3).
type kind uint8

const (
	kindUnit kind = iota
	kindBool
	kindFloat
	kindString
)

// Sample is a timestamped, reference-counted value. It is immutable
// after construction except for SetTimestamp.
type Sample struct {
	timestamp float64
	k         kind
	b         bool
	f         float64
	s         []byte
	strClass  poolutil.StringTierClass
	hasStr    bool

	refs int32
}

// Store owns the pools backing sample allocation: one fixed pool of
// *Sample objects (deterministic NO_MEMORY behavior, spec.md §5) and
// the layered string/JSON byte-buffer tiers.
type Store struct {
	samples *poolutil.Fixed[Sample]
	strings *poolutil.StringTiers
	mu      sync.Mutex
}

// NewStore builds a Store with the given capacities.
func NewStore(sampleCapacity, stringSmall, stringMedium, stringLarge int) *Store {
	return &Store{
		samples: poolutil.NewFixed(sampleCapacity,
			func() *Sample { return &Sample{} },
			func(s *Sample) { *s = Sample{} },
		),
		strings: poolutil.NewStringTiers(stringSmall, stringMedium, stringLarge),
	}
}

func (st *Store) alloc() (*Sample, bool) {
	return st.samples.Get()
}

func resolveTimestamp(ts float64) float64 {
	if ts == Now {
		return float64(time.Now().UnixNano()) / 1e9
	}
	return ts
}

// CreateTrigger allocates a trigger sample (value-less, presence only).
func (st *Store) CreateTrigger(ts float64) (*Sample, bool) {
	s, ok := st.alloc()
	if !ok {
		return nil, false
	}
	s.timestamp = resolveTimestamp(ts)
	s.k = kindUnit
	s.refs = 1
	return s, true
}

// CreateBool allocates a boolean sample.
func (st *Store) CreateBool(ts float64, v bool) (*Sample, bool) {
	s, ok := st.alloc()
	if !ok {
		return nil, false
	}
	s.timestamp = resolveTimestamp(ts)
	s.k = kindBool
	s.b = v
	s.refs = 1
	return s, true
}

// CreateNumeric allocates a float64 sample.
func (st *Store) CreateNumeric(ts float64, v float64) (*Sample, bool) {
	s, ok := st.alloc()
	if !ok {
		return nil, false
	}
	s.timestamp = resolveTimestamp(ts)
	s.k = kindFloat
	s.f = v
	s.refs = 1
	return s, true
}

// CreateString allocates a string (or JSON-text) sample, copying v
// into pooled, size-classed storage.
func (st *Store) CreateString(ts float64, v string) (*Sample, bool) {
	s, ok := st.alloc()
	if !ok {
		return nil, false
	}
	buf, class, got := st.strings.Get(len(v))
	if !got {
		st.samples.Put(s)
		return nil, false
	}
	buf = append(buf, v...)
	s.timestamp = resolveTimestamp(ts)
	s.k = kindString
	s.s = buf
	s.strClass = class
	s.hasStr = true
	s.refs = 1
	return s, true
}

// Retain increments the reference count and returns the same sample,
// matching the "push hands off one reference" ownership model.
func (st *Store) Retain(s *Sample) *Sample {
	if s == nil {
		return nil
	}
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release decrements the reference count, returning the sample and
// its string buffer (if any) to their pools once it reaches zero.
func (st *Store) Release(s *Sample) {
	if s == nil {
		return
	}
	if atomic.AddInt32(&s.refs, -1) > 0 {
		return
	}
	if s.hasStr {
		st.strings.Put(s.strClass, s.s)
	}
	st.samples.Put(s)
}

// Timestamp returns the sample's timestamp in seconds since epoch.
func (s *Sample) Timestamp() float64 { return s.timestamp }

// SetTimestamp is the one permitted post-construction mutation.
func (s *Sample) SetTimestamp(ts float64) { s.timestamp = resolveTimestamp(ts) }

// Bool returns the boolean payload and whether the sample is boolean-typed.
func (s *Sample) Bool() (bool, bool) { return s.b, s.k == kindBool }

// Float returns the numeric payload and whether the sample is numeric-typed.
func (s *Sample) Float() (float64, bool) { return s.f, s.k == kindFloat }

// String returns the string/JSON payload and whether the sample carries one.
func (s *Sample) String() (string, bool) { return string(s.s), s.k == kindString }

// IsTrigger reports whether the sample carries no payload at all.
func (s *Sample) IsTrigger() bool { return s.k == kindUnit }
