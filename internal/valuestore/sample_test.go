package valuestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(8, 4, 4, 4)
}

func TestCreateAndReleaseNumeric(t *testing.T) {
	st := newTestStore()
	s, ok := st.CreateNumeric(1700000000, 42.5)
	require.True(t, ok)

	f, isNum := s.Float()
	assert.True(t, isNum)
	assert.Equal(t, 42.5, f)

	st.Release(s)
}

func TestRetainKeepsSampleAliveUntilAllReleased(t *testing.T) {
	st := newTestStore()
	s, ok := st.CreateBool(1700000000, true)
	require.True(t, ok)

	st.Retain(s)
	st.Release(s)

	// still alive: one more release needed
	b, isBool := s.Bool()
	assert.True(t, isBool)
	assert.True(t, b)

	st.Release(s)
}

func TestSamplePoolExhaustion(t *testing.T) {
	st := NewStore(1, 4, 4, 4)
	s1, ok := st.CreateTrigger(Now)
	require.True(t, ok)

	_, ok = st.CreateTrigger(Now)
	assert.False(t, ok, "pool capacity is 1, second allocation must fail")

	st.Release(s1)
	s2, ok := st.CreateTrigger(Now)
	assert.True(t, ok, "releasing the first sample frees capacity for a new one")
	st.Release(s2)
}

func TestCreateStringCopiesIntoPooledStorage(t *testing.T) {
	st := newTestStore()
	s, ok := st.CreateString(1700000000, "hello")
	require.True(t, ok)

	v, isStr := s.String()
	assert.True(t, isStr)
	assert.Equal(t, "hello", v)
	st.Release(s)
}

func TestSetTimestampMutatesInPlace(t *testing.T) {
	st := newTestStore()
	s, ok := st.CreateNumeric(100, 1)
	require.True(t, ok)
	defer st.Release(s)

	s.SetTimestamp(200)
	assert.Equal(t, float64(200), s.Timestamp())
}

func TestNowSentinelResolvesToWallClock(t *testing.T) {
	st := newTestStore()
	s, ok := st.CreateTrigger(Now)
	require.True(t, ok)
	defer st.Release(s)

	assert.Greater(t, s.Timestamp(), float64(1600000000))
}
