package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/valuestore"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	store := valuestore.NewStore(64, 64, 64, 64)
	return New(store, 64, 64, 256)
}

func TestCreateInputAutoprovisionsNamespaces(t *testing.T) {
	tr := newTestTree(t)

	h, err := tr.CreateInput("/building/floor1/temp", valuestore.DataTypeNumeric, "C")
	require.NoError(t, err)
	require.NotNil(t, h)

	floor, err := tr.FindEntry("/building/floor1")
	require.NoError(t, err)
	assert.Equal(t, KindNamespace, floor.Kind())

	entry, err := tr.FindEntry("/building/floor1/temp")
	require.NoError(t, err)
	assert.Equal(t, KindInput, entry.Kind())
}

func TestCreateInputTwiceIsDuplicate(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/a/b", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)

	_, err = tr.CreateInput("/a/b", valuestore.DataTypeNumeric, "")
	require.Error(t, err)
	assert.Equal(t, apierr.Duplicate, apierr.CodeOf(err))
}

func TestGetObservationPromotesPlaceholderUnderObsPath(t *testing.T) {
	tr := newTestTree(t)

	h1, err := tr.GetObservation("/obs/zone1/avg_temp")
	require.NoError(t, err)
	require.NotNil(t, h1)

	entry, err := tr.FindEntry("/obs/zone1/avg_temp")
	require.NoError(t, err)
	assert.Equal(t, KindObservation, entry.Kind())

	h2, err := tr.GetObservation("/obs/zone1/avg_temp")
	require.NoError(t, err)
	assert.Same(t, h1, h2)
}

func TestCreateInputUnderObsPathIsRejected(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/obs/zone1/avg_temp", valuestore.DataTypeNumeric, "")
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))
}

func TestSetSourceRejectsCycle(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/a", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)
	_, err = tr.GetObservation("/obs/b")
	require.NoError(t, err)

	require.NoError(t, tr.SetSource("/obs/b", "/a"))

	err = tr.SetSource("/a", "/obs/b")
	require.Error(t, err)
	assert.Equal(t, apierr.Duplicate, apierr.CodeOf(err))
}

func TestSetSourceRejectsSelfCycle(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.GetObservation("/obs/a")
	require.NoError(t, err)

	err = tr.SetSource("/obs/a", "/obs/a")
	require.Error(t, err)
	assert.Equal(t, apierr.Duplicate, apierr.CodeOf(err))
}

func TestGetPathReconstructsAbsolutePath(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateOutput("/plant/line1/valve", valuestore.DataTypeBoolean, "")
	require.NoError(t, err)

	entry, err := tr.FindEntry("/plant/line1/valve")
	require.NoError(t, err)

	p, err := tr.GetPath(entry)
	require.NoError(t, err)
	assert.Equal(t, "/plant/line1/valve", p)
}

func TestDeleteIOWithAdminSettingsDemotesToPlaceholder(t *testing.T) {
	tr := newTestTree(t)
	h, err := tr.CreateOutput("/x/y", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)

	s, ok := tr.store.CreateNumeric(0, 1.0)
	require.True(t, ok)
	require.NoError(t, h.SetOverride(s))

	require.NoError(t, tr.DeleteIO("/x/y"))

	entry, err := tr.FindEntry("/x/y")
	require.NoError(t, err)
	assert.Equal(t, KindPlaceholder, entry.Kind())
	assert.True(t, entry.Handle().HasOverride())
}

func TestDeleteIOWithoutAdminSettingsPrunesEmptyNamespaces(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/p/q/r", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)

	require.NoError(t, tr.DeleteIO("/p/q/r"))

	_, err = tr.FindEntry("/p/q/r")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))

	_, err = tr.FindEntry("/p")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))

	tombstones := tr.FlushTombstones()
	assert.Contains(t, tombstones, "/p/q/r")
}

func TestDeletedNamespaceStaysInTreeUntilFlush(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/p/q/r", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	require.NoError(t, tr.DeleteIO("/p/q/r"))

	tomb, err := tr.FindEntryEx("/p")
	require.NoError(t, err)
	assert.Equal(t, KindNamespace, tomb.Kind())
	assert.True(t, tomb.Flags().Has(FlagDeleted))
	assert.False(t, tomb.Flags().Has(FlagNew))

	root := tr.root
	assert.Same(t, tomb, root.FirstChildEx())
	assert.Nil(t, root.FirstChild())

	tombstones := tr.FlushTombstones()
	assert.Contains(t, tombstones, "/p")

	_, err = tr.FindEntryEx("/p")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))
}

func TestGetEntryResurrectsTombstoneRatherThanReplacing(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/p/q/r", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	require.NoError(t, tr.DeleteIO("/p/q/r"))

	tomb, err := tr.FindEntryEx("/p")
	require.NoError(t, err)
	require.True(t, tomb.Flags().Has(FlagDeleted))

	_, err = tr.CreateInput("/p/s", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)

	live, err := tr.FindEntry("/p")
	require.NoError(t, err)
	assert.Same(t, tomb, live)
	assert.False(t, live.Flags().Has(FlagDeleted))

	// "/p/q/r" and "/p/q" were tombstoned in the same cascade and, unlike
	// "/p" itself, were never resurrected, so they are still pending flush.
	assert.Equal(t, []string{"/p/q/r", "/p/q"}, tr.FlushTombstones())
}

func TestFirstChildAndNextSiblingSkipDeletedEntries(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/a", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	_, err = tr.CreateInput("/z/w", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	require.NoError(t, tr.DeleteIO("/z/w"))

	root := tr.root
	// "/z" is now a DELETED tombstone sitting alongside live "/a".
	var live []string
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		live = append(live, c.Name())
	}
	assert.Equal(t, []string{"a"}, live)

	var all []string
	for c := root.FirstChildEx(); c != nil; c = c.NextSiblingEx() {
		all = append(all, c.Name())
	}
	assert.ElementsMatch(t, []string{"a", "z"}, all)
}

func TestSetDeletedRequiresNewClear(t *testing.T) {
	tr := newTestTree(t)
	entry, err := tr.GetEntry("/fresh/leaf")
	require.NoError(t, err)
	ns := entry.Parent()
	require.True(t, ns.Flags().Has(FlagNew))

	err = tr.SetDeleted(ns)
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))

	require.NoError(t, tr.ClearNewness(ns))
	assert.False(t, ns.Flags().Has(FlagNew))
	require.NoError(t, tr.SetDeleted(ns))
	assert.True(t, ns.Flags().Has(FlagDeleted))
}

func TestSetRelevanceKeepsEmptyNamespaceFromBeingPruned(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/keep/leaf", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)

	ns, err := tr.FindEntry("/keep")
	require.NoError(t, err)
	require.NoError(t, tr.SetRelevance(ns, true))

	require.NoError(t, tr.DeleteIO("/keep/leaf"))

	entry, err := tr.FindEntry("/keep")
	require.NoError(t, err)
	assert.Equal(t, KindNamespace, entry.Kind())
	assert.False(t, entry.Flags().Has(FlagDeleted))
}

func TestFindEntryNotFound(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.FindEntry("/nope")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))
}

func TestMalformedPathIsBadParameter(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.GetEntry("relative/path")
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))

	_, err = tr.GetEntry("/a/../b")
	require.Error(t, err)
	assert.Equal(t, apierr.BadParameter, apierr.CodeOf(err))
}

func TestEntryPoolExhaustionRollsBackPartialProvisioning(t *testing.T) {
	store := valuestore.NewStore(64, 64, 64, 64)
	tr := New(store, 2, 64, 256) // root consumes one slot; one remains

	_, err := tr.GetEntry("/a/b/c")
	require.Error(t, err)
	assert.Equal(t, apierr.NoMemory, apierr.CodeOf(err))

	_, err = tr.FindEntry("/a")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.CodeOf(err))
}

func TestForEachResourceVisitsEveryResource(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.CreateInput("/a", valuestore.DataTypeNumeric, "")
	require.NoError(t, err)
	_, err = tr.CreateOutput("/b/c", valuestore.DataTypeBoolean, "")
	require.NoError(t, err)

	seen := map[string]Kind{}
	tr.ForEachResource(func(path string, k Kind, h resource.Handle) {
		seen[path] = k
	})

	assert.Equal(t, KindInput, seen["/a"])
	assert.Equal(t, KindOutput, seen["/b/c"])
}

func TestChangeListenerFiresAddedAndRemoved(t *testing.T) {
	tr := newTestTree(t)
	var events []ChangeEvent
	id := tr.AddChangeListener(func(ev ChangeEvent) {
		events = append(events, ev)
	})
	defer tr.RemoveChangeListener(id)

	_, err := tr.CreateInput("/s", valuestore.DataTypeTrigger, "")
	require.NoError(t, err)
	require.NoError(t, tr.DeleteIO("/s"))

	require.Len(t, events, 2)
	assert.Equal(t, OpAdded, events[0].Op)
	assert.Equal(t, "/s", events[0].Path)
	assert.Equal(t, OpRemoved, events[1].Op)
}
