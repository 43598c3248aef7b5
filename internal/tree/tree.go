// Package tree implements the resource tree (spec.md §4.1-§4.3): path
// parsing and resolution with autoprovisioning, the five-state entry
// lifecycle machine, source routing with cycle rejection, traversal,
// and administrative change dispatch.
package tree

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flowmesh/datahub/internal/apierr"
	"github.com/flowmesh/datahub/internal/poolutil"
	"github.com/flowmesh/datahub/internal/resource"
	"github.com/flowmesh/datahub/internal/valuestore"
)

// Listener receives administrative change notifications (spec.md §4.3).
type Listener func(ChangeEvent)

// Tree is the single path-addressable namespace. It is not safe for
// concurrent use from multiple goroutines without external
// synchronization — spec.md §5 places multi-writer concurrency inside
// the core out of scope; internal/hub supplies the single mutex
// boundary around it.
type Tree struct {
	root    *Entry
	entries *poolutil.Fixed[Entry]
	store   *valuestore.Store

	maxNameBytes int
	maxPathBytes int

	listeners map[uuid.UUID]Listener
	listenMu  sync.Mutex

	handleOwner map[resource.Handle]*Entry
	tombstones  []tombstoneRecord
}

// tombstoneRecord pairs a DELETED entry with the path it had when it
// was tombstoned, so FlushTombstones can both report the path and
// evict the entry by identity.
type tombstoneRecord struct {
	path  string
	entry *Entry
}

// New constructs an empty Tree backed by store for sample allocation,
// with a fixed entry pool of the given capacity and the given name/
// path byte limits (spec.md §4.1).
func New(store *valuestore.Store, entryCapacity, maxNameBytes, maxPathBytes int) *Tree {
	t := &Tree{
		store:        store,
		maxNameBytes: maxNameBytes,
		maxPathBytes: maxPathBytes,
		listeners:    make(map[uuid.UUID]Listener),
		handleOwner:  make(map[resource.Handle]*Entry),
	}
	t.entries = poolutil.NewFixed(entryCapacity,
		func() *Entry { return &Entry{} },
		func(e *Entry) { e.reset() },
	)
	root, _ := t.entries.Get()
	root.name = ""
	root.kind = KindNamespace
	root.flags = FlagRelevant
	t.root = root
	return t
}

// splitPath validates and tokenizes an absolute path like
// "/building/floor1/temp" into its segments, enforcing MAX_NAME_BYTES
// per segment and MAX_PATH_BYTES overall (spec.md §4.1).
func (t *Tree) splitPath(path string) ([]string, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, apierr.New(apierr.BadParameter, "path must be absolute: %q", path)
	}
	if len(path) > t.maxPathBytes {
		return nil, apierr.New(apierr.Overflow, "path exceeds maximum length: %q", path)
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}, nil
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return nil, apierr.New(apierr.BadParameter, "malformed path segment in %q", path)
		}
		if len(s) > t.maxNameBytes {
			return nil, apierr.New(apierr.Overflow, "path segment exceeds maximum name length: %q", s)
		}
	}
	return segs, nil
}

func isObservationPath(segs []string) bool {
	return len(segs) > 0 && segs[0] == "obs"
}

// FindEntry resolves an existing path without creating anything,
// returning NOT_FOUND if any segment is missing or if the resolved
// entry is a DELETED tombstone (spec.md §4.1).
func (t *Tree) FindEntry(path string) (*Entry, error) {
	entry, err := t.findEntryEx(path)
	if err != nil {
		return nil, err
	}
	if entry.flags.Has(FlagDeleted) {
		return nil, apierr.New(apierr.NotFound, "no such path: %q", path)
	}
	return entry, nil
}

// FindEntryEx resolves path like FindEntry but also returns a DELETED
// tombstone entry instead of NOT_FOUND, for callers that need to see
// pending deletions (spec.md §4.6).
func (t *Tree) FindEntryEx(path string) (*Entry, error) {
	return t.findEntryEx(path)
}

func (t *Tree) findEntryEx(path string) (*Entry, error) {
	segs, err := t.splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := t.root
	for _, s := range segs {
		next := cur.childByNameEx(s)
		if next == nil {
			return nil, apierr.New(apierr.NotFound, "no such path: %q", path)
		}
		cur = next
	}
	return cur, nil
}

// GetEntry resolves path, autoprovisioning missing intermediate
// Namespace entries and, if the terminal segment is missing, a bare
// Placeholder entry flavored for I/O or Observation use by the "/obs/"
// path convention. A segment that names an existing DELETED tombstone
// is resurrected in place rather than replaced, preserving its entry
// identity (spec.md §4.1). On pool exhaustion partway through, every
// entry created or resurrected during this call is rolled back and
// NO_MEMORY is returned (spec.md §4.1, §7).
func (t *Tree) GetEntry(path string) (*Entry, error) {
	segs, err := t.splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return t.root, nil
	}

	var created []*Entry
	var revived []revivedEntry
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			e := created[i]
			e.parent.removeChildEntry(e)
			if e.handle != nil {
				delete(t.handleOwner, e.handle)
			}
			t.entries.Put(e)
		}
		for i := len(revived) - 1; i >= 0; i-- {
			r := revived[i]
			if r.entry.handle != nil && r.entry.handle != r.prevHandle {
				delete(t.handleOwner, r.entry.handle)
			}
			r.entry.kind = r.prevKind
			r.entry.flags = r.prevFlags
			r.entry.handle = r.prevHandle
			t.tombstones = append(t.tombstones, tombstoneRecord{path: t.pathOf(r.entry), entry: r.entry})
		}
	}

	cur := t.root
	for i, s := range segs {
		last := i == len(segs)-1

		if next := cur.childByName(s); next != nil {
			cur = next
			continue
		}

		if tomb := cur.deletedChildByName(s); tomb != nil {
			t.clearTombstone(tomb)
			revived = append(revived, revivedEntry{
				entry:      tomb,
				prevKind:   tomb.kind,
				prevFlags:  tomb.flags,
				prevHandle: tomb.handle,
			})
			tomb.flags = FlagNew
			if last {
				tomb.kind = KindPlaceholder
				if isObservationPath(segs) {
					tomb.handle = resource.NewObsPlaceholder(t.store)
				} else {
					tomb.handle = resource.NewIoPlaceholder(t.store)
				}
				t.handleOwner[tomb.handle] = tomb
			} else {
				tomb.kind = KindNamespace
			}
			cur = tomb
			continue
		}

		entry, ok := t.entries.Get()
		if !ok {
			rollback()
			return nil, apierr.New(apierr.NoMemory, "entry pool exhausted while provisioning %q", path)
		}
		entry.name = s
		entry.parent = cur
		if last {
			entry.kind = KindPlaceholder
			entry.flags = FlagNew
			if isObservationPath(segs) {
				entry.handle = resource.NewObsPlaceholder(t.store)
			} else {
				entry.handle = resource.NewIoPlaceholder(t.store)
			}
			t.handleOwner[entry.handle] = entry
		} else {
			entry.kind = KindNamespace
			entry.flags = FlagNew
		}
		cur.children = append(cur.children, entry)
		created = append(created, entry)
		cur = entry
	}
	return cur, nil
}

// revivedEntry captures a tombstone's pre-resurrection state so
// GetEntry's rollback can restore it exactly on a later NO_MEMORY.
type revivedEntry struct {
	entry      *Entry
	prevKind   Kind
	prevFlags  Flags
	prevHandle resource.Handle
}

// clearTombstone drops e's pending tombstone record, if any, because
// it has just been resurrected and is no longer awaiting flush.
func (t *Tree) clearTombstone(e *Entry) {
	out := t.tombstones[:0]
	for _, r := range t.tombstones {
		if r.entry != e {
			out = append(out, r)
		}
	}
	t.tombstones = out
}

func (t *Tree) pathOf(e *Entry) string {
	if e == t.root {
		return "/"
	}
	var parts []string
	for cur := e; cur != nil && cur != t.root; cur = cur.parent {
		parts = append([]string{cur.name}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// GetPath reconstructs e's absolute path, failing with OVERFLOW if it
// would exceed the configured path byte limit and NOT_FOUND if e has
// been detached from the tree (spec.md §4.1).
func (t *Tree) GetPath(e *Entry) (string, error) {
	if e == nil {
		return "", apierr.New(apierr.NotFound, "nil entry")
	}
	if e != t.root {
		cur := e
		for cur.parent != nil {
			cur = cur.parent
		}
		if cur != t.root {
			return "", apierr.New(apierr.NotFound, "entry detached from tree")
		}
	}
	p := t.pathOf(e)
	if len(p) > t.maxPathBytes {
		return "", apierr.New(apierr.Overflow, "path exceeds maximum length")
	}
	return p, nil
}

func (t *Tree) dispatch(e *Entry, kind Kind, op Op) {
	path := t.pathOf(e)
	t.listenMu.Lock()
	ls := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenMu.Unlock()
	ev := ChangeEvent{Path: path, Kind: kind, Op: op}
	for _, l := range ls {
		l(ev)
	}
}

// AddChangeListener registers l for every future ADDED/REMOVED event
// and returns a token for RemoveChangeListener.
func (t *Tree) AddChangeListener(l Listener) uuid.UUID {
	id := uuid.New()
	t.listenMu.Lock()
	t.listeners[id] = l
	t.listenMu.Unlock()
	return id
}

// RemoveChangeListener unregisters a listener previously added with
// AddChangeListener. A stale or unknown id is a silent no-op.
func (t *Tree) RemoveChangeListener(id uuid.UUID) {
	t.listenMu.Lock()
	delete(t.listeners, id)
	t.listenMu.Unlock()
}

// --- lifecycle transitions ---------------------------------------------

func (t *Tree) provisionTerminal(path string, wantObservation bool) (*Entry, error) {
	entry, err := t.GetEntry(path)
	if err != nil {
		return nil, err
	}
	switch entry.kind {
	case KindPlaceholder:
		if wantObservation && entry.handle.Kind() != resource.KindObsPlaceholder {
			return nil, apierr.New(apierr.BadParameter, "path %q is provisioned for I/O, not observation", path)
		}
		if !wantObservation && entry.handle.Kind() != resource.KindIoPlaceholder {
			return nil, apierr.New(apierr.BadParameter, "path %q is provisioned for observation, not I/O", path)
		}
		return entry, nil
	case KindNamespace:
		return nil, apierr.New(apierr.BadParameter, "path %q names a namespace, not a resource", path)
	default:
		return entry, nil
	}
}

// CreateInput provisions (or reuses a bare placeholder at) path as an
// Input resource of the given data type and units.
func (t *Tree) CreateInput(path string, dt valuestore.DataType, units string) (resource.Handle, error) {
	entry, err := t.provisionTerminal(path, false)
	if err != nil {
		return nil, err
	}
	if entry.kind != KindPlaceholder {
		return nil, apierr.New(apierr.Duplicate, "path %q already provisioned as %s", path, entry.kind)
	}
	if err := entry.handle.ConvertToInput(dt, units); err != nil {
		return nil, err
	}
	entry.kind = KindInput
	entry.flags &^= FlagNew
	t.dispatch(entry, KindInput, OpAdded)
	return entry.handle, nil
}

// CreateOutput provisions (or reuses a bare placeholder at) path as an
// Output resource of the given data type and units.
func (t *Tree) CreateOutput(path string, dt valuestore.DataType, units string) (resource.Handle, error) {
	entry, err := t.provisionTerminal(path, false)
	if err != nil {
		return nil, err
	}
	if entry.kind != KindPlaceholder {
		return nil, apierr.New(apierr.Duplicate, "path %q already provisioned as %s", path, entry.kind)
	}
	if err := entry.handle.ConvertToOutput(dt, units); err != nil {
		return nil, err
	}
	entry.kind = KindOutput
	entry.flags &^= FlagNew
	t.dispatch(entry, KindOutput, OpAdded)
	return entry.handle, nil
}

// GetObservation returns the Observation handle at path, provisioning
// and promoting a bare placeholder the first time it is called and
// simply returning the existing handle thereafter (spec.md §4.2's
// "Get", as opposed to Create, semantics).
func (t *Tree) GetObservation(path string) (resource.Handle, error) {
	entry, err := t.provisionTerminal(path, true)
	if err != nil {
		return nil, err
	}
	switch entry.kind {
	case KindObservation:
		return entry.handle, nil
	case KindPlaceholder:
		if err := entry.handle.ConvertToObservation(); err != nil {
			return nil, err
		}
		entry.kind = KindObservation
		entry.flags &^= FlagNew
		t.dispatch(entry, KindObservation, OpAdded)
		return entry.handle, nil
	default:
		return nil, apierr.New(apierr.BadParameter, "path %q is %s, not observation-capable", path, entry.kind)
	}
}

// deleteResource is the shared DeleteIO/DeleteObservation body: fire
// REMOVED before release, then either demote to a bare placeholder
// (preserving admin settings) or release the resource, convert the
// entry to a Namespace and let pruneEmptyNamespaces tombstone it (and
// any emptied ancestors) until FlushTombstones evicts it.
func (t *Tree) deleteResource(path string, want Kind) error {
	entry, err := t.FindEntry(path)
	if err != nil {
		return err
	}
	if entry.kind != want {
		return apierr.New(apierr.BadParameter, "path %q is %s, not %s", path, entry.kind, want)
	}
	t.dispatch(entry, entry.kind, OpRemoved)

	if entry.handle.HasAdminSettings() {
		if err := entry.handle.ConvertToPlaceholder(); err != nil {
			return err
		}
		entry.kind = KindPlaceholder
		return nil
	}

	if cv := entry.handle.GetCurrentValue(); cv != nil {
		t.store.Release(cv)
	}
	delete(t.handleOwner, entry.handle)
	entry.handle = nil
	entry.kind = KindNamespace
	entry.flags = 0
	t.pruneEmptyNamespaces(entry)
	return nil
}

// DeleteIO removes an Input or Output resource at path.
func (t *Tree) DeleteIO(path string) error {
	entry, err := t.FindEntry(path)
	if err != nil {
		return err
	}
	if entry.kind != KindInput && entry.kind != KindOutput {
		return apierr.New(apierr.BadParameter, "path %q is %s, not input/output", path, entry.kind)
	}
	return t.deleteResource(path, entry.kind)
}

// DeleteObservation removes the Observation resource at path.
func (t *Tree) DeleteObservation(path string) error {
	return t.deleteResource(path, KindObservation)
}

// pruneEmptyNamespaces walks up from e, tombstoning Namespace entries
// left with no live children and not marked relevant (spec.md §4.1's
// "zombie" tracking). A tombstoned entry stays in its parent's child
// list as a DELETED marker — coexisting with any live namesake created
// later — until FlushTombstones actually evicts it.
func (t *Tree) pruneEmptyNamespaces(e *Entry) {
	for e != nil && e != t.root {
		if e.kind != KindNamespace || e.hasLiveChildren() || e.flags.Has(FlagRelevant) {
			return
		}
		t.markDeleted(e)
		e = e.parent
	}
}

// markDeleted sets e DELETED, clearing NEW first so invariant 4 (a
// DELETED Namespace never also carries NEW) always holds.
func (t *Tree) markDeleted(e *Entry) {
	e.flags &^= FlagNew
	e.flags |= FlagDeleted
	t.tombstones = append(t.tombstones, tombstoneRecord{path: t.pathOf(e), entry: e})
}

// SetRelevance marks or clears e as relevant, the Namespace-layer
// bookkeeping spec.md §2.3 uses to keep an otherwise-empty Namespace
// out of pruneEmptyNamespaces' reach.
func (t *Tree) SetRelevance(e *Entry, v bool) error {
	if e.kind != KindNamespace {
		return apierr.New(apierr.BadParameter, "SetRelevance requires a namespace entry")
	}
	if v {
		e.flags |= FlagRelevant
	} else {
		e.flags &^= FlagRelevant
	}
	return nil
}

// SetClearNewnessFlag requests (or cancels a request) that e's NEW flag
// be cleared on the next administrative scan (spec.md §4.2).
func (t *Tree) SetClearNewnessFlag(e *Entry, v bool) error {
	if e.kind != KindNamespace {
		return apierr.New(apierr.BadParameter, "SetClearNewnessFlag requires a namespace entry")
	}
	if v {
		e.flags |= FlagClearNew
	} else {
		e.flags &^= FlagClearNew
	}
	return nil
}

// ClearNewness clears NEW and the pending clear-new request on e, the
// Namespace-layer counterpart of resource.Handle's newness bookkeeping
// (spec.md §4.2).
func (t *Tree) ClearNewness(e *Entry) error {
	if e.kind != KindNamespace {
		return apierr.New(apierr.BadParameter, "ClearNewness requires a namespace entry")
	}
	e.flags &^= FlagNew | FlagClearNew
	return nil
}

// SetDeleted marks e DELETED explicitly, the snapshot-scan operation
// spec.md §4.2 performs once a scan decides a Namespace is gone,
// independent of pruneEmptyNamespaces' own child-count driven pass.
// NEW must already be clear (spec.md §3 invariant 4).
func (t *Tree) SetDeleted(e *Entry) error {
	if e.kind != KindNamespace {
		return apierr.New(apierr.BadParameter, "SetDeleted requires a namespace entry")
	}
	if e.flags.Has(FlagDeleted) {
		return nil
	}
	if e.flags.Has(FlagNew) {
		return apierr.New(apierr.BadParameter, "cannot mark a namespace DELETED while NEW is set")
	}
	t.markDeleted(e)
	return nil
}

// FlushTombstones evicts every pending DELETED namespace from the
// tree, returning to the pool, and returns the paths they held at
// prune time for consumption by the (out-of-scope) snapshot
// serializer.
func (t *Tree) FlushTombstones() []string {
	out := make([]string, 0, len(t.tombstones))
	for _, r := range t.tombstones {
		out = append(out, r.path)
		if r.entry.parent != nil {
			r.entry.parent.removeChildEntry(r.entry)
		}
		t.entries.Put(r.entry)
	}
	t.tombstones = nil
	return out
}

// --- routing -------------------------------------------------------------

func (t *Tree) wouldCycle(target, source *Entry) bool {
	for cur := source; cur != nil; {
		if cur == target {
			return true
		}
		h := cur.Handle()
		if h == nil {
			return false
		}
		src := h.GetSource()
		if src == nil {
			return false
		}
		owner, ok := t.handleOwner[src]
		if !ok {
			return false
		}
		cur = owner
	}
	return false
}

// SetSource wires targetPath's resource to read from sourcePath's
// resource, rejecting the wiring with DUPLICATE if it would create a
// routing cycle (spec.md §4.1).
func (t *Tree) SetSource(targetPath, sourcePath string) error {
	target, err := t.FindEntry(targetPath)
	if err != nil {
		return err
	}
	source, err := t.FindEntry(sourcePath)
	if err != nil {
		return err
	}
	if !target.kind.IsResource() || !source.kind.IsResource() {
		return apierr.New(apierr.BadParameter, "SetSource requires two resource paths")
	}
	if target == source || t.wouldCycle(target, source) {
		return apierr.New(apierr.Duplicate, "SetSource would create a routing cycle")
	}
	return target.handle.SetSource(source.handle)
}

// GetSource returns the path of the resource targetPath currently reads
// from, or "" if no source is set.
func (t *Tree) GetSource(targetPath string) (string, error) {
	target, err := t.FindEntry(targetPath)
	if err != nil {
		return "", err
	}
	if !target.kind.IsResource() {
		return "", apierr.New(apierr.BadParameter, "GetSource requires a resource path")
	}
	src := target.handle.GetSource()
	if src == nil {
		return "", nil
	}
	owner, ok := t.handleOwner[src]
	if !ok {
		return "", apierr.New(apierr.Fault, "source handle has no owning entry")
	}
	return t.pathOf(owner), nil
}

// --- traversal -------------------------------------------------------------

// ForEachResource calls fn with the path and handle of every resource
// entry (Placeholder/Input/Output/Observation) in the tree.
func (t *Tree) ForEachResource(fn func(path string, k Kind, h resource.Handle)) {
	var walk func(e *Entry)
	walk = func(e *Entry) {
		if e.kind.IsResource() {
			fn(t.pathOf(e), e.kind, e.handle)
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	walk(t.root)
}
