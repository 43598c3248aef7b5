package tree

import "github.com/flowmesh/datahub/internal/resource"

// Entry is one node of the resource tree (spec.md §4.2): a name, a
// parent link, an ordered child list (linear scan by name — trees in
// this domain are shallow and wide, not deep), a kind tag, and a
// discriminated payload. Namespace entries carry flags; resource
// entries carry a handle. An entry never carries both.
//
// A DELETED Namespace entry (spec.md §3 invariant 2) stays in its
// parent's child list as a tombstone until FlushTombstones removes it,
// so a deleted entry may coexist with a live namesake of the same name
// under the same parent. The plain (non-Ex) lookups below skip
// tombstones and prefer the live namesake when both are present; the
// Ex variants see tombstones too.
type Entry struct {
	name     string
	parent   *Entry
	children []*Entry
	kind     Kind
	flags    Flags
	handle   resource.Handle
}

func (e *Entry) Name() string             { return e.name }
func (e *Entry) Kind() Kind                { return e.kind }
func (e *Entry) Flags() Flags             { return e.flags }
func (e *Entry) Handle() resource.Handle  { return e.handle }
func (e *Entry) Parent() *Entry           { return e.parent }

// childByName returns the live (non-DELETED) child named name, or nil.
func (e *Entry) childByName(name string) *Entry {
	for _, c := range e.children {
		if c.name == name && !c.flags.Has(FlagDeleted) {
			return c
		}
	}
	return nil
}

// childByNameEx returns the child named name, preferring a live entry
// over a DELETED tombstone of the same name if both coexist, or nil if
// neither exists.
func (e *Entry) childByNameEx(name string) *Entry {
	var tomb *Entry
	for _, c := range e.children {
		if c.name != name {
			continue
		}
		if !c.flags.Has(FlagDeleted) {
			return c
		}
		tomb = c
	}
	return tomb
}

// deletedChildByName returns the DELETED tombstone named name, if one
// exists, for GetEntry's resurrection path.
func (e *Entry) deletedChildByName(name string) *Entry {
	for _, c := range e.children {
		if c.name == name && c.flags.Has(FlagDeleted) {
			return c
		}
	}
	return nil
}

// hasLiveChildren reports whether e has any non-DELETED child, the
// test pruneEmptyNamespaces uses to decide whether e itself is still
// in use.
func (e *Entry) hasLiveChildren() bool {
	for _, c := range e.children {
		if !c.flags.Has(FlagDeleted) {
			return true
		}
	}
	return false
}

// removeChildEntry removes target from e's child list by identity, not
// name, so it can't accidentally remove a different same-named sibling
// when a tombstone and a live namesake coexist.
func (e *Entry) removeChildEntry(target *Entry) {
	for i, c := range e.children {
		if c == target {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return
		}
	}
}

func (e *Entry) indexInParent() int {
	if e.parent == nil {
		return -1
	}
	for i, c := range e.parent.children {
		if c == e {
			return i
		}
	}
	return -1
}

// FirstChild returns e's first live child in insertion order, skipping
// DELETED tombstones, or nil if e has none (spec.md §4.6).
func (e *Entry) FirstChild() *Entry {
	for _, c := range e.children {
		if !c.flags.Has(FlagDeleted) {
			return c
		}
	}
	return nil
}

// FirstChildEx returns e's first child regardless of DELETED status,
// the tombstone-visible counterpart of FirstChild.
func (e *Entry) FirstChildEx() *Entry {
	if len(e.children) == 0 {
		return nil
	}
	return e.children[0]
}

// NextSibling returns the next live sibling after e, skipping DELETED
// tombstones, or nil if e is the last live child (or detached/root).
func (e *Entry) NextSibling() *Entry {
	if e.parent == nil {
		return nil
	}
	i := e.indexInParent()
	if i < 0 {
		return nil
	}
	for j := i + 1; j < len(e.parent.children); j++ {
		if !e.parent.children[j].flags.Has(FlagDeleted) {
			return e.parent.children[j]
		}
	}
	return nil
}

// NextSiblingEx returns the child of e's parent immediately after e
// regardless of DELETED status, the tombstone-visible counterpart of
// NextSibling.
func (e *Entry) NextSiblingEx() *Entry {
	i := e.indexInParent()
	if i < 0 || e.parent == nil || i+1 >= len(e.parent.children) {
		return nil
	}
	return e.parent.children[i+1]
}

// reset clears an Entry for return to the tree's entry pool.
func (e *Entry) reset() {
	e.name = ""
	e.parent = nil
	e.children = nil
	e.kind = KindNone
	e.flags = 0
	e.handle = nil
}
