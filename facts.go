package factum

import "github.com/google/uuid"

// entityRefKind discriminates the four shapes an entity reference can
// take inside a pending Facts buffer.
type entityRefKind int

const (
	entityRefID entityRefKind = iota
	entityRefTempName
	entityRefAnonymous
	entityRefLookup
)

// EntityRef names an entity inside a Facts buffer: an existing int64 id,
// a named temp-id string, the anonymous placeholder (Anon()), or a
// lookup ref [attribute, value].
type EntityRef struct {
	kind       entityRefKind
	id         int64
	tempName   string
	lookupAttr string
	lookupVal  any
}

// EntityID references an already-assigned entity.
func EntityID(id int64) EntityRef { return EntityRef{kind: entityRefID, id: id} }

// TempID references a named temporary id, stable across a single Facts
// buffer: the same string resolves to the same freshly assigned entity.
func TempID(name string) EntityRef { return EntityRef{kind: entityRefTempName, tempName: name} }

// Anon references a brand new, anonymous entity.
func Anon() EntityRef { return EntityRef{kind: entityRefAnonymous} }

// Lookup references the unique entity currently holding attribute=value
// for a unique attribute.
func Lookup(attribute string, value any) EntityRef {
	return EntityRef{kind: entityRefLookup, lookupAttr: attribute, lookupVal: value}
}

// TxEntity is the reserved temp-id naming the transaction entity itself
// (datomic.tx), usable e.g. to attach a comment to the transaction.
const TxEntity = "datomic.tx"

// factOp is one staged (entity-ref, attribute, value, op) tuple.
type factOp struct {
	entity EntityRef
	attr   string
	value  any
	op     bool
}

// Facts is a mutable, ordered staging buffer of pending assert/retract
// operations. The engine consumes it in insertion order.
type Facts struct {
	ops []factOp
}

// NewFacts creates an empty Facts buffer.
func NewFacts() *Facts {
	return &Facts{}
}

// Add stages an assertion of attribute=value for entity.
func (f *Facts) Add(entity EntityRef, attribute string, value any) {
	f.ops = append(f.ops, factOp{entity: entity, attr: attribute, value: value, op: true})
}

// Remove stages a retraction of attribute=value for entity.
func (f *Facts) Remove(entity EntityRef, attribute string, value any) {
	f.ops = append(f.ops, factOp{entity: entity, attr: attribute, value: value, op: false})
}

// Replace stages a retraction of oldValue followed by an assertion of
// newValue for the same entity/attribute, in that order.
func (f *Facts) Replace(entity EntityRef, attribute string, oldValue, newValue any) {
	f.Remove(entity, attribute, oldValue)
	f.Add(entity, attribute, newValue)
}

// AddSet stages one Add per key/value pair of attrs, all against the
// same entity. If entity is the anonymous placeholder (Anon()) it is
// replaced by one freshly generated temp-id shared by every pair.
func (f *Facts) AddSet(entity EntityRef, attrs map[string]any) {
	if entity.kind == entityRefAnonymous {
		entity = TempID(uuid.NewString())
	}
	for attribute, value := range attrs {
		f.Add(entity, attribute, value)
	}
}

// AddMap is an alias for AddSet, matching the naming used by some
// Datomic client bindings.
func (f *Facts) AddMap(entity EntityRef, attrs map[string]any) {
	f.AddSet(entity, attrs)
}
