// Package storage defines the generic document-store backend contract
// consumed by the factum engine, plus a BadgerDB-backed implementation
// using EAVT/AEVT/AVET key orderings.
//
// The factum package never imports a concrete store; it depends only on
// DocStore/Collection, so a different backend can be substituted without
// touching the engine.
package storage

import "fmt"

// DatomDoc is the wire document persisted per datom:
// {_id, e, a, v, tx, op}. V is the already-encoded value (see factum.EncodeValue /
// factum.DecodeValue); the store treats it as an opaque, comparable byte
// string, consistent with it being a generic document store rather than
// one that understands factum's value types.
type DatomDoc struct {
	ID int64
	E  int64
	A  string
	V  []byte
	Tx int64
	Op bool
}

// SortKey names the scalar a Collection can report the maximum of.
type SortKey int

const (
	SortKeyE SortKey = iota
	SortKeyID
	SortKeyTx
)

func (k SortKey) String() string {
	switch k {
	case SortKeyE:
		return "e"
	case SortKeyID:
		return "id"
	case SortKeyTx:
		return "tx"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// Collection is a single logical database's datoms collection: bulk
// insert plus find-by-filter-with-sort reads backed by the e/a/tx and
// (a,v) secondary indices.
type Collection interface {
	// Insert appends docs in a single bulk write.
	Insert(docs []DatomDoc) error

	// FindMaxByKey scans every doc with Tx <= txMax and returns the one
	// holding the maximum value of key, or ok=false if none match.
	FindMaxByKey(key SortKey, txMax int64) (doc DatomDoc, ok bool, err error)

	// FindByAttr returns every doc for the given attribute with
	// Tx <= txMax, sorted by ID ascending.
	FindByAttr(attr string, txMax int64) ([]DatomDoc, error)

	// FindByAttrValue returns every doc for the given (attribute, value)
	// pair with Tx <= txMax, sorted by ID ascending. value is the
	// already-encoded form produced by factum.EncodeValue.
	FindByAttrValue(attr string, value []byte, txMax int64) ([]DatomDoc, error)

	// FindByEntities returns every doc naming any of entities with
	// Tx <= txMax, sorted by ID ascending.
	FindByEntities(entities []int64, txMax int64) ([]DatomDoc, error)

	// FindAll returns every doc with Tx <= txMax, sorted by ID ascending
	// — the backing sequence for AllFacts.
	FindAll(txMax int64) ([]DatomDoc, error)

	// Close releases the collection's backend handle.
	Close() error
}

// DocStore manages database lifecycle on the backend: named databases,
// each holding one datoms Collection.
type DocStore interface {
	CreateDatabase(name string) error
	DeleteDatabase(name string) error
	ListDatabases() ([]string, error)
	Open(name string) (Collection, error)
	Close() error
}

// ErrDatabaseExists is returned by CreateDatabase for a name already in
// use.
var ErrDatabaseExists = fmt.Errorf("database already exists")

// ErrDatabaseNotFound is returned by DeleteDatabase/Open for an unknown
// name.
var ErrDatabaseNotFound = fmt.Errorf("database not found")
