package factum

import (
	"fmt"
	"sort"
)

// Datom is the immutable 6-tuple (id, e, a, v, tx, op). Two datoms are
// equal iff their ids are equal; id also gives the total order used by
// AllFacts.
type Datom struct {
	ID int64 // globally unique datom sequence number
	E  int64 // entity id
	A  string
	V  Value
	Tx int64 // transaction entity id
	Op bool  // true = assert, false = retract
}

func (d Datom) Equal(other Datom) bool { return d.ID == other.ID }
func (d Datom) Less(other Datom) bool  { return d.ID < other.ID }

func (d Datom) String() string {
	op := "+"
	if !d.Op {
		op = "-"
	}
	return fmt.Sprintf("%s Tx %d Datom %d: Entity %d %q is %v.", op, d.Tx, d.ID, d.E, d.A, d.V)
}

// SortDatomsByID sorts datoms in place by ascending id, the total order
// used across transactions (tx ascending, then id ascending — id is
// already globally monotonic so sorting by id alone is sufficient).
func SortDatomsByID(datoms []Datom) {
	sort.Slice(datoms, func(i, j int) bool { return datoms[i].ID < datoms[j].ID })
}
