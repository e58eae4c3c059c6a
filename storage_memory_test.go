package factum

import (
	"bytes"

	"github.com/mercerlabs/factum/storage"
)

// memCollection is an in-memory storage.Collection test double, used so
// the engine's unit tests exercise real Database/transaction logic
// without depending on a live BadgerDB directory (that integration path
// is covered separately in storage/badger_test.go).
type memCollection struct {
	docs []storage.DatomDoc
}

func newMemConn() *Connection {
	return &Connection{name: "test", coll: &memCollection{}}
}

func (m *memCollection) Insert(docs []storage.DatomDoc) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memCollection) FindMaxByKey(key storage.SortKey, txMax int64) (storage.DatomDoc, bool, error) {
	var best storage.DatomDoc
	found := false
	for _, d := range m.docs {
		if d.Tx > txMax {
			continue
		}
		v := fieldOf(d, key)
		if !found || v > fieldOf(best, key) {
			best = d
			found = true
		}
	}
	return best, found, nil
}

func fieldOf(d storage.DatomDoc, key storage.SortKey) int64 {
	switch key {
	case storage.SortKeyE:
		return d.E
	case storage.SortKeyID:
		return d.ID
	case storage.SortKeyTx:
		return d.Tx
	default:
		return 0
	}
}

func (m *memCollection) FindByAttr(attr string, txMax int64) ([]storage.DatomDoc, error) {
	var out []storage.DatomDoc
	for _, d := range m.docs {
		if d.A == attr && d.Tx <= txMax {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memCollection) FindByAttrValue(attr string, value []byte, txMax int64) ([]storage.DatomDoc, error) {
	var out []storage.DatomDoc
	for _, d := range m.docs {
		if d.A == attr && d.Tx <= txMax && bytes.Equal(d.V, value) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memCollection) FindByEntities(entities []int64, txMax int64) ([]storage.DatomDoc, error) {
	set := make(map[int64]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	var out []storage.DatomDoc
	for _, d := range m.docs {
		if set[d.E] && d.Tx <= txMax {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memCollection) FindAll(txMax int64) ([]storage.DatomDoc, error) {
	var out []storage.DatomDoc
	for _, d := range m.docs {
		if d.Tx <= txMax {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memCollection) Close() error { return nil }
