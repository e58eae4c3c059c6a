package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDocStore is a DocStore backed by one BadgerDB directory per
// logical database.
type BadgerDocStore struct {
	basePath string

	mu   sync.Mutex
	open map[string]*badger.DB
}

// NewBadgerDocStore opens (creating if needed) basePath as the root
// directory holding one subdirectory per logical database.
func NewBadgerDocStore(basePath string) (*BadgerDocStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, &BackendError{Op: "mkdir", Err: err}
	}
	return &BadgerDocStore{basePath: basePath, open: make(map[string]*badger.DB)}, nil
}

func (s *BadgerDocStore) dbPath(name string) string {
	return filepath.Join(s.basePath, name)
}

func (s *BadgerDocStore) badgerOptions(path string) badger.Options {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return opts
}

// CreateDatabase creates the datoms collection for name, rejecting
// duplicates. Secondary indices (e, a, tx, (a,v)) are realized as
// separate Badger key orderings written alongside every Insert (see
// keys.go), so there is no separate "ensure index" step: every write
// is already indexed.
func (s *BadgerDocStore) CreateDatabase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[name]; ok {
		return ErrDatabaseExists
	}
	path := s.dbPath(name)
	if _, err := os.Stat(path); err == nil {
		return ErrDatabaseExists
	}
	db, err := badger.Open(s.badgerOptions(path))
	if err != nil {
		return &BackendError{Op: "create database " + name, Err: err}
	}
	s.open[name] = db
	return nil
}

// DeleteDatabase closes and removes the named database's directory.
func (s *BadgerDocStore) DeleteDatabase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[name]; ok {
		_ = db.Close()
		delete(s.open, name)
	}
	path := s.dbPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrDatabaseNotFound
	}
	if err := os.RemoveAll(path); err != nil {
		return &BackendError{Op: "delete database " + name, Err: err}
	}
	return nil
}

// ListDatabases enumerates every database directory under basePath.
func (s *BadgerDocStore) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, &BackendError{Op: "list databases", Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open returns the Collection for an existing database, opening its
// Badger handle on first use. A second Open of an already-open
// database returns the same cached handle.
func (s *BadgerDocStore) Open(name string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.open[name]; ok {
		return &badgerCollection{db: db}, nil
	}
	path := s.dbPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrDatabaseNotFound
	}
	db, err := badger.Open(s.badgerOptions(path))
	if err != nil {
		return nil, &BackendError{Op: "open database " + name, Err: err}
	}
	s.open[name] = db
	return &badgerCollection{db: db}, nil
}

// Close closes every open Badger handle.
func (s *BadgerDocStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for name, db := range s.open {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.open, name)
	}
	if first != nil {
		return &BackendError{Op: "close store", Err: first}
	}
	return nil
}

// badgerCollection implements Collection over a single Badger handle,
// writing each datom under the EAVT/AEVT/AVET/SEQ key orderings.
type badgerCollection struct {
	db *badger.DB
}

func (c *badgerCollection) Insert(docs []DatomDoc) error {
	return c.db.Update(func(txn *badger.Txn) error {
		for _, d := range docs {
			record := encodeDoc(d)
			if err := txn.Set(eavtKey(d.E, d.A, d.ID), record); err != nil {
				return &BackendError{Op: "insert (eavt)", Err: err}
			}
			if err := txn.Set(aevtKey(d.A, d.E, d.ID), record); err != nil {
				return &BackendError{Op: "insert (aevt)", Err: err}
			}
			if err := txn.Set(avetKey(d.A, d.V, d.E, d.ID), record); err != nil {
				return &BackendError{Op: "insert (avet)", Err: err}
			}
			if err := txn.Set(seqKey(d.ID), record); err != nil {
				return &BackendError{Op: "insert (seq)", Err: err}
			}
		}
		return nil
	})
}

func (c *badgerCollection) scanPrefix(prefix []byte, visit func(DatomDoc) (stop bool, err error)) error {
	end := prefixUpperBound(prefix)
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(end) > 0 && bytesCompare(key, end) >= 0 {
				break
			}
			var doc DatomDoc
			err := it.Item().Value(func(val []byte) error {
				d, derr := decodeDoc(val)
				if derr != nil {
					return derr
				}
				doc = d
				return nil
			})
			if err != nil {
				return &BackendError{Op: "decode datom", Err: err}
			}
			stop, err := visit(doc)
			if err != nil {
				return err
			}
			if stop {
				break
			}
		}
		return nil
	})
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func (c *badgerCollection) FindMaxByKey(key SortKey, txMax int64) (DatomDoc, bool, error) {
	var best DatomDoc
	found := false
	err := c.scanPrefix(seqPrefix(), func(d DatomDoc) (bool, error) {
		if d.Tx > txMax {
			return false, nil
		}
		var v int64
		switch key {
		case SortKeyE:
			v = d.E
		case SortKeyID:
			v = d.ID
		case SortKeyTx:
			v = d.Tx
		}
		var bestV int64
		if found {
			switch key {
			case SortKeyE:
				bestV = best.E
			case SortKeyID:
				bestV = best.ID
			case SortKeyTx:
				bestV = best.Tx
			}
		}
		if !found || v > bestV {
			best = d
			found = true
		}
		return false, nil
	})
	if err != nil {
		return DatomDoc{}, false, err
	}
	return best, found, nil
}

func (c *badgerCollection) FindByAttr(attr string, txMax int64) ([]DatomDoc, error) {
	var docs []DatomDoc
	err := c.scanPrefix(aevtPrefix(attr), func(d DatomDoc) (bool, error) {
		if d.Tx <= txMax {
			docs = append(docs, d)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(docs)
	return docs, nil
}

func (c *badgerCollection) FindByAttrValue(attr string, value []byte, txMax int64) ([]DatomDoc, error) {
	var docs []DatomDoc
	// The AVET key embeds the variable-length encoded value with no
	// terminator, so the prefix scan also reaches values that merely
	// extend the wanted bytes (e.g. "AAPL" vs "AAPLX"); the exact-match
	// check below keeps only true (a, v) hits.
	err := c.scanPrefix(avetPrefix(attr, value), func(d DatomDoc) (bool, error) {
		if d.Tx <= txMax && bytes.Equal(d.V, value) {
			docs = append(docs, d)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sortByID(docs)
	return docs, nil
}

func (c *badgerCollection) FindByEntities(entities []int64, txMax int64) ([]DatomDoc, error) {
	var docs []DatomDoc
	for _, e := range entities {
		err := c.scanPrefix(eavtPrefix(e), func(d DatomDoc) (bool, error) {
			if d.Tx <= txMax {
				docs = append(docs, d)
			}
			return false, nil
		})
		if err != nil {
			return nil, err
		}
	}
	sortByID(docs)
	return docs, nil
}

func (c *badgerCollection) FindAll(txMax int64) ([]DatomDoc, error) {
	var docs []DatomDoc
	err := c.scanPrefix(seqPrefix(), func(d DatomDoc) (bool, error) {
		if d.Tx <= txMax {
			docs = append(docs, d)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	// SEQ is already id-ordered by key; the AEVT/AVET keys order by
	// entity before id and FindByEntities concatenates one scan per
	// entity, so those need the sort, and FindAll sorts the same way.
	sortByID(docs)
	return docs, nil
}

func (c *badgerCollection) Close() error {
	return nil // lifecycle owned by BadgerDocStore.Close
}

func sortByID(docs []DatomDoc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
