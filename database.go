package factum

import (
	"errors"
	"fmt"

	"github.com/mercerlabs/factum/storage"
)

// remoteView is the read-only snapshot half of a Database value: a
// backend collection bounded by an inclusive tx_max.
type remoteView struct {
	coll  storage.Collection
	txMax int64
}

// attrDefCacheEntry pairs a resolved Attr with the id of the entity
// that defines it, so Database.applyDatom can evict the entry the
// instant that entity's datoms change within the same transaction,
// keeping a just-transacted definition visible to later datoms of the
// same batch.
type attrDefCacheEntry struct {
	attr   Attr
	entity int64
}

// Database is an immutable handle: a remote snapshot at tx_max, a
// tx_min exclusive lower bound, a local overlay, and a history flag,
// plus lazy attr/attr-value/entity indices and an attribute-definition
// cache. It is logically immutable to callers but carries internal
// mutable caches; sharing one across goroutines is not supported.
type Database struct {
	remote      *remoteView
	txMin       int64
	local       *LocalDatoms
	fullHistory bool

	attrIndex            map[string][]Datom
	attrValIndex         map[string]map[Value][]Datom
	attrValIndexComplete map[string]bool
	entityIndex          map[int64][]Datom
	attrDefCache         map[string]attrDefCacheEntry
}

// newDatabase builds a Database wrapping a remote snapshot at txMax with
// an empty local overlay — the shape Connection.Db() returns.
func newDatabase(coll storage.Collection, txMax int64) *Database {
	return &Database{remote: &remoteView{coll: coll, txMax: txMax}, txMin: -1, local: NewLocalDatoms(nil)}
}

func wrapBackend(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// applicativeCopy returns a private working copy sharing the (read-only)
// remote snapshot but holding its own deep-copied overlay and fresh,
// empty caches, the basis for the incremental validator's in-place
// AppendFact strategy without mutating the caller's Database.
func (db *Database) applicativeCopy() *Database {
	return &Database{
		remote:      db.remote,
		txMin:       db.txMin,
		local:       NewLocalDatoms(db.local.Facts()),
		fullHistory: db.fullHistory,
	}
}

// applyDatom advances the notional "database after datom k" to "after
// datom k+1" in place: it appends to the overlay and patches every
// already-built cache that already holds a relevant key. Any
// attrDefCache entry whose defining entity equals d.E is evicted so a
// just-transacted attribute definition takes effect for the rest of
// the transaction.
func (db *Database) applyDatom(d Datom) {
	db.local.AppendFact(d)

	if existing, ok := db.attrIndex[d.A]; ok {
		db.attrIndex[d.A] = append(existing, d)
	}
	if m, ok := db.attrValIndex[d.A]; ok {
		if vals, ok2 := m[d.V]; ok2 {
			m[d.V] = append(vals, d)
		} else if db.attrValIndexComplete[d.A] {
			m[d.V] = []Datom{d}
		}
	}
	if existing, ok := db.entityIndex[d.E]; ok {
		db.entityIndex[d.E] = append(existing, d)
	}
	for ident, entry := range db.attrDefCache {
		if entry.entity == d.E {
			delete(db.attrDefCache, ident)
		}
	}
}

// getAttrIndex returns every datom for attr (remote ∪ overlay, sorted by
// id), building and caching it on first use.
func (db *Database) getAttrIndex(attr string) ([]Datom, error) {
	if cached, ok := db.attrIndex[attr]; ok {
		return cached, nil
	}
	var datoms []Datom
	if db.remote != nil {
		docs, err := db.remote.coll.FindByAttr(attr, db.remote.txMax)
		if err != nil {
			return nil, wrapBackend("find by attribute", err)
		}
		ds, err := datomsFromDocs(docs)
		if err != nil {
			return nil, err
		}
		datoms = append(datoms, ds...)
	}
	datoms = append(datoms, db.local.FactsByAttribute(attr)...)
	SortDatomsByID(datoms)
	if db.attrIndex == nil {
		db.attrIndex = make(map[string][]Datom)
	}
	db.attrIndex[attr] = datoms
	return datoms, nil
}

// getAttrValIndex returns every datom for (attr, value), building and
// caching the (attr, value) slice on first use. If attrValIndexComplete
// already covers attr, a miss means "no such value", answered without a
// backend query.
func (db *Database) getAttrValIndex(attr string, value Value) ([]Datom, error) {
	if m, ok := db.attrValIndex[attr]; ok {
		if datoms, ok2 := m[value]; ok2 {
			return datoms, nil
		}
		if db.attrValIndexComplete[attr] {
			return nil, nil
		}
	}
	var datoms []Datom
	if db.remote != nil {
		docs, err := db.remote.coll.FindByAttrValue(attr, EncodeValue(value), db.remote.txMax)
		if err != nil {
			return nil, wrapBackend("find by attribute value", err)
		}
		ds, err := datomsFromDocs(docs)
		if err != nil {
			return nil, err
		}
		datoms = append(datoms, ds...)
	}
	datoms = append(datoms, db.local.FactsByAttributeValue(attr, value)...)
	SortDatomsByID(datoms)

	if db.attrValIndex == nil {
		db.attrValIndex = make(map[string]map[Value][]Datom)
	}
	m, ok := db.attrValIndex[attr]
	if !ok {
		m = make(map[Value][]Datom)
		db.attrValIndex[attr] = m
	}
	m[value] = datoms
	return datoms, nil
}

// pullFullAttrValIndex builds the complete inverted (attr -> value ->
// datoms) index for attr in one pass and marks it complete, so future
// per-value lookups against attr never hit the backend again.
func (db *Database) pullFullAttrValIndex(attr string) error {
	datoms, err := db.getAttrIndex(attr)
	if err != nil {
		return err
	}
	m := make(map[Value][]Datom)
	for _, d := range datoms {
		m[d.V] = append(m[d.V], d)
	}
	if db.attrValIndex == nil {
		db.attrValIndex = make(map[string]map[Value][]Datom)
	}
	db.attrValIndex[attr] = m
	if db.attrValIndexComplete == nil {
		db.attrValIndexComplete = make(map[string]bool)
	}
	db.attrValIndexComplete[attr] = true
	return nil
}

// getEntityIndex returns every historical datom for entity (remote ∪
// overlay, sorted by id), building and caching it on first use.
func (db *Database) getEntityIndex(entity int64) ([]Datom, error) {
	if cached, ok := db.entityIndex[entity]; ok {
		return cached, nil
	}
	var datoms []Datom
	if db.remote != nil {
		docs, err := db.remote.coll.FindByEntities([]int64{entity}, db.remote.txMax)
		if err != nil {
			return nil, wrapBackend("find by entity", err)
		}
		ds, err := datomsFromDocs(docs)
		if err != nil {
			return nil, err
		}
		datoms = append(datoms, ds...)
	}
	datoms = append(datoms, db.local.FactsByEntity(entity)...)
	SortDatomsByID(datoms)
	if db.entityIndex == nil {
		db.entityIndex = make(map[int64][]Datom)
	}
	db.entityIndex[entity] = datoms
	return datoms, nil
}

func (db *Database) maxEntity() (int64, error) {
	m := db.local.MaxKey("e")
	if db.remote != nil {
		doc, ok, err := db.remote.coll.FindMaxByKey(storage.SortKeyE, db.remote.txMax)
		if err != nil {
			return 0, wrapBackend("find max entity", err)
		}
		if ok && doc.E > m {
			m = doc.E
		}
	}
	return m, nil
}

func (db *Database) maxID() (int64, error) {
	m := db.local.MaxKey("id")
	if db.remote != nil {
		doc, ok, err := db.remote.coll.FindMaxByKey(storage.SortKeyID, db.remote.txMax)
		if err != nil {
			return 0, wrapBackend("find max id", err)
		}
		if ok && doc.ID > m {
			m = doc.ID
		}
	}
	return m, nil
}

// getAttrDef resolves ident's attribute definition: builtins first, then
// attrDefCache, then (on miss) a lookup of the entity defining
// db/ident=ident.
func (db *Database) getAttrDef(ident string) (Attr, error) {
	if a, ok := BuiltinAttr(ident); ok {
		return a, nil
	}
	if entry, ok := db.attrDefCache[ident]; ok {
		return entry.attr, nil
	}
	entity, err := db.lookup("db/ident", KeywordValue(ident))
	if err != nil {
		var notFound *EntityNotFoundError
		if errors.As(err, &notFound) {
			return Attr{}, &SchemaError{Attribute: ident}
		}
		return Attr{}, err
	}
	m, err := db.Get(EntityID(entity))
	if err != nil {
		return Attr{}, err
	}
	attr, err := AttrFromMap(ident, m)
	if err != nil {
		return Attr{}, err
	}
	if db.attrDefCache == nil {
		db.attrDefCache = make(map[string]attrDefCacheEntry)
	}
	db.attrDefCache[ident] = attrDefCacheEntry{attr: attr, entity: entity}
	return attr, nil
}

// attrTypedValue resolves attribute's definition and wraps raw into its
// canonical typed Value.
func (db *Database) attrTypedValue(attribute string, raw any) (Value, error) {
	attr, err := db.getAttrDef(attribute)
	if err != nil {
		return nil, err
	}
	return attr.ValidateValue(raw)
}

// lookup resolves the unique entity currently holding attribute=value.
// attribute must be unique (identity or value); candidates come from
// the attr/value index and are confirmed against each candidate's
// current Get(), since the index may include retracted history.
func (db *Database) lookup(attribute string, value Value) (int64, error) {
	attr, err := db.getAttrDef(attribute)
	if err != nil {
		return 0, err
	}
	if !attr.IsUnique() {
		return 0, &ValidationError{Reason: fmt.Sprintf(
			"attribute %q is not unique and cannot be used in a lookup ref", attribute)}
	}
	// Unique attributes are looked up repeatedly (every uniqueness check,
	// every db/ident resolution), so pull and invert the full attribute
	// index once; later misses then mean "no such value" without another
	// backend query.
	if !db.attrValIndexComplete[attribute] {
		if err := db.pullFullAttrValIndex(attribute); err != nil {
			return 0, err
		}
	}
	datoms, err := db.getAttrValIndex(attribute, value)
	if err != nil {
		return 0, err
	}
	seen := map[int64]bool{}
	for _, d := range datoms {
		if seen[d.E] {
			continue
		}
		seen[d.E] = true
		m, err := db.Get(EntityID(d.E))
		if err != nil {
			return 0, err
		}
		if cur, ok := m[attribute]; ok {
			if cv, ok := cur.(Value); ok && valuesEqual(cv, value) {
				return d.E, nil
			}
		}
	}
	return 0, &EntityNotFoundError{Attribute: attribute, Value: value}
}

// resolveEntityRef resolves an EntityRef that must already name an
// existing entity (used by read paths, as opposed to the transaction
// engine's temp-id-allocating resolution in transaction.go).
func (db *Database) resolveEntityRef(ref EntityRef) (int64, error) {
	switch ref.kind {
	case entityRefID:
		return ref.id, nil
	case entityRefLookup:
		v, err := db.attrTypedValue(ref.lookupAttr, ref.lookupVal)
		if err != nil {
			return 0, err
		}
		return db.lookup(ref.lookupAttr, v)
	default:
		return 0, &ValidationError{Reason: "this operation requires an entity id or a lookup ref, not a temp-id"}
	}
}

// replay folds a set of historical datoms, in id order, into the
// currently-active attribute map: asserts append/set, retracts remove
// the exact (a, v) — cardinality-one folds to a scalar Value, many to a
// []Value.
func (db *Database) replay(datoms []Datom) (map[string]any, error) {
	sorted := append([]Datom(nil), datoms...)
	SortDatomsByID(sorted)

	scalar := map[string]Value{}
	many := map[string][]Value{}
	for _, d := range sorted {
		attr, err := db.getAttrDef(d.A)
		if err != nil {
			return nil, err
		}
		if attr.Cardinality == CardinalityMany {
			vals := many[d.A]
			if d.Op {
				vals = append(vals, d.V)
			} else {
				vals = removeValue(vals, d.V)
			}
			many[d.A] = vals
		} else {
			if d.Op {
				scalar[d.A] = d.V
			} else {
				delete(scalar, d.A)
			}
		}
	}

	result := make(map[string]any, len(scalar)+len(many))
	for a, v := range scalar {
		result[a] = v
	}
	for a, vs := range many {
		if len(vs) > 0 {
			result[a] = vs
		}
	}
	return result, nil
}

func removeValue(values []Value, v Value) []Value {
	out := values[:0]
	removed := false
	for _, existing := range values {
		if !removed && valuesEqual(existing, v) {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out
}

// Get returns the currently active attribute map for the given entity
// or lookup ref.
func (db *Database) Get(ref EntityRef) (map[string]any, error) {
	e, err := db.resolveEntityRef(ref)
	if err != nil {
		return nil, err
	}
	datoms, err := db.getEntityIndex(e)
	if err != nil {
		return nil, err
	}
	return db.replay(datoms)
}

// Facts returns every historical datom for the given entity or lookup
// ref, sorted by id.
func (db *Database) Facts(ref EntityRef) ([]Datom, error) {
	e, err := db.resolveEntityRef(ref)
	if err != nil {
		return nil, err
	}
	datoms, err := db.getEntityIndex(e)
	if err != nil {
		return nil, err
	}
	out := append([]Datom(nil), datoms...)
	SortDatomsByID(out)
	return out, nil
}

// AllFacts returns every historical datom in the database value,
// sorted by id, the global total order across transactions.
func (db *Database) AllFacts() ([]Datom, error) {
	var all []Datom
	if db.remote != nil {
		docs, err := db.remote.coll.FindAll(db.remote.txMax)
		if err != nil {
			return nil, wrapBackend("find all", err)
		}
		ds, err := datomsFromDocs(docs)
		if err != nil {
			return nil, err
		}
		all = append(all, ds...)
	}
	all = append(all, db.local.Facts()...)
	SortDatomsByID(all)
	return all, nil
}

// Entities returns every entity id from 0 to max(e), inclusive.
func (db *Database) Entities() ([]int64, error) {
	maxE, err := db.maxEntity()
	if err != nil {
		return nil, err
	}
	if maxE < 0 {
		return nil, nil
	}
	out := make([]int64, maxE+1)
	for i := range out {
		out[i] = int64(i)
	}
	return out, nil
}

// FindCriterion is one attribute->value-or-nil constraint in a Find
// call. A nil Value means "this attribute must be present, with any
// value", expressed as an ordered slice rather than a map so the
// first-criterion seed is deterministic.
type FindCriterion struct {
	Attribute string
	Value     any
}

func (db *Database) valueMatches(attribute string, current any, wanted any) (bool, error) {
	wantedV, err := db.attrTypedValue(attribute, wanted)
	if err != nil {
		return false, err
	}
	switch cur := current.(type) {
	case Value:
		return valuesEqual(cur, wantedV), nil
	case []Value:
		return containsValue(cur, wantedV), nil
	default:
		return false, nil
	}
}

// Find resolves candidate entities from the first criterion via the
// attr or attr/value index, expands each to its full attribute map, and
// filters by the remaining criteria. Empty criteria returns every
// non-empty entity.
func (db *Database) Find(criteria []FindCriterion) ([]map[string]any, error) {
	if len(criteria) == 0 {
		maxE, err := db.maxEntity()
		if err != nil {
			return nil, err
		}
		var results []map[string]any
		for e := int64(0); e <= maxE; e++ {
			m, err := db.Get(EntityID(e))
			if err != nil {
				return nil, err
			}
			if len(m) > 0 {
				results = append(results, m)
			}
		}
		return results, nil
	}

	seed := criteria[0]
	var seedDatoms []Datom
	var err error
	if seed.Value != nil {
		v, verr := db.attrTypedValue(seed.Attribute, seed.Value)
		if verr != nil {
			return nil, verr
		}
		seedDatoms, err = db.getAttrValIndex(seed.Attribute, v)
	} else {
		seedDatoms, err = db.getAttrIndex(seed.Attribute)
	}
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	var results []map[string]any
	for _, d := range seedDatoms {
		if seen[d.E] {
			continue
		}
		seen[d.E] = true
		m, err := db.Get(EntityID(d.E))
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			continue
		}
		if matched, err := db.matchesCriteria(m, criteria); err != nil {
			return nil, err
		} else if matched {
			results = append(results, m)
		}
	}
	return results, nil
}

func (db *Database) matchesCriteria(m map[string]any, criteria []FindCriterion) (bool, error) {
	for _, c := range criteria {
		cur, ok := m[c.Attribute]
		if c.Value == nil {
			if !ok {
				return false, nil
			}
			continue
		}
		if !ok {
			return false, nil
		}
		ok2, err := db.valueMatches(c.Attribute, cur, c.Value)
		if err != nil {
			return false, err
		}
		if !ok2 {
			return false, nil
		}
	}
	return true, nil
}

// States returns, for the given entity or lookup ref, a map of
// tx -> Get(entity) as of that transaction, restricted to transactions
// that actually touch the entity: keyed by real transaction ids only,
// omitting pre-history.
func (db *Database) States(ref EntityRef) (map[int64]map[string]any, error) {
	e, err := db.resolveEntityRef(ref)
	if err != nil {
		return nil, err
	}
	datoms, err := db.getEntityIndex(e)
	if err != nil {
		return nil, err
	}
	sorted := append([]Datom(nil), datoms...)
	SortDatomsByID(sorted)

	var txsInOrder []int64
	seenTx := map[int64]bool{}
	for _, d := range sorted {
		if !seenTx[d.Tx] {
			seenTx[d.Tx] = true
			txsInOrder = append(txsInOrder, d.Tx)
		}
	}

	result := make(map[int64]map[string]any, len(txsInOrder))
	for _, tx := range txsInOrder {
		var upTo []Datom
		for _, d := range sorted {
			if d.Tx <= tx {
				upTo = append(upTo, d)
			}
		}
		m, err := db.replay(upTo)
		if err != nil {
			return nil, err
		}
		result[tx] = m
	}
	return result, nil
}

// TransactionAt returns the highest tx whose db/txInstant <= t, or -1.
func (db *Database) TransactionAt(t int64) (int64, error) {
	datoms, err := db.getAttrIndex("db/txInstant")
	if err != nil {
		return 0, err
	}
	best := int64(-1)
	for _, d := range datoms {
		iv, ok := d.V.(InstantValue)
		if ok && int64(iv) <= t && d.E > best {
			best = d.E
		}
	}
	return best, nil
}

// AsOf returns a Database value fixed at tx_id: if tx_id falls within
// the still-uncommitted overlay, the overlay is truncated; otherwise
// the overlay is dropped and the remote snapshot itself is narrowed.
// Fails if tx_id is beyond every known transaction.
func (db *Database) AsOf(txID int64) (*Database, error) {
	remoteTxMax := int64(-1)
	if db.remote != nil {
		remoteTxMax = db.remote.txMax
	}
	localTxMax := db.local.TxMax()
	overallMax := remoteTxMax
	if localTxMax > overallMax {
		overallMax = localTxMax
	}
	if txID > overallMax {
		return nil, &ValidationError{Reason: "cannot travel into the future: no transaction exists with that id yet"}
	}
	if txID > remoteTxMax {
		return &Database{remote: db.remote, txMin: db.txMin, local: db.local.AsOf(txID), fullHistory: db.fullHistory}, nil
	}
	var remote *remoteView
	if db.remote != nil {
		remote = &remoteView{coll: db.remote.coll, txMax: txID}
	}
	return &Database{remote: remote, txMin: db.txMin, local: NewLocalDatoms(nil), fullHistory: db.fullHistory}, nil
}

// Since returns a Database value with tx_min = tx_id. This currently
// affects no read method; the overlay and remote snapshot are retained
// unchanged and the bound is preserved for a future history-aware
// query path.
func (db *Database) Since(txID int64) *Database {
	return &Database{remote: db.remote, txMin: txID, local: db.local, fullHistory: db.fullHistory}
}

// History returns a Database value with full_history set. The flag is
// informational only, until a real query engine exists.
func (db *Database) History() *Database {
	return &Database{remote: db.remote, txMin: db.txMin, local: db.local, fullHistory: true}
}

// String renders the entity count, fact count and highest tx, followed
// by every datom in AllFacts order.
func (db *Database) String() string {
	facts, err := db.AllFacts()
	if err != nil {
		return fmt.Sprintf("<factum.Database: error reading facts: %v>", err)
	}
	entities, err := db.Entities()
	if err != nil {
		return fmt.Sprintf("<factum.Database: error reading entities: %v>", err)
	}
	txMax, _ := db.maxTxSeen(facts)
	out := fmt.Sprintf("factum.Database: %d entities, %d facts, tx_max=%d\n", len(entities), len(facts), txMax)
	for _, d := range facts {
		out += d.String() + "\n"
	}
	return out
}

func (db *Database) maxTxSeen(facts []Datom) (int64, error) {
	best := int64(-1)
	for _, d := range facts {
		if d.Tx > best {
			best = d.Tx
		}
	}
	return best, nil
}
