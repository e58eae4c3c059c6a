package factum

// LocalDatoms is an ordered, append-only buffer of locally staged datoms
// layered atop a remote snapshot, with lazily built by-attribute,
// by-attribute/value, and by-entity caches plus cached e/id/tx maxima.
//
// Two mutation disciplines are offered: Append returns a new overlay
// (used when branching speculative as_if databases, so overlays are
// logically tree-shaped) and AppendFact mutates in place, patching every
// already-built cache — used exclusively by the transaction validator to
// advance "database after datom k" to "after datom k+1" in O(1).
type LocalDatoms struct {
	datoms []Datom

	cacheTxMax *int64
	cacheEMax  *int64
	cacheIDMax *int64

	cacheAIndex  map[string][]Datom
	cacheAVIndex map[string]map[Value][]Datom
	cacheEIndex  map[int64][]Datom
}

// NewLocalDatoms creates an overlay from an initial (possibly empty)
// slice of datoms.
func NewLocalDatoms(datoms []Datom) *LocalDatoms {
	cp := make([]Datom, len(datoms))
	copy(cp, datoms)
	return &LocalDatoms{datoms: cp}
}

// Len returns the number of datoms staged in this overlay.
func (l *LocalDatoms) Len() int { return len(l.datoms) }

// Facts returns every datom in this overlay, in append order.
func (l *LocalDatoms) Facts() []Datom {
	out := make([]Datom, len(l.datoms))
	copy(out, l.datoms)
	return out
}

// FactsByAttribute returns every datom with the given attribute,
// building and caching the by-attribute index on first use.
func (l *LocalDatoms) FactsByAttribute(attribute string) []Datom {
	if l.cacheAIndex == nil {
		l.cacheAIndex = make(map[string][]Datom)
		for _, d := range l.datoms {
			l.cacheAIndex[d.A] = append(l.cacheAIndex[d.A], d)
		}
	}
	return l.cacheAIndex[attribute]
}

// FactsByAttributeValue returns every datom with the given
// (attribute, value) pair, building and caching the by-attribute/value
// index on first use.
func (l *LocalDatoms) FactsByAttributeValue(attribute string, value Value) []Datom {
	if l.cacheAVIndex == nil {
		l.cacheAVIndex = make(map[string]map[Value][]Datom)
		for _, d := range l.datoms {
			m, ok := l.cacheAVIndex[d.A]
			if !ok {
				m = make(map[Value][]Datom)
				l.cacheAVIndex[d.A] = m
			}
			m[d.V] = append(m[d.V], d)
		}
	}
	m, ok := l.cacheAVIndex[attribute]
	if !ok {
		return nil
	}
	return m[value]
}

// FactsByEntity returns every datom about the given entity, building and
// caching the by-entity index on first use.
func (l *LocalDatoms) FactsByEntity(entity int64) []Datom {
	if l.cacheEIndex == nil {
		l.cacheEIndex = make(map[int64][]Datom)
		for _, d := range l.datoms {
			l.cacheEIndex[d.E] = append(l.cacheEIndex[d.E], d)
		}
	}
	return l.cacheEIndex[entity]
}

// TxMax returns the highest tx among the staged datoms, or -1 if empty.
func (l *LocalDatoms) TxMax() int64 {
	if l.cacheTxMax == nil {
		m := maxOf(func(d Datom) int64 { return d.Tx }, l.datoms)
		l.cacheTxMax = &m
	}
	return *l.cacheTxMax
}

// MaxKey returns the highest "e" or "id" among the staged datoms, or -1
// if empty. key must be "e" or "id".
func (l *LocalDatoms) MaxKey(key string) int64 {
	if l.cacheEMax == nil || l.cacheIDMax == nil {
		e := maxOf(func(d Datom) int64 { return d.E }, l.datoms)
		id := maxOf(func(d Datom) int64 { return d.ID }, l.datoms)
		l.cacheEMax = &e
		l.cacheIDMax = &id
	}
	switch key {
	case "e":
		return *l.cacheEMax
	case "id":
		return *l.cacheIDMax
	default:
		panic("localdatoms: unsupported key " + key)
	}
}

func maxOf(field func(Datom) int64, datoms []Datom) int64 {
	m := int64(-1)
	for _, d := range datoms {
		if v := field(d); v > m {
			m = v
		}
	}
	return m
}

// Append returns a new overlay whose buffer is the concatenation of
// this one and facts, leaving this overlay untouched. Used for
// speculative as_if branches.
func (l *LocalDatoms) Append(facts []Datom) *LocalDatoms {
	combined := make([]Datom, 0, len(l.datoms)+len(facts))
	combined = append(combined, l.datoms...)
	combined = append(combined, facts...)
	return NewLocalDatoms(combined)
}

// AppendFact appends a single datom in place, mutating the buffer and
// incrementally patching every already-built cache in O(1). Used
// exclusively inside the transaction validator.
func (l *LocalDatoms) AppendFact(d Datom) {
	l.datoms = append(l.datoms, d)

	if l.cacheTxMax != nil && d.Tx > *l.cacheTxMax {
		*l.cacheTxMax = d.Tx
	}
	if l.cacheEMax != nil && d.E > *l.cacheEMax {
		*l.cacheEMax = d.E
	}
	if l.cacheIDMax != nil && d.ID > *l.cacheIDMax {
		*l.cacheIDMax = d.ID
	}
	if l.cacheAIndex != nil {
		l.cacheAIndex[d.A] = append(l.cacheAIndex[d.A], d)
	}
	if l.cacheAVIndex != nil {
		m, ok := l.cacheAVIndex[d.A]
		if !ok {
			m = make(map[Value][]Datom)
			l.cacheAVIndex[d.A] = m
		}
		m[d.V] = append(m[d.V], d)
	}
	if l.cacheEIndex != nil {
		l.cacheEIndex[d.E] = append(l.cacheEIndex[d.E], d)
	}
}

// AsOf returns a new overlay retaining only datoms with tx <= txID.
func (l *LocalDatoms) AsOf(txID int64) *LocalDatoms {
	facts := make([]Datom, 0, len(l.datoms))
	for _, d := range l.datoms {
		if d.Tx <= txID {
			facts = append(facts, d)
		}
	}
	return NewLocalDatoms(facts)
}
