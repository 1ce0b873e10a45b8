package record

// Accumulator is the deduplicated collection of one run.
// The first record seen for a key wins; later observations are discarded, never merged.
// Insertion order is kept so output is deterministic.
type Accumulator struct {
	index   map[string]int
	records []Record
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{index: make(map[string]int)}
}

// Add inserts r unless its key is empty or already present, and reports whether it was inserted
func (a *Accumulator) Add(r Record) bool {
	key := r.Key()
	if key == "" {
		return false
	}
	if _, exists := a.index[key]; exists {
		return false
	}
	a.index[key] = len(a.records)
	a.records = append(a.records, r)
	return true
}

// Len returns the number of distinct records
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Contains reports whether an identifier is present
func (a *Accumulator) Contains(id string) bool {
	_, ok := a.index[Key(id)]
	return ok
}

// Get returns the record stored for an identifier
func (a *Accumulator) Get(id string) (Record, bool) {
	i, ok := a.index[Key(id)]
	if !ok {
		return Record{}, false
	}
	return a.records[i], true
}

// Records returns the records in insertion order. The slice is a copy.
func (a *Accumulator) Records() []Record {
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Keys returns the normalised identifiers in insertion order
func (a *Accumulator) Keys() []string {
	keys := make([]string, len(a.records))
	for i, r := range a.records {
		keys[i] = r.Key()
	}
	return keys
}
