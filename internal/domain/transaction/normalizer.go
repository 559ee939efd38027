package transaction

// Normalize renames legacy fields to their canonical names in a single pass.
// Fields without an alias pass through untouched and field order is kept.
// The input records are not modified.
func Normalize(records []*Record) []*Record {
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = normalizeRecord(r)
	}
	return out
}

func normalizeRecord(r *Record) *Record {
	n := NewRecord()
	if r == nil {
		return n
	}

	n.keys = make([]string, 0, len(r.keys))
	for _, key := range r.keys {
		name := key
		if canonical, ok := FieldAliases[key]; ok {
			name = canonical
		}
		// A clash between an alias and its canonical name resolves to the
		// later value at the earlier position.
		n.Set(name, r.values[key])
	}
	return n
}
