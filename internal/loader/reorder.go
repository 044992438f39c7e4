package loader

// Resort aligns rows with keys for one-to-one lookups. The result has one
// slot per key; a key with no row gets nil. When several rows share a key
// the first one wins.
func Resort[K comparable, V any](keys []K, rows []V, keyOf func(V) K) []*V {
	index := make(map[K]int, len(rows))
	for i := range rows {
		k := keyOf(rows[i])
		if _, seen := index[k]; !seen {
			index[k] = i
		}
	}

	out := make([]*V, len(keys))
	for i, k := range keys {
		if j, ok := index[k]; ok {
			out[i] = &rows[j]
		}
	}
	return out
}

// ResortMany groups rows by key for one-to-many lookups. Every key gets a
// non-nil slice, empty when no row matched. Row order within a group is
// preserved.
func ResortMany[K comparable, V any](keys []K, rows []V, keyOf func(V) K) [][]V {
	groups := make(map[K][]V, len(keys))
	for _, row := range rows {
		k := keyOf(row)
		groups[k] = append(groups[k], row)
	}

	out := make([][]V, len(keys))
	for i, k := range keys {
		if g, ok := groups[k]; ok {
			out[i] = g
		} else {
			out[i] = []V{}
		}
	}
	return out
}
