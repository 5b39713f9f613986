package application

// FilterNew returns the rows whose key is not in existing, in input order.
// A key repeated within rows keeps only its first occurrence; producers are
// not expected to emit duplicates.
func FilterNew[K comparable, R any](rows []R, key func(R) K, existing map[K]struct{}) []R {
	seen := make(map[K]struct{}, len(rows))
	out := make([]R, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, ok := existing[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
