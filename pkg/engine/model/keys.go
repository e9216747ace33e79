package model

import "sort"

// SortedKeys returns the keys of a result map in lexical order.
func SortedKeys(m map[string]CheckResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
