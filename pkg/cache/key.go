package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// DeriveKey builds a deterministic cache key from an operation name and its
// named arguments. Two calls with equal arguments yield the same key in any
// enumeration order, and any difference in an argument yields a different
// key with overwhelming probability over realistic argument spaces (string
// identifiers, small integers). Collisions silently serve a wrong cached
// result, so the encoding keeps the full sorted argument string alongside a
// digest rather than relying on the digest alone.
func DeriveKey(op string, args map[string]string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, args[k]))
	}

	canonical := strings.Join(parts, ":")

	h := fnv.New64a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%s#%016x", canonical, h.Sum64())
}
