package curation

import (
	"hash/fnv"
	"strconv"
)

// DeterministicID hashes parts with a stable FNV-1a 64-bit digest, rendered
// in base 16, so reruns against the same inputs produce the same id (§4.6's
// "stable hash of (validator id, column, canonical evidence key)").
func DeterministicID(parts ...string) string {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// PrefixedID builds a counter-suffixed id in the `obs_`/`sug_`/`dec_`
// family used for document-order ids (§6).
func PrefixedID(prefix string, counter int) string {
	return prefix + strconv.Itoa(counter)
}
