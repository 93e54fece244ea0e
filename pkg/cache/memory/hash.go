package memory

import "strconv"

// HashContent derives the cache key for a piece of page text by folding it
// into a 32-bit signed integer, h = h*31 + c over the text's characters,
// rendered in hex. The hash is deterministic but not collision-free, which
// is acceptable for cache keying.
func HashContent(text string) string {
	var h int32
	for _, r := range text {
		h = 31*h + r
	}
	return strconv.FormatUint(uint64(uint32(h)), 16)
}
