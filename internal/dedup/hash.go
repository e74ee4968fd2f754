package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func norm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// JobHash identifies a posting across re-crawls.
func JobHash(title, company, rawURL string) string {
	sum := sha256.Sum256([]byte(norm(title) + "|" + norm(company) + "|" + CanonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}
