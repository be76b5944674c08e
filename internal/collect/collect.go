// Package collect builds evidence records from live sources. Collectors
// are thin: they fetch through a source client, stamp observer metadata,
// and attach a verification descriptor pointing back at the source.
package collect

import (
	"strings"
	"time"

	"github.com/mbrg/raptor/internal/evidence"
)

// evidenceID derives a stable record id from a type prefix and the
// record's natural key.
func evidenceID(parts ...string) string {
	return strings.Join(parts, "-")
}

func now() time.Time {
	return time.Now().UTC()
}

func makeRepo(owner, name string) *evidence.Repository {
	return &evidence.Repository{
		Owner:    owner,
		Name:     name,
		FullName: owner + "/" + name,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
