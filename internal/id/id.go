// Package id provides lexicographically-sortable entity identifiers.
//
// Identifiers are ULIDs: 128-bit values rendered as 26-character
// Crockford-base32 strings. Within a process, lexicographic order implies
// creation order (a shared monotonic entropy source breaks timestamp ties);
// across processes, the 80 random bits make collisions negligible.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskctl/taskctl/internal/constants"
)

// entropy is the process-wide monotonic entropy source. ulid.Monotonic is
// not safe for concurrent use, so reads are serialised by entropyMu.
//
//nolint:gochecknoglobals // Shared entropy source is required for the within-process ordering guarantee
var (
	entropy   = ulid.Monotonic(rand.Reader, 0)
	entropyMu sync.Mutex
)

// New returns a fresh ULID string.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Short returns the leading characters of an identifier used for human
// display and prefix lookup. Identifiers shorter than the short length are
// returned unchanged.
func Short(s string) string {
	if len(s) <= constants.ShortIDLength {
		return s
	}
	return s[:constants.ShortIDLength]
}

// Valid reports whether s parses as a canonical ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}
