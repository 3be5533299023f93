// Package session provides the TTL-bounded key/value store that backs drafts,
// intent history and user context. Values are opaque strings; the store never
// interprets them.
//
// Implementations never fail toward the caller: a cache outage degrades to an
// empty result or to in-process memory and is only logged.
package session

import (
	"context"
	"strings"
	"time"
)

// Store is a best-effort TTL key/value store.
type Store interface {
	// Get returns the value stored under key and whether it was found.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key; a non-positive ttl keeps it without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Del removes the given keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string)
	// Keys lists keys matching a Redis-style glob pattern. Best effort.
	Keys(ctx context.Context, pattern string) []string
}

// Key joins a namespace prefix and its parts with "::", the separator every
// persisted namespace uses.
func Key(prefix string, parts ...string) string {
	k := prefix
	for _, p := range parts {
		k += "::" + p
	}
	return k
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// EscapePattern quotes the glob metacharacters in s so it matches only itself
// inside a Keys pattern.
func EscapePattern(s string) string {
	return globEscaper.Replace(s)
}
