// Package identity describes who is talking to the engine. Authentication
// itself happens elsewhere; the engine only needs a stable user id and the
// enhanced-mode flag.
package identity

// Identity is the caller of one engine operation.
type Identity struct {
	// UserID keys the memory profile. Empty means anonymous.
	UserID string
	// Enhanced selects the richer system prompt.
	Enhanced bool
}

// Anonymous is the identity of a caller who is not signed in. Anonymous
// callers get conversations but no stored memory.
var Anonymous = Identity{}

// Authenticated reports whether the identity has a user id.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
