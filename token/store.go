package token

// Store is durable persistence for a single bearer credential string.
// Pure storage, no refresh policy. Implementations must never fail loudly:
// storage-layer errors are logged and degrade to "no token".
type Store interface {
	// Get returns the stored token, or false when none is held.
	Get() (string, bool)

	// Set replaces the stored token. Setting the empty string clears storage.
	Set(token string)

	// Clear removes the stored token.
	Clear()
}
