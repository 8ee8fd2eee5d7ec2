package store

// Hooks are callbacks for high-signal store events.
// Implementations MUST be cheap and non-blocking; they run on the read and write paths.
type Hooks interface {
	// An entry was deleted on read.
	// reason ∈ {"corrupt", "oversize", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Put refused an entry larger than MaxEntrySize.
	EntryTooLarge(storageKey string, size int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)    {}
func (NopHooks) ProviderSetRejected(string) {}
func (NopHooks) EntryTooLarge(string, int)  {}
