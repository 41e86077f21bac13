package cache

// Key families reported to Metrics.
const (
	FamilyList = "list"
	FamilyItem = "item"
)

// Metrics receives cache lifecycle events, tagged with the key family.
type Metrics interface {
	// Hit is called when a live entry is returned without touching the store.
	Hit(family string)

	// Miss is called when an entry is absent or expired and has to be loaded.
	Miss(family string)

	// Expire is called when an entry is found past its TTL.
	Expire(family string)

	// Invalidate is called for every explicit invalidation, present or not.
	Invalidate(family string)
}

// NoopMetrics ignores every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)        {}
func (NoopMetrics) Miss(string)       {}
func (NoopMetrics) Expire(string)     {}
func (NoopMetrics) Invalidate(string) {}
