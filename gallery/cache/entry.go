package cache

import "time"

const (
	listKey       = "images:list"
	itemKeyPrefix = "images:item:"
)

func itemKey(id string) string {
	return itemKeyPrefix + id
}

// entry is a cached value and the instant it stops being valid.
type entry struct {
	value    any
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expireAt)
}

// generation tracks invalidations of one key while loads for it are running.
// It is dropped once the last load finishes.
type generation struct {
	value uint64
	loads int
}
