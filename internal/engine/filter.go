package engine

import (
	"time"

	"ghnotifier/internal/feed"
)

// Filter keeps the items modified strictly after watermark. Items whose
// timestamp does not parse are returned in bad and never in fresh.
func Filter(items []feed.Item, watermark time.Time) (fresh []feed.Item, bad []ItemError) {
	for _, it := range items {
		t, err := it.LastModified()
		if err != nil {
			bad = append(bad, ItemError{ItemID: it.ID, Err: err})
			continue
		}
		if t.After(watermark) {
			fresh = append(fresh, it)
		}
	}
	return fresh, bad
}
