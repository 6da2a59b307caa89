package offline

import "github.com/artpar/storyshare/internal/story"

// SameStories reports whether a and b hold the same records, ignoring order.
func SameStories(a, b []story.Record) bool {
	if len(a) != len(b) {
		return false
	}

	byID := make(map[string]story.Record, len(a))
	for _, r := range a {
		byID[r.ID] = r
	}
	if len(byID) != len(a) {
		return false
	}

	for _, r := range b {
		other, ok := byID[r.ID]
		if !ok || !other.Equal(r) {
			return false
		}
		delete(byID, r.ID)
	}
	return len(byID) == 0
}
