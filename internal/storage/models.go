package storage

import (
	"time"
)

// FeedSource is one subscription in the user's collection.
type FeedSource struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CustomTitle     string    `json:"custom_title"`
	Category        string    `json:"category"`
	FeedType        string    `json:"feed_type"`
	DiscoveryMethod string    `json:"discovery_method"`
	AddedAt         time.Time `json:"added_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayTitle is the custom title if set, else the feed's own, else the URL.
func (f *FeedSource) DisplayTitle() string {
	switch {
	case f.CustomTitle != "":
		return f.CustomTitle
	case f.Title != "":
		return f.Title
	default:
		return f.URL
	}
}

// Removal records a source dropped as a duplicate of another.
type Removal struct {
	Source      FeedSource `json:"source"`
	DuplicateOf FeedSource `json:"duplicate_of"`
	RemovedAt   time.Time  `json:"removed_at"`
}
