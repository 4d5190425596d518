package webhook

import "encoding/json"

// Event types emitted by the dispatcher.
const (
	EventPostPublished = "post.published"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
)

// Event is the wire payload POSTed to subscribers.
// UpdatedAt is milliseconds since epoch, matching the feed API.
type Event struct {
	Event        string `json:"event"`
	SiteID       string `json:"site_id"`
	PostID       string `json:"post_id"`
	Slug         string `json:"slug"`
	PreviousSlug string `json:"previous_slug,omitempty"`
	UpdatedAt    int64  `json:"updated_at"`
	ContentHash  string `json:"content_hash"`
}

// Canonical returns the byte form that is both sent and signed. Using one
// serialization for both keeps signatures verifiable against the body as
// received.
func (e Event) Canonical() ([]byte, error) {
	return json.Marshal(e)
}
