package store

// Post lifecycle states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
	StatusArchived  = "archived"
)

// Post is a published or draft content unit.
type Post struct {
	ID             string   `json:"id"`
	SiteID         string   `json:"site_id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Excerpt        string   `json:"excerpt"`
	BodyMarkdown   string   `json:"body_markdown"`
	BodyHTML       string   `json:"body_html"`
	Tags           []string `json:"tags"`
	Images         []Image  `json:"images"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Status         string   `json:"status"`
	PublishedAt    *int64   `json:"published_at,omitempty"`
	ContentHash    string   `json:"content_hash"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Image is an attached media descriptor.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// SlugHistoryEntry records a previous slug of a post.
type SlugHistoryEntry struct {
	ID        string `json:"id"`
	SiteID    string `json:"site_id"`
	PostID    string `json:"post_id"`
	Slug      string `json:"slug"`
	CreatedAt int64  `json:"created_at"`
}

// Article is a generated content unit awaiting publication as a post.
type Article struct {
	ID             string   `json:"id"`
	SiteID         string   `json:"site_id"`
	Title          string   `json:"title"`
	BodyMarkdown   string   `json:"body_markdown"`
	BodyHTML       string   `json:"body_html"`
	Excerpt        string   `json:"excerpt"`
	Tags           []string `json:"tags"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Status         string   `json:"status"`
	ScheduledFor   *int64   `json:"scheduled_for,omitempty"`
	PostID         string   `json:"post_id"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Subscription is a site-scoped webhook registration.
// The dispatcher consumes it read-only; administration owns mutations.
type Subscription struct {
	ID        string `json:"id"`
	SiteID    string `json:"site_id"`
	TargetURL string `json:"target_url"`
	Secret    string `json:"-"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// DeliveryAttempt is one webhook delivery try. Append-only.
type DeliveryAttempt struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	PostID         string `json:"post_id"`
	Event          string `json:"event"`
	Attempt        int    `json:"attempt"`
	StatusCode     *int   `json:"status_code,omitempty"`
	ErrorMessage   string `json:"error_message"`
	DurationMs     int64  `json:"duration_ms"`
	DeliveredAt    int64  `json:"delivered_at"`
}

// Job is a generic deferred-work unit. A job is terminal once CompletedAt
// is set, whether due to success or exhausted retries.
type Job struct {
	ID           string `json:"id"`
	JobType      string `json:"job_type"`
	Payload      string `json:"payload"`
	ScheduledFor int64  `json:"scheduled_for"`
	Attempts     int    `json:"attempts"`
	MaxAttempts  int    `json:"max_attempts"`
	LastError    string `json:"last_error"`
	CompletedAt  *int64 `json:"completed_at,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Credential is a site API key record. Only the bcrypt hash is stored.
type Credential struct {
	ID        string `json:"id"`
	SiteID    string `json:"site_id"`
	KeyHash   string `json:"-"`
	KeyPrefix string `json:"key_prefix"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}
