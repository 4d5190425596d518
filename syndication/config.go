package syndication

import "time"

// Config configures the syndication service.
type Config struct {
	// JobInterval is the delay between job-processor polling ticks.
	JobInterval time.Duration

	// JobBatchSize caps how many due jobs of one type a tick picks up.
	JobBatchSize int

	// WebhookTimeout bounds each delivery request.
	WebhookTimeout time.Duration

	// WebhookMaxAttempts is the delivery retry ceiling per enqueued event.
	WebhookMaxAttempts int

	// FeedDefaultLimit is the page size when the caller asks for none.
	FeedDefaultLimit int

	// FeedMaxLimit is the hard page-size ceiling, clamped server-side.
	FeedMaxLimit int

	// ExcerptLength is the maximum excerpt size in runes when an excerpt
	// is derived from the rendered body.
	ExcerptLength int

	// AdminToken, when set, is required as a bearer token on admin routes.
	AdminToken string
}

func (c *Config) defaults() {
	if c.JobInterval <= 0 {
		c.JobInterval = time.Minute
	}
	if c.JobBatchSize <= 0 {
		c.JobBatchSize = 50
	}
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = 5 * time.Second
	}
	if c.WebhookMaxAttempts <= 0 {
		c.WebhookMaxAttempts = 5
	}
	if c.FeedDefaultLimit <= 0 {
		c.FeedDefaultLimit = 20
	}
	if c.FeedMaxLimit <= 0 {
		c.FeedMaxLimit = 100
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = 280
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}
