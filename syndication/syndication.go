// Package syndication implements the content-synchronization and
// delivery-guarantee subsystem: post fingerprinting, the paginated sync
// feed, webhook dispatch, and the scheduled-job processor.
package syndication

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/inkwellhq/inkwell/fingerprint"
	"github.com/inkwellhq/inkwell/idgen"
	"github.com/inkwellhq/inkwell/slug"
	"github.com/inkwellhq/inkwell/syndication/internal/htmltext"
	"github.com/inkwellhq/inkwell/syndication/internal/processor"
	"github.com/inkwellhq/inkwell/syndication/internal/store"
	"github.com/inkwellhq/inkwell/syndication/internal/webhook"
)

// Service is the syndication orchestrator.
type Service struct {
	store     *store.Store
	deliverer *webhook.Deliverer
	processor *processor.Processor
	sanitize  *bluemonday.Policy
	logger    *slog.Logger
	config    *Config
	newID     idgen.Generator
	now       func() time.Time
}

// New creates a syndication Service on an already-opened database.
// The schema is applied idempotently.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	st := store.NewStore(db)

	svc := &Service{
		store:     st,
		deliverer: webhook.NewDeliverer(st, cfg.WebhookTimeout, logger),
		sanitize:  bluemonday.UGCPolicy(),
		logger:    logger,
		config:    cfg,
		newID:     idgen.New,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	p := processor.New(st, processor.Config{
		Interval:  cfg.JobInterval,
		BatchSize: cfg.JobBatchSize,
	}, logger)
	p.SetClock(svc.now)
	p.Register(store.JobPublishScheduledPost, svc.handlePublishPost)
	p.Register(store.JobPublishArticle, svc.handlePublishArticle)
	p.Register(store.JobWebhookDelivery, svc.handleWebhookDelivery)
	svc.processor = p

	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithIDGenerator overrides the ID generator. Use in tests for stable IDs.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// WithClock overrides the time source. Use in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Start launches the background job processor. Non-blocking; the processor
// stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.processor.Run(ctx)
	s.logger.Info("syndication: started")
}

// Tick runs one processor pass synchronously. Exposed for tests and for
// one-shot CLI invocations.
func (s *Service) Tick(ctx context.Context) {
	s.processor.Tick(ctx)
}

// Store exposes the data layer for administrative tooling.
func (s *Service) Store() *store.Store {
	return s.store
}

// --- Post write path ---

// SavePost creates or updates a post: allocates a unique slug, records slug
// history on change, derives a missing excerpt from the rendered body,
// sanitizes the rendered body, recomputes the content fingerprint, and emits
// the matching webhook event when the post is visible to consumers.
func (s *Service) SavePost(ctx context.Context, p *store.Post) error {
	if p.SiteID == "" || p.Title == "" {
		return fmt.Errorf("%w: site_id and title are required", ErrInvalidInput)
	}

	var prior *store.Post
	if p.ID == "" {
		p.ID = s.newID()
	} else {
		var err error
		prior, err = s.store.GetPost(ctx, p.ID)
		if err != nil {
			return err
		}
	}

	if err := s.allocateSlug(ctx, p, prior); err != nil {
		return err
	}

	p.BodyHTML = s.sanitize.Sanitize(p.BodyHTML)
	if p.Excerpt == "" && p.BodyHTML != "" {
		p.Excerpt = htmltext.Excerpt(p.BodyHTML, s.config.ExcerptLength)
	}

	p.ContentHash = fingerprint.Compute(fingerprint.Input{
		SiteID:         p.SiteID,
		Slug:           p.Slug,
		Title:          p.Title,
		BodyMarkdown:   p.BodyMarkdown,
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
		Tags:           p.Tags,
	})

	now := s.now().UnixMilli()
	changed := prior == nil || prior.ContentHash != p.ContentHash || prior.Status != p.Status
	if prior != nil {
		p.CreatedAt = prior.CreatedAt
		p.UpdatedAt = prior.UpdatedAt
		if p.PublishedAt == nil {
			p.PublishedAt = prior.PublishedAt
		}
	}
	if changed {
		p.UpdatedAt = now
	}
	if p.Status == store.StatusPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}

	if err := s.store.UpsertPost(ctx, p); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}

	if !changed || p.Status != store.StatusPublished {
		return nil
	}

	event := webhook.Event{
		Event:       webhook.EventPostUpdated,
		SiteID:      p.SiteID,
		PostID:      p.ID,
		Slug:        p.Slug,
		UpdatedAt:   p.UpdatedAt,
		ContentHash: p.ContentHash,
	}
	if prior == nil || prior.Status != store.StatusPublished {
		event.Event = webhook.EventPostPublished
	}
	if prior != nil && prior.Slug != p.Slug {
		event.PreviousSlug = prior.Slug
	}
	return s.Emit(ctx, event)
}

// allocateSlug fills p.Slug (deriving it from the title when absent),
// deduplicates it against every slug in use within the site, and appends a
// slug history entry when an existing post's slug changes.
func (s *Service) allocateSlug(ctx context.Context, p, prior *store.Post) error {
	candidate := p.Slug
	if candidate == "" {
		if prior != nil {
			p.Slug = prior.Slug
			return nil
		}
		candidate = slug.Make(p.Title)
	}
	if candidate == "" {
		return fmt.Errorf("%w: title produces an empty slug", ErrInvalidInput)
	}
	if prior != nil && candidate == prior.Slug {
		p.Slug = prior.Slug
		return nil
	}

	existing, err := s.store.SiteSlugs(ctx, p.SiteID)
	if err != nil {
		return fmt.Errorf("list site slugs: %w", err)
	}
	if prior != nil {
		// The post's own current slug is not a collision.
		filtered := existing[:0]
		for _, sl := range existing {
			if sl != prior.Slug {
				filtered = append(filtered, sl)
			}
		}
		existing = filtered
	}
	p.Slug = slug.Deduplicate(candidate, existing)

	if prior != nil && prior.Slug != p.Slug {
		// Record the old slug before the new one takes effect.
		entry := &store.SlugHistoryEntry{
			ID:     s.newID(),
			SiteID: p.SiteID,
			PostID: p.ID,
			Slug:   prior.Slug,
		}
		if err := s.store.InsertSlugHistory(ctx, entry); err != nil {
			return fmt.Errorf("record slug history: %w", err)
		}
	}
	return nil
}

// DeletePost removes a post and notifies subscribers. The deletion event is
// enqueued before the row disappears so the payload still carries the slug
// and last fingerprint.
func (s *Service) DeletePost(ctx context.Context, siteID, postID string) error {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil || p.SiteID != siteID {
		return ErrNotFound
	}

	if p.Status == store.StatusPublished {
		event := webhook.Event{
			Event:       webhook.EventPostDeleted,
			SiteID:      p.SiteID,
			PostID:      p.ID,
			Slug:        p.Slug,
			UpdatedAt:   s.now().UnixMilli(),
			ContentHash: p.ContentHash,
		}
		if err := s.Emit(ctx, event); err != nil {
			return err
		}
	}
	return s.store.DeletePost(ctx, postID)
}

// SchedulePost defers publication of a post to the given time.
func (s *Service) SchedulePost(ctx context.Context, postID string, at time.Time) error {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	p.Status = store.StatusScheduled
	p.UpdatedAt = s.now().UnixMilli()
	if err := s.store.UpsertPost(ctx, p); err != nil {
		return fmt.Errorf("mark post scheduled: %w", err)
	}

	payload, err := store.EncodePayload(store.PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}
	return s.store.InsertJob(ctx, &store.Job{
		ID:           s.newID(),
		JobType:      store.JobPublishScheduledPost,
		Payload:      payload,
		ScheduledFor: at.UnixMilli(),
		MaxAttempts:  s.config.WebhookMaxAttempts,
	})
}

// ScheduleArticle defers publication of a generated article to the given time.
func (s *Service) ScheduleArticle(ctx context.Context, articleID, siteID string, at time.Time) error {
	a, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if a == nil || a.SiteID != siteID {
		return ErrNotFound
	}
	if err := s.store.MarkArticleScheduled(ctx, articleID, at.UnixMilli()); err != nil {
		return fmt.Errorf("mark article scheduled: %w", err)
	}

	payload, err := store.EncodePayload(store.PublishArticlePayload{
		ArticleID: articleID,
		SiteID:    siteID,
	})
	if err != nil {
		return err
	}
	return s.store.InsertJob(ctx, &store.Job{
		ID:           s.newID(),
		JobType:      store.JobPublishArticle,
		Payload:      payload,
		ScheduledFor: at.UnixMilli(),
		MaxAttempts:  s.config.WebhookMaxAttempts,
	})
}
