package syndication

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inkwellhq/inkwell/syndication/internal/processor"
	"github.com/inkwellhq/inkwell/syndication/internal/store"
	"github.com/inkwellhq/inkwell/syndication/internal/webhook"
)

// handlePublishPost flips a scheduled post to published and notifies
// subscribers. A post deleted between scheduling and execution is terminal;
// a post un-scheduled by an editor is a silent no-op.
func (s *Service) handlePublishPost(ctx context.Context, job *store.Job) error {
	var payload store.PublishPostPayload
	if err := store.DecodePayload(job, &payload); err != nil {
		return fmt.Errorf("%w: %v", processor.ErrTerminal, err)
	}

	p, err := s.store.GetPost(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: post %s no longer exists", processor.ErrTerminal, payload.PostID)
	}

	now := s.now().UnixMilli()
	flipped, err := s.store.MarkPostPublished(ctx, payload.PostID, now)
	if err != nil {
		return fmt.Errorf("publish post %s: %w", payload.PostID, err)
	}
	if !flipped {
		// Status changed since scheduling; nothing to publish.
		return nil
	}

	return s.Emit(ctx, webhook.Event{
		Event:       webhook.EventPostPublished,
		SiteID:      p.SiteID,
		PostID:      p.ID,
		Slug:        p.Slug,
		UpdatedAt:   now,
		ContentHash: p.ContentHash,
	})
}

// handlePublishArticle materializes a generated article as a published post.
func (s *Service) handlePublishArticle(ctx context.Context, job *store.Job) error {
	var payload store.PublishArticlePayload
	if err := store.DecodePayload(job, &payload); err != nil {
		return fmt.Errorf("%w: %v", processor.ErrTerminal, err)
	}

	a, err := s.store.GetArticle(ctx, payload.ArticleID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: article %s no longer exists", processor.ErrTerminal, payload.ArticleID)
	}
	if a.PostID != "" {
		// Already materialized on an earlier attempt.
		return nil
	}

	p := &store.Post{
		SiteID:         payload.SiteID,
		Title:          a.Title,
		BodyMarkdown:   a.BodyMarkdown,
		BodyHTML:       a.BodyHTML,
		Excerpt:        a.Excerpt,
		SEOTitle:       a.SEOTitle,
		SEODescription: a.SEODescription,
		Status:         store.StatusPublished,
		Tags:           a.Tags,
	}
	if err := s.SavePost(ctx, p); err != nil {
		return fmt.Errorf("materialize article %s: %w", payload.ArticleID, err)
	}

	flipped, err := s.store.MarkArticlePublished(ctx, payload.ArticleID, p.ID, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark article published: %w", err)
	}
	if !flipped {
		s.logger.Warn("processor: article already marked published", "article_id", payload.ArticleID)
	}
	return nil
}

// handleWebhookDelivery performs one delivery attempt for an enqueued event.
// The payload carries a snapshot of the target and secret so deliveries
// in flight survive subscription changes.
func (s *Service) handleWebhookDelivery(ctx context.Context, job *store.Job) error {
	var payload store.WebhookDeliveryPayload
	if err := store.DecodePayload(job, &payload); err != nil {
		return fmt.Errorf("%w: %v", processor.ErrTerminal, err)
	}

	var event webhook.Event
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return fmt.Errorf("%w: decode event: %v", processor.ErrTerminal, err)
	}

	res := s.deliverer.Deliver(ctx, payload.SubscriptionID, payload.TargetURL, payload.Secret, event, job.Attempts+1)
	if res.Success {
		return nil
	}
	if res.StatusCode == 410 {
		// The endpoint told us to go away for good.
		return fmt.Errorf("%w: endpoint returned 410 Gone", processor.ErrTerminal)
	}
	if res.Err != nil {
		return fmt.Errorf("deliver to %s: %w", payload.TargetURL, res.Err)
	}
	return fmt.Errorf("deliver to %s: status %d", payload.TargetURL, res.StatusCode)
}
