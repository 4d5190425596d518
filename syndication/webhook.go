package syndication

import (
	"context"
	"fmt"

	"github.com/inkwellhq/inkwell/syndication/internal/store"
	"github.com/inkwellhq/inkwell/syndication/internal/webhook"
)

// Emit enqueues one delivery job per active subscription on the event's
// site. No network I/O happens here; the job processor performs the actual
// deliveries with retry.
func (s *Service) Emit(ctx context.Context, event webhook.Event) error {
	subs, err := s.store.ActiveSubscriptions(ctx, event.SiteID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := event.Canonical()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	now := s.now().UnixMilli()
	for _, sub := range subs {
		payload, err := store.EncodePayload(store.WebhookDeliveryPayload{
			SubscriptionID: sub.ID,
			TargetURL:      sub.TargetURL,
			Secret:         sub.Secret,
			Event:          body,
			EventType:      event.Event,
			PostID:         event.PostID,
		})
		if err != nil {
			return err
		}
		job := &store.Job{
			ID:           s.newID(),
			JobType:      store.JobWebhookDelivery,
			Payload:      payload,
			ScheduledFor: now,
			MaxAttempts:  s.config.WebhookMaxAttempts,
		}
		if err := s.store.InsertJob(ctx, job); err != nil {
			return fmt.Errorf("enqueue delivery for %s: %w", sub.ID, err)
		}
	}
	s.logger.Info("webhook: event enqueued",
		"event", event.Event, "site_id", event.SiteID,
		"post_id", event.PostID, "subscribers", len(subs))
	return nil
}

// CreateSubscription registers a webhook endpoint for a site.
func (s *Service) CreateSubscription(ctx context.Context, sub *store.Subscription) error {
	if sub.SiteID == "" || sub.TargetURL == "" || sub.Secret == "" {
		return fmt.Errorf("%w: site_id, target_url and secret are required", ErrInvalidInput)
	}
	if sub.ID == "" {
		sub.ID = "sub_" + s.newID()
	}
	return s.store.InsertSubscription(ctx, sub)
}
