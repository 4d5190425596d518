package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const subscriptionColumns = `id, site_id, target_url, secret, active, created_at, updated_at`

// InsertSubscription registers a webhook subscription.
func (s *Store) InsertSubscription(ctx context.Context, sub *Subscription) error {
	now := time.Now().UnixMilli()
	if sub.CreatedAt == 0 {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt == 0 {
		sub.UpdatedAt = now
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO webhook_subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SiteID, sub.TargetURL, sub.Secret, sub.Active,
		sub.CreatedAt, sub.UpdatedAt)
	return err
}

// GetSubscription retrieves a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM webhook_subscriptions WHERE id = ?`, id)
	return scanSubscription(row.Scan)
}

// ActiveSubscriptions returns all active subscriptions for a site.
func (s *Store) ActiveSubscriptions(ctx context.Context, siteID string) ([]*Subscription, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM webhook_subscriptions
		WHERE site_id = ? AND active = 1 ORDER BY created_at ASC`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubscriptions returns all subscriptions for a site, active or not.
func (s *Store) ListSubscriptions(ctx context.Context, siteID string) ([]*Subscription, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM webhook_subscriptions
		WHERE site_id = ? ORDER BY created_at ASC`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubscription updates target URL, secret, and active flag.
func (s *Store) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	sub.UpdatedAt = time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET target_url=?, secret=?, active=?, updated_at=?
		WHERE id=?`,
		sub.TargetURL, sub.Secret, sub.Active, sub.UpdatedAt, sub.ID)
	return err
}

// DeleteSubscription removes a subscription. The delivery log keeps its rows:
// the audit trail outlives the registration.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = ?`, id)
	return err
}

// InsertDelivery appends a delivery attempt record.
func (s *Store) InsertDelivery(ctx context.Context, d *DeliveryAttempt) error {
	if d.DeliveredAt == 0 {
		d.DeliveredAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, post_id, event,
		attempt, status_code, error_message, duration_ms, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SubscriptionID, d.PostID, d.Event, d.Attempt, d.StatusCode,
		d.ErrorMessage, d.DurationMs, d.DeliveredAt)
	return err
}

// ListDeliveries returns recent delivery attempts for a subscription,
// newest first.
func (s *Store) ListDeliveries(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryAttempt, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, subscription_id, post_id, event, attempt, status_code,
		error_message, duration_ms, delivered_at
		FROM webhook_deliveries WHERE subscription_id = ?
		ORDER BY delivered_at DESC LIMIT ?`, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*DeliveryAttempt
	for rows.Next() {
		var d DeliveryAttempt
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.PostID, &d.Event,
			&d.Attempt, &d.StatusCode, &d.ErrorMessage, &d.DurationMs,
			&d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		attempts = append(attempts, &d)
	}
	return attempts, rows.Err()
}

func scanSubscription(scan func(dest ...any) error) (*Subscription, error) {
	var sub Subscription
	var active int
	err := scan(&sub.ID, &sub.SiteID, &sub.TargetURL, &sub.Secret, &active,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Active = active != 0
	return &sub, nil
}
