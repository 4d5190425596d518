package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Job types.
const (
	JobPublishScheduledPost = "publish_scheduled_post"
	JobPublishArticle       = "publish_article_to_cms"
	JobWebhookDelivery      = "webhook_delivery"
)

// PublishPostPayload schedules a post status flip.
type PublishPostPayload struct {
	PostID string `json:"post_id"`
}

// PublishArticlePayload publishes a generated article as a live post.
type PublishArticlePayload struct {
	ArticleID string `json:"article_id"`
	SiteID    string `json:"site_id"`
}

// WebhookDeliveryPayload carries everything a delivery attempt needs, so the
// processor never re-reads the subscription (a registration deleted after
// enqueue still gets its in-flight events).
type WebhookDeliveryPayload struct {
	SubscriptionID string          `json:"subscription_id"`
	TargetURL      string          `json:"target_url"`
	Secret         string          `json:"secret"`
	Event          json.RawMessage `json:"event"`
	EventType      string          `json:"event_type"`
	PostID         string          `json:"post_id"`
}

// EncodePayload serializes a typed job payload.
func EncodePayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload deserializes a job payload into the typed form for its job type.
func DecodePayload(j *Job, v any) error {
	if err := json.Unmarshal([]byte(j.Payload), v); err != nil {
		return fmt.Errorf("decode %s payload for job %s: %w", j.JobType, j.ID, err)
	}
	return nil
}

const jobColumns = `id, job_type, payload, scheduled_for, attempts, max_attempts,
	last_error, completed_at, created_at, updated_at`

// InsertJob enqueues a deferred-work unit.
func (s *Store) InsertJob(ctx context.Context, j *Job) error {
	now := time.Now().UnixMilli()
	if j.CreatedAt == 0 {
		j.CreatedAt = now
	}
	if j.UpdatedAt == 0 {
		j.UpdatedAt = now
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.Payload == "" {
		j.Payload = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.JobType, j.Payload, j.ScheduledFor, j.Attempts, j.MaxAttempts,
		j.LastError, j.CompletedAt, j.CreatedAt, j.UpdatedAt)
	return err
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = ?`, id)
	return scanJob(row.Scan)
}

// DueJobs returns pending jobs of the given type whose scheduled time has
// passed, oldest first.
func (s *Store) DueJobs(ctx context.Context, jobType string, now int64, limit int) ([]*Job, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs
		WHERE job_type = ? AND completed_at IS NULL AND scheduled_for <= ?
		ORDER BY scheduled_for ASC LIMIT ?`, jobType, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimAttempt increments a job's attempt counter with an optimistic guard on
// the previous count. Returns false when another processor instance already
// claimed this attempt or the job completed meanwhile.
func (s *Store) ClaimAttempt(ctx context.Context, id string, attempts int) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scheduled_jobs SET attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND completed_at IS NULL AND attempts = ?`,
		time.Now().UnixMilli(), id, attempts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompleteJob marks a job terminal. An empty errMsg records success;
// a non-empty one records a terminal failure. Completed jobs are never
// deleted; the row is the audit trail.
func (s *Store) CompleteJob(ctx context.Context, id, errMsg string, now int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE scheduled_jobs SET completed_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND completed_at IS NULL`,
		now, errMsg, now, id)
	return err
}

// RescheduleJob moves a pending job's due time forward and records the error
// that caused the retry.
func (s *Store) RescheduleJob(ctx context.Context, id string, nextAt int64, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE scheduled_jobs SET scheduled_for = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND completed_at IS NULL`,
		nextAt, errMsg, time.Now().UnixMilli(), id)
	return err
}

func scanJob(scan func(dest ...any) error) (*Job, error) {
	var j Job
	err := scan(&j.ID, &j.JobType, &j.Payload, &j.ScheduledFor, &j.Attempts,
		&j.MaxAttempts, &j.LastError, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}
