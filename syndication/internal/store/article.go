package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const articleColumns = `id, site_id, title, body_markdown, body_html, excerpt,
	tags_json, seo_title, seo_description, status, scheduled_for, post_id,
	created_at, updated_at`

// InsertArticle adds a generated article record.
func (s *Store) InsertArticle(ctx context.Context, a *Article) error {
	now := time.Now().UnixMilli()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = now
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SiteID, a.Title, a.BodyMarkdown, a.BodyHTML, a.Excerpt,
		string(tags), a.SEOTitle, a.SEODescription, a.Status, a.ScheduledFor,
		a.PostID, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetArticle retrieves an article by id.
func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)

	var a Article
	var tagsJSON string
	err := row.Scan(
		&a.ID, &a.SiteID, &a.Title, &a.BodyMarkdown, &a.BodyHTML, &a.Excerpt,
		&tagsJSON, &a.SEOTitle, &a.SEODescription, &a.Status, &a.ScheduledFor,
		&a.PostID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &a, nil
}

// MarkArticleScheduled sets an article's status to scheduled at the target time.
func (s *Store) MarkArticleScheduled(ctx context.Context, id string, at int64) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE articles SET status = ?, scheduled_for = ?, updated_at = ? WHERE id = ?`,
		StatusScheduled, at, now, id)
	return err
}

// MarkArticlePublished flips a scheduled article to published and links it to
// the created post. Returns false if the article left scheduled status in the
// meantime.
func (s *Store) MarkArticlePublished(ctx context.Context, id, postID string, now int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE articles SET status = ?, post_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusPublished, postID, now, id, StatusScheduled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
