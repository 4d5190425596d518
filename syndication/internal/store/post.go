package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const postColumns = `id, site_id, title, slug, excerpt, body_markdown, body_html,
	tags_json, images_json, seo_title, seo_description, status, published_at,
	content_hash, created_at, updated_at`

// UpsertPost inserts a post or replaces an existing row by id.
func (s *Store) UpsertPost(ctx context.Context, p *Post) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	tags, images, err := marshalPostJSON(p)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, slug=excluded.slug, excerpt=excluded.excerpt,
			body_markdown=excluded.body_markdown, body_html=excluded.body_html,
			tags_json=excluded.tags_json, images_json=excluded.images_json,
			seo_title=excluded.seo_title, seo_description=excluded.seo_description,
			status=excluded.status, published_at=excluded.published_at,
			content_hash=excluded.content_hash, updated_at=excluded.updated_at`,
		p.ID, p.SiteID, p.Title, p.Slug, p.Excerpt, p.BodyMarkdown, p.BodyHTML,
		tags, images, p.SEOTitle, p.SEODescription, p.Status, p.PublishedAt,
		p.ContentHash, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetPost retrieves a post by id.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row.Scan)
}

// GetPostBySlug retrieves a post by its current slug within a site.
func (s *Store) GetPostBySlug(ctx context.Context, siteID, slug string) (*Post, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE site_id = ? AND slug = ?`, siteID, slug)
	return scanPost(row.Scan)
}

// PostQuery filters and paginates ListPosts. Cursor fields identify the
// last-seen (updated_at, id) pair; zero values mean "from the top".
type PostQuery struct {
	SiteID          string
	Status          string
	UpdatedSince    int64
	Limit           int
	CursorUpdatedAt int64
	CursorID        string
}

// ListPosts returns posts ordered by (updated_at DESC, id DESC), strictly
// after the cursor position. The feed relies on this ordering being stable
// under concurrent writes: an updated post moves to the top and is excluded
// from later pages by the cursor predicate.
func (s *Store) ListPosts(ctx context.Context, q PostQuery) ([]*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE site_id = ?`
	args := []any{q.SiteID}

	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, q.Status)
	}
	if q.UpdatedSince > 0 {
		query += ` AND updated_at > ?`
		args = append(args, q.UpdatedSince)
	}
	if q.CursorUpdatedAt > 0 {
		query += ` AND (updated_at < ? OR (updated_at = ? AND id < ?))`
		args = append(args, q.CursorUpdatedAt, q.CursorUpdatedAt, q.CursorID)
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// SiteSlugs returns every slug in use within a site: current post slugs
// plus historical ones. Deduplication must consider both, since old slugs
// stay reserved for redirects.
func (s *Store) SiteSlugs(ctx context.Context, siteID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT slug FROM posts WHERE site_id = ?
		UNION SELECT slug FROM slug_history WHERE site_id = ?`, siteID, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var sl string
		if err := rows.Scan(&sl); err != nil {
			return nil, err
		}
		slugs = append(slugs, sl)
	}
	return slugs, rows.Err()
}

// DeletePost removes a post (cascades to slug_history).
func (s *Store) DeletePost(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}

// MarkPostPublished flips a scheduled post to published. Returns false if
// the post is no longer in scheduled status (the guard makes the flip
// idempotent under racing processor instances).
func (s *Store) MarkPostPublished(ctx context.Context, id string, now int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE posts SET status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusPublished, now, now, id, StatusScheduled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// InsertSlugHistory appends a slug history entry.
func (s *Store) InsertSlugHistory(ctx context.Context, e *SlugHistoryEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO slug_history (id, site_id, post_id, slug, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.SiteID, e.PostID, e.Slug, e.CreatedAt)
	return err
}

// PostIDForHistoricalSlug resolves a slug that a site's post used in the
// past. Returns "", nil when the slug was never used.
func (s *Store) PostIDForHistoricalSlug(ctx context.Context, siteID, slug string) (string, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT post_id FROM slug_history WHERE site_id = ? AND slug = ?
		ORDER BY created_at DESC LIMIT 1`, siteID, slug)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// SlugHistory returns a post's previous slugs, oldest first.
func (s *Store) SlugHistory(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT slug FROM slug_history WHERE post_id = ? ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var sl string
		if err := rows.Scan(&sl); err != nil {
			return nil, err
		}
		slugs = append(slugs, sl)
	}
	return slugs, rows.Err()
}

func marshalPostJSON(p *Post) (tags, images string, err error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Images == nil {
		p.Images = []Image{}
	}
	t, err := json.Marshal(p.Tags)
	if err != nil {
		return "", "", fmt.Errorf("marshal tags: %w", err)
	}
	i, err := json.Marshal(p.Images)
	if err != nil {
		return "", "", fmt.Errorf("marshal images: %w", err)
	}
	return string(t), string(i), nil
}

func scanPost(scan func(dest ...any) error) (*Post, error) {
	var p Post
	var tagsJSON, imagesJSON string
	err := scan(
		&p.ID, &p.SiteID, &p.Title, &p.Slug, &p.Excerpt, &p.BodyMarkdown, &p.BodyHTML,
		&tagsJSON, &imagesJSON, &p.SEOTitle, &p.SEODescription, &p.Status, &p.PublishedAt,
		&p.ContentHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	return &p, nil
}
