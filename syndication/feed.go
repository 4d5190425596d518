package syndication

import (
	"context"
	"fmt"

	"github.com/inkwellhq/inkwell/syndication/internal/cursor"
	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

// FeedItem is one post in the sync feed, with its historical slugs so
// consumers can install redirects.
type FeedItem struct {
	*store.Post
	PreviousSlugs []string `json:"previous_slugs,omitempty"`
}

// FeedPage is one page of the sync feed.
type FeedPage struct {
	Items      []*FeedItem `json:"items"`
	NextCursor *string     `json:"next_cursor,omitempty"`
	LastSync   int64       `json:"last_sync"`
}

// FeedQuery selects a page of the sync feed.
type FeedQuery struct {
	SiteID       string
	Status       string // lifecycle filter; "" means published
	UpdatedSince int64  // UnixMilli; 0 means all
	Cursor       string // opaque token from a previous page
	Limit        int    // 0 means the configured default
}

// Feed returns posts ordered newest-first with cursor pagination, filtered
// to published posts unless the query names another status. An unparseable
// cursor is treated as absent rather than rejected so stale clients restart
// from the top instead of erroring.
func (s *Service) Feed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.config.FeedDefaultLimit
	}
	if limit > s.config.FeedMaxLimit {
		limit = s.config.FeedMaxLimit
	}
	status := q.Status
	if status == "" {
		status = store.StatusPublished
	}

	sq := store.PostQuery{
		SiteID:       q.SiteID,
		Status:       status,
		UpdatedSince: q.UpdatedSince,
		Limit:        limit + 1, // one extra row signals another page
	}
	if q.Cursor != "" {
		ts, id, err := cursor.Decode(q.Cursor)
		if err == nil {
			sq.CursorUpdatedAt = ts
			sq.CursorID = id
		} else {
			s.logger.Warn("feed: ignoring invalid cursor", "site_id", q.SiteID)
		}
	}

	posts, err := s.store.ListPosts(ctx, sq)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	page := &FeedPage{
		Items:    make([]*FeedItem, 0, len(posts)),
		LastSync: s.now().UnixMilli(),
	}
	if len(posts) > limit {
		posts = posts[:limit]
		last := posts[len(posts)-1]
		token := cursor.Encode(last.UpdatedAt, last.ID)
		page.NextCursor = &token
	}
	for _, p := range posts {
		slugs, err := s.store.SlugHistory(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("slug history for %s: %w", p.ID, err)
		}
		page.Items = append(page.Items, &FeedItem{Post: p, PreviousSlugs: slugs})
	}
	return page, nil
}

// FeedPost returns a single published post by slug, following slug history.
func (s *Service) FeedPost(ctx context.Context, siteID, postSlug string) (*FeedItem, error) {
	p, err := s.store.GetPostBySlug(ctx, siteID, postSlug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// The slug may have been renamed; resolve through history.
		id, err := s.store.PostIDForHistoricalSlug(ctx, siteID, postSlug)
		if err != nil {
			return nil, err
		}
		if id != "" {
			p, err = s.store.GetPost(ctx, id)
			if err != nil {
				return nil, err
			}
		}
	}
	if p == nil || p.Status != store.StatusPublished {
		return nil, ErrNotFound
	}
	slugs, err := s.store.SlugHistory(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("slug history for %s: %w", p.ID, err)
	}
	return &FeedItem{Post: p, PreviousSlugs: slugs}, nil
}
