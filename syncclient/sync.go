package syncclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Callbacks receive content changes detected during a sync. A nil callback
// is skipped. An error from any callback aborts the run before the state is
// persisted, so the change is retried on the next run.
type Callbacks struct {
	OnCreate   func(ctx context.Context, post *FeedPost) error
	OnUpdate   func(ctx context.Context, post *FeedPost) error
	OnDelete   func(ctx context.Context, postID string) error
	OnRedirect func(ctx context.Context, fromSlug, toSlug string) error
}

// Syncer pulls a site's feed into local state.
type Syncer struct {
	Client    *Client
	Store     StateStore
	Callbacks Callbacks

	// FullSyncInterval forces a full pass this long after the previous
	// one. Deletions are only detectable during a full pass. Default: 24h.
	FullSyncInterval time.Duration
	// PageSize is the per-request item limit. Default: 100.
	PageSize int
	Logger   *slog.Logger

	now func() time.Time
}

func (s *Syncer) defaults() {
	if s.FullSyncInterval <= 0 {
		s.FullSyncInterval = 24 * time.Hour
	}
	if s.PageSize <= 0 {
		s.PageSize = 100
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
}

// Run executes one sync cycle: an incremental pass over posts updated since
// the last run, plus a full reconciliation pass when the full-sync interval
// has elapsed. State is persisted only after the cycle succeeds end to end.
func (s *Syncer) Run(ctx context.Context) (*Stats, error) {
	s.defaults()
	start := s.now()

	state, err := s.Store.Load()
	if err != nil {
		return nil, err
	}

	full := state.LastFullSync == 0 ||
		s.now().Sub(time.UnixMilli(state.LastFullSync)) >= s.FullSyncInterval

	stats := &Stats{FullSync: full}
	updatedSince := state.LastSyncTime
	if full {
		updatedSince = 0
	}

	s.Logger.Info("sync: starting",
		"site_id", s.Client.SiteID, "full", full, "updated_since", updatedSince)

	seen := make(map[string]bool)
	var lastSync int64

	q := PageQuery{UpdatedSince: updatedSince, Limit: s.PageSize}
	if !full {
		// Condition the first page on the validator from the previous
		// incremental run; a quiet feed answers 304 with no body.
		q.ETag = state.FeedETag
	}
	for {
		res, err := s.Client.FetchPage(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("sync %s: %w", s.Client.SiteID, err)
		}
		if res.NotModified {
			s.Logger.Info("sync: feed unchanged", "site_id", s.Client.SiteID)
			stats.Duration = s.now().Sub(start)
			state.TotalSyncs++
			state.LastRun = stats
			if err := s.Store.Save(state); err != nil {
				return nil, fmt.Errorf("persist sync state: %w", err)
			}
			return stats, nil
		}
		if q.Cursor == "" && !full {
			state.FeedETag = res.ETag
		}
		q.ETag = ""
		page := res.Page
		if page.LastSync > lastSync {
			lastSync = page.LastSync
		}

		for _, post := range page.Items {
			seen[post.ID] = true
			stats.Checked++
			if err := s.apply(ctx, state, post, stats); err != nil {
				return nil, err
			}
		}

		if page.NextCursor == nil {
			break
		}
		q.Cursor = *page.NextCursor
	}

	if full {
		if err := s.reconcileDeletes(ctx, state, seen, stats); err != nil {
			return nil, err
		}
		state.LastFullSync = s.now().UnixMilli()
	}

	if lastSync > 0 {
		state.LastSyncTime = lastSync
	}
	state.TotalSyncs++
	stats.Duration = s.now().Sub(start)
	state.LastRun = stats

	if err := s.Store.Save(state); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}

	s.Logger.Info("sync: completed",
		"checked", stats.Checked, "created", stats.Created,
		"updated", stats.Updated, "skipped", stats.Skipped,
		"deleted", stats.Deleted, "redirects", stats.Redirects,
		"errors", len(stats.Errors), "duration", stats.Duration)
	return stats, nil
}

// apply compares one feed post against local state and fires the matching
// content callback; an identical fingerprint skips the content callbacks but
// still walks the post's historical slugs.
func (s *Syncer) apply(ctx context.Context, state *State, post *FeedPost, stats *Stats) error {
	prev, known := state.Hashes[post.ID]

	switch {
	case !known:
		if s.Callbacks.OnCreate != nil {
			if err := s.Callbacks.OnCreate(ctx, post); err != nil {
				return fmt.Errorf("create %s: %w", post.ID, err)
			}
		}
		stats.Created++
	case prev != post.ContentHash:
		if s.Callbacks.OnUpdate != nil {
			if err := s.Callbacks.OnUpdate(ctx, post); err != nil {
				return fmt.Errorf("update %s: %w", post.ID, err)
			}
		}
		stats.Updated++
	default:
		stats.Skipped++
	}

	// The redirect walk covers skipped posts too: a redirect that failed on
	// an earlier run must be re-attempted when the post next appears, even
	// though its content is unchanged. Redirect failures are recorded but do
	// not abort the run; a missed redirect is recoverable on the next full
	// pass, unlike a missed write.
	if s.Callbacks.OnRedirect != nil {
		for _, old := range post.PreviousSlugs {
			if old == post.Slug {
				continue
			}
			if err := s.Callbacks.OnRedirect(ctx, old, post.Slug); err != nil {
				stats.Errors = append(stats.Errors,
					fmt.Sprintf("redirect %s -> %s: %v", old, post.Slug, err))
				s.Logger.Warn("sync: redirect callback failed",
					"from", old, "to", post.Slug, "error", err)
				continue
			}
			stats.Redirects++
		}
	}

	state.Hashes[post.ID] = post.ContentHash
	return nil
}

// reconcileDeletes removes local posts the full pass did not encounter.
func (s *Syncer) reconcileDeletes(ctx context.Context, state *State, seen map[string]bool, stats *Stats) error {
	for id := range state.Hashes {
		if seen[id] {
			continue
		}
		if s.Callbacks.OnDelete != nil {
			if err := s.Callbacks.OnDelete(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		delete(state.Hashes, id)
		stats.Deleted++
	}
	return nil
}
