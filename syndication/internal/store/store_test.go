package store_test

import (
	"context"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/inkwellhq/inkwell/dbopen"
	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatal(err)
	}
	return store.NewStore(db)
}

func mustUpsert(t *testing.T, st *store.Store, p *store.Post) {
	t.Helper()
	if err := st.UpsertPost(context.Background(), p); err != nil {
		t.Fatal(err)
	}
}

func TestApplySchemaIdempotent(t *testing.T) {
	db := dbopen.OpenMemory(t)
	for i := 0; i < 3; i++ {
		if err := store.ApplySchema(db); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
}

func TestPostRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	p := &store.Post{
		ID:           "post_1",
		SiteID:       "site_a",
		Title:        "Hello World",
		Slug:         "hello-world",
		BodyMarkdown: "# Hello",
		BodyHTML:     "<h1>Hello</h1>",
		Tags:         []string{"go", "sqlite"},
		Images:       []store.Image{{URL: "https://img.example/1.png", Alt: "one"}},
		Status:       store.StatusPublished,
		ContentHash:  "abc",
		UpdatedAt:    1000,
	}
	mustUpsert(t, st, p)

	got, err := st.GetPost(ctx, "post_1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a post")
	}
	if got.Slug != "hello-world" || got.ContentHash != "abc" {
		t.Fatalf("got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Fatalf("tags not preserved: %v", got.Tags)
	}
	if len(got.Images) != 1 || got.Images[0].Alt != "one" {
		t.Fatalf("images not preserved: %v", got.Images)
	}

	// Upsert by id replaces content.
	p.Title = "Hello Again"
	mustUpsert(t, st, p)
	got, err = st.GetPost(ctx, "post_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Hello Again" {
		t.Fatalf("got title %q, want Hello Again", got.Title)
	}
}

func TestGetPostMissing(t *testing.T) {
	st := openStore(t)
	got, err := st.GetPost(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSlugUniquePerSite(t *testing.T) {
	// WHAT: the same slug on the same site is rejected but allowed across sites.
	// WHY: slugs are URLs; collisions within a site would shadow content.
	st := openStore(t)

	mustUpsert(t, st, &store.Post{ID: "p1", SiteID: "a", Title: "t", Slug: "dup", Status: store.StatusDraft, UpdatedAt: 1})
	err := st.UpsertPost(context.Background(), &store.Post{ID: "p2", SiteID: "a", Title: "t", Slug: "dup", Status: store.StatusDraft, UpdatedAt: 2})
	if err == nil {
		t.Fatal("expected unique-constraint error")
	}
	mustUpsert(t, st, &store.Post{ID: "p3", SiteID: "b", Title: "t", Slug: "dup", Status: store.StatusDraft, UpdatedAt: 3})
}

func TestListPostsCursorPagination(t *testing.T) {
	// WHAT: walking the feed with the cursor visits all published posts
	// exactly once in (updated_at DESC, id DESC) order.
	// WHY: consumers rely on the cursor never skipping or repeating items.
	st := openStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		mustUpsert(t, st, &store.Post{
			ID:        fmt.Sprintf("p%02d", i),
			SiteID:    "site_a",
			Title:     "t",
			Slug:      fmt.Sprintf("s%02d", i),
			Status:    store.StatusPublished,
			UpdatedAt: int64(1000 + i),
		})
	}
	// A draft must never appear in the published feed.
	mustUpsert(t, st, &store.Post{ID: "draft", SiteID: "site_a", Title: "t", Slug: "draft", Status: store.StatusDraft, UpdatedAt: 5000})

	seen := map[string]bool{}
	q := store.PostQuery{SiteID: "site_a", Status: store.StatusPublished, Limit: 10}
	var prevTS int64 = 1 << 62
	prevID := "\xff"
	for {
		posts, err := st.ListPosts(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) == 0 {
			break
		}
		for _, p := range posts {
			if seen[p.ID] {
				t.Fatalf("post %s returned twice", p.ID)
			}
			seen[p.ID] = true
			if p.UpdatedAt > prevTS || (p.UpdatedAt == prevTS && p.ID > prevID) {
				t.Fatalf("ordering violated at %s", p.ID)
			}
			prevTS, prevID = p.UpdatedAt, p.ID
		}
		last := posts[len(posts)-1]
		q.CursorUpdatedAt = last.UpdatedAt
		q.CursorID = last.ID
	}
	if len(seen) != 25 {
		t.Fatalf("got %d posts, want 25", len(seen))
	}
	if seen["draft"] {
		t.Fatal("draft leaked into published listing")
	}
}

func TestListPostsUpdatedSince(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	mustUpsert(t, st, &store.Post{ID: "old", SiteID: "a", Title: "t", Slug: "old", Status: store.StatusPublished, UpdatedAt: 100})
	mustUpsert(t, st, &store.Post{ID: "new", SiteID: "a", Title: "t", Slug: "new", Status: store.StatusPublished, UpdatedAt: 200})

	posts, err := st.ListPosts(ctx, store.PostQuery{SiteID: "a", Status: store.StatusPublished, UpdatedSince: 150, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].ID != "new" {
		t.Fatalf("got %d posts, want just the new one", len(posts))
	}
}

func TestMarkPostPublishedGuard(t *testing.T) {
	// WHAT: MarkPostPublished flips only scheduled posts and reports whether
	// it did.
	// WHY: an editor reverting a post to draft must cancel pending publication.
	st := openStore(t)
	ctx := context.Background()

	mustUpsert(t, st, &store.Post{ID: "p1", SiteID: "a", Title: "t", Slug: "s1", Status: store.StatusScheduled, UpdatedAt: 1})
	flipped, err := st.MarkPostPublished(ctx, "p1", 2000)
	if err != nil {
		t.Fatal(err)
	}
	if !flipped {
		t.Fatal("expected flip")
	}
	got, _ := st.GetPost(ctx, "p1")
	if got.Status != store.StatusPublished {
		t.Fatalf("got status %q, want published", got.Status)
	}
	if got.PublishedAt == nil || *got.PublishedAt != 2000 {
		t.Fatalf("published_at not set: %v", got.PublishedAt)
	}

	// Second flip is a no-op.
	flipped, err = st.MarkPostPublished(ctx, "p1", 3000)
	if err != nil {
		t.Fatal(err)
	}
	if flipped {
		t.Fatal("expected no-op on already-published post")
	}

	mustUpsert(t, st, &store.Post{ID: "p2", SiteID: "a", Title: "t", Slug: "s2", Status: store.StatusDraft, UpdatedAt: 1})
	flipped, err = st.MarkPostPublished(ctx, "p2", 2000)
	if err != nil {
		t.Fatal(err)
	}
	if flipped {
		t.Fatal("draft must not be force-published")
	}
}

func TestSlugHistoryAndSiteSlugs(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	mustUpsert(t, st, &store.Post{ID: "p1", SiteID: "a", Title: "t", Slug: "current", Status: store.StatusPublished, UpdatedAt: 1})
	if err := st.InsertSlugHistory(ctx, &store.SlugHistoryEntry{ID: "h1", SiteID: "a", PostID: "p1", Slug: "former", CreatedAt: 10}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertSlugHistory(ctx, &store.SlugHistoryEntry{ID: "h2", SiteID: "a", PostID: "p1", Slug: "ancient", CreatedAt: 5}); err != nil {
		t.Fatal(err)
	}

	slugs, err := st.SlugHistory(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 2 || slugs[0] != "ancient" || slugs[1] != "former" {
		t.Fatalf("got %v, want oldest first", slugs)
	}

	// SiteSlugs covers current AND historical slugs: history entries still
	// occupy the namespace so a new post cannot steal a redirecting slug.
	all, err := st.SiteSlugs(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"current": true, "former": true, "ancient": true}
	if len(all) != len(want) {
		t.Fatalf("got %v", all)
	}
	for _, sl := range all {
		if !want[sl] {
			t.Fatalf("unexpected slug %q", sl)
		}
	}

	id, err := st.PostIDForHistoricalSlug(ctx, "a", "former")
	if err != nil {
		t.Fatal(err)
	}
	if id != "p1" {
		t.Fatalf("got %q, want p1", id)
	}
	id, err = st.PostIDForHistoricalSlug(ctx, "a", "never-used")
	if err != nil {
		t.Fatal(err)
	}
	if id != "" {
		t.Fatalf("got %q, want empty", id)
	}
}

func TestDeletePostCascadesHistory(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	mustUpsert(t, st, &store.Post{ID: "p1", SiteID: "a", Title: "t", Slug: "s", Status: store.StatusPublished, UpdatedAt: 1})
	if err := st.InsertSlugHistory(ctx, &store.SlugHistoryEntry{ID: "h1", SiteID: "a", PostID: "p1", Slug: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := st.DeletePost(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	slugs, err := st.SlugHistory(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 0 {
		t.Fatalf("history survived delete: %v", slugs)
	}
}

func TestJobLifecycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	payload, err := store.EncodePayload(store.PublishPostPayload{PostID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	job := &store.Job{ID: "j1", JobType: store.JobPublishScheduledPost, Payload: payload, ScheduledFor: 100}
	if err := st.InsertJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.MaxAttempts != 5 {
		t.Fatalf("got max_attempts %d, want default 5", job.MaxAttempts)
	}

	// Not due yet.
	due, err := st.DueJobs(ctx, store.JobPublishScheduledPost, 50, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("job due early: %v", due)
	}

	due, err = st.DueJobs(ctx, store.JobPublishScheduledPost, 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due jobs, want 1", len(due))
	}

	var decoded store.PublishPostPayload
	if err := store.DecodePayload(due[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.PostID != "p1" {
		t.Fatalf("got %q, want p1", decoded.PostID)
	}

	claimed, err := st.ClaimAttempt(ctx, "j1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed")
	}
	// Stale claim with the old attempt count loses.
	claimed, err = st.ClaimAttempt(ctx, "j1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Fatal("stale claim must fail")
	}

	if err := st.CompleteJob(ctx, "j1", "", 500); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil || *got.CompletedAt != 500 {
		t.Fatalf("not completed: %+v", got)
	}
	if got.Attempts != 1 {
		t.Fatalf("got attempts %d, want 1", got.Attempts)
	}

	// Completed jobs never come back as due and reject further claims.
	due, err = st.DueJobs(ctx, store.JobPublishScheduledPost, 1<<60, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatal("completed job still due")
	}
	claimed, err = st.ClaimAttempt(ctx, "j1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Fatal("claim on completed job must fail")
	}
}

func TestRescheduleJob(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if err := st.InsertJob(ctx, &store.Job{ID: "j1", JobType: store.JobWebhookDelivery, ScheduledFor: 100}); err != nil {
		t.Fatal(err)
	}
	if err := st.RescheduleJob(ctx, "j1", 900, "connection refused"); err != nil {
		t.Fatal(err)
	}

	due, err := st.DueJobs(ctx, store.JobWebhookDelivery, 500, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatal("rescheduled job still due at old time")
	}
	got, err := st.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduledFor != 900 || got.LastError != "connection refused" {
		t.Fatalf("got %+v", got)
	}
}

func TestSubscriptionsAndDeliveries(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	sub := &store.Subscription{ID: "sub_1", SiteID: "a", TargetURL: "https://consumer.example/hooks", Secret: "shh", Active: true}
	if err := st.InsertSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	inactive := &store.Subscription{ID: "sub_2", SiteID: "a", TargetURL: "https://other.example", Secret: "shh2", Active: false}
	if err := st.InsertSubscription(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	active, err := st.ActiveSubscriptions(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "sub_1" {
		t.Fatalf("got %d active subs", len(active))
	}
	all, err := st.ListSubscriptions(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d subs, want 2", len(all))
	}

	sub.Active = false
	if err := st.UpdateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	active, err = st.ActiveSubscriptions(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatal("deactivated sub still active")
	}

	code := 503
	for i := 1; i <= 3; i++ {
		err := st.InsertDelivery(ctx, &store.DeliveryAttempt{
			ID:             fmt.Sprintf("dlv_%d", i),
			SubscriptionID: "sub_1",
			PostID:         "p1",
			Event:          "post.published",
			Attempt:        i,
			StatusCode:     &code,
			ErrorMessage:   "subscriber returned 503",
			DeliveredAt:    int64(i * 100),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	attempts, err := st.ListDeliveries(ctx, "sub_1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("limit ignored: got %d", len(attempts))
	}
	// Newest first.
	if attempts[0].Attempt != 3 {
		t.Fatalf("got attempt %d first, want 3", attempts[0].Attempt)
	}
}

func TestCredentials(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if err := st.InsertCredential(ctx, &store.Credential{ID: "c1", SiteID: "a", KeyHash: "h1", KeyPrefix: "ik_aaaa", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertCredential(ctx, &store.Credential{ID: "c2", SiteID: "a", KeyHash: "h2", KeyPrefix: "ik_bbbb", Active: true}); err != nil {
		t.Fatal(err)
	}

	creds, err := st.ActiveCredentials(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 2 {
		t.Fatalf("got %d creds, want 2", len(creds))
	}

	if err := st.DeactivateCredentials(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	creds, err = st.ActiveCredentials(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 0 {
		t.Fatal("credentials survived rotation")
	}
}
