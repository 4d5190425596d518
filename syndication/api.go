package syndication

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

// RegisterRoutes mounts the sync feed and admin surface on r.
//
// Feed routes require a site API key via the Authorization header
// ("Bearer ik_..."). Admin routes are gated by the configured admin token;
// with no token configured they are served unauthenticated, which is only
// acceptable behind a trusted proxy.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/v1/sites/{siteID}", func(r chi.Router) {
		r.Use(s.requireSiteKey)
		r.Get("/posts", s.handleFeed)
		r.Get("/posts/{slug}", s.handleFeedPost)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/sites/{siteID}/keys", s.handleCreateKey)
		r.Post("/sites/{siteID}/keys/rotate", s.handleRotateKey)

		r.Post("/sites/{siteID}/posts", s.handleSavePost)
		r.Delete("/sites/{siteID}/posts/{postID}", s.handleDeletePost)
		r.Post("/sites/{siteID}/posts/{postID}/schedule", s.handleSchedulePost)
		r.Post("/sites/{siteID}/articles/{articleID}/schedule", s.handleScheduleArticle)

		r.Get("/sites/{siteID}/webhooks", s.handleListWebhooks)
		r.Post("/sites/{siteID}/webhooks", s.handleCreateWebhook)
		r.Put("/webhooks/{subID}", s.handleUpdateWebhook)
		r.Delete("/webhooks/{subID}", s.handleDeleteWebhook)
		r.Get("/webhooks/{subID}/deliveries", s.handleListDeliveries)
	})
}

func (s *Service) requireSiteKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siteID := chi.URLParam(r, "siteID")
		key := bearerToken(r)
		if err := s.AuthorizeSite(r.Context(), siteID, key); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				writeError(w, http.StatusForbidden, "invalid or missing API key")
				return
			}
			s.logger.Error("api: authorize failed", "site_id", siteID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminToken != "" {
			tok := bearerToken(r)
			if subtle.ConstantTimeCompare([]byte(tok), []byte(s.config.AdminToken)) != 1 {
				writeError(w, http.StatusForbidden, "invalid admin token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// --- Feed handlers ---

func (s *Service) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := FeedQuery{
		SiteID: chi.URLParam(r, "siteID"),
		Status: r.URL.Query().Get("status"),
		Cursor: r.URL.Query().Get("cursor"),
	}
	// Malformed numeric params degrade to defaults rather than erroring.
	if v := r.URL.Query().Get("updated_since"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil && ts > 0 {
			q.UpdatedSince = ts
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Limit = n
		}
	}

	page, err := s.Feed(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	// LastSync changes on every request so the validator covers only the
	// content-bearing fields.
	etag, err := etagFor(struct {
		Items      []*FeedItem `json:"items"`
		NextCursor *string     `json:"next_cursor,omitempty"`
	}{page.Items, page.NextCursor})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeConditionalJSON(w, r, http.StatusOK, page, etag)
}

func (s *Service) handleFeedPost(w http.ResponseWriter, r *http.Request) {
	item, err := s.FeedPost(r.Context(), chi.URLParam(r, "siteID"), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	etag, err := etagFor(item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeConditionalJSON(w, r, http.StatusOK, item, etag)
}

// --- Admin: credentials ---

func (s *Service) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.CreateSiteKey(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"api_key": key})
}

func (s *Service) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.RotateSiteKey(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}

// --- Admin: posts ---

func (s *Service) handleSavePost(w http.ResponseWriter, r *http.Request) {
	var p store.Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.SiteID = chi.URLParam(r, "siteID")
	if err := s.SavePost(r.Context(), &p); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (s *Service) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	err := s.DeletePost(r.Context(), chi.URLParam(r, "siteID"), chi.URLParam(r, "postID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	At int64 `json:"at"` // UnixMilli
}

func (req *scheduleRequest) time() (time.Time, error) {
	if req.At <= 0 {
		return time.Time{}, fmt.Errorf("%w: at must be a positive unix-milli timestamp", ErrInvalidInput)
	}
	return time.UnixMilli(req.At), nil
}

func (s *Service) handleSchedulePost(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	at, err := req.time()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := s.SchedulePost(r.Context(), chi.URLParam(r, "postID"), at); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Service) handleScheduleArticle(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	at, err := req.time()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	err = s.ScheduleArticle(r.Context(), chi.URLParam(r, "articleID"), chi.URLParam(r, "siteID"), at)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// --- Admin: webhooks ---

type webhookRequest struct {
	TargetURL string `json:"target_url"`
	Secret    string `json:"secret"`
	Active    *bool  `json:"active,omitempty"`
}

func (s *Service) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubscriptions(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Service) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub := &store.Subscription{
		SiteID:    chi.URLParam(r, "siteID"),
		TargetURL: req.TargetURL,
		Secret:    req.Secret,
		Active:    true,
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	if err := s.CreateSubscription(r.Context(), sub); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Service) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubscription(r.Context(), chi.URLParam(r, "subID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TargetURL != "" {
		sub.TargetURL = req.TargetURL
	}
	if req.Secret != "" {
		sub.Secret = req.Secret
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	if err := s.store.UpdateSubscription(r.Context(), sub); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Service) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSubscription(r.Context(), chi.URLParam(r, "subID")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	attempts, err := s.store.ListDeliveries(r.Context(), chi.URLParam(r, "subID"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// --- Response helpers ---

func (s *Service) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("api: request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// etagFor derives a strong validator from the serialized form of v.
func etagFor(v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

// writeConditionalJSON sets the ETag and answers If-None-Match with an
// empty 304.
func writeConditionalJSON(w http.ResponseWriter, r *http.Request, status int, v any, etag string) {
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, status, v)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
