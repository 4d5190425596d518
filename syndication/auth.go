package syndication

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

const keyPrefixLen = 11 // "ik_" plus eight hex characters

// CreateSiteKey mints a new API key for a site. The plaintext key is
// returned exactly once; only its bcrypt hash is stored.
func (s *Service) CreateSiteKey(ctx context.Context, siteID string) (string, error) {
	if siteID == "" {
		return "", fmt.Errorf("%w: site_id is required", ErrInvalidInput)
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	key := "ik_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}

	cred := &store.Credential{
		ID:        s.newID(),
		SiteID:    siteID,
		KeyHash:   string(hash),
		KeyPrefix: key[:keyPrefixLen],
		Active:    true,
	}
	if err := s.store.InsertCredential(ctx, cred); err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}
	s.logger.Info("auth: site key created", "site_id", siteID, "key_prefix", cred.KeyPrefix)
	return key, nil
}

// RotateSiteKey deactivates every existing key for the site and mints a
// replacement. In-flight requests with the old key fail from this point on.
func (s *Service) RotateSiteKey(ctx context.Context, siteID string) (string, error) {
	if err := s.store.DeactivateCredentials(ctx, siteID); err != nil {
		return "", fmt.Errorf("deactivate credentials: %w", err)
	}
	return s.CreateSiteKey(ctx, siteID)
}

// AuthorizeSite checks an API key against the site's active credentials.
func (s *Service) AuthorizeSite(ctx context.Context, siteID, key string) error {
	if key == "" {
		return ErrUnauthorized
	}
	creds, err := s.store.ActiveCredentials(ctx, siteID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	for _, c := range creds {
		if bcrypt.CompareHashAndPassword([]byte(c.KeyHash), []byte(key)) == nil {
			return nil
		}
	}
	return ErrUnauthorized
}
