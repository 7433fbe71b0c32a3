package auth

import (
	"context"
	"errors"
	"time"

	"github.com/joestump/bmrk/internal/metrics"
)

// ErrInvalidRefreshToken is returned when a refresh token is unknown, revoked,
// expired, or is actually an access token.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// SessionTokens is an issued access/refresh token pair.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Issuer mints and rotates session token pairs.
type Issuer struct {
	tokens     TokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer. Access tokens live for accessTTL and refresh
// tokens for refreshTTL.
func NewIssuer(ts TokenStore, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{tokens: ts, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue creates a fresh token pair for userID.
func (i *Issuer) Issue(ctx context.Context, userID string) (*SessionTokens, error) {
	now := i.now().UTC()

	access, accessHash, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	accessExp := now.Add(i.accessTTL)
	if _, err := i.tokens.Create(ctx, userID, AccessTokenName, accessHash, &accessExp); err != nil {
		return nil, err
	}

	refresh, refreshHash, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	refreshExp := now.Add(i.refreshTTL)
	if _, err := i.tokens.Create(ctx, userID, RefreshTokenName, refreshHash, &refreshExp); err != nil {
		return nil, err
	}

	metrics.SessionsIssuedTotal.Inc()
	return &SessionTokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked; it cannot be replayed.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (*SessionTokens, string, error) {
	rec, err := i.tokens.GetByHash(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, "", ErrInvalidRefreshToken
	}
	if rec.Name != RefreshTokenName || !rec.Usable(i.now()) {
		return nil, "", ErrInvalidRefreshToken
	}
	if err := i.tokens.Revoke(ctx, rec.ID, rec.UserID); err != nil {
		return nil, "", err
	}

	tokens, err := i.Issue(ctx, rec.UserID)
	if err != nil {
		return nil, "", err
	}
	return tokens, rec.UserID, nil
}

// Revoke ends a session: the access token record and, when given, the
// matching refresh token owned by the same user.
func (i *Issuer) Revoke(ctx context.Context, access *TokenRecord, refreshToken string) error {
	if err := i.tokens.Revoke(ctx, access.ID, access.UserID); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	rec, err := i.tokens.GetByHash(ctx, HashToken(refreshToken))
	if err != nil || rec.UserID != access.UserID || rec.Name != RefreshTokenName {
		return nil
	}
	return i.tokens.Revoke(ctx, rec.ID, rec.UserID)
}
