// internal/common/auth/token.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"canary-speech-client/internal/common/config"
	"canary-speech-client/internal/common/errors"
	commonhttp "canary-speech-client/internal/common/http"
	"canary-speech-client/internal/common/logger"
)

const (
	tokenPath    = "/v3/auth/tokens/get"
	headerAPIKey = "Csc-Api-Key"

	// expirySkew renews a token slightly before the server would reject it.
	// Tokens living less than twice the skew renew at half their lifetime.
	expirySkew = 30 * time.Second
)

// Token is a bearer token issued by the token endpoint.
type Token struct {
	Value        string
	RefreshToken string
	// Expiry is zero when the token's claims could not be read.
	Expiry time.Time
	// IssuedAt is the local time the token was received.
	IssuedAt time.Time
}

// Expired reports whether the token should no longer be used at now.
// A token with an unknown expiry never expires for the life of the process,
// and neither does one whose expiry had already passed on the local clock
// when it was issued.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.Value == "" {
		return true
	}
	if t.Expiry.IsZero() {
		return false
	}
	skew := expirySkew
	if !t.IssuedAt.IsZero() {
		lifetime := t.Expiry.Sub(t.IssuedAt)
		if lifetime <= 0 {
			return false
		}
		skew = min(skew, lifetime/2)
	}
	return !now.Before(t.Expiry.Add(-skew))
}

// tokenResponse holds the response from the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenProvider exchanges the API key for a bearer token and caches it in memory.
type TokenProvider struct {
	baseURL    string
	creds      config.Credentials
	httpClient *commonhttp.Client
	logger     logger.Logger
	now        func() time.Time

	token *Token
}

// NewTokenProvider creates a provider for the given API base URL.
func NewTokenProvider(baseURL string, creds config.Credentials, httpClient *commonhttp.Client, log logger.Logger) *TokenProvider {
	return &TokenProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		creds:      creds,
		httpClient: httpClient,
		logger:     log.With(map[string]interface{}{"component": "token-provider"}),
		now:        time.Now,
	}
}

// ValidateAPIKey checks the CLIENT_ID:SECRET shape without any network call.
func ValidateAPIKey(creds config.Credentials) error {
	if creds.ClientID == "" || creds.Secret == "" {
		return errors.NewAuthenticationError("API key must have the form CLIENT_ID:SECRET", 0, nil)
	}
	if strings.ContainsAny(creds.ClientID, " \t\r\n") || strings.ContainsAny(creds.Secret, " \t\r\n") {
		return errors.NewAuthenticationError("API key must not contain whitespace", 0, nil)
	}
	return nil
}

// Token returns the cached bearer token, authenticating first if there is no
// usable token.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if !p.token.Expired(p.now()) {
		return p.token.Value, nil
	}
	if p.token != nil {
		p.logger.Info("access token expired, re-authenticating", map[string]interface{}{
			"expiredAt": p.token.Expiry,
		})
	}
	tok, err := p.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Authenticate performs the token exchange once. It never retries: a rejected
// key will be rejected again.
func (p *TokenProvider) Authenticate(ctx context.Context) (*Token, error) {
	if err := ValidateAPIKey(p.creds); err != nil {
		return nil, err
	}

	req, err := commonhttp.NewJSONRequest(ctx, http.MethodPost, p.baseURL+tokenPath, nil)
	if err != nil {
		return nil, errors.NewAuthenticationError("failed to build token request", 0, err)
	}
	req.Header.Set(headerAPIKey, p.creds.APIKey())

	resp, err := p.httpClient.Send(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewAuthenticationError(err.Error(), 0, err)
	}

	if !resp.OK() {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("token request rejected: %s", resp.Excerpt()), resp.StatusCode, nil)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, errors.NewAuthenticationError("failed to decode token response", resp.StatusCode, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.NewAuthenticationError("no access token received", resp.StatusCode, nil)
	}

	tok := &Token{
		Value:        tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		IssuedAt:     p.now(),
	}

	expiry, err := TokenExpiry(tokenResp.AccessToken)
	if err != nil {
		p.logger.Warn("access token expiry unknown", map[string]interface{}{
			"error": err.Error(),
		})
	}
	tok.Expiry = expiry
	if !expiry.IsZero() && !expiry.After(tok.IssuedAt) {
		p.logger.Warn("access token already expired by the local clock, using it for this run", map[string]interface{}{
			"expiresAt": expiry,
			"issuedAt":  tok.IssuedAt,
		})
	}
	p.token = tok

	p.logger.Info("authentication successful", map[string]interface{}{
		"expiresAt": expiry,
		"requestId": resp.RequestID,
	})
	return tok, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The token is only decoded for display and cache purposes; the API verifies it.
func TokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("decode access token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return exp.Time, nil
}
