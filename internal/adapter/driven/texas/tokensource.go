// Package texas obtains client-credentials tokens from a token exchange
// sidecar, which brokers them from the identity provider.
package texas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ oauth2.TokenSource = (*TokenSource)(nil)

const identityProvider = "azuread"

// TokenSource fetches a fresh token on every call. Wrap it with
// oauth2.ReuseTokenSource to cache tokens until they expire.
type TokenSource struct {
	endpoint   string
	target     string
	httpClient *http.Client
	now        func() time.Time
}

// NewTokenSource creates a TokenSource that requests tokens for target from
// endpoint. A nil httpClient uses a client with a 10 second timeout.
func NewTokenSource(endpoint, target string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		endpoint:   endpoint,
		target:     target,
		httpClient: httpClient,
		now:        time.Now,
	}
}

type tokenRequest struct {
	IdentityProvider string `json:"identity_provider"`
	Target           string `json:"target"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext requests a token, honoring ctx.
func (s *TokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	body, err := json.Marshal(tokenRequest{IdentityProvider: identityProvider, Target: s.target})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", driven.ErrUnauthorized, err)
		}
		return nil, err
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned an empty access token", driven.ErrUnauthorized)
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// CheckCredentials verifies that a token can be obtained.
func (s *TokenSource) CheckCredentials(ctx context.Context) error {
	if _, err := s.TokenContext(ctx); err != nil {
		return fmt.Errorf("token preflight: %w", err)
	}
	return nil
}
