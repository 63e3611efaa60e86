package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emissiontracker/emissiontracker/internal/provider/resilience"
)

// DefaultSkew is how long before expiry a token is renewed.
const DefaultSkew = 30 * time.Second

// RefreshingSourceConfig holds configuration for a RefreshingSource.
type RefreshingSourceConfig struct {
	// TokenURL is the authorization server's token endpoint.
	TokenURL string

	// ClientID is the public OAuth2 client id.
	ClientID string

	// Scopes are requested again on refresh.
	Scopes []string

	// Skew renews tokens that expire within this window.
	// Default: DefaultSkew
	Skew time.Duration

	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// RefreshingSource returns the current access token and renews it with the
// refresh-token grant when it is about to expire or was rejected.
// It is safe for concurrent use.
type RefreshingSource struct {
	mu         sync.Mutex
	info       TokenInfo
	tokenURL   string
	clientID   string
	scopes     []string
	skew       time.Duration
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRefreshingSource creates a token source starting from initial.
func NewRefreshingSource(cfg RefreshingSourceConfig, initial TokenInfo) *RefreshingSource {
	if cfg.Skew == 0 {
		cfg.Skew = DefaultSkew
	}
	if cfg.HTTPClient == nil {
		rc := resilience.DefaultClientConfig("token-endpoint")
		rc.Logger = cfg.Logger
		cfg.HTTPClient = resilience.NewClient(rc)
	}

	return &RefreshingSource{
		info:       initial,
		tokenURL:   cfg.TokenURL,
		clientID:   cfg.ClientID,
		scopes:     cfg.Scopes,
		skew:       cfg.Skew,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.With().Str("component", "token_source").Logger(),
		now:        time.Now,
	}
}

// Token returns the access token, renewing it first when it expires within
// the skew window. An expiring token without a refresh token is returned
// as-is and left for the server to judge.
func (s *RefreshingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiring := s.info.AccessToken == "" || s.info.ExpiresWithin(s.now(), s.skew)
	if expiring && s.info.RefreshToken != "" {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	if s.info.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return s.info.AccessToken, nil
}

// Refresh renews the access token unconditionally.
func (s *RefreshingSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// Current returns a copy of the held token.
func (s *RefreshingSource) Current() TokenInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// tokenResponse is the token endpoint's response body (RFC 6749 section 5.1).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// errorResponse is the token endpoint's error body (RFC 6749 section 5.2).
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (s *RefreshingSource) refreshLocked(ctx context.Context) error {
	if s.info.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.info.RefreshToken)
	form.Set("client_id", s.clientID)
	if len(s.scopes) > 0 {
		form.Set("scope", strings.Join(s.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrRefreshFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			s.logger.Warn().
				Int("status", resp.StatusCode).
				Str("error", e.Error).
				Msg("token refresh rejected")
			return fmt.Errorf("%w: %s: %s", ErrRefreshFailed, e.Error, e.ErrorDescription)
		}
		return fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRefreshFailed, err)
	}
	if tr.AccessToken == "" {
		return fmt.Errorf("%w: response carries no access token", ErrRefreshFailed)
	}

	next := TokenInfo{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
		RefreshToken: tr.RefreshToken,
		Scope:        tr.Scope,
		IDToken:      tr.IDToken,
		IssuedAt:     s.now().Unix(),
	}
	// Servers that do not rotate refresh tokens omit them
	if next.RefreshToken == "" {
		next.RefreshToken = s.info.RefreshToken
	}
	s.info = next

	s.logger.Debug().
		Time("expires_at", next.ExpiresAt()).
		Msg("access token refreshed")

	return nil
}

var _ Source = (*RefreshingSource)(nil)
