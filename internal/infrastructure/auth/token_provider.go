package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"purchases/internal/config"
)

// TokenEndpoint returns the Keycloak OIDC token URL for the configured realm.
func TokenEndpoint(cfg config.AuthConfig) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(cfg.ServerURL, "/"), cfg.Realm)
}

// TokenProvider caches a service access token obtained with the client
// credentials grant. Concurrent callers that need a new token share a single
// fetch.
type TokenProvider struct {
	oauth  *clientcredentials.Config
	client *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
	group singleflight.Group
}

func NewTokenProvider(cfg config.AuthConfig, timeout time.Duration, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{
		client: &http.Client{Timeout: timeout},
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     TokenEndpoint(cfg),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		logger: logger,
	}
}

// Token returns the cached token, fetching one when none is cached or the
// cached one has expired.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()

	if tok.Valid() {
		return tok.AccessToken, nil
	}
	return p.fetch(ctx, "token")
}

// Refresh replaces rejected, the token a downstream answered 401 to. When the
// cache already holds a different valid token another caller refreshed first,
// and that token is returned without a new fetch.
func (p *TokenProvider) Refresh(ctx context.Context, rejected string) (string, error) {
	p.mu.Lock()
	tok := p.token
	if tok.Valid() && tok.AccessToken != rejected {
		p.mu.Unlock()
		return tok.AccessToken, nil
	}
	p.token = nil
	p.mu.Unlock()

	return p.fetch(ctx, "refresh")
}

func (p *TokenProvider) fetch(ctx context.Context, reason string) (string, error) {
	v, err, _ := p.group.Do("token", func() (interface{}, error) {
		tok, err := p.oauth.Token(context.WithValue(ctx, oauth2.HTTPClient, p.client))
		if err != nil {
			return nil, fmt.Errorf("fetching service token: %w", err)
		}

		p.mu.Lock()
		p.token = tok
		p.mu.Unlock()

		p.logger.Debug("service token fetched", zap.String("reason", reason), zap.Time("expiry", tok.Expiry))
		return tok.AccessToken, nil
	})
	if err != nil {
		p.logger.Error("service token fetch failed", zap.String("reason", reason), zap.Error(err))
		return "", err
	}
	return v.(string), nil
}
