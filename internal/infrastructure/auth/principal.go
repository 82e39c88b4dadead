package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"purchases/internal/config"
	apperrors "purchases/internal/errors"
)

type Principal struct {
	Username string
	Subject  string
	Roles    []string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// Introspector validates bearer tokens against the OAuth2 token introspection
// endpoint of the identity provider.
type Introspector struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *http.Client
}

func NewIntrospector(cfg config.AuthConfig, timeout time.Duration) *Introspector {
	return &Introspector{
		endpoint:     TokenEndpoint(cfg) + "/introspect",
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
	}
}

type introspectionResponse struct {
	Active            bool   `json:"active"`
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Username          string `json:"username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (i *Introspector) Authenticate(r *http.Request) (*Principal, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, apperrors.NewUnauthorizedError("missing bearer token")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", i.clientID)
	form.Set("client_secret", i.clientSecret)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, i.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("identity provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDependencyUnavailableError("identity provider", fmt.Errorf("introspection returned status %d", resp.StatusCode))
	}

	var body introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding introspection response: %w", err)
	}
	if !body.Active {
		return nil, apperrors.NewUnauthorizedError("token is not active")
	}

	username := body.PreferredUsername
	if username == "" {
		username = body.Username
	}
	return &Principal{Username: username, Subject: body.Subject, Roles: body.RealmAccess.Roles}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}

// HeaderAuthenticator trusts the X-Username header. It is only wired when
// authentication is disabled for local development.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (*Principal, error) {
	username := strings.TrimSpace(r.Header.Get("X-Username"))
	if username == "" {
		return nil, apperrors.NewUnauthorizedError("missing X-Username header")
	}
	return &Principal{Username: username}, nil
}

type errorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Middleware rejects requests the authenticator cannot resolve to a principal
// and stores the principal in the request context otherwise.
func Middleware(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authn.Authenticate(r)
			if err != nil {
				status, code := http.StatusUnauthorized, "UNAUTHORIZED"
				message := err.Error()
				if _, ok := apperrors.IsUnauthorizedError(err); !ok {
					logger.Error("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
					status, code, message = http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "authentication service unavailable"
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(errorResponse{Status: status, Code: code, Message: message})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
