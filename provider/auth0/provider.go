// Package auth0 adapts Auth0 to the auth capability: HS256 access-token
// verification plus a management API token fetched at startup.
package auth0

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var _ provider.AuthProvider = (*Provider)(nil)

// Config carries the Auth0 tenant parameters.
type Config struct {
	Domain                 string `json:"domain"`
	Audience               string `json:"audience"`
	ClientID               string `json:"client_id"`
	ClientSecret           string `json:"client_secret"`
	ManagementClientID     string `json:"management_client_id"`
	ManagementClientSecret string `json:"management_client_secret"`
	Algorithm              string `json:"algorithm"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		Domain:                 s.Auth0Domain,
		Audience:               s.Auth0Audience,
		ClientID:               s.Auth0ClientID,
		ClientSecret:           s.Auth0ClientSecret,
		ManagementClientID:     s.Auth0ManagementClientID,
		ManagementClientSecret: s.Auth0ManagementClientSecret,
		Algorithm:              s.Auth0Algorithm,
	}
}

// Provider verifies Auth0-issued access tokens.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	api    *httpx.Client

	mu              sync.Mutex
	managementToken string
	tokenExpiry     time.Time
}

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New builds an uninitialized provider.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements provider.Base.
func (p *Provider) Name() string { return "auth0" }

// Initialize validates the tenant configuration and, when management
// credentials are present, performs the live client-credentials handshake.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.Domain == "" {
		return errors.New("auth0 domain is required")
	}
	if p.cfg.ClientSecret == "" {
		return errors.New("auth0 client_secret is required")
	}
	if p.cfg.Algorithm != "" && p.cfg.Algorithm != "HS256" {
		return fmt.Errorf("auth0 algorithm %q is not supported, only HS256", p.cfg.Algorithm)
	}

	p.api = httpx.New("https://"+p.cfg.Domain, httpx.WithLogger(p.logger))

	if p.cfg.ManagementClientID != "" {
		if err := p.fetchManagementToken(ctx); err != nil {
			return err
		}
	}

	p.logger.Info("auth0 provider ready", slog.String("domain", p.cfg.Domain))
	return nil
}

func (p *Provider) fetchManagementToken(ctx context.Context) error {
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := p.api.PostJSON(ctx, "/oauth/token", map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     p.cfg.ManagementClientID,
		"client_secret": p.cfg.ManagementClientSecret,
		"audience":      "https://" + p.cfg.Domain + "/api/v2/",
	}, &resp)
	if err != nil {
		return fmt.Errorf("auth0 management token: %w", err)
	}

	p.mu.Lock()
	p.managementToken = resp.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	p.mu.Unlock()
	return nil
}

// VerifyToken checks the signature, issuer, and audience of an access token
// and returns its subject.
func (p *Provider) VerifyToken(ctx context.Context, tokenString string) (*provider.Identity, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("https://"+p.cfg.Domain+"/"),
		jwt.WithAudience(p.cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(p.cfg.ClientSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth0 verify token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth0: token is not valid")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("auth0: token has no subject: %w", err)
	}

	email, _ := claims["email"].(string)
	return &provider.Identity{
		Subject: sub,
		Email:   email,
		Claims:  claims,
	}, nil
}

// ManagementToken returns the cached management API token.
func (p *Provider) ManagementToken() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.managementToken == "" || time.Now().After(p.tokenExpiry) {
		return "", false
	}
	return p.managementToken, true
}
