// Package privy adapts Privy to the auth and wallet capabilities: ES256
// access-token verification against the app's verification key, and
// embedded-wallet creation and signing through the REST API.
package privy

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var (
	_ provider.AuthProvider   = (*Provider)(nil)
	_ provider.WalletProvider = (*Provider)(nil)
)

const apiURL = "https://auth.privy.io"

// Config carries the Privy app parameters.
type Config struct {
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	Environment string `json:"environment"`
	Timeout     int    `json:"timeout"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		AppID:       s.PrivyAppID,
		AppSecret:   s.PrivyAppSecret,
		Environment: s.PrivyEnvironment,
		Timeout:     s.PrivyTimeout,
	}
}

// Provider verifies Privy access tokens and manages embedded wallets.
type Provider struct {
	cfg             Config
	logger          *slog.Logger
	api             *httpx.Client
	verificationKey *ecdsa.PublicKey
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
func (p *Provider) Name() string { return "privy" }

// Initialize fetches the app's token verification key. This is the live
// handshake: a wrong app id or secret fails here, not on first use.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.AppID == "" {
		return errors.New("privy app_id is required")
	}
	if p.cfg.AppSecret == "" {
		return errors.New("privy app_secret is required")
	}

	basic := base64.StdEncoding.EncodeToString([]byte(p.cfg.AppID + ":" + p.cfg.AppSecret))
	p.api = httpx.New(apiURL,
		httpx.WithTimeout(time.Duration(p.cfg.Timeout)*time.Second),
		httpx.WithHeader("Authorization", "Basic "+basic),
		httpx.WithHeader("privy-app-id", p.cfg.AppID),
		httpx.WithLogger(p.logger))

	var app struct {
		VerificationKey string `json:"verification_key"`
	}
	if err := p.api.GetJSON(ctx, "/api/v1/apps/"+p.cfg.AppID, &app); err != nil {
		return fmt.Errorf("privy app lookup: %w", err)
	}

	key, err := jwt.ParseECPublicKeyFromPEM([]byte(app.VerificationKey))
	if err != nil {
		return fmt.Errorf("privy verification key: %w", err)
	}
	p.verificationKey = key

	p.logger.Info("privy provider ready",
		slog.String("app_id", p.cfg.AppID),
		slog.String("environment", p.cfg.Environment))
	return nil
}

// VerifyToken checks an access token against the app's verification key.
func (p *Provider) VerifyToken(ctx context.Context, tokenString string) (*provider.Identity, error) {
	if p.verificationKey == nil {
		return nil, errors.New("privy provider not initialized")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithIssuer("privy.io"),
		jwt.WithAudience(p.cfg.AppID),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return p.verificationKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("privy verify token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("privy: token is not valid")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("privy: token has no subject: %w", err)
	}
	email, _ := claims["email"].(string)
	return &provider.Identity{Subject: sub, Email: email, Claims: claims}, nil
}

// CreateWallet provisions an embedded wallet.
func (p *Provider) CreateWallet(ctx context.Context, network string) (*provider.WalletInfo, error) {
	var resp struct {
		ID      string `json:"id"`
		Address string `json:"address"`
	}
	err := p.api.PostJSON(ctx, "/api/v1/wallets", map[string]string{
		"chain_type": "ethereum",
		"network":    network,
	}, &resp)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "privy", Op: "create wallet", Err: err}
	}
	return &provider.WalletInfo{
		ProviderWalletID: resp.ID,
		Address:          resp.Address,
		Network:          network,
	}, nil
}

// SignTransaction signs calldata with an embedded wallet.
func (p *Provider) SignTransaction(ctx context.Context, providerWalletID, txData string) (string, error) {
	var resp struct {
		Data struct {
			Signature string `json:"signature"`
		} `json:"data"`
	}
	err := p.api.PostJSON(ctx, "/api/v1/wallets/"+providerWalletID+"/rpc", map[string]any{
		"method": "eth_signTransaction",
		"params": map[string]string{"transaction": txData},
	}, &resp)
	if err != nil {
		return "", &provider.VendorError{Vendor: "privy", Op: "sign transaction", Err: err}
	}
	return resp.Data.Signature, nil
}
