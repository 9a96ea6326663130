// Package dynamic adapts Dynamic's embedded wallets to the wallet
// capability.
package dynamic

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marqetfi/tradegate/internal/httpx"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/settings"
)

var _ provider.WalletProvider = (*Provider)(nil)

// Config carries the Dynamic environment parameters.
type Config struct {
	APIURL      string `json:"api_url"`
	APIKey      string `json:"api_key"`
	Environment string `json:"environment"`
	Timeout     int    `json:"timeout"`
}

// ConfigFromSettings builds a Config from the process settings bag.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		APIURL:      s.DynamicAPIURL,
		APIKey:      s.DynamicAPIKey,
		Environment: s.DynamicEnvironment,
		Timeout:     s.DynamicTimeout,
	}
}

// Provider manages Dynamic embedded wallets.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	api    *httpx.Client
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
func (p *Provider) Name() string { return "dynamic" }

// Initialize validates credentials.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return errors.New("dynamic api_key is required")
	}
	if p.cfg.APIURL == "" {
		return errors.New("dynamic api_url is required")
	}

	p.api = httpx.New(p.cfg.APIURL,
		httpx.WithTimeout(time.Duration(p.cfg.Timeout)*time.Second),
		httpx.WithHeader("Authorization", "Bearer "+p.cfg.APIKey),
		httpx.WithLogger(p.logger))

	p.logger.Info("dynamic provider ready", slog.String("environment", p.cfg.Environment))
	return nil
}

// CreateWallet provisions an embedded wallet in the configured environment.
func (p *Provider) CreateWallet(ctx context.Context, network string) (*provider.WalletInfo, error) {
	var resp struct {
		ID      string `json:"id"`
		Address string `json:"publicKey"`
	}
	err := p.api.PostJSON(ctx, "/api/v0/environments/"+p.cfg.Environment+"/embeddedWallets", map[string]string{
		"chain":   "EVM",
		"network": network,
	}, &resp)
	if err != nil {
		return nil, &provider.VendorError{Vendor: "dynamic", Op: "create wallet", Err: err}
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
		Signature string `json:"signature"`
	}
	err := p.api.PostJSON(ctx, "/api/v0/embeddedWallets/"+providerWalletID+"/sign", map[string]string{
		"transaction": txData,
	}, &resp)
	if err != nil {
		return "", &provider.VendorError{Vendor: "dynamic", Op: "sign transaction", Err: err}
	}
	return resp.Signature, nil
}
