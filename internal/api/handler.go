// Package api is the HTTP surface: a handler struct owning the domain
// services, stdlib routing under /api/, and a uniform error-to-status
// mapping. No business rules live here.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/marqetfi/tradegate/configstore"
	"github.com/marqetfi/tradegate/deposit"
	"github.com/marqetfi/tradegate/price"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/provider/ostium"
	"github.com/marqetfi/tradegate/storage"
	"github.com/marqetfi/tradegate/trading"
	"github.com/marqetfi/tradegate/wallet"
)

const maxRequestBody = 1 << 20 // 1MB

// Store abstracts the bits of storage.Storage surfaced via the API.
type Store interface {
	GetAppConfigByID(ctx context.Context, id int64) (*storage.AppConfig, error)
	ListActiveAppConfigs(ctx context.Context, category string) ([]storage.AppConfig, error)
	GetProviderConfigByID(ctx context.Context, id int64) (*storage.ProviderConfig, error)
	ListProviderConfigs(ctx context.Context, providerName string) ([]storage.ProviderConfig, error)
	ListLogEntries(ctx context.Context, component string, limit int) ([]storage.LogEntry, error)
}

// AuthSource resolves the auth provider used to verify bearer tokens.
type AuthSource interface {
	Auth(ctx context.Context, name string) (provider.AuthProvider, error)
}

// Deps are the services the handler fronts.
type Deps struct {
	Store    Store
	Configs  *configstore.Service
	Admin    *configstore.AdminService
	Ostium   *ostium.SettingsService
	Trading  *trading.Service
	Prices   *price.Service
	Wallets  *wallet.Service
	Deposits *deposit.Service
}

// Handler owns the HTTP routes.
type Handler struct {
	deps   Deps
	auth   AuthSource
	logger *slog.Logger
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithAuth enables bearer-token verification on every route except /api/health.
func WithAuth(src AuthSource) Option {
	return func(h *Handler) { h.auth = src }
}

// NewHandler wires the HTTP layer.
func NewHandler(deps Deps, opts ...Option) *Handler {
	h := &Handler{deps: deps, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API mux. Mount it behind whatever middleware the caller
// wants.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.handleHealth)

	mux.HandleFunc("GET /api/configs", h.guard(h.handleResolvedConfigs))

	mux.HandleFunc("GET /api/admin/configs", h.guard(h.handleListConfigs))
	mux.HandleFunc("POST /api/admin/configs", h.guard(h.handleCreateConfig))
	mux.HandleFunc("GET /api/admin/configs/{id}", h.guard(h.handleGetConfig))
	mux.HandleFunc("PATCH /api/admin/configs/{id}", h.guard(h.handleUpdateConfig))

	mux.HandleFunc("GET /api/admin/providers", h.guard(h.handleListProviderConfigs))
	mux.HandleFunc("POST /api/admin/providers", h.guard(h.handleCreateProviderConfig))
	mux.HandleFunc("POST /api/admin/providers/{id}/activate", h.guard(h.handleActivateProviderConfig))

	mux.HandleFunc("GET /api/admin/logs", h.guard(h.handleListLogs))

	mux.HandleFunc("GET /api/admin/ostium/settings", h.guard(h.handleOstiumHistory))
	mux.HandleFunc("POST /api/admin/ostium/settings", h.guard(h.handleOstiumCreate))
	mux.HandleFunc("PATCH /api/admin/ostium/settings/{id}", h.guard(h.handleOstiumUpdate))
	mux.HandleFunc("POST /api/admin/ostium/settings/{id}/activate", h.guard(h.handleOstiumActivate))

	mux.HandleFunc("POST /api/trades", h.guard(h.handleOpenTrade))
	mux.HandleFunc("POST /api/positions/{id}/close", h.guard(h.handleCloseTrade))
	mux.HandleFunc("PATCH /api/positions/{id}/tpsl", h.guard(h.handleUpdateTPSL))
	mux.HandleFunc("DELETE /api/orders/{id}", h.guard(h.handleCancelOrder))
	mux.HandleFunc("GET /api/positions", h.guard(h.handlePositions))
	mux.HandleFunc("GET /api/pairs", h.guard(h.handlePairs))

	mux.HandleFunc("GET /api/prices", h.guard(h.handlePrices))
	mux.HandleFunc("GET /api/prices/{pair}", h.guard(h.handlePrice))

	mux.HandleFunc("POST /api/wallets", h.guard(h.handleCreateWallet))
	mux.HandleFunc("GET /api/wallets", h.guard(h.handleListWallets))
	mux.HandleFunc("GET /api/wallets/{id}", h.guard(h.handleGetWallet))
	mux.HandleFunc("POST /api/wallets/{id}/sign", h.guard(h.handleSignTransaction))
	mux.HandleFunc("DELETE /api/wallets/{id}", h.guard(h.handleDeactivateWallet))

	mux.HandleFunc("POST /api/deposits/quote", h.guard(h.handleDepositQuote))
	mux.HandleFunc("POST /api/deposits", h.guard(h.handleStartConversion))
	mux.HandleFunc("GET /api/deposits", h.guard(h.handleListConversions))
	mux.HandleFunc("GET /api/deposits/{id}", h.guard(h.handleGetConversion))

	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// guard enforces bearer auth when an AuthSource is configured.
func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	if h.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody("missing bearer token"))
			return
		}
		p, err := h.auth.Auth(r.Context(), "")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		identity, err := p.VerifyToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("invalid token"))
			return
		}
		next(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// errBadRequest wraps malformed client input that never reaches a service.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var unavailable *provider.UnavailableError
	var initErr *provider.InitError
	var vendorErr *provider.VendorError

	switch {
	case errors.Is(err, configstore.ErrNotFound),
		errors.Is(err, ostium.ErrSettingsNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, deposit.ErrNotFound),
		errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, trading.ErrValidation),
		errors.Is(err, ostium.ErrValidation),
		errors.Is(err, wallet.ErrValidation),
		errors.Is(err, deposit.ErrValidation),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, provider.ErrNoAuthProvider):
		status = http.StatusServiceUnavailable
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &initErr), errors.As(err, &vendorErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(err.Error()))
}
