package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/marqetfi/tradegate/configstore"
	"github.com/marqetfi/tradegate/provider/ostium"
	"github.com/marqetfi/tradegate/storage"
)

// handleResolvedConfigs returns decrypted, type-coerced values the way the
// rest of the application consumes them.
func (h *Handler) handleResolvedConfigs(w http.ResponseWriter, r *http.Request) {
	values, err := h.deps.Configs.GetAllAppConfigs(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (h *Handler) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	reveal := r.URL.Query().Get("reveal") == "true"

	rows, err := h.deps.Store.ListActiveAppConfigs(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		view, err := h.deps.Admin.ConfigView(row, reveal)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

type createConfigRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsEncrypted bool   `json:"is_encrypted"`
	IsActive    bool   `json:"is_active"`
	CreatedBy   int64  `json:"created_by"`
}

func (h *Handler) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req createConfigRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Key == "" {
		h.writeError(w, r, badRequest("key is required"))
		return
	}

	created, err := h.deps.Admin.CreateAppConfig(r.Context(), storage.AppConfigInput{
		Key:         req.Key,
		Value:       req.Value,
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
		IsEncrypted: req.IsEncrypted,
		IsActive:    req.IsActive,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.deps.Admin.ConfigView(created, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	row, err := h.deps.Store.GetAppConfigByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if row == nil {
		h.writeError(w, r, fmt.Errorf("%w: config %d", configstore.ErrNotFound, id))
		return
	}

	view, err := h.deps.Admin.ConfigView(*row, r.URL.Query().Get("reveal") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateConfigRequest struct {
	Value       *string `json:"value"`
	Type        *string `json:"type"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	IsEncrypted *bool   `json:"is_encrypted"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateConfigRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.deps.Admin.UpdateAppConfig(r.Context(), id, storage.AppConfigUpdate{
		Value:       req.Value,
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
		IsEncrypted: req.IsEncrypted,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.deps.Admin.ConfigView(updated, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleListProviderConfigs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.ListProviderConfigs(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		views = append(views, h.deps.Admin.ProviderConfigView(row))
	}
	writeJSON(w, http.StatusOK, views)
}

type createProviderConfigRequest struct {
	ProviderName string          `json:"provider_name"`
	ProviderType string          `json:"provider_type"`
	Config       json.RawMessage `json:"config"`
	Activate     bool            `json:"activate"`
	CreatedBy    int64           `json:"created_by"`
}

func (h *Handler) handleCreateProviderConfig(w http.ResponseWriter, r *http.Request) {
	var req createProviderConfigRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProviderName == "" || req.ProviderType == "" {
		h.writeError(w, r, badRequest("provider_name and provider_type are required"))
		return
	}

	created, err := h.deps.Admin.CreateProviderConfig(r.Context(), storage.ProviderConfigInput{
		ProviderName: req.ProviderName,
		ProviderType: req.ProviderType,
		ConfigData:   req.Config,
		CreatedBy:    req.CreatedBy,
	}, req.Activate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.deps.Admin.ProviderConfigView(created))
}

func (h *Handler) handleActivateProviderConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	activated, err := h.deps.Admin.ActivateProviderConfig(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Admin.ProviderConfigView(activated))
}

func (h *Handler) handleOstiumHistory(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	rows, err := h.deps.Ostium.History(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		views = append(views, ostiumSettingsView(row))
	}
	writeJSON(w, http.StatusOK, views)
}

type ostiumSettingsRequest struct {
	Enabled              bool    `json:"enabled"`
	PrivateKey           string  `json:"private_key"`
	RPCURL               string  `json:"rpc_url"`
	Network              string  `json:"network"`
	Verbose              bool    `json:"verbose"`
	SlippagePercentage   float64 `json:"slippage_percentage"`
	DefaultFeePercentage float64 `json:"default_fee_percentage"`
	MinFee               float64 `json:"min_fee"`
	MaxFee               float64 `json:"max_fee"`
	Timeout              int64   `json:"timeout"`
	RetryAttempts        int64   `json:"retry_attempts"`
	RetryDelay           float64 `json:"retry_delay"`
	Activate             bool    `json:"activate"`
	CreatedBy            int64   `json:"created_by"`
}

func (h *Handler) handleOstiumCreate(w http.ResponseWriter, r *http.Request) {
	var req ostiumSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.deps.Ostium.CreateSettings(r.Context(), ostium.SettingsParams{
		Enabled:              req.Enabled,
		PrivateKey:           req.PrivateKey,
		RPCURL:               req.RPCURL,
		Network:              req.Network,
		Verbose:              req.Verbose,
		SlippagePercentage:   req.SlippagePercentage,
		DefaultFeePercentage: req.DefaultFeePercentage,
		MinFee:               req.MinFee,
		MaxFee:               req.MaxFee,
		Timeout:              req.Timeout,
		RetryAttempts:        req.RetryAttempts,
		RetryDelay:           req.RetryDelay,
	}, req.CreatedBy, req.Activate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ostiumSettingsView(created))
}

type ostiumSettingsPatch struct {
	Enabled              *bool    `json:"enabled"`
	PrivateKey           *string  `json:"private_key"`
	RPCURL               *string  `json:"rpc_url"`
	Network              *string  `json:"network"`
	Verbose              *bool    `json:"verbose"`
	SlippagePercentage   *float64 `json:"slippage_percentage"`
	DefaultFeePercentage *float64 `json:"default_fee_percentage"`
	MinFee               *float64 `json:"min_fee"`
	MaxFee               *float64 `json:"max_fee"`
	Timeout              *int64   `json:"timeout"`
	RetryAttempts        *int64   `json:"retry_attempts"`
	RetryDelay           *float64 `json:"retry_delay"`
}

func (h *Handler) handleOstiumUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req ostiumSettingsPatch
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.deps.Ostium.UpdateSettings(r.Context(), id, storage.OstiumSettingsUpdate{
		Enabled:              req.Enabled,
		RPCURL:               req.RPCURL,
		Network:              req.Network,
		Verbose:              req.Verbose,
		SlippagePercentage:   req.SlippagePercentage,
		DefaultFeePercentage: req.DefaultFeePercentage,
		MinFee:               req.MinFee,
		MaxFee:               req.MaxFee,
		Timeout:              req.Timeout,
		RetryAttempts:        req.RetryAttempts,
		RetryDelay:           req.RetryDelay,
	}, req.PrivateKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ostiumSettingsView(updated))
}

func (h *Handler) handleOstiumActivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	activated, err := h.deps.Ostium.ActivateSettings(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ostiumSettingsView(activated))
}

// ostiumSettingsView never exposes key material, not even ciphertext.
func ostiumSettingsView(rec storage.OstiumSettingsRecord) map[string]any {
	key := ""
	if rec.PrivateKeyEncrypted != "" {
		key = configstore.EncryptedPlaceholder
	}
	return map[string]any{
		"id":                     rec.ID,
		"enabled":                rec.Enabled,
		"private_key":            key,
		"rpc_url":                rec.RPCURL,
		"network":                rec.Network,
		"verbose":                rec.Verbose,
		"slippage_percentage":    rec.SlippagePercentage,
		"default_fee_percentage": rec.DefaultFeePercentage,
		"min_fee":                rec.MinFee,
		"max_fee":                rec.MaxFee,
		"timeout":                rec.Timeout,
		"retry_attempts":         rec.RetryAttempts,
		"retry_delay":            rec.RetryDelay,
		"is_active":              rec.IsActive,
		"version":                rec.Version,
		"created_by":             rec.CreatedBy,
		"created_at":             rec.CreatedAt,
		"updated_at":             rec.UpdatedAt,
	}
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Store.ListLogEntries(r.Context(),
		r.URL.Query().Get("component"), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
