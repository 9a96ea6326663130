package api

import (
	"net/http"
	"strings"

	"github.com/marqetfi/tradegate/provider"
)

type openTradeRequest struct {
	Provider   string  `json:"provider"`
	Pair       string  `json:"pair"`
	Side       string  `json:"side"`
	Type       string  `json:"type"`
	Collateral float64 `json:"collateral"`
	Leverage   float64 `json:"leverage"`
	LimitPrice float64 `json:"limit_price"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}

func (h *Handler) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.deps.Trading.OpenTrade(r.Context(), req.Provider, provider.OrderRequest{
		Pair:       req.Pair,
		Side:       provider.OrderSide(strings.ToUpper(req.Side)),
		Type:       provider.OrderType(strings.ToUpper(req.Type)),
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		LimitPrice: req.LimitPrice,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Trading.CloseTrade(r.Context(), r.URL.Query().Get("provider"), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type updateTPSLRequest struct {
	Provider   string  `json:"provider"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}

func (h *Handler) handleUpdateTPSL(w http.ResponseWriter, r *http.Request) {
	var req updateTPSLRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.deps.Trading.UpdateTPSL(r.Context(), req.Provider, r.PathValue("id"), req.TakeProfit, req.StopLoss)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Trading.CancelOrder(r.Context(), r.URL.Query().Get("provider"), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.deps.Trading.Positions(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if positions == nil {
		positions = []provider.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *Handler) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.deps.Trading.Pairs(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if pairs == nil {
		pairs = []provider.Pair{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	quote, err := h.deps.Prices.GetPrice(r.Context(), r.URL.Query().Get("provider"), r.PathValue("pair"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handlePrices serves GET /api/prices?pairs=BTC-USD,ETH-USD.
func (h *Handler) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("pairs")
	if raw == "" {
		h.writeError(w, r, badRequest("pairs query parameter is required"))
		return
	}

	var pairs []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pairs = append(pairs, p)
		}
	}

	quotes, err := h.deps.Prices.GetPrices(r.Context(), r.URL.Query().Get("provider"), pairs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}
