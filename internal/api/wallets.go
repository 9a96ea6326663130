package api

import (
	"net/http"

	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/storage"
)

type createWalletRequest struct {
	Provider  string `json:"provider"`
	Network   string `json:"network"`
	CreatedBy string `json:"created_by"`
}

func (h *Handler) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.deps.Wallets.CreateWallet(r.Context(), req.Provider, req.Network, req.CreatedBy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.deps.Wallets.List(r.Context(), r.URL.Query().Get("provider"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []storage.Wallet{}
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (h *Handler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	got, err := h.deps.Wallets.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

type signTransactionRequest struct {
	TxData string `json:"tx_data"`
}

func (h *Handler) handleSignTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req signTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	signed, err := h.deps.Wallets.SignTransaction(r.Context(), id, req.TxData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signed": signed})
}

func (h *Handler) handleDeactivateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.deps.Wallets.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type depositQuoteRequest struct {
	Provider    string `json:"provider"`
	FromToken   string `json:"from_token"`
	ToToken     string `json:"to_token"`
	FromChain   string `json:"from_chain"`
	ToChain     string `json:"to_chain"`
	Amount      string `json:"amount"`
	FromAddress string `json:"from_address"`
}

func (q depositQuoteRequest) swapRequest() provider.SwapRequest {
	return provider.SwapRequest{
		FromToken:   q.FromToken,
		ToToken:     q.ToToken,
		FromChain:   q.FromChain,
		ToChain:     q.ToChain,
		Amount:      q.Amount,
		FromAddress: q.FromAddress,
	}
}

func (h *Handler) handleDepositQuote(w http.ResponseWriter, r *http.Request) {
	var req depositQuoteRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := h.deps.Deposits.Quote(r.Context(), req.Provider, req.swapRequest())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type startConversionRequest struct {
	depositQuoteRequest
	WalletID int64 `json:"wallet_id"`
}

func (h *Handler) handleStartConversion(w http.ResponseWriter, r *http.Request) {
	var req startConversionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	conv, err := h.deps.Deposits.StartConversion(r.Context(), req.Provider, req.WalletID, req.swapRequest())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, conv)
}

func (h *Handler) handleListConversions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Deposits.List())
}

func (h *Handler) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	conv, err := h.deps.Deposits.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
