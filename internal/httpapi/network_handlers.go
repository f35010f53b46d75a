package httpapi

import (
	"net/http"
	"strings"

	"paradise.network/internal/commission"
)

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case strings.HasSuffix(path, "/ledger"):
		a.getAccountLedger(w, r, strings.TrimSuffix(path, "/ledger"))
	case strings.HasSuffix(path, "/earnings"):
		a.getAccountEarnings(w, r, strings.TrimSuffix(path, "/earnings"))
	case strings.Contains(path, "/"):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		a.getAccount(w, r, path)
	}
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	acc, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) getAccountLedger(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	entries, err := a.ledger.ListBySeller(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) getAccountEarnings(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	entries, err := a.ledger.ListInvolving(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	// Sum what this account actually takes home across the snapshots.
	var total int64
	for _, e := range entries {
		if e.Payout.Seller.AccountID == id {
			total += e.Payout.Seller.Amount
		}
		for _, share := range e.Payout.Uplines {
			if share.AccountID == id {
				total += share.Amount
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       entries,
		"total_minor": total,
	})
}

func (a *API) handleNetworkResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/network/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/chain") {
		a.getSponsorChain(w, r, strings.TrimSuffix(path, "/chain"))
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	a.getSubtree(w, r, path)
}

func (a *API) getSubtree(w http.ResponseWriter, r *http.Request, id string) {
	node, err := a.graph.GetSubtree(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (a *API) getSponsorChain(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	chain, err := a.graph.GetSponsorChain(r.Context(), id, commission.UplineLevels)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ancestors": chain})
}
