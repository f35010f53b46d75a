package httpapi

import (
	"net/http"
	"strings"

	"paradise.network/internal/account"
	"paradise.network/internal/auth"
	"paradise.network/internal/commission"
	"paradise.network/internal/ledger"
)

func (a *API) handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(r.Context(), w, r) {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/accounts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "block":
		a.setAccountStatus(w, r, id, account.StatusBlocked, "admin.account.block", "account blocked")
	case "unblock":
		a.setAccountStatus(w, r, id, account.StatusActive, "admin.account.unblock", "account unblocked")
	case "reset-credential":
		a.resetCredential(w, r, id)
	case "reparent":
		a.reparentAccount(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) setAccountStatus(w http.ResponseWriter, r *http.Request, id string, st account.Status, event, description string) {
	if err := a.accounts.SetStatus(r.Context(), id, st); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), event, description, id)
	acc, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type resetCredentialRequest struct {
	Password string `json:"password"`
}

func (a *API) resetCredential(w http.ResponseWriter, r *http.Request, id string) {
	var req resetCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.accounts.SetPassword(r.Context(), id, hash); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "admin.account.reset_credential", "credential reset", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type reparentRequest struct {
	NewSponsorID string `json:"new_sponsor_id"`
}

func (a *API) reparentAccount(w http.ResponseWriter, r *http.Request, id string) {
	var req reparentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newSponsorID := strings.TrimSpace(req.NewSponsorID)
	if newSponsorID == "" {
		writeError(w, r, http.StatusBadRequest, "new_sponsor_id is required")
		return
	}
	if err := a.graph.Reparent(r.Context(), id, newSponsorID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "admin.account.reparent", "moved under sponsor "+newSponsorID, id)
	acc, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(r.Context(), w, r) {
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/transactions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.ledger.UpdateStatus(r.Context(), parts[0], ledger.Status(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "admin.transaction.status", "status set to "+string(entry.Status), entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleAdminRules(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(r.Context(), w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": a.rules.List(r.Context())})
	case http.MethodPut:
		var rule commission.Rule
		if err := decodeJSON(w, r, &rule); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := rule.Validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		// Durable storage first: a rule the resolver applies but the store
		// lost would silently revert on restart.
		if a.ruleStore != nil {
			if err := a.ruleStore.SaveRule(r.Context(), rule); err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
		}
		if err := a.rules.Upsert(r.Context(), rule); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		a.audit(r.Context(), "admin.rule.upsert", "commission rule installed", rule.ID)
		writeJSON(w, http.StatusOK, rule)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(r.Context(), w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	records, err := a.trail.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records})
}
