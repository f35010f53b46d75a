package httpapi

import (
	"net/http"
	"strings"
	"time"
)

type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "mobile and password are required")
		return
	}

	acc, token, err := a.authsvc.Authenticate(r.Context(), mobile, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "auth.login", "member authenticated", acc.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		AccountID: acc.ID,
		Name:      acc.Name,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(a.authsvc.TokenTTL()),
	})
}
