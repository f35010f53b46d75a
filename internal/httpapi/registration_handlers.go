package httpapi

import (
	"net/http"
	"strings"

	"paradise.network/internal/registration"
)

type startVerificationRequest struct {
	Mobile string `json:"mobile"`
}

type verifyOTPRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

type submitSponsorRequest struct {
	Mobile       string `json:"mobile"`
	ReferralCode string `json:"referral_code"`
}

type commitRequest struct {
	Mobile   string `json:"mobile"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type flowResponse struct {
	Success bool   `json:"success"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func (a *API) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch strings.TrimPrefix(r.URL.Path, "/v1/registrations/") {
	case "start":
		a.startVerification(w, r)
	case "verify-otp":
		a.verifyCandidateOTP(w, r)
	case "sponsor":
		a.submitSponsor(w, r)
	case "sponsor-otp":
		a.verifySponsorOTP(w, r)
	case "commit":
		a.commitRegistration(w, r)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) startVerification(w http.ResponseWriter, r *http.Request) {
	var req startVerificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" {
		writeError(w, r, http.StatusBadRequest, "mobile is required")
		return
	}
	if err := a.reg.StartVerification(r.Context(), mobile); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{
		Success: true,
		Stage:   string(registration.StageMobileOTP),
		Message: "one-time code sent to candidate mobile",
	})
}

func (a *API) verifyCandidateOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.reg.VerifyCandidateOTP(r.Context(), strings.TrimSpace(req.Mobile), strings.TrimSpace(req.Code)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{
		Success: true,
		Stage:   string(registration.StageSponsorEntry),
		Message: "mobile verified",
	})
}

func (a *API) submitSponsor(w http.ResponseWriter, r *http.Request) {
	var req submitSponsorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.reg.SubmitSponsor(r.Context(), strings.TrimSpace(req.Mobile), strings.TrimSpace(req.ReferralCode)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{
		Success: true,
		Stage:   string(registration.StageSponsorOTP),
		Message: "sponsor validated, one-time code sent to sponsor",
	})
}

func (a *API) verifySponsorOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.reg.VerifySponsorOTP(r.Context(), strings.TrimSpace(req.Mobile), strings.TrimSpace(req.Code)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{
		Success: true,
		Stage:   string(registration.StageFinalDetails),
		Message: "sponsor verified",
	})
}

func (a *API) commitRegistration(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := a.reg.Commit(r.Context(), strings.TrimSpace(req.Mobile), registration.Profile{
		Name:     strings.TrimSpace(req.Name),
		Password: req.Password,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "registration.commit", "member admitted into the network", acc.ID)
	w.Header().Set("Location", "/v1/accounts/"+acc.ID)
	writeJSON(w, http.StatusCreated, acc)
}
