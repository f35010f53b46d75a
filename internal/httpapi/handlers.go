package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"paradise.network/internal/account"
	"paradise.network/internal/audit"
	"paradise.network/internal/auth"
	"paradise.network/internal/commission"
	"paradise.network/internal/ledger"
	"paradise.network/internal/network"
	"paradise.network/internal/obs"
	"paradise.network/internal/registration"
	"paradise.network/internal/stream"
)

// RuleStore persists commission rules so admin upserts survive restarts.
// Optional; without one the resolver alone carries the rules.
type RuleStore interface {
	SaveRule(ctx context.Context, r commission.Rule) error
}

// ReadyProbe checks readiness (e.g. pings the database when one is wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the network and commission engine.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	accounts  account.Store
	graph     *network.Graph
	reg       *registration.Workflow
	authsvc   *auth.Service
	ledger    *ledger.Service
	rules     *commission.Resolver
	ruleStore RuleStore
	trail     audit.Trail
	stream    *stream.Stream

	rateBurst  int
	ratePerSec int
}

// Deps bundles the collaborators the API serves.
type Deps struct {
	Accounts     account.Store
	Graph        *network.Graph
	Registration *registration.Workflow
	Auth         *auth.Service
	Ledger       *ledger.Service
	Rules        *commission.Resolver
	RuleStore    RuleStore
	Trail        audit.Trail
	Stream       *stream.Stream
}

// New wires routes. The returned API still needs Handler() for the full
// middleware chain.
func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		accounts:   deps.Accounts,
		graph:      deps.Graph,
		reg:        deps.Registration,
		authsvc:    deps.Auth,
		ledger:     deps.Ledger,
		rules:      deps.Rules,
		ruleStore:  deps.RuleStore,
		trail:      deps.Trail,
		stream:     deps.Stream,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/registrations/", a.handleRegistrations)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	a.mux.HandleFunc("/v1/transactions", a.handleTransactions)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)
	a.mux.HandleFunc("/v1/network/", a.handleNetworkResource)
	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/v1/admin/accounts/", a.handleAdminAccounts)
	a.mux.HandleFunc("/v1/admin/transactions/", a.handleAdminTransactions)
	a.mux.HandleFunc("/v1/admin/rules", a.handleAdminRules)
	a.mux.HandleFunc("/v1/admin/audit", a.handleAdminAudit)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = obs.Instrument(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = SecurityHeaders(CORS(h))
	return h
}

// --- health/info ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "paradise-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "paradise-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps sentinel errors from the core onto HTTP statuses.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registration.ErrAlreadyRegistered):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registration.ErrInvalidOTP),
		errors.Is(err, registration.ErrInvalidSponsor),
		errors.Is(err, registration.ErrWrongStage):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, registration.ErrSponsorFull),
		errors.Is(err, account.ErrCapacityExceeded):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registration.ErrNoSession):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrSelfReference),
		errors.Is(err, account.ErrAlreadyUnderSponsor),
		errors.Is(err, account.ErrCycle),
		errors.Is(err, account.ErrSponsorInactive),
		errors.Is(err, commission.ErrInvalidGross),
		errors.Is(err, ledger.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrFinalStatus):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, commission.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrBadCredentials),
		errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) audit(ctx context.Context, event, description, targetID string) {
	_ = audit.LogEvent(ctx, a.trail, event, description, targetID)
}
