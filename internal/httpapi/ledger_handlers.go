package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paradise.network/internal/ledger"
	"paradise.network/internal/stream"
)

type recordTransactionRequest struct {
	SellerID       string `json:"seller_id"`
	Gross          int64  `json:"gross"`
	Industry       string `json:"industry"`
	Project        string `json:"project"`
	IdempotencyKey string `json:"idempotency_key"`
}

type listEntriesResponse struct {
	Items     []ledger.Entry `json:"items"`
	NextAfter uint64         `json:"next_after"`
	AsOf      time.Time      `json:"as_of"`
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.recordTransaction(w, r)
	case http.MethodGet:
		a.listTransactions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	idem := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if req.IdempotencyKey != "" {
		bodyKey := strings.TrimSpace(req.IdempotencyKey)
		if idem == "" {
			idem = bodyKey
		} else if idem != bodyKey {
			writeError(w, r, http.StatusBadRequest, "Idempotency-Key header and body value must match")
			return
		}
	}
	if len(idem) > 128 {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key too long")
		return
	}

	sellerID := strings.TrimSpace(req.SellerID)
	if sellerID == "" {
		writeError(w, r, http.StatusBadRequest, "seller_id is required")
		return
	}
	if req.Gross <= 0 {
		writeError(w, r, http.StatusBadRequest, "gross must be > 0")
		return
	}
	industry := strings.ToUpper(strings.TrimSpace(req.Industry))
	if industry == "" {
		writeError(w, r, http.StatusBadRequest, "industry is required")
		return
	}

	entry, err := a.ledger.Record(r.Context(), sellerID, req.Gross, industry, strings.TrimSpace(req.Project), idem)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	if idem != "" {
		w.Header().Set("Idempotency-Key", idem)
	}

	if a.stream != nil {
		a.stream.Publish(stream.TransactionEvent{
			TransactionID: entry.ID,
			SellerID:      entry.SellerID,
			Industry:      entry.Industry,
			Gross:         entry.Gross,
			PlatformCut:   entry.Payout.Platform.Amount,
			UplineLevels:  len(entry.Payout.Uplines),
			Timestamp:     time.Now().UTC(),
		})
	}

	a.audit(r.Context(), "ledger.transaction.record",
		"payout distributed for gross "+strconv.FormatInt(entry.Gross, 10), entry.ID)

	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	afterParam := strings.TrimSpace(r.URL.Query().Get("after"))
	var after uint64
	if afterParam != "" {
		v, err := strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.ledger.List(r.Context(), limit, after)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listEntriesResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
