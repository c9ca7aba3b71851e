package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/lock"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/service"
	"bahikhata/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	authLimiter   *attemptLimiter
	log           *logrus.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *logrus.Logger) *API {
	if logger == nil {
		logger = logging.Discard()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		authLimiter:   newAttemptLimiter(20, time.Minute),
		log:           logger,
	}
}

// attemptLimiter bounds failed attempts per client within a sliding window.
type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

// Blocked reports whether key has used up its failures in the current window.
func (l *attemptLimiter) Blocked(key string) bool {
	if l == nil {
		return false
	}
	cutoff := time.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(key, cutoff)
	return len(kept) >= l.max
}

func (l *attemptLimiter) Fail(key string) {
	if l == nil {
		return
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(key, now.Add(-l.window))
	l.entries[key] = append(kept, now)
}

func (l *attemptLimiter) prune(key string, cutoff time.Time) []time.Time {
	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.entries, key)
	} else {
		l.entries[key] = kept
	}
	return kept
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleDocuments(domain.KindSale)))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleDocumentActions(domain.KindSale, "/api/v1/sales/")))
	mux.HandleFunc("/api/v1/sale-returns", a.requireAuth(a.handleDocuments(domain.KindSaleReturn)))
	mux.HandleFunc("/api/v1/sale-returns/", a.requireAuth(a.handleDocumentActions(domain.KindSaleReturn, "/api/v1/sale-returns/")))

	mux.HandleFunc("/api/v1/parties", a.requireAuth(a.handleParties))
	mux.HandleFunc("/api/v1/parties/", a.requireAuth(a.handlePartyActions))
	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if a.authLimiter.Blocked(client) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many invalid tokens"))
			return
		}

		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.authLimiter.Fail(client)
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleDocuments(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			docs, err := a.service.ListDocuments(r.Context(), actorFrom(r), kind, listOptions(r))
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
		case http.MethodPost:
			in, err := decodeDocumentInput(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			doc, err := a.service.CreateDocument(r.Context(), actorFrom(r), kind, in)
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
		default:
			writeMethodNotAllowed(w)
		}
	}
}

func (a *API) handleDocumentActions(kind domain.DocumentKind, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
		if tail == "" {
			writeError(w, http.StatusBadRequest, errors.New("document id required"))
			return
		}

		if tail == "next-invoice" {
			if r.Method != http.MethodGet {
				writeMethodNotAllowed(w)
				return
			}
			preview, err := a.service.NextInvoicePreview(r.Context(), actorFrom(r), kind, r.URL.Query().Get("prefix"))
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, preview)
			return
		}

		if strings.HasSuffix(tail, "/summary") {
			if r.Method != http.MethodGet {
				writeMethodNotAllowed(w)
				return
			}
			id := strings.Trim(strings.TrimSuffix(tail, "/summary"), "/")
			summary, err := a.service.DocumentSummary(r.Context(), actorFrom(r), kind, id)
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
			return
		}

		if strings.Contains(tail, "/") {
			writeError(w, http.StatusNotFound, errors.New("unknown document action"))
			return
		}

		switch r.Method {
		case http.MethodGet:
			doc, err := a.service.GetDocument(r.Context(), actorFrom(r), kind, tail, listOptions(r))
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": doc})
		case http.MethodPut:
			in, err := decodeDocumentInput(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			doc, err := a.service.UpdateDocument(r.Context(), actorFrom(r), kind, tail, in)
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": doc})
		case http.MethodDelete:
			result, err := a.service.DeleteDocument(r.Context(), actorFrom(r), kind, tail)
			if err != nil {
				a.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		default:
			writeMethodNotAllowed(w)
		}
	}
}

func (a *API) handleParties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		parties, err := a.service.ListParties(r.Context(), actorFrom(r))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"parties": parties})
	case http.MethodPost:
		var req domain.PartyCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		party, err := a.service.CreateParty(r.Context(), actorFrom(r), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"party": party})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePartyActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/parties/"), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("party id required"))
		return
	}

	if strings.HasSuffix(tail, "/transactions") {
		id := strings.Trim(strings.TrimSuffix(tail, "/transactions"), "/")
		txs, err := a.service.ListPartyTransactions(r.Context(), actorFrom(r), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
		return
	}

	party, err := a.service.GetParty(r.Context(), actorFrom(r), tail)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"party": party})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), actorFrom(r))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.CreateProduct(r.Context(), actorFrom(r), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	product, err := a.service.GetProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), actorFrom(r), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(startedAt).String(),
		}).Info("request")
	})
}

// statusFor maps service and storage errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUserRequired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidPaymentStatus),
		errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFoundOrUnauthorized):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrNotObtained):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logging.LogError(a.log, "httpapi", "writeServiceError", "request failed", r.Method+" "+r.URL.Path, err)
	}
	writeError(w, status, err)
}

func listOptions(r *http.Request) domain.ListOptions {
	include, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
	return domain.ListOptions{IncludeDeleted: include}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// documentPayload accepts the read-only fields of a returned document so a
// client can send a fetched document back unchanged. Their values are dropped.
type documentPayload struct {
	domain.DocumentInput
	ID            json.RawMessage `json:"id"`
	BusinessID    json.RawMessage `json:"businessId"`
	Kind          json.RawMessage `json:"kind"`
	InvoiceNumber json.RawMessage `json:"invoiceNumber"`
	InvoiceNo     json.RawMessage `json:"invoiceNo"`
	TotalAmount   json.RawMessage `json:"totalAmount"`
	BalanceAmount json.RawMessage `json:"balanceAmount"`
	IsDeleted     json.RawMessage `json:"isDeleted"`
	CreatedBy     json.RawMessage `json:"createdBy"`
	UpdatedBy     json.RawMessage `json:"updatedBy"`
	CreatedAt     json.RawMessage `json:"createdAt"`
	UpdatedAt     json.RawMessage `json:"updatedAt"`
}

func decodeDocumentInput(r *http.Request) (domain.DocumentInput, error) {
	var payload documentPayload
	if err := decodeJSON(r, &payload); err != nil {
		return domain.DocumentInput{}, err
	}
	return payload.DocumentInput, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx responses so storage details never
// reach clients.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
