package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cache"
	"github.com/LightDreamhs/MyPetShop3.0/internal/cart"
	"github.com/LightDreamhs/MyPetShop3.0/internal/checkout"
	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/money"
	"github.com/LightDreamhs/MyPetShop3.0/internal/service"
	"github.com/LightDreamhs/MyPetShop3.0/internal/stock"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

const (
	idempotencyHeader = "Idempotency-Key"
	csrfHeader        = "X-CSRF-Token"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
	validate      *validator.Validate
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.Named("http"),
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (Unix time truncated to the hour).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(currentBucket - 3600)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.securityHeaders)
	r.Use(a.csrfProtect)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", a.handleGetCart)
				r.Delete("/", a.handleClearCart)
				r.Post("/items", a.handleAddCartItem)
				r.Patch("/items/{index}", a.handleUpdateCartItem)
				r.Delete("/items/{index}", a.handleRemoveCartItem)
			})

			r.Post("/checkout/service", a.handleServiceCheckout)
			r.Post("/checkout/products", a.handleProductCheckout)
			r.With(a.requireAuth(domain.RoleAdmin)).Get("/checkout/journal", a.handleJournal)
			r.With(a.requireAuth(domain.RoleAdmin)).Get("/audit-logs", a.handleAuditLogs)

			r.Route("/customers/{id}", func(r chi.Router) {
				r.Get("/", a.handleCustomerOverview)
				r.Delete("/", a.handleDelete(a.service.DeleteCustomer))
				r.Get("/balance/advice", a.handleBalanceAdvice)
				r.Post("/balance/recharge", a.handleBalanceChange(a.service.RechargeBalance))
				r.Post("/balance/deduct", a.handleBalanceChange(a.service.DeductBalance))
			})
			r.Delete("/consumption-records/{id}", a.handleDelete(a.service.DeleteConsumptionRecord))
			r.Delete("/transactions/{id}", a.handleDelete(a.service.DeleteLedgerEntry))

			r.Route("/products/{id}", func(r chi.Router) {
				r.Delete("/", a.handleDelete(a.service.DeleteProduct))
				r.Post("/stock/increment", a.handleStockAdjust(1))
				r.Post("/stock/decrement", a.handleStockAdjust(-1))
			})

			r.Get("/statistics/net-income", a.handleNetIncome)
			r.Get("/statistics/monthly", a.handleMonthlyStatistics)
		})
	})

	return otelhttp.NewHandler(r, "petshop-console")
}

// requireAuth resolves the bearer token into an actor; with roles given,
// the actor's role must be one of them.
func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				authorization := strings.TrimSpace(r.Header.Get("Authorization"))
				if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
					writeError(w, http.StatusUnauthorized, "unauthenticated", errors.New("missing bearer token"))
					return
				}
				var err error
				actor, err = a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "unauthenticated", err)
					return
				}
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, "forbidden", errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrfToken": a.generateCSRFToken(),
	})
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.checkCSRF(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// checkCSRF enforces the CSRF token on state-changing methods. It writes the
// error response itself and reports whether the request may proceed.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get(csrfHeader))) {
		writeError(w, http.StatusForbidden, "csrf", errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.service.GetCart(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearCart(r.Context()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.CartItemAddRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := a.service.AddCartItem(r.Context(), req.ProductID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cart": c})
}

func (a *API) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req domain.CartItemUpdateRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := a.service.UpdateCartItem(r.Context(), index, req.Field, req.Value)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (a *API) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	c, err := a.service.RemoveCartItem(r.Context(), index)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (a *API) handleServiceCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceCheckoutRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := a.service.SubmitService(r.Context(), req, idempotencyKey(r))
	a.writeCheckout(w, result, err)
}

func (a *API) handleProductCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCheckoutRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := a.service.SubmitProducts(r.Context(), req, idempotencyKey(r))
	a.writeCheckout(w, result, err)
}

// writeCheckout answers 201 for a committed checkout and 207 when some
// optional step failed. Failures carry the per-step outcome next to the
// error so the console can show what was already written.
func (a *API) writeCheckout(w http.ResponseWriter, result checkout.Result, err error) {
	if err == nil {
		status := http.StatusCreated
		if result.State == checkout.StatePartiallyCommitted {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, map[string]any{"result": result})
		return
	}

	status, kind, msg := a.classify(err)
	body := map[string]any{"error": msg, "kind": kind}
	if result.State == checkout.StateFailed || result.State == checkout.StateRejected {
		body["result"] = result
	}
	var vErr *checkout.ValidationError
	if errors.As(err, &vErr) {
		body["field"] = vErr.Field
	}
	if status == http.StatusUnauthorized {
		body["reauth"] = true
	}
	writeJSON(w, status, body)
}

func (a *API) handleJournal(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}
	entries, err := a.service.ListJournal(r.Context(), domain.JournalQuery{
		From:  from,
		To:    to,
		State: strings.TrimSpace(r.URL.Query().Get("state")),
		Limit: parsePositiveLimit(r.URL.Query().Get("limit"), store.DefaultListLimit, 500),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), store.DefaultListLimit, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), from, to, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCustomerOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
	pageSize := parsePositiveLimit(r.URL.Query().Get("pageSize"), 10, 100)
	overview, err := a.service.CustomerOverview(r.Context(), id, page, pageSize)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) handleBalanceAdvice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	advice, err := a.service.BalanceAdvice(r.Context(), id, r.URL.Query().Get("amount"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

type balanceFunc func(ctx context.Context, customerID int64, req domain.BalanceChangeRequest) (domain.Customer, error)

func (a *API) handleBalanceChange(change balanceFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req domain.BalanceChangeRequest
		if !a.decodeAndValidate(w, r, &req) {
			return
		}
		customer, err := change(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.BalanceChangeResponse{Customer: customer})
	}
}

type deleteFunc func(ctx context.Context, id int64, req domain.DeleteRequest) error

// handleDelete serves the confirmed destructive deletes. Attempts carrying
// a manager PIN are rate limited per client.
func (a *API) handleDelete(del deleteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		var req domain.DeleteRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "validation", err)
			return
		}
		if a.service.ManagerPINRequired() && !a.pinLimiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", errors.New("too many manager pin attempts"))
			return
		}
		if err := del(r.Context(), id, req); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) handleStockAdjust(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		resp, err := a.service.AdjustStock(r.Context(), id, delta, stock.ListQuery{
			Page:     parsePositiveLimit(q.Get("page"), 1, 0),
			PageSize: parsePositiveLimit(q.Get("pageSize"), 10, 100),
			Search:   strings.TrimSpace(q.Get("search")),
		})
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (a *API) handleNetIncome(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(w, r, "days")
	if !ok {
		return
	}
	report, err := a.service.NetIncome(r.Context(), days)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleMonthlyStatistics(w http.ResponseWriter, r *http.Request) {
	year, ok := intQuery(w, r, "year")
	if !ok {
		return
	}
	months, err := a.service.MonthlyStatistics(r.Context(), year)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// classify maps an error from the service layer to a status, an error kind
// for the console and the message it may show.
func (a *API) classify(err error) (int, string, string) {
	var vErr *checkout.ValidationError
	var reqErr *upstream.RequestError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, "validation", err.Error()
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, stock.ErrInvalidDelta),
		errors.Is(err, cart.ErrUnknownField),
		errors.Is(err, cart.ErrLineTooLarge),
		errors.Is(err, store.ErrInvalidEntry):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, service.ErrInvalidManagerPIN):
		return http.StatusForbidden, "invalid_pin", err.Error()
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "confirmation_required", err.Error()
	case errors.Is(err, cache.ErrDuplicateSubmission), errors.Is(err, cart.ErrDuplicateItem):
		return http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.As(err, &reqErr):
		return upstream.HTTPStatus(err), string(reqErr.Kind), reqErr.Message()
	}

	a.logger.Error("internal error", zap.Error(err))
	return http.StatusInternalServerError, "internal", "internal server error"
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status, kind, msg := a.classify(err)
	body := map[string]any{"error": msg, "kind": kind}
	if status == http.StatusUnauthorized {
		body["reauth"] = true
	}
	writeJSON(w, status, body)
}

func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(idempotencyHeader))
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation", errors.New("invalid id"))
		return 0, false
	}
	return id, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "validation", errors.New("invalid cart line index"))
		return 0, false
	}
	return index, true
}

// intQuery reads an optional integer query parameter; absent means 0.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return v, true
}

// timeRange reads ?from&to as RFC 3339 timestamps or plain dates. A plain
// `to` date covers that whole day.
func timeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := parseTimeParam(r.URL.Query().Get("from"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid from: %w", err))
		return time.Time{}, time.Time{}, false
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", fmt.Errorf("invalid to: %w", err))
		return time.Time{}, time.Time{}, false
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "validation", errors.New("to must not be before from"))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
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
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", errors.New("method not allowed"))
}

// writeError reports err to the client. 5xx messages are replaced with a
// generic one.
func writeError(w http.ResponseWriter, status int, kind string, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
		"kind":  kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
