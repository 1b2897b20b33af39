package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cache"
	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/service"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store/memory"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

// fakeBackend speaks the pet shop backend's envelope protocol.
type fakeBackend struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	sales     []domain.SaleCreate
	records   int
	ledger    int

	// revoked tokens answer with business code 1002.
	revoked    map[string]bool
	failLedger bool
}

func newFakeBackend() *fakeBackend {
	price := int64(1250)
	return &fakeBackend{
		customers: map[int64]domain.Customer{
			7: {ID: 7, PetName: "Mimi", OwnerName: "Lee", Phone: "13800000000", MemberLevel: 2, BalanceCents: 500},
		},
		products: map[int64]domain.Product{
			1: {ID: 1, Name: "Cat Food", PriceCents: &price, Stock: 4},
			2: {ID: 2, Name: "Custom Collar", Stock: 0},
		},
		revoked: map[string]bool{},
	}
}

func envelope(w http.ResponseWriter, status int, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (f *fakeBackend) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		revoked := f.revoked[token]
		f.mu.Unlock()
		if !strings.HasPrefix(token, "up-") || revoked {
			envelope(w, http.StatusOK, 1002, "token expired", nil)
			return
		}
		next(w, r)
	}
}

func (f *fakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		role := domain.RoleStaff
		switch body.Username {
		case "admin":
			role = domain.RoleAdmin
		case "ghost":
			envelope(w, http.StatusOK, 1001, "用户不存在", nil)
			return
		}
		envelope(w, http.StatusOK, 200, "success", map[string]any{
			"user":        domain.User{ID: 1, Username: body.Username, Role: role},
			"accessToken": "up-" + body.Username,
			"expiresIn":   3600,
		})
	})

	r.Get("/customers/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		customer, ok := f.customers[pathID(r)]
		if !ok {
			envelope(w, http.StatusNotFound, 404, "客户不存在", nil)
			return
		}
		envelope(w, http.StatusOK, 200, "success", customer)
	}))
	r.Delete("/customers/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.customers, pathID(r))
		envelope(w, http.StatusOK, 200, "success", nil)
	}))
	r.Get("/customers/{id}/consumption-records", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, 200, "success", domain.Page[domain.ConsumptionRecord]{List: []domain.ConsumptionRecord{}, Page: 1, PageSize: 10})
	}))
	r.Post("/customers/{id}/consumption-records", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		var req domain.ConsumptionRecordCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.records++
		id := int64(f.records)
		f.mu.Unlock()
		envelope(w, http.StatusOK, 200, "success", domain.ConsumptionRecord{ID: id, CustomerID: pathID(r), Item: req.Item, Date: req.Date, AmountCents: req.AmountCents})
	}))
	r.Post("/customers/{id}/balance/deduct", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.changeBalance(w, r, -1)
	}))
	r.Post("/customers/{id}/balance/recharge", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.changeBalance(w, r, 1)
	}))

	r.Post("/transactions", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		var req domain.LedgerEntryCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failLedger {
			envelope(w, http.StatusInternalServerError, 500, "ledger unavailable", nil)
			return
		}
		f.ledger++
		envelope(w, http.StatusOK, 200, "success", domain.LedgerEntry{ID: int64(f.ledger), Type: req.Type, AmountCents: req.AmountCents, Description: req.Description, Date: req.Date})
	}))
	r.Get("/transactions/statistics", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, 200, "success", domain.Statistics{TotalIncomeCents: 9000, TotalExpenseCents: 1000, NetIncomeCents: 8000})
	}))
	r.Get("/transactions/monthly-statistics", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, 200, "success", []domain.MonthlyStatistics{{YearMonth: r.URL.Query().Get("year") + "-01", NetIncomeCents: 100}})
	}))
	r.Delete("/transactions/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, 200, "success", nil)
	}))
	r.Delete("/consumption-records/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, 200, "success", nil)
	}))

	r.Post("/sales", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		var req domain.SaleCreate
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sales = append(f.sales, req)
		envelope(w, http.StatusOK, 200, "success", domain.Sale{ID: int64(len(f.sales)), TotalAmountCents: req.TotalAmountCents, SaleDate: req.SaleDate})
	}))
	r.Get("/products", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		page := domain.Page[domain.Product]{Page: 1, PageSize: 10}
		for _, id := range []int64{1, 2} {
			if p, ok := f.products[id]; ok {
				page.List = append(page.List, p)
			}
		}
		page.Total = int64(len(page.List))
		envelope(w, http.StatusOK, 200, "success", page)
	}))
	r.Get("/products/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		product, ok := f.products[pathID(r)]
		if !ok {
			envelope(w, http.StatusNotFound, 404, "商品不存在", nil)
			return
		}
		envelope(w, http.StatusOK, 200, "success", product)
	}))
	r.Patch("/products/{id}/stock", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Stock int `json:"stock"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		product := f.products[pathID(r)]
		product.Stock = body.Stock
		f.products[pathID(r)] = product
		envelope(w, http.StatusOK, 200, "success", domain.StockUpdate{ID: product.ID, Stock: product.Stock})
	}))
	r.Delete("/products/{id}", f.authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.products, pathID(r))
		envelope(w, http.StatusOK, 200, "success", nil)
	}))
	return r
}

func (f *fakeBackend) changeBalance(w http.ResponseWriter, r *http.Request, sign int64) {
	var req domain.BalanceChange
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[pathID(r)]
	if !ok {
		envelope(w, http.StatusNotFound, 404, "客户不存在", nil)
		return
	}
	if sign < 0 && customer.BalanceCents < req.AmountCents {
		envelope(w, http.StatusOK, 4002, "余额不足", nil)
		return
	}
	customer.BalanceCents += sign * req.AmountCents
	f.customers[customer.ID] = customer
	envelope(w, http.StatusOK, 200, "success", customer)
}

type testEnv struct {
	api     *API
	handler http.Handler
	backend *fakeBackend
}

// newTestEnv wires the real client, service and API against a fake
// backend so handler tests exercise the complete request path.
func newTestEnv(t *testing.T, opts service.Options) testEnv {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.routes())
	t.Cleanup(srv.Close)

	client := upstream.New(srv.URL, 2*time.Second, zap.NewNop())
	svc := service.New(client, memory.New(), cache.NewMemoryCartStore(), cache.NewMemoryGuard(), zap.NewNop(), opts)
	auth := NewAuthManager("test-secret-key", time.Hour, svc)
	api := New(svc, auth, "*", zap.NewNop())
	return testEnv{api: api, handler: api.Handler(), backend: backend}
}

func (e testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d: %s", username, res.Code, res.Body.String())
	}
	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	return payload.AccessToken
}

func (e testEnv) csrf(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	if strings.TrimSpace(payload["csrfToken"]) == "" {
		t.Fatalf("expected non-empty csrfToken in response")
	}
	return payload["csrfToken"]
}

// call sends an authenticated request, adding the CSRF token to mutations.
func (e testEnv) call(t *testing.T, token string, method string, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set(csrfHeader, e.csrf(t))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	e.handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v (status %d)", err, res.Code)
	}
	return body
}

func (f *fakeBackend) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
}

func (f *fakeBackend) breakLedger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLedger = true
}

func (f *fakeBackend) counts() (records int, ledger int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.ledger
}

func (f *fakeBackend) sentSales() []domain.SaleCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SaleCreate(nil), f.sales...)
}

func (f *fakeBackend) balance(customerID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[customerID].BalanceCents
}

func (f *fakeBackend) hasProduct(productID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.products[productID]
	return ok
}
