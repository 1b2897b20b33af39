// Package upstream is the REST client for the pet shop backend API. The
// backend owns customers, balances, the accounting ledger, inventory and
// sales; the console only calls it.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
)

type tokenContextKey struct{}

// WithToken attaches the operator's upstream access token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	return e.Code == 0 || e.Code == http.StatusOK
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: logger.Named("upstream")}
}

// do executes one request and decodes the envelope's data into out (which
// may be nil).
func (c *Client) do(ctx context.Context, op string, method string, path string, query map[string]string, body any, out any) error {
	req := c.http.R().SetContext(ctx)
	if token := tokenFromContext(ctx); token != "" {
		req.SetAuthToken(token)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return &RequestError{Kind: KindNetworkUnreachable, Op: op, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	status := resp.StatusCode()

	if status >= 300 || decodeErr != nil || !env.ok() {
		if decodeErr != nil && status < 300 {
			status = http.StatusBadGateway
		}
		reqErr := &RequestError{
			Kind:          classify(status, env.Code),
			Status:        status,
			Code:          env.Code,
			ServerMessage: env.Message,
			Op:            op,
			Err:           decodeErr,
		}
		c.logger.Info("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Int("code", env.Code),
			zap.String("message", env.Message),
		)
		return reqErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &RequestError{Kind: KindServerError, Status: status, Op: op, Err: fmt.Errorf("decode %s response: %w", op, err)}
	}
	return nil
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func pageQuery(page int, pageSize int) map[string]string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return map[string]string{"page": strconv.Itoa(page), "pageSize": strconv.Itoa(pageSize)}
}

type LoginResult struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
}

func (c *Client) Login(ctx context.Context, username string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil, map[string]string{"username": username}, &out)
	return out, err
}

func (c *Client) GetCustomer(ctx context.Context, customerID int64) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, "get customer", http.MethodGet, "/customers/"+id(customerID), nil, nil, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, customerID int64) error {
	return c.do(ctx, "delete customer", http.MethodDelete, "/customers/"+id(customerID), nil, nil, nil)
}

func (c *Client) ListConsumptionRecords(ctx context.Context, customerID int64, page int, pageSize int) (domain.Page[domain.ConsumptionRecord], error) {
	var out domain.Page[domain.ConsumptionRecord]
	err := c.do(ctx, "list consumption records", http.MethodGet, "/customers/"+id(customerID)+"/consumption-records", pageQuery(page, pageSize), nil, &out)
	return out, err
}

func (c *Client) CreateConsumptionRecord(ctx context.Context, customerID int64, req domain.ConsumptionRecordCreate) (domain.ConsumptionRecord, error) {
	var out domain.ConsumptionRecord
	err := c.do(ctx, "create consumption record", http.MethodPost, "/customers/"+id(customerID)+"/consumption-records", nil, req, &out)
	return out, err
}

func (c *Client) DeleteConsumptionRecord(ctx context.Context, recordID int64) error {
	return c.do(ctx, "delete consumption record", http.MethodDelete, "/consumption-records/"+id(recordID), nil, nil, nil)
}

func (c *Client) CreateLedgerEntry(ctx context.Context, req domain.LedgerEntryCreate) (domain.LedgerEntry, error) {
	var out domain.LedgerEntry
	err := c.do(ctx, "create ledger entry", http.MethodPost, "/transactions", nil, req, &out)
	return out, err
}

func (c *Client) DeleteLedgerEntry(ctx context.Context, entryID int64) error {
	return c.do(ctx, "delete ledger entry", http.MethodDelete, "/transactions/"+id(entryID), nil, nil, nil)
}

// Statistics aggregates the ledger between start and end, both formatted
// as "yyyy-MM-dd HH:mm:ss".
func (c *Client) Statistics(ctx context.Context, start string, end string) (domain.Statistics, error) {
	var out domain.Statistics
	query := map[string]string{}
	if start != "" {
		query["startDate"] = start
	}
	if end != "" {
		query["endDate"] = end
	}
	err := c.do(ctx, "transaction statistics", http.MethodGet, "/transactions/statistics", query, nil, &out)
	return out, err
}

func (c *Client) MonthlyStatistics(ctx context.Context, year int) ([]domain.MonthlyStatistics, error) {
	var out []domain.MonthlyStatistics
	err := c.do(ctx, "monthly statistics", http.MethodGet, "/transactions/monthly-statistics", map[string]string{"year": strconv.Itoa(year)}, nil, &out)
	return out, err
}

func (c *Client) DeductBalance(ctx context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, "deduct balance", http.MethodPost, "/customers/"+id(customerID)+"/balance/deduct", nil, req, &out)
	return out, err
}

func (c *Client) RechargeBalance(ctx context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, "recharge balance", http.MethodPost, "/customers/"+id(customerID)+"/balance/recharge", nil, req, &out)
	return out, err
}

func (c *Client) CreateSale(ctx context.Context, req domain.SaleCreate) (domain.Sale, error) {
	var out domain.Sale
	err := c.do(ctx, "create sale", http.MethodPost, "/sales", nil, req, &out)
	return out, err
}

func (c *Client) ListProducts(ctx context.Context, page int, pageSize int, search string) (domain.Page[domain.Product], error) {
	var out domain.Page[domain.Product]
	query := pageQuery(page, pageSize)
	if search != "" {
		query["search"] = search
	}
	err := c.do(ctx, "list products", http.MethodGet, "/products", query, nil, &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, "get product", http.MethodGet, "/products/"+id(productID), nil, nil, &out)
	return out, err
}

func (c *Client) UpdateStock(ctx context.Context, productID int64, stock int) (domain.StockUpdate, error) {
	var out domain.StockUpdate
	err := c.do(ctx, "update stock", http.MethodPatch, "/products/"+id(productID)+"/stock", nil, map[string]int{"stock": stock}, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	return c.do(ctx, "delete product", http.MethodDelete, "/products/"+id(productID), nil, nil, nil)
}
