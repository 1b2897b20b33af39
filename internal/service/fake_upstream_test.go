package service

import (
	"context"
	"sync"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

// fakeUpstream is an in-memory pet shop backend.
type fakeUpstream struct {
	mu        sync.Mutex
	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	records   []domain.ConsumptionRecordCreate
	ledger    []domain.LedgerEntryCreate
	sales     []domain.SaleCreate
	deleted   []string
	calls     map[string]int
	statsArgs [2]string
	year      int

	failLedger error
	failSale   error
}

func newFakeUpstream() *fakeUpstream {
	price := int64(1250)
	return &fakeUpstream{
		customers: map[int64]domain.Customer{
			7: {ID: 7, PetName: "Mimi", OwnerName: "Lee", Phone: "13800000000", MemberLevel: 2, BalanceCents: 5000},
			8: {ID: 8, PetName: "Bobo", OwnerName: "Wang", Phone: "13900000000", MemberLevel: 0},
		},
		products: map[int64]domain.Product{
			1: {ID: 1, Name: "Cat Food", PriceCents: &price, Stock: 4},
			2: {ID: 2, Name: "Custom Collar", Stock: 0},
		},
		calls: map[string]int{},
	}
}

func (f *fakeUpstream) called(name string) {
	f.calls[name]++
}

func (f *fakeUpstream) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func notFound(op string) error {
	return &upstream.RequestError{Kind: upstream.KindNotFound, Status: 404, Op: op}
}

func (f *fakeUpstream) Login(_ context.Context, username string) (upstream.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("Login")
	return upstream.LoginResult{User: domain.User{ID: 1, Username: username, Role: domain.RoleAdmin}, AccessToken: "up-" + username, ExpiresIn: 3600}, nil
}

func (f *fakeUpstream) GetCustomer(_ context.Context, customerID int64) (domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("GetCustomer")
	customer, ok := f.customers[customerID]
	if !ok {
		return domain.Customer{}, notFound("get customer")
	}
	return customer, nil
}

func (f *fakeUpstream) DeleteCustomer(_ context.Context, customerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("DeleteCustomer")
	if _, ok := f.customers[customerID]; !ok {
		return notFound("delete customer")
	}
	delete(f.customers, customerID)
	f.deleted = append(f.deleted, "customer")
	return nil
}

func (f *fakeUpstream) ListConsumptionRecords(_ context.Context, customerID int64, page int, pageSize int) (domain.Page[domain.ConsumptionRecord], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("ListConsumptionRecords")
	out := domain.Page[domain.ConsumptionRecord]{Page: page, PageSize: pageSize}
	for i, rec := range f.records {
		out.List = append(out.List, domain.ConsumptionRecord{ID: int64(i + 1), CustomerID: customerID, Item: rec.Item, Date: rec.Date})
	}
	out.Total = int64(len(out.List))
	return out, nil
}

func (f *fakeUpstream) CreateConsumptionRecord(_ context.Context, customerID int64, req domain.ConsumptionRecordCreate) (domain.ConsumptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("CreateConsumptionRecord")
	f.records = append(f.records, req)
	return domain.ConsumptionRecord{ID: int64(len(f.records)), CustomerID: customerID, Item: req.Item, Date: req.Date, AmountCents: req.AmountCents}, nil
}

func (f *fakeUpstream) DeleteConsumptionRecord(_ context.Context, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("DeleteConsumptionRecord")
	f.deleted = append(f.deleted, "consumption_record")
	return nil
}

func (f *fakeUpstream) CreateLedgerEntry(_ context.Context, req domain.LedgerEntryCreate) (domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("CreateLedgerEntry")
	if f.failLedger != nil {
		return domain.LedgerEntry{}, f.failLedger
	}
	f.ledger = append(f.ledger, req)
	return domain.LedgerEntry{ID: int64(len(f.ledger)), Type: req.Type, AmountCents: req.AmountCents, Description: req.Description, Date: req.Date}, nil
}

func (f *fakeUpstream) DeleteLedgerEntry(_ context.Context, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("DeleteLedgerEntry")
	f.deleted = append(f.deleted, "ledger_entry")
	return nil
}

func (f *fakeUpstream) Statistics(_ context.Context, start string, end string) (domain.Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("Statistics")
	f.statsArgs = [2]string{start, end}
	return domain.Statistics{TotalIncomeCents: 10000, TotalExpenseCents: 2500, NetIncomeCents: 7500}, nil
}

func (f *fakeUpstream) MonthlyStatistics(_ context.Context, year int) ([]domain.MonthlyStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("MonthlyStatistics")
	f.year = year
	return []domain.MonthlyStatistics{{YearMonth: "2026-01", NetIncomeCents: 100}}, nil
}

func (f *fakeUpstream) DeductBalance(_ context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("DeductBalance")
	customer, ok := f.customers[customerID]
	if !ok {
		return domain.Customer{}, notFound("deduct balance")
	}
	if customer.BalanceCents < req.AmountCents {
		return domain.Customer{}, &upstream.RequestError{Kind: upstream.KindRejected, Status: 200, Code: 4002, ServerMessage: "余额不足", Op: "deduct balance"}
	}
	customer.BalanceCents -= req.AmountCents
	f.customers[customerID] = customer
	return customer, nil
}

func (f *fakeUpstream) RechargeBalance(_ context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("RechargeBalance")
	customer, ok := f.customers[customerID]
	if !ok {
		return domain.Customer{}, notFound("recharge balance")
	}
	customer.BalanceCents += req.AmountCents
	f.customers[customerID] = customer
	return customer, nil
}

func (f *fakeUpstream) CreateSale(_ context.Context, req domain.SaleCreate) (domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("CreateSale")
	if f.failSale != nil {
		return domain.Sale{}, f.failSale
	}
	f.sales = append(f.sales, req)
	return domain.Sale{ID: int64(len(f.sales)), TotalAmountCents: req.TotalAmountCents, SaleDate: req.SaleDate}, nil
}

func (f *fakeUpstream) ListProducts(_ context.Context, page int, pageSize int, _ string) (domain.Page[domain.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("ListProducts")
	out := domain.Page[domain.Product]{Page: page, PageSize: pageSize}
	for _, id := range []int64{1, 2} {
		if p, ok := f.products[id]; ok {
			out.List = append(out.List, p)
		}
	}
	out.Total = int64(len(out.List))
	return out, nil
}

func (f *fakeUpstream) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("GetProduct")
	product, ok := f.products[productID]
	if !ok {
		return domain.Product{}, notFound("get product")
	}
	return product, nil
}

func (f *fakeUpstream) UpdateStock(_ context.Context, productID int64, stock int) (domain.StockUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("UpdateStock")
	product, ok := f.products[productID]
	if !ok {
		return domain.StockUpdate{}, notFound("update stock")
	}
	product.Stock = stock
	f.products[productID] = product
	return domain.StockUpdate{ID: productID, Stock: stock}, nil
}

func (f *fakeUpstream) DeleteProduct(_ context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called("DeleteProduct")
	delete(f.products, productID)
	f.deleted = append(f.deleted, "product")
	return nil
}
