// Package stock adjusts a single product's inventory by one unit outside
// of any checkout.
package stock

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
)

var ErrInvalidDelta = errors.New("stock delta must be +1 or -1")

type Inventory interface {
	UpdateStock(ctx context.Context, productID int64, stock int) (domain.StockUpdate, error)
	ListProducts(ctx context.Context, page int, pageSize int, search string) (domain.Page[domain.Product], error)
}

// ListQuery is the product list view to re-fetch after an adjustment.
type ListQuery struct {
	Page     int
	PageSize int
	Search   string
}

type Adjuster struct {
	inventory Inventory
	logger    *zap.Logger
}

func NewAdjuster(inventory Inventory, logger *zap.Logger) *Adjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adjuster{inventory: inventory, logger: logger.Named("stock")}
}

func (a *Adjuster) Increment(ctx context.Context, productID int64, current int, list ListQuery) (domain.StockAdjustResponse, error) {
	return a.Adjust(ctx, productID, current, 1, list)
}

// Decrement is a no-op at zero stock: no request is sent.
func (a *Adjuster) Decrement(ctx context.Context, productID int64, current int, list ListQuery) (domain.StockAdjustResponse, error) {
	return a.Adjust(ctx, productID, current, -1, list)
}

// Adjust writes max(0, current+delta) and re-fetches the product list.
func (a *Adjuster) Adjust(ctx context.Context, productID int64, current int, delta int, list ListQuery) (domain.StockAdjustResponse, error) {
	if delta != 1 && delta != -1 {
		return domain.StockAdjustResponse{}, ErrInvalidDelta
	}
	current = max(current, 0)
	next := max(current+delta, 0)
	if next == current {
		return domain.StockAdjustResponse{ProductID: productID, Adjusted: false, Stock: current}, nil
	}

	updated, err := a.inventory.UpdateStock(ctx, productID, next)
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}
	stock := next
	if updated.ID == productID {
		stock = updated.Stock
	}
	a.logger.Info("stock adjusted", zap.Int64("product_id", productID), zap.Int("from", current), zap.Int("to", stock))

	resp := domain.StockAdjustResponse{ProductID: productID, Adjusted: true, Stock: stock}
	products, err := a.inventory.ListProducts(ctx, list.Page, list.PageSize, list.Search)
	if err != nil {
		// the write already happened; report it without the refreshed list
		a.logger.Warn("refresh product list failed", zap.Error(err))
		return resp, nil
	}
	resp.Products = &products
	return resp, nil
}
