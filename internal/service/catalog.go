package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/stock"
)

// AdjustStock moves a product's stock by delta (+1 or -1), reading the
// current value from the upstream first.
func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int, list stock.ListQuery) (domain.StockAdjustResponse, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}
	var adjust func(context.Context, int64, int, stock.ListQuery) (domain.StockAdjustResponse, error)
	switch delta {
	case 1:
		adjust = s.stock.Increment
	case -1:
		adjust = s.stock.Decrement
	default:
		return domain.StockAdjustResponse{}, stock.ErrInvalidDelta
	}
	product, err := s.upstream.GetProduct(upCtx, productID)
	if err != nil {
		return domain.StockAdjustResponse{}, err
	}
	return adjust(upCtx, productID, product.Stock, list)
}

func (s *Service) DeleteCustomer(ctx context.Context, customerID int64, req domain.DeleteRequest) error {
	return s.destroy(ctx, "customer", customerID, req, s.upstream.DeleteCustomer)
}

func (s *Service) DeleteProduct(ctx context.Context, productID int64, req domain.DeleteRequest) error {
	return s.destroy(ctx, "product", productID, req, s.upstream.DeleteProduct)
}

func (s *Service) DeleteConsumptionRecord(ctx context.Context, recordID int64, req domain.DeleteRequest) error {
	return s.destroy(ctx, "consumption_record", recordID, req, s.upstream.DeleteConsumptionRecord)
}

func (s *Service) DeleteLedgerEntry(ctx context.Context, entryID int64, req domain.DeleteRequest) error {
	return s.destroy(ctx, "ledger_entry", entryID, req, s.upstream.DeleteLedgerEntry)
}

// destroy runs a delete only after explicit confirmation and, when one is
// configured, a matching manager PIN.
func (s *Service) destroy(ctx context.Context, entityType string, id int64, req domain.DeleteRequest, del func(context.Context, int64) error) error {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return err
	}
	if !req.Confirm {
		return ErrConfirmationRequired
	}
	if err := s.VerifyManagerPIN(req.ManagerPIN); err != nil {
		return err
	}
	if err := del(upCtx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", entityType, id, "")
	return nil
}

// VerifyManagerPIN accepts any PIN when none is configured.
func (s *Service) VerifyManagerPIN(pin string) error {
	if len(s.pinHash) == 0 {
		return nil
	}
	if pin == "" || bcrypt.CompareHashAndPassword(s.pinHash, []byte(pin)) != nil {
		return ErrInvalidManagerPIN
	}
	return nil
}

func (s *Service) ManagerPINRequired() bool {
	return len(s.pinHash) > 0
}
