package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/checkout"
	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
)

// SubmitService records a service visit. idempotencyKey may be empty, in
// which case repeat submissions are not detected.
func (s *Service) SubmitService(ctx context.Context, req domain.ServiceCheckoutRequest, idempotencyKey string) (checkout.Result, error) {
	actor, upCtx, err := s.session(ctx)
	if err != nil {
		return checkout.Result{}, err
	}
	idempotencyKey = submissionKey(actor.Username, idempotencyKey)
	if err := s.guard.Acquire(ctx, idempotencyKey, s.guardTTL); err != nil {
		return checkout.Result{}, err
	}

	sub := checkout.ServiceSubmission{
		CustomerID:        req.CustomerID,
		Date:              req.Date,
		Item:              req.Item,
		Problem:           req.Problem,
		Suggestion:        req.Suggestion,
		AmountInput:       req.Amount,
		RecordTransaction: req.RecordTransaction,
		UseBalance:        req.UseBalance,
	}
	result, err := s.checkout.Submit(upCtx, sub)
	customerID := req.CustomerID
	s.afterSubmit(ctx, actor, idempotencyKey, &customerID, result)
	return result, err
}

// SubmitProducts sells the operator's session cart. The cart is cleared
// only once the sale is committed.
func (s *Service) SubmitProducts(ctx context.Context, req domain.ProductCheckoutRequest, idempotencyKey string) (checkout.Result, error) {
	actor, upCtx, err := s.session(ctx)
	if err != nil {
		return checkout.Result{}, err
	}
	c, err := s.carts.Get(ctx, actor.Username)
	if err != nil {
		return checkout.Result{}, err
	}
	idempotencyKey = submissionKey(actor.Username, idempotencyKey)
	if err := s.guard.Acquire(ctx, idempotencyKey, s.guardTTL); err != nil {
		return checkout.Result{}, err
	}

	result, err := s.checkout.Submit(upCtx, checkout.ProductSubmission{
		CustomerID:         req.CustomerID,
		CustomerName:       req.CustomerName,
		Cart:               c,
		ManualTotalInput:   req.ManualTotal,
		SaleDate:           req.SaleDate,
		RecordToAccounting: req.RecordToAccounting,
		UseBalance:         req.UseBalance,
	})
	s.afterSubmit(ctx, actor, idempotencyKey, req.CustomerID, result)

	if result.State == checkout.StateCommitted {
		if clearErr := s.carts.Delete(ctx, actor.Username); clearErr != nil {
			s.logger.Warn("clear cart after sale failed", zap.String("operator", actor.Username), zap.Error(clearErr))
		}
	}
	return result, err
}

// submissionKey scopes a client idempotency key to the operator. An empty
// key stays empty so no deduplication happens.
func submissionKey(operator string, key string) string {
	if key == "" {
		return ""
	}
	return operator + ":" + key
}

// afterSubmit frees the idempotency key when nothing was written and
// journals every attempt that reached the upstream.
func (s *Service) afterSubmit(ctx context.Context, actor domain.Actor, idempotencyKey string, customerID *int64, result checkout.Result) {
	switch result.State {
	case checkout.StateRejected, checkout.StateFailed, checkout.StateIdle, checkout.StateValidating:
		if err := s.guard.Release(ctx, idempotencyKey); err != nil {
			s.logger.Warn("release submission key failed", zap.Error(err))
		}
	}
	switch result.State {
	case checkout.StateRejected, checkout.StateIdle, checkout.StateValidating:
		return
	}

	entry := domain.JournalEntry{
		ID:          result.ID,
		Operator:    actor.Username,
		Mode:        string(result.Mode),
		CustomerID:  customerID,
		AmountCents: result.AmountCents,
		State:       result.State.String(),
		Committed:   make([]string, 0, len(result.Committed)),
		Failed:      make([]string, 0, len(result.Failed)),
		Warnings:    append([]string{}, result.Warnings...),
		CreatedAt:   time.Now().UTC(),
	}
	for _, step := range result.Committed {
		entry.Committed = append(entry.Committed, string(step))
	}
	for _, failure := range result.Failed {
		entry.Failed = append(entry.Failed, string(failure.Step))
	}
	if _, err := s.repo.CreateJournalEntry(ctx, entry); err != nil {
		s.logger.Warn("write checkout journal failed", zap.String("checkout_id", result.ID), zap.Error(err))
	}
}

func (s *Service) ListJournal(ctx context.Context, query domain.JournalQuery) ([]domain.JournalEntry, error) {
	if _, _, err := s.adminSession(ctx); err != nil {
		return nil, err
	}
	if query.State != "" && !knownState(checkout.State(query.State)) {
		return nil, fmt.Errorf("%w: unknown checkout state %q", ErrInvalidInput, query.State)
	}
	return s.repo.ListJournal(ctx, query)
}

func knownState(state checkout.State) bool {
	switch state {
	case checkout.StateCommitted, checkout.StatePartiallyCommitted, checkout.StateFailed:
		return true
	}
	return false
}
