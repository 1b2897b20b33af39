package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/money"
)

// BalanceAdvice compares a typed amount with the customer's balance. It is
// advisory: the upstream ledger makes the final decision on deduction.
func (s *Service) BalanceAdvice(ctx context.Context, customerID int64, amountInput string) (domain.BalanceAdvice, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return domain.BalanceAdvice{}, err
	}
	amount, _, err := money.ParseOptional(amountInput)
	if err != nil {
		return domain.BalanceAdvice{}, err
	}
	customer, err := s.upstream.GetCustomer(upCtx, customerID)
	if err != nil {
		return domain.BalanceAdvice{}, err
	}

	advice := domain.BalanceAdvice{
		CustomerID:   customer.ID,
		BalanceCents: customer.BalanceCents,
		AmountCents:  amount,
		Sufficient:   customer.BalanceCents >= amount,
	}
	switch {
	case !customer.IsMember():
		advice.Sufficient = false
		advice.Warning = "balance payment is only available to members"
	case !advice.Sufficient:
		advice.Warning = fmt.Sprintf("insufficient balance: %s available, %s required",
			money.Format(customer.BalanceCents), money.Format(amount))
	}
	return advice, nil
}

func (s *Service) RechargeBalance(ctx context.Context, customerID int64, req domain.BalanceChangeRequest) (domain.Customer, error) {
	return s.changeBalance(ctx, "balance_recharge", customerID, req, s.upstream.RechargeBalance)
}

// DeductBalance surfaces the upstream's rejection message unchanged, for
// example on insufficient balance.
func (s *Service) DeductBalance(ctx context.Context, customerID int64, req domain.BalanceChangeRequest) (domain.Customer, error) {
	return s.changeBalance(ctx, "balance_deduct", customerID, req, s.upstream.DeductBalance)
}

type balanceCall func(ctx context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error)

// changeBalance posts one mutation and re-reads the customer so the
// balance shown is always the ledger's.
func (s *Service) changeBalance(ctx context.Context, action string, customerID int64, req domain.BalanceChangeRequest, call balanceCall) (domain.Customer, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	amount, err := money.ParseRequired(req.Amount)
	if err != nil {
		return domain.Customer{}, err
	}

	updated, err := call(upCtx, customerID, domain.BalanceChange{
		AmountCents: amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, action, "customer", customerID, fmt.Sprintf("amount=%d", amount))

	refreshed, err := s.upstream.GetCustomer(upCtx, customerID)
	if err != nil {
		if updated.ID == customerID {
			return updated, nil
		}
		return domain.Customer{}, err
	}
	return refreshed, nil
}
