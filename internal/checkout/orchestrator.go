// Package checkout turns a validated console submission into the ordered
// upstream writes it needs and reports how far the sequence got.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/money"
	"github.com/LightDreamhs/MyPetShop3.0/internal/xid"
)

// Backend is the subset of the upstream client a checkout writes to.
type Backend interface {
	GetCustomer(ctx context.Context, customerID int64) (domain.Customer, error)
	CreateConsumptionRecord(ctx context.Context, customerID int64, req domain.ConsumptionRecordCreate) (domain.ConsumptionRecord, error)
	CreateLedgerEntry(ctx context.Context, req domain.LedgerEntryCreate) (domain.LedgerEntry, error)
	DeductBalance(ctx context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error)
	CreateSale(ctx context.Context, req domain.SaleCreate) (domain.Sale, error)
}

type Result struct {
	ID          string        `json:"id"`
	Mode        Mode          `json:"mode"`
	State       State         `json:"state"`
	AmountCents int64         `json:"amount"`
	Committed   []StepName    `json:"committed"`
	Failed      []StepFailure `json:"failed"`
	Skipped     []StepName    `json:"skipped"`
	Warnings    []string      `json:"warnings"`

	Record   *domain.ConsumptionRecord `json:"record,omitempty"`
	Ledger   *domain.LedgerEntry       `json:"ledger,omitempty"`
	Customer *domain.Customer          `json:"customer,omitempty"`
	Sale     *domain.Sale              `json:"sale,omitempty"`
	// ComputedTotalCents is the cart sum shown next to the manual total.
	ComputedTotalCents *int64 `json:"computedTotal,omitempty"`
}

type Orchestrator struct {
	backend Backend
	logger  *zap.Logger
}

func New(backend Backend, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{backend: backend, logger: logger.Named("checkout")}
}

// attempt tracks one submission through the state machine.
type attempt struct {
	result *Result
	logger *zap.Logger
}

func (a *attempt) advance(next State) error {
	if !a.result.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.result.State, next)
	}
	a.logger.Debug("state", zap.String("from", a.result.State.String()), zap.String("to", next.String()))
	a.result.State = next
	return nil
}

// Submit validates sub and, when valid, runs its upstream writes. The
// returned error is non-nil for Rejected and Failed results; a
// PartiallyCommitted result carries warnings instead.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Result, error) {
	result := &Result{ID: xid.New("co"), State: StateIdle}
	a := &attempt{result: result, logger: o.logger.With(zap.String("checkout_id", result.ID))}
	if err := a.advance(StateValidating); err != nil {
		return *result, err
	}

	var steps []Step
	var finish func(outcome)
	switch s := sub.(type) {
	case ServiceSubmission:
		result.Mode = ModeService
		v, err := validateService(s)
		if err != nil {
			return o.reject(a, err)
		}
		steps, finish = o.planService(v, result)
	case ProductSubmission:
		result.Mode = ModeProduct
		v, err := validateProduct(s)
		if err != nil {
			return o.reject(a, err)
		}
		steps, finish = o.planProduct(v, result)
	default:
		return o.reject(a, invalid("mode", ErrUnsupportedMode))
	}

	if err := a.advance(StateSubmitting); err != nil {
		return *result, err
	}
	out := runSteps(ctx, steps)
	result.Committed = out.committed
	result.Failed = out.failed
	result.Skipped = out.skipped

	if out.fatal != nil {
		if err := a.advance(StateFailed); err != nil {
			return *result, err
		}
		a.logger.Warn("checkout failed", zap.String("mode", string(result.Mode)), zap.Error(out.fatal))
		return *result, out.fatal
	}
	finish(out)

	next := StateCommitted
	if len(out.failed) > 0 || len(out.skipped) > 0 {
		next = StatePartiallyCommitted
	}
	if err := a.advance(next); err != nil {
		return *result, err
	}
	a.logger.Info("checkout finished",
		zap.String("mode", string(result.Mode)),
		zap.String("state", result.State.String()),
		zap.Int64("amount", result.AmountCents),
		zap.Int("warnings", len(result.Warnings)),
	)
	return *result, nil
}

func (o *Orchestrator) reject(a *attempt, err error) (Result, error) {
	if advErr := a.advance(StateRejected); advErr != nil {
		return *a.result, errors.Join(err, advErr)
	}
	a.logger.Info("checkout rejected", zap.Error(err))
	return *a.result, err
}

func (o *Orchestrator) planService(v validService, result *Result) ([]Step, func(outcome)) {
	result.AmountCents = v.amountCents
	var amount *int64
	if v.hasAmount {
		cents := v.amountCents
		amount = &cents
	}

	steps := []Step{{
		Name:     StepCreateRecord,
		Required: true,
		Run: func(ctx context.Context) error {
			record, err := o.backend.CreateConsumptionRecord(ctx, v.CustomerID, domain.ConsumptionRecordCreate{
				Date:        v.date,
				Item:        v.Item,
				Problem:     v.Problem,
				Suggestion:  v.Suggestion,
				AmountCents: amount,
			})
			if err != nil {
				return err
			}
			result.Record = &record
			return nil
		},
	}}

	if v.hasAmount && v.RecordTransaction {
		steps = append(steps, Step{
			Name:          StepPostLedger,
			HaltOnFailure: true,
			Run: func(ctx context.Context) error {
				customer, err := o.backend.GetCustomer(ctx, v.CustomerID)
				if err != nil {
					o.logger.Warn("load customer for ledger entry failed", zap.Int64("customer_id", v.CustomerID), zap.Error(err))
					return fmt.Errorf("%w: %w", errStepSkipped, err)
				}
				entry, err := o.backend.CreateLedgerEntry(ctx, domain.LedgerEntryCreate{
					Type:        domain.LedgerIncome,
					AmountCents: v.amountCents,
					Description: ledgerDescription(customer, v.Item, v.amountCents),
					Date:        v.date,
				})
				if err != nil {
					return err
				}
				result.Ledger = &entry
				return nil
			},
		})
	}

	if v.hasAmount && v.UseBalance {
		steps = append(steps, Step{
			Name: StepDeductBalance,
			Run: func(ctx context.Context) error {
				customer, err := o.backend.DeductBalance(ctx, v.CustomerID, domain.BalanceChange{
					AmountCents: v.amountCents,
					Description: "消费: " + v.Item,
				})
				if err != nil {
					return err
				}
				result.Customer = &customer
				return nil
			},
		})
	}

	finish := func(out outcome) {
		if out.wasSkipped(StepPostLedger) {
			result.Warnings = append(result.Warnings, "consumption record created, but the ledger entry was not posted because the customer could not be loaded")
		}
		if f, failed := out.failure(StepPostLedger); failed {
			result.Warnings = append(result.Warnings, "consumption record created, but posting to the ledger failed: "+f.Message)
		}
		if out.wasSkipped(StepDeductBalance) {
			result.Warnings = append(result.Warnings, "balance deduction skipped because ledger posting failed")
		}
		if f, failed := out.failure(StepDeductBalance); failed {
			result.Warnings = append(result.Warnings, "consumption record created, but balance deduction failed: "+f.Message)
		}
	}
	return steps, finish
}

func (o *Orchestrator) planProduct(v validProduct, result *Result) ([]Step, func(outcome)) {
	result.AmountCents = v.totalCents
	computed := v.Cart.ComputedTotal()
	result.ComputedTotalCents = &computed

	req := domain.SaleCreate{
		CustomerID:         v.CustomerID,
		CustomerName:       v.CustomerName,
		Items:              v.Cart.SaleItems(),
		TotalAmountCents:   v.totalCents,
		SaleDate:           v.saleDate,
		RecordToAccounting: v.RecordToAccounting,
		UseBalance:         v.UseBalance,
	}
	steps := []Step{{
		Name:     StepCreateSale,
		Required: true,
		Run: func(ctx context.Context) error {
			sale, err := o.backend.CreateSale(ctx, req)
			if err != nil {
				return err
			}
			result.Sale = &sale
			return nil
		},
	}}
	return steps, func(outcome) {}
}

func ledgerDescription(customer domain.Customer, item string, cents int64) string {
	return fmt.Sprintf("%s-%s-%s元-%s", customer.PetName, item, money.Format(cents), customer.Phone)
}
