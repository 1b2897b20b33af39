package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LightDreamhs/MyPetShop3.0/internal/checkout"
	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
)

const (
	DefaultNetIncomeDays = 7
	MaxNetIncomeDays     = 365
)

// NetIncome aggregates the ledger from the start of the day `days` ago to
// the end of today.
func (s *Service) NetIncome(ctx context.Context, days int) (domain.NetIncomeReport, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return domain.NetIncomeReport{}, err
	}
	if days == 0 {
		days = DefaultNetIncomeDays
	}
	if days < 1 || days > MaxNetIncomeDays {
		return domain.NetIncomeReport{}, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, MaxNetIncomeDays)
	}

	start, end := netIncomeWindow(s.now(), days)
	stats, err := s.upstream.Statistics(upCtx, start, end)
	if err != nil {
		return domain.NetIncomeReport{}, err
	}
	return domain.NetIncomeReport{Days: days, StartDate: start, EndDate: end, Statistics: stats}, nil
}

func netIncomeWindow(now time.Time, days int) (string, string) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -days)
	end := today.AddDate(0, 0, 1).Add(-time.Second)
	return start.Format(checkout.ServerDateTimeLayout), end.Format(checkout.ServerDateTimeLayout)
}

func (s *Service) MonthlyStatistics(ctx context.Context, year int) ([]domain.MonthlyStatistics, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("%w: year %d out of range", ErrInvalidInput, year)
	}
	return s.upstream.MonthlyStatistics(upCtx, year)
}

// CustomerOverview loads the profile and one page of consumption records
// concurrently.
func (s *Service) CustomerOverview(ctx context.Context, customerID int64, page int, pageSize int) (domain.CustomerOverview, error) {
	_, upCtx, err := s.session(ctx)
	if err != nil {
		return domain.CustomerOverview{}, err
	}

	var overview domain.CustomerOverview
	g, gctx := errgroup.WithContext(upCtx)
	g.Go(func() error {
		customer, err := s.upstream.GetCustomer(gctx, customerID)
		overview.Customer = customer
		return err
	})
	g.Go(func() error {
		records, err := s.upstream.ListConsumptionRecords(gctx, customerID, page, pageSize)
		overview.Records = records
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.CustomerOverview{}, err
	}
	return overview, nil
}
