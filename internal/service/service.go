package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cache"
	"github.com/LightDreamhs/MyPetShop3.0/internal/checkout"
	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/stock"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
	"github.com/LightDreamhs/MyPetShop3.0/internal/xid"
)

var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("admin role required")
	ErrConfirmationRequired = errors.New("destructive action requires confirmation")
	ErrInvalidManagerPIN    = errors.New("invalid manager pin")
	ErrInvalidInput         = errors.New("invalid input")
)

// Upstream is everything the console asks of the pet shop backend.
type Upstream interface {
	checkout.Backend
	stock.Inventory

	Login(ctx context.Context, username string) (upstream.LoginResult, error)
	GetCustomer(ctx context.Context, customerID int64) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, customerID int64) error
	ListConsumptionRecords(ctx context.Context, customerID int64, page int, pageSize int) (domain.Page[domain.ConsumptionRecord], error)
	DeleteConsumptionRecord(ctx context.Context, recordID int64) error
	DeleteLedgerEntry(ctx context.Context, entryID int64) error
	Statistics(ctx context.Context, start string, end string) (domain.Statistics, error)
	MonthlyStatistics(ctx context.Context, year int) ([]domain.MonthlyStatistics, error)
	RechargeBalance(ctx context.Context, customerID int64, req domain.BalanceChange) (domain.Customer, error)
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// GuardTTL is how long an Idempotency-Key blocks a repeat submission.
	GuardTTL time.Duration
	// ManagerPINHash is a bcrypt hash; empty disables the PIN check on deletes.
	ManagerPINHash []byte
	Now            func() time.Time
}

type Service struct {
	upstream Upstream
	repo     store.Repository
	carts    cache.CartStore
	guard    cache.SubmissionGuard
	checkout *checkout.Orchestrator
	stock    *stock.Adjuster
	logger   *zap.Logger

	guardTTL time.Duration
	pinHash  []byte
	now      func() time.Time
}

func New(up Upstream, repo store.Repository, carts cache.CartStore, guard cache.SubmissionGuard, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = cache.NoopGuard{}
	}
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		upstream: up,
		repo:     repo,
		carts:    carts,
		guard:    guard,
		checkout: checkout.New(up, logger),
		stock:    stock.NewAdjuster(up, logger),
		logger:   logger.Named("service"),
		guardTTL: opts.GuardTTL,
		pinHash:  opts.ManagerPINHash,
		now:      opts.Now,
	}
}

// HashPIN prepares a manager PIN for Options.ManagerPINHash.
func HashPIN(pin string) ([]byte, error) {
	if strings.TrimSpace(pin) == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
}

func (s *Service) Login(ctx context.Context, username string) (upstream.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return upstream.LoginResult{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	result, err := s.upstream.Login(ctx, username)
	if err != nil {
		return upstream.LoginResult{}, err
	}
	if result.AccessToken == "" {
		return upstream.LoginResult{}, &upstream.RequestError{Kind: upstream.KindServerError, Op: "login", ServerMessage: "login response carried no access token"}
	}
	return result, nil
}

// session returns the actor and a context carrying its upstream token.
func (s *Service) session(ctx context.Context) (domain.Actor, context.Context, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, ctx, ErrUnauthenticated
	}
	return actor, upstream.WithToken(ctx, actor.UpstreamToken), nil
}

func (s *Service) adminSession(ctx context.Context) (domain.Actor, context.Context, error) {
	actor, ctx, err := s.session(ctx)
	if err != nil {
		return actor, ctx, err
	}
	if actor.Role != domain.RoleAdmin {
		return actor, ctx, ErrForbidden
	}
	return actor, ctx, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID int64, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("write audit log failed",
			zap.String("action", action),
			zap.String("entity", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, _, err := s.adminSession(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}
