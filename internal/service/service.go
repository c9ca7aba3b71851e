package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/cache"
	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/lock"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/numbering"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

var (
	ErrUserRequired           = errors.New("user id and business id are required")
	ErrInvalidID              = errors.New("invalid id")
	ErrNotFoundOrUnauthorized = errors.New("document not found or unauthorized")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrInvalidInput           = errors.New("invalid input")
)

// ValidationError carries the offending fields of a rejected request.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
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
	Logger        *logrus.Logger
	PartyCache    cache.PartyCache
	PartyCacheTTL time.Duration
	Locker        lock.Locker
	Clock         func() time.Time
}

type Service struct {
	repo       store.Repository
	numbers    *numbering.Allocator
	partyCache cache.PartyCache
	partyTTL   time.Duration
	locker     lock.Locker
	log        *logrus.Logger
	validate   *validator.Validate
	now        func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.PartyCache == nil {
		opts.PartyCache = cache.NoopPartyCache{}
	}
	if opts.PartyCacheTTL <= 0 {
		opts.PartyCacheTTL = 5 * time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:       repo,
		numbers:    numbering.New(repo),
		partyCache: opts.PartyCache,
		partyTTL:   opts.PartyCacheTTL,
		locker:     opts.Locker,
		log:        opts.Logger,
		validate:   newValidator(),
		now:        opts.Clock,
	}
}

func requireUser(user domain.Actor) error {
	if user.UserID == "" || user.BusinessID == "" {
		return ErrUserRequired
	}
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, user domain.Actor, limit int) ([]domain.AuditLog, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, user.BusinessID, limit)
}

func (s *Service) logAudit(ctx context.Context, user domain.Actor, action string, entityType string, entityID string, detail string) {
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New(),
		BusinessID: user.BusinessID,
		UserID:     user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		logging.LogWarn(s.log, "audit", "logAudit", "failed to write audit log", logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}, err)
	}
}
