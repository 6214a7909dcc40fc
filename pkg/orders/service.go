// Package orders implements order intake and the key-gated admin operations
// on top of the record store.
package orders

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/preorder/pkg/config"
	"github.com/example/preorder/pkg/metrics"
	"github.com/example/preorder/pkg/models"
	"github.com/example/preorder/pkg/repository"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidOrder = errors.New("name and order are required")
)

// Store is the whole-document record store.
type Store interface {
	Load() ([]models.Order, error)
	Save(orders []models.Order) error
	Sequence() (int, error)
	SetSequence(n int) error
}

type SummaryCache interface {
	GetSummaries(ctx context.Context) ([]models.UserSummary, bool, error)
	SetSummaries(ctx context.Context, summaries []models.UserSummary) error
	InvalidateSummaries(ctx context.Context) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

type Option func(*Service)

func WithCache(c SummaryCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithAudit(a AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

// WithClock overrides the time source used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	adminKey    string
	serviceName string
	timeout     time.Duration

	store    Store
	cache    SummaryCache
	audit    AuditLogger
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	system *actor.ActorSystem
	writer *actor.PID
	audits sync.WaitGroup
}

// submission is the trimmed intake form.
type submission struct {
	Name  string `validate:"required"`
	Order string `validate:"required"`
	Notes string
}

func NewService(cfg *config.Config, store Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		adminKey:    cfg.Admin.Key,
		serviceName: cfg.Server.Name,
		timeout:     cfg.Writer.RequestTimeout,
		store:       store,
		logger:      logger,
		validate:    validator.New(),
		now:         time.Now,
		system:      actor.NewActorSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return &writerActor{store: store, cache: s.cache, logger: logger.Named("writer")}
	})
	s.writer = s.system.Root.Spawn(props)

	return s
}

// Close stops the writer actor and waits for pending audit writes.
func (s *Service) Close() {
	s.system.Root.Stop(s.writer)
	s.audits.Wait()
}

// Authorize compares key with the configured admin secret.
func (s *Service) Authorize(key string) error {
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Submit validates and appends a new order. Blank name or order yields
// ErrInvalidOrder and leaves the store untouched.
func (s *Service) Submit(ctx context.Context, name, order, notes string) (*models.Order, error) {
	sub := submission{
		Name:  strings.TrimSpace(name),
		Order: strings.TrimSpace(order),
		Notes: strings.TrimSpace(notes),
	}
	if err := s.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	res, err := s.request(ctx, &appendOrder{
		Name:      sub.Name,
		Order:     sub.Order,
		Notes:     sub.Notes,
		Timestamp: s.now().Format(models.TimestampLayout),
	})
	if err != nil {
		return nil, err
	}

	created := res.Created
	s.logger.Info("Order submitted",
		zap.Int("id", created.ID),
		zap.String("name", created.Name))
	s.recordAudit("submit_order", strconv.Itoa(created.ID), bson.M{
		"name":  created.Name,
		"order": created.Order,
	})
	return created, nil
}

// List returns every order in store order.
func (s *Service) List(ctx context.Context, key string) ([]models.Order, error) {
	if err := s.Authorize(key); err != nil {
		return nil, err
	}
	return s.store.Load()
}

// Delete removes the first order with the given id. An unknown id is not an
// error; the returned slice is the store content afterwards.
func (s *Service) Delete(ctx context.Context, key string, id int) ([]models.Order, error) {
	if err := s.Authorize(key); err != nil {
		return nil, err
	}

	res, err := s.request(ctx, &deleteOrder{ID: id})
	if err != nil {
		return nil, err
	}

	if res.Removed {
		s.logger.Info("Order deleted", zap.Int("id", id))
		s.recordAudit("delete_order", strconv.Itoa(id), bson.M{"remaining": len(res.Orders)})
	}
	return res.Orders, nil
}

// Clear removes every order.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := s.Authorize(key); err != nil {
		return err
	}

	if _, err := s.request(ctx, &clearOrders{}); err != nil {
		return err
	}

	s.logger.Info("Orders cleared")
	s.recordAudit("clear_orders", "", bson.M{})
	return nil
}

// Metrics returns the per-user summaries, served from the cache when one is
// configured. A cache miss is refilled by the writer so that a fill never
// lands after a newer mutation's invalidation.
func (s *Service) Metrics(ctx context.Context, key string) ([]models.UserSummary, error) {
	if err := s.Authorize(key); err != nil {
		return nil, err
	}

	if s.cache == nil {
		orders, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		return metrics.Aggregate(orders), nil
	}

	summaries, ok, err := s.cache.GetSummaries(ctx)
	if err != nil {
		s.logger.Warn("Metrics cache read failed", zap.Error(err))
	} else if ok {
		return summaries, nil
	}

	res, err := s.request(ctx, &refreshSummaries{})
	if err != nil {
		return nil, err
	}
	return res.Summaries, nil
}

func (s *Service) request(ctx context.Context, msg interface{}) (*writeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	future := s.system.Root.RequestFuture(s.writer, msg, s.timeout)
	result, err := future.Result()
	if err != nil {
		return nil, fmt.Errorf("writer request failed: %w", err)
	}

	res, ok := result.(*writeResult)
	if !ok {
		return nil, fmt.Errorf("unexpected writer response %T", result)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res, nil
}

func (s *Service) recordAudit(action, entityID string, data bson.M) {
	if s.audit == nil {
		return
	}
	entry := &repository.AuditLog{
		Service:  s.serviceName,
		Action:   action,
		EntityID: entityID,
		Data:     data,
	}
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("Audit log write failed",
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}
