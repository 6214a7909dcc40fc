package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/preorder/pkg/metrics"
	"github.com/example/preorder/pkg/models"
	"go.uber.org/zap"
)

const cacheTimeout = 2 * time.Second

// Messages handled by writerActor. Every store mutation and every summary
// cache fill goes through the actor, so whole-document rewrites never
// interleave and a fill never outlives the invalidation of a later mutation.
type appendOrder struct {
	Name      string
	Order     string
	Notes     string
	Timestamp string
}

type deleteOrder struct {
	ID int
}

type clearOrders struct{}

type refreshSummaries struct{}

type writeResult struct {
	Orders    []models.Order
	Created   *models.Order
	Removed   bool
	Summaries []models.UserSummary
	Err       error
}

type writerActor struct {
	store  Store
	cache  SummaryCache
	logger *zap.Logger
}

func (a *writerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *appendOrder:
		ctx.Respond(a.mutated(a.append(msg)))

	case *deleteOrder:
		ctx.Respond(a.mutated(a.delete(msg.ID)))

	case *clearOrders:
		ctx.Respond(a.mutated(a.clear()))

	case *refreshSummaries:
		ctx.Respond(a.refresh())

	case *actor.Started:
		a.logger.Debug("Writer actor started")

	case *actor.Stopped:
		a.logger.Debug("Writer actor stopped")
	}
}

func (a *writerActor) append(msg *appendOrder) *writeResult {
	orders, err := a.store.Load()
	if err != nil {
		return &writeResult{Err: err}
	}
	seq, err := a.store.Sequence()
	if err != nil {
		return &writeResult{Err: err}
	}

	// len+1 keeps ids dense while nothing was deleted; the sequence stops a
	// deleted id from being handed out again.
	id := len(orders) + 1
	if seq >= id {
		id = seq + 1
	}

	order := models.Order{
		ID:        id,
		Name:      msg.Name,
		Order:     msg.Order,
		Notes:     msg.Notes,
		Timestamp: msg.Timestamp,
	}
	orders = append(orders, order)

	if err := a.store.Save(orders); err != nil {
		return &writeResult{Err: fmt.Errorf("failed to save order: %w", err)}
	}
	if err := a.store.SetSequence(id); err != nil {
		// The store already holds the order; the sequence falls back to the
		// highest stored id.
		a.logger.Error("Failed to persist id sequence", zap.Int("id", id), zap.Error(err))
	}

	return &writeResult{Orders: orders, Created: &order}
}

func (a *writerActor) delete(id int) *writeResult {
	orders, err := a.store.Load()
	if err != nil {
		return &writeResult{Err: err}
	}

	idx := -1
	for i, o := range orders {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &writeResult{Orders: orders}
	}

	kept := make([]models.Order, 0, len(orders)-1)
	kept = append(kept, orders[:idx]...)
	kept = append(kept, orders[idx+1:]...)

	if err := a.store.Save(kept); err != nil {
		return &writeResult{Err: fmt.Errorf("failed to save orders: %w", err)}
	}
	return &writeResult{Orders: kept, Removed: true}
}

func (a *writerActor) clear() *writeResult {
	if err := a.store.Save([]models.Order{}); err != nil {
		return &writeResult{Err: fmt.Errorf("failed to clear orders: %w", err)}
	}
	if err := a.store.SetSequence(0); err != nil {
		a.logger.Error("Failed to reset id sequence", zap.Error(err))
	}
	return &writeResult{Orders: []models.Order{}}
}

// mutated drops cached summaries once a mutation reached the store. It runs
// before the reply, so it also happens when the caller already gave up.
func (a *writerActor) mutated(res *writeResult) *writeResult {
	if a.cache == nil || res.Err != nil {
		return res
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := a.cache.InvalidateSummaries(ctx); err != nil {
		a.logger.Warn("Metrics cache invalidation failed", zap.Error(err))
	}
	return res
}

func (a *writerActor) refresh() *writeResult {
	orders, err := a.store.Load()
	if err != nil {
		return &writeResult{Err: err}
	}
	summaries := metrics.Aggregate(orders)

	if a.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()
		if err := a.cache.SetSummaries(ctx, summaries); err != nil {
			a.logger.Warn("Metrics cache write failed", zap.Error(err))
		}
	}
	return &writeResult{Summaries: summaries}
}
