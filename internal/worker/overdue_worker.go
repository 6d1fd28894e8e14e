package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/events"
	"github.com/tadbeer/helpdesk/internal/observability"
	"github.com/tadbeer/helpdesk/internal/repository"
)

// OverdueWorker periodically flags tickets whose due date has passed and
// publishes one TicketOverdue event per ticket.
type OverdueWorker struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

// OverdueDependencies bundles collaborators for the worker.
type OverdueDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Interval   time.Duration
	BatchSize  int
}

// NewOverdueWorker builds the worker.
func NewOverdueWorker(deps OverdueDependencies) *OverdueWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &OverdueWorker{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		interval:   interval,
		batchSize:  batch,
		now:        time.Now,
	}
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (w *OverdueWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("overdue worker started", zap.Duration("interval", w.interval))
	for {
		if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("overdue scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("overdue worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scan processes one batch and returns how many tickets were flagged.
// Tickets are marked before the event is published so a crash cannot
// produce a second notification for the same due date.
func (w *OverdueWorker) Scan(ctx context.Context) (int, error) {
	now := w.now().UTC()
	tickets, err := w.store.Tickets().ListOverdue(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range tickets {
		ticket := tickets[i]
		if err := w.store.Tickets().MarkOverdueNotified(ctx, ticket.ID, now); err != nil {
			w.logger.Warn("mark overdue failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		flagged++
		if w.dispatcher == nil {
			continue
		}
		w.dispatcher.Publish(ctx, events.Event{
			Type:     events.EventTicketOverdue,
			TicketID: ticket.ID,
			Payload: events.TicketOverduePayload{
				Title:      ticket.Title,
				CreatedBy:  ticket.CreatedBy,
				AssigneeID: ticket.Assignee(),
				DueDate:    *ticket.DueDate,
			},
		})
	}
	w.metrics.OverdueFlagged(flagged)
	if flagged > 0 {
		w.logger.Info("flagged overdue tickets", zap.Int("count", flagged))
	}
	return flagged, nil
}
