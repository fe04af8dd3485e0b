package worker

import (
	"context"
	"fmt"
	"time"

	"coffee-shop/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RatingStore recomputes every product's stored rating aggregate from its
// reviews and reports how many rows were corrected.
type RatingStore interface {
	ReconcileProductRatings(ctx context.Context) (int64, error)
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Reconciler periodically repairs drift between coffee_products.rating and
// the reviews table. Under normal operation it corrects nothing.
type Reconciler struct {
	store   RatingStore
	sched   *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
}

// NewReconciler schedules reconciliation on a cron spec such as "@every 1h"
// or "0 */30 * * * *".
func NewReconciler(store RatingStore, schedule string) (*Reconciler, error) {
	r := &Reconciler{
		store:   store,
		sched:   cron.New(cron.WithParser(cronParser)),
		timeout: time.Minute,
		logger:  util.GetLogger(),
	}

	if _, err := r.sched.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler in its own goroutine
func (r *Reconciler) Start() {
	r.logger.Info("Starting rating reconciler")
	r.sched.Start()
}

// Stop waits for a running reconciliation to finish
func (r *Reconciler) Stop() {
	<-r.sched.Stop().Done()
	r.logger.Info("Rating reconciler stopped")
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("Rating reconciliation failed", zap.Error(err))
	}
}

// RunOnce performs a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.RunOnce")
	defer span.End()

	corrected, err := r.store.ReconcileProductRatings(ctx)
	if err != nil {
		util.RecordSpanError(span, err)
		return 0, err
	}

	if corrected > 0 {
		util.RatingDriftCorrectedTotal.Add(float64(corrected))
		r.logger.Warn("Corrected product rating drift", zap.Int64("products", corrected))
	}
	return corrected, nil
}
