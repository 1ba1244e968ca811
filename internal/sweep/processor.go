// Package sweep re-drives deferred notifications: it finds PENDING records
// whose schedule has passed, delivers them and moves each to SENT or FAILED.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

type DueStore interface {
	FindDue(ctx context.Context, q store.DueQuery) ([]*models.Notification, error)
	GetStatus(ctx context.Context, id string) (models.Status, error)
	UpdateStatus(ctx context.Context, id string, to models.Status, at time.Time) error
}

type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification, user *models.User, source string) (dispatch.Report, error)
}

type Config struct {
	BatchSize     int
	Concurrency   int
	RecordTimeout time.Duration
	// FailOrphaned marks records whose user no longer exists as FAILED.
	// When false they are left PENDING and retried on the next sweep.
	FailOrphaned bool
}

// SweepResult summarises one sweep. Claimed counts records skipped because
// another instance held them.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Claimed int `json:"claimed"`
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeFailed  outcome = "failed"
	outcomeSkipped outcome = "skipped"
	outcomeClaimed outcome = "claimed"
)

func (r *SweepResult) add(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeFailed:
		r.Failed++
	case outcomeSkipped:
		r.Skipped++
	case outcomeClaimed:
		r.Claimed++
	}
}

type Dependencies struct {
	Store         DueStore
	Users         dispatch.UserDirectory
	FanOut        Deliverer
	Claimer       Claimer // optional
	Logger        logger.Logger
	Observability *observability.Observability
}

type Processor struct {
	store   DueStore
	users   dispatch.UserDirectory
	fanout  Deliverer
	claimer Claimer
	cfg     Config
	logger  logger.Logger
	obs     *observability.Observability
	now     func() time.Time

	// one sweep at a time per process; claims cover other processes
	mu sync.Mutex
}

func NewProcessor(deps Dependencies, cfg Config) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = time.Minute
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Processor{
		store:   deps.Store,
		users:   deps.Users,
		fanout:  deps.FanOut,
		claimer: deps.Claimer,
		cfg:     cfg,
		logger:  logger.Component(log, "sweep"),
		obs:     obs,
		now:     time.Now,
	}
}

// ProcessPendingNotifications handles every record that is PENDING and due
// at the moment the sweep starts. A record's failure never stops the sweep.
// Cancelling ctx stops handing out new records; records already in flight
// finish and keep their status write.
func (p *Processor) ProcessPendingNotifications(ctx context.Context) (SweepResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	cutoff := start.UTC()

	ctx, span := p.obs.StartSpan(ctx, "sweep.run", attribute.String("sweep.cutoff", cutoff.Format(time.RFC3339)))
	defer span.End()

	var (
		result   SweepResult
		resultMu sync.Mutex
		wg       sync.WaitGroup
	)
	jobs := make(chan *models.Notification)

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				o := p.processRecord(ctx, n)
				metrics.SweepRecords.WithLabelValues(string(o)).Inc()
				resultMu.Lock()
				result.add(o)
				resultMu.Unlock()
			}
		}()
	}

	scanned, err := p.feed(ctx, cutoff, jobs)
	close(jobs)
	wg.Wait()

	result.Scanned = scanned
	elapsed := p.now().Sub(start)
	metrics.SweepDuration.Observe(elapsed.Seconds())

	p.logger.Info("sweep finished", map[string]interface{}{
		"scanned":    result.Scanned,
		"sent":       result.Sent,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
		"claimed":    result.Claimed,
		"durationMs": elapsed.Milliseconds(),
	})

	return result, err
}

// feed pages through due records in (scheduled_at, id) order and hands them
// to the workers until a short page or cancellation.
func (p *Processor) feed(ctx context.Context, cutoff time.Time, jobs chan<- *models.Notification) (int, error) {
	q := store.DueQuery{Now: cutoff, Limit: p.cfg.BatchSize}
	scanned := 0

	for {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}

		page, err := p.store.FindDue(ctx, q)
		if err != nil {
			p.logger.Error("failed to load due notifications", map[string]interface{}{"error": err})
			return scanned, err
		}

		for _, n := range page {
			select {
			case jobs <- n:
				scanned++
			case <-ctx.Done():
				return scanned, ctx.Err()
			}
		}

		if len(page) < q.Limit {
			return scanned, nil
		}
		last := page[len(page)-1]
		if last.ScheduledAt == nil {
			return scanned, fmt.Errorf("due notification %s has no schedule", last.ID)
		}
		q.AfterScheduledAt = *last.ScheduledAt
		q.AfterID = last.ID
	}
}

func (p *Processor) processRecord(ctx context.Context, n *models.Notification) outcome {
	log := p.logger.WithFields(map[string]interface{}{
		"notificationId": n.ID,
		"userId":         n.UserID,
	})

	if p.claimer != nil {
		ok, err := p.claimer.Claim(ctx, n.ID)
		switch {
		case err != nil:
			log.Warn("claim unavailable, processing without it", map[string]interface{}{"error": err})
		case !ok:
			log.Debug("record claimed by another instance", nil)
			return outcomeClaimed
		default:
			defer p.claimer.Release(context.WithoutCancel(ctx), n.ID)
		}
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RecordTimeout)
	defer cancel()

	// the page may predate another instance's terminal write
	current, err := p.store.GetStatus(recCtx, n.ID)
	if err != nil {
		log.Warn("could not confirm notification is still pending", map[string]interface{}{"error": err})
		return outcomeSkipped
	}
	if current != models.StatusPending {
		log.Debug("notification already finished elsewhere", map[string]interface{}{"status": string(current)})
		return outcomeSkipped
	}

	recCtx, span := p.obs.StartSpan(recCtx, "sweep.record", attribute.String("notification.id", n.ID))
	defer span.End()

	status, err := p.deliverRecord(recCtx, n)
	if status == "" {
		log.Warn("user not found, leaving notification pending", nil)
		return outcomeSkipped
	}
	if err != nil {
		log.Error("pending notification failed", map[string]interface{}{
			"error": errors.NewSweepRecordFailedError(n.ID, err),
		})
	}

	if err := p.store.UpdateStatus(recCtx, n.ID, status, p.now().UTC()); err != nil {
		if errors.Is(err, errors.ErrCodeInvalidTransition) {
			log.Warn("notification already finished elsewhere", map[string]interface{}{"status": string(status)})
			return outcomeSkipped
		}
		log.Error("failed to update notification status", map[string]interface{}{
			"error":  err,
			"status": string(status),
		})
		return outcomeFailed
	}

	if status == models.StatusSent {
		return outcomeSent
	}
	return outcomeFailed
}

// deliverRecord returns the status to write. An empty status means the
// record is left untouched.
func (p *Processor) deliverRecord(ctx context.Context, n *models.Notification) (status models.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = models.StatusFailed
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	user, err := p.users.FindUserByID(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeUserNotFound) && !p.cfg.FailOrphaned {
			return "", nil
		}
		return models.StatusFailed, err
	}

	if err := n.Channels.Validate(); err != nil {
		return models.StatusFailed, errors.NewInvalidArgumentError(err.Error())
	}

	if _, err := p.fanout.Deliver(ctx, n, user, dispatch.SourceSweep); err != nil {
		return models.StatusFailed, err
	}
	return models.StatusSent, nil
}

// Run sweeps every interval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("sweep scheduler started", map[string]interface{}{"intervalMs": interval.Milliseconds()})
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("sweep scheduler stopped", nil)
			return
		case <-ticker.C:
			if _, err := p.ProcessPendingNotifications(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("sweep failed", map[string]interface{}{"error": err})
			}
		}
	}
}
