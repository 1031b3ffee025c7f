package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"reportflow/internal/artifact"
	"reportflow/internal/delivery"
	"reportflow/internal/lock"
	"reportflow/internal/mail"
	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
	"reportflow/internal/repository"
)

// Coordinator runs report executions on a bounded worker pool. It owns the
// full run lifecycle: lock, history record, fetch, render, store, deliver,
// seal, release.
type Coordinator struct {
	schedules  *repository.ScheduleRepository
	executions *repository.ExecutionRepository
	provider   report.DataProvider
	renderers  *report.Registry
	store      *artifact.Store
	dispatcher *delivery.Dispatcher
	locker     lock.RunLocker
	logger     *zap.Logger

	sem        chan struct{}
	wg         sync.WaitGroup
	inFlight   atomic.Int64
	runTimeout time.Duration
}

func NewCoordinator(
	schedules *repository.ScheduleRepository,
	executions *repository.ExecutionRepository,
	provider report.DataProvider,
	renderers *report.Registry,
	store *artifact.Store,
	dispatcher *delivery.Dispatcher,
	locker lock.RunLocker,
	workers int,
	runTimeout time.Duration,
	logger *zap.Logger,
) *Coordinator {
	if workers <= 0 {
		workers = 5
	}
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	return &Coordinator{
		schedules:  schedules,
		executions: executions,
		provider:   provider,
		renderers:  renderers,
		store:      store,
		dispatcher: dispatcher,
		locker:     locker,
		logger:     logger,
		sem:        make(chan struct{}, workers),
		runTimeout: runTimeout,
	}
}

// Submit queues a clock-triggered run. It never blocks the scan loop; the
// goroutine waits for a worker slot. Busy schedules are skipped silently --
// history shows nothing because no run was started.
func (c *Coordinator) Submit(schedule *models.Schedule, trigger string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		if _, err := c.execute(schedule, trigger); err != nil {
			c.logger.Debug("scheduled run not started",
				zap.String("schedule_id", schedule.ID), zap.Error(err))
		}
	}()
}

// RunNow executes a manual trigger synchronously from the API path. Paused
// schedules are rejected before any lock is taken; a held lock surfaces as
// ErrAlreadyRunning. The returned record is the sealed record of this run,
// never that of a concurrent one.
func (c *Coordinator) RunNow(tenantID, scheduleID string) (*models.ExecutionRecord, error) {
	schedule, err := c.schedules.FindByID(tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.IsActive || schedule.Status == models.ScheduleStatusPaused {
		return nil, report.ErrSchedulePaused
	}

	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	return c.execute(schedule, models.ExecutionTriggerManual)
}

// execute runs one schedule end to end and returns the sealed record.
// Returns ErrAlreadyRunning when the lock or the status compare-and-set is
// lost; any in-run failure is recorded in history and reflected in the
// schedule's counters, never returned.
func (c *Coordinator) execute(schedule *models.Schedule, trigger string) (*models.ExecutionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.runTimeout)
	defer cancel()

	ok, err := c.locker.Acquire(ctx, schedule.ID)
	if err != nil {
		c.logger.Warn("run lock errored, relying on status gate",
			zap.String("schedule_id", schedule.ID), zap.Error(err))
	} else if !ok {
		return nil, report.ErrAlreadyRunning
	}
	defer c.locker.Release(context.Background(), schedule.ID)

	won, err := c.schedules.MarkRunning(schedule.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, report.ErrAlreadyRunning
	}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	rec := &models.ExecutionRecord{
		ID:         utils.GenerateUUID(),
		ScheduleID: schedule.ID,
		TenantID:   schedule.TenantID,
		Trigger:    trigger,
		StartedAt:  time.Now(),
	}
	if err := c.executions.Begin(rec); err != nil {
		_ = c.schedules.Release(schedule.ID, models.ScheduleStatusIdle)
		return nil, err
	}

	runErr := c.runGuarded(ctx, schedule, rec)
	c.finish(schedule, rec, runErr)
	return rec, nil
}

// runGuarded performs the fetch-render-store-deliver pipeline, converting
// panics into run failures so a bad provider or renderer never kills a worker.
func (c *Coordinator) runGuarded(ctx context.Context, schedule *models.Schedule, rec *models.ExecutionRecord) (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("run panicked",
				zap.String("schedule_id", schedule.ID), zap.Any("error", r))
			runErr = &report.ExecutionError{Stage: "run", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	typ, err := report.ParseType(schedule.ReportType)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(schedule.Format)
	if err != nil {
		return err
	}

	filters := c.buildFilters(schedule)
	rng, err := filters.Resolve(time.Now())
	if err != nil {
		return err
	}

	data, err := c.provider.Fetch(ctx, schedule.TenantID, typ, rng, filters)
	if err != nil {
		if ctx.Err() != nil {
			return &report.ExecutionError{Stage: "timeout", Err: ctx.Err()}
		}
		return &report.ExecutionError{Stage: "fetch", Err: err}
	}

	result, err := c.renderers.Render(data, report.RenderConfig{
		Format:         format,
		IncludeCharts:  schedule.IncludeCharts,
		IncludeDetails: schedule.IncludeDetails,
		Title:          typ.Title(),
	})
	if err != nil {
		return err
	}

	stored, err := c.store.Save(schedule.TenantID, format, result.Content)
	if err != nil {
		return err
	}
	rec.ArtifactFile = stored.FileName

	if schedule.EmailEnabled {
		recipients := models.DecodeStringList(schedule.Recipients)
		results, dispatchErr := c.dispatcher.Dispatch(ctx, rec.ID, &delivery.Request{
			TenantID:        schedule.TenantID,
			TenantName:      schedule.TenantID,
			ReportType:      typ,
			Period:          schedule.Period,
			Recipients:      recipients,
			SubjectTemplate: schedule.SubjectTemplate,
			MessageTemplate: schedule.MessageTemplate,
			Attachment: &mail.Attachment{
				Filename:    typ.Title() + result.Ext,
				ContentType: result.ContentType,
				Content:     result.Content,
			},
			DownloadLink: c.store.DownloadLink(stored),
		})
		if err := c.executions.AppendDeliveries(results); err != nil {
			c.logger.Error("delivery results not recorded",
				zap.String("execution_id", rec.ID), zap.Error(err))
		}
		rec.DeliveryResults = results
		if dispatchErr != nil {
			return &report.ExecutionError{Stage: "deliver", Err: dispatchErr}
		}
	}

	return nil
}

// finish seals the history record, applies the outcome to the schedule's
// counters and releases the running status. The schedule comes back paused
// when it was deactivated mid-run or just hit its failure ceiling. rec is
// updated in place so callers hold the sealed state without a re-read.
func (c *Coordinator) finish(schedule *models.Schedule, rec *models.ExecutionRecord, runErr error) {
	finishedAt := time.Now()
	duration := finishedAt.Sub(rec.StartedAt)

	rec.Outcome = outcomeOf(runErr)
	rec.ErrorMsg = errMsgOf(runErr)
	rec.FinishedAt = &finishedAt
	rec.DurationMS = duration.Milliseconds()

	current, err := c.schedules.FindAny(schedule.ID)
	if err != nil {
		// Deleted mid-run. Seal the record if it survived the cascade.
		_ = c.executions.Seal(rec.ID, outcomeOf(runErr), errMsgOf(runErr), rec.ArtifactFile, finishedAt, duration)
		return
	}

	updates := map[string]interface{}{
		"last_run_at": finishedAt,
		"total_runs":  current.TotalRuns + 1,
	}
	resting := models.ScheduleStatusIdle
	if !current.IsActive {
		resting = models.ScheduleStatusPaused
	}

	if runErr == nil {
		updates["successful_runs"] = current.SuccessfulRuns + 1
		updates["failure_count"] = 0
	} else {
		failures := current.FailureCount + 1
		updates["failure_count"] = failures
		if failures >= current.MaxFailures {
			updates["is_active"] = false
			resting = models.ScheduleStatusPaused
			c.logger.Warn("schedule auto-paused after repeated failures",
				zap.String("schedule_id", schedule.ID),
				zap.Int("failures", failures))
		}

		c.logger.Error("run failed",
			zap.String("schedule_id", schedule.ID),
			zap.String("execution_id", rec.ID),
			zap.Error(runErr))
		c.dispatcher.NotifyFailure(context.Background(), current.CreatedByEmail, current.Name, runErr)
	}

	if err := c.executions.Seal(rec.ID, outcomeOf(runErr), errMsgOf(runErr), rec.ArtifactFile, finishedAt, duration); err != nil {
		c.logger.Error("execution record not sealed", zap.String("execution_id", rec.ID), zap.Error(err))
	}
	if err := c.schedules.RecordOutcome(schedule.ID, updates); err != nil {
		c.logger.Error("schedule counters not updated", zap.String("schedule_id", schedule.ID), zap.Error(err))
	}
	if err := c.schedules.Release(schedule.ID, resting); err != nil {
		c.logger.Error("schedule not released", zap.String("schedule_id", schedule.ID), zap.Error(err))
	}
}

func (c *Coordinator) buildFilters(s *models.Schedule) report.Filters {
	f := report.Filters{
		DateRangeType: s.DateRangeType,
		CustomStart:   s.CustomStart,
		CustomEnd:     s.CustomEnd,
		BranchIDs:     models.DecodeStringList(s.BranchIDs),
		Period:        s.Period,
	}
	if s.RelativeDays != nil {
		f.RelativeDays = *s.RelativeDays
	}
	return f
}

func outcomeOf(runErr error) string {
	if runErr == nil {
		return models.ExecutionOutcomeSuccess
	}
	return models.ExecutionOutcomeFailed
}

func errMsgOf(runErr error) string {
	if runErr == nil {
		return ""
	}
	return runErr.Error()
}

// QueueStatus describes the worker pool at a point in time.
type QueueStatus struct {
	Workers  int   `json:"workers"`
	InFlight int64 `json:"in_flight"`
}

func (c *Coordinator) Status() QueueStatus {
	return QueueStatus{
		Workers:  cap(c.sem),
		InFlight: c.inFlight.Load(),
	}
}

// Drain waits for queued and in-flight runs to finish. Called on shutdown
// after the clock has stopped.
func (c *Coordinator) Drain() {
	c.wg.Wait()
}
