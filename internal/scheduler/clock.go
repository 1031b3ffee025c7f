package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reportflow/internal/models"
	"reportflow/internal/report"
)

// ParseTimeOfDay splits an "HH:MM" wall-clock string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, &report.ValidationError{Field: "time", Reason: fmt.Sprintf("expected HH:MM, got %q", s)}
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, &report.ValidationError{Field: "time", Reason: fmt.Sprintf("invalid hour in %q", s)}
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, &report.ValidationError{Field: "time", Reason: fmt.Sprintf("invalid minute in %q", s)}
	}
	return hour, minute, nil
}

// NextRun computes the first instant strictly after now that matches the
// schedule's frequency, wall-clock time and timezone. Wall-clock times are
// materialized with time.Date in the schedule's location, so DST transitions
// resolve the way the zone does. A monthly day past the month's end clamps to
// the last day of that month.
func NextRun(frequency, timeOfDay, timezone string, dayOfWeek, dayOfMonth *int, now time.Time) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, &report.ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", timezone)}
	}
	local := now.In(loc)

	switch frequency {
	case "daily":
		next := wallClock(local.Year(), local.Month(), local.Day(), hour, minute, loc)
		if !next.After(local) {
			next = wallClock(local.Year(), local.Month(), local.Day()+1, hour, minute, loc)
		}
		return next, nil

	case "weekly":
		target := 1 // Monday default
		if dayOfWeek != nil {
			target = *dayOfWeek
		}
		if target < 0 || target > 6 {
			return time.Time{}, &report.ValidationError{Field: "day_of_week", Reason: "must be 0-6"}
		}
		offset := (target - int(local.Weekday()) + 7) % 7
		next := wallClock(local.Year(), local.Month(), local.Day()+offset, hour, minute, loc)
		if !next.After(local) {
			next = wallClock(local.Year(), local.Month(), local.Day()+offset+7, hour, minute, loc)
		}
		return next, nil

	case "monthly":
		target := 1
		if dayOfMonth != nil {
			target = *dayOfMonth
		}
		if target < 1 || target > 31 {
			return time.Time{}, &report.ValidationError{Field: "day_of_month", Reason: "must be 1-31"}
		}
		next := monthlyAt(local.Year(), local.Month(), target, hour, minute, loc)
		if !next.After(local) {
			year, month := local.Year(), local.Month()+1
			next = monthlyAt(year, month, target, hour, minute, loc)
		}
		return next, nil

	default:
		return time.Time{}, &report.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", frequency)}
	}
}

// monthlyAt places the run on the target day of the given month, clamped to
// the month's last day.
func monthlyAt(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return wallClock(year, month, day, hour, minute, loc)
}

// wallClock materializes a wall-clock time in loc. time.Date already shifts a
// time skipped by a spring-forward transition past the gap; a wall-clock time
// repeated by a fall-back transition maps to two instants and time.Date does
// not guarantee which one it picks, so the earlier instant is chosen here.
func wallClock(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if earlier := t.Add(-time.Hour); earlier.Day() == t.Day() &&
		earlier.Hour() == t.Hour() && earlier.Minute() == t.Minute() {
		return earlier
	}
	return t
}

// ScheduleSource is the slice of the schedule repository the clock needs.
type ScheduleSource interface {
	FindDue(now time.Time) ([]models.Schedule, error)
	RecordOutcome(id string, updates map[string]interface{}) error
}

// Submitter accepts due schedules for asynchronous execution.
type Submitter interface {
	Submit(schedule *models.Schedule, trigger string)
}

// Sweeper reclaims expired artifacts.
type Sweeper interface {
	Sweep()
}

// Clock drives the pipeline: a per-minute scan hands due schedules to the
// coordinator, an hourly job sweeps expired artifacts.
type Clock struct {
	cron      *cron.Cron
	schedules ScheduleSource
	submitter Submitter
	sweeper   Sweeper
	logger    *zap.Logger
}

func NewClock(schedules ScheduleSource, submitter Submitter, sweeper Sweeper, logger *zap.Logger) *Clock {
	return &Clock{
		cron:      cron.New(cron.WithSeconds()),
		schedules: schedules,
		submitter: submitter,
		sweeper:   sweeper,
		logger:    logger,
	}
}

// Start registers and starts the cron jobs.
func (c *Clock) Start() {
	c.logger.Info("Starting schedule clock...")

	// Due scan - every minute
	c.cron.AddFunc("0 * * * * *", func() {
		c.logger.Debug("Running: due schedule scan")
		c.scanDue()
	})

	// Artifact expiry sweep - hourly
	c.cron.AddFunc("0 0 * * * *", func() {
		c.logger.Debug("Running: artifact sweep")
		c.sweepArtifacts()
	})

	c.cron.Start()
	c.logger.Info("Schedule clock started")
}

// Stop gracefully stops the cron jobs.
func (c *Clock) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// scanDue picks up every schedule whose time has come, bumps its next run
// time immediately so the next scan skips it, and hands it to the worker
// pool. A schedule failing to submit never blocks the rest of the batch.
func (c *Clock) scanDue() {
	defer c.recoverFromPanic("scanDue")

	now := time.Now()
	due, err := c.schedules.FindDue(now)
	if err != nil {
		c.logger.Error("due scan failed", zap.Error(err))
		return
	}

	for i := range due {
		s := due[i]

		next, err := NextRun(s.Frequency, s.TimeOfDay, s.Timezone, s.DayOfWeek, s.DayOfMonth, now)
		if err != nil {
			// A schedule this malformed should not keep matching every scan.
			c.logger.Error("next run computation failed, deactivating schedule",
				zap.String("schedule_id", s.ID), zap.Error(err))
			_ = c.schedules.RecordOutcome(s.ID, map[string]interface{}{"is_active": false})
			continue
		}
		if err := c.schedules.RecordOutcome(s.ID, map[string]interface{}{"next_run_at": next}); err != nil {
			c.logger.Error("next run update failed", zap.String("schedule_id", s.ID), zap.Error(err))
			continue
		}

		c.submitter.Submit(&s, models.ExecutionTriggerClock)
	}
}

func (c *Clock) sweepArtifacts() {
	defer c.recoverFromPanic("sweepArtifacts")
	c.sweeper.Sweep()
}

func (c *Clock) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		c.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
