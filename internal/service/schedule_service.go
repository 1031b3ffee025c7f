package service

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reportflow/internal/models"
	"reportflow/internal/permission"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
	"reportflow/internal/repository"
	"reportflow/internal/scheduler"
)

// ScheduleService owns schedule CRUD, life cycle transitions and the
// permission checks in front of them.
type ScheduleService struct {
	schedules  *repository.ScheduleRepository
	executions *repository.ExecutionRepository
	gate       *permission.Gate
	renderers  *report.Registry
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewScheduleService(
	schedules *repository.ScheduleRepository,
	executions *repository.ExecutionRepository,
	gate *permission.Gate,
	renderers *report.Registry,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		schedules:  schedules,
		executions: executions,
		gate:       gate,
		renderers:  renderers,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Create validates, authorizes and persists a new schedule. The first run
// time is computed immediately so the clock can pick it up.
func (s *ScheduleService) Create(actor permission.Actor, req *models.SaveScheduleRequest) (*models.Schedule, error) {
	typ, err := s.checkRequest(actor, req, "create")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next, err := scheduler.NextRun(
		req.ScheduleConfig.Frequency, req.ScheduleConfig.Time, req.ScheduleConfig.Timezone,
		req.ScheduleConfig.DayOfWeek, req.ScheduleConfig.DayOfMonth, now)
	if err != nil {
		return nil, err
	}

	schedule := &models.Schedule{
		ID:       utils.GenerateUUID(),
		TenantID: actor.TenantID,
		Status:   models.ScheduleStatusIdle,
		IsActive: true,

		MaxFailures:    3,
		NextRunAt:      &next,
		CreatedBy:      actor.UserID,
		CreatedByEmail: actor.Email,
	}
	s.apply(schedule, req, typ)

	if err := s.schedules.Create(schedule); err != nil {
		return nil, err
	}

	s.logger.Info("schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("tenant_id", actor.TenantID),
		zap.String("report_type", string(typ)),
		zap.Time("next_run_at", next))
	return schedule, nil
}

// Update replaces a schedule's definition. The run state (status, counters,
// history) is preserved; the next run time is recomputed from the new config.
func (s *ScheduleService) Update(actor permission.Actor, id string, req *models.SaveScheduleRequest) (*models.Schedule, error) {
	typ, err := s.checkRequest(actor, req, "update")
	if err != nil {
		return nil, err
	}

	schedule, err := s.schedules.FindByID(actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	next, err := scheduler.NextRun(
		req.ScheduleConfig.Frequency, req.ScheduleConfig.Time, req.ScheduleConfig.Timezone,
		req.ScheduleConfig.DayOfWeek, req.ScheduleConfig.DayOfMonth, time.Now())
	if err != nil {
		return nil, err
	}

	s.apply(schedule, req, typ)
	schedule.NextRunAt = &next

	if err := s.schedules.Update(schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *ScheduleService) Get(actor permission.Actor, id string) (*models.Schedule, error) {
	return s.schedules.FindByID(actor.TenantID, id)
}

func (s *ScheduleService) List(actor permission.Actor, page, limit int) ([]models.Schedule, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.schedules.ListByTenant(actor.TenantID, (page-1)*limit, limit)
}

func (s *ScheduleService) Summary(actor permission.Actor) (*repository.TenantSummary, error) {
	return s.schedules.Summary(actor.TenantID)
}

// Pause deactivates a schedule. A run already in flight finishes; the paused
// status lands when the coordinator releases the schedule.
func (s *ScheduleService) Pause(actor permission.Actor, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeManage(actor, schedule, "pause"); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"is_active": false}
	if schedule.Status != models.ScheduleStatusRunning {
		updates["status"] = models.ScheduleStatusPaused
	}
	if err := s.schedules.RecordOutcome(schedule.ID, updates); err != nil {
		return nil, err
	}
	return s.schedules.FindByID(actor.TenantID, id)
}

// Resume reactivates a paused schedule, clears its failure counter and
// recomputes the next run time from now.
func (s *ScheduleService) Resume(actor permission.Actor, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeManage(actor, schedule, "resume"); err != nil {
		return nil, err
	}

	next, err := scheduler.NextRun(
		schedule.Frequency, schedule.TimeOfDay, schedule.Timezone,
		schedule.DayOfWeek, schedule.DayOfMonth, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.schedules.RecordOutcome(schedule.ID, map[string]interface{}{
		"is_active":     true,
		"status":        models.ScheduleStatusIdle,
		"failure_count": 0,
		"next_run_at":   next,
	}); err != nil {
		return nil, err
	}
	return s.schedules.FindByID(actor.TenantID, id)
}

// Delete removes a schedule together with its execution history.
func (s *ScheduleService) Delete(actor permission.Actor, id string) error {
	schedule, err := s.schedules.FindByID(actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(actor, schedule, "delete"); err != nil {
		return err
	}
	if err := s.schedules.Delete(actor.TenantID, id); err != nil {
		return err
	}
	s.logger.Info("schedule deleted",
		zap.String("schedule_id", id), zap.String("tenant_id", actor.TenantID))
	return nil
}

// History returns a page of a schedule's runs, newest first.
func (s *ScheduleService) History(actor permission.Actor, id string, page, limit int) ([]models.ExecutionRecord, int64, error) {
	if _, err := s.schedules.FindByID(actor.TenantID, id); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.executions.ListBySchedule(actor.TenantID, id, (page-1)*limit, limit)
}

// checkRequest runs struct validation, semantic validation and the
// permission gate for a save request.
func (s *ScheduleService) checkRequest(actor permission.Actor, req *models.SaveScheduleRequest, action string) (report.Type, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", &report.ValidationError{Reason: err.Error()}
	}

	typ, err := report.ParseType(req.ReportType)
	if err != nil {
		return "", err
	}
	if err := s.gate.Authorize(actor.Role, typ, action); err != nil {
		return "", err
	}
	if err := s.validateSemantics(req); err != nil {
		return "", err
	}
	return typ, nil
}

// validateSemantics covers the cross-field rules the struct tags cannot:
// frequency-specific day fields, parseable time and timezone, a renderable
// format, a sane custom range, and recipients present when email is on.
func (s *ScheduleService) validateSemantics(req *models.SaveScheduleRequest) error {
	if _, _, err := scheduler.ParseTimeOfDay(req.ScheduleConfig.Time); err != nil {
		return err
	}
	format, err := report.ParseFormat(req.ReportConfig.Format)
	if err != nil {
		return err
	}
	// A schedule with an unbound format would fail on every single run and
	// burn straight through its failure budget; reject it here instead.
	if !s.renderers.Supports(format) {
		return &report.ValidationError{Field: "report_config.format",
			Reason: fmt.Sprintf("no renderer configured for format %q", format)}
	}
	if _, err := time.LoadLocation(req.ScheduleConfig.Timezone); err != nil {
		return &report.ValidationError{Field: "schedule_config.timezone",
			Reason: fmt.Sprintf("unknown timezone %q", req.ScheduleConfig.Timezone)}
	}

	switch req.ScheduleConfig.Frequency {
	case "weekly":
		if req.ScheduleConfig.DayOfWeek == nil {
			return &report.ValidationError{Field: "schedule_config.day_of_week",
				Reason: "required for weekly schedules"}
		}
	case "monthly":
		if req.ScheduleConfig.DayOfMonth == nil {
			return &report.ValidationError{Field: "schedule_config.day_of_month",
				Reason: "required for monthly schedules"}
		}
	}

	if req.Filters.DateRangeType == "custom" {
		if req.Filters.CustomStart == nil || req.Filters.CustomEnd == nil {
			return &report.ValidationError{Field: "filters",
				Reason: "custom date range requires both bounds"}
		}
		if req.Filters.CustomEnd.Before(*req.Filters.CustomStart) {
			return &report.ValidationError{Field: "filters",
				Reason: "date range end before start"}
		}
	}

	if req.EmailConfig.Enabled && len(req.EmailConfig.Recipients) == 0 {
		return &report.ValidationError{Field: "email_config.recipients",
			Reason: "required when email delivery is enabled"}
	}
	return nil
}

// authorizeManage gates mutations on an existing schedule by its report type.
func (s *ScheduleService) authorizeManage(actor permission.Actor, schedule *models.Schedule, action string) error {
	typ, err := report.ParseType(schedule.ReportType)
	if err != nil {
		// A stored type can only be invalid after a bad migration; treat it
		// as the most restricted.
		typ = report.TypeFinancialSummary
	}
	return s.gate.Authorize(actor.Role, typ, action)
}

// apply copies a validated save request onto a schedule model.
func (s *ScheduleService) apply(schedule *models.Schedule, req *models.SaveScheduleRequest, typ report.Type) {
	includeDetails := true
	if req.ReportConfig.IncludeDetails != nil {
		includeDetails = *req.ReportConfig.IncludeDetails
	}

	schedule.Name = req.Name
	schedule.Description = req.Description
	schedule.ReportType = string(typ)

	schedule.Frequency = req.ScheduleConfig.Frequency
	schedule.TimeOfDay = req.ScheduleConfig.Time
	schedule.Timezone = req.ScheduleConfig.Timezone
	schedule.DayOfWeek = req.ScheduleConfig.DayOfWeek
	schedule.DayOfMonth = req.ScheduleConfig.DayOfMonth

	schedule.Format = req.ReportConfig.Format
	schedule.IncludeCharts = req.ReportConfig.IncludeCharts
	schedule.IncludeDetails = includeDetails
	schedule.Period = req.ReportConfig.Period

	schedule.EmailEnabled = req.EmailConfig.Enabled
	schedule.Recipients = models.EncodeStringList(req.EmailConfig.Recipients)
	schedule.SubjectTemplate = req.EmailConfig.SubjectTemplate
	schedule.MessageTemplate = req.EmailConfig.MessageTemplate

	schedule.DateRangeType = req.Filters.DateRangeType
	schedule.RelativeDays = req.Filters.RelativeDays
	schedule.CustomStart = req.Filters.CustomStart
	schedule.CustomEnd = req.Filters.CustomEnd
	schedule.BranchIDs = models.EncodeStringList(req.Filters.BranchIDs)
}
