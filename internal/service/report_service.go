package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reportflow/internal/artifact"
	"reportflow/internal/delivery"
	"reportflow/internal/mail"
	"reportflow/internal/models"
	"reportflow/internal/permission"
	"reportflow/internal/report"
	"reportflow/internal/repository"
	"reportflow/internal/scheduler"
)

// ReportService owns on-demand report operations: manual runs, one-off
// emails, downloads and the catalog endpoints.
type ReportService struct {
	schedules   *repository.ScheduleRepository
	coordinator *scheduler.Coordinator
	provider    report.DataProvider
	renderers   *report.Registry
	store       *artifact.Store
	dispatcher  *delivery.Dispatcher
	gate        *permission.Gate
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewReportService(
	schedules *repository.ScheduleRepository,
	coordinator *scheduler.Coordinator,
	provider report.DataProvider,
	renderers *report.Registry,
	store *artifact.Store,
	dispatcher *delivery.Dispatcher,
	gate *permission.Gate,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		schedules:   schedules,
		coordinator: coordinator,
		provider:    provider,
		renderers:   renderers,
		store:       store,
		dispatcher:  dispatcher,
		gate:        gate,
		validate:    validator.New(),
		logger:      logger,
	}
}

// RunNow triggers one immediate execution of a schedule, gated by the
// caller's role against the schedule's report type.
func (s *ReportService) RunNow(actor permission.Actor, scheduleID string) (*models.ExecutionRecord, error) {
	schedule, err := s.schedules.FindByID(actor.TenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	typ, err := report.ParseType(schedule.ReportType)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(actor.Role, typ, "run"); err != nil {
		return nil, err
	}
	return s.coordinator.RunNow(actor.TenantID, scheduleID)
}

// EmailOneOff generates a report immediately and emails it, with no schedule
// involved. Validation failures happen before any work: zero fetches, zero
// send attempts.
func (s *ReportService) EmailOneOff(ctx context.Context, actor permission.Actor, req *models.EmailReportRequest) ([]models.DeliveryResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &report.ValidationError{Reason: err.Error()}
	}
	typ, err := report.ParseType(req.ReportType)
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	if !s.renderers.Supports(format) {
		return nil, &report.ValidationError{Field: "format",
			Reason: fmt.Sprintf("no renderer configured for format %q", format)}
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, &report.ValidationError{Field: "end_date", Reason: "date range end before start"}
	}
	if err := s.gate.Authorize(actor.Role, typ, "email"); err != nil {
		return nil, err
	}

	data, err := s.provider.Fetch(ctx, actor.TenantID, typ, report.DateRange{
		Start: req.StartDate,
		End:   req.EndDate,
	}, report.Filters{BranchIDs: req.BranchIDs, Period: req.Period})
	if err != nil {
		return nil, &report.ExecutionError{Stage: "fetch", Err: err}
	}

	result, err := s.renderers.Render(data, report.RenderConfig{
		Format:        format,
		IncludeCharts: req.IncludeCharts,
		// One-off emails always carry the detail table.
		IncludeDetails: true,
		Title:          typ.Title(),
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Save(actor.TenantID, format, result.Content)
	if err != nil {
		return nil, err
	}

	subject := req.Subject
	if subject == "" {
		subject = typ.Title() + " - " + time.Now().Format("2006-01-02")
	}
	results, dispatchErr := s.dispatcher.Dispatch(ctx, "", &delivery.Request{
		TenantID:        actor.TenantID,
		TenantName:      actor.TenantID,
		ReportType:      typ,
		Period:          req.Period,
		Recipients:      req.Recipients,
		SubjectTemplate: subject,
		MessageTemplate: req.Message,
		Attachment: &mail.Attachment{
			Filename:    typ.Title() + result.Ext,
			ContentType: result.ContentType,
			Content:     result.Content,
		},
		DownloadLink: s.store.DownloadLink(stored),
	})
	if dispatchErr != nil {
		return results, &report.ExecutionError{Stage: "deliver", Err: dispatchErr}
	}
	return results, nil
}

// ResolveDownload validates an artifact name and token and returns the
// on-disk path for streaming. A token-bearing artifact never resolves
// without the matching token, so a leaked file name alone is not enough.
func (s *ReportService) ResolveDownload(actor permission.Actor, fileName, token string) (*models.Artifact, string, error) {
	a, path, err := s.store.Open(actor.TenantID, fileName)
	if err != nil {
		return nil, "", err
	}
	if a.DownloadToken != "" && token != a.DownloadToken {
		return nil, "", report.ErrArtifactNotFound
	}
	return a, path, nil
}

// TypeInfo describes one report type for the catalog endpoint.
type TypeInfo struct {
	Type        report.Type `json:"type"`
	Title       string      `json:"title"`
	MinimumRole string      `json:"minimum_role"`
	Available   bool        `json:"available"`
}

// ListTypes returns the report type catalog with per-type availability for
// the caller's role.
func (s *ReportService) ListTypes(actor permission.Actor) []TypeInfo {
	infos := make([]TypeInfo, 0, len(report.AllTypes()))
	for _, typ := range report.AllTypes() {
		available := s.gate.Authorize(actor.Role, typ, "schedule") == nil
		min := "staff"
		if s.gate.Authorize(permission.RoleStaff, typ, "schedule") != nil {
			min = "manager"
		}
		infos = append(infos, TypeInfo{
			Type:        typ,
			Title:       typ.Title(),
			MinimumRole: min,
			Available:   available,
		})
	}
	return infos
}

// QueueStatus reports the worker pool state.
func (s *ReportService) QueueStatus() scheduler.QueueStatus {
	return s.coordinator.Status()
}
