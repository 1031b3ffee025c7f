package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reportflow/internal/models"
	"reportflow/internal/report"
)

// ScheduleRepository handles persistence of report schedules. All reads are
// tenant-scoped except the due scan, which crosses tenants by design.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(s *models.Schedule) error {
	return r.db.Create(s).Error
}

func (r *ScheduleRepository) Update(s *models.Schedule) error {
	return r.db.Save(s).Error
}

// FindByID loads a schedule within a tenant. Unknown ids and ids owned by
// other tenants are indistinguishable to the caller.
func (r *ScheduleRepository) FindByID(tenantID, id string) (*models.Schedule, error) {
	var s models.Schedule
	err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, report.ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindAny loads a schedule without tenant scoping. Used only by the
// coordinator, which already holds a schedule picked by the due scan.
func (r *ScheduleRepository) FindAny(id string) (*models.Schedule, error) {
	var s models.Schedule
	err := r.db.Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, report.ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByTenant returns a page of schedules ordered by creation time.
func (r *ScheduleRepository) ListByTenant(tenantID string, offset, limit int) ([]models.Schedule, int64, error) {
	var total int64
	if err := r.db.Model(&models.Schedule{}).Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var schedules []models.Schedule
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&schedules).Error
	return schedules, total, err
}

// FindDue returns active schedules whose next run time has arrived. Paused
// and already-running schedules never match.
func (r *ScheduleRepository) FindDue(now time.Time) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.db.Where("is_active = ? AND status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
		true, models.ScheduleStatusIdle, now).
		Find(&schedules).Error
	return schedules, err
}

// MarkRunning flips a schedule from idle to running. The WHERE clause is the
// mutual-exclusion gate: RowsAffected == 0 means another trigger won the race
// or the schedule was paused in between.
func (r *ScheduleRepository) MarkRunning(id string) (bool, error) {
	res := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleStatusIdle).
		Update("status", models.ScheduleStatusRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release puts a schedule back into its resting state after a run. The
// resting state is paused when the schedule was deactivated mid-run or hit
// its failure ceiling, idle otherwise.
func (r *ScheduleRepository) Release(id, restingStatus string) error {
	return r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleStatusRunning).
		Update("status", restingStatus).Error
}

// RecordOutcome applies one finished run to the schedule's counters and
// timing columns in a single update.
func (r *ScheduleRepository) RecordOutcome(id string, updates map[string]interface{}) error {
	return r.db.Model(&models.Schedule{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes a schedule and its execution history in one transaction.
func (r *ScheduleRepository) Delete(tenantID, id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Schedule{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return report.ErrScheduleNotFound
		}

		var execIDs []string
		if err := tx.Model(&models.ExecutionRecord{}).
			Where("schedule_id = ?", id).
			Pluck("id", &execIDs).Error; err != nil {
			return err
		}
		if len(execIDs) > 0 {
			if err := tx.Where("execution_id IN ?", execIDs).Delete(&models.DeliveryResult{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("schedule_id = ?", id).Delete(&models.ExecutionRecord{}).Error
	})
}

// TenantSummary aggregates schedule counts for the summary endpoint.
type TenantSummary struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Paused  int64 `json:"paused"`
	Running int64 `json:"running"`
}

func (r *ScheduleRepository) Summary(tenantID string) (*TenantSummary, error) {
	var s TenantSummary
	base := func() *gorm.DB {
		return r.db.Model(&models.Schedule{}).Where("tenant_id = ?", tenantID)
	}
	if err := base().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_active = ?", true).Count(&s.Active).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_active = ?", false).Count(&s.Paused).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.ScheduleStatusRunning).Count(&s.Running).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
