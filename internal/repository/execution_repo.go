package repository

import (
	"time"

	"gorm.io/gorm"

	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
)

// ExecutionRepository handles execution history rows and their per-recipient
// delivery results.
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Begin creates the running record for a started run.
func (r *ExecutionRepository) Begin(rec *models.ExecutionRecord) error {
	rec.Outcome = models.ExecutionOutcomeRunning
	return r.db.Create(rec).Error
}

// Seal finalizes a record exactly once: outcome, timing and error message.
// Records already sealed are left untouched.
func (r *ExecutionRepository) Seal(id, outcome, errMsg, artifactFile string, finishedAt time.Time, duration time.Duration) error {
	return r.db.Model(&models.ExecutionRecord{}).
		Where("id = ? AND outcome = ?", id, models.ExecutionOutcomeRunning).
		Updates(map[string]interface{}{
			"outcome":       outcome,
			"error_message": utils.TrimErr(errMsg, 900),
			"artifact_file": artifactFile,
			"finished_at":   finishedAt,
			"duration_ms":   duration.Milliseconds(),
		}).Error
}

// AppendDeliveries stores the per-recipient outcomes of one run.
func (r *ExecutionRepository) AppendDeliveries(results []models.DeliveryResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.Create(&results).Error
}

// ListBySchedule returns a reverse-chronological page of a schedule's runs,
// delivery results included.
func (r *ExecutionRepository) ListBySchedule(tenantID, scheduleID string, offset, limit int) ([]models.ExecutionRecord, int64, error) {
	var total int64
	if err := r.db.Model(&models.ExecutionRecord{}).
		Where("schedule_id = ? AND tenant_id = ?", scheduleID, tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.ExecutionRecord
	err := r.db.Preload("DeliveryResults").
		Where("schedule_id = ? AND tenant_id = ?", scheduleID, tenantID).
		Order("started_at DESC").
		Offset(offset).Limit(limit).
		Find(&records).Error
	return records, total, err
}

// CountByOutcome returns how many records a tenant has in a given outcome.
func (r *ExecutionRepository) CountByOutcome(tenantID, outcome string) (int64, error) {
	var n int64
	err := r.db.Model(&models.ExecutionRecord{}).
		Where("tenant_id = ? AND outcome = ?", tenantID, outcome).
		Count(&n).Error
	return n, err
}
