package models

import "time"

// Execution outcomes. A record is created in the running state when the
// coordinator starts a run and sealed exactly once when the run ends.
const (
	ExecutionOutcomeRunning = "running"
	ExecutionOutcomeSuccess = "success"
	ExecutionOutcomeFailed  = "failed"
)

// Execution trigger sources.
const (
	ExecutionTriggerClock  = "clock"
	ExecutionTriggerManual = "manual"
)

// ExecutionRecord is one triggered run of a schedule. Immutable after sealing;
// deleted only together with its schedule.
type ExecutionRecord struct {
	ID         string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	ScheduleID string     `gorm:"column:schedule_id;size:36;index:idx_executions_schedule" json:"schedule_id"`
	TenantID   string     `gorm:"column:tenant_id;size:36;index:idx_executions_tenant" json:"tenant_id"`
	Trigger    string     `gorm:"column:trigger_source;size:20" json:"trigger"`
	StartedAt  time.Time  `gorm:"column:started_at" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Outcome    string     `gorm:"column:outcome;size:20;index:idx_executions_outcome" json:"outcome"`
	ErrorMsg   string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	// Weak reference to the produced artifact; the artifact may expire while
	// the record persists.
	ArtifactFile string `gorm:"column:artifact_file;size:255" json:"artifact_file,omitempty"`
	DurationMS   int64  `gorm:"column:duration_ms;default:0" json:"duration_ms"`

	DeliveryResults []DeliveryResult `gorm:"foreignKey:ExecutionID;references:ID" json:"delivery_results,omitempty"`
}

func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// Per-recipient delivery outcomes.
const (
	DeliveryOutcomeSent   = "sent"
	DeliveryOutcomeFailed = "failed"
)

// DeliveryResult is the outcome of delivering one artifact to one recipient.
type DeliveryResult struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExecutionID string    `gorm:"column:execution_id;size:36;index:idx_delivery_results_execution" json:"execution_id"`
	Recipient   string    `gorm:"column:recipient;size:255" json:"recipient"`
	Attempts    int       `gorm:"column:attempts;default:0" json:"attempts"`
	Outcome     string    `gorm:"column:outcome;size:20" json:"outcome"`
	LastError   string    `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DeliveryResult) TableName() string {
	return "delivery_results"
}
