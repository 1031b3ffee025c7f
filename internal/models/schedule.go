package models

import "time"

// Schedule run states. Running is the mutual-exclusion flag: at most one
// in-flight execution per schedule, enforced by a compare-and-set on this column.
const (
	ScheduleStatusIdle    = "idle"
	ScheduleStatusRunning = "running"
	ScheduleStatusPaused  = "paused"
)

// Schedule is a persisted, declarative definition of when and how to produce
// and deliver a report. Owned by a tenant; every query is tenant-scoped.
type Schedule struct {
	ID          string `gorm:"column:id;primaryKey;size:36" json:"id"`
	TenantID    string `gorm:"column:tenant_id;size:36;index:idx_schedules_tenant_active,priority:1" json:"tenant_id"`
	Name        string `gorm:"column:name;size:255" json:"name"`
	Description string `gorm:"column:description;size:1000" json:"description"`
	ReportType  string `gorm:"column:report_type;size:50;index:idx_schedules_report_type" json:"report_type"`

	// scheduleConfig
	Frequency  string `gorm:"column:frequency;size:20" json:"frequency"`
	TimeOfDay  string `gorm:"column:time_of_day;size:5" json:"time_of_day"` // "HH:MM" wall clock
	Timezone   string `gorm:"column:timezone;size:64" json:"timezone"`
	DayOfWeek  *int   `gorm:"column:day_of_week" json:"day_of_week,omitempty"`   // 0-6, weekly only
	DayOfMonth *int   `gorm:"column:day_of_month" json:"day_of_month,omitempty"` // 1-31, monthly only

	// reportConfig
	Format         string `gorm:"column:format;size:10" json:"format"`
	IncludeCharts  bool   `gorm:"column:include_charts;default:false" json:"include_charts"`
	IncludeDetails bool   `gorm:"column:include_details;default:true" json:"include_details"`
	Period         string `gorm:"column:period;size:20" json:"period"`

	// emailConfig; recipients is a JSON array of validated addresses
	EmailEnabled    bool   `gorm:"column:email_enabled;default:false" json:"email_enabled"`
	Recipients      string `gorm:"column:recipients;type:text" json:"recipients"`
	SubjectTemplate string `gorm:"column:subject_template;size:500" json:"subject_template"`
	MessageTemplate string `gorm:"column:message_template;type:text" json:"message_template"`

	// filters
	DateRangeType string     `gorm:"column:date_range_type;size:20" json:"date_range_type"`
	RelativeDays  *int       `gorm:"column:relative_days" json:"relative_days,omitempty"`
	CustomStart   *time.Time `gorm:"column:custom_start" json:"custom_start,omitempty"`
	CustomEnd     *time.Time `gorm:"column:custom_end" json:"custom_end,omitempty"`
	BranchIDs     string     `gorm:"column:branch_ids;type:text" json:"branch_ids"` // JSON array

	IsActive  bool       `gorm:"column:is_active;default:true;index:idx_schedules_tenant_active,priority:2;index:idx_schedules_due,priority:1" json:"is_active"`
	Status    string     `gorm:"column:status;size:20;default:'idle'" json:"status"`
	NextRunAt *time.Time `gorm:"column:next_run_at;index:idx_schedules_due,priority:2" json:"next_run_at,omitempty"`
	LastRunAt *time.Time `gorm:"column:last_run_at" json:"last_run_at,omitempty"`

	// Consecutive failures; reaching MaxFailures auto-pauses the schedule.
	FailureCount int `gorm:"column:failure_count;default:0" json:"failure_count"`
	MaxFailures  int `gorm:"column:max_failures;default:3" json:"max_failures"`

	TotalRuns      int `gorm:"column:total_runs;default:0" json:"total_runs"`
	SuccessfulRuns int `gorm:"column:successful_runs;default:0" json:"successful_runs"`

	CreatedBy      string    `gorm:"column:created_by;size:36" json:"created_by"`
	CreatedByEmail string    `gorm:"column:created_by_email;size:255" json:"created_by_email"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// SuccessRate returns the percentage of successful runs, 0 when never run.
func (s *Schedule) SuccessRate() int {
	if s.TotalRuns == 0 {
		return 0
	}
	return int(float64(s.SuccessfulRuns) / float64(s.TotalRuns) * 100)
}
