package models

import "time"

// APIResponse is the uniform envelope returned by every API endpoint.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list payloads.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ScheduleConfigRequest carries the when-part of a schedule.
type ScheduleConfigRequest struct {
	Frequency  string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Time       string `json:"time" validate:"required,len=5"` // "HH:MM"
	Timezone   string `json:"timezone" validate:"required"`
	DayOfWeek  *int   `json:"day_of_week,omitempty" validate:"omitempty,gte=0,lte=6"`
	DayOfMonth *int   `json:"day_of_month,omitempty" validate:"omitempty,gte=1,lte=31"`
}

// ReportConfigRequest carries the output-part of a schedule.
type ReportConfigRequest struct {
	Format         string `json:"format" validate:"required,oneof=pdf excel csv"`
	IncludeCharts  bool   `json:"include_charts"`
	IncludeDetails *bool  `json:"include_details,omitempty"`
	Period         string `json:"period,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
}

// EmailConfigRequest carries the delivery-part of a schedule.
type EmailConfigRequest struct {
	Enabled         bool     `json:"enabled"`
	Recipients      []string `json:"recipients,omitempty" validate:"omitempty,dive,email"`
	SubjectTemplate string   `json:"subject_template,omitempty" validate:"omitempty,max=500"`
	MessageTemplate string   `json:"message_template,omitempty" validate:"omitempty,max=2000"`
}

// FiltersRequest carries the data-window part of a schedule.
type FiltersRequest struct {
	DateRangeType string     `json:"date_range_type" validate:"required,oneof=relative custom"`
	RelativeDays  *int       `json:"relative_days,omitempty" validate:"omitempty,gte=1,lte=366"`
	CustomStart   *time.Time `json:"custom_start,omitempty"`
	CustomEnd     *time.Time `json:"custom_end,omitempty"`
	BranchIDs     []string   `json:"branch_ids,omitempty"`
}

// SaveScheduleRequest is the body of POST /schedules and PUT /schedules/:id.
type SaveScheduleRequest struct {
	Name           string                `json:"name" validate:"required,min=1,max=255"`
	Description    string                `json:"description,omitempty" validate:"omitempty,max=1000"`
	ReportType     string                `json:"report_type" validate:"required"`
	ScheduleConfig ScheduleConfigRequest `json:"schedule_config" validate:"required"`
	ReportConfig   ReportConfigRequest   `json:"report_config" validate:"required"`
	EmailConfig    EmailConfigRequest    `json:"email_config"`
	Filters        FiltersRequest        `json:"filters" validate:"required"`
}

// EmailReportRequest is the body of POST /email: a one-off, non-scheduled
// report generation and delivery.
type EmailReportRequest struct {
	ReportType    string    `json:"report_type" validate:"required"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required"`
	Format        string    `json:"format" validate:"required,oneof=pdf excel csv"`
	Recipients    []string  `json:"recipients" validate:"required,min=1,dive,email"`
	Subject       string    `json:"subject,omitempty" validate:"omitempty,max=200"`
	Message       string    `json:"message,omitempty" validate:"omitempty,max=1000"`
	BranchIDs     []string  `json:"branch_ids,omitempty"`
	Period        string    `json:"period,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	IncludeCharts bool      `json:"include_charts"`
}
