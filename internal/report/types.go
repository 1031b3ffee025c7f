package report

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of data a report covers.
type Type string

const (
	TypeSales             Type = "sales"
	TypeMenuPerformance   Type = "menu-performance"
	TypeCustomerAnalytics Type = "customer-analytics"
	TypeFinancialSummary  Type = "financial-summary"
	TypeStaffPerformance  Type = "staff-performance"
	TypeBranchPerformance Type = "branch-performance"
)

// AllTypes lists every supported report type.
func AllTypes() []Type {
	return []Type{
		TypeSales,
		TypeMenuPerformance,
		TypeCustomerAnalytics,
		TypeFinancialSummary,
		TypeStaffPerformance,
		TypeBranchPerformance,
	}
}

// ParseType validates a raw report type string.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", &ValidationError{Field: "report_type", Reason: fmt.Sprintf("unknown report type %q", raw)}
}

// Title returns the human-readable report title used in documents and emails.
func (t Type) Title() string {
	switch t {
	case TypeSales:
		return "Sales Performance Report"
	case TypeMenuPerformance:
		return "Menu Performance Report"
	case TypeCustomerAnalytics:
		return "Customer Analytics Report"
	case TypeFinancialSummary:
		return "Financial Summary Report"
	case TypeStaffPerformance:
		return "Staff Performance Report"
	case TypeBranchPerformance:
		return "Branch Performance Report"
	default:
		return string(t)
	}
}

// Format is the output document format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a raw format string.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatPDF, FormatExcel, FormatCSV:
		return f, nil
	}
	return "", &ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", raw)}
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatPDF:
		return ".pdf"
	case FormatExcel:
		return ".xlsx"
	case FormatCSV:
		return ".csv"
	default:
		return ".bin"
	}
}

// ContentType returns the MIME type served on download.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// DateRange is a half-open [Start, End) data window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Filters narrow the data window of a report run.
type Filters struct {
	DateRangeType string
	RelativeDays  int
	CustomStart   *time.Time
	CustomEnd     *time.Time
	BranchIDs     []string
	Period        string
}

// Resolve turns the filters into a concrete date range relative to now.
// Custom bounds are taken literally; end-before-start is rejected at
// validation time, but re-checked here since a run must never execute with an
// inverted window.
func (f Filters) Resolve(now time.Time) (DateRange, error) {
	switch f.DateRangeType {
	case "relative", "":
		days := f.RelativeDays
		if days <= 0 {
			days = 1
		}
		return DateRange{Start: now.AddDate(0, 0, -days), End: now}, nil
	case "custom":
		if f.CustomStart == nil || f.CustomEnd == nil {
			return DateRange{}, &ValidationError{Field: "filters", Reason: "custom date range requires both bounds"}
		}
		if f.CustomEnd.Before(*f.CustomStart) {
			return DateRange{}, &ValidationError{Field: "filters", Reason: "date range end before start"}
		}
		return DateRange{Start: *f.CustomStart, End: *f.CustomEnd}, nil
	default:
		return DateRange{}, &ValidationError{Field: "filters.date_range_type", Reason: fmt.Sprintf("unknown date range type %q", f.DateRangeType)}
	}
}

// RenderConfig is the renderer-facing slice of a schedule's report config.
type RenderConfig struct {
	Format         Format
	IncludeCharts  bool
	IncludeDetails bool
	Title          string
}

// Metric is one labelled key figure in a report summary.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Data is the figure set a provider resolves for one report run. It is
// renderer-agnostic: a summary block plus an optional detail table.
type Data struct {
	Type        Type      `json:"type"`
	TenantID    string    `json:"tenant_id"`
	Range       DateRange `json:"range"`
	GeneratedAt time.Time `json:"generated_at"`

	Summary []Metric   `json:"summary"`
	Header  []string   `json:"header,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}
