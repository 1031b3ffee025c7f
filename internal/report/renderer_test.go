package report

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleData() *Data {
	return &Data{
		Type:     TypeSales,
		TenantID: "tenant-1",
		Range: DateRange{
			Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC),
		},
		GeneratedAt: time.Now(),
		Summary: []Metric{
			{Label: "Total Orders", Value: "42"},
			{Label: "Total Revenue", Value: "1337.00"},
		},
		Header: []string{"Payment Method", "Orders", "Revenue"},
		Rows: [][]string{
			{"card", "30", "1000.00"},
			{"cash", "12", "337.00"},
		},
	}
}

func TestCSVRenderer(t *testing.T) {
	result, err := CSVRenderer{}.Render(sampleData(), RenderConfig{
		Format:         FormatCSV,
		IncludeDetails: true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.ContentType != "text/csv" {
		t.Errorf("content type = %q", result.ContentType)
	}
	if result.Ext != ".csv" {
		t.Errorf("ext = %q", result.Ext)
	}

	// A default reader enforces a uniform field count across records.
	records, err := csv.NewReader(strings.NewReader(string(result.Content))).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	for i, rec := range records {
		if len(rec) != len(records[0]) {
			t.Errorf("record %d has %d fields, want %d", i, len(rec), len(records[0]))
		}
	}

	flat := string(result.Content)
	for _, want := range []string{"Sales Performance Report", "Total Orders,42", "card,30,1000.00"} {
		if !strings.Contains(flat, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if len(records) < 7 {
		t.Errorf("records = %d, want summary plus detail rows", len(records))
	}
}

func TestCSVRendererWithoutDetails(t *testing.T) {
	result, err := CSVRenderer{}.Render(sampleData(), RenderConfig{Format: FormatCSV})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(result.Content), "Payment Method") {
		t.Error("detail table present with IncludeDetails off")
	}
}

func TestRegistryUnknownFormat(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatCSV, CSVRenderer{})

	if _, err := reg.Render(sampleData(), RenderConfig{Format: FormatPDF}); err == nil {
		t.Error("expected error for unregistered format")
	}
	if _, err := reg.Render(sampleData(), RenderConfig{Format: FormatCSV}); err != nil {
		t.Errorf("registered format errored: %v", err)
	}
}

type emptyRenderer struct{}

func (emptyRenderer) Render(*Data, RenderConfig) (*RenderResult, error) {
	return &RenderResult{}, nil
}

func TestRegistryRejectsEmptyContent(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatPDF, emptyRenderer{})

	_, err := reg.Render(sampleData(), RenderConfig{Format: FormatPDF})
	if err == nil {
		t.Fatal("expected error for empty render output")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.Stage != "render" {
		t.Errorf("err = %v, want render-stage ExecutionError", err)
	}
}
