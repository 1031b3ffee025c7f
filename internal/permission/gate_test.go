package permission

import (
	"errors"
	"testing"

	"reportflow/internal/report"
)

func TestAuthorizeMatrix(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		role    Role
		typ     report.Type
		allowed bool
	}{
		{RoleStaff, report.TypeSales, true},
		{RoleStaff, report.TypeMenuPerformance, true},
		{RoleStaff, report.TypeCustomerAnalytics, true},
		{RoleStaff, report.TypeFinancialSummary, false},
		{RoleStaff, report.TypeStaffPerformance, false},
		{RoleStaff, report.TypeBranchPerformance, false},
		{RoleManager, report.TypeFinancialSummary, true},
		{RoleManager, report.TypeStaffPerformance, true},
		{RoleAdmin, report.TypeBranchPerformance, true},
		{RoleViewer, report.TypeSales, false},
		{RoleViewer, report.TypeFinancialSummary, false},
	}
	for _, tc := range tests {
		err := gate.Authorize(tc.role, tc.typ, "schedule")
		if tc.allowed && err != nil {
			t.Errorf("%s/%s: unexpected deny: %v", tc.role, tc.typ, err)
		}
		if !tc.allowed {
			var authzErr *report.AuthorizationError
			if !errors.As(err, &authzErr) {
				t.Errorf("%s/%s: want AuthorizationError, got %v", tc.role, tc.typ, err)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"Manager", RoleManager},
		{" staff ", RoleStaff},
		{"viewer", RoleViewer},
		{"superuser", RoleViewer},
		{"", RoleViewer},
	}
	for _, tc := range tests {
		if got := ParseRole(tc.in); got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanManage(t *testing.T) {
	gate := NewGate()
	if gate.CanManage(RoleViewer) {
		t.Error("viewer must not manage schedules")
	}
	for _, role := range []Role{RoleStaff, RoleManager, RoleAdmin} {
		if !gate.CanManage(role) {
			t.Errorf("%s should manage schedules", role)
		}
	}
}
