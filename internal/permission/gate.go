package permission

import (
	"strings"

	"reportflow/internal/report"
)

// Role is a tenant-scoped user role carried in the auth token.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// roleRank orders roles by privilege; higher includes lower.
var roleRank = map[Role]int{
	RoleViewer:  0,
	RoleStaff:   1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// minimumRole maps report types to the least role allowed to schedule or run
// them. Financial and per-person figures need manager or above; the rest need
// staff.
var minimumRole = map[report.Type]Role{
	report.TypeSales:             RoleStaff,
	report.TypeMenuPerformance:   RoleStaff,
	report.TypeCustomerAnalytics: RoleStaff,
	report.TypeFinancialSummary:  RoleManager,
	report.TypeStaffPerformance:  RoleManager,
	report.TypeBranchPerformance: RoleManager,
}

// ParseRole normalizes a raw role claim. Unknown roles degrade to viewer,
// which can do nothing, rather than erroring out of the auth path.
func ParseRole(raw string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRank[r]; !ok {
		return RoleViewer
	}
	return r
}

// Gate answers whether a role may perform an action on a report type.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Authorize returns nil when the role's rank meets the report type's minimum,
// an AuthorizationError otherwise. Action is only used in the error message.
func (g *Gate) Authorize(role Role, typ report.Type, action string) error {
	min, ok := minimumRole[typ]
	if !ok {
		min = RoleManager
	}
	if roleRank[role] < roleRank[min] {
		return &report.AuthorizationError{Role: string(role), ReportType: typ, Action: action}
	}
	return nil
}

// CanManage reports whether the role may create or mutate schedules at all.
// Viewers are read-only across the board.
func (g *Gate) CanManage(role Role) bool {
	return roleRank[role] >= roleRank[RoleStaff]
}
