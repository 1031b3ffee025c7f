package permission

// Actor is the authenticated caller, as carried in the auth token claims.
type Actor struct {
	UserID   string
	TenantID string
	Email    string
	Role     Role
}
