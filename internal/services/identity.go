package services

// Identity is the authenticated principal behind a request. The core
// never dereferences it; it is used for authorization checks and
// rate-limit bucketing only. Admin identities come from the static
// admin token tier, not from user accounts.
type Identity struct {
	UserID   string
	Username string
	Admin    bool
}

// CanEdit reports whether id may modify a road added by submitter.
func (id Identity) CanEdit(submitter string) bool {
	return id.Admin || (id.Username != "" && id.Username == submitter)
}
