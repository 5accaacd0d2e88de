package notification

import "fmt"

// Session is the authenticated caller, passed explicitly to every operation that needs it.
type Session struct {
	CallerID string `json:"callerId"`
	Role     Role   `json:"role"`
}

func (s Session) IsStaff() bool {
	return s.Role.IsStaff()
}

// Validate rejects sessions without a caller or with an unknown role.
func (s Session) Validate() error {
	if s.CallerID == "" {
		return fmt.Errorf("%w: session has no caller", ErrAccessDenied)
	}
	if s.CallerID == ScopeAll {
		return fmt.Errorf("%w: caller id %q is reserved", ErrAccessDenied, ScopeAll)
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrAccessDenied, s.Role)
	}
	return nil
}

// canAccessScope: staff may address any scope, residents only their own records.
func (s Session) canAccessScope(scope string) bool {
	if s.IsStaff() {
		return true
	}
	return scope != ScopeAll && scope == s.CallerID
}

// canDelete: staff may delete any record, residents only their own.
func (s Session) canDelete(rec *DeliveryRecord) bool {
	return s.IsStaff() || rec.RecipientID == s.CallerID
}
