// Package shared holds the job plumbing common to every notification worker: caller
// resolution, variable decoding and job completion.
package shared

import (
	"context"
	"errors"
	"fmt"

	"community-notifications/internal/common/auth"
	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
)

var ErrMissingIdentity = errors.New("job variables carry neither caller nor accessToken")

// Caller is the identity a process passes when it already authenticated the user.
type Caller struct {
	CallerID string `json:"callerId"`
	Role     string `json:"role"`
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// rolePrecedence picks the strongest notification role from a token's realm roles.
var rolePrecedence = []notification.Role{
	notification.RoleAdmin,
	notification.RoleTreasurer,
	notification.RoleOfficer,
	notification.RoleResident,
}

// SessionResolver builds a notification.Session from job variables. An access token wins
// over an explicit caller when both are present.
type SessionResolver struct {
	auth Authenticator
}

// NewSessionResolver accepts a nil authenticator; token-bearing jobs then fail.
func NewSessionResolver(a Authenticator) *SessionResolver {
	return &SessionResolver{auth: a}
}

func (r *SessionResolver) Resolve(ctx context.Context, caller *Caller, accessToken string) (notification.Session, error) {
	if accessToken != "" {
		return r.fromToken(ctx, accessToken)
	}
	if caller == nil {
		return notification.Session{}, apperrors.NewAuthenticationError(ErrMissingIdentity.Error())
	}

	session := notification.Session{CallerID: caller.CallerID, Role: notification.Role(caller.Role)}
	if err := session.Validate(); err != nil {
		return notification.Session{}, err
	}
	return session, nil
}

func (r *SessionResolver) fromToken(ctx context.Context, token string) (notification.Session, error) {
	if r.auth == nil {
		return notification.Session{}, apperrors.NewAuthenticationError("token authentication is not configured")
	}

	identity, err := r.auth.Authenticate(ctx, token)
	if err != nil {
		return notification.Session{}, err
	}

	for _, role := range rolePrecedence {
		if identity.HasRole(string(role)) {
			return notification.Session{CallerID: identity.Subject, Role: role}, nil
		}
	}
	return notification.Session{}, fmt.Errorf("%w: %s holds no notification role", notification.ErrAccessDenied, identity.Subject)
}
