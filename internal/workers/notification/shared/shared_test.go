package shared

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"community-notifications/internal/common/auth"
	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/validation"
	"community-notifications/internal/notification"
	"community-notifications/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubAuthenticator struct {
	identity *auth.Identity
	err      error
}

func (s stubAuthenticator) Authenticate(context.Context, string) (*auth.Identity, error) {
	return s.identity, s.err
}

func createTestValidator(t *testing.T) *validation.SchemaValidator {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)

	reg, err := registry.LoadRegistry(filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	v, err := validation.NewSchemaValidator(reg)
	require.NoError(t, err)
	return v
}

func createTestJob(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: "broadcast-notification", Variables: variables}}
}

// ==========================
// Session resolution
// ==========================

func TestSessionResolver_Caller(t *testing.T) {
	r := NewSessionResolver(nil)

	session, err := r.Resolve(context.Background(), &Caller{CallerID: "res-a", Role: "resident"}, "")
	require.NoError(t, err)
	assert.Equal(t, notification.Session{CallerID: "res-a", Role: notification.RoleResident}, session)

	_, err = r.Resolve(context.Background(), &Caller{CallerID: "res-a", Role: "landlord"}, "")
	assert.ErrorIs(t, err, notification.ErrAccessDenied)

	_, err = r.Resolve(context.Background(), nil, "")
	assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, apperrors.FromError(err).Code)

	_, err = r.Resolve(context.Background(), nil, "token")
	assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, apperrors.FromError(err).Code)
}

func TestSessionResolver_TokenRolePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		wantRole notification.Role
		wantErr  bool
	}{
		{name: "resident", roles: []string{"resident", "offline_access"}, wantRole: notification.RoleResident},
		{name: "staff wins over resident", roles: []string{"resident", "treasurer"}, wantRole: notification.RoleTreasurer},
		{name: "admin wins over officer", roles: []string{"officer", "admin"}, wantRole: notification.RoleAdmin},
		{name: "no notification role", roles: []string{"uma_authorization"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSessionResolver(stubAuthenticator{identity: &auth.Identity{Subject: "user-7", Roles: tt.roles}})

			// a token overrides any caller block
			session, err := r.Resolve(context.Background(), &Caller{CallerID: "spoofed", Role: "admin"}, "token")
			if tt.wantErr {
				assert.ErrorIs(t, err, notification.ErrAccessDenied)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-7", session.CallerID)
			assert.Equal(t, tt.wantRole, session.Role)
		})
	}
}

// ==========================
// Decoding
// ==========================

func TestJob_Decode(t *testing.T) {
	job := NewJob("broadcast-notification", 0, Deps{Validator: createTestValidator(t), Logger: logger.NewTestLogger(t)})

	type input struct {
		Caller *Caller `json:"caller"`
		Rule   struct {
			Kind string `json:"kind"`
		} `json:"rule"`
	}

	t.Run("valid variables", func(t *testing.T) {
		var in input
		err := job.Decode(createTestJob(`{
			"caller": {"callerId": "treasurer-1", "role": "treasurer"},
			"rule": {"kind": "allStaff"},
			"template": {"title": "Meeting", "body": "Friday 8pm"},
			"processStartedBy": "scheduler"
		}`), &in)
		require.NoError(t, err)
		assert.Equal(t, "treasurer-1", in.Caller.CallerID)
		assert.Equal(t, "allStaff", in.Rule.Kind)
	})

	tests := map[string]string{
		"no identity":  `{"rule": {"kind": "allStaff"}, "template": {"title": "t", "body": "b"}}`,
		"unknown kind": `{"accessToken": "x", "rule": {"kind": "everyone"}, "template": {"title": "t", "body": "b"}}`,
		"no template":  `{"accessToken": "x", "rule": {"kind": "allStaff"}}`,
		"not json":     `{"accessToken":`,
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			var in input
			err := job.Decode(createTestJob(vars), &in)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInputValidationFailed, apperrors.FromError(err).Code)
		})
	}
}
