package listnotifications

import (
	"context"
	"testing"
	"time"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"
	"community-notifications/internal/workers/notification/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, seeded int) (*Handler, *workertest.Env) {
	t.Helper()
	env := workertest.New(t)
	env.Seed(t, seeded)
	return NewHandler(&Config{Timeout: 5 * time.Second}, env.Service, env.Deps), env
}

func TestExecute_PagesThroughOwnInbox(t *testing.T) {
	handler, env := createTestHandler(t, 3)
	all := env.IDs(t, "res-a")
	require.Len(t, all, 3)

	first, err := handler.Execute(context.Background(), &Input{Caller: workertest.Resident("res-a"), Scope: "res-a"})
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.Equal(t, all[0], first.Records[0].ID)
	assert.False(t, first.IsLastPage)
	require.NotNil(t, first.UnreadCount)
	assert.Equal(t, 3, *first.UnreadCount)

	second, err := handler.Execute(context.Background(), &Input{
		Caller: workertest.Resident("res-a"),
		Scope:  "res-a",
		Cursor: first.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Equal(t, all[2], second.Records[0].ID)
	assert.True(t, second.IsLastPage)

	back, err := handler.Execute(context.Background(), &Input{
		Caller:    workertest.Resident("res-a"),
		Scope:     "res-a",
		Cursor:    second.PrevCursor,
		Direction: "prev",
	})
	require.NoError(t, err)
	require.Len(t, back.Records, 2)
	assert.Equal(t, all[0], back.Records[0].ID)
	assert.Equal(t, all[1], back.Records[1].ID)
}

func TestExecute_StaffReadAllScope(t *testing.T) {
	handler, _ := createTestHandler(t, 1)

	out, err := handler.Execute(context.Background(), &Input{Caller: workertest.Admin, Scope: notification.ScopeAll, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, out.Records, 3)
	assert.True(t, out.IsLastPage)
	assert.Nil(t, out.UnreadCount)
}

func TestExecute_EmptyInbox(t *testing.T) {
	handler, _ := createTestHandler(t, 0)

	out, err := handler.Execute(context.Background(), &Input{Caller: workertest.Resident("res-b"), Scope: "res-b"})
	require.NoError(t, err)
	assert.NotNil(t, out.Records)
	assert.Empty(t, out.Records)
	assert.True(t, out.IsLastPage)
	assert.Equal(t, 0, *out.UnreadCount)
}

func TestExecute_TokenCaller(t *testing.T) {
	handler, _ := createTestHandler(t, 1)

	out, err := handler.Execute(context.Background(), &Input{AccessToken: "res-a-token", Scope: "res-a"})
	require.NoError(t, err)
	assert.Len(t, out.Records, 1)
}

func TestExecute_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "resident reads another inbox",
			input:    &Input{Caller: workertest.Resident("res-a"), Scope: "res-b"},
			wantCode: apperrors.ErrCodeAccessDenied,
		},
		{
			name:     "resident reads all",
			input:    &Input{Caller: workertest.Resident("res-a"), Scope: notification.ScopeAll},
			wantCode: apperrors.ErrCodeAccessDenied,
		},
		{
			name:     "garbage cursor",
			input:    &Input{Caller: workertest.Resident("res-a"), Scope: "res-a", Cursor: "%%%"},
			wantCode: apperrors.ErrCodeInvalidCursor,
		},
		{
			name:     "unknown role",
			input:    &Input{Caller: &shared.Caller{CallerID: "res-a", Role: "janitor"}, Scope: "res-a"},
			wantCode: apperrors.ErrCodeAccessDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := createTestHandler(t, 1)
			out, err := handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, workertest.Code(err))
		})
	}
}
