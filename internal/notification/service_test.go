package notification_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"community-notifications/internal/common/config"
	"community-notifications/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast_UnpaidJuly2024(t *testing.T) {
	env := createTestEnv(t, notification.Config{})
	env.ledger.AddPayment("res-b", notification.Period{Month: 7, Year: 2024})

	res, err := env.service.Broadcast(context.Background(), treasurer, notification.BroadcastRequest{
		Rule:     notification.TargetRule{Kind: notification.RuleUnpaidForPeriod, Period: "July 2024"},
		Template: notification.MessageTemplate{Title: "Dues July 2024", Body: "Dear neighbour {{recipientName}}, dues are outstanding."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	recs := allRecords(t, env.store)
	require.Len(t, recs, 2)
	byRecipient := map[string]notification.DeliveryRecord{}
	for _, r := range recs {
		byRecipient[r.RecipientID] = r
	}
	require.Contains(t, byRecipient, "res-a")
	require.Contains(t, byRecipient, "res-c")
	assert.NotContains(t, byRecipient, "res-b")

	assert.True(t, strings.HasPrefix(byRecipient["res-a"].Message, "Dear ANA PUTRI,\n\nDear neighbour Ana Putri,"))
	assert.True(t, strings.HasPrefix(byRecipient["res-c"].Message, "Dear RESIDENT,\n\nDear neighbour Resident,"))
	assert.Equal(t, "treasurer-1", byRecipient["res-a"].RecordedBy)
	for _, r := range recs {
		assert.False(t, r.Read)
		assert.Equal(t, res.BatchID, r.BatchID)
	}

	summaries := env.observer.calls()
	require.Len(t, summaries, 1)
	assert.Equal(t, notification.RuleUnpaidForPeriod, summaries[0].RuleKind)
	assert.Equal(t, "unpaidForPeriod:July 2024", summaries[0].Rule)
	assert.Equal(t, 2, summaries[0].Count)
}

func TestBroadcast_EmptySelectionWritesNothing(t *testing.T) {
	env := createTestEnv(t, notification.Config{})
	for _, id := range []string{"res-a", "res-b", "res-c"} {
		env.ledger.AddPayment(id, notification.Period{Month: 7, Year: 2024})
	}

	_, err := env.service.Broadcast(context.Background(), admin, notification.BroadcastRequest{
		Rule:     notification.TargetRule{Kind: notification.RuleUnpaidForPeriod, Period: "2024-07"},
		Template: createTestTemplate(),
	})
	assert.ErrorIs(t, err, notification.ErrEmptySelection)
	assert.Equal(t, 0, env.store.Len())
	assert.Empty(t, env.observer.calls())
}

func TestBroadcast_RejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		session notification.Session
		req     notification.BroadcastRequest
		wantErr error
	}{
		{
			name:    "resident cannot send",
			session: resident("res-a"),
			req:     notification.BroadcastRequest{Rule: notification.TargetRule{Kind: notification.RuleAllStaff}, Template: createTestTemplate()},
			wantErr: notification.ErrAccessDenied,
		},
		{
			name:    "template too long",
			session: admin,
			req: notification.BroadcastRequest{
				Rule:     notification.TargetRule{Kind: notification.RuleAllStaff},
				Template: notification.MessageTemplate{Title: strings.Repeat("x", 51), Body: "b"},
			},
			wantErr: notification.ErrTemplateTooLong,
		},
		{
			name:    "invalid rule",
			session: admin,
			req:     notification.BroadcastRequest{Rule: notification.TargetRule{Kind: "nobody"}, Template: createTestTemplate()},
			wantErr: notification.ErrInvalidTargetRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := createTestEnv(t, notification.Config{})
			_, err := env.service.Broadcast(context.Background(), tt.session, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, env.store.Len())
		})
	}
}

func TestBroadcast_ObserverFailureDoesNotFailSend(t *testing.T) {
	env := createTestEnv(t, notification.Config{})
	env.observer.err = errors.New("index unavailable")

	res, err := env.service.Broadcast(context.Background(), admin, notification.BroadcastRequest{
		Rule:     notification.TargetRule{Kind: notification.RuleAllOfRole, Role: notification.RoleResident},
		Template: createTestTemplate(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, env.observer.calls(), 1)
}

func TestBroadcast_ReplaySkipsObservers(t *testing.T) {
	env := createTestEnv(t, notification.Config{})
	req := notification.BroadcastRequest{
		BatchID:  "staff-meeting-1",
		Rule:     notification.TargetRule{Kind: notification.RuleAllStaff},
		Template: createTestTemplate(),
	}

	first, err := env.service.Broadcast(context.Background(), admin, req)
	require.NoError(t, err)
	second, err := env.service.Broadcast(context.Background(), admin, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, 3, env.store.Len())
	assert.Len(t, env.observer.calls(), 1)
}

func TestService_InboxLifecycle(t *testing.T) {
	env := createTestEnv(t, notification.Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.service.Broadcast(ctx, admin, notification.BroadcastRequest{
			Rule:     notification.TargetRule{Kind: notification.RuleExplicit, IDs: []string{"res-a", "res-b"}},
			Template: createTestTemplate(),
		})
		require.NoError(t, err)
	}

	unread, err := env.service.UnreadCount(ctx, resident("res-a"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	page, err := env.service.List(ctx, resident("res-a"), notification.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.False(t, page.IsLastPage)

	res, err := env.service.MarkRead(ctx, resident("res-a"), page.Records[0].ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	unread, err = env.service.UnreadCount(ctx, resident("res-a"), "")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	ok, err := env.service.DeleteOne(ctx, resident("res-a"), page.Records[1].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	del, err := env.service.DeleteAll(ctx, admin, notification.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 5, del.Deleted)
}

func TestBroadcast_HonorsMaxBatchSize(t *testing.T) {
	env := createTestEnv(t, notification.Config{Fanout: notification.FanoutConfig{MaxBatchSize: 2}})
	res, err := env.service.Broadcast(context.Background(), admin, notification.BroadcastRequest{
		Rule:     notification.TargetRule{Kind: notification.RuleAllOfRole, Role: notification.RoleResident},
		Template: createTestTemplate(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SubBatches)
}

func TestConfigFrom(t *testing.T) {
	var n config.NotificationConfig
	n.Composer.Salutation = "Yth. %s"
	n.Fanout.MaxBatchSize = 250
	n.Inbox.DefaultPageSize = 15
	n.Inbox.MaxPageSize = 60

	cfg := notification.ConfigFrom(n)
	assert.Equal(t, "Yth. %s", cfg.Composer.Salutation)
	assert.Equal(t, 250, cfg.Fanout.MaxBatchSize)
	assert.Equal(t, notification.InboxConfig{DefaultPageSize: 15, MaxPageSize: 60}, cfg.Inbox)
}
