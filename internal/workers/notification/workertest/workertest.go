// Package workertest builds an in-memory notification service for worker tests.
package workertest

import (
	"context"
	"testing"
	"time"

	"community-notifications/internal/common/auth"
	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/common/logger"
	"community-notifications/internal/notification"
	"community-notifications/internal/notification/memstore"
	"community-notifications/internal/workers/notification/shared"
)

var (
	Treasurer = &shared.Caller{CallerID: "treasurer-1", Role: "treasurer"}
	Admin     = &shared.Caller{CallerID: "admin-1", Role: "admin"}
)

func Resident(id string) *shared.Caller {
	return &shared.Caller{CallerID: id, Role: "resident"}
}

// Authenticator accepts only the tokens it was given.
type Authenticator map[string]*auth.Identity

func (a Authenticator) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := a[token]; ok {
		return id, nil
	}
	return nil, apperrors.NewAuthenticationError("token is expired, revoked or malformed")
}

type Env struct {
	Store   *memstore.Store
	Service *notification.Service
	Deps    shared.Deps
}

// New returns a service over three residents (res-a, res-b, res-c) and two staff members.
// The token "res-a-token" authenticates res-a.
func New(t *testing.T) *Env {
	t.Helper()
	log := logger.NewTestLogger(t)
	store := memstore.NewStore()
	directory := memstore.NewDirectory(
		notification.Recipient{ID: "res-a", DisplayName: "Ana Putri", Role: notification.RoleResident},
		notification.Recipient{ID: "res-b", DisplayName: "Budi", Role: notification.RoleResident},
		notification.Recipient{ID: "res-c", Role: notification.RoleResident},
		notification.Recipient{ID: "admin-1", DisplayName: "Admin", Role: notification.RoleAdmin},
		notification.Recipient{ID: "treasurer-1", DisplayName: "Bendahara", Role: notification.RoleTreasurer},
	)

	return &Env{
		Store: store,
		Service: notification.NewService(notification.Dependencies{
			Store:     store,
			Directory: directory,
			Ledger:    memstore.NewLedger(),
		}, notification.Config{Inbox: notification.InboxConfig{DefaultPageSize: 2}}, log),
		Deps: shared.Deps{
			Sessions: shared.NewSessionResolver(Authenticator{
				"res-a-token": {Subject: "res-a", Roles: []string{"resident"}},
			}),
			Logger: log,
		},
	}
}

// Seed sends n announcements to every resident, one second apart in commit order.
func (e *Env) Seed(t *testing.T, n int) {
	t.Helper()
	session := notification.Session{CallerID: "treasurer-1", Role: notification.RoleTreasurer}
	for i := 0; i < n; i++ {
		_, err := e.Service.Broadcast(context.Background(), session, notification.BroadcastRequest{
			Rule: notification.TargetRule{Kind: notification.RuleAllOfRole, Role: notification.RoleResident},
			Template: notification.MessageTemplate{
				Title: "Announcement",
				Body:  "Community meeting on " + time.Date(2024, 8, i+1, 0, 0, 0, 0, time.UTC).Format("2 January"),
			},
		})
		if err != nil {
			t.Fatalf("seed broadcast %d: %v", i, err)
		}
	}
}

// IDs returns the record IDs of recipientID, newest first.
func (e *Env) IDs(t *testing.T, recipientID string) []string {
	t.Helper()
	session := notification.Session{CallerID: "admin-1", Role: notification.RoleAdmin}
	page, err := e.Service.List(context.Background(), session, notification.ListRequest{Scope: recipientID, PageSize: notification.MaxPageSize})
	if err != nil {
		t.Fatalf("list %s: %v", recipientID, err)
	}
	ids := make([]string, len(page.Records))
	for i, r := range page.Records {
		ids[i] = r.ID
	}
	return ids
}

func Code(err error) apperrors.ErrorCode {
	return apperrors.FromError(err).Code
}
