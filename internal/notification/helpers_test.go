package notification_test

import (
	"context"
	"sync"
	"testing"

	"community-notifications/internal/common/logger"
	"community-notifications/internal/notification"
	"community-notifications/internal/notification/memstore"
)

// ==========================
// Test Helper Functions
// ==========================

var (
	admin     = notification.Session{CallerID: "admin-1", Role: notification.RoleAdmin}
	treasurer = notification.Session{CallerID: "treasurer-1", Role: notification.RoleTreasurer}
)

func resident(id string) notification.Session {
	return notification.Session{CallerID: id, Role: notification.RoleResident}
}

type testEnv struct {
	store     *memstore.Store
	directory *memstore.Directory
	ledger    *memstore.Ledger
	guard     *memGuard
	observer  *recordingObserver
	service   *notification.Service
}

func createTestEnv(t *testing.T, cfg notification.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store: memstore.NewStore(),
		directory: memstore.NewDirectory(
			notification.Recipient{ID: "res-a", DisplayName: "Ana Putri", Email: "ana@example.org", Role: notification.RoleResident},
			notification.Recipient{ID: "res-b", DisplayName: "Budi", Role: notification.RoleResident},
			notification.Recipient{ID: "res-c", DisplayName: "", Role: notification.RoleResident},
			notification.Recipient{ID: "admin-1", DisplayName: "Admin", Role: notification.RoleAdmin},
			notification.Recipient{ID: "treasurer-1", DisplayName: "Bendahara", Role: notification.RoleTreasurer},
			notification.Recipient{ID: "officer-1", DisplayName: "Petugas", Role: notification.RoleOfficer},
		),
		ledger:   memstore.NewLedger(),
		guard:    newMemGuard(),
		observer: &recordingObserver{},
	}
	env.service = notification.NewService(notification.Dependencies{
		Store:     env.store,
		Directory: env.directory,
		Ledger:    env.ledger,
		Guard:     env.guard,
		Observers: []notification.FanoutObserver{env.observer},
	}, cfg, logger.NewTestLogger(t))
	return env
}

func createTestTemplate() notification.MessageTemplate {
	return notification.MessageTemplate{
		Title: "Water outage",
		Body:  "Hello {{recipientName}}, water is off on Saturday.",
		Link:  "/announcements/42",
	}
}

// memGuard is an in-process BatchGuard.
type memGuard struct {
	mu      sync.Mutex
	pending map[string]bool
	done    map[string]notification.FanoutResult
}

func newMemGuard() *memGuard {
	return &memGuard{pending: map[string]bool{}, done: map[string]notification.FanoutResult{}}
}

func (g *memGuard) Acquire(_ context.Context, batchID string) (*notification.FanoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.done[batchID]; ok {
		return &r, nil
	}
	if g.pending[batchID] {
		return nil, notification.ErrFanoutInProgress
	}
	g.pending[batchID] = true
	return nil, nil
}

func (g *memGuard) Complete(_ context.Context, batchID string, result notification.FanoutResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, batchID)
	g.done[batchID] = result
	return nil
}

func (g *memGuard) Release(_ context.Context, batchID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, batchID)
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	summaries []notification.BatchSummary
	err       error
}

func (o *recordingObserver) Name() string { return "recording" }

func (o *recordingObserver) OnFanout(_ context.Context, s notification.BatchSummary, _ []notification.RenderedMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries = append(o.summaries, s)
	return o.err
}

func (o *recordingObserver) calls() []notification.BatchSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notification.BatchSummary(nil), o.summaries...)
}

func allRecords(t *testing.T, s *memstore.Store) []notification.DeliveryRecord {
	t.Helper()
	recs, err := s.Query(context.Background(), notification.RecordQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return recs
}
