package memstore

import (
	"context"
	"sync"

	"community-notifications/internal/notification"
)

// Directory is an in-memory user list. Role queries return users in insertion order.
type Directory struct {
	mu    sync.RWMutex
	users []notification.Recipient
	Err   error // returned by every lookup when set
}

func NewDirectory(users ...notification.Recipient) *Directory {
	return &Directory{users: users}
}

func (d *Directory) Add(users ...notification.Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, users...)
}

func (d *Directory) GetRecipientsByRole(_ context.Context, role notification.Role) ([]notification.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}

	var out []notification.Recipient
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *Directory) GetRecipient(_ context.Context, id string) (*notification.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}

	for _, u := range d.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// Ledger records payments by recipient and period key.
type Ledger struct {
	mu       sync.RWMutex
	payments map[string]map[string]bool
	Err      error
}

func NewLedger() *Ledger {
	return &Ledger{payments: map[string]map[string]bool{}}
}

func (l *Ledger) AddPayment(recipientID string, period notification.Period) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.payments[recipientID] == nil {
		l.payments[recipientID] = map[string]bool{}
	}
	l.payments[recipientID][period.Key()] = true
}

func (l *Ledger) HasPayment(_ context.Context, recipientID string, period notification.Period) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return false, l.Err
	}
	return l.payments[recipientID][period.Key()], nil
}
