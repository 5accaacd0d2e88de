package notification

import (
	"context"
	"fmt"

	"community-notifications/internal/common/logger"
)

// Resolver turns a TargetRule into a deduplicated recipient list. It never writes.
type Resolver struct {
	directory Directory
	ledger    PaymentLedger
	log       logger.Logger
}

func NewResolver(directory Directory, ledger PaymentLedger, log logger.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		ledger:    ledger,
		log:       log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// Resolve returns recipients in a stable order: first occurrence for explicit lists,
// directory order otherwise. An empty result is ErrEmptySelection.
func (r *Resolver) Resolve(ctx context.Context, rule TargetRule) ([]Recipient, error) {
	var (
		recipients []Recipient
		err        error
	)

	switch rule.Kind {
	case RuleExplicit:
		recipients, err = r.explicit(ctx, rule.IDs)
	case RuleAllOfRole:
		if !rule.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidTargetRule, rule.Role)
		}
		recipients, err = r.byRoles(ctx, rule.Role)
	case RuleAllStaff:
		recipients, err = r.byRoles(ctx, StaffRoles...)
	case RuleUnpaidForPeriod:
		recipients, err = r.unpaid(ctx, rule.Period)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTargetRule, rule.Kind)
	}
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: rule %s matched nobody", ErrEmptySelection, rule.Describe())
	}
	return recipients, nil
}

func (r *Resolver) explicit(ctx context.Context, ids []string) ([]Recipient, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		rec, err := r.directory.GetRecipient(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: get recipient %s: %w", ErrDirectoryLookupFailed, id, err)
		}
		if rec == nil {
			r.log.Warn("skipping unknown recipient", map[string]interface{}{"recipientId": id})
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *Resolver) byRoles(ctx context.Context, roles ...Role) ([]Recipient, error) {
	seen := map[string]bool{}
	var out []Recipient
	for _, role := range roles {
		recs, err := r.directory.GetRecipientsByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("%w: list role %s: %w", ErrDirectoryLookupFailed, role, err)
		}
		for _, rec := range recs {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

// unpaid selects residents without a payment for the period. A ledger failure aborts
// resolution; it is never read as "unpaid".
func (r *Resolver) unpaid(ctx context.Context, periodKey string) ([]Recipient, error) {
	period, err := ParsePeriod(periodKey)
	if err != nil {
		return nil, err
	}

	residents, err := r.byRoles(ctx, RoleResident)
	if err != nil {
		return nil, err
	}

	var out []Recipient
	for _, rec := range residents {
		paid, err := r.ledger.HasPayment(ctx, rec.ID, period)
		if err != nil {
			return nil, fmt.Errorf("%w: payment lookup for %s in %s: %w",
				ErrDirectoryLookupFailed, rec.ID, period.Key(), err)
		}
		if !paid {
			out = append(out, rec)
		}
	}

	r.log.Debug("resolved unpaid residents", map[string]interface{}{
		"period":    period.Key(),
		"residents": len(residents),
		"unpaid":    len(out),
	})
	return out, nil
}
