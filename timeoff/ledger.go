/*
ledger.go - Balance effects of the leave request lifecycle

PURPOSE:
  The host workflow calls the Ledger when a request is saved or deleted.
  The Ledger applies the matching change to the employee's balance and
  saves it with an optimistic version check.

TRANSITIONS:
  -> Rejected (from any other state)   restore the deducted days
  delete of a non-rejected request      restore the deducted days
  -> PendingDeductBalance               overwrite all six counters with
                                        the values the request carries
  anything else                         no balance change

RESTORE BY KIND:
  annual       annual restore (below)
  casual       casual += days, plus annual restore if casual counts as annual
  transferred  transferred += days
  replacement  replacement += days
  sick         sick += days
  unpaid       unpaid -= days

ANNUAL RESTORE:
  Without carry-over, annual += days. With carry-over, the reset date
  (default July 1 of the balance year) splits two cases:

  End before reset:
    annual + days < standard  -> annual += days
    otherwise                 -> annual = standard, the excess goes to
                                 transferred
  End on/after reset:
    expired = snapshot.transferred - carried.transferred
    annual = min(annual + days - expired, standard)

CONFLICTS:
  A stale balance version surfaces as generic.ErrConcurrentModification.
  The Ledger never retries; the caller decides.

SEE ALSO:
  - request.go: Request and its snapshot
  - accrual.go: Yearly balance creation
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
)

// Ledger applies request lifecycle events to balances.
type Ledger struct {
	Balances BalanceStore
	Kinds    KindResolver
	// ResetMonth and ResetDay locate the carry-over reset in the balance
	// year. Zero values mean July 1.
	ResetMonth time.Month
	ResetDay   int
	Audit      generic.AuditLog
	Log        *logger.Logger
}

// NewLedger returns a Ledger with the July 1 reset date.
func NewLedger(balances BalanceStore, kinds KindResolver, log *logger.Logger) *Ledger {
	return &Ledger{
		Balances:   balances,
		Kinds:      kinds,
		ResetMonth: time.July,
		ResetDay:   1,
		Log:        log,
	}
}

// OnSave reacts to a saved request. previous is the status before the
// save (empty on creation). It returns the saved balance, or nil when the
// transition does not touch balances.
func (l *Ledger) OnSave(ctx context.Context, req Request, previous RequestStatus) (*Balance, error) {
	switch {
	case req.Status == StatusRejected && previous != StatusRejected:
		return l.restore(ctx, req)
	case req.Status == StatusPendingDeductBalance:
		return l.commit(ctx, req)
	}
	return nil, nil
}

// OnDelete reacts to a deleted request. Rejected requests were already
// restored and are ignored.
func (l *Ledger) OnDelete(ctx context.Context, req Request) (*Balance, error) {
	if req.Status == StatusRejected {
		return nil, nil
	}
	return l.restore(ctx, req)
}

func (l *Ledger) restore(ctx context.Context, req Request) (*Balance, error) {
	kind, err := l.Kinds.Kind(ctx, req.LeaveTypeRef)
	if err != nil {
		return nil, fmt.Errorf("request %s: classify leave type %d: %w", req.ID, req.LeaveTypeRef, err)
	}
	bal, err := l.balanceOf(ctx, req)
	if err != nil {
		return nil, err
	}

	days := req.Days
	switch kind {
	case KindAnnual:
		if err := l.restoreAnnual(req, bal); err != nil {
			return nil, err
		}
	case KindCasual:
		bal.Casual = bal.Casual.Add(days)
		if req.CasualFromAnnual {
			if err := l.restoreAnnual(req, bal); err != nil {
				return nil, err
			}
		}
	case KindTransferred:
		bal.Transferred = bal.Transferred.Add(days)
	case KindReplacement:
		bal.Replacement = bal.Replacement.Add(days)
	case KindSick:
		bal.Sick = bal.Sick.Add(days)
	case KindUnpaid:
		bal.Unpaid = bal.Unpaid.Sub(days)
	default:
		return nil, fmt.Errorf("request %s: %w: %q", req.ID, generic.ErrUnknownLeaveType, kind)
	}

	if err := l.save(ctx, bal); err != nil {
		return nil, fmt.Errorf("request %s: restore %s days: %w", req.ID, kind, err)
	}
	l.record(ctx, generic.AuditBalanceRestored, bal, req, fmt.Sprintf("restored %s %s days", days, kind))
	return bal, nil
}

func (l *Ledger) commit(ctx context.Context, req Request) (*Balance, error) {
	bal, err := l.balanceOf(ctx, req)
	if err != nil {
		return nil, err
	}
	bal.BalanceFields = req.Carried
	if err := l.save(ctx, bal); err != nil {
		return nil, fmt.Errorf("request %s: commit balance: %w", req.ID, err)
	}
	l.record(ctx, generic.AuditBalanceCommitted, bal, req, "balance committed from request")
	return bal, nil
}

// restoreAnnual adds the request's days back to the annual counter.
func (l *Ledger) restoreAnnual(req Request, bal *Balance) error {
	days := req.Days
	if !req.TransferApplied {
		bal.Annual = bal.Annual.Add(days)
		return nil
	}

	limit := bal.StandardAnnual
	if req.End.Before(l.resetDate(bal.Year)) {
		if bal.Annual.Add(days).LessThan(limit) {
			bal.Annual = bal.Annual.Add(days)
			return nil
		}
		excess := days.Sub(limit.Sub(bal.Annual))
		bal.Annual = limit
		bal.Transferred = bal.Transferred.Add(excess)
		return nil
	}

	snap, err := req.Snapshot()
	if err != nil {
		return err
	}
	expired := snap.Transferred.Sub(req.Carried.Transferred)
	bal.Annual = decimal.Min(bal.Annual.Add(days.Sub(expired)), limit)
	return nil
}

func (l *Ledger) resetDate(year int) generic.Date {
	month, day := l.ResetMonth, l.ResetDay
	if month == 0 {
		month = time.July
	}
	if day == 0 {
		day = 1
	}
	return generic.NewDate(year, month, day)
}

func (l *Ledger) balanceOf(ctx context.Context, req Request) (*Balance, error) {
	var (
		bal *Balance
		err error
	)
	if req.BalanceID != "" {
		bal, err = l.Balances.Balance(ctx, req.BalanceID)
	} else {
		bal, err = l.Balances.BalanceFor(ctx, req.EmployeeID, req.End.Year)
	}
	if err != nil {
		return nil, fmt.Errorf("request %s: load balance: %w", req.ID, err)
	}
	return bal, nil
}

func (l *Ledger) save(ctx context.Context, bal *Balance) error {
	bal.UpdatedAt = time.Now().UTC()
	err := l.Balances.UpdateBalance(ctx, bal)
	if errors.Is(err, generic.ErrConcurrentModification) {
		logger.OrNop(l.Log).Warn().Err(err).Str("balance_id", bal.ID).Msg("stale balance, not retried")
	}
	return err
}

func (l *Ledger) record(ctx context.Context, action generic.AuditAction, bal *Balance, req Request, msg string) {
	auditAppend(ctx, l.Audit, l.Log, generic.AuditEntry{
		Action:     action,
		EmployeeID: bal.EmployeeID,
		Message:    msg,
		Payload: map[string]any{
			"request_id": req.ID,
			"balance_id": bal.ID,
			"status":     string(req.Status),
		},
	})
}
