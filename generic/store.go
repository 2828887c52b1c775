/*
store.go - Audit trail for batch diagnostics

PURPOSE:
  Batch jobs never fail a whole run for one employee's configuration gap.
  Instead they skip the employee and append an AuditEntry so the gap is
  visible after the run. Data-quality anomalies go onto the records
  themselves as notes; only configuration gaps and per-employee failures
  land here.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: audit_log table
  - generic/store/memory.go: In-memory for testing

EXAMPLE:
  err := audit.Append(ctx, generic.AuditEntry{
      Action:     generic.AuditRuleMissing,
      EmployeeID: emp.ID,
      Message:    "no leave rule for subsidiary 3 in 2024",
  })

SEE ALSO:
  - timeoff/accrual.go: Records missing rules
  - attendance/sheet.go: Records per-employee failures
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Append-only diagnostics, separate from the records
// =============================================================================

// AuditEntry records a diagnostic raised by a batch run.
type AuditEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id,omitempty"`
	Action     AuditAction    `json:"action"`
	EmployeeID EmployeeID     `json:"employee_id,omitempty"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type AuditAction string

const (
	AuditRuleMissing      AuditAction = "rule_missing"
	AuditEmployeeFailed   AuditAction = "employee_failed"
	AuditBalanceAccrued   AuditAction = "balance_accrued"
	AuditTransferReset    AuditAction = "transfer_reset"
	AuditBalanceRestored  AuditAction = "balance_restored"
	AuditBalanceCommitted AuditAction = "balance_committed"
	AuditPermissionGrant  AuditAction = "permission_granted"
	AuditSheetProcessed   AuditAction = "sheet_processed"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EmployeeID *EmployeeID
	RunID      *string
	Actions    []AuditAction
	From       *time.Time
	To         *time.Time
}

// Matches reports whether an entry passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.RunID != nil && e.RunID != *f.RunID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// DiscardAudit drops every entry.
type DiscardAudit struct{}

func (DiscardAudit) Append(context.Context, AuditEntry) error { return nil }
func (DiscardAudit) Query(context.Context, AuditFilter) ([]AuditEntry, error) {
	return nil, nil
}
