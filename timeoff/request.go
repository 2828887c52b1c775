package timeoff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/generic"
)

// RequestStatus is the approval state of a leave request.
type RequestStatus string

const (
	StatusPending              RequestStatus = "pending"
	StatusPendingDeductBalance RequestStatus = "pending_deduct_balance"
	StatusApproved             RequestStatus = "approved"
	StatusRejected             RequestStatus = "rejected"
)

// ParseRequestStatus matches a status name case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusPendingDeductBalance, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Request is the part of a leave request the ledger reacts to. The
// request itself lives in the host workflow; only its balance effects
// are applied here.
type Request struct {
	ID         string             `json:"id"`
	EmployeeID generic.EmployeeID `json:"employee_id"`
	// BalanceID links the balance the request was submitted against.
	// Empty means "the employee's balance for the End year".
	BalanceID    string          `json:"balance_id,omitempty"`
	LeaveTypeRef int             `json:"leave_type"`
	Days         decimal.Decimal `json:"days"`
	Status       RequestStatus   `json:"status"`
	End          generic.Date    `json:"end"`
	// Carried holds the balance computed when the request was submitted,
	// i.e. after its tentative deduction.
	Carried BalanceFields `json:"carried"`
	// InitialSnapshot is the JSON balance taken before the deduction.
	InitialSnapshot string `json:"initial_snapshot,omitempty"`
	// TransferApplied mirrors the rule's carry-over flag at submission.
	TransferApplied bool `json:"transfer_applied"`
	// CasualFromAnnual mirrors the rule's casual-as-annual flag.
	CasualFromAnnual bool `json:"casual_from_annual"`
}

// snapshot is the stored shape of InitialSnapshot. Numbers may be JSON
// numbers or numeric strings.
type snapshot struct {
	Annual      decimal.Decimal `json:"annual"`
	Casual      decimal.Decimal `json:"casual"`
	Sick        decimal.Decimal `json:"sick"`
	Transferred decimal.Decimal `json:"transferred"`
	Replacement decimal.Decimal `json:"replacement"`
	Unpaid      decimal.Decimal `json:"unpaid"`
}

// Snapshot parses InitialSnapshot. An empty snapshot is all zeros.
func (r Request) Snapshot() (BalanceFields, error) {
	if strings.TrimSpace(r.InitialSnapshot) == "" {
		return BalanceFields{}, nil
	}
	var s snapshot
	if err := json.Unmarshal([]byte(r.InitialSnapshot), &s); err != nil {
		return BalanceFields{}, fmt.Errorf("request %s: parse balance snapshot: %w", r.ID, err)
	}
	return BalanceFields(s), nil
}
