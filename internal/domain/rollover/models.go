package rollover

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaveType identifies one balance bucket per employee and year.
type LeaveType string

const (
	LeaveEarned       LeaveType = "earned"
	LeaveSick         LeaveType = "sick"
	LeaveCasual       LeaveType = "casual"
	LeaveCompensation LeaveType = "compensation"
)

func LeaveTypes() []LeaveType {
	return []LeaveType{LeaveEarned, LeaveSick, LeaveCasual, LeaveCompensation}
}

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveEarned, LeaveSick, LeaveCasual, LeaveCompensation:
		return true
	}
	return false
}

// Label returns the human form used in notification emails and statements.
func (t LeaveType) Label() string {
	switch t {
	case LeaveEarned:
		return "Earned"
	case LeaveSick:
		return "Sick"
	case LeaveCasual:
		return "Casual"
	case LeaveCompensation:
		return "Compensation"
	default:
		return string(t)
	}
}

// AllocationPolicy maps each leave type to the days granted when a new year
// is opened.
type AllocationPolicy map[LeaveType]decimal.Decimal

// DefaultAllocations is the standing grant table applied on every reset.
// Compensation starts at zero because comp-off days are earned during the
// year, not granted up front.
func DefaultAllocations() AllocationPolicy {
	return AllocationPolicy{
		LeaveEarned:       decimal.NewFromInt(12),
		LeaveSick:         decimal.NewFromInt(8),
		LeaveCasual:       decimal.NewFromInt(8),
		LeaveCompensation: decimal.Zero,
	}
}

// For returns the allocation for a leave type, zero when the policy does not
// mention it.
func (p AllocationPolicy) For(t LeaveType) decimal.Decimal {
	if v, ok := p[t]; ok {
		return v
	}
	return decimal.Zero
}

type LeaveBalance struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	Year           int             `json:"year"`
	LeaveType      LeaveType       `json:"leaveType"`
	TotalAllocated decimal.Decimal `json:"totalAllocated"`
	UsedDays       decimal.Decimal `json:"usedDays"`
	AvailableDays  decimal.Decimal `json:"availableDays"`
	CarryForward   decimal.Decimal `json:"carryForward"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// BalanceArchive is one append-only history row: the value of a balance at
// the moment it was archived.
type BalanceArchive struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	Year           int             `json:"year"`
	LeaveType      LeaveType       `json:"leaveType"`
	TotalAllocated decimal.Decimal `json:"totalAllocated"`
	UsedDays       decimal.Decimal `json:"usedDays"`
	AvailableDays  decimal.Decimal `json:"availableDays"`
	CarryForward   decimal.Decimal `json:"carryForward"`
	ArchivedAt     time.Time       `json:"archivedAt"`
	ArchivedBy     *string         `json:"archivedBy,omitempty"`
}

// EmployeeContact carries the employee fields the reset needs for addressing
// notifications. Email is empty when no user account is linked.
type EmployeeContact struct {
	EmployeeID string
	FirstName  string
	LastName   string
	Email      string
}

// EmployeeBalances groups one employee's balances for a single year.
type EmployeeBalances struct {
	Contact  EmployeeContact
	Balances []LeaveBalance
}

type ResetSummary struct {
	Archived  int       `json:"archivedCount"`
	Reset     int       `json:"resetCount"`
	Timestamp time.Time `json:"timestamp"`
}

type ArchiveFilter struct {
	EmployeeID string
	Year       int
	LeaveType  string
}

// Statement is the archived position of one employee for one year, used to
// render the PDF statement.
type Statement struct {
	Employee EmployeeContact
	Year     int
	Entries  []BalanceArchive
}
