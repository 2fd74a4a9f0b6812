package rollover

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type StoreAPI interface {
	ListYearBalances(ctx context.Context, year int) ([]EmployeeBalances, error)
	EmployeeYearBalances(ctx context.Context, employeeID string, year int) (EmployeeBalances, error)
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ArchiveBalanceTx(ctx context.Context, tx pgx.Tx, bal LeaveBalance, archivedAt time.Time, archivedBy *string) error
	UpsertBalanceTx(ctx context.Context, tx pgx.Tx, employeeID string, year int, leaveType LeaveType, allocated decimal.Decimal) error
	ListBalances(ctx context.Context, year int, employeeID string) ([]LeaveBalance, error)
	ListArchives(ctx context.Context, filter ArchiveFilter, limit, offset int) ([]BalanceArchive, error)
	CountArchives(ctx context.Context, filter ArchiveFilter) (int, error)
	Statement(ctx context.Context, employeeID string, year int) (Statement, error)
	EmployeeIDForUser(ctx context.Context, userID string) (string, error)
}

// Notifier delivers the reset email. Failures are reported back but never
// abort a reset.
type Notifier interface {
	LeaveBalanceResetNotification(ctx context.Context, email, firstName string, year int, balances []LeaveBalance) error
}
