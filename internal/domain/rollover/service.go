package rollover

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Service runs the year-end balance rollover: archive the closing year's
// balances into history, then open the next year from the allocation table.
type Service struct {
	Store       StoreAPI
	Notifier    Notifier
	Allocations AllocationPolicy
}

func NewService(store StoreAPI, notifier Notifier) *Service {
	return &Service{
		Store:       store,
		Notifier:    notifier,
		Allocations: DefaultAllocations(),
	}
}

// ProcessYearEndReset rolls every employee with balances in now's year over
// into the next year. Each employee is one transaction, so a failure part way
// through leaves earlier employees fully rolled over and later ones untouched.
func (s *Service) ProcessYearEndReset(ctx context.Context, now time.Time, notify bool) (ResetSummary, error) {
	summary := ResetSummary{Timestamp: now}
	sourceYear := now.Year()
	targetYear := sourceYear + 1

	employees, err := s.Store.ListYearBalances(ctx, sourceYear)
	if err != nil {
		return summary, err
	}

	for _, emp := range employees {
		fresh, err := s.resetEmployee(ctx, emp, targetYear, now, nil)
		if err != nil {
			return summary, err
		}
		summary.Archived += len(emp.Balances)
		summary.Reset += len(fresh)
		if notify {
			s.sendResetNotification(ctx, emp.Contact, targetYear, fresh)
		}
	}
	return summary, nil
}

// ResetEmployeeBalances rolls a single employee into targetYear from the
// year before it. Returns ErrNoSourceBalances when that employee has nothing
// to roll over, without touching any row.
func (s *Service) ResetEmployeeBalances(ctx context.Context, employeeID string, targetYear int, archivedBy *string, notify bool) (ResetSummary, error) {
	now := time.Now()
	summary := ResetSummary{Timestamp: now}
	sourceYear := targetYear - 1

	emp, err := s.Store.EmployeeYearBalances(ctx, employeeID, sourceYear)
	if err != nil {
		return summary, err
	}
	if len(emp.Balances) == 0 {
		return summary, ErrNoSourceBalances
	}

	fresh, err := s.resetEmployee(ctx, emp, targetYear, now, archivedBy)
	if err != nil {
		return summary, err
	}
	summary.Archived = len(emp.Balances)
	summary.Reset = len(fresh)
	if notify {
		s.sendResetNotification(ctx, emp.Contact, targetYear, fresh)
	}
	return summary, nil
}

// resetEmployee archives and reopens one employee's balances in a single
// transaction and returns the fresh target-year rows.
func (s *Service) resetEmployee(ctx context.Context, emp EmployeeBalances, targetYear int, archivedAt time.Time, archivedBy *string) ([]LeaveBalance, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make([]LeaveBalance, 0, len(emp.Balances))
	for _, bal := range emp.Balances {
		if err := s.Store.ArchiveBalanceTx(ctx, tx, bal, archivedAt, archivedBy); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("balance reset rollback failed", "employeeId", emp.Contact.EmployeeID, "err", rbErr)
			}
			return nil, err
		}

		allocated := s.Allocations.For(bal.LeaveType)
		if err := s.Store.UpsertBalanceTx(ctx, tx, bal.EmployeeID, targetYear, bal.LeaveType, allocated); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("balance reset rollback failed", "employeeId", emp.Contact.EmployeeID, "err", rbErr)
			}
			return nil, err
		}
		fresh = append(fresh, LeaveBalance{
			EmployeeID:     bal.EmployeeID,
			Year:           targetYear,
			LeaveType:      bal.LeaveType,
			TotalAllocated: allocated,
			UsedDays:       decimal.Zero,
			AvailableDays:  allocated,
			CarryForward:   decimal.Zero,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return fresh, nil
}

// sendResetNotification is best effort: employees without a linked account
// are skipped and delivery errors are logged, never returned.
func (s *Service) sendResetNotification(ctx context.Context, contact EmployeeContact, year int, fresh []LeaveBalance) {
	if s.Notifier == nil || contact.Email == "" {
		return
	}
	if err := s.Notifier.LeaveBalanceResetNotification(ctx, contact.Email, contact.FirstName, year, fresh); err != nil {
		slog.Warn("balance reset notification failed", "employeeId", contact.EmployeeID, "err", err)
	}
}

func (s *Service) Balances(ctx context.Context, year int, employeeID string) ([]LeaveBalance, error) {
	return s.Store.ListBalances(ctx, year, employeeID)
}

func (s *Service) History(ctx context.Context, filter ArchiveFilter, limit, offset int) ([]BalanceArchive, int, error) {
	total, err := s.Store.CountArchives(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	archives, err := s.Store.ListArchives(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return archives, total, nil
}

func (s *Service) Statement(ctx context.Context, employeeID string, year int) (Statement, error) {
	return s.Store.Statement(ctx, employeeID, year)
}

func (s *Service) EmployeeForUser(ctx context.Context, userID string) (string, error) {
	return s.Store.EmployeeIDForUser(ctx, userID)
}
