package rollover

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *Store) ListYearBalances(ctx context.Context, year int) ([]EmployeeBalances, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT b.id, b.employee_id, b.year, b.leave_type,
           b.total_allocated, b.used_days, b.available_days, b.carry_forward, b.updated_at,
           e.first_name, e.last_name, COALESCE(u.email, '')
    FROM leave_balances b
    JOIN employees e ON b.employee_id = e.id
    LEFT JOIN users u ON e.user_id = u.id
    WHERE b.year = $1
    ORDER BY b.employee_id, b.leave_type
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make([]EmployeeBalances, 0)
	for rows.Next() {
		var bal LeaveBalance
		var first, last, email string
		if err := rows.Scan(&bal.ID, &bal.EmployeeID, &bal.Year, &bal.LeaveType,
			&bal.TotalAllocated, &bal.UsedDays, &bal.AvailableDays, &bal.CarryForward, &bal.UpdatedAt,
			&first, &last, &email); err != nil {
			return nil, err
		}
		if n := len(grouped); n == 0 || grouped[n-1].Contact.EmployeeID != bal.EmployeeID {
			grouped = append(grouped, EmployeeBalances{Contact: EmployeeContact{
				EmployeeID: bal.EmployeeID,
				FirstName:  first,
				LastName:   last,
				Email:      email,
			}})
		}
		grouped[len(grouped)-1].Balances = append(grouped[len(grouped)-1].Balances, bal)
	}
	return grouped, nil
}

func (s *Store) EmployeeYearBalances(ctx context.Context, employeeID string, year int) (EmployeeBalances, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT b.id, b.employee_id, b.year, b.leave_type,
           b.total_allocated, b.used_days, b.available_days, b.carry_forward, b.updated_at,
           e.first_name, e.last_name, COALESCE(u.email, '')
    FROM leave_balances b
    JOIN employees e ON b.employee_id = e.id
    LEFT JOIN users u ON e.user_id = u.id
    WHERE b.employee_id = $1 AND b.year = $2
    ORDER BY b.leave_type
  `, employeeID, year)
	if err != nil {
		return EmployeeBalances{}, err
	}
	defer rows.Close()

	var out EmployeeBalances
	for rows.Next() {
		var bal LeaveBalance
		var first, last, email string
		if err := rows.Scan(&bal.ID, &bal.EmployeeID, &bal.Year, &bal.LeaveType,
			&bal.TotalAllocated, &bal.UsedDays, &bal.AvailableDays, &bal.CarryForward, &bal.UpdatedAt,
			&first, &last, &email); err != nil {
			return EmployeeBalances{}, err
		}
		out.Contact = EmployeeContact{EmployeeID: bal.EmployeeID, FirstName: first, LastName: last, Email: email}
		out.Balances = append(out.Balances, bal)
	}
	return out, nil
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

func (s *Store) ArchiveBalanceTx(ctx context.Context, tx pgx.Tx, bal LeaveBalance, archivedAt time.Time, archivedBy *string) error {
	_, err := tx.Exec(ctx, `
    INSERT INTO leave_balance_history
      (employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward, archived_at, archived_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, bal.EmployeeID, bal.Year, bal.LeaveType, bal.TotalAllocated, bal.UsedDays, bal.AvailableDays, bal.CarryForward, archivedAt, archivedBy)
	return err
}

func (s *Store) UpsertBalanceTx(ctx context.Context, tx pgx.Tx, employeeID string, year int, leaveType LeaveType, allocated decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward)
    VALUES ($1,$2,$3,$4,0,$4,0)
    ON CONFLICT (employee_id, year, leave_type)
    DO UPDATE SET total_allocated = EXCLUDED.total_allocated,
                  used_days = 0,
                  available_days = EXCLUDED.available_days,
                  carry_forward = 0,
                  updated_at = now()
  `, employeeID, year, leaveType, allocated)
	return err
}

func (s *Store) ListBalances(ctx context.Context, year int, employeeID string) ([]LeaveBalance, error) {
	query := `
    SELECT id, employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward, updated_at
    FROM leave_balances
    WHERE year = $1
  `
	args := []any{year}
	if employeeID != "" {
		query += " AND employee_id = $2"
		args = append(args, employeeID)
	}
	query += " ORDER BY employee_id, leave_type"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []LeaveBalance
	for rows.Next() {
		var bal LeaveBalance
		if err := rows.Scan(&bal.ID, &bal.EmployeeID, &bal.Year, &bal.LeaveType,
			&bal.TotalAllocated, &bal.UsedDays, &bal.AvailableDays, &bal.CarryForward, &bal.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, bal)
	}
	return balances, nil
}

func (s *Store) ListArchives(ctx context.Context, filter ArchiveFilter, limit, offset int) ([]BalanceArchive, error) {
	query, args := buildArchivesBaseQuery(filter)
	query += " ORDER BY archived_at DESC, employee_id, leave_type"
	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	query += " LIMIT $" + strconv.Itoa(limitPos) + " OFFSET $" + strconv.Itoa(offsetPos)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []BalanceArchive
	for rows.Next() {
		var a BalanceArchive
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Year, &a.LeaveType,
			&a.TotalAllocated, &a.UsedDays, &a.AvailableDays, &a.CarryForward, &a.ArchivedAt, &a.ArchivedBy); err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return archives, nil
}

func (s *Store) CountArchives(ctx context.Context, filter ArchiveFilter) (int, error) {
	query, args := buildArchivesBaseQuery(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") history", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) Statement(ctx context.Context, employeeID string, year int) (Statement, error) {
	st := Statement{Year: year}
	err := s.DB.QueryRow(ctx, `
    SELECT e.id, e.first_name, e.last_name, COALESCE(u.email, '')
    FROM employees e
    LEFT JOIN users u ON e.user_id = u.id
    WHERE e.id = $1
  `, employeeID).Scan(&st.Employee.EmployeeID, &st.Employee.FirstName, &st.Employee.LastName, &st.Employee.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, ErrEmployeeNotFound
	}
	if err != nil {
		return st, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (leave_type)
           id, employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward, archived_at, archived_by
    FROM leave_balance_history
    WHERE employee_id = $1 AND year = $2
    ORDER BY leave_type, archived_at DESC
  `, employeeID, year)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var a BalanceArchive
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Year, &a.LeaveType,
			&a.TotalAllocated, &a.UsedDays, &a.AvailableDays, &a.CarryForward, &a.ArchivedAt, &a.ArchivedBy); err != nil {
			return st, err
		}
		st.Entries = append(st.Entries, a)
	}
	return st, nil
}

// EmployeeIDForUser maps an authenticated user to their employee record, for
// scoping self-service reads.
func (s *Store) EmployeeIDForUser(ctx context.Context, userID string) (string, error) {
	var employeeID string
	err := s.DB.QueryRow(ctx, `
    SELECT id
    FROM employees
    WHERE user_id = $1
  `, userID).Scan(&employeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrEmployeeNotFound
	}
	if err != nil {
		return "", err
	}
	return employeeID, nil
}

func buildArchivesBaseQuery(filter ArchiveFilter) (string, []any) {
	query := `
    SELECT id, employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward, archived_at, archived_by
    FROM leave_balance_history
    WHERE 1=1
  `
	args := []any{}

	if value := strings.TrimSpace(filter.EmployeeID); value != "" {
		query += " AND employee_id = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.Year > 0 {
		query += " AND year = $" + strconv.Itoa(len(args)+1)
		args = append(args, filter.Year)
	}
	if value := strings.TrimSpace(filter.LeaveType); value != "" {
		query += " AND leave_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}

	return query, args
}
