package db

import (
	"context"
	"time"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/rollover"
	"leavehub/internal/platform/config"
)

// Seed ensures the admin account exists and, when demo data is enabled,
// a couple of employees with current-year balances to play with.
func Seed(ctx context.Context, pool *Pool, cfg config.Config) error {
	if _, err := ensureUser(ctx, pool, cfg.SeedAdminEmail, auth.RoleAdmin); err != nil {
		return err
	}
	if cfg.SeedDemoData {
		return seedDemoData(ctx, pool)
	}
	return nil
}

func ensureUser(ctx context.Context, pool *Pool, email, role string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO users (email, role) VALUES ($1,$2) RETURNING id", email, role).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureEmployee(ctx context.Context, pool *Pool, userID, firstName, lastName string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM employees WHERE user_id = $1", userID).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO employees (user_id, first_name, last_name) VALUES ($1,$2,$3) RETURNING id",
		userID, firstName, lastName).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func seedDemoData(ctx context.Context, pool *Pool) error {
	demo := []struct {
		first, last, email string
	}{
		{"Asha", "Rao", "asha.rao@example.com"},
		{"Ben", "Okafor", "ben.okafor@example.com"},
	}

	year := time.Now().Year()
	policy := rollover.DefaultAllocations()

	for _, person := range demo {
		userID, err := ensureUser(ctx, pool, person.email, auth.RoleEmployee)
		if err != nil {
			return err
		}
		employeeID, err := ensureEmployee(ctx, pool, userID, person.first, person.last)
		if err != nil {
			return err
		}
		for _, leaveType := range rollover.LeaveTypes() {
			allocated := policy.For(leaveType)
			if _, err := pool.Exec(ctx, `
        INSERT INTO leave_balances (employee_id, year, leave_type, total_allocated, used_days, available_days, carry_forward)
        VALUES ($1,$2,$3,$4,0,$4,0)
        ON CONFLICT (employee_id, year, leave_type) DO NOTHING
      `, employeeID, year, leaveType, allocated); err != nil {
				return err
			}
		}
	}
	return nil
}
