package notify

import (
	"context"
	"fmt"
	"strings"

	"leavehub/internal/domain/rollover"
)

// Mailer is the delivery transport, implemented by the email platform.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service formats and sends the employee-facing leave emails.
type Service struct {
	Mailer      Mailer
	DefaultFrom string
}

func New(mailer Mailer, from string) *Service {
	if strings.TrimSpace(from) == "" {
		from = "no-reply@example.com"
	}
	return &Service{Mailer: mailer, DefaultFrom: from}
}

var _ rollover.Notifier = (*Service)(nil)

func (s *Service) LeaveBalanceResetNotification(ctx context.Context, email, firstName string, year int, balances []rollover.LeaveBalance) error {
	if s.Mailer == nil || strings.TrimSpace(email) == "" {
		return nil
	}
	subject, body := resetMessage(firstName, year, balances)
	return s.Mailer.Send(ctx, s.DefaultFrom, email, subject, body)
}

func resetMessage(firstName string, year int, balances []rollover.LeaveBalance) (string, string) {
	subject := fmt.Sprintf("Your %d leave balances are ready", year)

	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Your leave balances for %d have been opened:\n\n", year)
	for _, bal := range balances {
		fmt.Fprintf(&b, "  %s: %s days\n", bal.LeaveType.Label(), bal.AvailableDays.String())
	}
	b.WriteString("\nLast year's closing balances were archived and stay available in your leave statement.\n")
	return subject, b.String()
}
