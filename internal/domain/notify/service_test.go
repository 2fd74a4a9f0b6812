package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"leavehub/internal/domain/rollover"
)

type sentMail struct {
	from, to, subject, body string
}

type recordingMailer struct {
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, from, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{from: from, to: to, subject: subject, body: body})
	return nil
}

func freshBalances(year int) []rollover.LeaveBalance {
	return []rollover.LeaveBalance{
		{Year: year, LeaveType: rollover.LeaveEarned, TotalAllocated: decimal.NewFromInt(12), AvailableDays: decimal.NewFromInt(12)},
		{Year: year, LeaveType: rollover.LeaveSick, TotalAllocated: decimal.NewFromInt(8), AvailableDays: decimal.NewFromInt(8)},
	}
}

func TestLeaveBalanceResetNotification(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(mailer, "hr@acme.test")

	err := svc.LeaveBalanceResetNotification(context.Background(), "asha@acme.test", "Asha", 2025, freshBalances(2025))
	if err != nil {
		t.Fatalf("send error: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}

	mail := mailer.sent[0]
	if mail.from != "hr@acme.test" || mail.to != "asha@acme.test" {
		t.Fatalf("unexpected addressing: %+v", mail)
	}
	if !strings.Contains(mail.subject, "2025") {
		t.Fatalf("subject should name the year: %q", mail.subject)
	}
	if !strings.Contains(mail.body, "Hi Asha") {
		t.Fatalf("body should greet by first name: %q", mail.body)
	}
	if !strings.Contains(mail.body, "Earned: 12 days") || !strings.Contains(mail.body, "Sick: 8 days") {
		t.Fatalf("body should list each fresh balance: %q", mail.body)
	}
}

func TestLeaveBalanceResetNotificationSkipsEmptyEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(mailer, "")

	if err := svc.LeaveBalanceResetNotification(context.Background(), "  ", "Asha", 2025, freshBalances(2025)); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(mailer.sent))
	}
}

func TestLeaveBalanceResetNotificationGreetsUnknownName(t *testing.T) {
	mailer := &recordingMailer{}
	svc := New(mailer, "hr@acme.test")

	if err := svc.LeaveBalanceResetNotification(context.Background(), "x@acme.test", "", 2025, nil); err != nil {
		t.Fatalf("send error: %v", err)
	}
	if len(mailer.sent) != 1 || !strings.Contains(mailer.sent[0].body, "Hi there") {
		t.Fatalf("expected fallback greeting, got %+v", mailer.sent)
	}
}
