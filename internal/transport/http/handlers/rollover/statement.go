package rolloverhandler

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/rollover"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

// handleStatement streams a PDF of the employee's archived balances for one
// year. Employees can fetch their own statement; admins can fetch anyone's.
func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	employeeID := chi.URLParam(r, "employeeID")

	v := shared.NewValidator()
	year, hasYear := v.Year("year", r.URL.Query().Get("year"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if !hasYear {
		year = time.Now().Year() - 1
	}

	if user.Role != auth.RoleAdmin {
		selfID, err := h.Service.EmployeeForUser(r.Context(), user.UserID)
		if err != nil {
			if !errors.Is(err, rollover.ErrEmployeeNotFound) {
				log.Printf("statement self employee lookup failed: %v", err)
			}
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
		if selfID != employeeID {
			api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
			return
		}
	}

	statement, err := h.Service.Statement(r.Context(), employeeID, year)
	if err != nil {
		if errors.Is(err, rollover.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to load leave statement", middleware.GetRequestID(r.Context()))
		return
	}
	if len(statement.Entries) == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "no archived balances for that year", middleware.GetRequestID(r.Context()))
		return
	}

	buf, err := renderStatementPDF(statement)
	if err != nil {
		log.Printf("statement pdf generation failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to render leave statement", middleware.GetRequestID(r.Context()))
		return
	}

	filename := fmt.Sprintf("leave-statement-%s-%d.pdf", employeeID, year)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("statement write failed: %v", err)
	}
}

func renderStatementPDF(statement rollover.Statement) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Statement")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", statement.Employee.FirstName, statement.Employee.LastName))
	pdf.Ln(7)
	if statement.Employee.Email != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", statement.Employee.Email))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Year: %d", statement.Year))
	pdf.Ln(10)

	for _, entry := range statement.Entries {
		pdf.Cell(0, 8, fmt.Sprintf("%s: allocated %s, used %s, available %s, carried forward %s",
			entry.LeaveType.Label(),
			entry.TotalAllocated.String(),
			entry.UsedDays.String(),
			entry.AvailableDays.String(),
			entry.CarryForward.String()))
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Figures as archived on %s.", statement.Entries[0].ArchivedAt.Format("2006-01-02")))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
