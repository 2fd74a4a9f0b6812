package rolloverhandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/rollover"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

type Handler struct {
	Service *rollover.Service
	Jobs    *jobs.Service
	Audit   *audit.Service
	Idem    *middleware.IdempotencyStore

	// DefaultNotify applies when a trigger payload leaves notify unset.
	DefaultNotify bool
}

func NewHandler(service *rollover.Service, jobsSvc *jobs.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore, defaultNotify bool) *Handler {
	return &Handler{
		Service:       service,
		Jobs:          jobsSvc,
		Audit:         auditSvc,
		Idem:          idem,
		DefaultNotify: defaultNotify,
	}
}

type runPayload struct {
	Notify *bool `json:"notify"`
}

type resetPayload struct {
	TargetYear int   `json:"targetYear"`
	Notify     *bool `json:"notify"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Get("/balances", h.handleListBalances)
		r.Route("/rollover", func(r chi.Router) {
			r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/run", h.handleRunRollover)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/employees/{employeeID}", h.handleResetEmployee)
			r.Get("/employees/{employeeID}/statement", h.handleStatement)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Get("/history", h.handleListHistory)
			r.With(middleware.RequireRole(auth.RoleAdmin)).Get("/runs", h.handleListRuns)
		})
	})
}

func (h *Handler) handleRunRollover(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read request body", middleware.GetRequestID(r.Context()))
		return
	}
	var payload runPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", middleware.GetRequestID(r.Context()))
			return
		}
	}
	notify := h.DefaultNotify
	if payload.Notify != nil {
		notify = *payload.Notify
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" {
		stored, found, err := h.Idem.Check(r.Context(), user.UserID, "leave.rollover.run", idempotencyKey, requestHash)
		if err != nil {
			if errors.Is(err, middleware.ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
				return
			}
			log.Printf("idempotency check failed: %v", err)
		}
		if found {
			api.Success(w, stored, middleware.GetRequestID(r.Context()))
			return
		}
	}

	now := time.Now()
	run := func(ctx context.Context) (any, error) {
		return h.Service.ProcessYearEndReset(ctx, now, notify)
	}
	var details any
	var runErr error
	if h.Jobs != nil {
		details, runErr = h.Jobs.RunNow(r.Context(), jobs.JobYearEndRollover, run)
	} else {
		details, runErr = run(r.Context())
	}
	if runErr != nil {
		api.FailWithDetails(w, http.StatusInternalServerError, "rollover_failed", "year end rollover stopped part way",
			map[string]any{"summary": details}, middleware.GetRequestID(r.Context()))
		return
	}
	summary, _ := details.(rollover.ResetSummary)

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), user.UserID, "leave.rollover.run", "leave_balance", strconv.Itoa(now.Year()+1),
			middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, summary); err != nil {
			log.Printf("audit leave.rollover.run failed: %v", err)
		}
	}

	if idempotencyKey != "" {
		response, err := json.Marshal(summary)
		if err != nil {
			log.Printf("rollover response marshal failed: %v", err)
		} else if err := h.Idem.Save(r.Context(), user.UserID, "leave.rollover.run", idempotencyKey, requestHash, response); err != nil {
			log.Printf("idempotency save failed: %v", err)
		}
	}

	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResetEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	employeeID := chi.URLParam(r, "employeeID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read request body", middleware.GetRequestID(r.Context()))
		return
	}
	var payload resetPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Positive("targetYear", payload.TargetYear, "must be a positive year")
	if payload.TargetYear > 0 && (payload.TargetYear < 1900 || payload.TargetYear > 9999) {
		v.Add("targetYear", "must be a four digit year")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	notify := h.DefaultNotify
	if payload.Notify != nil {
		notify = *payload.Notify
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(append([]byte(employeeID+"\n"), body...))
	if idempotencyKey != "" {
		stored, found, err := h.Idem.Check(r.Context(), user.UserID, "leave.rollover.employee_reset", idempotencyKey, requestHash)
		if err != nil {
			if errors.Is(err, middleware.ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
				return
			}
			log.Printf("idempotency check failed: %v", err)
		}
		if found {
			api.Success(w, stored, middleware.GetRequestID(r.Context()))
			return
		}
	}

	archivedBy := user.UserID
	summary, err := h.Service.ResetEmployeeBalances(r.Context(), employeeID, payload.TargetYear, &archivedBy, notify)
	if err != nil {
		if errors.Is(err, rollover.ErrNoSourceBalances) {
			api.Fail(w, http.StatusNotFound, "not_found", "no balances found for the source year", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "failed to reset leave balances", middleware.GetRequestID(r.Context()))
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), user.UserID, "leave.rollover.employee_reset", "employee", employeeID,
			middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, summary); err != nil {
			log.Printf("audit leave.rollover.employee_reset failed: %v", err)
		}
	}

	if idempotencyKey != "" {
		response, err := json.Marshal(summary)
		if err != nil {
			log.Printf("reset response marshal failed: %v", err)
		} else if err := h.Idem.Save(r.Context(), user.UserID, "leave.rollover.employee_reset", idempotencyKey, requestHash, response); err != nil {
			log.Printf("idempotency save failed: %v", err)
		}
	}

	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	year, hasYear := v.Year("year", r.URL.Query().Get("year"))
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if !hasYear {
		year = time.Now().Year()
	}

	employeeID := r.URL.Query().Get("employeeId")
	if user.Role != auth.RoleAdmin {
		selfID, err := h.Service.EmployeeForUser(r.Context(), user.UserID)
		if err != nil {
			if !errors.Is(err, rollover.ErrEmployeeNotFound) {
				log.Printf("balance list employee lookup failed: %v", err)
			}
			api.Success(w, []rollover.LeaveBalance{}, middleware.GetRequestID(r.Context()))
			return
		}
		employeeID = selfID
	}

	balances, err := h.Service.Balances(r.Context(), year, employeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "balance_list_failed", "failed to list leave balances", middleware.GetRequestID(r.Context()))
		return
	}
	if balances == nil {
		balances = []rollover.LeaveBalance{}
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	v := shared.NewValidator()
	year, _ := v.Year("year", query.Get("year"))
	leaveType := strings.ToLower(strings.TrimSpace(query.Get("leaveType")))
	v.Enum("leaveType", leaveType, leaveTypeNames(), "must be one of earned, sick, casual, compensation")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	filter := rollover.ArchiveFilter{
		EmployeeID: query.Get("employeeId"),
		Year:       year,
		LeaveType:  leaveType,
	}
	page := shared.ParsePagination(r, 100, 500)

	archives, total, err := h.Service.History(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "history_list_failed", "failed to list balance history", middleware.GetRequestID(r.Context()))
		return
	}
	if archives == nil {
		archives = []rollover.BalanceArchive{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, archives, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_unavailable", "job service not running", middleware.GetRequestID(r.Context()))
		return
	}

	filter := jobs.RunFilter{
		JobType: r.URL.Query().Get("jobType"),
		Status:  r.URL.Query().Get("status"),
	}
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Jobs.CountRuns(r.Context(), filter)
	if err != nil {
		log.Printf("job run count failed: %v", err)
	}
	runs, err := h.Jobs.ListRuns(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func leaveTypeNames() []string {
	types := rollover.LeaveTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return names
}
