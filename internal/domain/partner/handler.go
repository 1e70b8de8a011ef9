package partner

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/middleware"
	"github.com/brandboost/brandboost-api/internal/pkg/idempotency"
	"github.com/brandboost/brandboost-api/internal/pkg/response"
	"github.com/brandboost/brandboost-api/internal/pkg/saga"
	"github.com/brandboost/brandboost-api/internal/pkg/validator"
)

type Handler struct {
	svc   *Service
	guard *idempotency.Guard
}

func NewHandler(svc *Service, guard *idempotency.Guard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

type submitRequest struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,max=32"`
}

type approveRequest struct {
	Mode string `json:"mode" validate:"required,approval_mode"`
}

// Submit files a partner application. Public: the applicant has no account
// yet, the workflow creates one.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	app, err := h.svc.SubmitApplication(r.Context(), Profile{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	response.Created(w, app)
}

// Approve decides a pending application. Retries must carry an
// Idempotency-Key header so a duplicate submit cannot move gems twice.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	approverID := middleware.GetAccountID(r.Context())
	if approverID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	applicationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid application id")
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if !h.guard.Claim(r.Context(), idemKey) {
		response.Conflict(w, "request with this idempotency key was already processed")
		return
	}

	outcome, err := h.svc.Approve(r.Context(), approverID, applicationID, ApprovalMode(req.Mode))
	if err != nil {
		h.guard.Release(r.Context(), idemKey)
		h.writeWorkflowError(w, err)
		return
	}

	response.OK(w, outcome)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid application id")
		return
	}

	app, err := h.svc.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			response.NotFound(w, "application not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, app)
}

// writeWorkflowError maps workflow failures to HTTP statuses. Step errors
// unwrap to the domain sentinel of whichever step failed.
func (h *Handler) writeWorkflowError(w http.ResponseWriter, err error) {
	var compErr *saga.CompensationError
	if errors.As(err, &compErr) {
		// A balance may be left un-reconciled; the alerter already paged.
		response.InternalError(w)
		return
	}

	switch {
	case errors.Is(err, ErrPermissionDenied):
		response.Forbidden(w, "not allowed to approve applications")
	case errors.Is(err, ErrApplicationNotFound):
		response.NotFound(w, "application not found")
	case errors.Is(err, ErrApplicationNotPending):
		response.Conflict(w, "application was already decided")
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, "account not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		response.Conflict(w, "insufficient gem balance to fund approval")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/approve", h.Approve)
	})
	return r
}
