package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandboost/brandboost-api/internal/middleware"
	"github.com/brandboost/brandboost-api/internal/pkg/response"
	"github.com/brandboost/brandboost-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type grantRequest struct {
	OwnerID uuid.UUID `json:"owner_id" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
	Reason  string    `json:"reason" validate:"required,max=500"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	account, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, account)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := parsePagination(r.URL.Query())

	transactions, err := h.svc.ListTransactions(r.Context(), accountID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

// Grant credits gems outside any workflow (admin support tool). Recorded as
// manual_adjustment so it stands out in the audit trail.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	txn, err := h.svc.Credit(r.Context(), req.OwnerID, req.Amount, CategoryManualAdjustment, req.Reason, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			response.BadRequest(w, "amount must be greater than zero")
			return
		}
		response.InternalError(w)
		return
	}

	account, err := h.svc.GetBalance(r.Context(), req.OwnerID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"transaction": txn,
		"account":     account,
	})
}

// Search exposes the transaction log to admins with filters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	filters := SearchFilters{}
	q := r.URL.Query()

	if raw := q.Get("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid owner_id")
			return
		}
		filters.OwnerID = &id
	}
	if raw := q.Get("category"); raw != "" {
		if err := validator.ValidateVar(raw, "gem_category"); err != nil {
			response.BadRequest(w, "invalid category")
			return
		}
		category := Category(raw)
		filters.Category = &category
	}
	if raw := q.Get("reference_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid reference_id")
			return
		}
		filters.ReferenceID = &id
	}
	if raw := q.Get("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "invalid date_from, expected RFC3339")
			return
		}
		filters.DateFrom = &from
	}
	if raw := q.Get("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "invalid date_to, expected RFC3339")
			return
		}
		filters.DateTo = &to
	}
	filters.Limit, filters.Offset = parsePagination(q)

	transactions, err := h.svc.SearchTransactions(r.Context(), filters)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

// parsePagination reads limit/offset query params. Negative or garbage
// values collapse to zero so the stores never see a bad offset.
func parsePagination(q url.Values) (limit, offset int) {
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin())
		r.Post("/grant", h.Grant)
		r.Get("/search", h.Search)
	})
	return r
}
