package campaign

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandboost/brandboost-api/internal/domain/ledger"
	"github.com/brandboost/brandboost-api/internal/middleware"
	"github.com/brandboost/brandboost-api/internal/pkg/idempotency"
	"github.com/brandboost/brandboost-api/internal/pkg/response"
	"github.com/brandboost/brandboost-api/internal/pkg/validator"
)

type Handler struct {
	svc   *Service
	guard *idempotency.Guard
}

func NewHandler(svc *Service, guard *idempotency.Guard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

type provisionRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	PoolSize int         `json:"pool_size" validate:"required,gt=0,lte=100000"`
	Prizes   []PrizePlan `json:"prizes" validate:"required,min=1,max=50,dive"`
}

func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetAccountID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req provisionRequest
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

	campaign, err := h.svc.Provision(r.Context(), ownerID, req.Name, req.PoolSize, req.Prizes)
	if err != nil {
		h.guard.Release(r.Context(), idemKey)
		h.writeError(w, err)
		return
	}

	response.Created(w, campaign)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	campaign, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, campaign)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetAccountID(r.Context())
	if ownerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	campaigns, err := h.svc.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, campaigns)
}

func (h *Handler) Prizes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}

	prizes, err := h.svc.ListPrizes(r.Context(), id)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, prizes)
}

func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 {
		response.BadRequest(w, "invalid slot number")
		return
	}

	ticket, err := h.svc.GetTicket(r.Context(), campaignID, slot)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ticket)
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	redeemerID := middleware.GetAccountID(r.Context())
	if redeemerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign id")
		return
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 {
		response.BadRequest(w, "invalid slot number")
		return
	}

	ticket, err := h.svc.Redeem(r.Context(), redeemerID, campaignID, slot)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, ticket)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		response.Forbidden(w, "not allowed to provision campaigns")
	case errors.Is(err, ErrInvalidPrizePlan):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrCampaignNotFound):
		response.NotFound(w, "campaign not found")
	case errors.Is(err, ErrTicketNotFound):
		response.NotFound(w, "ticket not found")
	case errors.Is(err, ErrTicketRedeemed):
		response.Conflict(w, "ticket already redeemed")
	case errors.Is(err, ErrPrizeExhausted):
		response.Conflict(w, "prize exhausted")
	case errors.Is(err, ErrTicketTampered):
		response.Conflict(w, "ticket failed integrity check")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		response.Conflict(w, "insufficient gem balance to provision campaign")
	default:
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Provision)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/prizes", h.Prizes)
	r.Get("/{id}/tickets/{slot}", h.Ticket)
	r.Post("/{id}/tickets/{slot}/redeem", h.Redeem)
	return r
}
