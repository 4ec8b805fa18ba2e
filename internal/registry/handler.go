package registry

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/traceline-scm/traceline/internal/platform/httpx"
	"github.com/traceline-scm/traceline/internal/shared"
)

// Handler wires HTTP endpoints for the role registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers registry routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{account}", h.handleGet)
		r.Put("/{account}", h.handleAssign)
	})
	r.Post("/buyers", h.handleRegisterBuyer)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	account := shared.Account(chi.URLParam(r, "account"))
	ra, err := h.service.GetRole(r.Context(), account)
	if err != nil {
		h.logger.Error("get role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if ra.Account.IsZero() {
		ra.Account = account
	}
	httpx.JSON(w, http.StatusOK, ra)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}

	caller := shared.AccountFromContext(r.Context())
	account := shared.Account(chi.URLParam(r, "account"))
	if err := h.service.AssignRole(r.Context(), caller, account, Role(req.Role), req.DisplayName); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRegisterBuyer(w http.ResponseWriter, r *http.Request) {
	var req RegisterBuyerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}

	caller := shared.AccountFromContext(r.Context())
	if err := h.service.RegisterAsBuyer(r.Context(), caller, req.DisplayName); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type listResponse struct {
	Assignments []RoleAssignment `json:"assignments"`
	Total       int              `json:"total"`
	Limit       int              `json:"limit"`
	Offset      int              `json:"offset"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Page: shared.PageFromQuery(r.URL.Query())}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := Role(raw)
		if !role.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "unknown role filter")
			return
		}
		filter.Role = &role
	}

	caller := shared.AccountFromContext(r.Context())
	assignments, total, err := h.service.ListAssignments(r.Context(), caller, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := filter.Page.Normalize()
	httpx.JSON(w, http.StatusOK, listResponse{
		Assignments: assignments,
		Total:       total,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
}
