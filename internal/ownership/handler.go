package ownership

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/traceline-scm/traceline/internal/platform/httpx"
	"github.com/traceline-scm/traceline/internal/shared"
)

// TransferRequest is the administrator transfer payload.
type TransferRequest struct {
	NewAdmin string `json:"new_admin" validate:"required,max=128"`
}

// Handler wires HTTP endpoints for the administrator handle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ownership routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin", h.handleCurrent)
	r.Post("/admin/transfer", h.handleTransfer)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	admin, err := h.service.CurrentAdministrator(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"administrator": admin.String()})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}

	caller := shared.AccountFromContext(r.Context())
	if err := h.service.TransferAdministrator(r.Context(), caller, shared.Account(req.NewAdmin)); err != nil {
		h.logger.Warn("administrator transfer rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
