package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/traceline-scm/traceline/internal/platform/httpx"
	"github.com/traceline-scm/traceline/internal/shared"
)

// Handler wires HTTP endpoints and middleware for bearer-token auth.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the enrollment route. Enrollment stays public: a
// fresh account has no credential to authenticate with yet.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleEnroll)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}

	if err := h.service.Enroll(r.Context(), shared.Account(req.Account), req.Token); err != nil {
		h.logger.Warn("enrollment rejected", slog.String("account", req.Account), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"account": req.Account})
}

// RequireAccount authenticates "Authorization: Bearer <account>:<token>"
// and stores the account in the request context.
func (h *Handler) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, token, ok := parseBearer(r.Header.Get("Authorization"))
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "bearer token required")
			return
		}
		if err := h.service.Verify(r.Context(), account, token); err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "bearer token rejected")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAccount(r.Context(), account)))
	})
}

// parseBearer splits the header on the first colon, so tokens may contain
// colons while accounts may not.
func parseBearer(header string) (shared.Account, string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	account, token, found := strings.Cut(strings.TrimPrefix(header, prefix), ":")
	if !found || account == "" || token == "" {
		return "", "", false
	}
	return shared.Account(account), token, true
}
