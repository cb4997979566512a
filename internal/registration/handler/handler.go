// Package handler exposes the registration service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/internal/registration/service"
	"campushub/internal/registration/store"
	dErrors "campushub/pkg/domain-errors"
	"campushub/pkg/platform/httputil"
	"campushub/pkg/requestcontext"
)

// Service defines the registration operations the handler exposes.
type Service interface {
	Register(ctx context.Context, userID, eventID uuid.UUID, opts service.RegisterOptions) (service.RegisterResult, error)
	ForceRegister(ctx context.Context, userID, eventID uuid.UUID, conflictingEventIDs []uuid.UUID, opts service.RegisterOptions) (service.RegisterResult, error)
	Cancel(ctx context.Context, registrationID, userID uuid.UUID) (domain.Registration, error)
	CheckIn(ctx context.Context, registrationID, userID uuid.UUID, token string) (domain.Registration, error)
	ListRegistrations(ctx context.Context, userID uuid.UUID) ([]store.RegistrationWithEvent, error)
}

// Handler handles registration endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a registration Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register registers the registration routes with the chi router. The actor
// middleware must already have run; every route reads the user from context.
func (h *Handler) Register(r chi.Router) {
	r.Route("/registrations", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
		r.Post("/force", h.handleForceRegister)
		r.Delete("/{registrationID}", h.handleCancel)
		r.Post("/{registrationID}/checkin", h.handleCheckIn)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, err := httputil.Decode[registerRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Register(ctx, userID, req.EventID, service.RegisterOptions{
		Notes:     req.Notes,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		h.logFailure(ctx, "register failed", req.EventID, err)
		httputil.WriteError(w, err)
		return
	}
	if result.Outcome == service.OutcomeConflict {
		httputil.WriteJSON(w, http.StatusConflict, toConflictResponse(*result.Conflict))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(result))
}

func (h *Handler) handleForceRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, err := httputil.Decode[forceRegisterRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ForceRegister(ctx, userID, req.EventID, req.ConflictingEventIDs, service.RegisterOptions{
		Notes:     req.Notes,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		h.logFailure(ctx, "force-register failed", req.EventID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(result))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	registrationID, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}

	cancelled, err := h.service.Cancel(ctx, registrationID, userID)
	if err != nil {
		h.logFailure(ctx, "cancel failed", registrationID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(cancelled, 0))
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	registrationID, err := uuid.Parse(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}

	// The body is optional: QR scanners post the signed token, manual
	// check-in sends nothing.
	var req checkInRequest
	if r.ContentLength != 0 {
		req, err = httputil.Decode[checkInRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	attended, err := h.service.CheckIn(ctx, registrationID, userID, req.Token)
	if err != nil {
		h.logFailure(ctx, "check-in failed", registrationID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(attended, 0))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	entries, err := h.service.ListRegistrations(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "list registrations failed", userID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListResponse(entries))
}

// logFailure records a failed operation at a severity matching the error:
// client mistakes at warn, infrastructure failures at error.
func (h *Handler) logFailure(ctx context.Context, msg string, subject uuid.UUID, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"subject", subject,
		"error", err.Error(),
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}
