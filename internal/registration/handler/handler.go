// Package handler exposes the registration and login flows over HTTP.
// Request decoding, normalization and validation go through
// httputil.DecodeAndPrepare; domain errors map to statuses in httputil.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"garrison/internal/registration/models"
	"garrison/pkg/platform/httputil"
	"garrison/pkg/requestcontext"
)

// Service is the slice of the registration orchestrator the handler uses.
type Service interface {
	Start(ctx context.Context, req *models.StartRequest) (*models.StartResult, error)
	VerifyEmail(ctx context.Context, req *models.VerifyEmailRequest) (*models.AuthSession, error)
	ResendEmail(ctx context.Context, req *models.ResendEmailRequest) (*models.IssueResult, error)
	SetPhone(ctx context.Context, req *models.SetPhoneRequest) (*models.IssueResult, error)
	VerifyPhone(ctx context.Context, req *models.VerifyPhoneRequest) (*models.AuthSession, error)
	ResendPhone(ctx context.Context, req *models.ResendPhoneRequest) (*models.IssueResult, error)
	LoginStart(ctx context.Context, req *models.LoginStartRequest) (*models.IssueResult, error)
	LoginVerify(ctx context.Context, req *models.LoginVerifyRequest) (*models.AuthSession, error)
	Me(ctx context.Context) (*models.UserInfo, error)
}

// Handler handles the OTP flow endpoints.
type Handler struct {
	logger  *slog.Logger
	flow    Service
	session func(http.Handler) http.Handler
}

// New creates a new registration Handler. session guards the authenticated
// account routes.
func New(flow Service, logger *slog.Logger, session func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:  logger,
		flow:    flow,
		session: session,
	}
}

// Register registers the flow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth/otp", func(r chi.Router) {
		r.Post("/register/start", h.handleStart)
		r.Post("/verify-email", h.handleVerifyEmail)
		r.Post("/resend-email", h.handleResendEmail)
		r.Post("/set-phone", h.handleSetPhone)
		r.Post("/verify-phone", h.handleVerifyPhone)
		r.Post("/resend-phone", h.handleResendPhone)
		r.Post("/login/start", h.handleLoginStart)
		r.Post("/login/verify", h.handleLoginVerify)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.session)
		r.Get("/auth/me", h.handleMe)
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.StartRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.flow.Start(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "registration start rejected", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Resuming {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, result)
}

// verifyEmailResponse is the non-session shape: vendors continue to the
// phone step instead of receiving credentials here. Ok is the stable
// contract field; verified and continueToPhone refine it for clients that
// render the step indicator.
type verifyEmailResponse struct {
	Ok              bool `json:"ok"`
	Verified        bool `json:"verified"`
	ContinueToPhone bool `json:"continueToPhone"`
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.VerifyEmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	session, err := h.flow.VerifyEmail(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "email verification rejected", err)
		httputil.WriteError(w, err)
		return
	}

	if session != nil {
		httputil.WriteJSON(w, http.StatusOK, session)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyEmailResponse{Ok: true, Verified: true, ContinueToPhone: true})
}

func (h *Handler) handleResendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ResendEmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.flow.ResendEmail(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "email resend rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSetPhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.SetPhoneRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.flow.SetPhone(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "set phone rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyPhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.VerifyPhoneRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	session, err := h.flow.VerifyPhone(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "phone verification rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleResendPhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ResendPhoneRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.flow.ResendPhone(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "phone resend rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginStartRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.flow.LoginStart(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "login start rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginVerifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	session, err := h.flow.LoginVerify(ctx, req)
	if err != nil {
		h.logWarn(ctx, r, "login verification rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.flow.Me(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// logWarn records a rejected request. Internal errors log at error level so
// they surface in alerts; everything else is expected client behavior.
func (h *Handler) logWarn(ctx context.Context, r *http.Request, msg string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err.Error(),
	}
	if httputil.IsInternal(err) {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}
