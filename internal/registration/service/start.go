package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
	dErrors "garrison/pkg/domain-errors"
	audit "garrison/pkg/platform/audit"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// Start begins a registration, or resumes one already in flight for the
// email. The response is the authoritative resumption answer: whatever
// verified flags the client cached locally are a hint only, and routing
// decisions follow this result, not the cache.
func (s *Service) Start(ctx context.Context, req *models.StartRequest) (*models.StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Start")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.records.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return s.resume(ctx, req, existing)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.startFresh(ctx, req)
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up registration")
	}
}

// startFresh creates the record and issues the first email code.
func (s *Service) startFresh(ctx context.Context, req *models.StartRequest) (*models.StartResult, error) {
	record := &models.Record{
		ID:        id.NewUserID(),
		Name:      req.Name,
		Email:     req.Email,
		Username:  req.Username,
		UserType:  models.UserType(req.UserType),
		Status:    models.StatusPending,
		CreatedAt: requestcontext.Now(ctx),
	}

	if record.UserType == models.UserTypeBuyer {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
		}
		record.PasswordHash = string(hash)
	}

	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent start for the same email.
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
	}

	debugOtp, err := s.email.Issue(ctx, record.Email)
	if err != nil {
		return nil, err
	}

	s.metrics.RegistrationsStarted.Inc()
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventRegistrationStarted),
		Channel: "email",
		Address: record.Email,
	})
	s.logger.InfoContext(ctx, "registration started",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
		"user_type", string(record.UserType),
	)

	return &models.StartResult{
		UserID:   record.ID.String(),
		Email:    record.Email,
		Name:     record.Name,
		Username: record.Username,
		DebugOtp: debugOtp,
	}, nil
}

// resume routes an existing record. A completed account is a duplicate
// registration; a pending one picks up at the last unfinished step.
func (s *Service) resume(ctx context.Context, req *models.StartRequest, record *models.Record) (*models.StartResult, error) {
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
	}

	result := &models.StartResult{
		UserID:   record.ID.String(),
		Email:    record.Email,
		Name:     record.Name,
		Username: record.Username,
		Resuming: true,
	}

	if record.EmailVerified {
		// Email steps are done server-side; skip straight to the phone
		// step and do not issue a redundant email code.
		result.ContinueToPhone = true
		s.metrics.RegistrationsResumed.Inc()
		s.emit(ctx, audit.Event{
			UserID: record.ID,
			Action: string(audit.EventRegistrationResumed),
		})
		s.logger.InfoContext(ctx, "registration resumed past email",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", record.ID,
		)
		return result, nil
	}

	// Email still unverified: reissue, unless the cooldown says the
	// previous code is fresh enough to keep waiting on.
	debugOtp, err := s.email.Issue(ctx, record.Email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.metrics.RegistrationsResumed.Inc()
			return result, nil
		}
		return nil, err
	}

	result.DebugOtp = debugOtp
	s.metrics.RegistrationsResumed.Inc()
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventRegistrationResumed),
		Channel: "email",
		Address: record.Email,
	})
	return result, nil
}
