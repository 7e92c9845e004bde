package service

import (
	"context"
	"errors"

	"garrison/internal/registration/models"
	dErrors "garrison/pkg/domain-errors"
	audit "garrison/pkg/platform/audit"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// LoginStart issues a login code to the email of a completed account.
func (s *Service) LoginStart(ctx context.Context, req *models.LoginStartRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.LoginStart")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.lookupAccount(ctx, req.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Fail closed: answer as if a code went out so this endpoint
		// cannot be used to probe which emails hold accounts. The audit
		// trail still records the attempt.
		s.emit(ctx, audit.Event{
			Action:  string(audit.EventLoginStarted),
			Channel: "email",
			Address: req.Email,
			Reason:  "unknown_account",
		})
		return &models.IssueResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	debugOtp, err := s.email.Issue(ctx, record.Email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.emit(ctx, audit.Event{
				UserID:  record.ID,
				Action:  string(audit.EventResendRejected),
				Channel: "email",
				Address: record.Email,
			})
		}
		return nil, err
	}

	s.metrics.LoginsStarted.Inc()
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventLoginStarted),
		Channel: "email",
		Address: record.Email,
	})
	s.logger.InfoContext(ctx, "login started",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
	)
	return &models.IssueResult{DebugOtp: debugOtp}, nil
}

// LoginVerify consumes the login code and mints a fresh session.
func (s *Service) LoginVerify(ctx context.Context, req *models.LoginVerifyRequest) (*models.AuthSession, error) {
	ctx, span := s.tracer.Start(ctx, "registration.LoginVerify")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.lookupAccount(ctx, req.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Same answer as a wrong code so unknown and known emails are
		// indistinguishable here.
		s.emit(ctx, audit.Event{
			Action:  string(audit.EventVerifyFailed),
			Channel: "email",
			Address: req.Email,
			Reason:  "unknown_account",
		})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification code")
	}
	if err != nil {
		return nil, err
	}

	if err := s.email.Verify(ctx, record.Email, req.Code); err != nil {
		s.emit(ctx, audit.Event{
			UserID:  record.ID,
			Action:  string(audit.EventVerifyFailed),
			Channel: "email",
			Address: record.Email,
			Reason:  string(dErrors.CodeOf(err)),
		})
		return nil, err
	}

	s.metrics.LoginsCompleted.Inc()
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventLoginSucceeded),
		Channel: "email",
		Address: record.Email,
	})
	s.logger.InfoContext(ctx, "login verified",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
	)
	return s.mintSession(ctx, record)
}

// lookupAccount loads a completed account by email. Pending registrations
// cannot log in; they resume through Start instead. Not-found passes through
// as the sentinel so callers decide how much to reveal.
func (s *Service) lookupAccount(ctx context.Context, email string) (*models.Record, error) {
	record, err := s.records.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	if record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration not completed")
	}
	return record, nil
}
