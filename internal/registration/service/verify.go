package service

import (
	"context"
	"strings"

	"garrison/internal/registration/models"
	dErrors "garrison/pkg/domain-errors"
	audit "garrison/pkg/platform/audit"
	"garrison/pkg/requestcontext"
)

// VerifyEmail consumes the emailed code. For buyers it is the final step:
// the record completes and a session is returned. For vendors the returned
// session is nil and the client proceeds to the phone step.
func (s *Service) VerifyEmail(ctx context.Context, req *models.VerifyEmailRequest) (*models.AuthSession, error) {
	ctx, span := s.tracer.Start(ctx, "registration.VerifyEmail")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration already completed")
	}
	if req.Email != record.Email {
		return nil, dErrors.New(dErrors.CodeValidation, "email does not match registration")
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

	record, err = s.records.MarkEmailVerified(ctx, record.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark email verified")
	}
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventEmailVerified),
		Channel: "email",
		Address: record.Email,
	})
	s.logger.InfoContext(ctx, "email verified",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
	)

	if record.UserType == models.UserTypeBuyer {
		return s.complete(ctx, record)
	}
	return nil, nil
}

// ResendEmail reissues the email code, subject to the cooldown.
func (s *Service) ResendEmail(ctx context.Context, req *models.ResendEmailRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.ResendEmail")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration already completed")
	}
	if req.Email != record.Email {
		return nil, dErrors.New(dErrors.CodeValidation, "email does not match registration")
	}
	if record.EmailVerified {
		return nil, dErrors.New(dErrors.CodeConflict, "email already verified")
	}

	return s.reissue(ctx, s.email, record, "email", record.Email)
}

// SetPhone stores the canonical phone number and issues the first SMS code.
// Setting a new number resets any earlier phone verification.
func (s *Service) SetPhone(ctx context.Context, req *models.SetPhoneRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.SetPhone")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration already completed")
	}
	if !record.EmailVerified {
		return nil, dErrors.New(dErrors.CodeConflict, "email must be verified first")
	}

	record, err = s.records.SetPhone(ctx, record.ID, req.CanonicalPhone())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store phone number")
	}

	return s.reissue(ctx, s.phone, record, "phone", record.Phone)
}

// VerifyPhone consumes the SMS code and, on success, completes the
// registration and mints the session.
func (s *Service) VerifyPhone(ctx context.Context, req *models.VerifyPhoneRequest) (*models.AuthSession, error) {
	ctx, span := s.tracer.Start(ctx, "registration.VerifyPhone")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration already completed")
	}
	if record.Phone == "" {
		return nil, dErrors.New(dErrors.CodeConflict, "no phone number on file")
	}
	if !samePhone(req.Phone, record.Phone) {
		return nil, dErrors.New(dErrors.CodeValidation, "phone does not match registration")
	}

	if err := s.phone.Verify(ctx, record.Phone, req.Code); err != nil {
		s.emit(ctx, audit.Event{
			UserID:  record.ID,
			Action:  string(audit.EventVerifyFailed),
			Channel: "phone",
			Address: record.Phone,
			Reason:  string(dErrors.CodeOf(err)),
		})
		return nil, err
	}

	record, err = s.records.MarkPhoneVerified(ctx, record.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark phone verified")
	}
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventPhoneVerified),
		Channel: "phone",
		Address: record.Phone,
	})
	s.logger.InfoContext(ctx, "phone verified",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
	)

	return s.complete(ctx, record)
}

// ResendPhone reissues the SMS code, subject to the cooldown.
func (s *Service) ResendPhone(ctx context.Context, req *models.ResendPhoneRequest) (*models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "registration.ResendPhone")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.findRecord(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "registration already completed")
	}
	if record.Phone == "" {
		return nil, dErrors.New(dErrors.CodeConflict, "no phone number on file")
	}
	if record.PhoneVerified {
		return nil, dErrors.New(dErrors.CodeConflict, "phone already verified")
	}

	return s.reissue(ctx, s.phone, record, "phone", record.Phone)
}

// reissue runs a cooldown-gated issuance and emits the matching audit event.
func (s *Service) reissue(ctx context.Context, ch Channel, record *models.Record, channel, address string) (*models.IssueResult, error) {
	debugOtp, err := ch.Issue(ctx, address)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.emit(ctx, audit.Event{
				UserID:  record.ID,
				Action:  string(audit.EventResendRejected),
				Channel: channel,
				Address: address,
			})
		}
		return nil, err
	}
	s.emit(ctx, audit.Event{
		UserID:  record.ID,
		Action:  string(audit.EventCodeIssued),
		Channel: channel,
		Address: address,
	})
	return &models.IssueResult{DebugOtp: debugOtp}, nil
}

// complete transitions the record out of pending and mints the session.
func (s *Service) complete(ctx context.Context, record *models.Record) (*models.AuthSession, error) {
	record, err := s.records.Complete(ctx, record.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete registration")
	}
	s.metrics.RegistrationsCompleted.Inc()
	s.emit(ctx, audit.Event{
		UserID: record.ID,
		Action: string(audit.EventAccountCompleted),
	})
	s.logger.InfoContext(ctx, "registration completed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", record.ID,
		"user_type", string(record.UserType),
	)
	return s.mintSession(ctx, record)
}

// samePhone compares numbers ignoring a leading plus, since clients may
// submit the number without the international prefix.
func samePhone(submitted, stored string) bool {
	return strings.TrimPrefix(submitted, "+") == strings.TrimPrefix(stored, "+")
}
