// Package service holds the registration orchestrator. It drives the step
// sequence (collect details, verify email, add and verify phone, mint
// credentials), decides between resuming an in-flight registration and
// starting fresh, and enforces step ordering. Channel adapters own code
// issuance and verification; stores own persistence; this package owns the
// sequencing rules.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"garrison/internal/registration/metrics"
	"garrison/internal/registration/models"
	regstore "garrison/internal/registration/store"
	id "garrison/pkg/domain"
	dErrors "garrison/pkg/domain-errors"
	audit "garrison/pkg/platform/audit"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// Channel is the slice of the otp adapter the orchestrator uses. Both
// adapters (email, phone) satisfy it.
type Channel interface {
	Issue(ctx context.Context, address string) (string, error)
	Verify(ctx context.Context, address, submitted string) error
}

// Issuer mints the credential pair on flow completion.
type Issuer interface {
	Issue(ctx context.Context, record *models.Record) (*models.AuthSession, error)
}

// AuditPublisher records flow events for compliance and security review.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the registration and login flows.
type Service struct {
	records regstore.Store
	email   Channel
	phone   Channel
	issuer  Issuer
	auditor AuditPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New constructs the orchestrator.
func New(records regstore.Store, email, phone Channel, issuer Issuer, auditor AuditPublisher, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		records: records,
		email:   email,
		phone:   phone,
		issuer:  issuer,
		auditor: auditor,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("garrison/registration"),
	}
}

// findRecord loads a record by its string user ID, translating store facts
// into domain errors.
func (s *Service) findRecord(ctx context.Context, rawUserID string) (*models.Record, error) {
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	record, err := s.records.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	return record, nil
}

// emit records an audit event, stamping request-scoped metadata. Audit
// failures are logged, never surfaced; the flow outcome already happened.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}

// mintSession issues credentials for the record and emits the audit trail.
func (s *Service) mintSession(ctx context.Context, record *models.Record) (*models.AuthSession, error) {
	session, err := s.issuer.Issue(ctx, record)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionsIssued.Inc()
	s.emit(ctx, audit.Event{
		UserID: record.ID,
		Action: string(audit.EventSessionIssued),
	})
	return session, nil
}
