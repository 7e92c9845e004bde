package service

import (
	"context"
	"errors"

	"garrison/internal/registration/models"
	dErrors "garrison/pkg/domain-errors"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// Me returns the profile of the authenticated user. The user ID comes from
// the session middleware, never from the request body.
func (s *Service) Me(ctx context.Context) (*models.UserInfo, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user")
	}
	record, err := s.records.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return &models.UserInfo{
		ID:       record.ID.String(),
		Name:     record.Name,
		Email:    record.Email,
		UserType: string(record.UserType),
	}, nil
}
