package services

import (
	"context"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

const defaultMembersPageSize = 50

type MembershipService struct {
	memberships domain.MembershipRepository
}

func NewMembershipService(memberships domain.MembershipRepository) *MembershipService {
	return &MembershipService{memberships: memberships}
}

func (s *MembershipService) ListMembers(ctx context.Context, req models.ListMembersRequest) (commons.Response[[]models.MemberResponse], error) {
	logger.Info("membership service list members request", logger.Fields{
		"limit":  req.Limit,
		"offset": req.Offset,
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[[]models.MemberResponse]("validation failed", err.Error()), err
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultMembersPageSize
	}

	records, err := s.memberships.List(ctx, limit, req.Offset)
	if err != nil {
		return commons.ErrorResponse[[]models.MemberResponse]("failed to list members", "Unable to list members right now"), err
	}

	logger.Info("membership service list members success", logger.Fields{
		"count": len(records),
	})
	return commons.SuccessResponse("members retrieved", toMemberResponses(records)), nil
}

func (s *MembershipService) FindByEmail(ctx context.Context, req models.LookupMemberRequest) (commons.Response[[]models.MemberResponse], error) {
	logger.Info("membership service find by email request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[[]models.MemberResponse]("validation failed", err.Error()), err
	}

	records, err := s.memberships.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return commons.ErrorResponse[[]models.MemberResponse]("failed to look up member", "Unable to look up member right now"), err
	}
	if len(records) == 0 {
		return commons.ErrorResponse[[]models.MemberResponse]("Member not found"), domain.ErrRecordNotFound
	}

	logger.Info("membership service find by email success", logger.Fields{
		"count": len(records),
	})
	return commons.SuccessResponse("member retrieved", toMemberResponses(records)), nil
}

func toMemberResponses(records []domain.MembershipRecord) []models.MemberResponse {
	out := make([]models.MemberResponse, 0, len(records))
	for _, record := range records {
		out = append(out, models.NewMemberResponse(record))
	}
	return out
}
