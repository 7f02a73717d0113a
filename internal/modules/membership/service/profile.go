package service

import (
	"context"
	"errors"
	"net/http"

	"anoa.com/memberclub/internal/entity"
	ledgerDto "anoa.com/memberclub/internal/modules/ledger/dto"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	memberRepo "anoa.com/memberclub/internal/modules/membership/repository"
	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/pkg/apperror"
	commonDto "anoa.com/memberclub/pkg/dto"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BalanceReader interface {
	GetBalanceAndRank(ctx context.Context, userID uuid.UUID) (*ledgerDto.BalanceResponse, error)
}

type ProfileService interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*membershipDto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req membershipDto.UpdateProfileRequest) (*membershipDto.UpdateProfileResponse, error)

	// Admin
	ListMembers(ctx context.Context, query membershipDto.MemberListQuery) (*membershipDto.MemberListResponse, error)
	SetSubscriptionState(ctx context.Context, userID uuid.UUID, state entity.SubscriptionState) (*membershipDto.ProfileResponse, error)
}

type profileService struct {
	repo    memberRepo.MemberRepository
	balance BalanceReader
	quests  questService.Evaluator
	index   searchService.MemberIndex
	log     *logger.Logger
}

func NewProfileService(repo memberRepo.MemberRepository, balance BalanceReader, quests questService.Evaluator, index searchService.MemberIndex, log *logger.Logger) ProfileService {
	return &profileService{
		repo:    repo,
		balance: balance,
		quests:  quests,
		index:   index,
		log:     log,
	}
}

// FindByID returns the raw member; the store error is passed through so callers can
// tell not-found from unavailable.
func (s *profileService) FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*membershipDto.ProfileResponse, error) {
	member, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withStatus(ctx, member), nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, req membershipDto.UpdateProfileRequest) (*membershipDto.UpdateProfileResponse, error) {
	member, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := sanitize.Optional(req.DisplayName)
		if name == nil {
			return nil, apperror.New(http.StatusBadRequest, "display name cannot be empty", apperror.ErrInvalidInput)
		}
		member.DisplayName = *name
	}
	if req.HomeCountry != nil {
		member.HomeCountry = sanitize.Optional(req.HomeCountry)
	}
	if req.HomeCity != nil {
		member.HomeCity = sanitize.Optional(req.HomeCity)
	}
	if req.AvatarURL != nil {
		member.AvatarURL = sanitize.Optional(req.AvatarURL)
	}
	if req.MapVisible != nil {
		member.MapVisible = *req.MapVisible
	}
	if req.Latitude != nil {
		member.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		member.Longitude = req.Longitude
	}

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, apperror.Unavailable("update profile", err)
	}

	if err := s.index.IndexMember(ctx, member); err != nil {
		s.log.WithUserID(userID).WithError(err).Warn("failed to index member")
	}

	results, err := s.quests.EvaluateProfile(ctx, member)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []questDto.EvaluationResult{}
	}

	return &membershipDto.UpdateProfileResponse{
		Profile: *s.withStatus(ctx, member),
		Quests:  results,
	}, nil
}

func (s *profileService) ListMembers(ctx context.Context, query membershipDto.MemberListQuery) (*membershipDto.MemberListResponse, error) {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	filter := memberRepo.MemberFilter{
		Query:  query.Q,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if query.State != "" {
		state := entity.SubscriptionState(query.State)
		filter.State = &state
	}

	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Unavailable("list members", err)
	}

	data := make([]membershipDto.ProfileResponse, 0, len(members))
	for i := range members {
		data = append(data, membershipDto.ToProfileResponse(&members[i]))
	}

	return &membershipDto.MemberListResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}

// SetSubscriptionState is the admin override. Moving an invited member to active
// credits the inviter's referral quest the same way a confirmed payment would.
func (s *profileService) SetSubscriptionState(ctx context.Context, userID uuid.UUID, state entity.SubscriptionState) (*membershipDto.ProfileResponse, error) {
	if !state.Valid() {
		return nil, apperror.New(http.StatusBadRequest, "unknown subscription state", apperror.ErrInvalidInput)
	}

	if err := s.repo.SetSubscriptionState(ctx, userID, state); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, apperror.Unavailable("update subscription state", err)
	}

	member, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.log.WithUserID(userID).WithField("state", state).Info("subscription state overridden")

	if member.InvitedBy != nil {
		if _, err := s.quests.EvaluateReferral(ctx, *member.InvitedBy, member); err != nil {
			return nil, err
		}
	}

	res := membershipDto.ToProfileResponse(member)
	return &res, nil
}

func (s *profileService) find(ctx context.Context, userID uuid.UUID) (*entity.Member, error) {
	member, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, apperror.Unavailable("find member", err)
	}
	return member, nil
}

// withStatus attaches rank progress; a ledger hiccup leaves it out rather than
// failing the profile read.
func (s *profileService) withStatus(ctx context.Context, member *entity.Member) *membershipDto.ProfileResponse {
	res := membershipDto.ToProfileResponse(member)
	if s.balance == nil {
		return &res
	}

	balance, err := s.balance.GetBalanceAndRank(ctx, member.ID)
	if err != nil {
		s.log.WithUserID(member.ID).WithError(err).Warn("failed to load balance for profile")
		return &res
	}
	status := balance.GamificationStatus
	res.GamificationStatus = &status
	return &res
}
