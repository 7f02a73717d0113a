package service

import (
	"context"

	"anoa.com/memberclub/internal/entity"
	adminDto "anoa.com/memberclub/internal/modules/admin/dto"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
)

// LedgerWriter is the admin slice of the reward issuer.
type LedgerWriter interface {
	RecordAdminAward(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error)
	RecordAdminAdjustment(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error)
	SetBalance(ctx context.Context, userID uuid.UUID, target int, memo string) (*entity.LedgerEntry, error)
	SetRank(ctx context.Context, userID uuid.UUID, rankName string, memo string) (*entity.LedgerEntry, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*membershipDto.ProfileResponse, error)
}

// AdminService applies manual ledger corrections. None of these calls are
// deduplicated: every request appends a new entry.
type AdminService interface {
	AwardPoints(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.AwardPointsRequest) (*adminDto.LedgerActionResponse, error)
	AdjustPoints(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.AdjustPointsRequest) (*adminDto.LedgerActionResponse, error)
	SetBalance(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.SetBalanceRequest) (*adminDto.LedgerActionResponse, error)
	SetRank(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.SetRankRequest) (*adminDto.LedgerActionResponse, error)
}

type adminService struct {
	ledger   LedgerWriter
	profiles ProfileReader
	log      *logger.Logger
}

func NewAdminService(ledger LedgerWriter, profiles ProfileReader, log *logger.Logger) AdminService {
	return &adminService{
		ledger:   ledger,
		profiles: profiles,
		log:      log,
	}
}

func (s *adminService) AwardPoints(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.AwardPointsRequest) (*adminDto.LedgerActionResponse, error) {
	return s.apply(ctx, adminID, memberID, "award", func() (*entity.LedgerEntry, error) {
		return s.ledger.RecordAdminAward(ctx, memberID, req.Points, req.Memo)
	})
}

func (s *adminService) AdjustPoints(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.AdjustPointsRequest) (*adminDto.LedgerActionResponse, error) {
	return s.apply(ctx, adminID, memberID, "adjustment", func() (*entity.LedgerEntry, error) {
		return s.ledger.RecordAdminAdjustment(ctx, memberID, req.Points, req.Memo)
	})
}

func (s *adminService) SetBalance(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.SetBalanceRequest) (*adminDto.LedgerActionResponse, error) {
	return s.apply(ctx, adminID, memberID, "set_balance", func() (*entity.LedgerEntry, error) {
		return s.ledger.SetBalance(ctx, memberID, *req.Balance, req.Memo)
	})
}

func (s *adminService) SetRank(ctx context.Context, adminID, memberID uuid.UUID, req adminDto.SetRankRequest) (*adminDto.LedgerActionResponse, error) {
	return s.apply(ctx, adminID, memberID, "set_rank", func() (*entity.LedgerEntry, error) {
		return s.ledger.SetRank(ctx, memberID, req.Rank, req.Memo)
	})
}

// apply checks the member exists before writing, then reloads the profile so the
// response shows the new balance.
func (s *adminService) apply(ctx context.Context, adminID, memberID uuid.UUID, action string, write func() (*entity.LedgerEntry, error)) (*adminDto.LedgerActionResponse, error) {
	if _, err := s.profiles.GetProfile(ctx, memberID); err != nil {
		return nil, err
	}

	entry, err := write()
	if err != nil {
		return nil, err
	}

	s.log.WithUserID(memberID).WithFields(map[string]interface{}{
		"admin_id": adminID,
		"action":   action,
		"points":   entry.Points,
	}).Info("admin ledger action")

	profile, err := s.profiles.GetProfile(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return adminDto.ToLedgerActionResponse(entry, profile), nil
}
