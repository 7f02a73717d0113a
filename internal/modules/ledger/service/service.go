package service

import (
	"context"
	"time"

	ledgerDto "anoa.com/memberclub/internal/modules/ledger/dto"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	"anoa.com/memberclub/pkg/apperror"
	commonDto "anoa.com/memberclub/pkg/dto"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
)

const (
	DefaultLedgerLimit      = 20
	MaxLedgerLimit          = 100
	DefaultLeaderboardLimit = 10
)

type LedgerService interface {
	GetBalanceAndRank(ctx context.Context, userID uuid.UUID) (*ledgerDto.BalanceResponse, error)
	GetRecentEntries(ctx context.Context, userID uuid.UUID, limit int) ([]ledgerDto.LedgerEntryResponse, error)
	GetLeaderboard(ctx context.Context, limit int, timeframe string) ([]ledgerDto.LeaderboardEntry, error)
	// Reconcile rebuilds the leaderboard cache from the ledger.
	Reconcile(ctx context.Context) (int64, error)
}

type ledgerService struct {
	repo  ledgerRepo.LedgerRepository
	ranks *RankTable
	log   *logger.Logger
	now   func() time.Time
}

func NewLedgerService(repo ledgerRepo.LedgerRepository, ranks *RankTable, log *logger.Logger) LedgerService {
	return &ledgerService{
		repo:  repo,
		ranks: ranks,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetBalanceAndRank always sums the ledger; the stats cache is not consulted.
func (s *ledgerService) GetBalanceAndRank(ctx context.Context, userID uuid.UUID) (*ledgerDto.BalanceResponse, error) {
	total, err := s.repo.SumPoints(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable("sum ledger points", err)
	}

	weekly, err := s.repo.SumPointsSince(ctx, userID, s.now().AddDate(0, 0, -7))
	if err != nil {
		return nil, apperror.Unavailable("sum weekly points", err)
	}

	return &ledgerDto.BalanceResponse{
		UserID:             userID,
		Points:             total,
		Rank:               s.ranks.Rank(total).Name,
		PointsToNextRank:   s.ranks.PointsToNextRank(total),
		GamificationStatus: s.ranks.StatusWithWeekly(total, weekly),
	}, nil
}

func (s *ledgerService) GetRecentEntries(ctx context.Context, userID uuid.UUID, limit int) ([]ledgerDto.LedgerEntryResponse, error) {
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		limit = MaxLedgerLimit
	}

	entries, err := s.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, apperror.Unavailable("list ledger entries", err)
	}

	resp := make([]ledgerDto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerDto.ToLedgerEntryResponse(e))
	}
	return resp, nil
}

func (s *ledgerService) GetLeaderboard(ctx context.Context, limit int, timeframe string) ([]ledgerDto.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	standings, err := s.repo.GetTopMembers(ctx, limit, timeframe, s.now())
	if err != nil {
		return nil, apperror.Unavailable("load leaderboard", err)
	}

	entries := make([]ledgerDto.LeaderboardEntry, 0, len(standings))
	for i, st := range standings {
		entries = append(entries, ledgerDto.LeaderboardEntry{
			Member: commonDto.MemberSummary{
				ID:               st.Member.ID,
				DisplayName:      st.Member.DisplayName,
				AvatarURL:        st.Member.AvatarURL,
				MembershipSerial: st.Member.MembershipSerial,
			},
			Position:           i + 1,
			PeriodPoints:       st.PeriodPoints,
			GamificationStatus: s.ranks.StatusWithWeekly(st.TotalPoints, st.WeeklyPoints),
		})
	}
	return entries, nil
}

func (s *ledgerService) Reconcile(ctx context.Context) (int64, error) {
	n, err := s.repo.RefreshAllStats(ctx)
	if err != nil {
		return 0, apperror.Unavailable("reconcile member stats", err)
	}
	s.log.WithField("members", n).Info("member stats reconciled from ledger")
	return n, nil
}
