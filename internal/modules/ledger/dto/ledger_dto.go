package dto

import (
	"time"

	"anoa.com/memberclub/internal/entity"
	commonDto "anoa.com/memberclub/pkg/dto"
	"github.com/google/uuid"
)

type BalanceResponse struct {
	UserID             uuid.UUID                    `json:"user_id"`
	Points             int                          `json:"points"`
	Rank               string                       `json:"rank"`
	PointsToNextRank   *int                         `json:"points_to_next_rank"`
	GamificationStatus commonDto.GamificationStatus `json:"gamification_status"`
}

type LedgerEntryResponse struct {
	ID             uuid.UUID         `json:"id"`
	Kind           entity.LedgerKind `json:"kind"`
	Points         int               `json:"points"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	Memo           string            `json:"memo"`
	CreatedAt      time.Time         `json:"created_at"`
}

type LedgerQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type LeaderboardQuery struct {
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Timeframe string `form:"timeframe" binding:"omitempty,oneof=all_time monthly weekly"`
}

// LeaderboardEntry is one row of the leaderboard. Position is 1-based.
type LeaderboardEntry struct {
	Member             commonDto.MemberSummary      `json:"member"`
	Position           int                          `json:"position"`
	PeriodPoints       int                          `json:"period_points"`
	GamificationStatus commonDto.GamificationStatus `json:"gamification_status"`
}

func ToLedgerEntryResponse(e entity.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             e.ID,
		Kind:           e.Kind,
		Points:         e.Points,
		IdempotencyKey: e.IdempotencyKey,
		Memo:           e.Memo,
		CreatedAt:      e.CreatedAt,
	}
}
