package repository

import (
	"context"
	"time"

	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TimeframeAllTime = "all_time"
	TimeframeMonthly = "monthly"
	TimeframeWeekly  = "weekly"
)

// Standing is one leaderboard row. TotalPoints always comes from the stats cache;
// PeriodPoints is the score the row was ranked by.
type Standing struct {
	Member       entity.Member
	TotalPoints  int
	PeriodPoints int
	WeeklyPoints int
}

type LedgerRepository interface {
	// Append inserts entry unless (user, kind, idempotency key) already exists.
	// It reports false, with no error, when the entry was a duplicate.
	Append(ctx context.Context, entry *entity.LedgerEntry) (bool, error)
	Exists(ctx context.Context, userID uuid.UUID, kind entity.LedgerKind, key string) (bool, error)
	SumPoints(ctx context.Context, userID uuid.UUID) (int, error)
	SumPointsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]entity.LedgerEntry, error)
	// LoginDates returns the ISO dates of login bonuses, most recent first.
	LoginDates(ctx context.Context, userID uuid.UUID) ([]string, error)

	RefreshStats(ctx context.Context, userID uuid.UUID) (int, error)
	RefreshAllStats(ctx context.Context) (int64, error)
	GetTopMembers(ctx context.Context, limit int, timeframe string, now time.Time) ([]Standing, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *entity.LedgerEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		if database.IsDuplicateKey(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *ledgerRepository) Exists(ctx context.Context, userID uuid.UUID, kind entity.LedgerKind, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Where("user_id = ? AND kind = ? AND idempotency_key = ?", userID, kind, key).
		Count(&count).Error
	return count > 0, err
}

func (r *ledgerRepository) SumPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

func (r *ledgerRepository) SumPointsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&total).Error
	return total, err
}

func (r *ledgerRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]entity.LedgerEntry, error) {
	var entries []entity.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) LoginDates(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Where("user_id = ? AND kind = ? AND idempotency_key IS NOT NULL", userID, entity.KindLoginBonus).
		Order("idempotency_key DESC").
		Pluck("idempotency_key", &dates).Error
	return dates, err
}

// RefreshStats recomputes the cached total from the ledger. It never increments.
func (r *ledgerRepository) RefreshStats(ctx context.Context, userID uuid.UUID) (int, error) {
	total, err := r.SumPoints(ctx, userID)
	if err != nil {
		return 0, err
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_points", "last_updated_at"}),
	}).Create(&entity.MemberStats{
		UserID:      userID,
		TotalPoints: total,
	}).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// RefreshAllStats rebuilds the whole cache from the ledger.
func (r *ledgerRepository) RefreshAllStats(ctx context.Context) (int64, error) {
	type totalRow struct {
		UserID uuid.UUID
		Total  int
	}
	var totals []totalRow
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("user_id, COALESCE(SUM(points), 0) AS total").
		Group("user_id").
		Scan(&totals).Error
	if err != nil {
		return 0, err
	}
	if len(totals) == 0 {
		return 0, nil
	}

	stats := make([]entity.MemberStats, 0, len(totals))
	for _, t := range totals {
		stats = append(stats, entity.MemberStats{UserID: t.UserID, TotalPoints: t.Total})
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_points", "last_updated_at"}),
	}).CreateInBatches(&stats, 200).Error
	if err != nil {
		return 0, err
	}
	return int64(len(stats)), nil
}

type scoreRow struct {
	UserID uuid.UUID
	Score  int
}

func (r *ledgerRepository) GetTopMembers(ctx context.Context, limit int, timeframe string, now time.Time) ([]Standing, error) {
	db := r.db.WithContext(ctx)
	weeklyStart := now.AddDate(0, 0, -7)

	if timeframe == "" || timeframe == TimeframeAllTime {
		var stats []entity.MemberStats
		err := db.Preload("Member").
			Order("total_points DESC").
			Order("user_id").
			Limit(limit).
			Find(&stats).Error
		if err != nil {
			return nil, err
		}
		if len(stats) == 0 {
			return []Standing{}, nil
		}

		userIDs := make([]uuid.UUID, 0, len(stats))
		for _, s := range stats {
			userIDs = append(userIDs, s.UserID)
		}
		weekly, err := r.sumByMember(ctx, userIDs, weeklyStart)
		if err != nil {
			return nil, err
		}

		standings := make([]Standing, 0, len(stats))
		for _, s := range stats {
			standings = append(standings, Standing{
				Member:       s.Member,
				TotalPoints:  s.TotalPoints,
				PeriodPoints: s.TotalPoints,
				WeeklyPoints: weekly[s.UserID],
			})
		}
		return standings, nil
	}

	var since time.Time
	switch timeframe {
	case TimeframeWeekly:
		since = weeklyStart
	case TimeframeMonthly:
		since = now.AddDate(0, -1, 0)
	default:
		since = weeklyStart
	}

	var results []scoreRow
	err := db.Model(&entity.LedgerEntry{}).
		Select("user_id, SUM(points) AS score").
		Where("created_at >= ?", since).
		Group("user_id").
		Order("score DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []Standing{}, nil
	}

	userIDs := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		userIDs = append(userIDs, res.UserID)
	}

	var members []entity.Member
	if err := db.Where("id IN ?", userIDs).Find(&members).Error; err != nil {
		return nil, err
	}
	memberMap := make(map[uuid.UUID]entity.Member, len(members))
	for _, m := range members {
		memberMap[m.ID] = m
	}

	var stats []entity.MemberStats
	if err := db.Where("user_id IN ?", userIDs).Find(&stats).Error; err != nil {
		return nil, err
	}
	allTime := make(map[uuid.UUID]int, len(stats))
	for _, s := range stats {
		allTime[s.UserID] = s.TotalPoints
	}

	weekly, err := r.sumByMember(ctx, userIDs, weeklyStart)
	if err != nil {
		return nil, err
	}

	standings := make([]Standing, 0, len(results))
	for _, res := range results {
		standings = append(standings, Standing{
			Member:       memberMap[res.UserID],
			TotalPoints:  allTime[res.UserID],
			PeriodPoints: res.Score,
			WeeklyPoints: weekly[res.UserID],
		})
	}
	return standings, nil
}

func (r *ledgerRepository) sumByMember(ctx context.Context, userIDs []uuid.UUID, since time.Time) (map[uuid.UUID]int, error) {
	var rows []scoreRow
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("user_id, SUM(points) AS score").
		Where("user_id IN ? AND created_at >= ?", userIDs, since).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	scores := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		scores[row.UserID] = row.Score
	}
	return scores, nil
}
